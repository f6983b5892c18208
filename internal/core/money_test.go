package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{".5", 50, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParseHours(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"2", 200, true},
		{"1.5", 150, true},
		{"0,25", 25, true},
		{"0.333", 33, true},
		{"0", 0, false},
		{"x", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseHours(tc.in)
		if tc.ok && (err != nil || got.Hundredths != tc.out) {
			t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Hundredths, err)
		}
		if !tc.ok && err != ErrInvalidHours {
			t.Fatalf("%q expected ErrInvalidHours, got %v", tc.in, err)
		}
	}
}

func TestHoursCost(t *testing.T) {
	cases := []struct {
		hours int64
		rate  int64
		want  int64
	}{
		{200, 5000, 10000}, // 2h @ 50.00
		{300, 5000, 15000}, // 3h @ 50.00
		{400, 8000, 32000}, // 4h @ 80.00
		{33, 1000, 330},    // 0.33h @ 10.00
		{1, 49, 0},         // rounds to zero
		{1, 50, 1},         // half-up
		{125, 3333, 4166},  // 1.25h @ 33.33 = 41.6625
		{0, 9999, 0},
	}
	for _, tc := range cases {
		got := Hours{Hundredths: tc.hours}.Cost(Money{Cents: tc.rate})
		if got.Cents != tc.want {
			t.Errorf("Cost(%d, %d) = %d, want %d", tc.hours, tc.rate, got.Cents, tc.want)
		}
	}
}

func TestRatePerHour(t *testing.T) {
	if got := RatePerHour(Money{Cents: 57000}, Hours{}); got.Cents != 0 {
		t.Fatalf("zero hours should yield zero rate, got %d", got.Cents)
	}
	// 570.00 over 9h = 63.333... -> 63.33
	if got := RatePerHour(Money{Cents: 57000}, Hours{Hundredths: 900}); got.Cents != 6333 {
		t.Fatalf("expected 6333, got %d", got.Cents)
	}
}

func TestMoneyString(t *testing.T) {
	if s := (Money{Cents: 123450}).String(); s != "1234.50" {
		t.Fatalf("got %q", s)
	}
	if s := (Money{Cents: 5}).String(); s != "0.05" {
		t.Fatalf("got %q", s)
	}
	if s := (Hours{Hundredths: 150}).String(); s != "1.50" {
		t.Fatalf("got %q", s)
	}
}
