package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-09")
	if err != nil {
		t.Fatal(err)
	}
	if d.String() != "2025-03-09" {
		t.Fatalf("got %s", d)
	}
	d, err = ParseDate("2025-03-09T10:11:12Z")
	if err != nil || d.String() != "2025-03-09" {
		t.Fatalf("timestamp not truncated: %v %v", d, err)
	}
	if _, err := ParseDate("09/03/2025"); err == nil {
		t.Fatal("expected error for foreign layout")
	}
}

func TestDateWindow(t *testing.T) {
	today := NewDate(2025, 1, 30)
	week := today.AddDays(7)
	if week.String() != "2025-02-06" {
		t.Fatalf("AddDays crossed month wrong: %s", week)
	}
	if !today.Between(today, week) || !week.Between(today, week) {
		t.Fatal("window bounds must be inclusive")
	}
	if today.AddDays(-1).Between(today, week) {
		t.Fatal("yesterday is outside the window")
	}
	if today.DaysUntil(week) != 7 {
		t.Fatalf("DaysUntil = %d", today.DaysUntil(week))
	}
	if !today.SameMonth(NewDate(2025, 1, 1)) || today.SameMonth(week) {
		t.Fatal("SameMonth mismatch")
	}
}

func TestDateOf(t *testing.T) {
	ts := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	if DateOf(ts).String() != "2025-06-01" {
		t.Fatalf("got %s", DateOf(ts))
	}
}

func TestDateJSON(t *testing.T) {
	var payload struct {
		Due  *Date `json:"due"`
		Zero Date  `json:"zero"`
	}
	if err := json.Unmarshal([]byte(`{"due":"2025-04-01","zero":null}`), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Due == nil || payload.Due.String() != "2025-04-01" {
		t.Fatalf("due not parsed: %v", payload.Due)
	}
	if !payload.Zero.IsZero() {
		t.Fatal("null should yield zero date")
	}
	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"due":"2025-04-01","zero":null}` {
		t.Fatalf("unexpected json %s", out)
	}
}
