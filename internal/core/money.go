// Package core provides money and hours parsing and handling utilities.
//
// Amounts are kept in integer cents and hours in integer hundredths of an
// hour so that billing sums are exact.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive cents.
// Returns an error for invalid formats, negative values, or zero amounts.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil (rounds up)
//	ParseDecimalToCents("12.344") -> 1234, nil (rounds down)
func ParseDecimalToCents(s string) (int64, error) {
	v, err := parseHundredths(s)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// ParseMoney parses a decimal amount into Money.
func ParseMoney(s string) (Money, error) {
	cents, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: cents}, nil
}

// ParseHours parses a decimal number of hours ("1.5", "2,25") into Hours.
func ParseHours(s string) (Hours, error) {
	v, err := parseHundredths(s)
	if err != nil || v <= 0 {
		return Hours{}, ErrInvalidHours
	}
	return Hours{Hundredths: v}, nil
}

// parseHundredths is the shared fixed-point parser for Money and Hours.
func parseHundredths(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				frac++
			}
		}
	}
	return iv*100 + frac, nil
}

// Add returns the sum of two amounts.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Cents == 0
}

// Units returns the amount in currency units as a float64 for display purposes.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount as a plain decimal ("1234.50").
func (m Money) String() string {
	return formatHundredths(m.Cents)
}

// Validate rejects zero and negative amounts.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Float returns the hours as a float64 for display purposes.
func (h Hours) Float() float64 {
	return float64(h.Hundredths) / 100.0
}

// String formats the hours as a plain decimal ("2.50").
func (h Hours) String() string {
	return formatHundredths(h.Hundredths)
}

// Add returns the sum of two durations.
func (h Hours) Add(o Hours) Hours {
	return Hours{Hundredths: h.Hundredths + o.Hundredths}
}

// Cost returns hours × rate, rounded half-up to the cent.
func (h Hours) Cost(rate Money) Money {
	product := h.Hundredths * rate.Cents
	return Money{Cents: (product + 50) / 100}
}

// RatePerHour divides an amount by a number of hours, rounded half-up.
// Zero hours yield a zero rate.
func RatePerHour(total Money, hours Hours) Money {
	if hours.Hundredths <= 0 {
		return Money{}
	}
	num := total.Cents * 100
	return Money{Cents: (num + hours.Hundredths/2) / hours.Hundredths}
}

func formatHundredths(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%d.%02d", v/100, v%100)
	if neg {
		return "-" + s
	}
	return s
}
