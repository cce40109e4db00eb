package core

import (
	"errors"
	"testing"
)

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		ok  bool
	}{
		{"1", 1, true},
		{"1000.00", 1000, true},
		{"0.05", 0.05, true},
		{"0,04", 0.04, true},
		{" 2.50 ", 2.5, true},
		{".5", 0.5, true},
		{"0", 0, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"1e3", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1,000.00", 0, false},
		{".", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimal(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %v", tc.in, got)
		}
	}
}

func TestParseAmountRejectsZero(t *testing.T) {
	if _, err := ParseAmount("0"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if v, err := ParseAmount("1000"); err != nil || v != 1000 {
		t.Fatalf("expected 1000, got %v (err=%v)", v, err)
	}
}

func TestParseRate(t *testing.T) {
	if v, err := ParseRate("0"); err != nil || v != 0 {
		t.Fatalf("zero rate should be accepted, got %v (err=%v)", v, err)
	}
	if _, err := ParseRate("x"); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
}
