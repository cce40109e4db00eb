// Package core provides the ledger domain model shared by every layer.
//
// This file contains the parsing of monetary amounts and rates received as
// text at the boundaries (HTTP forms, AMQP payloads, CSV seed rows).
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseDecimal converts a decimal string to a float64.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, and
// rejects signs, exponents, thousands separators and empty input. No rounding
// is applied; presentation layers round for display.
//
// Examples:
//   ParseDecimal("1000")   -> 1000, nil
//   ParseDecimal("0,05")   -> 0.05, nil
//   ParseDecimal("-1")     -> 0, ErrInvalidAmount
func ParseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	if s == "." {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// ParseAmount parses a strictly positive transaction amount.
func ParseAmount(s string) (float64, error) {
	v, err := ParseDecimal(s)
	if err != nil || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// ParseRate parses a non-negative revenue-per-unit rate.
func ParseRate(s string) (float64, error) {
	v, err := ParseDecimal(s)
	if err != nil {
		return 0, ErrInvalidRate
	}
	return v, nil
}
