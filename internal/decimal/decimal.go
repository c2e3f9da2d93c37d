// SPDX-License-Identifier: MIT

// Package decimal is the single serialization boundary for numeric fields
// that cross into storage or onto the wire. Everything money-shaped passes
// through here exactly once; no call site formats floats on its own.
package decimal

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Exact converts a binary float to its exact shortest decimal representation.
// The result is a plain decimal string ("42.37"), never scientific notation.
func Exact(f float64) string {
	return decimal.NewFromFloat(f).String()
}

// ExactFixed converts a float to a decimal string with exactly places
// fractional digits, rounding half away from zero. Used where the storage
// schema pins a scale (e.g. KRW amounts at 0, crypto quantities at 8).
func ExactFixed(f float64, places int32) string {
	return decimal.NewFromFloat(f).StringFixed(places)
}

// Parse validates that s is a well-formed decimal string and returns its
// canonical form. Rejects NaN/Inf-style garbage before it reaches storage.
func Parse(s string) (string, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d.String(), nil
}

// Add returns the exact sum of two decimal strings.
func Add(a, b string) (string, error) {
	da, err := decimal.NewFromString(a)
	if err != nil {
		return "", fmt.Errorf("invalid decimal %q: %w", a, err)
	}
	db, err := decimal.NewFromString(b)
	if err != nil {
		return "", fmt.Errorf("invalid decimal %q: %w", b, err)
	}
	return da.Add(db).String(), nil
}
