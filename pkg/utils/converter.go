// Package utils provides small helpers shared by the REST adapter and the tests.
package utils

import "strings"

// tokenVisiblePrefix is how much of a recipient token stays readable in logs.
const tokenVisiblePrefix = 8

// MaskToken masks a recipient token for logging, keeping only its prefix.
func MaskToken(token string) string {
	if len(token) <= tokenVisiblePrefix {
		return strings.Repeat("*", len(token))
	}
	return token[:tokenVisiblePrefix] + strings.Repeat("*", len(token)-tokenVisiblePrefix)
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }
