// Package id provides unique identifier generation for jobs.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// Generate creates a new unique job ID.
// Format: job-<uuid v4 without dashes>
// Example: job-9b2f6c1e0d3a4f8e9a7b5c4d3e2f1a0b
func Generate() string {
	return "job-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Valid reports whether s looks like an ID produced by Generate.
func Valid(s string) bool {
	hex, ok := strings.CutPrefix(s, "job-")
	if !ok || len(hex) != 32 {
		return false
	}
	_, err := uuid.Parse(hex)
	return err == nil
}
