// Package runid wraps google/uuid for run and report identifiers.
//
// The core never mints its own identifiers: every ID here is parsed or
// validated from a caller-supplied string. No package in this module
// generates fresh IDs; callers supply them.
package runid

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a validated run/report identifier.
type ID struct {
	value uuid.UUID
}

// Parse validates s as a UUID and returns the wrapped ID. It never
// generates a new value: an invalid or empty string is always an error.
func Parse(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("runid: invalid id %q: %w", s, err)
	}
	return ID{value: u}, nil
}

// String renders the canonical hyphenated form.
func (id ID) String() string {
	return id.value.String()
}

// IsZero reports whether id is the zero value (never parsed).
func (id ID) IsZero() bool {
	return id.value == uuid.Nil
}
