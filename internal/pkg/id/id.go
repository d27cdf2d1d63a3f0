package id

import (
	"github.com/oklog/ulid/v2"
)

// New returns a ULID. ULIDs sort by creation time, which keeps audit records
// and appointments naturally ordered as DynamoDB keys.
func New() string {
	return ulid.Make().String()
}

// Valid reports whether s is a well-formed ULID.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
