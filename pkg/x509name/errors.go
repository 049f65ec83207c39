package x509name

import (
	"errors"
	"fmt"
)

// NameError represents a DN encoding or decoding error.
type NameError struct {
	Op  string // Operation: "decode", "parse", "encode"
	Err error
}

// Error implements the error interface.
func (e *NameError) Error() string {
	return fmt.Sprintf("dn %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NameError) Unwrap() error { return e.Err }

// Sentinel errors for DN operations.
var (
	// ErrUnknownAttribute indicates a short name with no registered OID.
	ErrUnknownAttribute = errors.New("unknown attribute type")

	// ErrSyntax indicates a "/type=value" string that cannot be parsed.
	ErrSyntax = errors.New("invalid DN syntax")
)
