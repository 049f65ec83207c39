// Package cades adds CMS Advanced Electronic Signature (RFC 5126)
// attributes to SignedData envelopes: signature policy identifiers,
// signature timestamps and certificate references.
package cades

import (
	"errors"
	"fmt"
)

// CAdESError represents a CAdES operation error with structured context.
type CAdESError struct {
	Op  string // Operation: "attribute", "parse", "encode", "timestamp"
	Err error
}

// Error implements the error interface.
func (e *CAdESError) Error() string {
	return fmt.Sprintf("cades %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CAdESError) Unwrap() error { return e.Err }

// NewCAdESError creates a new CAdESError.
func NewCAdESError(op string, err error) *CAdESError {
	return &CAdESError{Op: op, Err: err}
}

// Sentinel errors for CAdES operations.
var (
	// ErrSignerIndex indicates a SignerInfo index outside the signerInfos SET.
	ErrSignerIndex = errors.New("signer index out of range")

	// ErrInvalidPolicy indicates an incomplete signature policy.
	ErrInvalidPolicy = errors.New("invalid signature policy identifier")
)
