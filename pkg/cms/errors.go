// Package cms builds and parses CMS SignedData envelopes (RFC 5652).
package cms

import (
	"errors"
	"fmt"
)

// CMSError represents a CMS operation error with structured context.
// It supports errors.Is() and errors.As() for improved error handling.
type CMSError struct {
	Op  string // Operation: "sign", "verify", "encode", "parse", "locate"
	Err error  // Underlying error
}

// Error implements the error interface.
func (e *CMSError) Error() string {
	return fmt.Sprintf("cms %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CMSError) Unwrap() error { return e.Err }

// NewCMSError creates a new CMSError with the given operation and error.
func NewCMSError(op string, err error) *CMSError {
	return &CMSError{Op: op, Err: err}
}

// Sentinel errors for CMS operations.
// Use errors.Is() to check for these errors through the error chain.
var (
	// ErrNotSignedData indicates a ContentInfo whose content type is not signedData.
	ErrNotSignedData = errors.New("not a SignedData structure")

	// ErrNoCertificate indicates no certificate matched a signer identifier.
	ErrNoCertificate = errors.New("no certificate found")

	// ErrInvalidContent indicates the CMS content is malformed.
	ErrInvalidContent = errors.New("invalid CMS content")

	// ErrNoSigner indicates no signer information was found.
	ErrNoSigner = errors.New("no signer information")

	// ErrMissingAttribute indicates a required signed attribute is missing.
	ErrMissingAttribute = errors.New("missing signed attribute")

	// ErrAlreadySigned indicates Sign was called twice on one SignerInfo.
	ErrAlreadySigned = errors.New("signer info already signed")

	// ErrDetachedContent indicates a detached envelope was verified without
	// the external content.
	ErrDetachedContent = errors.New("detached content not supplied")
)
