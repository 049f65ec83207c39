package x509cert

import (
	"errors"
	"fmt"
)

// CertError represents a certificate parsing error with structured context.
type CertError struct {
	Op    string // Operation: "parse", "extension", "verify"
	Field string // Field or extension name, when known
	Err   error
}

// Error implements the error interface.
func (e *CertError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("x509cert %s %s: %v", e.Op, e.Field, e.Err)
	}
	return fmt.Sprintf("x509cert %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CertError) Unwrap() error { return e.Err }

// Sentinel errors for certificate parsing.
var (
	// ErrMalformedCertificate indicates the buffer is not a well-formed Certificate.
	ErrMalformedCertificate = errors.New("malformed certificate")

	// ErrMalformedExtension indicates an extension value does not match its schema.
	ErrMalformedExtension = errors.New("malformed extension value")

	// ErrNoPEMCertificate indicates PEM input without a CERTIFICATE block.
	ErrNoPEMCertificate = errors.New("no CERTIFICATE PEM block found")
)

func parseErr(field string, err error) error {
	return &CertError{Op: "parse", Field: field, Err: err}
}

func malformed(field, format string, args ...any) error {
	return parseErr(field, fmt.Errorf("%w: "+format, append([]any{ErrMalformedCertificate}, args...)...))
}
