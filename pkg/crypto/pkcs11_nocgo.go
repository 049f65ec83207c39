//go:build !cgo

package crypto

import (
	"crypto"
	"errors"
	"io"
)

var errNoCGO = errors.New("PKCS#11 support requires CGO (build with CGO_ENABLED=1)")

// PKCS11Key is unavailable without cgo.
type PKCS11Key struct{}

// OpenPKCS11Key returns an error in builds without cgo.
func OpenPKCS11Key(cfg PKCS11Config) (*PKCS11Key, error) {
	return nil, errNoCGO
}

// Public returns nil.
func (k *PKCS11Key) Public() crypto.PublicKey { return nil }

// Sign returns an error.
func (k *PKCS11Key) Sign(io.Reader, []byte, crypto.SignerOpts) ([]byte, error) {
	return nil, errNoCGO
}

// Close is a no-op.
func (k *PKCS11Key) Close() error { return nil }
