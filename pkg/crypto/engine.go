package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/ed448"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
)

// Engine signs and verifies messages by algorithm name.
//
// The message is always the full data to be signed; the engine digests it
// when the algorithm calls for a digest. Verify returns false for a
// signature that does not match and reserves the error for an algorithm
// or key it cannot handle.
type Engine interface {
	Sign(message []byte, algorithm string, key crypto.Signer) ([]byte, error)
	Verify(message, signature []byte, algorithm string, pub crypto.PublicKey) (bool, error)
}

// SoftwareEngine implements Engine over crypto.Signer keys. It works with
// in-memory keys as well as HSM-backed signers such as PKCS11Key.
type SoftwareEngine struct {
	// Rand is the randomness source; crypto/rand when nil.
	Rand io.Reader
}

var _ Engine = SoftwareEngine{}

// DefaultEngine is the engine used when callers do not supply one.
var DefaultEngine Engine = SoftwareEngine{}

func (e SoftwareEngine) rand() io.Reader {
	if e.Rand != nil {
		return e.Rand
	}
	return rand.Reader
}

// Sign signs message with key using the named algorithm.
func (e SoftwareEngine) Sign(message []byte, algorithm string, key crypto.Signer) ([]byte, error) {
	alg, err := LookupAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, &EngineError{Op: "sign", Algorithm: algorithm, Err: fmt.Errorf("%w: nil key", ErrUnsupportedKey)}
	}
	kt, err := KeyTypeOf(key.Public())
	if err != nil {
		return nil, &EngineError{Op: "sign", Algorithm: algorithm, Err: err}
	}
	if kt != alg.Key {
		return nil, &EngineError{Op: "sign", Algorithm: algorithm, Err: fmt.Errorf("%w: %s key", ErrKeyMismatch, kt)}
	}

	if alg.Pure() {
		sig, err := key.Sign(e.rand(), message, crypto.Hash(0))
		if err != nil {
			return nil, &EngineError{Op: "sign", Algorithm: algorithm, Err: err}
		}
		return sig, nil
	}

	h, err := HashFunc(alg.Hash)
	if err != nil {
		return nil, err
	}
	digest, err := Digest(alg.Hash, message)
	if err != nil {
		return nil, err
	}
	var opts crypto.SignerOpts = h
	if alg.PSS {
		opts = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: h}
	}
	sig, err := key.Sign(e.rand(), digest, opts)
	if err != nil {
		return nil, &EngineError{Op: "sign", Algorithm: algorithm, Err: err}
	}
	return sig, nil
}

// Verify checks signature over message with pub using the named algorithm.
func (e SoftwareEngine) Verify(message, signature []byte, algorithm string, pub crypto.PublicKey) (bool, error) {
	alg, err := LookupAlgorithm(algorithm)
	if err != nil {
		return false, err
	}
	mismatch := func() (bool, error) {
		return false, &EngineError{Op: "verify", Algorithm: algorithm, Err: fmt.Errorf("%w: %T", ErrKeyMismatch, pub)}
	}

	var digest []byte
	var h crypto.Hash
	if !alg.Pure() {
		if h, err = HashFunc(alg.Hash); err != nil {
			return false, err
		}
		if digest, err = Digest(alg.Hash, message); err != nil {
			return false, err
		}
	}

	switch alg.Key {
	case KeyRSA:
		pk, ok := pub.(*rsa.PublicKey)
		if !ok {
			return mismatch()
		}
		if alg.PSS {
			return rsa.VerifyPSS(pk, h, digest, signature, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: h}) == nil, nil
		}
		return rsa.VerifyPKCS1v15(pk, h, digest, signature) == nil, nil

	case KeyEC:
		pk, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return mismatch()
		}
		return ecdsa.VerifyASN1(pk, digest, signature), nil

	case KeyEd25519:
		pk, ok := pub.(ed25519.PublicKey)
		if !ok || len(pk) != ed25519.PublicKeySize {
			return mismatch()
		}
		return ed25519.Verify(pk, message, signature), nil

	case KeyEd448:
		pk, ok := pub.(ed448.PublicKey)
		if !ok || len(pk) != ed448.PublicKeySize {
			return mismatch()
		}
		return ed448.Verify(pk, message, signature, ""), nil

	case KeyMLDSA44:
		pk, ok := pub.(*mldsa44.PublicKey)
		if !ok {
			return mismatch()
		}
		return mldsa44.Verify(pk, message, nil, signature), nil

	case KeyMLDSA65:
		pk, ok := pub.(*mldsa65.PublicKey)
		if !ok {
			return mismatch()
		}
		return mldsa65.Verify(pk, message, nil, signature), nil

	case KeyMLDSA87:
		pk, ok := pub.(*mldsa87.PublicKey)
		if !ok {
			return mismatch()
		}
		return mldsa87.Verify(pk, message, nil, signature), nil
	}
	return false, &EngineError{Op: "verify", Algorithm: algorithm, Err: ErrUnsupportedAlgorithm}
}

// KeyTypeOf returns the key family of a public key.
func KeyTypeOf(pub crypto.PublicKey) (KeyType, error) {
	switch pub.(type) {
	case *rsa.PublicKey:
		return KeyRSA, nil
	case *ecdsa.PublicKey:
		return KeyEC, nil
	case ed25519.PublicKey:
		return KeyEd25519, nil
	case ed448.PublicKey:
		return KeyEd448, nil
	case *mldsa44.PublicKey:
		return KeyMLDSA44, nil
	case *mldsa65.PublicKey:
		return KeyMLDSA65, nil
	case *mldsa87.PublicKey:
		return KeyMLDSA87, nil
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)
}
