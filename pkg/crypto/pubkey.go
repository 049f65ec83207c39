package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	encasn1 "encoding/asn1"
	"fmt"

	"github.com/cloudflare/circl/sign/ed448"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// SPKI algorithm OIDs for keys the standard library does not parse.
var (
	oidEd448   = encasn1.ObjectIdentifier{1, 3, 101, 113}
	oidMLDSA44 = encasn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 17}
	oidMLDSA65 = encasn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 18}
	oidMLDSA87 = encasn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 19}
)

// ParsePublicKey decodes a DER SubjectPublicKeyInfo.
//
// RSA, EC and Ed25519 keys go through crypto/x509; Ed448 and ML-DSA keys
// are decoded from the SPKI structure directly.
func ParsePublicKey(spki []byte) (crypto.PublicKey, error) {
	if pub, err := x509.ParsePKIXPublicKey(spki); err == nil {
		return pub, nil
	}

	var (
		input  = cryptobyte.String(spki)
		seq    cryptobyte.String
		algSeq cryptobyte.String
		oid    encasn1.ObjectIdentifier
		bits   encasn1.BitString
	)
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() ||
		!seq.ReadASN1(&algSeq, cbasn1.SEQUENCE) ||
		!algSeq.ReadASN1ObjectIdentifier(&oid) ||
		!seq.ReadASN1BitString(&bits) || !seq.Empty() {
		return nil, &EngineError{Op: "parse", Err: fmt.Errorf("%w: malformed SubjectPublicKeyInfo", ErrUnsupportedKey)}
	}
	key := bits.RightAlign()

	switch {
	case oid.Equal(oidEd448):
		if len(key) != ed448.PublicKeySize {
			return nil, &EngineError{Op: "parse", Algorithm: "Ed448", Err: fmt.Errorf("%w: bad key length %d", ErrUnsupportedKey, len(key))}
		}
		return ed448.PublicKey(key), nil
	case oid.Equal(oidMLDSA44):
		var pk mldsa44.PublicKey
		if err := pk.UnmarshalBinary(key); err != nil {
			return nil, &EngineError{Op: "parse", Algorithm: "ML-DSA-44", Err: err}
		}
		return &pk, nil
	case oid.Equal(oidMLDSA65):
		var pk mldsa65.PublicKey
		if err := pk.UnmarshalBinary(key); err != nil {
			return nil, &EngineError{Op: "parse", Algorithm: "ML-DSA-65", Err: err}
		}
		return &pk, nil
	case oid.Equal(oidMLDSA87):
		var pk mldsa87.PublicKey
		if err := pk.UnmarshalBinary(key); err != nil {
			return nil, &EngineError{Op: "parse", Algorithm: "ML-DSA-87", Err: err}
		}
		return &pk, nil
	}
	return nil, &EngineError{Op: "parse", Algorithm: oid.String(), Err: ErrUnsupportedKey}
}

// MarshalPublicKey encodes a public key as a DER SubjectPublicKeyInfo.
func MarshalPublicKey(pub crypto.PublicKey) ([]byte, error) {
	var (
		oid encasn1.ObjectIdentifier
		key []byte
		err error
	)
	switch k := pub.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
		return x509.MarshalPKIXPublicKey(pub)
	case ed448.PublicKey:
		oid, key = oidEd448, k
	case *mldsa44.PublicKey:
		oid = oidMLDSA44
		key, err = k.MarshalBinary()
	case *mldsa65.PublicKey:
		oid = oidMLDSA65
		key, err = k.MarshalBinary()
	case *mldsa87.PublicKey:
		oid = oidMLDSA87
		key, err = k.MarshalBinary()
	default:
		return nil, &EngineError{Op: "marshal", Err: fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)}
	}
	if err != nil {
		return nil, &EngineError{Op: "marshal", Err: err}
	}

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oid)
		})
		b.AddASN1BitString(key)
	})
	return b.Bytes()
}
