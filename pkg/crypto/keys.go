package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	encasn1 "encoding/asn1"
	"encoding/pem"
	"fmt"
	"io"
	"os"

	"github.com/cloudflare/circl/sign/ed448"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// GenerateKey creates a software key of the given type. RSA keys are 2048
// bits and EC keys use P-256.
func GenerateKey(kt KeyType) (crypto.Signer, error) {
	return GenerateKeyWithRand(rand.Reader, kt)
}

// GenerateKeyWithRand is GenerateKey with an explicit randomness source.
func GenerateKeyWithRand(random io.Reader, kt KeyType) (crypto.Signer, error) {
	var (
		key crypto.Signer
		err error
	)
	switch kt {
	case KeyRSA:
		key, err = rsa.GenerateKey(random, 2048)
	case KeyEC:
		key, err = ecdsa.GenerateKey(elliptic.P256(), random)
	case KeyEd25519:
		_, key, err = ed25519.GenerateKey(random)
	case KeyEd448:
		_, key, err = ed448.GenerateKey(random)
	case KeyMLDSA44:
		_, key, err = mldsa44.GenerateKey(random)
	case KeyMLDSA65:
		_, key, err = mldsa65.GenerateKey(random)
	case KeyMLDSA87:
		_, key, err = mldsa87.GenerateKey(random)
	default:
		return nil, &EngineError{Op: "generate", Algorithm: string(kt), Err: ErrUnsupportedKey}
	}
	if err != nil {
		return nil, &EngineError{Op: "generate", Algorithm: string(kt), Err: err}
	}
	return key, nil
}

// LoadPrivateKey reads a PEM private key file.
func LoadPrivateKey(path string) (crypto.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	key, err := ParsePrivateKeyPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return key, nil
}

// ParsePrivateKeyPEM decodes the first PEM private key block in data.
//
// Accepted blocks are PKCS#8 "PRIVATE KEY" (including Ed448), SEC1
// "EC PRIVATE KEY", PKCS#1 "RSA PRIVATE KEY" and the raw
// "ML-DSA-xx PRIVATE KEY" encodings.
func ParsePrivateKeyPEM(data []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, &EngineError{Op: "parse", Err: fmt.Errorf("no PEM block found")}
	}

	var (
		priv any
		err  error
	)
	switch block.Type {
	case "PRIVATE KEY":
		priv, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			if k, ok := parseEd448PKCS8(block.Bytes); ok {
				return k, nil
			}
			return nil, &EngineError{Op: "parse", Err: fmt.Errorf("failed to parse PKCS#8 key: %w", err)}
		}
	case "EC PRIVATE KEY":
		priv, err = x509.ParseECPrivateKey(block.Bytes)
	case "RSA PRIVATE KEY":
		priv, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "ML-DSA-44 PRIVATE KEY":
		var k mldsa44.PrivateKey
		err = k.UnmarshalBinary(block.Bytes)
		priv = &k
	case "ML-DSA-65 PRIVATE KEY":
		var k mldsa65.PrivateKey
		err = k.UnmarshalBinary(block.Bytes)
		priv = &k
	case "ML-DSA-87 PRIVATE KEY":
		var k mldsa87.PrivateKey
		err = k.UnmarshalBinary(block.Bytes)
		priv = &k
	default:
		return nil, &EngineError{Op: "parse", Err: fmt.Errorf("unknown PEM type: %s", block.Type)}
	}
	if err != nil {
		return nil, &EngineError{Op: "parse", Algorithm: block.Type, Err: err}
	}

	signer, ok := priv.(crypto.Signer)
	if !ok {
		return nil, &EngineError{Op: "parse", Err: fmt.Errorf("%w: %T", ErrUnsupportedKey, priv)}
	}
	return signer, nil
}

// MarshalPrivateKeyPEM encodes a software key as PEM. Classical keys and
// Ed448 use PKCS#8; ML-DSA keys use their raw encoding.
func MarshalPrivateKeyPEM(key crypto.Signer) ([]byte, error) {
	var block *pem.Block
	switch k := key.(type) {
	case *rsa.PrivateKey, *ecdsa.PrivateKey, ed25519.PrivateKey:
		der, err := x509.MarshalPKCS8PrivateKey(k)
		if err != nil {
			return nil, &EngineError{Op: "marshal", Err: err}
		}
		block = &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	case ed448.PrivateKey:
		der, err := marshalEd448PKCS8(k)
		if err != nil {
			return nil, &EngineError{Op: "marshal", Algorithm: "Ed448", Err: err}
		}
		block = &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	case *mldsa44.PrivateKey:
		der, err := k.MarshalBinary()
		if err != nil {
			return nil, &EngineError{Op: "marshal", Algorithm: "ML-DSA-44", Err: err}
		}
		block = &pem.Block{Type: "ML-DSA-44 PRIVATE KEY", Bytes: der}
	case *mldsa65.PrivateKey:
		der, err := k.MarshalBinary()
		if err != nil {
			return nil, &EngineError{Op: "marshal", Algorithm: "ML-DSA-65", Err: err}
		}
		block = &pem.Block{Type: "ML-DSA-65 PRIVATE KEY", Bytes: der}
	case *mldsa87.PrivateKey:
		der, err := k.MarshalBinary()
		if err != nil {
			return nil, &EngineError{Op: "marshal", Algorithm: "ML-DSA-87", Err: err}
		}
		block = &pem.Block{Type: "ML-DSA-87 PRIVATE KEY", Bytes: der}
	default:
		return nil, &EngineError{Op: "marshal", Err: fmt.Errorf("%w: %T", ErrUnsupportedKey, key)}
	}
	return pem.EncodeToMemory(block), nil
}

// parseEd448PKCS8 reads a PKCS#8 PrivateKeyInfo carrying an Ed448 seed
// (RFC 8410).
func parseEd448PKCS8(der []byte) (ed448.PrivateKey, bool) {
	var (
		input   = cryptobyte.String(der)
		seq     cryptobyte.String
		algSeq  cryptobyte.String
		version int
		oid     encasn1.ObjectIdentifier
		outer   cryptobyte.String
		seed    cryptobyte.String
	)
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) ||
		!seq.ReadASN1Integer(&version) ||
		!seq.ReadASN1(&algSeq, cbasn1.SEQUENCE) ||
		!algSeq.ReadASN1ObjectIdentifier(&oid) ||
		!oid.Equal(oidEd448) ||
		!seq.ReadASN1(&outer, cbasn1.OCTET_STRING) ||
		!outer.ReadASN1(&seed, cbasn1.OCTET_STRING) ||
		len(seed) != ed448.SeedSize {
		return nil, false
	}
	return ed448.NewKeyFromSeed(seed), true
}

func marshalEd448PKCS8(key ed448.PrivateKey) ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(0)
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oidEd448)
		})
		b.AddASN1(cbasn1.OCTET_STRING, func(b *cryptobyte.Builder) {
			b.AddASN1OctetString(key.Seed())
		})
	})
	return b.Bytes()
}
