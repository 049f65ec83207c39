// Package crypto is the signature engine: it maps algorithm names such as
// "SHA256withECDSA" to digest and signing operations over crypto.Signer
// keys. Classical algorithms use the standard library; Ed448 and ML-DSA
// come from cloudflare/circl.
package crypto

import (
	"crypto"
	"crypto/sha1" //nolint:gosec // SHA-1 is still found in legacy CMS and certificates
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"sort"

	"golang.org/x/crypto/sha3"
)

// KeyType identifies a public key family.
type KeyType string

// Supported key types.
const (
	KeyRSA     KeyType = "RSA"
	KeyEC      KeyType = "EC"
	KeyEd25519 KeyType = "Ed25519"
	KeyEd448   KeyType = "Ed448"
	KeyMLDSA44 KeyType = "ML-DSA-44"
	KeyMLDSA65 KeyType = "ML-DSA-65"
	KeyMLDSA87 KeyType = "ML-DSA-87"
)

// Algorithm describes one signature algorithm.
type Algorithm struct {
	Name string  // e.g. "SHA256withECDSA"
	OID  string  // signatureAlgorithm OID
	Hash string  // digest name; empty for schemes that sign the message itself
	Key  KeyType // key family the algorithm needs
	PSS  bool    // RSASSA-PSS with MGF1 over Hash
}

// Pure reports whether the scheme signs the message without pre-hashing.
func (a Algorithm) Pure() bool { return a.Hash == "" }

var algorithms = map[string]Algorithm{}

func init() {
	for _, a := range []Algorithm{
		{"SHA1withRSA", "1.2.840.113549.1.1.5", "sha1", KeyRSA, false},
		{"SHA224withRSA", "1.2.840.113549.1.1.14", "sha224", KeyRSA, false},
		{"SHA256withRSA", "1.2.840.113549.1.1.11", "sha256", KeyRSA, false},
		{"SHA384withRSA", "1.2.840.113549.1.1.12", "sha384", KeyRSA, false},
		{"SHA512withRSA", "1.2.840.113549.1.1.13", "sha512", KeyRSA, false},
		{"SHA256withRSAandMGF1", "1.2.840.113549.1.1.10", "sha256", KeyRSA, true},
		{"SHA384withRSAandMGF1", "1.2.840.113549.1.1.10", "sha384", KeyRSA, true},
		{"SHA512withRSAandMGF1", "1.2.840.113549.1.1.10", "sha512", KeyRSA, true},
		{"SHA1withECDSA", "1.2.840.10045.4.1", "sha1", KeyEC, false},
		{"SHA224withECDSA", "1.2.840.10045.4.3.1", "sha224", KeyEC, false},
		{"SHA256withECDSA", "1.2.840.10045.4.3.2", "sha256", KeyEC, false},
		{"SHA384withECDSA", "1.2.840.10045.4.3.3", "sha384", KeyEC, false},
		{"SHA512withECDSA", "1.2.840.10045.4.3.4", "sha512", KeyEC, false},
		{"Ed25519", "1.3.101.112", "", KeyEd25519, false},
		{"Ed448", "1.3.101.113", "", KeyEd448, false},
		{"ML-DSA-44", "2.16.840.1.101.3.4.3.17", "", KeyMLDSA44, false},
		{"ML-DSA-65", "2.16.840.1.101.3.4.3.18", "", KeyMLDSA65, false},
		{"ML-DSA-87", "2.16.840.1.101.3.4.3.19", "", KeyMLDSA87, false},
	} {
		algorithms[a.Name] = a
	}
}

// LookupAlgorithm returns the algorithm registered under name.
func LookupAlgorithm(name string) (Algorithm, error) {
	a, ok := algorithms[name]
	if !ok {
		return Algorithm{}, &EngineError{Op: "lookup", Algorithm: name, Err: ErrUnsupportedAlgorithm}
	}
	return a, nil
}

// AlgorithmByOID returns the algorithm for a signatureAlgorithm OID. For
// RSASSA-PSS, whose OID does not name the hash, hashName selects the
// variant and defaults to sha256.
func AlgorithmByOID(oid, hashName string) (Algorithm, error) {
	if oid == "1.2.840.113549.1.1.10" {
		if hashName == "" {
			hashName = "sha256"
		}
		for _, a := range algorithms {
			if a.PSS && a.Hash == hashName {
				return a, nil
			}
		}
		return Algorithm{}, &EngineError{Op: "lookup", Algorithm: "RSASSA-PSS with " + hashName, Err: ErrUnsupportedAlgorithm}
	}
	for _, a := range algorithms {
		if a.OID == oid && !a.PSS {
			return a, nil
		}
	}
	return Algorithm{}, &EngineError{Op: "lookup", Algorithm: oid, Err: ErrUnsupportedAlgorithm}
}

// AlgorithmNames returns every supported signature algorithm name, sorted.
func AlgorithmNames() []string {
	out := make([]string, 0, len(algorithms))
	for n := range algorithms {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// hashes maps digest names to their crypto.Hash.
var hashes = map[string]crypto.Hash{
	"sha1":     crypto.SHA1,
	"sha224":   crypto.SHA224,
	"sha256":   crypto.SHA256,
	"sha384":   crypto.SHA384,
	"sha512":   crypto.SHA512,
	"sha3-256": crypto.SHA3_256,
	"sha3-384": crypto.SHA3_384,
	"sha3-512": crypto.SHA3_512,
}

// HashFunc returns the crypto.Hash for a digest name.
func HashFunc(name string) (crypto.Hash, error) {
	h, ok := hashes[name]
	if !ok {
		return 0, &EngineError{Op: "hash", Algorithm: name, Err: ErrUnsupportedAlgorithm}
	}
	return h, nil
}

// NewHash returns a fresh hash.Hash for a digest name.
func NewHash(name string) (hash.Hash, error) {
	switch name {
	case "sha1":
		return sha1.New(), nil //nolint:gosec
	case "sha224":
		return sha256.New224(), nil
	case "sha256":
		return sha256.New(), nil
	case "sha384":
		return sha512.New384(), nil
	case "sha512":
		return sha512.New(), nil
	case "sha3-256":
		return sha3.New256(), nil
	case "sha3-384":
		return sha3.New384(), nil
	case "sha3-512":
		return sha3.New512(), nil
	}
	return nil, &EngineError{Op: "hash", Algorithm: name, Err: ErrUnsupportedAlgorithm}
}

// Digest hashes data with the named digest.
func Digest(name string, data []byte) ([]byte, error) {
	h, err := NewHash(name)
	if err != nil {
		return nil, err
	}
	_, _ = h.Write(data)
	return h.Sum(nil), nil
}

// DigestNames returns the supported digest names, sorted.
func DigestNames() []string {
	out := make([]string, 0, len(hashes))
	for n := range hashes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// DefaultSignatureAlgorithm picks the signature algorithm for a public key
// and digest name: "SHA256withECDSA" for an EC key and "sha256", the pure
// scheme name for EdDSA and ML-DSA keys.
func DefaultSignatureAlgorithm(pub crypto.PublicKey, hashName string) (string, error) {
	kt, err := KeyTypeOf(pub)
	if err != nil {
		return "", err
	}
	switch kt {
	case KeyRSA, KeyEC:
		for _, a := range algorithms {
			if a.Key == kt && a.Hash == hashName && !a.PSS {
				return a.Name, nil
			}
		}
		return "", &EngineError{Op: "lookup", Algorithm: fmt.Sprintf("%s with %s", hashName, kt), Err: ErrUnsupportedAlgorithm}
	}
	return string(kt), nil
}
