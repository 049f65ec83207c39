package crypto

import (
	"fmt"

	"github.com/remiblancher/qasn1/pkg/asn1der"
	"github.com/remiblancher/qasn1/pkg/oid"
	"github.com/remiblancher/qasn1/pkg/tlv"
)

const oidRSAPSS = "1.2.840.113549.1.1.10"

// AlgorithmIdentifier is a decoded AlgorithmIdentifier. Params holds the
// parameters TLV, or nil when the field is absent.
type AlgorithmIdentifier struct {
	OID    string
	Params []byte
}

// ParseAlgorithmIdentifier decodes the AlgorithmIdentifier SEQUENCE at off.
func ParseAlgorithmIdentifier(der []byte, off int) (AlgorithmIdentifier, error) {
	info, err := tlv.Header(der, off)
	if err != nil {
		return AlgorithmIdentifier{}, err
	}
	if info.Tag != tlv.TagSequence {
		return AlgorithmIdentifier{}, fmt.Errorf("%w: AlgorithmIdentifier must be a SEQUENCE", asn1der.ErrMalformedEncoding)
	}
	kids, err := tlv.Children(der, off)
	if err != nil {
		return AlgorithmIdentifier{}, err
	}
	if len(kids) == 0 || len(kids) > 2 || der[kids[0]] != tlv.TagOID {
		return AlgorithmIdentifier{}, fmt.Errorf("%w: bad AlgorithmIdentifier", asn1der.ErrMalformedEncoding)
	}
	content, err := tlv.Value(der, kids[0])
	if err != nil {
		return AlgorithmIdentifier{}, err
	}
	dotted, err := asn1der.DecodeOIDContent(content)
	if err != nil {
		return AlgorithmIdentifier{}, err
	}
	a := AlgorithmIdentifier{OID: dotted}
	if len(kids) == 2 {
		if a.Params, err = tlv.TLV(der, kids[1]); err != nil {
			return AlgorithmIdentifier{}, err
		}
	}
	return a, nil
}

// HashName returns the digest name for a digest AlgorithmIdentifier.
func (a AlgorithmIdentifier) HashName() (string, error) {
	return HashNameFromOID(a.OID)
}

// SignatureAlgorithm resolves a signatureAlgorithm identifier, reading the
// hash from RSASSA-PSS parameters when present.
func (a AlgorithmIdentifier) SignatureAlgorithm() (Algorithm, error) {
	hashName := ""
	if a.OID == oidRSAPSS {
		hashName = "sha1" // RFC 4055 default
		if len(a.Params) > 0 {
			if h, ok := pssHash(a.Params); ok {
				hashName = h
			}
		}
	}
	return AlgorithmByOID(a.OID, hashName)
}

// Name returns the signature algorithm name, falling back to the
// registered OID name or the dotted OID.
func (a AlgorithmIdentifier) Name() string {
	if alg, err := a.SignatureAlgorithm(); err == nil {
		return alg.Name
	}
	return oid.NameOrOID(a.OID)
}

// pssHash extracts hashAlgorithm [0] from RSASSA-PSS-params.
func pssHash(params []byte) (string, bool) {
	kids, err := tlv.Children(params, 0)
	if err != nil {
		return "", false
	}
	for _, k := range kids {
		if params[k] != tlv.ClassContext|tlv.Constructed|0 {
			continue
		}
		inner, err := tlv.Child(params, k, 0)
		if err != nil {
			return "", false
		}
		h, err := ParseAlgorithmIdentifier(params, inner)
		if err != nil {
			return "", false
		}
		name, err := h.HashName()
		return name, err == nil
	}
	return "", false
}

// HashNameFromOID maps a digest algorithm OID to its digest name.
func HashNameFromOID(dotted string) (string, error) {
	if n, ok := oid.Name(dotted); ok {
		if _, ok := hashes[n]; ok {
			return n, nil
		}
	}
	return "", &EngineError{Op: "hash", Algorithm: dotted, Err: ErrUnsupportedAlgorithm}
}

// DigestAlgorithmIdentifier builds the AlgorithmIdentifier for a digest
// name. SHA-1 and SHA-2 carry NULL parameters; SHA-3 omits them.
func DigestAlgorithmIdentifier(hashName string) (*asn1der.Sequence, error) {
	if _, ok := hashes[hashName]; !ok {
		return nil, &EngineError{Op: "hash", Algorithm: hashName, Err: ErrUnsupportedAlgorithm}
	}
	dotted, _ := oid.FromName(hashName)
	o, err := asn1der.NewObjectIdentifier(dotted)
	if err != nil {
		return nil, err
	}
	if len(hashName) > 4 && hashName[:4] == "sha3" {
		return asn1der.NewSequence(o), nil
	}
	return asn1der.NewSequence(o, asn1der.NewNull()), nil
}

// SignatureAlgorithmIdentifier builds the AlgorithmIdentifier for a
// signature algorithm name. PKCS#1 v1.5 carries NULL parameters,
// RSASSA-PSS carries RSASSA-PSS-params, and ECDSA, EdDSA and ML-DSA omit
// parameters.
func SignatureAlgorithmIdentifier(name string) (*asn1der.Sequence, error) {
	alg, err := LookupAlgorithm(name)
	if err != nil {
		return nil, err
	}
	o, err := asn1der.NewObjectIdentifier(alg.OID)
	if err != nil {
		return nil, err
	}

	switch {
	case alg.PSS:
		hashAlg, err := DigestAlgorithmIdentifier(alg.Hash)
		if err != nil {
			return nil, err
		}
		h, _ := HashFunc(alg.Hash)
		mgf := asn1der.NewSequence(asn1der.MustOID("mgf1"), hashAlg)
		params := asn1der.NewSequence(
			asn1der.MustExplicit(0, hashAlg),
			asn1der.MustExplicit(1, mgf),
			asn1der.MustExplicit(2, asn1der.NewInteger(int64(h.Size()))),
		)
		return asn1der.NewSequence(o, params), nil
	case alg.Key == KeyRSA:
		return asn1der.NewSequence(o, asn1der.NewNull()), nil
	}
	return asn1der.NewSequence(o), nil
}
