package asn1der

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/remiblancher/qasn1/pkg/oid"
	"github.com/remiblancher/qasn1/pkg/tlv"
)

// ObjectIdentifier is an ASN.1 OBJECT IDENTIFIER. Arcs may be arbitrarily
// large.
type ObjectIdentifier struct {
	dotted string
	cache  []byte
}

var _ Value = (*ObjectIdentifier)(nil)

// NewObjectIdentifier returns an OID from its dotted form ("2.5.4.13").
func NewObjectIdentifier(dotted string) (*ObjectIdentifier, error) {
	content, err := oidContent(dotted)
	if err != nil {
		return nil, newError("oid", err)
	}
	return &ObjectIdentifier{dotted: dotted, cache: encodeTLV(tlv.TagOID, content)}, nil
}

// NewObjectIdentifierName returns an OID from a registered name such as
// "sha256" or "keyUsage". A dotted string is accepted as well.
func NewObjectIdentifierName(name string) (*ObjectIdentifier, error) {
	dotted, ok := oid.Resolve(name)
	if !ok {
		return nil, newError("oid", fmt.Errorf("%w: unknown OID name %q", ErrUnsupportedType, name))
	}
	return NewObjectIdentifier(dotted)
}

// MustOID returns the OID for a dotted string or registered name and
// panics on error. It is meant for constants.
func MustOID(nameOrDotted string) *ObjectIdentifier {
	o, err := NewObjectIdentifierName(nameOrDotted)
	if err != nil {
		panic(err)
	}
	return o
}

// Tag returns 0x06.
func (o *ObjectIdentifier) Tag() byte { return tlv.TagOID }

// String returns the dotted form.
func (o *ObjectIdentifier) String() string { return o.dotted }

// Name returns the registered name, or the dotted form when unknown.
func (o *ObjectIdentifier) Name() string { return oid.NameOrOID(o.dotted) }

// Encode returns the DER encoding.
func (o *ObjectIdentifier) Encode() ([]byte, error) {
	if o.cache == nil {
		content, err := oidContent(o.dotted)
		if err != nil {
			return nil, newError("oid", err)
		}
		o.cache = encodeTLV(tlv.TagOID, content)
	}
	return o.cache, nil
}

func oidContent(dotted string) ([]byte, error) {
	parts := strings.Split(dotted, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: OID %q needs at least two arcs", ErrInvalidValue, dotted)
	}
	arcs := make([]*big.Int, len(parts))
	for i, p := range parts {
		v, ok := new(big.Int).SetString(p, 10)
		if !ok || v.Sign() < 0 || (len(p) > 1 && p[0] == '0') {
			return nil, fmt.Errorf("%w: bad OID arc %q in %q", ErrInvalidValue, p, dotted)
		}
		arcs[i] = v
	}
	if arcs[0].Cmp(big.NewInt(2)) > 0 {
		return nil, fmt.Errorf("%w: first OID arc must be 0, 1 or 2", ErrInvalidValue)
	}
	if arcs[0].Cmp(big.NewInt(2)) < 0 && arcs[1].Cmp(big.NewInt(40)) >= 0 {
		return nil, fmt.Errorf("%w: second OID arc must be below 40", ErrInvalidValue)
	}

	first := new(big.Int).Mul(arcs[0], big.NewInt(40))
	first.Add(first, arcs[1])
	out := appendBase128(nil, first)
	for _, a := range arcs[2:] {
		out = appendBase128(out, a)
	}
	return out, nil
}

// appendBase128 writes v as big-endian base-128 with the continuation bit
// on every byte but the last.
func appendBase128(out []byte, v *big.Int) []byte {
	if v.Sign() == 0 {
		return append(out, 0x00)
	}
	var groups []byte
	n := new(big.Int).Set(v)
	mask := big.NewInt(0x7f)
	for n.Sign() > 0 {
		groups = append(groups, byte(new(big.Int).And(n, mask).Uint64()))
		n.Rsh(n, 7)
	}
	for i := len(groups) - 1; i >= 0; i-- {
		b := groups[i]
		if i > 0 {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

// DecodeOIDContent converts OID content octets to the dotted form.
func DecodeOIDContent(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("%w: empty OID", ErrMalformedEncoding)
	}
	var sb strings.Builder
	v := new(big.Int)
	first := true
	for i, c := range content {
		if v.Sign() == 0 && c == 0x80 {
			return "", fmt.Errorf("%w: non-minimal OID arc", ErrMalformedEncoding)
		}
		v.Lsh(v, 7)
		v.Or(v, big.NewInt(int64(c&0x7f)))
		if c&0x80 != 0 {
			if i == len(content)-1 {
				return "", fmt.Errorf("%w: truncated OID arc", ErrMalformedEncoding)
			}
			continue
		}
		if first {
			first = false
			switch {
			case v.Cmp(big.NewInt(40)) < 0:
				sb.WriteString("0." + v.String())
			case v.Cmp(big.NewInt(80)) < 0:
				sb.WriteString("1." + new(big.Int).Sub(v, big.NewInt(40)).String())
			default:
				sb.WriteString("2." + new(big.Int).Sub(v, big.NewInt(80)).String())
			}
		} else {
			sb.WriteString("." + v.String())
		}
		v = new(big.Int)
	}
	return sb.String(), nil
}
