// Package x509name converts X.509 distinguished names between their DER
// form and the "/C=US/O=Example/CN=host" string form.
//
// Multi-valued RDNs are joined with "+" inside one path segment. Their
// members keep encounter order in both directions, so decoding and
// re-encoding a name yields the same bytes.
package x509name

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/remiblancher/qasn1/pkg/asn1der"
	"github.com/remiblancher/qasn1/pkg/oid"
	"github.com/remiblancher/qasn1/pkg/tlv"
)

// AttributeTypeAndValue is one DN component.
type AttributeTypeAndValue struct {
	Type  string // dotted OID
	Tag   byte   // universal string tag; 0 means chosen at encode time
	Value string
	// Raw holds the value TLV when it is not a character string.
	Raw []byte
}

// RDN is one relative distinguished name. Members are in encounter order.
type RDN []AttributeTypeAndValue

// Name is an RDNSequence.
type Name []RDN

// Decode parses the DER of a Name (a SEQUENCE OF SET OF
// AttributeTypeAndValue).
func Decode(der []byte) (Name, error) {
	info, err := tlv.Header(der, 0)
	if err != nil {
		return nil, &NameError{Op: "decode", Err: err}
	}
	if info.End() != len(der) {
		return nil, &NameError{Op: "decode", Err: fmt.Errorf("%w: %d trailing bytes after Name", asn1der.ErrMalformedEncoding, len(der)-info.End())}
	}
	return decodeAt(der, 0)
}

// DecodeHex decodes a hex Name and returns its "/type=value" form.
func DecodeHex(h string) (string, error) {
	der, err := hex.DecodeString(h)
	if err != nil {
		return "", &NameError{Op: "decode", Err: fmt.Errorf("%w: bad hex", asn1der.ErrMalformedEncoding)}
	}
	n, err := Decode(der)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}

// DecodeAt decodes the Name TLV found at off in der.
func DecodeAt(der []byte, off int) (Name, error) {
	return decodeAt(der, off)
}

func decodeAt(der []byte, off int) (Name, error) {
	if off < 0 || off >= len(der) {
		return nil, &NameError{Op: "decode", Err: fmt.Errorf("%w: offset %d out of range", asn1der.ErrMalformedEncoding, off)}
	}
	if der[off] != tlv.TagSequence {
		return nil, &NameError{Op: "decode", Err: fmt.Errorf("%w: Name must be a SEQUENCE, got 0x%02x", asn1der.ErrMalformedEncoding, der[off])}
	}
	rdnOffs, err := tlv.Children(der, off)
	if err != nil {
		return nil, &NameError{Op: "decode", Err: err}
	}
	name := make(Name, 0, len(rdnOffs))
	for _, ro := range rdnOffs {
		if der[ro] != tlv.TagSet {
			return nil, &NameError{Op: "decode", Err: fmt.Errorf("%w: RDN must be a SET", asn1der.ErrMalformedEncoding)}
		}
		atvOffs, err := tlv.Children(der, ro)
		if err != nil {
			return nil, &NameError{Op: "decode", Err: err}
		}
		rdn := make(RDN, 0, len(atvOffs))
		for _, ao := range atvOffs {
			atv, err := decodeATV(der, ao)
			if err != nil {
				return nil, &NameError{Op: "decode", Err: err}
			}
			rdn = append(rdn, atv)
		}
		name = append(name, rdn)
	}
	return name, nil
}

func decodeATV(der []byte, off int) (AttributeTypeAndValue, error) {
	parts, err := tlv.Children(der, off)
	if err != nil {
		return AttributeTypeAndValue{}, err
	}
	if len(parts) != 2 || der[parts[0]] != tlv.TagOID {
		return AttributeTypeAndValue{}, fmt.Errorf("%w: AttributeTypeAndValue needs OID and value", asn1der.ErrMalformedEncoding)
	}
	oidContent, _ := tlv.Value(der, parts[0])
	typ, err := asn1der.DecodeOIDContent(oidContent)
	if err != nil {
		return AttributeTypeAndValue{}, err
	}

	tag := der[parts[1]]
	if !asn1der.IsStringTag(tag) {
		raw, _ := tlv.TLV(der, parts[1])
		return AttributeTypeAndValue{Type: typ, Raw: append([]byte{}, raw...)}, nil
	}
	content, _ := tlv.Value(der, parts[1])
	text, err := asn1der.DecodeString(tag, content)
	if err != nil {
		return AttributeTypeAndValue{}, err
	}
	return AttributeTypeAndValue{Type: typ, Tag: tag, Value: text}, nil
}

// ShortType returns the short name of the attribute type, or the dotted
// OID when the type is not registered.
func (a AttributeTypeAndValue) ShortType() string {
	if n, ok := oid.AttributeShortName(a.Type); ok {
		return n
	}
	return a.Type
}

// String returns "type=value". Values that are not character strings
// are shown as "#" followed by the hex of their encoding.
func (a AttributeTypeAndValue) String() string {
	if a.Raw != nil {
		return a.ShortType() + "=#" + hex.EncodeToString(a.Raw)
	}
	return a.ShortType() + "=" + escape(a.Value)
}

// String returns the members joined with "+".
func (r RDN) String() string {
	parts := make([]string, len(r))
	for i, a := range r {
		parts[i] = a.String()
	}
	return strings.Join(parts, "+")
}

// String returns "/type=value/type=value...".
func (n Name) String() string {
	var sb strings.Builder
	for _, rdn := range n {
		sb.WriteByte('/')
		sb.WriteString(rdn.String())
	}
	return sb.String()
}

// Get returns the first value of the attribute with the given short name
// or dotted OID.
func (n Name) Get(typ string) (string, bool) {
	want := typ
	if o, ok := oid.AttributeOID(typ); ok {
		want = o
	}
	for _, rdn := range n {
		for _, a := range rdn {
			if a.Type == want && a.Raw == nil {
				return a.Value, true
			}
		}
	}
	return "", false
}

// escape protects the separators of the slash form.
func escape(s string) string {
	if !strings.ContainsAny(s, `/+\`) {
		return s
	}
	var sb strings.Builder
	for _, r := range s {
		if r == '/' || r == '+' || r == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
