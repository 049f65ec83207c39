package x509name

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/remiblancher/qasn1/pkg/asn1der"
	"github.com/remiblancher/qasn1/pkg/oid"
)

// Parse reads the "/C=US/O=a/CN=b2+OU=b1" form. Attribute types are short
// names (case-insensitive) or dotted OIDs. A backslash escapes the next
// character, so "\/" and "\+" are literal. A value of the form "#hex"
// that holds one complete TLV is kept as that encoding.
func Parse(s string) (Name, error) {
	if s == "" {
		return Name{}, nil
	}
	if s[0] != '/' {
		return nil, &NameError{Op: "parse", Err: fmt.Errorf("%w: must start with '/'", ErrSyntax)}
	}

	segments := splitUnescaped(s[1:], '/')
	name := make(Name, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			return nil, &NameError{Op: "parse", Err: fmt.Errorf("%w: empty RDN in %q", ErrSyntax, s)}
		}
		var rdn RDN
		for _, part := range splitUnescaped(seg, '+') {
			atv, err := parseATV(part)
			if err != nil {
				return nil, &NameError{Op: "parse", Err: err}
			}
			rdn = append(rdn, atv)
		}
		name = append(name, rdn)
	}
	return name, nil
}

func parseATV(part string) (AttributeTypeAndValue, error) {
	eq := strings.IndexByte(part, '=')
	if eq <= 0 {
		return AttributeTypeAndValue{}, fmt.Errorf("%w: %q is not type=value", ErrSyntax, part)
	}
	typ, raw := part[:eq], part[eq+1:]

	typeOID, ok := oid.AttributeOID(typ)
	if !ok {
		if !oid.IsDotted(typ) {
			return AttributeTypeAndValue{}, fmt.Errorf("%w: %q", ErrUnknownAttribute, typ)
		}
		typeOID = typ
	}

	if strings.HasPrefix(raw, "#") {
		if der, err := hex.DecodeString(raw[1:]); err == nil {
			if _, err := asn1der.NewRaw(der); err == nil {
				return AttributeTypeAndValue{Type: typeOID, Raw: der}, nil
			}
		}
	}
	return AttributeTypeAndValue{Type: typeOID, Value: unescape(raw)}, nil
}

// splitUnescaped splits s on sep, ignoring separators preceded by a
// backslash. Escapes are left in place for unescape.
func splitUnescaped(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// Value returns the Name as an asn1der value. Members of a multi-valued
// RDN are encoded in the order given rather than DER-sorted, so a
// decoded name re-encodes byte for byte.
func (n Name) Value() (asn1der.Value, error) {
	seq := asn1der.NewSequence()
	for _, rdn := range n {
		set := asn1der.NewSetUnsorted()
		for _, a := range rdn {
			v, err := a.value()
			if err != nil {
				return nil, &NameError{Op: "encode", Err: err}
			}
			set.Append(v)
		}
		seq.Append(set)
	}
	return seq, nil
}

// Encode returns the DER of the Name.
func (n Name) Encode() ([]byte, error) {
	v, err := n.Value()
	if err != nil {
		return nil, err
	}
	return v.Encode()
}

// EncodeString parses the slash form and returns its DER.
func EncodeString(s string) ([]byte, error) {
	n, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return n.Encode()
}

func (a AttributeTypeAndValue) value() (asn1der.Value, error) {
	typ, err := asn1der.NewObjectIdentifier(a.Type)
	if err != nil {
		return nil, err
	}
	if a.Raw != nil {
		raw, err := asn1der.NewRaw(a.Raw)
		if err != nil {
			return nil, err
		}
		return asn1der.NewSequence(typ, raw), nil
	}
	tag := a.Tag
	if tag == 0 {
		tag = defaultTag(a.Type, a.Value)
	}
	str, err := asn1der.NewString(tag, a.Value)
	if err != nil {
		return nil, err
	}
	return asn1der.NewSequence(typ, str), nil
}

// WithEncoding returns a copy of the attribute using the given string type.
func (a AttributeTypeAndValue) WithEncoding(e Encoding) (AttributeTypeAndValue, error) {
	tag, err := e.Tag()
	if err != nil {
		return a, err
	}
	if req := requiredEncoding(a.Type); req != "" && req != e {
		return a, fmt.Errorf("attribute %s requires %s encoding per RFC 5280, got %s", a.ShortType(), req, e)
	}
	a.Tag = tag
	return a, nil
}
