package asn1der

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"

	"github.com/remiblancher/qasn1/pkg/tlv"
)

// String is one of the ASN.1 character string types. The content is kept
// in its wire form, so TeletexString, BMPString and UniversalString
// round-trip exactly.
type String struct {
	tag     byte
	content []byte
	cache   []byte
}

var _ Value = (*String)(nil)

// NewUTF8String returns a UTF8String. s must be valid UTF-8.
func NewUTF8String(s string) (*String, error) { return NewString(tlv.TagUTF8String, s) }

// NewPrintableString returns a PrintableString.
func NewPrintableString(s string) (*String, error) { return NewString(tlv.TagPrintableString, s) }

// NewIA5String returns an IA5String (7-bit ASCII).
func NewIA5String(s string) (*String, error) { return NewString(tlv.TagIA5String, s) }

// NewNumericString returns a NumericString (digits and space).
func NewNumericString(s string) (*String, error) { return NewString(tlv.TagNumericString, s) }

// NewVisibleString returns a VisibleString (printable ASCII).
func NewVisibleString(s string) (*String, error) { return NewString(tlv.TagVisibleString, s) }

// NewTeletexString returns a TeletexString carrying s as ISO 8859-1.
func NewTeletexString(s string) (*String, error) { return NewString(tlv.TagTeletexString, s) }

// NewBMPString returns a BMPString carrying s as UTF-16BE.
func NewBMPString(s string) (*String, error) { return NewString(tlv.TagBMPString, s) }

// NewUniversalString returns a UniversalString carrying s as UTF-32BE.
func NewUniversalString(s string) (*String, error) { return NewString(tlv.TagUniversalString, s) }

// NewString returns a character string of the given universal tag.
func NewString(tag byte, s string) (*String, error) {
	content, err := encodeString(tag, s)
	if err != nil {
		return nil, newError(StringTypeName(tag), err)
	}
	return &String{tag: tag, content: content}, nil
}

// Tag returns the string type tag.
func (s *String) Tag() byte { return s.tag }

// Text returns the decoded text.
func (s *String) Text() (string, error) { return DecodeString(s.tag, s.content) }

// Content returns the wire-form content octets.
func (s *String) Content() []byte { return s.content }

// SetText replaces the value, keeping the string type.
func (s *String) SetText(text string) error {
	content, err := encodeString(s.tag, text)
	if err != nil {
		return newError(StringTypeName(s.tag), err)
	}
	s.content = content
	s.cache = nil
	return nil
}

// Encode returns the DER encoding.
func (s *String) Encode() ([]byte, error) {
	if s.cache == nil {
		s.cache = encodeTLV(s.tag, s.content)
	}
	return s.cache, nil
}

// IsStringTag reports whether tag is one of the supported string types.
func IsStringTag(tag byte) bool {
	switch tag {
	case tlv.TagUTF8String, tlv.TagNumericString, tlv.TagPrintableString,
		tlv.TagTeletexString, tlv.TagIA5String, tlv.TagVisibleString,
		tlv.TagBMPString, tlv.TagUniversalString:
		return true
	}
	return false
}

// StringTypeName returns the ASN.1 name of a string tag.
func StringTypeName(tag byte) string {
	switch tag {
	case tlv.TagUTF8String:
		return "UTF8String"
	case tlv.TagNumericString:
		return "NumericString"
	case tlv.TagPrintableString:
		return "PrintableString"
	case tlv.TagTeletexString:
		return "TeletexString"
	case tlv.TagIA5String:
		return "IA5String"
	case tlv.TagVisibleString:
		return "VisibleString"
	case tlv.TagBMPString:
		return "BMPString"
	case tlv.TagUniversalString:
		return "UniversalString"
	}
	return fmt.Sprintf("tag 0x%02x", tag)
}

// IsPrintableString checks if a string contains only PrintableString characters.
func IsPrintableString(s string) bool {
	for _, r := range s {
		if !isPrintableChar(r) {
			return false
		}
	}
	return true
}

func isPrintableChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	switch r {
	case ' ', '\'', '(', ')', '+', ',', '-', '.', '/', ':', '=', '?':
		return true
	}
	return false
}

// IsIA5String checks if a string contains only 7-bit ASCII.
func IsIA5String(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}

func checkChars(tag byte, s string, ok func(rune) bool) error {
	for _, r := range s {
		if !ok(r) {
			return fmt.Errorf("%w: character %q not allowed in %s", ErrInvalidValue, r, StringTypeName(tag))
		}
	}
	return nil
}

func encodeString(tag byte, s string) ([]byte, error) {
	switch tag {
	case tlv.TagUTF8String:
		if !utf8.ValidString(s) {
			return nil, fmt.Errorf("%w: invalid UTF-8", ErrInvalidValue)
		}
		return []byte(s), nil
	case tlv.TagPrintableString:
		return []byte(s), checkChars(tag, s, isPrintableChar)
	case tlv.TagIA5String:
		return []byte(s), checkChars(tag, s, func(r rune) bool { return r < 0x80 })
	case tlv.TagNumericString:
		return []byte(s), checkChars(tag, s, func(r rune) bool { return r == ' ' || (r >= '0' && r <= '9') })
	case tlv.TagVisibleString:
		return []byte(s), checkChars(tag, s, func(r rune) bool { return r >= 0x20 && r <= 0x7e })
	case tlv.TagTeletexString:
		b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return b, nil
	case tlv.TagBMPString:
		for _, r := range s {
			if r > 0xffff {
				return nil, fmt.Errorf("%w: character %q outside the BMP", ErrInvalidValue, r)
			}
		}
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	case tlv.TagUniversalString:
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	}
	return nil, fmt.Errorf("%w: %s is not a string type", ErrUnsupportedType, StringTypeName(tag))
}

// DecodeString converts string content octets to text using the decoder
// matching the string type. Bytes that the type does not allow are an
// error rather than a best-effort conversion.
func DecodeString(tag byte, content []byte) (string, error) {
	switch tag {
	case tlv.TagUTF8String:
		if !utf8.Valid(content) {
			return "", fmt.Errorf("%w: invalid UTF-8 in UTF8String", ErrMalformedEncoding)
		}
		return string(content), nil
	case tlv.TagPrintableString, tlv.TagIA5String, tlv.TagNumericString, tlv.TagVisibleString:
		for _, c := range content {
			if c >= 0x80 {
				return "", fmt.Errorf("%w: non-ASCII byte in %s", ErrMalformedEncoding, StringTypeName(tag))
			}
		}
		return string(content), nil
	case tlv.TagTeletexString:
		b, err := charmap.ISO8859_1.NewDecoder().Bytes(content)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
		}
		return string(b), nil
	case tlv.TagBMPString:
		if len(content)%2 != 0 {
			return "", fmt.Errorf("%w: odd BMPString length", ErrMalformedEncoding)
		}
		b, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder().Bytes(content)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
		}
		return string(b), nil
	case tlv.TagUniversalString:
		if len(content)%4 != 0 {
			return "", fmt.Errorf("%w: UniversalString length not a multiple of 4", ErrMalformedEncoding)
		}
		b, err := utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM).NewDecoder().Bytes(content)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
		}
		return string(b), nil
	}
	return "", fmt.Errorf("%w: %s is not a string type", ErrUnsupportedType, StringTypeName(tag))
}
