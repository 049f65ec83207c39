package asn1der

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/remiblancher/qasn1/pkg/tlv"
)

// BitString is an ASN.1 BIT STRING: an unused-bit count (0-7) and the
// payload bytes, or the encoding of an inner value with no unused bits.
type BitString struct {
	unused int
	data   []byte
	inner  Value
	cache  []byte
}

var _ Value = (*BitString)(nil)

// NewBitString returns a BIT STRING from an unused-bit count and payload.
func NewBitString(unused int, data []byte) (*BitString, error) {
	if err := checkUnused(unused, len(data)); err != nil {
		return nil, newError("bit string", err)
	}
	return &BitString{unused: unused, data: append([]byte{}, data...)}, nil
}

// NewBitStringHex returns a BIT STRING from its content hex, the first
// byte being the unused-bit count ("04b0" is 4 unused bits, payload b0).
func NewBitStringHex(s string) (*BitString, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) == 0 {
		return nil, newError("bit string", ErrInvalidValue)
	}
	return NewBitString(int(b[0]), b[1:])
}

// NewBitStringFromBinary returns a BIT STRING from a string of '0' and
// '1' digits. Trailing zero digits are dropped first, so "01011000"
// and "01011" give the same value.
func NewBitStringFromBinary(bin string) (*BitString, error) {
	bits := make([]bool, len(bin))
	for i, c := range bin {
		switch c {
		case '0':
		case '1':
			bits[i] = true
		default:
			return nil, newError("bit string", fmt.Errorf("%w: %q is not a binary digit", ErrInvalidValue, c))
		}
	}
	return NewBitStringFromBools(bits), nil
}

// NewBitStringFromBools returns a BIT STRING where entry i is bit i.
// Trailing false entries are dropped first.
func NewBitStringFromBools(bits []bool) *BitString {
	n := len(bits)
	for n > 0 && !bits[n-1] {
		n--
	}
	data := make([]byte, (n+7)/8)
	for i := 0; i < n; i++ {
		if bits[i] {
			data[i/8] |= 0x80 >> uint(i%8)
		}
	}
	unused := 0
	if n%8 != 0 {
		unused = 8 - n%8
	}
	return &BitString{unused: unused, data: data}
}

// NewFalseBools returns n false entries, for building named-bit lists.
func NewFalseBools(n int) []bool { return make([]bool, n) }

// NewBitStringEncapsulating returns a BIT STRING whose payload is the
// encoding of inner, as used for subjectPublicKey.
func NewBitStringEncapsulating(inner Value) *BitString {
	return &BitString{inner: inner}
}

func checkUnused(unused, n int) error {
	if unused < 0 || unused > 7 {
		return fmt.Errorf("%w: unused bits %d out of range", ErrInvalidValue, unused)
	}
	if n == 0 && unused != 0 {
		return fmt.Errorf("%w: unused bits on empty payload", ErrInvalidValue)
	}
	return nil
}

// Tag returns 0x03.
func (b *BitString) Tag() byte { return tlv.TagBitString }

// Unused returns the number of unused bits in the last payload byte.
func (b *BitString) Unused() int { return b.unused }

// Bytes returns the payload bytes.
func (b *BitString) Bytes() ([]byte, error) {
	if b.inner != nil {
		return b.inner.Encode()
	}
	return b.data, nil
}

// Len returns the number of significant bits.
func (b *BitString) Len() int { return len(b.data)*8 - b.unused }

// Bools returns one entry per significant bit.
func (b *BitString) Bools() []bool {
	out := make([]bool, b.Len())
	for i := range out {
		out[i] = b.data[i/8]&(0x80>>uint(i%8)) != 0
	}
	return out
}

// Binary returns the significant bits as '0'/'1' digits.
func (b *BitString) Binary() string {
	var sb strings.Builder
	for _, v := range b.Bools() {
		if v {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Set replaces the unused-bit count and payload.
func (b *BitString) Set(unused int, data []byte) error {
	if err := checkUnused(unused, len(data)); err != nil {
		return newError("bit string", err)
	}
	b.unused = unused
	b.data = append([]byte{}, data...)
	b.inner = nil
	b.cache = nil
	return nil
}

// Encode returns the DER encoding.
func (b *BitString) Encode() ([]byte, error) {
	if b.inner != nil {
		payload, err := b.inner.Encode()
		if err != nil {
			return nil, err
		}
		return encodeTLV(tlv.TagBitString, append([]byte{0x00}, payload...)), nil
	}
	if b.cache == nil {
		b.cache = encodeTLV(tlv.TagBitString, append([]byte{byte(b.unused)}, b.data...))
	}
	return b.cache, nil
}
