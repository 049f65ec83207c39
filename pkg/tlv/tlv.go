// Package tlv locates tag-length-value structures inside a DER buffer
// without materializing them.
//
// Every function takes the whole buffer and an offset, so callers can
// walk nested structures and keep byte-exact references to the fields
// they find.
package tlv

import (
	"encoding/hex"
	"fmt"
)

// Common universal tags.
const (
	TagBoolean         byte = 0x01
	TagInteger         byte = 0x02
	TagBitString       byte = 0x03
	TagOctetString     byte = 0x04
	TagNull            byte = 0x05
	TagOID             byte = 0x06
	TagEnumerated      byte = 0x0a
	TagUTF8String      byte = 0x0c
	TagNumericString   byte = 0x12
	TagPrintableString byte = 0x13
	TagTeletexString   byte = 0x14
	TagIA5String       byte = 0x16
	TagUTCTime         byte = 0x17
	TagGeneralizedTime byte = 0x18
	TagVisibleString   byte = 0x1a
	TagUniversalString byte = 0x1c
	TagBMPString       byte = 0x1e
	TagSequence        byte = 0x30
	TagSet             byte = 0x31

	// ClassContext is the context-specific class bits.
	ClassContext byte = 0x80
	// Constructed is the constructed-form bit.
	Constructed byte = 0x20
)

// Info describes one TLV found in a buffer.
type Info struct {
	Tag       byte
	Offset    int // offset of the tag byte
	HeaderLen int // tag plus length bytes
	Length    int // declared value length
}

// ValueOffset returns the offset of the first value byte.
func (i Info) ValueOffset() int { return i.Offset + i.HeaderLen }

// End returns the offset just past the value.
func (i Info) End() int { return i.Offset + i.HeaderLen + i.Length }

// TotalLen returns the length of the whole TLV.
func (i Info) TotalLen() int { return i.HeaderLen + i.Length }

// IsConstructed reports whether the constructed bit is set on the tag.
func (i Info) IsConstructed() bool { return i.Tag&Constructed != 0 }

// IsContext reports whether the tag is context-specific.
func (i Info) IsContext() bool { return i.Tag&0xc0 == ClassContext }

// Header decodes the tag and length at off.
func Header(der []byte, off int) (Info, error) {
	if off < 0 || off+2 > len(der) {
		return Info{}, decodeErr(off, ErrTruncated)
	}
	tag := der[off]
	if tag&0x1f == 0x1f {
		return Info{}, decodeErr(off, ErrHighTagNumber)
	}

	b := der[off+1]
	info := Info{Tag: tag, Offset: off}
	switch {
	case b < 0x80:
		info.HeaderLen = 2
		info.Length = int(b)
	case b == 0x80:
		return Info{}, decodeErr(off, ErrIndefiniteLength)
	default:
		n := int(b & 0x7f)
		if n > 4 {
			return Info{}, decodeErr(off, fmt.Errorf("%w: length of %d bytes", ErrMalformed, n))
		}
		if off+2+n > len(der) {
			return Info{}, decodeErr(off, ErrTruncated)
		}
		length := 0
		for _, c := range der[off+2 : off+2+n] {
			length = length<<8 | int(c)
		}
		if length < 0 {
			return Info{}, decodeErr(off, fmt.Errorf("%w: negative length", ErrMalformed))
		}
		info.HeaderLen = 2 + n
		info.Length = length
	}

	if info.End() > len(der) {
		return Info{}, decodeErr(off, ErrTruncated)
	}
	return info, nil
}

// Next returns the offset of the TLV that follows the one at off.
func Next(der []byte, off int) (int, error) {
	info, err := Header(der, off)
	if err != nil {
		return 0, err
	}
	return info.End(), nil
}

// Children returns the offsets of the direct children of the constructed
// TLV at off. Each child header is read once, so the walk is linear in
// the number of children.
func Children(der []byte, off int) ([]int, error) {
	info, err := Header(der, off)
	if err != nil {
		return nil, err
	}
	return childrenOf(der, info.ValueOffset(), info.End())
}

// ChildrenInValue returns the offsets of the TLVs laid end to end in
// der[start:end], for values such as OCTET STRING wrappers that carry
// encoded content without the constructed bit.
func ChildrenInValue(der []byte, start, end int) ([]int, error) {
	if start < 0 || end > len(der) || start > end {
		return nil, decodeErr(start, ErrTruncated)
	}
	return childrenOf(der, start, end)
}

func childrenOf(der []byte, start, end int) ([]int, error) {
	var offs []int
	for p := start; p < end; {
		child, err := Header(der[:end], p)
		if err != nil {
			return nil, err
		}
		offs = append(offs, p)
		p = child.End()
	}
	return offs, nil
}

// Child returns the offset of the idx-th child of the TLV at off.
func Child(der []byte, off, idx int) (int, error) {
	offs, err := Children(der, off)
	if err != nil {
		return 0, err
	}
	if idx < 0 || idx >= len(offs) {
		return 0, decodeErr(off, fmt.Errorf("%w: no child %d (have %d)", ErrMalformed, idx, len(offs)))
	}
	return offs[idx], nil
}

// Descend follows a path of child indexes starting at off.
func Descend(der []byte, off int, path ...int) (int, error) {
	var err error
	for _, idx := range path {
		if off, err = Child(der, off, idx); err != nil {
			return 0, err
		}
	}
	return off, nil
}

// Value returns the value bytes of the TLV at off. The slice aliases der.
func Value(der []byte, off int) ([]byte, error) {
	info, err := Header(der, off)
	if err != nil {
		return nil, err
	}
	return der[info.ValueOffset():info.End():info.End()], nil
}

// TLV returns the whole encoding of the TLV at off. The slice aliases der.
func TLV(der []byte, off int) ([]byte, error) {
	info, err := Header(der, off)
	if err != nil {
		return nil, err
	}
	return der[off:info.End():info.End()], nil
}

// Hex returns n bytes of der starting at off as lowercase hex.
func Hex(der []byte, off, n int) (string, error) {
	if off < 0 || n < 0 || off+n > len(der) {
		return "", decodeErr(off, ErrTruncated)
	}
	return hex.EncodeToString(der[off : off+n]), nil
}

// ValueHex returns the value of the TLV at off as lowercase hex.
func ValueHex(der []byte, off int) (string, error) {
	v, err := Value(der, off)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(v), nil
}

// Check verifies that der holds exactly one well-formed TLV, including
// every nested constructed value.
func Check(der []byte) error {
	info, err := Header(der, 0)
	if err != nil {
		return err
	}
	if info.End() != len(der) {
		return decodeErr(info.End(), fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(der)-info.End()))
	}
	return checkNested(der, info)
}

func checkNested(der []byte, info Info) error {
	if !info.IsConstructed() {
		return nil
	}
	for p := info.ValueOffset(); p < info.End(); {
		child, err := Header(der[:info.End()], p)
		if err != nil {
			return err
		}
		if err := checkNested(der, child); err != nil {
			return err
		}
		p = child.End()
	}
	return nil
}
