package asn1der

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/remiblancher/qasn1/pkg/tlv"
)

// Parse decodes one DER value. Encoding the result gives back exactly
// the input bytes: primitives keep their original encoding until a
// setter changes them, and a SET whose members arrive out of DER order is
// parsed as an unsorted set.
//
// A constructed context-specific value holding exactly one TLV is parsed
// as an explicit Tagged value. Other context-specific values, and values
// of the application and private classes, are returned as Raw.
func Parse(der []byte) (Value, error) {
	info, err := tlv.Header(der, 0)
	if err != nil {
		return nil, newError("parse", err)
	}
	if info.End() != len(der) {
		return nil, newError("parse", fmt.Errorf("%w: %d trailing bytes", ErrMalformedEncoding, len(der)-info.End()))
	}
	return parseAt(der, info)
}

// ParseHex decodes one hex-encoded DER value.
func ParseHex(s string) (Value, error) {
	der, err := hex.DecodeString(s)
	if err != nil {
		return nil, newError("parse", fmt.Errorf("%w: bad hex", ErrMalformedEncoding))
	}
	return Parse(der)
}

func parseAt(der []byte, info tlv.Info) (Value, error) {
	whole := append([]byte{}, der[info.Offset:info.End()]...)
	content := whole[info.HeaderLen:]

	switch {
	case info.Tag == tlv.TagSequence:
		items, err := parseChildren(der, info)
		if err != nil {
			return nil, err
		}
		return &Sequence{items: items}, nil

	case info.Tag == tlv.TagSet:
		items, err := parseChildren(der, info)
		if err != nil {
			return nil, err
		}
		return &Set{items: items, unsorted: !membersSorted(der, info)}, nil

	case info.IsContext() && info.IsConstructed():
		offs, err := tlv.Children(der, info.Offset)
		if err != nil {
			return nil, newError("parse", err)
		}
		if len(offs) != 1 {
			return &Raw{der: whole}, nil
		}
		child, _ := tlv.Header(der, offs[0])
		inner, err := parseAt(der, child)
		if err != nil {
			return nil, err
		}
		return &Tagged{n: int(info.Tag & 0x1f), explicit: true, inner: inner}, nil

	case info.Tag&0xc0 != 0:
		return &Raw{der: whole}, nil
	}

	switch info.Tag {
	case tlv.TagBoolean:
		if len(content) != 1 {
			return nil, newError("parse", fmt.Errorf("%w: BOOLEAN length %d", ErrMalformedEncoding, len(content)))
		}
		return &Boolean{v: content[0] != 0, cache: whole}, nil

	case tlv.TagInteger, tlv.TagEnumerated:
		if len(content) == 0 {
			return nil, newError("parse", fmt.Errorf("%w: empty INTEGER", ErrMalformedEncoding))
		}
		if info.Tag == tlv.TagEnumerated {
			return &Enumerated{v: intFromContent(content), cache: whole}, nil
		}
		return &Integer{v: intFromContent(content), cache: whole}, nil

	case tlv.TagBitString:
		if len(content) == 0 {
			return nil, newError("parse", fmt.Errorf("%w: empty BIT STRING", ErrMalformedEncoding))
		}
		if err := checkUnused(int(content[0]), len(content)-1); err != nil {
			return nil, newError("parse", fmt.Errorf("%w: %v", ErrMalformedEncoding, err))
		}
		return &BitString{unused: int(content[0]), data: content[1:], cache: whole}, nil

	case tlv.TagOctetString:
		return &OctetString{data: content, cache: whole}, nil

	case tlv.TagNull:
		if len(content) != 0 {
			return nil, newError("parse", fmt.Errorf("%w: NULL with content", ErrMalformedEncoding))
		}
		return Null{}, nil

	case tlv.TagOID:
		dotted, err := DecodeOIDContent(content)
		if err != nil {
			return nil, newError("parse", err)
		}
		return &ObjectIdentifier{dotted: dotted, cache: whole}, nil

	case tlv.TagUTCTime, tlv.TagGeneralizedTime:
		if _, err := ParseTimeValue(info.Tag, string(content)); err != nil {
			return nil, newError("parse", err)
		}
		return &Time{tag: info.Tag, s: string(content), cache: whole}, nil
	}

	if IsStringTag(info.Tag) {
		if _, err := DecodeString(info.Tag, content); err != nil {
			return nil, newError("parse", err)
		}
		return &String{tag: info.Tag, content: content, cache: whole}, nil
	}

	return nil, newError("parse", fmt.Errorf("%w: universal tag 0x%02x", ErrUnsupportedType, info.Tag))
}

func parseChildren(der []byte, info tlv.Info) ([]Value, error) {
	offs, err := tlv.Children(der, info.Offset)
	if err != nil {
		return nil, newError("parse", err)
	}
	items := make([]Value, 0, len(offs))
	for _, off := range offs {
		child, err := tlv.Header(der, off)
		if err != nil {
			return nil, newError("parse", err)
		}
		v, err := parseAt(der, child)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

func membersSorted(der []byte, info tlv.Info) bool {
	offs, err := tlv.Children(der, info.Offset)
	if err != nil {
		return false
	}
	var prev []byte
	for _, off := range offs {
		cur, _ := tlv.TLV(der, off)
		if prev != nil && bytes.Compare(prev, cur) > 0 {
			return false
		}
		prev = cur
	}
	return true
}
