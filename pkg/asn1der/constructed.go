package asn1der

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/remiblancher/qasn1/pkg/tlv"
)

// Sequence is an ASN.1 SEQUENCE. Children are encoded in order.
type Sequence struct {
	items []Value
}

var _ Value = (*Sequence)(nil)

// NewSequence returns a SEQUENCE of items.
func NewSequence(items ...Value) *Sequence {
	return &Sequence{items: append([]Value{}, items...)}
}

// Tag returns 0x30.
func (s *Sequence) Tag() byte { return tlv.TagSequence }

// Append adds items at the end.
func (s *Sequence) Append(items ...Value) { s.items = append(s.items, items...) }

// Items returns the children.
func (s *Sequence) Items() []Value { return s.items }

// Len returns the number of children.
func (s *Sequence) Len() int { return len(s.items) }

// Encode returns the DER encoding.
func (s *Sequence) Encode() ([]byte, error) {
	parts, total, err := encodeAll("sequence", s.items)
	if err != nil {
		return nil, err
	}
	content := make([]byte, 0, total)
	for _, p := range parts {
		content = append(content, p...)
	}
	return encodeTLV(tlv.TagSequence, content), nil
}

// Set is an ASN.1 SET or SET OF. Under DER the member encodings are
// sorted byte-lexically; an unsorted set keeps insertion order, which is
// what re-encoding legacy BER input needs.
type Set struct {
	items    []Value
	unsorted bool
}

var _ Value = (*Set)(nil)

// NewSet returns a DER-sorted SET of items.
func NewSet(items ...Value) *Set {
	return &Set{items: append([]Value{}, items...)}
}

// NewSetUnsorted returns a SET that encodes its items in insertion order.
func NewSetUnsorted(items ...Value) *Set {
	return &Set{items: append([]Value{}, items...), unsorted: true}
}

// Tag returns 0x31.
func (s *Set) Tag() byte { return tlv.TagSet }

// Append adds items.
func (s *Set) Append(items ...Value) { s.items = append(s.items, items...) }

// Items returns the children in insertion order.
func (s *Set) Items() []Value { return s.items }

// Len returns the number of children.
func (s *Set) Len() int { return len(s.items) }

// Sorted reports whether encoding sorts the members.
func (s *Set) Sorted() bool { return !s.unsorted }

// Encode returns the DER encoding.
func (s *Set) Encode() ([]byte, error) {
	parts, total, err := encodeAll("set", s.items)
	if err != nil {
		return nil, err
	}
	if !s.unsorted {
		sort.SliceStable(parts, func(i, j int) bool {
			return bytes.Compare(parts[i], parts[j]) < 0
		})
	}
	content := make([]byte, 0, total)
	for _, p := range parts {
		content = append(content, p...)
	}
	return encodeTLV(tlv.TagSet, content), nil
}

// MaxTagNumber is the largest tag number a single identifier octet holds.
const MaxTagNumber = 30

// Tagged is a context-specific [n] wrapper around another value.
//
// Explicit tagging wraps the whole inner TLV in a new constructed TLV.
// Implicit tagging replaces only the inner tag octet, keeping the inner
// length and value bytes; the constructed bit follows the inner value.
type Tagged struct {
	n        int
	explicit bool
	inner    Value
}

var _ Value = (*Tagged)(nil)

// NewExplicit returns [n] EXPLICIT inner.
func NewExplicit(n int, inner Value) (*Tagged, error) {
	return newTagged(n, true, inner)
}

// NewImplicit returns [n] IMPLICIT inner.
func NewImplicit(n int, inner Value) (*Tagged, error) {
	return newTagged(n, false, inner)
}

// MustExplicit is NewExplicit for constant tag numbers.
func MustExplicit(n int, inner Value) *Tagged {
	t, err := NewExplicit(n, inner)
	if err != nil {
		panic(err)
	}
	return t
}

// MustImplicit is NewImplicit for constant tag numbers.
func MustImplicit(n int, inner Value) *Tagged {
	t, err := NewImplicit(n, inner)
	if err != nil {
		panic(err)
	}
	return t
}

func newTagged(n int, explicit bool, inner Value) (*Tagged, error) {
	if n < 0 || n > MaxTagNumber {
		return nil, newError("tagged", fmt.Errorf("%w: tag number %d out of range", ErrMalformedEncoding, n))
	}
	if inner == nil {
		return nil, newError("tagged", ErrMissingField)
	}
	return &Tagged{n: n, explicit: explicit, inner: inner}, nil
}

// Tag returns the context-specific identifier octet.
func (t *Tagged) Tag() byte {
	if t.explicit {
		return tlv.ClassContext | tlv.Constructed | byte(t.n)
	}
	return tlv.ClassContext | byte(t.n) | (t.inner.Tag() & tlv.Constructed)
}

// Number returns the tag number.
func (t *Tagged) Number() int { return t.n }

// Explicit reports whether the tag is explicit.
func (t *Tagged) Explicit() bool { return t.explicit }

// Inner returns the wrapped value.
func (t *Tagged) Inner() Value { return t.inner }

// Encode returns the DER encoding.
func (t *Tagged) Encode() ([]byte, error) {
	der, err := t.inner.Encode()
	if err != nil {
		return nil, err
	}
	if t.explicit {
		return encodeTLV(t.Tag(), der), nil
	}
	out := append([]byte{}, der...)
	out[0] = t.Tag()
	return out, nil
}
