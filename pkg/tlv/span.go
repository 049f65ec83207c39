package tlv

// Span is an explicit (buffer, offset, length) reference to bytes inside
// a decoded buffer. A zero Span means the field is absent.
type Span struct {
	Buf []byte
	Off int
	Len int
}

// SpanOf returns the Span covering the whole TLV at off.
func SpanOf(der []byte, off int) (Span, error) {
	info, err := Header(der, off)
	if err != nil {
		return Span{}, err
	}
	return Span{Buf: der, Off: off, Len: info.TotalLen()}, nil
}

// ValueSpanOf returns the Span covering only the value of the TLV at off.
func ValueSpanOf(der []byte, off int) (Span, error) {
	info, err := Header(der, off)
	if err != nil {
		return Span{}, err
	}
	return Span{Buf: der, Off: info.ValueOffset(), Len: info.Length}, nil
}

// IsZero reports whether the span references nothing.
func (s Span) IsZero() bool { return s.Buf == nil }

// End returns the offset just past the span.
func (s Span) End() int { return s.Off + s.Len }

// Bytes returns the referenced bytes. The slice aliases the buffer.
func (s Span) Bytes() []byte {
	if s.Buf == nil {
		return nil
	}
	return s.Buf[s.Off : s.Off+s.Len : s.Off+s.Len]
}

// Tag returns the tag byte at the start of the span, or 0 when absent.
func (s Span) Tag() byte {
	if s.Buf == nil || s.Len == 0 {
		return 0
	}
	return s.Buf[s.Off]
}

// Value returns the value bytes of the TLV the span covers.
func (s Span) Value() ([]byte, error) {
	return Value(s.Buf[:s.End()], s.Off)
}
