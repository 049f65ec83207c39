package asn1der

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/remiblancher/qasn1/pkg/tlv"
)

// Time is an ASN.1 UTCTime or GeneralizedTime. The literal digit string
// is what gets encoded.
type Time struct {
	tag   byte
	s     string
	cache []byte
}

var _ Value = (*Time)(nil)

const (
	utcLayout = "060102150405"
	genLayout = "20060102150405"
)

// NewUTCTime returns a UTCTime for t, which must fall in 1950 through 2049.
func NewUTCTime(t time.Time) (*Time, error) {
	t = t.UTC()
	if y := t.Year(); y < 1950 || y > 2049 {
		return nil, newError("UTCTime", fmt.Errorf("%w: year %d outside 1950-2049", ErrInvalidValue, y))
	}
	return &Time{tag: tlv.TagUTCTime, s: t.Format(utcLayout) + "Z"}, nil
}

// NewGeneralizedTime returns a GeneralizedTime for t. With withMillis the
// milliseconds are appended as a fraction with trailing zeros stripped.
func NewGeneralizedTime(t time.Time, withMillis bool) *Time {
	return &Time{tag: tlv.TagGeneralizedTime, s: formatGeneralized(t, withMillis)}
}

// NewUTCTimeString returns a UTCTime from a literal such as "151231235959Z".
func NewUTCTimeString(s string) (*Time, error) {
	if _, err := parseUTC(s); err != nil {
		return nil, newError("UTCTime", err)
	}
	return &Time{tag: tlv.TagUTCTime, s: s}, nil
}

// NewGeneralizedTimeString returns a GeneralizedTime from a literal such
// as "20151231235959Z" or "20151231235959.123Z".
func NewGeneralizedTimeString(s string) (*Time, error) {
	if _, err := parseGeneralized(s); err != nil {
		return nil, newError("GeneralizedTime", err)
	}
	return &Time{tag: tlv.TagGeneralizedTime, s: s}, nil
}

// NewTimeAuto returns a UTCTime when t falls in 1950 through 2049 and a
// GeneralizedTime otherwise, the rule RFC 5280 and RFC 5652 use for
// validity and signingTime.
func NewTimeAuto(t time.Time) *Time {
	if y := t.UTC().Year(); y >= 1950 && y <= 2049 {
		return &Time{tag: tlv.TagUTCTime, s: t.UTC().Format(utcLayout) + "Z"}
	}
	return NewGeneralizedTime(t, false)
}

// Tag returns 0x17 or 0x18.
func (t *Time) Tag() byte { return t.tag }

// String returns the literal digit string.
func (t *Time) String() string { return t.s }

// Time parses the literal. Two-digit years 50-99 are 19xx, 00-49 are 20xx.
func (t *Time) Time() (time.Time, error) {
	if t.tag == tlv.TagUTCTime {
		return parseUTC(t.s)
	}
	return parseGeneralized(t.s)
}

// Set replaces the instant, keeping the time type.
func (t *Time) Set(v time.Time, withMillis bool) error {
	if t.tag == tlv.TagUTCTime {
		u, err := NewUTCTime(v)
		if err != nil {
			return err
		}
		t.s = u.s
	} else {
		t.s = formatGeneralized(v, withMillis)
	}
	t.cache = nil
	return nil
}

// Encode returns the DER encoding.
func (t *Time) Encode() ([]byte, error) {
	if t.cache == nil {
		t.cache = encodeTLV(t.tag, []byte(t.s))
	}
	return t.cache, nil
}

func formatGeneralized(t time.Time, withMillis bool) string {
	t = t.UTC()
	s := t.Format(genLayout)
	if withMillis {
		ms := t.Nanosecond() / int(time.Millisecond)
		if frac := strings.TrimRight(fmt.Sprintf("%03d", ms), "0"); frac != "" {
			s += "." + frac
		}
	}
	return s + "Z"
}

// ParseTimeValue parses UTCTime or GeneralizedTime content.
func ParseTimeValue(tag byte, content string) (time.Time, error) {
	switch tag {
	case tlv.TagUTCTime:
		return parseUTC(content)
	case tlv.TagGeneralizedTime:
		return parseGeneralized(content)
	}
	return time.Time{}, fmt.Errorf("%w: tag 0x%02x is not a time", ErrUnsupportedType, tag)
}

func parseUTC(s string) (time.Time, error) {
	if len(s) < 13 || !strings.HasSuffix(s, "Z") {
		return time.Time{}, fmt.Errorf("%w: bad UTCTime %q", ErrInvalidValue, s)
	}
	yy, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad UTCTime %q", ErrInvalidValue, s)
	}
	century := "20"
	if yy >= 50 {
		century = "19"
	}
	return parseGeneralized(century + s)
}

func parseGeneralized(s string) (time.Time, error) {
	if len(s) < 15 || !strings.HasSuffix(s, "Z") {
		return time.Time{}, fmt.Errorf("%w: bad GeneralizedTime %q", ErrInvalidValue, s)
	}
	body := s[:len(s)-1]
	frac := ""
	if i := strings.IndexByte(body, '.'); i >= 0 {
		body, frac = body[:i], body[i+1:]
		if frac == "" {
			return time.Time{}, fmt.Errorf("%w: empty fraction in %q", ErrInvalidValue, s)
		}
	}
	if len(body) != len(genLayout) {
		return time.Time{}, fmt.Errorf("%w: bad time %q", ErrInvalidValue, s)
	}
	t, err := time.Parse(genLayout, body)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad time %q", ErrInvalidValue, s)
	}
	if frac != "" {
		for _, c := range frac {
			if c < '0' || c > '9' {
				return time.Time{}, fmt.Errorf("%w: bad fraction in %q", ErrInvalidValue, s)
			}
		}
		if len(frac) > 9 {
			frac = frac[:9]
		}
		ns, _ := strconv.Atoi(frac + strings.Repeat("0", 9-len(frac)))
		t = t.Add(time.Duration(ns))
	}
	return t.UTC(), nil
}
