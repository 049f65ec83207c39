package tsp

import (
	"fmt"
	"math/big"
	"time"

	"github.com/remiblancher/qasn1/pkg/asn1der"
	"github.com/remiblancher/qasn1/pkg/tlv"
)

// Accuracy is the optional TSTInfo accuracy. Zero fields are omitted.
type Accuracy struct {
	Seconds int
	Millis  int // 1..999
	Micros  int // 1..999
}

// IsZero reports whether no accuracy component is set.
func (a Accuracy) IsZero() bool { return a.Seconds == 0 && a.Millis == 0 && a.Micros == 0 }

func (a Accuracy) value() (asn1der.Value, error) {
	if a.Millis < 0 || a.Millis > 999 || a.Micros < 0 || a.Micros > 999 || a.Seconds < 0 {
		return nil, fmt.Errorf("%w: accuracy out of range", ErrInvalidTSTInfo)
	}
	seq := asn1der.NewSequence()
	if a.Seconds > 0 {
		seq.Append(asn1der.NewInteger(int64(a.Seconds)))
	}
	if a.Millis > 0 {
		seq.Append(asn1der.MustImplicit(0, asn1der.NewInteger(int64(a.Millis))))
	}
	if a.Micros > 0 {
		seq.Append(asn1der.MustImplicit(1, asn1der.NewInteger(int64(a.Micros))))
	}
	return seq, nil
}

// TSTInfo is the content of a timestamp token (RFC 3161 Section 2.4.2).
type TSTInfo struct {
	Policy         string // dotted OID
	MessageImprint MessageImprint
	SerialNumber   *big.Int
	GenTime        time.Time
	GenTimeMillis  bool // encode milliseconds in genTime
	Accuracy       Accuracy
	Ordering       bool
	Nonce          *big.Int // optional
	TSAName        []byte   // Name DER, optional
}

// Encode encodes the TSTInfo as DER. Ordering is omitted when false
// since it defaults to FALSE.
func (t *TSTInfo) Encode() ([]byte, error) {
	if t.Policy == "" || t.SerialNumber == nil || t.GenTime.IsZero() {
		return nil, NewTSPError("tstinfo", fmt.Errorf("%w: policy, serial number and genTime are required", asn1der.ErrMissingField))
	}
	policy, err := asn1der.NewObjectIdentifier(t.Policy)
	if err != nil {
		return nil, NewTSPError("tstinfo", err)
	}
	imprint, err := t.MessageImprint.value()
	if err != nil {
		return nil, NewTSPError("tstinfo", err)
	}
	seq := asn1der.NewSequence(
		asn1der.NewInteger(1),
		policy,
		imprint,
		asn1der.NewIntegerBig(t.SerialNumber),
		asn1der.NewGeneralizedTime(t.GenTime, t.GenTimeMillis),
	)
	if !t.Accuracy.IsZero() {
		acc, err := t.Accuracy.value()
		if err != nil {
			return nil, NewTSPError("tstinfo", err)
		}
		seq.Append(acc)
	}
	if t.Ordering {
		seq.Append(asn1der.NewBoolean(true))
	}
	if t.Nonce != nil {
		seq.Append(asn1der.NewIntegerBig(t.Nonce))
	}
	if len(t.TSAName) > 0 {
		name, err := asn1der.NewRaw(t.TSAName)
		if err != nil {
			return nil, NewTSPError("tstinfo", err)
		}
		// GeneralName directoryName [4] is EXPLICIT because Name is a CHOICE.
		seq.Append(asn1der.MustExplicit(0, asn1der.MustExplicit(4, name)))
	}
	return seq.Encode()
}

// ParseTSTInfo parses a DER-encoded TSTInfo.
func ParseTSTInfo(der []byte) (*TSTInfo, error) {
	fail := func(format string, args ...any) error {
		return NewTSPError("tstinfo", fmt.Errorf("%w: "+format, append([]any{ErrInvalidTSTInfo}, args...)...))
	}
	if err := tlv.Check(der); err != nil {
		return nil, NewTSPError("tstinfo", err)
	}
	kids, err := tlv.Children(der, 0)
	if err != nil {
		return nil, NewTSPError("tstinfo", err)
	}
	if der[0] != tlv.TagSequence || len(kids) < 5 {
		return nil, fail("expected SEQUENCE of at least 5 fields")
	}
	if der[kids[0]] != tlv.TagInteger {
		return nil, fail("bad version")
	}
	if v, _ := tlv.Value(der, kids[0]); len(v) != 1 || v[0] != 1 {
		return nil, fail("unsupported version")
	}

	t := &TSTInfo{}
	if der[kids[1]] != tlv.TagOID {
		return nil, fail("bad policy")
	}
	content, _ := tlv.Value(der, kids[1])
	if t.Policy, err = asn1der.DecodeOIDContent(content); err != nil {
		return nil, fail("%v", err)
	}
	if t.MessageImprint, err = parseMessageImprint(der, kids[2]); err != nil {
		return nil, fail("%v", err)
	}
	if der[kids[3]] != tlv.TagInteger {
		return nil, fail("bad serialNumber")
	}
	content, _ = tlv.Value(der, kids[3])
	t.SerialNumber = new(big.Int).SetBytes(content)
	if der[kids[4]] != tlv.TagGeneralizedTime {
		return nil, fail("genTime must be a GeneralizedTime")
	}
	content, _ = tlv.Value(der, kids[4])
	if t.GenTime, err = asn1der.ParseTimeValue(tlv.TagGeneralizedTime, string(content)); err != nil {
		return nil, fail("%v", err)
	}
	t.GenTimeMillis = t.GenTime.Nanosecond() != 0

	for _, off := range kids[5:] {
		content, _ := tlv.Value(der, off)
		switch der[off] {
		case tlv.TagSequence:
			if t.Accuracy, err = parseAccuracy(der, off); err != nil {
				return nil, fail("%v", err)
			}
		case tlv.TagBoolean:
			t.Ordering = len(content) == 1 && content[0] != 0
		case tlv.TagInteger:
			t.Nonce = new(big.Int).SetBytes(content)
		case tlv.ClassContext | tlv.Constructed | 0:
			gn, err := tlv.Child(der, off, 0)
			if err != nil || der[gn] != tlv.ClassContext|tlv.Constructed|4 {
				return nil, fail("tsa must be a directoryName")
			}
			dn, err := tlv.Child(der, gn, 0)
			if err != nil {
				return nil, fail("%v", err)
			}
			t.TSAName, _ = tlv.TLV(der, dn)
		case tlv.ClassContext | tlv.Constructed | 1:
			// extensions are not interpreted
		default:
			return nil, fail("unexpected field tag 0x%02x", der[off])
		}
	}
	return t, nil
}

func parseAccuracy(der []byte, off int) (Accuracy, error) {
	var a Accuracy
	kids, err := tlv.Children(der, off)
	if err != nil {
		return a, err
	}
	for _, k := range kids {
		content, _ := tlv.Value(der, k)
		n := int(new(big.Int).SetBytes(content).Int64())
		switch der[k] {
		case tlv.TagInteger:
			a.Seconds = n
		case tlv.ClassContext | 0:
			a.Millis = n
		case tlv.ClassContext | 1:
			a.Micros = n
		default:
			return a, fmt.Errorf("bad accuracy field 0x%02x", der[k])
		}
	}
	return a, nil
}
