package asn1der

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"
)

func mustHex(t *testing.T, v Value) string {
	t.Helper()
	h, err := EncodeHex(v)
	if err != nil {
		t.Fatalf("EncodeHex() error = %v", err)
	}
	return h
}

func roundTrip(t *testing.T, v Value) Value {
	t.Helper()
	der, err := v.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	parsed, err := Parse(der)
	if err != nil {
		t.Fatalf("Parse(%x) error = %v", der, err)
	}
	again, err := parsed.Encode()
	if err != nil {
		t.Fatalf("re-Encode() error = %v", err)
	}
	if hex.EncodeToString(again) != hex.EncodeToString(der) {
		t.Fatalf("round trip mismatch: %x != %x", again, der)
	}
	return parsed
}

// =============================================================================
// Integer Tests
// =============================================================================

func TestU_CanonicalIntegerHex(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abcd", "00abcd"},
		{"1234", "1234"},
		{"12345", "012345"},
		{"0", "00"},
		{"7f", "7f"},
		{"80", "0080"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CanonicalIntegerHex(tt.in)
			if err != nil {
				t.Fatalf("CanonicalIntegerHex() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CanonicalIntegerHex(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if _, err := CanonicalIntegerHex("xyz"); !errors.Is(err, ErrMalformedEncoding) {
		t.Errorf("CanonicalIntegerHex(xyz) error = %v, want ErrMalformedEncoding", err)
	}
}

func TestU_Integer_Encode(t *testing.T) {
	tests := []struct {
		name string
		v    int64
		want string
	}{
		{"[Unit] Integer: zero", 0, "020100"},
		{"[Unit] Integer: 127", 127, "02017f"},
		{"[Unit] Integer: 128", 128, "02020080"},
		{"[Unit] Integer: 256", 256, "02020100"},
		{"[Unit] Integer: -1", -1, "0201ff"},
		{"[Unit] Integer: -128", -128, "020180"},
		{"[Unit] Integer: -129", -129, "0202ff7f"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewInteger(tt.v)
			if got := mustHex(t, v); got != tt.want {
				t.Errorf("Encode() = %s, want %s", got, tt.want)
			}
			parsed := roundTrip(t, v).(*Integer)
			if parsed.Big().Int64() != tt.v {
				t.Errorf("parsed value = %s, want %d", parsed.Big(), tt.v)
			}
		})
	}
}

func TestU_Integer_SetInvalidatesCache(t *testing.T) {
	v := NewInteger(1)
	if got := mustHex(t, v); got != "020101" {
		t.Fatalf("Encode() = %s", got)
	}
	v.SetBig(big.NewInt(2))
	if got := mustHex(t, v); got != "020102" {
		t.Errorf("Encode() after SetBig = %s, want 020102", got)
	}
}

func TestU_Integer_Hex(t *testing.T) {
	v, err := NewIntegerHex("abcd")
	if err != nil {
		t.Fatalf("NewIntegerHex() error = %v", err)
	}
	if got := mustHex(t, v); got != "020300abcd" {
		t.Errorf("Encode() = %s, want 020300abcd", got)
	}
	e, err := NewEnumeratedHex("05")
	if err != nil {
		t.Fatalf("NewEnumeratedHex() error = %v", err)
	}
	if got := mustHex(t, e); got != "0a0105" {
		t.Errorf("Enumerated Encode() = %s", got)
	}
	roundTrip(t, e)
}

// =============================================================================
// BitString Tests
// =============================================================================

func TestU_BitString_BinaryAndBools(t *testing.T) {
	fromBin, err := NewBitStringFromBinary("01011")
	if err != nil {
		t.Fatalf("NewBitStringFromBinary() error = %v", err)
	}
	fromBools := NewBitStringFromBools([]bool{false, true, false, true, true})

	if got := mustHex(t, fromBin); got != "03020358" {
		t.Errorf("binary Encode() = %s, want 03020358", got)
	}
	if mustHex(t, fromBin) != mustHex(t, fromBools) {
		t.Errorf("bool array and binary string differ: %s vs %s", mustHex(t, fromBools), mustHex(t, fromBin))
	}
	if fromBools.Unused() != 3 {
		t.Errorf("Unused() = %d, want 3", fromBools.Unused())
	}
	if fromBin.Binary() != "01011" {
		t.Errorf("Binary() = %s", fromBin.Binary())
	}
}

func TestU_BitString_TrailingZerosDropped(t *testing.T) {
	tests := []struct {
		bin  string
		want string
	}{
		{"01011000", "03020358"},
		{"1", "03020780"},
		{"10000000", "03020780"},
		{"11111111", "030200ff"},
		{"000", "030100"},
		{"", "030100"},
		{"111111111", "030307ff80"},
	}

	for _, tt := range tests {
		t.Run(tt.bin, func(t *testing.T) {
			b, err := NewBitStringFromBinary(tt.bin)
			if err != nil {
				t.Fatalf("NewBitStringFromBinary() error = %v", err)
			}
			if got := mustHex(t, b); got != tt.want {
				t.Errorf("Encode() = %s, want %s", got, tt.want)
			}
			roundTrip(t, b)
		})
	}
}

func TestU_BitString_Invalid(t *testing.T) {
	if _, err := NewBitString(8, []byte{0xff}); !errors.Is(err, ErrMalformedEncoding) {
		t.Errorf("NewBitString(8) error = %v", err)
	}
	if _, err := NewBitStringFromBinary("012"); err == nil {
		t.Error("NewBitStringFromBinary(012) should fail")
	}
	if _, err := Parse([]byte{0x03, 0x01, 0x01}); !errors.Is(err, ErrMalformedEncoding) {
		t.Errorf("Parse(unused bits on empty payload) error = %v", err)
	}
}

// =============================================================================
// OID Tests
// =============================================================================

func TestU_ObjectIdentifier_RoundTrip(t *testing.T) {
	tests := []struct {
		dotted string
		want   string
	}{
		{"2.5.4.13", "060355040d"},
		{"1.2.840.113549", "06062a864886f70d"},
		{"2.16.840.1.101.3.4.2.1", "0609608648016503040201"},
		{"2.999.3", "0603883703"},
		{"1.3.6.1.4.1.99999999999999999999", "06"},
	}

	for _, tt := range tests {
		t.Run(tt.dotted, func(t *testing.T) {
			o, err := NewObjectIdentifier(tt.dotted)
			if err != nil {
				t.Fatalf("NewObjectIdentifier() error = %v", err)
			}
			got := mustHex(t, o)
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("Encode() = %s, want %s", got, tt.want)
			}
			parsed := roundTrip(t, o).(*ObjectIdentifier)
			if parsed.String() != tt.dotted {
				t.Errorf("decoded %s, want %s", parsed.String(), tt.dotted)
			}
		})
	}
}

func TestU_ObjectIdentifier_Name(t *testing.T) {
	o, err := NewObjectIdentifierName("sha256")
	if err != nil {
		t.Fatalf("NewObjectIdentifierName() error = %v", err)
	}
	if o.String() != "2.16.840.1.101.3.4.2.1" || o.Name() != "sha256" {
		t.Errorf("got %s (%s)", o.String(), o.Name())
	}
	if _, err := NewObjectIdentifierName("no-such-alg"); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("unknown name error = %v, want ErrUnsupportedType", err)
	}
	for _, bad := range []string{"1", "3.1", "1.40", "1.2.x", "1.02"} {
		if _, err := NewObjectIdentifier(bad); err == nil {
			t.Errorf("NewObjectIdentifier(%q) should fail", bad)
		}
	}
}

// =============================================================================
// Time Tests
// =============================================================================

func TestU_UTCTime_CenturyPivot(t *testing.T) {
	tests := []struct {
		in       string
		wantYear int
	}{
		{"491231235959Z", 2049},
		{"500101000000Z", 1950},
		{"151231235959Z", 2015},
		{"991231235959Z", 1999},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := NewUTCTimeString(tt.in)
			if err != nil {
				t.Fatalf("NewUTCTimeString() error = %v", err)
			}
			got, err := v.Time()
			if err != nil {
				t.Fatalf("Time() error = %v", err)
			}
			if got.Year() != tt.wantYear {
				t.Errorf("Year() = %d, want %d", got.Year(), tt.wantYear)
			}
			roundTrip(t, v)
		})
	}
}

func TestU_Time_Millis(t *testing.T) {
	base := time.Date(2015, 12, 31, 23, 59, 59, 0, time.UTC)
	tests := []struct {
		name   string
		t      time.Time
		millis bool
		want   string
	}{
		{"[Unit] GeneralizedTime: no millis", base.Add(123 * time.Millisecond), false, "20151231235959Z"},
		{"[Unit] GeneralizedTime: millis", base.Add(123 * time.Millisecond), true, "20151231235959.123Z"},
		{"[Unit] GeneralizedTime: trailing zero stripped", base.Add(120 * time.Millisecond), true, "20151231235959.12Z"},
		{"[Unit] GeneralizedTime: zero millis", base, true, "20151231235959Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGeneralizedTime(tt.t, tt.millis)
			if g.String() != tt.want {
				t.Errorf("String() = %s, want %s", g.String(), tt.want)
			}
			roundTrip(t, g)
		})
	}
}

func TestU_Time_UTCRange(t *testing.T) {
	if _, err := NewUTCTime(time.Date(2050, 1, 1, 0, 0, 0, 0, time.UTC)); err == nil {
		t.Error("NewUTCTime(2050) should fail")
	}
	u, err := NewUTCTime(time.Date(2049, 12, 31, 23, 59, 59, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewUTCTime(2049) error = %v", err)
	}
	if got := mustHex(t, u); got != "170d3439313233313233353935395a" {
		t.Errorf("Encode() = %s", got)
	}
	if a := NewTimeAuto(time.Date(2050, 1, 1, 0, 0, 0, 0, time.UTC)); a.Tag() != 0x18 {
		t.Errorf("NewTimeAuto(2050) tag = %x, want GeneralizedTime", a.Tag())
	}
}

// =============================================================================
// Tagged Tests
// =============================================================================

func TestU_Tagged_ExplicitVsImplicit(t *testing.T) {
	tests := []struct {
		name string
		make func() (*Tagged, error)
		want string
	}{
		{"[Unit] Tagged: explicit integer", func() (*Tagged, error) { return NewExplicit(0, NewInteger(1)) }, "a003020101"},
		{"[Unit] Tagged: implicit integer", func() (*Tagged, error) { return NewImplicit(1, NewInteger(1)) }, "810101"},
		{"[Unit] Tagged: implicit sequence keeps constructed bit", func() (*Tagged, error) {
			return NewImplicit(2, NewSequence(NewInteger(1)))
		}, "a203020101"},
		{"[Unit] Tagged: explicit sequence", func() (*Tagged, error) {
			return NewExplicit(3, NewSequence(NewInteger(1)))
		}, "a3053003020101"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.make()
			if err != nil {
				t.Fatalf("construct error = %v", err)
			}
			if got := mustHex(t, v); got != tt.want {
				t.Errorf("Encode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestU_Tagged_OutOfRange(t *testing.T) {
	if _, err := NewExplicit(31, NewNull()); !errors.Is(err, ErrMalformedEncoding) {
		t.Errorf("NewExplicit(31) error = %v, want ErrMalformedEncoding", err)
	}
	if _, err := NewImplicit(-1, NewNull()); !errors.Is(err, ErrMalformedEncoding) {
		t.Errorf("NewImplicit(-1) error = %v, want ErrMalformedEncoding", err)
	}
}

func TestU_Tagged_ParseExplicit(t *testing.T) {
	v, err := ParseHex("a003020102")
	if err != nil {
		t.Fatalf("ParseHex() error = %v", err)
	}
	tg, ok := v.(*Tagged)
	if !ok || !tg.Explicit() || tg.Number() != 0 {
		t.Fatalf("parsed %T %+v, want explicit [0]", v, v)
	}
	if mustHex(t, tg.Inner()) != "020102" {
		t.Errorf("inner = %s", mustHex(t, tg.Inner()))
	}
}

// =============================================================================
// Sequence / Set Tests
// =============================================================================

func TestU_Set_OrderInvariant(t *testing.T) {
	a := NewSet(NewInteger(3), NewInteger(1), NewInteger(2))
	b := NewSet(NewInteger(2), NewInteger(3), NewInteger(1))
	if mustHex(t, a) != mustHex(t, b) {
		t.Errorf("sorted sets differ: %s vs %s", mustHex(t, a), mustHex(t, b))
	}
	if got := mustHex(t, a); got != "3109020101020102020103" {
		t.Errorf("Encode() = %s", got)
	}

	u := NewSetUnsorted(NewInteger(3), NewInteger(1), NewInteger(2))
	if got := mustHex(t, u); got != "3109020103020101020102" {
		t.Errorf("unsorted Encode() = %s", got)
	}
}

func TestU_Set_ParseKeepsOrder(t *testing.T) {
	in := "3109020103020101020102"
	v, err := ParseHex(in)
	if err != nil {
		t.Fatalf("ParseHex() error = %v", err)
	}
	if got := mustHex(t, v); got != in {
		t.Errorf("re-encode = %s, want %s", got, in)
	}
	if v.(*Set).Sorted() {
		t.Error("out-of-order input should parse as unsorted set")
	}
}

func TestU_Sequence_RoundTrip(t *testing.T) {
	utf8, _ := NewUTF8String("héllo")
	prn, _ := NewPrintableString("Test CA")
	bmp, _ := NewBMPString("Ünïcode")
	tel, _ := NewTeletexString("café")
	gen, _ := NewGeneralizedTimeString("20240101120000Z")
	bs, _ := NewBitString(0, []byte{0x01, 0x02})
	seq := NewSequence(
		NewBoolean(true),
		NewInteger(-42),
		bs,
		NewOctetString([]byte("data")),
		NewNull(),
		MustOID("2.5.4.3"),
		utf8, prn, bmp, tel, gen,
		NewSet(NewInteger(1)),
		MustExplicit(1, NewInteger(7)),
	)
	parsed := roundTrip(t, seq).(*Sequence)
	if parsed.Len() != seq.Len() {
		t.Fatalf("Len() = %d, want %d", parsed.Len(), seq.Len())
	}
	text, err := parsed.Items()[8].(*String).Text()
	if err != nil || text != "Ünïcode" {
		t.Errorf("BMPString Text() = %q, %v", text, err)
	}
	text, err = parsed.Items()[9].(*String).Text()
	if err != nil || text != "café" {
		t.Errorf("TeletexString Text() = %q, %v", text, err)
	}
}

func TestU_Sequence_NilChild(t *testing.T) {
	if _, err := NewSequence(NewInteger(1), nil).Encode(); !errors.Is(err, ErrMissingField) {
		t.Errorf("Encode() error = %v, want ErrMissingField", err)
	}
}

// =============================================================================
// String Tests
// =============================================================================

func TestU_String_Validation(t *testing.T) {
	tests := []struct {
		name    string
		make    func() (*String, error)
		wantErr bool
	}{
		{"[Unit] PrintableString: valid", func() (*String, error) { return NewPrintableString("Acme, Inc. (US)") }, false},
		{"[Unit] PrintableString: at sign", func() (*String, error) { return NewPrintableString("a@b") }, true},
		{"[Unit] IA5String: ascii", func() (*String, error) { return NewIA5String("a@b.com") }, false},
		{"[Unit] IA5String: non-ascii", func() (*String, error) { return NewIA5String("é") }, true},
		{"[Unit] NumericString: digits", func() (*String, error) { return NewNumericString("12 34") }, false},
		{"[Unit] NumericString: letter", func() (*String, error) { return NewNumericString("12a") }, true},
		{"[Unit] UTF8String: invalid", func() (*String, error) { return NewUTF8String("\xff") }, true},
		{"[Unit] TeletexString: outside latin-1", func() (*String, error) { return NewTeletexString("日本") }, true},
		{"[Unit] BMPString: outside BMP", func() (*String, error) { return NewBMPString("\U0001F600") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.make()
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestU_DecodeString_RejectsBadBytes(t *testing.T) {
	if _, err := DecodeString(0x0c, []byte{0xc3}); !errors.Is(err, ErrMalformedEncoding) {
		t.Errorf("UTF8String error = %v", err)
	}
	if _, err := DecodeString(0x13, []byte{0xe9}); !errors.Is(err, ErrMalformedEncoding) {
		t.Errorf("PrintableString error = %v", err)
	}
	if _, err := DecodeString(0x1e, []byte{0x00}); !errors.Is(err, ErrMalformedEncoding) {
		t.Errorf("BMPString error = %v", err)
	}
	if s, err := DecodeString(0x1c, []byte{0, 0, 0, 'A'}); err != nil || s != "A" {
		t.Errorf("UniversalString = %q, %v", s, err)
	}
}

// =============================================================================
// Parse Tests
// =============================================================================

func TestU_Parse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"[Unit] Parse: trailing bytes", "050000", ErrMalformedEncoding},
		{"[Unit] Parse: indefinite length", "30800000", ErrMalformedEncoding},
		{"[Unit] Parse: bad boolean", "01020000", ErrMalformedEncoding},
		{"[Unit] Parse: null with content", "050100", ErrMalformedEncoding},
		{"[Unit] Parse: unknown universal tag", "090100", ErrUnsupportedType},
		{"[Unit] Parse: truncated", "0405aa", ErrMalformedEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHex(tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseHex(%s) error = %v, want %v", tt.in, err, tt.want)
			}
		})
	}
}

func TestU_Parse_ContextPrimitiveIsRaw(t *testing.T) {
	v, err := ParseHex("8003616263")
	if err != nil {
		t.Fatalf("ParseHex() error = %v", err)
	}
	if _, ok := v.(*Raw); !ok {
		t.Errorf("got %T, want *Raw", v)
	}
	if mustHex(t, v) != "8003616263" {
		t.Errorf("re-encode = %s", mustHex(t, v))
	}
}

// =============================================================================
// Build / Dump Tests
// =============================================================================

func TestU_Build_YAML(t *testing.T) {
	doc := []byte(`
seq:
  - int: {value: 3}
  - oid: sha256
  - tag: {n: 0, obj: {utf8: hi}}
  - tag: {n: 1, explicit: false, obj: {int: {hex: "ff"}}}
  - set: {items: [{int: {value: 2}}, {int: {value: 1}}]}
  - bitstr: {bin: "01011"}
  - octstr: {obj: {null: true}}
  - seq: []
`)
	p, err := LoadParam(doc)
	if err != nil {
		t.Fatalf("LoadParam() error = %v", err)
	}
	v, err := Build(p)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := "302a" +
		"020103" +
		"0609608648016503040201" +
		"a0040c026869" +
		"810200ff" +
		"3106020101020102" +
		"03020358" +
		"04020500" +
		"3000"
	if got := mustHex(t, v); got != want {
		t.Errorf("Build() = %s, want %s", got, want)
	}
}

func TestU_Build_Conflicts(t *testing.T) {
	yes := true
	one := int64(1)
	tests := []struct {
		name string
		p    Param
		want error
	}{
		{"[Unit] Build: two kinds", Param{Bool: &yes, Null: true}, ErrConstructionConflict},
		{"[Unit] Build: empty", Param{}, ErrMissingField},
		{"[Unit] Build: int value and hex", Param{Int: &IntParam{Value: &one, Hex: "01"}}, ErrConstructionConflict},
		{"[Unit] Build: bitstr bin and hex", Param{BitStr: &BitParam{Bin: "1", Hex: "0080"}}, ErrConstructionConflict},
		{"[Unit] Build: tag without obj", Param{Tag: &TagParam{N: 0}}, ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.p)
			if !errors.Is(err, tt.want) {
				t.Errorf("Build() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestU_Dump(t *testing.T) {
	seq := NewSequence(MustOID("sha256"), NewOctetStringEncapsulating(NewSequence(NewInteger(5))))
	out, err := Dump(MustEncode(seq))
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	for _, want := range []string{
		"SEQUENCE\n",
		"  OBJECT IDENTIFIER 2.16.840.1.101.3.4.2.1 (sha256)\n",
		"  OCTET STRING (encapsulates)\n",
		"      INTEGER 05\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump() missing %q in:\n%s", want, out)
		}
	}
}
