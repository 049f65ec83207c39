package asn1der

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"gopkg.in/yaml.v3"
)

// Param is a declarative description of one value. Exactly one field
// must be set; Build reports ErrConstructionConflict otherwise. Params
// load from YAML, for example:
//
//	seq:
//	  - int: {value: 3}
//	  - oid: sha256
//	  - tag: {n: 0, explicit: true, obj: {utf8: hello}}
type Param struct {
	Bool      *bool       `yaml:"bool,omitempty"`
	Int       *IntParam   `yaml:"int,omitempty"`
	Enum      *IntParam   `yaml:"enum,omitempty"`
	BitStr    *BitParam   `yaml:"bitstr,omitempty"`
	OctStr    *OctParam   `yaml:"octstr,omitempty"`
	Null      bool        `yaml:"null,omitempty"`
	OID       string      `yaml:"oid,omitempty"`
	UTF8      *string     `yaml:"utf8,omitempty"`
	Numeric   *string     `yaml:"numstr,omitempty"`
	Printable *string     `yaml:"prnstr,omitempty"`
	Teletex   *string     `yaml:"telstr,omitempty"`
	IA5       *string     `yaml:"ia5str,omitempty"`
	Visible   *string     `yaml:"visstr,omitempty"`
	BMP       *string     `yaml:"bmpstr,omitempty"`
	UTCTime   *TimeParam  `yaml:"utctime,omitempty"`
	GenTime   *TimeParam  `yaml:"gentime,omitempty"`
	Seq       []Param     `yaml:"seq,omitempty"`
	Set       *SetParam   `yaml:"set,omitempty"`
	Tag       *TagParam   `yaml:"tag,omitempty"`
	DER       string      `yaml:"der,omitempty"`
	Value     Value       `yaml:"-"`
	seqSet    bool
}

// IntParam selects an INTEGER by value, hex magnitude or decimal big integer.
type IntParam struct {
	Value  *int64 `yaml:"value,omitempty"`
	Hex    string `yaml:"hex,omitempty"`
	BigInt string `yaml:"bigint,omitempty"`
}

// BitParam selects a BIT STRING by binary digits, bool array or content hex.
type BitParam struct {
	Bin   string `yaml:"bin,omitempty"`
	Bools []bool `yaml:"array,omitempty"`
	Hex   string `yaml:"hex,omitempty"`
	Obj   *Param `yaml:"obj,omitempty"`
}

// OctParam selects an OCTET STRING by hex, text or encapsulated value.
type OctParam struct {
	Hex string  `yaml:"hex,omitempty"`
	Str *string `yaml:"str,omitempty"`
	Obj *Param  `yaml:"obj,omitempty"`
}

// TimeParam gives a time as a literal digit string.
type TimeParam struct {
	Str string `yaml:"str"`
}

// SetParam lists SET members.
type SetParam struct {
	Items    []Param `yaml:"items"`
	Unsorted bool    `yaml:"unsorted,omitempty"`
}

// TagParam wraps a value in a context-specific tag. Explicit defaults to true.
type TagParam struct {
	N        int    `yaml:"n"`
	Explicit *bool  `yaml:"explicit,omitempty"`
	Obj      *Param `yaml:"obj"`
}

// UnmarshalYAML records whether "seq" was present, so an empty sequence
// is distinguishable from no sequence.
func (p *Param) UnmarshalYAML(node *yaml.Node) error {
	type plain Param
	var tmp plain
	if err := node.Decode(&tmp); err != nil {
		return err
	}
	*p = Param(tmp)
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "seq" {
				p.seqSet = true
			}
		}
	}
	return nil
}

// SeqParam returns a Param describing a SEQUENCE of items.
func SeqParam(items ...Param) Param {
	return Param{Seq: items, seqSet: true}
}

// LoadParam parses a YAML document into a Param.
func LoadParam(data []byte) (Param, error) {
	var p Param
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Param{}, newError("build", fmt.Errorf("%w: %v", ErrInvalidValue, err))
	}
	return p, nil
}

func (p *Param) kinds() []string {
	var k []string
	add := func(set bool, name string) {
		if set {
			k = append(k, name)
		}
	}
	add(p.Bool != nil, "bool")
	add(p.Int != nil, "int")
	add(p.Enum != nil, "enum")
	add(p.BitStr != nil, "bitstr")
	add(p.OctStr != nil, "octstr")
	add(p.Null, "null")
	add(p.OID != "", "oid")
	add(p.UTF8 != nil, "utf8")
	add(p.Numeric != nil, "numstr")
	add(p.Printable != nil, "prnstr")
	add(p.Teletex != nil, "telstr")
	add(p.IA5 != nil, "ia5str")
	add(p.Visible != nil, "visstr")
	add(p.BMP != nil, "bmpstr")
	add(p.UTCTime != nil, "utctime")
	add(p.GenTime != nil, "gentime")
	add(p.seqSet || p.Seq != nil, "seq")
	add(p.Set != nil, "set")
	add(p.Tag != nil, "tag")
	add(p.DER != "", "der")
	add(p.Value != nil, "value")
	return k
}

// Build turns a Param tree into a Value.
func Build(p Param) (Value, error) {
	kinds := p.kinds()
	switch len(kinds) {
	case 0:
		return nil, newError("build", fmt.Errorf("%w: no value kind given", ErrMissingField))
	case 1:
	default:
		return nil, newError("build", fmt.Errorf("%w: %s", ErrConstructionConflict, strings.Join(kinds, ", ")))
	}

	switch kinds[0] {
	case "bool":
		return NewBoolean(*p.Bool), nil
	case "int":
		v, err := p.Int.big()
		if err != nil {
			return nil, err
		}
		return &Integer{v: v}, nil
	case "enum":
		v, err := p.Enum.big()
		if err != nil {
			return nil, err
		}
		return &Enumerated{v: v}, nil
	case "bitstr":
		return p.BitStr.build()
	case "octstr":
		return p.OctStr.build()
	case "null":
		return NewNull(), nil
	case "oid":
		return NewObjectIdentifierName(p.OID)
	case "utf8":
		return NewUTF8String(*p.UTF8)
	case "numstr":
		return NewNumericString(*p.Numeric)
	case "prnstr":
		return NewPrintableString(*p.Printable)
	case "telstr":
		return NewTeletexString(*p.Teletex)
	case "ia5str":
		return NewIA5String(*p.IA5)
	case "visstr":
		return NewVisibleString(*p.Visible)
	case "bmpstr":
		return NewBMPString(*p.BMP)
	case "utctime":
		return NewUTCTimeString(p.UTCTime.Str)
	case "gentime":
		return NewGeneralizedTimeString(p.GenTime.Str)
	case "seq":
		items, err := buildAll(p.Seq)
		if err != nil {
			return nil, err
		}
		return &Sequence{items: items}, nil
	case "set":
		items, err := buildAll(p.Set.Items)
		if err != nil {
			return nil, err
		}
		return &Set{items: items, unsorted: p.Set.Unsorted}, nil
	case "tag":
		if p.Tag.Obj == nil {
			return nil, newError("build", fmt.Errorf("%w: tag without obj", ErrMissingField))
		}
		inner, err := Build(*p.Tag.Obj)
		if err != nil {
			return nil, err
		}
		explicit := p.Tag.Explicit == nil || *p.Tag.Explicit
		return newTagged(p.Tag.N, explicit, inner)
	case "der":
		return NewRawHex(p.DER)
	default:
		return p.Value, nil
	}
}

func buildAll(ps []Param) ([]Value, error) {
	out := make([]Value, 0, len(ps))
	for _, c := range ps {
		v, err := Build(c)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (ip *IntParam) big() (*big.Int, error) {
	n := 0
	if ip.Value != nil {
		n++
	}
	if ip.Hex != "" {
		n++
	}
	if ip.BigInt != "" {
		n++
	}
	switch {
	case n == 0:
		return nil, newError("build", fmt.Errorf("%w: integer needs value, hex or bigint", ErrMissingField))
	case n > 1:
		return nil, newError("build", fmt.Errorf("%w: integer value, hex and bigint are exclusive", ErrConstructionConflict))
	case ip.Value != nil:
		return big.NewInt(*ip.Value), nil
	case ip.Hex != "":
		v, err := parseHexMagnitude(ip.Hex)
		if err != nil {
			return nil, newError("build", err)
		}
		return v, nil
	}
	v, ok := new(big.Int).SetString(ip.BigInt, 10)
	if !ok {
		return nil, newError("build", fmt.Errorf("%w: bad decimal %q", ErrInvalidValue, ip.BigInt))
	}
	return v, nil
}

func (bp *BitParam) build() (Value, error) {
	n := 0
	for _, set := range []bool{bp.Bin != "", bp.Bools != nil, bp.Hex != "", bp.Obj != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return nil, newError("build", fmt.Errorf("%w: bitstr takes exactly one of bin, array, hex, obj", ErrConstructionConflict))
	}
	switch {
	case bp.Bin != "":
		return NewBitStringFromBinary(bp.Bin)
	case bp.Bools != nil:
		return NewBitStringFromBools(bp.Bools), nil
	case bp.Hex != "":
		return NewBitStringHex(bp.Hex)
	}
	inner, err := Build(*bp.Obj)
	if err != nil {
		return nil, err
	}
	return NewBitStringEncapsulating(inner), nil
}

func (op *OctParam) build() (Value, error) {
	n := 0
	for _, set := range []bool{op.Hex != "", op.Str != nil, op.Obj != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return nil, newError("build", fmt.Errorf("%w: octstr takes exactly one of hex, str, obj", ErrConstructionConflict))
	}
	switch {
	case op.Hex != "":
		data, err := hex.DecodeString(op.Hex)
		if err != nil {
			return nil, newError("build", fmt.Errorf("%w: bad hex", ErrInvalidValue))
		}
		return NewOctetString(data), nil
	case op.Str != nil:
		return NewOctetString([]byte(*op.Str)), nil
	}
	inner, err := Build(*op.Obj)
	if err != nil {
		return nil, err
	}
	return NewOctetStringEncapsulating(inner), nil
}
