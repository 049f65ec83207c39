package asn1der

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/remiblancher/qasn1/pkg/oid"
	"github.com/remiblancher/qasn1/pkg/tlv"
)

// Dump renders a DER buffer as an indented tree, one TLV per line.
// OCTET STRING and BIT STRING contents that hold a well-formed TLV are
// expanded as well.
func Dump(der []byte) (string, error) {
	if err := tlv.Check(der); err != nil {
		return "", newError("dump", err)
	}
	var sb strings.Builder
	dumpAt(&sb, der, 0, 0)
	return sb.String(), nil
}

func dumpAt(sb *strings.Builder, der []byte, off, depth int) {
	info, _ := tlv.Header(der, off)
	indent := strings.Repeat("  ", depth)
	content := der[info.ValueOffset():info.End()]
	name := tagName(info.Tag)

	if info.IsConstructed() {
		fmt.Fprintf(sb, "%s%s\n", indent, name)
		offs, _ := tlv.Children(der, off)
		for _, c := range offs {
			dumpAt(sb, der, c, depth+1)
		}
		return
	}

	switch info.Tag {
	case tlv.TagBoolean:
		fmt.Fprintf(sb, "%s%s %v\n", indent, name, len(content) == 1 && content[0] != 0)
	case tlv.TagInteger, tlv.TagEnumerated:
		fmt.Fprintf(sb, "%s%s %s\n", indent, name, shortHex(content))
	case tlv.TagOID:
		dotted, err := DecodeOIDContent(content)
		if err != nil {
			fmt.Fprintf(sb, "%s%s <bad> %s\n", indent, name, shortHex(content))
			return
		}
		if n, ok := oid.Name(dotted); ok {
			fmt.Fprintf(sb, "%s%s %s (%s)\n", indent, name, dotted, n)
		} else if n, ok := oid.AttributeShortName(dotted); ok {
			fmt.Fprintf(sb, "%s%s %s (%s)\n", indent, name, dotted, n)
		} else {
			fmt.Fprintf(sb, "%s%s %s\n", indent, name, dotted)
		}
	case tlv.TagNull:
		fmt.Fprintf(sb, "%s%s\n", indent, name)
	case tlv.TagUTCTime, tlv.TagGeneralizedTime:
		fmt.Fprintf(sb, "%s%s %s\n", indent, name, content)
	case tlv.TagOctetString:
		if len(content) > 1 && tlv.Check(content) == nil && isExpandable(content[0]) {
			fmt.Fprintf(sb, "%s%s (encapsulates)\n", indent, name)
			dumpAt(sb, content, 0, depth+1)
			return
		}
		fmt.Fprintf(sb, "%s%s %s\n", indent, name, shortHex(content))
	case tlv.TagBitString:
		if len(content) > 2 && content[0] == 0 && tlv.Check(content[1:]) == nil && isExpandable(content[1]) {
			fmt.Fprintf(sb, "%s%s (encapsulates)\n", indent, name)
			dumpAt(sb, content[1:], 0, depth+1)
			return
		}
		fmt.Fprintf(sb, "%s%s %s\n", indent, name, shortHex(content))
	default:
		if IsStringTag(info.Tag) {
			if s, err := DecodeString(info.Tag, content); err == nil {
				fmt.Fprintf(sb, "%s%s '%s'\n", indent, name, s)
				return
			}
		}
		fmt.Fprintf(sb, "%s%s %s\n", indent, name, shortHex(content))
	}
}

func isExpandable(tag byte) bool {
	return tag == tlv.TagSequence || tag == tlv.TagSet
}

func shortHex(b []byte) string {
	if len(b) > 32 {
		return hex.EncodeToString(b[:32]) + "..."
	}
	return hex.EncodeToString(b)
}

func tagName(tag byte) string {
	if tag&0xc0 == tlv.ClassContext {
		return fmt.Sprintf("[%d]", tag&0x1f)
	}
	if tag&0xc0 != 0 {
		return fmt.Sprintf("tag 0x%02x", tag)
	}
	switch tag {
	case tlv.TagBoolean:
		return "BOOLEAN"
	case tlv.TagInteger:
		return "INTEGER"
	case tlv.TagBitString:
		return "BIT STRING"
	case tlv.TagOctetString:
		return "OCTET STRING"
	case tlv.TagNull:
		return "NULL"
	case tlv.TagOID:
		return "OBJECT IDENTIFIER"
	case tlv.TagEnumerated:
		return "ENUMERATED"
	case tlv.TagUTCTime:
		return "UTCTime"
	case tlv.TagGeneralizedTime:
		return "GeneralizedTime"
	case tlv.TagSequence:
		return "SEQUENCE"
	case tlv.TagSet:
		return "SET"
	}
	if IsStringTag(tag) {
		return StringTypeName(tag)
	}
	return fmt.Sprintf("tag 0x%02x", tag)
}
