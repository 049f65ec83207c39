package x509cert

import (
	"encoding/hex"
	"fmt"
	"net"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
	"golang.org/x/net/idna"

	"github.com/remiblancher/qasn1/pkg/x509name"
)

// GeneralName kinds. Choices without a label decode as KindOther.
const (
	KindMail  = "MAIL"
	KindDNS   = "DNS"
	KindDN    = "DN"
	KindURI   = "URI"
	KindIP    = "IP"
	KindOther = "OTHER"
)

// generalNameKinds maps the GeneralName CHOICE index to its label.
var generalNameKinds = map[int]string{
	1: KindMail,
	2: KindDNS,
	4: KindDN,
	6: KindURI,
	7: KindIP,
}

// GeneralName is one decoded GeneralName.
type GeneralName struct {
	Kind  string
	Tag   int    // CHOICE index
	Value string // text form; hex of Raw for KindOther
	Raw   []byte // complete TLV
}

// String returns "KIND:value".
func (g GeneralName) String() string {
	if g.Kind == KindOther {
		return fmt.Sprintf("%s[%d]:%s", KindOther, g.Tag, g.Value)
	}
	return g.Kind + ":" + g.Value
}

// Unicode is String with IDNA A-labels in DNS names rendered as Unicode.
func (g GeneralName) Unicode() string {
	if g.Kind != KindDNS {
		return g.String()
	}
	u, err := idna.ToUnicode(g.Value)
	if err != nil {
		return g.String()
	}
	return KindDNS + ":" + u
}

// parseGeneralNames decodes the content of a GeneralNames SEQUENCE.
func parseGeneralNames(seq cryptobyte.String) ([]GeneralName, error) {
	var out []GeneralName
	for !seq.Empty() {
		var (
			elem cryptobyte.String
			tag  cbasn1.Tag
		)
		if !seq.ReadAnyASN1Element(&elem, &tag) {
			return nil, fmt.Errorf("%w: bad GeneralName", ErrMalformedExtension)
		}
		g, err := parseGeneralName(elem, tag)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func parseGeneralName(elem cryptobyte.String, tag cbasn1.Tag) (GeneralName, error) {
	if uint8(tag)&0xc0 != 0x80 {
		return GeneralName{}, fmt.Errorf("%w: GeneralName tag 0x%02x is not context-specific", ErrMalformedExtension, uint8(tag))
	}
	g := GeneralName{Tag: int(uint8(tag) & 0x1f), Raw: []byte(elem)}

	var content cryptobyte.String
	if !elem.ReadAnyASN1(&content, &tag) {
		return GeneralName{}, fmt.Errorf("%w: bad GeneralName", ErrMalformedExtension)
	}

	kind, ok := generalNameKinds[g.Tag]
	if !ok {
		g.Kind, g.Value = KindOther, hex.EncodeToString(g.Raw)
		return g, nil
	}
	g.Kind = kind

	switch kind {
	case KindMail, KindDNS, KindURI:
		g.Value = string(content)
	case KindDN:
		name, err := x509name.Decode(content)
		if err != nil {
			return GeneralName{}, fmt.Errorf("%w: directoryName: %v", ErrMalformedExtension, err)
		}
		g.Value = name.String()
	case KindIP:
		switch len(content) {
		case net.IPv4len, net.IPv6len:
			g.Value = net.IP(content).String()
		default:
			// Name constraints carry address plus mask.
			g.Value = hex.EncodeToString(content)
		}
	}
	return g, nil
}
