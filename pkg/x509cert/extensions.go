package x509cert

import (
	encasn1 "encoding/asn1"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/remiblancher/qasn1/pkg/asn1der"
	"github.com/remiblancher/qasn1/pkg/oid"
	"github.com/remiblancher/qasn1/pkg/tlv"
)

// Extension OIDs with named accessors.
const (
	OIDSubjectKeyIdentifier   = "2.5.29.14"
	OIDKeyUsage               = "2.5.29.15"
	OIDSubjectAltName         = "2.5.29.17"
	OIDIssuerAltName          = "2.5.29.18"
	OIDBasicConstraints       = "2.5.29.19"
	OIDCRLDistributionPoints  = "2.5.29.31"
	OIDCertificatePolicies    = "2.5.29.32"
	OIDAuthorityKeyIdentifier = "2.5.29.35"
	OIDExtKeyUsage            = "2.5.29.37"
	OIDAuthorityInfoAccess    = "1.3.6.1.5.5.7.1.1"
)

// Extension is one entry of the extension index. Value references the
// extnValue content inside the certificate buffer.
type Extension struct {
	OID      string
	Critical bool
	Value    tlv.Span
}

// Name returns the registered extension name or the dotted OID.
func (e Extension) Name() string { return oid.NameOrOID(e.OID) }

// Bytes returns the extnValue content (the DER of the extension value).
func (e Extension) Bytes() []byte { return e.Value.Bytes() }

// Extensions returns the extension index in certificate order. The index
// is built on first call.
func (c *Certificate) Extensions() ([]Extension, error) {
	c.extOnce.Do(func() { c.exts, c.extErr = c.indexExtensions() })
	return c.exts, c.extErr
}

func (c *Certificate) indexExtensions() ([]Extension, error) {
	if c.extBlock.IsZero() {
		return nil, nil
	}
	der := c.raw
	seqOff, err := tlv.Child(der, c.extBlock.Off, 0)
	if err != nil {
		return nil, parseErr("extensions", err)
	}
	if der[seqOff] != tlv.TagSequence {
		return nil, malformed("extensions", "not a SEQUENCE")
	}
	entries, err := tlv.Children(der, seqOff)
	if err != nil {
		return nil, parseErr("extensions", err)
	}

	exts := make([]Extension, 0, len(entries))
	for _, e := range entries {
		parts, err := tlv.Children(der, e)
		if err != nil {
			return nil, parseErr("extensions", err)
		}
		if len(parts) < 2 || len(parts) > 3 || der[parts[0]] != tlv.TagOID {
			return nil, malformed("extensions", "bad Extension at offset %d", e)
		}
		content, err := tlv.Value(der, parts[0])
		if err != nil {
			return nil, parseErr("extensions", err)
		}
		dotted, err := asn1der.DecodeOIDContent(content)
		if err != nil {
			return nil, parseErr("extensions", err)
		}

		ext := Extension{OID: dotted}
		valOff := parts[1]
		if len(parts) == 3 {
			b, err := tlv.Value(der, parts[1])
			if err != nil || der[parts[1]] != tlv.TagBoolean || len(b) != 1 {
				return nil, malformed("extensions", "bad critical flag for %s", dotted)
			}
			ext.Critical = b[0] != 0
			valOff = parts[2]
		}
		if der[valOff] != tlv.TagOctetString {
			return nil, malformed("extensions", "extnValue of %s is not an OCTET STRING", dotted)
		}
		if ext.Value, err = tlv.ValueSpanOf(der, valOff); err != nil {
			return nil, parseErr("extensions", err)
		}
		exts = append(exts, ext)
	}
	return exts, nil
}

// ExtInfo returns the index entry for an extension given by name or
// dotted OID, or nil when the certificate does not carry it.
func (c *Certificate) ExtInfo(nameOrOID string) (*Extension, error) {
	dotted, ok := oid.Resolve(nameOrOID)
	if !ok {
		return nil, &CertError{Op: "extension", Field: nameOrOID, Err: fmt.Errorf("%w: unknown extension name", asn1der.ErrUnsupportedType)}
	}
	return c.extension(dotted)
}

func (c *Certificate) extension(dotted string) (*Extension, error) {
	exts, err := c.Extensions()
	if err != nil {
		return nil, err
	}
	for i := range exts {
		if exts[i].OID == dotted {
			return &exts[i], nil
		}
	}
	return nil, nil
}

// extValue returns a cryptobyte reader over an extension value, or false
// when the extension is absent.
func (c *Certificate) extValue(dotted string) (cryptobyte.String, bool, error) {
	ext, err := c.extension(dotted)
	if err != nil || ext == nil {
		return nil, false, err
	}
	return cryptobyte.String(ext.Bytes()), true, nil
}

func extErr(dotted string, format string, args ...any) error {
	return &CertError{Op: "extension", Field: oid.NameOrOID(dotted), Err: fmt.Errorf("%w: "+format, append([]any{ErrMalformedExtension}, args...)...)}
}

// BasicConstraints is the decoded basicConstraints extension.
type BasicConstraints struct {
	CA      bool
	PathLen int // -1 when absent
}

// BasicConstraints returns the basicConstraints extension, or nil.
func (c *Certificate) BasicConstraints() (*BasicConstraints, error) {
	in, ok, err := c.extValue(OIDBasicConstraints)
	if !ok {
		return nil, err
	}
	var seq cryptobyte.String
	if !in.ReadASN1(&seq, cbasn1.SEQUENCE) || !in.Empty() {
		return nil, extErr(OIDBasicConstraints, "not a SEQUENCE")
	}
	bc := &BasicConstraints{PathLen: -1}
	if seq.PeekASN1Tag(cbasn1.BOOLEAN) && !seq.ReadASN1Boolean(&bc.CA) {
		return nil, extErr(OIDBasicConstraints, "bad cA")
	}
	if seq.PeekASN1Tag(cbasn1.INTEGER) && !seq.ReadASN1Integer(&bc.PathLen) {
		return nil, extErr(OIDBasicConstraints, "bad pathLenConstraint")
	}
	if !seq.Empty() {
		return nil, extErr(OIDBasicConstraints, "trailing data")
	}
	return bc, nil
}

// keyUsageNames is indexed by KeyUsage bit position.
var keyUsageNames = []string{
	"digitalSignature",
	"nonRepudiation",
	"keyEncipherment",
	"dataEncipherment",
	"keyAgreement",
	"keyCertSign",
	"cRLSign",
	"encipherOnly",
	"decipherOnly",
}

// KeyUsage is the decoded keyUsage extension.
type KeyUsage struct {
	Bits  string   // one '0'/'1' per bit, e.g. "100001"
	Names []string // names of the set bits
}

// String returns the comma-joined usage names.
func (k *KeyUsage) String() string { return strings.Join(k.Names, ",") }

// Has reports whether the named usage bit is set.
func (k *KeyUsage) Has(name string) bool {
	for _, n := range k.Names {
		if n == name {
			return true
		}
	}
	return false
}

// KeyUsage returns the keyUsage extension, or nil.
func (c *Certificate) KeyUsage() (*KeyUsage, error) {
	in, ok, err := c.extValue(OIDKeyUsage)
	if !ok {
		return nil, err
	}
	var bs encasn1.BitString
	if !in.ReadASN1BitString(&bs) || !in.Empty() {
		return nil, extErr(OIDKeyUsage, "not a BIT STRING")
	}
	ku := &KeyUsage{}
	var sb strings.Builder
	for i := 0; i < bs.BitLength; i++ {
		if bs.At(i) == 0 {
			sb.WriteByte('0')
			continue
		}
		sb.WriteByte('1')
		if i < len(keyUsageNames) {
			ku.Names = append(ku.Names, keyUsageNames[i])
		} else {
			ku.Names = append(ku.Names, fmt.Sprintf("bit%d", i))
		}
	}
	ku.Bits = sb.String()
	return ku, nil
}

// SubjectKeyIdentifier returns the subjectKeyIdentifier, or nil.
func (c *Certificate) SubjectKeyIdentifier() ([]byte, error) {
	in, ok, err := c.extValue(OIDSubjectKeyIdentifier)
	if !ok {
		return nil, err
	}
	var kid cryptobyte.String
	if !in.ReadASN1(&kid, cbasn1.OCTET_STRING) || !in.Empty() {
		return nil, extErr(OIDSubjectKeyIdentifier, "not an OCTET STRING")
	}
	return []byte(kid), nil
}

// AuthorityKeyIdentifier is the decoded authorityKeyIdentifier extension.
type AuthorityKeyIdentifier struct {
	KeyID     []byte
	Issuer    []GeneralName
	SerialHex string
}

// AuthorityKeyIdentifier returns the authorityKeyIdentifier, or nil.
func (c *Certificate) AuthorityKeyIdentifier() (*AuthorityKeyIdentifier, error) {
	in, ok, err := c.extValue(OIDAuthorityKeyIdentifier)
	if !ok {
		return nil, err
	}
	var seq cryptobyte.String
	if !in.ReadASN1(&seq, cbasn1.SEQUENCE) || !in.Empty() {
		return nil, extErr(OIDAuthorityKeyIdentifier, "not a SEQUENCE")
	}

	aki := &AuthorityKeyIdentifier{}
	var (
		field   cryptobyte.String
		present bool
	)
	if !seq.ReadOptionalASN1(&field, &present, cbasn1.Tag(0).ContextSpecific()) {
		return nil, extErr(OIDAuthorityKeyIdentifier, "bad keyIdentifier")
	}
	if present {
		aki.KeyID = []byte(field)
	}
	if !seq.ReadOptionalASN1(&field, &present, cbasn1.Tag(1).ContextSpecific().Constructed()) {
		return nil, extErr(OIDAuthorityKeyIdentifier, "bad authorityCertIssuer")
	}
	if present {
		if aki.Issuer, err = parseGeneralNames(field); err != nil {
			return nil, extErr(OIDAuthorityKeyIdentifier, "%v", err)
		}
	}
	if !seq.ReadOptionalASN1(&field, &present, cbasn1.Tag(2).ContextSpecific()) {
		return nil, extErr(OIDAuthorityKeyIdentifier, "bad authorityCertSerialNumber")
	}
	if present {
		aki.SerialHex = hex.EncodeToString(field)
	}
	if !seq.Empty() {
		return nil, extErr(OIDAuthorityKeyIdentifier, "trailing data")
	}
	return aki, nil
}

// ExtKeyUsage returns the extKeyUsage purposes as names or dotted OIDs,
// or nil.
func (c *Certificate) ExtKeyUsage() ([]string, error) {
	in, ok, err := c.extValue(OIDExtKeyUsage)
	if !ok {
		return nil, err
	}
	var seq cryptobyte.String
	if !in.ReadASN1(&seq, cbasn1.SEQUENCE) || !in.Empty() {
		return nil, extErr(OIDExtKeyUsage, "not a SEQUENCE")
	}
	out := []string{}
	for !seq.Empty() {
		var o encasn1.ObjectIdentifier
		if !seq.ReadASN1ObjectIdentifier(&o) {
			return nil, extErr(OIDExtKeyUsage, "bad KeyPurposeId")
		}
		out = append(out, oid.NameOrOID(o.String()))
	}
	return out, nil
}

// SubjectAltNames returns the subjectAltName entries, or nil.
func (c *Certificate) SubjectAltNames() ([]GeneralName, error) {
	return c.generalNamesExt(OIDSubjectAltName)
}

// IssuerAltNames returns the issuerAltName entries, or nil.
func (c *Certificate) IssuerAltNames() ([]GeneralName, error) {
	return c.generalNamesExt(OIDIssuerAltName)
}

func (c *Certificate) generalNamesExt(dotted string) ([]GeneralName, error) {
	in, ok, err := c.extValue(dotted)
	if !ok {
		return nil, err
	}
	var seq cryptobyte.String
	if !in.ReadASN1(&seq, cbasn1.SEQUENCE) || !in.Empty() {
		return nil, extErr(dotted, "not a SEQUENCE")
	}
	names, err := parseGeneralNames(seq)
	if err != nil {
		return nil, extErr(dotted, "%v", err)
	}
	if names == nil {
		names = []GeneralName{}
	}
	return names, nil
}

// CRLDistributionPoints returns the fullName entries of every
// distribution point, or nil.
func (c *Certificate) CRLDistributionPoints() ([]GeneralName, error) {
	in, ok, err := c.extValue(OIDCRLDistributionPoints)
	if !ok {
		return nil, err
	}
	var seq cryptobyte.String
	if !in.ReadASN1(&seq, cbasn1.SEQUENCE) || !in.Empty() {
		return nil, extErr(OIDCRLDistributionPoints, "not a SEQUENCE")
	}

	out := []GeneralName{}
	for !seq.Empty() {
		var dp cryptobyte.String
		if !seq.ReadASN1(&dp, cbasn1.SEQUENCE) {
			return nil, extErr(OIDCRLDistributionPoints, "bad DistributionPoint")
		}
		var (
			dpName, full cryptobyte.String
			present      bool
		)
		if !dp.ReadOptionalASN1(&dpName, &present, cbasn1.Tag(0).ContextSpecific().Constructed()) {
			return nil, extErr(OIDCRLDistributionPoints, "bad distributionPoint")
		}
		if !present {
			continue
		}
		if !dpName.ReadOptionalASN1(&full, &present, cbasn1.Tag(0).ContextSpecific().Constructed()) {
			return nil, extErr(OIDCRLDistributionPoints, "bad fullName")
		}
		if !present {
			continue // nameRelativeToCRLIssuer
		}
		names, err := parseGeneralNames(full)
		if err != nil {
			return nil, extErr(OIDCRLDistributionPoints, "%v", err)
		}
		out = append(out, names...)
	}
	return out, nil
}

// AccessDescription is one authorityInfoAccess entry.
type AccessDescription struct {
	Method   string // "ocsp", "caIssuers" or dotted OID
	Location GeneralName
}

// AuthorityInfoAccess returns the authorityInfoAccess entries, or nil.
func (c *Certificate) AuthorityInfoAccess() ([]AccessDescription, error) {
	in, ok, err := c.extValue(OIDAuthorityInfoAccess)
	if !ok {
		return nil, err
	}
	var seq cryptobyte.String
	if !in.ReadASN1(&seq, cbasn1.SEQUENCE) || !in.Empty() {
		return nil, extErr(OIDAuthorityInfoAccess, "not a SEQUENCE")
	}

	out := []AccessDescription{}
	for !seq.Empty() {
		var (
			ad   cryptobyte.String
			o    encasn1.ObjectIdentifier
			elem cryptobyte.String
			tag  cbasn1.Tag
		)
		if !seq.ReadASN1(&ad, cbasn1.SEQUENCE) ||
			!ad.ReadASN1ObjectIdentifier(&o) ||
			!ad.ReadAnyASN1Element(&elem, &tag) {
			return nil, extErr(OIDAuthorityInfoAccess, "bad AccessDescription")
		}
		loc, err := parseGeneralName(elem, tag)
		if err != nil {
			return nil, extErr(OIDAuthorityInfoAccess, "%v", err)
		}
		out = append(out, AccessDescription{Method: oid.NameOrOID(o.String()), Location: loc})
	}
	return out, nil
}

// PolicyInformation is one certificatePolicies entry with its CPS URIs
// and user notice texts.
type PolicyInformation struct {
	OID        string
	CPS        []string
	UserNotice []string
}

// CertificatePolicies returns the certificatePolicies entries, or nil.
func (c *Certificate) CertificatePolicies() ([]PolicyInformation, error) {
	in, ok, err := c.extValue(OIDCertificatePolicies)
	if !ok {
		return nil, err
	}
	var seq cryptobyte.String
	if !in.ReadASN1(&seq, cbasn1.SEQUENCE) || !in.Empty() {
		return nil, extErr(OIDCertificatePolicies, "not a SEQUENCE")
	}

	out := []PolicyInformation{}
	for !seq.Empty() {
		var (
			pi, quals cryptobyte.String
			o         encasn1.ObjectIdentifier
			present   bool
		)
		if !seq.ReadASN1(&pi, cbasn1.SEQUENCE) ||
			!pi.ReadASN1ObjectIdentifier(&o) ||
			!pi.ReadOptionalASN1(&quals, &present, cbasn1.SEQUENCE) {
			return nil, extErr(OIDCertificatePolicies, "bad PolicyInformation")
		}
		p := PolicyInformation{OID: o.String()}
		for present && !quals.Empty() {
			if err := readPolicyQualifier(&quals, &p); err != nil {
				return nil, extErr(OIDCertificatePolicies, "%v", err)
			}
		}
		out = append(out, p)
	}
	return out, nil
}

const (
	oidQualifierCPS     = "1.3.6.1.5.5.7.2.1"
	oidQualifierUNotice = "1.3.6.1.5.5.7.2.2"
)

func readPolicyQualifier(quals *cryptobyte.String, p *PolicyInformation) error {
	var (
		pq   cryptobyte.String
		o    encasn1.ObjectIdentifier
		body cryptobyte.String
		tag  cbasn1.Tag
	)
	if !quals.ReadASN1(&pq, cbasn1.SEQUENCE) ||
		!pq.ReadASN1ObjectIdentifier(&o) ||
		!pq.ReadAnyASN1(&body, &tag) {
		return fmt.Errorf("bad PolicyQualifierInfo")
	}

	switch o.String() {
	case oidQualifierCPS:
		if tag != cbasn1.IA5String {
			return fmt.Errorf("cPSuri is not an IA5String")
		}
		p.CPS = append(p.CPS, string(body))
	case oidQualifierUNotice:
		if tag != cbasn1.SEQUENCE {
			return fmt.Errorf("userNotice is not a SEQUENCE")
		}
		// noticeRef is skipped; only explicitText is surfaced.
		if body.PeekASN1Tag(cbasn1.SEQUENCE) && !body.SkipASN1(cbasn1.SEQUENCE) {
			return fmt.Errorf("bad noticeRef")
		}
		if body.Empty() {
			return nil
		}
		var text cryptobyte.String
		if !body.ReadAnyASN1(&text, &tag) {
			return fmt.Errorf("bad explicitText")
		}
		s, err := asn1der.DecodeString(uint8(tag), text)
		if err != nil {
			return err
		}
		p.UserNotice = append(p.UserNotice, s)
	}
	return nil
}
