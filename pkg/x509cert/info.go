package x509cert

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/hex"
	"fmt"
	"strings"

	qcrypto "github.com/remiblancher/qasn1/pkg/crypto"
)

// Info returns a fixed-layout text report: basic fields, the subject
// public key, every extension in certificate order, then the outer
// signature algorithm and value.
func (c *Certificate) Info() (string, error) {
	var sb strings.Builder

	sb.WriteString("Basic Fields\n")
	fmt.Fprintf(&sb, "  serial number: %s\n", c.SerialHex())
	fmt.Fprintf(&sb, "  signature algorithm: %s\n", c.SignatureAlgorithm())
	fmt.Fprintf(&sb, "  issuer: %s\n", c.IssuerString())
	fmt.Fprintf(&sb, "  notBefore: %s\n", c.NotBefore())
	fmt.Fprintf(&sb, "  notAfter: %s\n", c.NotAfter())
	fmt.Fprintf(&sb, "  subject: %s\n", c.SubjectString())
	sb.WriteString("  subject public key info:\n")
	c.writePublicKey(&sb)

	exts, err := c.Extensions()
	if err != nil {
		return "", err
	}
	if len(exts) > 0 {
		sb.WriteString("X509v3 Extensions:\n")
		for _, e := range exts {
			crit := " "
			if e.Critical {
				crit = " CRITICAL"
			}
			fmt.Fprintf(&sb, "  %s%s:\n", e.Name(), crit)
			lines, err := c.extensionLines(e)
			if err != nil {
				return "", err
			}
			for _, l := range lines {
				fmt.Fprintf(&sb, "    %s\n", l)
			}
		}
	}

	fmt.Fprintf(&sb, "signature algorithm: %s\n", c.sigAlg.Name())
	fmt.Fprintf(&sb, "signature: %s\n", c.SignatureValueHex())
	return sb.String(), nil
}

func (c *Certificate) writePublicKey(sb *strings.Builder) {
	pub, err := c.PublicKey()
	if err != nil {
		fmt.Fprintf(sb, "    key algorithm: %s\n", c.PublicKeyAlgorithm())
		return
	}
	kt, _ := qcrypto.KeyTypeOf(pub)
	fmt.Fprintf(sb, "    key algorithm: %s\n", kt)
	switch k := pub.(type) {
	case *rsa.PublicKey:
		fmt.Fprintf(sb, "    n=%s\n", k.N.Text(16))
		fmt.Fprintf(sb, "    e=%x\n", k.E)
	case *ecdsa.PublicKey:
		fmt.Fprintf(sb, "    curve: %s\n", k.Curve.Params().Name)
	}
}

// extensionLines renders one extension value for Info.
func (c *Certificate) extensionLines(e Extension) ([]string, error) {
	switch e.OID {
	case OIDBasicConstraints:
		bc, err := c.BasicConstraints()
		if err != nil {
			return nil, err
		}
		line := fmt.Sprintf("cA=%t", bc.CA)
		if bc.PathLen >= 0 {
			line += fmt.Sprintf(", pathLen=%d", bc.PathLen)
		}
		return []string{line}, nil

	case OIDKeyUsage:
		ku, err := c.KeyUsage()
		if err != nil {
			return nil, err
		}
		return []string{ku.String()}, nil

	case OIDSubjectKeyIdentifier:
		kid, err := c.SubjectKeyIdentifier()
		if err != nil {
			return nil, err
		}
		return []string{hex.EncodeToString(kid)}, nil

	case OIDAuthorityKeyIdentifier:
		aki, err := c.AuthorityKeyIdentifier()
		if err != nil {
			return nil, err
		}
		var lines []string
		if aki.KeyID != nil {
			lines = append(lines, "kid="+hex.EncodeToString(aki.KeyID))
		}
		for _, g := range aki.Issuer {
			lines = append(lines, "issuer="+g.String())
		}
		if aki.SerialHex != "" {
			lines = append(lines, "sn="+aki.SerialHex)
		}
		return lines, nil

	case OIDExtKeyUsage:
		eku, err := c.ExtKeyUsage()
		if err != nil {
			return nil, err
		}
		return []string{strings.Join(eku, ", ")}, nil

	case OIDSubjectAltName, OIDIssuerAltName, OIDCRLDistributionPoints:
		var (
			names []GeneralName
			err   error
		)
		switch e.OID {
		case OIDSubjectAltName:
			names, err = c.SubjectAltNames()
		case OIDIssuerAltName:
			names, err = c.IssuerAltNames()
		default:
			names, err = c.CRLDistributionPoints()
		}
		if err != nil {
			return nil, err
		}
		return []string{joinNames(names)}, nil

	case OIDAuthorityInfoAccess:
		aia, err := c.AuthorityInfoAccess()
		if err != nil {
			return nil, err
		}
		lines := make([]string, 0, len(aia))
		for _, ad := range aia {
			lines = append(lines, ad.Method+": "+ad.Location.String())
		}
		return lines, nil

	case OIDCertificatePolicies:
		pols, err := c.CertificatePolicies()
		if err != nil {
			return nil, err
		}
		var lines []string
		for _, p := range pols {
			lines = append(lines, "policy oid: "+p.OID)
			for _, u := range p.CPS {
				lines = append(lines, "cps: "+u)
			}
			for _, n := range p.UserNotice {
				lines = append(lines, "unotice: "+n)
			}
		}
		return lines, nil
	}
	return []string{hex.EncodeToString(e.Bytes())}, nil
}

func joinNames(names []GeneralName) string {
	parts := make([]string, len(names))
	for i, g := range names {
		parts[i] = g.String()
	}
	return strings.Join(parts, ", ")
}
