package x509cert

import (
	"encoding/hex"
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
)

// Summary is a flat, serializable view of a certificate used by the
// JSON and CBOR report formats.
type Summary struct {
	Version            int              `json:"version"`
	Serial             string           `json:"serial"`
	SignatureAlgorithm string           `json:"signature_algorithm"`
	Issuer             string           `json:"issuer"`
	Subject            string           `json:"subject"`
	NotBefore          string           `json:"not_before"`
	NotAfter           string           `json:"not_after"`
	PublicKeyAlgorithm string           `json:"public_key_algorithm"`
	IsCA               bool             `json:"is_ca,omitempty"`
	PathLen            *int             `json:"path_len,omitempty"`
	KeyUsage           []string         `json:"key_usage,omitempty"`
	ExtKeyUsage        []string         `json:"ext_key_usage,omitempty"`
	SubjectAltNames    []string         `json:"subject_alt_names,omitempty"`
	SubjectKeyID       string           `json:"subject_key_id,omitempty"`
	AuthorityKeyID     string           `json:"authority_key_id,omitempty"`
	CRLDistribution    []string         `json:"crl_distribution_points,omitempty"`
	OCSPServers        []string         `json:"ocsp_servers,omitempty"`
	CAIssuers          []string         `json:"ca_issuers,omitempty"`
	Policies           []string         `json:"policies,omitempty"`
	Extensions         []ExtensionBrief `json:"extensions,omitempty"`
	Signature          string           `json:"signature"`
}

// ExtensionBrief lists one extension in a Summary.
type ExtensionBrief struct {
	Name     string `json:"name"`
	OID      string `json:"oid"`
	Critical bool   `json:"critical,omitempty"`
}

// SummaryOptions controls how names are rendered in a Summary.
type SummaryOptions struct {
	// Unicode renders IDNA DNS names in Unicode form.
	Unicode bool
}

// Summary builds the serializable view of the certificate.
func (c *Certificate) Summary(opts SummaryOptions) (*Summary, error) {
	s := &Summary{
		Version:            c.Version(),
		Serial:             c.SerialHex(),
		SignatureAlgorithm: c.SignatureAlgorithm(),
		Issuer:             c.IssuerString(),
		Subject:            c.SubjectString(),
		NotBefore:          c.NotBeforeTime().UTC().Format("2006-01-02T15:04:05Z"),
		NotAfter:           c.NotAfterTime().UTC().Format("2006-01-02T15:04:05Z"),
		PublicKeyAlgorithm: c.PublicKeyAlgorithm(),
		Signature:          c.SignatureValueHex(),
	}

	exts, err := c.Extensions()
	if err != nil {
		return nil, err
	}
	for _, e := range exts {
		s.Extensions = append(s.Extensions, ExtensionBrief{Name: e.Name(), OID: e.OID, Critical: e.Critical})
	}

	if bc, err := c.BasicConstraints(); err != nil {
		return nil, err
	} else if bc != nil {
		s.IsCA = bc.CA
		if bc.PathLen >= 0 {
			pl := bc.PathLen
			s.PathLen = &pl
		}
	}
	if ku, err := c.KeyUsage(); err != nil {
		return nil, err
	} else if ku != nil {
		s.KeyUsage = ku.Names
	}
	if s.ExtKeyUsage, err = c.ExtKeyUsage(); err != nil {
		return nil, err
	}

	sans, err := c.SubjectAltNames()
	if err != nil {
		return nil, err
	}
	for _, g := range sans {
		if opts.Unicode {
			s.SubjectAltNames = append(s.SubjectAltNames, g.Unicode())
		} else {
			s.SubjectAltNames = append(s.SubjectAltNames, g.String())
		}
	}

	if kid, err := c.SubjectKeyIdentifier(); err != nil {
		return nil, err
	} else if kid != nil {
		s.SubjectKeyID = hex.EncodeToString(kid)
	}
	if aki, err := c.AuthorityKeyIdentifier(); err != nil {
		return nil, err
	} else if aki != nil && aki.KeyID != nil {
		s.AuthorityKeyID = hex.EncodeToString(aki.KeyID)
	}

	dps, err := c.CRLDistributionPoints()
	if err != nil {
		return nil, err
	}
	for _, g := range dps {
		s.CRLDistribution = append(s.CRLDistribution, g.Value)
	}

	aia, err := c.AuthorityInfoAccess()
	if err != nil {
		return nil, err
	}
	for _, ad := range aia {
		switch ad.Method {
		case "ocsp":
			s.OCSPServers = append(s.OCSPServers, ad.Location.Value)
		case "caIssuers":
			s.CAIssuers = append(s.CAIssuers, ad.Location.Value)
		}
	}

	pols, err := c.CertificatePolicies()
	if err != nil {
		return nil, err
	}
	for _, p := range pols {
		s.Policies = append(s.Policies, p.OID)
	}
	return s, nil
}

// JSON returns the indented JSON encoding of the summary.
func (s *Summary) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// CBOR returns the canonical CBOR encoding of the summary.
func (s *Summary) CBOR() ([]byte, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return em.Marshal(s)
}

// ParseSummaryCBOR decodes a summary produced by CBOR.
func ParseSummaryCBOR(data []byte) (*Summary, error) {
	var s Summary
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
