package profile

import (
	"crypto"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/remiblancher/qasn1/pkg/cades"
	"github.com/remiblancher/qasn1/pkg/cms"
	qcrypto "github.com/remiblancher/qasn1/pkg/crypto"
	"github.com/remiblancher/qasn1/pkg/oid"
	"github.com/remiblancher/qasn1/pkg/x509cert"
)

// Profile describes how a CMS signature is produced.
type Profile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	Hash               string `yaml:"hash"`
	SignatureAlgorithm string `yaml:"signature_algorithm,omitempty"` // derived from the key when empty
	Detached           bool   `yaml:"detached"`
	ContentType        string `yaml:"content_type,omitempty"` // id-data when empty

	SigningTime          *bool `yaml:"signing_time,omitempty"` // included unless false
	SigningCertificate   bool  `yaml:"signing_certificate,omitempty"`
	SigningCertificateV2 bool  `yaml:"signing_certificate_v2"`
	IncludeCerts         *bool `yaml:"include_certs,omitempty"` // included unless false

	Policy *PolicyConfig      `yaml:"policy,omitempty"`
	HSM    *qcrypto.HSMConfig `yaml:"hsm,omitempty"`
}

// PolicyConfig is the signature policy of a CAdES-EPES profile.
type PolicyConfig struct {
	OID           string `yaml:"oid"`
	HashAlgorithm string `yaml:"hash_algorithm,omitempty"` // sha256 when empty
	Hash          string `yaml:"hash"`                     // hex or base64
	URI           string `yaml:"uri,omitempty"`
}

// Digest decodes the policy hash, accepting hex or standard base64.
func (p *PolicyConfig) Digest() ([]byte, error) {
	if b, err := hex.DecodeString(p.Hash); err == nil {
		return b, nil
	}
	b, err := base64.StdEncoding.DecodeString(p.Hash)
	if err != nil {
		return nil, fmt.Errorf("policy hash is neither hex nor base64")
	}
	return b, nil
}

func (p *PolicyConfig) hashName() string {
	if p.HashAlgorithm == "" {
		return cades.DefaultHash
	}
	return p.HashAlgorithm
}

// Validate checks the profile for unknown algorithms and conflicting
// settings. All failures are reported together.
func (p *Profile) Validate() error {
	var errs []error
	add := func(field, value, msg string) {
		errs = append(errs, NewValidationError(field, value, msg))
	}

	if p.Name == "" {
		add("name", "", "is required")
	}
	if !slices.Contains(qcrypto.DigestNames(), p.Hash) {
		add("hash", p.Hash, "unsupported digest algorithm")
	}
	if p.SignatureAlgorithm != "" {
		alg, err := qcrypto.LookupAlgorithm(p.SignatureAlgorithm)
		switch {
		case err != nil:
			add("signature_algorithm", p.SignatureAlgorithm, "unknown signature algorithm")
		case !alg.Pure() && alg.Hash != p.Hash:
			add("signature_algorithm", p.SignatureAlgorithm, fmt.Sprintf("digest %s conflicts with hash %s", alg.Hash, p.Hash))
		}
	}
	if p.ContentType != "" {
		if _, ok := oid.Resolve(p.ContentType); !ok {
			add("content_type", p.ContentType, "unknown content type")
		}
	}
	if p.Policy != nil {
		if !oid.IsDotted(p.Policy.OID) {
			add("policy.oid", p.Policy.OID, "must be a dotted OID")
		}
		h, err := qcrypto.NewHash(p.Policy.hashName())
		if err != nil {
			add("policy.hash_algorithm", p.Policy.HashAlgorithm, "unsupported digest algorithm")
		} else if d, err := p.Policy.Digest(); err != nil {
			add("policy.hash", p.Policy.Hash, err.Error())
		} else if len(d) != h.Size() {
			add("policy.hash", p.Policy.Hash, fmt.Sprintf("expected %d bytes, got %d", h.Size(), len(d)))
		}
	}
	if p.HSM != nil {
		if err := p.HSM.Validate(); err != nil {
			add("hsm", "", err.Error())
		}
	}

	if len(errs) > 0 {
		return NewProfileError(p.Name, errors.Join(errs...))
	}
	return nil
}

// SignerConfig turns the profile into a CMS signer configuration for
// cert and key. signingTime zero means the current time.
func (p *Profile) SignerConfig(cert *x509cert.Certificate, key crypto.Signer, signingTime time.Time) (*cms.SignerConfig, error) {
	cfg := &cms.SignerConfig{
		Certificate:          cert,
		Signer:               key,
		Hash:                 p.Hash,
		SignatureAlgorithm:   p.SignatureAlgorithm,
		ContentType:          p.ContentType,
		Detached:             p.Detached,
		SigningTime:          signingTime,
		OmitSigningTime:      p.SigningTime != nil && !*p.SigningTime,
		SigningCertificate:   p.SigningCertificate,
		SigningCertificateV2: p.SigningCertificateV2,
		SigningCertV2Hash:    p.Hash,
		IncludeCerts:         p.IncludeCerts == nil || *p.IncludeCerts,
	}
	if p.Policy != nil {
		digest, err := p.Policy.Digest()
		if err != nil {
			return nil, NewProfileError(p.Name, err)
		}
		attr, err := cades.NewSignaturePolicyIdentifier(cades.SignaturePolicy{
			OID:           p.Policy.OID,
			HashAlgorithm: p.Policy.hashName(),
			Hash:          digest,
			URI:           p.Policy.URI,
		})
		if err != nil {
			return nil, NewProfileError(p.Name, err)
		}
		cfg.SignedAttributes = append(cfg.SignedAttributes, attr)
	}
	return cfg, nil
}

// Closer releases a signing key. It is a no-op for software keys.
type Closer func() error

// LoadSigner opens the profile's HSM key, or the PEM key at keyPath when
// the profile has no hsm section.
func (p *Profile) LoadSigner(keyPath string) (crypto.Signer, Closer, error) {
	if p.HSM == nil {
		if keyPath == "" {
			return nil, nil, NewProfileError(p.Name, fmt.Errorf("a private key is required"))
		}
		key, err := qcrypto.LoadPrivateKey(keyPath)
		if err != nil {
			return nil, nil, err
		}
		return key, func() error { return nil }, nil
	}
	cfg, err := p.HSM.ToPKCS11Config()
	if err != nil {
		return nil, nil, NewProfileError(p.Name, err)
	}
	key, err := qcrypto.OpenPKCS11Key(*cfg)
	if err != nil {
		return nil, nil, NewProfileError(p.Name, err)
	}
	return key, key.Close, nil
}
