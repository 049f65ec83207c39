package cms

import (
	"crypto"
	"fmt"
	"time"

	qcrypto "github.com/remiblancher/qasn1/pkg/crypto"
	"github.com/remiblancher/qasn1/pkg/x509cert"
)

// SignerConfig contains options for signing.
type SignerConfig struct {
	Certificate *x509cert.Certificate
	Signer      crypto.Signer
	Engine      qcrypto.Engine // DefaultEngine when nil

	Hash               string // digest algorithm name, "sha256" when empty
	SignatureAlgorithm string // derived from the key and Hash when empty
	ContentType        string // name or dotted OID, id-data when empty
	Detached           bool   // If true, content is not included in SignedData

	SigningTime          time.Time // time.Now when zero
	OmitSigningTime      bool
	SigningCertificate   bool // include the SHA-1 ESSCertID attribute
	SigningCertificateV2 bool // include the ESSCertIDv2 attribute
	SigningCertV2Hash    string

	IncludeCerts bool     // embed Certificate
	ExtraCerts   [][]byte // additional certificates, e.g. the chain
	CRLs         [][]byte

	SignedAttributes   []*Attribute // added after the mandatory attributes
	UnsignedAttributes []*Attribute
}

// Sign creates a CMS ContentInfo holding a SignedData with one signer.
func Sign(content []byte, config *SignerConfig) ([]byte, error) {
	sd, err := NewSignedDataFromConfig(content, config)
	if err != nil {
		return nil, err
	}
	return sd.EncodeContentInfo()
}

// NewSignedDataFromConfig builds and signs a SignedData with one signer.
// More signers can be added to the result with AddSignerInfo.
func NewSignedDataFromConfig(content []byte, config *SignerConfig) (*SignedData, error) {
	if config == nil || config.Certificate == nil {
		return nil, NewCMSError("sign", fmt.Errorf("certificate is required"))
	}
	if config.Signer == nil {
		return nil, NewCMSError("sign", fmt.Errorf("signer is required"))
	}

	eci := &EncapsulatedContentInfo{ContentType: config.ContentType, Content: content, Detached: config.Detached}
	sd := NewSignedData(eci)

	si, err := NewSignerInfoFromConfig(eci, config)
	if err != nil {
		return nil, err
	}
	if err := sd.AddSignerInfo(si); err != nil {
		return nil, err
	}

	if config.IncludeCerts {
		if err := sd.AddCertificate(config.Certificate.Raw()); err != nil {
			return nil, err
		}
	}
	for _, c := range config.ExtraCerts {
		if err := sd.AddCertificate(c); err != nil {
			return nil, err
		}
	}
	for _, c := range config.CRLs {
		if err := sd.AddCRL(c); err != nil {
			return nil, err
		}
	}
	return sd, nil
}

// NewSignerInfoFromConfig builds and signs one SignerInfo over eci.
func NewSignerInfoFromConfig(eci *EncapsulatedContentInfo, config *SignerConfig) (*SignerInfo, error) {
	hashName := config.Hash
	if hashName == "" {
		hashName = "sha256"
	}

	si := NewSignerInfo()
	if err := si.SetSignerIdentifier(config.Certificate); err != nil {
		return nil, err
	}
	if err := si.SetForContentAndHash(eci, hashName); err != nil {
		return nil, err
	}

	if !config.OmitSigningTime {
		t := config.SigningTime
		if t.IsZero() {
			t = time.Now()
		}
		si.signedAttrs.Set(NewSigningTimeAttr(t))
	}
	if config.SigningCertificate {
		attr, err := NewSigningCertificateAttr(config.Certificate)
		if err != nil {
			return nil, err
		}
		si.signedAttrs.Set(attr)
	}
	if config.SigningCertificateV2 {
		attr, err := NewSigningCertificateV2Attr(config.Certificate, config.SigningCertV2Hash)
		if err != nil {
			return nil, err
		}
		si.signedAttrs.Set(attr)
	}
	if err := si.AddSignedAttribute(config.SignedAttributes...); err != nil {
		return nil, err
	}

	engine := config.Engine
	if engine == nil {
		engine = qcrypto.DefaultEngine
	}
	if err := si.SignWith(engine, config.Signer, config.SignatureAlgorithm); err != nil {
		return nil, err
	}
	si.AddUnsignedAttribute(config.UnsignedAttributes...)
	return si, nil
}
