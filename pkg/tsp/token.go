package tsp

import (
	"fmt"
	"slices"

	"github.com/remiblancher/qasn1/pkg/cms"
	"github.com/remiblancher/qasn1/pkg/x509cert"
)

// Token represents a timestamp token: a CMS SignedData whose content is
// a DER-encoded TSTInfo.
type Token struct {
	Info       *TSTInfo
	SignedData *cms.ParsedSignedData
	Raw        []byte // ContentInfo DER
}

// NewToken encodes info and signs it as a timestamp token. The token
// always carries an ESSCertIDv2 signing-certificate attribute and the
// id-ct-TSTInfo content type.
func NewToken(info *TSTInfo, config *cms.SignerConfig) ([]byte, error) {
	if config == nil {
		return nil, NewTSPError("token", fmt.Errorf("signer config is required"))
	}
	content, err := info.Encode()
	if err != nil {
		return nil, err
	}

	c := *config
	c.ContentType = cms.OIDTSTInfo
	c.Detached = false
	c.SigningCertificateV2 = true

	der, err := cms.Sign(content, &c)
	if err != nil {
		return nil, NewTSPError("token", err)
	}
	return der, nil
}

// ParseToken parses a DER-encoded timestamp token.
func ParseToken(der []byte) (*Token, error) {
	sd, err := cms.ParseSignedData(der)
	if err != nil {
		return nil, NewTSPError("token", err)
	}
	if sd.ContentType != cms.OIDTSTInfo {
		return nil, NewTSPError("token", fmt.Errorf("%w: content type %s", ErrInvalidToken, sd.ContentType))
	}
	if sd.Detached {
		return nil, NewTSPError("token", fmt.Errorf("%w: missing TSTInfo content", ErrInvalidToken))
	}
	if len(sd.Signers) != 1 {
		return nil, NewTSPError("token", fmt.Errorf("%w: expected one signer, found %d", ErrInvalidToken, len(sd.Signers)))
	}
	info, err := ParseTSTInfo(sd.Content)
	if err != nil {
		return nil, err
	}
	return &Token{Info: info, SignedData: sd, Raw: der}, nil
}

// VerifyConfig contains options for verifying a timestamp token.
type VerifyConfig struct {
	// Data is the original data that was timestamped (optional)
	Data []byte
	// Certificates are searched for the TSA certificate in addition to
	// those embedded in the token.
	Certificates []*x509cert.Certificate
}

// VerifyResult contains the result of token verification.
type VerifyResult struct {
	Token *Token
	CMS   *cms.VerifyResult
	// SignerCert is the certificate that signed the token
	SignerCert *x509cert.Certificate
	// Verified is true if the CMS signature is valid
	Verified bool
	// HashMatch is true if the data hash matches (only if Data provided)
	HashMatch bool
	// TimeStampingEKU is true if the signer certificate carries the
	// id-kp-timeStamping extended key usage.
	TimeStampingEKU bool
}

// Verify verifies a timestamp token signature and, when Data is given,
// the message imprint.
func Verify(der []byte, config *VerifyConfig) (*VerifyResult, error) {
	if config == nil {
		config = &VerifyConfig{}
	}
	token, err := ParseToken(der)
	if err != nil {
		return nil, err
	}
	res, err := cms.Verify(der, &cms.VerifyConfig{Certificates: config.Certificates})
	if err != nil {
		return nil, NewTSPError("verify", err)
	}

	out := &VerifyResult{Token: token, CMS: res, Verified: res.Valid()}
	signer := res.Signers[0]
	out.SignerCert = signer.Certificate
	eku, err := signer.Certificate.ExtKeyUsage()
	if err != nil {
		return nil, NewTSPError("verify", err)
	}
	out.TimeStampingEKU = slices.Contains(eku, "timeStamping")

	if config.Data != nil {
		if out.HashMatch, err = token.Info.MessageImprint.Matches(config.Data); err != nil {
			return nil, NewTSPError("verify", err)
		}
	}
	return out, nil
}
