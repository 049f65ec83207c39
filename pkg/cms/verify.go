package cms

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	qcrypto "github.com/remiblancher/qasn1/pkg/crypto"
	"github.com/remiblancher/qasn1/pkg/x509cert"
)

// VerifyConfig contains options for verifying a CMS signature.
type VerifyConfig struct {
	// Data is the original data for detached signatures
	Data []byte
	// Certificates are candidate signer certificates in addition to the
	// ones embedded in the SignedData
	Certificates []*x509cert.Certificate
	// Engine performs the signature checks (default: DefaultEngine)
	Engine qcrypto.Engine
}

// SignerResult is the outcome for one SignerInfo.
type SignerResult struct {
	Index              int
	Certificate        *x509cert.Certificate
	DigestAlgorithm    string
	SignatureAlgorithm string
	DigestMatch        bool // message-digest attribute equals the content digest
	ContentTypeMatch   bool // content-type attribute equals eContentType
	SignatureValid     bool
	SigningTime        time.Time
}

// Valid reports whether every check passed.
func (r SignerResult) Valid() bool {
	return r.DigestMatch && r.ContentTypeMatch && r.SignatureValid
}

// VerifyResult contains the result of signature verification.
type VerifyResult struct {
	ContentType string
	Content     []byte // nil for detached signatures
	Detached    bool
	Signers     []SignerResult
}

// Valid reports whether every signer verified.
func (r *VerifyResult) Valid() bool {
	if len(r.Signers) == 0 {
		return false
	}
	for _, s := range r.Signers {
		if !s.Valid() {
			return false
		}
	}
	return true
}

// Verify checks every SignerInfo of a ContentInfo holding SignedData.
//
// A signature or digest mismatch is reported through the result, not as
// an error. Errors mean the envelope could not be checked at all: it is
// malformed, uses an unsupported algorithm, or names a signer certificate
// that cannot be found.
func Verify(der []byte, config *VerifyConfig) (*VerifyResult, error) {
	if config == nil {
		config = &VerifyConfig{}
	}
	engine := config.Engine
	if engine == nil {
		engine = qcrypto.DefaultEngine
	}

	sd, err := ParseSignedData(der)
	if err != nil {
		return nil, err
	}
	if len(sd.Signers) == 0 {
		return nil, NewCMSError("verify", ErrNoSigner)
	}

	content := sd.Content
	if sd.Detached {
		if config.Data == nil {
			return nil, NewCMSError("verify", ErrDetachedContent)
		}
		content = config.Data
	}

	result := &VerifyResult{ContentType: sd.ContentType, Content: sd.Content, Detached: sd.Detached}
	candidates := append(append([]*x509cert.Certificate{}, sd.Certificates...), config.Certificates...)

	for i, si := range sd.Signers {
		r, err := verifySigner(engine, si, sd.ContentType, content, candidates)
		if err != nil {
			return nil, NewCMSError("verify", fmt.Errorf("signerInfo %d: %w", i, err))
		}
		r.Index = i
		result.Signers = append(result.Signers, *r)
	}
	return result, nil
}

func verifySigner(engine qcrypto.Engine, si *ParsedSignerInfo, contentType string, content []byte, candidates []*x509cert.Certificate) (*SignerResult, error) {
	var cert *x509cert.Certificate
	for _, c := range candidates {
		if si.Matches(c) {
			cert = c
			break
		}
	}
	if cert == nil {
		return nil, ErrNoCertificate
	}

	hashName, err := si.DigestAlgorithm.HashName()
	if err != nil {
		return nil, err
	}
	alg, err := signerAlgorithm(si.SignatureAlgorithm, hashName)
	if err != nil {
		return nil, err
	}
	r := &SignerResult{Certificate: cert, DigestAlgorithm: hashName, SignatureAlgorithm: alg.Name}

	message := si.Layout.SignedAttrsForVerify()
	if message == nil {
		// Without signed attributes the signature covers the content.
		message = content
		r.DigestMatch, r.ContentTypeMatch = true, true
	} else {
		want, err := si.MessageDigest()
		if err != nil {
			return nil, err
		}
		if want == nil {
			return nil, fmt.Errorf("%w: messageDigest", ErrMissingAttribute)
		}
		got, err := qcrypto.Digest(hashName, content)
		if err != nil {
			return nil, err
		}
		r.DigestMatch = bytes.Equal(want, got)

		ct, err := si.ContentType()
		if err != nil {
			return nil, err
		}
		if ct == "" {
			return nil, fmt.Errorf("%w: contentType", ErrMissingAttribute)
		}
		r.ContentTypeMatch = ct == contentType

		if t, ok, err := si.SigningTime(); err != nil {
			return nil, err
		} else if ok {
			r.SigningTime = t
		}
	}

	pub, err := cert.PublicKey()
	if err != nil {
		return nil, err
	}
	if r.SignatureValid, err = engine.Verify(message, si.Signature, alg.Name, pub); err != nil {
		return nil, err
	}
	return r, nil
}

// signerAlgorithm resolves a SignerInfo signatureAlgorithm. CMS allows a
// bare key algorithm (rsaEncryption, ecPublicKey) paired with the digest
// algorithm.
func signerAlgorithm(a qcrypto.AlgorithmIdentifier, hashName string) (qcrypto.Algorithm, error) {
	if alg, err := a.SignatureAlgorithm(); err == nil {
		return alg, nil
	}
	switch a.OID {
	case oidRSAEncryption:
		return qcrypto.LookupAlgorithm(strings.ToUpper(hashName) + "withRSA")
	case oidECPublicKey:
		return qcrypto.LookupAlgorithm(strings.ToUpper(hashName) + "withECDSA")
	}
	return qcrypto.AlgorithmByOID(a.OID, hashName)
}
