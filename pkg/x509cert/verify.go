package x509cert

import (
	"crypto"

	qcrypto "github.com/remiblancher/qasn1/pkg/crypto"
)

// VerifySignature checks the certificate signature over the located
// tbsCertificate bytes with pub, using the default signature engine.
func (c *Certificate) VerifySignature(pub crypto.PublicKey) (bool, error) {
	return c.VerifySignatureWith(qcrypto.DefaultEngine, pub)
}

// VerifySignatureWith is VerifySignature with an explicit engine.
//
// A false result means the signature does not match; an error means the
// algorithm or key could not be used at all.
func (c *Certificate) VerifySignatureWith(engine qcrypto.Engine, pub crypto.PublicKey) (bool, error) {
	alg, err := c.sigAlg.SignatureAlgorithm()
	if err != nil {
		return false, &CertError{Op: "verify", Field: "signatureAlgorithm", Err: err}
	}
	ok, err := engine.Verify(c.RawTBS(), c.sigValue, alg.Name, pub)
	if err != nil {
		return false, &CertError{Op: "verify", Err: err}
	}
	return ok, nil
}

// VerifyIssuedBy checks the signature with the issuer certificate's public
// key. Chain building and trust decisions are left to the caller.
func (c *Certificate) VerifyIssuedBy(issuer *Certificate) (bool, error) {
	pub, err := issuer.PublicKey()
	if err != nil {
		return false, err
	}
	return c.VerifySignature(pub)
}
