package cades

import (
	"fmt"
	"math/big"

	"github.com/remiblancher/qasn1/pkg/cms"
	"github.com/remiblancher/qasn1/pkg/tsp"
	"github.com/remiblancher/qasn1/pkg/x509cert"
)

// AddSignatureTimeStamp appends a signature-time-stamp attribute holding
// token to the unsigned attributes of signer idx (CAdES-T). The signed
// portion of the envelope is left byte-identical.
func AddSignatureTimeStamp(der []byte, idx int, token []byte) ([]byte, error) {
	attr, err := NewSignatureTimeStamp(token)
	if err != nil {
		return nil, err
	}
	sd, err := ParseSignedDataForAddingUnsigned(der)
	if err != nil {
		return nil, err
	}
	si, err := sd.Signer(idx)
	if err != nil {
		return nil, err
	}
	si.AddUnsigned(attr)
	return sd.Encode()
}

// SignatureTimeStampRequest builds the RFC 3161 request a TSA needs to
// timestamp the signature value of signer idx.
func SignatureTimeStampRequest(der []byte, idx int, hashName string, nonce *big.Int) (*tsp.TimeStampReq, error) {
	sd, err := ParseSignedDataForAddingUnsigned(der)
	if err != nil {
		return nil, err
	}
	si, err := sd.Signer(idx)
	if err != nil {
		return nil, err
	}
	if hashName == "" {
		hashName = DefaultHash
	}
	return tsp.CreateRequest(si.SignatureValue(), hashName, nonce, true)
}

// TimeStampSignature timestamps signer idx with a local TSA key and
// appends the token. info supplies the TSTInfo fields other than the
// message imprint, which is computed over the signature value.
func TimeStampSignature(der []byte, idx int, info tsp.TSTInfo, tsa *cms.SignerConfig) ([]byte, error) {
	req, err := SignatureTimeStampRequest(der, idx, info.MessageImprint.HashAlgorithm, nil)
	if err != nil {
		return nil, err
	}
	info.MessageImprint = req.MessageImprint
	token, err := tsp.NewToken(&info, tsa)
	if err != nil {
		return nil, NewCAdESError("timestamp", err)
	}
	return AddSignatureTimeStamp(der, idx, token)
}

// VerifySignatureTimeStamps checks every signature-time-stamp attribute
// of signer idx against its signature value.
func VerifySignatureTimeStamps(der []byte, idx int, certs []*x509cert.Certificate) ([]*tsp.VerifyResult, error) {
	sd, err := ParseSignedDataForAddingUnsigned(der)
	if err != nil {
		return nil, err
	}
	si, err := sd.Signer(idx)
	if err != nil {
		return nil, err
	}
	attrs, err := si.UnsignedAttributes()
	if err != nil {
		return nil, NewCAdESError("timestamp", err)
	}

	var out []*tsp.VerifyResult
	for _, a := range attrs {
		if a.Type != OIDSignatureTimeStampToken {
			continue
		}
		for _, v := range a.Values {
			token, err := v.Encode()
			if err != nil {
				return nil, NewCAdESError("timestamp", err)
			}
			res, err := tsp.Verify(token, &tsp.VerifyConfig{Data: si.SignatureValue(), Certificates: certs})
			if err != nil {
				return nil, NewCAdESError("timestamp", fmt.Errorf("token %d: %w", len(out), err))
			}
			out = append(out, res)
		}
	}
	return out, nil
}
