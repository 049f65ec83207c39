package tsp

import (
	"fmt"
	"math/big"

	"github.com/remiblancher/qasn1/pkg/asn1der"
	qcrypto "github.com/remiblancher/qasn1/pkg/crypto"
	"github.com/remiblancher/qasn1/pkg/tlv"
)

// MessageImprint contains the hash of the data to be timestamped.
type MessageImprint struct {
	HashAlgorithm string // digest name, e.g. "sha256"
	HashedMessage []byte
}

// NewMessageImprint hashes data with the named digest.
func NewMessageImprint(hashName string, data []byte) (MessageImprint, error) {
	digest, err := qcrypto.Digest(hashName, data)
	if err != nil {
		return MessageImprint{}, fmt.Errorf("%w: %v", ErrUnsupportedHashAlgorithm, err)
	}
	return MessageImprint{HashAlgorithm: hashName, HashedMessage: digest}, nil
}

// Matches reports whether data hashes to the imprint.
func (m MessageImprint) Matches(data []byte) (bool, error) {
	other, err := NewMessageImprint(m.HashAlgorithm, data)
	if err != nil {
		return false, err
	}
	return string(other.HashedMessage) == string(m.HashedMessage), nil
}

func (m MessageImprint) value() (asn1der.Value, error) {
	alg, err := qcrypto.DigestAlgorithmIdentifier(m.HashAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedHashAlgorithm, err)
	}
	return asn1der.NewSequence(alg, asn1der.NewOctetString(m.HashedMessage)), nil
}

func parseMessageImprint(der []byte, off int) (MessageImprint, error) {
	kids, err := tlv.Children(der, off)
	if err != nil {
		return MessageImprint{}, err
	}
	if der[off] != tlv.TagSequence || len(kids) != 2 || der[kids[1]] != tlv.TagOctetString {
		return MessageImprint{}, fmt.Errorf("bad MessageImprint")
	}
	alg, err := qcrypto.ParseAlgorithmIdentifier(der, kids[0])
	if err != nil {
		return MessageImprint{}, err
	}
	hashName, err := alg.HashName()
	if err != nil {
		return MessageImprint{}, fmt.Errorf("%w: %s", ErrUnsupportedHashAlgorithm, alg.OID)
	}
	digest, _ := tlv.Value(der, kids[1])
	h, err := qcrypto.NewHash(hashName)
	if err != nil {
		return MessageImprint{}, err
	}
	if len(digest) != h.Size() {
		return MessageImprint{}, fmt.Errorf("hash length mismatch: got %d, expected %d", len(digest), h.Size())
	}
	return MessageImprint{HashAlgorithm: hashName, HashedMessage: digest}, nil
}

// TimeStampReq represents a timestamp request (RFC 3161 Section 2.4.1).
type TimeStampReq struct {
	MessageImprint MessageImprint
	ReqPolicy      string   // dotted OID, optional
	Nonce          *big.Int // optional
	CertReq        bool
}

// CreateRequest creates a new TimeStampReq for the given data.
func CreateRequest(data []byte, hashName string, nonce *big.Int, certReq bool) (*TimeStampReq, error) {
	imprint, err := NewMessageImprint(hashName, data)
	if err != nil {
		return nil, NewTSPError("request", err)
	}
	return &TimeStampReq{MessageImprint: imprint, Nonce: nonce, CertReq: certReq}, nil
}

// Encode encodes the TimeStampReq as DER.
func (r *TimeStampReq) Encode() ([]byte, error) {
	imprint, err := r.MessageImprint.value()
	if err != nil {
		return nil, NewTSPError("request", err)
	}
	seq := asn1der.NewSequence(asn1der.NewInteger(1), imprint)
	if r.ReqPolicy != "" {
		o, err := asn1der.NewObjectIdentifier(r.ReqPolicy)
		if err != nil {
			return nil, NewTSPError("request", err)
		}
		seq.Append(o)
	}
	if r.Nonce != nil {
		seq.Append(asn1der.NewIntegerBig(r.Nonce))
	}
	if r.CertReq {
		seq.Append(asn1der.NewBoolean(true))
	}
	return seq.Encode()
}

// ParseRequest parses a DER-encoded TimeStampReq.
func ParseRequest(der []byte) (*TimeStampReq, error) {
	fail := func(format string, args ...any) error {
		return NewTSPError("request", fmt.Errorf("%w: "+format, append([]any{ErrInvalidRequest}, args...)...))
	}
	if err := tlv.Check(der); err != nil {
		return nil, NewTSPError("request", err)
	}
	kids, err := tlv.Children(der, 0)
	if err != nil {
		return nil, NewTSPError("request", err)
	}
	if der[0] != tlv.TagSequence || len(kids) < 2 || der[kids[0]] != tlv.TagInteger {
		return nil, fail("bad TimeStampReq")
	}
	if v, _ := tlv.Value(der, kids[0]); len(v) != 1 || v[0] != 1 {
		return nil, fail("unsupported TSP version")
	}

	req := &TimeStampReq{}
	if req.MessageImprint, err = parseMessageImprint(der, kids[1]); err != nil {
		return nil, fail("%v", err)
	}
	for _, off := range kids[2:] {
		content, _ := tlv.Value(der, off)
		switch der[off] {
		case tlv.TagOID:
			if req.ReqPolicy, err = asn1der.DecodeOIDContent(content); err != nil {
				return nil, fail("%v", err)
			}
		case tlv.TagInteger:
			req.Nonce = new(big.Int).SetBytes(content)
		case tlv.TagBoolean:
			req.CertReq = len(content) == 1 && content[0] != 0
		case tlv.ClassContext | tlv.Constructed | 0:
			// extensions are not interpreted
		default:
			return nil, fail("unexpected field tag 0x%02x", der[off])
		}
	}
	return req, nil
}
