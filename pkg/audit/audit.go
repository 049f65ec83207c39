package audit

import (
	"fmt"
	"sync"
	"time"
)

var (
	globalMu     sync.RWMutex
	globalWriter Writer = NopWriter{}
	enabled      bool
)

// Init installs w as the global audit writer. A nil writer disables
// auditing.
func Init(w Writer) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if w == nil {
		globalWriter, enabled = NopWriter{}, false
		return
	}
	globalWriter, enabled = w, true
}

// InitFile installs a FileWriter for path. An empty path disables
// auditing.
func InitFile(path string) error {
	if path == "" {
		Init(nil)
		return nil
	}
	w, err := NewFileWriter(path)
	if err != nil {
		return err
	}
	Init(w)
	return nil
}

// Close closes the global writer and disables auditing.
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	err := globalWriter.Close()
	globalWriter, enabled = NopWriter{}, false
	return err
}

// Enabled reports whether audit logging is active.
func Enabled() bool {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return enabled
}

// Log writes event to the global writer. When auditing is enabled and
// the write fails, the calling operation must fail too.
func Log(event *Event) error {
	globalMu.RLock()
	w := globalWriter
	globalMu.RUnlock()
	if err := w.Write(event); err != nil {
		return fmt.Errorf("audit log failed: %w", err)
	}
	return nil
}

// Signer identifies the certificate behind a signature.
type Signer struct {
	Subject string
	Serial  string // hex
}

func reason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// LogCMSSigned records the creation of a SignedData envelope.
func LogCMSSigned(path string, signer Signer, algorithm, profile string, detached bool, opErr error) error {
	return Log(NewEvent(EventCMSSign, resultOf(opErr == nil)).
		WithObject(Object{Type: "cms", Path: path, Subject: signer.Subject, Serial: signer.Serial}).
		WithContext(Context{Algorithm: algorithm, Profile: profile, Detached: detached, Reason: reason(opErr)}))
}

// LogCMSVerified records the verification of a SignedData envelope.
// valid is the combined result over all signers.
func LogCMSVerified(path, contentType string, signers int, valid bool, opErr error) error {
	ctx := Context{ContentType: contentType, Signers: signers, Reason: reason(opErr)}
	if opErr == nil && !valid {
		ctx.Reason = "signature or digest mismatch"
	}
	return Log(NewEvent(EventCMSVerify, resultOf(opErr == nil && valid)).
		WithObject(Object{Type: "cms", Path: path}).
		WithContext(ctx))
}

// LogTimestampAdded records a signature timestamp appended to signer
// signerIndex of an envelope.
func LogTimestampAdded(path string, signerIndex int, policy string, genTime time.Time, opErr error) error {
	ctx := Context{SignerIndex: signerIndex, Policy: policy, Reason: reason(opErr)}
	if !genTime.IsZero() {
		ctx.GenTime = genTime.UTC().Format(time.RFC3339Nano)
	}
	return Log(NewEvent(EventTimestampAdded, resultOf(opErr == nil)).
		WithObject(Object{Type: "cms", Path: path}).
		WithContext(ctx))
}

// LogTokenIssued records a timestamp token created for a message
// imprint.
func LogTokenIssued(path, imprintHex, policy string, genTime time.Time, opErr error) error {
	return Log(NewEvent(EventTokenIssued, resultOf(opErr == nil)).
		WithObject(Object{Type: "timestamp", Path: path, Digest: imprintHex}).
		WithContext(Context{Policy: policy, GenTime: genTime.UTC().Format(time.RFC3339Nano), Reason: reason(opErr)}))
}

// LogCertVerified records a certificate signature check.
func LogCertVerified(path string, cert Signer, algorithm string, valid bool, opErr error) error {
	ctx := Context{Algorithm: algorithm, Reason: reason(opErr)}
	if opErr == nil && !valid {
		ctx.Reason = "signature mismatch"
	}
	return Log(NewEvent(EventCertVerify, resultOf(opErr == nil && valid)).
		WithObject(Object{Type: "certificate", Path: path, Subject: cert.Subject, Serial: cert.Serial}).
		WithContext(ctx))
}
