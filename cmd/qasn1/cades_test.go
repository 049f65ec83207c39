package main

import (
	"bytes"
	"testing"

	"github.com/remiblancher/qasn1/pkg/audit"
	"github.com/remiblancher/qasn1/pkg/cms"
)

func resetCAdESFlags() {
	cadesTimestampTSA = tsaFlags{policy: defaultTSAPolicy, hash: "sha256"}
	cadesTimestampSigner = 0
	cadesTimestampOutput = ""
	resetFlags(cadesTimestampCmd, "tsa-cert", "tsa-key", "policy", "hash", "accuracy", "ordering", "signer", "out")
}

// =============================================================================
// CAdES Timestamp Tests
// =============================================================================

func TestF_CAdES_Timestamp(t *testing.T) {
	tc := newTestContext(t)
	sigPath, _ := tc.signFile("content to timestamp")
	tsaCert, tsaKey := tc.setupTSAPair()
	outPath := tc.path("data-t.p7s")

	resetCAdESFlags()
	out, err := executeCommand(rootCmd, "cades", "timestamp", sigPath,
		"--tsa-cert", tsaCert,
		"--tsa-key", tsaKey,
		"--policy", "1.2.3.4.5",
		"--accuracy", "1",
		"--out", outPath)
	assertNoError(t, err)
	assertContains(t, out, "Signature timestamp added", "Policy:   1.2.3.4.5")

	before, err := cms.LocateSignedData(tc.readFile(sigPath))
	assertNoError(t, err)
	after, err := cms.LocateSignedData(tc.readFile(outPath))
	assertNoError(t, err)
	sb, sa := before.Signers[0], after.Signers[0]
	if !bytes.Equal(sb.Version.Buf[sb.Version.Off:sb.Signature.End()], sa.Version.Buf[sa.Version.Off:sa.Signature.End()]) {
		t.Error("signed portion of the signer changed")
	}

	resetCMSFlags()
	out, err = executeCommand(rootCmd, "cms", "verify", outPath)
	assertNoError(t, err)
	assertContains(t, out, "Timestamp 0: OK", "by /O=Test Org/CN=Test TSA")

	resetCMSFlags()
	out, err = executeCommand(rootCmd, "cms", "info", outPath)
	assertNoError(t, err)
	assertContains(t, out, "Unsigned attributes: signatureTimeStampToken")
}

func TestF_CAdES_Timestamp_Errors(t *testing.T) {
	tests := []struct {
		name  string
		extra []string
	}{
		{"[Functional] CAdESTimestamp: SignerOutOfRange", []string{"--signer", "3"}},
		{"[Functional] CAdESTimestamp: BadHash", []string{"--hash", "md4"}},
		{"[Functional] CAdESTimestamp: BadPolicy", []string{"--policy", "not-an-oid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestContext(t)
			sigPath, _ := tc.signFile("content")
			tsaCert, tsaKey := tc.setupTSAPair()

			resetCAdESFlags()
			args := append([]string{"cades", "timestamp", sigPath,
				"--tsa-cert", tsaCert,
				"--tsa-key", tsaKey,
				"--out", tc.path("out.p7s"),
			}, tt.extra...)
			_, err := executeCommand(rootCmd, args...)
			assertError(t, err)
		})
	}
}

func TestF_CAdES_Timestamp_Audit(t *testing.T) {
	tc := newTestContext(t)
	sigPath, _ := tc.signFile("content")
	tsaCert, tsaKey := tc.setupTSAPair()
	logPath := tc.path("audit.jsonl")

	resetRootFlags()
	resetCAdESFlags()
	_, err := executeCommand(rootCmd, "--audit-log", logPath, "cades", "timestamp", sigPath,
		"--tsa-cert", tsaCert, "--tsa-key", tsaKey, "--out", tc.path("out.p7s"))
	assertNoError(t, err)

	n, err := audit.VerifyChain(logPath)
	assertNoError(t, err)
	if n != 1 {
		t.Errorf("audit events = %d, want 1", n)
	}
	assertContains(t, string(tc.readFile(logPath)), `"TIMESTAMP_ADDED"`, `"policy":"`+defaultTSAPolicy+`"`)
}
