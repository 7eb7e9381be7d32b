package testutils

import (
	"crypto"
	"testing"
	"time"

	ctgo "github.com/google/certificate-transparency-go"
	cttls "github.com/google/certificate-transparency-go/tls"
	ctx509 "github.com/google/certificate-transparency-go/x509"
)

// SignSCT issues a serialized V1 SCT for leafDER as the log identified by
// logID would, signing with key.
func SignSCT(t testing.TB, key crypto.Signer, logID [32]byte, leafDER []byte, ts time.Time) []byte {
	t.Helper()

	cert, err := ctx509.ParseCertificate(leafDER)
	if ctx509.IsFatal(err) {
		t.Fatalf("Failed to parse leaf: %v", err)
	}

	sct := ctgo.SignedCertificateTimestamp{
		SCTVersion: ctgo.V1,
		LogID:      ctgo.LogID{KeyID: logID},
		Timestamp:  uint64(ts.UnixMilli()),
	}
	leaf, err := ctgo.MerkleTreeLeafFromChain([]*ctx509.Certificate{cert}, ctgo.X509LogEntryType, sct.Timestamp)
	if err != nil {
		t.Fatalf("Failed to build tree leaf: %v", err)
	}
	input, err := ctgo.SerializeSCTSignatureInput(sct, ctgo.LogEntry{Leaf: *leaf})
	if err != nil {
		t.Fatalf("Failed to serialize signature input: %v", err)
	}
	sig, err := cttls.CreateSignature(key, cttls.SHA256, input)
	if err != nil {
		t.Fatalf("Failed to sign SCT: %v", err)
	}
	sct.Signature = ctgo.DigitallySigned(sig)

	raw, err := cttls.Marshal(sct)
	if err != nil {
		t.Fatalf("Failed to marshal SCT: %v", err)
	}
	return raw
}
