package ct

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoValidSCTs       = errors.New("ct: no valid signed certificate timestamps")
	ErrTimestampInFuture = errors.New("ct: sct timestamp is in the future")
)

// Verifier enforces the allow-list on the SCTs a server presents. SCTs
// from unknown logs or with an unknown version are ignored; a malformed
// SCT, a bad signature from a known log, or a future timestamp is fatal.
// When SCTs are presented but none verifies, the handshake fails. Servers
// that present no SCTs are accepted.
type Verifier struct {
	Logs LogList
	Now  func() time.Time
}

// NewVerifier returns a Verifier for logs
func NewVerifier(logs LogList) *Verifier {
	return &Verifier{Logs: logs, Now: time.Now}
}

// Check verifies raw SCTs for the leaf certificate leafDER
func (v *Verifier) Check(leafDER []byte, scts [][]byte) error {
	if len(v.Logs) == 0 || len(scts) == 0 {
		return nil
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	nowMillis := uint64(now().UnixMilli())

	leaf, err := parseLeaf(leafDER)
	if err != nil {
		return err
	}

	valid := 0
	for _, raw := range scts {
		// later versions have a different layout
		if len(raw) > 0 && raw[0] != byte(V1) {
			continue
		}
		sct, err := ParseSCT(raw)
		if err != nil {
			return err
		}
		log, ok := v.Logs.Find(sct.LogID.KeyID)
		if !ok {
			continue
		}
		if err := verify(leaf, sct, log.Key); err != nil {
			return fmt.Errorf("%w (log %q)", err, log.Description)
		}
		if sct.Timestamp > nowMillis {
			return fmt.Errorf("%w (log %q)", ErrTimestampInFuture, log.Description)
		}
		valid++
	}

	if valid == 0 {
		return ErrNoValidSCTs
	}
	return nil
}

// VerifyConnection is suitable for tls.Config.VerifyConnection. It runs
// after the certificate chain has been verified.
func (v *Verifier) VerifyConnection(cs tls.ConnectionState) error {
	if len(cs.PeerCertificates) == 0 {
		return nil
	}
	return v.Check(cs.PeerCertificates[0].Raw, cs.SignedCertificateTimestamps)
}
