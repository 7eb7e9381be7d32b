// Package ct checks Certificate Transparency timestamps presented during
// a TLS handshake against a fixed allow-list of logs.
package ct

import (
	"bytes"
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/google/certificate-transparency-go/loglist3"
)

// Log is one trusted CT log
type Log struct {
	Description string
	URL         string
	ID          [32]byte // SHA-256 of the DER public key
	Key         crypto.PublicKey
}

// NewLog builds a Log from its DER-encoded SubjectPublicKeyInfo
func NewLog(description string, keyDER []byte) (Log, error) {
	key, err := x509.ParsePKIXPublicKey(keyDER)
	if err != nil {
		return Log{}, fmt.Errorf("ct: parse key of log %q: %w", description, err)
	}
	return Log{
		Description: description,
		ID:          sha256.Sum256(keyDER),
		Key:         key,
	}, nil
}

// LogList is the allow-list consulted for every handshake
type LogList []Log

// Find returns the log with the given ID
func (l LogList) Find(id [32]byte) (Log, bool) {
	for _, log := range l {
		if log.ID == id {
			return log, true
		}
	}
	return Log{}, false
}

// ParseLogList decodes a log list in the v3 JSON schema. Each log's ID is
// recomputed from its key and must match the published log_id.
func ParseLogList(data []byte) (LogList, error) {
	doc, err := loglist3.NewFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("ct: decode log list: %w", err)
	}

	var out LogList
	for _, op := range doc.Operators {
		for _, l := range op.Logs {
			log, err := NewLog(l.Description, l.Key)
			if err != nil {
				return nil, err
			}
			log.URL = l.URL

			if len(l.LogID) != 0 && !bytes.Equal(l.LogID, log.ID[:]) {
				return nil, fmt.Errorf("ct: log_id of %q does not match its key", l.Description)
			}
			out = append(out, log)
		}
	}
	return out, nil
}

// LoadLogList reads a v3 JSON log list from path
func LoadLogList(path string) (LogList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ct: read log list: %w", err)
	}
	return ParseLogList(data)
}
