package ct

import (
	"crypto"
	"errors"
	"fmt"

	ctgo "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/ctutil"
	cttls "github.com/google/certificate-transparency-go/tls"
	ctx509 "github.com/google/certificate-transparency-go/x509"
)

// V1 is the only SCT version defined by RFC 6962
const V1 = ctgo.V1

var (
	ErrMalformedSCT     = errors.New("ct: malformed signed certificate timestamp")
	ErrInvalidSignature = errors.New("ct: sct signature does not verify")
)

// ParseSCT decodes one serialized SCT as carried in the TLS extension.
// The whole input must be consumed.
func ParseSCT(b []byte) (*ctgo.SignedCertificateTimestamp, error) {
	var sct ctgo.SignedCertificateTimestamp
	rest, err := cttls.Unmarshal(b, &sct)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSCT, err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedSCT, len(rest))
	}
	return &sct, nil
}

// parseLeaf parses the end-entity certificate the SCTs are bound to
func parseLeaf(der []byte) (*ctx509.Certificate, error) {
	cert, err := ctx509.ParseCertificate(der)
	if ctx509.IsFatal(err) {
		return nil, fmt.Errorf("ct: parse leaf certificate: %w", err)
	}
	return cert, nil
}

// verify checks sct as an x509_entry timestamp over leaf, signed by key
func verify(leaf *ctx509.Certificate, sct *ctgo.SignedCertificateTimestamp, key crypto.PublicKey) error {
	if err := ctutil.VerifySCT(key, []*ctx509.Certificate{leaf}, sct, false); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
