package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/nczempin/httpc-oneshot/ct"
	httperrors "github.com/nczempin/httpc-oneshot/errors"
)

// TLSOptions fixes the trust anchors of a client TLS configuration
type TLSOptions struct {
	// RootCAs replaces the system pool when set
	RootCAs *x509.CertPool
	// RootCAFile is a PEM bundle added to RootCAs, or used alone when
	// RootCAs is nil
	RootCAFile string
	// CTLogs is the Certificate Transparency allow-list; empty disables
	// SCT checking
	CTLogs ct.LogList
}

// NewTLSConfig builds the shared client configuration. It is built once
// and never modified; drivers clone it to set the server name.
func NewTLSConfig(opts TLSOptions) (*tls.Config, error) {
	pool := opts.RootCAs
	if opts.RootCAFile != "" {
		pem, err := os.ReadFile(opts.RootCAFile)
		if err != nil {
			return nil, httperrors.NewTLSError(
				fmt.Sprintf("failed to read root bundle %s", opts.RootCAFile),
				err,
			)
		}
		if pool == nil {
			pool = x509.NewCertPool()
		} else {
			pool = pool.Clone()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, httperrors.NewTLSError(
				fmt.Sprintf("no certificates in %s", opts.RootCAFile),
				nil,
			)
		}
	}

	if pool == nil {
		sys, err := x509.SystemCertPool()
		if err != nil {
			return nil, httperrors.NewTLSError("failed to load system roots", err)
		}
		pool = sys
	}

	cfg := &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
		NextProtos: []string{"http/1.1"},
	}
	if len(opts.CTLogs) > 0 {
		cfg.VerifyConnection = ct.NewVerifier(opts.CTLogs).VerifyConnection
	}
	return cfg, nil
}
