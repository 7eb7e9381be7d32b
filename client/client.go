// Package client performs one-shot HTTPS GET requests. Each request opens
// its own connection, streams the whole response into a spool file and
// returns a Response positioned at the first body byte.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nczempin/httpc-oneshot/ct"
	httperrors "github.com/nczempin/httpc-oneshot/errors"
	"github.com/nczempin/httpc-oneshot/protocol"
	"github.com/nczempin/httpc-oneshot/spool"
	"github.com/nczempin/httpc-oneshot/transport"
)

// Config holds the settings shared by every request of a Client
type Config struct {
	// Resolver looks up host addresses; nil uses net.DefaultResolver
	Resolver transport.Resolver

	// RootCAs replaces the system roots when set
	RootCAs *x509.CertPool
	// RootCAFile is a PEM bundle of additional (or, without RootCAs,
	// replacement) roots
	RootCAFile string
	// CTLogs enables SCT checking against these logs
	CTLogs ct.LogList

	// Timeout bounds a whole request, name resolution included. Zero
	// means no limit beyond the context's.
	Timeout time.Duration

	// SpoolDir holds spool files; empty means os.TempDir()
	SpoolDir  string
	SpoolMode spool.Mode
	WriteMode transport.WriteMode

	// Logger receives debug records per request; nil discards them
	Logger *slog.Logger
}

// Client issues one-shot requests. It is safe for concurrent use; the
// requests share nothing but the immutable TLS configuration.
type Client struct {
	cfg       Config
	tlsConfig *tls.Config
	log       *slog.Logger
}

// New validates cfg and builds the shared TLS configuration
func New(cfg Config) (*Client, error) {
	tlsConfig, err := transport.NewTLSConfig(transport.TLSOptions{
		RootCAs:    cfg.RootCAs,
		RootCAFile: cfg.RootCAFile,
		CTLogs:     cfg.CTLogs,
	})
	if err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Client{cfg: cfg, tlsConfig: tlsConfig, log: log}, nil
}

// Get parses rawURL and fetches it
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, httperrors.New(httperrors.BadURL, fmt.Sprintf("cannot parse %q", rawURL), err)
	}
	return c.GetURL(ctx, u)
}

// GetURL fetches u. Non-2xx statuses are returned as a Response, not as
// an error. The caller must Close the Response.
func (c *Client) GetURL(ctx context.Context, u *url.URL) (*Response, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	ep, err := transport.Resolve(ctx, u, c.cfg.Resolver)
	if err != nil {
		return nil, err
	}

	log := c.log.With(
		slog.String("req", uuid.NewString()),
		slog.String("host", ep.HostName),
		slog.String("addr", ep.Addr.String()),
	)
	start := time.Now()

	sp, err := c.oneshot(ctx, ep, protocol.BuildRequest(u), log)
	if err != nil {
		log.Debug("request failed", slog.Any("err", err))
		return nil, err
	}

	resp, err := frame(sp)
	if err != nil {
		sp.Close()
		log.Debug("framing failed", slog.Any("err", err), slog.Int64("bytes", sp.Len()))
		return nil, err
	}

	log.Debug("response complete",
		slog.Int("status", int(resp.Status())),
		slog.Int64("bytes", sp.Len()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}

var (
	defaultOnce   sync.Once
	defaultClient *Client
	defaultErr    error
)

// Default returns the shared client used by the package-level functions.
// It trusts the system roots and performs no SCT checks.
func Default() (*Client, error) {
	defaultOnce.Do(func() {
		defaultClient, defaultErr = New(Config{})
	})
	return defaultClient, defaultErr
}

// Get fetches rawURL with the default client
func Get(ctx context.Context, rawURL string) (*Response, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, rawURL)
}

// GetURL fetches u with the default client
func GetURL(ctx context.Context, u *url.URL) (*Response, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	return c.GetURL(ctx, u)
}
