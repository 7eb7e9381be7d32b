package transport

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	httperrors "github.com/nczempin/httpc-oneshot/errors"
)

// Resolver looks up the addresses of a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Endpoint is a concrete connection target for one request
type Endpoint struct {
	// HostName is sent as SNI and checked against the server certificate
	HostName string
	// Addr is the first address the resolver returned, with the port applied
	Addr netip.AddrPort
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s (%s)", e.HostName, e.Addr)
}

var defaultPorts = map[string]uint16{
	"ftp":   21,
	"http":  80,
	"https": 443,
	"ws":    80,
	"wss":   443,
}

// DefaultPort returns the well-known port of a URL scheme
func DefaultPort(scheme string) (uint16, bool) {
	p, ok := defaultPorts[strings.ToLower(scheme)]
	return p, ok
}

// Resolve turns u into an Endpoint. All validation happens before the
// resolver is consulted; only the first returned address is used.
func Resolve(ctx context.Context, u *url.URL, r Resolver) (Endpoint, error) {
	host := u.Hostname()
	if host == "" {
		return Endpoint{}, httperrors.NewInvalidArgumentError(
			httperrors.RelativeURL,
			fmt.Sprintf("%q has no host", u.String()),
		)
	}

	port, err := portOf(u)
	if err != nil {
		return Endpoint{}, err
	}

	if err := ValidateServerName(host); err != nil {
		return Endpoint{}, err
	}

	if r == nil {
		r = net.DefaultResolver
	}

	addrs, err := r.LookupNetIP(ctx, "ip", host)
	if err != nil {
		if ctx.Err() != nil {
			return Endpoint{}, httperrors.NewTimeoutError(
				fmt.Sprintf("resolving %s", host),
				ctx.Err(),
			)
		}
		return Endpoint{}, httperrors.NewResolveError(
			httperrors.DNSFailed,
			fmt.Sprintf("failed to resolve %s", host),
			err,
		)
	}
	if len(addrs) == 0 {
		return Endpoint{}, httperrors.NewResolveError(
			httperrors.DNSEmpty,
			fmt.Sprintf("no addresses for %s", host),
			nil,
		)
	}

	return Endpoint{
		HostName: host,
		Addr:     netip.AddrPortFrom(addrs[0].Unmap(), port),
	}, nil
}

func portOf(u *url.URL) (uint16, error) {
	if p := u.Port(); p != "" {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return 0, httperrors.NewInvalidArgumentError(
				httperrors.UnknownScheme,
				fmt.Sprintf("invalid port %q", p),
			)
		}
		return uint16(n), nil
	}

	port, ok := DefaultPort(u.Scheme)
	if !ok {
		return 0, httperrors.NewInvalidArgumentError(
			httperrors.UnknownScheme,
			fmt.Sprintf("scheme %q has no default port", u.Scheme),
		)
	}
	return port, nil
}
