package testutils

import (
	"context"
	"net"
	"net/netip"
	"sync/atomic"
)

// StaticResolver answers lookups from a fixed table. Names missing from
// the table fail like an NXDOMAIN answer.
type StaticResolver struct {
	Hosts map[string][]netip.Addr
	// Err, when set, is returned for every lookup
	Err error

	lookups atomic.Int32
}

// Loopback maps every given name to 127.0.0.1
func Loopback(names ...string) *StaticResolver {
	r := &StaticResolver{Hosts: make(map[string][]netip.Addr)}
	for _, name := range names {
		r.Hosts[name] = []netip.Addr{netip.MustParseAddr("127.0.0.1")}
	}
	return r
}

func (r *StaticResolver) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	r.lookups.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}
	addrs, ok := r.Hosts[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return addrs, nil
}

// Lookups reports how many lookups were made
func (r *StaticResolver) Lookups() int {
	return int(r.lookups.Load())
}
