package transport

import (
	"context"
	"errors"
	"net/netip"
	"net/url"
	"testing"

	httperrors "github.com/nczempin/httpc-oneshot/errors"
	"github.com/nczempin/httpc-oneshot/internal/testutils"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	return u
}

func TestResolve_Success(t *testing.T) {
	r := testutils.Loopback("example.test")

	tests := []struct {
		raw  string
		port uint16
	}{
		{"https://example.test/ok", 443},
		{"http://example.test/", 80},
		{"wss://example.test/socket", 443},
		{"https://example.test:8443/x", 8443},
		{"custom://example.test:9000/", 9000},
	}

	for _, tt := range tests {
		ep, err := Resolve(context.Background(), mustParse(t, tt.raw), r)
		if err != nil {
			t.Errorf("Resolve(%q) failed: %v", tt.raw, err)
			continue
		}
		if ep.HostName != "example.test" {
			t.Errorf("Resolve(%q) host = %q, want example.test", tt.raw, ep.HostName)
		}
		want := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), tt.port)
		if ep.Addr != want {
			t.Errorf("Resolve(%q) addr = %v, want %v", tt.raw, ep.Addr, want)
		}
	}
}

func TestResolve_FirstAddressWins(t *testing.T) {
	r := &testutils.StaticResolver{Hosts: map[string][]netip.Addr{
		"multi.test": {
			netip.MustParseAddr("::ffff:10.0.0.1"),
			netip.MustParseAddr("10.0.0.2"),
		},
	}}

	ep, err := Resolve(context.Background(), mustParse(t, "https://multi.test/"), r)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := ep.Addr.Addr(); got != netip.MustParseAddr("10.0.0.1") {
		t.Errorf("Expected first (unmapped) address 10.0.0.1, got %v", got)
	}
}

func TestResolve_ValidationBeforeLookup(t *testing.T) {
	tests := []struct {
		raw  string
		kind httperrors.Kind
	}{
		{"/relative/path", httperrors.RelativeURL},
		{"mailto:someone@example.test", httperrors.RelativeURL},
		{"gopher://example.test/", httperrors.UnknownScheme},
		{"https://example.test:99999/", httperrors.UnknownScheme},
		{"https://127.0.0.1/", httperrors.BadSNIName},
		{"https://[::1]/", httperrors.BadSNIName},
		{"https://bad_-.example-/", httperrors.BadSNIName},
	}

	for _, tt := range tests {
		r := testutils.Loopback("example.test")
		_, err := Resolve(context.Background(), mustParse(t, tt.raw), r)
		if err == nil {
			t.Errorf("Resolve(%q) expected error", tt.raw)
			continue
		}
		if got := httperrors.KindOf(err); got != tt.kind {
			t.Errorf("Resolve(%q) kind = %v, want %v (%v)", tt.raw, got, tt.kind, err)
		}
		if r.Lookups() != 0 {
			t.Errorf("Resolve(%q) consulted the resolver", tt.raw)
		}
	}
}

func TestResolve_DNSErrors(t *testing.T) {
	empty := &testutils.StaticResolver{Hosts: map[string][]netip.Addr{"empty.test": {}}}
	_, err := Resolve(context.Background(), mustParse(t, "https://empty.test/"), empty)
	if httperrors.KindOf(err) != httperrors.DNSEmpty {
		t.Errorf("Expected DNSEmpty, got %v", err)
	}

	_, err = Resolve(context.Background(), mustParse(t, "https://missing.test/"), testutils.Loopback())
	if httperrors.KindOf(err) != httperrors.DNSFailed {
		t.Errorf("Expected DNSFailed, got %v", err)
	}

	boom := errors.New("resolver exploded")
	_, err = Resolve(context.Background(), mustParse(t, "https://x.test/"), &testutils.StaticResolver{Err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("Expected underlying resolver error to be wrapped, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Resolve(ctx, mustParse(t, "https://example.test/"), testutils.Loopback("example.test"))
	if httperrors.KindOf(err) != httperrors.Timeout {
		t.Errorf("Expected Timeout for cancelled context, got %v", err)
	}
}

func TestValidateServerName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"example.com", true},
		{"example.com.", true},
		{"a.b-c.d_e.test", true},
		{"localhost", true},
		{"xn--bcher-kva.example", true},
		{"", false},
		{".", false},
		{"example..com", false},
		{"example.com..", false},
		{"-leading.example", false},
		{"trailing-.example", false},
		{"bücher.example", false},
		{"192.168.0.1", false},
		{"::1", false},
		{"[::1]", false},
		{"host.123", false},
		{"sp ace.example", false},
		{string(make([]byte, 64)) + ".example", false},
	}

	for _, tt := range tests {
		err := ValidateServerName(tt.name)
		if tt.ok && err != nil {
			t.Errorf("ValidateServerName(%q) unexpected error: %v", tt.name, err)
		}
		if !tt.ok {
			if err == nil {
				t.Errorf("ValidateServerName(%q) expected error", tt.name)
			} else if httperrors.KindOf(err) != httperrors.BadSNIName {
				t.Errorf("ValidateServerName(%q) kind = %v", tt.name, httperrors.KindOf(err))
			}
		}
	}
}

func TestDefaultPort(t *testing.T) {
	for scheme, want := range map[string]uint16{"https": 443, "HTTP": 80, "ws": 80, "wss": 443, "ftp": 21} {
		got, ok := DefaultPort(scheme)
		if !ok || got != want {
			t.Errorf("DefaultPort(%q) = %d, %v; want %d", scheme, got, ok, want)
		}
	}
	if _, ok := DefaultPort("gopher"); ok {
		t.Error("gopher should have no default port")
	}
}
