package transport

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	httperrors "github.com/nczempin/httpc-oneshot/errors"
	"github.com/nczempin/httpc-oneshot/internal/testutils"
)

const testRequest = "GET /ok HTTP/1.1\r\nHost: example.test\r\nConnection: close\r\nAccept-Encoding: identity\r\n\r\n"

// drive runs the readiness loop the way the engine does and returns all
// plaintext received before the stream ended.
func drive(t *testing.T, srv *testutils.Server, cfg *tls.Config, mode WriteMode) ([]byte, error) {
	t.Helper()

	sock, err := DialNonblocking(srv.Addr)
	if err != nil {
		t.Fatalf("DialNonblocking failed: %v", err)
	}

	vw, err := NewVectoredWriter(mode)
	if err != nil {
		sock.Close()
		t.Skipf("write mode %v unavailable: %v", mode, err)
	}

	d := NewDriver(sock, "example.test", cfg, vw)
	defer d.Close()

	if _, err := d.Write([]byte(testRequest)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	p := newTestPoller(t)
	first := d.DesiredReadiness()
	if !first.Writable() {
		t.Errorf("Expected the first registration to want write for the ClientHello, got %v", first)
	}
	if err := p.Register(sock.Fd(), first); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	var out bytes.Buffer
	buf := make([]byte, 1024)
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		events, err := p.Wait(time.Until(deadline))
		if err != nil {
			return out.Bytes(), err
		}
		for _, ev := range events {
			if ev.Readable {
				progress, err := d.PumpReadable()
				if err != nil {
					return out.Bytes(), err
				}
				if progress.EOF {
					return out.Bytes(), nil
				}
				for {
					n, err := d.Read(buf)
					out.Write(buf[:n])
					if errors.Is(err, ErrWouldBlock) {
						break
					}
					if errors.Is(err, ErrConnectionAborted) {
						return out.Bytes(), nil
					}
					if err != nil {
						return out.Bytes(), err
					}
				}
			}
			if ev.Writable {
				if err := d.PumpWritable(); err != nil {
					return out.Bytes(), err
				}
			}
		}
		if err := p.Reregister(sock.Fd(), d.DesiredReadiness()); err != nil {
			t.Fatalf("Reregister failed: %v", err)
		}
	}
	t.Fatal("readiness loop did not finish")
	return nil, nil
}

func clientConfig(t *testing.T, ca *testutils.CA) *tls.Config {
	t.Helper()
	cfg, err := NewTLSConfig(TLSOptions{RootCAs: ca.Pool()})
	if err != nil {
		t.Fatalf("NewTLSConfig failed: %v", err)
	}
	return cfg
}

func TestDriver_RoundTrip(t *testing.T) {
	ca := testutils.NewCA(t, "driver test CA")
	response := []byte("HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\nhello")

	for _, closeNotify := range []bool{true, false} {
		for _, mode := range []WriteMode{WriteModeWritev, WriteModeConcat, WriteModeUring} {
			name := fmt.Sprintf("%v/closeNotify=%v", mode, closeNotify)
			t.Run(name, func(t *testing.T) {
				srv := testutils.NewServer(t, ca.Issue(t, "example.test"), testutils.Reply(response, closeNotify))

				got, err := drive(t, srv, clientConfig(t, ca), mode)
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				if !bytes.Equal(got, response) {
					t.Errorf("Got %q, want %q", got, response)
				}

				reqs := srv.Requests()
				if len(reqs) != 1 || reqs[0] != testRequest {
					t.Errorf("Server saw requests %q", reqs)
				}
			})
		}
	}
}

func TestDriver_LargeResponse(t *testing.T) {
	ca := testutils.NewCA(t, "driver test CA")
	body := bytes.Repeat([]byte("0123456789abcdef"), 8<<10)
	response := append([]byte("HTTP/1.1 200 OK\r\n\r\n"), body...)
	srv := testutils.NewServer(t, ca.Issue(t, "example.test"), testutils.Reply(response, false))

	got, err := drive(t, srv, clientConfig(t, ca), WriteModeWritev)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !bytes.Equal(got, response) {
		t.Errorf("Received %d bytes, want %d", len(got), len(response))
	}
}

func TestDriver_UntrustedCertificate(t *testing.T) {
	trusted := testutils.NewCA(t, "trusted CA")
	rogue := testutils.NewCA(t, "rogue CA")
	srv := testutils.NewServer(t, rogue.Issue(t, "example.test"), testutils.Reply([]byte("HTTP/1.1 200 OK\r\n\r\n"), true))

	_, err := drive(t, srv, clientConfig(t, trusted), WriteModeWritev)
	if err == nil {
		t.Fatal("Expected handshake failure")
	}
	if httperrors.KindOf(err) != httperrors.TLSProtocol {
		t.Errorf("Expected TLSProtocol, got %v", err)
	}
	var verr *tls.CertificateVerificationError
	if !errors.As(err, &verr) {
		t.Errorf("Expected a certificate verification failure, got %v", err)
	}
}

func TestDriver_NameMismatch(t *testing.T) {
	ca := testutils.NewCA(t, "driver test CA")
	srv := testutils.NewServer(t, ca.Issue(t, "other.test"), testutils.Reply([]byte("HTTP/1.1 200 OK\r\n\r\n"), true))

	_, err := drive(t, srv, clientConfig(t, ca), WriteModeWritev)
	if httperrors.KindOf(err) != httperrors.TLSProtocol {
		t.Errorf("Expected TLSProtocol, got %v", err)
	}
}

func TestDriver_EOFDuringHandshake(t *testing.T) {
	ca := testutils.NewCA(t, "driver test CA")
	srv := testutils.NewServer(t, ca.Issue(t, "example.test"), func(_ *testutils.Server, _ *tls.Conn, raw net.Conn) {
		// read the ClientHello, then hang up without answering
		buf := make([]byte, 4096)
		raw.Read(buf)
		if tcp, ok := raw.(*net.TCPConn); ok {
			tcp.CloseWrite()
		}
		raw.Read(buf)
	})

	_, err := drive(t, srv, clientConfig(t, ca), WriteModeWritev)
	if httperrors.KindOf(err) != httperrors.Transport {
		t.Errorf("Expected Transport error for EOF before handshake completed, got %v", err)
	}
}

func TestDriver_ConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	addr := l.Addr().(*net.TCPAddr).AddrPort()
	l.Close()

	ca := testutils.NewCA(t, "driver test CA")
	sock, err := DialNonblocking(addr)
	if err != nil {
		if httperrors.KindOf(err) != httperrors.Transport {
			t.Fatalf("Expected Transport error, got %v", err)
		}
		return
	}

	d := NewDriver(sock, "example.test", clientConfig(t, ca), nil)
	defer d.Close()

	p := newTestPoller(t)
	p.Register(sock.Fd(), d.DesiredReadiness())
	events, err := p.Wait(5 * time.Second)
	if err != nil || len(events) == 0 {
		t.Fatalf("Expected readiness after refused connect, got %v, %v", events, err)
	}

	var pumpErr error
	if events[0].Writable {
		pumpErr = d.PumpWritable()
	}
	if pumpErr == nil && events[0].Readable {
		_, pumpErr = d.PumpReadable()
	}
	if httperrors.KindOf(pumpErr) != httperrors.Transport {
		t.Errorf("Expected Transport error, got %v", pumpErr)
	}
}

func TestDriver_ConnectionStateBeforeHandshake(t *testing.T) {
	d := &Driver{sess: newSession(newBIO(nil, nil), &tls.Config{})}
	if cs := d.ConnectionState(); cs.HandshakeComplete {
		t.Error("Expected zero ConnectionState before the handshake")
	}
}

func TestNewTLSConfig_RootCAFile(t *testing.T) {
	ca := testutils.NewCA(t, "file CA")
	path := ca.WritePEM(t, t.TempDir())

	cfg, err := NewTLSConfig(TLSOptions{RootCAFile: path})
	if err != nil {
		t.Fatalf("NewTLSConfig failed: %v", err)
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("Expected TLS 1.2 minimum, got %x", cfg.MinVersion)
	}
	if len(cfg.NextProtos) != 1 || cfg.NextProtos[0] != "http/1.1" {
		t.Errorf("Unexpected ALPN list %v", cfg.NextProtos)
	}
	if cfg.VerifyConnection != nil {
		t.Error("VerifyConnection should be unset without CT logs")
	}

	srv := testutils.NewServer(t, ca.Issue(t, "example.test"), testutils.Reply([]byte("HTTP/1.1 204 No Content\r\n\r\n"), true))
	got, err := drive(t, srv, cfg, WriteModeWritev)
	if err != nil {
		t.Fatalf("Round trip with file roots failed: %v", err)
	}
	if !strings.HasPrefix(string(got), "HTTP/1.1 204") {
		t.Errorf("Unexpected response %q", got)
	}
}

func TestNewTLSConfig_BadRootCAFile(t *testing.T) {
	dir := t.TempDir()

	_, err := NewTLSConfig(TLSOptions{RootCAFile: filepath.Join(dir, "missing.pem")})
	if httperrors.KindOf(err) != httperrors.TLSProtocol {
		t.Errorf("Expected TLSProtocol for missing bundle, got %v", err)
	}

	empty := filepath.Join(dir, "empty.pem")
	os.WriteFile(empty, []byte("not a certificate"), 0o644)
	_, err = NewTLSConfig(TLSOptions{RootCAFile: empty})
	if httperrors.KindOf(err) != httperrors.TLSProtocol {
		t.Errorf("Expected TLSProtocol for bundle without certificates, got %v", err)
	}
}
