package testutils

import (
	"bufio"
	"crypto/tls"
	"io"
	"net"
	"net/netip"
	"strings"
	"sync"
	"testing"
)

// Handler serves one accepted connection. conn is the server side of the
// TLS session and raw the TCP connection beneath it, so a handler can end
// the stream with or without a close_notify. raw is closed after the
// handler returns.
type Handler func(s *Server, conn *tls.Conn, raw net.Conn)

// Server is a TLS listener on the loopback interface
type Server struct {
	Addr netip.AddrPort

	listener net.Listener
	wg       sync.WaitGroup

	mu       sync.Mutex
	requests []string
}

// NewServer starts a server presenting cert and serving every connection
// with handler. It is shut down by t.Cleanup.
func NewServer(t testing.TB, cert tls.Certificate, handler Handler) *Server {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create test server: %v", err)
	}

	s := &Server{
		Addr:     listener.Addr().(*net.TCPAddr).AddrPort(),
		listener: listener,
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			raw, err := listener.Accept()
			if err != nil {
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				conn := tls.Server(raw, cfg)
				handler(s, conn, raw)
				raw.Close()
			}()
		}
	}()

	t.Cleanup(func() {
		listener.Close()
		s.wg.Wait()
	})
	return s
}

// Port returns the listening port
func (s *Server) Port() uint16 {
	return s.Addr.Port()
}

// ReadRequest reads and records the request head sent on conn
func (s *Server) ReadRequest(conn io.Reader) (string, error) {
	head, err := ReadRequestHead(conn)
	if err != nil {
		return head, err
	}
	s.mu.Lock()
	s.requests = append(s.requests, head)
	s.mu.Unlock()
	return head, nil
}

// Requests returns the request heads recorded so far
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// ReadRequestHead reads an HTTP request head up to and including the
// blank line. Reading it fully before replying keeps the kernel from
// resetting the connection on close.
func ReadRequestHead(r io.Reader) (string, error) {
	br := bufio.NewReader(r)
	var head strings.Builder
	for {
		line, err := br.ReadString('\n')
		head.WriteString(line)
		if err != nil {
			return head.String(), err
		}
		if line == "\r\n" || line == "\n" {
			return head.String(), nil
		}
	}
}

// Reply returns a handler that records the request, writes response and
// then ends the stream: with a close_notify when closeNotify is set,
// otherwise with a bare TCP FIN.
func Reply(response []byte, closeNotify bool) Handler {
	return func(s *Server, conn *tls.Conn, raw net.Conn) {
		if _, err := s.ReadRequest(conn); err != nil {
			return
		}

		if _, err := conn.Write(response); err != nil {
			return
		}
		if closeNotify {
			conn.Close()
			return
		}
		if tcp, ok := raw.(*net.TCPConn); ok {
			tcp.CloseWrite()
		}
		// wait for the client to close its side
		io.Copy(io.Discard, raw)
	}
}
