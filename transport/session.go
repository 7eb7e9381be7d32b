package transport

import (
	"bytes"
	"crypto/tls"
	"errors"
	"io"
	"sync"
)

const plaintextChunk = 16 << 10

// session drives a crypto/tls client over a bio from its own goroutine.
// The goroutine only ever blocks inside bio.Read, so after a feed the
// driver can settle the bio and observe a consistent TLS state.
type session struct {
	conn *tls.Conn
	bio  *bio
	once sync.Once

	mu        sync.Mutex
	plain     bytes.Buffer // decrypted application data not yet read
	queued    []byte       // plaintext written before the handshake finished
	running   bool
	handshook bool
	closed    bool // peer sent close_notify
	err       error
}

func newSession(b *bio, cfg *tls.Config) *session {
	return &session{
		conn: tls.Client(b, cfg),
		bio:  b,
	}
}

func (s *session) start() {
	s.once.Do(func() {
		s.mu.Lock()
		s.running = true
		s.mu.Unlock()
		go s.run()
	})
}

func (s *session) started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *session) run() {
	defer s.bio.finish()

	if err := s.conn.Handshake(); err != nil {
		s.fail(err)
		return
	}

	s.mu.Lock()
	s.handshook = true
	if len(s.queued) > 0 {
		_, err := s.conn.Write(s.queued)
		s.queued = nil
		if err != nil {
			s.err = err
			s.mu.Unlock()
			return
		}
	}
	s.mu.Unlock()

	buf := make([]byte, plaintextChunk)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.plain.Write(buf[:n])
			s.mu.Unlock()
		}
		if err == nil {
			continue
		}

		// tls.Conn reports both close_notify and a bare end of its
		// transport as io.EOF; only the former is a clean close here.
		if errors.Is(err, io.EOF) && !s.bio.isClosed() {
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()
		} else if !s.bio.isClosed() {
			s.fail(err)
		}
		return
	}
}

func (s *session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *session) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *session) handshakeComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshook
}

// write queues plaintext. Before the handshake finishes it is held back and
// written by the session goroutine; afterwards it is encrypted immediately.
func (s *session) write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return 0, s.err
	}
	if !s.handshook {
		s.queued = append(s.queued, p...)
		return len(p), nil
	}
	return s.conn.Write(p)
}

func (s *session) read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.plain.Len() > 0 {
		return s.plain.Read(p)
	}
	if s.closed {
		return 0, ErrConnectionAborted
	}
	if s.err != nil {
		return 0, s.err
	}
	return 0, ErrWouldBlock
}
