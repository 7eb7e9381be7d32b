package transport

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"
)

// bio is the in-memory transport a tls.Conn runs on. Ciphertext read from
// the socket is fed into it; ciphertext the session produces is queued for
// the next vectored flush. It also tracks whether the session goroutine is
// parked waiting for input, which is how the driver knows the TLS state
// machine has consumed everything it was given.
type bio struct {
	mu   sync.Mutex
	cond *sync.Cond

	in  []byte
	out [][]byte

	eof     bool // no further ciphertext will be fed
	waiting bool // session is blocked in Read with nothing buffered
	done    bool // session goroutine exited

	local, remote net.Addr
}

func newBIO(local, remote net.Addr) *bio {
	b := &bio{local: local, remote: remote}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Read hands buffered ciphertext to the TLS session, blocking when empty
func (b *bio) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.in) == 0 && !b.eof {
		b.waiting = true
		b.cond.Broadcast()
		b.cond.Wait()
	}
	b.waiting = false

	if len(b.in) == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.in)
	b.in = b.in[n:]
	if len(b.in) == 0 {
		b.in = nil
	}
	return n, nil
}

// Write queues ciphertext produced by the session. It never blocks.
func (b *bio) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.out = append(b.out, bytes.Clone(p))
	return len(p), nil
}

// Close marks the input side finished; a blocked session Read sees EOF
func (b *bio) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.eof = true
	b.cond.Broadcast()
	return nil
}

func (b *bio) LocalAddr() net.Addr              { return b.local }
func (b *bio) RemoteAddr() net.Addr             { return b.remote }
func (b *bio) SetDeadline(time.Time) error      { return nil }
func (b *bio) SetReadDeadline(time.Time) error  { return nil }
func (b *bio) SetWriteDeadline(time.Time) error { return nil }

func (b *bio) feed(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.in = append(b.in, p...)
	b.cond.Broadcast()
}

// settle blocks until the session has consumed all fed ciphertext and is
// parked for more, or has exited.
func (b *bio) settle() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for !b.done && !(b.waiting && len(b.in) == 0) {
		b.cond.Wait()
	}
}

// finish is called by the session goroutine on exit
func (b *bio) finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.done = true
	b.cond.Broadcast()
}

func (b *bio) waitDone() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for !b.done {
		b.cond.Wait()
	}
}

func (b *bio) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.eof
}

func (b *bio) isDone() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

func (b *bio) wantsWrite() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.out) > 0
}

// pending returns the queued output without removing it
func (b *bio) pending() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.out...)
}

// consume drops n bytes from the front of the output queue
func (b *bio) consume(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for n > 0 && len(b.out) > 0 {
		if n < len(b.out[0]) {
			b.out[0] = b.out[0][n:]
			return
		}
		n -= len(b.out[0])
		b.out = b.out[1:]
	}
	if len(b.out) == 0 {
		b.out = nil
	}
}
