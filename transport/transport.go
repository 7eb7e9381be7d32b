package transport

import "errors"

// Interest is the set of socket readiness events a registration waits for
type Interest uint8

const (
	InterestRead Interest = 1 << iota
	InterestWrite

	InterestReadWrite = InterestRead | InterestWrite
)

// Readable reports whether the interest includes read readiness
func (i Interest) Readable() bool { return i&InterestRead != 0 }

// Writable reports whether the interest includes write readiness
func (i Interest) Writable() bool { return i&InterestWrite != 0 }

func (i Interest) String() string {
	switch i {
	case InterestRead:
		return "read"
	case InterestWrite:
		return "write"
	case InterestReadWrite:
		return "read|write"
	default:
		return "none"
	}
}

// Progress reports the outcome of one PumpReadable call
type Progress struct {
	// EOF is set when the peer closed the TCP stream. The caller treats
	// it as the end of the response whether or not a close_notify arrived.
	EOF bool
}

var (
	// ErrWouldBlock is returned by plaintext reads when no decrypted data
	// is buffered and the session is still open.
	ErrWouldBlock = errors.New("transport: operation would block")

	// ErrConnectionAborted is returned by plaintext reads once the buffered
	// data is drained and the peer has cleanly closed the TLS session.
	ErrConnectionAborted = errors.New("transport: tls session closed by peer")
)
