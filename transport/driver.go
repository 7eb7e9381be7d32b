package transport

import (
	"crypto/tls"
	"errors"
	"net"

	httperrors "github.com/nczempin/httpc-oneshot/errors"
)

// readChunk bounds one ciphertext read; it holds a full TLS record
const readChunk = 16<<10 + 512

// Driver owns one non-blocking socket and one TLS client session and
// advances the session in response to socket readiness. It performs no
// socket I/O on its own: the caller decides when to pump.
type Driver struct {
	sock *Socket
	bio  *bio
	sess *session
	vw   VectoredWriter
	rbuf []byte
}

// NewDriver wraps sock in a TLS client session for serverName. The shared
// cfg is cloned, never modified. A nil vw selects writev(2).
func NewDriver(sock *Socket, serverName string, cfg *tls.Config, vw VectoredWriter) *Driver {
	cfg = cfg.Clone()
	cfg.ServerName = serverName

	if vw == nil {
		vw = writevWriter{}
	}

	remote := net.TCPAddrFromAddrPort(sock.RemoteAddr())
	b := newBIO(&net.TCPAddr{}, remote)

	return &Driver{
		sock: sock,
		bio:  b,
		sess: newSession(b, cfg),
		vw:   vw,
		rbuf: make([]byte, readChunk),
	}
}

// Socket returns the driven socket for poller registration
func (d *Driver) Socket() *Socket {
	return d.sock
}

// DesiredReadiness derives the poll interest from what the TLS session
// needs right now: to receive (handshake or more records) and/or to send
// (handshake messages or encrypted plaintext).
func (d *Driver) DesiredReadiness() Interest {
	d.sess.start()
	d.bio.settle()

	rd := !d.bio.isDone()
	wr := d.bio.wantsWrite()

	switch {
	case rd && wr:
		return InterestReadWrite
	case wr:
		return InterestWrite
	default:
		return InterestRead
	}
}

// PumpReadable performs one non-blocking ciphertext read and lets the TLS
// session process every record that became complete. A zero-byte read is
// reported as Progress{EOF: true}.
func (d *Driver) PumpReadable() (Progress, error) {
	d.sess.start()

	n, err := d.sock.Read(d.rbuf)
	if err != nil {
		if errors.Is(err, ErrWouldBlock) {
			return Progress{}, nil
		}
		return Progress{}, err
	}

	if n == 0 {
		if !d.sess.handshakeComplete() {
			return Progress{EOF: true}, httperrors.NewTransportError(
				"connection closed during tls handshake",
				nil,
			)
		}
		return Progress{EOF: true}, nil
	}

	d.bio.feed(d.rbuf[:n])
	d.bio.settle()

	if err := d.sess.failure(); err != nil {
		return Progress{}, httperrors.NewTLSError("tls session failed", err)
	}
	return Progress{}, nil
}

// PumpWritable flushes queued ciphertext. A short write leaves the rest
// queued for the next writable event.
func (d *Driver) PumpWritable() error {
	bufs := d.bio.pending()
	if len(bufs) == 0 {
		return nil
	}

	n, err := d.vw.Writev(d.sock.Fd(), bufs)
	if err != nil {
		return httperrors.NewTransportError("write failed", d.sock.pendingError(err))
	}
	d.bio.consume(n)
	return nil
}

// Write queues plaintext for encryption. It never touches the socket.
func (d *Driver) Write(p []byte) (int, error) {
	n, err := d.sess.write(p)
	if err != nil {
		return n, httperrors.NewTLSError("tls write failed", err)
	}
	return n, nil
}

// Read returns decrypted application data. It returns ErrWouldBlock when
// nothing is buffered and ErrConnectionAborted once the peer has cleanly
// closed the session and all data was read.
func (d *Driver) Read(p []byte) (int, error) {
	n, err := d.sess.read(p)
	if err == nil || errors.Is(err, ErrWouldBlock) || errors.Is(err, ErrConnectionAborted) {
		return n, err
	}
	return n, httperrors.NewTLSError("tls read failed", err)
}

// ConnectionState reports the negotiated parameters once the handshake
// finished, and the zero value before.
func (d *Driver) ConnectionState() tls.ConnectionState {
	if !d.sess.handshakeComplete() {
		return tls.ConnectionState{}
	}
	return d.sess.conn.ConnectionState()
}

// Close stops the session, releases the vectored writer and closes the
// socket. No close_notify is sent; the request already asked the server
// to close.
func (d *Driver) Close() error {
	d.bio.Close()
	if d.sess.started() {
		d.bio.waitDone()
	}
	d.vw.Close()
	return d.sock.Close()
}
