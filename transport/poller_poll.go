//go:build unix && !linux

package transport

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"

	httperrors "github.com/nczempin/httpc-oneshot/errors"
)

// Poller emulates a one-shot registration on top of poll(2). A self-pipe
// interrupts a blocked Wait.
type Poller struct {
	fd       int
	interest Interest
	armed    bool
	wakeR    int
	wakeW    int
}

// NewPoller creates a poller and its wake-up pipe
func NewPoller() (*Poller, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, httperrors.NewTransportError("failed to create wake pipe", err)
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return nil, httperrors.NewTransportError("failed to set non-blocking mode", err)
		}
	}
	return &Poller{fd: -1, wakeR: fds[0], wakeW: fds[1]}, nil
}

// Register adds fd with the given interest
func (p *Poller) Register(fd int, interest Interest) error {
	if p.fd >= 0 {
		return httperrors.NewTransportError("poller already has a registration", nil)
	}
	p.fd = fd
	p.interest = interest
	p.armed = true
	return nil
}

// Reregister re-arms fd with a new interest
func (p *Poller) Reregister(fd int, interest Interest) error {
	if fd != p.fd {
		return httperrors.NewTransportError("reregister of unknown descriptor", nil)
	}
	p.interest = interest
	p.armed = true
	return nil
}

// Wait blocks until the registration fires, Wake is called, or timeout
// elapses (negative means forever). Wake-ups and timeouts return no events.
func (p *Poller) Wait(timeout time.Duration) ([]Event, error) {
	fds := []unix.PollFd{{Fd: int32(p.wakeR), Events: unix.POLLIN}}
	if p.armed {
		var events int16
		if p.interest.Readable() {
			events |= unix.POLLIN
		}
		if p.interest.Writable() {
			events |= unix.POLLOUT
		}
		fds = append(fds, unix.PollFd{Fd: int32(p.fd), Events: events})
	}

	if _, err := unix.Poll(fds, pollTimeout(timeout)); err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, httperrors.NewTransportError("poll failed", err)
	}

	if fds[0].Revents != 0 {
		p.drainWake()
	}
	if len(fds) < 2 || fds[1].Revents == 0 {
		return nil, nil
	}

	re := fds[1].Revents
	p.armed = false
	return []Event{{
		Readable: re&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0,
		Writable: re&(unix.POLLOUT|unix.POLLERR) != 0,
	}}, nil
}

// Wake interrupts a concurrent Wait. Safe to call from any goroutine.
func (p *Poller) Wake() error {
	if _, err := unix.Write(p.wakeW, []byte{1}); err != nil && !errors.Is(err, unix.EAGAIN) {
		return err
	}
	return nil
}

func (p *Poller) drainWake() {
	var buf [64]byte
	for {
		if n, err := unix.Read(p.wakeR, buf[:]); n <= 0 || err != nil {
			return
		}
	}
}

// Close releases the wake-up pipe
func (p *Poller) Close() error {
	unix.Close(p.wakeW)
	return unix.Close(p.wakeR)
}
