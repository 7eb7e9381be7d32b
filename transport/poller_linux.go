//go:build linux

package transport

import (
	"encoding/binary"
	"errors"
	"time"

	"golang.org/x/sys/unix"

	httperrors "github.com/nczempin/httpc-oneshot/errors"
)

// Poller is an epoll instance with a single one-shot socket registration
// and an eventfd used to interrupt a blocked Wait.
type Poller struct {
	epfd   int
	wakefd int
	events [8]unix.EpollEvent
}

// NewPoller creates an epoll instance
func NewPoller() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, httperrors.NewTransportError("failed to create epoll instance", err)
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, httperrors.NewTransportError("failed to create eventfd", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, httperrors.NewTransportError("failed to register eventfd", err)
	}

	return &Poller{epfd: epfd, wakefd: wakefd}, nil
}

func epollMask(interest Interest) uint32 {
	mask := uint32(unix.EPOLLONESHOT)
	if interest.Readable() {
		mask |= unix.EPOLLIN
	}
	if interest.Writable() {
		mask |= unix.EPOLLOUT
	}
	return mask
}

// Register adds fd with the given interest. The registration fires once
// and must be re-armed with Reregister.
func (p *Poller) Register(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: epollMask(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return httperrors.NewTransportError("epoll register failed", err)
	}
	return nil
}

// Reregister re-arms fd with a new interest
func (p *Poller) Reregister(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: epollMask(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return httperrors.NewTransportError("epoll reregister failed", err)
	}
	return nil
}

// Wait blocks until the registration fires, Wake is called, or timeout
// elapses (negative means forever). Wake-ups and timeouts return no events.
func (p *Poller) Wait(timeout time.Duration) ([]Event, error) {
	n, err := unix.EpollWait(p.epfd, p.events[:], pollTimeout(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, httperrors.NewTransportError("epoll wait failed", err)
	}

	var out []Event
	for _, ev := range p.events[:n] {
		if int(ev.Fd) == p.wakefd {
			p.drainWake()
			continue
		}
		out = append(out, Event{
			Readable: ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			Writable: ev.Events&(unix.EPOLLOUT|unix.EPOLLERR) != 0,
		})
	}
	return out, nil
}

// Wake interrupts a concurrent Wait. Safe to call from any goroutine.
func (p *Poller) Wake() error {
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)
	if _, err := unix.Write(p.wakefd, one[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
		return err
	}
	return nil
}

func (p *Poller) drainWake() {
	var buf [8]byte
	unix.Read(p.wakefd, buf[:])
}

// Close releases the epoll instance and eventfd
func (p *Poller) Close() error {
	unix.Close(p.wakefd)
	return unix.Close(p.epfd)
}
