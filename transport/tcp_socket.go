package transport

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"

	"golang.org/x/sys/unix"

	httperrors "github.com/nczempin/httpc-oneshot/errors"
)

// Socket is a non-blocking TCP socket owned by exactly one Driver
type Socket struct {
	fd     int
	remote netip.AddrPort
}

// DialNonblocking opens a non-blocking TCP socket and starts connecting it
// to addr. Completion is not awaited: the first writable readiness event
// signals it, and a failed connect surfaces on the first read or write.
func DialNonblocking(addr netip.AddrPort) (*Socket, error) {
	family := unix.AF_INET6
	if addr.Addr().Is4() {
		family = unix.AF_INET
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, httperrors.NewTransportError("failed to create socket", err)
	}
	unix.CloseOnExec(fd)

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, httperrors.NewTransportError("failed to set non-blocking mode", err)
	}

	// Set TCP_NODELAY
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		unix.Close(fd)
		return nil, httperrors.NewTransportError("failed to set TCP_NODELAY", err)
	}

	if err := unix.Connect(fd, sockaddr(addr)); err != nil && !errors.Is(err, unix.EINPROGRESS) {
		unix.Close(fd)
		return nil, httperrors.NewTransportError(
			fmt.Sprintf("failed to connect to %s", addr),
			err,
		)
	}

	return &Socket{fd: fd, remote: addr}, nil
}

func sockaddr(addr netip.AddrPort) unix.Sockaddr {
	ip := addr.Addr()
	if ip.Is4() {
		return &unix.SockaddrInet4{Port: int(addr.Port()), Addr: ip.As4()}
	}

	sa6 := &unix.SockaddrInet6{Port: int(addr.Port()), Addr: ip.As16()}
	if zone := ip.Zone(); zone != "" {
		if ifi, err := interfaceIndex(zone); err == nil {
			sa6.ZoneId = uint32(ifi)
		}
	}
	return sa6
}

func interfaceIndex(zone string) (int, error) {
	if n, err := strconv.Atoi(zone); err == nil {
		return n, nil
	}
	ifi, err := net.InterfaceByName(zone)
	if err != nil {
		return 0, err
	}
	return ifi.Index, nil
}

// Fd returns the socket's file descriptor for poller registration
func (s *Socket) Fd() int {
	return s.fd
}

// RemoteAddr returns the address the socket connects to
func (s *Socket) RemoteAddr() netip.AddrPort {
	return s.remote
}

// Read performs one non-blocking read. It returns ErrWouldBlock when no
// data is available and (0, nil) on a clean end of stream.
func (s *Socket) Read(buf []byte) (int, error) {
	if s.fd < 0 {
		return 0, httperrors.NewTransportError("not connected", nil)
	}

	for {
		n, err := unix.Read(s.fd, buf)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, ErrWouldBlock
		default:
			return 0, httperrors.NewTransportError("read failed", s.pendingError(err))
		}
	}
}

// pendingError prefers the socket's queued error (e.g. ECONNREFUSED from
// an asynchronous connect) over the errno of the failing call.
func (s *Socket) pendingError(err error) error {
	if soErr, e := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR); e == nil && soErr != 0 {
		return unix.Errno(soErr)
	}
	return err
}

// Close closes the socket
func (s *Socket) Close() error {
	if s.fd < 0 {
		return nil // Already closed
	}

	err := unix.Close(s.fd)
	s.fd = -1
	if err != nil {
		return httperrors.NewTransportError("failed to close socket", err)
	}
	return nil
}
