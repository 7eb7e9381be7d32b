package transport

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// VectoredWriter writes a list of byte slices to a descriptor in one
// operation and returns how many bytes went out. A short count is not an
// error; the caller keeps the remainder for the next writable event.
type VectoredWriter interface {
	Writev(fd int, bufs [][]byte) (int, error)
	Close() error
}

// WriteMode selects the VectoredWriter used to flush TLS output
type WriteMode int

const (
	// WriteModeWritev uses the writev(2) system call
	WriteModeWritev WriteMode = iota
	// WriteModeUring submits IORING_OP_WRITEV through io_uring (Linux only)
	WriteModeUring
	// WriteModeConcat copies the slices into one buffer and calls write(2)
	WriteModeConcat
)

func (m WriteMode) String() string {
	switch m {
	case WriteModeWritev:
		return "writev"
	case WriteModeUring:
		return "uring"
	case WriteModeConcat:
		return "concat"
	default:
		return fmt.Sprintf("WriteMode(%d)", int(m))
	}
}

// ParseWriteMode parses the String form of a WriteMode
func ParseWriteMode(s string) (WriteMode, error) {
	switch strings.ToLower(s) {
	case "", "writev":
		return WriteModeWritev, nil
	case "uring", "io_uring":
		return WriteModeUring, nil
	case "concat":
		return WriteModeConcat, nil
	default:
		return 0, fmt.Errorf("unknown write mode %q", s)
	}
}

// NewVectoredWriter returns the writer for mode
func NewVectoredWriter(mode WriteMode) (VectoredWriter, error) {
	switch mode {
	case WriteModeWritev:
		return writevWriter{}, nil
	case WriteModeUring:
		return newUringWriter()
	case WriteModeConcat:
		return concatWriter{}, nil
	default:
		return nil, fmt.Errorf("unknown write mode %d", int(mode))
	}
}

// concatWriter is the fallback for systems without vectored I/O
type concatWriter struct{}

func (concatWriter) Writev(fd int, bufs [][]byte) (int, error) {
	var total int
	for _, b := range bufs {
		total += len(b)
	}
	flat := make([]byte, 0, total)
	for _, b := range bufs {
		flat = append(flat, b...)
	}
	return retryWrite(func() (int, error) { return unix.Write(fd, flat) })
}

func (concatWriter) Close() error { return nil }

// retryWrite restarts interrupted writes and folds EAGAIN into a zero count
func retryWrite(write func() (int, error)) (int, error) {
	for {
		n, err := write()
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, nil
		default:
			return 0, err
		}
	}
}
