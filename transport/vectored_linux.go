//go:build linux

package transport

import (
	"errors"
	"fmt"

	"github.com/iceber/iouring-go"
	"golang.org/x/sys/unix"
)

type writevWriter struct{}

func (writevWriter) Writev(fd int, bufs [][]byte) (int, error) {
	return retryWrite(func() (int, error) { return unix.Writev(fd, bufs) })
}

func (writevWriter) Close() error { return nil }

// uringWriter flushes through an io_uring instance owned by one driver
type uringWriter struct {
	iour *iouring.IOURing
}

func newUringWriter() (VectoredWriter, error) {
	// Create io_uring instance with queue depth of 8
	iour, err := iouring.New(8)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize io_uring: %w", err)
	}
	return &uringWriter{iour: iour}, nil
}

func (w *uringWriter) Writev(fd int, bufs [][]byte) (int, error) {
	if w.iour == nil {
		return 0, errors.New("io_uring closed")
	}

	return retryWrite(func() (int, error) {
		ch := make(chan iouring.Result, 1)
		if _, err := w.iour.SubmitRequest(iouring.Writev(fd, bufs), ch); err != nil {
			return 0, err
		}
		result := <-ch
		return result.ReturnInt()
	})
}

func (w *uringWriter) Close() error {
	if w.iour == nil {
		return nil
	}
	err := w.iour.Close()
	w.iour = nil
	return err
}
