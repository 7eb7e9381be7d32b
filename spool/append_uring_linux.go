//go:build linux

package spool

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/godzie44/go-uring/uring"
)

// uringAppender writes through a small io_uring owned by one spool
type uringAppender struct {
	ring *uring.Ring
	fd   uintptr
}

func newUringAppender(f *os.File) (appender, error) {
	// Create io_uring instance with queue depth of 8
	ring, err := uring.New(8)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize io_uring: %w", err)
	}
	return &uringAppender{ring: ring, fd: f.Fd()}, nil
}

func (a *uringAppender) appendAt(p []byte, off int64) (int, error) {
	if a.ring == nil {
		return 0, errors.New("io_uring closed")
	}

	total := 0
	for total < len(p) {
		sqe := uring.Write(a.fd, p[total:], uint64(off)+uint64(total))
		if err := a.ring.QueueSQE(sqe, 0, 0); err != nil {
			return total, fmt.Errorf("failed to queue write request: %w", err)
		}

		// Submit and wait
		if _, err := a.ring.Submit(); err != nil {
			return total, fmt.Errorf("failed to submit write request: %w", err)
		}

		cqe, err := a.ring.WaitCQEvents(1)
		if err != nil {
			return total, fmt.Errorf("failed to wait for write completion: %w", err)
		}

		if err := cqe.Error(); err != nil {
			a.ring.SeenCQE(cqe)
			return total, err
		}

		n := int(cqe.Res)
		a.ring.SeenCQE(cqe)

		if n <= 0 {
			return total, io.ErrShortWrite
		}
		total += n
	}
	return total, nil
}

func (a *uringAppender) close() error {
	if a.ring == nil {
		return nil
	}
	err := a.ring.Close()
	a.ring = nil
	return err
}
