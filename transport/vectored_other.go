//go:build !linux

package transport

import "errors"

// writevWriter falls back to a single write(2) where writev is not wired
type writevWriter = concatWriter

func newUringWriter() (VectoredWriter, error) {
	return nil, errors.New("io_uring is only available on linux")
}
