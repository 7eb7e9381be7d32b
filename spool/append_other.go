//go:build !linux

package spool

import (
	"errors"
	"os"
)

func newUringAppender(*os.File) (appender, error) {
	return nil, errors.New("io_uring is only available on linux")
}
