// Package spool implements the temporary file a response is streamed into.
// A Spool is append-only until sealed, then a read-only seekable stream.
// Its file is removed on Close, or by the garbage collector if the owner
// drops it without closing.
package spool

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	httperrors "github.com/nczempin/httpc-oneshot/errors"
)

// Mode selects how appended bytes reach the file
type Mode int

const (
	// ModeFile appends with pwrite(2)
	ModeFile Mode = iota
	// ModeUring submits IORING_OP_WRITE requests (Linux only)
	ModeUring
)

func (m Mode) String() string {
	switch m {
	case ModeFile:
		return "file"
	case ModeUring:
		return "uring"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses the String form of a Mode
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "file":
		return ModeFile, nil
	case "uring", "io_uring":
		return ModeUring, nil
	default:
		return 0, fmt.Errorf("unknown spool mode %q", s)
	}
}

// appender writes p at offset off in full
type appender interface {
	appendAt(p []byte, off int64) (int, error)
	close() error
}

type fileAppender struct {
	f *os.File
}

func (a fileAppender) appendAt(p []byte, off int64) (int, error) {
	return a.f.WriteAt(p, off)
}

func (fileAppender) close() error { return nil }

var errSealed = errors.New("spool is sealed")

// Spool is a temporary file exclusively owned by one request
type Spool struct {
	mu      sync.Mutex
	f       *os.File
	path    string
	size    int64
	app     appender
	sealed  bool
	closed  bool
	cleanup runtime.Cleanup
}

// Create makes an empty spool file in dir (the OS temp directory when
// empty) using mode for appends.
func Create(dir string, mode Mode) (*Spool, error) {
	f, err := os.CreateTemp(dir, "oneshot-*.spool")
	if err != nil {
		return nil, httperrors.NewSpoolError("failed to create spool file", err)
	}

	var app appender
	switch mode {
	case ModeFile:
		app = fileAppender{f: f}
	case ModeUring:
		app, err = newUringAppender(f)
	default:
		err = fmt.Errorf("unknown spool mode %d", int(mode))
	}
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, httperrors.NewSpoolError("failed to set up spool appender", err)
	}

	s := &Spool{f: f, path: f.Name(), app: app}
	s.cleanup = runtime.AddCleanup(s, removeFile, s.path)
	return s, nil
}

func removeFile(path string) {
	os.Remove(path)
}

// Path returns the file's location
func (s *Spool) Path() string {
	return s.path
}

// Len returns the number of bytes appended so far
func (s *Spool) Len() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Write appends p. It fails once the spool is sealed.
func (s *Spool) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, httperrors.NewSpoolError("write to closed spool", os.ErrClosed)
	}
	if s.sealed {
		return 0, httperrors.NewSpoolError("write to sealed spool", errSealed)
	}

	n, err := s.app.appendAt(p, s.size)
	s.size += int64(n)
	if err != nil {
		return n, httperrors.NewSpoolError("failed to append to spool", err)
	}
	return n, nil
}

// Seal ends the append phase and rewinds to offset 0
func (s *Spool) Seal() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return httperrors.NewSpoolError("seal of closed spool", os.ErrClosed)
	}
	if s.sealed {
		return nil
	}
	s.sealed = true

	if err := s.app.close(); err != nil {
		return httperrors.NewSpoolError("failed to release spool appender", err)
	}
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return httperrors.NewSpoolError("failed to rewind spool", err)
	}
	return nil
}

// Read reads from the current offset. It is only valid after Seal.
func (s *Spool) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readable(); err != nil {
		return 0, err
	}
	n, err := s.f.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, httperrors.NewSpoolError("failed to read spool", err)
	}
	return n, err
}

// Seek implements io.Seeker. It is only valid after Seal.
func (s *Spool) Seek(offset int64, whence int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readable(); err != nil {
		return 0, err
	}
	pos, err := s.f.Seek(offset, whence)
	if err != nil {
		return pos, httperrors.NewSpoolError("failed to seek spool", err)
	}
	return pos, nil
}

func (s *Spool) readable() error {
	if s.closed {
		return httperrors.NewSpoolError("read of closed spool", os.ErrClosed)
	}
	if !s.sealed {
		return httperrors.NewSpoolError("read of unsealed spool", nil)
	}
	return nil
}

// Close releases the file and removes it. Calling it again is a no-op.
func (s *Spool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cleanup.Stop()

	var errs []error
	if !s.sealed {
		errs = append(errs, s.app.close())
	}
	errs = append(errs, s.f.Close())
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return httperrors.NewSpoolError("failed to release spool", err)
	}
	return nil
}
