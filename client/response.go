package client

import (
	"bufio"
	"io"
	"os"
	"strconv"

	httperrors "github.com/nczempin/httpc-oneshot/errors"
	"github.com/nczempin/httpc-oneshot/protocol"
	"github.com/nczempin/httpc-oneshot/spool"
)

// StatusCode is the numeric status of a response
type StatusCode uint16

// IsSuccess reports whether the status is in the 2xx class
func (s StatusCode) IsSuccess() bool {
	return s >= 200 && s <= 299
}

// Code returns the status as an integer
func (s StatusCode) Code() uint16 {
	return uint16(s)
}

func (s StatusCode) String() string {
	return strconv.Itoa(int(s))
}

// Response is the body of a completed request, read from its spool file.
// Reads start at the first body byte; the status line and headers are
// only available through Status and Headers. Close removes the spool.
type Response struct {
	spool  *spool.Spool
	head   *protocol.ResponseHead
	br     *bufio.Reader
	closed bool
}

// frame seals sp, parses its head and wraps it in a Response
func frame(sp *spool.Spool) (*Response, error) {
	if err := sp.Seal(); err != nil {
		return nil, err
	}
	head, err := protocol.Frame(sp)
	if err != nil {
		return nil, err
	}
	return &Response{
		spool: sp,
		head:  head,
		br:    bufio.NewReader(sp),
	}, nil
}

// Status returns the response status code
func (r *Response) Status() StatusCode {
	return StatusCode(r.head.StatusCode)
}

// Version returns the protocol token of the status line
func (r *Response) Version() string {
	return r.head.Version
}

// Reason returns the reason phrase of the status line
func (r *Response) Reason() string {
	return r.head.Reason
}

// Headers returns the raw header fields in the order received
func (r *Response) Headers() []protocol.HttpHeader {
	return r.head.Headers
}

// Header returns the first value of the named header
func (r *Response) Header(key string) (string, bool) {
	return r.head.Get(key)
}

// Len returns the body length in bytes
func (r *Response) Len() int64 {
	return r.spool.Len() - r.head.HeaderEnd
}

// Read reads body bytes from the current position
func (r *Response) Read(p []byte) (int, error) {
	if r.closed {
		return 0, httperrors.NewSpoolError("read of closed response", os.ErrClosed)
	}
	return r.br.Read(p)
}

// Rewind moves the read position back to the first body byte
func (r *Response) Rewind() error {
	if r.closed {
		return httperrors.NewSpoolError("rewind of closed response", os.ErrClosed)
	}
	if _, err := r.spool.Seek(r.head.HeaderEnd, io.SeekStart); err != nil {
		return err
	}
	r.br.Reset(r.spool)
	return nil
}

// Close releases and removes the spool file. Calling it again is a no-op.
func (r *Response) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.spool.Close()
}
