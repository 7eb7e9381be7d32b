package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	httperrors "github.com/nczempin/httpc-oneshot/errors"
)

// PeekSize bounds the status line and header block together
const PeekSize = 32 << 10

// ResponseHead is the framed start of a spooled response
type ResponseHead struct {
	Version    string
	StatusCode uint16
	Reason     string
	Headers    []HttpHeader
	// HeaderEnd is the offset of the first body byte
	HeaderEnd int64
}

// Frame rewinds r, parses the status line and header block from its first
// PeekSize bytes and leaves r positioned at the first body byte. Header
// values are kept but not interpreted: the body is whatever follows.
func Frame(r io.ReadSeeker) (*ResponseHead, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, spoolError("failed to rewind spool", err)
	}

	buf := make([]byte, PeekSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, spoolError("failed to read response head", err)
	}
	buf = buf[:n]

	lf := bytes.IndexByte(buf, '\n')
	if lf < 0 {
		return nil, httperrors.NewProtocolError(
			httperrors.StatusLineTooLong,
			fmt.Sprintf("no line feed in the first %d bytes", len(buf)),
		)
	}

	head, err := parseStatusLine(buf[:lf])
	if err != nil {
		return nil, err
	}

	headers, off, complete, err := ParseHeaders(buf[lf+1:], MaxHeaders)
	if err != nil {
		return nil, httperrors.NewProtocolError(httperrors.BadHeader, err.Error())
	}
	if !complete {
		return nil, httperrors.NewProtocolError(
			httperrors.HeadersTooLong,
			fmt.Sprintf("header block does not end within %d bytes", PeekSize),
		)
	}
	head.Headers = headers
	head.HeaderEnd = int64(lf + 1 + off)

	if _, err := r.Seek(head.HeaderEnd, io.SeekStart); err != nil {
		return nil, spoolError("failed to seek to body", err)
	}
	return head, nil
}

func parseStatusLine(line []byte) (*ResponseHead, error) {
	if !utf8.Valid(line) {
		return nil, httperrors.NewProtocolError(httperrors.BadStatusLine, "status line is not valid utf-8")
	}

	fields := strings.Fields(string(line))
	if len(fields) < 2 {
		return nil, httperrors.NewProtocolError(
			httperrors.BadStatusLine,
			fmt.Sprintf("invalid status line format: %q", line),
		)
	}

	// one explicit plus sign is accepted, as in "+200"
	code, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "+"), 10, 16)
	if err != nil {
		return nil, httperrors.NewProtocolError(
			httperrors.BadStatusCode,
			fmt.Sprintf("invalid status code: %s", fields[1]),
		)
	}

	return &ResponseHead{
		Version:    fields[0],
		StatusCode: uint16(code),
		Reason:     strings.Join(fields[2:], " "),
	}, nil
}

// spoolError keeps errors the spool already classified
func spoolError(msg string, err error) error {
	if httperrors.KindOf(err) != httperrors.KindNone {
		return err
	}
	return httperrors.NewSpoolError(msg, err)
}

// Get returns the first value of the named header, matched case-insensitively
func (h *ResponseHead) Get(key string) (string, bool) {
	for _, hdr := range h.Headers {
		if strings.EqualFold(hdr.Key, key) {
			return hdr.Value, true
		}
	}
	return "", false
}
