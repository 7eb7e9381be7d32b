package protocol

import (
	"bytes"
	"errors"
)

// MaxHeaders bounds the number of header fields a response may carry
const MaxHeaders = 64

// HttpHeader is one response header field
type HttpHeader struct {
	Key   string
	Value string
}

var (
	ErrTooManyHeaders = errors.New("too many headers")
	ErrHeaderName     = errors.New("invalid header name")
	ErrHeaderValue    = errors.New("invalid header value")
	ErrNewLine        = errors.New("invalid line ending")
)

// ParseHeaders parses a header block up to and including the empty line
// that ends it. Lines may end in CRLF or a bare LF. When the block is
// complete it returns the fields and the number of bytes consumed; when
// buf ends first it returns complete == false and no error. At most limit
// fields are accepted.
func ParseHeaders(buf []byte, limit int) (headers []HttpHeader, n int, complete bool, err error) {
	pos := 0
	for {
		if pos >= len(buf) {
			return nil, 0, false, nil
		}

		// end of block
		switch buf[pos] {
		case '\n':
			return headers, pos + 1, true, nil
		case '\r':
			if pos+1 >= len(buf) {
				return nil, 0, false, nil
			}
			if buf[pos+1] != '\n' {
				return nil, 0, false, ErrNewLine
			}
			return headers, pos + 2, true, nil
		}

		if len(headers) == limit {
			return nil, 0, false, ErrTooManyHeaders
		}

		// field name, then a colon with no whitespace before it
		start := pos
		for pos < len(buf) && isToken(buf[pos]) {
			pos++
		}
		if pos >= len(buf) {
			return nil, 0, false, nil
		}
		if pos == start || buf[pos] != ':' {
			return nil, 0, false, ErrHeaderName
		}
		key := string(buf[start:pos])
		pos++

		// field value up to the line ending
		vstart := pos
		for pos < len(buf) && buf[pos] != '\r' && buf[pos] != '\n' {
			if !isValueByte(buf[pos]) {
				return nil, 0, false, ErrHeaderValue
			}
			pos++
		}
		if pos >= len(buf) {
			return nil, 0, false, nil
		}
		value := buf[vstart:pos]

		if buf[pos] == '\r' {
			if pos+1 >= len(buf) {
				return nil, 0, false, nil
			}
			if buf[pos+1] != '\n' {
				return nil, 0, false, ErrNewLine
			}
			pos++
		}
		pos++

		headers = append(headers, HttpHeader{
			Key:   key,
			Value: string(bytes.Trim(value, " \t")),
		})
	}
}

// isToken reports whether c is a tchar (RFC 9110 section 5.6.2)
func isToken(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

// isValueByte accepts visible ASCII, space, tab and obs-text
func isValueByte(c byte) bool {
	return c == '\t' || (c >= ' ' && c != 0x7f)
}
