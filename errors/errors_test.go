package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestKind_Type(t *testing.T) {
	tests := []struct {
		kind Kind
		want ErrorType
	}{
		{RelativeURL, ErrorInvalidArgument},
		{UnknownScheme, ErrorInvalidArgument},
		{BadSNIName, ErrorInvalidArgument},
		{DNSFailed, ErrorResolve},
		{DNSEmpty, ErrorResolve},
		{Transport, ErrorTransport},
		{TLSProtocol, ErrorTLS},
		{Spool, ErrorSpool},
		{StatusLineTooLong, ErrorProtocol},
		{BadStatusLine, ErrorProtocol},
		{BadStatusCode, ErrorProtocol},
		{HeadersTooLong, ErrorProtocol},
		{BadHeader, ErrorProtocol},
		{Timeout, ErrorTimeout},
		{KindNone, ErrorNone},
	}

	for _, tt := range tests {
		if got := tt.kind.Type(); got != tt.want {
			t.Errorf("%v.Type() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestHttpError_Message(t *testing.T) {
	err := NewTransportError("read failed", io.ErrUnexpectedEOF)

	msg := err.Error()
	if !strings.Contains(msg, "Transport error") {
		t.Errorf("Expected type in message, got %q", msg)
	}
	if !strings.Contains(msg, "read failed") {
		t.Errorf("Expected message text, got %q", msg)
	}
	if !strings.Contains(msg, io.ErrUnexpectedEOF.Error()) {
		t.Errorf("Expected cause in message, got %q", msg)
	}

	var nilErr *HttpError
	if nilErr.Error() != "no error" {
		t.Errorf("Expected nil receiver message, got %q", nilErr.Error())
	}
}

func TestHttpError_Unwrap(t *testing.T) {
	err := NewSpoolError("create failed", io.ErrShortWrite)
	if !stderrors.Is(err, io.ErrShortWrite) {
		t.Error("Expected errors.Is to find the underlying error")
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("get: %w", NewProtocolError(HeadersTooLong, "no blank line"))
	if got := KindOf(wrapped); got != HeadersTooLong {
		t.Errorf("Expected HeadersTooLong, got %v", got)
	}

	if got := KindOf(io.EOF); got != KindNone {
		t.Errorf("Expected KindNone for foreign error, got %v", got)
	}

	if !stderrors.Is(wrapped, &HttpError{Kind: HeadersTooLong}) {
		t.Error("Expected errors.Is to match on kind")
	}
	if stderrors.Is(wrapped, &HttpError{Kind: BadHeader}) {
		t.Error("Expected errors.Is not to match a different kind")
	}
}
