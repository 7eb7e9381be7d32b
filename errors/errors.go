package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType int

const (
	ErrorNone ErrorType = iota
	ErrorInvalidArgument
	ErrorResolve
	ErrorTransport
	ErrorTLS
	ErrorSpool
	ErrorProtocol
	ErrorTimeout
)

func (t ErrorType) String() string {
	switch t {
	case ErrorNone:
		return "None"
	case ErrorInvalidArgument:
		return "Invalid argument"
	case ErrorResolve:
		return "Resolve error"
	case ErrorTransport:
		return "Transport error"
	case ErrorTLS:
		return "TLS error"
	case ErrorSpool:
		return "Spool error"
	case ErrorProtocol:
		return "Protocol error"
	case ErrorTimeout:
		return "Timeout"
	default:
		return "Unknown error"
	}
}

// Kind identifies the precise failure within its ErrorType
type Kind int

const (
	KindNone Kind = iota

	// input validation, before any I/O
	BadURL
	RelativeURL
	UnknownScheme
	BadSNIName

	// name resolution
	DNSFailed
	DNSEmpty

	Transport
	TLSProtocol
	Spool

	// response framing
	StatusLineTooLong
	BadStatusLine
	BadStatusCode
	HeadersTooLong
	BadHeader

	Timeout
)

// Type returns the category a kind belongs to.
func (k Kind) Type() ErrorType {
	switch k {
	case BadURL, RelativeURL, UnknownScheme, BadSNIName:
		return ErrorInvalidArgument
	case DNSFailed, DNSEmpty:
		return ErrorResolve
	case Transport:
		return ErrorTransport
	case TLSProtocol:
		return ErrorTLS
	case Spool:
		return ErrorSpool
	case StatusLineTooLong, BadStatusLine, BadStatusCode, HeadersTooLong, BadHeader:
		return ErrorProtocol
	case Timeout:
		return ErrorTimeout
	default:
		return ErrorNone
	}
}

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case BadURL:
		return "malformed url"
	case RelativeURL:
		return "relative url"
	case UnknownScheme:
		return "no port or unsupported scheme"
	case BadSNIName:
		return "invalid sni name"
	case DNSFailed:
		return "dns lookup failed"
	case DNSEmpty:
		return "resolution empty"
	case Transport:
		return "transport failure"
	case TLSProtocol:
		return "tls protocol failure"
	case Spool:
		return "spool failure"
	case StatusLineTooLong:
		return "status line too long"
	case BadStatusLine:
		return "invalid status line"
	case BadStatusCode:
		return "invalid status code"
	case HeadersTooLong:
		return "headers are too long"
	case BadHeader:
		return "invalid header"
	case Timeout:
		return "timed out"
	default:
		return fmt.Sprintf("unknown kind %d", int(k))
	}
}

// HttpError is the main error type for the HTTP client
type HttpError struct {
	Type          ErrorType
	Kind          Kind
	Message       string
	UnderlyingErr error
}

// Error implements the error interface
func (e *HttpError) Error() string {
	if e == nil {
		return "no error"
	}

	s := fmt.Sprintf("%s (%s)", e.Type, e.Kind)
	if e.Message != "" {
		s = fmt.Sprintf("%s: %s", s, e.Message)
	}

	if e.UnderlyingErr != nil {
		return fmt.Sprintf("%s (caused by: %v)", s, e.UnderlyingErr)
	}

	return s
}

// Unwrap returns the underlying error for error chain support
func (e *HttpError) Unwrap() error {
	return e.UnderlyingErr
}

// Is reports whether target is an *HttpError of the same kind, so that
// errors.Is(err, &HttpError{Kind: k}) works as a classification check.
func (e *HttpError) Is(target error) bool {
	t, ok := target.(*HttpError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind
func New(kind Kind, message string, underlying error) *HttpError {
	return &HttpError{
		Type:          kind.Type(),
		Kind:          kind,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewInvalidArgumentError creates a new input validation error
func NewInvalidArgumentError(kind Kind, message string) *HttpError {
	return New(kind, message, nil)
}

// NewResolveError creates a new name resolution error
func NewResolveError(kind Kind, message string, underlying error) *HttpError {
	return New(kind, message, underlying)
}

// NewTransportError creates a new transport error
func NewTransportError(message string, underlying error) *HttpError {
	return New(Transport, message, underlying)
}

// NewTLSError creates a new TLS handshake or record layer error
func NewTLSError(message string, underlying error) *HttpError {
	return New(TLSProtocol, message, underlying)
}

// NewSpoolError creates a new spool file error
func NewSpoolError(message string, underlying error) *HttpError {
	return New(Spool, message, underlying)
}

// NewProtocolError creates a new response framing error
func NewProtocolError(kind Kind, message string) *HttpError {
	return New(kind, message, nil)
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, underlying error) *HttpError {
	return New(Timeout, message, underlying)
}

// KindOf returns the kind of the first *HttpError in err's chain, or
// KindNone if there is none.
func KindOf(err error) Kind {
	var he *HttpError
	if stderrors.As(err, &he) {
		return he.Kind
	}
	return KindNone
}
