package httpproxy

import "fmt"

// ErrorKind is the HTTP engine's closed error taxonomy (§7).
type ErrorKind string

const (
	ErrHeaderTooBig        ErrorKind = "HeaderTooBig"
	ErrHeaderIncomplete    ErrorKind = "HeaderIncomplete"
	ErrHeaderNotUtf8       ErrorKind = "HeaderNotUtf8"
	ErrHeaderParse         ErrorKind = "HeaderParse"
	ErrUrlProtocolInvalid  ErrorKind = "UrlProtocolInvalid"
	ErrResponseHeaderParse ErrorKind = "ResponseHeaderParse"
	ErrLineRead            ErrorKind = "LineRead"
	ErrLineTooLong         ErrorKind = "LineTooLong"
	ErrLineNotUtf8         ErrorKind = "LineNotUtf8"
	ErrTargetUnreachable   ErrorKind = "TargetUnreachable"
	ErrLimitedReadWrite    ErrorKind = "LimitedTransceiverReadWrite"
	ErrChunkTransceiver    ErrorKind = "ChunkTransceiver"
	ErrInternal            ErrorKind = "Internal"
)

// Error is the structured error value threaded through the HTTP engine.
// Modeled on WhileEndless-go-rawhttp/pkg/errors.Error: a category tag plus
// an optional key (the target host:port for TargetUnreachable) and an
// underlying cause, unwrap-able for errors.Is/As.
type Error struct {
	Kind ErrorKind
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s(%s): %v", e.Kind, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func newKeyedErr(kind ErrorKind, key string, err error) *Error {
	return &Error{Kind: kind, Key: key, Err: err}
}

// KindOf extracts the ErrorKind from err, defaulting to Internal for
// unrecognized error values.
func KindOf(err error) ErrorKind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return ErrInternal
}
