// Package llm provides the internal representations of chat relay requests,
// upstream completion requests and the errors that travel between them.
package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorResponse is the JSON body returned for any failure that happens before
// a response body has started streaming.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrorKind classifies a relay failure.
type ErrorKind int

const (
	// KindUnknown is the zero value and maps to an internal error.
	KindUnknown ErrorKind = iota

	// KindUnauthenticated is a missing, invalid, expired or revoked bearer credential.
	KindUnauthenticated

	// KindMalformedInput is a request body that does not match the expected shape.
	KindMalformedInput

	// KindUpstreamUnavailable is a completion provider that rejected or could
	// not start the call.
	KindUpstreamUnavailable

	// KindStreamInterrupted is a provider stream that ended abnormally after
	// it had started.
	KindStreamInterrupted
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindMalformedInput:
		return "malformed_input"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindStreamInterrupted:
		return "stream_interrupted"
	default:
		return "unknown"
	}
}

// statusByKind is the single mapping from failure class to HTTP status.
var statusByKind = map[ErrorKind]int{
	KindUnknown:             http.StatusInternalServerError,
	KindUnauthenticated:     http.StatusUnauthorized,
	KindMalformedInput:      http.StatusBadRequest,
	KindUpstreamUnavailable: http.StatusInternalServerError,
	KindStreamInterrupted:   http.StatusBadGateway,
}

// Error is a classified relay failure. Message is safe to return to clients;
// Cause is for logs only.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a classified error.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Unauthenticated returns the generic credential failure. The cause is kept
// for logging and never shown to the client.
func Unauthenticated(cause error) *Error {
	return NewError(KindUnauthenticated, "not authenticated", cause)
}

// MalformedInput returns a request shape failure with a client-facing detail.
func MalformedInput(detail string, cause error) *Error {
	return NewError(KindMalformedInput, detail, cause)
}

// UpstreamUnavailable returns a failure to open the provider call.
func UpstreamUnavailable(cause error) *Error {
	return NewError(KindUpstreamUnavailable, "upstream provider unavailable", cause)
}

// StreamInterrupted returns a failure that happened mid-stream.
func StreamInterrupted(cause error) *Error {
	return NewError(KindStreamInterrupted, "upstream stream interrupted", cause)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// StatusCode maps err to the HTTP status that reports it.
func StatusCode(err error) int {
	return statusByKind[KindOf(err)]
}

// PublicMessage returns the text to place in an ErrorResponse for err.
// Unclassified errors never leak their text.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
