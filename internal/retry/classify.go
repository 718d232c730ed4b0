// Package retry classifies failed calls and re-runs them under a bounded policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
)

// Kind is the category of a failed call.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindClient
	KindServer
	KindTimeout
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	case KindTimeout:
		return "timeout"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// ErrMalformedResponse reports a response that arrived but cannot be used.
var ErrMalformedResponse = errors.New("malformed response")

// StatusError is returned by clients when the remote side answered with a non-success status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bad status: %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("bad status: %d: %s", e.Code, e.Message)
}

// Error is a classified failure. It unwraps to the original cause.
type Error struct {
	Kind     Kind
	Status   int
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	prefix := e.Kind.String() + " error"
	if e.Status != 0 {
		prefix = fmt.Sprintf("%s (status %d)", prefix, e.Status)
	}
	if e.Attempts > 1 {
		prefix = fmt.Sprintf("%s after %d attempts", prefix, e.Attempts)
	}
	if e.Err == nil {
		return prefix
	}
	return prefix + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth another attempt under the default predicate.
// Client errors are caller mistakes and are never retried.
func (e *Error) Retryable() bool {
	return e.Kind != KindClient
}

// Classify maps err to its Kind. A nil error yields nil and an already classified error is returned as is.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	var status *StatusError
	if errors.As(err, &status) {
		switch {
		case status.Code >= 500 && status.Code <= 599:
			return &Error{Kind: KindServer, Status: status.Code, Err: err}
		case status.Code >= 400 && status.Code <= 499:
			return &Error{Kind: KindClient, Status: status.Code, Err: err}
		default:
			return &Error{Kind: KindUnknown, Status: status.Code, Err: err}
		}
	}

	if errors.Is(err, ErrMalformedResponse) {
		return &Error{Kind: KindMalformed, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &Error{Kind: KindTimeout, Err: err}
		}
		return &Error{Kind: KindNetwork, Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &Error{Kind: KindNetwork, Err: err}
	}

	return &Error{Kind: KindUnknown, Err: err}
}
