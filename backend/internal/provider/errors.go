package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// Kind classifies a failed generation call for retry decisions.
type Kind int

const (
	KindConnectivity Kind = iota // service unreachable; retryable
	KindTimeout                  // attempt exceeded its deadline
	KindApplication              // service answered with a non-2xx status
	KindMalformed                // reply could not be understood
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindTimeout:
		return "timeout"
	case KindApplication:
		return "application"
	case KindMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Retryable reports whether another attempt may succeed.
func (k Kind) Retryable() bool {
	return k == KindConnectivity
}

// Error is returned by every Provider.Generate failure.
type Error struct {
	Kind       Kind
	Backend    string
	StatusCode int // set for KindApplication
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s error (status %d): %v", e.Backend, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Backend, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify maps any error to a Kind. Errors that cannot be recognised as
// transport or status failures are treated as malformed, so they are never
// retried.
func Classify(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}

	// Failing to connect, including a dial timeout, means the service is unreachable.
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindConnectivity
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}

	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return KindApplication
	}
	var anErr *anthropic.Error
	if errors.As(err, &anErr) {
		return KindApplication
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &opErr),
		errors.As(err, &dnsErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return KindConnectivity
	}

	return KindMalformed
}

// wrap tags err with its Kind unless it is already a provider error.
func wrap(backend string, err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	e := &Error{Kind: Classify(err), Backend: backend, Err: err}
	var oaErr *openai.Error
	var anErr *anthropic.Error
	switch {
	case errors.As(err, &oaErr):
		e.StatusCode = oaErr.StatusCode
	case errors.As(err, &anErr):
		e.StatusCode = anErr.StatusCode
	}
	return e
}
