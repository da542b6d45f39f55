package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/die-net/proxytunnel/internal/socks4"
	"github.com/die-net/proxytunnel/internal/socks5"
)

// ConfigError reports a missing or unusable configuration field. It is
// returned before any network activity.
type ConfigError struct {
	// Field is the dotted path below the config, e.g. "proxy.host".
	Field string
	// Reason is empty when the field is missing.
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("missing field 'config.%s'", e.Field)
	}
	return fmt.Sprintf("invalid field 'config.%s': %s", e.Field, e.Reason)
}

func missingField(field string) error {
	return &ConfigError{Field: field}
}

// ResolutionError reports that the proxy host could not be resolved to an
// address. Err is nil when the lookup succeeded but returned nothing.
type ResolutionError struct {
	Host string
	Err  error
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("couldn't resolve '%s'", e.Host)
	}
	return fmt.Sprintf("couldn't resolve '%s': %v", e.Host, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// HTTPStatusError is a non-2xx answer to a CONNECT request.
type HTTPStatusError struct {
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http proxy connect failed: %s", e.Status)
}

// Stage is the step of a tunnel build that failed.
type Stage string

const (
	StageResolve   Stage = "resolve"
	StageDial      Stage = "dial"
	StageHandshake Stage = "handshake"
)

// Reason is a coarse classification of a network failure.
type Reason string

const (
	ReasonRefused     Reason = "refused"
	ReasonReset       Reason = "reset"
	ReasonTimeout     Reason = "timeout"
	ReasonUnreachable Reason = "unreachable"
	ReasonUnresolved  Reason = "unresolved"
	ReasonCanceled    Reason = "canceled"
	ReasonRejected    Reason = "rejected"
	ReasonProtocol    Reason = "protocol"
	ReasonUnknown     Reason = "unknown"
)

// ConnectionError is the single shape of every network-originated failure:
// resolving the proxy, dialing it, or handshaking with it. Err keeps the
// original failure for errors.Is/As.
type ConnectionError struct {
	Stage  Stage
	Reason Reason
	Err    error
}

func (e *ConnectionError) Error() string {
	return "error while connecting to the proxy: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func asConnectionFailure(stage Stage, err error) *ConnectionError {
	return &ConnectionError{Stage: stage, Reason: classify(err), Err: err}
}

func classify(err error) Reason {
	var (
		resolveErr *ResolutionError
		statusErr  *HTTPStatusError
		s4Err      *socks4.ReplyError
		s5Err      *socks5.ReplyError
		netErr     net.Error
	)

	switch {
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return ReasonTimeout
	case errors.As(err, &resolveErr):
		return ReasonUnresolved
	case errors.As(err, &statusErr), errors.As(err, &s4Err), errors.As(err, &s5Err),
		errors.Is(err, socks5.ErrAuthRequired), errors.Is(err, socks5.ErrNoAcceptableMethods):
		return ReasonRejected
	}

	if r, ok := classifyErrno(err); ok {
		return r
	}

	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return ReasonTimeout
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ReasonProtocol
	}
	return ReasonUnknown
}
