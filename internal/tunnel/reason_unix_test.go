//go:build unix

package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/die-net/proxytunnel/internal/socks4"
	"github.com/die-net/proxytunnel/internal/socks5"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	opErr := func(errno error) error {
		return &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", errno)}
	}

	tests := []struct {
		name string
		err  error
		want Reason
	}{
		{name: "refused", err: opErr(unix.ECONNREFUSED), want: ReasonRefused},
		{name: "reset", err: fmt.Errorf("read reply: %w", opErr(unix.ECONNRESET)), want: ReasonReset},
		{name: "broken pipe", err: opErr(unix.EPIPE), want: ReasonReset},
		{name: "errno timeout", err: opErr(unix.ETIMEDOUT), want: ReasonTimeout},
		{name: "net unreachable", err: opErr(unix.ENETUNREACH), want: ReasonUnreachable},
		{name: "host unreachable", err: opErr(unix.EHOSTUNREACH), want: ReasonUnreachable},
		{name: "deadline", err: fmt.Errorf("read: %w", os.ErrDeadlineExceeded), want: ReasonTimeout},
		{name: "context deadline", err: context.DeadlineExceeded, want: ReasonTimeout},
		{name: "canceled", err: fmt.Errorf("%w: %w", context.Canceled, os.ErrDeadlineExceeded), want: ReasonCanceled},
		{name: "unresolved", err: &ResolutionError{Host: "proxy.example"}, want: ReasonUnresolved},
		{name: "http status", err: &HTTPStatusError{StatusCode: 403, Status: "403 Forbidden"}, want: ReasonRejected},
		{name: "socks4 reply", err: &socks4.ReplyError{Code: socks4.RepRejected}, want: ReasonRejected},
		{name: "socks5 reply", err: &socks5.ReplyError{Code: socks5.RepHostUnreachable}, want: ReasonRejected},
		{name: "socks5 auth", err: socks5.ErrAuthRequired, want: ReasonRejected},
		{name: "eof", err: fmt.Errorf("read reply: %w", io.ErrUnexpectedEOF), want: ReasonProtocol},
		{name: "other", err: errors.New("boom"), want: ReasonUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}
