//go:build unix

package tunnel

import (
	"errors"

	"golang.org/x/sys/unix"
)

func classifyErrno(err error) (Reason, bool) {
	switch {
	case errors.Is(err, unix.ECONNREFUSED):
		return ReasonRefused, true
	case errors.Is(err, unix.ECONNRESET), errors.Is(err, unix.EPIPE), errors.Is(err, unix.ECONNABORTED):
		return ReasonReset, true
	case errors.Is(err, unix.ETIMEDOUT):
		return ReasonTimeout, true
	case errors.Is(err, unix.ENETUNREACH), errors.Is(err, unix.EHOSTUNREACH), errors.Is(err, unix.EADDRNOTAVAIL):
		return ReasonUnreachable, true
	}
	return "", false
}
