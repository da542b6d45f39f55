// Package relay copies bytes between a tunnel and local streams.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// Pipe relays between tunnel and a local stream pair, usually stdin and
// stdout.
//
// Bytes read from in are written to tunnel. When in reaches EOF the
// tunnel's write side is half-closed, so the far end sees EOF while replies
// keep flowing. Bytes read from tunnel are written to out. Pipe returns once
// the tunnel reaches EOF without waiting on in: a read blocked on a tty or
// inherited pipe cannot be interrupted, so the copier ends on its next read
// or write instead. Canceling ctx closes the tunnel and returns ctx.Err().
//
// tunnel is always closed on return. in is left open for the caller.
func Pipe(ctx context.Context, tunnel net.Conn, in io.Reader, out io.Writer) error {
	var closeOnce sync.Once
	closeTunnel := func() {
		closeOnce.Do(func() { _ = tunnel.Close() })
	}
	defer closeTunnel()

	stop := context.AfterFunc(ctx, closeTunnel)
	defer stop()

	upErr := make(chan error, 1)
	go func() {
		if _, err := io.Copy(tunnel, in); err != nil {
			upErr <- fmt.Errorf("copy to tunnel: %w", err)
			return
		}
		upErr <- closeWrite(tunnel)
	}()

	downErr := make(chan error, 1)
	go func() {
		_, err := io.Copy(out, tunnel)
		if err != nil {
			err = fmt.Errorf("copy from tunnel: %w", err)
		}
		downErr <- err
	}()

	var err error
	for done := false; !done; {
		select {
		case uerr := <-upErr:
			upErr = nil
			if uerr != nil {
				// A write failing after the far end already finished
				// cleanly is not an error.
				closeTunnel()
				if derr := <-downErr; derr != nil {
					err = uerr
				}
				done = true
			}
		case err = <-downErr:
			done = true
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func closeWrite(c net.Conn) error {
	cw, ok := c.(interface{ CloseWrite() error })
	if !ok {
		return nil
	}
	if err := cw.CloseWrite(); err != nil && !errors.Is(err, errors.ErrUnsupported) {
		return fmt.Errorf("half-close tunnel: %w", err)
	}
	return nil
}
