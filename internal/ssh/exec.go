package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"
)

// Run executes cmd in a new session on client and returns its exit status.
//
// stdin may be nil. It is copied in the background and never waited for, so
// a terminal that is never closed does not keep Run from returning. Canceling
// ctx signals the remote command and closes the session.
func Run(ctx context.Context, client *ssh.Client, cmd string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	session, err := client.NewSession()
	if err != nil {
		return -1, fmt.Errorf("ssh new session: %w", err)
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr

	var in io.WriteCloser
	if stdin != nil {
		in, err = session.StdinPipe()
		if err != nil {
			return -1, fmt.Errorf("ssh stdin: %w", err)
		}
	}

	if err := session.Start(cmd); err != nil {
		return -1, fmt.Errorf("ssh start %q: %w", cmd, err)
	}

	if in != nil {
		go func() {
			_, _ = io.Copy(in, stdin)
			_ = in.Close()
		}()
	}

	stop := context.AfterFunc(ctx, func() {
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
	})

	err = session.Wait()
	if !stop() {
		return -1, ctx.Err()
	}

	var exitErr *ssh.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		return exitErr.ExitStatus(), nil
	default:
		return -1, fmt.Errorf("ssh run %q: %w", cmd, err)
	}
}
