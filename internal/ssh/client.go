package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

// aLongTimeAgo is a deadline in the past, used to interrupt blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

// ClientConfig holds the credentials and checks for one SSH session.
type ClientConfig struct {
	User string
	// Password is optional if Signers is set.
	Password string
	// Signers are offered for public key authentication before Password.
	Signers []ssh.Signer
	// HostKeyCallback verifies the server's host key.
	HostKeyCallback ssh.HostKeyCallback
	// HandshakeTimeout bounds the SSH handshake. Zero means no limit beyond
	// the context.
	HandshakeTimeout time.Duration
}

// Validate reports the first missing setting.
func (c *ClientConfig) Validate() error {
	switch {
	case c.User == "":
		return errors.New("ssh: missing username")
	case c.Password == "" && len(c.Signers) == 0:
		return errors.New("ssh: missing password or key")
	case c.HostKeyCallback == nil:
		return errors.New("ssh: missing host key callback")
	}
	return nil
}

func (c *ClientConfig) authMethods() []ssh.AuthMethod {
	var methods []ssh.AuthMethod
	if len(c.Signers) > 0 {
		methods = append(methods, ssh.PublicKeys(c.Signers...))
	}
	if c.Password != "" {
		methods = append(methods, ssh.Password(c.Password))
	}
	return methods
}

// NewClient performs the SSH handshake over conn and returns the client.
//
// conn is usually a proxy tunnel. addr is the server's host:port as the user
// named it; it is what host keys are verified and recorded against.
//
// On error, conn is closed.
func NewClient(ctx context.Context, conn net.Conn, addr string, cfg ClientConfig) (*ssh.Client, error) {
	if err := cfg.Validate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            cfg.authMethods(),
		HostKeyCallback: cfg.HostKeyCallback,
	}

	if cfg.HandshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(cfg.HandshakeTimeout))
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(aLongTimeAgo)
	})

	cc, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if !stop() {
		if err == nil {
			_ = cc.Close()
		}
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake: %w", ctx.Err())
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake: %w", err)
	}

	if cfg.HandshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Time{})
	}

	return ssh.NewClient(cc, chans, reqs), nil
}
