package main

import (
	"context"
	"net"
	"os"

	"github.com/die-net/proxytunnel/internal/relay"
)

func runRelay(ctx context.Context, opts *options, host, port string) error {
	conn, err := dialTunnel(ctx, opts, host, port)
	if err != nil {
		return err
	}

	opts.log.WithField("target", net.JoinHostPort(host, port)).Info("relaying stdio")
	return relay.Pipe(ctx, conn, os.Stdin, os.Stdout)
}

// dialTunnel builds the tunnel to host:port, bounded by --timeout.
func dialTunnel(ctx context.Context, opts *options, host, port string) (net.Conn, error) {
	cfg, err := opts.tunnelConfig(host, port)
	if err != nil {
		return nil, err
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	return opts.builder().Build(ctx, cfg)
}
