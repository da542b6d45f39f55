package tunnel

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// Resolver looks up the addresses of the proxy host. *net.Resolver
// satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Options configures a Builder. The zero value is usable.
type Options struct {
	// Resolver resolves SOCKS proxy host names. Defaults to
	// net.DefaultResolver.
	Resolver Resolver

	// Dialer opens the TCP connection to the proxy. Defaults to a direct
	// dialer honoring DialTimeout and KeepAlive.
	Dialer proxy.ContextDialer

	// DialTimeout bounds the TCP connect to the proxy. Zero means no limit
	// beyond the context.
	DialTimeout time.Duration

	// NegotiationTimeout bounds the proxy handshake. The deadline is
	// cleared before the conn is returned.
	NegotiationTimeout time.Duration

	// KeepAlive, if set, is applied to the TCP connection to the proxy.
	KeepAlive *net.KeepAliveConfig

	// Logger receives per-attempt debug and failure logs. Defaults to a
	// logger that discards everything.
	Logger logrus.FieldLogger
}

func (o Options) withDefaults() Options {
	if o.Resolver == nil {
		o.Resolver = net.DefaultResolver
	}
	if o.Dialer == nil {
		o.Dialer = &directDialer{timeout: o.DialTimeout, keepAlive: o.KeepAlive}
	}
	if o.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.Logger = l
	}
	return o
}

type directDialer struct {
	timeout   time.Duration
	keepAlive *net.KeepAliveConfig
}

func (d *directDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	dd := net.Dialer{Timeout: d.timeout}

	conn, err := dd.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}

	if tc, ok := conn.(*net.TCPConn); ok && d.keepAlive != nil {
		_ = tc.SetKeepAliveConfig(*d.keepAlive)
	}

	return conn, nil
}
