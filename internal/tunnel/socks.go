package tunnel

import (
	"context"
	"net"
	"strconv"

	"github.com/die-net/proxytunnel/internal/socks4"
	"github.com/die-net/proxytunnel/internal/socks5"
)

// BuildSOCKS builds a tunnel through a SOCKS4 or SOCKS5 proxy.
//
// The proxy host is resolved locally and the first address is dialed. The
// target host is sent to the proxy unresolved. Configuration problems are
// returned as *ConfigError before any lookup; everything after that fails as
// a *ConnectionError, with any half-open conn closed.
func (b *Builder) BuildSOCKS(ctx context.Context, cfg Config) (net.Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.expectType(ProxySOCKS4, ProxySOCKS5); err != nil {
		return nil, err
	}

	log := b.attemptLogger(&cfg)
	log.Debug("resolving proxy")

	addrs, err := b.opts.Resolver.LookupHost(ctx, cfg.Proxy.Host)
	if err != nil {
		return nil, fail(log, StageResolve, &ResolutionError{Host: cfg.Proxy.Host, Err: err})
	}
	if len(addrs) == 0 {
		return nil, fail(log, StageResolve, &ResolutionError{Host: cfg.Proxy.Host})
	}

	proxyAddr := net.JoinHostPort(addrs[0], strconv.Itoa(cfg.Proxy.Port))
	log = log.WithField("proxy_addr", proxyAddr)
	log.Debug("connecting to proxy")

	conn, err := b.opts.Dialer.DialContext(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, fail(log, StageDial, err)
	}

	version := cfg.Proxy.Type.socksVersion()
	target := cfg.Target()
	log.WithField("version", version).Debug("handshaking")

	err = b.negotiate(ctx, conn, func() error {
		if version == 4 {
			return socks4.ClientConnect(conn, target, "")
		}
		return socks5.ClientDial(conn, target)
	})
	if err != nil {
		_ = conn.Close()
		return nil, fail(log, StageHandshake, err)
	}

	log.Debug("tunnel established")
	return conn, nil
}
