package tunnel

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/proxy"
)

var (
	_ proxy.Dialer        = (*ProxyDialer)(nil)
	_ proxy.ContextDialer = (*ProxyDialer)(nil)
)

// ProxyDialer dials targets through a fixed proxy, building one tunnel per
// call. It implements proxy.Dialer and proxy.ContextDialer from
// golang.org/x/net/proxy.
type ProxyDialer struct {
	b     *Builder
	proxy Proxy
}

// Dialer returns a ProxyDialer that builds tunnels through p.
func (b *Builder) Dialer(p Proxy) *ProxyDialer {
	return &ProxyDialer{b: b, proxy: p}
}

// Dial is DialContext with a background context.
func (d *ProxyDialer) Dial(network, address string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, address)
}

// DialContext builds a tunnel to address ("host:port").
func (d *ProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if !strings.HasPrefix(network, "tcp") {
		return nil, fmt.Errorf("proxy dial %s %s: unsupported network", network, address)
	}

	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("proxy dial %s: %w", address, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("proxy dial %s: bad port %q", address, portStr)
	}

	p := d.proxy
	return d.b.Build(ctx, Config{Host: host, Port: port, Proxy: &p})
}

// RegisterDialerTypes registers the socks4, socks4a and http schemes with
// golang.org/x/net/proxy, so proxy.FromURL returns dialers built by b.
//
// socks5 is not registered: proxy.FromURL handles it internally.
func RegisterDialerTypes(b *Builder) {
	for _, scheme := range []string{"socks4", "socks4a", "http"} {
		proxy.RegisterDialerType(scheme, func(u *url.URL, forward proxy.Dialer) (proxy.Dialer, error) {
			p, err := proxyFromURL(u)
			if err != nil {
				return nil, err
			}
			return b.withForward(forward).Dialer(*p), nil
		})
	}
}

// withForward returns a Builder that reaches the proxy through forward.
func (b *Builder) withForward(forward proxy.Dialer) *Builder {
	if forward == nil || forward == proxy.Direct {
		return b
	}
	opts := b.opts
	if cd, ok := forward.(proxy.ContextDialer); ok {
		opts.Dialer = cd
	} else {
		opts.Dialer = contextDialerFunc(func(_ context.Context, network, address string) (net.Conn, error) {
			return forward.Dial(network, address)
		})
	}
	return &Builder{opts: opts}
}

type contextDialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f contextDialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}
