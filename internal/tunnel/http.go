package tunnel

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
)

// BuildHTTP builds a tunnel through an HTTP proxy with the CONNECT method.
//
// The proxy host is resolved by the dialer. A 2xx answer establishes the
// tunnel; any other status is a *ConnectionError wrapping *HTTPStatusError.
func (b *Builder) BuildHTTP(ctx context.Context, cfg Config) (net.Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.expectType(ProxyHTTP); err != nil {
		return nil, err
	}

	log := b.attemptLogger(&cfg)
	log.Debug("connecting to proxy")

	conn, err := b.opts.Dialer.DialContext(ctx, "tcp", cfg.Proxy.Address())
	if err != nil {
		return nil, fail(log, StageDial, err)
	}

	log.Debug("handshaking")

	var tunnel net.Conn
	err = b.negotiate(ctx, conn, func() error {
		var err error
		tunnel, err = httpConnect(conn, cfg.Target())
		return err
	})
	if err != nil {
		_ = conn.Close()
		return nil, fail(log, StageHandshake, err)
	}

	log.Debug("tunnel established")
	return tunnel, nil
}

func httpConnect(conn net.Conn, target string) (net.Conn, error) {
	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: target},
		Host:   target,
		Header: make(http.Header),
	}

	if err := req.Write(conn); err != nil {
		return nil, fmt.Errorf("http proxy connect write: %w", err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		return nil, fmt.Errorf("http proxy connect read: %w", err)
	}
	// resp.Body is left alone: after a 2xx it would read tunnel bytes, and
	// on failure the conn is closed anyway.
	if resp.StatusCode/100 != 2 {
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	// Target bytes that arrived with the response header must not be lost.
	if n := br.Buffered(); n > 0 {
		early, _ := br.Peek(n)
		return &bufferedConn{
			Conn: conn,
			r:    io.MultiReader(bytes.NewReader(bytes.Clone(early)), conn),
		}, nil
	}
	return conn, nil
}

// bufferedConn replays bytes read past the CONNECT response before reading
// from the underlying conn.
type bufferedConn struct {
	net.Conn
	r io.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

// CloseWrite half-closes the underlying conn if it supports it.
func (c *bufferedConn) CloseWrite() error {
	if cw, ok := c.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return errors.ErrUnsupported
}
