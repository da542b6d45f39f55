package testutil

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"

	"github.com/die-net/proxytunnel/internal/socks4"
	"github.com/die-net/proxytunnel/internal/socks5"
)

// ConnectRequest is one request observed by a MockProxy.
type ConnectRequest struct {
	// Version is 4 or 5 for SOCKS and 0 for HTTP.
	Version int
	// Target is the destination exactly as the client sent it.
	Target string
	// SOCKS4a is set for SOCKS4 requests that carried a host name.
	SOCKS4a bool
	// Method and Host are set for HTTP requests.
	Method string
	Host   string
}

// MockProxyOptions control how a MockProxy answers.
type MockProxyOptions struct {
	// Reject makes a SOCKS proxy refuse the CONNECT.
	Reject bool
	// Status is the HTTP status answered to CONNECT. Zero means 200.
	Status int
	// EarlyData is sent in the same write as a successful handshake reply.
	EarlyData []byte
	// Stall makes the proxy read the request and never answer.
	Stall bool
	// Forward, if set, is the address the proxy relays granted tunnels to.
	// Otherwise the proxy echoes.
	Forward string
}

// MockProxy is a loopback proxy that records requests and, once a tunnel is
// granted, plays the target by echoing everything back or relays to
// MockProxyOptions.Forward.
type MockProxy struct {
	ln     net.Listener
	opts   MockProxyOptions
	handle func(net.Conn)

	wg        sync.WaitGroup
	conns     connSet
	closeOnce sync.Once

	mu   sync.Mutex
	reqs []ConnectRequest
}

// StartSOCKSProxy starts a mock proxy that speaks both SOCKS4(a) and SOCKS5,
// picking the dialect from the first byte of each connection.
func StartSOCKSProxy(t *testing.T, ctx context.Context, opts MockProxyOptions) *MockProxy {
	t.Helper()
	p := &MockProxy{opts: opts}
	p.handle = p.serveSOCKS
	p.start(t, ctx)
	return p
}

// StartHTTPProxy starts a mock HTTP CONNECT proxy.
func StartHTTPProxy(t *testing.T, ctx context.Context, opts MockProxyOptions) *MockProxy {
	t.Helper()
	p := &MockProxy{opts: opts}
	p.handle = p.serveHTTP
	p.start(t, ctx)
	return p
}

func (p *MockProxy) start(t *testing.T, ctx context.Context) {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	p.ln = ln

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			p.conns.add(c)
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				defer p.conns.remove(c)
				p.handle(c)
			}()
		}
	}()

	t.Cleanup(p.Close)
}

// Addr returns the proxy's listen address.
func (p *MockProxy) Addr() net.Addr {
	return p.ln.Addr()
}

// Port returns the proxy's listen port.
func (p *MockProxy) Port() int {
	return p.ln.Addr().(*net.TCPAddr).Port
}

// Requests returns the requests observed so far.
func (p *MockProxy) Requests() []ConnectRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ConnectRequest(nil), p.reqs...)
}

// Close stops the proxy, closes every connection and waits for handlers.
func (p *MockProxy) Close() {
	p.closeOnce.Do(func() {
		_ = p.ln.Close()
		p.conns.closeAll()
		p.wg.Wait()
	})
}

func (p *MockProxy) record(r ConnectRequest) {
	p.mu.Lock()
	p.reqs = append(p.reqs, r)
	p.mu.Unlock()
}

func (p *MockProxy) serveSOCKS(c net.Conn) {
	var first [1]byte
	if _, err := io.ReadFull(c, first[:]); err != nil {
		return
	}
	pc := &prefixConn{Conn: c, r: io.MultiReader(bytes.NewReader(first[:]), c)}

	switch first[0] {
	case socks4.Version:
		p.serveSOCKS4(pc)
	case socks5.Version:
		p.serveSOCKS5(pc)
	}
}

func (p *MockProxy) serveSOCKS4(c net.Conn) {
	req, err := socks4.ReadRequest(c)
	if err != nil {
		return
	}
	p.record(ConnectRequest{Version: int(req.Version), Target: req.Address(), SOCKS4a: req.IsSOCKS4a()})

	if p.opts.Stall {
		stall(c)
		return
	}
	if req.Command != socks4.CmdConnect || p.opts.Reject {
		_ = socks4.WriteReply(c, socks4.RepRejected)
		return
	}

	reply := append([]byte{0x00, socks4.RepGranted, 0, 0, 0, 0, 0, 0}, p.opts.EarlyData...)
	if _, err := c.Write(reply); err != nil {
		return
	}
	p.serveTarget(c, c)
}

func (p *MockProxy) serveSOCKS5(c net.Conn) {
	if err := socks5.ServerNegotiate(c); err != nil {
		return
	}
	req, err := socks5.ServerReadRequest(c)
	if err != nil {
		return
	}
	p.record(ConnectRequest{Version: int(req.Ver), Target: req.Address()})

	if p.opts.Stall {
		stall(c)
		return
	}
	if req.Cmd != socks5.CmdConnect {
		_ = socks5.WriteReply(c, socks5.RepCommandNotSupported, req.Atyp)
		return
	}
	if p.opts.Reject {
		_ = socks5.WriteReply(c, socks5.RepConnectionRefused, req.Atyp)
		return
	}

	if err := socks5.WriteSuccessReply(c, c.LocalAddr()); err != nil {
		return
	}
	if len(p.opts.EarlyData) > 0 {
		if _, err := c.Write(p.opts.EarlyData); err != nil {
			return
		}
	}
	p.serveTarget(c, c)
}

func (p *MockProxy) serveHTTP(c net.Conn) {
	br := bufio.NewReader(c)
	req, err := http.ReadRequest(br)
	if err != nil {
		return
	}
	_ = req.Body.Close()
	p.record(ConnectRequest{Target: req.RequestURI, Method: req.Method, Host: req.Host})

	if p.opts.Stall {
		stall(c)
		return
	}
	if req.Method != http.MethodConnect {
		_, _ = io.WriteString(c, "HTTP/1.1 405 Method Not Allowed\r\nContent-Length: 0\r\n\r\n")
		return
	}

	status := p.opts.Status
	if status == 0 {
		status = http.StatusOK
	}
	if status != http.StatusOK {
		_, _ = fmt.Fprintf(c, "HTTP/1.1 %d %s\r\nContent-Length: 0\r\n\r\n", status, http.StatusText(status))
		return
	}

	reply := append([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"), p.opts.EarlyData...)
	if _, err := c.Write(reply); err != nil {
		return
	}
	// Read through br: the client may have pipelined data behind the request.
	p.serveTarget(c, br)
}

// serveTarget plays the tunnel's far end. Client bytes are read from r.
func (p *MockProxy) serveTarget(c net.Conn, r io.Reader) {
	if p.opts.Forward == "" {
		echo(c, r)
		return
	}

	var d net.Dialer
	dst, err := d.Dial("tcp", p.opts.Forward)
	if err != nil {
		return
	}
	p.conns.add(dst)
	defer p.conns.remove(dst)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = io.Copy(dst, r)
		if tc, ok := dst.(*net.TCPConn); ok {
			_ = tc.CloseWrite()
		}
	}()

	_, _ = io.Copy(c, dst)
	_ = c.Close()
	<-done
}

func stall(c net.Conn) {
	_, _ = io.Copy(io.Discard, c)
}

// prefixConn replays bytes already consumed from Conn.
type prefixConn struct {
	net.Conn
	r io.Reader
}

func (c *prefixConn) Read(b []byte) (int, error) {
	return c.r.Read(b)
}
