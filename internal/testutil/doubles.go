package testutil

import (
	"context"
	"net"
	"sync"
)

// StaticResolver answers every lookup with Addrs or Err and records the
// hosts it was asked about.
type StaticResolver struct {
	Addrs []string
	Err   error

	mu    sync.Mutex
	hosts []string
}

func (r *StaticResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	r.mu.Lock()
	r.hosts = append(r.hosts, host)
	r.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}
	return r.Addrs, nil
}

// Lookups returns the hosts looked up so far.
func (r *StaticResolver) Lookups() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.hosts...)
}

// RecordingDialer records every address it is asked to dial. If Err is set
// it fails every dial; otherwise it connects to To (or to the requested
// address when To is empty).
type RecordingDialer struct {
	To  string
	Err error

	mu     sync.Mutex
	dialed []string
}

func (d *RecordingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.mu.Lock()
	d.dialed = append(d.dialed, address)
	d.mu.Unlock()

	if d.Err != nil {
		return nil, d.Err
	}
	to := d.To
	if to == "" {
		to = address
	}
	var nd net.Dialer
	return nd.DialContext(ctx, network, to)
}

// Dialed returns the addresses dialed so far.
func (d *RecordingDialer) Dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dialed...)
}

// Dial makes RecordingDialer usable as a golang.org/x/net/proxy.Dialer.
func (d *RecordingDialer) Dial(network, address string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, address)
}
