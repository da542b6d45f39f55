// Package socks5 provides the small SOCKS5 handshake used by proxytunnel.
//
// It wraps the low-level protocol types in github.com/txthinking/socks5 so that
// the tunnel builder and the test proxies share one implementation of
// negotiation and CONNECT parsing/writing.
//
// Only the no-authentication method is offered. A proxy that insists on
// username/password is reported as an error rather than negotiated.
package socks5
