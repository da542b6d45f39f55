// Package tunnel establishes a TCP tunnel to a target through a SOCKS4,
// SOCKS5 or HTTP CONNECT proxy.
//
// A Builder validates the proxy configuration before any I/O, dials the proxy,
// performs the handshake for the configured proxy type and returns the raw
// net.Conn. The returned conn carries no proxy framing; ownership passes to the
// caller, who is responsible for closing it.
//
// The target host is never resolved locally. SOCKS proxies resolve it
// themselves (SOCKS4a and SOCKS5 domain addressing), as do HTTP proxies.
//
// Failures come in two shapes: *ConfigError for configuration problems, which
// are reported before any network activity, and *ConnectionError for
// everything that happens on the network (resolving the proxy, dialing it,
// handshaking).
package tunnel
