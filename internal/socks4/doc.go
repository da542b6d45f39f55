// Package socks4 implements the CONNECT exchange of SOCKS4 and its SOCKS4a
// extension.
//
// The client sends IPv4 destinations in the DSTIP field and anything else
// (host names, textual IPv6) as a SOCKS4a host name, leaving resolution to the
// proxy. The server-side helpers exist so tests can stand up a proxy that
// speaks the same codec.
package socks4
