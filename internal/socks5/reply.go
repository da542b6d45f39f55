package socks5

import (
	"fmt"
	"net"

	txsocks5 "github.com/txthinking/socks5"
)

const (
	// Version is the protocol version byte carried by every SOCKS5 message.
	Version byte = 0x05

	// CmdConnect is the SOCKS5 CONNECT command value.
	CmdConnect = txsocks5.CmdConnect

	// RFC 1928: 0xFF indicates no acceptable methods.
	methodNoAcceptable byte = 0xff
)

// Reply codes from RFC 1928 section 6.
const (
	RepSuccess             byte = 0x00
	RepServerFailure       byte = 0x01
	RepNotAllowed          byte = 0x02
	RepNetworkUnreachable  byte = 0x03
	RepHostUnreachable     byte = 0x04
	RepConnectionRefused   byte = 0x05
	RepTTLExpired          byte = 0x06
	RepCommandNotSupported byte = 0x07
	RepAddressNotSupported byte = 0x08
)

// ReplyError is a non-success CONNECT reply from the proxy.
type ReplyError struct {
	Code byte
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("socks5 connect rejected: %s", replyText(e.Code))
}

func replyText(code byte) string {
	switch code {
	case RepServerFailure:
		return "general SOCKS server failure"
	case RepNotAllowed:
		return "connection not allowed by ruleset"
	case RepNetworkUnreachable:
		return "network unreachable"
	case RepHostUnreachable:
		return "host unreachable"
	case RepConnectionRefused:
		return "connection refused"
	case RepTTLExpired:
		return "TTL expired"
	case RepCommandNotSupported:
		return "command not supported"
	case RepAddressNotSupported:
		return "address type not supported"
	default:
		return fmt.Sprintf("unknown reply code %#02x", code)
	}
}

// WriteReply writes a reply with code rep and a zero bound address of the
// same family as atyp.
func WriteReply(conn net.Conn, rep, atyp byte) error {
	if _, err := newZeroAddrReply(rep, atyp).WriteTo(conn); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}

// WriteSuccessReply writes a SOCKS5 success reply using localAddr as the bound
// address.
func WriteSuccessReply(conn net.Conn, localAddr net.Addr) error {
	a, addr, port, err := txsocks5.ParseAddress(localAddr.String())
	if err != nil {
		return fmt.Errorf("parse local address %q: %w", localAddr.String(), err)
	}
	if a == txsocks5.ATYPDomain {
		addr = addr[1:]
	}
	if _, err := txsocks5.NewReply(txsocks5.RepSuccess, a, addr, port).WriteTo(conn); err != nil {
		return fmt.Errorf("success reply: %w", err)
	}
	return nil
}

func newZeroAddrReply(rep, atyp byte) *txsocks5.Reply {
	if atyp == txsocks5.ATYPIPv6 {
		return txsocks5.NewReply(rep, txsocks5.ATYPIPv6, []byte(net.IPv6zero), []byte{0x00, 0x00})
	}
	return txsocks5.NewReply(rep, txsocks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00})
}

func writeNoAcceptableMethods(conn net.Conn) {
	_, _ = txsocks5.NewNegotiationReply(methodNoAcceptable).WriteTo(conn)
}
