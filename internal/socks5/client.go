package socks5

import (
	"errors"
	"fmt"
	"io"
	"net"

	txsocks5 "github.com/txthinking/socks5"
)

var (
	// ErrAuthRequired is returned when the proxy selects username/password
	// authentication, which is not offered.
	ErrAuthRequired = errors.New("proxy requires username/password authentication")

	// ErrNoAcceptableMethods is returned when the proxy rejects every offered
	// authentication method.
	ErrNoAcceptableMethods = errors.New("proxy accepted none of the offered authentication methods")
)

// ClientDial negotiates no-auth and issues a CONNECT for address on conn.
//
// address is sent as given: a hostname goes out as a domain name and is
// resolved by the proxy.
func ClientDial(conn io.ReadWriter, address string) error {
	if err := ClientNegotiate(conn); err != nil {
		return err
	}
	return ClientConnect(conn, address)
}

// ClientNegotiate performs the method-selection exchange.
func ClientNegotiate(conn io.ReadWriter) error {
	if _, err := txsocks5.NewNegotiationRequest([]byte{txsocks5.MethodNone}).WriteTo(conn); err != nil {
		return fmt.Errorf("write negotiation: %w", err)
	}

	neg, err := txsocks5.NewNegotiationReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("read negotiation: %w", err)
	}

	switch neg.Method {
	case txsocks5.MethodNone:
		return nil
	case txsocks5.MethodUsernamePassword:
		return ErrAuthRequired
	case methodNoAcceptable:
		return ErrNoAcceptableMethods
	default:
		return fmt.Errorf("unsupported negotiation method: %d", neg.Method)
	}
}

// ClientConnect sends a CONNECT request for address and reads the reply,
// including the bound address, so nothing of the handshake is left unread.
func ClientConnect(conn io.ReadWriter, address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("parse address: %w", err)
	}
	if len(host) > 255 {
		return fmt.Errorf("parse address: host name too long (%d bytes)", len(host))
	}

	atyp, dstAddr, dstPort, err := txsocks5.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("parse address: %w", err)
	}
	if atyp == txsocks5.ATYPDomain {
		dstAddr = dstAddr[1:]
	}

	if _, err := txsocks5.NewRequest(txsocks5.CmdConnect, atyp, dstAddr, dstPort).WriteTo(conn); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	rep, err := txsocks5.NewReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if rep.Rep != RepSuccess {
		return &ReplyError{Code: rep.Rep}
	}
	return nil
}
