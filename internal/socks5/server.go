package socks5

import (
	"errors"
	"fmt"
	"net"
	"slices"

	txsocks5 "github.com/txthinking/socks5"
)

// Request is a CONNECT request as read by the server side.
type Request = txsocks5.Request

// ServerNegotiate reads the client's method list and selects no-auth.
func ServerNegotiate(conn net.Conn) error {
	neg, err := txsocks5.NewNegotiationRequestFrom(conn)
	if err != nil {
		return fmt.Errorf("negotiation request: %w", err)
	}

	if !slices.Contains(neg.Methods, txsocks5.MethodNone) {
		writeNoAcceptableMethods(conn)
		return errors.New("client does not support no-auth")
	}
	if _, err := txsocks5.NewNegotiationReply(txsocks5.MethodNone).WriteTo(conn); err != nil {
		return fmt.Errorf("negotiation reply: %w", err)
	}
	return nil
}

// ServerReadRequest reads the client's command request.
func ServerReadRequest(conn net.Conn) (*Request, error) {
	req, err := txsocks5.NewRequestFrom(conn)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	return req, nil
}
