package socks4

import (
	"fmt"
	"io"
)

// ClientConnect issues a CONNECT for address on conn and reads the reply.
//
// On success the conn carries no leftover handshake bytes.
func ClientConnect(conn io.ReadWriter, address, userID string) error {
	req, err := NewConnectRequest(address, userID)
	if err != nil {
		return err
	}
	if _, err := req.WriteTo(conn); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return ReadReply(conn)
}
