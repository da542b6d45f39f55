package socks4

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
)

const (
	// Version is the VN byte of a SOCKS4 request.
	Version byte = 0x04

	CmdConnect byte = 0x01
	CmdBind    byte = 0x02
)

// Reply codes (CD field of a reply).
const (
	RepGranted          byte = 0x5a
	RepRejected         byte = 0x5b
	RepIdentUnreachable byte = 0x5c
	RepIdentMismatch    byte = 0x5d
)

// maxFieldLen bounds USERID and SOCKS4a host name fields read by the server.
const maxFieldLen = 255

var errFieldTooLong = errors.New("field exceeds 255 bytes")

// Request is a SOCKS4 or SOCKS4a request.
type Request struct {
	Version byte
	Command byte
	Port    uint16
	// IP is the DSTIP field. For SOCKS4a it is 0.0.0.x with x != 0.
	IP     net.IP
	UserID string
	// Host is set only for SOCKS4a requests.
	Host string
}

// NewConnectRequest builds a CONNECT request for address ("host:port").
func NewConnectRequest(address, userID string) (*Request, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("parse address: %w", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("parse port %q: %w", portStr, err)
	}
	if host == "" {
		return nil, errors.New("parse address: empty host")
	}

	req := &Request{
		Version: Version,
		Command: CmdConnect,
		Port:    uint16(port),
		UserID:  userID,
	}
	if ip4 := net.ParseIP(host).To4(); ip4 != nil {
		req.IP = ip4
		return req, nil
	}
	if len(host) > maxFieldLen {
		return nil, fmt.Errorf("parse address: host name too long (%d bytes)", len(host))
	}
	req.IP = net.IPv4(0, 0, 0, 1).To4()
	req.Host = host
	return req, nil
}

// IsSOCKS4a reports whether the request carries a host name.
func (r *Request) IsSOCKS4a() bool {
	return r.Host != ""
}

// Address returns the destination as "host:port".
func (r *Request) Address() string {
	host := r.Host
	if host == "" {
		host = r.IP.String()
	}
	return net.JoinHostPort(host, strconv.Itoa(int(r.Port)))
}

// WriteTo writes the request in wire format.
func (r *Request) WriteTo(w io.Writer) (int64, error) {
	b := make([]byte, 0, 9+len(r.UserID)+len(r.Host)+1)
	b = append(b, r.Version, r.Command)
	b = binary.BigEndian.AppendUint16(b, r.Port)
	b = append(b, r.IP.To4()...)
	b = append(b, r.UserID...)
	b = append(b, 0x00)
	if r.Host != "" {
		b = append(b, r.Host...)
		b = append(b, 0x00)
	}
	n, err := w.Write(b)
	return int64(n), err
}

// ReadRequest reads a SOCKS4 or SOCKS4a request.
func ReadRequest(r io.Reader) (*Request, error) {
	hdr := make([]byte, 8)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("read request header: %w", err)
	}
	if hdr[0] != Version {
		return nil, fmt.Errorf("unexpected version %d", hdr[0])
	}

	req := &Request{
		Version: hdr[0],
		Command: hdr[1],
		Port:    binary.BigEndian.Uint16(hdr[2:4]),
		IP:      net.IP(hdr[4:8]),
	}

	userID, err := readCString(r)
	if err != nil {
		return nil, fmt.Errorf("read user id: %w", err)
	}
	req.UserID = userID

	// SOCKS4a: 0.0.0.x with x != 0 means a host name follows.
	if hdr[4] == 0 && hdr[5] == 0 && hdr[6] == 0 && hdr[7] != 0 {
		host, err := readCString(r)
		if err != nil {
			return nil, fmt.Errorf("read host: %w", err)
		}
		req.Host = host
	}
	return req, nil
}

// readCString reads a NUL-terminated string one byte at a time so nothing
// beyond the terminator is consumed.
func readCString(r io.Reader) (string, error) {
	var (
		buf []byte
		c   [1]byte
	)
	for {
		if _, err := io.ReadFull(r, c[:]); err != nil {
			return "", err
		}
		if c[0] == 0x00 {
			return string(buf), nil
		}
		if len(buf) == maxFieldLen {
			return "", errFieldTooLong
		}
		buf = append(buf, c[0])
	}
}

// ReplyError is a non-granted reply from the proxy.
type ReplyError struct {
	Code byte
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("socks4 connect rejected: %s", replyText(e.Code))
}

func replyText(code byte) string {
	switch code {
	case RepRejected:
		return "request rejected or failed"
	case RepIdentUnreachable:
		return "request rejected because the proxy cannot reach identd on the client"
	case RepIdentMismatch:
		return "request rejected because identd reported a different user id"
	default:
		return fmt.Sprintf("unknown reply code %#02x", code)
	}
}

// WriteReply writes an 8-byte reply with code and a zero bound address.
func WriteReply(w io.Writer, code byte) error {
	if _, err := w.Write([]byte{0x00, code, 0, 0, 0, 0, 0, 0}); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}

// ReadReply reads an 8-byte reply and returns a *ReplyError unless the
// request was granted. The VN byte is not checked; proxies in the wild send
// both 0x00 and 0x04 there.
func ReadReply(r io.Reader) error {
	rep := make([]byte, 8)
	if _, err := io.ReadFull(r, rep); err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if rep[1] != RepGranted {
		return &ReplyError{Code: rep[1]}
	}
	return nil
}
