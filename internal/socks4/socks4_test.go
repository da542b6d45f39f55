package socks4

import (
	"bytes"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestRequestWireFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		userID  string
		want    []byte
	}{
		{
			name:    "ipv4",
			address: "192.0.2.7:22",
			want:    []byte{0x04, 0x01, 0x00, 0x16, 192, 0, 2, 7, 0x00},
		},
		{
			name:    "ipv4 with user id",
			address: "192.0.2.7:22",
			userID:  "bob",
			want:    []byte{0x04, 0x01, 0x00, 0x16, 192, 0, 2, 7, 'b', 'o', 'b', 0x00},
		},
		{
			name:    "host name uses socks4a",
			address: "a.example:443",
			want: append([]byte{0x04, 0x01, 0x01, 0xbb, 0, 0, 0, 1, 0x00},
				append([]byte("a.example"), 0x00)...),
		},
		{
			name:    "ipv6 literal goes out as a socks4a host",
			address: "[2001:db8::1]:80",
			want: append([]byte{0x04, 0x01, 0x00, 0x50, 0, 0, 0, 1, 0x00},
				append([]byte("2001:db8::1"), 0x00)...),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req, err := NewConnectRequest(tt.address, tt.userID)
			require.NoError(t, err)

			var buf bytes.Buffer
			_, err = req.WriteTo(&buf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, buf.Bytes())

			got, err := ReadRequest(&buf)
			require.NoError(t, err)
			assert.Equal(t, req.Address(), got.Address())
			assert.Equal(t, tt.userID, got.UserID)
			assert.Equal(t, req.IsSOCKS4a(), got.IsSOCKS4a())
			assert.Zero(t, buf.Len(), "request reader consumed too little")
		})
	}
}

func TestNewConnectRequestInvalid(t *testing.T) {
	t.Parallel()

	for _, address := range []string{
		"no-port",
		"host:99999",
		"host:http",
		":80",
	} {
		_, err := NewConnectRequest(address, "")
		assert.Error(t, err, address)
	}
}

func TestClientConnect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		code    byte
		wantErr string
	}{
		{name: "granted", code: RepGranted},
		{name: "rejected", code: RepRejected, wantErr: "request rejected or failed"},
		{name: "identd", code: RepIdentUnreachable, wantErr: "identd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clientConn, serverConn := net.Pipe()
			defer clientConn.Close()
			defer serverConn.Close()

			var got *Request
			g := errgroup.Group{}
			g.Go(func() error {
				req, err := ReadRequest(serverConn)
				if err != nil {
					return err
				}
				got = req
				return WriteReply(serverConn, tt.code)
			})

			err := ClientConnect(clientConn, "target.example:443", "")
			require.NoError(t, g.Wait())
			assert.Equal(t, "target.example:443", got.Address())
			assert.Equal(t, CmdConnect, got.Command)

			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var replyErr *ReplyError
			require.True(t, errors.As(err, &replyErr))
			assert.Equal(t, tt.code, replyErr.Code)
		})
	}
}

func TestReadRequestRejectsLongField(t *testing.T) {
	t.Parallel()

	b := []byte{0x04, 0x01, 0x00, 0x50, 1, 2, 3, 4}
	b = append(b, bytes.Repeat([]byte{'u'}, 300)...)
	b = append(b, 0x00)

	_, err := ReadRequest(bytes.NewReader(b))
	assert.ErrorIs(t, err, errFieldTooLong)
}

func TestReadReplyShort(t *testing.T) {
	t.Parallel()

	err := ReadReply(bytes.NewReader([]byte{0x00, RepGranted, 0x00}))
	require.Error(t, err)
}
