package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// testServer is an SSH server that accepts "exec" requests for a handful of
// built-in commands:
//
//	echo ARGS    writes ARGS and a newline to stdout
//	warn ARGS    writes ARGS and a newline to stderr
//	cat          copies stdin to stdout
//	exit N       exits with status N
//	sleep        blocks until the session is closed
type testServer struct {
	ln      net.Listener
	hostKey ssh.Signer
	config  *ssh.ServerConfig

	wg    sync.WaitGroup
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func mustGenerateKey(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	return signer
}

// startTestServer accepts user/pass by password and any key in authorized.
func startTestServer(t *testing.T, authorized ...ssh.PublicKey) *testServer {
	t.Helper()

	s := &testServer{hostKey: mustGenerateKey(t), conns: make(map[net.Conn]struct{})}
	s.config = &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() != "user" || string(pass) != "pass" {
				return nil, errors.New("invalid credentials")
			}
			return &ssh.Permissions{}, nil
		},
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			for _, k := range authorized {
				if string(k.Marshal()) == string(key.Marshal()) {
					return &ssh.Permissions{}, nil
				}
			}
			return nil, errors.New("unknown key")
		},
	}
	s.config.AddHostKey(s.hostKey)

	var lc net.ListenConfig
	ln, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s.ln = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			s.track(c, true)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.track(c, false)
				s.handleConn(c)
			}()
		}
	}()

	t.Cleanup(func() {
		_ = ln.Close()
		s.mu.Lock()
		for c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
	return s
}

func (s *testServer) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *testServer) track(c net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[c] = struct{}{}
		return
	}
	delete(s.conns, c)
	_ = c.Close()
}

func (s *testServer) handleConn(c net.Conn) {
	sshConn, chans, reqs, err := ssh.NewServerConn(c, s.config)
	if err != nil {
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	var wg sync.WaitGroup
	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			_ = newChan.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		ch, chReqs, err := newChan.Accept()
		if err != nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveSession(ch, chReqs)
		}()
	}
	wg.Wait()
}

func serveSession(ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()

	var wg sync.WaitGroup
	defer wg.Wait()

	for req := range reqs {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}

		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			continue
		}
		_ = req.Reply(true, nil)

		wg.Add(1)
		go func() {
			defer wg.Done()
			status, ok := runTestCommand(ch, payload.Command)
			if !ok {
				return
			}
			_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(status)}))
			_ = ch.Close()
		}()
	}
}

// runTestCommand returns false if the command ended without a status.
func runTestCommand(ch ssh.Channel, cmd string) (int, bool) {
	name, args, _ := strings.Cut(cmd, " ")
	switch name {
	case "echo":
		_, _ = fmt.Fprintln(ch, args)
	case "warn":
		_, _ = fmt.Fprintln(ch.Stderr(), args)
	case "cat":
		_, _ = io.Copy(ch, ch)
	case "exit":
		n, err := strconv.Atoi(args)
		if err != nil {
			return 255, true
		}
		return n, true
	case "sleep":
		_, _ = io.Copy(io.Discard, ch)
		return 0, false
	default:
		_, _ = fmt.Fprintf(ch.Stderr(), "%s: command not found\n", name)
		return 127, true
	}
	return 0, true
}
