package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// AgentKey is the --ssh-key value that selects the SSH agent.
const AgentKey = "agent"

// LoadSigners returns the signers named by key:
//   - "": none, password authentication only
//   - "agent": every key held by the agent at $SSH_AUTH_SOCK
//   - otherwise: the private key file at that path ("~/" is expanded)
func LoadSigners(ctx context.Context, key string) ([]ssh.Signer, error) {
	switch key {
	case "":
		return nil, nil
	case AgentKey:
		return agentSigners(ctx)
	}

	path, err := ExpandHome(key)
	if err != nil {
		return nil, err
	}
	signer, err := loadPrivateKey(path)
	if err != nil {
		return nil, err
	}
	return []ssh.Signer{signer}, nil
}

// agentSigners keeps the agent connection open for the life of the process:
// each signature goes through it.
func agentSigners(ctx context.Context) ([]ssh.Signer, error) {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil, errors.New("ssh agent: SSH_AUTH_SOCK not set")
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socket)
	if err != nil {
		return nil, fmt.Errorf("ssh agent: %w", err)
	}

	signers, err := agent.NewClient(conn).Signers()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh agent signers: %w", err)
	}
	if len(signers) == 0 {
		_ = conn.Close()
		return nil, errors.New("ssh agent: no keys loaded")
	}

	return signers, nil
}

func loadPrivateKey(path string) (ssh.Signer, error) {
	keyData, err := os.ReadFile(path) //nolint:gosec // Path is from the command line.
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("key file %s is encrypted; load it into the agent and use --ssh-key=agent", path)
		}
		return nil, fmt.Errorf("parsing key file %s: %w", path, err)
	}

	return signer, nil
}

// ExpandHome replaces a leading "~/" with the current user's home directory.
func ExpandHome(path string) (string, error) {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok && path != "~" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %s: %w", path, err)
	}
	return filepath.Join(home, rest), nil
}
