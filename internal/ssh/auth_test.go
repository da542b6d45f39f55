package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

func writeKeyFile(t *testing.T, passphrase string) (string, ssh.PublicKey) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	}
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))

	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return path, sshPub
}

func TestLoadSignersFile(t *testing.T) {
	t.Parallel()

	path, pub := writeKeyFile(t, "")
	signers, err := LoadSigners(t.Context(), path)
	require.NoError(t, err)
	require.Len(t, signers, 1)
	assert.Equal(t, pub.Marshal(), signers[0].PublicKey().Marshal())
}

func TestLoadSignersEncryptedFile(t *testing.T) {
	t.Parallel()

	path, _ := writeKeyFile(t, "secret")
	_, err := LoadSigners(t.Context(), path)
	assert.ErrorContains(t, err, "--ssh-key=agent")
}

func TestLoadSignersNone(t *testing.T) {
	t.Parallel()

	signers, err := LoadSigners(t.Context(), "")
	require.NoError(t, err)
	assert.Empty(t, signers)

	_, err = LoadSigners(t.Context(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "reading key file")
}

func TestLoadSignersAgent(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	keyring := agent.NewKeyring()
	require.NoError(t, keyring.Add(agent.AddedKey{PrivateKey: priv}))

	// Unix socket paths are length-limited; keep it short.
	dir, err := os.MkdirTemp("", "agent")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	socket := filepath.Join(dir, "s")

	var lc net.ListenConfig
	ln, err := lc.Listen(t.Context(), "unix", socket)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				_ = agent.ServeAgent(keyring, c)
			}()
		}
	}()

	t.Setenv("SSH_AUTH_SOCK", socket)
	signers, err := LoadSigners(t.Context(), AgentKey)
	require.NoError(t, err)
	require.Len(t, signers, 1)

	t.Setenv("SSH_AUTH_SOCK", "")
	_, err = LoadSigners(t.Context(), AgentKey)
	assert.ErrorContains(t, err, "SSH_AUTH_SOCK not set")
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandHome("~/.ssh/known_hosts")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".ssh", "known_hosts"), got)

	got, err = ExpandHome("/etc/ssh/known_hosts")
	require.NoError(t, err)
	assert.Equal(t, "/etc/ssh/known_hosts", got)

	got, err = ExpandHome("~other/file")
	require.NoError(t, err)
	assert.Equal(t, "~other/file", got)
}
