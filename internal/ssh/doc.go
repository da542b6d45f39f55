// Package ssh runs SSH sessions over an already established tunnel.
//
// The tunnel replaces the TCP connection an SSH client would normally dial:
// [NewClient] performs the SSH handshake on any net.Conn, and [Run] executes
// a remote command with its stdio wired to local streams. Keys come from a
// private key file or the SSH agent ([LoadSigners]); host keys are checked
// against a known_hosts file with trust on first use ([NewHostKeyCallback]).
//
//	conn, _ := tunnel.Build(ctx, cfg)
//	client, _ := ssh.NewClient(ctx, conn, "ssh.internal:22", ssh.ClientConfig{
//	    User:            "deploy",
//	    Signers:         signers,
//	    HostKeyCallback: hostKeyCallback,
//	})
//	status, _ := ssh.Run(ctx, client, "uptime", nil, os.Stdout, os.Stderr)
package ssh
