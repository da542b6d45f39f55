package main

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/die-net/proxytunnel/internal/ssh"
)

func newExecCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec [flags] HOST PORT -- COMMAND [ARGS...]",
		Short: "Run a command over SSH through the tunnel",
		Long: `exec opens a tunnel to the SSH server at HOST:PORT, authenticates, runs
COMMAND and exits with its status. The password, if any, is read from
PROXYTUNNEL_SSH_PASSWORD.`,
		Args: func(cmd *cobra.Command, args []string) error {
			dash := cmd.ArgsLenAtDash()
			if dash != 2 || len(args) < 3 {
				return errors.New("usage: proxytunnel exec [flags] HOST PORT -- COMMAND [ARGS...]")
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.complete(cmd.Flags()); err != nil {
				return err
			}
			return runExec(cmd.Context(), opts, args[0], args[1], strings.Join(args[2:], " "))
		},
	}

	fs := cmd.Flags()
	fs.SortFlags = false
	fs.StringVarP(&opts.sshUser, "ssh-user", "l", defaultSSHUser(), "SSH user name")
	fs.StringVarP(&opts.sshKey, "ssh-key", "i", defaultSSHKey(), "SSH key source: 'agent' for the SSH agent, path to a private key file, or empty for password only")
	fs.StringVar(&opts.sshKnownHosts, "ssh-known-hosts", "~/.ssh/known_hosts", "known_hosts file for host key verification, or empty to disable")

	return cmd
}

func runExec(ctx context.Context, opts *options, host, port, command string) error {
	signers, err := ssh.LoadSigners(ctx, opts.sshKey)
	if err != nil {
		return err
	}
	hostKeyCallback, err := ssh.NewHostKeyCallback(opts.sshKnownHosts, opts.log)
	if err != nil {
		return err
	}

	conn, err := dialTunnel(ctx, opts, host, port)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(host, port)
	client, err := ssh.NewClient(ctx, conn, addr, ssh.ClientConfig{
		User:             opts.sshUser,
		Password:         os.Getenv("PROXYTUNNEL_SSH_PASSWORD"),
		Signers:          signers,
		HostKeyCallback:  hostKeyCallback,
		HandshakeTimeout: opts.negotiationTimeout,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	log := opts.log.WithFields(logrus.Fields{"target": addr, "user": opts.sshUser})
	log.WithField("command", command).Info("running remote command")

	status, err := ssh.Run(ctx, client, command, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	log.WithField("status", status).Debug("remote command finished")
	if status != 0 {
		return exitStatus(status)
	}
	return nil
}
