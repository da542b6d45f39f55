package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()

	var status exitStatus
	switch {
	case err == nil:
	case errors.As(err, &status):
		os.Exit(int(status))
	default:
		fmt.Fprintln(os.Stderr, "proxytunnel:", err)
		os.Exit(1)
	}
}

// exitStatus carries a remote command's exit status out of exec.
type exitStatus int

func (s exitStatus) Error() string {
	return fmt.Sprintf("exit status %d", int(s))
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "proxytunnel [flags] HOST PORT",
		Short: "Open a TCP tunnel through a SOCKS4, SOCKS5 or HTTP CONNECT proxy",
		Long: `proxytunnel connects to HOST:PORT through a proxy and relays stdin and
stdout over the tunnel, which makes it usable as an SSH ProxyCommand:

  ssh -o ProxyCommand='proxytunnel --proxy socks5://bastion:1080 %h %p' host

The proxy comes from --proxy, the config file, or ALL_PROXY, in that order.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.complete(cmd.Flags()); err != nil {
				return err
			}
			return runRelay(cmd.Context(), opts, args[0], args[1])
		},
	}

	opts.addFlags(cmd.PersistentFlags())
	cmd.Flags().SortFlags = false
	cmd.PersistentFlags().SortFlags = false

	cmd.AddCommand(newExecCommand(opts))
	return cmd
}
