package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/odvcencio/kbgit/pkg/remote"
)

func newDaemonCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Serve this repository to push and pull clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = r.Config.Server.Address()
			}

			// Reloading before each request picks up local commits; a CLI save
			// that lands between a reload and the following push save is lost.
			srv := remote.NewServer(r, remote.ServerOptions{
				Logger:    commandLogger("daemon"),
				Refresh:   r.Reload,
				AfterPush: r.Save,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr or localhost:8080)")
	return cmd
}
