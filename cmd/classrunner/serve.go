package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/reglet-dev/classrunner/internal/infrastructure/web"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve units over HTTP",
		Long: `Serve exposes GET /run, /profiles and /profiles/{profile}/packages.
Requesters are identified by a bearer JWT when auth.jwt_secret is set; the
profile override travels in a cookie named after the profile key.`,
		Args: cobra.NoArgs,
		RunE: withContainer(func(cc *CommandContext, cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cc.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr := viper.GetString("addr")
			if addr == "" {
				addr = cc.Container.SystemConfig().Server.Addr
			}

			handler, err := cc.Container.HTTPHandler()
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", addr, err)
			}
			cmd.Printf("listening on %s\n", ln.Addr())

			return web.Serve(ctx, ln, handler, cc.Logger)
		}),
	}

	cmd.Flags().String("addr", "", "Listen address (default from server.addr)")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))

	return cmd
}
