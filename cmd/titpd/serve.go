package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/danmuck/titpd/internal/config"
	"github.com/danmuck/titpd/internal/observability"
	"github.com/danmuck/titpd/internal/processor"
	"github.com/danmuck/titpd/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)
	cmd := &cobra.Command{
		Use:   "serve [port]",
		Short: "Run the transaction server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				p, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid port %q", args[0])
				}
				cfg.Port = p
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "server config file (TOML)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port, overrides config and positional port")
	return cmd
}

// runServer serves until SIGINT or SIGTERM. The admin HTTP server runs
// alongside when configured; either failing stops both.
func runServer(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg.LogConfiguration()
	codec, err := cfg.Codec()
	if err != nil {
		return err
	}
	registry := processor.DefaultRegistry(codec)
	srv := server.New(cfg.Server(), codec, registry)
	ln, err := srv.Listen()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, ln)
	})
	if cfg.AdminAddr != "" {
		admin := observability.NewAdminServer(cfg.Admin(), srv, registry)
		g.Go(func() error {
			return admin.Run(gctx)
		})
	}
	err = g.Wait()
	srv.Drain()
	log.Info().Int64("active_sessions", srv.ActiveSessions()).Msg("titpd_stopped")
	return err
}
