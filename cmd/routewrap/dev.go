package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/routewrap/internal/build"
	"github.com/vango-dev/routewrap/internal/dev"
	"github.com/vango-dev/routewrap/internal/server"
)

func devCmd(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Rebuild route files as they change",
		Long: `Build once, then watch the routes tree and middleware files and
re-instrument each changed file.

Every processed file is announced on the sidecar's /v1/events
websocket, which also serves /v1/transform while watching.

Examples:
  routewrap dev
  routewrap dev --addr=localhost:7400`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.open()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = p.cfg.Server.Addr
			}

			out := cmd.OutOrStdout()
			b, err := p.builder(cmd.Context(), build.Options{})
			if err != nil {
				return err
			}

			hub := dev.NewHub()
			srv, err := server.New(server.Config{
				Addr:        addr,
				Transformer: p.transformer,
				Hub:         hub,
				Gatherer:    p.registry,
				Logger:      p.logger,
			})
			if err != nil {
				return err
			}

			eg, ctx := errgroup.WithContext(cmd.Context())
			eg.Go(func() error {
				return srv.Run(ctx)
			})
			eg.Go(func() error {
				return dev.Run(ctx, p.cfg, b, dev.Options{
					Hub:    hub,
					Logger: p.logger,
					OnBatch: func(events []dev.Event) {
						for _, ev := range events {
							switch ev.Type {
							case dev.EventRebuilt:
								success(out, "%s %s", ev.Route, ev.File)
							case dev.EventRemoved, dev.EventExcluded:
								info(out, "%s %s", ev.Type, ev.File)
							default:
								warn(out, "%s %s: %s", ev.Type, ev.File, ev.Error)
							}
						}
					},
				})
			})

			success(out, "Watching %s (events on ws://%s/v1/events)", p.cfg.RoutesPath(), addr)
			return eg.Wait()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Sidecar listen address (default from config)")

	return cmd
}
