package main

import (
	"github.com/spf13/cobra"

	"github.com/vango-dev/routewrap/internal/server"
)

func serveCmd(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the transform sidecar for a JavaScript build host",
		Long: `Serve the transform pipeline over HTTP.

A build plugin posts each module to /v1/transform and receives the
instrumented code and source map. Files that cannot be instrumented
come back unchanged with status "fallback".

Examples:
  routewrap serve
  routewrap serve --addr=127.0.0.1:9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.open()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = p.cfg.Server.Addr
			}

			srv, err := server.New(server.Config{
				Addr:        addr,
				Transformer: p.transformer,
				Gatherer:    p.registry,
				Logger:      p.logger,
			})
			if err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Sidecar on http://%s", addr)
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")

	return cmd
}
