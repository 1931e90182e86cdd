package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/routewrap/internal/build"
)

func routesCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List route files and whether they are instrumented",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.open()
			if err != nil {
				return err
			}
			b, err := build.New(p.cfg, p.transformer, build.Options{Logger: p.logger})
			if err != nil {
				return err
			}
			files, err := b.Discover()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-32s %-11s %-9s %s\n", "ROUTE", "ROLE", "EXCLUDED", "FILE")
			for _, f := range files {
				rel, err := filepath.Rel(p.cfg.Dir(), f)
				if err != nil {
					rel = f
				}
				desc, err := p.transformer.Classifier().Classify(f)
				if err != nil {
					fmt.Fprintf(out, "%-32s %-11s %-9s %s\n", "?", "-", "-", rel)
					continue
				}
				excluded := "no"
				if p.transformer.Excluded(desc.Route) {
					excluded = "yes"
				}
				fmt.Fprintf(out, "%-32s %-11s %-9s %s\n", desc.Route, desc.Role, excluded, rel)
			}
			return nil
		},
	}
}
