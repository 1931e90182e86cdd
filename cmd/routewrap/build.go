package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/routewrap/internal/build"
)

func buildCmd(g *globals) *cobra.Command {
	var (
		output       string
		concurrency  int
		noSourceMaps bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Instrument every route file into the output directory",
		Long: `Instrument the whole routes tree.

This command:
  • Discovers route files and middleware
  • Wraps each one with the template for its role
  • Writes instrumented files and source maps
  • Uploads source maps when artifacts are enabled
  • Writes manifest.json

Examples:
  routewrap build
  routewrap build --output=dist/instrumented
  routewrap build --no-sourcemaps`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.open()
			if err != nil {
				return err
			}
			if output != "" {
				p.cfg.Build.Output = output
			}
			if concurrency > 0 {
				p.cfg.Build.Concurrency = concurrency
			}
			if noSourceMaps {
				off := false
				p.cfg.Build.SourceMaps = &off
			}

			out := cmd.OutOrStdout()
			b, err := p.builder(cmd.Context(), build.Options{
				OnProgress: progressPrinter(out),
			})
			if err != nil {
				return err
			}

			result, err := b.Build(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(out)
			success(out, "Build complete in %s", result.Duration.Round(time.Millisecond))
			info(out, "build id:    %s", result.BuildID)
			info(out, "transformed: %d", result.Transformed)
			info(out, "excluded:    %d", result.Excluded)
			info(out, "fallbacks:   %d", result.Fallbacks)
			if result.Uploaded > 0 {
				info(out, "uploaded:    %d source maps", result.Uploaded)
			}
			info(out, "output:      %s", p.cfg.OutputPath())
			for _, f := range result.Files {
				if f.Status == "fallback" {
					warn(out, "%s left uninstrumented: %s", f.Source, f.Error)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (default from config)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "Files transformed in parallel (default: number of CPUs)")
	cmd.Flags().BoolVar(&noSourceMaps, "no-sourcemaps", false, "Do not write source maps")

	return cmd
}

// progressPrinter prints builder steps verbatim.
func progressPrinter(w io.Writer) func(step string) {
	return func(step string) { info(w, "%s", step) }
}
