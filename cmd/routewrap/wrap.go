package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/routewrap/internal/errors"
	"github.com/vango-dev/routewrap/internal/wrap"
)

func wrapCmd(g *globals) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "wrap <file>",
		Short: "Instrument a single route file",
		Long: `Instrument one route file and print the result.

A source map found next to the file (<file>.map) is chained into the
output map. With --output the code and its map are written to disk.

Examples:
  routewrap wrap pages/blog/[slug].tsx
  routewrap wrap pages/api/users.ts -o out/users.js`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.open()
			if err != nil {
				return err
			}

			path := args[0]
			code, err := os.ReadFile(path)
			if err != nil {
				return errors.New("E142").WithDetail("reading " + path).Wrap(err)
			}
			in := wrap.Input{ResourcePath: path, Code: string(code)}
			if data, err := os.ReadFile(path + ".map"); err == nil {
				in.Map = data
			}

			out := p.transformer.Transform(cmd.Context(), in)

			stderr := cmd.ErrOrStderr()
			switch out.Status {
			case wrap.StatusTransformed:
				success(stderr, "%s %s (%s)", out.Status, out.Route.Route, out.Route.Role)
			case wrap.StatusExcluded:
				info(stderr, "%s %s", out.Status, out.Route.Route)
			default:
				warn(stderr, "%s: %v", out.Status, out.Err)
			}

			if output == "" {
				_, err := cmd.OutOrStdout().Write([]byte(out.Code))
				return err
			}
			if err := os.WriteFile(output, []byte(out.Code), 0644); err != nil {
				return errors.New("E142").WithDetail(output).Wrap(err)
			}
			if len(out.Map) > 0 {
				if err := os.WriteFile(output+".map", out.Map, 0644); err != nil {
					return errors.New("E142").WithDetail(output + ".map").Wrap(err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the result to this file instead of stdout")

	return cmd
}
