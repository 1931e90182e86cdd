package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/routewrap/internal/config"
	"github.com/vango-dev/routewrap/internal/errors"
)

func initCmd(g *globals) *cobra.Command {
	var (
		routes  string
		exclude []string
		useYAML bool
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a routewrap config file",
		Long: `Write a configuration file with defaults into the project directory.

Examples:
  routewrap init
  routewrap init --routes=src/pages --exclude=/admin --exclude='re:^/internal/'
  routewrap init --yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := g.dir
			if dir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				dir = wd
			}
			if config.Exists(dir) && !force {
				return errors.New("E120").
					WithDetail("A config file already exists in " + dir).
					WithSuggestion("Use --force to overwrite it")
			}

			cfg := config.New()
			if routes != "" {
				cfg.Paths.Routes = routes
			}
			cfg.Exclude = exclude
			if err := cfg.Validate(); err != nil {
				return err
			}

			name := config.ConfigFileName
			if useYAML {
				name = "routewrap.yaml"
			}
			path := filepath.Join(dir, name)
			if err := cfg.SaveTo(path); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Created %s", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&routes, "routes", "", "Routes directory (default \""+config.DefaultRoutes+"\")")
	cmd.Flags().StringArrayVar(&exclude, "exclude", nil, "Route exclusion rule (repeatable)")
	cmd.Flags().BoolVar(&useYAML, "yaml", false, "Write routewrap.yaml instead of JSON")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")

	return cmd
}
