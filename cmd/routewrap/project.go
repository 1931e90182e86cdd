package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/routewrap/internal/artifacts"
	"github.com/vango-dev/routewrap/internal/build"
	"github.com/vango-dev/routewrap/internal/config"
	"github.com/vango-dev/routewrap/internal/templates"
	"github.com/vango-dev/routewrap/internal/wrap"
)

// globals holds the persistent flags.
type globals struct {
	dir        string
	configFile string
	verbose    bool
}

// project is a loaded, validated configuration with its pipeline.
type project struct {
	cfg         *config.Config
	logger      *slog.Logger
	registry    *prometheus.Registry
	transformer *wrap.Transformer
}

func (g *globals) logger() *slog.Logger {
	level := slog.LevelInfo
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (g *globals) loadConfig() (*config.Config, error) {
	switch {
	case g.configFile != "":
		return config.LoadFile(g.configFile)
	case g.dir != "":
		return config.LoadOrDefault(g.dir)
	default:
		return config.LoadFromWorkingDir()
	}
}

// open loads the configuration and builds the transformer. Configuration
// errors surface here, before any file is touched.
func (g *globals) open() (*project, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ext, err := cfg.ExtensionRegexp()
	if err != nil {
		return nil, err
	}
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	set, err := templates.LoadDir(cfg.TemplatesPath())
	if err != nil {
		return nil, err
	}

	logger := g.logger()
	reg := prometheus.NewRegistry()
	tr, err := wrap.New(wrap.Options{
		RoutesDir:     cfg.RoutesPath(),
		MiddlewareDir: cfg.MiddlewarePath(),
		Extensions:    ext,
		Exclude:       rules,
		Templates:     set,
		Logger:        logger,
		Metrics:       wrap.NewMetrics(wrap.WithRegistry(reg)),
	})
	if err != nil {
		return nil, err
	}

	return &project{cfg: cfg, logger: logger, registry: reg, transformer: tr}, nil
}

// store returns the artifact store configured for the project, or nil.
func (p *project) store(ctx context.Context) (artifacts.Store, error) {
	if !p.cfg.Artifacts.Enabled {
		return nil, nil
	}
	client, err := artifacts.NewS3Client(ctx, p.cfg.Artifacts.Region)
	if err != nil {
		return nil, err
	}
	return artifacts.NewS3Store(client, p.cfg.Artifacts.Bucket), nil
}

func (p *project) builder(ctx context.Context, opts build.Options) (*build.Builder, error) {
	if opts.Store == nil {
		store, err := p.store(ctx)
		if err != nil {
			return nil, err
		}
		opts.Store = store
	}
	opts.Logger = p.logger
	return build.New(p.cfg, p.transformer, opts)
}
