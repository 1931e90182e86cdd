package dev

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vango-dev/routewrap/internal/build"
	"github.com/vango-dev/routewrap/internal/config"
)

// Options configures Run.
type Options struct {
	// Hub receives an event per processed file. May be nil.
	Hub *Hub

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// OnBatch is called after each batch of changes has been handled.
	OnBatch func([]Event)
}

// Run performs a full build, then watches the project and re-transforms
// changed route files until ctx is done.
func Run(ctx context.Context, cfg *config.Config, b *build.Builder, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	result, err := b.Build(ctx)
	if err != nil {
		return err
	}
	logger.Info("initial build complete",
		"files", len(result.Files),
		"transformed", result.Transformed,
		"excluded", result.Excluded,
		"fallbacks", result.Fallbacks,
		"duration", result.Duration,
	)

	debounce, err := cfg.DebounceDuration()
	if err != nil {
		return err
	}
	dirs, files := CollectWatchPaths(cfg)
	ignore := append(append([]string{}, DefaultIgnore...), cfg.Dev.Ignore...)

	w := NewWatcher(WatcherConfig{
		Dirs:     dirs,
		Files:    files,
		Ignore:   ignore,
		Debounce: debounce,
		Logger:   logger,
	})
	w.OnChange(func(changes []Change) {
		events := HandleChanges(ctx, b, changes, logger)
		for _, ev := range events {
			if opts.Hub != nil {
				opts.Hub.Publish(ev)
			}
		}
		if opts.OnBatch != nil {
			opts.OnBatch(events)
		}
	})

	logger.Info("watching for changes", "routes", cfg.RoutesPath())
	err = w.Start(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleChanges re-transforms or removes the outputs of changed files and
// returns one event per affected route file.
func HandleChanges(ctx context.Context, b *build.Builder, changes []Change, logger *slog.Logger) []Event {
	var events []Event
	for _, c := range changes {
		if !b.Matches(c.Path) {
			continue
		}

		if c.Op == ChangeRemove {
			if err := b.Remove(c.Path); err != nil {
				logger.Warn("cannot remove output", "file", c.Path, "error", err)
				events = append(events, Event{Type: EventError, File: c.Path, Error: err.Error()})
				continue
			}
			events = append(events, Event{Type: EventRemoved, File: c.Path})
			continue
		}

		fr, err := b.TransformFile(ctx, c.Path)
		if err != nil {
			logger.Warn("cannot rebuild file", "file", c.Path, "error", err)
			events = append(events, Event{Type: EventError, File: c.Path, Error: err.Error()})
			continue
		}
		logger.Info("rebuilt", "file", c.Path, "route", fr.Route, "status", fr.Status)
		events = append(events, EventFor(fr))
	}
	return events
}
