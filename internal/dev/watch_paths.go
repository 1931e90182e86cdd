package dev

import (
	"path/filepath"

	"github.com/vango-dev/routewrap/internal/config"
	"github.com/vango-dev/routewrap/internal/route"
)

// CollectWatchPaths returns the directories watched recursively and the
// individual middleware files watched for the project.
func CollectWatchPaths(cfg *config.Config) (dirs, files []string) {
	dirs = []string{filepath.Clean(cfg.RoutesPath())}

	mwDir := cfg.MiddlewarePath()
	for _, name := range route.MiddlewareNames {
		files = append(files, filepath.Join(mwDir, name))
	}
	return dirs, files
}
