// Package dev provides watch mode.
//
// This package implements:
//   - File watching for the routes tree and the middleware files
//   - Per-file re-instrumentation through the build package
//   - WebSocket notification of every processed file
//
// # Architecture
//
//   - Watcher: fsnotify-based, recursive, debounced
//   - Hub: broadcasts events to WebSocket subscribers
//   - Run: initial build, then watch and rebuild
//
// # Usage
//
//	hub := dev.NewHub()
//	http.HandleFunc("/v1/events", hub.HandleWebSocket)
//
//	if err := dev.Run(ctx, cfg, builder, dev.Options{Hub: hub}); err != nil {
//	    log.Fatal(err)
//	}
//
// # Event Protocol
//
// Messages are JSON-encoded:
//
//	{"type": "rebuilt", "file": "...", "route": "/blog/[slug]", "role": "page"}
//	{"type": "excluded", "file": "...", "route": "/admin"}
//	{"type": "fallback", "file": "...", "error": "E210: ..."}
//	{"type": "removed", "file": "..."}
//	{"type": "error", "file": "...", "error": "..."}
package dev
