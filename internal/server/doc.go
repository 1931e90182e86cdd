// Package server exposes the transform pipeline over HTTP so that a
// JavaScript build host can hand route files to it.
//
// Routes:
//
//	POST /v1/transform   {resourcePath, code, map} -> {code, map, status, route, role, error}
//	GET  /v1/events      websocket stream of watch events (when a hub is set)
//	GET  /healthz
//	GET  /metrics
//
// A transform that falls back still answers 200 with the original code; only
// requests that cannot be decoded are rejected (E250).
package server
