// Package artifacts stores the source maps produced by a build.
//
// Maps are keyed by build id so every deployment keeps its own set:
//
//	<prefix>/<buildID>/<route file>.js.map
//
// S3Store uploads to an S3 bucket; DiskStore mirrors the same layout on the
// local filesystem.
package artifacts
