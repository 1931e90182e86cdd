package artifacts

import (
	"context"
	"path"
	"strings"
)

// ContentTypeSourceMap is the content type maps are stored with.
const ContentTypeSourceMap = "application/json"

// Store is the interface for artifact storage backends.
type Store interface {
	// Put stores body under key, replacing any previous object.
	Put(ctx context.Context, key, contentType string, body []byte) error
}

// Key returns the object key for the map of rel in the given build.
// rel is slash-separated and relative to the build output.
func Key(prefix, buildID, rel string) string {
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	return path.Join(strings.Trim(prefix, "/"), buildID, rel)
}
