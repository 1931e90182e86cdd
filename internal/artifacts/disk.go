package artifacts

import (
	"context"
	"os"
	"path/filepath"

	"github.com/vango-dev/routewrap/internal/errors"
)

// DiskStore stores artifacts below a local directory.
type DiskStore struct {
	dir string
}

// NewDiskStore creates a new DiskStore rooted at dir.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Put writes body to dir/key.
func (s *DiskStore) Put(ctx context.Context, key, _ string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.New("E240").WithDetail(path).Wrap(err)
	}
	if err := os.WriteFile(path, body, 0644); err != nil {
		return errors.New("E240").WithDetail(path).Wrap(err)
	}
	return nil
}
