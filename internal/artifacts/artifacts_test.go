package artifacts

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/routewrap/internal/errors"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = body
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestKey(t *testing.T) {
	tests := []struct {
		prefix, build, rel string
		want               string
	}{
		{"sourcemaps", "b1", "blog/[slug].js.map", "sourcemaps/b1/blog/[slug].js.map"},
		{"/maps/", "b1", "index.js.map", "maps/b1/index.js.map"},
		{"", "b1", "../escape.js.map", "b1/escape.js.map"},
	}
	for _, tt := range tests {
		if got := Key(tt.prefix, tt.build, tt.rel); got != tt.want {
			t.Errorf("Key(%q, %q, %q) = %q, want %q", tt.prefix, tt.build, tt.rel, got, tt.want)
		}
	}
}

func TestS3Store_Put(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	store := NewS3Store(fake, "maps-bucket")

	if err := store.Put(context.Background(), "p/b/index.js.map", ContentTypeSourceMap, []byte(`{}`)); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if got := string(fake.objects["maps-bucket/p/b/index.js.map"]); got != "{}" {
		t.Errorf("stored body = %q", got)
	}
	if got := fake.types["maps-bucket/p/b/index.js.map"]; got != ContentTypeSourceMap {
		t.Errorf("content type = %q", got)
	}
}

func TestS3Store_PutError(t *testing.T) {
	cause := stderrors.New("access denied")
	store := NewS3Store(&fakeS3{err: cause}, "b")

	err := store.Put(context.Background(), "k", ContentTypeSourceMap, nil)
	if errors.CodeOf(err) != "E240" {
		t.Errorf("err = %v, want E240", err)
	}
	if !stderrors.Is(err, cause) {
		t.Error("cause should be wrapped")
	}
}

func TestDiskStore_Put(t *testing.T) {
	dir := t.TempDir()
	store := NewDiskStore(dir)

	if err := store.Put(context.Background(), "maps/b1/api/x.js.map", ContentTypeSourceMap, []byte("m")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "maps", "b1", "api", "x.js.map"))
	if err != nil || string(data) != "m" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Put(ctx, "k", "", nil); err == nil {
		t.Error("cancelled context should fail")
	}
}
