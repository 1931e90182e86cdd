package build

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/routewrap/internal/artifacts"
	"github.com/vango-dev/routewrap/internal/config"
	"github.com/vango-dev/routewrap/internal/errors"
	"github.com/vango-dev/routewrap/internal/wrap"
)

// ManifestFileName is written at the root of the output directory.
const ManifestFileName = "manifest.json"

// Result contains the build output.
type Result struct {
	// BuildID identifies this build in the manifest and artifact keys.
	BuildID string

	// Duration is how long the build took.
	Duration time.Duration

	// Files are the per-file results, sorted by source path.
	Files []FileResult

	// Transformed, Excluded and Fallbacks count files by status.
	Transformed int
	Excluded    int
	Fallbacks   int

	// Uploaded is the number of maps stored as artifacts.
	Uploaded int
}

// FileResult describes one processed file.
type FileResult struct {
	Source string `json:"source"`
	Output string `json:"output"`
	Map    string `json:"map,omitempty"`
	Route  string `json:"route,omitempty"`
	Role   string `json:"role,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`

	mapData []byte
}

// Manifest is the content of manifest.json.
type Manifest struct {
	BuildID   string       `json:"buildId"`
	CreatedAt time.Time    `json:"createdAt"`
	Routes    string       `json:"routes"`
	Files     []FileResult `json:"files"`
}

// Options configures the builder.
type Options struct {
	// Store receives the source maps when set.
	Store artifacts.Store

	// Logger receives per-file debug output. Default: slog.Default()
	Logger *slog.Logger

	// OnProgress is called with progress updates.
	OnProgress func(step string)

	// OnFile is called after each file is written. It may be called from
	// several goroutines at once.
	OnFile func(FileResult)
}

// Builder transforms a whole routes tree.
type Builder struct {
	config      *config.Config
	transformer *wrap.Transformer
	ext         *regexp.Regexp
	options     Options
	logger      *slog.Logger
}

// New creates a new builder. cfg must have passed Validate.
func New(cfg *config.Config, tr *wrap.Transformer, options Options) (*Builder, error) {
	ext, err := cfg.ExtensionRegexp()
	if err != nil {
		return nil, err
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		config:      cfg,
		transformer: tr,
		ext:         ext,
		options:     options,
		logger:      logger,
	}, nil
}

// Build transforms every route file and middleware file into the output
// directory. Per-file failures fall back and never fail the build; I/O
// errors do.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{BuildID: uuid.NewString()}

	outputDir := b.config.OutputPath()

	b.progress("Cleaning output directory...")
	if err := os.RemoveAll(outputDir); err != nil {
		return nil, errors.New("E142").Wrap(err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errors.New("E142").Wrap(err)
	}

	b.progress("Discovering route files...")
	sources, err := b.Discover()
	if err != nil {
		return nil, err
	}

	b.progress("Transforming route files...")
	files := make([]FileResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency())
	for i, src := range sources {
		g.Go(func() error {
			fr, err := b.TransformFile(gctx, src)
			if err != nil {
				return err
			}
			files[i] = fr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, fr := range files {
		switch fr.Status {
		case wrap.StatusTransformed.String():
			result.Transformed++
		case wrap.StatusExcluded.String():
			result.Excluded++
		default:
			result.Fallbacks++
		}
	}
	result.Files = files

	if b.options.Store != nil && b.config.SourceMapsEnabled() {
		b.progress("Uploading source maps...")
		n, err := b.upload(ctx, result.BuildID, files)
		if err != nil {
			return nil, err
		}
		result.Uploaded = n
	}

	b.progress("Writing manifest...")
	if err := b.writeManifest(outputDir, result); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	return result, nil
}

// Discover returns the route files below the routes directory and any
// middleware file, sorted. Hidden files and node_modules are skipped.
func (b *Builder) Discover() ([]string, error) {
	root := b.transformer.Classifier().RootDir()

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".d.ts") {
			return nil
		}
		if b.ext.MatchString(filepath.ToSlash(path)) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E230").
				WithDetail("routes directory " + root + " does not exist")
		}
		return nil, errors.New("E142").Wrap(err)
	}

	for _, m := range b.transformer.Classifier().MiddlewarePaths() {
		if info, err := os.Stat(m); err == nil && !info.IsDir() {
			files = append(files, m)
		}
	}

	sort.Strings(files)
	return files, nil
}

// Matches reports whether path is a file Build would process.
func (b *Builder) Matches(path string) bool {
	path = filepath.Clean(path)
	for _, m := range b.transformer.Classifier().MiddlewarePaths() {
		if path == m {
			return true
		}
	}

	root := b.transformer.Classifier().RootDir()
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(seg, ".") || seg == "node_modules" {
			return false
		}
	}
	return !strings.HasSuffix(path, ".d.ts") && b.ext.MatchString(filepath.ToSlash(path))
}

// Remove deletes the outputs written for path, if any.
func (b *Builder) Remove(path string) error {
	rel := b.relOutput(path)
	base := filepath.Join(b.config.OutputPath(), strings.TrimSuffix(rel, filepath.Ext(rel)))
	for _, name := range []string{
		filepath.Join(b.config.OutputPath(), rel),
		base + outputExt(path),
		base + outputExt(path) + ".map",
	} {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			return errors.New("E142").WithDetail(name).Wrap(err)
		}
	}
	return nil
}

// TransformFile transforms a single file and writes its output. Only I/O
// errors are returned.
func (b *Builder) TransformFile(ctx context.Context, path string) (FileResult, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return FileResult{}, errors.New("E142").WithDetail("reading " + path).Wrap(err)
	}

	in := wrap.Input{ResourcePath: path, Code: string(code)}
	if data, err := os.ReadFile(path + ".map"); err == nil {
		in.Map = data
	}

	out := b.transformer.Transform(ctx, in)

	fr := FileResult{
		Source: path,
		Route:  out.Route.Route,
		Status: out.Status.String(),
	}
	if out.Route.Route != "" {
		fr.Role = out.Route.Role.String()
	}
	if out.Err != nil {
		fr.Error = compactError(out.Err)
	}

	rel := b.relOutput(path)
	if out.Status == wrap.StatusTransformed {
		rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + outputExt(path)
	}
	fr.Output = filepath.Join(b.config.OutputPath(), rel)

	body := out.Code
	writeMap := out.Status == wrap.StatusTransformed && len(out.Map) > 0 && b.config.SourceMapsEnabled()
	if writeMap {
		fr.Map = fr.Output + ".map"
		fr.mapData = out.Map
		if !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		body += "//# sourceMappingURL=" + filepath.Base(fr.Map) + "\n"
	}

	if err := os.MkdirAll(filepath.Dir(fr.Output), 0755); err != nil {
		return FileResult{}, errors.New("E142").Wrap(err)
	}
	if err := os.WriteFile(fr.Output, []byte(body), 0644); err != nil {
		return FileResult{}, errors.New("E142").WithDetail(fr.Output).Wrap(err)
	}
	if writeMap {
		if err := os.WriteFile(fr.Map, out.Map, 0644); err != nil {
			return FileResult{}, errors.New("E142").WithDetail(fr.Map).Wrap(err)
		}
	}

	b.logger.Debug("route file processed",
		"file", path,
		"route", fr.Route,
		"status", fr.Status,
	)
	if b.options.OnFile != nil {
		b.options.OnFile(fr)
	}
	return fr, nil
}

// relOutput is path relative to the project directory. Files outside it
// keep only their base name.
func (b *Builder) relOutput(path string) string {
	rel, err := filepath.Rel(b.config.Dir(), path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(path)
	}
	return rel
}

// outputExt keeps JSX sources recognisable: the link pass preserves JSX.
func outputExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsx", ".tsx":
		return ".jsx"
	default:
		return ".js"
	}
}

func (b *Builder) concurrency() int {
	if b.config.Build.Concurrency > 0 {
		return b.config.Build.Concurrency
	}
	return 1
}

func (b *Builder) upload(ctx context.Context, buildID string, files []FileResult) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency())

	n := 0
	for _, fr := range files {
		if fr.Map == "" {
			continue
		}
		n++
		rel, err := filepath.Rel(b.config.OutputPath(), fr.Map)
		if err != nil {
			rel = filepath.Base(fr.Map)
		}
		key := artifacts.Key(b.config.Artifacts.Prefix, buildID, filepath.ToSlash(rel))
		data := fr.mapData
		g.Go(func() error {
			return b.options.Store.Put(gctx, key, artifacts.ContentTypeSourceMap, data)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return n, nil
}

// writeManifest writes the build manifest.
func (b *Builder) writeManifest(outputDir string, result *Result) error {
	m := Manifest{
		BuildID:   result.BuildID,
		CreatedAt: time.Now().UTC(),
		Routes:    b.transformer.Classifier().RootDir(),
		Files:     result.Files,
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.New("E142").Wrap(err)
	}

	manifestPath := filepath.Join(outputDir, ManifestFileName)
	if err := os.WriteFile(manifestPath, append(data, '\n'), 0644); err != nil {
		return errors.New("E142").Wrap(err)
	}
	return nil
}

// ReadManifest loads a manifest written by Build.
func ReadManifest(outputDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(outputDir, ManifestFileName))
	if err != nil {
		return nil, errors.New("E142").Wrap(err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.New("E142").Wrap(err)
	}
	return &m, nil
}

// progress reports build progress.
func (b *Builder) progress(step string) {
	if b.options.OnProgress != nil {
		b.options.OnProgress(step)
	}
}

// Clean removes the build output directory.
func (b *Builder) Clean() error {
	return os.RemoveAll(b.config.OutputPath())
}

// compactError renders err on one line, leading with the source location
// when one is known.
func compactError(err error) string {
	var re *errors.Error
	if stderrors.As(err, &re) && re.Location != nil {
		return re.FormatCompact()
	}
	return err.Error()
}
