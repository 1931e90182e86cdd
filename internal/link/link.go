package link

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/vango-dev/routewrap/internal/errors"
)

// virtualNamespace holds the wrapper and target modules.
const virtualNamespace = "routewrap-virtual"

// Request is the input of one link operation.
type Request struct {
	// WrapperName is the synthetic name of the wrapper module (entry point).
	WrapperName string

	// WrapperCode is the rendered template.
	WrapperCode string

	// TargetName is the synthetic name the wrapper imports the user module by.
	TargetName string

	// TargetPath is the real path of the user module. It selects the loader
	// and names the original source in the emitted map.
	TargetPath string

	// TargetCode is the user module's source text.
	TargetCode string

	// TargetMap is the user module's source map, if any.
	TargetMap []byte
}

// Result is the emitted module.
type Result struct {
	Code string
	Map  []byte
}

// Link builds the two-module graph for req and emits a single ES module with
// the wrapper's wildcard re-export flattened into named exports.
func Link(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.WrapperName == "" || req.TargetName == "" || req.WrapperName == req.TargetName {
		return nil, errors.New("E210").WithDetail("wrapper and target need distinct names")
	}

	target, err := prepareTarget(ctx, req)
	if err != nil {
		return nil, err
	}

	resolveDir := filepath.Dir(req.TargetPath)
	if abs, err := filepath.Abs(resolveDir); err == nil {
		resolveDir = abs
	}

	result := api.Build(api.BuildOptions{
		EntryPoints:    []string{req.WrapperName},
		Bundle:         true,
		Write:          false,
		Outdir:         "out",
		Format:         api.FormatESModule,
		Platform:       api.PlatformNeutral,
		Target:         api.ESNext,
		JSX:            api.JSXPreserve,
		Charset:        api.CharsetUTF8,
		TreeShaking:    api.TreeShakingFalse,
		Sourcemap:      api.SourceMapExternal,
		SourcesContent: api.SourcesContentInclude,
		LogLevel:       api.LogLevelSilent,
		Plugins:        []api.Plugin{virtualGraph(req, target.code, resolveDir)},
	})

	// Warnings are dropped; only errors abort.
	if len(result.Errors) > 0 {
		return nil, linkError(req, target, result.Errors)
	}

	var code, sourceMap []byte
	for _, f := range result.OutputFiles {
		if strings.HasSuffix(f.Path, ".map") {
			sourceMap = f.Contents
			continue
		}
		if code == nil {
			code = f.Contents
		}
	}
	if code == nil {
		return nil, errors.New("E211")
	}

	return &Result{Code: string(code), Map: sourceMap}, nil
}

// virtualGraph serves the wrapper and the prepared target from memory and
// marks every other specifier external, untouched.
func virtualGraph(req Request, target, resolveDir string) api.Plugin {
	wrapper := req.WrapperCode
	return api.Plugin{
		Name: "routewrap-virtual-modules",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: ".*"},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					switch args.Path {
					case req.WrapperName, req.TargetName:
						return api.OnResolveResult{Path: args.Path, Namespace: virtualNamespace}, nil
					}
					// Returning the specifier itself keeps relative paths as
					// authored instead of recomputing them from the virtual root.
					return api.OnResolveResult{Path: args.Path, External: true}, nil
				})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: virtualNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					switch args.Path {
					case req.WrapperName:
						return api.OnLoadResult{
							Contents:   &wrapper,
							Loader:     api.LoaderJS,
							ResolveDir: resolveDir,
						}, nil
					case req.TargetName:
						return api.OnLoadResult{
							Contents:   &target,
							Loader:     loaderFor(req.TargetPath),
							ResolveDir: resolveDir,
						}, nil
					}
					return api.OnLoadResult{}, fmt.Errorf("unknown virtual module %q", args.Path)
				})
		},
	}
}

// loaderFor picks the esbuild loader from the real file's extension. Plain
// .js route files commonly contain JSX.
func loaderFor(path string) api.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	default:
		return api.LoaderJSX
	}
}

// linkError converts esbuild messages into an E210. When the first error is
// inside the user's file the location and source lines come from the text
// that was linked; the other messages become notes.
func linkError(req Request, target preparedTarget, msgs []api.Message) error {
	texts := make([]string, 0, len(msgs))
	var notes []string
	for i, m := range msgs {
		texts = append(texts, m.Text)
		for _, n := range m.Notes {
			notes = append(notes, n.Text)
		}
		if i > 0 {
			notes = append(notes, messageNote(req, target, m))
		}
	}

	err := errors.New("E210").
		WithDetail(msgs[0].Text).
		WithNotes(notes...).
		Wrap(fmt.Errorf("%d error(s): %s", len(msgs), strings.Join(texts, "; ")))

	line, col, ok := targetPosition(req, target, msgs[0].Location)
	if !ok {
		return err
	}
	return err.WithLocation(req.TargetPath, line, col).WithSource(req.TargetCode)
}

// targetPosition maps an esbuild location in the prepared target back to a
// 1-based line and column of the user's file.
func targetPosition(req Request, target preparedTarget, loc *api.Location) (line, col int, ok bool) {
	if loc == nil || !strings.Contains(loc.File, req.TargetName) {
		return 0, 0, false
	}
	return max(loc.Line-target.shift, 1), loc.Column + 1, true
}

func messageNote(req Request, target preparedTarget, m api.Message) string {
	if line, col, ok := targetPosition(req, target, m.Location); ok {
		return fmt.Sprintf("%s:%d:%d: %s", req.TargetPath, line, col, m.Text)
	}
	return m.Text
}
