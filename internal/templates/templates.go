package templates

import (
	"embed"
	"os"
	"path/filepath"
	"strings"

	"github.com/vango-dev/routewrap/internal/errors"
	"github.com/vango-dev/routewrap/internal/route"
)

const (
	// RoutePlaceholder is replaced with the canonical route.
	RoutePlaceholder = "__ROUTE__"

	// TargetPlaceholder is replaced with TargetModule.
	TargetPlaceholder = "__WRAPPING_TARGET_FILE__"

	// TargetModule is the synthetic module name of the user's code.
	TargetModule = "__routewrap_target__"

	// WrapperModule is the synthetic module name of the rendered template.
	WrapperModule = "__routewrap_wrapper__"

	// RuntimeModule is the package providing the wrap* adapters.
	RuntimeModule = "@routewrap/runtime"
)

// Asset file names, one per role.
const (
	APIFile        = "api.js"
	MiddlewareFile = "middleware.js"
	PageFile       = "page.js"
)

//go:embed assets/*.js
var assets embed.FS

// Set holds one wrapper template per role. A Set is immutable once built and
// safe for concurrent use.
type Set struct {
	api        string
	middleware string
	page       string
}

// NewSet creates a Set from literal template texts.
func NewSet(api, middleware, page string) *Set {
	return &Set{api: api, middleware: middleware, page: page}
}

// Load returns the embedded templates.
func Load() (*Set, error) {
	read := func(name string) (string, error) {
		data, err := assets.ReadFile("assets/" + name)
		if err != nil {
			return "", errors.New("E212").WithDetail(name).Wrap(err)
		}
		return string(data), nil
	}
	return build(read)
}

// LoadDir returns templates read from dir. Files missing from dir fall back
// to the embedded asset.
func LoadDir(dir string) (*Set, error) {
	if dir == "" {
		return Load()
	}
	read := func(name string) (string, error) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", errors.New("E212").WithDetail(filepath.Join(dir, name)).Wrap(err)
		}
		data, err = assets.ReadFile("assets/" + name)
		if err != nil {
			return "", errors.New("E212").WithDetail(name).Wrap(err)
		}
		return string(data), nil
	}
	return build(read)
}

func build(read func(name string) (string, error)) (*Set, error) {
	api, err := read(APIFile)
	if err != nil {
		return nil, err
	}
	mw, err := read(MiddlewareFile)
	if err != nil {
		return nil, err
	}
	page, err := read(PageFile)
	if err != nil {
		return nil, err
	}
	return NewSet(api, mw, page), nil
}

// For returns the raw template text for role.
func (s *Set) For(role route.Role) (string, error) {
	var text string
	switch role {
	case route.RoleAPI:
		text = s.api
	case route.RoleMiddleware:
		text = s.middleware
	case route.RolePage:
		text = s.page
	}
	if text == "" {
		return "", errors.New("E212").WithDetail("no template for role " + role.String())
	}
	return text, nil
}

// Render returns the template for role with both placeholders substituted.
func (s *Set) Render(role route.Role, canonicalRoute string) (string, error) {
	text, err := s.For(role)
	if err != nil {
		return "", err
	}
	return Substitute(text, canonicalRoute), nil
}

// Substitute replaces every route placeholder with canonicalRoute and every
// target placeholder with TargetModule. Backslashes in the route are escaped
// first so the route stays a valid string literal.
func Substitute(text, canonicalRoute string) string {
	escaped := strings.ReplaceAll(canonicalRoute, `\`, `\\`)
	text = strings.ReplaceAll(text, RoutePlaceholder, escaped)
	return strings.ReplaceAll(text, TargetPlaceholder, TargetModule)
}
