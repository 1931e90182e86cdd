package route

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vango-dev/routewrap/internal/errors"
)

// Role is the part a route file plays in the application.
type Role int

const (
	RolePage Role = iota
	RoleAPI
	RoleMiddleware
)

// String returns the lower-case role name.
func (r Role) String() string {
	switch r {
	case RoleAPI:
		return "api"
	case RoleMiddleware:
		return "middleware"
	default:
		return "page"
	}
}

// APIPrefix is the route prefix under which files are API handlers.
const APIPrefix = "/api"

// MiddlewareNames are the recognised middleware file names. They are
// resolved in the parent of the routes directory.
var MiddlewareNames = []string{"middleware.ts", "middleware.js"}

// DefaultExtensions are the page extensions accepted when none are configured.
var DefaultExtensions = []string{"tsx", "ts", "jsx", "js"}

// Descriptor describes one classified route file.
type Descriptor struct {
	// RawPath is the path the classifier was given.
	RawPath string

	// Route is the canonical, slash-separated route.
	Route string

	// Role is the file's role.
	Role Role
}

// Classifier turns file locations into route descriptors. It performs no I/O.
type Classifier struct {
	rootDir    string
	ext        *regexp.Regexp
	middleware []string
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithMiddlewareDir resolves the middleware file names in dir instead of the
// parent of the routes directory.
func WithMiddlewareDir(dir string) Option {
	return func(c *Classifier) {
		c.middleware = middlewarePaths(filepath.Clean(dir))
	}
}

// NewClassifier creates a classifier for the routes tree rooted at rootDir.
// ext must match the accepted file extensions (see ExtensionPattern).
func NewClassifier(rootDir string, ext *regexp.Regexp, opts ...Option) *Classifier {
	root := filepath.Clean(rootDir)
	c := &Classifier{
		rootDir:    root,
		ext:        ext,
		middleware: middlewarePaths(filepath.Dir(root)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func middlewarePaths(dir string) []string {
	paths := make([]string, len(MiddlewareNames))
	for i, name := range MiddlewareNames {
		paths[i] = filepath.Join(dir, name)
	}
	return paths
}

// RootDir returns the routes directory.
func (c *Classifier) RootDir() string {
	return c.rootDir
}

// MiddlewarePaths returns the absolute paths recognised as middleware files.
func (c *Classifier) MiddlewarePaths() []string {
	out := make([]string, len(c.middleware))
	copy(out, c.middleware)
	return out
}

// Classify returns the descriptor for path.
func (c *Classifier) Classify(path string) (Descriptor, error) {
	clean := filepath.Clean(path)

	route, err := c.CanonicalRoute(clean)
	if err != nil {
		// Middleware normally sits beside the routes tree, not inside it.
		if c.isMiddleware(clean) {
			return Descriptor{RawPath: path, Route: "/", Role: RoleMiddleware}, nil
		}
		return Descriptor{}, err
	}

	d := Descriptor{RawPath: path, Route: route, Role: RolePage}
	switch {
	case IsAPIRoute(route):
		d.Role = RoleAPI
	case c.isMiddleware(clean):
		d.Role = RoleMiddleware
	}
	return d, nil
}

// CanonicalRoute converts a file path inside the routes tree to its route.
//
// Examples:
//   - index.ts           → /
//   - blog/index.ts      → /blog
//   - blog/[slug].tsx    → /blog/[slug]
//   - api/users.ts       → /api/users
func (c *Classifier) CanonicalRoute(path string) (string, error) {
	rel, err := filepath.Rel(c.rootDir, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New("E201").
			WithDetail(path + " is not inside " + c.rootDir)
	}

	route := "/" + filepath.ToSlash(rel)

	loc := c.ext.FindStringIndex(route)
	if loc == nil {
		return "", errors.New("E202").
			WithDetail(path + " does not match " + c.ext.String())
	}
	route = route[:loc[0]] + route[loc[1]:]

	// An index file is its directory's route
	route = strings.TrimSuffix(route, "/index")
	if route == "" {
		return "/", nil
	}
	return route, nil
}

func (c *Classifier) isMiddleware(path string) bool {
	for _, m := range c.middleware {
		if path == m {
			return true
		}
	}
	return false
}

// IsAPIRoute reports whether route is /api or below it.
func IsAPIRoute(route string) bool {
	return route == APIPrefix || strings.HasPrefix(route, APIPrefix+"/")
}

// ExtensionPattern compiles the pattern matching a file ending in one of exts.
// Extensions may be given with or without the leading dot.
func ExtensionPattern(exts []string) (*regexp.Regexp, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	quoted := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext == "" {
			return nil, errors.New("E232").WithDetail("empty page extension")
		}
		quoted = append(quoted, regexp.QuoteMeta(ext))
	}
	return regexp.Compile(`\.(?:` + strings.Join(quoted, "|") + `)$`)
}
