package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/routewrap/internal/errors"
	"github.com/vango-dev/routewrap/internal/route"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "routewrap.json"

	// DefaultRoutes is the default routes directory.
	DefaultRoutes = "pages"

	// DefaultOutput is the default build output directory.
	DefaultOutput = ".routewrap"

	// DefaultAddr is the default sidecar listen address.
	DefaultAddr = "localhost:7300"

	// DefaultDebounce is the default watch-mode debounce interval.
	DefaultDebounce = "100ms"

	// DefaultArtifactPrefix is the default object key prefix for uploaded maps.
	DefaultArtifactPrefix = "sourcemaps"
)

// yamlFileNames are accepted in place of ConfigFileName, in order.
var yamlFileNames = []string{"routewrap.yaml", "routewrap.yml"}

// Config represents the complete routewrap configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Paths contains path configuration.
	Paths PathsConfig `json:"paths,omitempty" yaml:"paths,omitempty"`

	// PageExtensions are the accepted route file extensions.
	PageExtensions []string `json:"pageExtensions,omitempty" yaml:"pageExtensions,omitempty"`

	// ExtensionPattern overrides the pattern built from PageExtensions.
	ExtensionPattern string `json:"extensionPattern,omitempty" yaml:"extensionPattern,omitempty"`

	// Exclude lists routes that are never instrumented.
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`

	// Build contains batch build configuration.
	Build BuildConfig `json:"build,omitempty" yaml:"build,omitempty"`

	// Templates contains wrapper template configuration.
	Templates TemplatesConfig `json:"templates,omitempty" yaml:"templates,omitempty"`

	// Server contains sidecar server configuration.
	Server ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`

	// Dev contains watch mode configuration.
	Dev DevConfig `json:"dev,omitempty" yaml:"dev,omitempty"`

	// Artifacts contains source map upload configuration.
	Artifacts ArtifactsConfig `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// PathsConfig contains path configuration for project directories.
type PathsConfig struct {
	// Routes is the routed-files root.
	Routes string `json:"routes,omitempty" yaml:"routes,omitempty"`

	// Middleware is the directory holding middleware.ts or middleware.js.
	// Default: the parent of Routes.
	Middleware string `json:"middleware,omitempty" yaml:"middleware,omitempty"`
}

// BuildConfig contains batch build settings.
type BuildConfig struct {
	// Output is the output directory.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// Concurrency is the number of files transformed in parallel.
	// Default: runtime.NumCPU()
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`

	// SourceMaps enables writing .js.map files (default: true).
	SourceMaps *bool `json:"sourceMaps,omitempty" yaml:"sourceMaps,omitempty"`
}

// TemplatesConfig contains template settings.
type TemplatesConfig struct {
	// Dir overrides the embedded templates with files from this directory.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// ServerConfig contains sidecar server settings.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// DevConfig contains watch mode settings.
type DevConfig struct {
	// Debounce is how long to wait for more changes (e.g., "100ms").
	Debounce string `json:"debounce,omitempty" yaml:"debounce,omitempty"`

	// Ignore contains glob patterns to ignore during watch.
	Ignore []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`
}

// ArtifactsConfig contains source map upload settings.
type ArtifactsConfig struct {
	// Enabled turns on uploading after a build.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Bucket is the S3 bucket.
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`

	// Prefix is the object key prefix.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Region is the AWS region. Empty uses the SDK's default chain.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the specified directory. It looks for
// routewrap.json, then routewrap.yaml and routewrap.yml.
func Load(dir string) (*Config, error) {
	path, ok := find(dir)
	if !ok {
		return nil, errors.New("E141").
			WithDetail("No " + ConfigFileName + " found in " + dir).
			WithSuggestion("Run 'routewrap init' to create one")
	}
	return LoadFile(path)
}

// LoadOrDefault loads the configuration in dir, or returns defaults rooted
// at dir when there is none.
func LoadOrDefault(dir string) (*Config, error) {
	if _, ok := find(dir); ok {
		return Load(dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.New("E120").Wrap(err)
	}
	cfg := New()
	cfg.configPath = filepath.Join(abs, ConfigFileName)
	return cfg, nil
}

// LoadFile reads configuration from the specified file path. Files ending in
// .yaml or .yml are parsed as YAML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E141").
				WithDetail("No config file at " + path)
		}
		return nil, errors.New("E120").Wrap(err)
	}

	cfg := &Config{}
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("E120").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that " + filepath.Base(path) + " is well formed")
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func find(dir string) (string, bool) {
	for _, name := range append([]string{ConfigFileName}, yamlFileNames...) {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// SaveTo writes the configuration to path, as YAML when the extension says so.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("E120").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E120").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Paths.Routes == "" {
		c.Paths.Routes = DefaultRoutes
	}
	if len(c.PageExtensions) == 0 {
		c.PageExtensions = append([]string(nil), route.DefaultExtensions...)
	}

	// Build
	if c.Build.Output == "" {
		c.Build.Output = DefaultOutput
	}
	if c.Build.Concurrency == 0 {
		c.Build.Concurrency = runtime.NumCPU()
	}
	if c.Build.SourceMaps == nil {
		enabled := true
		c.Build.SourceMaps = &enabled
	}

	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Dev.Debounce == "" {
		c.Dev.Debounce = DefaultDebounce
	}
	if c.Artifacts.Prefix == "" {
		c.Artifacts.Prefix = DefaultArtifactPrefix
	}
}

// Validate checks the configuration. Pattern and rule errors are reported
// here so they surface before any file is processed.
func (c *Config) Validate() error {
	if _, err := c.ExtensionRegexp(); err != nil {
		return err
	}
	if _, err := c.Rules(); err != nil {
		return err
	}
	if c.Build.Concurrency < 0 {
		return errors.New("E230").
			WithDetail("build.concurrency must not be negative")
	}
	if _, err := c.DebounceDuration(); err != nil {
		return err
	}
	if c.Artifacts.Enabled && c.Artifacts.Bucket == "" {
		return errors.New("E230").
			WithDetail("artifacts.bucket is required when artifacts are enabled")
	}
	return nil
}

// ExtensionRegexp returns the compiled extension pattern.
func (c *Config) ExtensionRegexp() (*regexp.Regexp, error) {
	if c.ExtensionPattern != "" {
		re, err := regexp.Compile(c.ExtensionPattern)
		if err != nil {
			return nil, errors.New("E232").
				WithDetail(c.ExtensionPattern).
				Wrap(err)
		}
		return re, nil
	}
	re, err := route.ExtensionPattern(c.PageExtensions)
	if err != nil {
		return nil, err
	}
	return re, nil
}

// Rules returns the compiled exclusion rules.
func (c *Config) Rules() (*route.RuleSet, error) {
	return route.ParseRules(c.Exclude)
}

// SourceMapsEnabled reports whether builds write source maps.
func (c *Config) SourceMapsEnabled() bool {
	return c.Build.SourceMaps == nil || *c.Build.SourceMaps
}

// DebounceDuration parses Dev.Debounce.
func (c *Config) DebounceDuration() (time.Duration, error) {
	if c.Dev.Debounce == "" {
		return time.ParseDuration(DefaultDebounce)
	}
	d, err := time.ParseDuration(c.Dev.Debounce)
	if err != nil || d < 0 {
		return 0, errors.New("E230").
			WithDetail("dev.debounce: invalid duration " + c.Dev.Debounce)
	}
	return d, nil
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// RoutesPath returns the absolute path to the routes directory.
func (c *Config) RoutesPath() string {
	return c.resolve(c.Paths.Routes)
}

// MiddlewarePath returns the directory middleware files are looked up in.
func (c *Config) MiddlewarePath() string {
	if c.Paths.Middleware == "" {
		return filepath.Dir(c.RoutesPath())
	}
	return c.resolve(c.Paths.Middleware)
}

// OutputPath returns the absolute path to the build output directory.
func (c *Config) OutputPath() string {
	return c.resolve(c.Build.Output)
}

// TemplatesPath returns the template override directory, or "" when the
// embedded templates are used.
func (c *Config) TemplatesPath() string {
	if c.Templates.Dir == "" {
		return ""
	}
	return c.resolve(c.Templates.Dir)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, ok := find(dir)
	return ok
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing a config file, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E141").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'routewrap init' to create one")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads the nearest configuration above the working
// directory, or defaults rooted at the working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return LoadOrDefault(wd)
	}

	return Load(root)
}
