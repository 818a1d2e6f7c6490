// Package config defines the towerpack build configuration.
//
// A [Config] is loaded once, validated, and then passed explicitly to every
// build stage; nothing reads configuration from globals. Files may be TOML
// (towerpack.toml), YAML (towerpack.yaml) or JSON (towerpack.json). Keys not
// present in the file keep the values of [Default], which mirrors a
// conventional single-page-app layout: entry ./src/index.js, output to dist/,
// a vendor chunk for node_modules and a common chunk for modules shared by
// two or more entries.
//
// Environment overrides are applied by [ApplyEnv] after loading a .env file
// from the project directory.
package config

import (
	"path/filepath"
	"slices"
	"time"
)

// Build modes.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Chunk policy kinds.
const (
	PolicyVendor  = "vendor"
	PolicyShared  = "shared"
	PolicyDefault = "default"
)

// Default values.
const (
	DefaultMode                     = ModeProduction
	DefaultOutputDir                = "dist"
	DefaultPublicPath               = "/"
	DefaultFilenameTemplate         = "[name].[hash:8].js"
	DefaultCSSFilenameTemplate      = "[name].[hash:8].css"
	DefaultCSSChunkFilenameTemplate = "[id].[hash:8].css"
	DefaultInlineSizeThreshold      = 500
	DefaultConcurrency              = 16
	DefaultReadTimeout              = "10s"
	DefaultESTarget                 = "es2015"
	DefaultDevHost                  = "localhost"
	DefaultDevPort                  = 1234
)

// DefaultBrowsers are the CSS engine targets used for vendor prefixing.
var DefaultBrowsers = []string{"chrome58", "edge16", "firefox57", "safari11"}

// Entry is a named build entry point.
type Entry struct {
	Name string `toml:"name" yaml:"name" json:"name"`
	Path string `toml:"path" yaml:"path" json:"path"`
}

// Alias rewrites import specifiers. A Key ending in "$" matches only the
// exact specifier; otherwise the key also matches as a path prefix.
type Alias struct {
	Key  string `toml:"key" yaml:"key" json:"key"`
	Path string `toml:"path" yaml:"path" json:"path"`
}

// Step names one transform step and its options.
type Step struct {
	Name    string         `toml:"name" yaml:"name" json:"name"`
	Options map[string]any `toml:"options,omitempty" yaml:"options,omitempty" json:"options,omitempty"`
}

// TransformRule selects the transform chain for matching modules.
type TransformRule struct {
	Test    string   `toml:"test" yaml:"test" json:"test"`
	Include []string `toml:"include,omitempty" yaml:"include,omitempty" json:"include,omitempty"`
	Exclude string   `toml:"exclude,omitempty" yaml:"exclude,omitempty" json:"exclude,omitempty"`
	Use     []Step   `toml:"use" yaml:"use" json:"use"`
}

// ChunkPolicy groups modules into a named chunk.
type ChunkPolicy struct {
	Name      string `toml:"name" yaml:"name" json:"name"`
	Kind      string `toml:"kind" yaml:"kind" json:"kind"`
	Test      string `toml:"test,omitempty" yaml:"test,omitempty" json:"test,omitempty"`
	MinChunks int    `toml:"minChunks,omitempty" yaml:"minChunks,omitempty" json:"minChunks,omitempty"`
	Priority  int    `toml:"priority,omitempty" yaml:"priority,omitempty" json:"priority,omitempty"`
}

// Targets controls language downleveling and CSS prefixing.
type Targets struct {
	ES       string   `toml:"es" yaml:"es" json:"es"`
	Browsers []string `toml:"browsers" yaml:"browsers" json:"browsers"`
}

// DevServer configures `towerpack serve`.
type DevServer struct {
	Host     string `toml:"host" yaml:"host" json:"host"`
	Port     int    `toml:"port" yaml:"port" json:"port"`
	Compress *bool  `toml:"compress,omitempty" yaml:"compress,omitempty" json:"compress,omitempty"`
}

// CompressEnabled reports whether responses should be gzip-compressed.
// Compression is on unless explicitly disabled.
func (d DevServer) CompressEnabled() bool {
	return d.Compress == nil || *d.Compress
}

// Config is the complete build configuration.
type Config struct {
	Mode       string  `toml:"mode" yaml:"mode" json:"mode"`
	Context    string  `toml:"context,omitempty" yaml:"context,omitempty" json:"context,omitempty"`
	Entry      []Entry `toml:"entry" yaml:"entry" json:"entry"`
	OutputDir  string  `toml:"outputDir" yaml:"outputDir" json:"outputDir"`
	PublicPath string  `toml:"publicPath" yaml:"publicPath" json:"publicPath"`
	Clean      bool    `toml:"clean" yaml:"clean" json:"clean"`

	Aliases     []Alias  `toml:"aliases" yaml:"aliases" json:"aliases"`
	Extensions  []string `toml:"extensions" yaml:"extensions" json:"extensions"`
	SearchRoots []string `toml:"searchRoots" yaml:"searchRoots" json:"searchRoots"`

	TransformRules []TransformRule `toml:"transformRules" yaml:"transformRules" json:"transformRules"`
	ChunkPolicies  []ChunkPolicy   `toml:"chunkPolicies" yaml:"chunkPolicies" json:"chunkPolicies"`

	FilenameTemplate         string `toml:"filenameTemplate" yaml:"filenameTemplate" json:"filenameTemplate"`
	CSSFilenameTemplate      string `toml:"cssFilenameTemplate" yaml:"cssFilenameTemplate" json:"cssFilenameTemplate"`
	ChunkFilenameTemplate    string `toml:"chunkFilenameTemplate" yaml:"chunkFilenameTemplate" json:"chunkFilenameTemplate"`
	CSSChunkFilenameTemplate string `toml:"cssChunkFilenameTemplate" yaml:"cssChunkFilenameTemplate" json:"cssChunkFilenameTemplate"`

	// InlineSizeThreshold is the byte size below which assets are inlined
	// as data URIs. Nil means the default; 0 disables inlining.
	InlineSizeThreshold *int   `toml:"inlineSizeThreshold,omitempty" yaml:"inlineSizeThreshold,omitempty" json:"inlineSizeThreshold,omitempty"`
	Concurrency         int    `toml:"concurrency" yaml:"concurrency" json:"concurrency"`
	ReadTimeout         string `toml:"readTimeout" yaml:"readTimeout" json:"readTimeout"`

	Targets   Targets   `toml:"targets" yaml:"targets" json:"targets"`
	DevServer DevServer `toml:"devServer" yaml:"devServer" json:"devServer"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mode:       DefaultMode,
		Entry:      []Entry{{Name: "main", Path: "./src/index.js"}},
		OutputDir:  DefaultOutputDir,
		PublicPath: DefaultPublicPath,
		Aliases: []Alias{
			{Key: "@", Path: "src"},
			{Key: "tool$", Path: "src/utils/tool.js"},
		},
		Extensions:  []string{".wasm", ".mjs", ".js", ".json", ".jsx"},
		SearchRoots: []string{"src", "node_modules"},
		TransformRules: []TransformRule{
			{Test: `\.css$`, Include: []string{"src"}, Use: []Step{{Name: "css"}}},
			{Test: `\.(png|jpe?g|gif)$`, Use: []Step{{Name: "url", Options: map[string]any{"outputPath": "images/"}}}},
			{Test: `\.m?jsx?$`, Exclude: `(node_modules|bower_components)`, Use: []Step{{Name: "js"}}},
		},
		ChunkPolicies: []ChunkPolicy{
			{Name: "common", Kind: PolicyShared, MinChunks: 2},
			{Name: "styles", Kind: PolicyShared, Test: `\.css$`, MinChunks: 2, Priority: 5},
			{Name: "vendor", Kind: PolicyVendor, Test: `[\\/]node_modules[\\/]`, Priority: 10},
		},
		FilenameTemplate:         DefaultFilenameTemplate,
		CSSFilenameTemplate:      DefaultCSSFilenameTemplate,
		ChunkFilenameTemplate:    DefaultFilenameTemplate,
		CSSChunkFilenameTemplate: DefaultCSSChunkFilenameTemplate,
		InlineSizeThreshold:      Threshold(DefaultInlineSizeThreshold),
		Concurrency:              DefaultConcurrency,
		ReadTimeout:              DefaultReadTimeout,
		Targets: Targets{
			ES:       DefaultESTarget,
			Browsers: slices.Clone(DefaultBrowsers),
		},
		DevServer: DevServer{Host: DefaultDevHost, Port: DefaultDevPort},
	}
}

// WithDefaults fills every unset field from [Default] and returns c.
// Lists are replaced wholesale, never merged, so a file that declares
// transformRules owns the complete rule list.
func (c *Config) WithDefaults() *Config {
	d := Default()
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if len(c.Entry) == 0 {
		c.Entry = d.Entry
	}
	if c.OutputDir == "" {
		c.OutputDir = d.OutputDir
	}
	if c.PublicPath == "" {
		c.PublicPath = d.PublicPath
	}
	if c.Aliases == nil {
		c.Aliases = d.Aliases
	}
	if c.Extensions == nil {
		c.Extensions = d.Extensions
	}
	if c.SearchRoots == nil {
		c.SearchRoots = d.SearchRoots
	}
	if c.TransformRules == nil {
		c.TransformRules = d.TransformRules
	}
	if c.ChunkPolicies == nil {
		c.ChunkPolicies = d.ChunkPolicies
	}
	if c.FilenameTemplate == "" {
		c.FilenameTemplate = d.FilenameTemplate
	}
	if c.CSSFilenameTemplate == "" {
		c.CSSFilenameTemplate = d.CSSFilenameTemplate
	}
	if c.ChunkFilenameTemplate == "" {
		c.ChunkFilenameTemplate = c.FilenameTemplate
	}
	if c.CSSChunkFilenameTemplate == "" {
		c.CSSChunkFilenameTemplate = d.CSSChunkFilenameTemplate
	}
	if c.InlineSizeThreshold == nil {
		c.InlineSizeThreshold = d.InlineSizeThreshold
	}
	if c.Concurrency == 0 {
		c.Concurrency = d.Concurrency
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.Targets.ES == "" {
		c.Targets.ES = d.Targets.ES
	}
	if c.Targets.Browsers == nil {
		c.Targets.Browsers = d.Targets.Browsers
	}
	if c.DevServer.Host == "" {
		c.DevServer.Host = d.DevServer.Host
	}
	if c.DevServer.Port == 0 {
		c.DevServer.Port = d.DevServer.Port
	}
	return c
}

// Threshold returns a pointer to n for setting InlineSizeThreshold.
func Threshold(n int) *int { return &n }

// InlineLimit returns the effective inline size threshold.
func (c *Config) InlineLimit() int {
	if c.InlineSizeThreshold == nil {
		return DefaultInlineSizeThreshold
	}
	return *c.InlineSizeThreshold
}

// Production reports whether the build minifies its output.
func (c *Config) Production() bool { return c.Mode == ModeProduction }

// Root returns the absolute project directory. Relative Context values are
// taken relative to the working directory.
func (c *Config) Root() string {
	root := c.Context
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return filepath.Clean(root)
	}
	return abs
}

// Abs resolves p against the project root unless it is already absolute.
func (c *Config) Abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Root(), filepath.FromSlash(p))
}

// OutputPath returns the absolute output directory.
func (c *Config) OutputPath() string { return c.Abs(c.OutputDir) }

// ReadTimeoutDuration returns the parsed per-read timeout. Validate rejects
// unparsable values; this falls back to the default for an unvalidated Config.
func (c *Config) ReadTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ReadTimeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultReadTimeout)
	}
	return d
}

// Clone returns a deep copy of the slice fields so callers can override
// values without affecting c.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Entry = slices.Clone(c.Entry)
	cp.Aliases = slices.Clone(c.Aliases)
	cp.Extensions = slices.Clone(c.Extensions)
	cp.SearchRoots = slices.Clone(c.SearchRoots)
	cp.TransformRules = slices.Clone(c.TransformRules)
	cp.ChunkPolicies = slices.Clone(c.ChunkPolicies)
	cp.Targets.Browsers = slices.Clone(c.Targets.Browsers)
	if c.InlineSizeThreshold != nil {
		cp.InlineSizeThreshold = Threshold(*c.InlineSizeThreshold)
	}
	return &cp
}
