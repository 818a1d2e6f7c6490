// Package transform applies per-module transform chains.
//
// A [Pipeline] holds an ordered list of rules. For each module the first
// rule whose test matches (and whose include/exclude conditions allow the
// module) supplies the chain exclusively; later rules are not consulted.
// Steps are looked up by name in a registry that ships with:
//
//	js    (babel)                        esbuild downleveling to CommonJS
//	css   (css-loader, postcss, autoprefixer)  esbuild CSS prefixing
//	url   (url-loader)                   data: URI or emitted asset file
//	json                                 validate and compact
//	raw                                  identity
//
// Additional steps, such as a preprocessor for .less files, are added with
// [Register] before the pipeline is created.
//
// After the chain runs, script modules that are not yet CommonJS are
// normalized with esbuild so that the emitted runtime can wrap them, and
// asset modules that matched no rule are emitted as files by the url step.
package transform

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/matzehuels/towerpack/pkg/config"
	"github.com/matzehuels/towerpack/pkg/scan"
)

// Input is one module handed to a step.
type Input struct {
	Path   string    // Absolute source path
	ID     string    // Project-relative slash path
	Kind   scan.Kind // Content kind of the source file
	Source []byte
}

// Asset is a file a step wants written next to the bundles.
type Asset struct {
	Path string `json:"path"` // Output-relative slash path
	Data []byte `json:"data"`
}

// Output is the result of a step. Code becomes the Source of the next step.
type Output struct {
	Code     []byte `json:"code"`
	Asset    *Asset `json:"asset,omitempty"`
	CommonJS bool   `json:"commonjs,omitempty"` // Code is a CommonJS module body
}

// Step transforms one module. Steps must be safe for concurrent use and
// must not retain Input.Source.
type Step interface {
	Apply(ctx context.Context, in Input) (Output, error)
}

// StepFunc adapts a function to Step.
type StepFunc func(ctx context.Context, in Input) (Output, error)

// Apply implements Step.
func (f StepFunc) Apply(ctx context.Context, in Input) (Output, error) { return f(ctx, in) }

// Env carries build-wide settings every step may consult.
type Env struct {
	Mode        string   // config.ModeDevelopment or config.ModeProduction
	Target      string   // esbuild language target, e.g. "es2015"
	Browsers    []string // CSS engine targets, e.g. "chrome58"
	InlineLimit int64    // Default url step limit in bytes
	PublicPath  string   // URL prefix of emitted files
}

// EnvFromConfig returns the Env described by c.
func EnvFromConfig(c *config.Config) Env {
	return Env{
		Mode:        c.Mode,
		Target:      c.Targets.ES,
		Browsers:    c.Targets.Browsers,
		InlineLimit: int64(c.InlineLimit()),
		PublicPath:  c.PublicPath,
	}
}

// Production reports whether steps should minify.
func (e Env) Production() bool { return e.Mode == config.ModeProduction }

// Factory builds a step from its rule options.
type Factory func(opts map[string]any, env Env) (Step, error)

var (
	registryMu sync.RWMutex
	factories  = map[string]Factory{}
	aliases    = map[string]string{}
)

// Register makes a step available under name and any aliases. Registering
// an existing name replaces it.
func Register(name string, f Factory, alias ...string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = f
	for _, a := range alias {
		aliases[a] = name
	}
}

// Lookup returns the factory registered under name or one of its aliases.
func Lookup(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	f, ok := factories[name]
	return f, ok
}

// Canonical returns the registered name for name, resolving aliases.
func Canonical(name string) string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}

// Steps lists the registered step names.
func Steps() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// newStep instantiates a registered step.
func newStep(name string, opts map[string]any, env Env) (Step, error) {
	f, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown transform step %q (available: %v)", name, Steps())
	}
	return f(opts, env)
}

func init() {
	Register("js", newJSStep, "babel", "babel-loader")
	Register("css", newCSSStep, "css-loader", "postcss", "postcss-loader", "autoprefixer")
	Register("url", newURLStep, "url-loader")
	Register("json", newJSONStep)
	Register("raw", newRawStep, "style-loader")
}
