// Package scan extracts import specifiers from module sources.
//
// Scanning is delegated to esbuild: each source is fed to a bundling build
// as stdin with a plugin that marks every import external, and the ordered
// import list is read back from the build's metafile. This handles ES module
// syntax, require calls, dynamic imports, JSX, TypeScript (type-only imports
// are dropped) and CSS @import / url() references with one parser.
package scan

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/matzehuels/towerpack/pkg/errors"
)

// Kind classifies module content.
type Kind string

// Module kinds.
const (
	KindScript Kind = "script"
	KindStyle  Kind = "style"
	KindJSON   Kind = "json"
	KindAsset  Kind = "asset"
)

// KindOf returns the content kind implied by a file extension.
// Unknown extensions are assets.
func KindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".cjs", ".jsx", ".ts", ".mts", ".cts", ".tsx":
		return KindScript
	case ".css", ".less", ".scss", ".sass":
		return KindStyle
	case ".json":
		return KindJSON
	default:
		return KindAsset
	}
}

// LoaderFor returns the esbuild loader used to parse path, and false for
// content that is never scanned (assets).
func LoaderFor(path string) (api.Loader, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".cjs", ".jsx":
		return api.LoaderJSX, true
	case ".ts", ".mts", ".cts":
		return api.LoaderTS, true
	case ".tsx":
		return api.LoaderTSX, true
	case ".json":
		return api.LoaderJSON, true
	case ".css", ".less", ".scss", ".sass":
		return api.LoaderCSS, true
	default:
		return api.LoaderNone, false
	}
}

// Import is one import found in a module, in source order.
type Import struct {
	Specifier string `json:"specifier"`
	Kind      string `json:"kind"` // esbuild import kind, e.g. "import-statement", "url-token"
}

// CSS import kinds.
const (
	KindURLToken   = "url-token"
	KindImportRule = "import-rule"
)

// Request returns the specifier to resolve. CSS references are relative to
// the stylesheet, so a url() or @import of "bg.png" means "./bg.png"; a "~"
// prefix asks for a module lookup instead.
func (i Import) Request() string {
	if i.Kind != KindURLToken && i.Kind != KindImportRule {
		return i.Specifier
	}
	spec := i.Specifier
	switch {
	case strings.HasPrefix(spec, "~"):
		return spec[1:]
	case spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../"),
		strings.HasPrefix(spec, "/"), filepath.IsAbs(spec):
		return spec
	}
	return "./" + spec
}

type metafile struct {
	Inputs map[string]struct {
		Imports []struct {
			Path     string `json:"path"`
			Kind     string `json:"kind"`
			Original string `json:"original,omitempty"`
		} `json:"imports"`
	} `json:"inputs"`
}

// externalAll keeps esbuild from touching the filesystem: every import is
// reported back verbatim and left unresolved.
var externalAll = api.Plugin{
	Name: "towerpack-external",
	Setup: func(build api.PluginBuild) {
		build.OnResolve(api.OnResolveOptions{Filter: ".*"},
			func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				return api.OnResolveResult{Path: args.Path, External: true}, nil
			})
	},
}

// Scan returns the imports of source, which was read from path. Duplicate
// specifiers are reported once, at their first occurrence. References that
// never name a module (data: URIs, absolute URLs, fragment-only url()s) are
// skipped. Malformed source fails with *errors.ParseError.
func Scan(path string, source []byte) ([]Import, error) {
	loader, ok := LoaderFor(path)
	if !ok {
		return nil, nil
	}

	result := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   string(source),
			ResolveDir: filepath.Dir(path),
			Sourcefile: path,
			Loader:     loader,
		},
		Bundle:   true,
		Write:    false,
		Metafile: true,
		LogLevel: api.LogLevelSilent,
		Plugins:  []api.Plugin{externalAll},
	})
	if len(result.Errors) > 0 {
		return nil, &errors.ParseError{Path: path, Messages: messages(result.Errors)}
	}

	var meta metafile
	if err := json.Unmarshal([]byte(result.Metafile), &meta); err != nil {
		return nil, &errors.ParseError{Path: path, Cause: err}
	}

	var imports []Import
	seen := make(map[string]bool)
	for _, input := range meta.Inputs {
		for _, imp := range input.Imports {
			spec := imp.Path
			if imp.Original != "" {
				spec = imp.Original
			}
			if seen[spec] || !IsModuleReference(spec) {
				continue
			}
			seen[spec] = true
			imports = append(imports, Import{Specifier: spec, Kind: imp.Kind})
		}
	}
	return imports, nil
}

// IsModuleReference reports whether spec names a module on disk rather than
// an inline or remote resource.
func IsModuleReference(spec string) bool {
	switch {
	case spec == "",
		strings.HasPrefix(spec, "#"),
		strings.HasPrefix(spec, "data:"),
		strings.HasPrefix(spec, "//"),
		strings.Contains(spec, "://"):
		return false
	}
	return true
}

func messages(msgs []api.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			out = append(out, fmt.Sprintf("%d:%d: %s", m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		out = append(out, m.Text)
	}
	return out
}
