// Package resolve maps import specifiers to files on disk.
//
// Resolution follows the node convention extended with aliases and search
// roots:
//
//  1. Aliases are tried in declared order and the first match rewrites the
//     specifier. A key ending in "$" matches only the identical specifier;
//     other keys match exactly or as a path prefix ("@" matches "@/app").
//  2. Relative specifiers are joined with the importing directory, absolute
//     ones are used as-is, and bare ones are looked up under every search
//     root in order. A "node_modules" search root is tried in the importing
//     directory and each of its ancestors; other relative search roots are
//     anchored at the project root.
//  3. Each candidate base is tried unmodified, then with every configured
//     extension appended, then as a directory (package.json "main", then
//     index plus each extension).
//
// The first regular file found wins. Successful results are memoized per
// (directory, specifier) and concurrent identical lookups share one
// computation.
package resolve

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/towerpack/pkg/errors"
	"github.com/matzehuels/towerpack/pkg/observability"
)

// nodeModules is the package directory looked up in every ancestor.
const nodeModules = "node_modules"

// DefaultCacheSize is the memo size used when Options.CacheSize is zero.
const DefaultCacheSize = 8192

// Alias rewrites a specifier. Path is a filesystem path; relative paths are
// taken relative to Options.Root.
type Alias struct {
	Key  string
	Path string
}

// Options configures a Resolver. The Resolver copies every slice, so the
// options may be reused after New returns.
type Options struct {
	Root        string   // Project directory; relative alias paths are anchored here
	Aliases     []Alias  // Tried in order
	Extensions  []string // Appended in order, each including its leading dot
	SearchRoots []string // Lookup roots for bare specifiers, relative to Root
	CacheSize   int      // Memo entries (default DefaultCacheSize)
}

// Resolver resolves specifiers. It is safe for concurrent use.
type Resolver struct {
	root       string
	aliases    []Alias
	extensions []string
	roots      []string

	memo  *lru.Cache[string, string]
	group singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a Resolver.
func New(opts Options) *Resolver {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	memo, _ := lru.New[string, string](size)

	r := &Resolver{
		root:       filepath.Clean(opts.Root),
		extensions: append([]string(nil), opts.Extensions...),
		memo:       memo,
	}
	for _, a := range opts.Aliases {
		p := a.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(r.root, filepath.FromSlash(p))
		}
		r.aliases = append(r.aliases, Alias{Key: a.Key, Path: p})
	}
	for _, sr := range opts.SearchRoots {
		p := filepath.FromSlash(sr)
		if !filepath.IsAbs(p) && filepath.Base(p) != nodeModules {
			p = filepath.Join(r.root, p)
		}
		r.roots = append(r.roots, p)
	}
	return r
}

// Stats reports memo hits and misses since creation.
func (r *Resolver) Stats() (hits, misses int64) {
	return r.hits.Load(), r.misses.Load()
}

// Resolve returns the absolute path specifier refers to when imported from
// fromDir. It fails with *errors.ResolutionError listing every candidate
// tried when no file matches.
func (r *Resolver) Resolve(ctx context.Context, specifier, fromDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := fromDir + "\x00" + specifier
	if p, ok := r.memo.Get(key); ok {
		r.hits.Add(1)
		observability.Cache().OnCacheHit(ctx, "resolve")
		return p, nil
	}
	r.misses.Add(1)
	observability.Cache().OnCacheMiss(ctx, "resolve")

	v, err, _ := r.group.Do(key, func() (any, error) {
		p, err := r.resolve(specifier, fromDir)
		if err != nil {
			return "", err
		}
		r.memo.Add(key, p)
		return p, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Resolver) resolve(specifier, fromDir string) (string, error) {
	if specifier == "" {
		return "", &errors.ResolutionError{Specifier: specifier, From: fromDir, Cause: errEmptySpecifier}
	}
	spec := r.applyAlias(specifier)

	var tried []string
	for _, base := range r.bases(spec, fromDir) {
		if p, ok := r.tryBase(base, &tried); ok {
			return p, nil
		}
	}
	return "", &errors.ResolutionError{Specifier: specifier, From: fromDir, Tried: tried}
}

var errEmptySpecifier = errors.New(errors.ErrCodeResolution, "empty specifier")

// applyAlias returns the specifier rewritten by the first matching alias.
func (r *Resolver) applyAlias(spec string) string {
	for _, a := range r.aliases {
		if exact, ok := strings.CutSuffix(a.Key, "$"); ok {
			if spec == exact {
				return a.Path
			}
			continue
		}
		if spec == a.Key {
			return a.Path
		}
		if rest, ok := strings.CutPrefix(spec, a.Key+"/"); ok {
			return filepath.Join(a.Path, filepath.FromSlash(rest))
		}
	}
	return spec
}

// bases returns the candidate base paths for spec in lookup order.
func (r *Resolver) bases(spec, fromDir string) []string {
	switch {
	case isRelative(spec):
		return []string{filepath.Join(fromDir, filepath.FromSlash(spec))}
	case filepath.IsAbs(spec):
		return []string{filepath.Clean(spec)}
	}

	rel := filepath.FromSlash(spec)
	var out []string
	for _, root := range r.roots {
		if filepath.IsAbs(root) {
			out = append(out, filepath.Join(root, rel))
			continue
		}
		for dir := filepath.Clean(fromDir); ; {
			out = append(out, filepath.Join(dir, root, rel))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	return out
}

func isRelative(spec string) bool {
	return spec == "." || spec == ".." ||
		strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// tryBase tries base as a file, with extensions, and as a directory.
func (r *Resolver) tryBase(base string, tried *[]string) (string, bool) {
	if p, ok := r.tryFile(base, tried); ok {
		return p, true
	}
	if !isDir(base) {
		return "", false
	}
	if main := packageMain(base); main != "" {
		if p, ok := r.tryFile(filepath.Join(base, filepath.FromSlash(main)), tried); ok {
			return p, true
		}
	}
	for _, ext := range r.extensions {
		p := filepath.Join(base, "index"+ext)
		*tried = append(*tried, p)
		if isFile(p) {
			return p, true
		}
	}
	return "", false
}

// tryFile checks p unmodified and then p plus each extension.
func (r *Resolver) tryFile(p string, tried *[]string) (string, bool) {
	*tried = append(*tried, p)
	if isFile(p) {
		return p, true
	}
	for _, ext := range r.extensions {
		c := p + ext
		*tried = append(*tried, c)
		if isFile(c) {
			return c, true
		}
	}
	return "", false
}

// packageMain returns the "main" field of dir/package.json, or "".
// Unreadable or malformed manifests are treated as absent.
func packageMain(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}
	var pkg struct {
		Main string `json:"main"`
	}
	if json.Unmarshal(data, &pkg) != nil {
		return ""
	}
	return pkg.Main
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
