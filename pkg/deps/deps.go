package deps

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/towerpack/pkg/dag"
	"github.com/matzehuels/towerpack/pkg/scan"
	"github.com/matzehuels/towerpack/pkg/transform"
)

const (
	DefaultConcurrency = 16               // Default number of workers
	DefaultReadTimeout = 10 * time.Second // Default limit for one file read
)

// Options configures a Builder.
type Options struct {
	Root        string        // Project directory; entries and module IDs are relative to it
	Concurrency int           // Worker count (default: 16)
	ReadTimeout time.Duration // Per-read limit (default: 10s)
	Logger      *log.Logger   // Progress and warning output (default: discard)
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Root == "" {
		opts.Root = "."
	}
	if abs, err := filepath.Abs(opts.Root); err == nil {
		opts.Root = abs
	}
	return opts
}

// Resolver maps a specifier imported from fromDir to an absolute path.
type Resolver interface {
	Resolve(ctx context.Context, specifier, fromDir string) (string, error)
}

// Scanner extracts the ordered imports of a source file.
type Scanner interface {
	Scan(ctx context.Context, path string, source []byte) ([]scan.Import, error)
}

// Transformer runs a module's transform chain.
type Transformer interface {
	Apply(ctx context.Context, in transform.Input) (transform.Output, error)
}

// Entry is a named entry point. Path is relative to Options.Root.
type Entry struct {
	Name string
	Path string
}

// EntryPoint is an entry after resolution.
type EntryPoint struct {
	Name string
	ID   string // Module ID of the entry module
}

// Import is one import of a module.
type Import struct {
	Specifier string
	Kind      string // esbuild import kind, e.g. "require-call"
	Resolved  string // Absolute path; empty when Err is set
	Err       error
}

// Module is one file in the graph.
type Module struct {
	ID      string    // Project-relative slash path
	Path    string    // Absolute path
	Kind    scan.Kind // Content kind
	Entry   string    // Entry name when this module is an entry
	Source  []byte
	Imports []Import

	Output   []byte           // Transformed content
	Asset    *transform.Asset // File emitted by the transform chain, if any
	CommonJS bool             // Output is a CommonJS module body
	Err      error            // Parse or transform failure
}

// Failed reports whether the module could not be parsed or transformed.
func (m *Module) Failed() bool { return m.Err != nil }

// Graph is the result of a build crawl.
type Graph struct {
	DAG     *dag.DAG
	Modules map[string]*Module // By absolute path
	Entries []EntryPoint       // In declaration order
	Cycles  [][]string         // Module IDs, one path per back edge
	Errors  []error            // Non-fatal errors

	byID map[string]*Module
}

func newGraph() *Graph {
	return &Graph{
		Modules: make(map[string]*Module),
		byID:    make(map[string]*Module),
	}
}

// NewGraph assembles a Graph from parts built elsewhere, such as a graph
// read back from a stats file. Cycles are recomputed from d.
func NewGraph(d *dag.DAG, modules []*Module, entries []EntryPoint) *Graph {
	g := newGraph()
	g.DAG = d
	g.Entries = entries
	for _, m := range modules {
		g.Modules[m.Path] = m
		g.byID[m.ID] = m
	}
	g.Cycles = d.Cycles()
	return g
}

// Module returns the module with the given ID.
func (g *Graph) Module(id string) (*Module, bool) {
	m, ok := g.byID[id]
	return m, ok
}

// Sorted returns every module in DAG node order.
func (g *Graph) Sorted() []*Module {
	out := make([]*Module, 0, len(g.byID))
	for _, n := range g.DAG.Nodes() {
		out = append(out, g.byID[n.ID])
	}
	return out
}

// EntryIDs returns the entry module IDs in declaration order.
func (g *Graph) EntryIDs() []string {
	ids := make([]string, len(g.Entries))
	for i, e := range g.Entries {
		ids[i] = e.ID
	}
	return ids
}

// ModuleID returns the project-relative slash path of p, or p itself in slash
// form when it lies outside root.
func ModuleID(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}
