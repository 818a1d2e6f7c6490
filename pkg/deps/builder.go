package deps

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/matzehuels/towerpack/pkg/dag"
	"github.com/matzehuels/towerpack/pkg/errors"
	"github.com/matzehuels/towerpack/pkg/observability"
	"github.com/matzehuels/towerpack/pkg/scan"
	"github.com/matzehuels/towerpack/pkg/transform"
)

// Builder crawls a project into a Graph.
type Builder struct {
	resolver    Resolver
	scanner     Scanner
	transformer Transformer
	opts        Options
}

// NewBuilder creates a Builder. A nil scanner selects an uncached
// scan.Scanner and a nil transformer passes sources through unchanged.
func NewBuilder(r Resolver, s Scanner, t Transformer, opts Options) *Builder {
	if s == nil {
		s = scan.NewScanner(nil, nil)
	}
	if t == nil {
		t = passthrough{}
	}
	return &Builder{resolver: r, scanner: s, transformer: t, opts: opts.WithDefaults()}
}

type passthrough struct{}

func (passthrough) Apply(_ context.Context, in transform.Input) (transform.Output, error) {
	return transform.Output{Code: in.Source}, nil
}

// Build crawls every module reachable from entries. A build is not
// re-entrant; callers serialize concurrent builds of one project.
func (b *Builder) Build(ctx context.Context, entries []Entry) (*Graph, error) {
	if len(entries) == 0 {
		return nil, errors.Configf("entry", "at least one entry is required")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := &crawler{
		ctx:     ctx,
		b:       b,
		g:       newGraph(),
		jobs:    make(chan *Module),
		results: make(chan result, b.opts.Concurrency),
	}
	for range b.opts.Concurrency {
		c.wg.Add(1)
		go c.worker()
	}

	err := c.run(entries)
	cancel()
	close(c.jobs)
	c.wg.Wait()
	if err != nil {
		return nil, err
	}

	c.finalize()
	b.opts.Logger.Debug("built module graph",
		"modules", c.g.DAG.NodeCount(),
		"edges", c.g.DAG.EdgeCount(),
		"cycles", len(c.g.Cycles),
		"errors", len(c.g.Errors))
	return c.g, nil
}

type crawler struct {
	ctx context.Context
	b   *Builder
	g   *Graph

	jobs    chan *Module
	results chan result
	wg      sync.WaitGroup

	// owned by the collector
	queue   []*Module
	pending int
}

type result struct {
	mod   *Module
	fatal error
}

func (c *crawler) run(entries []Entry) error {
	for _, e := range entries {
		path, err := c.b.resolver.Resolve(c.ctx, entrySpecifier(e.Path), c.b.opts.Root)
		if err != nil {
			return err
		}
		if m, ok := c.g.Modules[path]; ok {
			return errors.Configf("entry", "entries %q and %q both resolve to %s", m.Entry, e.Name, m.ID)
		}
		m := c.discover(path, e.Name)
		c.g.Entries = append(c.g.Entries, EntryPoint{Name: e.Name, ID: m.ID})
	}
	return c.collect()
}

// entrySpecifier makes a project-relative entry path explicit so that it is
// not looked up under the search roots.
func entrySpecifier(p string) string {
	if filepath.IsAbs(p) || strings.HasPrefix(p, "./") || strings.HasPrefix(p, "../") {
		return p
	}
	return "./" + p
}

func (c *crawler) collect() error {
	for c.pending > 0 {
		var jobs chan<- *Module
		var next *Module
		if len(c.queue) > 0 {
			jobs, next = c.jobs, c.queue[0]
		}
		select {
		case jobs <- next:
			c.queue = c.queue[1:]
		case r := <-c.results:
			c.pending--
			if err := c.handle(r); err != nil {
				return err
			}
		case <-c.ctx.Done():
			return c.ctx.Err()
		}
	}
	return nil
}

func (c *crawler) worker() {
	defer c.wg.Done()
	for m := range c.jobs {
		r := result{mod: m, fatal: c.process(m)}
		select {
		case c.results <- r:
		case <-c.ctx.Done():
			return
		}
	}
}

// process fills in m. Only unrecoverable failures are returned; parse and
// transform errors are left on m.Err for the collector.
func (c *crawler) process(m *Module) error {
	src, err := readFile(c.ctx, m.Path, c.b.opts)
	if err != nil {
		if c.ctx.Err() != nil {
			return c.ctx.Err()
		}
		return &errors.ResolutionError{Specifier: m.ID, From: filepath.Dir(m.Path), Cause: err}
	}
	m.Source = src

	imports, err := c.b.scanner.Scan(c.ctx, m.Path, src)
	if err != nil {
		m.Err = err
		return nil
	}

	dir := filepath.Dir(m.Path)
	for _, imp := range imports {
		resolved, err := c.b.resolver.Resolve(c.ctx, imp.Request(), dir)
		if err != nil && c.ctx.Err() != nil {
			return c.ctx.Err()
		}
		m.Imports = append(m.Imports, Import{
			Specifier: imp.Specifier,
			Kind:      imp.Kind,
			Resolved:  resolved,
			Err:       err,
		})
	}

	out, err := c.b.transformer.Apply(c.ctx, transform.Input{Path: m.Path, ID: m.ID, Kind: m.Kind, Source: src})
	if err != nil {
		if c.ctx.Err() != nil {
			return c.ctx.Err()
		}
		m.Err = err
		return nil
	}
	m.Output, m.Asset, m.CommonJS = out.Code, out.Asset, out.CommonJS
	return nil
}

func (c *crawler) handle(r result) error {
	if r.fatal != nil {
		return r.fatal
	}
	m := r.mod

	if m.Err != nil {
		var pe *errors.ParseError
		if stderrors.As(m.Err, &pe) && m.Entry != "" {
			return m.Err
		}
		c.record(m, m.Err)
	}
	for _, imp := range m.Imports {
		if imp.Err != nil {
			c.record(m, imp.Err)
			continue
		}
		c.discover(imp.Resolved, "")
	}
	return nil
}

func (c *crawler) record(m *Module, err error) {
	c.g.Errors = append(c.g.Errors, err)
	observability.Pipeline().OnModuleError(c.ctx, m.ID, err)
	c.b.opts.Logger.Warn("module error", "module", m.ID, "error", err)
}

// discover returns the module at path, creating and queueing it on first
// reference.
func (c *crawler) discover(path, entry string) *Module {
	if m, ok := c.g.Modules[path]; ok {
		return m
	}
	m := &Module{
		ID:    ModuleID(c.b.opts.Root, path),
		Path:  path,
		Kind:  scan.KindOf(path),
		Entry: entry,
	}
	c.g.Modules[path] = m
	c.g.byID[m.ID] = m
	c.queue = append(c.queue, m)
	c.pending++
	return m
}

// finalize assembles the DAG breadth-first from the entries, then records
// cycles and sorts errors so that the result is reproducible.
func (c *crawler) finalize() {
	g := c.g
	d := dag.New(nil)

	order := g.EntryIDs()
	seen := make(map[string]bool, len(g.Modules))
	for _, id := range order {
		seen[id] = true
	}
	for i := 0; i < len(order); i++ {
		m := g.byID[order[i]]
		meta := dag.Metadata{"kind": string(m.Kind)}
		if m.Entry != "" {
			meta["entry"] = m.Entry
		}
		if m.Err != nil {
			meta["error"] = m.Err.Error()
		}
		_ = d.AddNode(dag.Node{ID: m.ID, Meta: meta})

		for _, imp := range m.Imports {
			if imp.Err != nil {
				continue
			}
			if t := g.Modules[imp.Resolved]; !seen[t.ID] {
				seen[t.ID] = true
				order = append(order, t.ID)
			}
		}
	}
	for _, id := range order {
		m := g.byID[id]
		for _, imp := range m.Imports {
			if imp.Err != nil {
				continue
			}
			_ = d.AddEdge(dag.Edge{
				From: m.ID,
				To:   g.Modules[imp.Resolved].ID,
				Meta: dag.Metadata{dag.MetaSpecifier: imp.Specifier, dag.MetaKind: imp.Kind},
			})
		}
	}

	g.DAG = d
	g.Cycles = d.Cycles()
	for _, cyc := range g.Cycles {
		c.b.opts.Logger.Warn("import cycle", "modules", strings.Join(slices.Concat(cyc, cyc[:1]), " -> "))
	}
	slices.SortStableFunc(g.Errors, func(a, b error) int {
		return strings.Compare(a.Error(), b.Error())
	})
}

// osReadFile is the blocking read run under readFile's timeout.
var osReadFile = os.ReadFile

// readFile reads path, giving up after opts.ReadTimeout.
func readFile(ctx context.Context, path string, opts Options) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.ReadTimeout)
	defer cancel()

	type read struct {
		data []byte
		err  error
	}
	ch := make(chan read, 1)
	go func() {
		data, err := osReadFile(path)
		ch <- read{data, err}
	}()
	select {
	case r := <-ch:
		return r.data, r.err
	case <-ctx.Done():
		return nil, errors.Wrap(errors.ErrCodeTimeout, ctx.Err(), "read %s: no data after %s", path, opts.ReadTimeout)
	}
}
