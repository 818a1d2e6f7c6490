// Package emit writes a chunk plan to the output directory.
//
// Files are produced in dependency order so that every name a file embeds
// is known before the file is hashed:
//
//  1. assets produced by transform steps
//  2. css chunks, with url() references rewritten to asset URLs
//  3. js chunks that hold no entry
//  4. entry js chunks, whose runtime start call lists the files they need
//
// Names come from filename templates (see [naming]) hashed over the final
// bytes, so identical output always gets identical names. Every file is
// written to a temporary name and renamed into place. The run ends with
// manifest.json, which maps logical chunk names and entrypoints to files.
//
// [naming]: github.com/matzehuels/towerpack/pkg/naming
package emit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/towerpack/pkg/chunk"
	"github.com/matzehuels/towerpack/pkg/config"
	"github.com/matzehuels/towerpack/pkg/deps"
	"github.com/matzehuels/towerpack/pkg/errors"
	"github.com/matzehuels/towerpack/pkg/naming"
	"github.com/matzehuels/towerpack/pkg/transform"
)

// ManifestFile is the name of the manifest written to the output directory.
const ManifestFile = "manifest.json"

// Options configures an emit run.
type Options struct {
	OutDir     string // Absolute output directory
	PublicPath string // URL prefix of emitted files
	Mode       string // Recorded in the manifest
	BuildID    string // Recorded in the manifest (default: random UUID)
	Clean      bool   // Empty OutDir first

	FilenameTemplate         string // Entry js chunks
	CSSFilenameTemplate      string // Entry css chunks
	ChunkFilenameTemplate    string // Other js chunks
	CSSChunkFilenameTemplate string // Other css chunks

	Logger *log.Logger
}

// OptionsFromConfig returns the emit options described by c.
func OptionsFromConfig(c *config.Config) Options {
	return Options{
		OutDir:                   c.OutputPath(),
		PublicPath:               c.PublicPath,
		Mode:                     c.Mode,
		Clean:                    c.Clean,
		FilenameTemplate:         c.FilenameTemplate,
		CSSFilenameTemplate:      c.CSSFilenameTemplate,
		ChunkFilenameTemplate:    c.ChunkFilenameTemplate,
		CSSChunkFilenameTemplate: c.CSSChunkFilenameTemplate,
	}
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.BuildID == "" {
		opts.BuildID = uuid.NewString()
	}
	if opts.FilenameTemplate == "" {
		opts.FilenameTemplate = config.DefaultFilenameTemplate
	}
	if opts.CSSFilenameTemplate == "" {
		opts.CSSFilenameTemplate = config.DefaultCSSFilenameTemplate
	}
	if opts.ChunkFilenameTemplate == "" {
		opts.ChunkFilenameTemplate = opts.FilenameTemplate
	}
	if opts.CSSChunkFilenameTemplate == "" {
		opts.CSSChunkFilenameTemplate = config.DefaultCSSChunkFilenameTemplate
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return opts
}

// File is one written artifact.
type File struct {
	Path  string // Output-relative slash path
	Size  int
	Chunk string // Logical chunk name; empty for assets and the manifest
}

// Result lists what an emit run wrote.
type Result struct {
	Manifest *Manifest
	Files    []File
}

type emitter struct {
	g     *deps.Graph
	plan  *chunk.Plan
	opts  Options
	files map[int]string // chunk id -> output-relative path
	taken map[string]string
	res   *Result
}

// Emit writes every chunk and asset of plan, then the manifest. Any write
// failure aborts the run with *errors.EmitError.
func Emit(ctx context.Context, g *deps.Graph, plan *chunk.Plan, opts Options) (*Result, error) {
	opts = opts.WithDefaults()
	if opts.OutDir == "" {
		return nil, &errors.EmitError{Path: opts.OutDir, Cause: fmt.Errorf("no output directory")}
	}
	e := &emitter{
		g:     g,
		plan:  plan,
		opts:  opts,
		files: make(map[int]string),
		taken: make(map[string]string),
		res: &Result{Manifest: &Manifest{
			BuildID:     opts.BuildID,
			Mode:        opts.Mode,
			PublicPath:  opts.PublicPath,
			Chunks:      make(map[string]string),
			Entrypoints: make(map[string]EntryFiles),
			Assets:      make(map[string]string),
		}},
	}

	if opts.Clean {
		if err := clean(opts.OutDir); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, &errors.EmitError{Path: opts.OutDir, Cause: err}
	}

	steps := []func() error{e.assets, e.styles, e.scripts, e.entries, e.manifest}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := step(); err != nil {
			return nil, err
		}
	}
	return e.res, nil
}

func (e *emitter) assets() error {
	for _, m := range e.g.Sorted() {
		if m.Asset == nil || m.Err != nil {
			continue
		}
		if err := e.write(m.Asset.Path, m.Asset.Data, ""); err != nil {
			return err
		}
		e.res.Manifest.Assets[m.ID] = m.Asset.Path
	}
	return nil
}

func (e *emitter) styles() error {
	for _, c := range e.plan.Chunks {
		if c.Kind != chunk.KindCSS {
			continue
		}
		tmpl := e.opts.CSSChunkFilenameTemplate
		if c.IsEntry() {
			tmpl = e.opts.CSSFilenameTemplate
		}
		if err := e.writeChunk(c, tmpl, renderCSS(e.g, c.Modules)); err != nil {
			return err
		}
	}
	return nil
}

func (e *emitter) scripts() error {
	for _, c := range e.plan.Chunks {
		if c.Kind != chunk.KindJS || c.IsEntry() {
			continue
		}
		var buf bytes.Buffer
		writeDefines(&buf, e.g, c.Modules)
		if err := e.writeChunk(c, e.opts.ChunkFilenameTemplate, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// entries emits entry js chunks once every js chunk they load has a name.
// An entry chunk that loads another entry's chunk is emitted after it.
func (e *emitter) entries() error {
	var pending []*chunk.Chunk
	for _, c := range e.plan.Chunks {
		if c.Kind == chunk.KindJS && c.IsEntry() {
			pending = append(pending, c)
		}
	}

	for len(pending) > 0 {
		progressed := false
		for i, c := range pending {
			files, ready := e.dependencies(c)
			if !ready {
				continue
			}
			var buf bytes.Buffer
			buf.WriteString(runtime)
			writeDefines(&buf, e.g, c.Modules)
			writeStart(&buf, files, e.entryModule(c))
			if err := e.writeChunk(c, e.opts.FilenameTemplate, buf.Bytes()); err != nil {
				return err
			}
			pending = append(pending[:i], pending[i+1:]...)
			progressed = true
			break
		}
		if !progressed {
			return &errors.EmitError{
				Path:  e.opts.OutDir,
				Cause: fmt.Errorf("entry chunks %s load each other; add a shared chunk policy", names(pending)),
			}
		}
	}

	for _, ep := range e.plan.Entrypoints {
		var files EntryFiles
		for _, id := range ep.Chunks {
			c, _ := e.plan.Chunk(id)
			if c.Kind == chunk.KindCSS {
				files.CSS = append(files.CSS, e.files[id])
			} else {
				files.JS = append(files.JS, e.files[id])
			}
		}
		e.res.Manifest.Entrypoints[ep.Name] = files
	}
	return nil
}

// dependencies returns the public URLs of the js chunks c's entry loads
// before running, and whether all of them have been written.
func (e *emitter) dependencies(c *chunk.Chunk) ([]string, bool) {
	var files []string
	for _, ep := range e.plan.Entrypoints {
		if ep.Name != c.Entry {
			continue
		}
		for _, id := range ep.Chunks {
			dep, _ := e.plan.Chunk(id)
			if dep.ID == c.ID || dep.Kind != chunk.KindJS {
				continue
			}
			f, ok := e.files[id]
			if !ok {
				return nil, false
			}
			files = append(files, transform.PublicURL(e.opts.PublicPath, f))
		}
	}
	return files, true
}

func (e *emitter) entryModule(c *chunk.Chunk) string {
	for _, ep := range e.plan.Entrypoints {
		if ep.Name == c.Entry {
			return ep.Module
		}
	}
	return ""
}

func (e *emitter) writeChunk(c *chunk.Chunk, tmpl string, data []byte) error {
	name := naming.Expand(tmpl, naming.Vars{
		Name:    c.Name,
		ID:      strconv.Itoa(c.ID),
		Ext:     string(c.Kind),
		Content: data,
	})
	if err := e.write(name, data, c.LogicalName()); err != nil {
		return err
	}
	e.files[c.ID] = name
	e.res.Manifest.Chunks[c.LogicalName()] = name
	e.opts.Logger.Debug("emitted chunk", "chunk", c.LogicalName(), "file", name, "modules", len(c.Modules))
	return nil
}

// write stores data at the output-relative path rel. Two chunks may not
// share a file name; identical assets may.
func (e *emitter) write(rel string, data []byte, logical string) error {
	rel = path.Clean(rel)
	if owner, ok := e.taken[rel]; ok {
		if logical == "" && owner == "" {
			return nil
		}
		return &errors.EmitError{Path: rel, Cause: fmt.Errorf("file name already used by %q", owner)}
	}
	if err := errors.ValidatePath(rel); err != nil {
		return &errors.EmitError{Path: rel, Cause: err}
	}
	target := filepath.Join(e.opts.OutDir, filepath.FromSlash(rel))
	if err := writeAtomic(target, data); err != nil {
		return &errors.EmitError{Path: target, Cause: err}
	}
	e.taken[rel] = logical
	e.res.Files = append(e.res.Files, File{Path: rel, Size: len(data), Chunk: logical})
	return nil
}

func names(chunks []*chunk.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.LogicalName()
	}
	return out
}
