package io

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/towerpack/pkg/dag"
	"github.com/matzehuels/towerpack/pkg/deps"
	"github.com/matzehuels/towerpack/pkg/scan"
)

// ReadJSON decodes stats written by [WriteJSON].
//
// ReadJSON does not check that edges reference known modules; [Stats.Graph]
// does. It does not close r.
func ReadJSON(r io.Reader) (*Stats, error) {
	var s Stats
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &s, nil
}

// ImportJSON reads a stats file at path.
func ImportJSON(path string) (*Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// Graph rebuilds the module graph described by s. Sources and outputs are
// not part of the stats and stay empty; module errors come back as plain
// errors carrying the recorded message.
//
// Graph returns an error if a module ID repeats or an edge or entry
// references an unknown module.
func (s *Stats) Graph() (*deps.Graph, error) {
	d := dag.New(nil)
	modules := make([]*deps.Module, 0, len(s.Modules))
	byID := make(map[string]*deps.Module, len(s.Modules))

	for _, m := range s.Modules {
		meta := dag.Metadata{"kind": m.Kind}
		if m.Entry != "" {
			meta["entry"] = m.Entry
		}
		if m.Error != "" {
			meta["error"] = m.Error
		}
		if err := d.AddNode(dag.Node{ID: m.ID, Meta: meta}); err != nil {
			return nil, fmt.Errorf("module %s: %w", m.ID, err)
		}
		mod := &deps.Module{
			ID:    m.ID,
			Path:  m.Path,
			Kind:  scan.Kind(m.Kind),
			Entry: m.Entry,
		}
		if m.Error != "" {
			mod.Err = stderrors.New(m.Error)
		}
		modules = append(modules, mod)
		byID[m.ID] = mod
	}

	for _, e := range s.Edges {
		from, to := byID[e.From], byID[e.To]
		err := d.AddEdge(dag.Edge{
			From: e.From,
			To:   e.To,
			Meta: dag.Metadata{dag.MetaSpecifier: e.Specifier, dag.MetaKind: e.Kind},
		})
		if err != nil {
			return nil, fmt.Errorf("edge %s->%s: %w", e.From, e.To, err)
		}
		from.Imports = append(from.Imports, deps.Import{Specifier: e.Specifier, Kind: e.Kind, Resolved: to.Path})
	}

	entries := make([]deps.EntryPoint, len(s.Entries))
	for i, e := range s.Entries {
		if byID[e.ID] == nil {
			return nil, fmt.Errorf("entry %s: unknown module %s", e.Name, e.ID)
		}
		entries[i] = deps.EntryPoint{Name: e.Name, ID: e.ID}
	}

	g := deps.NewGraph(d, modules, entries)
	for _, msg := range s.Errors {
		g.Errors = append(g.Errors, stderrors.New(msg))
	}
	return g, nil
}
