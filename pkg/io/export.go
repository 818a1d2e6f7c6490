package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/matzehuels/towerpack/pkg/chunk"
	"github.com/matzehuels/towerpack/pkg/dag"
	"github.com/matzehuels/towerpack/pkg/deps"
	"github.com/matzehuels/towerpack/pkg/emit"
)

// Stats is the serialized form of a build.
type Stats struct {
	BuildID  string   `json:"buildId,omitempty"`
	Mode     string   `json:"mode,omitempty"`
	Entries  []Entry  `json:"entries"`
	Modules  []Module `json:"modules"`
	Edges    []Edge   `json:"edges"`
	Chunks   []Chunk  `json:"chunks,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Entry is a named entry module.
type Entry struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Module is one module of the graph.
type Module struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	Kind       string `json:"kind"`
	Entry      string `json:"entry,omitempty"`
	Size       int    `json:"size"`
	OutputSize int    `json:"outputSize"`
	Asset      string `json:"asset,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Edge is one resolved import.
type Edge struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Specifier string `json:"specifier,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

// Chunk is one chunk of the plan. File is empty when nothing was emitted.
type Chunk struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Policy  string   `json:"policy,omitempty"`
	Entry   string   `json:"entry,omitempty"`
	File    string   `json:"file,omitempty"`
	Modules []string `json:"modules"`
}

// FromBuild captures g, and optionally its chunk plan and manifest. plan and
// m may be nil.
func FromBuild(g *deps.Graph, plan *chunk.Plan, m *emit.Manifest) *Stats {
	s := &Stats{
		Entries: make([]Entry, len(g.Entries)),
		Modules: make([]Module, 0, g.DAG.NodeCount()),
		Edges:   make([]Edge, 0, g.DAG.EdgeCount()),
	}
	if m != nil {
		s.BuildID, s.Mode = m.BuildID, m.Mode
	}
	for i, e := range g.Entries {
		s.Entries[i] = Entry{Name: e.Name, ID: e.ID}
	}
	for _, mod := range g.Sorted() {
		out := Module{
			ID:         mod.ID,
			Path:       mod.Path,
			Kind:       string(mod.Kind),
			Entry:      mod.Entry,
			Size:       len(mod.Source),
			OutputSize: len(mod.Output),
		}
		if mod.Asset != nil {
			out.Asset = mod.Asset.Path
		}
		if mod.Err != nil {
			out.Error = mod.Err.Error()
		}
		s.Modules = append(s.Modules, out)
	}
	for _, e := range g.DAG.Edges() {
		spec, _ := e.Meta[dag.MetaSpecifier].(string)
		kind, _ := e.Meta[dag.MetaKind].(string)
		s.Edges = append(s.Edges, Edge{From: e.From, To: e.To, Specifier: spec, Kind: kind})
	}
	for _, err := range g.Errors {
		s.Errors = append(s.Errors, err.Error())
	}
	for _, cyc := range g.Cycles {
		s.Warnings = append(s.Warnings, "import cycle: "+strings.Join(slices.Concat(cyc, cyc[:1]), " -> "))
	}
	if plan == nil {
		return s
	}
	for _, c := range plan.Chunks {
		out := Chunk{
			ID:      c.ID,
			Name:    c.Name,
			Kind:    string(c.Kind),
			Policy:  c.Policy,
			Entry:   c.Entry,
			Modules: c.Modules,
		}
		if m != nil {
			out.File = m.Chunks[c.LogicalName()]
		}
		s.Chunks = append(s.Chunks, out)
	}
	return s
}

// WriteJSON encodes s as indented JSON and writes it to w.
// The output can be re-imported with [ReadJSON].
func WriteJSON(s *Stats, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes s to a JSON file at path.
// This is a convenience wrapper around [WriteJSON] for file-based output.
func ExportJSON(s *Stats, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(s, f)
}
