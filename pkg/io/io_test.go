package io

import (
	"bytes"
	stderrors "errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/towerpack/pkg/chunk"
	"github.com/matzehuels/towerpack/pkg/dag"
	"github.com/matzehuels/towerpack/pkg/deps"
	"github.com/matzehuels/towerpack/pkg/emit"
	"github.com/matzehuels/towerpack/pkg/scan"
	"github.com/matzehuels/towerpack/pkg/transform"
)

func sample(t *testing.T) (*deps.Graph, *chunk.Plan, *emit.Manifest) {
	t.Helper()
	d := dag.New(nil)
	for _, id := range []string{"src/a.js", "src/b.js", "src/logo.png"} {
		if err := d.AddNode(dag.Node{ID: id}); err != nil {
			t.Fatal(err)
		}
	}
	edges := [][3]string{
		{"src/a.js", "src/b.js", "./b"},
		{"src/b.js", "src/a.js", "./a"},
		{"src/a.js", "src/logo.png", "./logo.png"},
	}
	modules := map[string]*deps.Module{
		"src/a.js":     {ID: "src/a.js", Path: "/app/src/a.js", Kind: scan.KindScript, Entry: "main", Source: []byte("abc")},
		"src/b.js":     {ID: "src/b.js", Path: "/app/src/b.js", Kind: scan.KindScript, Err: stderrors.New("parse /app/src/b.js: boom")},
		"src/logo.png": {ID: "src/logo.png", Path: "/app/src/logo.png", Kind: scan.KindAsset, Asset: &transform.Asset{Path: "images/logo.png"}},
	}
	for _, e := range edges {
		if err := d.AddEdge(dag.Edge{From: e[0], To: e[1], Meta: dag.Metadata{dag.MetaSpecifier: e[2], dag.MetaKind: "import-statement"}}); err != nil {
			t.Fatal(err)
		}
		modules[e[0]].Imports = append(modules[e[0]].Imports, deps.Import{Specifier: e[2], Resolved: modules[e[1]].Path})
	}
	g := deps.NewGraph(d, []*deps.Module{modules["src/a.js"], modules["src/b.js"], modules["src/logo.png"]},
		[]deps.EntryPoint{{Name: "main", ID: "src/a.js"}})
	g.Errors = []error{modules["src/b.js"].Err}

	plan, err := chunk.Split(g, nil)
	if err != nil {
		t.Fatal(err)
	}
	m := &emit.Manifest{BuildID: "b1", Mode: "production", Chunks: map[string]string{"main.js": "main.0011aabb.js"}}
	return g, plan, m
}

func TestFromBuild(t *testing.T) {
	s := FromBuild(sample(t))

	if s.BuildID != "b1" || s.Mode != "production" {
		t.Errorf("BuildID, Mode = %q, %q", s.BuildID, s.Mode)
	}
	var ids []string
	for _, m := range s.Modules {
		ids = append(ids, m.ID)
	}
	if want := []string{"src/a.js", "src/b.js", "src/logo.png"}; !slices.Equal(ids, want) {
		t.Errorf("modules = %v, want %v", ids, want)
	}
	if s.Modules[0].Size != 3 || s.Modules[0].Entry != "main" {
		t.Errorf("module a = %+v", s.Modules[0])
	}
	if s.Modules[2].Asset != "images/logo.png" {
		t.Errorf("logo asset = %q", s.Modules[2].Asset)
	}
	if len(s.Edges) != 3 || s.Edges[0].Specifier != "./b" {
		t.Errorf("edges = %+v", s.Edges)
	}
	if want := []string{"import cycle: src/a.js -> src/b.js -> src/a.js"}; !slices.Equal(s.Warnings, want) {
		t.Errorf("Warnings = %v, want %v", s.Warnings, want)
	}
	if len(s.Chunks) != 1 || s.Chunks[0].File != "main.0011aabb.js" {
		t.Errorf("Chunks = %+v", s.Chunks)
	}
}

func TestRoundTrip(t *testing.T) {
	g, plan, m := sample(t)
	var buf bytes.Buffer
	if err := WriteJSON(FromBuild(g, plan, m), &buf); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	s, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	back, err := s.Graph()
	if err != nil {
		t.Fatalf("Graph() error = %v", err)
	}

	if back.DAG.NodeCount() != 3 || back.DAG.EdgeCount() != 3 {
		t.Errorf("nodes, edges = %d, %d, want 3, 3", back.DAG.NodeCount(), back.DAG.EdgeCount())
	}
	if len(back.Cycles) != 1 {
		t.Errorf("Cycles = %v, want one cycle", back.Cycles)
	}
	b, ok := back.Module("src/b.js")
	if !ok || !b.Failed() || !strings.Contains(b.Err.Error(), "boom") {
		t.Errorf("module b = %+v", b)
	}
	a, _ := back.Module("src/a.js")
	if len(a.Imports) != 2 || a.Imports[0].Resolved != "/app/src/b.js" {
		t.Errorf("a.Imports = %+v", a.Imports)
	}
	if !slices.Equal(back.EntryIDs(), []string{"src/a.js"}) {
		t.Errorf("EntryIDs() = %v", back.EntryIDs())
	}

	// the rebuilt graph splits like the original
	p2, err := chunk.Split(back, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(p2.Chunks[0].Modules, plan.Chunks[0].Modules) {
		t.Errorf("modules = %v, want %v", p2.Chunks[0].Modules, plan.Chunks[0].Modules)
	}
}

func TestGraphRejectsUnknownReferences(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"edge", `{"modules":[{"id":"a"}],"edges":[{"from":"a","to":"b"}]}`},
		{"entry", `{"entries":[{"name":"main","id":"x"}],"modules":[{"id":"a"}]}`},
		{"duplicate", `{"modules":[{"id":"a"},{"id":"a"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ReadJSON(strings.NewReader(tt.json))
			if err != nil {
				t.Fatal(err)
			}
			if _, err := s.Graph(); err == nil {
				t.Error("Graph() succeeded, want error")
			}
		})
	}
}

func TestExportImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	g, plan, m := sample(t)
	if err := ExportJSON(FromBuild(g, plan, m), path); err != nil {
		t.Fatalf("ExportJSON() error = %v", err)
	}
	s, err := ImportJSON(path)
	if err != nil {
		t.Fatalf("ImportJSON() error = %v", err)
	}
	if len(s.Modules) != 3 {
		t.Errorf("modules = %d, want 3", len(s.Modules))
	}
	if _, err := ImportJSON(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("ImportJSON(missing) succeeded")
	}
}

func TestReadJSONMalformed(t *testing.T) {
	if _, err := ReadJSON(strings.NewReader("{not json")); err == nil {
		t.Error("ReadJSON() succeeded on malformed input")
	}
}
