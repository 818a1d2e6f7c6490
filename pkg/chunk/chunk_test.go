package chunk

import (
	stderrors "errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/towerpack/pkg/config"
	"github.com/matzehuels/towerpack/pkg/dag"
	"github.com/matzehuels/towerpack/pkg/deps"
	"github.com/matzehuels/towerpack/pkg/errors"
	"github.com/matzehuels/towerpack/pkg/scan"
)

// graph builds a module graph from "from -> to" pairs. Entries are given as
// name=id.
func graph(t *testing.T, entries []string, edges ...[2]string) *deps.Graph {
	t.Helper()
	d := dag.New(nil)
	var modules []*deps.Module
	add := func(id, entry string) {
		if _, ok := d.Node(id); ok {
			return
		}
		if err := d.AddNode(dag.Node{ID: id}); err != nil {
			t.Fatal(err)
		}
		modules = append(modules, &deps.Module{ID: id, Path: "/p/" + id, Kind: scan.KindOf(id), Entry: entry})
	}

	var eps []deps.EntryPoint
	for _, e := range entries {
		name, id, _ := strings.Cut(e, "=")
		add(id, name)
		eps = append(eps, deps.EntryPoint{Name: name, ID: id})
	}
	for _, e := range edges {
		add(e[0], "")
		add(e[1], "")
		if err := d.AddEdge(dag.Edge{From: e[0], To: e[1]}); err != nil {
			t.Fatal(err)
		}
	}
	return deps.NewGraph(d, modules, eps)
}

func defaultPolicies(t *testing.T) []Policy {
	t.Helper()
	p, err := PoliciesFromConfig(config.Default().ChunkPolicies)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func summary(p *Plan) []string {
	var out []string
	for _, c := range p.Chunks {
		out = append(out, fmt.Sprintf("%d:%s%v", c.ID, c.LogicalName(), c.Modules))
	}
	return out
}

func assertPartition(t *testing.T, g *deps.Graph, p *Plan) {
	t.Helper()
	seen := make(map[string]int)
	for _, c := range p.Chunks {
		for _, id := range c.Modules {
			seen[id]++
		}
	}
	for _, m := range g.Modules {
		if seen[m.ID] != 1 {
			t.Errorf("module %s appears in %d chunks, want 1", m.ID, seen[m.ID])
		}
	}
	if len(seen) != len(g.Modules) {
		t.Errorf("chunks hold %d modules, graph has %d", len(seen), len(g.Modules))
	}
}

func TestSplitSingleEntryWithStyles(t *testing.T) {
	g := graph(t, []string{"main=src/index.js"},
		[2]string{"src/index.js", "src/utils/tool.js"},
		[2]string{"src/index.js", "src/theme.css"},
	)
	p, err := Split(g, defaultPolicies(t))
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	want := []string{
		"0:main.js[src/utils/tool.js src/index.js]",
		"1:main.css[src/theme.css]",
	}
	if got := summary(p); !slices.Equal(got, want) {
		t.Errorf("chunks = %v, want %v", got, want)
	}
	if p.Entrypoints[0].Name != "main" || !slices.Equal(p.Entrypoints[0].Chunks, []int{0, 1}) {
		t.Errorf("Entrypoints = %+v, want main [0 1]", p.Entrypoints)
	}
	assertPartition(t, g, p)
}

func TestSplitSharedModuleGoesToCommon(t *testing.T) {
	g := graph(t, []string{"a=src/a.js", "b=src/b.js"},
		[2]string{"src/a.js", "src/shared.js"},
		[2]string{"src/b.js", "src/shared.js"},
		[2]string{"src/b.js", "src/only-b.js"},
	)
	p, err := Split(g, defaultPolicies(t))
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	want := []string{
		"0:a.js[src/a.js]",
		"1:b.js[src/only-b.js src/b.js]",
		"2:common.js[src/shared.js]",
	}
	if got := summary(p); !slices.Equal(got, want) {
		t.Errorf("chunks = %v, want %v", got, want)
	}
	if c, _ := p.ChunkOf("src/shared.js"); c.Policy != "common" || c.IsEntry() {
		t.Errorf("ChunkOf(shared) = %+v, want common policy chunk", c)
	}
	if got := p.Entrypoints[0].Chunks; !slices.Equal(got, []int{2, 0}) {
		t.Errorf("entry a chunks = %v, want [2 0]", got)
	}
	if got := p.Entrypoints[1].Chunks; !slices.Equal(got, []int{2, 1}) {
		t.Errorf("entry b chunks = %v, want [2 1]", got)
	}
	assertPartition(t, g, p)
}

func TestSplitPriorities(t *testing.T) {
	g := graph(t, []string{"a=src/a.js", "b=src/b.js"},
		[2]string{"src/a.js", "node_modules/lib/index.js"},
		[2]string{"src/b.js", "node_modules/lib/index.js"},
		[2]string{"src/a.js", "src/shared.css"},
		[2]string{"src/b.js", "src/shared.css"},
		[2]string{"src/a.js", "src/own.css"},
	)
	p, err := Split(g, defaultPolicies(t))
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	tests := map[string]string{
		"node_modules/lib/index.js": "vendor.js",  // vendor (10) beats common (0)
		"src/shared.css":            "styles.css", // styles (5) beats common (0)
		"src/own.css":               "a.css",
	}
	for id, want := range tests {
		c, ok := p.ChunkOf(id)
		if !ok || c.LogicalName() != want {
			t.Errorf("ChunkOf(%s) = %v, want %s", id, c, want)
		}
	}
	assertPartition(t, g, p)
}

func TestSplitPriorityTiesKeepDeclarationOrder(t *testing.T) {
	g := graph(t, []string{"a=src/a.js", "b=src/b.js"},
		[2]string{"src/a.js", "src/x.js"},
		[2]string{"src/b.js", "src/x.js"},
	)
	policies := []Policy{
		{Name: "first", Kind: config.PolicyShared},
		{Name: "second", Kind: config.PolicyShared},
	}
	p, err := Split(g, policies)
	if err != nil {
		t.Fatal(err)
	}
	if c, _ := p.ChunkOf("src/x.js"); c.Name != "first" {
		t.Errorf("ChunkOf(x) = %s, want first", c.Name)
	}
}

func TestSplitDefaultFallback(t *testing.T) {
	g := graph(t, []string{"a=src/a.js", "b=src/b.js"},
		[2]string{"src/a.js", "src/both.js"},
		[2]string{"src/b.js", "src/both.js"},
		[2]string{"src/b.js", "src/only-b.js"},
	)
	p, err := Split(g, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c, _ := p.ChunkOf("src/both.js"); c.Entry != "a" {
		t.Errorf("ChunkOf(both) entry = %s, want a (first entry to reach it)", c.Entry)
	}
	if c, _ := p.ChunkOf("src/only-b.js"); c.Entry != "b" {
		t.Errorf("ChunkOf(only-b) entry = %s, want b", c.Entry)
	}
	// b needs a's chunk for the module it shares
	if got := p.Entrypoints[1].Chunks; !slices.Equal(got, []int{0, 1}) {
		t.Errorf("entry b chunks = %v, want [0 1]", got)
	}
}

func TestSplitDefaultPolicyShadowsLowerPriorities(t *testing.T) {
	g := graph(t, []string{"a=src/a.js", "b=src/b.js"},
		[2]string{"src/a.js", "src/keep.js"},
		[2]string{"src/b.js", "src/keep.js"},
	)
	policies := []Policy{
		{Name: "common", Kind: config.PolicyShared},
		{Name: "pin", Kind: config.PolicyDefault, Priority: 1},
	}
	p, err := Split(g, policies)
	if err != nil {
		t.Fatal(err)
	}
	if c, _ := p.ChunkOf("src/keep.js"); c.Entry != "a" {
		t.Errorf("ChunkOf(keep) = %+v, want a's chunk", c)
	}
	for _, c := range p.Chunks {
		if c.Name == "pin" {
			t.Errorf("default policy produced its own chunk %+v", c)
		}
	}
}

func TestSplitEntriesStayInEntryChunk(t *testing.T) {
	// b is an entry and also imported by a
	g := graph(t, []string{"a=src/a.js", "b=src/b.js"},
		[2]string{"src/a.js", "src/b.js"},
	)
	p, err := Split(g, defaultPolicies(t))
	if err != nil {
		t.Fatal(err)
	}
	if c, _ := p.ChunkOf("src/b.js"); c.Entry != "b" {
		t.Errorf("ChunkOf(b) = %+v, want b's entry chunk", c)
	}
}

func TestSplitCycle(t *testing.T) {
	g := graph(t, []string{"main=src/a.js"},
		[2]string{"src/a.js", "src/b.js"},
		[2]string{"src/b.js", "src/a.js"},
	)
	p, err := Split(g, defaultPolicies(t))
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Chunks[0].Modules; !slices.Equal(got, []string{"src/b.js", "src/a.js"}) {
		t.Errorf("modules = %v, want [src/b.js src/a.js]", got)
	}
	assertPartition(t, g, p)
}

func TestPoliciesFromConfigInvalidTest(t *testing.T) {
	_, err := PoliciesFromConfig([]config.ChunkPolicy{{Name: "x", Kind: config.PolicyVendor, Test: "("}})
	var ce *errors.ConfigError
	if !stderrors.As(err, &ce) || ce.Key != "chunkPolicies[0].test" {
		t.Errorf("PoliciesFromConfig() error = %v, want ConfigError for chunkPolicies[0].test", err)
	}
}
