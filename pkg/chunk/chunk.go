// Package chunk partitions a module graph into output chunks.
//
// Every module is assigned to exactly one logical group:
//
//   - An entry module stays in its entry's group.
//   - Other modules are offered to the policies in priority order (highest
//     first, declaration order on ties). A vendor policy claims modules whose
//     path matches its test; a shared policy claims modules reachable from at
//     least MinChunks entries (and matching its test, if set); a default
//     policy sends matching modules to the fallback below.
//   - Unclaimed modules join the group of the first entry, in declaration
//     order, that reaches them.
//
// Each group is then split by content: style modules form a css chunk and
// everything else a js chunk. Empty chunks are dropped. Modules within a
// chunk are ordered dependencies first.
package chunk

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/matzehuels/towerpack/pkg/config"
	"github.com/matzehuels/towerpack/pkg/deps"
	"github.com/matzehuels/towerpack/pkg/errors"
	"github.com/matzehuels/towerpack/pkg/scan"
)

// Kind is the content type of a chunk.
type Kind string

// Chunk kinds.
const (
	KindJS  Kind = "js"
	KindCSS Kind = "css"
)

// DefaultMinChunks is the shared policy threshold when MinChunks is unset.
const DefaultMinChunks = 2

// Policy assigns modules to a named chunk.
type Policy struct {
	Name      string
	Kind      string // config.PolicyVendor, config.PolicyShared or config.PolicyDefault
	Test      *regexp.Regexp
	MinChunks int
	Priority  int
}

// PoliciesFromConfig compiles configured policies.
func PoliciesFromConfig(cps []config.ChunkPolicy) ([]Policy, error) {
	out := make([]Policy, 0, len(cps))
	for i, cp := range cps {
		p := Policy{Name: cp.Name, Kind: cp.Kind, MinChunks: cp.MinChunks, Priority: cp.Priority}
		if cp.Test != "" {
			re, err := regexp.Compile(cp.Test)
			if err != nil {
				return nil, errors.Configf(fmt.Sprintf("chunkPolicies[%d].test", i), "%v", err)
			}
			p.Test = re
		}
		out = append(out, p)
	}
	return out, nil
}

// Chunk is one output bundle.
type Chunk struct {
	ID      int
	Name    string   // Logical name: entry or policy name
	Kind    Kind     // js or css
	Policy  string   // Policy name, empty for entry groups
	Entry   string   // Entry name, empty for policy groups
	Modules []string // Module IDs, dependencies first
}

// LogicalName returns the manifest key of the chunk, e.g. "main.js".
func (c *Chunk) LogicalName() string { return c.Name + "." + string(c.Kind) }

// IsEntry reports whether the chunk belongs to an entry group.
func (c *Chunk) IsEntry() bool { return c.Entry != "" }

// Entrypoint lists the chunks an entry needs, in load order: shared chunks
// by ascending id, then the entry's own chunks.
type Entrypoint struct {
	Name   string
	Module string // Entry module ID
	Chunks []int
}

// Plan is the result of Split.
type Plan struct {
	Chunks      []*Chunk
	Entrypoints []Entrypoint

	byModule map[string]*Chunk
}

// ChunkOf returns the chunk holding the module with the given ID.
func (p *Plan) ChunkOf(moduleID string) (*Chunk, bool) {
	c, ok := p.byModule[moduleID]
	return c, ok
}

// Chunk returns the chunk with the given id.
func (p *Plan) Chunk(id int) (*Chunk, bool) {
	if id < 0 || id >= len(p.Chunks) {
		return nil, false
	}
	return p.Chunks[id], true
}

// Split assigns every module of g to exactly one chunk.
func Split(g *deps.Graph, policies []Policy) (*Plan, error) {
	sorted := slices.Clone(policies)
	slices.SortStableFunc(sorted, func(a, b Policy) int { return b.Priority - a.Priority })

	entries := g.EntryIDs()
	reachers := make(map[string][]int) // module ID -> indexes of entries reaching it
	for i, e := range entries {
		for _, id := range g.DAG.Reachable(e) {
			reachers[id] = append(reachers[id], i)
		}
	}

	// a group is an entry's own chunk set or a policy's
	type group struct {
		name   string
		policy string
		entry  string
	}
	assign := make(map[string]group, len(g.Modules))
	for _, e := range g.Entries {
		assign[e.ID] = group{name: e.Name, entry: e.Name}
	}

	for _, m := range g.Sorted() {
		if _, ok := assign[m.ID]; ok {
			continue
		}
		fallback := g.Entries[reachers[m.ID][0]]
		grp := group{name: fallback.Name, entry: fallback.Name}
		for _, p := range sorted {
			if claims(p, m, len(reachers[m.ID])) {
				if p.Kind != config.PolicyDefault {
					grp = group{name: p.Name, policy: p.Name}
				}
				break
			}
		}
		assign[m.ID] = grp
	}

	// group order: entries in declaration order, then policies in priority order
	var order []group
	seen := make(map[group]bool)
	for _, e := range g.Entries {
		grp := group{name: e.Name, entry: e.Name}
		order = append(order, grp)
		seen[grp] = true
	}
	for _, p := range sorted {
		grp := group{name: p.Name, policy: p.Name}
		if p.Kind != config.PolicyDefault && !seen[grp] {
			order = append(order, grp)
			seen[grp] = true
		}
	}

	members := make(map[group]map[Kind][]string)
	for _, id := range g.DAG.PostOrder(entries...) {
		m, _ := g.Module(id)
		grp := assign[id]
		if members[grp] == nil {
			members[grp] = make(map[Kind][]string)
		}
		k := KindJS
		if m.Kind == scan.KindStyle {
			k = KindCSS
		}
		members[grp][k] = append(members[grp][k], id)
	}

	plan := &Plan{byModule: make(map[string]*Chunk, len(g.Modules))}
	for _, grp := range order {
		for _, k := range []Kind{KindJS, KindCSS} {
			ids := members[grp][k]
			if len(ids) == 0 {
				continue
			}
			c := &Chunk{
				ID:      len(plan.Chunks),
				Name:    grp.name,
				Kind:    k,
				Policy:  grp.policy,
				Entry:   grp.entry,
				Modules: ids,
			}
			plan.Chunks = append(plan.Chunks, c)
			for _, id := range ids {
				plan.byModule[id] = c
			}
		}
	}

	if err := plan.check(g); err != nil {
		return nil, err
	}

	for _, e := range g.Entries {
		plan.Entrypoints = append(plan.Entrypoints, plan.entrypoint(g, e))
	}
	return plan, nil
}

// claims reports whether p takes module m, which n entries reach.
func claims(p Policy, m *deps.Module, n int) bool {
	matches := p.Test == nil || p.Test.MatchString(m.Path)
	switch p.Kind {
	case config.PolicyVendor:
		return p.Test != nil && matches
	case config.PolicyShared:
		threshold := p.MinChunks
		if threshold <= 0 {
			threshold = DefaultMinChunks
		}
		return n >= threshold && matches
	case config.PolicyDefault:
		return matches
	}
	return false
}

// check verifies that the chunks partition the graph's modules.
func (p *Plan) check(g *deps.Graph) error {
	count := 0
	for _, c := range p.Chunks {
		count += len(c.Modules)
	}
	if count != len(g.Modules) || len(p.byModule) != len(g.Modules) {
		return errors.New(errors.ErrCodeInternal,
			"chunk plan covers %d placements of %d distinct modules, graph has %d",
			count, len(p.byModule), len(g.Modules))
	}
	return nil
}

func (p *Plan) entrypoint(g *deps.Graph, e deps.EntryPoint) Entrypoint {
	needed := make(map[int]bool)
	for _, id := range g.DAG.Reachable(e.ID) {
		needed[p.byModule[id].ID] = true
	}

	ep := Entrypoint{Name: e.Name, Module: e.ID}
	var own []int
	for _, c := range p.Chunks {
		if !needed[c.ID] {
			continue
		}
		if c.Entry == e.Name {
			own = append(own, c.ID)
			continue
		}
		ep.Chunks = append(ep.Chunks, c.ID)
	}
	ep.Chunks = append(ep.Chunks, own...)
	return ep
}
