package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/towerpack/pkg/chunk"
	"github.com/matzehuels/towerpack/pkg/dag"
	"github.com/matzehuels/towerpack/pkg/deps"
	"github.com/matzehuels/towerpack/pkg/scan"
)

// Options configures graph rendering.
type Options struct {
	// Chunks groups modules into one cluster per chunk when set.
	Chunks *chunk.Plan

	// Detailed adds the module kind and sizes to node labels and the
	// import specifier to edge labels.
	Detailed bool
}

var kindColors = map[scan.Kind]string{
	scan.KindScript: "#fff4c2",
	scan.KindStyle:  "#d6ecff",
	scan.KindJSON:   "#e4f5dc",
	scan.KindAsset:  "#f0e6ff",
}

// ToDOT converts a module graph to Graphviz DOT format.
// The resulting DOT string can be rendered using [RenderSVG].
//
// Entry modules are drawn bold and failed modules red. Nodes are filled by
// content kind.
func ToDOT(g *deps.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\", fontsize=12];\n")
	buf.WriteString("  edge [color=\"#777777\", fontsize=10];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.25;\n")
	buf.WriteString("\n")

	if opts.Chunks == nil {
		for _, m := range g.Sorted() {
			fmt.Fprintf(&buf, "  %q [%s];\n", m.ID, strings.Join(fmtAttrs(m, opts.Detailed), ", "))
		}
	} else {
		for _, c := range opts.Chunks.Chunks {
			fmt.Fprintf(&buf, "  subgraph cluster_%d {\n", c.ID)
			fmt.Fprintf(&buf, "    label=%q;\n", c.LogicalName())
			buf.WriteString("    style=\"rounded,dashed\";\n")
			buf.WriteString("    color=\"#999999\";\n")
			for _, id := range c.Modules {
				m, _ := g.Module(id)
				fmt.Fprintf(&buf, "    %q [%s];\n", m.ID, strings.Join(fmtAttrs(m, opts.Detailed), ", "))
			}
			buf.WriteString("  }\n")
		}
	}

	buf.WriteString("\n")
	for _, e := range g.DAG.Edges() {
		if spec, ok := e.Meta[dag.MetaSpecifier].(string); ok && opts.Detailed && spec != "" {
			fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", e.From, e.To, spec)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(m *deps.Module, detailed bool) string {
	if !detailed {
		return m.ID
	}
	parts := []string{m.ID, "kind: " + string(m.Kind)}
	if m.Entry != "" {
		parts = append(parts, "entry: "+m.Entry)
	}
	if len(m.Source) > 0 {
		parts = append(parts, fmt.Sprintf("size: %d → %d", len(m.Source), len(m.Output)))
	}
	if m.Err != nil {
		parts = append(parts, "error: "+m.Err.Error())
	}
	return strings.Join(parts, "\n")
}

func fmtAttrs(m *deps.Module, detailed bool) []string {
	attrs := []string{fmt.Sprintf("label=%q", fmtLabel(m, detailed))}
	if c, ok := kindColors[m.Kind]; ok {
		attrs = append(attrs, fmt.Sprintf("fillcolor=%q", c))
	}
	if m.Entry != "" {
		attrs = append(attrs, "penwidth=2", "fontname=\"Helvetica-Bold\"")
	}
	if m.Failed() {
		attrs = append(attrs, "color=\"#d62728\"", "fontcolor=\"#d62728\"")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces the root element so the SVG scales with its
// container.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}
