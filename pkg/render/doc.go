// Package render draws module graphs as node-link diagrams.
//
// # Usage
//
// Convert a graph to DOT, then render to SVG:
//
//	dot := render.ToDOT(g, render.Options{Chunks: plan})
//	svg, err := render.RenderSVG(ctx, dot)
//
// With [Options.Chunks] set, every chunk becomes a Graphviz cluster labelled
// with its logical name, so the diagram shows how the splitter partitioned
// the graph. Import cycles render as ordinary back edges.
//
// The DOT source can also be saved and processed with external Graphviz
// tools (`towerpack graph --format dot`).
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering; no Graphviz installation is required.
package render
