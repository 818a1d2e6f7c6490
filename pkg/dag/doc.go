// Package dag provides the directed module graph built by the crawler.
//
// # Overview
//
// Each node is one module, identified by its project-relative path. Each
// edge is one resolved import and carries the specifier as written and the
// import kind in its [Metadata]. The structure keeps insertion order for both
// nodes and adjacency lists, so every traversal is reproducible across runs.
//
// # Basic Usage
//
//	g := dag.New(nil)
//	g.AddNode(dag.Node{ID: "src/index.js"})
//	g.AddNode(dag.Node{ID: "src/utils/tool.js"})
//	g.AddEdge(dag.Edge{From: "src/index.js", To: "src/utils/tool.js"})
//
// Query the graph structure with [DAG.Children], [DAG.Parents],
// [DAG.Reachable] and [DAG.PostOrder].
//
// # Cycles
//
// Unlike a textbook DAG, an import graph may contain cycles. [DAG.Cycles]
// reports each one as a node path using depth-first search with
// white/gray/black coloring; [DAG.Validate] reports only whether any exist.
//
// # Concurrency
//
// DAG instances are not safe for concurrent use. The crawler confines all
// mutation to a single collector goroutine.
package dag
