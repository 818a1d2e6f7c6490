// Package io provides JSON import and export of build stats.
//
// # Overview
//
// A stats file records the module graph of one build together with its
// chunk plan and emitted file names. It serves:
//
//   - `towerpack build --stats`, for bundle analysis in external tools
//   - `towerpack graph --stats` and `towerpack inspect --stats`, which
//     render or browse a previous build without crawling the sources again
//
// # JSON Format
//
//	{
//	  "buildId": "4f0c…",
//	  "mode": "production",
//	  "entries": [{"name": "main", "id": "src/index.js"}],
//	  "modules": [
//	    {"id": "src/index.js", "path": "/app/src/index.js", "kind": "script", "entry": "main", "size": 88, "outputSize": 140},
//	    {"id": "src/theme.css", "path": "/app/src/theme.css", "kind": "style", "size": 30, "outputSize": 62}
//	  ],
//	  "edges": [
//	    {"from": "src/index.js", "to": "src/theme.css", "specifier": "./theme.css", "kind": "import-statement"}
//	  ],
//	  "chunks": [
//	    {"id": 0, "name": "main", "kind": "js", "entry": "main", "file": "main.1a2b3c4d.js", "modules": ["src/index.js"]}
//	  ]
//	}
//
// Modules and edges appear in graph order, so exporting the same build twice
// produces the same file apart from the build ID.
//
// # Import
//
// [ReadJSON] and [ImportJSON] decode a stats file; [Stats.Graph] rebuilds a
// module graph from it, validating that every edge and entry references a
// recorded module. Import cycles are recomputed from the edges.
package io
