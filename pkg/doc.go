// Package pkg provides the core libraries of the towerpack asset bundler.
//
// # Overview
//
// Towerpack turns a tree of JavaScript, CSS, JSON and binary asset modules
// into a small set of content-hashed output files plus a manifest. The
// libraries are organized by build stage:
//
//  1. [resolve] - Map import specifiers to files (aliases, extensions,
//     search roots)
//  2. [deps] - Crawl the module graph from the entries on a worker pool,
//     using [scan] for import extraction and [transform] for rule chains
//  3. [chunk] - Partition the graph into entry, vendor and shared chunks
//  4. [emit] - Write chunks, assets and manifest.json
//
// [pipeline] runs the stages in order and is shared by the CLI and the
// [devserver].
//
// # Architecture
//
//	towerpack.toml ──→ [config]
//	                      ↓
//	entries ──→ [deps] ⇄ [resolve], [scan], [transform]
//	                      ↓
//	                 [dag] module graph
//	                      ↓
//	                  [chunk] plan
//	                      ↓
//	                  [emit] → dist/*.js, dist/*.css, dist/images/*, manifest.json
//
// # Quick Start
//
//	cfg, err := config.Load("towerpack.toml")
//	if err != nil {
//	    return err
//	}
//	runner := pipeline.NewRunner(cache.NewNullCache(), nil, logger)
//	res, err := runner.Build(ctx, cfg)
//	if err != nil {
//	    return err // fatal: missing entry, unreadable file, failed write
//	}
//	for _, err := range res.Errors {
//	    logger.Error(err) // per-module errors; the bundle was still written
//	}
//
// # Supporting Packages
//
// [cache] - Transform and scan results keyed by content hash, backed by
// files, an in-process LRU or Redis.
//
// [naming] - Output filename templates ([name], [id], [hash:N], [ext]).
//
// [errors] - Coded errors and the build error taxonomy (resolution, parse,
// transform, emit, config).
//
// [io] - Stats JSON export and import of the module graph.
//
// [render] - Graphviz DOT and SVG rendering of the module graph.
//
// [observability] - Hooks for build, cache and server events.
//
// [buildinfo] - Version information set at link time.
//
// [resolve]: https://pkg.go.dev/github.com/matzehuels/towerpack/pkg/resolve
// [deps]: https://pkg.go.dev/github.com/matzehuels/towerpack/pkg/deps
// [scan]: https://pkg.go.dev/github.com/matzehuels/towerpack/pkg/scan
// [transform]: https://pkg.go.dev/github.com/matzehuels/towerpack/pkg/transform
// [chunk]: https://pkg.go.dev/github.com/matzehuels/towerpack/pkg/chunk
// [emit]: https://pkg.go.dev/github.com/matzehuels/towerpack/pkg/emit
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/towerpack/pkg/pipeline
// [devserver]: https://pkg.go.dev/github.com/matzehuels/towerpack/pkg/devserver
// [config]: https://pkg.go.dev/github.com/matzehuels/towerpack/pkg/config
// [dag]: https://pkg.go.dev/github.com/matzehuels/towerpack/pkg/dag
// [cache]: https://pkg.go.dev/github.com/matzehuels/towerpack/pkg/cache
// [naming]: https://pkg.go.dev/github.com/matzehuels/towerpack/pkg/naming
// [errors]: https://pkg.go.dev/github.com/matzehuels/towerpack/pkg/errors
// [io]: https://pkg.go.dev/github.com/matzehuels/towerpack/pkg/io
// [render]: https://pkg.go.dev/github.com/matzehuels/towerpack/pkg/render
// [observability]: https://pkg.go.dev/github.com/matzehuels/towerpack/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/towerpack/pkg/buildinfo
package pkg
