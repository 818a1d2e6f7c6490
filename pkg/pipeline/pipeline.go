// Package pipeline runs a complete towerpack build.
//
// This package wires the build stages together so the CLI and the dev server
// share one implementation:
//
//  1. Graph: resolve, scan and transform every module reachable from the
//     entries (pkg/deps drives pkg/resolve, pkg/scan and pkg/transform on a
//     bounded worker pool)
//  2. Chunk: partition the module graph into chunks (pkg/chunk)
//  3. Emit: write chunks, assets and manifest.json (pkg/emit)
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Build(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, err := range result.Errors {
//	    log.Warn(err)
//	}
//
// Fatal errors (a missing entry, an unreadable file, an unusable
// configuration, a failed write) abort Build. Per-module errors are
// collected in [Result.Errors] and the build still emits, with failing
// modules replaced by code that throws at runtime.
package pipeline

import (
	"time"

	"github.com/matzehuels/towerpack/pkg/chunk"
	"github.com/matzehuels/towerpack/pkg/config"
	"github.com/matzehuels/towerpack/pkg/deps"
	"github.com/matzehuels/towerpack/pkg/emit"
)

// Result contains the outputs of a build.
type Result struct {
	// BuildID identifies the build; it is also written to the manifest.
	BuildID string

	// Config is the resolved configuration the build ran with.
	Config *config.Config

	// Graph is the module graph.
	Graph *deps.Graph

	// Plan is the chunk partition of Graph.
	Plan *chunk.Plan

	// Manifest describes the emitted files.
	Manifest *emit.Manifest

	// Files lists every written file in write order.
	Files []emit.File

	// Errors holds non-fatal per-module errors, sorted by message.
	Errors []error

	// Warnings holds human-readable notes such as import cycles.
	Warnings []string

	// Stats contains timing and size information.
	Stats Stats
}

// Failed reports whether the build collected per-module errors.
func (r *Result) Failed() bool { return len(r.Errors) > 0 }

// Stats contains build statistics.
type Stats struct {
	Modules        int
	Edges          int
	Chunks         int
	Files          int
	Bytes          int
	ResolverHits   int64
	ResolverMisses int64
	GraphTime      time.Duration
	ChunkTime      time.Duration
	EmitTime       time.Duration
}

// Total returns the summed stage durations.
func (s Stats) Total() time.Duration { return s.GraphTime + s.ChunkTime + s.EmitTime }
