// Package deps builds the module dependency graph of a project.
//
// # Overview
//
// A build starts from one or more named entries. The [Builder] crawls every
// module reachable from them:
//
//  1. Read the source (bounded by a per-read timeout)
//  2. Scan it for import specifiers ([scan])
//  3. Resolve each specifier to a file ([resolve])
//  4. Run the module's transform chain ([transform])
//
// and assembles a [Graph]: the module table keyed by absolute path, a
// [dag.DAG] of module IDs with one edge per resolved import, the detected
// import cycles and the non-fatal errors collected along the way.
//
// # Concurrency
//
// Modules are processed by a bounded pool of workers. A single collector
// goroutine owns the module table: it creates each module the first time it
// is referenced and queues it exactly once, so a module imported from many
// places is read and transformed once. Workers only fill in the module they
// were handed and pass it back.
//
// The DAG is assembled by the collector after the crawl settles, walking
// entries in declaration order and imports in source order, so node order
// does not depend on worker scheduling.
//
// # Errors
//
//   - A module that cannot be read is fatal ([errors.ResolutionError]).
//   - An entry that cannot be resolved or parsed is fatal.
//   - A non-entry module that fails to parse is kept with its error and its
//     imports are not followed.
//   - An import that cannot be resolved is recorded; the importer is kept.
//   - A transform failure is recorded on the module; siblings continue.
//
// Non-fatal errors are returned in [Graph.Errors]. Cycles are not errors;
// they are reported in [Graph.Cycles].
//
// [scan]: github.com/matzehuels/towerpack/pkg/scan
// [resolve]: github.com/matzehuels/towerpack/pkg/resolve
// [transform]: github.com/matzehuels/towerpack/pkg/transform
// [dag.DAG]: github.com/matzehuels/towerpack/pkg/dag.DAG
// [errors.ResolutionError]: github.com/matzehuels/towerpack/pkg/errors.ResolutionError
package deps
