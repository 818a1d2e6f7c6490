package pipeline

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/towerpack/pkg/cache"
	"github.com/matzehuels/towerpack/pkg/chunk"
	"github.com/matzehuels/towerpack/pkg/config"
	"github.com/matzehuels/towerpack/pkg/deps"
	"github.com/matzehuels/towerpack/pkg/emit"
	"github.com/matzehuels/towerpack/pkg/observability"
	"github.com/matzehuels/towerpack/pkg/resolve"
	"github.com/matzehuels/towerpack/pkg/scan"
	"github.com/matzehuels/towerpack/pkg/transform"
)

// Runner executes builds with a shared cache.
//
// Builds are serialized: a Runner runs at most one build at a time, and
// concurrent callers wait their turn. The Runner keeps no build results;
// only the cache carries state from one build to the next.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	mu sync.Mutex
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
// If logger is nil, output is discarded.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Build runs the graph, chunk and emit stages for cfg. cfg is not modified.
func (r *Runner) Build(ctx context.Context, cfg *config.Config) (res *Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, err = prepare(cfg)
	if err != nil {
		return nil, err
	}

	buildID := uuid.NewString()
	start := time.Now()
	hooks := observability.Pipeline()
	hooks.OnBuildStart(ctx, buildID, len(cfg.Entry))
	defer func() { hooks.OnBuildComplete(ctx, buildID, time.Since(start), err) }()

	res, err = r.plan(ctx, cfg, buildID)
	if err != nil {
		return nil, err
	}

	// Stage 3: Emit
	stageStart := time.Now()
	hooks.OnStageStart(ctx, observability.StageEmit)
	opts := emit.OptionsFromConfig(cfg)
	opts.BuildID = buildID
	opts.Logger = r.Logger
	out, err := emit.Emit(ctx, res.Graph, res.Plan, opts)
	res.Stats.EmitTime = time.Since(stageStart)
	if err != nil {
		hooks.OnStageComplete(ctx, observability.StageEmit, 0, res.Stats.EmitTime, err)
		return nil, fmt.Errorf("emit: %w", err)
	}
	hooks.OnStageComplete(ctx, observability.StageEmit, len(out.Files), res.Stats.EmitTime, nil)
	res.Manifest = out.Manifest
	res.Files = out.Files
	res.Stats.Files = len(out.Files)
	for _, f := range out.Files {
		res.Stats.Bytes += f.Size
	}

	r.Logger.Info("emitted files",
		"files", res.Stats.Files,
		"bytes", res.Stats.Bytes,
		"dir", opts.OutDir,
		"duration", res.Stats.EmitTime)

	return res, nil
}

// Plan runs the graph and chunk stages for cfg without writing any output.
// The returned Result has no Manifest or Files.
func (r *Runner) Plan(ctx context.Context, cfg *config.Config) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, err := prepare(cfg)
	if err != nil {
		return nil, err
	}
	return r.plan(ctx, cfg, uuid.NewString())
}

func prepare(cfg *config.Config) (*config.Config, error) {
	cfg = cfg.Clone().WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *Runner) plan(ctx context.Context, cfg *config.Config, buildID string) (*Result, error) {
	hooks := observability.Pipeline()
	transformer, err := transform.New(cfg.TransformRules, transform.EnvFromConfig(cfg), r.Cache, r.Keyer)
	if err != nil {
		return nil, err
	}
	policies, err := chunk.PoliciesFromConfig(cfg.ChunkPolicies)
	if err != nil {
		return nil, err
	}
	resolver := NewResolver(cfg)

	res := &Result{BuildID: buildID, Config: cfg}
	r.Logger.Debug("starting build", "build", buildID, "mode", cfg.Mode, "root", cfg.Root())

	// Stage 1: Graph
	stageStart := time.Now()
	hooks.OnStageStart(ctx, observability.StageGraph)
	builder := deps.NewBuilder(resolver, scan.NewScanner(r.Cache, r.Keyer), transformer, deps.Options{
		Root:        cfg.Root(),
		Concurrency: cfg.Concurrency,
		ReadTimeout: cfg.ReadTimeoutDuration(),
		Logger:      r.Logger,
	})
	g, err := builder.Build(ctx, entries(cfg))
	res.Stats.GraphTime = time.Since(stageStart)
	if err != nil {
		hooks.OnStageComplete(ctx, observability.StageGraph, 0, res.Stats.GraphTime, err)
		return nil, fmt.Errorf("graph: %w", err)
	}
	hooks.OnStageComplete(ctx, observability.StageGraph, g.DAG.NodeCount(), res.Stats.GraphTime, nil)
	res.Graph = g
	res.Errors = g.Errors
	res.Stats.Modules = g.DAG.NodeCount()
	res.Stats.Edges = g.DAG.EdgeCount()
	res.Stats.ResolverHits, res.Stats.ResolverMisses = resolver.Stats()
	for _, cyc := range g.Cycles {
		res.Warnings = append(res.Warnings, "import cycle: "+strings.Join(slices.Concat(cyc, cyc[:1]), " -> "))
	}

	r.Logger.Info("built module graph",
		"modules", res.Stats.Modules,
		"edges", res.Stats.Edges,
		"errors", len(res.Errors),
		"duration", res.Stats.GraphTime)

	// Stage 2: Chunk
	stageStart = time.Now()
	hooks.OnStageStart(ctx, observability.StageChunk)
	plan, err := chunk.Split(g, policies)
	res.Stats.ChunkTime = time.Since(stageStart)
	if err != nil {
		hooks.OnStageComplete(ctx, observability.StageChunk, 0, res.Stats.ChunkTime, err)
		return nil, fmt.Errorf("chunk: %w", err)
	}
	hooks.OnStageComplete(ctx, observability.StageChunk, len(plan.Chunks), res.Stats.ChunkTime, nil)
	res.Plan = plan
	res.Stats.Chunks = len(plan.Chunks)

	r.Logger.Info("split chunks",
		"chunks", res.Stats.Chunks,
		"duration", res.Stats.ChunkTime)

	return res, nil
}

// NewResolver creates the resolver described by cfg.
func NewResolver(cfg *config.Config) *resolve.Resolver {
	aliases := make([]resolve.Alias, len(cfg.Aliases))
	for i, a := range cfg.Aliases {
		aliases[i] = resolve.Alias{Key: a.Key, Path: a.Path}
	}
	return resolve.New(resolve.Options{
		Root:        cfg.Root(),
		Aliases:     aliases,
		Extensions:  cfg.Extensions,
		SearchRoots: cfg.SearchRoots,
	})
}

func entries(cfg *config.Config) []deps.Entry {
	out := make([]deps.Entry, len(cfg.Entry))
	for i, e := range cfg.Entry {
		out[i] = deps.Entry{Name: e.Name, Path: e.Path}
	}
	return out
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
