package cli

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/towerpack/pkg/observability"
)

// logHooks reports pipeline, cache and dev server events to the debug log.
// Cache events are counted and summarized when a build completes.
type logHooks struct {
	logger *log.Logger

	mu     sync.Mutex
	hits   map[string]int
	misses map[string]int
}

var (
	_ observability.PipelineHooks = (*logHooks)(nil)
	_ observability.CacheHooks    = (*logHooks)(nil)
	_ observability.ServerHooks   = (*logHooks)(nil)
)

func newLogHooks(l *log.Logger) *logHooks {
	return &logHooks{logger: l, hits: map[string]int{}, misses: map[string]int{}}
}

// InstallHooks routes observability events to the CLI logger.
func (c *CLI) InstallHooks() {
	h := newLogHooks(c.Logger)
	observability.SetPipelineHooks(h)
	observability.SetCacheHooks(h)
	observability.SetServerHooks(h)
}

func (h *logHooks) OnBuildStart(_ context.Context, buildID string, entries int) {
	h.mu.Lock()
	clear(h.hits)
	clear(h.misses)
	h.mu.Unlock()
	h.logger.Debug("build started", "build", buildID, "entries", entries)
}

func (h *logHooks) OnBuildComplete(_ context.Context, buildID string, d time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, kind := range []string{"resolve", "scan", "transform"} {
		if h.hits[kind]+h.misses[kind] > 0 {
			h.logger.Debug("cache", "kind", kind, "hits", h.hits[kind], "misses", h.misses[kind])
		}
	}
	if err != nil {
		h.logger.Debug("build failed", "build", buildID, "duration", d, "error", err)
		return
	}
	h.logger.Debug("build complete", "build", buildID, "duration", d)
}

func (h *logHooks) OnStageStart(_ context.Context, stage string) {
	h.logger.Debug("stage started", "stage", stage)
}

func (h *logHooks) OnStageComplete(_ context.Context, stage string, count int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("stage failed", "stage", stage, "duration", d, "error", err)
		return
	}
	h.logger.Debug("stage complete", "stage", stage, "count", count, "duration", d)
}

func (h *logHooks) OnModuleError(_ context.Context, module string, err error) {
	h.logger.Debug("module error", "module", module, "error", err)
}

func (h *logHooks) OnCacheHit(_ context.Context, kind string) {
	h.mu.Lock()
	h.hits[kind]++
	h.mu.Unlock()
}

func (h *logHooks) OnCacheMiss(_ context.Context, kind string) {
	h.mu.Lock()
	h.misses[kind]++
	h.mu.Unlock()
}

func (h *logHooks) OnCacheSet(context.Context, string, int) {}

func (h *logHooks) OnRequest(_ context.Context, method, path string, status int, d time.Duration) {
	if status >= 500 {
		h.logger.Warn("request failed", "method", method, "path", path, "status", status, "duration", d)
	}
}

func (h *logHooks) OnRebuild(_ context.Context, d time.Duration, err error) {
	h.logger.Debug("rebuild", "duration", d, "error", err)
}
