package pipeline

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/towerpack/pkg/cache"
	"github.com/matzehuels/towerpack/pkg/config"
	"github.com/matzehuels/towerpack/pkg/errors"
	"github.com/matzehuels/towerpack/pkg/observability"
)

// project writes files (slash paths relative to the root) and returns a
// default config rooted there.
func project(t *testing.T, files map[string]string) *config.Config {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	cfg := config.Default()
	cfg.Context = root
	return cfg
}

func readOut(t *testing.T, cfg *config.Config, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.OutputPath(), filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

var hashed = regexp.MustCompile(`^[a-z]+\.[0-9a-f]{8}\.(js|css)$`)

func aliasProject(t *testing.T) *config.Config {
	return project(t, map[string]string{
		"src/index.js":      "import tool from 'tool';\nimport './theme.css';\nconsole.log(tool());\n",
		"src/utils/tool.js": "export default function tool() { return 'tool'; }\n",
		"src/theme.css":     "body { user-select: none; }\n",
	})
}

func TestBuildAliasAndStyles(t *testing.T) {
	cfg := aliasProject(t)

	res, err := NewRunner(nil, nil, nil).Build(t.Context(), cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.False(t, res.Failed())

	chunks := res.Manifest.Chunks
	assert.Len(t, chunks, 2)
	assert.Regexp(t, hashed, chunks["main.js"])
	assert.Regexp(t, hashed, chunks["main.css"])
	assert.NotContains(t, chunks, "common.js")
	assert.Equal(t, res.BuildID, res.Manifest.BuildID)

	js := readOut(t, cfg, chunks["main.js"])
	assert.Contains(t, js, `define("src/utils/tool.js"`)
	assert.Contains(t, js, `"tool": "src/utils/tool.js"`)
	assert.Contains(t, js, `"./theme.css": null`)
	assert.Contains(t, js, `self.__towerpack__.start([], "src/index.js");`)

	css := readOut(t, cfg, chunks["main.css"])
	assert.Contains(t, css, "-webkit-user-select")

	assert.Equal(t, 3, res.Stats.Modules)
	assert.Equal(t, 2, res.Stats.Chunks)
	assert.Equal(t, 3, res.Stats.Files) // two chunks and the manifest

	m, err := os.ReadFile(filepath.Join(cfg.OutputPath(), "manifest.json"))
	require.NoError(t, err)
	assert.Contains(t, string(m), `"main.js": "`+chunks["main.js"]+`"`)
}

func TestBuildInlinesSmallImages(t *testing.T) {
	cfg := project(t, map[string]string{
		"src/index.js":  "import small from './small.png';\nimport large from './large.png';\nconsole.log(small, large);\n",
		"src/small.png": strings.Repeat("s", 400),
		"src/large.png": strings.Repeat("l", 600),
	})

	res, err := NewRunner(nil, nil, nil).Build(t.Context(), cfg)
	require.NoError(t, err)

	assert.NotContains(t, res.Manifest.Assets, "src/small.png")
	large := res.Manifest.Assets["src/large.png"]
	assert.Regexp(t, `^images/large\.[0-9a-f]{8}\.png$`, large)
	assert.Equal(t, strings.Repeat("l", 600), readOut(t, cfg, large))

	js := readOut(t, cfg, res.Manifest.Chunks["main.js"])
	assert.Contains(t, js, `module.exports = "data:image/png;base64,`)
	assert.Contains(t, js, `module.exports = "/`+large+`";`)
}

func TestBuildSharedModuleGoesToCommonChunk(t *testing.T) {
	cfg := project(t, map[string]string{
		"src/a.js":      "import shared from './shared';\nconsole.log('a', shared);\n",
		"src/b.js":      "import shared from './shared';\nconsole.log('b', shared);\n",
		"src/shared.js": "export default 'shared';\n",
	})
	cfg.Entry = []config.Entry{{Name: "a", Path: "./src/a.js"}, {Name: "b", Path: "./src/b.js"}}

	res, err := NewRunner(nil, nil, nil).Build(t.Context(), cfg)
	require.NoError(t, err)

	c, ok := res.Plan.ChunkOf("src/shared.js")
	require.True(t, ok)
	assert.Equal(t, "common.js", c.LogicalName())

	common := res.Manifest.Chunks["common.js"]
	require.NotEmpty(t, common)
	assert.Contains(t, readOut(t, cfg, common), `define("src/shared.js"`)
	for _, name := range []string{"a", "b"} {
		js := readOut(t, cfg, res.Manifest.Chunks[name+".js"])
		assert.NotContains(t, js, `define("src/shared.js"`, "entry %s", name)
		assert.Contains(t, js, `"/`+common+`"`, "entry %s must load the common chunk", name)
		assert.Equal(t, common, res.Manifest.Entrypoints[name].JS[0])
	}
}

func TestBuildHashesAreReproducible(t *testing.T) {
	cfg := aliasProject(t)
	runner := NewRunner(nil, nil, nil)

	first, err := runner.Build(t.Context(), cfg)
	require.NoError(t, err)
	second, err := runner.Build(t.Context(), cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Manifest.Chunks, second.Manifest.Chunks)
	assert.NotEqual(t, first.BuildID, second.BuildID)
}

func TestBuildWithCache(t *testing.T) {
	cfg := aliasProject(t)
	c, err := cache.NewLRUCache(64)
	require.NoError(t, err)
	runner := NewRunner(c, nil, nil)

	first, err := runner.Build(t.Context(), cfg)
	require.NoError(t, err)
	stored := c.Len()
	assert.Positive(t, stored)

	second, err := runner.Build(t.Context(), cfg)
	require.NoError(t, err)
	assert.Equal(t, stored, c.Len(), "unchanged sources must not add cache entries")
	assert.Equal(t, first.Manifest.Chunks, second.Manifest.Chunks)
}

func TestBuildCacheHonoursInlineThreshold(t *testing.T) {
	cfg := project(t, map[string]string{
		"src/index.js": "import logo from './logo.png';\nconsole.log(logo);\n",
		"src/logo.png": strings.Repeat("p", 100),
	})
	c, err := cache.NewLRUCache(64)
	require.NoError(t, err)
	runner := NewRunner(c, nil, nil)

	cfg.InlineSizeThreshold = config.Threshold(500)
	first, err := runner.Build(t.Context(), cfg)
	require.NoError(t, err)
	assert.Empty(t, first.Manifest.Assets)

	cfg.InlineSizeThreshold = config.Threshold(50)
	cfg.PublicPath = "/static/"
	second, err := runner.Build(t.Context(), cfg)
	require.NoError(t, err)
	logo := second.Manifest.Assets["src/logo.png"]
	require.NotEmpty(t, logo, "asset above the new threshold must be emitted")
	js := readOut(t, cfg, second.Manifest.Chunks["main.js"])
	assert.Contains(t, js, `module.exports = "/static/`+logo+`";`)
	assert.NotContains(t, js, "data:image/png")
}

func TestBuildThresholdZeroNeverInlines(t *testing.T) {
	cfg := project(t, map[string]string{
		"src/index.js": "import logo from './logo.png';\nconsole.log(logo);\n",
		"src/logo.png": "p",
	})
	cfg.InlineSizeThreshold = config.Threshold(0)

	res, err := NewRunner(nil, nil, nil).Build(t.Context(), cfg)
	require.NoError(t, err)
	assert.Contains(t, res.Manifest.Assets, "src/logo.png")
	assert.Equal(t, 0, *res.Config.InlineSizeThreshold)
}

func TestBuildCleanRefusesSourceTree(t *testing.T) {
	cfg := aliasProject(t)
	cfg.OutputDir = "."
	cfg.Clean = true

	_, err := NewRunner(nil, nil, nil).Build(t.Context(), cfg)
	var ce *errors.ConfigError
	require.True(t, stderrors.As(err, &ce), "error = %v", err)
	_, statErr := os.Stat(filepath.Join(cfg.Root(), "src", "index.js"))
	assert.NoError(t, statErr, "sources must survive")
}

func TestBuildCSSRelativeURL(t *testing.T) {
	cfg := project(t, map[string]string{
		"src/index.js":         "import './styles/theme.css';\n",
		"src/styles/theme.css": "@import 'base.css';\nbody { background: url(bg.png); }\n",
		"src/styles/base.css":  "html { margin: 0; }\n",
		"src/styles/bg.png":    strings.Repeat("b", 1000),
	})

	res, err := NewRunner(nil, nil, nil).Build(t.Context(), cfg)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	bg := res.Manifest.Assets["src/styles/bg.png"]
	require.NotEmpty(t, bg)
	css := readOut(t, cfg, res.Manifest.Chunks["main.css"])
	assert.Contains(t, css, bg)
	assert.Contains(t, css, "margin")
}

func TestBuildCollectsModuleErrors(t *testing.T) {
	cfg := project(t, map[string]string{
		"src/index.js":  "import './missing';\nimport './broken';\n",
		"src/broken.js": "export default {;\n",
	})

	res, err := NewRunner(nil, nil, nil).Build(t.Context(), cfg)
	require.NoError(t, err)
	require.Len(t, res.Errors, 2)
	assert.True(t, res.Failed())

	codes := map[errors.Code]bool{}
	for _, e := range res.Errors {
		codes[errors.GetCode(e)] = true
	}
	assert.True(t, codes[errors.ErrCodeResolution])
	assert.True(t, codes[errors.ErrCodeParse])

	js := readOut(t, cfg, res.Manifest.Chunks["main.js"])
	assert.Contains(t, js, `throw new Error("parse `)
}

func TestBuildMissingEntryIsFatal(t *testing.T) {
	cfg := project(t, map[string]string{"src/other.js": ""})

	_, err := NewRunner(nil, nil, nil).Build(t.Context(), cfg)
	var re *errors.ResolutionError
	require.True(t, stderrors.As(err, &re), "error = %v", err)
	assert.Equal(t, errors.ErrCodeResolution, errors.GetCode(err))
}

func TestBuildInvalidConfig(t *testing.T) {
	cfg := aliasProject(t)
	cfg.ChunkPolicies = []config.ChunkPolicy{{Name: "bad", Kind: "nope"}}

	_, err := NewRunner(nil, nil, nil).Build(t.Context(), cfg)
	var ce *errors.ConfigError
	require.True(t, stderrors.As(err, &ce), "error = %v", err)
}

func TestBuildCycleIsWarning(t *testing.T) {
	cfg := project(t, map[string]string{
		"src/index.js": "import './a';\n",
		"src/a.js":     "import './b';\nexport const a = 1;\n",
		"src/b.js":     "import './a';\nexport const b = 2;\n",
	})

	res, err := NewRunner(nil, nil, nil).Build(t.Context(), cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, []string{"import cycle: src/a.js -> src/b.js -> src/a.js"}, res.Warnings)
}

type recordingHooks struct {
	observability.NoopPipelineHooks
	mu     sync.Mutex
	stages []string
	done   int
}

func (h *recordingHooks) OnStageComplete(_ context.Context, stage string, _ int, _ time.Duration, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stages = append(h.stages, stage)
}

func (h *recordingHooks) OnBuildComplete(context.Context, string, time.Duration, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.done++
}

func TestBuildReportsStages(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetPipelineHooks(hooks)
	t.Cleanup(observability.Reset)

	_, err := NewRunner(nil, nil, nil).Build(t.Context(), aliasProject(t))
	require.NoError(t, err)
	assert.Equal(t, []string{observability.StageGraph, observability.StageChunk, observability.StageEmit}, hooks.stages)
	assert.Equal(t, 1, hooks.done)
}

func TestBuildDoesNotModifyConfig(t *testing.T) {
	cfg := aliasProject(t)
	cfg.Mode = ""

	_, err := NewRunner(nil, nil, nil).Build(t.Context(), cfg)
	require.NoError(t, err)
	assert.Empty(t, cfg.Mode)
}

func TestPlanWritesNothing(t *testing.T) {
	cfg := aliasProject(t)

	res, err := NewRunner(nil, nil, nil).Plan(t.Context(), cfg)
	require.NoError(t, err)
	assert.Nil(t, res.Manifest)
	assert.Empty(t, res.Files)
	assert.Equal(t, 3, res.Stats.Modules)
	assert.Len(t, res.Plan.Chunks, 2)

	_, err = os.Stat(cfg.OutputPath())
	assert.True(t, os.IsNotExist(err), "output dir exists after Plan")
}
