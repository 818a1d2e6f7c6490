package config

import (
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/towerpack/pkg/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, "main", c.Entry[0].Name)
	assert.Equal(t, 500, *c.InlineSizeThreshold)
	assert.Equal(t, 500, c.InlineLimit())
	assert.Equal(t, 1234, c.DevServer.Port)
	assert.True(t, c.DevServer.CompressEnabled())
	assert.True(t, c.Production())
	assert.Equal(t, 10*time.Second, c.ReadTimeoutDuration())
}

func TestLoadTOMLKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "towerpack.toml", `
mode = "development"
clean = true

[[entry]]
name = "app"
path = "./src/app.js"

[[entry]]
name = "admin"
path = "./src/admin.js"

[devServer]
port = 8080
compress = false
`)

	c, err := Load(p)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, ModeDevelopment, c.Mode)
	assert.True(t, c.Clean)
	assert.Len(t, c.Entry, 2)
	assert.Equal(t, "admin", c.Entry[1].Name)
	assert.Equal(t, dir, c.Context)
	assert.Equal(t, 8080, c.DevServer.Port)
	assert.False(t, c.DevServer.CompressEnabled())
	assert.Equal(t, DefaultDevHost, c.DevServer.Host)

	// untouched keys come from Default
	assert.Equal(t, Default().Extensions, c.Extensions)
	assert.Equal(t, Default().ChunkPolicies, c.ChunkPolicies)
	assert.Equal(t, DefaultFilenameTemplate, c.ChunkFilenameTemplate)
}

func TestLoadYAMLReplacesLists(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "towerpack.yaml", `
context: site
transformRules:
  - test: '\.js$'
    use:
      - name: raw
chunkPolicies: []
`)

	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "site"), c.Context)
	require.Len(t, c.TransformRules, 1)
	assert.Equal(t, "raw", c.TransformRules[0].Use[0].Name)
	assert.Empty(t, c.TransformRules[0].Exclude)
	assert.NotNil(t, c.ChunkPolicies)
	assert.Empty(t, c.ChunkPolicies)
}

func TestLoadJSONRejectsUnknownKeys(t *testing.T) {
	p := writeFile(t, t.TempDir(), "towerpack.json", `{"mode": "production", "entries": []}`)

	_, err := Load(p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig))
}

func TestLoadUnsupportedExtension(t *testing.T) {
	p := writeFile(t, t.TempDir(), "towerpack.ini", "mode=production")

	_, err := Load(p)
	var ce *errors.ConfigError
	require.True(t, stderrors.As(err, &ce), "want ConfigError, got %v", err)
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, Find(dir))

	writeFile(t, dir, "towerpack.yaml", "mode: production\n")
	writeFile(t, dir, "towerpack.json", "{}")
	assert.Equal(t, filepath.Join(dir, "towerpack.yaml"), Find(dir))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		key    string
	}{
		{"bad mode", func(c *Config) { c.Mode = "staging" }, "mode"},
		{"no entries", func(c *Config) { c.Entry = nil }, "entry"},
		{"entry name", func(c *Config) { c.Entry[0].Name = "a/b" }, "entry[0].name"},
		{"duplicate entry", func(c *Config) {
			c.Entry = append(c.Entry, Entry{Name: "main", Path: "./x.js"})
		}, "entry[1].name"},
		{"empty alias", func(c *Config) { c.Aliases = []Alias{{Key: "$", Path: "x"}} }, "aliases[0].key"},
		{"extension without dot", func(c *Config) { c.Extensions = []string{"js"} }, "extensions[0]"},
		{"bad rule regexp", func(c *Config) { c.TransformRules[0].Test = "(" }, "transformRules[0].test"},
		{"rule without steps", func(c *Config) { c.TransformRules[1].Use = nil }, "transformRules[1].use"},
		{"bad policy kind", func(c *Config) { c.ChunkPolicies[0].Kind = "async" }, "chunkPolicies[0].kind"},
		{"vendor without test", func(c *Config) { c.ChunkPolicies[2].Test = "" }, "chunkPolicies[2].test"},
		{"policy shadows entry", func(c *Config) { c.ChunkPolicies[0].Name = "main" }, "chunkPolicies[0].name"},
		{"bad template", func(c *Config) { c.FilenameTemplate = "[name].[fullhash].js" }, "filenameTemplate"},
		{"negative threshold", func(c *Config) { c.InlineSizeThreshold = Threshold(-1) }, "inlineSizeThreshold"},
		{"clean project root", func(c *Config) { c.Clean, c.OutputDir = true, "." }, "outputDir"},
		{"clean ancestor", func(c *Config) { c.Clean, c.OutputDir = true, ".." }, "outputDir"},
		{"clean entry dir", func(c *Config) { c.Clean, c.OutputDir = true, "src" }, "entry[0].path"},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency"},
		{"bad timeout", func(c *Config) { c.ReadTimeout = "soon" }, "readTimeout"},
		{"bad port", func(c *Config) { c.DevServer.Port = 70000 }, "devServer.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			var ce *errors.ConfigError
			require.True(t, stderrors.As(err, &ce), "want ConfigError, got %v", err)
			assert.Equal(t, tt.key, ce.Key)
		})
	}
}

func TestValidateCleanOutputDir(t *testing.T) {
	c := Default()
	c.Context = t.TempDir()
	c.Clean = true
	assert.NoError(t, c.Validate())

	c.OutputDir = "build/out"
	assert.NoError(t, c.Validate())

	// without clean the same layout is allowed
	c.Clean = false
	c.OutputDir = "."
	assert.NoError(t, c.Validate())
}

func TestInlineThresholdZero(t *testing.T) {
	c, err := Decode([]byte("inlineSizeThreshold = 0\n"), FormatTOML)
	require.NoError(t, err)
	c.WithDefaults()
	require.NotNil(t, c.InlineSizeThreshold)
	assert.Equal(t, 0, c.InlineLimit())
	require.NoError(t, c.Validate())

	unset, err := Decode([]byte("mode = \"development\"\n"), FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, DefaultInlineSizeThreshold, unset.WithDefaults().InlineLimit())

	cp := c.Clone()
	*cp.InlineSizeThreshold = 10
	assert.Equal(t, 0, c.InlineLimit(), "Clone must not share the threshold")
}

func TestApplyEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "TOWERPACK_OUTPUT_DIR=public\n")

	t.Setenv(EnvOutputDir, "")
	require.NoError(t, os.Unsetenv(EnvOutputDir))
	t.Setenv(EnvMode, ModeDevelopment)
	t.Setenv(EnvPort, "9000")

	c := Default()
	require.NoError(t, ApplyEnv(c, dir))

	assert.Equal(t, ModeDevelopment, c.Mode)
	assert.Equal(t, "public", c.OutputDir)
	assert.Equal(t, 9000, c.DevServer.Port)
}

func TestApplyEnvBadPort(t *testing.T) {
	t.Setenv(EnvPort, "http")

	err := ApplyEnv(Default(), t.TempDir())
	var ce *errors.ConfigError
	require.True(t, stderrors.As(err, &ce), "want ConfigError, got %v", err)
	assert.Equal(t, "devServer.port", ce.Key)
}

func TestEncodeTOMLDecodes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Default(), FormatTOML))

	c, err := Decode(buf.Bytes(), FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, Default().Entry, c.Entry)
	assert.Equal(t, Default().ChunkPolicies, c.ChunkPolicies)
	assert.Equal(t, Default().FilenameTemplate, c.FilenameTemplate)
}

func TestClone(t *testing.T) {
	c := Default()
	cp := c.Clone()
	cp.Entry[0].Name = "other"
	cp.Extensions[0] = ".ts"

	assert.Equal(t, "main", c.Entry[0].Name)
	assert.Equal(t, ".wasm", c.Extensions[0])
}

func TestAbs(t *testing.T) {
	c := &Config{Context: "/srv/app"}
	assert.Equal(t, filepath.FromSlash("/srv/app/src/index.js"), c.Abs("./src/index.js"))
	assert.Equal(t, filepath.FromSlash("/tmp/x"), c.Abs("/tmp/x"))
}
