package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/matzehuels/towerpack/pkg/errors"
)

// ValidModes is the set of supported build modes.
var ValidModes = map[string]bool{
	ModeDevelopment: true,
	ModeProduction:  true,
}

// ValidPolicyKinds is the set of supported chunk policy kinds.
var ValidPolicyKinds = map[string]bool{
	PolicyVendor:  true,
	PolicyShared:  true,
	PolicyDefault: true,
}

// Validate checks c and returns the first problem as a *errors.ConfigError.
// Transform step names are checked later by the transform registry, which
// owns the set of known steps.
func (c *Config) Validate() error {
	if !ValidModes[c.Mode] {
		return errors.Configf("mode", "invalid mode %q (must be development or production)", c.Mode)
	}

	if len(c.Entry) == 0 {
		return errors.Configf("entry", "at least one entry is required")
	}
	seen := make(map[string]bool, len(c.Entry))
	for i, e := range c.Entry {
		key := fmt.Sprintf("entry[%d]", i)
		if err := errors.ValidateEntryName(e.Name); err != nil {
			return errors.Configf(key+".name", "%s", errors.UserMessage(err))
		}
		if seen[e.Name] {
			return errors.Configf(key+".name", "duplicate entry name %q", e.Name)
		}
		seen[e.Name] = true
		if e.Path == "" {
			return errors.Configf(key+".path", "path is required")
		}
	}

	if c.OutputDir == "" {
		return errors.Configf("outputDir", "output directory is required")
	}
	if c.Clean {
		if err := c.validateClean(); err != nil {
			return err
		}
	}

	for i, a := range c.Aliases {
		if strings.TrimSuffix(a.Key, "$") == "" {
			return errors.Configf(fmt.Sprintf("aliases[%d].key", i), "alias key cannot be empty")
		}
		if a.Path == "" {
			return errors.Configf(fmt.Sprintf("aliases[%d].path", i), "alias path cannot be empty")
		}
	}
	for i, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return errors.Configf(fmt.Sprintf("extensions[%d]", i), "extension %q must start with a dot", ext)
		}
	}

	for i, r := range c.TransformRules {
		key := fmt.Sprintf("transformRules[%d]", i)
		if err := compile(key+".test", r.Test, true); err != nil {
			return err
		}
		if err := compile(key+".exclude", r.Exclude, false); err != nil {
			return err
		}
		if len(r.Use) == 0 {
			return errors.Configf(key+".use", "rule must name at least one step")
		}
		for j, s := range r.Use {
			if s.Name == "" {
				return errors.Configf(fmt.Sprintf("%s.use[%d].name", key, j), "step name cannot be empty")
			}
		}
	}

	names := make(map[string]bool, len(c.ChunkPolicies))
	for i, p := range c.ChunkPolicies {
		key := fmt.Sprintf("chunkPolicies[%d]", i)
		if !ValidPolicyKinds[p.Kind] {
			return errors.Configf(key+".kind", "invalid kind %q (must be vendor, shared or default)", p.Kind)
		}
		if p.Kind != PolicyDefault {
			if err := errors.ValidateEntryName(p.Name); err != nil {
				return errors.Configf(key+".name", "%s", errors.UserMessage(err))
			}
			if seen[p.Name] {
				return errors.Configf(key+".name", "chunk name %q collides with an entry", p.Name)
			}
			if names[p.Name] {
				return errors.Configf(key+".name", "duplicate chunk name %q", p.Name)
			}
			names[p.Name] = true
		}
		if err := compile(key+".test", p.Test, p.Kind == PolicyVendor); err != nil {
			return err
		}
		if p.MinChunks < 0 {
			return errors.Configf(key+".minChunks", "must not be negative")
		}
	}

	templates := map[string]string{
		"filenameTemplate":         c.FilenameTemplate,
		"cssFilenameTemplate":      c.CSSFilenameTemplate,
		"chunkFilenameTemplate":    c.ChunkFilenameTemplate,
		"cssChunkFilenameTemplate": c.CSSChunkFilenameTemplate,
	}
	for _, key := range []string{"filenameTemplate", "cssFilenameTemplate", "chunkFilenameTemplate", "cssChunkFilenameTemplate"} {
		if err := errors.ValidateFilenameTemplate(templates[key]); err != nil {
			return errors.Configf(key, "%s", errors.UserMessage(err))
		}
	}

	if c.InlineSizeThreshold != nil && *c.InlineSizeThreshold < 0 {
		return errors.Configf("inlineSizeThreshold", "must not be negative")
	}
	if c.Concurrency < 1 {
		return errors.Configf("concurrency", "must be at least 1")
	}
	if d, err := time.ParseDuration(c.ReadTimeout); err != nil || d <= 0 {
		return errors.Configf("readTimeout", "invalid duration %q", c.ReadTimeout)
	}
	if c.DevServer.Port < 0 || c.DevServer.Port > 65535 {
		return errors.Configf("devServer.port", "port %d out of range", c.DevServer.Port)
	}
	return nil
}

// validateClean refuses an output directory that clean would empty along
// with the project or an entry.
func (c *Config) validateClean() error {
	out := c.OutputPath()
	if within(c.Root(), out) {
		return errors.Configf("outputDir", "clean would delete the project directory %s", c.Root())
	}
	for i, e := range c.Entry {
		if within(c.Abs(e.Path), out) {
			return errors.Configf(fmt.Sprintf("entry[%d].path", i), "entry %s lies inside the cleaned output directory", e.Path)
		}
	}
	return nil
}

// within reports whether path equals dir or lies below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func compile(key, pattern string, required bool) error {
	if pattern == "" {
		if required {
			return errors.Configf(key, "pattern is required")
		}
		return nil
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return errors.Configf(key, "invalid pattern %q: %v", pattern, err)
	}
	return nil
}
