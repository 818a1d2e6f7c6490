package transform

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/matzehuels/towerpack/pkg/cache"
	"github.com/matzehuels/towerpack/pkg/config"
	"github.com/matzehuels/towerpack/pkg/errors"
	"github.com/matzehuels/towerpack/pkg/observability"
	"github.com/matzehuels/towerpack/pkg/scan"
)

// StepCommonJS names the implicit script normalization in TransformErrors.
const StepCommonJS = "commonjs"

type link struct {
	name string
	step Step
}

type rule struct {
	test    *regexp.Regexp
	include []string
	exclude *regexp.Regexp
	chain   []link
	use     []config.Step
}

// matches reports whether the rule applies to in. Test and Exclude see the
// absolute slash path; Include entries are project-relative directories.
func (r *rule) matches(in Input) bool {
	p := filepath.ToSlash(in.Path)
	if !r.test.MatchString(p) {
		return false
	}
	if r.exclude != nil && r.exclude.MatchString(p) {
		return false
	}
	if len(r.include) == 0 {
		return true
	}
	for _, dir := range r.include {
		if dir == "." || in.ID == dir || strings.HasPrefix(in.ID, dir+"/") {
			return true
		}
	}
	return false
}

// Pipeline applies the configured rules to modules. It is safe for
// concurrent use.
type Pipeline struct {
	rules []rule
	env   Env
	cache cache.Cache
	keyer cache.Keyer

	assets link // url with limit 0, for assets no rule claims
	json   link
}

// New compiles rules. Unknown steps, invalid options and bad patterns fail
// with *errors.ConfigError. A nil cache disables caching and a nil keyer
// selects cache.DefaultKeyer.
func New(rules []config.TransformRule, env Env, c cache.Cache, keyer cache.Keyer) (*Pipeline, error) {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	p := &Pipeline{env: env, cache: c, keyer: keyer}

	for i, rc := range rules {
		key := fmt.Sprintf("transformRules[%d]", i)
		test, err := regexp.Compile(rc.Test)
		if err != nil {
			return nil, errors.Configf(key+".test", "%v", err)
		}
		r := rule{test: test, use: rc.Use}
		if rc.Exclude != "" {
			if r.exclude, err = regexp.Compile(rc.Exclude); err != nil {
				return nil, errors.Configf(key+".exclude", "%v", err)
			}
		}
		for _, inc := range rc.Include {
			r.include = append(r.include, path.Clean(strings.TrimPrefix(filepath.ToSlash(inc), "./")))
		}
		for j, sc := range rc.Use {
			step, err := newStep(sc.Name, sc.Options, env)
			if err != nil {
				return nil, errors.Configf(fmt.Sprintf("%s.use[%d]", key, j), "%v", err)
			}
			r.chain = append(r.chain, link{name: Canonical(sc.Name), step: step})
		}
		p.rules = append(p.rules, r)
	}

	urlStep, err := newURLStep(map[string]any{"limit": 0}, env)
	if err != nil {
		return nil, err
	}
	jsonStep, _ := newJSONStep(nil, env)
	p.assets = link{name: "url", step: urlStep}
	p.json = link{name: "json", step: jsonStep}
	return p, nil
}

// Chain returns the step names that apply to in, without running them.
func (p *Pipeline) Chain(in Input) []string {
	links, _ := p.chainFor(in)
	names := make([]string, len(links))
	for i, l := range links {
		names[i] = l.name
	}
	if in.Kind == scan.KindScript && !endsCommonJS(names) {
		names = append(names, StepCommonJS)
	}
	return names
}

func endsCommonJS(names []string) bool {
	return len(names) > 0 && names[len(names)-1] == "js"
}

// chainFor selects the first matching rule's chain, or the fallback for the
// module's kind. The int is the rule index, -1 for fallbacks.
func (p *Pipeline) chainFor(in Input) ([]link, int) {
	for i := range p.rules {
		if p.rules[i].matches(in) {
			return p.rules[i].chain, i
		}
	}
	switch in.Kind {
	case scan.KindAsset:
		return []link{p.assets}, -1
	case scan.KindJSON:
		return []link{p.json}, -1
	}
	return nil, -1
}

// Apply runs the chain for in. Failures are *errors.TransformError naming
// the failing step.
func (p *Pipeline) Apply(ctx context.Context, in Input) (Output, error) {
	links, idx := p.chainFor(in)

	opts := map[string]any{"module": in.ID, "kind": in.Kind, "rule": idx}
	if idx >= 0 {
		opts["use"] = p.rules[idx].use
	}
	key := p.keyer.TransformKey(cache.Hash(in.Source), cache.TransformKeyOpts{
		Chain:   p.Chain(in),
		Options: opts,
		Mode:    p.env.Mode,
		Targets: append([]string{p.env.Target}, p.env.Browsers...),

		InlineLimit: p.env.InlineLimit,
		PublicPath:  p.env.PublicPath,
	})

	if out, err := cache.GetJSON[Output](ctx, p.cache, key); err == nil {
		observability.Cache().OnCacheHit(ctx, "transform")
		return out, nil
	}
	observability.Cache().OnCacheMiss(ctx, "transform")

	out, err := p.run(ctx, in, links)
	if err != nil {
		return Output{}, err
	}
	if err := cache.SetJSON(ctx, p.cache, key, out, 0); err == nil {
		observability.Cache().OnCacheSet(ctx, "transform", len(out.Code))
	}
	return out, nil
}

func (p *Pipeline) run(ctx context.Context, in Input, links []link) (Output, error) {
	out := Output{Code: bytes.Clone(in.Source)}
	var asset *Asset
	cur := in
	for _, l := range links {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}
		next, err := l.step.Apply(ctx, cur)
		if err != nil {
			return Output{}, &errors.TransformError{Path: in.Path, Step: l.name, Cause: err}
		}
		if next.Asset != nil {
			asset = next.Asset
		}
		out = next
		cur.Source = next.Code
	}
	out.Asset = asset

	if in.Kind == scan.KindScript && !out.CommonJS {
		code, err := toCommonJS(cur)
		if err != nil {
			return Output{}, &errors.TransformError{Path: in.Path, Step: StepCommonJS, Cause: err}
		}
		out.Code, out.CommonJS = code, true
	}
	return out, nil
}

// toCommonJS rewrites ES module syntax to CommonJS without downleveling.
func toCommonJS(in Input) ([]byte, error) {
	loader, ok := scan.LoaderFor(in.Path)
	if !ok || loader == api.LoaderCSS {
		loader = api.LoaderJS
	}
	res := api.Transform(string(in.Source), api.TransformOptions{
		Loader:     loader,
		Format:     api.FormatCommonJS,
		Target:     api.ESNext,
		Sourcefile: in.ID,
		LogLevel:   api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		return nil, esbuildError(res.Errors)
	}
	return res.Code, nil
}
