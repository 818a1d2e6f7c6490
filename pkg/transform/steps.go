package transform

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/matzehuels/towerpack/pkg/errors"
	"github.com/matzehuels/towerpack/pkg/naming"
	"github.com/matzehuels/towerpack/pkg/scan"
)

// =============================================================================
// js
// =============================================================================

var targets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es6":    api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// ParseTarget maps a target name such as "es2015" to its esbuild value.
func ParseTarget(name string) (api.Target, error) {
	t, ok := targets[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown language target %q", name)
	}
	return t, nil
}

type jsStep struct {
	target api.Target
	minify bool
}

func newJSStep(opts map[string]any, env Env) (Step, error) {
	name, err := stringOpt(opts, "target", env.Target)
	if err != nil {
		return nil, err
	}
	target, err := ParseTarget(name)
	if err != nil {
		return nil, err
	}
	minify, err := boolOpt(opts, "minify", env.Production())
	if err != nil {
		return nil, err
	}
	return &jsStep{target: target, minify: minify}, nil
}

func (s *jsStep) Apply(ctx context.Context, in Input) (Output, error) {
	loader, ok := scan.LoaderFor(in.Path)
	if !ok || loader == api.LoaderCSS {
		return Output{}, fmt.Errorf("cannot compile %s as a script", filepath.Ext(in.Path))
	}
	res := api.Transform(string(in.Source), api.TransformOptions{
		Loader:            loader,
		Format:            api.FormatCommonJS,
		Target:            s.target,
		MinifyWhitespace:  s.minify,
		MinifyIdentifiers: s.minify,
		MinifySyntax:      s.minify,
		Sourcefile:        in.ID,
		LogLevel:          api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		return Output{}, esbuildError(res.Errors)
	}
	return Output{Code: res.Code, CommonJS: true}, nil
}

// =============================================================================
// css
// =============================================================================

var engines = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"safari":  api.EngineSafari,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"ie":      api.EngineIE,
	"node":    api.EngineNode,
}

var engineRegex = regexp.MustCompile(`^([a-z]+)(\d[\d.]*)$`)

// ParseEngines maps browser targets such as "chrome58" to esbuild engines.
func ParseEngines(browsers []string) ([]api.Engine, error) {
	out := make([]api.Engine, 0, len(browsers))
	for _, b := range browsers {
		m := engineRegex.FindStringSubmatch(strings.ToLower(b))
		if m == nil {
			return nil, fmt.Errorf("invalid browser target %q", b)
		}
		name, ok := engines[m[1]]
		if !ok {
			return nil, fmt.Errorf("unknown browser %q", m[1])
		}
		out = append(out, api.Engine{Name: name, Version: m[2]})
	}
	return out, nil
}

type cssStep struct {
	engines []api.Engine
	minify  bool
}

func newCSSStep(opts map[string]any, env Env) (Step, error) {
	browsers, err := stringsOpt(opts, "browsers", env.Browsers)
	if err != nil {
		return nil, err
	}
	engines, err := ParseEngines(browsers)
	if err != nil {
		return nil, err
	}
	minify, err := boolOpt(opts, "minify", env.Production())
	if err != nil {
		return nil, err
	}
	return &cssStep{engines: engines, minify: minify}, nil
}

func (s *cssStep) Apply(ctx context.Context, in Input) (Output, error) {
	res := api.Transform(string(in.Source), api.TransformOptions{
		Loader:           api.LoaderCSS,
		Engines:          s.engines,
		MinifyWhitespace: s.minify,
		MinifySyntax:     s.minify,
		Sourcefile:       in.ID,
		LogLevel:         api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		return Output{}, esbuildError(res.Errors)
	}
	return Output{Code: res.Code}, nil
}

// =============================================================================
// url
// =============================================================================

// DefaultAssetName names emitted asset files.
const DefaultAssetName = "[name].[hash:8].[ext]"

type urlStep struct {
	limit      int64
	outputPath string
	name       string
	publicPath string
}

func newURLStep(opts map[string]any, env Env) (Step, error) {
	limit, err := int64Opt(opts, "limit", env.InlineLimit)
	if err != nil {
		return nil, err
	}
	outputPath, err := stringOpt(opts, "outputPath", "")
	if err != nil {
		return nil, err
	}
	name, err := stringOpt(opts, "name", DefaultAssetName)
	if err != nil {
		return nil, err
	}
	publicPath, err := stringOpt(opts, "publicPath", env.PublicPath)
	if err != nil {
		return nil, err
	}
	if err := errors.ValidateFilenameTemplate(path.Join(outputPath, name)); err != nil {
		return nil, err
	}
	return &urlStep{limit: limit, outputPath: outputPath, name: name, publicPath: publicPath}, nil
}

func (s *urlStep) Apply(ctx context.Context, in Input) (Output, error) {
	ext := filepath.Ext(in.Path)
	if int64(len(in.Source)) < s.limit {
		return Output{Code: []byte(DataURI(ext, in.Source))}, nil
	}

	file := path.Join(s.outputPath, naming.Expand(s.name, naming.Vars{
		Name:    strings.TrimSuffix(filepath.Base(in.Path), ext),
		Ext:     strings.TrimPrefix(ext, "."),
		Content: in.Source,
	}))
	return Output{
		Code:  []byte(PublicURL(s.publicPath, file)),
		Asset: &Asset{Path: file, Data: bytes.Clone(in.Source)},
	}, nil
}

// DataURI encodes data as a base64 data: URI typed by ext.
func DataURI(ext string, data []byte) string {
	typ := mime.TypeByExtension(ext)
	if typ == "" {
		typ = "application/octet-stream"
	}
	return "data:" + typ + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// PublicURL joins an output-relative file with the public path prefix.
func PublicURL(publicPath, file string) string {
	if publicPath == "" {
		return file
	}
	return strings.TrimSuffix(publicPath, "/") + "/" + strings.TrimPrefix(file, "/")
}

// =============================================================================
// json, raw
// =============================================================================

func newJSONStep(opts map[string]any, env Env) (Step, error) {
	return StepFunc(func(ctx context.Context, in Input) (Output, error) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, in.Source); err != nil {
			return Output{}, err
		}
		return Output{Code: buf.Bytes()}, nil
	}), nil
}

func newRawStep(opts map[string]any, env Env) (Step, error) {
	return StepFunc(func(ctx context.Context, in Input) (Output, error) {
		return Output{Code: bytes.Clone(in.Source)}, nil
	}), nil
}

func esbuildError(msgs []api.Message) error {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			parts = append(parts, fmt.Sprintf("%d:%d: %s", m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		parts = append(parts, m.Text)
	}
	return stderrors.New(strings.Join(parts, "; "))
}
