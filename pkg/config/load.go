package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/towerpack/pkg/errors"
)

// Format names accepted by Decode and Encode.
const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Environment variables read by ApplyEnv.
const (
	EnvMode      = "TOWERPACK_MODE"
	EnvOutputDir = "TOWERPACK_OUTPUT_DIR"
	EnvPort      = "TOWERPACK_PORT"
)

// Filenames searched by Find, in order.
var Filenames = []string{"towerpack.toml", "towerpack.yaml", "towerpack.yml", "towerpack.json"}

// Find returns the first config file present in dir, or "" if there is none.
func Find(dir string) string {
	for _, name := range Filenames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p
		}
	}
	return ""
}

// FormatOf returns the decoder format for a config file path.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", errors.Configf("", "unsupported config file type %q", filepath.Ext(path))
	}
}

// Load reads the config file at path, fills defaults and sets Context to the
// file's directory when the file leaves it unset.
func Load(path string) (*Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read config")
	}
	c, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	if c.Context == "" {
		c.Context = filepath.Dir(path)
	} else if !filepath.IsAbs(c.Context) {
		c.Context = filepath.Join(filepath.Dir(path), c.Context)
	}
	return c.WithDefaults(), nil
}

// Decode parses data in the given format into a Config without applying
// defaults.
func Decode(data []byte, format string) (*Config, error) {
	var c Config
	var err error
	switch format {
	case FormatTOML:
		_, err = toml.Decode(string(data), &c)
	case FormatYAML:
		err = yaml.Unmarshal(data, &c)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&c)
	default:
		return nil, errors.Configf("", "unknown config format %q", format)
	}
	if err != nil {
		return nil, errors.Configf("", "decode %s: %v", format, err)
	}
	return &c, nil
}

// Encode writes c to w in the given format.
func Encode(w io.Writer, c *Config, format string) error {
	switch format {
	case FormatTOML:
		return toml.NewEncoder(w).Encode(c)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	default:
		return fmt.Errorf("unknown config format %q", format)
	}
}

// ApplyEnv loads dir/.env (if present) into the process environment without
// overriding variables that are already set, then applies the TOWERPACK_*
// overrides to c.
func ApplyEnv(c *Config, dir string) error {
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	if v, ok := os.LookupEnv(EnvMode); ok && v != "" {
		c.Mode = v
	}
	if v, ok := os.LookupEnv(EnvOutputDir); ok && v != "" {
		c.OutputDir = v
	}
	if v, ok := os.LookupEnv(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Configf("devServer.port", "%s=%q is not a number", EnvPort, v)
		}
		c.DevServer.Port = port
	}
	return nil
}
