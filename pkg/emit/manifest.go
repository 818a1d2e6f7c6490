package emit

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/matzehuels/towerpack/pkg/errors"
)

// Manifest describes one build's output. Paths are relative to the output
// directory; prefix them with PublicPath to form URLs.
type Manifest struct {
	BuildID     string                `json:"buildId"`
	Mode        string                `json:"mode"`
	PublicPath  string                `json:"publicPath"`
	Chunks      map[string]string     `json:"chunks"`      // Logical chunk name -> file
	Entrypoints map[string]EntryFiles `json:"entrypoints"` // Entry name -> files to load
	Assets      map[string]string     `json:"assets"`      // Module ID -> file
}

// EntryFiles lists the files an entry needs, in load order.
type EntryFiles struct {
	JS  []string `json:"js"`
	CSS []string `json:"css"`
}

// ReadManifest loads the manifest written to outDir.
func ReadManifest(outDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(outDir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "decode %s", ManifestFile)
	}
	return &m, nil
}

func (e *emitter) manifest() error {
	data, err := json.MarshalIndent(e.res.Manifest, "", "  ")
	if err != nil {
		return &errors.EmitError{Path: ManifestFile, Cause: err}
	}
	return e.write(ManifestFile, append(data, '\n'), "")
}
