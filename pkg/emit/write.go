package emit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/matzehuels/towerpack/pkg/errors"
)

// writeAtomic writes data to a temporary file next to path and renames it
// into place, so readers never observe a partial file.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".towerpack-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// clean removes the contents of dir but keeps dir itself.
func clean(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return &errors.EmitError{Path: dir, Cause: err}
	}
	if filepath.Dir(abs) == abs {
		return &errors.EmitError{Path: abs, Cause: fmt.Errorf("refusing to clean filesystem root")}
	}
	entries, err := os.ReadDir(abs)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return &errors.EmitError{Path: abs, Cause: err}
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(abs, e.Name())); err != nil {
			return &errors.EmitError{Path: filepath.Join(abs, e.Name()), Cause: err}
		}
	}
	return nil
}
