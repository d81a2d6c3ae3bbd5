package export

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Staged is a file fully written beside its destination but not yet moved
// into place. A run stages every output first and commits them only once
// all of them were written.
type Staged struct {
	Path string
	Size int64
	tmp  string
}

// stage writes data to path+".tmp".
func stage(path string, data []byte) (*Staged, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, eris.Errorf("export: %s is a directory", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrap(err, "export: create output dir")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return nil, eris.Wrap(err, "export: write")
	}
	return &Staged{Path: path, Size: int64(len(data)), tmp: tmp}, nil
}

// Commit moves the staged file to its destination.
func (s *Staged) Commit() error {
	if err := os.Rename(s.tmp, s.Path); err != nil {
		_ = os.Remove(s.tmp)
		return eris.Wrapf(err, "export: move %s into place", filepath.Base(s.Path))
	}
	return nil
}

// Discard removes the staged file. A nil Staged is a no-op.
func (s *Staged) Discard() {
	if s != nil {
		_ = os.Remove(s.tmp)
	}
}
