package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ExtractZIP unpacks every file entry of the archive below destDir and
// returns their paths in archive order. An entry already on disk at its
// archived size is not rewritten.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	var out []string
	err := withZIP(zipPath, func(files []*zip.File) error {
		for _, f := range files {
			if f.FileInfo().IsDir() {
				continue
			}
			p, err := unpackEntry(f, destDir)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

// ExtractZIPFiles unpacks only the named entries, in the order named. A name
// matches an entry's full path first, then its base name, so a shapefile
// nested in a folder still resolves.
func ExtractZIPFiles(zipPath, destDir string, names ...string) ([]string, error) {
	out := make([]string, 0, len(names))
	err := withZIP(zipPath, func(files []*zip.File) error {
		for _, name := range names {
			f := lookupEntry(files, name)
			if f == nil {
				return eris.Errorf("zip: %q not found in %s", name, filepath.Base(zipPath))
			}
			p, err := unpackEntry(f, destDir)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindExtracted returns the first path ending in suffix, ignoring case.
func FindExtracted(paths []string, suffix string) (string, bool) {
	for _, p := range paths {
		if len(p) >= len(suffix) && strings.EqualFold(p[len(p)-len(suffix):], suffix) {
			return p, true
		}
	}
	return "", false
}

func withZIP(zipPath string, fn func([]*zip.File) error) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrapf(err, "zip: open %s", filepath.Base(zipPath))
	}
	defer r.Close() //nolint:errcheck
	return fn(r.File)
}

func lookupEntry(files []*zip.File, name string) *zip.File {
	var byBase *zip.File
	for _, f := range files {
		if f.Name == name {
			return f
		}
		if byBase == nil && !f.FileInfo().IsDir() && filepath.Base(f.Name) == name {
			byBase = f
		}
	}
	return byBase
}

// unpackEntry writes a file entry below destDir, refusing names that escape it.
func unpackEntry(f *zip.File, destDir string) (string, error) {
	root := filepath.Clean(destDir)
	dest := filepath.Join(root, f.Name)
	if !strings.HasPrefix(dest, root+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: entry %q escapes %s (zip slip)", f.Name, root)
	}

	if info, err := os.Stat(dest); err == nil && info.Size() > 0 && uint64(info.Size()) == f.UncompressedSize64 {
		zap.L().Debug("zip entry present", zap.String("component", "fetcher.zip"), zap.String("path", dest))
		return dest, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	if _, err := writeFile(dest, rc); err != nil {
		return "", eris.Wrapf(err, "zip: extract %s", f.Name)
	}
	return dest, nil
}
