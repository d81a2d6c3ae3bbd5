package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"

	"github.com/rotisserie/eris"
)

// FileFetcher reads sources that already live on a local or mounted filesystem.
type FileFetcher struct{}

// LocalPath strips a file:// scheme from source.
func LocalPath(source string) string {
	if u, err := url.Parse(source); err == nil && u.Scheme == "file" {
		return u.Path
	}
	return source
}

// Download opens the local file.
func (f *FileFetcher) Download(ctx context.Context, source string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "file: context cancelled")
	}
	rc, err := os.Open(LocalPath(source))
	if err != nil {
		return nil, eris.Wrap(err, "file: open source")
	}
	return rc, nil
}

// DownloadToFile copies the local file to path.
func (f *FileFetcher) DownloadToFile(ctx context.Context, source string, path string) (int64, error) {
	rc, err := f.Download(ctx, source)
	if err != nil {
		return 0, err
	}
	defer rc.Close() //nolint:errcheck
	return writeFile(path, rc)
}

// writeFile copies r into a new file at path and syncs it.
func writeFile(path string, r io.Reader) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	n, err := io.Copy(out, r)
	if err != nil {
		_ = out.Close()
		return n, eris.Wrap(err, "write file")
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return n, eris.Wrap(err, "sync file")
	}
	return n, eris.Wrap(out.Close(), "close file")
}
