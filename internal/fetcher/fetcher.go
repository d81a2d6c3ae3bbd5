package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Fetcher defines the interface for retrieving raw data files.
type Fetcher interface {
	// Download fetches the source and returns its body.
	Download(ctx context.Context, source string) (io.ReadCloser, error)

	// DownloadToFile fetches the source and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, source string, path string) (int64, error)
}

// SourceKind identifies how a raw data source is reached.
type SourceKind int

const (
	SourceLocal SourceKind = iota
	SourceHTTP
	SourceFTP
)

// String returns the kind name used in logs.
func (k SourceKind) String() string {
	switch k {
	case SourceHTTP:
		return "http"
	case SourceFTP:
		return "ftp"
	default:
		return "file"
	}
}

// KindOf classifies a source. Anything without an http, https or ftp scheme is local.
func KindOf(source string) SourceKind {
	u, err := url.Parse(source)
	if err != nil {
		return SourceLocal
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return SourceHTTP
	case "ftp":
		return SourceFTP
	default:
		return SourceLocal
	}
}

// Router dispatches each source to the fetcher for its kind.
type Router struct {
	HTTP  Fetcher
	FTP   Fetcher
	Local Fetcher
}

// NewRouter builds a Router with the default fetcher for every kind.
func NewRouter(httpOpts HTTPOptions, ftpOpts FTPOptions) *Router {
	return &Router{
		HTTP:  NewHTTPFetcher(httpOpts),
		FTP:   NewFTPFetcher(ftpOpts),
		Local: &FileFetcher{},
	}
}

func (r *Router) pick(source string) (Fetcher, error) {
	kind := KindOf(source)
	var f Fetcher
	switch kind {
	case SourceHTTP:
		f = r.HTTP
	case SourceFTP:
		f = r.FTP
	default:
		f = r.Local
	}
	if f == nil {
		return nil, eris.Errorf("fetcher: no %s fetcher configured for %s", kind, source)
	}
	return f, nil
}

// Download fetches source with the fetcher for its kind.
func (r *Router) Download(ctx context.Context, source string) (io.ReadCloser, error) {
	f, err := r.pick(source)
	if err != nil {
		return nil, err
	}
	return f.Download(ctx, source)
}

// DownloadToFile fetches source into path with the fetcher for its kind.
func (r *Router) DownloadToFile(ctx context.Context, source string, path string) (int64, error) {
	f, err := r.pick(source)
	if err != nil {
		return 0, err
	}
	return f.DownloadToFile(ctx, source, path)
}

// EnsureFile downloads source to path unless a non-empty file is already there.
// The download goes to a temporary sibling first so an interrupted transfer
// never leaves a file that later looks valid. Returns whether a download happened.
func EnsureFile(ctx context.Context, f Fetcher, source, path string) (bool, error) {
	log := zap.L().With(
		zap.String("component", "fetcher.ensure"),
		zap.String("source", source),
		zap.String("path", path),
	)

	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		log.Debug("file already present, skipping download")
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, eris.Wrap(err, "fetcher: create parent directory")
	}

	tmp := path + ".part"
	log.Info("downloading", zap.String("kind", KindOf(source).String()))
	n, err := f.DownloadToFile(ctx, source, tmp)
	if err != nil {
		_ = os.Remove(tmp)
		return false, eris.Wrapf(err, "fetcher: download %s", source)
	}
	if n == 0 {
		_ = os.Remove(tmp)
		return false, eris.Errorf("fetcher: %s returned no data", source)
	}
	if err := os.Rename(tmp, path); err != nil {
		return false, eris.Wrap(err, "fetcher: move download into place")
	}

	log.Info("downloaded", zap.Int64("bytes", n))
	return true, nil
}

// FileName derives a local file name from a source URL or path.
func FileName(source string) string {
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		return filepath.Base(u.Path)
	}
	return filepath.Base(source)
}
