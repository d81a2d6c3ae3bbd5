package fetcher

import (
	"bufio"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/rotisserie/eris"
)

var gzipMagic = []byte{0x1f, 0x8b}

// OpenMaybeGzip opens path and decompresses it when it starts with the gzip
// magic bytes. Plain files are returned as they are.
func OpenMaybeGzip(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "gzip: open file")
	}

	br := bufio.NewReaderSize(f, 64*1024)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		_ = f.Close()
		return nil, eris.Wrap(err, "gzip: peek header")
	}

	if len(head) < len(gzipMagic) || head[0] != gzipMagic[0] || head[1] != gzipMagic[1] {
		return &readCloser{Reader: br, close: f.Close}, nil
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		_ = f.Close()
		return nil, eris.Wrap(err, "gzip: open stream")
	}
	return &readCloser{Reader: zr, close: func() error {
		zerr := zr.Close()
		ferr := f.Close()
		if zerr != nil {
			return eris.Wrap(zerr, "gzip: close stream")
		}
		return ferr
	}}, nil
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r *readCloser) Close() error { return r.close() }
