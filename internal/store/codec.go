package store

import (
	"bytes"
	"encoding/gob"

	"github.com/klauspost/compress/zstd"
	"github.com/rotisserie/eris"

	"github.com/sells-group/spc/internal/studyarea"
)

// Encode serializes a cache as zstd-compressed gob.
func Encode(c *studyarea.Cache) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return nil, eris.Wrap(err, "store: gob encode cache")
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, eris.Wrap(err, "store: zstd writer")
	}
	defer enc.Close() //nolint:errcheck
	return enc.EncodeAll(buf.Bytes(), nil), nil
}

// Decode reverses Encode.
func Decode(payload []byte) (*studyarea.Cache, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, eris.Wrap(err, "store: zstd reader")
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, eris.Wrap(err, "store: zstd decode cache")
	}

	var c studyarea.Cache
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&c); err != nil {
		return nil, eris.Wrap(err, "store: gob decode cache")
	}
	return &c, nil
}
