// Package fetcher downloads raw data files and reads the CSV, XLSX, gzip and
// ZIP containers they arrive in.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune            // default ','
	HasHeader  bool            // if true, first row is skipped but sent to HeaderCh
	HeaderCh   chan<- []string // optional: receives the header row
	Comment    rune            // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// StreamCSV reads CSV records and sends rows to a channel. A leading UTF-8
// byte order mark is dropped. Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1
		reader.ReuseRecord = false

		first := true
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			if first && opts.HasHeader {
				first = false
				if opts.HeaderCh != nil {
					select {
					case opts.HeaderCh <- record:
					case <-ctx.Done():
						errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled sending header")
						return
					}
				}
				continue
			}
			first = false

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// Table resolves column names against a header row.
type Table struct {
	columns []string
	index   map[string]int
}

// NewTable indexes header. Lookups are case-insensitive.
func NewTable(header []string) *Table {
	t := &Table{columns: header, index: make(map[string]int, len(header))}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := t.index[key]; !dup {
			t.index[key] = i
		}
	}
	return t
}

// Columns returns the header as read.
func (t *Table) Columns() []string { return t.columns }

// Has reports whether the column exists.
func (t *Table) Has(col string) bool {
	_, ok := t.index[strings.ToLower(col)]
	return ok
}

// Require fails when any of cols is missing from the header.
func (t *Table) Require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("csv: missing columns %s (have %s)", strings.Join(missing, ", "), strings.Join(t.columns, ", "))
	}
	return nil
}

// Get returns the value of col in row, or "" when the column or cell is absent.
func (t *Table) Get(row []string, col string) string {
	i, ok := t.index[strings.ToLower(col)]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// RowFunc handles one data row of a headed table.
type RowFunc func(t *Table, row []string) error

// ReadCSV streams a headed CSV and calls fn for every data row. An error from
// fn stops the stream and is returned as-is.
func ReadCSV(ctx context.Context, r io.Reader, fn RowFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(ctx, r, CSVOptions{
		HasHeader:  true,
		HeaderCh:   headerCh,
		LazyQuotes: true,
		TrimSpace:  true,
	})

	var tbl *Table
	for row := range rowCh {
		if tbl == nil {
			tbl = NewTable(<-headerCh)
		}
		if err := fn(tbl, row); err != nil {
			cancel()
			for range rowCh {
			}
			return err
		}
	}
	return <-errCh
}

// ReadCSVFile opens path, transparently gunzipping it, and runs ReadCSV over it.
func ReadCSVFile(ctx context.Context, path string, fn RowFunc) error {
	rc, err := OpenMaybeGzip(path)
	if err != nil {
		return err
	}
	defer rc.Close() //nolint:errcheck

	if err := ReadCSV(ctx, rc, fn); err != nil {
		return eris.Wrapf(err, "csv: read %s", path)
	}
	return nil
}
