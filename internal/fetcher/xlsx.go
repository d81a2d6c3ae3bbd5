package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions selects a sheet and locates its header.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // rows above the header

	// HeaderColumn, when set, makes the first row containing this cell
	// (case-insensitive) the header. Census workbooks carry title rows.
	HeaderColumn string
}

// ReadXLSX returns the rows of one sheet from the header down. Blank rows
// are dropped and trailing empty cells trimmed.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	book, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}
	sheet, err := pickSheet(book, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	found := opts.HeaderColumn == ""
	for i, r := range sheet.Rows {
		if i < opts.SkipRows || r == nil {
			continue
		}
		cells := cellStrings(r)
		if len(cells) == 0 {
			continue
		}
		if !found {
			if !hasCell(cells, opts.HeaderColumn) {
				continue
			}
			found = true
		}
		rows = append(rows, cells)
	}
	if !found {
		return nil, eris.Errorf("xlsx: %s has no row with column %q", path, opts.HeaderColumn)
	}
	return rows, nil
}

// ReadXLSXTable reads a headed sheet and calls fn for every data row.
func ReadXLSXTable(path string, opts XLSXOptions, fn RowFunc) error {
	rows, err := ReadXLSX(path, opts)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return eris.Errorf("xlsx: %s has no header row", path)
	}
	tbl := NewTable(rows[0])
	for _, row := range rows[1:] {
		if err := fn(tbl, row); err != nil {
			return err
		}
	}
	return nil
}

func pickSheet(book *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName == "" {
		if opts.SheetIndex < 0 || opts.SheetIndex >= len(book.Sheets) {
			return nil, eris.Errorf("xlsx: sheet index %d out of range (%d sheets)", opts.SheetIndex, len(book.Sheets))
		}
		return book.Sheets[opts.SheetIndex], nil
	}
	if s, ok := book.Sheet[opts.SheetName]; ok {
		return s, nil
	}
	return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
}

func cellStrings(r *xlsx.Row) []string {
	out := make([]string, len(r.Cells))
	last := -1
	for j, c := range r.Cells {
		out[j] = strings.TrimSpace(c.String())
		if out[j] != "" {
			last = j
		}
	}
	return out[:last+1]
}

func hasCell(cells []string, name string) bool {
	for _, c := range cells {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}
