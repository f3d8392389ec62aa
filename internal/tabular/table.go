// Package tabular reads delimited exports into header-indexed tables and
// provides null-safe column coercion for downstream processors.
package tabular

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Table is one parsed export: a header row plus data rows. Column lookup is
// case-insensitive on the trimmed header name.
type Table struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// ReadOptions configures the CSV reader.
type ReadOptions struct {
	Delimiter rune   // default ','
	Encoding  string // "", "utf-8", "windows-1256", "windows-1252"
}

// New builds a Table from a header and rows. Short rows are tolerated;
// missing cells read as empty strings.
func New(columns []string, rows [][]string) *Table {
	t := &Table{Columns: columns, Rows: rows, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		t.index[normalizeCol(c)] = i
	}
	return t
}

func normalizeCol(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// decoder returns the charset decoder for the named encoding. Chat exports
// from regional helpdesk tools commonly arrive as windows-1256.
func decoder(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "windows-1256", "cp1256":
		return charmap.Windows1256.NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	}
	return nil, eris.Errorf("tabular: unsupported encoding %q", name)
}

// ReadCSV parses a delimited export. The first row is the header. Rows may
// have fewer or more fields than the header.
func ReadCSV(r io.Reader, opts ReadOptions) (*Table, error) {
	dec, err := decoder(opts.Encoding)
	if err != nil {
		return nil, err
	}
	if dec != nil {
		r = transform.NewReader(r, dec)
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // allow variable fields

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("tabular: empty file")
	}
	if err != nil {
		return nil, eris.Wrap(err, "tabular: read header")
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "tabular: read row")
		}
		rows = append(rows, record)
	}

	return New(header, rows), nil
}

// ReadXLSX parses the first sheet of an XLSX workbook, first row as header.
func ReadXLSX(path string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("tabular: xlsx has no sheets")
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("tabular: empty sheet")
	}

	rowStrings := func(row *xlsx.Row) []string {
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = c.String()
		}
		return cells
	}

	header := rowStrings(sheet.Rows[0])
	rows := make([][]string, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		rows = append(rows, rowStrings(row))
	}

	return New(header, rows), nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[normalizeCol(name)]
	return ok
}

// Require fails fast with a named missing-column error so ingestion reports
// a schema mismatch instead of an opaque lookup failure downstream.
func (t *Table) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if !t.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("tabular: missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Get returns the cell at (row, col), or "" when the column is absent or the
// row is short.
func (t *Table) Get(row int, col string) string {
	idx, ok := t.index[normalizeCol(col)]
	if !ok || row < 0 || row >= len(t.Rows) || idx >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][idx]
}
