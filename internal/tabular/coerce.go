package tabular

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// Datetime layouts seen across PBX and helpdesk exports, tried in order.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"01/02/2006 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// ParseTime tries the known export layouts. Invalid input yields a null.
func ParseTime(s string) sql.NullTime {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullTime{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return sql.NullTime{Time: t, Valid: true}
		}
	}
	return sql.NullTime{}
}

// ParseFloat coerces a cell to float64, null on garbage or blank.
func ParseFloat(s string) sql.NullFloat64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullFloat64{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// ParseInt coerces a cell to int64, null on garbage or blank. Values written
// as floats by spreadsheet tools ("12.0") are accepted and truncated.
func ParseInt(s string) sql.NullInt64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullInt64{}
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return sql.NullInt64{Int64: v, Valid: true}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return sql.NullInt64{Int64: int64(f), Valid: true}
	}
	return sql.NullInt64{}
}

// Floats coerces a whole column independently per cell. A malformed cell
// nulls only itself, never a sibling row or column. An absent column yields
// all nulls.
func (t *Table) Floats(col string) []sql.NullFloat64 {
	out := make([]sql.NullFloat64, t.Len())
	for i := range t.Rows {
		out[i] = ParseFloat(t.Get(i, col))
	}
	return out
}

// Ints coerces a whole column independently per cell.
func (t *Table) Ints(col string) []sql.NullInt64 {
	out := make([]sql.NullInt64, t.Len())
	for i := range t.Rows {
		out[i] = ParseInt(t.Get(i, col))
	}
	return out
}

// Times coerces a datetime column independently per cell.
func (t *Table) Times(col string) []sql.NullTime {
	out := make([]sql.NullTime, t.Len())
	for i := range t.Rows {
		out[i] = ParseTime(t.Get(i, col))
	}
	return out
}

// TimesAtomic coerces a datetime column all-or-nothing: if any non-blank
// cell fails to parse, the entire column comes back null. Used for the call
// timestamp so derived date columns are never partially populated.
func (t *Table) TimesAtomic(col string) []sql.NullTime {
	out := make([]sql.NullTime, t.Len())
	for i := range t.Rows {
		raw := strings.TrimSpace(t.Get(i, col))
		if raw == "" {
			continue
		}
		parsed := ParseTime(raw)
		if !parsed.Valid {
			return make([]sql.NullTime, t.Len())
		}
		out[i] = parsed
	}
	return out
}

// Strings returns a column with cells trimmed of surrounding whitespace and
// tabs, protecting unique-id comparisons from stray formatting.
func (t *Table) Strings(col string) []string {
	out := make([]string, t.Len())
	for i := range t.Rows {
		out[i] = strings.TrimSpace(t.Get(i, col))
	}
	return out
}
