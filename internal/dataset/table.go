package dataset

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"

	"bird-conservation/internal/traits"
)

// ErrMissingColumn is returned when a named column is not in the header.
var ErrMissingColumn = errors.New("column not found")

// Table is an in-memory string table. Cells are trimmed and every row has
// as many cells as the header.
type Table struct {
	header []string
	index  map[string]int
	rows   [][]string
}

// NewTable builds a table from raw rows, the first of which is the header.
// Rows with no content are dropped.
func NewTable(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no header row")
	}

	t := &Table{index: make(map[string]int)}
	for i, name := range rows[0] {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := t.index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		t.index[name] = i
	}
	t.header = make([]string, len(rows[0]))
	for i, name := range rows[0] {
		t.header[i] = strings.TrimSpace(name)
	}

	for _, raw := range rows[1:] {
		row := make([]string, len(t.header))
		empty := true
		for i := range row {
			if i < len(raw) {
				row[i] = strings.TrimSpace(raw[i])
			}
			if row[i] != "" {
				empty = false
			}
		}
		if !empty {
			t.rows = append(t.rows, row)
		}
	}
	return t, nil
}

// Header returns the column names.
func (t *Table) Header() []string {
	return slices.Clone(t.header)
}

// Len is the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// HasColumn reports whether the header names col.
func (t *Table) HasColumn(col string) bool {
	_, ok := t.index[col]
	return ok
}

func (t *Table) col(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	return i, nil
}

// Column returns every cell of a column in row order.
func (t *Table) Column(name string) ([]string, error) {
	i, err := t.col(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[i]
	}
	return out, nil
}

// Unique returns the distinct non-empty values of a column in order of
// first appearance.
func (t *Table) Unique(name string) ([]string, error) {
	values, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out, nil
}

// Filter keeps rows whose group is one of groups and whose migratory status
// is one of migratory. An empty list does not filter.
func (t *Table) Filter(groups, migratory []string) (*Table, error) {
	gi, err := t.col(traits.FieldGroup)
	if err != nil && len(groups) > 0 {
		return nil, err
	}
	mi, err := t.col(traits.FieldMigratoryStatus)
	if err != nil && len(migratory) > 0 {
		return nil, err
	}

	out := &Table{header: t.header, index: t.index}
	for _, row := range t.rows {
		if len(groups) > 0 && !slices.Contains(groups, row[gi]) {
			continue
		}
		if len(migratory) > 0 && !slices.Contains(migratory, row[mi]) {
			continue
		}
		out.rows = append(out.rows, row)
	}
	return out, nil
}

// Count is one bar or pie slice.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ValueCounts counts the non-empty values of a column, largest first. Ties
// keep first-appearance order.
func (t *Table) ValueCounts(name string) ([]Count, error) {
	values, err := t.Column(name)
	if err != nil {
		return nil, err
	}

	pos := make(map[string]int)
	var counts []Count
	for _, v := range values {
		if v == "" {
			continue
		}
		i, ok := pos[v]
		if !ok {
			i = len(counts)
			pos[v] = i
			counts = append(counts, Count{Value: v})
		}
		counts[i].Count++
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	return counts, nil
}

// Point is one scatter marker.
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color,omitempty"`
}

// Points pairs two numeric columns, coloured by a third. Rows where x or y
// does not parse are skipped. color may be empty.
func (t *Table) Points(x, y, color string) ([]Point, error) {
	xi, err := t.col(x)
	if err != nil {
		return nil, err
	}
	yi, err := t.col(y)
	if err != nil {
		return nil, err
	}
	ci := -1
	if color != "" {
		if ci, err = t.col(color); err != nil {
			return nil, err
		}
	}

	var out []Point
	for _, row := range t.rows {
		xv, err := parseNumber(row[xi])
		if err != nil {
			continue
		}
		yv, err := parseNumber(row[yi])
		if err != nil {
			continue
		}
		p := Point{X: xv, Y: yv}
		if ci >= 0 {
			p.Color = row[ci]
		}
		out = append(out, p)
	}
	return out, nil
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return v, nil
}
