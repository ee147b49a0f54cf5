// Package dataset reads the reference bird table the prediction form draws
// its options from, and computes the aggregates behind the exploratory
// charts.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx/v2"
)

// ErrUnsupportedFormat is returned for files that are neither .xlsx nor .csv.
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// Options configures Load.
type Options struct {
	Sheet string // xlsx sheet name, first sheet when empty
}

// Load reads a workbook or CSV file. The first row is the header.
func Load(path string, opts Options) (*Table, error) {
	var (
		rows [][]string
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = ReadXLSX(path, opts.Sheet)
	case ".csv":
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open dataset: %w", err)
		}
		defer f.Close()
		rows, err = ReadCSV(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}

	t, err := NewTable(rows)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}

	log.Debug().
		Str("dataset_path", path).
		Int("rows", t.Len()).
		Int("columns", len(t.header)).
		Msg("dataset loaded")
	return t, nil
}

// ReadXLSX returns every row of the named sheet, or of the first sheet when
// sheet is empty.
func ReadXLSX(path, sheet string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open file: %w", err)
	}

	s, err := getSheet(f, sheet)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(s.Rows))
	for _, row := range s.Rows {
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, fmt.Errorf("xlsx: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, fmt.Errorf("xlsx: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// ReadCSV returns every record of r. Rows may differ in length.
func ReadCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read: %w", err)
		}
		rows = append(rows, record)
	}
}
