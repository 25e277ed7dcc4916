// Package sheet reads tabular data out of .xlsx workbooks.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoData is returned when no sheet in the workbook has a header row.
var ErrNoData = errors.New("spreadsheet has no data")

// Table is one worksheet: the first non-blank row is the header.
// Blank rows are dropped. Cells keep the workbook's display formatting.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Read opens a workbook and returns the first sheet that has a header row.
func Read(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}

		tbl := fromRows(name, rows)
		if tbl != nil {
			return tbl, nil
		}
	}

	return nil, ErrNoData
}

// fromRows builds a Table, or returns nil when rows hold no header.
func fromRows(name string, rows [][]string) *Table {
	var tbl *Table
	for _, row := range rows {
		if blank(row) {
			continue
		}
		if tbl == nil {
			tbl = &Table{Name: name, Header: trimTrailing(row)}
			continue
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	return tbl
}

// trimTrailing drops empty cells after the last named header.
func trimTrailing(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return row[:end]
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
