package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/rosterimport/internal/logging"
	"github.com/JonMunkholm/rosterimport/internal/sheet"
)

// LocalParseWarning is attached to every preview read by the in-process reader.
const LocalParseWarning = "client-side parsing used; some formatting may be lost"

// SheetResult is a spreadsheet read by one strategy.
type SheetResult struct {
	Columns   []string
	Rows      []RawRecord
	SheetName string
	Warnings  []string
}

// SpreadsheetStrategy is one way of reading a spreadsheet. The parser tries
// strategies in order until one succeeds.
type SpreadsheetStrategy interface {
	Name() string
	ParseSpreadsheet(ctx context.Context, file FileInput) (*SheetResult, error)
}

func (p *Parser) parseSpreadsheet(ctx context.Context, file FileInput) (*ParsedFile, error) {
	if len(p.spreadsheet) == 0 {
		return nil, newParseError("spreadsheet", errors.New("no spreadsheet reader configured"))
	}

	logger := logging.WithFields(ctx, "file", file.Name)

	var errs []error
	for _, strategy := range p.spreadsheet {
		res, err := strategy.ParseSpreadsheet(ctx, file)
		if err != nil {
			logger.Warn("spreadsheet strategy failed", "strategy", strategy.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", strategy.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		logger.Debug("spreadsheet parsed", "strategy", strategy.Name(), "rows", len(res.Rows))
		pf := &ParsedFile{
			Columns:   res.Columns,
			Records:   res.Rows,
			SheetName: res.SheetName,
			Warnings:  res.Warnings,
		}
		if len(pf.Columns) == 0 {
			pf.Columns = unionColumns(res.Rows)
		}
		return pf, nil
	}

	return nil, newParseError("spreadsheet", errors.Join(errs...))
}

func unionColumns(records []RawRecord) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, rec := range records {
		for _, c := range rec.Columns {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	return cols
}

// LocalSpreadsheet reads workbooks in-process. It is the last strategy in the
// chain and always reports reduced fidelity.
type LocalSpreadsheet struct{}

func (LocalSpreadsheet) Name() string { return "local" }

func (LocalSpreadsheet) ParseSpreadsheet(ctx context.Context, file FileInput) (*SheetResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tbl, err := sheet.Read(bytes.NewReader(file.Data))
	if err != nil {
		return nil, err
	}

	cols, rows := SheetRecords(tbl.Header, tbl.Rows)

	return &SheetResult{
		Columns:   cols,
		Rows:      rows,
		SheetName: tbl.Name,
		Warnings:  []string{LocalParseWarning},
	}, nil
}

// SheetRecords turns a header row and its data rows into records keyed by
// normalized column names. Short rows are padded with empty strings.
func SheetRecords(header []string, cells [][]string) ([]string, []RawRecord) {
	cols := normalizeHeaders(header)
	rows := make([]RawRecord, 0, len(cells))
	for _, row := range cells {
		rec := NewRawRecord(len(cols))
		for i, col := range cols {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			rec.Set(col, val)
		}
		rows = append(rows, rec)
	}
	return cols, rows
}
