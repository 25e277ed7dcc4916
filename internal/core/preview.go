package core

import "fmt"

// BuildPreview validates parsed records and assembles the staged result.
// It performs no I/O. Records must already carry canonical column names.
func BuildPreview(pf *ParsedFile, rt RecordType, opts ImportOptions) (*PreviewResult, error) {
	opts = opts.withDefaults()

	def, ok := Definition(rt)
	if !ok {
		return nil, fmt.Errorf("unknown record type: %q", rt)
	}

	rv := NewRowValidator(def, opts.DateFormat)

	rows := make([]PreviewRow, len(pf.Records))
	for i, rec := range pf.Records {
		data := rec
		if opts.TrimWhitespace {
			data = NewRawRecord(rec.Len())
			for _, col := range rec.Columns {
				data.Set(col, trimValue(rec.Values[col]))
			}
		}

		rows[i] = PreviewRow{RowNumber: i + 1, Data: data}
		rv.Validate(&rows[i])
	}

	if opts.SkipDuplicates {
		flagDuplicates(def, rows)
	}
	flagOverlaps(def, rows, rv.dateLayout)

	result := &PreviewResult{
		Columns:        pf.Columns,
		DetectedFormat: pf.Format,
		RecordType:     rt,
		Rows:           rows,
		SheetName:      pf.SheetName,
		Warnings:       pf.Warnings,
	}
	result.recount()

	return result, nil
}

// SetRowEnabled marks a row skipped (disabled) or restores it, then recounts.
func (p *PreviewResult) SetRowEnabled(rowNumber int, enabled bool) error {
	for i := range p.Rows {
		if p.Rows[i].RowNumber == rowNumber {
			p.Rows[i].Skipped = !enabled
			p.recount()
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrRowNotFound, rowNumber)
}

// commitRows selects the rows an execute run submits. Skipped rows are never
// submitted. Error rows are submitted only when invalid rows are not skipped
// and the caller accepted them.
func (p *PreviewResult) commitRows(opts ImportOptions, acceptErrors bool) []PreviewRow {
	includeErrors := !opts.SkipInvalidRows && acceptErrors

	selected := make([]PreviewRow, 0, len(p.Rows))
	for _, row := range p.Rows {
		switch row.Status() {
		case RowSkipped:
			continue
		case RowError:
			if !includeErrors {
				continue
			}
		}
		selected = append(selected, row)
	}
	return selected
}
