package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RecordType is the domain category a file's rows represent.
type RecordType string

const (
	RecordPeople      RecordType = "people"
	RecordAssignments RecordType = "assignments"
	RecordAbsences    RecordType = "absences"
	RecordSchedules   RecordType = "schedules"
)

// RecordTypes lists every supported record type in display order.
var RecordTypes = []RecordType{RecordPeople, RecordAssignments, RecordAbsences, RecordSchedules}

// ParseRecordType resolves a case-insensitive record type name.
func ParseRecordType(s string) (RecordType, error) {
	rt := RecordType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range RecordTypes {
		if rt == known {
			return rt, nil
		}
	}
	return "", fmt.Errorf("unknown record type: %q", s)
}

// Format is the detected encoding of an uploaded file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// RowStatus is derived from a row's diagnostics; it is never stored.
type RowStatus string

const (
	RowValid   RowStatus = "valid"
	RowWarning RowStatus = "warning"
	RowError   RowStatus = "error"
	RowSkipped RowStatus = "skipped"
)

// RawRecord is an ordered mapping from column name to an untyped value.
// Values are strings, json.Number, bool, nil, or []any.
type RawRecord struct {
	Columns []string
	Values  map[string]any
}

// NewRawRecord returns an empty record with room for n columns.
func NewRawRecord(n int) RawRecord {
	return RawRecord{
		Columns: make([]string, 0, n),
		Values:  make(map[string]any, n),
	}
}

// Set assigns a value, appending the column if it is new.
func (r *RawRecord) Set(column string, value any) {
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	if _, exists := r.Values[column]; !exists {
		r.Columns = append(r.Columns, column)
	}
	r.Values[column] = value
}

// Get returns the value for column and whether the column is present.
func (r RawRecord) Get(column string) (any, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// Text returns the value for column rendered as a string ("" when absent).
func (r RawRecord) Text(column string) string {
	return cellString(r.Values[column])
}

// Len returns the number of columns.
func (r RawRecord) Len() int {
	return len(r.Columns)
}

// Clone returns a copy that shares no column slice or map with r.
func (r RawRecord) Clone() RawRecord {
	c := NewRawRecord(len(r.Columns))
	for _, col := range r.Columns {
		c.Set(col, r.Values[col])
	}
	return c
}

// MarshalJSON encodes the record as an object with keys in column order.
func (r RawRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Values[col])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object, keeping key order.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record must be a JSON object")
	}

	rec, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

// ValidationIssue is one diagnostic attached to exactly one row.
type ValidationIssue struct {
	RowNumber int      `json:"rowNumber"`
	Column    string   `json:"column"`
	Value     any      `json:"value"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
}

// PreviewRow is a staged row with its diagnostics.
// Skipped marks a row excluded by caller policy; it overrides every other status.
type PreviewRow struct {
	RowNumber int
	Data      RawRecord
	Errors    []ValidationIssue
	Warnings  []ValidationIssue
	Skipped   bool
}

// Status derives the row status from its diagnostics.
func (r PreviewRow) Status() RowStatus {
	switch {
	case r.Skipped:
		return RowSkipped
	case len(r.Errors) > 0:
		return RowError
	case len(r.Warnings) > 0:
		return RowWarning
	default:
		return RowValid
	}
}

func (r *PreviewRow) addIssue(issue ValidationIssue) {
	issue.RowNumber = r.RowNumber
	if issue.Severity == SeverityError {
		r.Errors = append(r.Errors, issue)
		return
	}
	r.Warnings = append(r.Warnings, issue)
}

func (r PreviewRow) MarshalJSON() ([]byte, error) {
	errs, warns := r.Errors, r.Warnings
	if errs == nil {
		errs = []ValidationIssue{}
	}
	if warns == nil {
		warns = []ValidationIssue{}
	}
	return json.Marshal(struct {
		RowNumber int               `json:"rowNumber"`
		Data      RawRecord         `json:"data"`
		Status    RowStatus         `json:"status"`
		Errors    []ValidationIssue `json:"errors"`
		Warnings  []ValidationIssue `json:"warnings"`
	}{r.RowNumber, r.Data, r.Status(), errs, warns})
}

// PreviewResult is the staged, human-reviewable outcome of parsing and validation.
// The four status counts always partition Rows.
type PreviewResult struct {
	TotalRows      int          `json:"totalRows"`
	ValidRows      int          `json:"validRows"`
	ErrorRows      int          `json:"errorRows"`
	WarningRows    int          `json:"warningRows"`
	SkippedRows    int          `json:"skippedRows"`
	Columns        []string     `json:"columns"`
	DetectedFormat Format       `json:"detectedFormat"`
	RecordType     RecordType   `json:"recordType"`
	Rows           []PreviewRow `json:"rows"`
	SheetName      string       `json:"sheetName,omitempty"`
	Warnings       []string     `json:"warnings,omitempty"`
}

// Clone returns a copy whose rows can be read while the original is edited.
// Row data and diagnostics are shared; they are never mutated after preview.
func (p *PreviewResult) Clone() *PreviewResult {
	if p == nil {
		return nil
	}
	c := *p
	c.Rows = append([]PreviewRow(nil), p.Rows...)
	c.Columns = append([]string(nil), p.Columns...)
	c.Warnings = append([]string(nil), p.Warnings...)
	return &c
}

// recount rebuilds the summary counts from the rows.
func (p *PreviewResult) recount() {
	p.TotalRows = len(p.Rows)
	p.ValidRows, p.ErrorRows, p.WarningRows, p.SkippedRows = 0, 0, 0, 0
	for _, row := range p.Rows {
		switch row.Status() {
		case RowValid:
			p.ValidRows++
		case RowError:
			p.ErrorRows++
		case RowWarning:
			p.WarningRows++
		case RowSkipped:
			p.SkippedRows++
		}
	}
}

// ImportOptions controls validation and commit behavior.
type ImportOptions struct {
	SkipDuplicates  bool       `json:"skipDuplicates"`
	UpdateExisting  bool       `json:"updateExisting"`
	SkipInvalidRows bool       `json:"skipInvalidRows"`
	DateFormat      string     `json:"dateFormat"`
	TrimWhitespace  bool       `json:"trimWhitespace"`
	DataType        RecordType `json:"dataType,omitempty"`
}

// DefaultImportOptions returns the documented defaults.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		SkipDuplicates:  true,
		UpdateExisting:  false,
		SkipInvalidRows: true,
		DateFormat:      DefaultDateFormat,
		TrimWhitespace:  true,
		DataType:        RecordPeople,
	}
}

// withDefaults fills zero-valued string options from DefaultImportOptions.
func (o ImportOptions) withDefaults() ImportOptions {
	if strings.TrimSpace(o.DateFormat) == "" {
		o.DateFormat = DefaultDateFormat
	}
	if o.DataType == "" {
		o.DataType = RecordPeople
	}
	return o
}

// FileInput is an uploaded file as received from the caller.
type FileInput struct {
	Name        string
	ContentType string
	Data        []byte
}

// Confirmation is the caller's explicit go-ahead to commit a staged preview.
type Confirmation struct {
	Confirmed bool `json:"confirmed"`
	// AcceptErrors opts error rows into the commit set when SkipInvalidRows is off.
	AcceptErrors bool `json:"acceptErrors"`
}

// ImportResult summarizes a finished (or stopped) execute run.
type ImportResult struct {
	BatchID      string         `json:"batchId"`
	RecordType   RecordType     `json:"recordType"`
	Batches      int            `json:"batches"`
	SkippedCount int            `json:"skippedCount"`
	ImportedIDs  []string       `json:"importedIds,omitempty"`
	Progress     ImportProgress `json:"progress"`
	Duration     time.Duration  `json:"duration"`
}
