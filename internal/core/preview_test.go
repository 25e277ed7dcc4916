package core

import (
	"errors"
	"strings"
	"testing"
)

// sheetOf builds a parsed CSV file from canonical columns and string cells.
func sheetOf(columns []string, rows ...[]string) *ParsedFile {
	records := make([]RawRecord, len(rows))
	for i, row := range rows {
		rec := NewRawRecord(len(columns))
		for j, col := range columns {
			val := ""
			if j < len(row) {
				val = row[j]
			}
			rec.Set(col, val)
		}
		records[i] = rec
	}
	return &ParsedFile{Format: FormatCSV, Columns: columns, Records: records}
}

var peopleColumns = []string{"name", "email", "pgy_level", "type"}

func hasMessage(issues []ValidationIssue, substr string) bool {
	for _, is := range issues {
		if strings.Contains(is.Message, substr) {
			return true
		}
	}
	return false
}

func buildPreview(t *testing.T, pf *ParsedFile, rt RecordType, opts ImportOptions) *PreviewResult {
	t.Helper()
	res, err := BuildPreview(pf, rt, opts)
	if err != nil {
		t.Fatalf("BuildPreview() error = %v", err)
	}
	return res
}

func assertPartition(t *testing.T, res *PreviewResult) {
	t.Helper()
	sum := res.ValidRows + res.ErrorRows + res.WarningRows + res.SkippedRows
	if sum != res.TotalRows || res.TotalRows != len(res.Rows) {
		t.Errorf("counts %d+%d+%d+%d = %d, total %d, rows %d",
			res.ValidRows, res.ErrorRows, res.WarningRows, res.SkippedRows, sum, res.TotalRows, len(res.Rows))
	}
}

// ============================================================================
// Per-row rules
// ============================================================================

func TestBuildPreview_PeopleRules(t *testing.T) {
	tests := []struct {
		name        string
		row         []string
		wantStatus  RowStatus
		wantMessage string
	}{
		{
			name:       "valid row",
			row:        []string{"Ana", "ana@example.com", "3", "resident"},
			wantStatus: RowValid,
		},
		{
			name:        "missing name",
			row:         []string{"", "ana@example.com", "3", ""},
			wantStatus:  RowError,
			wantMessage: "Name is required",
		},
		{
			name:        "invalid email",
			row:         []string{"Ana", "not-an-email", "", ""},
			wantStatus:  RowError,
			wantMessage: "Invalid email format",
		},
		{
			name:        "pgy out of range",
			row:         []string{"Ana", "ana@example.com", "9", ""},
			wantStatus:  RowError,
			wantMessage: "PGY level must be between 1 and 7",
		},
		{
			name:        "pgy not a number",
			row:         []string{"Ana", "ana@example.com", "two", ""},
			wantStatus:  RowError,
			wantMessage: "PGY level must be a whole number",
		},
		{
			name:       "pgy spreadsheet float",
			row:        []string{"Ana", "ana@example.com", "4.0", "Faculty"},
			wantStatus: RowValid,
		},
		{
			name:        "unknown type",
			row:         []string{"Ana", "ana@example.com", "", "student"},
			wantStatus:  RowError,
			wantMessage: "Type must be one of: resident, faculty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := buildPreview(t, sheetOf(peopleColumns, tt.row), RecordPeople, DefaultImportOptions())
			row := res.Rows[0]

			if row.Status() != tt.wantStatus {
				t.Errorf("Status() = %q, want %q (errors %v)", row.Status(), tt.wantStatus, row.Errors)
			}
			if tt.wantMessage != "" && !hasMessage(row.Errors, tt.wantMessage) {
				t.Errorf("errors %v missing %q", row.Errors, tt.wantMessage)
			}
			for _, is := range row.Errors {
				if is.RowNumber != 1 {
					t.Errorf("issue RowNumber = %d, want 1", is.RowNumber)
				}
			}
		})
	}
}

func TestBuildPreview_IssuesAccumulate(t *testing.T) {
	res := buildPreview(t, sheetOf(peopleColumns, []string{"", "bad", "0", "x"}), RecordPeople, DefaultImportOptions())

	if got := len(res.Rows[0].Errors); got != 4 {
		t.Errorf("len(Errors) = %d, want 4: %v", got, res.Rows[0].Errors)
	}
	if res.ErrorRows != 1 {
		t.Errorf("ErrorRows = %d, want 1 (one row, many issues)", res.ErrorRows)
	}
}

func TestBuildPreview_TrimWhitespace(t *testing.T) {
	pf := sheetOf(peopleColumns, []string{"  Ana ", " ana@example.com\t", " 2 ", ""})

	res := buildPreview(t, pf, RecordPeople, DefaultImportOptions())
	if got := res.Rows[0].Data.Text("name"); got != "Ana" {
		t.Errorf("trimmed name = %q, want %q", got, "Ana")
	}

	opts := DefaultImportOptions()
	opts.TrimWhitespace = false
	res = buildPreview(t, pf, RecordPeople, opts)
	if got := res.Rows[0].Data.Text("name"); got != "  Ana " {
		t.Errorf("untrimmed name = %q", got)
	}
	if !hasMessage(res.Rows[0].Errors, "Invalid email format") {
		t.Errorf("untrimmed email passed validation: %v", res.Rows[0].Errors)
	}
	if !hasMessage(res.Rows[0].Errors, "whole number") {
		t.Errorf("untrimmed pgy_level passed validation: %v", res.Rows[0].Errors)
	}
	if res.Rows[0].Status() != RowError {
		t.Errorf("status = %q, want error", res.Rows[0].Status())
	}
}

func TestBuildPreview_DateFormat(t *testing.T) {
	cols := []string{"person_name", "start_date", "end_date", "absence_type"}

	tests := []struct {
		name       string
		format     string
		row        []string
		wantStatus RowStatus
		wantIssue  string
	}{
		{
			name:       "matches configured format",
			format:     "YYYY-MM-DD",
			row:        []string{"John", "2024-01-01", "2024-01-05", "vacation"},
			wantStatus: RowValid,
		},
		{
			name:       "custom format",
			format:     "MM/DD/YYYY",
			row:        []string{"John", "01/01/2024", "01/05/2024", "Sick"},
			wantStatus: RowValid,
		},
		{
			name:       "alternate layout is a warning",
			format:     "YYYY-MM-DD",
			row:        []string{"John", "01/01/2024", "2024-01-05", "vacation"},
			wantStatus: RowWarning,
			wantIssue:  "was interpreted",
		},
		{
			name:       "unparseable date",
			format:     "YYYY-MM-DD",
			row:        []string{"John", "soon", "2024-01-05", "vacation"},
			wantStatus: RowError,
			wantIssue:  "is not a valid date",
		},
		{
			name:       "end before start",
			format:     "YYYY-MM-DD",
			row:        []string{"John", "2024-01-10", "2024-01-01", "vacation"},
			wantStatus: RowError,
			wantIssue:  "End date must be on or after start date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultImportOptions()
			opts.DateFormat = tt.format

			row := buildPreview(t, sheetOf(cols, tt.row), RecordAbsences, opts).Rows[0]
			if row.Status() != tt.wantStatus {
				t.Errorf("Status() = %q, want %q (errors %v, warnings %v)", row.Status(), tt.wantStatus, row.Errors, row.Warnings)
			}
			if tt.wantIssue != "" && !hasMessage(append(row.Errors, row.Warnings...), tt.wantIssue) {
				t.Errorf("issues missing %q: %v %v", tt.wantIssue, row.Errors, row.Warnings)
			}
		})
	}
}

func TestBuildPreview_UnknownRecordType(t *testing.T) {
	if _, err := BuildPreview(sheetOf(peopleColumns), RecordType("nope"), DefaultImportOptions()); err == nil {
		t.Error("BuildPreview() error = nil, want unknown record type")
	}
}

// ============================================================================
// Cross-row rules
// ============================================================================

func TestBuildPreview_Duplicates(t *testing.T) {
	pf := sheetOf(peopleColumns,
		[]string{"Ana", "ana@example.com", "1", ""},
		[]string{"Ben", "ben@example.com", "2", ""},
		[]string{" ANA", "Ana@Example.com", "1", ""},
		[]string{"Ana", "ana@example.com", "9", ""},
	)

	res := buildPreview(t, pf, RecordPeople, DefaultImportOptions())

	if s := res.Rows[0].Status(); s != RowValid {
		t.Errorf("first occurrence status = %q, want valid", s)
	}
	if s := res.Rows[2].Status(); s != RowWarning {
		t.Errorf("duplicate status = %q, want warning", s)
	}
	if !hasMessage(res.Rows[2].Warnings, "Duplicate entry found (first seen in row 1)") {
		t.Errorf("duplicate warnings = %v", res.Rows[2].Warnings)
	}
	// Errors outrank the duplicate warning.
	if s := res.Rows[3].Status(); s != RowError || !hasMessage(res.Rows[3].Warnings, "Duplicate entry found") {
		t.Errorf("row 4 status = %q warnings %v", s, res.Rows[3].Warnings)
	}
	assertPartition(t, res)

	opts := DefaultImportOptions()
	opts.SkipDuplicates = false
	res = buildPreview(t, pf, RecordPeople, opts)
	if s := res.Rows[2].Status(); s != RowValid {
		t.Errorf("with SkipDuplicates off, status = %q, want valid", s)
	}
}

func TestBuildPreview_Overlaps(t *testing.T) {
	cols := []string{"person_name", "start_date", "end_date", "absence_type"}
	pf := sheetOf(cols,
		[]string{"John", "2024-01-01", "2024-01-10", "vacation"},
		[]string{"John", "2024-01-05", "2024-01-15", "sick"},
		[]string{"John", "2024-02-01", "2024-02-05", "vacation"},
		[]string{"Mary", "2024-01-05", "2024-01-15", "vacation"},
		[]string{"john", "2024-01-10", "2024-01-10", "conference"},
	)

	res := buildPreview(t, pf, RecordAbsences, DefaultImportOptions())

	want := []RowStatus{RowValid, RowWarning, RowValid, RowValid, RowWarning}
	for i, row := range res.Rows {
		if row.Status() != want[i] {
			t.Errorf("row %d status = %q, want %q (warnings %v)", row.RowNumber, row.Status(), want[i], row.Warnings)
		}
	}
	if !hasMessage(res.Rows[1].Warnings, "Overlapping absence period (overlaps row 1)") {
		t.Errorf("row 2 warnings = %v", res.Rows[1].Warnings)
	}
	// Touching ranges share a day, so they overlap.
	if len(res.Rows[4].Warnings) != 1 {
		t.Errorf("row 5 should carry exactly one overlap warning, got %v", res.Rows[4].Warnings)
	}
	assertPartition(t, res)
}

func TestOverlaps(t *testing.T) {
	a := mustPeriod(t, "2024-01-01", "2024-01-10")
	tests := []struct {
		name string
		b    period
		want bool
	}{
		{"inside", mustPeriod(t, "2024-01-03", "2024-01-04"), true},
		{"straddles end", mustPeriod(t, "2024-01-05", "2024-01-15"), true},
		{"touches end", mustPeriod(t, "2024-01-10", "2024-01-12"), true},
		{"after", mustPeriod(t, "2024-01-11", "2024-01-12"), false},
		{"before", mustPeriod(t, "2023-12-01", "2023-12-31"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := overlaps(a, tt.b); got != tt.want {
				t.Errorf("overlaps() = %v, want %v", got, tt.want)
			}
			if got := overlaps(tt.b, a); got != tt.want {
				t.Errorf("overlaps() is not symmetric")
			}
		})
	}
}

func mustPeriod(t *testing.T, start, end string) period {
	t.Helper()
	s, _, ok1 := parseDate(start, DateLayout(DefaultDateFormat))
	e, _, ok2 := parseDate(end, DateLayout(DefaultDateFormat))
	if !ok1 || !ok2 {
		t.Fatalf("bad period %s..%s", start, end)
	}
	return period{start: s, end: e}
}

func TestIdentityKey(t *testing.T) {
	rec := NewRawRecord(2)
	rec.Set("name", " Ana ")
	rec.Set("email", "ANA@example.com")
	if got := IdentityKey(RecordPeople, rec); got != "ana|ana@example.com" {
		t.Errorf("IdentityKey() = %q", got)
	}

	rec.Set("email", "")
	if got := IdentityKey(RecordPeople, rec); got != "" {
		t.Errorf("IdentityKey() with blank required part = %q, want empty", got)
	}

	assign := NewRawRecord(3)
	assign.Set("person_name", "Ana")
	assign.Set("date", "2024-01-01")
	if got := IdentityKey(RecordAssignments, assign); got != "ana|2024-01-01|" {
		t.Errorf("IdentityKey() with optional blank part = %q", got)
	}
}

// ============================================================================
// Staging edits and commit selection
// ============================================================================

func mixedPreview(t *testing.T) *PreviewResult {
	t.Helper()
	return buildPreview(t, sheetOf(peopleColumns,
		[]string{"Ana", "ana@example.com", "1", ""},
		[]string{"Ben", "bad", "2", ""},
		[]string{"Cy", "cy@example.com", "3", ""},
		[]string{"Cy", "cy@example.com", "3", ""},
	), RecordPeople, DefaultImportOptions())
}

func TestPreviewResult_SetRowEnabled(t *testing.T) {
	res := mixedPreview(t)
	if res.ValidRows != 2 || res.ErrorRows != 1 || res.WarningRows != 1 {
		t.Fatalf("initial counts valid=%d error=%d warning=%d", res.ValidRows, res.ErrorRows, res.WarningRows)
	}

	if err := res.SetRowEnabled(2, false); err != nil {
		t.Fatalf("SetRowEnabled() error = %v", err)
	}
	if res.ErrorRows != 0 || res.SkippedRows != 1 || res.Rows[1].Status() != RowSkipped {
		t.Errorf("after disable: error=%d skipped=%d status=%q", res.ErrorRows, res.SkippedRows, res.Rows[1].Status())
	}
	assertPartition(t, res)

	if err := res.SetRowEnabled(2, true); err != nil {
		t.Fatalf("SetRowEnabled() error = %v", err)
	}
	if res.ErrorRows != 1 || res.SkippedRows != 0 {
		t.Errorf("after enable: error=%d skipped=%d", res.ErrorRows, res.SkippedRows)
	}

	if err := res.SetRowEnabled(99, false); !errors.Is(err, ErrRowNotFound) {
		t.Errorf("SetRowEnabled(99) error = %v, want ErrRowNotFound", err)
	}
}

func TestPreviewResult_CommitRows(t *testing.T) {
	tests := []struct {
		name         string
		skipInvalid  bool
		acceptErrors bool
		disable      int
		wantRows     []int
	}{
		{name: "skip invalid drops error rows", skipInvalid: true, wantRows: []int{1, 3, 4}},
		{name: "skip invalid ignores acceptance", skipInvalid: true, acceptErrors: true, wantRows: []int{1, 3, 4}},
		{name: "accepted errors are included", acceptErrors: true, wantRows: []int{1, 2, 3, 4}},
		{name: "unaccepted errors are excluded", wantRows: []int{1, 3, 4}},
		{name: "skipped rows never commit", acceptErrors: true, disable: 3, wantRows: []int{1, 2, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mixedPreview(t)
			if tt.disable > 0 {
				if err := res.SetRowEnabled(tt.disable, false); err != nil {
					t.Fatal(err)
				}
			}
			opts := DefaultImportOptions()
			opts.SkipInvalidRows = tt.skipInvalid

			rows := res.commitRows(opts, tt.acceptErrors)
			got := make([]int, len(rows))
			for i, r := range rows {
				got[i] = r.RowNumber
			}
			if len(got) != len(tt.wantRows) {
				t.Fatalf("commitRows() = %v, want %v", got, tt.wantRows)
			}
			for i := range got {
				if got[i] != tt.wantRows[i] {
					t.Fatalf("commitRows() = %v, want %v", got, tt.wantRows)
				}
			}
		})
	}
}
