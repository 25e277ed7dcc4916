package core

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// columnAliases maps common alternate headers to canonical column names.
var columnAliases = map[string]string{
	"person":          "person_name",
	"resident":        "person_name",
	"full_name":       "name",
	"email_address":   "email",
	"e_mail":          "email",
	"pgy":             "pgy_level",
	"start":           "start_date",
	"end":             "end_date",
	"rotation":        "rotation_name",
	"type_of_absence": "absence_type",
}

// NormalizeColumn lower-cases a header, folds accents, and collapses every run
// of non-alphanumeric characters to one underscore. It is idempotent.
//
//	"Person Name"   -> "person_name"
//	"Email Address" -> "email_address"
//	"Début (Date)"  -> "debut_date"
func NormalizeColumn(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	folded, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		folded = strings.ToLower(strings.TrimSpace(s))
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingUnderscore := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingUnderscore && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingUnderscore = false
			b.WriteRune(r)
			continue
		}
		pendingUnderscore = true
	}
	return b.String()
}

// CanonicalColumn normalizes a header and applies the alias table.
func CanonicalColumn(s string) string {
	n := NormalizeColumn(s)
	if alias, ok := columnAliases[n]; ok {
		return alias
	}
	return n
}

// normalizeHeaders canonicalizes a header row. Blank headers become
// "column_N" and repeated names get a numeric suffix so every name is unique.
func normalizeHeaders(raw []string) []string {
	out := make([]string, len(raw))
	used := make(map[string]bool, len(raw))

	for i, h := range raw {
		name := CanonicalColumn(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if used[name] {
			base := name
			for n := 2; used[name]; n++ {
				name = fmt.Sprintf("%s_%d", base, n)
			}
		}
		used[name] = true
		out[i] = name
	}

	return out
}

// normalizeParsed renames every record key to its canonical column name.
func normalizeParsed(pf *ParsedFile) {
	canonical := normalizeHeaders(pf.Columns)
	rename := make(map[string]string, len(pf.Columns))
	for i, col := range pf.Columns {
		rename[col] = canonical[i]
	}

	for i, rec := range pf.Records {
		out := NewRawRecord(rec.Len())
		for _, col := range rec.Columns {
			name, ok := rename[col]
			if !ok {
				name = CanonicalColumn(col)
			}
			out.Set(name, rec.Values[col])
		}
		pf.Records[i] = out
	}
	pf.Columns = canonical
}

// signature maps a set of distinctive columns to a record type.
type signature struct {
	columns    []string
	recordType RecordType
}

// signatures is consulted in order; the first signature whose columns are all
// present wins.
var signatures = []signature{
	{columns: []string{"pgy_level"}, recordType: RecordPeople},
	{columns: []string{"specialties"}, recordType: RecordPeople},
	{columns: []string{"start_date", "end_date", "absence_type"}, recordType: RecordAbsences},
	{columns: []string{"rotation_name", "person_name"}, recordType: RecordAssignments},
	{columns: []string{"rotation_name", "start_date", "end_date"}, recordType: RecordSchedules},
	{columns: []string{"rotation_name"}, recordType: RecordAssignments},
}

// InferRecordType picks the record type from the set of canonical columns.
// It only consults the column set, so row order never matters. Files that
// match no signature get fallback.
func InferRecordType(columns []string, fallback RecordType) RecordType {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	for _, sig := range signatures {
		matched := true
		for _, c := range sig.columns {
			if !present[c] {
				matched = false
				break
			}
		}
		if matched {
			return sig.recordType
		}
	}

	if fallback == "" {
		return RecordPeople
	}
	return fallback
}
