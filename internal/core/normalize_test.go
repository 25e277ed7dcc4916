package core

import (
	"reflect"
	"testing"
)

func TestNormalizeColumn(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Person Name", "person_name"},
		{"Email Address", "email_address"},
		{"  PGY-Level  ", "pgy_level"},
		{"Début (Date)", "debut_date"},
		{"__start__date__", "start_date"},
		{"Rotation / Name #2", "rotation_name_2"},
		{"already_normal", "already_normal"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizeColumn(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeColumn(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := NormalizeColumn(got); again != got {
				t.Errorf("NormalizeColumn not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestCanonicalColumn(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Email Address", "email"},
		{"E-Mail", "email"},
		{"PGY", "pgy_level"},
		{"Resident", "person_name"},
		{"Type of Absence", "absence_type"},
		{"Notes", "notes"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := CanonicalColumn(tt.input); got != tt.want {
				t.Errorf("CanonicalColumn(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeHeaders(t *testing.T) {
	got := normalizeHeaders([]string{"Name", "name", "NAME", "", "Email", " "})
	want := []string{"name", "name_2", "name_3", "column_4", "email", "column_6"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("normalizeHeaders() = %v, want %v", got, want)
	}

	// Running it again over its own output changes nothing.
	if again := normalizeHeaders(got); !reflect.DeepEqual(again, got) {
		t.Errorf("normalizeHeaders not stable: %v -> %v", got, again)
	}
}

func TestNormalizeParsed(t *testing.T) {
	rec := NewRawRecord(2)
	rec.Set("Full Name", "Ana")
	rec.Set("E-mail", "ana@example.com")

	pf := &ParsedFile{Columns: []string{"Full Name", "E-mail"}, Records: []RawRecord{rec}}
	normalizeParsed(pf)

	if want := []string{"name", "email"}; !reflect.DeepEqual(pf.Columns, want) {
		t.Errorf("Columns = %v, want %v", pf.Columns, want)
	}
	if got := pf.Records[0]; got.Text("name") != "Ana" || got.Text("email") != "ana@example.com" {
		t.Errorf("record = %v", got.Values)
	}
}

func TestInferRecordType(t *testing.T) {
	tests := []struct {
		name     string
		columns  []string
		fallback RecordType
		want     RecordType
	}{
		{
			name:    "pgy level means people",
			columns: []string{"name", "email", "pgy_level"},
			want:    RecordPeople,
		},
		{
			name:    "specialties means people",
			columns: []string{"specialties", "name"},
			want:    RecordPeople,
		},
		{
			name:    "absence signature",
			columns: []string{"person_name", "start_date", "end_date", "absence_type"},
			want:    RecordAbsences,
		},
		{
			name:    "people signature outranks absence signature",
			columns: []string{"absence_type", "start_date", "end_date", "pgy_level"},
			want:    RecordPeople,
		},
		{
			name:    "rotation with person is an assignment",
			columns: []string{"rotation_name", "person_name", "date"},
			want:    RecordAssignments,
		},
		{
			name:    "rotation with a period is a schedule",
			columns: []string{"rotation_name", "start_date", "end_date"},
			want:    RecordSchedules,
		},
		{
			name:    "rotation alone is an assignment",
			columns: []string{"rotation_name"},
			want:    RecordAssignments,
		},
		{
			name:     "no match uses fallback",
			columns:  []string{"foo", "bar"},
			fallback: RecordSchedules,
			want:     RecordSchedules,
		},
		{
			name:    "no match and no fallback is people",
			columns: []string{"foo"},
			want:    RecordPeople,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferRecordType(tt.columns, tt.fallback); got != tt.want {
				t.Errorf("InferRecordType(%v) = %q, want %q", tt.columns, got, tt.want)
			}

			reversed := make([]string, len(tt.columns))
			for i, c := range tt.columns {
				reversed[len(tt.columns)-1-i] = c
			}
			if got := InferRecordType(reversed, tt.fallback); got != tt.want {
				t.Errorf("InferRecordType depends on column order: %q", got)
			}
		})
	}
}
