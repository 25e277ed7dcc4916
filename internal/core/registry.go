package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// FieldType is the expected kind of value in a column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEmail
	FieldDate
	FieldInteger
	FieldList
	FieldEnum
)

func (t FieldType) String() string {
	switch t {
	case FieldText:
		return "text"
	case FieldEmail:
		return "email"
	case FieldDate:
		return "date"
	case FieldInteger:
		return "integer"
	case FieldList:
		return "list"
	case FieldEnum:
		return "enum"
	default:
		return "value"
	}
}

// IntRange bounds an integer field. Values outside it get Severity.
type IntRange struct {
	Min, Max int
	Severity Severity
}

// FieldSpec defines the rules for one canonical column.
type FieldSpec struct {
	Column     string
	Label      string
	Type       FieldType
	Required   bool
	EnumValues []string
	Range      *IntRange
}

// DateRange names the start and end columns of a period.
type DateRange struct {
	Start, End string
}

// RecordDefinition describes everything needed to validate one record type.
type RecordDefinition struct {
	Type   RecordType
	Label  string
	Fields []FieldSpec

	// IdentityKey columns identify duplicates within a file and in the store.
	IdentityKey []string

	// PersonKey groups rows for overlap detection; empty disables it.
	PersonKey []string

	// Period is checked for end >= start and, with PersonKey, for overlaps.
	Period *DateRange
}

// Field returns the spec for a column.
func (d RecordDefinition) Field(column string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Column == column {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Columns returns the defined column names in declaration order.
func (d RecordDefinition) Columns() []string {
	cols := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		cols[i] = f.Column
	}
	return cols
}

var (
	registry   = make(map[RecordType]RecordDefinition)
	registryMu sync.RWMutex
)

// Register adds a record definition. It panics on a repeated type.
func Register(def RecordDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Type]; exists {
		panic(fmt.Sprintf("record type already registered: %s", def.Type))
	}
	for i, f := range def.Fields {
		if f.Label == "" {
			def.Fields[i].Label = labelFor(f.Column)
		}
	}
	registry[def.Type] = def
}

// Definition returns the definition for a record type.
func Definition(rt RecordType) (RecordDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[rt]
	return def, ok
}

// Definitions returns all registered definitions sorted by type.
func Definitions() []RecordDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]RecordDefinition, 0, len(registry))
	for _, def := range registry {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// labelFor turns "person_name" into "Person name".
func labelFor(column string) string {
	s := strings.ReplaceAll(column, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// AbsenceTypes are the accepted absence_type values.
var AbsenceTypes = []string{
	"vacation", "sick", "conference", "personal", "medical", "deployment", "tdy", "family_emergency",
}

func init() {
	Register(RecordDefinition{
		Type:  RecordPeople,
		Label: "People",
		Fields: []FieldSpec{
			{Column: "name", Type: FieldText, Required: true},
			{Column: "email", Type: FieldEmail, Required: true},
			{Column: "pgy_level", Label: "PGY level", Type: FieldInteger, Range: &IntRange{Min: 1, Max: 7, Severity: SeverityError}},
			{Column: "type", Type: FieldEnum, EnumValues: []string{"resident", "faculty"}},
			{Column: "specialties", Type: FieldList},
		},
		IdentityKey: []string{"name", "email"},
	})

	Register(RecordDefinition{
		Type:  RecordAbsences,
		Label: "Absences",
		Fields: []FieldSpec{
			{Column: "person_name", Type: FieldText, Required: true},
			{Column: "start_date", Type: FieldDate, Required: true},
			{Column: "end_date", Type: FieldDate, Required: true},
			{Column: "absence_type", Type: FieldEnum, Required: true, EnumValues: AbsenceTypes},
			{Column: "notes", Type: FieldText},
		},
		IdentityKey: []string{"person_name", "start_date", "end_date"},
		PersonKey:   []string{"person_name"},
		Period:      &DateRange{Start: "start_date", End: "end_date"},
	})

	Register(RecordDefinition{
		Type:  RecordAssignments,
		Label: "Assignments",
		Fields: []FieldSpec{
			{Column: "person_name", Type: FieldText, Required: true},
			{Column: "date", Type: FieldDate, Required: true},
			{Column: "rotation_name", Type: FieldText, Required: true},
			{Column: "block", Type: FieldInteger, Range: &IntRange{Min: 1, Max: 13, Severity: SeverityWarning}},
			{Column: "session", Type: FieldEnum, EnumValues: []string{"am", "pm"}},
		},
		IdentityKey: []string{"person_name", "date", "session"},
	})

	Register(RecordDefinition{
		Type:  RecordSchedules,
		Label: "Schedules",
		Fields: []FieldSpec{
			{Column: "rotation_name", Type: FieldText, Required: true},
			{Column: "start_date", Type: FieldDate, Required: true},
			{Column: "end_date", Type: FieldDate, Required: true},
		},
		IdentityKey: []string{"rotation_name", "start_date"},
		Period:      &DateRange{Start: "start_date", End: "end_date"},
	})
}
