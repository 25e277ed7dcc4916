package core

// validation.go applies per-row rules.
//
// Every rule runs independently and diagnostics accumulate, so one row can
// carry several errors and warnings at once. Validation never fails the run;
// problems are data on the PreviewRow.

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func fieldValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// RowValidator checks rows against one record definition.
type RowValidator struct {
	def        RecordDefinition
	dateLayout string
	dateFormat string
}

// NewRowValidator returns a validator for def using the configured date format.
func NewRowValidator(def RecordDefinition, dateFormat string) *RowValidator {
	if strings.TrimSpace(dateFormat) == "" {
		dateFormat = DefaultDateFormat
	}
	return &RowValidator{
		def:        def,
		dateLayout: DateLayout(dateFormat),
		dateFormat: dateFormat,
	}
}

// Validate appends every per-row diagnostic to row.
func (v *RowValidator) Validate(row *PreviewRow) {
	for _, spec := range v.def.Fields {
		value, _ := row.Data.Get(spec.Column)

		if isBlank(value) {
			if spec.Required {
				row.addIssue(ValidationIssue{
					Column:   spec.Column,
					Value:    value,
					Message:  fmt.Sprintf("%s is required", spec.Label),
					Severity: SeverityError,
				})
			}
			continue
		}

		if issue, ok := v.checkField(spec, value); ok {
			row.addIssue(issue)
		}
	}

	if v.def.Period != nil {
		v.checkPeriod(row)
	}
}

// checkField validates a non-blank value against its type. Values are
// checked as given; they arrive trimmed only when trimWhitespace is set.
func (v *RowValidator) checkField(spec FieldSpec, value any) (ValidationIssue, bool) {
	issue := ValidationIssue{Column: spec.Column, Value: value, Severity: SeverityError}
	text := cellString(value)

	switch spec.Type {
	case FieldEmail:
		if err := fieldValidator().Var(text, "email"); err != nil {
			issue.Message = fmt.Sprintf("Invalid email format: %q", text)
			return issue, true
		}

	case FieldDate:
		_, exact, ok := parseDate(text, v.dateLayout)
		if !ok {
			issue.Message = fmt.Sprintf("%s is not a valid date (expected %s)", spec.Label, v.dateFormat)
			return issue, true
		}
		if !exact {
			issue.Severity = SeverityWarning
			issue.Message = fmt.Sprintf("%s %q does not match %s and was interpreted", spec.Label, text, v.dateFormat)
			return issue, true
		}

	case FieldInteger:
		n, err := parseInteger(value)
		if err != nil {
			issue.Message = fmt.Sprintf("%s must be a whole number", spec.Label)
			return issue, true
		}
		if r := spec.Range; r != nil && (n < r.Min || n > r.Max) {
			issue.Severity = r.Severity
			issue.Message = fmt.Sprintf("%s must be between %d and %d", spec.Label, r.Min, r.Max)
			return issue, true
		}

	case FieldEnum:
		for _, allowed := range spec.EnumValues {
			if strings.EqualFold(text, allowed) {
				return ValidationIssue{}, false
			}
		}
		issue.Message = fmt.Sprintf("%s must be one of: %s", spec.Label, strings.Join(spec.EnumValues, ", "))
		return issue, true

	case FieldList:
		if len(splitList(value)) == 0 {
			issue.Severity = SeverityWarning
			issue.Message = fmt.Sprintf("%s has no usable entries", spec.Label)
			return issue, true
		}
	}

	return ValidationIssue{}, false
}

// checkPeriod enforces end >= start when both dates parse.
func (v *RowValidator) checkPeriod(row *PreviewRow) {
	p := v.def.Period
	start, _, okStart := parseDate(row.Data.Text(p.Start), v.dateLayout)
	end, _, okEnd := parseDate(row.Data.Text(p.End), v.dateLayout)
	if !okStart || !okEnd {
		return
	}
	if end.Before(start) {
		endVal, _ := row.Data.Get(p.End)
		row.addIssue(ValidationIssue{
			Column:   p.End,
			Value:    endVal,
			Message:  "End date must be on or after start date",
			Severity: SeverityError,
		})
	}
}
