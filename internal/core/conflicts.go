package core

// conflicts.go holds the cross-row rules: duplicate identities and
// overlapping absence periods. They run once over the full row set after
// the per-row rules.

import (
	"fmt"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

const (
	duplicateMessage = "Duplicate entry found"
	overlapMessage   = "Overlapping absence period"
)

// IdentityKey returns the normalized identity of rec for rt, or "" when a
// required key column is blank. Parts are trimmed, lower-cased, and joined
// with "|".
func IdentityKey(rt RecordType, rec RawRecord) string {
	def, ok := Definition(rt)
	if !ok || len(def.IdentityKey) == 0 {
		return ""
	}
	return keyFor(def, def.IdentityKey, rec)
}

func keyFor(def RecordDefinition, columns []string, rec RawRecord) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		val := strings.ToLower(strings.TrimSpace(rec.Text(col)))
		if val == "" {
			if spec, ok := def.Field(col); !ok || spec.Required {
				return ""
			}
		}
		parts[i] = val
	}
	return strings.Join(parts, "|")
}

// flagDuplicates warns on every row whose identity matches an earlier row.
func flagDuplicates(def RecordDefinition, rows []PreviewRow) {
	if len(def.IdentityKey) == 0 {
		return
	}

	firstSeen := make(map[xxh3.Uint128]int, len(rows))
	for i := range rows {
		key := keyFor(def, def.IdentityKey, rows[i].Data)
		if key == "" {
			continue
		}

		h := xxh3.HashString128(key)
		first, dup := firstSeen[h]
		if !dup {
			firstSeen[h] = rows[i].RowNumber
			continue
		}

		rows[i].addIssue(ValidationIssue{
			Column:   def.IdentityKey[0],
			Value:    key,
			Message:  fmt.Sprintf("%s (first seen in row %d)", duplicateMessage, first),
			Severity: SeverityWarning,
		})
	}
}

type period struct {
	index      int
	start, end time.Time
}

// flagOverlaps groups rows by person and warns on the later row of every
// overlapping pair. Ranges overlap iff max(startA, startB) <= min(endA, endB).
func flagOverlaps(def RecordDefinition, rows []PreviewRow, dateLayout string) {
	if def.Period == nil || len(def.PersonKey) == 0 {
		return
	}

	groups := make(map[xxh3.Uint128][]period)
	var order []xxh3.Uint128
	for i := range rows {
		person := keyFor(def, def.PersonKey, rows[i].Data)
		if person == "" {
			continue
		}
		start, _, okStart := parseDate(rows[i].Data.Text(def.Period.Start), dateLayout)
		end, _, okEnd := parseDate(rows[i].Data.Text(def.Period.End), dateLayout)
		if !okStart || !okEnd || end.Before(start) {
			continue
		}

		h := xxh3.HashString128(person)
		if _, ok := groups[h]; !ok {
			order = append(order, h)
		}
		groups[h] = append(groups[h], period{index: i, start: start, end: end})
	}

	for _, h := range order {
		group := groups[h]
		for j := 1; j < len(group); j++ {
			for k := 0; k < j; k++ {
				if !overlaps(group[k], group[j]) {
					continue
				}
				row := &rows[group[j].index]
				row.addIssue(ValidationIssue{
					Column:   def.Period.Start,
					Value:    row.Data.Values[def.Period.Start],
					Message:  fmt.Sprintf("%s (overlaps row %d)", overlapMessage, rows[group[k].index].RowNumber),
					Severity: SeverityWarning,
				})
				break
			}
		}
	}
}

func overlaps(a, b period) bool {
	latestStart := a.start
	if b.start.After(latestStart) {
		latestStart = b.start
	}
	earliestEnd := a.end
	if b.end.Before(earliestEnd) {
		earliestEnd = b.end
	}
	return !latestStart.After(earliestEnd)
}
