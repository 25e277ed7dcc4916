package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/rosterimport/internal/core"
	"github.com/google/uuid"
)

// plannedRow is one record that will be copied into imported_records.
type plannedRow struct {
	ID        uuid.UUID
	RowNumber int
	Key       string
	Data      json.RawMessage
}

// insertPlan is the outcome of resolving a batch against existing keys.
type insertPlan struct {
	Rows    []plannedRow
	Replace []string // identity keys whose stored rows are deleted first
	Skipped int
	Errors  []core.BatchError
}

// planInserts decides, for each item, whether it is inserted, replaces a
// stored record, or is skipped as a conflict. Items without an identity key
// never conflict. Within one request the first occurrence of a key wins
// unless updateExisting is set, in which case the last one does.
func planInserts(rt core.RecordType, items []core.RawRecord, rowNumbers []int, existing map[string]bool, updateExisting bool) insertPlan {
	var plan insertPlan
	replacing := make(map[string]bool)
	planned := make(map[string]int)

	for i, item := range items {
		row := i + 1
		if i < len(rowNumbers) {
			row = rowNumbers[i]
		}

		data, err := json.Marshal(item)
		if err != nil {
			plan.Errors = append(plan.Errors, core.BatchError{
				Row:     row,
				Message: fmt.Sprintf("encode record: %v", err),
			})
			continue
		}

		key := core.IdentityKey(rt, item)
		pr := plannedRow{ID: uuid.New(), RowNumber: row, Key: key, Data: data}

		if key == "" {
			plan.Rows = append(plan.Rows, pr)
			continue
		}

		if idx, ok := planned[key]; ok {
			if updateExisting {
				plan.Rows[idx] = pr
			}
			plan.Skipped++
			continue
		}

		if existing[key] {
			if !updateExisting {
				plan.Skipped++
				continue
			}
			if !replacing[key] {
				replacing[key] = true
				plan.Replace = append(plan.Replace, key)
			}
		}

		planned[key] = len(plan.Rows)
		plan.Rows = append(plan.Rows, pr)
	}

	return plan
}

// identityKeys returns the distinct non-empty keys of items.
func identityKeys(rt core.RecordType, items []core.RawRecord) []string {
	seen := make(map[string]bool, len(items))
	keys := make([]string, 0, len(items))
	for _, item := range items {
		k := core.IdentityKey(rt, item)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

// importedIDs lists the generated ids of the planned rows.
func (p insertPlan) importedIDs() []string {
	ids := make([]string, len(p.Rows))
	for i, r := range p.Rows {
		ids[i] = r.ID.String()
	}
	return ids
}
