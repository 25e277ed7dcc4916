package postgres

import (
	"encoding/json"
	"testing"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

func person(name, email string) core.RawRecord {
	rec := core.NewRawRecord(2)
	rec.Set("name", name)
	rec.Set("email", email)
	return rec
}

func TestPlanInserts(t *testing.T) {
	items := []core.RawRecord{
		person("Ana", "ana@example.com"),
		person("Ben", "ben@example.com"),
		person("ana ", "ANA@example.com"),
		person("", "nobody@example.com"),
	}
	rows := []int{10, 11, 12, 13}

	tests := []struct {
		name           string
		existing       map[string]bool
		updateExisting bool
		wantRows       []int
		wantReplace    int
		wantSkipped    int
	}{
		{
			name:        "no conflicts keeps first of in-batch duplicate",
			wantRows:    []int{10, 11, 13},
			wantSkipped: 1,
		},
		{
			name:        "stored key is skipped",
			existing:    map[string]bool{"ben|ben@example.com": true},
			wantRows:    []int{10, 13},
			wantSkipped: 2,
		},
		{
			name:           "update replaces stored key and keeps last duplicate",
			existing:       map[string]bool{"ben|ben@example.com": true},
			updateExisting: true,
			wantRows:       []int{12, 11, 13},
			wantReplace:    1,
			wantSkipped:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := planInserts(core.RecordPeople, items, rows, tt.existing, tt.updateExisting)

			if len(plan.Rows) != len(tt.wantRows) {
				t.Fatalf("len(Rows) = %d, want %d", len(plan.Rows), len(tt.wantRows))
			}
			for i, want := range tt.wantRows {
				if got := plan.Rows[i].RowNumber; got != want {
					t.Errorf("Rows[%d].RowNumber = %d, want %d", i, got, want)
				}
			}
			if len(plan.Replace) != tt.wantReplace {
				t.Errorf("len(Replace) = %d, want %d", len(plan.Replace), tt.wantReplace)
			}
			if plan.Skipped != tt.wantSkipped {
				t.Errorf("Skipped = %d, want %d", plan.Skipped, tt.wantSkipped)
			}
			if len(plan.Errors) != 0 {
				t.Errorf("Errors = %v, want none", plan.Errors)
			}
		})
	}
}

func TestPlanInserts_BlankKeyStoredWithoutIdentity(t *testing.T) {
	plan := planInserts(core.RecordPeople, []core.RawRecord{person("", "x@example.com")}, nil, nil, false)

	if len(plan.Rows) != 1 {
		t.Fatalf("len(Rows) = %d, want 1", len(plan.Rows))
	}
	if plan.Rows[0].Key != "" {
		t.Errorf("Key = %q, want empty", plan.Rows[0].Key)
	}
	if plan.Rows[0].RowNumber != 1 {
		t.Errorf("RowNumber = %d, want 1 (index fallback)", plan.Rows[0].RowNumber)
	}
}

func TestPlanInserts_DataKeepsColumnOrder(t *testing.T) {
	plan := planInserts(core.RecordPeople, []core.RawRecord{person("Ana", "ana@example.com")}, []int{1}, nil, false)

	want := `{"name":"Ana","email":"ana@example.com"}`
	if got := string(plan.Rows[0].Data); got != want {
		t.Errorf("Data = %s, want %s", got, want)
	}
	if !json.Valid(plan.Rows[0].Data) {
		t.Error("Data is not valid JSON")
	}
}

func TestIdentityKeys_Distinct(t *testing.T) {
	keys := identityKeys(core.RecordPeople, []core.RawRecord{
		person("Ana", "ana@example.com"),
		person("ANA", "ana@example.com"),
		person("", "x@example.com"),
	})
	if len(keys) != 1 || keys[0] != "ana|ana@example.com" {
		t.Errorf("identityKeys() = %v, want [ana|ana@example.com]", keys)
	}
}

func TestPlan_ImportedIDs(t *testing.T) {
	plan := planInserts(core.RecordPeople, []core.RawRecord{
		person("Ana", "ana@example.com"),
		person("Ben", "ben@example.com"),
	}, nil, nil, false)

	ids := plan.importedIDs()
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Errorf("importedIDs() = %v, want two distinct ids", ids)
	}
}
