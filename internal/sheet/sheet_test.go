package sheet

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, sheets map[string][][]any, order ...string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 && name != "Sheet1" {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("SetSheetName: %v", err)
			}
		} else if i > 0 {
			if _, err := f.NewSheet(name); err != nil {
				t.Fatalf("NewSheet: %v", err)
			}
		}
		for r, row := range sheets[name] {
			cell, _ := excelize.CoordinatesToCellName(1, r+1)
			vals := row
			if err := f.SetSheetRow(name, cell, &vals); err != nil {
				t.Fatalf("SetSheetRow: %v", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func TestRead_FirstSheetWithHeader(t *testing.T) {
	data := workbook(t, map[string][][]any{
		"Cover": {},
		"Roster": {
			{"Name", "Email", "PGY Level"},
			{"Ana", "ana@example.com", 2},
			{"", "", ""},
			{"Ben", "ben@example.com", 3},
		},
	}, "Cover", "Roster")

	tbl, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if tbl.Name != "Roster" {
		t.Errorf("Name = %q, want %q", tbl.Name, "Roster")
	}
	if want := []string{"Name", "Email", "PGY Level"}; !reflect.DeepEqual(tbl.Header, want) {
		t.Errorf("Header = %v, want %v", tbl.Header, want)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2 (blank row dropped)", len(tbl.Rows))
	}
	if tbl.Rows[1][0] != "Ben" || tbl.Rows[1][2] != "3" {
		t.Errorf("Rows[1] = %v", tbl.Rows[1])
	}
}

func TestRead_EmptyWorkbook(t *testing.T) {
	data := workbook(t, map[string][][]any{"Sheet1": {}}, "Sheet1")

	_, err := Read(bytes.NewReader(data))
	if !errors.Is(err, ErrNoData) {
		t.Errorf("Read() error = %v, want ErrNoData", err)
	}
}

func TestRead_NotAWorkbook(t *testing.T) {
	if _, err := Read(bytes.NewReader([]byte("name,email\n"))); err == nil {
		t.Error("Read() error = nil, want open failure")
	}
}

func TestFromRows_TrimsTrailingHeaderCells(t *testing.T) {
	tbl := fromRows("S", [][]string{{"a", "b", "", " "}, {"1", "2"}})
	if tbl == nil {
		t.Fatal("fromRows() = nil")
	}
	if want := []string{"a", "b"}; !reflect.DeepEqual(tbl.Header, want) {
		t.Errorf("Header = %v, want %v", tbl.Header, want)
	}
}
