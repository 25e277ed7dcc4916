package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "empty file wins over generic parse error",
			err:         newParseError("empty file", nil),
			wantCode:    "FILE002",
			wantMessage: "The uploaded file is empty",
		},
		{
			name:        "invalid json structure",
			err:         newParseError("invalid structure", errors.New("element 2 is not an object")),
			wantCode:    "FILE003",
			wantMessage: "The JSON file must contain an array of objects",
		},
		{
			name:     "spreadsheet chain failure",
			err:      newParseError("spreadsheet", errors.New("local: no data")),
			wantCode: "FILE005",
		},
		{
			name:     "malformed csv falls back to parse error",
			err:      newParseError("invalid csv", errors.New("bare quote")),
			wantCode: "FILE007",
		},
		{
			name:     "unaccepted error rows",
			err:      ErrUnacceptedErrors,
			wantCode: "VAL001",
		},
		{
			name:     "invalid batch id precedes rollback failure",
			err:      &RollbackError{BatchID: "x", Message: InvalidBatchIDMessage},
			wantCode: "RBK002",
		},
		{
			name:     "rollback failure",
			err:      &RollbackError{BatchID: "x", Message: "batch not found"},
			wantCode: "RBK001",
		},
		{
			name:     "backend batch failure",
			err:      &BackendError{Batch: 2, Err: errors.New("503 service unavailable")},
			wantCode: "IMP004",
		},
		{
			name:     "active run",
			err:      fmt.Errorf("execute: %w", ErrRunActive),
			wantCode: "IMP001",
		},
		{
			name:     "deadline",
			err:      context.DeadlineExceeded,
			wantCode: "SES003",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:     "case insensitive matching",
			err:      errors.New("FILE TOO LARGE"),
			wantCode: "FILE001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.wantMessage != "" && got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(newParseError("empty file", nil))

	expected := "The uploaded file is empty (Code: FILE002). Upload a file with a header and at least one data row"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error is not user facing",
			err:  nil,
			want: false,
		},
		{
			name: "known error is user facing",
			err:  ErrNotConfirmed,
			want: true,
		},
		{
			name: "unknown error is not user facing",
			err:  errors.New("random internal error xyz"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsUserFacing(tt.err)
			if got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
