package core

// error_messages.go maps technical errors to messages users can act on.
//
// Codes are grouped by category:
//
//	FILE001-FILE099  parsing and file handling
//	VAL001-VAL099    validation and record types
//	IMP001-IMP099    execute runs and the backing store
//	RBK001-RBK099    rollback
//	SES001-SES099    import sessions
//	ERR000           fallback
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns precede general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Request errors
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "The request could not be understood",
			Action:  "Check the request parameters and body",
			Code:    "REQ001",
		},
	},

	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a file with a header and at least one data row",
			Code:    "FILE002",
		},
	},
	{
		pattern: "invalid structure",
		msg: UserMessage{
			Message: "The JSON file must contain an array of objects",
			Action:  "Wrap each record in {} inside a top-level [] array",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no data rows",
		msg: UserMessage{
			Message: "The file has a header but no data rows",
			Action:  "Add at least one data row below the header",
			Code:    "FILE004",
		},
	},
	{
		pattern: "spreadsheet",
		msg: UserMessage{
			Message: "The spreadsheet could not be read",
			Action:  "Re-save the file as .xlsx or export it as CSV",
			Code:    "FILE005",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Choose a CSV, JSON, or XLSX file to import",
			Code:    "FILE006",
		},
	},
	{
		pattern: "parse error",
		msg: UserMessage{
			Message: "The file could not be parsed",
			Action:  "Check that the file is valid CSV, JSON, or XLSX",
			Code:    "FILE007",
		},
	},

	// Validation errors
	{
		pattern: "error rows that were not accepted",
		msg: UserMessage{
			Message: "Some rows have errors",
			Action:  "Fix the rows, disable them, or accept them explicitly",
			Code:    "VAL001",
		},
	},
	{
		pattern: "unknown record type",
		msg: UserMessage{
			Message: "The data type is not supported",
			Action:  "Use people, assignments, absences, or schedules",
			Code:    "VAL002",
		},
	},
	{
		pattern: "row not found",
		msg: UserMessage{
			Message: "That row is not part of the preview",
			Action:  "Refresh the preview and try again",
			Code:    "VAL003",
		},
	},

	// Rollback errors (before import errors: rollback messages mention batches)
	{
		pattern: "invalid batch id",
		msg: UserMessage{
			Message: "The batch identifier is not valid",
			Action:  "Pick the batch from the import history",
			Code:    "RBK002",
		},
	},
	{
		pattern: "rollback failed",
		msg: UserMessage{
			Message: "The import could not be undone",
			Action:  "Refresh the history and try again",
			Code:    "RBK001",
		},
	},

	// Import errors
	{
		pattern: "import run already active",
		msg: UserMessage{
			Message: "An import is already running for this session",
			Action:  "Wait for it to finish or cancel it",
			Code:    "IMP001",
		},
	},
	{
		pattern: "no staged preview",
		msg: UserMessage{
			Message: "There is nothing staged to import",
			Action:  "Upload a file and review the preview first",
			Code:    "IMP002",
		},
	},
	{
		pattern: "not confirmed",
		msg: UserMessage{
			Message: "The import was not confirmed",
			Action:  "Confirm the preview to start the import",
			Code:    "IMP003",
		},
	},
	{
		pattern: "batch",
		msg: UserMessage{
			Message: "The import stopped because a batch failed",
			Action:  "Rows committed before the failure remain; review the history before retrying",
			Code:    "IMP004",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "The data store is unreachable",
			Action:  "Please try again in a few moments",
			Code:    "IMP005",
		},
	},

	// Session errors
	{
		pattern: "too many import sessions",
		msg: UserMessage{
			Message: "Too many imports are in progress",
			Action:  "Please wait a moment and try again",
			Code:    "SES001",
		},
	},
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "The import session has expired",
			Action:  "Upload the file again",
			Code:    "SES002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "SES003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The request was cancelled",
			Action:  "Please try again",
			Code:    "SES004",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty UserMessage for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matched a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
