package errs

// messages.go maps technical errors to user-facing messages with codes.
//
// Codes are grouped by category:
//
//	FILE001-FILE099  file access and format errors
//	CONV001-CONV099  conversion failures and hints
//	JOIN001-JOIN099  lookup enrichment errors
//	RES001-RES099    resource advisory
//	JOB001-JOB099    run/batch execution
//	DB001-DB099      PostgreSQL export
//	ERR000           fallback
//
// Typed kinds are matched with errors.Is first. Untyped errors fall back to
// case-insensitive substring patterns; the first matching pattern wins, so
// specific patterns are listed before general ones.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type kindMessage struct {
	kind error
	msg  UserMessage
}

var kindMessages = []kindMessage{
	{ErrInvalidPath, UserMessage{
		Message: "The file path is empty or escapes the allowed directory",
		Action:  "Use a path without '..' inside the data directory",
		Code:    "FILE001",
	}},
	{ErrNotFound, UserMessage{
		Message: "The file does not exist",
		Action:  "Check the path and try again",
		Code:    "FILE002",
	}},
	{ErrPermissionDenied, UserMessage{
		Message: "The file cannot be read",
		Action:  "Check file permissions for the current user",
		Code:    "FILE003",
	}},
	{ErrUnsupportedFormat, UserMessage{
		Message: "This file type is not supported",
		Action:  "Use one of: csv, parquet, xls, xlsx, txt, tsv, json, jsonl",
		Code:    "FILE004",
	}},
	{ErrEmptyData, UserMessage{
		Message: "The file contains no data rows",
		Action:  "Provide a file with a header row and at least one data row",
		Code:    "FILE005",
	}},
	{ErrInvalidHeader, UserMessage{
		Message: "The header row contains unexpected characters",
		Action:  "Check that the first line holds column names only",
		Code:    "FILE006",
	}},
	{ErrColumnCollision, UserMessage{
		Message: "Two columns normalize to the same name",
		Action:  "Rename one of the columns or set COLUMN_COLLISION=last_wins",
		Code:    "JOIN004",
	}},
	{ErrMissingJoinKey, UserMessage{
		Message: "The join key is missing from one of the tables",
		Action:  "Check --lookup-key against both files' headers",
		Code:    "JOIN001",
	}},
	{ErrKeyTypeMismatch, UserMessage{
		Message: "The join key has a different type in each table",
		Action:  "Make the key column numeric in both files or text in both files",
		Code:    "JOIN005",
	}},
	{ErrMissingFields, UserMessage{
		Message: "Requested lookup fields are missing from the lookup file",
		Action:  "Check --lookup-fields against the lookup file's header",
		Code:    "JOIN002",
	}},
	{ErrLoadFailure, UserMessage{
		Message: "The lookup file could not be loaded",
		Action:  "Check that the lookup file is well formed",
		Code:    "JOIN003",
	}},
	{ErrResourceCheckDegraded, UserMessage{
		Message: "System resources could not be inspected",
		Action:  "Processing continues with default chunk sizes",
		Code:    "RES001",
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// hintPatterns drive conversion hints. Several may apply to one error.
var hintPatterns = []errorPattern{
	{"codec", encodingHint},
	{"encoding", encodingHint},
	{"utf-8", encodingHint},
	{"delimiter", delimiterHint},
	{"separator", delimiterHint},
	{"wrong number of fields", delimiterHint},
	{"memory", memoryHint},
}

var (
	encodingHint = UserMessage{
		Message: "The file may not be UTF-8 encoded",
		Action:  "Try re-saving the file as UTF-8 (or convert from latin-1)",
		Code:    "CONV002",
	}
	delimiterHint = UserMessage{
		Message: "The delimiter could not be determined",
		Action:  "Try specifying a custom delimiter with --delimiter",
		Code:    "CONV003",
	}
	memoryHint = UserMessage{
		Message: "The file might be too large to load at once",
		Action:  "Consider splitting it into smaller chunks",
		Code:    "CONV004",
	}
)

// errorPatterns maps untyped technical errors (case-insensitive) to user messages.
var errorPatterns = []errorPattern{
	{"too many concurrent jobs", UserMessage{
		Message: "Too many runs in progress",
		Action:  "Please wait a moment and try again",
		Code:    "JOB001",
	}},
	{"run not found", UserMessage{
		Message: "Run not found",
		Action:  "The run may have been started by another process",
		Code:    "JOB002",
	}},
	{"invalid run request", UserMessage{
		Message: "The run request is incomplete or inconsistent",
		Action:  "Check the input path, output format and lookup settings",
		Code:    "JOB005",
	}},
	{"context canceled", UserMessage{
		Message: "The run was cancelled",
		Action:  "Start a new run when ready",
		Code:    "JOB003",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "The run timed out",
		Action:  "Try a smaller file or raise JOB_TIMEOUT",
		Code:    "JOB004",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB001",
	}},
	{"database_url", UserMessage{
		Message: "No database is configured for PostgreSQL output",
		Action:  "Set DATABASE_URL or choose csv/parquet output",
		Code:    "DB002",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

// conversionMessage is used for ErrConversionFailure when no hint applies.
var conversionMessage = UserMessage{
	Message: "The file could not be converted to CSV",
	Action:  "Check that the file is well formed",
	Code:    "CONV001",
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the logs",
	Code:    "ERR000",
}

// Map converts a technical error to a user-friendly message.
// Typed kinds win over substring patterns. A conversion failure reports its
// first hint when one applies.
func Map(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ce *ConversionError
	if errors.As(err, &ce) {
		if len(ce.Hints) > 0 {
			h := ce.Hints[0]
			return UserMessage{Message: conversionMessage.Message + ": " + lowerFirst(h.Message), Action: h.Action, Code: h.Code}
		}
		return conversionMessage
	}

	for _, km := range kindMessages {
		if errors.Is(err, km.kind) {
			return km.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// Hints returns every distinct conversion hint whose pattern occurs in the
// error message, in pattern order.
func Hints(err error) []UserMessage {
	if err == nil {
		return nil
	}
	errStr := strings.ToLower(err.Error())

	var hints []UserMessage
	seen := make(map[string]bool)
	for _, ep := range hintPatterns {
		if seen[ep.msg.Code] {
			continue
		}
		if strings.Contains(errStr, ep.pattern) {
			seen[ep.msg.Code] = true
			hints = append(hints, ep.msg)
		}
	}
	return hints
}

// Format creates a display string: "Message (Code: XXX). Action".
func Format(err error) string {
	msg := Map(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return Map(err).Code != defaultMessage.Code
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
