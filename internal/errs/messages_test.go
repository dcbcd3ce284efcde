package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestMap(t *testing.T) {
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
			name:        "not found path error",
			err:         &PathError{Kind: ErrNotFound, Op: "convert", Path: "in.csv"},
			wantCode:    "FILE002",
			wantMessage: "The file does not exist",
		},
		{
			name:        "wrapped permission error",
			err:         fmt.Errorf("run: %w", &PathError{Kind: ErrPermissionDenied, Path: "x"}),
			wantCode:    "FILE003",
			wantMessage: "The file cannot be read",
		},
		{
			name:        "unsupported format",
			err:         &FormatError{Op: "convert", Path: "a.doc", Ext: ".doc"},
			wantCode:    "FILE004",
			wantMessage: "This file type is not supported",
		},
		{
			name:        "missing join key",
			err:         &JoinKeyError{Key: "id", Side: "lookup"},
			wantCode:    "JOIN001",
			wantMessage: "The join key is missing from one of the tables",
		},
		{
			name:        "join key type mismatch",
			err:         &KeyTypeError{Key: "id", MainKind: "text", LookupKind: "int"},
			wantCode:    "JOIN005",
			wantMessage: "The join key has a different type in each table",
		},
		{
			name:        "missing fields",
			err:         &FieldsError{Missing: []string{"region"}},
			wantCode:    "JOIN002",
			wantMessage: "Requested lookup fields are missing from the lookup file",
		},
		{
			name:        "conversion failure without hints",
			err:         &ConversionError{Path: "a.txt", Err: errors.New("boom")},
			wantCode:    "CONV001",
			wantMessage: "The file could not be converted to CSV",
		},
		{
			name: "conversion failure reports first hint",
			err: &ConversionError{Path: "a.txt", Err: errors.New("bad delimiter"),
				Hints: []UserMessage{delimiterHint}},
			wantCode:    "CONV003",
			wantMessage: "The file could not be converted to CSV: the delimiter could not be determined",
		},
		{
			name:        "invalid header",
			err:         fmt.Errorf("validate header: %w", ErrInvalidHeader),
			wantCode:    "FILE006",
			wantMessage: "The header row contains unexpected characters",
		},
		{
			name:        "pattern fallback is case insensitive",
			err:         errors.New("dial tcp: CONNECTION REFUSED"),
			wantCode:    "DB001",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Map(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("Map() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("Map() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestHints(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCodes []string
	}{
		{"nil", nil, nil},
		{"encoding", errors.New("invalid UTF-8 encoding in line 3"), []string{"CONV002"}},
		{"codec", errors.New("'utf8' codec can't decode"), []string{"CONV002"}},
		{"delimiter", errors.New("record on line 2: wrong number of fields"), []string{"CONV003"}},
		{"memory", errors.New("runtime: out of memory"), []string{"CONV004"}},
		{"encoding and delimiter", errors.New("could not determine delimiter: bad encoding"), []string{"CONV002", "CONV003"}},
		{"no match", errors.New("unexpected EOF"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Hints(tt.err)
			if len(got) != len(tt.wantCodes) {
				t.Fatalf("Hints() returned %d hints, want %d: %+v", len(got), len(tt.wantCodes), got)
			}
			for i, h := range got {
				if h.Code != tt.wantCodes[i] {
					t.Errorf("hint[%d].Code = %q, want %q", i, h.Code, tt.wantCodes[i])
				}
			}
		})
	}
}

func TestTypedErrorsMatchKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"path", &PathError{Kind: ErrEmptyData, Path: "a"}, ErrEmptyData},
		{"format", &FormatError{}, ErrUnsupportedFormat},
		{"conversion", &ConversionError{Err: errors.New("x")}, ErrConversionFailure},
		{"join key", &JoinKeyError{}, ErrMissingJoinKey},
		{"key type", &KeyTypeError{}, ErrKeyTypeMismatch},
		{"fields", &FieldsError{}, ErrMissingFields},
		{"collision", &CollisionError{}, ErrColumnCollision},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(fmt.Errorf("outer: %w", tt.err), tt.kind) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.kind)
			}
		})
	}
}

func TestFieldsErrorListsSuggestions(t *testing.T) {
	err := &FieldsError{
		Missing:     []string{"regin"},
		Available:   []string{"id", "region"},
		Suggestions: map[string][]string{"regin": {"region"}},
	}
	want := "missing lookup fields in file: [regin] (available: id, region); did you mean region for regin?"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestFormat(t *testing.T) {
	err := &PathError{Kind: ErrNotFound, Path: "x.csv"}
	want := "The file does not exist (Code: FILE002). Check the path and try again"
	if got := Format(err); got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
	if !IsUserFacing(err) {
		t.Error("IsUserFacing() = false for typed error")
	}
	if IsUserFacing(errors.New("xyz")) {
		t.Error("IsUserFacing() = true for unknown error")
	}
}
