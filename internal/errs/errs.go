// Package errs defines the error taxonomy shared by conversion, resource
// advisory, and lookup enrichment.
//
// Every failure is reported with one of the sentinel kinds below so callers
// can branch with errors.Is, while the typed errors carry the context needed
// to render an actionable message (offending path, extension, missing column
// names, suggestions).
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Typed errors in this package report one of these via Is.
var (
	ErrNotFound              = errors.New("file not found")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrInvalidPath           = errors.New("invalid path")
	ErrUnsupportedFormat     = errors.New("unsupported file type")
	ErrEmptyData             = errors.New("empty file")
	ErrConversionFailure     = errors.New("conversion failed")
	ErrMissingJoinKey        = errors.New("missing join key")
	ErrKeyTypeMismatch       = errors.New("join key type mismatch")
	ErrMissingFields         = errors.New("missing lookup fields")
	ErrLoadFailure           = errors.New("lookup load failed")
	ErrResourceCheckDegraded = errors.New("resource check degraded")
	ErrColumnCollision       = errors.New("column name collision")
	ErrInvalidHeader         = errors.New("invalid header format")
)

// PathError reports a failure tied to a single file path.
// Kind is one of ErrNotFound, ErrPermissionDenied, ErrInvalidPath,
// ErrEmptyData or ErrLoadFailure.
type PathError struct {
	Kind error
	Op   string // "convert", "lookup", ...
	Path string
	Err  error // underlying cause, may be nil
}

func (e *PathError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	b.WriteString(": ")
	b.WriteString(e.Path)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *PathError) Is(target error) bool { return target == e.Kind }

func (e *PathError) Unwrap() error { return e.Err }

// FormatError reports an extension outside the supported set.
type FormatError struct {
	Op        string
	Path      string
	Ext       string
	Supported []string
}

func (e *FormatError) Error() string {
	ext := e.Ext
	if ext == "" {
		ext = "(none)"
	}
	return fmt.Sprintf("%s: unsupported file type %s for %s, supported formats: %s",
		e.Op, ext, e.Path, strings.Join(e.Supported, ", "))
}

func (e *FormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// ConversionError wraps a parse failure raised while loading a file for
// conversion. Hints are derived from the underlying message.
type ConversionError struct {
	Path  string
	Err   error
	Hints []UserMessage
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("failed to convert file %q: %v", e.Path, e.Err)
}

func (e *ConversionError) Is(target error) bool { return target == ErrConversionFailure }

func (e *ConversionError) Unwrap() error { return e.Err }

// JoinKeyError reports a join key that is absent from one side of a join.
type JoinKeyError struct {
	Key       string // normalized key
	Side      string // "main" or "lookup"
	Available []string
}

func (e *JoinKeyError) Error() string {
	return fmt.Sprintf("join key %q must be in %s columns (available: %s)",
		e.Key, e.Side, strings.Join(e.Available, ", "))
}

func (e *JoinKeyError) Is(target error) bool { return target == ErrMissingJoinKey }

// KeyTypeError reports a join key whose column kinds cannot be compared,
// such as a text key in the main data against a numeric key in the lookup.
type KeyTypeError struct {
	Key        string
	MainKind   string
	LookupKind string
}

func (e *KeyTypeError) Error() string {
	return fmt.Sprintf("join key %q is %s in main data but %s in lookup data",
		e.Key, e.MainKind, e.LookupKind)
}

func (e *KeyTypeError) Is(target error) bool { return target == ErrKeyTypeMismatch }

// FieldsError lists every requested return column missing from the lookup.
type FieldsError struct {
	Missing     []string
	Available   []string
	Suggestions map[string][]string
}

func (e *FieldsError) Error() string {
	msg := fmt.Sprintf("missing lookup fields in file: [%s] (available: %s)",
		strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
	for _, m := range e.Missing {
		if s := e.Suggestions[m]; len(s) > 0 {
			msg += fmt.Sprintf("; did you mean %s for %s?", strings.Join(s, " or "), m)
		}
	}
	return msg
}

func (e *FieldsError) Is(target error) bool { return target == ErrMissingFields }

// CollisionError reports raw column names that normalize to the same name.
type CollisionError struct {
	Name    string
	Sources []string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("columns %s all normalize to %q",
		quoteAll(e.Sources), e.Name)
}

func (e *CollisionError) Is(target error) bool { return target == ErrColumnCollision }

func quoteAll(ss []string) string {
	q := make([]string, len(ss))
	for i, s := range ss {
		q[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(q, ", ")
}
