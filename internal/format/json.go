package format

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/JonMunkholm/datacleaner/internal/dataset"
)

// jsonRows accumulates object rows, keeping keys in first-seen order.
type jsonRows struct {
	names []string
	index map[string]int
	rows  []map[string]dataset.Value
}

func newJSONRows() *jsonRows {
	return &jsonRows{index: make(map[string]int)}
}

func (j *jsonRows) add(keys []string, vals map[string]dataset.Value) {
	for _, k := range keys {
		if _, ok := j.index[k]; !ok {
			j.index[k] = len(j.names)
			j.names = append(j.names, k)
		}
	}
	j.rows = append(j.rows, vals)
}

func (j *jsonRows) dataset() (*dataset.Dataset, error) {
	cols := make([]dataset.Column, len(j.names))
	for c, name := range j.names {
		vals := make([]dataset.Value, len(j.rows))
		for i, r := range j.rows {
			vals[i] = r[name]
		}
		cols[c] = dataset.Column{Name: name, Values: dataset.Unify(vals)}
	}
	return dataset.FromColumns(cols)
}

// decodeObject reads one JSON object from dec, returning its keys in order.
// A repeated key keeps its last value.
func decodeObject(dec *json.Decoder) ([]string, map[string]dataset.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	var keys []string
	vals := make(map[string]dataset.Value)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("value for %q: %w", key, err)
		}
		v, err := jsonValue(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("value for %q: %w", key, err)
		}
		if _, seen := vals[key]; !seen {
			keys = append(keys, key)
		}
		vals[key] = v
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, nil, err
	}
	return keys, vals, nil
}

// jsonValue maps a raw JSON value to a cell. Numbers become Int when they fit
// an int64 and Float otherwise; arrays and objects are kept as compact JSON
// text.
func jsonValue(raw json.RawMessage) (dataset.Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return dataset.Null(), nil
	}
	switch raw[0] {
	case 'n':
		return dataset.Null(), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return dataset.Value{}, err
		}
		return dataset.Bool(b), nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return dataset.Value{}, err
		}
		return dataset.Text(s), nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return dataset.Value{}, err
		}
		return dataset.Text(buf.String()), nil
	default:
		s := string(raw)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return dataset.Int(i), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return dataset.Value{}, fmt.Errorf("invalid number %q", s)
		}
		return dataset.Float(f), nil
	}
}

func loadJSON(ctx context.Context, src Source, opts Options) (*dataset.Dataset, error) {
	r, closeFn, err := openText(src, opts)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return ParseJSON(r)
}

// ParseJSON reads a top-level JSON array of row objects.
func ParseJSON(r io.Reader) (*dataset.Dataset, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return dataset.New(nil, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("invalid JSON: expected an array of objects, got %v", tok)
	}

	rows := newJSONRows()
	for i := 0; dec.More(); i++ {
		keys, vals, err := decodeObject(dec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		rows.add(keys, vals)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if tok, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return nil, fmt.Errorf("invalid JSON: trailing data after array: %v", tok)
	}
	return rows.dataset()
}

func loadJSONL(ctx context.Context, src Source, opts Options) (*dataset.Dataset, error) {
	r, closeFn, err := openText(src, opts)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return ParseJSONL(r)
}

// ParseJSONL reads one JSON object per line. Blank lines are skipped.
func ParseJSONL(r io.Reader) (*dataset.Dataset, error) {
	br := bufio.NewReader(r)
	rows := newJSONRows()
	for lineNo := 1; ; lineNo++ {
		line, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if len(bytes.TrimSpace(line)) > 0 {
			dec := json.NewDecoder(bytes.NewReader(line))
			keys, vals, derr := decodeObject(dec)
			if derr != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, derr)
			}
			if dec.More() {
				return nil, fmt.Errorf("line %d: trailing data after object", lineNo)
			}
			rows.add(keys, vals)
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}
	return rows.dataset()
}
