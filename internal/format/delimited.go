package format

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/JonMunkholm/datacleaner/internal/dataset"
)

func loadCSV(ctx context.Context, src Source, opts Options) (*dataset.Dataset, error) {
	return loadDelimited(src, opts, delimiterOr(opts.Delimiter, ','))
}

func loadTSV(ctx context.Context, src Source, opts Options) (*dataset.Dataset, error) {
	return loadDelimited(src, opts, delimiterOr(opts.Delimiter, '\t'))
}

func delimiterOr(d, def rune) rune {
	if d != 0 {
		return d
	}
	return def
}

func loadDelimited(src Source, opts Options, delim rune) (*dataset.Dataset, error) {
	r, closeFn, err := openText(src, opts)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return ParseDelimited(r, delim)
}

// ParseDelimited reads delimited text with a header row. Every record must
// have as many fields as the header. Cell types are inferred per column.
// Input with no header yields an empty dataset.
func ParseDelimited(r io.Reader, delim rune) (*dataset.Dataset, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return dataset.New(nil, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = dedupeHeader(header)

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return dataset.InferRows(header, rows)
}

// dedupeHeader renames repeated header names to name.1, name.2, ... and
// fills blank names with "Unnamed: i" so no column is lost before
// normalization.
func dedupeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	counts := make(map[string]int)
	for i, h := range header {
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for seen[name] {
			counts[h]++
			name = h + "." + strconv.Itoa(counts[h])
		}
		seen[name] = true
		out[i] = name
	}
	return out
}

func loadTXT(ctx context.Context, src Source, opts Options) (*dataset.Dataset, error) {
	if opts.Delimiter != 0 {
		return loadDelimited(src, opts, opts.Delimiter)
	}

	data, err := readAllText(src, opts)
	if err != nil {
		return nil, err
	}

	sn := newSniffer(data)
	ds, err := sn.run()
	if err != nil {
		return nil, err
	}
	log := opts.logger()
	if sn.fellBack {
		log.Warn("delimiter auto-detection failed, used fallback",
			"path", src.Path,
			"delimiter", strconv.QuoteRune(sn.used),
			"detect_error", sn.detectErr.Error(),
		)
	} else {
		log.Debug("delimiter detected", "path", src.Path, "delimiter", strconv.QuoteRune(sn.used))
	}
	return ds, nil
}

// Sniffing proceeds Detecting -> Succeeded, or Detecting ->
// TryingCandidate(0..n) -> Succeeded | Exhausted.
type sniffState int

const (
	stateDetecting sniffState = iota
	stateTryingCandidate
	stateSucceeded
	stateExhausted
)

var (
	// detectCandidates are the delimiters auto-detection considers, in
	// tie-break order.
	detectCandidates = []rune{',', '\t', ';', '|', ':'}
	// fallbackDelimiters are tried in order once detection fails.
	fallbackDelimiters = []rune{'\t', ';', '|'}
)

const sniffSampleLines = 20

type sniffer struct {
	data      []byte
	state     sniffState
	candidate int

	result    *dataset.Dataset
	used      rune
	fellBack  bool
	detectErr error
}

func newSniffer(data []byte) *sniffer {
	return &sniffer{data: data, state: stateDetecting}
}

func (s *sniffer) run() (*dataset.Dataset, error) {
	for {
		switch s.state {
		case stateDetecting:
			delim, err := detectDelimiter(s.data)
			if err == nil {
				var ds *dataset.Dataset
				if ds, err = ParseDelimited(bytes.NewReader(s.data), delim); err == nil {
					s.result, s.used = ds, delim
					s.state = stateSucceeded
					continue
				}
				err = fmt.Errorf("could not determine delimiter: parse with %s: %w", strconv.QuoteRune(delim), err)
			}
			s.detectErr = err
			s.state = stateTryingCandidate
			s.candidate = 0

		case stateTryingCandidate:
			if s.candidate >= len(fallbackDelimiters) {
				s.state = stateExhausted
				continue
			}
			delim := fallbackDelimiters[s.candidate]
			if ds, err := ParseDelimited(bytes.NewReader(s.data), delim); err == nil {
				s.result, s.used, s.fellBack = ds, delim, true
				s.state = stateSucceeded
				continue
			}
			s.candidate++

		case stateSucceeded:
			return s.result, nil

		case stateExhausted:
			return nil, s.detectErr
		}
	}
}

// detectDelimiter samples the first non-empty lines and returns the candidate
// that appears the same non-zero number of times on every sampled line,
// preferring the highest count and then candidate order. Delimiters inside
// double quotes are not counted.
func detectDelimiter(data []byte) (rune, error) {
	lines := sampleLines(data, sniffSampleLines)
	if len(lines) == 0 {
		return 0, errors.New("could not determine delimiter: no data")
	}

	best, bestCount := rune(0), 0
	for _, c := range detectCandidates {
		n := countOutsideQuotes(lines[0], c)
		if n == 0 || n <= bestCount {
			continue
		}
		consistent := true
		for _, l := range lines[1:] {
			if countOutsideQuotes(l, c) != n {
				consistent = false
				break
			}
		}
		if consistent {
			best, bestCount = c, n
		}
	}
	if best == 0 {
		return 0, errors.New("could not determine delimiter")
	}
	return best, nil
}

func sampleLines(data []byte, max int) [][]byte {
	var lines [][]byte
	for len(data) > 0 && len(lines) < max {
		var line []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			line, data = data, nil
		}
		line = bytes.TrimRight(line, "\r")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func countOutsideQuotes(line []byte, delim rune) int {
	n := 0
	quoted := false
	for _, r := range string(line) {
		switch {
		case r == '"':
			quoted = !quoted
		case r == delim && !quoted:
			n++
		}
	}
	return n
}

// ParseDelimiter reads a user-supplied delimiter. Escapes \t and "tab" are
// accepted; an empty string selects detection and returns 0.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case `\t`, "tab", "\t":
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return r, nil
}
