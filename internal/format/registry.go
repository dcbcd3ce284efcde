// Package format loads tabular files into datasets.
//
// Formats register themselves by extension. Text formats (csv, tsv, txt,
// json, jsonl) may carry a compression suffix (.gz, .bz2, .zst, .xz);
// Excel and Parquet may not.
package format

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/datacleaner/internal/dataset"
	"github.com/JonMunkholm/datacleaner/internal/errs"
)

// Options tune a single load.
type Options struct {
	// Delimiter overrides the format's delimiter for delimited text. Zero
	// means the format default (auto-detection for .txt).
	Delimiter rune
	Logger    *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// LoadFunc reads the file at path. src has already been checked for a
// compression suffix the format accepts.
type LoadFunc func(ctx context.Context, src Source, opts Options) (*dataset.Dataset, error)

// Format describes one supported extension.
type Format struct {
	Name      string
	Ext       string // ".csv"
	Canonical bool   // already in canonical form; conversion is a no-op
	Input     bool   // accepted as primary input
	Lookup    bool   // accepted as a lookup source
	Text      bool   // may be wrapped in a compression suffix
	Load      LoadFunc
}

// Source is a resolved input file.
type Source struct {
	Path        string
	Format      Format
	Compression string // "", ".gz", ".bz2", ".zst" or ".xz"
}

// Canonical reports whether the file can be used as-is without conversion.
func (s Source) Canonical() bool { return s.Format.Canonical && s.Compression == "" }

// Stem returns the file name without directory, compression suffix and
// extension.
func (s Source) Stem() string {
	base := filepath.Base(s.Path)
	base = base[:len(base)-len(s.Compression)]
	return base[:len(base)-len(s.Format.Ext)]
}

// Load reads the source with its format's loader.
func (s Source) Load(ctx context.Context, opts Options) (*dataset.Dataset, error) {
	return s.Format.Load(ctx, s, opts)
}

var (
	registry   = make(map[string]Format)
	registryMu sync.RWMutex
)

// Register adds a format. Panics if the extension is already registered.
func Register(f Format) {
	registryMu.Lock()
	defer registryMu.Unlock()

	f.Ext = strings.ToLower(f.Ext)
	if _, exists := registry[f.Ext]; exists {
		panic(fmt.Sprintf("format already registered: %s", f.Ext))
	}
	registry[f.Ext] = f
}

// Get returns the format registered for ext (".csv"), case-insensitively.
func Get(ext string) (Format, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	f, ok := registry[strings.ToLower(ext)]
	return f, ok
}

// All returns every registered format sorted by extension.
func All() []Format {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]Format, 0, len(registry))
	for _, f := range registry {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ext < out[j].Ext })
	return out
}

// InputExtensions lists extensions accepted as primary input.
func InputExtensions() []string {
	return extensions(func(f Format) bool { return f.Input })
}

// LookupExtensions lists extensions accepted as lookup sources.
func LookupExtensions() []string {
	return extensions(func(f Format) bool { return f.Lookup })
}

func extensions(keep func(Format) bool) []string {
	var exts []string
	for _, f := range All() {
		if keep(f) {
			exts = append(exts, f.Ext)
		}
	}
	return exts
}

// Purpose selects which extension set Resolve checks against.
type Purpose int

const (
	ForInput Purpose = iota
	ForLookup
)

// Resolve identifies the format of path from its extension. It returns an
// *errs.FormatError when the extension, or its compression suffix, is not
// accepted for the given purpose.
func Resolve(path string, purpose Purpose) (Source, error) {
	op, allowed := "convert", InputExtensions()
	if purpose == ForLookup {
		op, allowed = "lookup", LookupExtensions()
	}

	name := strings.ToLower(filepath.Base(path))
	comp := compressionSuffix(name)
	ext := filepath.Ext(strings.TrimSuffix(name, comp))

	unsupported := &errs.FormatError{Op: op, Path: path, Ext: ext + comp, Supported: allowed}

	f, ok := Get(ext)
	if !ok {
		return Source{}, unsupported
	}
	if purpose == ForInput && !f.Input || purpose == ForLookup && !f.Lookup {
		return Source{}, unsupported
	}
	if comp != "" && !f.Text {
		return Source{}, unsupported
	}
	return Source{Path: path, Format: f, Compression: comp}, nil
}

func init() {
	Register(Format{Name: "csv", Ext: ".csv", Canonical: true, Input: true, Lookup: true, Text: true, Load: loadCSV})
	Register(Format{Name: "tsv", Ext: ".tsv", Input: true, Text: true, Load: loadTSV})
	Register(Format{Name: "txt", Ext: ".txt", Input: true, Text: true, Load: loadTXT})
	Register(Format{Name: "json", Ext: ".json", Input: true, Lookup: true, Text: true, Load: loadJSON})
	Register(Format{Name: "jsonl", Ext: ".jsonl", Input: true, Lookup: true, Text: true, Load: loadJSONL})
	Register(Format{Name: "xlsx", Ext: ".xlsx", Input: true, Lookup: true, Load: loadExcel})
	Register(Format{Name: "xls", Ext: ".xls", Input: true, Lookup: true, Load: loadExcel})
	Register(Format{Name: "parquet", Ext: ".parquet", Canonical: true, Input: true, Lookup: true, Load: loadParquet})
}
