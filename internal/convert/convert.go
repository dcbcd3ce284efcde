// Package convert turns any supported tabular file into canonical CSV.
//
// CSV and Parquet inputs are already canonical and are returned unchanged
// without being read. Everything else is loaded and written to
// <OutputDir>/<stem>.converted.csv.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/datacleaner/internal/dataset"
	"github.com/JonMunkholm/datacleaner/internal/errs"
	"github.com/JonMunkholm/datacleaner/internal/format"
	"github.com/JonMunkholm/datacleaner/internal/resource"
	"github.com/JonMunkholm/datacleaner/internal/sink"
)

// DefaultOutputDir is used when Converter.OutputDir is empty.
const DefaultOutputDir = "converted"

// Result describes a conversion.
type Result struct {
	// Path is the canonical file: the input itself when already canonical.
	Path       string              `json:"path"`
	Converted  bool                `json:"converted"`
	Format     string              `json:"format"`
	Rows       int                 `json:"rows"`
	Cols       int                 `json:"cols"`
	Assessment resource.Assessment `json:"assessment"`
}

// Converter converts files to canonical CSV.
type Converter struct {
	OutputDir string
	// Delimiter overrides the delimiter for .tsv and .txt input; zero keeps
	// the format default (tab for .tsv, auto-detection for .txt).
	Delimiter rune
	Advisor   *resource.Advisor // nil skips the resource check
	Logger    *slog.Logger
}

func (c *Converter) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Convert converts inputPath into c.OutputDir.
func (c *Converter) Convert(ctx context.Context, inputPath string) (Result, error) {
	return c.ConvertTo(ctx, inputPath, c.OutputDir)
}

// ConvertTo converts inputPath into outDir, creating it when missing.
// Re-running with the same input overwrites the previous artifact with
// byte-identical output.
func (c *Converter) ConvertTo(ctx context.Context, inputPath, outDir string) (Result, error) {
	log := c.logger()

	if err := CheckReadable("convert", inputPath); err != nil {
		return Result{}, err
	}

	src, err := format.Resolve(inputPath, format.ForInput)
	if err != nil {
		return Result{}, err
	}

	var as resource.Assessment
	if c.Advisor != nil {
		as = c.Advisor.Assess(ctx, inputPath)
		if as.Degraded {
			log.Warn("resource check degraded, using defaults", "path", inputPath, "error", as.Err)
		}
	}

	if src.Canonical() {
		log.Debug("input already canonical", "path", inputPath, "format", src.Format.Name)
		return Result{Path: inputPath, Format: src.Format.Name, Assessment: as}, nil
	}

	log.Info("converting file", "path", inputPath, "format", src.Format.Name, "compression", src.Compression)

	ds, err := src.Load(ctx, format.Options{Delimiter: c.Delimiter, Logger: log})
	if err != nil {
		hints := errs.Hints(err)
		for _, h := range hints {
			log.Warn("conversion hint", "path", inputPath, "hint", h.Action, "code", h.Code)
		}
		return Result{}, &errs.ConversionError{Path: inputPath, Err: err, Hints: hints}
	}

	if ds.Empty() {
		return Result{}, &errs.PathError{Kind: errs.ErrEmptyData, Op: "convert", Path: inputPath}
	}

	if outDir == "" {
		outDir = DefaultOutputDir
	}
	out := OutputPath(outDir, src)
	if _, err := (sink.CSV{}).Write(ctx, ds, out); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", out, err)
	}

	log.Info("file converted",
		"input", inputPath,
		"output", out,
		"rows", ds.NumRows(),
		"cols", ds.NumCols(),
	)
	return Result{
		Path:       out,
		Converted:  true,
		Format:     src.Format.Name,
		Rows:       ds.NumRows(),
		Cols:       ds.NumCols(),
		Assessment: as,
	}, nil
}

// OutputPath is <outDir>/<stem>.converted.csv.
func OutputPath(outDir string, src format.Source) string {
	return filepath.Join(outDir, src.Stem()+".converted.csv")
}

// CheckPath rejects empty paths. Confinement to a data root is the
// caller's concern (see web.resolvePath).
func CheckPath(op, path string) error {
	if strings.TrimSpace(path) == "" {
		return &errs.PathError{Kind: errs.ErrInvalidPath, Op: op, Path: path}
	}
	return nil
}

// CheckReadable validates path, then confirms it exists, is a regular file
// and can be opened for reading.
func CheckReadable(op, path string) error {
	if err := CheckPath(op, path); err != nil {
		return err
	}

	fi, err := os.Stat(path)
	if err != nil {
		return statError(op, path, err)
	}
	if fi.IsDir() {
		return &errs.PathError{Kind: errs.ErrInvalidPath, Op: op, Path: path, Err: errors.New("is a directory")}
	}

	f, err := os.Open(path)
	if err != nil {
		return statError(op, path, err)
	}
	return f.Close()
}

func statError(op, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &errs.PathError{Kind: errs.ErrNotFound, Op: op, Path: path}
	case errors.Is(err, fs.ErrPermission):
		return &errs.PathError{Kind: errs.ErrPermissionDenied, Op: op, Path: path, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// LoadCanonical reads a canonical (CSV or Parquet) file produced by, or
// passed through, Convert.
func LoadCanonical(ctx context.Context, path string, logger *slog.Logger) (*dataset.Dataset, error) {
	src, err := format.Resolve(path, format.ForInput)
	if err != nil {
		return nil, err
	}
	return src.Load(ctx, format.Options{Logger: logger})
}
