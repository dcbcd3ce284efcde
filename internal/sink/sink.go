// Package sink writes enriched datasets to their destination: a CSV file, a
// Parquet file, or a PostgreSQL table.
package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/datacleaner/internal/dataset"
	"github.com/JonMunkholm/datacleaner/internal/format"
)

// Output formats.
const (
	FormatCSV      = "csv"
	FormatParquet  = "parquet"
	FormatPostgres = "postgres"
)

// Sink writes a dataset to target and returns where it ended up: a file
// path for file sinks, a qualified table name for PostgreSQL.
type Sink interface {
	Write(ctx context.Context, ds *dataset.Dataset, target string) (string, error)
}

// FileExt returns the file extension for a file output format, or "" for
// formats that do not write files.
func FileExt(outputFormat string) string {
	switch outputFormat {
	case FormatCSV:
		return ".csv"
	case FormatParquet:
		return ".parquet"
	}
	return ""
}

// CSV writes canonical CSV files.
type CSV struct{}

func (CSV) Write(ctx context.Context, ds *dataset.Dataset, target string) (string, error) {
	if err := WriteFileAtomic(target, func(w io.Writer) error {
		return dataset.WriteCSV(w, ds)
	}); err != nil {
		return "", err
	}
	return target, nil
}

// Parquet writes single-file Parquet tables.
type Parquet struct{}

func (Parquet) Write(ctx context.Context, ds *dataset.Dataset, target string) (string, error) {
	if err := WriteFileAtomic(target, func(w io.Writer) error {
		return format.WriteParquet(w, ds)
	}); err != nil {
		return "", err
	}
	return target, nil
}

// WriteFileAtomic creates path's directory (and parents), writes through fn
// into a temporary file next to path, and renames it into place. A failed
// write leaves any existing file at path untouched.
func WriteFileAtomic(path string, fn func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = fn(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
