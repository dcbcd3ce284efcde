package lookup

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/JonMunkholm/datacleaner/internal/dataset"
	"github.com/JonMunkholm/datacleaner/internal/errs"
	"github.com/JonMunkholm/datacleaner/internal/format"
)

// LoadFunc reads a resolved lookup source.
type LoadFunc func(ctx context.Context, src format.Source) (*dataset.Dataset, error)

// DefaultLoad reads src with its registered format loader.
func DefaultLoad(ctx context.Context, src format.Source) (*dataset.Dataset, error) {
	return src.Load(ctx, format.Options{})
}

// Loader loads lookup tables, consulting Cache when asked to.
type Loader struct {
	Cache  *Cache   // nil disables caching
	Load   LoadFunc // nil means DefaultLoad
	Logger *slog.Logger
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// LoadLookup returns the table at path. With useCache, a cached table for
// the exact same path string is returned without touching the file, and a
// freshly loaded table is cached. Without useCache the cache is neither
// read nor written.
func (l *Loader) LoadLookup(ctx context.Context, path string, useCache bool) (*dataset.Dataset, error) {
	log := l.logger()

	if useCache && l.Cache != nil {
		if ds, ok := l.Cache.Get(path); ok {
			log.Info("using cached lookup table", "path", path)
			return ds, nil
		}
	}

	fi, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Error("lookup file not found", "path", path)
		return nil, &errs.PathError{Kind: errs.ErrNotFound, Op: "lookup", Path: path}
	case errors.Is(err, fs.ErrPermission):
		return nil, &errs.PathError{Kind: errs.ErrPermissionDenied, Op: "lookup", Path: path, Err: err}
	case err != nil:
		return nil, &errs.PathError{Kind: errs.ErrLoadFailure, Op: "lookup", Path: path, Err: err}
	case fi.IsDir():
		return nil, &errs.PathError{Kind: errs.ErrNotFound, Op: "lookup", Path: path, Err: errors.New("is a directory")}
	}

	src, err := format.Resolve(path, format.ForLookup)
	if err != nil {
		return nil, err
	}

	load := l.Load
	if load == nil {
		load = DefaultLoad
	}
	ds, err := load(ctx, src)
	if err != nil {
		log.Error("failed to load lookup file", "path", path, "error", err)
		return nil, &errs.PathError{Kind: errs.ErrLoadFailure, Op: "lookup", Path: path, Err: err}
	}

	if useCache && l.Cache != nil {
		for _, old := range l.Cache.Put(path, ds) {
			log.Info("lookup cache entry evicted", "path", old)
		}
		log.Info("cached lookup table", "path", path, "rows", ds.NumRows())
	} else {
		log.Info("lookup loaded without caching", "path", path, "rows", ds.NumRows())
	}
	return ds, nil
}
