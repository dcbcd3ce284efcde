package web

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/datacleaner/internal/core"
	"github.com/JonMunkholm/datacleaner/internal/errs"
)

var (
	errOutsideRoot  = errors.New("path escapes the data directory")
	errDanglingLink = errors.New("path contains a dangling symlink")
)

// resolvePath confines a client-supplied path to root. Relative paths are
// taken relative to root; absolute paths must already lie inside it. The
// check follows symlinks, so a link inside root that points elsewhere is
// rejected. The returned path is the cleaned, unresolved one. With an empty
// root the cleaned path is returned unchanged.
func resolvePath(root, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", &errs.PathError{Kind: errs.ErrInvalidPath, Op: "resolve", Path: p}
	}
	if root == "" {
		return filepath.Clean(p), nil
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", &errs.PathError{Kind: errs.ErrInvalidPath, Op: "resolve", Path: p, Err: err}
	}

	full := filepath.Clean(p)
	if !filepath.IsAbs(full) {
		full = filepath.Join(rootAbs, full)
	}
	if !within(rootAbs, full) {
		return "", &errs.PathError{Kind: errs.ErrInvalidPath, Op: "resolve", Path: p, Err: errOutsideRoot}
	}

	realRoot, err := resolveExisting(rootAbs)
	if err != nil {
		return "", &errs.PathError{Kind: errs.ErrInvalidPath, Op: "resolve", Path: p, Err: err}
	}
	realFull, err := resolveExisting(full)
	if err != nil {
		return "", &errs.PathError{Kind: errs.ErrInvalidPath, Op: "resolve", Path: p, Err: err}
	}
	if !within(realRoot, realFull) {
		return "", &errs.PathError{Kind: errs.ErrInvalidPath, Op: "resolve", Path: p, Err: errOutsideRoot}
	}
	return full, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveExisting evaluates symlinks in the longest existing prefix of p
// and appends the remaining components unchanged. p must be absolute.
func resolveExisting(p string) (string, error) {
	var rest []string
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if _, lerr := os.Lstat(cur); lerr == nil {
			return "", errDanglingLink
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}

// resolveOptional is resolvePath for fields that may be left empty.
func resolveOptional(root, p string) (string, error) {
	if p == "" {
		return "", nil
	}
	return resolvePath(root, p)
}

// resolveRequest confines every path in req to root.
func (s *Server) resolveRequest(req *core.RunRequest) error {
	root := s.cfg.Server.DataRoot
	var err error
	if req.Input, err = resolvePath(root, req.Input); err != nil {
		return err
	}
	if req.ConvertDir, err = resolveOptional(root, req.ConvertDir); err != nil {
		return err
	}
	// Postgres output names a table, not a file.
	if !strings.EqualFold(req.OutputFormat, "postgres") {
		if req.Output, err = resolveOptional(root, req.Output); err != nil {
			return err
		}
	}
	if req.Lookup != nil {
		if req.Lookup.Path, err = resolvePath(root, req.Lookup.Path); err != nil {
			return err
		}
	}
	return nil
}
