// Package walker discovers candidate files under a directory tree. The walk
// is depth-first in lexical order, skips hidden entries, applies FilterRules
// and never fails because of a single unreadable entry.
package walker

import (
	"context"
	"errors"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
)

var errSymlinkDir = errors.New("symlinked directory not followed")

// Walker yields the files under a root that pass its rules.
type Walker struct {
	rules     compiledRules
	logger    *slog.Logger
	onWarning func(path string, err error)
	warnings  atomic.Int64
}

type Option func(*Walker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Walker) {
		w.logger = logger
	}
}

// WithWarningHandler registers fn to be called for every skipped entry.
func WithWarningHandler(fn func(path string, err error)) Option {
	return func(w *Walker) {
		w.onWarning = fn
	}
}

func New(rules FilterRules, opts ...Option) *Walker {
	w := &Walker{
		rules:  compile(rules),
		logger: slog.Default().With("component", "walker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Warnings returns how many entries were skipped because they could not be
// read.
func (w *Walker) Warnings() int64 {
	return w.warnings.Load()
}

// Walk lazily yields the path of every eligible file under root. The
// sequence ends early when the consumer stops or ctx is done.
func (w *Walker) Walk(ctx context.Context, root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return filepath.SkipAll
			}
			if err != nil {
				w.warn(p, err)
				if d != nil && d.IsDir() && p != root {
					return filepath.SkipDir
				}
				return nil
			}
			name := d.Name()
			rel, relErr := filepath.Rel(root, p)
			if relErr != nil {
				w.warn(p, relErr)
				return nil
			}
			rel = filepath.ToSlash(rel)
			if p == root {
				if d.IsDir() {
					return nil
				}
				rel = name
			} else if isHidden(name) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				if w.rules.excludesDir(name, rel) {
					w.logger.Debug("directory excluded", "path", p)
					return filepath.SkipDir
				}
				return nil
			}
			if !w.regularFile(p, d) {
				return nil
			}
			if w.rules.excludesFile(name, rel) || !w.rules.includesFile(name, rel) {
				return nil
			}
			if !yield(p) {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			w.warn(root, err)
		}
	}
}

// regularFile resolves symlinks without following directories, which keeps
// the walk free of cycles.
func (w *Walker) regularFile(p string, d fs.DirEntry) bool {
	if d.Type()&fs.ModeSymlink == 0 {
		return d.Type().IsRegular()
	}
	info, err := os.Stat(p)
	if err != nil {
		w.warn(p, err)
		return false
	}
	if info.IsDir() {
		w.warn(p, errSymlinkDir)
		return false
	}
	return info.Mode().IsRegular()
}

func (w *Walker) warn(path string, err error) {
	w.warnings.Add(1)
	w.logger.Warn("skipping unreadable entry", "path", path, "error", err)
	if w.onWarning != nil {
		w.onWarning(path, err)
	}
}
