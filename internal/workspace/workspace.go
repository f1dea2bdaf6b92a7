// Package workspace manages the .vecta directory tree that holds a
// project's config, index data and logs.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
)

const (
	DirName    = ".vecta"
	ConfigDir  = "config"
	DataDir    = "data"
	LogsDir    = "logs"
	ConfigFile = "vecta.yaml"
	IndexDir   = "index"
)

// ErrNotFound is returned when no workspace exists where one was expected.
var ErrNotFound = errors.New("workspace not found")

// Workspace is a .vecta directory inside Root.
type Workspace struct {
	Root string
}

func (w *Workspace) Dir() string        { return filepath.Join(w.Root, DirName) }
func (w *Workspace) ConfigDir() string  { return filepath.Join(w.Dir(), ConfigDir) }
func (w *Workspace) DataDir() string    { return filepath.Join(w.Dir(), DataDir) }
func (w *Workspace) LogsDir() string    { return filepath.Join(w.Dir(), LogsDir) }
func (w *Workspace) ConfigPath() string { return filepath.Join(w.ConfigDir(), ConfigFile) }
func (w *Workspace) IndexPath() string  { return filepath.Join(w.DataDir(), IndexDir) }

func (w *Workspace) Exists() bool {
	info, err := os.Stat(w.Dir())
	return err == nil && info.IsDir()
}

// At returns the workspace rooted at dir without touching the disk.
func At(dir string) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "workspace", dir, err)
	}
	return &Workspace{Root: abs}, nil
}

// Global returns the workspace in the user's home directory.
func Global() (*Workspace, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "workspace", "", fmt.Errorf("home directory not found: %w", err))
	}
	return &Workspace{Root: home}, nil
}

// Locate finds the nearest workspace at or above start.
func Locate(start string) (*Workspace, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "workspace", start, err)
	}
	for {
		ws := &Workspace{Root: dir}
		if ws.Exists() {
			return ws, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "workspace", start,
				fmt.Errorf("%w: run 'vecta init' first", ErrNotFound))
		}
		dir = parent
	}
}

// Init creates the workspace tree and a default config document. An
// existing config is left alone. created reports whether anything was made.
func Init(w *Workspace, cfg *config.Config) (created bool, err error) {
	for _, dir := range []string{w.ConfigDir(), w.DataDir(), w.LogsDir()} {
		if _, statErr := os.Stat(dir); errors.Is(statErr, os.ErrNotExist) {
			created = true
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return created, apperrors.Wrap(apperrors.ErrInvalidInput, "init", dir, err)
		}
	}
	if _, err := os.Stat(w.ConfigPath()); err == nil {
		return created, nil
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := config.Write(w.ConfigPath(), cfg); err != nil {
		return created, apperrors.Wrap(apperrors.ErrInvalidInput, "init", w.ConfigPath(), err)
	}
	return true, nil
}

// Destroy removes the workspace directory and everything in it.
func Destroy(w *Workspace) error {
	if !w.Exists() {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "destroy", w.Dir(), ErrNotFound)
	}
	if err := os.RemoveAll(w.Dir()); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "destroy", w.Dir(), err)
	}
	return nil
}

// LoadConfig reads the workspace config document, falling back to defaults
// when the workspace has none.
func (w *Workspace) LoadConfig() (*config.Config, error) {
	path := w.ConfigPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		path = ""
	}
	return config.Load(path)
}

// Resolve fills the workspace-relative settings cfg leaves empty.
func (w *Workspace) Resolve(cfg *config.Config) {
	if cfg.Indexer.DataDir == "" {
		cfg.Indexer.DataDir = w.IndexPath()
	} else if !filepath.IsAbs(cfg.Indexer.DataDir) {
		cfg.Indexer.DataDir = filepath.Join(w.Root, cfg.Indexer.DataDir)
	}
	if cfg.Logging.File != "" && !filepath.IsAbs(cfg.Logging.File) {
		cfg.Logging.File = filepath.Join(w.LogsDir(), cfg.Logging.File)
	}
}
