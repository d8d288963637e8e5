package files

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Workspace is a private temporary directory holding one batch of uploaded
// files and their outputs. Close removes it and everything in it.
type Workspace struct {
	dir    string
	logger *slog.Logger
}

// NewWorkspace creates a fresh directory under parent (os.TempDir when empty).
func NewWorkspace(parent, prefix string, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if parent != "" {
		if err := os.MkdirAll(parent, 0755); err != nil {
			return nil, fmt.Errorf("failed to create workspace parent: %w", err)
		}
	}
	dir, err := os.MkdirTemp(parent, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	logger.Debug("workspace created", slog.String("dir", dir))
	return &Workspace{dir: dir, logger: logger}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the workspace path for a file name after sanitizing it.
func (w *Workspace) Path(name string) (string, error) {
	clean, err := SanitizeFilename(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(w.dir, clean), nil
}

// Save copies src into the workspace under name and returns the saved path.
func (w *Workspace) Save(name string, src io.Reader) (string, error) {
	dst, err := w.Path(name)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}
	return dst, nil
}

// Close removes the workspace directory. It is safe to call more than once.
func (w *Workspace) Close() error {
	if w.dir == "" {
		return nil
	}
	err := os.RemoveAll(w.dir)
	w.logger.Debug("workspace removed", slog.String("dir", w.dir), slog.Any("error", err))
	w.dir = ""
	return err
}

// SanitizeFilename reduces an uploaded file name to a safe base name.
func SanitizeFilename(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(name)
	if base == "." || base == "/" || base == ".." || strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if strings.ContainsRune(base, 0) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return base, nil
}
