package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// SniffLen is how many leading bytes SniffContent inspects.
const SniffLen = 512

// Validation errors
var (
	ErrNotCSV        = errors.New("not a CSV file")
	ErrLockFile      = errors.New("office lock file")
	ErrEmptyFile     = errors.New("file is empty")
	ErrBinaryContent = errors.New("file content is not text")
	ErrNotDirectory  = errors.New("not a directory")
)

var zipMagic = []byte("PK\x03\x04")

// FileValidator checks uploads and input folders before they reach the
// cleaning pipeline.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateInputDirectory checks that dir exists and is a directory. A
// missing directory returns an error wrapping fs.ErrNotExist.
func (v *FileValidator) ValidateInputDirectory(dir string) error {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		v.logger.Warn("Input directory does not exist",
			slog.String("directory", dir))
		return fmt.Errorf("input directory %s: %w", dir, err)
	}
	if err != nil {
		v.logger.Error("Failed to stat input directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		v.logger.Warn("Input path is not a directory",
			slog.String("path", dir))
		return fmt.Errorf("%s: %w", dir, ErrNotDirectory)
	}
	return nil
}

// ValidateUploadName accepts names with a .csv extension (any case) that
// are not Office lock files.
func (v *FileValidator) ValidateUploadName(name string) error {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "~$") {
		return fmt.Errorf("%s: %w", base, ErrLockFile)
	}
	if ext := filepath.Ext(base); !strings.EqualFold(ext, ".csv") {
		v.logger.Debug("Rejected upload extension",
			slog.String("file", base),
			slog.String("extension", ext))
		return fmt.Errorf("%s (extension %q): %w", base, ext, ErrNotCSV)
	}
	return nil
}

// SniffContent rejects empty content and content that looks binary: a zip
// container (an .xlsx renamed to .csv), NUL bytes, or invalid UTF-8. head is
// the first SniffLen bytes or fewer.
func (v *FileValidator) SniffContent(name string, head []byte) error {
	if len(head) == 0 {
		return fmt.Errorf("%s: %w", name, ErrEmptyFile)
	}
	if bytes.HasPrefix(head, zipMagic) || bytes.IndexByte(head, 0) >= 0 {
		return fmt.Errorf("%s: %w", name, ErrBinaryContent)
	}
	// A multi-byte rune may be cut at the sniff boundary.
	if len(head) >= SniffLen {
		for i := 0; i < utf8.UTFMax && len(head) > 0 && !utf8.Valid(head); i++ {
			head = head[:len(head)-1]
		}
	}
	if !utf8.Valid(head) {
		return fmt.Errorf("%s: %w", name, ErrBinaryContent)
	}
	return nil
}
