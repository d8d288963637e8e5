package services

import "errors"

// Contact service errors
var (
	// Upload errors
	ErrNoFiles      = errors.New("no files provided")
	ErrTooManyFiles = errors.New("too many files in one upload")

	// Result errors
	ErrBatchNotFound = errors.New("batch not found")
	ErrFileNotFound  = errors.New("file not found")

	// Folder run errors
	ErrFolderRunsDisabled = errors.New("folder runs are disabled")
	ErrOutsideFolderRoot  = errors.New("directory is outside the allowed folder root")

	// Batch errors
	ErrDuplicateOutput = errors.New("output already produced in this batch")
)
