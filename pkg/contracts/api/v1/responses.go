package api

// FileResult is the outcome of one input file.
type FileResult struct {
	Name        string `json:"name"`
	Success     bool   `json:"success"`
	Output      string `json:"output,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Error       string `json:"error,omitempty"`
	RowsIn      int    `json:"rows_in"`
	RowsOut     int    `json:"rows_out"`
	DurationMS  int64  `json:"duration_ms"`
}

// UploadResponse is returned by POST /api/contacts/uploads.
type UploadResponse struct {
	BatchID   string       `json:"batch_id"`
	Files     []FileResult `json:"files"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Log       string       `json:"log"`
}

// FolderRunResponse is returned by POST /api/contacts/folder-runs.
type FolderRunResponse struct {
	Directory string       `json:"directory"`
	Files     []FileResult `json:"files"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}
