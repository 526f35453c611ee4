package models

type SyncItem struct {
	Path      string `json:"path"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	Resumed   bool   `json:"resumed,omitempty"`
	Error     string `json:"error,omitempty"`
}

type SyncResult struct {
	URL             string     `json:"url"`
	OutputDir       string     `json:"output_dir"`
	Items           []SyncItem `json:"items"`
	TotalFiles      int        `json:"total_files"`
	CompletedFiles  int        `json:"completed_files"`
	SkippedFiles    int        `json:"skipped_files"`
	FailedItems     int        `json:"failed_items"`
	TotalSizeBytes  int64      `json:"total_size_bytes"`
	TotalSizeHuman  string     `json:"total_size_human"`
	DownloadedBytes int64      `json:"downloaded_bytes"`
	UpToDate        bool       `json:"up_to_date,omitempty"`
	OperationTime   string     `json:"operation_time"`
	SyncDuration    string     `json:"sync_duration"`
}
