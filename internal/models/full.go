package models

type FullResult struct {
	URL              string `json:"url"`
	OutputPath       string `json:"output_path"`
	Type             string `json:"type"`
	SizeBytes        int64  `json:"size_bytes"`
	SizeHuman        string `json:"size_human"`
	ArchiveFiles     int    `json:"archive_files,omitempty"`
	ContentSizeBytes int64  `json:"content_size_bytes,omitempty"`
	ContentSizeHuman string `json:"content_size_human,omitempty"`
	Resumed          bool   `json:"resumed,omitempty"`
	MetadataSaved    bool   `json:"metadata_saved,omitempty"`
	OperationTime    string `json:"operation_time"`
	FetchDuration    string `json:"fetch_duration"`
}
