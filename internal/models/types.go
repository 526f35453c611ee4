package models

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
	Command   string `json:"command"`
}

type ResourceInfo struct {
	URL            string `json:"url"`
	Type           string `json:"type"`
	Name           string `json:"name"`
	FileCount      int    `json:"file_count"`
	DirectoryCount int    `json:"directory_count"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
	TotalSizeHuman string `json:"total_size_human"`
	OperationTime  string `json:"operation_time"`
}
