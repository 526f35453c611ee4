package models

type ArchiveSummary struct {
	Path             string  `json:"path"`
	FileCount        int     `json:"file_count"`
	CompressedSize   int64   `json:"compressed_size"`
	UncompressedSize int64   `json:"uncompressed_size"`
	CompressionRatio float64 `json:"compression_ratio"`
}
