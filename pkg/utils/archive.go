package utils

import (
	"archive/zip"
	"fmt"
	"os"

	"ydbackup/internal/models"
)

// InspectArchive opens a ZIP archive and summarizes its contents. It
// fails on truncated or otherwise unreadable archives, so it doubles as
// an integrity check for fetched bundles whose size the API did not
// report in advance.
func InspectArchive(path string) (*models.ArchiveSummary, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer reader.Close()

	summary := &models.ArchiveSummary{Path: path}
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		summary.FileCount++
		summary.UncompressedSize += int64(entry.UncompressedSize64)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive %s: %w", path, err)
	}
	summary.CompressedSize = info.Size()
	if summary.UncompressedSize > 0 {
		summary.CompressionRatio = float64(summary.CompressedSize) / float64(summary.UncompressedSize)
	}
	return summary, nil
}
