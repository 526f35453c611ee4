package syncer

import (
	"context"
	"fmt"
	"time"

	"ydbackup/internal/models"
	"ydbackup/internal/yadisk"
	"ydbackup/pkg/utils"
)

// Info inspects a share and reports its contents without writing
// anything locally. Subdirectories that fail to list are logged and
// excluded from the counts.
func (s *Syncer) Info(ctx context.Context, ref yadisk.PublicRef) (*models.ResourceInfo, error) {
	started := time.Now()

	root, err := s.api.FetchMetadata(ctx, ref, "", 0, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", ref, err)
	}

	info := &models.ResourceInfo{
		URL:           ref.String(),
		OperationTime: utils.FormatTime(started),
	}

	if !root.IsDir() {
		info.Type = yadisk.TypeFile
		info.Name = root.File.Name
		info.FileCount = 1
		info.TotalSizeBytes = root.File.Size
		info.TotalSizeHuman = utils.FormatBytes(root.File.Size)
		return info, nil
	}

	tree, failures, err := s.enumerate(ctx, ref, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", ref, err)
	}
	for _, item := range failures {
		s.log.WithField("path", item.Path).Warnln("Failed to list subdirectory")
	}

	files, dirs, size := countTree(tree)
	info.Type = yadisk.TypeDir
	info.Name = tree.listing.Name
	info.FileCount = files
	info.DirectoryCount = dirs
	info.TotalSizeBytes = size
	info.TotalSizeHuman = utils.FormatBytes(size)
	return info, nil
}
