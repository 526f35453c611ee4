package syncer

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"ydbackup/internal/models"
	"ydbackup/internal/yadisk"
	"ydbackup/pkg/utils"
)

const defaultArchiveName = "dump.zip"

// FetchFull downloads the share behind ref as the single artifact the
// provider serves: the file itself for file shares, a server-built ZIP
// bundle for directory shares.
func (s *Syncer) FetchFull(ctx context.Context, ref yadisk.PublicRef, outputDir, filename string, withMetadata bool) (*models.FullResult, error) {
	started := time.Now()

	root, err := s.api.FetchMetadata(ctx, ref, "", 0, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", ref, err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	result := &models.FullResult{
		URL:           ref.String(),
		OperationTime: utils.FormatTime(started),
	}

	if root.IsDir() {
		err = s.fetchBundle(ctx, ref, root.Dir, outputDir, filename, withMetadata, result)
	} else {
		err = s.fetchSingle(ctx, root.File, outputDir, filename, withMetadata, result)
	}
	if err != nil {
		return nil, err
	}

	result.FetchDuration = time.Since(started).String()
	return result, nil
}

func (s *Syncer) fetchSingle(ctx context.Context, file *yadisk.FileMetadata, outputDir, filename string, withMetadata bool, result *models.FullResult) error {
	result.Type = yadisk.TypeFile

	if withMetadata {
		if err := writeSnapshot(outputDir, file); err != nil {
			return err
		}
		result.MetadataSaved = true
	}

	name := filename
	if name == "" {
		name = file.Name
	}
	if name == "" {
		return &yadisk.APIError{StatusCode: http.StatusOK, Message: "file resource has no name"}
	}
	target, err := safeJoin(outputDir, name)
	if err != nil {
		return err
	}

	if file.File == "" {
		return &yadisk.APIError{StatusCode: http.StatusOK, Message: fmt.Sprintf("resource %s has no download URL", file.Name)}
	}

	outcome, err := s.dl.Download(ctx, file.File, target, file.Size)
	if err != nil {
		return err
	}

	finishArtifact(result, target, outcome)
	return nil
}

func (s *Syncer) fetchBundle(ctx context.Context, ref yadisk.PublicRef, dir *yadisk.DirectoryMetadata, outputDir, filename string, withMetadata bool, result *models.FullResult) error {
	result.Type = yadisk.TypeDir

	// Contents statistics are informational; the bundle downloads even
	// when the scan fails.
	var snapshot any = dir
	if tree, failures, err := s.enumerate(ctx, ref, ""); err != nil {
		s.log.WithError(err).Warnln("Failed to scan share contents")
	} else {
		for _, item := range failures {
			s.log.WithField("path", item.Path).Warnln("Failed to list subdirectory during scan")
		}
		files, _, size := countTree(tree)
		result.ArchiveFiles = files
		result.ContentSizeBytes = size
		result.ContentSizeHuman = utils.FormatBytes(size)
		snapshot = tree.listing
		s.reporter.Stats(files, size)
	}

	if withMetadata {
		if err := writeSnapshot(outputDir, snapshot); err != nil {
			return err
		}
		result.MetadataSaved = true
	}

	href, size, err := s.api.DownloadLink(ctx, ref)
	if err != nil {
		return err
	}

	name := filename
	if name == "" {
		name = defaultArchiveName
	}
	target, err := safeJoin(outputDir, name)
	if err != nil {
		return err
	}

	outcome, err := s.dl.Download(ctx, href, target, size)
	if err != nil {
		return err
	}

	finishArtifact(result, target, outcome)
	return nil
}

func finishArtifact(result *models.FullResult, target string, outcome *FileOutcome) {
	result.OutputPath = target
	result.Resumed = outcome.Resumed
	if info, err := os.Stat(target); err == nil {
		result.SizeBytes = info.Size()
		result.SizeHuman = utils.FormatBytes(info.Size())
	}
}

func countTree(node *treeNode) (files, dirs int, size int64) {
	for _, item := range node.listing.Embedded.Items {
		switch item.Type {
		case yadisk.TypeFile:
			files++
			size += item.Size
		case yadisk.TypeDir:
			dirs++
		}
	}
	for _, child := range node.children {
		f, d, b := countTree(child)
		files += f
		dirs += d
		size += b
	}
	return files, dirs, size
}
