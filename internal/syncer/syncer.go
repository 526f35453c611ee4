package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ydbackup/internal/models"
	"ydbackup/internal/yadisk"
	"ydbackup/pkg/utils"
)

const metadataFileName = "_metadata.json"

// API is the provider surface the syncer drives.
type API interface {
	FetchMetadata(ctx context.Context, ref yadisk.PublicRef, path string, offset, limit int) (*yadisk.Resource, error)
	ListAll(ctx context.Context, ref yadisk.PublicRef, path string) (*yadisk.DirectoryMetadata, error)
	DownloadLink(ctx context.Context, ref yadisk.PublicRef) (string, int64, error)
	Stream(ctx context.Context, url string, offset int64) (io.ReadCloser, int64, error)
}

// Options control what a sync run writes.
type Options struct {
	Update   bool // skip files whose local size already equals the remote size
	Metadata bool // write a _metadata.json snapshot into every directory
	NoFiles  bool // capture metadata only, never download file content
}

// Syncer mirrors a public share into a local directory tree.
type Syncer struct {
	api      API
	log      *logrus.Logger
	reporter Reporter
	dl       *Downloader
}

func New(api API, log *logrus.Logger, reporter Reporter, chunkSize int) *Syncer {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Syncer{
		api:      api,
		log:      log,
		reporter: reporter,
		dl:       NewDownloader(api, log, reporter, chunkSize),
	}
}

// treeNode is one directory listed during the enumeration pass. Later
// phases reuse these listings, so no page is ever fetched twice.
type treeNode struct {
	path     string
	listing  *yadisk.DirectoryMetadata
	children []*treeNode
}

// Sync downloads the share behind ref into outputRoot. Failures on
// individual items are recorded in the result and do not stop the run;
// only errors that prevent the run from starting at all are returned.
func (s *Syncer) Sync(ctx context.Context, ref yadisk.PublicRef, outputRoot string, opts Options) (*models.SyncResult, error) {
	started := time.Now()

	if opts.NoFiles {
		opts.Metadata = true
	}

	root, err := s.api.FetchMetadata(ctx, ref, "", 0, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", ref, err)
	}

	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", outputRoot, err)
	}

	result := &models.SyncResult{
		URL:           ref.String(),
		OutputDir:     outputRoot,
		OperationTime: utils.FormatTime(started),
	}

	if root.IsDir() {
		if err := s.syncDirectory(ctx, ref, outputRoot, opts, result); err != nil {
			return nil, err
		}
	} else {
		s.syncRootFile(ctx, root.File, outputRoot, opts, result)
	}

	tallyItems(result)
	result.SyncDuration = time.Since(started).String()
	return result, nil
}

func (s *Syncer) syncDirectory(ctx context.Context, ref yadisk.PublicRef, outputRoot string, opts Options, result *models.SyncResult) error {
	tree, failures, err := s.enumerate(ctx, ref, "")
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", ref, err)
	}
	result.Items = append(result.Items, failures...)

	files, pending := s.pendingStats(tree, outputRoot, opts)
	s.reporter.Stats(files, pending)
	result.TotalSizeBytes = pending
	result.TotalSizeHuman = utils.FormatBytes(pending)

	if !opts.NoFiles && files == 0 && !opts.Metadata {
		result.UpToDate = true
		return nil
	}

	s.materialize(ctx, tree, outputRoot, opts, result)
	return nil
}

// enumerate lists path and all its subdirectories once. A listing
// failure prunes that subtree and is reported as a failed item; only a
// failure on path itself is returned as an error.
func (s *Syncer) enumerate(ctx context.Context, ref yadisk.PublicRef, path string) (*treeNode, []models.SyncItem, error) {
	listing, err := s.api.ListAll(ctx, ref, path)
	if err != nil {
		return nil, nil, err
	}

	node := &treeNode{path: path, listing: listing}
	var failures []models.SyncItem
	for _, item := range listing.Embedded.Items {
		if item.Type != yadisk.TypeDir {
			continue
		}
		child, childFailures, err := s.enumerate(ctx, ref, item.Path)
		if err != nil {
			s.log.WithError(err).WithField("path", item.Path).Errorln("Failed to list subdirectory")
			failures = append(failures, models.SyncItem{
				Path:   item.Path,
				Type:   yadisk.TypeDir,
				Status: string(StatusFailed),
				Error:  err.Error(),
			})
			continue
		}
		failures = append(failures, childFailures...)
		node.children = append(node.children, child)
	}
	return node, failures, nil
}

// pendingStats counts the files and bytes a run with opts would
// transfer, using only the listings gathered by enumerate.
func (s *Syncer) pendingStats(node *treeNode, outputRoot string, opts Options) (int, int64) {
	files := 0
	var size int64
	for _, item := range node.listing.Embedded.Items {
		if item.Type != yadisk.TypeFile || opts.NoFiles {
			continue
		}
		if opts.Update {
			if target, err := safeJoin(outputRoot, item.Path); err == nil {
				if info, err := os.Stat(target); err == nil && info.Size() == item.Size {
					continue
				}
			}
		}
		files++
		size += item.Size
	}
	for _, child := range node.children {
		f, b := s.pendingStats(child, outputRoot, opts)
		files += f
		size += b
	}
	return files, size
}

func (s *Syncer) materialize(ctx context.Context, node *treeNode, outputRoot string, opts Options, result *models.SyncResult) {
	dirPath, err := safeJoin(outputRoot, node.path)
	if err != nil {
		s.log.WithField("path", node.path).Warnln("Skipping directory with unsafe remote path")
		result.Items = append(result.Items, models.SyncItem{
			Path:   node.path,
			Type:   yadisk.TypeDir,
			Status: string(StatusSkipped),
			Error:  err.Error(),
		})
		return
	}
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		s.log.WithError(err).WithField("path", dirPath).Errorln("Failed to create directory")
		result.Items = append(result.Items, models.SyncItem{
			Path:   node.path,
			Type:   yadisk.TypeDir,
			Status: string(StatusFailed),
			Error:  err.Error(),
		})
		return
	}

	if opts.Metadata {
		if err := writeSnapshot(dirPath, node.listing); err != nil {
			s.log.WithError(err).WithField("path", node.path).Errorln("Failed to write metadata snapshot")
			result.Items = append(result.Items, models.SyncItem{
				Path:   node.path,
				Type:   yadisk.TypeDir,
				Status: string(StatusFailed),
				Error:  err.Error(),
			})
		}
	}

	for _, item := range node.listing.Embedded.Items {
		switch item.Type {
		case yadisk.TypeDir:
			if child := findChild(node, item.Path); child != nil {
				s.materialize(ctx, child, outputRoot, opts, result)
			}
		case yadisk.TypeFile:
			if opts.NoFiles {
				continue
			}
			s.syncFile(ctx, item, outputRoot, opts, result)
		}
	}
}

func (s *Syncer) syncFile(ctx context.Context, item yadisk.RemoteItem, outputRoot string, opts Options, result *models.SyncResult) {
	target, err := safeJoin(outputRoot, item.Path)
	if err != nil {
		s.log.WithField("path", item.Path).Warnln("Skipping file with unsafe remote path")
		result.Items = append(result.Items, models.SyncItem{
			Path:   item.Path,
			Type:   yadisk.TypeFile,
			Status: string(StatusSkipped),
			Error:  err.Error(),
		})
		return
	}

	if opts.Update {
		if info, err := os.Stat(target); err == nil && info.Size() == item.Size {
			result.Items = append(result.Items, models.SyncItem{
				Path:      item.Path,
				Type:      yadisk.TypeFile,
				Status:    string(StatusSkipped),
				SizeBytes: item.Size,
			})
			return
		}
	}

	if item.File == "" {
		err := &yadisk.APIError{StatusCode: http.StatusOK, Message: fmt.Sprintf("listing entry %s has no download URL", item.Path)}
		s.log.WithError(err).WithField("path", item.Path).Errorln("Failed to download file")
		result.Items = append(result.Items, models.SyncItem{
			Path:      item.Path,
			Type:      yadisk.TypeFile,
			Status:    string(StatusFailed),
			SizeBytes: item.Size,
			Error:     err.Error(),
		})
		return
	}

	outcome, err := s.dl.Download(ctx, item.File, target, item.Size)
	if err != nil {
		s.log.WithError(err).WithField("path", item.Path).Errorln("Failed to download file")
		result.Items = append(result.Items, models.SyncItem{
			Path:      item.Path,
			Type:      yadisk.TypeFile,
			Status:    string(StatusFailed),
			SizeBytes: item.Size,
			Error:     err.Error(),
		})
		return
	}

	result.Items = append(result.Items, models.SyncItem{
		Path:      item.Path,
		Type:      yadisk.TypeFile,
		Status:    string(outcome.Status),
		SizeBytes: item.Size,
		Resumed:   outcome.Resumed,
	})
	result.DownloadedBytes += outcome.Bytes
}

func (s *Syncer) syncRootFile(ctx context.Context, file *yadisk.FileMetadata, outputRoot string, opts Options, result *models.SyncResult) {
	itemPath := file.Path
	if itemPath == "" {
		itemPath = file.Name
	}

	if opts.Metadata {
		if err := writeSnapshot(outputRoot, file); err != nil {
			s.log.WithError(err).Errorln("Failed to write metadata snapshot")
			result.Items = append(result.Items, models.SyncItem{
				Path:   itemPath,
				Type:   yadisk.TypeFile,
				Status: string(StatusFailed),
				Error:  err.Error(),
			})
			return
		}
	}
	if opts.NoFiles {
		return
	}

	if file.Name == "" {
		err := &yadisk.APIError{StatusCode: http.StatusOK, Message: "file resource has no name"}
		result.Items = append(result.Items, models.SyncItem{
			Path:   itemPath,
			Type:   yadisk.TypeFile,
			Status: string(StatusFailed),
			Error:  err.Error(),
		})
		return
	}

	target, err := safeJoin(outputRoot, file.Name)
	if err != nil {
		s.log.WithField("path", itemPath).Warnln("Skipping file with unsafe remote path")
		result.Items = append(result.Items, models.SyncItem{
			Path:   itemPath,
			Type:   yadisk.TypeFile,
			Status: string(StatusSkipped),
			Error:  err.Error(),
		})
		return
	}

	if opts.Update {
		if info, err := os.Stat(target); err == nil && info.Size() == file.Size {
			s.reporter.Stats(0, 0)
			result.UpToDate = true
			result.Items = append(result.Items, models.SyncItem{
				Path:      itemPath,
				Type:      yadisk.TypeFile,
				Status:    string(StatusSkipped),
				SizeBytes: file.Size,
			})
			return
		}
	}

	s.reporter.Stats(1, file.Size)
	result.TotalSizeBytes = file.Size
	result.TotalSizeHuman = utils.FormatBytes(file.Size)

	if file.File == "" {
		err := &yadisk.APIError{StatusCode: http.StatusOK, Message: fmt.Sprintf("resource %s has no download URL", itemPath)}
		s.log.WithError(err).WithField("path", itemPath).Errorln("Failed to download file")
		result.Items = append(result.Items, models.SyncItem{
			Path:      itemPath,
			Type:      yadisk.TypeFile,
			Status:    string(StatusFailed),
			SizeBytes: file.Size,
			Error:     err.Error(),
		})
		return
	}

	outcome, err := s.dl.Download(ctx, file.File, target, file.Size)
	if err != nil {
		s.log.WithError(err).WithField("path", itemPath).Errorln("Failed to download file")
		result.Items = append(result.Items, models.SyncItem{
			Path:      itemPath,
			Type:      yadisk.TypeFile,
			Status:    string(StatusFailed),
			SizeBytes: file.Size,
			Error:     err.Error(),
		})
		return
	}

	result.Items = append(result.Items, models.SyncItem{
		Path:      itemPath,
		Type:      yadisk.TypeFile,
		Status:    string(outcome.Status),
		SizeBytes: file.Size,
		Resumed:   outcome.Resumed,
	})
	result.DownloadedBytes += outcome.Bytes
}

func findChild(node *treeNode, path string) *treeNode {
	for _, child := range node.children {
		if child.path == path {
			return child
		}
	}
	return nil
}

func tallyItems(result *models.SyncResult) {
	for _, item := range result.Items {
		if item.Type == yadisk.TypeFile {
			result.TotalFiles++
		}
		switch Status(item.Status) {
		case StatusCompleted:
			result.CompletedFiles++
		case StatusSkipped:
			result.SkippedFiles++
		case StatusFailed:
			result.FailedItems++
		}
	}
}

// safeJoin resolves a remote path to a local path under root. Every
// component of the remote path is untrusted input.
func safeJoin(root, remotePath string) (string, error) {
	parts := strings.Split(remotePath, "/")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" || part == "." {
			continue
		}
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrUnsafePath, remotePath)
		}
		clean = append(clean, part)
	}

	target := filepath.Join(root, filepath.Join(clean...))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, remotePath)
	}
	return target, nil
}

func writeSnapshot(dir string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	path := filepath.Join(dir, metadataFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
