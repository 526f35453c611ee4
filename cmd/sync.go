package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ydbackup/internal/syncer"
	"ydbackup/internal/yadisk"
	"ydbackup/pkg/utils"
)

var syncCmd = &cobra.Command{
	Use:   "sync [url]",
	Short: "Mirror a public share into a local directory",
	Long: `Mirror a publicly shared Yandex.Disk file or directory into a local
directory tree, downloading files one by one.

Partially downloaded files are resumed from where they stopped. With
--update, files whose local size already matches the remote size are
skipped, so an interrupted run can be picked up cheaply.`,
	Example: `  # Mirror a share into a directory named after the link
  ydbackup sync https://disk.yandex.ru/d/AbCdEf123

  # Mirror into a specific directory, skipping up-to-date files
  ydbackup sync https://disk.yandex.ru/d/AbCdEf123 --output backups/photos --update

  # Capture directory listings without downloading file content
  ydbackup sync https://disk.yandex.ru/d/AbCdEf123 --nofiles

  # Store a _metadata.json listing next to the downloaded files
  ydbackup sync https://disk.yandex.ru/d/AbCdEf123 --metadata`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, args)
	},
}

func runSync(cmd *cobra.Command, args []string) error {
	ref, err := yadisk.ParsePublicURL(args[0])
	if err != nil {
		utils.PrintError(err, "sync")
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = ref.Key()
	}

	var opts syncer.Options
	opts.Update, _ = cmd.Flags().GetBool("update")
	opts.Metadata, _ = cmd.Flags().GetBool("metadata")
	opts.NoFiles, _ = cmd.Flags().GetBool("nofiles")

	timeout, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeout)*time.Second)
	defer cancel()

	if isVerbose(cmd) {
		cmd.Printf("Starting sync operation...\n")
		cmd.Printf("  URL: %s\n", ref)
		cmd.Printf("  Output: %s\n", output)
	}

	s := newSyncer(&consoleReporter{cmd: cmd, update: opts.Update, verbose: isVerbose(cmd)})
	result, err := s.Sync(ctx, ref, output, opts)
	if err != nil {
		utils.PrintError(err, "sync")
		return err
	}

	if err := utils.PrintJSON(result); err != nil {
		utils.PrintError(err, "sync")
		return err
	}

	if result.FailedItems > 0 {
		return fmt.Errorf("%d of %d items failed", result.FailedItems, len(result.Items))
	}

	if isVerbose(cmd) {
		cmd.Println("Sync operation completed successfully")
	}
	return nil
}

// consoleReporter renders sync progress the way a terminal user expects
// it, leaving structured output to the final JSON result.
type consoleReporter struct {
	cmd     *cobra.Command
	update  bool
	verbose bool
}

func (r *consoleReporter) Stats(files int, totalBytes int64) {
	if files == 0 {
		if r.update {
			r.cmd.Println("All files are already up to date.")
		} else {
			r.cmd.Println("No files found to download.")
		}
		return
	}
	r.cmd.Printf("Total files to download: %d\n", files)
	r.cmd.Printf("Total size: %s\n", utils.FormatBytes(totalBytes))
}

func (r *consoleReporter) FileStarted(path string, offset, size int64) {
	if !r.verbose {
		return
	}
	switch {
	case offset > 0:
		r.cmd.Printf("Resuming %s at %s\n", path, utils.FormatBytes(offset))
	case size > 0:
		r.cmd.Printf("Downloading %s (%s)\n", path, utils.FormatBytes(size))
	default:
		r.cmd.Printf("Downloading %s\n", path)
	}
}

func (r *consoleReporter) FileProgress(string, int) {}

func (r *consoleReporter) FileFinished(path string, status syncer.Status, err error) {
	if !r.verbose || err != nil {
		return
	}
	if status == syncer.StatusSkipped {
		r.cmd.Printf("Skipping %s (already downloaded)\n", path)
	}
}

func init() {
	syncCmd.Flags().StringP("output", "o", "", "Local output directory (default: the share key)")
	syncCmd.Flags().BoolP("update", "u", false, "Skip files whose local size matches the remote size")
	syncCmd.Flags().BoolP("nofiles", "n", false, "Capture metadata only, do not download file content")
	syncCmd.Flags().BoolP("metadata", "m", false, "Write a _metadata.json listing into every directory")
	syncCmd.Flags().Int("timeout", 3600, "Timeout in seconds for the operation (default: 1 hour)")

	syncCmd.SetUsageTemplate(usageTemplate)
}
