package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"ydbackup/internal/syncer"
	"ydbackup/internal/yadisk"
	"ydbackup/pkg/utils"
)

var infoCmd = &cobra.Command{
	Use:   "info [url]",
	Short: "Show what a public share contains",
	Long: `Show what a public share contains without downloading anything:
resource type, name, file and directory counts, and total size.`,
	Example: `  # Inspect a share
  ydbackup info https://disk.yandex.ru/d/AbCdEf123

  # Verbose output
  ydbackup info https://disk.yandex.ru/d/AbCdEf123 --verbose`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInfo(cmd, args)
	},
}

func runInfo(cmd *cobra.Command, args []string) error {
	ref, err := yadisk.ParsePublicURL(args[0])
	if err != nil {
		utils.PrintError(err, "info")
		return err
	}

	timeout, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeout)*time.Second)
	defer cancel()

	if isVerbose(cmd) {
		cmd.Printf("Getting share information for: %s\n", ref)
	}

	s := newSyncer(syncer.NopReporter{})
	info, err := s.Info(ctx, ref)
	if err != nil {
		utils.PrintError(err, "info")
		return err
	}

	if err := utils.PrintJSON(info); err != nil {
		utils.PrintError(err, "info")
		return err
	}

	if isVerbose(cmd) {
		cmd.Printf("Share info retrieved successfully\n")
	}
	return nil
}

func init() {
	infoCmd.Flags().Int("timeout", 300, "Timeout in seconds for the operation")
}
