package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ydbackup/config"
	"ydbackup/pkg/utils"
)

var configureCmd = &cobra.Command{
	Use:   "configure [token]",
	Short: "Store an OAuth token for authenticated requests",
	Long: `Store a Yandex.Disk OAuth token in a .ydbackup file in the current
directory. Public shares work without a token, but authenticated
requests are rate limited less aggressively.

Keys other than the token already present in the file are preserved.`,
	Example: `  # Store a token
  ydbackup configure y0_AgAAAABc...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigure(cmd, args)
	},
}

func runConfigure(cmd *cobra.Command, args []string) error {
	path, err := config.SaveToken(".", args[0])
	if err != nil {
		utils.PrintError(err, "configure")
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved at %s\n", path)
	return nil
}
