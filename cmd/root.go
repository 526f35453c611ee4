package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ydbackup/config"
	"ydbackup/internal/syncer"
	"ydbackup/internal/yadisk"
)

var (
	cfg *config.Config
	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "ydbackup",
	Short: "Backup tool for public Yandex.Disk shares",
	Long: `ydbackup is a command-line tool for backing up publicly shared
Yandex.Disk files and directories. It can mirror a share into a local
directory tree file by file, or fetch the whole share as a single
server-built ZIP archive.
Configuration is loaded from .env file or environment variables`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if isVerbose(cmd) {
			log.SetLevel(logrus.DebugLevel)
		}
	},
}

func Execute(ctx context.Context, config *config.Config) error {
	cfg = config
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(fullCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(configureCmd)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
}

func newSyncer(reporter syncer.Reporter) *syncer.Syncer {
	client := yadisk.New(cfg, log)
	return syncer.New(client, log, reporter, cfg.ChunkSize)
}

func isVerbose(cmd *cobra.Command) bool {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return verbose
}

const usageTemplate = `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}

Available Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`
