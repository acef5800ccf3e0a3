package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/roadmap/internal/api"
	"github.com/jackzampolin/roadmap/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "roadmap",
	Short: "Turn research documents into a visual roadmap report",
	Long: `Roadmap turns research documents into a visual report: a timeline
chart of swimlanes and tasks, a narrative summary, and an optional slide deck.

Jobs run asynchronously. Large research is split into chunks whose charts
are merged, identical submissions are served from a cache, and a job that
fails part way can be resumed without regenerating finished phases.`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.roadmap/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "roadmap home directory (default: ~/.roadmap)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
