package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/civictrack/civictrack/internal/interfaces/cli/audit"
	"github.com/civictrack/civictrack/internal/interfaces/cli/escalation"
	"github.com/civictrack/civictrack/internal/interfaces/cli/migrate"
	"github.com/civictrack/civictrack/internal/interfaces/cli/monitor"
	"github.com/civictrack/civictrack/internal/interfaces/cli/queue"
	"github.com/civictrack/civictrack/internal/interfaces/cli/report"
	"github.com/civictrack/civictrack/internal/interfaces/cli/worker"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "civictrack",
		Short: "CivicTrack - civic report lifecycle and assignment engine",
		Long:  `CivicTrack classifies citizen reports, routes them to departments and officers, and watches task SLAs.`,
	}

	rootCmd.AddCommand(
		worker.NewCommand(),
		monitor.NewCommand(),
		migrate.NewCommand(),
		report.NewCommand(),
		queue.NewCommand(),
		audit.NewCommand(),
		escalation.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
