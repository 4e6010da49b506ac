package main

import (
	"github.com/spf13/cobra"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/journal"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/optimiser"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/tui"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch optimiser progress in a terminal UI",
	Long: `Opens a live view of every configured optimiser: batches run so far,
the latest parameter and measured values, and the tail of the run journal.
The monitor only reads persisted state, so it can run next to (or after) an
optimise command.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		j, err := journal.For(cfg.LogsDir())
		if err != nil {
			return err
		}
		repo := optimiser.NewRepository(cfg.StateDir())
		return tui.Run(tui.RepositoryStatuses(cfg.Project.Optimisers, repo), j)
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
