package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .sonnethelper directory and default config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.InitHelperDir(projectDir); err != nil {
			return fmt.Errorf("init %s: %w", config.HelperDir, err)
		}
		fmt.Printf("Initialised %s in %s\n", config.HelperDir, projectDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
