package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var setRemoteCmd = &cobra.Command{
	Use:   "set-remote <host:port>",
	Short: "Configure the emclient server and persist it to config.yaml",
	Long: `Stores the remote solver endpoint in .sonnethelper/config.yaml so that
run and optimise use emclient by default. Pass an empty string to clear the
endpoint and go back to the local em solver.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.SetRemoteServer(args[0]); err != nil {
			return err
		}
		if server := cfg.RemoteServer(); server != "" {
			fmt.Printf("Remote solver set to %s\n", server)
		} else {
			fmt.Println("Remote solver cleared; using the local em solver")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setRemoteCmd)
}
