package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:          "convox-bot",
		Short:        "Chat bot with role-based commands and group approval",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context(), configFile)
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (optional)")

	cmd.AddCommand(newPermsCmd(&configFile))
	cmd.AddCommand(newVersionCmd(&configFile))

	return cmd
}
