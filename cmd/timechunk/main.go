package main

import (
	"os"

	cmd "github.com/chronomesh/timechunk/cmd/timechunk/commands"
)

func main() {
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(
		cmd.NewRunCmd(),
		cmd.NewKeygenCmd(),
		cmd.VersionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
