package commands

import (
	"github.com/chronomesh/timechunk/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

// RootCmd is the root command for timechunk
var RootCmd = &cobra.Command{
	Use:              "timechunk",
	Short:            "time-chunked link index",
	TraverseChildren: true,
}
