package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gateway version",
	Run: func(_ *cobra.Command, _ []string) {
		color.Cyan("%s v%s", AppName, Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
