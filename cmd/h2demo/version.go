package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at release time via -ldflags; left as "dev" otherwise.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the h2demo version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
