package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var version = "0.2.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lintangdb %s\n", version)
	},
}
