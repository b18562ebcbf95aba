package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the planforge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("planforge %s\n", GetVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
