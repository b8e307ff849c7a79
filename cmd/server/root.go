package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "approvalflow",
	Short: "Approval workflow engine",
	Long:  `Runs the approval workflow engine: definition management, instance execution, and audit trail over an HTTP API.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "configs/config.yaml", "Path to the configuration file")
}
