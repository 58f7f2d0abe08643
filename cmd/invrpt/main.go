package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "invrpt",
	Short: "DIBOL invoice extract ingestion",
	Long: `invrpt ingests the fixed-width INVPRT extracts written by the branch
DIBOL systems.

It parses the DIBOL .DEF schema, fetches each branch's extract over FTP,
decodes invoice headers and detail lines into SQLite, archives processed
files with bounded retention and records the outcome of every run.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./invrpt.yaml)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "data", Title: "Schema & Data Commands:"},
		&cobra.Group{ID: "admin", Title: "Administration Commands:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
