package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bakemark/invrpt/internal/config"
	"github.com/bakemark/invrpt/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "admin",
	Short:   "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Long: `Write a commented default configuration file (invrpt.yaml unless a path
is given). An existing file is never overwritten.

Every setting can also be set through the environment, e.g.
INVRPT_SYNC_SAVE_FOLDER=/srv/invrpt/work.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "invrpt.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path); err != nil {
			ui.Errorf("%v", err)
			os.Exit(1)
		}
		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configPath)
		if err != nil {
			ui.Errorf("%v", err)
			os.Exit(1)
		}
		if err := writeYAML(os.Stdout, cfg); err != nil {
			ui.Errorf("%v", err)
			os.Exit(1)
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderWarn("⚠"), err)
		}
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
