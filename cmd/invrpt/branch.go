package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/bakemark/invrpt/internal/ingest/db"
	"github.com/bakemark/invrpt/internal/ui"
)

var branchCmd = &cobra.Command{
	Use:     "branch",
	GroupID: "admin",
	Short:   "Manage branch records",
}

var branchAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Add or update a branch and its FTP credentials",
	Long: `Add or update a branch.

The remote file may include a directory, e.g. /export/INV.DAT. When a
terminal is attached and --password is omitted, the password is prompted
for.

Example:
  invrpt branch add 12 --name Downtown --host ftp.example.com \
      --user inv --remote-file /export/INV.DAT`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("name")
		host, _ := cmd.Flags().GetString("host")
		user, _ := cmd.Flags().GetString("user")
		password, _ := cmd.Flags().GetString("password")
		remote, _ := cmd.Flags().GetString("remote-file")
		inactive, _ := cmd.Flags().GetBool("inactive")

		if host != "" && password == "" && ui.IsInteractive() {
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().
					Title(fmt.Sprintf("FTP password for %s@%s", user, host)).
					EchoMode(huh.EchoModePassword).
					Value(&password),
			))
			if err := form.Run(); err != nil {
				ui.Errorf("%v", err)
				os.Exit(1)
			}
		}

		a := openApp()
		defer a.Close()
		database := a.openDB()

		b := &db.Branch{
			ID:             args[0],
			Name:           name,
			Active:         !inactive,
			Host:           host,
			Username:       user,
			Password:       password,
			RemoteFilename: remote,
		}
		if err := database.UpsertBranch(context.Background(), b); err != nil {
			ui.Errorf("%v", err)
			os.Exit(1)
		}

		fmt.Printf("%s Saved branch %s\n", ui.RenderPass("✓"), b.ID)
		if host == "" {
			fmt.Printf("%s No host set; only 'invrpt sync --local' will work for this branch\n", ui.RenderWarn("⚠"))
		}
	},
}

var branchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List branches",
	Run: func(cmd *cobra.Command, args []string) {
		activeOnly, _ := cmd.Flags().GetBool("active")

		a := openApp()
		defer a.Close()

		branches, err := a.openDB().ListBranches(context.Background(), activeOnly)
		if err != nil {
			ui.Errorf("%v", err)
			os.Exit(1)
		}
		if len(branches) == 0 {
			fmt.Println("No branches.")
			return
		}

		rows := make([][]string, 0, len(branches))
		for _, b := range branches {
			rows = append(rows, []string{b.ID, b.Name, activeLabel(b.Active), b.Credentials().String(), lastProcessed(b)})
		}
		fmt.Print(ui.Table([]string{"BRANCH", "NAME", "ACTIVE", "REMOTE", "LAST PROCESSED"}, rows))
	},
}

func init() {
	branchAddCmd.Flags().String("name", "", "Branch display name")
	branchAddCmd.Flags().String("host", "", "FTP host, optionally host:port")
	branchAddCmd.Flags().String("user", "", "FTP user name")
	branchAddCmd.Flags().String("password", "", "FTP password (prompted when omitted)")
	branchAddCmd.Flags().String("remote-file", "", "Remote extract file, e.g. /export/INV.DAT")
	branchAddCmd.Flags().Bool("inactive", false, "Exclude the branch from daemon polling")

	branchListCmd.Flags().Bool("active", false, "Only list active branches")

	branchCmd.AddCommand(branchAddCmd)
	branchCmd.AddCommand(branchListCmd)
	rootCmd.AddCommand(branchCmd)
}
