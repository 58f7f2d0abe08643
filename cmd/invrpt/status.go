package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bakemark/invrpt/internal/ingest/archive"
	"github.com/bakemark/invrpt/internal/ingest/db"
	isync "github.com/bakemark/invrpt/internal/ingest/sync"
	"github.com/bakemark/invrpt/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status [branch]",
	GroupID: "sync",
	Short:   "Show the last sync outcome of branches",
	Long: `Show the last status message, stored row counts and archive size of
one branch, or a summary table of all branches.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()
		database := a.openDB()
		ctx := context.Background()

		if len(args) == 1 {
			branch, err := database.GetBranch(ctx, args[0])
			if err != nil {
				ui.Errorf("%v", err)
				os.Exit(1)
			}
			printBranchStatus(ctx, a, database, branch)
			return
		}

		branches, err := database.ListBranches(ctx, false)
		if err != nil {
			ui.Errorf("%v", err)
			os.Exit(1)
		}
		if len(branches) == 0 {
			fmt.Printf("%s No branches configured. Add one with 'invrpt branch add'.\n", ui.RenderWarn("⚠"))
			return
		}

		rows := make([][]string, 0, len(branches))
		for _, b := range branches {
			headers, _ := database.HeaderCount(ctx, b.ID)
			details, _ := database.DetailCount(ctx, b.ID)
			_, msg, _ := isync.ReadStatus(filepath.Join(a.cfg.Sync.SaveFolder, b.ID))
			rows = append(rows, []string{
				b.ID, b.Name, activeLabel(b.Active), lastProcessed(b),
				strconv.Itoa(headers), strconv.Itoa(details), msg,
			})
		}
		fmt.Print(ui.Table([]string{"BRANCH", "NAME", "ACTIVE", "LAST PROCESSED", "HEADERS", "DETAILS", "LAST MESSAGE"}, rows))
	},
}

func printBranchStatus(ctx context.Context, a *app, database *db.DB, b *db.Branch) {
	headers, err := database.HeaderCount(ctx, b.ID)
	if err != nil {
		ui.Errorf("%v", err)
		os.Exit(1)
	}
	details, err := database.DetailCount(ctx, b.ID)
	if err != nil {
		ui.Errorf("%v", err)
		os.Exit(1)
	}

	workDir := filepath.Join(a.cfg.Sync.SaveFolder, b.ID)
	ts, msg, err := isync.ReadStatus(workDir)
	if err != nil {
		ui.Errorf("%v", err)
		os.Exit(1)
	}
	archived, _, _ := archive.FindOldest(filepath.Join(a.cfg.Sync.ArchiveFolder, b.ID))

	fmt.Printf("\n%s Branch %s (%s)\n\n", ui.RenderAccent("●"), b.ID, b.Name)
	fmt.Printf("Active: %s\n", activeLabel(b.Active))
	fmt.Printf("Remote: %s\n", b.Credentials())
	fmt.Printf("Last processed: %s\n", lastProcessed(b))
	fmt.Printf("Headers: %d\n", headers)
	fmt.Printf("Details: %d\n", details)
	fmt.Printf("Archived files: %d\n", archived)
	switch {
	case ts != nil:
		fmt.Printf("Last message: %s (%s)\n", msg, ts.Local().Format("2006-01-02 15:04:05"))
	case msg != "":
		fmt.Printf("Last message: %s\n", msg)
	default:
		fmt.Println("Last message: none")
	}
	fmt.Println()
}

func activeLabel(active bool) string {
	if active {
		return ui.RenderPass("yes")
	}
	return ui.RenderMuted("no")
}

func lastProcessed(b *db.Branch) string {
	if b.LastProcessed == nil {
		return "never"
	}
	return b.LastProcessed.Local().Format("2006-01-02 15:04:05")
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
