package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/bakemark/invrpt/internal/ingest/archive"
	"github.com/bakemark/invrpt/internal/ui"
)

var archiveCmd = &cobra.Command{
	Use:     "archive",
	GroupID: "data",
	Short:   "Inspect and prune archived files",
}

var archiveListCmd = &cobra.Command{
	Use:   "list <branch>",
	Short: "List archived files of a branch, oldest first",
	Long: `List archived files of a branch, oldest first.

--since accepts a date (2006-01-02) or a phrase such as "yesterday" or
"last monday".`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sinceText, _ := cmd.Flags().GetString("since")

		var since time.Time
		if sinceText != "" {
			t, err := parseSince(sinceText, time.Now())
			if err != nil {
				ui.Errorf("%v", err)
				os.Exit(1)
			}
			since = t
		}

		a := openApp()
		defer a.Close()

		entries, err := archive.List(filepath.Join(a.cfg.Sync.ArchiveFolder, args[0]))
		if err != nil {
			ui.Errorf("%v", err)
			os.Exit(1)
		}

		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			if e.Created.Before(since) {
				continue
			}
			rows = append(rows, []string{e.Name, strconv.FormatInt(e.Size, 10), e.Created.Local().Format("2006-01-02 15:04:05")})
		}
		if len(rows) == 0 {
			fmt.Println("No archived files.")
			return
		}
		fmt.Print(ui.Table([]string{"FILE", "BYTES", "CREATED"}, rows))
	},
}

var archivePruneCmd = &cobra.Command{
	Use:   "prune <branch>",
	Short: "Delete the oldest archived files beyond the retention limit",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		keep := a.cfg.Sync.MaxArchiveFiles
		if cmd.Flags().Changed("keep") {
			keep, _ = cmd.Flags().GetInt("keep")
		}
		if keep <= 0 {
			ui.Errorf("--keep must be positive")
			os.Exit(1)
		}

		removed, err := archive.Prune(filepath.Join(a.cfg.Sync.ArchiveFolder, args[0]), keep, a.logger("archive"))
		if err != nil {
			ui.Errorf("%v", err)
			os.Exit(1)
		}
		fmt.Printf("%s Removed %d file(s), keeping at most %d\n", ui.RenderPass("✓"), removed, keep)
	},
}

// parseSince reads an absolute date or a natural language phrase relative
// to now.
func parseSince(text string, now time.Time) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", text, time.Local); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(text, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand date %q", text)
	}
	return r.Time, nil
}

func init() {
	archiveListCmd.Flags().String("since", "", "Only list files created at or after this date")
	archivePruneCmd.Flags().Int("keep", 0, "Files to keep (default: sync.max_archive_files)")

	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archivePruneCmd)
	rootCmd.AddCommand(archiveCmd)
}
