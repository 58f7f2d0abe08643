package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	isync "github.com/bakemark/invrpt/internal/ingest/sync"
	"github.com/bakemark/invrpt/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync <branch>",
	GroupID: "sync",
	Short:   "Run one sync of a branch in the foreground",
	Long: `Fetch the branch extract and ingest every file in its work directory.

The run:
  1. Downloads the configured remote file into <save_folder>/<branch>
  2. Decodes each file in that directory and upserts headers and details
  3. Moves processed files to <archive_folder>/<branch> and prunes it
  4. Writes the outcome to <save_folder>/<branch>/msg/last_message.txt

With --local the download is skipped and only files already in the work
directory are processed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		local, _ := cmd.Flags().GetBool("local")
		branch := args[0]

		a := openApp()
		defer a.Close()
		syncer, _ := a.newSyncer()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("%s Syncing branch %s...\n", ui.RenderAccent("→"), branch)
		start := time.Now()

		var (
			res *isync.Result
			err error
		)
		if local {
			res, err = syncer.SyncLocal(ctx, branch)
		} else {
			res, err = syncer.SyncBranch(ctx, branch)
		}

		if res != nil {
			printResult(res)
		}
		if err != nil {
			ui.Errorf("%v", err)
			os.Exit(1)
		}
		if res.Status == isync.StatusBusy {
			os.Exit(2)
		}

		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
	},
}

func printResult(res *isync.Result) {
	if res.Status == isync.StatusBusy {
		fmt.Printf("%s Branch %s is already syncing\n", ui.RenderWarn("⚠"), res.SourceID)
		return
	}

	switch {
	case res.FetchError != "" && res.FetchRetryable:
		fmt.Printf("%s Fetch failed, will retry on the next run: %s\n", ui.RenderWarn("⚠"), res.FetchError)
	case res.FetchError != "":
		fmt.Printf("%s Fetch failed, check the branch settings: %s\n", ui.RenderFail("✗"), res.FetchError)
	}

	if len(res.Files) == 0 {
		fmt.Println("   No files to process.")
	}
	for _, f := range res.Files {
		if f.Err != "" {
			fmt.Printf("   %s %s: %s\n", ui.RenderFail("✗"), f.Name, f.Err)
			continue
		}
		fmt.Printf("   %s %s: %d headers, %d details, %d purchase orders -> %s\n",
			ui.RenderPass("✓"), f.Name, f.Headers, f.Details, f.PurchaseOrders, ui.RenderMuted(f.ArchivedAs))
	}
	if res.Message != "" {
		fmt.Printf("   Status: %s\n", res.Message)
	}
}

func init() {
	syncCmd.Flags().Bool("local", false, "Skip the download and process local files only")
	rootCmd.AddCommand(syncCmd)
}
