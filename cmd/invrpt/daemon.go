package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bakemark/invrpt/internal/ingest/daemon"
	"github.com/bakemark/invrpt/internal/ingest/dashboard"
	"github.com/bakemark/invrpt/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Watch work directories, poll branches and serve the dashboard",
	Long: `Run the sync daemon in the foreground.

The daemon:
  - Processes files dropped into <save_folder>/<branch> once they are quiet
    for sync.debounce_interval
  - Fetches every active branch each sync.poll_interval (0 disables polling)
  - Serves the HTTP API and WebSocket dashboard on server.port (0 disables it)

HTTP API:
  GET  /health            liveness
  GET  /branches          active branches
  GET  /schema            parsed record layouts
  POST /sync/{branch}     start a background sync
  GET  /sync/{branch}     slot state and last status message
  GET  /ws                sync_started and sync_complete events

Press Ctrl+C to stop. Running syncs are allowed to finish.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()
		if cmd.Flags().Changed("port") {
			a.cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}

		database := a.openDB()
		syncer, syncCfg := a.newSyncer()

		var server *dashboard.Server
		if a.cfg.Server.Port > 0 {
			var err error
			server, err = dashboard.NewServer(&dashboard.Config{
				Port:     a.cfg.Server.Port,
				Syncer:   syncer,
				Branches: database,
				Schema:   a.loadSchema(),
				Logger:   a.logger("dashboard"),
			})
			if err != nil {
				ui.Errorf("%v", err)
				os.Exit(1)
			}

			events := dashboard.NewHandler(server, a.logger("dashboard"))
			syncCfg.OnStart = events.OnSyncStarted
			syncCfg.OnComplete = events.OnSyncComplete

			if err := server.Start(); err != nil {
				ui.Errorf("failed to start dashboard: %v", err)
				os.Exit(1)
			}
			fmt.Printf("%s Dashboard on http://localhost:%d\n", ui.RenderAccent("→"), a.cfg.Server.Port)
		}

		d, err := daemon.New(syncer, database, &daemon.Config{
			WorkRoot:         a.cfg.Sync.SaveFolder,
			DebounceInterval: a.cfg.Sync.DebounceInterval,
			PollInterval:     a.cfg.Sync.PollInterval,
			Logger:           a.logger("daemon"),
		})
		if err != nil {
			ui.Errorf("%v", err)
			os.Exit(1)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("%s Watching %s (Ctrl+C to stop)\n", ui.RenderAccent("→"), a.cfg.Sync.SaveFolder)

		// Start blocks until ctx is cancelled.
		runErr := d.Start(ctx)

		fmt.Println("\nShutting down...")
		if err := d.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		if server != nil {
			if err := server.Stop(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
		}
		syncer.Wait()

		if runErr != nil {
			ui.Errorf("%v", runErr)
			os.Exit(1)
		}
		fmt.Printf("%s Daemon stopped\n", ui.RenderPass("✓"))
	},
}

func init() {
	daemonCmd.Flags().IntP("port", "p", 0, "Dashboard port (default: server.port)")
	rootCmd.AddCommand(daemonCmd)
}
