// Package daemon keeps branches in sync without a caller:
//
//  1. Watches every active branch's work directory for dropped files
//  2. Runs a local sync once a file has been quiet for the debounce interval
//  3. Optionally fetches every active branch on a fixed poll interval
//  4. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bakemark/invrpt/internal/ingest/db"
	isync "github.com/bakemark/invrpt/internal/ingest/sync"
)

// minTick bounds how often the change queue is checked when debouncing is
// disabled.
const minTick = 100 * time.Millisecond

// Syncer runs branch syncs.
type Syncer interface {
	SyncLocal(ctx context.Context, sourceID string) (*isync.Result, error)
	SyncBranch(ctx context.Context, sourceID string) (*isync.Result, error)
}

// BranchLister returns the configured branches.
type BranchLister interface {
	ListBranches(ctx context.Context, activeOnly bool) ([]*db.Branch, error)
}

// Config holds configuration for the daemon.
type Config struct {
	// WorkRoot holds one work directory per branch.
	WorkRoot string

	// DebounceInterval is how long a dropped file must be quiet before it
	// is processed. This lets a slow copy finish.
	DebounceInterval time.Duration

	// PollInterval is how often every active branch is fetched. Zero
	// disables polling.
	PollInterval time.Duration

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		WorkRoot:         "files/work",
		DebounceInterval: 2 * time.Second,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon watches branch work directories and triggers syncs.
type Daemon struct {
	syncer   Syncer
	branches BranchLister
	config   *Config

	watcher *fsnotify.Watcher
	// watched maps a work directory to its branch id.
	watched   map[string]string
	watchedMu sync.Mutex

	changeQueue   map[string]time.Time // filepath -> last event
	changeQueueMu sync.Mutex

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a daemon. Use Start to begin watching.
func New(syncer Syncer, branches BranchLister, config *Config) (*Daemon, error) {
	if syncer == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if branches == nil {
		return nil, fmt.Errorf("branch lister cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.WorkRoot == "" {
		return nil, fmt.Errorf("work root cannot be empty")
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		syncer:      syncer,
		branches:    branches,
		config:      config,
		watcher:     watcher,
		watched:     make(map[string]string),
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start watches the work directories of all active branches, processes
// files already waiting there and then blocks until ctx is cancelled or
// Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	ids, err := d.refreshWatches()
	if err != nil {
		return fmt.Errorf("failed to watch branches: %w", err)
	}

	for _, id := range ids {
		if hasPendingFiles(filepath.Join(d.config.WorkRoot, id)) {
			d.syncLocal(id)
		}
	}

	d.wg.Add(2)
	go d.watchFileEvents()
	go d.processChangeQueue()

	if d.config.PollInterval > 0 {
		d.config.Logger.Printf("Polling active branches every %s", d.config.PollInterval)
		d.wg.Add(1)
		go d.pollBranches()
	}

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop shuts the daemon down and waits for in-flight syncs. Safe to call
// more than once.
func (d *Daemon) Stop() error {
	d.stopOnce.Do(func() {
		d.config.Logger.Println("Stopping daemon")
		d.cancel()

		if err := d.watcher.Close(); err != nil {
			d.config.Logger.Printf("Error closing watcher: %v", err)
		}

		d.wg.Wait()
		d.config.Logger.Println("Daemon stopped")
	})
	return nil
}

// Watched returns the watched branch ids.
func (d *Daemon) Watched() []string {
	d.watchedMu.Lock()
	defer d.watchedMu.Unlock()

	ids := make([]string, 0, len(d.watched))
	for _, id := range d.watched {
		ids = append(ids, id)
	}
	return ids
}

// refreshWatches adds a watch for every active branch not yet watched and
// returns the ids of all active branches.
func (d *Daemon) refreshWatches() ([]string, error) {
	branches, err := d.branches.ListBranches(d.ctx, true)
	if err != nil {
		return nil, err
	}

	d.watchedMu.Lock()
	defer d.watchedMu.Unlock()

	ids := make([]string, 0, len(branches))
	for _, b := range branches {
		ids = append(ids, b.ID)

		dir := filepath.Join(d.config.WorkRoot, b.ID)
		if _, ok := d.watched[dir]; ok {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
		if err := d.watcher.Add(dir); err != nil {
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		d.watched[dir] = b.ID
		d.config.Logger.Printf("Watching: %s", dir)
	}
	return ids, nil
}

// watchFileEvents monitors filesystem events and queues changes.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			// Removals and renames are the syncer archiving files.
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			d.queueChange(event.Name)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueChange records an event for path, restarting its quiet period.
func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

// processChangeQueue processes queued file changes with debouncing.
func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	tick := d.config.DebounceInterval
	if tick < minTick {
		tick = minTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			for _, id := range d.readyBranches() {
				d.syncLocal(id)
			}
		}
	}
}

// readyBranches drains queued paths that have been quiet long enough and
// returns the branches that still have a file to process.
func (d *Daemon) readyBranches() []string {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	now := time.Now()
	seen := make(map[string]bool)
	var ids []string

	for path, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		delete(d.changeQueue, path)

		// Already processed by an earlier run, a directory or a download
		// in progress.
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() || strings.HasPrefix(info.Name(), ".") {
			continue
		}

		id, ok := d.branchOf(path)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func (d *Daemon) branchOf(path string) (string, bool) {
	d.watchedMu.Lock()
	defer d.watchedMu.Unlock()

	id, ok := d.watched[filepath.Dir(path)]
	return id, ok
}

// pollBranches fetches every active branch on each tick.
func (d *Daemon) pollBranches() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			ids, err := d.refreshWatches()
			if err != nil {
				d.config.Logger.Printf("Error listing branches: %v", err)
				continue
			}
			for _, id := range ids {
				if d.ctx.Err() != nil {
					return
				}
				d.report(id, "poll")(d.syncer.SyncBranch(d.ctx, id))
			}
		}
	}
}

func (d *Daemon) syncLocal(id string) {
	d.report(id, "local")(d.syncer.SyncLocal(d.ctx, id))
}

// report returns a function logging the outcome of a sync of id.
func (d *Daemon) report(id, kind string) func(*isync.Result, error) {
	return func(res *isync.Result, err error) {
		switch {
		case err != nil:
			d.config.Logger.Printf("Error in %s sync of %s: %v", kind, id, err)
		case res.Status == isync.StatusBusy:
			d.config.Logger.Printf("Skipped %s sync of %s: already running", kind, id)
		case res.FetchError != "" && !res.FetchRetryable:
			d.config.Logger.Printf("Finished %s sync of %s: %d files processed; fetch needs attention: %s",
				kind, id, res.Processed(), res.FetchError)
		default:
			d.config.Logger.Printf("Finished %s sync of %s: %d files processed", kind, id, res.Processed())
		}
	}
}

func hasPendingFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			return true
		}
	}
	return false
}
