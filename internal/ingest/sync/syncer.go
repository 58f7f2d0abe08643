package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	gosync "sync"
	"time"

	"github.com/bakemark/invrpt/internal/dibol/data"
	"github.com/bakemark/invrpt/internal/ingest/archive"
	"github.com/bakemark/invrpt/internal/ingest/db"
	"github.com/bakemark/invrpt/internal/ingest/fetch"
	"github.com/bakemark/invrpt/internal/ingest/slot"
)

// Sink stores decoded rows. Upserts are idempotent on the natural key and
// accept empty input.
type Sink interface {
	UpsertHeaders(ctx context.Context, rows []data.Row, sourceID string) (int, error)
	UpsertDetails(ctx context.Context, rows []data.Row, sourceID string) (int, error)
	TouchLastProcessed(ctx context.Context, sourceID string) error
}

// BranchStore looks up branch credentials.
type BranchStore interface {
	GetBranch(ctx context.Context, id string) (*db.Branch, error)
}

// Config holds the settings of a Syncer.
type Config struct {
	// WorkRoot holds one directory per branch with pending files.
	WorkRoot string

	// ArchiveRoot holds one directory per branch with processed files.
	ArchiveRoot string

	// MaxArchiveFiles caps each archive directory. Zero disables pruning.
	MaxArchiveFiles int

	// FetchTimeout bounds connecting and each remote operation.
	FetchTimeout time.Duration

	// Branches resolves credentials for SyncBranch and TriggerBranch.
	Branches BranchStore

	// OnStart and OnComplete are called around every run that acquired
	// the slot. They must not block.
	OnStart    func(sourceID string)
	OnComplete func(*Result)

	// Logger for sync activity
	Logger *log.Logger
}

// DefaultConfig returns the default directory layout and retention.
func DefaultConfig() *Config {
	return &Config{
		WorkRoot:        "files/work",
		ArchiveRoot:     "files/archive",
		MaxArchiveFiles: 10,
		FetchTimeout:    fetch.DefaultTimeout,
		Logger:          log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}

// Syncer runs sync pipelines, at most one per branch at a time.
type Syncer struct {
	decoder *data.Decoder
	sink    Sink
	fetcher *fetch.Fetcher
	config  *Config
	slots   *slot.Registry
	now     func() time.Time

	// background runs started by Trigger
	wg gosync.WaitGroup
}

// New creates a Syncer. A nil dialer connects over FTP.
func New(decoder *data.Decoder, sink Sink, dialer fetch.Dialer, config *Config) *Syncer {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}

	return &Syncer{
		decoder: decoder,
		sink:    sink,
		fetcher: fetch.New(dialer, config.FetchTimeout, config.Logger),
		config:  config,
		slots:   slot.NewRegistry(),
		now:     time.Now,
	}
}

// Sync fetches the remote extract for sourceID and processes the work
// directory. It returns a StatusBusy result without error when a run for
// sourceID is already active.
func (s *Syncer) Sync(ctx context.Context, sourceID string, cred fetch.Credentials) (*Result, error) {
	return s.acquireAndRun(ctx, sourceID, &cred)
}

// SyncLocal processes files already in the work directory without fetching.
func (s *Syncer) SyncLocal(ctx context.Context, sourceID string) (*Result, error) {
	return s.acquireAndRun(ctx, sourceID, nil)
}

// SyncBranch looks up the branch and runs Sync with its credentials.
func (s *Syncer) SyncBranch(ctx context.Context, sourceID string) (*Result, error) {
	cred, err := s.lookup(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	return s.Sync(ctx, sourceID, cred)
}

// Trigger starts a run in the background. The slot is taken before Trigger
// returns, so two Trigger calls for the same branch always yield exactly one
// StatusAccepted and one StatusBusy. The run outlives ctx cancellation.
func (s *Syncer) Trigger(ctx context.Context, sourceID string, cred fetch.Credentials) *Result {
	release, ok := s.slots.TryAcquire(sourceID)
	if !ok {
		return s.busy(sourceID)
	}

	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer release()
		if _, err := s.run(runCtx, sourceID, &cred); err != nil {
			s.config.Logger.Printf("Sync of %s failed: %v", sourceID, err)
		}
	}()

	return &Result{SourceID: sourceID, Status: StatusAccepted, StartedAt: s.now().UTC()}
}

// TriggerBranch validates the branch and runs Trigger with its credentials.
func (s *Syncer) TriggerBranch(ctx context.Context, sourceID string) (*Result, error) {
	cred, err := s.lookup(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	return s.Trigger(ctx, sourceID, cred), nil
}

// Wait blocks until all runs started by Trigger have finished.
func (s *Syncer) Wait() {
	s.wg.Wait()
}

// Running reports whether a run for sourceID holds the slot.
func (s *Syncer) Running(sourceID string) bool {
	return s.slots.Held(sourceID)
}

// lookup returns the credentials of an active branch with a remote host.
func (s *Syncer) lookup(ctx context.Context, sourceID string) (fetch.Credentials, error) {
	if s.config.Branches == nil {
		return fetch.Credentials{}, ErrNoBranchStore
	}

	branch, err := s.config.Branches.GetBranch(ctx, sourceID)
	if errors.Is(err, db.ErrBranchNotFound) {
		return fetch.Credentials{}, fmt.Errorf("%w: %s", ErrUnknownBranch, sourceID)
	}
	if err != nil {
		return fetch.Credentials{}, err
	}

	if !branch.Active {
		return fetch.Credentials{}, fmt.Errorf("%w: %s", ErrInactiveBranch, sourceID)
	}
	if branch.Host == "" {
		return fetch.Credentials{}, fmt.Errorf("%w: %s", ErrNoHost, sourceID)
	}
	return branch.Credentials(), nil
}

func (s *Syncer) busy(sourceID string) *Result {
	s.config.Logger.Printf("Sync of %s already running, request rejected", sourceID)
	return &Result{SourceID: sourceID, Status: StatusBusy, StartedAt: s.now().UTC()}
}

func (s *Syncer) acquireAndRun(ctx context.Context, sourceID string, cred *fetch.Credentials) (*Result, error) {
	release, ok := s.slots.TryAcquire(sourceID)
	if !ok {
		return s.busy(sourceID), nil
	}
	defer release()

	return s.run(ctx, sourceID, cred)
}

// run is the pipeline body. The caller holds the slot. A nil cred skips
// the fetch step.
func (s *Syncer) run(ctx context.Context, sourceID string, cred *fetch.Credentials) (*Result, error) {
	logger := s.config.Logger
	res := &Result{SourceID: sourceID, StartedAt: s.now().UTC()}

	if s.config.OnStart != nil {
		s.config.OnStart(sourceID)
	}
	defer func() {
		res.FinishedAt = s.now().UTC()
		if s.config.OnComplete != nil {
			s.config.OnComplete(res)
		}
	}()

	workDir := filepath.Join(s.config.WorkRoot, sourceID)
	archiveDir := filepath.Join(s.config.ArchiveRoot, sourceID)
	for _, dir := range []string{workDir, archiveDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			res.Status = StatusFailed
			res.Message = err.Error()
			return res, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if cred != nil {
		if _, err := s.fetcher.Fetch(ctx, *cred, workDir); err != nil {
			res.FetchError = err.Error()
			res.FetchRetryable = fetch.IsTransient(err)
			if res.FetchRetryable {
				logger.Printf("Fetch for %s failed, retrying on the next run: %v", sourceID, err)
			} else {
				logger.Printf("Fetch for %s failed, check the branch settings: %v", sourceID, err)
			}
		}
	}

	files, err := pendingFiles(workDir)
	if err != nil {
		logger.Printf("Error listing %s: %v", workDir, err)
	}

	var runErr error
	for _, path := range files {
		outcome, err := s.process(ctx, sourceID, path, archiveDir)
		res.Files = append(res.Files, outcome)
		if err != nil {
			runErr = err
			break
		}
	}

	if runErr == nil && res.Processed() > 0 {
		if err := s.sink.TouchLastProcessed(ctx, sourceID); err != nil {
			runErr = fmt.Errorf("failed to update last processed for %s: %w", sourceID, err)
		}
	}

	res.Message = s.statusLine(res, runErr)
	if err := writeStatus(workDir, res.Message); err != nil {
		logger.Printf("Error writing status for %s: %v", sourceID, err)
	}

	if runErr != nil {
		res.Status = StatusFailed
		return res, runErr
	}

	res.Status = StatusDone
	logger.Printf("Sync of %s done: %d of %d files processed", sourceID, res.Processed(), len(res.Files))
	return res, nil
}

// process decodes one file, stores its rows and archives it. Only sink
// errors are returned; everything else is recorded in the outcome.
func (s *Syncer) process(ctx context.Context, sourceID, path, archiveDir string) (FileOutcome, error) {
	logger := s.config.Logger
	outcome := FileOutcome{Name: filepath.Base(path)}

	batch, err := s.decoder.DecodeFile(path)
	if err != nil {
		logger.Printf("Skipping %s: %v", path, err)
		outcome.Err = err.Error()
		return outcome, nil
	}
	outcome.PurchaseOrders = len(batch.PurchaseOrders)

	if outcome.Headers, err = s.sink.UpsertHeaders(ctx, batch.Headers, sourceID); err != nil {
		outcome.Err = err.Error()
		return outcome, fmt.Errorf("failed to store headers from %s: %w", outcome.Name, err)
	}
	if outcome.Details, err = s.sink.UpsertDetails(ctx, batch.Details, sourceID); err != nil {
		outcome.Err = err.Error()
		return outcome, fmt.Errorf("failed to store details from %s: %w", outcome.Name, err)
	}
	outcome.stored = true

	archived, err := archive.Move(path, archiveDir, s.now())
	if err != nil {
		logger.Printf("Error archiving %s: %v", path, err)
		outcome.Err = err.Error()
		return outcome, nil
	}
	outcome.ArchivedAs = filepath.Base(archived)

	if _, err := archive.Prune(archiveDir, s.config.MaxArchiveFiles, logger); err != nil {
		logger.Printf("Error pruning %s: %v", archiveDir, err)
	}

	logger.Printf("Processed %s: %d headers, %d details, archived as %s",
		outcome.Name, outcome.Headers, outcome.Details, outcome.ArchivedAs)
	return outcome, nil
}

// pendingFiles returns the regular files of dir sorted by name. Hidden
// files, such as downloads in progress, are not pending.
func pendingFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
