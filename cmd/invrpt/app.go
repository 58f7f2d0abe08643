package main

import (
	"fmt"
	"log"
	"os"

	"github.com/bakemark/invrpt/internal/config"
	"github.com/bakemark/invrpt/internal/dibol/data"
	"github.com/bakemark/invrpt/internal/dibol/schema"
	"github.com/bakemark/invrpt/internal/ingest/db"
	"github.com/bakemark/invrpt/internal/ingest/fetch"
	isync "github.com/bakemark/invrpt/internal/ingest/sync"
	"github.com/bakemark/invrpt/internal/logging"
)

// app holds what a command opened. Fields are filled on demand by the
// open* methods, which exit the process on failure.
type app struct {
	cfg     *config.Config
	logs    *logging.Sink
	db      *db.DB
	records []schema.Record
}

// openApp loads and validates the configuration and opens the log sink.
func openApp() *app {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config:\n%v\n", err)
		os.Exit(1)
	}

	logs := logging.Open(logging.Options{
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}, os.Stderr)

	return &app{cfg: cfg, logs: logs}
}

func (a *app) logger(component string) *log.Logger {
	return a.logs.New(component)
}

// openDB opens the database.
func (a *app) openDB() *db.DB {
	if a.db != nil {
		return a.db
	}
	database, err := db.Open(a.cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	a.db = database
	return database
}

// loadSchema parses the configured .DEF file and warns about record names
// declared more than once; the last declaration is used for decoding.
func (a *app) loadSchema() []schema.Record {
	if a.records != nil {
		return a.records
	}
	records, err := schema.ParseFile(a.cfg.DibolSchema)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading schema: %v\n", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Fprintf(os.Stderr, "Warning: no records found in %s\n", a.cfg.DibolSchema)
	}
	for _, name := range schema.Duplicates(records) {
		a.logger("schema").Printf("Warning: record %s declared more than once, using the last declaration", name)
	}
	a.records = records
	return records
}

// newSyncer builds a syncer over the database with the FTP transport.
func (a *app) newSyncer() (*isync.Syncer, *isync.Config) {
	database := a.openDB()
	cfg := &isync.Config{
		WorkRoot:        a.cfg.Sync.SaveFolder,
		ArchiveRoot:     a.cfg.Sync.ArchiveFolder,
		MaxArchiveFiles: a.cfg.Sync.MaxArchiveFiles,
		FetchTimeout:    a.cfg.Sync.FTPTimeout,
		Branches:        database,
		Logger:          a.logger("sync"),
	}
	decoder := data.New(a.loadSchema())
	return isync.New(decoder, database, fetch.DialFTP, cfg), cfg
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	_ = a.logs.Close()
}
