// Package sync runs the per-branch ingestion pipeline.
//
// Overview
//
// One run for a branch fetches the remote extract into the branch's work
// directory, decodes every file found there, writes the rows to the sink,
// archives each processed file and records the outcome in a status file:
//
//	remote host ──fetch──▶ <work>/<branch>/INVPRT.DAT
//	                            │ decode
//	                            ▼
//	                          Sink (invoice_headers, invoice_details)
//	                            │
//	                            ▼
//	                       <archive>/<branch>/INVPRT_20240315_101500_000123.DAT
//
// At most one run per branch is active at a time. A request for a branch
// that is already running is rejected with StatusBusy, never queued.
//
// Usage
//
//	syncer := sync.New(decoder, database, fetch.DialFTP, &sync.Config{
//	    WorkRoot:        "files/work",
//	    ArchiveRoot:     "files/archive",
//	    MaxArchiveFiles: 10,
//	    Branches:        database,
//	})
//
//	res, err := syncer.SyncBranch(ctx, "12")
//
// Error Handling
//
//   - Fetch failures are recorded in the status file and the run goes on to
//     process files already in the work directory
//   - Undecodable files are logged and left in place
//   - Sink errors abort the run and are returned to the caller
//   - Archive and prune failures are logged
//
// The slot is released on every path, so a failed run never blocks the next.
package sync
