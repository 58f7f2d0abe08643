package sync

import (
	"time"
)

// Status is the outcome class of a sync request.
type Status string

const (
	// StatusBusy means another run for the branch was active; nothing ran.
	StatusBusy Status = "busy"
	// StatusAccepted means the run was started in the background.
	StatusAccepted Status = "accepted"
	// StatusDone means the run finished. FetchError may still be set.
	StatusDone Status = "done"
	// StatusFailed means the run was aborted by a sink or filesystem error.
	StatusFailed Status = "failed"
)

// Result describes one sync request. FetchRetryable is set when the fetch
// failure is likely to clear on a later run, e.g. a timeout rather than
// rejected credentials.
type Result struct {
	SourceID       string        `json:"branch"`
	Status         Status        `json:"status"`
	Files          []FileOutcome `json:"files,omitempty"`
	FetchError     string        `json:"fetch_error,omitempty"`
	FetchRetryable bool          `json:"fetch_retryable,omitempty"`
	Message        string        `json:"message,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at,omitempty"`
}

// Processed returns the number of files whose rows reached the sink.
func (r *Result) Processed() int {
	n := 0
	for _, f := range r.Files {
		if f.stored {
			n++
		}
	}
	return n
}

// FileOutcome describes what happened to one file in the work directory.
type FileOutcome struct {
	Name           string `json:"name"`
	ArchivedAs     string `json:"archived_as,omitempty"`
	Headers        int    `json:"headers"`
	Details        int    `json:"details"`
	PurchaseOrders int    `json:"purchase_orders"`
	Err            string `json:"error,omitempty"`

	stored bool
}
