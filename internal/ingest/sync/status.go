package sync

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bakemark/invrpt/internal/ingest/slot"
)

const (
	statusDir  = "msg"
	statusFile = "last_message.txt"

	// MessageOK and MessageNoFiles follow the timestamp in the status file.
	MessageOK      = "OK"
	MessageNoFiles = "No files to process."
)

// StatusPath returns the status file of a branch work directory.
func StatusPath(workDir string) string {
	return filepath.Join(workDir, statusDir, statusFile)
}

// statusLine builds the status file line for a finished run. A fetch failure
// takes precedence over the processing outcome.
func (s *Syncer) statusLine(res *Result, runErr error) string {
	ts := s.now().UTC().Format(time.RFC3339)

	switch {
	case res.FetchError != "":
		return ts + " " + res.FetchError
	case runErr != nil:
		return ts + " " + runErr.Error()
	case res.Processed() > 0:
		return ts + " " + MessageOK
	default:
		return ts + " " + MessageNoFiles
	}
}

func writeStatus(workDir, line string) error {
	path := StatusPath(workDir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(line+"\n"), 0644)
}

// Report is the status of one branch as shown by the CLI and dashboard.
type Report struct {
	SourceID    string     `json:"branch"`
	Status      slot.State `json:"status"`
	Pending     bool       `json:"pending"`
	Completed   bool       `json:"completed"`
	Message     string     `json:"message,omitempty"`
	MessageTime *time.Time `json:"message_ts,omitempty"`
}

// Status reports the slot state of a branch together with the last status
// file line, if any.
func (s *Syncer) Status(sourceID string) (*Report, error) {
	state := s.slots.State(sourceID)
	report := &Report{
		SourceID:  sourceID,
		Status:    state,
		Pending:   state == slot.StatePending,
		Completed: state == slot.StateDone,
	}

	ts, msg, err := ReadStatus(filepath.Join(s.config.WorkRoot, sourceID))
	if err != nil {
		return nil, err
	}
	report.MessageTime = ts
	report.Message = msg
	return report, nil
}

// ReadStatus returns the timestamp and message of the last status line in
// workDir. A missing status file is not an error.
func ReadStatus(workDir string) (*time.Time, string, error) {
	raw, err := os.ReadFile(StatusPath(workDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read status: %w", err)
	}

	line := strings.TrimSpace(string(raw))
	stamp, msg, _ := strings.Cut(line, " ")
	ts, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return nil, line, nil
	}
	return &ts, msg, nil
}
