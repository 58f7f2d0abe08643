package dashboard

import (
	"encoding/json"
	"log"
	"os"
	"time"

	isync "github.com/bakemark/invrpt/internal/ingest/sync"
)

// SyncStartedData contains the branch whose run started
type SyncStartedData struct {
	Branch string `json:"branch"`
}

// SyncCompleteData contains sync completion information
type SyncCompleteData struct {
	Branch         string        `json:"branch"`
	Status         isync.Status  `json:"status"`
	FilesProcessed int           `json:"files_processed"`
	Headers        int           `json:"headers"`
	Details        int           `json:"details"`
	FetchError     string        `json:"fetch_error,omitempty"`
	FetchRetryable bool          `json:"fetch_retryable,omitempty"`
	Message        string        `json:"message"`
	Duration       time.Duration `json:"duration"`
}

// Handler turns sync lifecycle callbacks into dashboard messages.
type Handler struct {
	server *Server
	logger *log.Logger
}

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}
	return &Handler{server: server, logger: logger}
}

// OnSyncStarted is an isync.Config OnStart hook.
func (h *Handler) OnSyncStarted(branch string) {
	h.send(MessageTypeSyncStarted, SyncStartedData{Branch: branch})
}

// OnSyncComplete is an isync.Config OnComplete hook.
func (h *Handler) OnSyncComplete(res *isync.Result) {
	data := SyncCompleteData{
		Branch:         res.SourceID,
		Status:         res.Status,
		FilesProcessed: res.Processed(),
		FetchError:     res.FetchError,
		FetchRetryable: res.FetchRetryable,
		Message:        res.Message,
		Duration:       res.FinishedAt.Sub(res.StartedAt),
	}
	for _, f := range res.Files {
		data.Headers += f.Headers
		data.Details += f.Details
	}
	h.send(MessageTypeSyncComplete, data)
}

func (h *Handler) send(typ MessageType, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}
	h.server.Broadcast(Message{Type: typ, Timestamp: time.Now(), Data: raw})
}
