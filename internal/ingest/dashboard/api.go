package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	isync "github.com/bakemark/invrpt/internal/ingest/sync"
)

// ResultMessage is the body of POST /sync/{branch}.
type ResultMessage struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
}

// BranchInfo is one entry of GET /branches.
type BranchInfo struct {
	ID   string `json:"branch_id"`
	Name string `json:"branch_name"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	records := s.config.Schema
	if records == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := s.config.Branches.ListBranches(r.Context(), true)
	if err != nil {
		s.logger.Printf("Error listing branches: %v", err)
		writeJSON(w, http.StatusInternalServerError, ResultMessage{Msg: "failed to list branches"})
		return
	}

	out := make([]BranchInfo, 0, len(branches))
	for _, b := range branches {
		out = append(out, BranchInfo{ID: b.ID, Name: b.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	branch := r.PathValue("branch")

	report, err := s.config.Syncer.Status(branch)
	if err != nil {
		s.logger.Printf("Error reading status of %s: %v", branch, err)
		writeJSON(w, http.StatusInternalServerError, ResultMessage{Msg: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleSyncTrigger starts a background sync of a branch.
//
//	202 queued, 409 already running, 404 unknown branch,
//	400 inactive or without remote host
func (s *Server) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	branch := r.PathValue("branch")

	res, err := s.config.Syncer.TriggerBranch(r.Context(), branch)
	switch {
	case errors.Is(err, isync.ErrUnknownBranch):
		writeJSON(w, http.StatusNotFound, ResultMessage{Msg: fmt.Sprintf("Branch #%s not found.", branch)})
		return
	case errors.Is(err, isync.ErrInactiveBranch):
		writeJSON(w, http.StatusBadRequest, ResultMessage{Msg: fmt.Sprintf("%s is not active.", branch)})
		return
	case errors.Is(err, isync.ErrNoHost):
		writeJSON(w, http.StatusBadRequest, ResultMessage{Msg: fmt.Sprintf("%s has no valid FTP host.", branch)})
		return
	case err != nil:
		s.logger.Printf("Error triggering sync of %s: %v", branch, err)
		writeJSON(w, http.StatusInternalServerError, ResultMessage{Msg: err.Error()})
		return
	}

	if res.Status == isync.StatusBusy {
		writeJSON(w, http.StatusConflict, ResultMessage{
			Msg: fmt.Sprintf("%s is locked, another request is already pending for this branch.", branch),
		})
		return
	}

	s.logger.Printf("Queued sync of branch %s", branch)
	writeJSON(w, http.StatusAccepted, ResultMessage{
		Success: true,
		Msg:     fmt.Sprintf("Branch #%s is queued for sync", branch),
	})
}

// handleRoot returns basic server information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>invrpt</title>
</head>
<body>
    <h1>invrpt sync dashboard</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Branches: <a href="/branches">/branches</a></p>
    <p>Health check: <a href="/health">/health</a></p>
</body>
</html>`, r.Host)
}
