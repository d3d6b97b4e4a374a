package api

import (
	"net/http"

	"github.com/banshee-data/bimanual.report/internal/acquisition"
	"github.com/banshee-data/bimanual.report/internal/httputil"
)

// StartRequest is the body of POST /api/recorder/start.
type StartRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) requireRecorder(w http.ResponseWriter) bool {
	if s.recorder == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "recording is disabled")
		return false
	}
	return true
}

func (s *Server) handleRecorderStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.recorder == nil {
		httputil.WriteJSONOK(w, acquisition.Status{})
		return
	}
	httputil.WriteJSONOK(w, s.recorder.Status())
}

// handleRecorderStart begins a trial for an existing session.
func (s *Server) handleRecorderStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.requireRecorder(w) {
		return
	}
	var req StartRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := s.store.DB().Session(r.Context(), req.SessionID); err != nil {
		writeError(w, err)
		return
	}
	trialID, err := s.recorder.Start(req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"session_id": req.SessionID,
		"trial_id":   trialID,
	})
}

func (s *Server) handleRecorderCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.requireRecorder(w) {
		return
	}
	httputil.WriteJSONOK(w, map[string]bool{"cancelled": s.recorder.Cancel()})
}
