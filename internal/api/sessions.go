package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/banshee-data/bimanual.report/internal/db"
	"github.com/banshee-data/bimanual.report/internal/httputil"
	"github.com/banshee-data/bimanual.report/internal/report"
	"github.com/banshee-data/bimanual.report/internal/security"
)

// SessionRequest is the body of POST /api/sessions.
type SessionRequest struct {
	Participant string `json:"participant"`
	Notes       string `json:"notes"`
}

// handleSessions handles GET and POST to /api/sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sessions, err := s.store.DB().Sessions(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if sessions == nil {
			sessions = []db.Session{}
		}
		httputil.WriteJSONOK(w, sessions)
	case http.MethodPost:
		var req SessionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Participant == "" {
			httputil.BadRequest(w, "participant is required")
			return
		}
		sess := db.Session{Participant: req.Participant, Notes: req.Notes}
		if err := s.store.DB().CreateSession(r.Context(), &sess); err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, sess)
	default:
		httputil.MethodNotAllowed(w)
	}
}

// handleSessionByID handles /api/sessions/{id} and its sub-resources:
// trials, summary, reprocess, export.xlsx and chart.
func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	id, action := splitID(r.URL.Path, "/api/sessions/")
	if id == "" {
		httputil.BadRequest(w, "missing session id")
		return
	}

	wantMethod := http.MethodGet
	if action == "reprocess" {
		wantMethod = http.MethodPost
	}
	if r.Method != wantMethod {
		httputil.MethodNotAllowed(w)
		return
	}

	switch action {
	case "":
		sess, err := s.store.DB().Session(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSONOK(w, sess)
	case "trials":
		s.listTrials(w, r, id)
	case "summary":
		_, analyses, sum, err := s.store.Report(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSONOK(w, map[string]any{"summary": sum, "analyses": analyses})
	case "reprocess":
		n, err := s.store.Reprocess(r.Context(), id)
		resp := map[string]any{"analysed": n}
		if err != nil {
			resp["errors"] = err.Error()
		}
		httputil.WriteJSONOK(w, resp)
	case "export.xlsx":
		s.exportWorkbook(w, r, id)
	case "chart":
		_, _, sum, err := s.store.Report(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		var buf bytes.Buffer
		if err := report.RenderSummaryChart(&buf, id, sum); err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteBody(w, htmlContentType, buf.Bytes())
	default:
		httputil.NotFound(w, "unknown session resource "+action)
	}
}

func (s *Server) listTrials(w http.ResponseWriter, r *http.Request, sessionID string) {
	if _, err := s.store.DB().Session(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}
	trials, err := s.store.DB().ListTrials(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if trials == nil {
		trials = []db.TrialInfo{}
	}
	httputil.WriteJSONOK(w, trials)
}

const (
	htmlContentType = "text/html; charset=utf-8"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (s *Server) exportWorkbook(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, analyses, sum, err := s.store.Report(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	meta := report.SessionMeta{ID: sess.ID, Participant: sess.Participant, CreatedAt: sess.CreatedAt}
	if err := report.WriteWorkbook(&buf, meta, analyses, sum); err != nil {
		writeError(w, err)
		return
	}
	name := security.SanitizeFilename(fmt.Sprintf("%s-%s", sess.Participant, sess.CreatedAt.Format("2006-01-02")))
	httputil.WriteAttachment(w, xlsxContentType, name+".xlsx", buf.Bytes())
}
