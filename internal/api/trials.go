package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/banshee-data/bimanual.report/internal/db"
	"github.com/banshee-data/bimanual.report/internal/httputil"
	"github.com/banshee-data/bimanual.report/internal/kinematics"
	"github.com/banshee-data/bimanual.report/internal/report"
)

// ScoreRequest is the body of POST /api/trials/{id}/score. A nil score
// clears the manual score.
type ScoreRequest struct {
	Score *int `json:"score"`
}

// CutRequest is the body of POST /api/trials/{id}/cut.
type CutRequest struct {
	Start int `json:"start"`
}

// handleTrialByID handles /api/trials/{id} and its sub-resources:
// analysis, score, cut, chart and plot.png.
func (s *Server) handleTrialByID(w http.ResponseWriter, r *http.Request) {
	id, action := splitID(r.URL.Path, "/api/trials/")
	if id == "" {
		httputil.BadRequest(w, "missing trial id")
		return
	}

	switch action {
	case "score":
		s.scoreTrial(w, r, id)
		return
	case "cut":
		s.cutTrial(w, r, id)
		return
	}

	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	switch action {
	case "":
		st, err := s.store.DB().Trial(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSONOK(w, st)
	case "analysis":
		a, err := s.store.DB().Analysis(r.Context(), id)
		if errors.Is(err, db.ErrNotFound) {
			// Never analysed, or dropped by an edit that failed to re-analyse.
			a, err = s.store.Reanalyse(r.Context(), id)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSONOK(w, a)
	case "chart", "plot.png":
		s.renderTrial(w, r, id, action)
	default:
		httputil.NotFound(w, "unknown trial resource "+action)
	}
}

func (s *Server) scoreTrial(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req ScoreRequest
	if !decodeBody(w, r, &req) {
		return
	}
	score := -1
	if req.Score != nil {
		score = *req.Score
	}
	a, err := s.store.Rescore(r.Context(), id, score)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, a)
}

func (s *Server) cutTrial(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req CutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a, err := s.store.Cut(r.Context(), id, req.Start)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, a)
}

// renderTrial draws a trial. The speed_unit and length_unit query
// parameters pick the display units.
func (s *Server) renderTrial(w http.ResponseWriter, r *http.Request, id, action string) {
	u, err := report.ParseUnits(r.URL.Query().Get("speed_unit"), r.URL.Query().Get("length_unit"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	st, err := s.store.DB().Trial(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	a, err := s.store.DB().Analysis(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		a, err = kinematics.Analysis{TrialID: id}, nil
	}
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	contentType := htmlContentType
	if action == "plot.png" {
		contentType = "image/png"
		err = report.WriteTrialPlot(&buf, "png", st.Trial, a, u)
	} else {
		err = report.RenderTrialChart(&buf, st.Trial, a, u)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteBody(w, contentType, buf.Bytes())
}
