package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/bimanual.report/internal/acquisition"
	"github.com/banshee-data/bimanual.report/internal/db"
	"github.com/banshee-data/bimanual.report/internal/httputil"
	"github.com/banshee-data/bimanual.report/internal/kinematics"
	"github.com/banshee-data/bimanual.report/internal/monitoring"
	"github.com/banshee-data/bimanual.report/internal/serialmux"
	"github.com/banshee-data/bimanual.report/internal/store"
)

// ANSI escape codes for the request log
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type Server struct {
	m        serialmux.SerialMuxInterface
	store    *store.Store
	recorder *acquisition.Recorder
}

// NewServer builds the HTTP API. recorder may be nil when the server only
// browses stored sessions.
func NewServer(m serialmux.SerialMuxInterface, st *store.Store, recorder *acquisition.Recorder) *Server {
	return &Server{
		m:        m,
		store:    st,
		recorder: recorder,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/command", s.sendCommandHandler)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionByID)
	mux.HandleFunc("/api/trials/", s.handleTrialByID)
	mux.HandleFunc("/api/recorder/status", s.handleRecorderStatus)
	mux.HandleFunc("/api/recorder/start", s.handleRecorderStart)
	mux.HandleFunc("/api/recorder/cancel", s.handleRecorderCancel)
	return mux
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	command := strings.TrimSpace(r.FormValue("command"))
	if command == "" {
		http.Error(w, "Missing command", http.StatusBadRequest)
		return
	}
	if err := s.m.SendCommand(command); err != nil {
		http.Error(w, "Failed to send command", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Command sent successfully")
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.store.Pipeline().Thresholds())
}

// splitID splits "/prefix/{id}/{action}" into id and action.
func splitID(path, prefix string) (id, action string) {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	id, action, _ = strings.Cut(rest, "/")
	return id, action
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		httputil.BadRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeError maps storage and analysis errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, db.ErrInvalidScore),
		errors.Is(err, kinematics.ErrInsufficientData),
		errors.Is(err, kinematics.ErrConfiguration):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, acquisition.ErrBusy):
		httputil.WriteJSONError(w, http.StatusConflict, err.Error())
	default:
		monitoring.Logf("api: %v", err)
		httputil.InternalServerError(w, err.Error())
	}
}
