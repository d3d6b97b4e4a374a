package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/banshee-data/bimanual.report/internal/acquisition"
	"github.com/banshee-data/bimanual.report/internal/db"
	"github.com/banshee-data/bimanual.report/internal/kinematics"
	"github.com/banshee-data/bimanual.report/internal/monitoring"
	"github.com/banshee-data/bimanual.report/internal/serialmux"
	"github.com/banshee-data/bimanual.report/internal/store"
	"github.com/banshee-data/bimanual.report/internal/testutil"
	"github.com/banshee-data/bimanual.report/internal/timeutil"
)

type testServer struct {
	srv      *Server
	mux      *http.ServeMux
	store    *store.Store
	port     *serialmux.TestableSerialPort
	recorder *acquisition.Recorder
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	database, err := db.NewDB(cloneAPITestDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	p, err := kinematics.NewPipeline(kinematics.DefaultThresholds(), 2)
	require.NoError(t, err)
	st := store.New(database, p)

	rec, err := acquisition.NewRecorder(acquisition.Config{
		SampleRate: testutil.SampleRate,
		Timeout:    10 * time.Second,
		Clock:      timeutil.NewMockClock(testutil.Epoch),
	}, st)
	require.NoError(t, err)

	port := serialmux.NewTestableSerialPort()
	srv := NewServer(serialmux.NewSerialMux(port), st, rec)
	return &testServer{srv: srv, mux: srv.ServeMux(), store: st, port: port, recorder: rec}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, testutil.NewJSONRequest(t, method, path, body))
	return rec
}

func (ts *testServer) session(t *testing.T) db.Session {
	t.Helper()
	s := db.Session{Participant: "P01"}
	require.NoError(t, ts.store.DB().CreateSession(context.Background(), &s))
	return s
}

func (ts *testServer) boxTrial(t *testing.T, sessionID, id string, score int) {
	t.Helper()
	require.NoError(t, ts.store.SaveRecordedTrial(context.Background(), sessionID, testutil.BoxTrial(id, score)))
}

func TestSessions_CreateAndList(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/sessions", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/sessions", SessionRequest{Participant: "P07", Notes: "left dominant"})
	testutil.AssertStatusCode(t, rec.Code, http.StatusCreated)
	var created db.Session
	testutil.DecodeJSON(t, rec, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "P07", created.Participant)

	rec = ts.do(t, http.MethodGet, "/api/sessions/"+created.ID, nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var got db.Session
	testutil.DecodeJSON(t, rec, &got)
	assert.Equal(t, "left dominant", got.Notes)

	rec = ts.do(t, http.MethodGet, "/api/sessions", nil)
	var list []db.Session
	testutil.DecodeJSON(t, rec, &list)
	assert.Len(t, list, 1)
}

func TestSessions_Errors(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing participant", http.MethodPost, "/api/sessions", SessionRequest{}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/sessions", map[string]string{"name": "x"}, http.StatusBadRequest},
		{"wrong method", http.MethodDelete, "/api/sessions", nil, http.StatusMethodNotAllowed},
		{"unknown session", http.MethodGet, "/api/sessions/nope", nil, http.StatusNotFound},
		{"unknown session trials", http.MethodGet, "/api/sessions/nope/trials", nil, http.StatusNotFound},
		{"unknown resource", http.MethodGet, "/api/sessions/nope/bogus", nil, http.StatusNotFound},
		{"reprocess needs POST", http.MethodGet, "/api/sessions/nope/reprocess", nil, http.StatusMethodNotAllowed},
		{"missing id", http.MethodGet, "/api/sessions/", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.body)
			testutil.AssertStatusCode(t, rec.Code, tt.want)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestTrialEndpoints(t *testing.T) {
	ts := setupTestServer(t)
	s := ts.session(t)
	ts.boxTrial(t, s.ID, "t1", -1)

	rec := ts.do(t, http.MethodGet, "/api/sessions/"+s.ID+"/trials", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var infos []db.TrialInfo
	testutil.DecodeJSON(t, rec, &infos)
	require.Len(t, infos, 1)
	assert.Equal(t, testutil.BoxTrialSamples, infos[0].Frames)

	rec = ts.do(t, http.MethodGet, "/api/trials/t1", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var st db.StoredTrial
	testutil.DecodeJSON(t, rec, &st)
	assert.Len(t, st.Left, testutil.BoxTrialSamples)
	assert.Equal(t, s.ID, st.SessionID)

	rec = ts.do(t, http.MethodGet, "/api/trials/t1/analysis", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var a kinematics.Analysis
	testutil.DecodeJSON(t, rec, &a)
	assert.False(t, a.Computed)

	rec = ts.do(t, http.MethodPost, "/api/trials/t1/score", map[string]int{"score": 3})
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	testutil.DecodeJSON(t, rec, &a)
	assert.True(t, a.Computed)
	assert.Equal(t, kinematics.RoleLeftBox, a.Role)
	e3 := a.Events.E3

	rec = ts.do(t, http.MethodPost, "/api/trials/t1/cut", CutRequest{Start: 5})
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	testutil.DecodeJSON(t, rec, &a)
	assert.Equal(t, e3-5, a.Events.E3)

	rec = ts.do(t, http.MethodGet, "/api/trials/t1/chart?length_unit=mm", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Height (mm)")

	rec = ts.do(t, http.MethodGet, "/api/trials/t1/plot.png", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestTrialEndpoints_Errors(t *testing.T) {
	ts := setupTestServer(t)
	s := ts.session(t)
	ts.boxTrial(t, s.ID, "t1", -1)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown trial", http.MethodGet, "/api/trials/nope", nil, http.StatusNotFound},
		{"unknown trial analysis", http.MethodGet, "/api/trials/nope/analysis", nil, http.StatusNotFound},
		{"score out of range", http.MethodPost, "/api/trials/t1/score", map[string]int{"score": 7}, http.StatusBadRequest},
		{"score needs POST", http.MethodGet, "/api/trials/t1/score", nil, http.StatusMethodNotAllowed},
		{"cut past the end", http.MethodPost, "/api/trials/t1/cut", CutRequest{Start: 500}, http.StatusBadRequest},
		{"cut negative", http.MethodPost, "/api/trials/t1/cut", CutRequest{Start: -1}, http.StatusBadRequest},
		{"chart needs GET", http.MethodPost, "/api/trials/t1/chart", nil, http.StatusMethodNotAllowed},
		{"unknown resource", http.MethodGet, "/api/trials/t1/bogus", nil, http.StatusNotFound},
		{"bad speed unit", http.MethodGet, "/api/trials/t1/chart?speed_unit=knots", nil, http.StatusBadRequest},
		{"bad length unit", http.MethodGet, "/api/trials/t1/plot.png?length_unit=in", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.body)
			testutil.AssertStatusCode(t, rec.Code, tt.want)
		})
	}
}

func TestScoreNullClearsManualScore(t *testing.T) {
	ts := setupTestServer(t)
	s := ts.session(t)
	ts.boxTrial(t, s.ID, "t1", kinematics.ScoreGood)

	rec := ts.do(t, http.MethodPost, "/api/trials/t1/score", map[string]any{"score": nil})
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var a kinematics.Analysis
	testutil.DecodeJSON(t, rec, &a)
	assert.Equal(t, -1, a.Score)
	assert.False(t, a.Computed)
}

func TestSessionExportAndSummary(t *testing.T) {
	ts := setupTestServer(t)
	s := ts.session(t)
	ts.boxTrial(t, s.ID, "t1", kinematics.ScoreGood)
	ts.boxTrial(t, s.ID, "t2", 1)

	rec := ts.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/reprocess", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.JSONEq(t, `{"analysed": 2}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/sessions/"+s.ID+"/summary", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var body struct {
		Summary  kinematics.Summary    `json:"summary"`
		Analyses []kinematics.Analysis `json:"analyses"`
	}
	testutil.DecodeJSON(t, rec, &body)
	assert.Equal(t, 2, body.Summary.Trials)
	assert.Equal(t, 1, body.Summary.Computed)
	assert.Len(t, body.Analyses, 2)

	rec = ts.do(t, http.MethodGet, "/api/sessions/"+s.ID+"/export.xlsx", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "P01-")
	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Trials")
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rec = ts.do(t, http.MethodGet, "/api/sessions/"+s.ID+"/chart", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Body.String(), "total_time")
}

func TestRecorderEndpoints(t *testing.T) {
	ts := setupTestServer(t)
	s := ts.session(t)

	rec := ts.do(t, http.MethodGet, "/api/recorder/status", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var status acquisition.Status
	testutil.DecodeJSON(t, rec, &status)
	assert.False(t, status.Recording)

	rec = ts.do(t, http.MethodPost, "/api/recorder/start", StartRequest{SessionID: "nope"})
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)

	rec = ts.do(t, http.MethodPost, "/api/recorder/start", StartRequest{SessionID: s.ID})
	testutil.AssertStatusCode(t, rec.Code, http.StatusAccepted)
	var started map[string]string
	testutil.DecodeJSON(t, rec, &started)
	assert.NotEmpty(t, started["trial_id"])

	rec = ts.do(t, http.MethodPost, "/api/recorder/start", StartRequest{SessionID: s.ID})
	testutil.AssertStatusCode(t, rec.Code, http.StatusConflict)

	rec = ts.do(t, http.MethodGet, "/api/recorder/status", nil)
	testutil.DecodeJSON(t, rec, &status)
	assert.True(t, status.Recording)
	assert.Equal(t, started["trial_id"], status.TrialID)

	rec = ts.do(t, http.MethodPost, "/api/recorder/cancel", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.JSONEq(t, `{"cancelled": true}`, rec.Body.String())
}

func TestRecorderDeliversToStore(t *testing.T) {
	ts := setupTestServer(t)
	s := ts.session(t)

	lines := make(chan string)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.recorder.Run(ctx, lines) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	rec := ts.do(t, http.MethodPost, "/api/recorder/start", StartRequest{SessionID: s.ID})
	testutil.AssertStatusCode(t, rec.Code, http.StatusAccepted)

	for i := 0; i < 30; i++ {
		lines <- "S1 -20 0 0"
		lines <- fmt.Sprintf("S2 20 %d -2", i)
	}
	lines <- "B"

	require.Eventually(t, func() bool {
		infos, err := ts.store.DB().ListTrials(context.Background(), s.ID)
		return err == nil && len(infos) == 1
	}, 2*time.Second, 10*time.Millisecond)

	infos, err := ts.store.DB().ListTrials(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, infos[0].Frames)
	assert.True(t, infos[0].ButtonPressed)
}

func TestRecorderDisabled(t *testing.T) {
	ts := setupTestServer(t)
	srv := NewServer(serialmux.NewDisabledSerialMux(), ts.store, nil)
	mux := srv.ServeMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, testutil.NewJSONRequest(t, http.MethodPost, "/api/recorder/start", StartRequest{SessionID: "x"}))
	testutil.AssertStatusCode(t, rec.Code, http.StatusServiceUnavailable)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/recorder/status", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
}

func TestSendCommandHandler(t *testing.T) {
	ts := setupTestServer(t)

	form := url.Values{"command": {"U1"}}
	req := httptest.NewRequest(http.MethodPost, "/command", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "U1\r\n", ts.port.Written())

	rec = ts.do(t, http.MethodGet, "/command", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)

	req = httptest.NewRequest(http.MethodPost, "/command", strings.NewReader("command=+"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestShowConfig(t *testing.T) {
	ts := setupTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/config", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Body.String(), `"speed_threshold":0.05`)
	assert.Contains(t, rec.Body.String(), `"filter_mode":"off"`)
}

func TestLoggingMiddleware(t *testing.T) {
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	})
	defer monitoring.SetLogger(nil)

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/sessions?x=1", nil))

	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "418")
	assert.Contains(t, logged[0], "/api/sessions?x=1")
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(304))
	assert.Equal(t, colorBoldRed+"500"+colorReset, statusCodeColor(500))
	assert.Equal(t, "100", statusCodeColor(100))
}
