package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/assignment-sync/internal/dto"
	"github.com/noah-isme/assignment-sync/internal/middleware"
	"github.com/noah-isme/assignment-sync/internal/models"
	appErrors "github.com/noah-isme/assignment-sync/pkg/errors"
	"github.com/noah-isme/assignment-sync/pkg/jobs"
)

type syncServiceMock struct {
	lastRequest dto.SyncRequest
	lastClear   dto.ClearRequest
	lastDump    dto.DumpRequest
	lastRefresh bool
	runErr      error
}

func (m *syncServiceMock) ResolveOptions(req dto.SyncRequest) (models.SyncOptions, error) {
	m.lastRequest = req
	opts, ok := req.Options()
	if !ok {
		return models.SyncOptions{}, appErrors.Clone(appErrors.ErrValidation, "unknown mode")
	}
	return opts, nil
}

func (m *syncServiceMock) Run(_ context.Context, opts models.SyncOptions) (*models.SyncOutcome, error) {
	if m.runErr != nil {
		return nil, m.runErr
	}
	return &models.SyncOutcome{Options: opts, Report: &models.SyncReport{RowsWritten: 5}}, nil
}

func (m *syncServiceMock) Tabs(_ context.Context, refresh bool) (*models.TabCatalog, bool, error) {
	m.lastRefresh = refresh
	return &models.TabCatalog{Tabs: []string{"CS 1050 - Intro"}}, !refresh, nil
}

func (m *syncServiceMock) ExplainMatches(_ context.Context, req dto.MatchRequest) ([]models.MatchExplanation, error) {
	out := make([]models.MatchExplanation, 0, len(req.Courses))
	for _, course := range req.Courses {
		out = append(out, models.MatchExplanation{CourseName: course})
	}
	return out, nil
}

func (m *syncServiceMock) CanvasAuthenticated(context.Context) (bool, error) {
	return true, nil
}

func (m *syncServiceMock) Clear(_ context.Context, req dto.ClearRequest) (*models.ClearReport, error) {
	m.lastClear = req
	return &models.ClearReport{Status: models.SyncStatusSuccess, ClassName: req.ClassName, ClearedRows: 2}, nil
}

func (m *syncServiceMock) DumpTabs(_ context.Context, req dto.DumpRequest) (map[string]interface{}, error) {
	m.lastDump = req
	return map[string]interface{}{"status": "success"}, nil
}

type runServiceMock struct {
	runs map[string]*models.SyncRun
}

func (m *runServiceMock) Submit(_ context.Context, opts models.SyncOptions) (*models.SyncRun, error) {
	run := &models.SyncRun{ID: "run-1", Options: opts, Status: models.SyncRunQueued}
	m.runs[run.ID] = run
	return run, nil
}

func (m *runServiceMock) Get(_ context.Context, id string) (*models.SyncRun, error) {
	run, ok := m.runs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "sync run not found")
	}
	return run, nil
}

func (m *runServiceMock) List(context.Context) ([]models.SyncRun, error) {
	out := make([]models.SyncRun, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, *run)
	}
	return out, nil
}

func (m *runServiceMock) ReportLink(_ context.Context, id string) (string, time.Time, error) {
	return "/api/v1/sync/runs/" + id + "/report.pdf?token=signed", time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), nil
}

func (m *runServiceMock) VerifyReportToken(_, token string) bool {
	return token == "signed"
}

func (m *runServiceMock) WriteReport(_ context.Context, id string, w io.Writer) error {
	if m.runs[id] == nil || m.runs[id].Status != models.SyncRunFinished {
		return appErrors.Clone(appErrors.ErrValidation, "no report")
	}
	_, err := w.Write([]byte("%PDF-1.3"))
	return err
}

func (m *runServiceMock) QueueStats() (jobs.Stats, bool) {
	return jobs.Stats{Pending: len(m.runs)}, true
}

func newTestContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func newSyncHandlerForTest(authRequired bool) (*SyncHandler, *syncServiceMock, *runServiceMock) {
	syncSvc := &syncServiceMock{}
	runSvc := &runServiceMock{runs: map[string]*models.SyncRun{}}
	return NewSyncHandler(syncSvc, runSvc, "https://canvas.example.com", authRequired), syncSvc, runSvc
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestSyncHandlerSyncUsesModeQuery(t *testing.T) {
	h, syncSvc, _ := newSyncHandlerForTest(false)

	c, w := newTestContext(http.MethodPost, "/sync?mode=dry-run", nil)
	h.Sync(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dry-run", syncSvc.lastRequest.Mode)

	var outcome models.SyncOutcome
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &outcome))
	assert.True(t, outcome.Options.DryRun)
	assert.Equal(t, 5, outcome.Report.RowsWritten)
}

func TestSyncHandlerSyncBody(t *testing.T) {
	h, syncSvc, _ := newSyncHandlerForTest(false)

	payload, _ := json.Marshal(dto.SyncRequest{Mode: "refresh", Tabs: []string{"CS 1050 - Intro"}})
	c, w := newTestContext(http.MethodPost, "/sync", payload)
	h.Sync(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"CS 1050 - Intro"}, syncSvc.lastRequest.Tabs)
}

func TestSyncHandlerSyncErrors(t *testing.T) {
	h, syncSvc, _ := newSyncHandlerForTest(false)

	c, w := newTestContext(http.MethodPost, "/sync", []byte("{not json"))
	h.Sync(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodPost, "/sync?mode=sideways", nil)
	h.Sync(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	syncSvc.runErr = appErrors.ErrSyncInProgress
	c, w = newTestContext(http.MethodPost, "/sync", nil)
	h.Sync(c)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SYNC_IN_PROGRESS", decodeEnvelope(t, w).Error.Code)
}

func TestSyncHandlerRunLifecycle(t *testing.T) {
	h, _, runSvc := newSyncHandlerForTest(true)

	c, w := newTestContext(http.MethodPost, "/sync/runs", []byte(`{"mode":"future"}`))
	h.SubmitRun(c)
	require.Equal(t, http.StatusAccepted, w.Code)

	var queued dto.SyncRunResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &queued))
	assert.Equal(t, models.SyncRunQueued, queued.Run.Status)
	assert.Empty(t, queued.ReportURL)

	runSvc.runs["run-1"].Status = models.SyncRunFinished

	c, w = newTestContext(http.MethodGet, "/sync/runs/run-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}
	h.GetRun(c)
	require.Equal(t, http.StatusOK, w.Code)

	var finished dto.SyncRunResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &finished))
	assert.Contains(t, finished.ReportURL, "token=signed")
	assert.Equal(t, "2024-03-10T12:00:00Z", finished.ReportExpiresAt)

	c, w = newTestContext(http.MethodGet, "/sync/runs/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.GetRun(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncHandlerRunReportAuth(t *testing.T) {
	h, _, runSvc := newSyncHandlerForTest(true)
	runSvc.runs["run-1"] = &models.SyncRun{ID: "run-1", Status: models.SyncRunFinished}

	c, w := newTestContext(http.MethodGet, "/sync/runs/run-1/report.pdf", nil)
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}
	h.RunReport(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newTestContext(http.MethodGet, "/sync/runs/run-1/report.pdf?token=signed", nil)
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}
	h.RunReport(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.3", w.Body.String())

	c, w = newTestContext(http.MethodGet, "/sync/runs/run-1/report.pdf", nil)
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}
	c.Set(middleware.ContextOperatorKey, &models.OperatorClaims{Operator: "ops"})
	h.RunReport(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSyncHandlerClearAndDump(t *testing.T) {
	h, syncSvc, _ := newSyncHandlerForTest(false)

	c, w := newTestContext(http.MethodPost, "/clear", []byte(`{"class_name":"CS 1050 - Intro"}`))
	h.Clear(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CS 1050 - Intro", syncSvc.lastClear.ClassName)

	c, w = newTestContext(http.MethodPost, "/tabs/dump", nil)
	h.Dump(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, syncSvc.lastDump.MaxRows)

	c, w = newTestContext(http.MethodPost, "/tabs/dump", []byte(`{"max_rows":40}`))
	h.Dump(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 40, syncSvc.lastDump.MaxRows)
}

func TestSyncHandlerTabsMatchCanvas(t *testing.T) {
	h, syncSvc, _ := newSyncHandlerForTest(false)

	c, w := newTestContext(http.MethodGet, "/tabs", nil)
	h.Tabs(c)
	require.Equal(t, http.StatusOK, w.Code)
	meta := decodeEnvelope(t, w).Meta
	assert.EqualValues(t, 1, meta["count"])
	assert.Equal(t, true, meta["cache_hit"])

	c, w = newTestContext(http.MethodGet, "/tabs?refresh=true", nil)
	h.Tabs(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, syncSvc.lastRefresh)
	assert.Equal(t, false, decodeEnvelope(t, w).Meta["cache_hit"])

	c, w = newTestContext(http.MethodPost, "/tabs/match", []byte(`{"courses":["CS1050 Intro"]}`))
	h.Match(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newTestContext(http.MethodGet, "/canvas/status", nil)
	h.CanvasStatus(c)
	require.Equal(t, http.StatusOK, w.Code)

	var status dto.CanvasStatus
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &status))
	assert.True(t, status.Authenticated)
	assert.Equal(t, "https://canvas.example.com", status.BaseURL)
}

func TestSyncHandlerListRunsReportsQueue(t *testing.T) {
	h, _, runSvc := newSyncHandlerForTest(false)
	runSvc.runs["run-1"] = &models.SyncRun{ID: "run-1", Status: models.SyncRunQueued}

	c, w := newTestContext(http.MethodGet, "/sync/runs", nil)
	h.ListRuns(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.EqualValues(t, 1, env.Meta["count"])
	queue, ok := env.Meta["queue"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 1, queue["pending"])
}
