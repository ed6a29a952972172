package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/assignment-sync/internal/dto"
	"github.com/noah-isme/assignment-sync/internal/middleware"
	"github.com/noah-isme/assignment-sync/internal/models"
	appErrors "github.com/noah-isme/assignment-sync/pkg/errors"
	"github.com/noah-isme/assignment-sync/pkg/jobs"
	"github.com/noah-isme/assignment-sync/pkg/response"
)

type syncService interface {
	ResolveOptions(req dto.SyncRequest) (models.SyncOptions, error)
	Run(ctx context.Context, opts models.SyncOptions) (*models.SyncOutcome, error)
	Tabs(ctx context.Context, refresh bool) (*models.TabCatalog, bool, error)
	ExplainMatches(ctx context.Context, req dto.MatchRequest) ([]models.MatchExplanation, error)
	CanvasAuthenticated(ctx context.Context) (bool, error)
	Clear(ctx context.Context, req dto.ClearRequest) (*models.ClearReport, error)
	DumpTabs(ctx context.Context, req dto.DumpRequest) (map[string]interface{}, error)
}

type runService interface {
	Submit(ctx context.Context, opts models.SyncOptions) (*models.SyncRun, error)
	Get(ctx context.Context, id string) (*models.SyncRun, error)
	List(ctx context.Context) ([]models.SyncRun, error)
	ReportLink(ctx context.Context, id string) (string, time.Time, error)
	VerifyReportToken(id, token string) bool
	WriteReport(ctx context.Context, id string, w io.Writer) error
	QueueStats() (jobs.Stats, bool)
}

// SyncHandler exposes the tab catalog, sync and clear endpoints.
type SyncHandler struct {
	sync          syncService
	runs          runService
	canvasBaseURL string
	authRequired  bool
}

// NewSyncHandler constructs the handler. authRequired makes the report
// download demand an operator token or a signed link.
func NewSyncHandler(sync syncService, runs runService, canvasBaseURL string, authRequired bool) *SyncHandler {
	return &SyncHandler{sync: sync, runs: runs, canvasBaseURL: canvasBaseURL, authRequired: authRequired}
}

// Tabs godoc
// @Summary List class tabs
// @Tags Sheet
// @Produce json
// @Param refresh query bool false "Bypass the cached catalog"
// @Success 200 {object} response.Envelope
// @Router /tabs [get]
func (h *SyncHandler) Tabs(c *gin.Context) {
	refresh, _ := strconv.ParseBool(c.DefaultQuery("refresh", "false"))
	catalog, cached, err := h.sync.Tabs(c.Request.Context(), refresh)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	middleware.SetMeta(c, "count", len(catalog.Tabs))
	response.JSON(c, http.StatusOK, catalog, middleware.ExtractMeta(c))
}

// Match godoc
// @Summary Explain how course names match the class tabs
// @Tags Sheet
// @Accept json
// @Produce json
// @Param payload body dto.MatchRequest true "Course names"
// @Success 200 {object} response.Envelope
// @Router /tabs/match [post]
func (h *SyncHandler) Match(c *gin.Context) {
	var req dto.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	explanations, err := h.sync.ExplainMatches(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, explanations)
}

// Dump godoc
// @Summary Dump raw tab contents
// @Tags Sheet
// @Accept json
// @Produce json
// @Param payload body dto.DumpRequest false "Row limit"
// @Success 200 {object} response.Envelope
// @Router /tabs/dump [post]
func (h *SyncHandler) Dump(c *gin.Context) {
	var req dto.DumpRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
			return
		}
	}
	dump, err := h.sync.DumpTabs(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dump)
}

// CanvasStatus godoc
// @Summary Check the Canvas session
// @Tags Canvas
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /canvas/status [get]
func (h *SyncHandler) CanvasStatus(c *gin.Context) {
	ok, err := h.sync.CanvasAuthenticated(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.CanvasStatus{Authenticated: ok, BaseURL: h.canvasBaseURL})
}

// Sync godoc
// @Summary Run a sync session and wait for the report
// @Tags Sync
// @Accept json
// @Produce json
// @Param payload body dto.SyncRequest false "Sync options"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sync [post]
func (h *SyncHandler) Sync(c *gin.Context) {
	opts, ok := h.bindOptions(c)
	if !ok {
		return
	}
	outcome, err := h.sync.Run(c.Request.Context(), opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome)
}

// SubmitRun godoc
// @Summary Queue a sync session
// @Tags Sync
// @Accept json
// @Produce json
// @Param payload body dto.SyncRequest false "Sync options"
// @Success 202 {object} response.Envelope
// @Router /sync/runs [post]
func (h *SyncHandler) SubmitRun(c *gin.Context) {
	opts, ok := h.bindOptions(c)
	if !ok {
		return
	}
	run, err := h.runs.Submit(c.Request.Context(), opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.SyncRunResponse{Run: *run})
}

// ListRuns godoc
// @Summary List recent sync runs
// @Tags Sync
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync/runs [get]
func (h *SyncHandler) ListRuns(c *gin.Context) {
	runs, err := h.runs.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{"count": len(runs)}
	if stats, ok := h.runs.QueueStats(); ok {
		meta["queue"] = stats
	}
	response.JSON(c, http.StatusOK, runs, meta)
}

// GetRun godoc
// @Summary Sync run status
// @Tags Sync
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /sync/runs/{id} [get]
func (h *SyncHandler) GetRun(c *gin.Context) {
	run, err := h.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.SyncRunResponse{Run: *run}
	if run.Status == models.SyncRunFinished {
		link, expiresAt, err := h.runs.ReportLink(c.Request.Context(), run.ID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if link != "" {
			resp.ReportURL = link
			resp.ReportExpiresAt = expiresAt.UTC().Format(time.RFC3339)
		}
	}
	response.JSON(c, http.StatusOK, resp)
}

// RunReport godoc
// @Summary Download a sync run report
// @Tags Sync
// @Produce application/pdf
// @Param id path string true "Run ID"
// @Param token query string false "Signed download token"
// @Success 200 {file} file
// @Router /sync/runs/{id}/report.pdf [get]
func (h *SyncHandler) RunReport(c *gin.Context) {
	id := c.Param("id")
	if h.authRequired && middleware.Operator(c) == nil && !h.runs.VerifyReportToken(id, c.Query("token")) {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired report link"))
		return
	}

	var buf bytes.Buffer
	if err := h.runs.WriteReport(c.Request.Context(), id, &buf); err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "sync-report-"+id+".pdf", "application/pdf", buf.Bytes())
}

// Clear godoc
// @Summary Clear one class tab or all class tabs
// @Tags Sheet
// @Accept json
// @Produce json
// @Param payload body dto.ClearRequest true "Clear target"
// @Success 200 {object} response.Envelope
// @Router /clear [post]
func (h *SyncHandler) Clear(c *gin.Context) {
	var req dto.ClearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	report, err := h.sync.Clear(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

func (h *SyncHandler) bindOptions(c *gin.Context) (models.SyncOptions, bool) {
	var req dto.SyncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
			return models.SyncOptions{}, false
		}
	}
	if mode := c.Query("mode"); mode != "" && req.Mode == "" {
		req.Mode = mode
	}
	opts, err := h.sync.ResolveOptions(req)
	if err != nil {
		response.Error(c, err)
		return models.SyncOptions{}, false
	}
	return opts, true
}
