package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkledger/internal/domain/models"
	"github.com/mamadbah2/milkledger/internal/platform/calendar"
	"github.com/mamadbah2/milkledger/internal/server/middleware"
)

// ReportService produces daily farm reports.
type ReportService interface {
	GenerateDailyReport(ctx context.Context, farmID, date string) (models.DailyReport, error)
}

// AggregateHandler serves the derived views: session aggregates, daily
// summaries, reconciliation and reports.
type AggregateHandler struct {
	svc      LedgerService
	reports  ReportService
	calendar *calendar.Calendar
	logger   *zap.Logger
}

// NewAggregateHandler constructs the aggregate HTTP adapter.
func NewAggregateHandler(svc LedgerService, reports ReportService, cal *calendar.Calendar, logger *zap.Logger) *AggregateHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AggregateHandler{svc: svc, reports: reports, calendar: cal, logger: logger}
}

// SessionAggregates handles GET /session-aggregates?date=.
func (h *AggregateHandler) SessionAggregates(c *gin.Context) {
	rows, err := h.svc.SessionAggregates(c.Request.Context(), middleware.FarmID(c), queryDate(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, rows)
}

// SetCompletion handles PUT /session-aggregates/:session/completion.
func (h *AggregateHandler) SetCompletion(c *gin.Context) {
	var req models.SessionCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}
	session, err := sessionParam(c.Param("session"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	row, err := h.svc.SetSessionCompleted(c.Request.Context(), middleware.FarmID(c), req.Date, session, *req.Completed)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, row)
}

// DailySummaries handles GET /daily-summaries?date=.
func (h *AggregateHandler) DailySummaries(c *gin.Context) {
	summaries, err := h.svc.DailySummaries(c.Request.Context(), middleware.FarmID(c), queryDate(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, summaries)
}

// Reconcile handles POST /aggregates/reconcile.
func (h *AggregateHandler) Reconcile(c *gin.Context) {
	var req models.DateRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}

	result, err := h.svc.Reconcile(c.Request.Context(), middleware.FarmID(c), req.Date)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, result)
}

// DailyReport handles POST /reports/daily.
func (h *AggregateHandler) DailyReport(c *gin.Context) {
	var req models.DateRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}
	date, err := h.calendar.ResolveDate(req.Date)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	report, err := h.reports.GenerateDailyReport(c.Request.Context(), middleware.FarmID(c), date)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, report)
}
