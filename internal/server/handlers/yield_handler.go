package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkledger/internal/domain/models"
	"github.com/mamadbah2/milkledger/internal/server/middleware"
	"github.com/mamadbah2/milkledger/internal/service/ledger"
)

// LedgerService is the ledger behaviour the HTTP layer depends on.
type LedgerService interface {
	Create(ctx context.Context, farmID string, in ledger.NewRecord) (models.YieldRecord, error)
	Update(ctx context.Context, farmID, id string, amount float64) (models.YieldRecord, error)
	Delete(ctx context.Context, farmID, id string) (models.YieldRecord, error)
	BulkCreate(ctx context.Context, farmID, date string, entries []models.BulkEntry) ([]models.YieldRecord, error)
	ListRecords(ctx context.Context, farmID, date string, session models.Session) ([]models.YieldRecord, error)
	SessionAggregates(ctx context.Context, farmID, date string) ([]models.SessionAggregate, error)
	SetSessionCompleted(ctx context.Context, farmID, date string, session models.Session, completed bool) (models.SessionAggregate, error)
	DailySummaries(ctx context.Context, farmID, date string) ([]models.DailySummary, error)
	Reconcile(ctx context.Context, farmID, date string) (ledger.ReconcileResult, error)
	MonthlyHistory(ctx context.Context, farmID string, year, month int) (models.MonthlyHistory, error)
	YearlyHistory(ctx context.Context, farmID string, year int) (models.YearlyHistory, error)
	RecentDays(ctx context.Context, farmID string, days int) ([]models.DayTotal, error)
	YearRange(ctx context.Context, farmID string, years int) ([]models.YearTotal, error)
}

// YieldHandler serves the yield record endpoints.
type YieldHandler struct {
	svc    LedgerService
	logger *zap.Logger
}

// NewYieldHandler constructs the yield record HTTP adapter.
func NewYieldHandler(svc LedgerService, logger *zap.Logger) *YieldHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YieldHandler{svc: svc, logger: logger}
}

// Create handles POST /yield-records.
func (h *YieldHandler) Create(c *gin.Context) {
	var req models.CreateYieldRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}

	record, err := h.svc.Create(c.Request.Context(), middleware.FarmID(c), ledger.NewRecord{
		AnimalID: req.AnimalID,
		Session:  req.Session,
		Amount:   *req.Amount,
		Date:     req.Date,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusCreated, record)
}

// Update handles PUT /yield-records/:id.
func (h *YieldHandler) Update(c *gin.Context) {
	var req models.UpdateYieldRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}

	record, err := h.svc.Update(c.Request.Context(), middleware.FarmID(c), c.Param("id"), *req.Amount)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, record)
}

// Delete handles DELETE /yield-records/:id.
func (h *YieldHandler) Delete(c *gin.Context) {
	record, err := h.svc.Delete(c.Request.Context(), middleware.FarmID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "yield record deleted", "data": record})
}

// BulkCreate handles POST /yield-records/bulk.
func (h *YieldHandler) BulkCreate(c *gin.Context) {
	var req models.BulkYieldRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}

	entries := make([]models.BulkEntry, 0, len(req.Records))
	for _, r := range req.Records {
		entries = append(entries, models.BulkEntry{AnimalID: r.AnimalID, Session: r.Session, Amount: *r.Amount})
	}

	records, err := h.svc.BulkCreate(c.Request.Context(), middleware.FarmID(c), req.Date, entries)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusCreated, records)
}

// List handles GET /yield-records?date=&session=.
func (h *YieldHandler) List(c *gin.Context) {
	session, err := sessionParam(c.Query("session"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	records, err := h.svc.ListRecords(c.Request.Context(), middleware.FarmID(c), queryDate(c), session)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, records)
}

// MonthlyHistory handles GET /yield-records/monthly?year=&month=.
func (h *YieldHandler) MonthlyHistory(c *gin.Context) {
	var q models.MonthlyHistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, h.logger, queryError(err))
		return
	}

	history, err := h.svc.MonthlyHistory(c.Request.Context(), middleware.FarmID(c), q.Year, q.Month)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, history)
}

// YearlyHistory handles GET /yield-records/yearly?year=.
func (h *YieldHandler) YearlyHistory(c *gin.Context) {
	var q models.YearlyHistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, h.logger, queryError(err))
		return
	}

	history, err := h.svc.YearlyHistory(c.Request.Context(), middleware.FarmID(c), q.Year)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, history)
}

// RecentDays handles GET /yield-records/recent?days=.
func (h *YieldHandler) RecentDays(c *gin.Context) {
	var q models.RecentHistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, h.logger, queryError(err))
		return
	}

	days, err := h.svc.RecentDays(c.Request.Context(), middleware.FarmID(c), q.Days)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, days)
}

// YearRange handles GET /yield-records/years?years=.
func (h *YieldHandler) YearRange(c *gin.Context) {
	var q models.YearRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, h.logger, queryError(err))
		return
	}

	years, err := h.svc.YearRange(c.Request.Context(), middleware.FarmID(c), q.Years)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, years)
}
