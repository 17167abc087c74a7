// Package repository declares the storage contracts of the yield ledger and
// its derived aggregates. Implementations live in the mongodb and memory
// subpackages and must enforce ledger uniqueness in the storage engine itself.
package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/milkledger/internal/domain/models"
)

// LedgerRepository stores individual yield records.
type LedgerRepository interface {
	// InsertRecord stores a new record. A collision on the ledger key returns
	// a *models.DuplicateKeyError.
	InsertRecord(ctx context.Context, record models.YieldRecord) error
	// InsertRecords stores every record or none of them.
	InsertRecords(ctx context.Context, records []models.YieldRecord) error
	UpdateRecordAmount(ctx context.Context, farmID string, id primitive.ObjectID, amount float64, at time.Time) (models.YieldRecord, error)
	// DeleteRecord removes the record and returns it as it was before removal.
	DeleteRecord(ctx context.Context, farmID string, id primitive.ObjectID) (models.YieldRecord, error)
	FindRecordsByKeys(ctx context.Context, keys []models.LedgerKey) ([]models.YieldRecord, error)
	// ListRecords returns the records of a farm day; an empty session matches both.
	ListRecords(ctx context.Context, farmID, date string, session models.Session) ([]models.YieldRecord, error)
	ListAnimalRecords(ctx context.Context, key models.SummaryKey) ([]models.YieldRecord, error)
	SumSession(ctx context.Context, key models.SessionKey) (models.SessionTotals, error)
	DistinctAnimals(ctx context.Context, farmID, date string) ([]string, error)
	DistinctFarms(ctx context.Context, dates []string) ([]string, error)
	// DailyTotals sums a farm's records per date for from..to inclusive,
	// ordered by date. Dates without records are absent.
	DailyTotals(ctx context.Context, farmID, from, to string) ([]models.DayTotal, error)
}

// SessionRepository persists SessionAggregate rows.
type SessionRepository interface {
	// SaveSessionTotals upserts the derived totals, leaving the completion flag untouched.
	SaveSessionTotals(ctx context.Context, key models.SessionKey, totals models.SessionTotals, at time.Time) (models.SessionAggregate, error)
	// EnsureSession creates a zero-valued row if none exists and never resets totals.
	EnsureSession(ctx context.Context, key models.SessionKey, at time.Time) (models.SessionAggregate, error)
	SetSessionCompleted(ctx context.Context, key models.SessionKey, completed bool, at time.Time) (models.SessionAggregate, error)
	ListSessions(ctx context.Context, farmID, date string) ([]models.SessionAggregate, error)
	// SessionFarms lists the farms with a session row on any of the dates.
	SessionFarms(ctx context.Context, dates []string) ([]string, error)
}

// SummaryRepository persists DailySummary rows.
type SummaryRepository interface {
	UpsertSummary(ctx context.Context, summary models.DailySummary) error
	DeleteSummary(ctx context.Context, key models.SummaryKey) error
	// ListSummaries returns the summaries of a farm day ordered by total yield, highest first.
	ListSummaries(ctx context.Context, farmID, date string) ([]models.DailySummary, error)
	// SummaryFarms lists the farms with a summary row on any of the dates.
	SummaryFarms(ctx context.Context, dates []string) ([]string, error)
}

// ReportRepository stores daily farm reports.
type ReportRepository interface {
	SaveDailyReport(ctx context.Context, report models.DailyReport) error
}
