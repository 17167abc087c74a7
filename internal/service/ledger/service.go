// Package ledger is the only writer of yield records. Every committed
// mutation is followed by a full recompute of the session aggregates and
// daily summaries it touched, before the call returns.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mamadbah2/milkledger/internal/domain/models"
	"github.com/mamadbah2/milkledger/internal/metrics"
	"github.com/mamadbah2/milkledger/internal/platform/calendar"
	"github.com/mamadbah2/milkledger/internal/repository"
	"github.com/mamadbah2/milkledger/internal/service/aggregation"
)

// recomputeConcurrency bounds the recomputes a bulk write runs in parallel.
const recomputeConcurrency = 4

// NewRecord is the input of a single-record create.
type NewRecord struct {
	AnimalID string
	Session  models.Session
	Amount   float64
	// Date defaults to today in the farm's time zone when empty.
	Date string
}

// Service coordinates ledger writes with aggregate recomputes.
type Service struct {
	ledger     repository.LedgerRepository
	sessions   repository.SessionRepository
	summaries  repository.SummaryRepository
	sessionAgg *aggregation.SessionAggregator
	summaryAgg *aggregation.SummaryAggregator
	calendar   *calendar.Calendar
	maxYield   float64
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewService wires a ledger service.
func NewService(
	ledger repository.LedgerRepository,
	sessions repository.SessionRepository,
	summaries repository.SummaryRepository,
	sessionAgg *aggregation.SessionAggregator,
	summaryAgg *aggregation.SummaryAggregator,
	cal *calendar.Calendar,
	maxYield float64,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ledger:     ledger,
		sessions:   sessions,
		summaries:  summaries,
		sessionAgg: sessionAgg,
		summaryAgg: summaryAgg,
		calendar:   cal,
		maxYield:   maxYield,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Create stores one yield record and refreshes its session aggregate and the
// animal's daily summary.
func (s *Service) Create(ctx context.Context, farmID string, in NewRecord) (models.YieldRecord, error) {
	date, err := s.calendar.ResolveDate(in.Date)
	if err != nil {
		return models.YieldRecord{}, err
	}
	entry := models.BulkEntry{AnimalID: strings.TrimSpace(in.AnimalID), Session: in.Session, Amount: in.Amount}
	if err := s.validateEntry("", entry); err != nil {
		return models.YieldRecord{}, err
	}

	record := s.newRecord(farmID, date, entry)
	if err := s.ledger.InsertRecord(ctx, record); err != nil {
		if errors.Is(err, models.ErrDuplicateRecord) {
			return models.YieldRecord{}, err
		}
		return models.YieldRecord{}, fmt.Errorf("insert yield record: %w", err)
	}
	s.metrics.Mutation("create")
	s.logger.Info("yield record created",
		zap.String("farm_id", farmID),
		zap.String("animal_id", record.AnimalID),
		zap.String("date", record.Date),
		zap.String("session", string(record.Session)),
		zap.Float64("amount", record.Amount))

	s.refreshAfterWrite(ctx, "create", []models.YieldRecord{record})
	return record, nil
}

// Update replaces the amount of an existing record.
func (s *Service) Update(ctx context.Context, farmID, id string, amount float64) (models.YieldRecord, error) {
	if err := s.validateAmount("amount", amount); err != nil {
		return models.YieldRecord{}, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.YieldRecord{}, models.ErrNotFound
	}

	record, err := s.ledger.UpdateRecordAmount(ctx, farmID, oid, amount, s.now().UTC())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.YieldRecord{}, err
		}
		return models.YieldRecord{}, fmt.Errorf("update yield record: %w", err)
	}
	s.metrics.Mutation("update")
	s.logger.Info("yield record updated",
		zap.String("farm_id", farmID),
		zap.String("record_id", id),
		zap.Float64("amount", amount))

	s.refreshAfterWrite(ctx, "update", []models.YieldRecord{record})
	return record, nil
}

// Delete removes a record and returns it as it was stored.
func (s *Service) Delete(ctx context.Context, farmID, id string) (models.YieldRecord, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.YieldRecord{}, models.ErrNotFound
	}

	record, err := s.ledger.DeleteRecord(ctx, farmID, oid)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.YieldRecord{}, err
		}
		return models.YieldRecord{}, fmt.Errorf("delete yield record: %w", err)
	}
	s.metrics.Mutation("delete")
	s.logger.Info("yield record deleted", zap.String("farm_id", farmID), zap.String("record_id", id))

	s.refreshAfterWrite(ctx, "delete", []models.YieldRecord{record})
	return record, nil
}

// BulkCreate stores every entry for one farm day, or none of them. A batch
// that repeats an (animal, session) pair or collides with a stored record is
// rejected as a whole.
func (s *Service) BulkCreate(ctx context.Context, farmID, date string, entries []models.BulkEntry) ([]models.YieldRecord, error) {
	if len(entries) == 0 {
		return nil, models.NewValidationError("records", "at least one record is required")
	}
	date, err := s.calendar.ResolveDate(date)
	if err != nil {
		return nil, err
	}

	records := make([]models.YieldRecord, 0, len(entries))
	keys := make([]models.LedgerKey, 0, len(entries))
	seen := make(map[models.LedgerKey]int, len(entries))
	for i, entry := range entries {
		entry.AnimalID = strings.TrimSpace(entry.AnimalID)
		if err := s.validateEntry(fmt.Sprintf("records[%d].", i), entry); err != nil {
			return nil, err
		}
		record := s.newRecord(farmID, date, entry)
		key := record.LedgerKey()
		if first, dup := seen[key]; dup {
			return nil, models.NewValidationError(fmt.Sprintf("records[%d]", i),
				"animal %s appears twice in the %s session (also at records[%d])", entry.AnimalID, entry.Session, first)
		}
		seen[key] = i
		keys = append(keys, key)
		records = append(records, record)
	}

	existing, err := s.ledger.FindRecordsByKeys(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("look up existing yield records: %w", err)
	}
	if collision := firstCollision(records, existing); collision != nil {
		return nil, collision
	}

	if err := s.ledger.InsertRecords(ctx, records); err != nil {
		if errors.Is(err, models.ErrDuplicateRecord) {
			return nil, err
		}
		return nil, fmt.Errorf("insert yield records: %w", err)
	}
	s.metrics.Mutation("bulk_create")
	s.logger.Info("yield records bulk created",
		zap.String("farm_id", farmID),
		zap.String("date", date),
		zap.Int("count", len(records)))

	s.refreshAfterWrite(ctx, "bulk_create", records)
	return records, nil
}

func (s *Service) newRecord(farmID, date string, entry models.BulkEntry) models.YieldRecord {
	now := s.now().UTC()
	return models.YieldRecord{
		ID:        primitive.NewObjectID(),
		FarmID:    farmID,
		AnimalID:  entry.AnimalID,
		Date:      date,
		Session:   entry.Session,
		Amount:    entry.Amount,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Service) validateEntry(prefix string, entry models.BulkEntry) error {
	if entry.AnimalID == "" {
		return models.NewValidationError(prefix+"animalId", "is required")
	}
	if !entry.Session.Valid() {
		return models.NewValidationError(prefix+"session", "must be %q or %q, got %q",
			models.SessionMorning, models.SessionEvening, entry.Session)
	}
	return s.validateAmount(prefix+"amount", entry.Amount)
}

func (s *Service) validateAmount(field string, amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 || amount > s.maxYield {
		return models.NewValidationError(field, "must be between 0 and %g, got %g", s.maxYield, amount)
	}
	return nil
}

// firstCollision reports the first batch record, in request order, whose
// ledger slot is already taken.
func firstCollision(batch, existing []models.YieldRecord) error {
	if len(existing) == 0 {
		return nil
	}
	taken := make(map[models.LedgerKey]struct{}, len(existing))
	for _, r := range existing {
		taken[r.LedgerKey()] = struct{}{}
	}
	for _, r := range batch {
		if _, ok := taken[r.LedgerKey()]; ok {
			return &models.DuplicateKeyError{AnimalID: r.AnimalID, Session: r.Session, Date: r.Date}
		}
	}
	return nil
}

// refreshAfterWrite recomputes every aggregate touched by a committed write.
// The ledger change stands even if a recompute fails, so failures are logged
// for the reconciliation job instead of being returned.
func (s *Service) refreshAfterWrite(ctx context.Context, op string, records []models.YieldRecord) {
	sessionKeys, summaryKeys := affectedKeys(records)
	// The write is already committed; a caller hanging up must not abort the recompute.
	if err := s.refresh(context.WithoutCancel(ctx), sessionKeys, summaryKeys); err != nil {
		s.logger.Error("aggregate recompute failed after committed write",
			zap.String("op", op), zap.Error(err))
	}
}

// refresh recomputes the given keys concurrently and joins their failures.
func (s *Service) refresh(ctx context.Context, sessionKeys []models.SessionKey, summaryKeys []models.SummaryKey) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(recomputeConcurrency)

	collect := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for _, key := range sessionKeys {
		key := key
		g.Go(func() error {
			if _, err := s.sessionAgg.Recompute(ctx, key); err != nil {
				collect(err)
			}
			return nil
		})
	}
	for _, key := range summaryKeys {
		key := key
		g.Go(func() error {
			if _, _, err := s.summaryAgg.Recompute(ctx, key); err != nil {
				collect(err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func affectedKeys(records []models.YieldRecord) ([]models.SessionKey, []models.SummaryKey) {
	var (
		sessionKeys []models.SessionKey
		summaryKeys []models.SummaryKey
		seenSession = map[models.SessionKey]struct{}{}
		seenSummary = map[models.SummaryKey]struct{}{}
	)
	for _, r := range records {
		if key := r.SessionKey(); !contains(seenSession, key) {
			seenSession[key] = struct{}{}
			sessionKeys = append(sessionKeys, key)
		}
		if key := r.SummaryKey(); !contains(seenSummary, key) {
			seenSummary[key] = struct{}{}
			summaryKeys = append(summaryKeys, key)
		}
	}
	return sessionKeys, summaryKeys
}

func contains[K comparable](set map[K]struct{}, key K) bool {
	_, ok := set[key]
	return ok
}
