// Package memory provides a mutex-guarded, process-local implementation of
// the repository contracts. Every write is applied under one lock, so the
// ledger uniqueness check and the insert are a single atomic step, matching
// the unique index guarantee of the MongoDB backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/milkledger/internal/domain/models"
)

// Store keeps the ledger, aggregates and reports in maps.
type Store struct {
	mu        sync.RWMutex
	records   map[primitive.ObjectID]models.YieldRecord
	byKey     map[models.LedgerKey]primitive.ObjectID
	sessions  map[models.SessionKey]models.SessionAggregate
	summaries map[models.SummaryKey]models.DailySummary
	reports   map[string]models.DailyReport
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		records:   map[primitive.ObjectID]models.YieldRecord{},
		byKey:     map[models.LedgerKey]primitive.ObjectID{},
		sessions:  map[models.SessionKey]models.SessionAggregate{},
		summaries: map[models.SummaryKey]models.DailySummary{},
		reports:   map[string]models.DailyReport{},
	}
}

func (s *Store) InsertRecord(_ context.Context, record models.YieldRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byKey[record.LedgerKey()]; taken {
		return duplicateOf(record)
	}
	s.put(record)
	return nil
}

func (s *Store) InsertRecords(_ context.Context, records []models.YieldRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[models.LedgerKey]struct{}, len(records))
	for _, r := range records {
		key := r.LedgerKey()
		if _, taken := s.byKey[key]; taken {
			return duplicateOf(r)
		}
		if _, dup := seen[key]; dup {
			return duplicateOf(r)
		}
		seen[key] = struct{}{}
	}
	for _, r := range records {
		s.put(r)
	}
	return nil
}

func (s *Store) UpdateRecordAmount(_ context.Context, farmID string, id primitive.ObjectID, amount float64, at time.Time) (models.YieldRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok || record.FarmID != farmID {
		return models.YieldRecord{}, models.ErrNotFound
	}
	record.Amount = amount
	record.UpdatedAt = at
	s.records[id] = record
	return record, nil
}

func (s *Store) DeleteRecord(_ context.Context, farmID string, id primitive.ObjectID) (models.YieldRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok || record.FarmID != farmID {
		return models.YieldRecord{}, models.ErrNotFound
	}
	delete(s.records, id)
	delete(s.byKey, record.LedgerKey())
	return record, nil
}

func (s *Store) FindRecordsByKeys(_ context.Context, keys []models.LedgerKey) ([]models.YieldRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.YieldRecord
	for _, k := range keys {
		if id, ok := s.byKey[k]; ok {
			out = append(out, s.records[id])
		}
	}
	return out, nil
}

func (s *Store) ListRecords(_ context.Context, farmID, date string, session models.Session) ([]models.YieldRecord, error) {
	return s.filter(func(r models.YieldRecord) bool {
		return r.FarmID == farmID && r.Date == date && (session == "" || r.Session == session)
	}), nil
}

func (s *Store) ListAnimalRecords(_ context.Context, key models.SummaryKey) ([]models.YieldRecord, error) {
	return s.filter(func(r models.YieldRecord) bool {
		return r.SummaryKey() == key
	}), nil
}

func (s *Store) SumSession(_ context.Context, key models.SessionKey) (models.SessionTotals, error) {
	var totals models.SessionTotals
	for _, r := range s.filter(func(r models.YieldRecord) bool { return r.SessionKey() == key }) {
		totals.TotalYield += r.Amount
		totals.AnimalCount++
	}
	return totals, nil
}

func (s *Store) DistinctAnimals(_ context.Context, farmID, date string) ([]string, error) {
	set := map[string]struct{}{}
	for _, r := range s.filter(func(r models.YieldRecord) bool { return r.FarmID == farmID && r.Date == date }) {
		set[r.AnimalID] = struct{}{}
	}
	return sortedKeys(set), nil
}

func (s *Store) DistinctFarms(_ context.Context, dates []string) ([]string, error) {
	wanted := dateSet(dates)
	set := map[string]struct{}{}
	for _, r := range s.filter(func(r models.YieldRecord) bool { _, ok := wanted[r.Date]; return ok }) {
		set[r.FarmID] = struct{}{}
	}
	return sortedKeys(set), nil
}

func (s *Store) DailyTotals(_ context.Context, farmID, from, to string) ([]models.DayTotal, error) {
	byDate := map[string]models.DayTotal{}
	for _, r := range s.filter(func(r models.YieldRecord) bool {
		return r.FarmID == farmID && r.Date >= from && r.Date <= to
	}) {
		day := byDate[r.Date]
		day.Date = r.Date
		day.Total += r.Amount
		day.Count++
		byDate[r.Date] = day
	}

	out := make([]models.DayTotal, 0, len(byDate))
	for _, day := range byDate {
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *Store) SaveSessionTotals(_ context.Context, key models.SessionKey, totals models.SessionTotals, at time.Time) (models.SessionAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.sessionRow(key, at)
	row.TotalYield = totals.TotalYield
	row.AnimalCount = totals.AnimalCount
	row.UpdatedAt = at
	s.sessions[key] = row
	return row, nil
}

func (s *Store) EnsureSession(_ context.Context, key models.SessionKey, at time.Time) (models.SessionAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.sessionRow(key, at)
	s.sessions[key] = row
	return row, nil
}

func (s *Store) SetSessionCompleted(_ context.Context, key models.SessionKey, completed bool, at time.Time) (models.SessionAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.sessionRow(key, at)
	row.IsCompleted = completed
	row.CompletedAt = nil
	if completed {
		completedAt := at
		row.CompletedAt = &completedAt
	}
	row.UpdatedAt = at
	s.sessions[key] = row
	return row, nil
}

func (s *Store) ListSessions(_ context.Context, farmID, date string) ([]models.SessionAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.SessionAggregate
	for _, session := range models.Sessions {
		if row, ok := s.sessions[models.SessionKey{FarmID: farmID, Date: date, Session: session}]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Store) SessionFarms(_ context.Context, dates []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := dateSet(dates)
	set := map[string]struct{}{}
	for key := range s.sessions {
		if _, ok := wanted[key.Date]; ok {
			set[key.FarmID] = struct{}{}
		}
	}
	return sortedKeys(set), nil
}

func (s *Store) UpsertSummary(_ context.Context, summary models.DailySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.SummaryKey{FarmID: summary.FarmID, AnimalID: summary.AnimalID, Date: summary.Date}
	s.summaries[key] = summary
	return nil
}

func (s *Store) DeleteSummary(_ context.Context, key models.SummaryKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.summaries, key)
	return nil
}

func (s *Store) ListSummaries(_ context.Context, farmID, date string) ([]models.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.DailySummary
	for key, summary := range s.summaries {
		if key.FarmID == farmID && key.Date == date {
			out = append(out, summary)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalYield != out[j].TotalYield {
			return out[i].TotalYield > out[j].TotalYield
		}
		return out[i].AnimalID < out[j].AnimalID
	})
	return out, nil
}

func (s *Store) SummaryFarms(_ context.Context, dates []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := dateSet(dates)
	set := map[string]struct{}{}
	for key := range s.summaries {
		if _, ok := wanted[key.Date]; ok {
			set[key.FarmID] = struct{}{}
		}
	}
	return sortedKeys(set), nil
}

func (s *Store) SaveDailyReport(_ context.Context, report models.DailyReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports[report.FarmID+"/"+report.Date] = report
	return nil
}

// DailyReport returns a stored report, for inspection in tests and local runs.
func (s *Store) DailyReport(farmID, date string) (models.DailyReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reports[farmID+"/"+date]
	return report, ok
}

// put assumes the write lock is held.
func (s *Store) put(record models.YieldRecord) {
	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}
	s.records[record.ID] = record
	s.byKey[record.LedgerKey()] = record.ID
}

// sessionRow assumes the write lock is held.
func (s *Store) sessionRow(key models.SessionKey, at time.Time) models.SessionAggregate {
	if row, ok := s.sessions[key]; ok {
		return row
	}
	return models.SessionAggregate{
		FarmID:    key.FarmID,
		Date:      key.Date,
		Session:   key.Session,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func (s *Store) filter(match func(models.YieldRecord) bool) []models.YieldRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.YieldRecord
	for _, r := range s.records {
		if match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out
}

func duplicateOf(record models.YieldRecord) *models.DuplicateKeyError {
	return &models.DuplicateKeyError{AnimalID: record.AnimalID, Session: record.Session, Date: record.Date}
}

func dateSet(dates []string) map[string]struct{} {
	set := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
