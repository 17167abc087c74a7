package ledger

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/milkledger/internal/domain/models"
	"github.com/mamadbah2/milkledger/internal/metrics"
	"github.com/mamadbah2/milkledger/internal/platform/calendar"
	"github.com/mamadbah2/milkledger/internal/repository"
	"github.com/mamadbah2/milkledger/internal/repository/memory"
	"github.com/mamadbah2/milkledger/internal/service/aggregation"
)

const (
	farm  = "farm-1"
	today = "2024-01-15"
)

// unreliableSessions fails every totals write while down is set.
type unreliableSessions struct {
	*memory.Store
	down atomic.Bool
}

func (u *unreliableSessions) SaveSessionTotals(ctx context.Context, key models.SessionKey, totals models.SessionTotals, at time.Time) (models.SessionAggregate, error) {
	if u.down.Load() {
		return models.SessionAggregate{}, errors.New("write concern timeout")
	}
	return u.Store.SaveSessionTotals(ctx, key, totals, at)
}

type fixture struct {
	svc     *Service
	store   *memory.Store
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, wrap func(*memory.Store) repository.SessionRepository) fixture {
	t.Helper()

	store := memory.NewStore()
	var sessions repository.SessionRepository = store
	if wrap != nil {
		sessions = wrap(store)
	}
	cal, err := calendar.New("Asia/Bangkok")
	require.NoError(t, err)
	// 08:00 in Bangkok.
	cal = cal.WithClock(func() time.Time { return time.Date(2024, 1, 15, 1, 0, 0, 0, time.UTC) })

	m := metrics.New(prometheus.NewRegistry())
	opts := aggregation.Options{Attempts: 2}
	svc := NewService(
		store, sessions, store,
		aggregation.NewSessionAggregator(store, sessions, opts, m, nil),
		aggregation.NewSummaryAggregator(store, store, opts, m, nil),
		cal, 100, m, nil,
	)
	return fixture{svc: svc, store: store, metrics: m}
}

func (f fixture) session(t *testing.T, session models.Session) models.SessionAggregate {
	t.Helper()
	rows, err := f.store.ListSessions(context.Background(), farm, today)
	require.NoError(t, err)
	for _, row := range rows {
		if row.Session == session {
			return row
		}
	}
	t.Fatalf("no %s aggregate for %s", session, today)
	return models.SessionAggregate{}
}

// assertConsistent checks every aggregate of the day against the ledger.
func (f fixture) assertConsistent(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	records, err := f.store.ListRecords(ctx, farm, today, "")
	require.NoError(t, err)

	wantTotals := map[models.Session]models.SessionTotals{}
	wantSummaries := map[string]models.DailySummary{}
	for _, r := range records {
		totals := wantTotals[r.Session]
		totals.TotalYield += r.Amount
		totals.AnimalCount++
		wantTotals[r.Session] = totals

		summary := wantSummaries[r.AnimalID]
		if r.Session == models.SessionMorning {
			summary.MorningYield = r.Amount
		} else {
			summary.EveningYield = r.Amount
		}
		summary.TotalYield = summary.MorningYield + summary.EveningYield
		wantSummaries[r.AnimalID] = summary
	}

	rows, err := f.store.ListSessions(ctx, farm, today)
	require.NoError(t, err)
	for _, row := range rows {
		want := wantTotals[row.Session]
		assert.InDelta(t, want.TotalYield, row.TotalYield, 1e-9, "total of %s", row.Session)
		assert.Equal(t, want.AnimalCount, row.AnimalCount, "count of %s", row.Session)
	}

	summaries, err := f.store.ListSummaries(ctx, farm, today)
	require.NoError(t, err)
	require.Len(t, summaries, len(wantSummaries))
	for _, got := range summaries {
		want, ok := wantSummaries[got.AnimalID]
		require.True(t, ok, "summary without records for %s", got.AnimalID)
		assert.InDelta(t, want.MorningYield, got.MorningYield, 1e-9)
		assert.InDelta(t, want.EveningYield, got.EveningYield, 1e-9)
		assert.InDelta(t, want.TotalYield, got.TotalYield, 1e-9)
	}
}

func TestCreateRecomputesSessionAggregate(t *testing.T) {
	f := newFixture(t, nil)

	record, err := f.svc.Create(context.Background(), farm, NewRecord{AnimalID: "Bessie", Session: models.SessionMorning, Amount: 12.5})
	require.NoError(t, err)

	assert.Equal(t, today, record.Date)
	assert.False(t, record.ID.IsZero())
	row := f.session(t, models.SessionMorning)
	assert.Equal(t, 12.5, row.TotalYield)
	assert.Equal(t, 1, row.AnimalCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LedgerMutations.WithLabelValues("create")))
}

func TestCreateSameKeyTwiceIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, farm, NewRecord{AnimalID: "Bessie", Session: models.SessionMorning, Amount: 12.5})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, farm, NewRecord{AnimalID: "Bessie", Session: models.SessionMorning, Amount: 7})
	require.ErrorIs(t, err, models.ErrDuplicateRecord)
	assert.Contains(t, err.Error(), "Bessie")
	assert.Contains(t, err.Error(), "morning")

	row := f.session(t, models.SessionMorning)
	assert.Equal(t, 12.5, row.TotalYield)
	assert.Equal(t, 1, row.AnimalCount)
}

func TestMorningAndEveningFormDailySummary(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, farm, NewRecord{AnimalID: "Bessie", Session: models.SessionMorning, Amount: 12.5})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, farm, NewRecord{AnimalID: "Bessie", Session: models.SessionEvening, Amount: 9.0})
	require.NoError(t, err)

	summaries, err := f.svc.DailySummaries(ctx, farm, today)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 12.5, summaries[0].MorningYield)
	assert.Equal(t, 9.0, summaries[0].EveningYield)
	assert.Equal(t, 21.5, summaries[0].TotalYield)
}

func TestDeleteLastRecordClearsAggregates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	record, err := f.svc.Create(ctx, farm, NewRecord{AnimalID: "Bessie", Session: models.SessionMorning, Amount: 12.5})
	require.NoError(t, err)

	deleted, err := f.svc.Delete(ctx, farm, record.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, record.ID, deleted.ID)

	row := f.session(t, models.SessionMorning)
	assert.Zero(t, row.TotalYield)
	assert.Zero(t, row.AnimalCount)

	summaries, err := f.svc.DailySummaries(ctx, farm, today)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestBulkCreateCollisionRejectsWholeBatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, farm, NewRecord{AnimalID: "Daisy", Session: models.SessionEvening, Amount: 6})
	require.NoError(t, err)

	_, err = f.svc.BulkCreate(ctx, farm, today, []models.BulkEntry{
		{AnimalID: "Bessie", Session: models.SessionEvening, Amount: 9},
		{AnimalID: "Daisy", Session: models.SessionEvening, Amount: 7},
		{AnimalID: "Molly", Session: models.SessionEvening, Amount: 5},
	})

	var dup *models.DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "Daisy", dup.AnimalID)
	assert.Equal(t, models.SessionEvening, dup.Session)

	records, err := f.svc.ListRecords(ctx, farm, today, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 6.0, records[0].Amount)
	f.assertConsistent(t)
}

func TestBulkCreateRecomputesEveryTouchedKey(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	records, err := f.svc.BulkCreate(ctx, farm, "", []models.BulkEntry{
		{AnimalID: "Bessie", Session: models.SessionMorning, Amount: 12.5},
		{AnimalID: "Bessie", Session: models.SessionEvening, Amount: 9},
		{AnimalID: "Daisy", Session: models.SessionMorning, Amount: 8},
	})
	require.NoError(t, err)
	require.Len(t, records, 3)

	morning := f.session(t, models.SessionMorning)
	assert.Equal(t, 20.5, morning.TotalYield)
	assert.Equal(t, 2, morning.AnimalCount)
	evening := f.session(t, models.SessionEvening)
	assert.Equal(t, 9.0, evening.TotalYield)
	assert.Equal(t, 1, evening.AnimalCount)

	summaries, err := f.svc.DailySummaries(ctx, farm, today)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "Bessie", summaries[0].AnimalID)
	assert.Equal(t, 21.5, summaries[0].TotalYield)
}

func TestBulkCreateRejectsRepeatedPair(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.BulkCreate(context.Background(), farm, today, []models.BulkEntry{
		{AnimalID: "Bessie", Session: models.SessionMorning, Amount: 12.5},
		{AnimalID: "Bessie", Session: models.SessionMorning, Amount: 3},
	})
	require.ErrorIs(t, err, models.ErrValidation)

	records, err := f.store.ListRecords(context.Background(), farm, today, "")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBulkCreateRejectsInvalidTupleBeforeWriting(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.BulkCreate(context.Background(), farm, today, []models.BulkEntry{
		{AnimalID: "Bessie", Session: models.SessionMorning, Amount: 12.5},
		{AnimalID: "Daisy", Session: models.SessionMorning, Amount: 100.01},
	})

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "records[1].amount", validation.Field)

	records, err := f.store.ListRecords(context.Background(), farm, today, "")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAmountRange(t *testing.T) {
	tests := []struct {
		name    string
		amount  float64
		wantErr bool
	}{
		{name: "below zero", amount: -0.01, wantErr: true},
		{name: "zero", amount: 0},
		{name: "maximum", amount: 100},
		{name: "above maximum", amount: 100.01, wantErr: true},
		{name: "not a number", amount: math.NaN(), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			ctx := context.Background()

			_, err := f.svc.Create(ctx, farm, NewRecord{AnimalID: "Bessie", Session: models.SessionMorning, Amount: tt.amount})
			if tt.wantErr {
				require.ErrorIs(t, err, models.ErrValidation)
				records, listErr := f.store.ListRecords(ctx, farm, today, "")
				require.NoError(t, listErr)
				assert.Empty(t, records)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestUpdateValidatesAndRecomputes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	record, err := f.svc.Create(ctx, farm, NewRecord{AnimalID: "Bessie", Session: models.SessionMorning, Amount: 12.5})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, farm, record.ID.Hex(), 100.01)
	require.ErrorIs(t, err, models.ErrValidation)

	updated, err := f.svc.Update(ctx, farm, record.ID.Hex(), 14)
	require.NoError(t, err)
	assert.Equal(t, 14.0, updated.Amount)
	assert.Equal(t, 14.0, f.session(t, models.SessionMorning).TotalYield)
	f.assertConsistent(t)
}

func TestUnknownRecordIsNotFound(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	record, err := f.svc.Create(ctx, farm, NewRecord{AnimalID: "Bessie", Session: models.SessionMorning, Amount: 12.5})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, farm, "not-an-id", 3)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.svc.Delete(ctx, farm, "65a4f0c2e13b9a0001a1b2c3")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.svc.Delete(ctx, "farm-2", record.ID.Hex())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestInvariantsHoldAcrossMixedWrites(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	bessie, err := f.svc.Create(ctx, farm, NewRecord{AnimalID: "Bessie", Session: models.SessionMorning, Amount: 12.5})
	require.NoError(t, err)
	_, err = f.svc.BulkCreate(ctx, farm, today, []models.BulkEntry{
		{AnimalID: "Daisy", Session: models.SessionMorning, Amount: 8},
		{AnimalID: "Daisy", Session: models.SessionEvening, Amount: 0},
		{AnimalID: "Bessie", Session: models.SessionEvening, Amount: 9},
	})
	require.NoError(t, err)
	f.assertConsistent(t)

	_, err = f.svc.Update(ctx, farm, bessie.ID.Hex(), 11)
	require.NoError(t, err)
	f.assertConsistent(t)

	_, err = f.svc.Delete(ctx, farm, bessie.ID.Hex())
	require.NoError(t, err)
	f.assertConsistent(t)

	// A zero-yield record still keeps its summary.
	summaries, err := f.svc.DailySummaries(ctx, farm, today)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
}

func TestConcurrentCreatesOnSameKey(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var (
		wg         sync.WaitGroup
		successes  atomic.Int32
		duplicates atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(amount float64) {
			defer wg.Done()
			_, err := f.svc.Create(ctx, farm, NewRecord{AnimalID: "Bessie", Session: models.SessionMorning, Amount: amount})
			if err == nil {
				successes.Add(1)
			} else if errors.Is(err, models.ErrDuplicateRecord) {
				duplicates.Add(1)
			}
		}(float64(i))
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(15), duplicates.Load())
	f.assertConsistent(t)
}

func TestRecomputeFailureKeepsWriteAndReconcileRepairs(t *testing.T) {
	var sessions *unreliableSessions
	f := newFixture(t, func(store *memory.Store) repository.SessionRepository {
		sessions = &unreliableSessions{Store: store}
		return sessions
	})
	ctx := context.Background()

	sessions.down.Store(true)
	record, err := f.svc.Create(ctx, farm, NewRecord{AnimalID: "Bessie", Session: models.SessionMorning, Amount: 12.5})
	require.NoError(t, err)
	assert.False(t, record.ID.IsZero())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Recomputes.WithLabelValues("session", "failed")))

	rows, err := f.store.ListSessions(ctx, farm, today)
	require.NoError(t, err)
	assert.Empty(t, rows)

	sessions.down.Store(false)
	result, err := f.svc.Reconcile(ctx, farm, today)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Sessions)
	assert.Equal(t, 1, result.Summaries)
	f.assertConsistent(t)
	assert.Equal(t, 12.5, f.session(t, models.SessionMorning).TotalYield)
}

func TestReconcileDropsOrphanSummaries(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.store.UpsertSummary(ctx, models.DailySummary{FarmID: farm, AnimalID: "Ghost", Date: today, TotalYield: 4}))
	_, err := f.svc.Create(ctx, farm, NewRecord{AnimalID: "Bessie", Session: models.SessionEvening, Amount: 9})
	require.NoError(t, err)

	require.NoError(t, f.svc.ReconcileDates(ctx, today, "2024-01-14"))
	f.assertConsistent(t)
}

func TestReconcileDatesRepairsFarmWithoutRecords(t *testing.T) {
	var sessions *unreliableSessions
	f := newFixture(t, func(store *memory.Store) repository.SessionRepository {
		sessions = &unreliableSessions{Store: store}
		return sessions
	})
	ctx := context.Background()

	record, err := f.svc.Create(ctx, farm, NewRecord{AnimalID: "Bessie", Session: models.SessionMorning, Amount: 12.5})
	require.NoError(t, err)

	sessions.down.Store(true)
	_, err = f.svc.Delete(ctx, farm, record.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 12.5, f.session(t, models.SessionMorning).TotalYield)

	// A summary left behind on a farm with no ledger rows at all.
	require.NoError(t, f.store.UpsertSummary(ctx, models.DailySummary{FarmID: "farm-2", AnimalID: "Ghost", Date: today, TotalYield: 4}))

	sessions.down.Store(false)
	require.NoError(t, f.svc.ReconcileDates(ctx, "2024-01-14", today))

	f.assertConsistent(t)
	morning := f.session(t, models.SessionMorning)
	assert.Zero(t, morning.TotalYield)
	assert.Zero(t, morning.AnimalCount)

	orphans, err := f.store.ListSummaries(ctx, "farm-2", today)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestSessionAggregatesKeepTotals(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, farm, NewRecord{AnimalID: "Bessie", Session: models.SessionMorning, Amount: 12.5})
	require.NoError(t, err)

	rows, err := f.svc.SessionAggregates(ctx, farm, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.SessionMorning, rows[0].Session)
	assert.Equal(t, 12.5, rows[0].TotalYield)
	assert.Equal(t, models.SessionEvening, rows[1].Session)
	assert.Zero(t, rows[1].AnimalCount)

	row, err := f.svc.SetSessionCompleted(ctx, farm, today, models.SessionMorning, true)
	require.NoError(t, err)
	assert.True(t, row.IsCompleted)
	require.NotNil(t, row.CompletedAt)
	assert.Equal(t, 12.5, row.TotalYield)
}

func TestReadPathValidatesInput(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.ListRecords(ctx, farm, "2024-02-30", "")
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.svc.ListRecords(ctx, farm, today, "noon")
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.svc.SetSessionCompleted(ctx, farm, today, "noon", true)
	assert.ErrorIs(t, err, models.ErrValidation)
}
