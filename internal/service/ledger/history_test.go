package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/milkledger/internal/domain/models"
)

func seedHistory(t *testing.T, f fixture) {
	t.Helper()
	ctx := context.Background()

	for _, r := range []struct {
		farm string
		in   NewRecord
	}{
		{farm, NewRecord{AnimalID: "Bessie", Session: models.SessionMorning, Amount: 12.5, Date: today}},
		{farm, NewRecord{AnimalID: "Bessie", Session: models.SessionEvening, Amount: 9, Date: today}},
		{farm, NewRecord{AnimalID: "Daisy", Session: models.SessionMorning, Amount: 10, Date: "2024-01-03"}},
		{farm, NewRecord{AnimalID: "Daisy", Session: models.SessionMorning, Amount: 5, Date: "2024-02-01"}},
		{farm, NewRecord{AnimalID: "Daisy", Session: models.SessionEvening, Amount: 7, Date: "2022-06-01"}},
		{"farm-2", NewRecord{AnimalID: "Bessie", Session: models.SessionMorning, Amount: 40, Date: today}},
	} {
		_, err := f.svc.Create(ctx, r.farm, r.in)
		require.NoError(t, err)
	}
}

func TestMonthlyHistoryFillsEmptyDays(t *testing.T) {
	f := newFixture(t, nil)
	seedHistory(t, f)

	history, err := f.svc.MonthlyHistory(context.Background(), farm, 2024, 1)
	require.NoError(t, err)

	require.Len(t, history.Days, 31)
	assert.Equal(t, "2024-01-01", history.Days[0].Date)
	assert.Zero(t, history.Days[0].Count)
	assert.Equal(t, models.DayTotal{Date: "2024-01-03", Total: 10, Count: 1}, history.Days[2])
	assert.Equal(t, models.DayTotal{Date: today, Total: 21.5, Count: 2}, history.Days[14])
	assert.Equal(t, "2024-01-31", history.Days[30].Date)
	assert.Equal(t, 31.5, history.Total)
	assert.Equal(t, 3, history.Count)
}

func TestYearlyHistoryGroupsByMonth(t *testing.T) {
	f := newFixture(t, nil)
	seedHistory(t, f)

	history, err := f.svc.YearlyHistory(context.Background(), farm, 2024)
	require.NoError(t, err)

	require.Len(t, history.Months, 12)
	assert.Equal(t, models.MonthTotal{Year: 2024, Month: 1, Total: 31.5, Count: 3}, history.Months[0])
	assert.Equal(t, models.MonthTotal{Year: 2024, Month: 2, Total: 5, Count: 1}, history.Months[1])
	assert.Equal(t, models.MonthTotal{Year: 2024, Month: 12}, history.Months[11])
	assert.Equal(t, 36.5, history.Total)
	assert.Equal(t, 4, history.Count)
}

func TestRecentDaysEndsToday(t *testing.T) {
	f := newFixture(t, nil)
	seedHistory(t, f)
	ctx := context.Background()

	days, err := f.svc.RecentDays(ctx, farm, 0)
	require.NoError(t, err)
	require.Len(t, days, 10)
	assert.Equal(t, "2024-01-06", days[0].Date)
	assert.Equal(t, models.DayTotal{Date: today, Total: 21.5, Count: 2}, days[9])

	days, err = f.svc.RecentDays(ctx, farm, 13)
	require.NoError(t, err)
	assert.Equal(t, models.DayTotal{Date: "2024-01-03", Total: 10, Count: 1}, days[0])
}

func TestYearRangeIncludesEmptyYears(t *testing.T) {
	f := newFixture(t, nil)
	seedHistory(t, f)

	years, err := f.svc.YearRange(context.Background(), farm, 3)
	require.NoError(t, err)
	assert.Equal(t, []models.YearTotal{
		{Year: 2022, Total: 7, Count: 1},
		{Year: 2023},
		{Year: 2024, Total: 36.5, Count: 4},
	}, years)
}

func TestHistoryValidatesRanges(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.MonthlyHistory(ctx, farm, 2024, 13)
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.svc.MonthlyHistory(ctx, farm, 0, 1)
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.svc.YearlyHistory(ctx, farm, 10000)
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.svc.RecentDays(ctx, farm, 400)
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.svc.YearRange(ctx, farm, -1)
	assert.ErrorIs(t, err, models.ErrValidation)

	empty, err := f.svc.MonthlyHistory(ctx, farm, 2023, 2)
	require.NoError(t, err)
	assert.Len(t, empty.Days, 28)
	assert.Zero(t, empty.Total)
}
