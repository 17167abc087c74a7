package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/mamadbah2/milkledger/internal/domain/models"
	"github.com/mamadbah2/milkledger/internal/platform/calendar"
)

const (
	defaultRecentDays = 10
	maxRecentDays     = 366
	defaultYearSpan   = 5
	maxYearSpan       = 50
)

// MonthlyHistory returns the per-day totals of a month. Days without records
// are reported as zero.
func (s *Service) MonthlyHistory(ctx context.Context, farmID string, year, month int) (models.MonthlyHistory, error) {
	if err := validateYear(year); err != nil {
		return models.MonthlyHistory{}, err
	}
	if month < 1 || month > 12 {
		return models.MonthlyHistory{}, models.NewValidationError("month", "must be between 1 and 12, got %d", month)
	}

	dates := calendar.MonthDates(year, time.Month(month))
	byDate, err := s.dailyTotals(ctx, farmID, dates[0], dates[len(dates)-1])
	if err != nil {
		return models.MonthlyHistory{}, err
	}

	history := models.MonthlyHistory{Year: year, Month: month, Days: fillDays(dates, byDate)}
	for _, day := range history.Days {
		history.Total += day.Total
		history.Count += day.Count
	}
	return history, nil
}

// YearlyHistory returns the twelve month totals of a year.
func (s *Service) YearlyHistory(ctx context.Context, farmID string, year int) (models.YearlyHistory, error) {
	if err := validateYear(year); err != nil {
		return models.YearlyHistory{}, err
	}

	byDate, err := s.dailyTotals(ctx, farmID, yearStart(year), yearEnd(year))
	if err != nil {
		return models.YearlyHistory{}, err
	}

	history := models.YearlyHistory{Year: year, Months: make([]models.MonthTotal, 12)}
	for i := range history.Months {
		history.Months[i] = models.MonthTotal{Year: year, Month: i + 1}
	}
	for date, day := range byDate {
		month := monthOf(date)
		if month < 1 {
			continue
		}
		history.Months[month-1].Total += day.Total
		history.Months[month-1].Count += day.Count
		history.Total += day.Total
		history.Count += day.Count
	}
	return history, nil
}

// RecentDays returns the totals of the last days farm-local days ending
// today, oldest first. Zero means ten days.
func (s *Service) RecentDays(ctx context.Context, farmID string, days int) ([]models.DayTotal, error) {
	if days == 0 {
		days = defaultRecentDays
	}
	if days < 1 || days > maxRecentDays {
		return nil, models.NewValidationError("days", "must be between 1 and %d, got %d", maxRecentDays, days)
	}

	dates := s.calendar.LastDates(days)
	byDate, err := s.dailyTotals(ctx, farmID, dates[0], dates[len(dates)-1])
	if err != nil {
		return nil, err
	}
	return fillDays(dates, byDate), nil
}

// YearRange returns the totals of the last years calendar years ending with
// the current farm-local year, oldest first. Zero means five years.
func (s *Service) YearRange(ctx context.Context, farmID string, years int) ([]models.YearTotal, error) {
	if years == 0 {
		years = defaultYearSpan
	}
	if years < 1 || years > maxYearSpan {
		return nil, models.NewValidationError("years", "must be between 1 and %d, got %d", maxYearSpan, years)
	}

	last := s.calendar.Year()
	first := last - years + 1
	byDate, err := s.dailyTotals(ctx, farmID, yearStart(first), yearEnd(last))
	if err != nil {
		return nil, err
	}

	out := make([]models.YearTotal, years)
	for i := range out {
		out[i].Year = first + i
	}
	for date, day := range byDate {
		t, err := time.Parse(calendar.DateLayout, date)
		if err != nil || t.Year() < first || t.Year() > last {
			continue
		}
		out[t.Year()-first].Total += day.Total
		out[t.Year()-first].Count += day.Count
	}
	return out, nil
}

func (s *Service) dailyTotals(ctx context.Context, farmID, from, to string) (map[string]models.DayTotal, error) {
	days, err := s.ledger.DailyTotals(ctx, farmID, from, to)
	if err != nil {
		return nil, fmt.Errorf("daily totals %s..%s: %w", from, to, err)
	}
	byDate := make(map[string]models.DayTotal, len(days))
	for _, day := range days {
		byDate[day.Date] = day
	}
	return byDate, nil
}

func fillDays(dates []string, byDate map[string]models.DayTotal) []models.DayTotal {
	out := make([]models.DayTotal, len(dates))
	for i, date := range dates {
		day := byDate[date]
		day.Date = date
		out[i] = day
	}
	return out
}

func validateYear(year int) error {
	if year < 1 || year > 9999 {
		return models.NewValidationError("year", "must be between 1 and 9999, got %d", year)
	}
	return nil
}

func yearStart(year int) string { return fmt.Sprintf("%04d-01-01", year) }

func yearEnd(year int) string { return fmt.Sprintf("%04d-12-31", year) }

func monthOf(date string) int {
	t, err := time.Parse(calendar.DateLayout, date)
	if err != nil {
		return 0
	}
	return int(t.Month())
}
