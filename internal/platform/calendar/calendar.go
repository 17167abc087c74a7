package calendar

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/mamadbah2/milkledger/internal/domain/models"
)

// DateLayout is the calendar date format used across the ledger.
const DateLayout = "2006-01-02"

// Calendar resolves dates in the farm's local time zone.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// New loads the named time zone.
func New(timezone string) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", timezone, err)
	}
	return &Calendar{loc: loc, now: time.Now}, nil
}

// WithClock returns a copy of c reading the current time from now.
func (c *Calendar) WithClock(now func() time.Time) *Calendar {
	return &Calendar{loc: c.loc, now: now}
}

// Location returns the farm's time zone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Now returns the current instant in the farm's zone.
func (c *Calendar) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns the farm-local calendar date.
func (c *Calendar) Today() string {
	return c.Now().Format(DateLayout)
}

// Yesterday returns the farm-local calendar date before Today.
func (c *Calendar) Yesterday() string {
	return c.Now().AddDate(0, 0, -1).Format(DateLayout)
}

// ResolveDate returns date when it is a valid calendar day, or today when empty.
func (c *Calendar) ResolveDate(date string) (string, error) {
	if date == "" {
		return c.Today(), nil
	}
	if !ValidDate(date) {
		return "", models.NewValidationError("date", "must be a calendar date in YYYY-MM-DD format, got %q", date)
	}
	return date, nil
}

// Year returns the farm-local calendar year.
func (c *Calendar) Year() int {
	return c.Now().Year()
}

// LastDates returns the n farm-local dates ending today, oldest first.
func (c *Calendar) LastDates(n int) []string {
	y, m, d := c.Now().Date()
	today := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)

	out := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, today.AddDate(0, 0, -i).Format(DateLayout))
	}
	return out
}

// MonthDates lists every date of the month, first to last.
func MonthDates(year int, month time.Month) []string {
	var out []string
	for day := time.Date(year, month, 1, 12, 0, 0, 0, time.UTC); day.Month() == month; day = day.AddDate(0, 0, 1) {
		out = append(out, day.Format(DateLayout))
	}
	return out
}

// ValidDate reports whether s is a real day written as YYYY-MM-DD.
func ValidDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
