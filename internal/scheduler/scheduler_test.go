package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/milkledger/internal/config"
	"github.com/mamadbah2/milkledger/internal/platform/calendar"
)

type fakeJobs struct {
	reconciled []string
	reported   string
}

func (f *fakeJobs) ReconcileDates(_ context.Context, dates ...string) error {
	f.reconciled = dates
	return nil
}

func (f *fakeJobs) GenerateForDate(_ context.Context, date string) error {
	f.reported = date
	return nil
}

func newTestScheduler(t *testing.T, cfg config.ReportingConfig, jobs *fakeJobs) *Scheduler {
	t.Helper()
	cal, err := calendar.New("Asia/Bangkok")
	require.NoError(t, err)
	// 00:15 on the 15th in Bangkok.
	cal = cal.WithClock(func() time.Time { return time.Date(2024, 1, 14, 17, 15, 0, 0, time.UTC) })
	return NewScheduler(cfg, cal, jobs, jobs, nil)
}

func TestJobsUseFarmLocalDates(t *testing.T) {
	jobs := &fakeJobs{}
	s := newTestScheduler(t, config.ReportingConfig{ReconcileCron: "15 0 * * *", ReportCron: "0 20 * * *"}, jobs)

	s.reconcile()
	s.dailyReport()

	assert.Equal(t, []string{"2024-01-14", "2024-01-15"}, jobs.reconciled)
	assert.Equal(t, "2024-01-15", jobs.reported)
}

func TestStartRejectsInvalidCron(t *testing.T) {
	s := newTestScheduler(t, config.ReportingConfig{ReconcileCron: "every night", ReportCron: "0 20 * * *"}, &fakeJobs{})
	assert.Error(t, s.Start())
}

func TestStartAndStop(t *testing.T) {
	s := newTestScheduler(t, config.ReportingConfig{ReconcileCron: "15 0 * * *", ReportCron: "0 20 * * *"}, &fakeJobs{})
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 2)
	s.Stop()
}
