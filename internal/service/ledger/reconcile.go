package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkledger/internal/domain/models"
)

// ReconcileResult reports what a reconciliation rebuilt.
type ReconcileResult struct {
	FarmID    string `json:"farmId"`
	Date      string `json:"date"`
	Sessions  int    `json:"sessions"`
	Summaries int    `json:"summaries"`
}

// Reconcile rebuilds both session aggregates of a farm day and the summary of
// every animal that has a record or a leftover summary on that day. It is the
// repair path for recomputes that failed after their write committed.
func (s *Service) Reconcile(ctx context.Context, farmID, date string) (ReconcileResult, error) {
	date, err := s.calendar.ResolveDate(date)
	if err != nil {
		return ReconcileResult{}, err
	}

	animals, err := s.ledger.DistinctAnimals(ctx, farmID, date)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("list animals: %w", err)
	}
	stale, err := s.summaries.ListSummaries(ctx, farmID, date)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("list daily summaries: %w", err)
	}

	seen := make(map[string]struct{}, len(animals)+len(stale))
	summaryKeys := make([]models.SummaryKey, 0, len(animals)+len(stale))
	addAnimal := func(animalID string) {
		if _, ok := seen[animalID]; ok {
			return
		}
		seen[animalID] = struct{}{}
		summaryKeys = append(summaryKeys, models.SummaryKey{FarmID: farmID, AnimalID: animalID, Date: date})
	}
	for _, animalID := range animals {
		addAnimal(animalID)
	}
	for _, summary := range stale {
		addAnimal(summary.AnimalID)
	}

	sessionKeys := make([]models.SessionKey, 0, len(models.Sessions))
	for _, session := range models.Sessions {
		sessionKeys = append(sessionKeys, models.SessionKey{FarmID: farmID, Date: date, Session: session})
	}

	result := ReconcileResult{FarmID: farmID, Date: date, Sessions: len(sessionKeys), Summaries: len(summaryKeys)}
	if err := s.refresh(ctx, sessionKeys, summaryKeys); err != nil {
		return result, fmt.Errorf("reconcile %s/%s: %w", farmID, date, err)
	}

	s.logger.Info("aggregates reconciled",
		zap.String("farm_id", farmID),
		zap.String("date", date),
		zap.Int("summaries", result.Summaries))
	return result, nil
}

// ReconcileDates reconciles every farm that has records, session rows or
// daily summaries on any of the dates.
func (s *Service) ReconcileDates(ctx context.Context, dates ...string) error {
	farms, err := s.farmsOn(ctx, dates)
	if err != nil {
		return err
	}

	var errs []error
	for _, farmID := range farms {
		for _, date := range dates {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := s.Reconcile(ctx, farmID, date); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// farmsOn merges the farms known to the ledger and to both aggregate stores.
// A farm whose last record was deleted only shows up in the aggregates.
func (s *Service) farmsOn(ctx context.Context, dates []string) ([]string, error) {
	sources := []struct {
		name string
		list func(context.Context, []string) ([]string, error)
	}{
		{"ledger", s.ledger.DistinctFarms},
		{"session aggregates", s.sessions.SessionFarms},
		{"daily summaries", s.summaries.SummaryFarms},
	}

	seen := map[string]struct{}{}
	var farms []string
	for _, src := range sources {
		ids, err := src.list(ctx, dates)
		if err != nil {
			return nil, fmt.Errorf("list farms from %s: %w", src.name, err)
		}
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			farms = append(farms, id)
		}
	}
	sort.Strings(farms)
	return farms, nil
}
