package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/milkledger/internal/domain/models"
)

// SessionRepository stores SessionAggregate rows.
type SessionRepository struct {
	coll *mongo.Collection
}

// NewSessionRepository builds the session aggregate store on the shared client.
func NewSessionRepository(c *Client) *SessionRepository {
	return &SessionRepository{coll: c.collection(CollectionSessionAggregates)}
}

// SaveSessionTotals overwrites the derived totals, creating the row on first write.
func (r *SessionRepository) SaveSessionTotals(ctx context.Context, key models.SessionKey, totals models.SessionTotals, at time.Time) (models.SessionAggregate, error) {
	update := bson.M{
		"$set": bson.M{
			"totalYield":  totals.TotalYield,
			"animalCount": totals.AnimalCount,
			"updatedAt":   at,
		},
		"$setOnInsert": bson.M{
			"isCompleted": false,
			"createdAt":   at,
		},
	}
	return r.upsert(ctx, key, update)
}

// EnsureSession creates a zero-valued row if none exists. Existing totals are never touched.
func (r *SessionRepository) EnsureSession(ctx context.Context, key models.SessionKey, at time.Time) (models.SessionAggregate, error) {
	update := bson.M{
		"$setOnInsert": bson.M{
			"totalYield":  0.0,
			"animalCount": 0,
			"isCompleted": false,
			"createdAt":   at,
			"updatedAt":   at,
		},
	}
	return r.upsert(ctx, key, update)
}

// SetSessionCompleted toggles the completion flag without touching totals.
func (r *SessionRepository) SetSessionCompleted(ctx context.Context, key models.SessionKey, completed bool, at time.Time) (models.SessionAggregate, error) {
	var completedAt interface{}
	if completed {
		completedAt = at
	}
	update := bson.M{
		"$set": bson.M{
			"isCompleted": completed,
			"completedAt": completedAt,
			"updatedAt":   at,
		},
		"$setOnInsert": bson.M{
			"totalYield":  0.0,
			"animalCount": 0,
			"createdAt":   at,
		},
	}
	return r.upsert(ctx, key, update)
}

// ListSessions returns the session rows of a farm day.
func (r *SessionRepository) ListSessions(ctx context.Context, farmID, date string) ([]models.SessionAggregate, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"farmId": farmID, "date": date}, options.Find().SetSort(bson.D{{Key: "session", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find session aggregates: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []models.SessionAggregate
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode session aggregates: %w", err)
	}
	return rows, nil
}

// SessionFarms lists the farms with a session row on any of the dates.
func (r *SessionRepository) SessionFarms(ctx context.Context, dates []string) ([]string, error) {
	return distinctFarms(ctx, r.coll, dates)
}

func (r *SessionRepository) upsert(ctx context.Context, key models.SessionKey, update bson.M) (models.SessionAggregate, error) {
	filter := bson.M{"farmId": key.FarmID, "date": key.Date, "session": key.Session}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var row models.SessionAggregate
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&row); err != nil {
		return models.SessionAggregate{}, fmt.Errorf("upsert session aggregate %s: %w", key, err)
	}
	return row, nil
}

// SummaryRepository stores DailySummary rows.
type SummaryRepository struct {
	coll *mongo.Collection
}

// NewSummaryRepository builds the daily summary store on the shared client.
func NewSummaryRepository(c *Client) *SummaryRepository {
	return &SummaryRepository{coll: c.collection(CollectionDailySummaries)}
}

// UpsertSummary writes the summary row for its farm, animal and date.
func (r *SummaryRepository) UpsertSummary(ctx context.Context, summary models.DailySummary) error {
	filter := bson.M{"farmId": summary.FarmID, "date": summary.Date, "animalId": summary.AnimalID}
	update := bson.M{"$set": bson.M{
		"morningYield": summary.MorningYield,
		"eveningYield": summary.EveningYield,
		"totalYield":   summary.TotalYield,
		"updatedAt":    summary.UpdatedAt,
	}}

	if _, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("upsert daily summary: %w", err)
	}
	return nil
}

// DeleteSummary removes the summary row; a missing row is not an error.
func (r *SummaryRepository) DeleteSummary(ctx context.Context, key models.SummaryKey) error {
	filter := bson.M{"farmId": key.FarmID, "date": key.Date, "animalId": key.AnimalID}
	if _, err := r.coll.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("delete daily summary: %w", err)
	}
	return nil
}

// ListSummaries returns a farm day's summaries, highest total first.
func (r *SummaryRepository) ListSummaries(ctx context.Context, farmID, date string) ([]models.DailySummary, error) {
	opts := options.Find().SetSort(bson.D{{Key: "totalYield", Value: -1}, {Key: "animalId", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"farmId": farmID, "date": date}, opts)
	if err != nil {
		return nil, fmt.Errorf("find daily summaries: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []models.DailySummary
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode daily summaries: %w", err)
	}
	return rows, nil
}

// SummaryFarms lists the farms with a summary row on any of the dates.
func (r *SummaryRepository) SummaryFarms(ctx context.Context, dates []string) ([]string, error) {
	return distinctFarms(ctx, r.coll, dates)
}
