package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkledger/internal/domain/models"
)

// LedgerRepository stores yield records in the yield_records collection.
type LedgerRepository struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

// NewLedgerRepository builds the ledger store on the shared client.
func NewLedgerRepository(c *Client) *LedgerRepository {
	return &LedgerRepository{
		coll:   c.collection(CollectionYieldRecords),
		logger: c.logger.Named("ledger"),
	}
}

// InsertRecord relies on the unique ledger index to reject duplicates.
func (r *LedgerRepository) InsertRecord(ctx context.Context, record models.YieldRecord) error {
	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}

	if _, err := r.coll.InsertOne(ctx, record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateOf(record)
		}
		return fmt.Errorf("insert yield record: %w", err)
	}
	return nil
}

// InsertRecords inserts the batch in order. If the unique index rejects any
// document, the documents of this batch that did land are removed again.
func (r *LedgerRepository) InsertRecords(ctx context.Context, records []models.YieldRecord) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]interface{}, len(records))
	ids := make([]primitive.ObjectID, len(records))
	for i := range records {
		if records[i].ID.IsZero() {
			records[i].ID = primitive.NewObjectID()
		}
		ids[i] = records[i].ID
		docs[i] = records[i]
	}

	_, err := r.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err == nil {
		return nil
	}

	if _, delErr := r.coll.DeleteMany(context.WithoutCancel(ctx), bson.M{"_id": bson.M{"$in": ids}}); delErr != nil {
		r.logger.Error("failed to roll back partial bulk insert", zap.Error(delErr), zap.Int("batch", len(ids)))
	}

	if dup := batchDuplicate(err, records); dup != nil {
		return dup
	}
	return fmt.Errorf("insert yield records: %w", err)
}

// batchDuplicate maps a unique index violation of an ordered batch insert to
// the record that caused it, or to the batch date when the server did not
// say which document failed. It returns nil for any other error.
func batchDuplicate(err error, records []models.YieldRecord) error {
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, we := range bwe.WriteErrors {
			if we.Code == 11000 && we.Index >= 0 && we.Index < len(records) {
				return duplicateOf(records[we.Index])
			}
		}
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w on %s", models.ErrDuplicateRecord, records[0].Date)
	}
	return nil
}

// UpdateRecordAmount replaces the amount of a farm's record.
func (r *LedgerRepository) UpdateRecordAmount(ctx context.Context, farmID string, id primitive.ObjectID, amount float64, at time.Time) (models.YieldRecord, error) {
	filter := bson.M{"_id": id, "farmId": farmID}
	update := bson.M{"$set": bson.M{"amount": amount, "updatedAt": at}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var record models.YieldRecord
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.YieldRecord{}, models.ErrNotFound
		}
		return models.YieldRecord{}, fmt.Errorf("update yield record: %w", err)
	}
	return record, nil
}

// DeleteRecord removes a farm's record atomically and returns it.
func (r *LedgerRepository) DeleteRecord(ctx context.Context, farmID string, id primitive.ObjectID) (models.YieldRecord, error) {
	var record models.YieldRecord
	if err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": id, "farmId": farmID}).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.YieldRecord{}, models.ErrNotFound
		}
		return models.YieldRecord{}, fmt.Errorf("delete yield record: %w", err)
	}
	return record, nil
}

// FindRecordsByKeys fetches the existing records for a set of ledger keys in one query.
func (r *LedgerRepository) FindRecordsByKeys(ctx context.Context, keys []models.LedgerKey) ([]models.YieldRecord, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	or := make(bson.A, 0, len(keys))
	for _, k := range keys {
		or = append(or, bson.M{"farmId": k.FarmID, "animalId": k.AnimalID, "date": k.Date, "session": k.Session})
	}

	return r.find(ctx, bson.M{"$or": or}, nil)
}

// ListRecords returns a farm day's records in creation order.
func (r *LedgerRepository) ListRecords(ctx context.Context, farmID, date string, session models.Session) ([]models.YieldRecord, error) {
	filter := bson.M{"farmId": farmID, "date": date}
	if session != "" {
		filter["session"] = session
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

// ListAnimalRecords returns the (at most two) records of one animal on one day.
func (r *LedgerRepository) ListAnimalRecords(ctx context.Context, key models.SummaryKey) ([]models.YieldRecord, error) {
	return r.find(ctx, bson.M{"farmId": key.FarmID, "animalId": key.AnimalID, "date": key.Date}, nil)
}

// SumSession totals the session's records server-side.
func (r *LedgerRepository) SumSession(ctx context.Context, key models.SessionKey) (models.SessionTotals, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "farmId", Value: key.FarmID},
			{Key: "date", Value: key.Date},
			{Key: "session", Value: key.Session},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "totalYield", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
			{Key: "animalCount", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return models.SessionTotals{}, fmt.Errorf("aggregate session %s: %w", key, err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		TotalYield  float64 `bson:"totalYield"`
		AnimalCount int     `bson:"animalCount"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return models.SessionTotals{}, fmt.Errorf("decode session %s totals: %w", key, err)
	}
	if len(rows) == 0 {
		return models.SessionTotals{}, nil
	}
	return models.SessionTotals{TotalYield: rows[0].TotalYield, AnimalCount: rows[0].AnimalCount}, nil
}

// DailyTotals groups a farm's records by date over an inclusive date range.
func (r *LedgerRepository) DailyTotals(ctx context.Context, farmID, from, to string) ([]models.DayTotal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "farmId", Value: farmID},
			{Key: "date", Value: bson.D{{Key: "$gte", Value: from}, {Key: "$lte", Value: to}}},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$date"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate daily totals %s..%s: %w", from, to, err)
	}
	defer cursor.Close(ctx)

	var days []models.DayTotal
	if err := cursor.All(ctx, &days); err != nil {
		return nil, fmt.Errorf("decode daily totals: %w", err)
	}
	return days, nil
}

// DistinctAnimals lists the animals with at least one record on the farm day.
func (r *LedgerRepository) DistinctAnimals(ctx context.Context, farmID, date string) ([]string, error) {
	values, err := r.coll.Distinct(ctx, "animalId", bson.M{"farmId": farmID, "date": date})
	if err != nil {
		return nil, fmt.Errorf("distinct animals: %w", err)
	}
	return sortedStrings(values), nil
}

// DistinctFarms lists the farms with at least one record on any of the dates.
func (r *LedgerRepository) DistinctFarms(ctx context.Context, dates []string) ([]string, error) {
	return distinctFarms(ctx, r.coll, dates)
}

func (r *LedgerRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.YieldRecord, error) {
	var findOpts []*options.FindOptions
	if opts != nil {
		findOpts = append(findOpts, opts)
	}

	cursor, err := r.coll.Find(ctx, filter, findOpts...)
	if err != nil {
		return nil, fmt.Errorf("find yield records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.YieldRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode yield records: %w", err)
	}
	return records, nil
}

func duplicateOf(record models.YieldRecord) *models.DuplicateKeyError {
	return &models.DuplicateKeyError{AnimalID: record.AnimalID, Session: record.Session, Date: record.Date}
}

func distinctFarms(ctx context.Context, coll *mongo.Collection, dates []string) ([]string, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	values, err := coll.Distinct(ctx, "farmId", bson.M{"date": bson.M{"$in": dates}})
	if err != nil {
		return nil, fmt.Errorf("distinct farms in %s: %w", coll.Name(), err)
	}
	return sortedStrings(values), nil
}

func sortedStrings(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
