package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkledger/internal/domain/models"
)

// Collection names
const (
	CollectionYieldRecords      = "yield_records"
	CollectionSessionAggregates = "session_aggregates"
	CollectionDailySummaries    = "daily_summaries"
	CollectionDailyReports      = "daily_reports"
)

// Client owns the MongoDB connection shared by every repository in this package.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri string, dbName string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(2).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	logger.Info("connected to mongodb", zap.String("database", dbName))

	return &Client{
		client: client,
		db:     client.Database(dbName),
		logger: logger,
	}, nil
}

// EnsureIndexes creates the indexes every repository relies on. The unique
// indexes are the only concurrency control of the ledger and its aggregates.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		CollectionYieldRecords: {
			{
				Keys:    bson.D{{Key: "farmId", Value: 1}, {Key: "animalId", Value: 1}, {Key: "date", Value: 1}, {Key: "session", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_farm_animal_date_session"),
			},
			{Keys: bson.D{{Key: "farmId", Value: 1}, {Key: "date", Value: 1}, {Key: "session", Value: 1}}},
			{Keys: bson.D{{Key: "farmId", Value: 1}, {Key: "animalId", Value: 1}, {Key: "date", Value: 1}}},
		},
		CollectionSessionAggregates: {
			{
				Keys:    bson.D{{Key: "farmId", Value: 1}, {Key: "date", Value: 1}, {Key: "session", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_farm_date_session"),
			},
		},
		CollectionDailySummaries: {
			{
				Keys:    bson.D{{Key: "farmId", Value: 1}, {Key: "date", Value: 1}, {Key: "animalId", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_farm_date_animal"),
			},
			{Keys: bson.D{{Key: "farmId", Value: 1}, {Key: "date", Value: -1}, {Key: "totalYield", Value: -1}}},
		},
		CollectionDailyReports: {
			{
				Keys:    bson.D{{Key: "farmId", Value: 1}, {Key: "date", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_farm_date"),
			},
		},
	}

	for name, indexModels := range specs {
		if _, err := c.db.Collection(name).Indexes().CreateMany(ctx, indexModels); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
		c.logger.Debug("indexes ensured", zap.String("collection", name))
	}

	return nil
}

// Close closes the MongoDB connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

func (c *Client) collection(name string) *mongo.Collection {
	return c.db.Collection(name)
}

// ReportRepository stores daily reports, one document per farm and date.
type ReportRepository struct {
	coll *mongo.Collection
}

// NewReportRepository builds the report store on the shared client.
func NewReportRepository(c *Client) *ReportRepository {
	return &ReportRepository{coll: c.collection(CollectionDailyReports)}
}

// SaveDailyReport upserts the report for its farm and date.
func (r *ReportRepository) SaveDailyReport(ctx context.Context, report models.DailyReport) error {
	filter := bson.M{"farmId": report.FarmID, "date": report.Date}
	_, err := r.coll.ReplaceOne(ctx, filter, report, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save daily report: %w", err)
	}
	return nil
}
