package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session enumerates the two daily milking periods.
type Session string

const (
	SessionMorning Session = "morning"
	SessionEvening Session = "evening"
)

// Sessions lists every milking session in day order.
var Sessions = []Session{SessionMorning, SessionEvening}

// Valid reports whether s is a known milking session.
func (s Session) Valid() bool {
	return s == SessionMorning || s == SessionEvening
}

// YieldRecord is one ledger entry: the milk yield of one animal in one session
// of one day. At most one record exists per (farm, animal, date, session).
type YieldRecord struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	FarmID    string             `bson:"farmId" json:"farmId"`
	AnimalID  string             `bson:"animalId" json:"animalId"`
	Date      string             `bson:"date" json:"date"`
	Session   Session            `bson:"session" json:"session"`
	Amount    float64            `bson:"amount" json:"amount"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// SessionKey returns the aggregate key this record contributes to.
func (r YieldRecord) SessionKey() SessionKey {
	return SessionKey{FarmID: r.FarmID, Date: r.Date, Session: r.Session}
}

// SummaryKey returns the per-animal daily key this record contributes to.
func (r YieldRecord) SummaryKey() SummaryKey {
	return SummaryKey{FarmID: r.FarmID, AnimalID: r.AnimalID, Date: r.Date}
}

// LedgerKey returns the uniqueness key of the record.
func (r YieldRecord) LedgerKey() LedgerKey {
	return LedgerKey{FarmID: r.FarmID, AnimalID: r.AnimalID, Date: r.Date, Session: r.Session}
}

// LedgerKey identifies the single ledger slot of an animal in one session.
type LedgerKey struct {
	FarmID   string
	AnimalID string
	Date     string
	Session  Session
}

// SessionKey identifies one SessionAggregate row.
type SessionKey struct {
	FarmID  string
	Date    string
	Session Session
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.FarmID, k.Date, k.Session)
}

// SummaryKey identifies one DailySummary row.
type SummaryKey struct {
	FarmID   string
	AnimalID string
	Date     string
}

func (k SummaryKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.FarmID, k.AnimalID, k.Date)
}

// SessionAggregate holds the derived totals of one milking session. TotalYield
// and AnimalCount are only ever written by the session aggregator.
type SessionAggregate struct {
	FarmID      string     `bson:"farmId" json:"farmId"`
	Date        string     `bson:"date" json:"date"`
	Session     Session    `bson:"session" json:"session"`
	TotalYield  float64    `bson:"totalYield" json:"totalYield"`
	AnimalCount int        `bson:"animalCount" json:"animalCount"`
	IsCompleted bool       `bson:"isCompleted" json:"isCompleted"`
	CompletedAt *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// SessionTotals is the result of summing the ledger for one session key.
type SessionTotals struct {
	TotalYield  float64
	AnimalCount int
}

// DailySummary is one animal's combined yield for a day. A summary exists only
// while at least one ledger record exists for its key.
type DailySummary struct {
	FarmID       string    `bson:"farmId" json:"farmId"`
	AnimalID     string    `bson:"animalId" json:"animalId"`
	Date         string    `bson:"date" json:"date"`
	MorningYield float64   `bson:"morningYield" json:"morningYield"`
	EveningYield float64   `bson:"eveningYield" json:"eveningYield"`
	TotalYield   float64   `bson:"totalYield" json:"totalYield"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// BulkEntry is one (animal, session, amount) tuple of a bulk insert.
type BulkEntry struct {
	AnimalID string
	Session  Session
	Amount   float64
}
