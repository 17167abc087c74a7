package models

import "time"

// DailyReport represents the aggregated daily yield of a farm, persisted once
// per farm and date.
type DailyReport struct {
	FarmID         string    `bson:"farmId" json:"farmId"`
	Date           string    `bson:"date" json:"date"`
	MorningYield   float64   `bson:"morningYield" json:"morningYield"`
	MorningAnimals int       `bson:"morningAnimals" json:"morningAnimals"`
	EveningYield   float64   `bson:"eveningYield" json:"eveningYield"`
	EveningAnimals int       `bson:"eveningAnimals" json:"eveningAnimals"`
	TotalYield     float64   `bson:"totalYield" json:"totalYield"`
	AnimalsMilked  int       `bson:"animalsMilked" json:"animalsMilked"`
	TopAnimalID    string    `bson:"topAnimalId,omitempty" json:"topAnimalId,omitempty"`
	TopAnimalYield float64   `bson:"topAnimalYield" json:"topAnimalYield"`
	AverageYield   float64   `bson:"averageYield" json:"averageYield"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
}
