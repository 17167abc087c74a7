package models

// DayTotal is the ledger total of one farm day.
type DayTotal struct {
	Date  string  `bson:"_id" json:"date"`
	Total float64 `bson:"total" json:"total"`
	Count int     `bson:"count" json:"count"`
}

// MonthTotal is the ledger total of one calendar month.
type MonthTotal struct {
	Year  int     `json:"year"`
	Month int     `json:"month"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// YearTotal is the ledger total of one calendar year.
type YearTotal struct {
	Year  int     `json:"year"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// MonthlyHistory holds every day of a month, days without records included.
type MonthlyHistory struct {
	Year  int        `json:"year"`
	Month int        `json:"month"`
	Total float64    `json:"total"`
	Count int        `json:"count"`
	Days  []DayTotal `json:"days"`
}

// YearlyHistory holds the twelve months of a year.
type YearlyHistory struct {
	Year   int          `json:"year"`
	Total  float64      `json:"total"`
	Count  int          `json:"count"`
	Months []MonthTotal `json:"months"`
}
