package models

// CreateYieldRecordRequest is the body of POST /yield-records.
type CreateYieldRecordRequest struct {
	AnimalID string   `json:"animalId" binding:"required"`
	Session  Session  `json:"session" binding:"required,milking_session"`
	Amount   *float64 `json:"amount" binding:"required"`
	Date     string   `json:"date" binding:"omitempty,calendar_date"`
}

// UpdateYieldRecordRequest is the body of PUT /yield-records/{id}.
type UpdateYieldRecordRequest struct {
	Amount *float64 `json:"amount" binding:"required"`
}

// BulkYieldRecordRequest is the body of POST /yield-records/bulk.
type BulkYieldRecordRequest struct {
	Date    string            `json:"date" binding:"omitempty,calendar_date"`
	Records []BulkRecordEntry `json:"records" binding:"required,min=1,dive"`
}

// BulkRecordEntry is one tuple of a bulk request.
type BulkRecordEntry struct {
	AnimalID string   `json:"animalId" binding:"required"`
	Session  Session  `json:"session" binding:"required,milking_session"`
	Amount   *float64 `json:"amount" binding:"required"`
}

// SessionCompletionRequest is the body of PUT /session-aggregates/{session}/completion.
type SessionCompletionRequest struct {
	Date      string `json:"date" binding:"omitempty,calendar_date"`
	Completed *bool  `json:"completed" binding:"required"`
}

// DateRequest is the optional body of POST /aggregates/reconcile and
// POST /reports/daily. An empty date means today.
type DateRequest struct {
	Date string `json:"date" binding:"omitempty,calendar_date"`
}

// MonthlyHistoryQuery is the query of GET /yield-records/monthly.
type MonthlyHistoryQuery struct {
	Year  int `json:"year" form:"year" binding:"required,min=1,max=9999"`
	Month int `json:"month" form:"month" binding:"required,min=1,max=12"`
}

// YearlyHistoryQuery is the query of GET /yield-records/yearly.
type YearlyHistoryQuery struct {
	Year int `json:"year" form:"year" binding:"required,min=1,max=9999"`
}

// RecentHistoryQuery is the query of GET /yield-records/recent.
type RecentHistoryQuery struct {
	Days int `json:"days" form:"days" binding:"omitempty,min=1,max=366"`
}

// YearRangeQuery is the query of GET /yield-records/years.
type YearRangeQuery struct {
	Years int `json:"years" form:"years" binding:"omitempty,min=1,max=50"`
}
