package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatusCount is one bucket of a GROUP BY status query
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// ClassBalance is the unpaid fee total for one class section
type ClassBalance struct {
	ClassSection string          `json:"class_section"`
	Invoices     int64           `json:"invoices"`
	Outstanding  decimal.Decimal `json:"outstanding"`
}

// FeeSummary covers invoices issued in the time range
type FeeSummary struct {
	Billed         decimal.Decimal `json:"billed"`
	Collected      decimal.Decimal `json:"collected"`
	Outstanding    decimal.Decimal `json:"outstanding"`
	Invoices       []StatusCount   `json:"invoices"`
	TopOutstanding []ClassBalance  `json:"top_outstanding_classes"`
}

type RecruitmentSummary struct {
	OpenJobs   int64         `json:"open_jobs"`
	Candidates []StatusCount `json:"candidates"`
}

// DashboardStatistics aggregates per-module figures. Sections for modules the
// caller cannot see are left nil.
type DashboardStatistics struct {
	TimeRangeStartDate time.Time           `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time           `json:"time_range_end_date"`
	Exams              []StatusCount       `json:"exams,omitempty"`
	Fees               *FeeSummary         `json:"fees,omitempty"`
	Recruitment        *RecruitmentSummary `json:"recruitment,omitempty"`
}
