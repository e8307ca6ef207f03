package service

import (
	"context"
	"time"

	"schoolhub/internal/repository"
)

// --- DTOs ---

type RevenueDataPoint struct {
	Period    string `json:"period"`
	Billed    string `json:"billed"`
	Collected string `json:"collected"`
	Net       string `json:"net"` // billed minus collected within the period
	Payments  int64  `json:"payments"`
}

type RevenueFilter struct {
	GroupBy   string // week, month, quarter, year
	StartDate time.Time
	EndDate   time.Time
}

// --- Interface ---

type RevenueService interface {
	GetFeeRevenue(ctx context.Context, filter RevenueFilter) ([]RevenueDataPoint, error)
}

type revenueService struct {
	repo repository.RevenueRepository
}

func NewRevenueService(repo repository.RevenueRepository) RevenueService {
	return &revenueService{repo: repo}
}

// --- Implementation ---

func (s *revenueService) GetFeeRevenue(ctx context.Context, filter RevenueFilter) ([]RevenueDataPoint, error) {
	groupBy := filter.GroupBy
	switch groupBy {
	case "week", "month", "quarter", "year":
	case "":
		groupBy = "month"
	default:
		return nil, invalid("group_by must be one of week, month, quarter, year")
	}
	if filter.EndDate.Before(filter.StartDate) {
		return nil, invalid("end_date must not be before start_date")
	}

	rows, err := s.repo.GetFeeRevenue(ctx, groupBy, filter.StartDate, filter.EndDate)
	if err != nil {
		return nil, err
	}

	result := make([]RevenueDataPoint, 0, len(rows))
	for _, r := range rows {
		result = append(result, RevenueDataPoint{
			Period:    r.Period,
			Billed:    r.Billed.StringFixed(2),
			Collected: r.Collected.StringFixed(2),
			Net:       r.Billed.Sub(r.Collected).StringFixed(2),
			Payments:  r.Payments,
		})
	}

	return result, nil
}
