package service

import (
	"context"
	"time"

	"schoolhub/internal/model"
	"schoolhub/internal/modules"
	"schoolhub/internal/repository"
)

const topOutstandingLimit = 5

type StatisticsService interface {
	GetStatistics(ctx context.Context, vis modules.Visibility, startDate, endDate time.Time) (model.DashboardStatistics, error)
}

type statisticsService struct {
	repo repository.StatisticsRepository
}

func NewStatisticsService(repo repository.StatisticsRepository) StatisticsService {
	return &statisticsService{repo: repo}
}

// GetStatistics builds the dashboard for records created between startDate
// and endDate. Only sections for modules visible in vis are computed.
func (s *statisticsService) GetStatistics(ctx context.Context, vis modules.Visibility, startDate, endDate time.Time) (model.DashboardStatistics, error) {
	resp := model.DashboardStatistics{TimeRangeStartDate: startDate, TimeRangeEndDate: endDate}
	if endDate.Before(startDate) {
		return resp, invalid("end_date must not be before start_date")
	}

	if vis[modules.Exams] {
		exams, err := s.repo.CountByStatus(ctx, "exams", "status", startDate, endDate)
		if err != nil {
			return resp, err
		}
		resp.Exams = exams
	}

	if vis[modules.Fees] {
		billed, collected, err := s.repo.FeeTotals(ctx, startDate, endDate)
		if err != nil {
			return resp, err
		}
		invoices, err := s.repo.CountByStatus(ctx, "invoices", "status", startDate, endDate)
		if err != nil {
			return resp, err
		}
		top, err := s.repo.TopOutstandingClasses(ctx, startDate, endDate, topOutstandingLimit)
		if err != nil {
			return resp, err
		}
		resp.Fees = &model.FeeSummary{
			Billed:         billed,
			Collected:      collected,
			Outstanding:    billed.Sub(collected),
			Invoices:       invoices,
			TopOutstanding: top,
		}
	}

	if vis[modules.Recruitment] {
		open, err := s.repo.CountWhere(ctx, "job_openings", "status", model.JobOpen)
		if err != nil {
			return resp, err
		}
		candidates, err := s.repo.CountByStatus(ctx, "candidates", "stage", startDate, endDate)
		if err != nil {
			return resp, err
		}
		resp.Recruitment = &model.RecruitmentSummary{OpenJobs: open, Candidates: candidates}
	}

	return resp, nil
}
