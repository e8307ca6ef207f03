package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"schoolhub/internal/model"
	"schoolhub/internal/modules"
	"schoolhub/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatsRepo struct {
	tables []string
	err    error
}

func (f *fakeStatsRepo) CountByStatus(_ context.Context, table, _ string, _, _ time.Time) ([]model.StatusCount, error) {
	f.tables = append(f.tables, table)
	return []model.StatusCount{{Status: "x", Count: 1}}, f.err
}

func (f *fakeStatsRepo) CountWhere(_ context.Context, table, _, _ string) (int64, error) {
	f.tables = append(f.tables, table)
	return 3, f.err
}

func (f *fakeStatsRepo) FeeTotals(context.Context, time.Time, time.Time) (decimal.Decimal, decimal.Decimal, error) {
	return decimal.RequireFromString("1000"), decimal.RequireFromString("650.50"), f.err
}

func (f *fakeStatsRepo) TopOutstandingClasses(_ context.Context, _, _ time.Time, limit int) ([]model.ClassBalance, error) {
	return []model.ClassBalance{{ClassSection: "JSS1-A", Invoices: 2, Outstanding: decimal.NewFromInt(349)}}, f.err
}

func TestGetStatisticsOnlyComputesVisibleSections(t *testing.T) {
	start := fixedNow().AddDate(0, -1, 0)
	end := fixedNow()

	repo := &fakeStatsRepo{}
	stats, err := NewStatisticsService(repo).GetStatistics(context.Background(),
		modules.Visibility{modules.Exams: true, modules.Fees: false}, start, end)
	require.NoError(t, err)
	assert.Len(t, stats.Exams, 1)
	assert.Nil(t, stats.Fees)
	assert.Nil(t, stats.Recruitment)
	assert.Equal(t, []string{"exams"}, repo.tables)

	repo = &fakeStatsRepo{}
	stats, err = NewStatisticsService(repo).GetStatistics(context.Background(), modules.All(), start, end)
	require.NoError(t, err)
	require.NotNil(t, stats.Fees)
	assert.Equal(t, "349.50", stats.Fees.Outstanding.StringFixed(2))
	assert.Len(t, stats.Fees.TopOutstanding, 1)
	require.NotNil(t, stats.Recruitment)
	assert.Equal(t, int64(3), stats.Recruitment.OpenJobs)
	assert.Equal(t, []string{"exams", "invoices", "job_openings", "candidates"}, repo.tables)
}

func TestGetStatisticsErrors(t *testing.T) {
	svc := NewStatisticsService(&fakeStatsRepo{})
	_, err := svc.GetStatistics(context.Background(), modules.All(), fixedNow(), fixedNow().Add(-time.Hour))
	assert.ErrorIs(t, err, ErrInvalidInput)

	boom := errors.New("db down")
	_, err = NewStatisticsService(&fakeStatsRepo{err: boom}).GetStatistics(context.Background(), modules.All(), fixedNow(), fixedNow())
	assert.ErrorIs(t, err, boom)
}

type fakeRevenueRepo struct {
	groupBy string
	rows    []repository.RevenueDataRow
}

func (f *fakeRevenueRepo) GetFeeRevenue(_ context.Context, groupBy string, _, _ time.Time) ([]repository.RevenueDataRow, error) {
	f.groupBy = groupBy
	return f.rows, nil
}

func TestGetFeeRevenue(t *testing.T) {
	repo := &fakeRevenueRepo{rows: []repository.RevenueDataRow{
		{Period: "2024-03-01", Billed: decimal.RequireFromString("1200"), Collected: decimal.RequireFromString("800.5"), Payments: 4},
	}}
	svc := NewRevenueService(repo)

	points, err := svc.GetFeeRevenue(context.Background(), RevenueFilter{StartDate: fixedNow().AddDate(0, -3, 0), EndDate: fixedNow()})
	require.NoError(t, err)
	assert.Equal(t, "month", repo.groupBy)
	require.Len(t, points, 1)
	assert.Equal(t, RevenueDataPoint{Period: "2024-03-01", Billed: "1200.00", Collected: "800.50", Net: "399.50", Payments: 4}, points[0])

	_, err = svc.GetFeeRevenue(context.Background(), RevenueFilter{GroupBy: "day", EndDate: fixedNow()})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.GetFeeRevenue(context.Background(), RevenueFilter{GroupBy: "year", StartDate: fixedNow(), EndDate: fixedNow().AddDate(0, 0, -1)})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetAuditLogsNamesSystemActor(t *testing.T) {
	audit := &fakeAudit{}
	actor := uuid.New()
	require.NoError(t, audit.Log(context.Background(), &model.AuditLog{Action: model.ActionCreateRole, EntityName: "Librarian"}))
	require.NoError(t, audit.Log(context.Background(), &model.AuditLog{
		Action: model.ActionDeleteRole, UserID: &actor, User: &model.User{Name: "Ada"},
	}))

	logs, total, err := NewAuditService(audit).GetAuditLogs(context.Background(), "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "System", logs[0].UserName)
	assert.Empty(t, logs[0].UserID)
	assert.Equal(t, "Ada", logs[1].UserName)
	assert.Equal(t, actor.String(), logs[1].UserID)

	logs, _, err = NewAuditService(audit).GetAuditLogs(context.Background(), model.ActionDeleteRole, 1, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
