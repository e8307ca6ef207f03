package repository

import (
	"context"
	"fmt"
	"time"

	"schoolhub/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StatisticsRepository interface {
	CountByStatus(ctx context.Context, table, column string, start, end time.Time) ([]model.StatusCount, error)
	CountWhere(ctx context.Context, table, column, value string) (int64, error)
	FeeTotals(ctx context.Context, start, end time.Time) (billed, collected decimal.Decimal, err error)
	TopOutstandingClasses(ctx context.Context, start, end time.Time, limit int) ([]model.ClassBalance, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

// CountByStatus groups rows created in [start, end] by column. table and
// column are never user input.
func (r *statisticsRepository) CountByStatus(ctx context.Context, table, column string, start, end time.Time) ([]model.StatusCount, error) {
	var counts []model.StatusCount
	if err := r.db.WithContext(ctx).Table(table).
		Select(column+" as status, COUNT(*) as count").
		Where("created_at >= ? AND created_at <= ?", start, end).
		Group(column).
		Order(column).
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count %s by %s: %w", table, column, err)
	}
	return counts, nil
}

func (r *statisticsRepository) CountWhere(ctx context.Context, table, column, value string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Table(table).Where(column+" = ?", value).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

func (r *statisticsRepository) FeeTotals(ctx context.Context, start, end time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var result struct {
		Billed    decimal.Decimal
		Collected decimal.Decimal
	}
	if err := r.db.WithContext(ctx).Model(&model.Invoice{}).
		Select("COALESCE(SUM(amount), 0) as billed, COALESCE(SUM(amount_paid), 0) as collected").
		Where("created_at >= ? AND created_at <= ?", start, end).
		Scan(&result).Error; err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to sum invoices: %w", err)
	}
	return result.Billed, result.Collected, nil
}

func (r *statisticsRepository) TopOutstandingClasses(ctx context.Context, start, end time.Time, limit int) ([]model.ClassBalance, error) {
	var rows []model.ClassBalance
	if err := r.db.WithContext(ctx).Model(&model.Invoice{}).
		Select("class_section, COUNT(*) as invoices, SUM(amount - amount_paid) as outstanding").
		Where("created_at >= ? AND created_at <= ? AND status <> ?", start, end, model.InvoicePaid).
		Group("class_section").
		Order("outstanding DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to rank outstanding classes: %w", err)
	}
	return rows, nil
}
