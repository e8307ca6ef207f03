package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RevenueDataRow struct {
	Period    string          `gorm:"column:period"`
	Billed    decimal.Decimal `gorm:"column:billed"`
	Collected decimal.Decimal `gorm:"column:collected"`
	Payments  int64           `gorm:"column:payments"`
}

type RevenueRepository interface {
	GetFeeRevenue(ctx context.Context, groupBy string, start, end time.Time) ([]RevenueDataRow, error)
}

type revenueRepository struct {
	db *gorm.DB
}

func NewRevenueRepository(db *gorm.DB) RevenueRepository {
	return &revenueRepository{db: db}
}

// GetFeeRevenue buckets invoiced amounts by invoice creation and collected
// amounts by payment date. groupBy must be a DATE_TRUNC field name.
func (r *revenueRepository) GetFeeRevenue(ctx context.Context, groupBy string, start, end time.Time) ([]RevenueDataRow, error) {
	query := `
		SELECT
			t.period,
			COALESCE(SUM(t.billed), 0) AS billed,
			COALESCE(SUM(t.collected), 0) AS collected,
			COALESCE(SUM(t.payments), 0) AS payments
		FROM (
			SELECT TO_CHAR(DATE_TRUNC($1, i.created_at), 'YYYY-MM-DD') AS period,
			       i.amount AS billed, 0 AS collected, 0 AS payments
			FROM invoices i
			WHERE i.created_at >= $2 AND i.created_at <= $3
			UNION ALL
			SELECT TO_CHAR(DATE_TRUNC($1, p.paid_at), 'YYYY-MM-DD') AS period,
			       0 AS billed, p.amount AS collected, 1 AS payments
			FROM payments p
			WHERE p.paid_at >= $2 AND p.paid_at <= $3
		) t
		GROUP BY t.period
		ORDER BY t.period
	`

	var rows []RevenueDataRow
	if err := r.db.WithContext(ctx).Raw(query, groupBy, start, end).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query fee revenue: %w", err)
	}

	return rows, nil
}
