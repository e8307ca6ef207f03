package repository

import (
	"context"
	"time"

	"schoolhub/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InvoiceFilter struct {
	Search       string // partial match on invoice_no, student name or id
	Status       string
	ClassSection string
	CategoryID   string
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	List(ctx context.Context, filter InvoiceFilter, page, limit int) ([]model.Invoice, int64, error)
	Update(ctx context.Context, invoice *model.Invoice) error
	Delete(ctx context.Context, id uuid.UUID) error
	LastNoByPrefix(ctx context.Context, prefix string) (string, error)
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)

	CreatePayment(ctx context.Context, payment *model.Payment) error
	ListPayments(ctx context.Context, invoiceID, method string, page, limit int) ([]model.Payment, int64, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Create(invoice).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	err := GetDB(ctx, r.db).
		Preload("Category").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("paid_at asc") }).
		First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindByIDForUpdate row-locks the invoice; call inside RunInTx
func (r *invoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) List(ctx context.Context, filter InvoiceFilter, page, limit int) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	scopes := []Scope{
		Search(filter.Search, "invoice_no", "student_name", "student_id"),
		Eq("status", filter.Status),
		Eq("class_section", filter.ClassSection),
		Eq("category_id", filter.CategoryID),
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Invoice{}).Scopes(scopes...).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Category").Scopes(scopes...).Order("created_at desc").Offset(offset).Limit(limit).Find(&invoices).Error; err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

func (r *invoiceRepository) Update(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(invoice).Error
}

func (r *invoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Invoice{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// LastNoByPrefix returns the highest invoice number starting with prefix, or
// "" when there is none. Inside RunInTx it holds a transaction-scoped
// advisory lock on the prefix until commit.
func (r *invoiceRepository) LastNoByPrefix(ctx context.Context, prefix string) (string, error) {
	db := GetDB(ctx, r.db)
	if InTx(ctx) {
		if err := db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix).Error; err != nil {
			return "", err
		}
	}
	var nos []string
	err := db.Model(&model.Invoice{}).
		Where("invoice_no LIKE ?", prefix+"%").
		Order("invoice_no desc").
		Limit(1).
		Pluck("invoice_no", &nos).Error
	if err != nil || len(nos) == 0 {
		return "", err
	}
	return nos[0], nil
}

// MarkOverdue flags invoices with nothing paid whose due date has passed
func (r *invoiceRepository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("status = ? AND due_date < ?", model.InvoiceUnpaid, now).
		Update("status", model.InvoiceOverdue)
	return res.RowsAffected, res.Error
}

func (r *invoiceRepository) CreatePayment(ctx context.Context, payment *model.Payment) error {
	return GetDB(ctx, r.db).Create(payment).Error
}

func (r *invoiceRepository) ListPayments(ctx context.Context, invoiceID, method string, page, limit int) ([]model.Payment, int64, error) {
	var payments []model.Payment
	var total int64

	scopes := []Scope{Eq("invoice_id", invoiceID), Eq("method", method)}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Payment{}).Scopes(scopes...).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Scopes(scopes...).Order("paid_at desc").Offset(offset).Limit(limit).Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}
