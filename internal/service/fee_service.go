package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"schoolhub/internal/model"
	"schoolhub/internal/repository"
	"schoolhub/pkg/pagination"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

type FeeCategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Description string `json:"description"`
}

type InvoiceRequest struct {
	StudentID    string    `json:"student_id" binding:"required"`
	StudentName  string    `json:"student_name" binding:"required"`
	ClassSection string    `json:"class_section"`
	CategoryID   string    `json:"category_id"`
	Amount       string    `json:"amount"` // defaults to the category amount
	DueDate      time.Time `json:"due_date"`
	Note         string    `json:"note"`
}

type InvoiceFilter struct {
	Search       string
	Status       string
	ClassSection string
	CategoryID   string
	Page         int
	Limit        int
}

type PaymentRequest struct {
	Amount    string     `json:"amount" binding:"required"`
	Method    string     `json:"method" binding:"required"`
	Reference string     `json:"reference"`
	PaidAt    *time.Time `json:"paid_at"`
}

type PaymentFilter struct {
	InvoiceID string
	Method    string
	Page      int
	Limit     int
}

type PaymentResult struct {
	Payment model.Payment `json:"payment"`
	Invoice model.Invoice `json:"invoice"`
}

// --- Interface ---

type FeeService interface {
	CreateCategory(ctx context.Context, req FeeCategoryRequest) (*model.FeeCategory, error)
	ListCategories(ctx context.Context, search string, page, limit int) ([]model.FeeCategory, int64, error)
	UpdateCategory(ctx context.Context, id string, req FeeCategoryRequest) (*model.FeeCategory, error)
	DeleteCategory(ctx context.Context, id string) error

	CreateInvoice(ctx context.Context, req InvoiceRequest) (*model.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error)
	UpdateInvoice(ctx context.Context, id string, req InvoiceRequest) (*model.Invoice, error)
	DeleteInvoice(ctx context.Context, id string) error

	RecordPayment(ctx context.Context, userID, invoiceID string, req PaymentRequest) (*PaymentResult, error)
	ListPayments(ctx context.Context, filter PaymentFilter) ([]model.Payment, int64, error)
}

type feeService struct {
	categories  repository.Store[model.FeeCategory]
	invoiceRepo repository.InvoiceRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	logger      *zap.Logger
	now         func() time.Time
}

func NewFeeService(
	categories repository.Store[model.FeeCategory],
	invoiceRepo repository.InvoiceRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	logger *zap.Logger,
) FeeService {
	return &feeService{
		categories:  categories,
		invoiceRepo: invoiceRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		logger:      logger,
		now:         time.Now,
	}
}

var paymentMethods = []string{model.PaymentCash, model.PaymentBankTransfer, model.PaymentCard, model.PaymentMobileMoney}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, invalid("%s must be a number", field)
	}
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, invalid("%s must be at least 0.01", field)
	}
	return amount, nil
}

// --- Categories ---

func (s *feeService) CreateCategory(ctx context.Context, req FeeCategoryRequest) (*model.FeeCategory, error) {
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	cat := model.FeeCategory{
		Name:        strings.TrimSpace(req.Name),
		Amount:      amount,
		Description: req.Description,
	}
	if cat.Name == "" {
		return nil, invalid("name is required")
	}
	if err := s.categories.Create(ctx, &cat); err != nil {
		return nil, fmt.Errorf("failed to create fee category: %w", err)
	}
	return &cat, nil
}

func (s *feeService) ListCategories(ctx context.Context, search string, page, limit int) ([]model.FeeCategory, int64, error) {
	p := pagination.New(page, limit)
	items, total, err := s.categories.List(ctx, p.Offset, p.Limit, "name asc",
		repository.Search(strings.TrimSpace(search), "name", "description"))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch fee categories: %w", err)
	}
	return items, total, nil
}

func (s *feeService) UpdateCategory(ctx context.Context, id string, req FeeCategoryRequest) (*model.FeeCategory, error) {
	catID, err := parseID("fee category", id)
	if err != nil {
		return nil, err
	}
	cat, err := s.categories.FindByID(ctx, catID)
	if err != nil {
		return nil, lookupErr("fee category", err)
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		cat.Name = name
	}
	cat.Amount = amount
	cat.Description = req.Description
	if err := s.categories.Update(ctx, cat); err != nil {
		return nil, fmt.Errorf("failed to update fee category: %w", err)
	}
	return cat, nil
}

func (s *feeService) DeleteCategory(ctx context.Context, id string) error {
	catID, err := parseID("fee category", id)
	if err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, catID); err != nil {
		return lookupErr("fee category", err)
	}
	return nil
}

// --- Invoices ---

func (s *feeService) applyInvoice(ctx context.Context, inv *model.Invoice, req InvoiceRequest) error {
	inv.StudentID = strings.TrimSpace(req.StudentID)
	inv.StudentName = strings.TrimSpace(req.StudentName)
	if inv.StudentID == "" || inv.StudentName == "" {
		return invalid("student_id and student_name are required")
	}
	inv.ClassSection = strings.TrimSpace(req.ClassSection)
	inv.DueDate = req.DueDate
	inv.Note = req.Note

	var category *model.FeeCategory
	inv.CategoryID = nil
	if req.CategoryID != "" {
		catID, err := parseID("fee category", req.CategoryID)
		if err != nil {
			return err
		}
		category, err = s.categories.FindByID(ctx, catID)
		if err != nil {
			if lerr := lookupErr("fee category", err); isNotFound(lerr) {
				return invalid("fee category '%s' does not exist", req.CategoryID)
			}
			return fmt.Errorf("failed to check fee category: %w", err)
		}
		inv.CategoryID = &catID
	}

	switch {
	case strings.TrimSpace(req.Amount) != "":
		amount, err := parseAmount("amount", req.Amount)
		if err != nil {
			return err
		}
		inv.Amount = amount
	case category != nil:
		inv.Amount = category.Amount
	default:
		return invalid("amount is required when no fee category is given")
	}

	if inv.AmountPaid.GreaterThan(inv.Amount) {
		return invalid("amount cannot be less than the %s already paid", inv.AmountPaid.StringFixed(2))
	}
	inv.Status = settleStatus(inv, s.now())
	return nil
}

// settleStatus derives an invoice's status from what has been paid and its
// due date. Only invoices with nothing paid become overdue.
func settleStatus(inv *model.Invoice, now time.Time) string {
	switch {
	case inv.AmountPaid.GreaterThanOrEqual(inv.Amount):
		return model.InvoicePaid
	case inv.AmountPaid.IsPositive():
		return model.InvoicePartial
	case !inv.DueDate.IsZero() && inv.DueDate.Before(now):
		return model.InvoiceOverdue
	}
	return model.InvoiceUnpaid
}

func (s *feeService) CreateInvoice(ctx context.Context, req InvoiceRequest) (*model.Invoice, error) {
	var inv model.Invoice
	if err := s.applyInvoice(ctx, &inv, req); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoiceNo, err := s.generateInvoiceNo(txCtx)
		if err != nil {
			return fmt.Errorf("failed to generate invoice number: %w", err)
		}
		inv.InvoiceNo = invoiceNo
		if err := s.invoiceRepo.Create(txCtx, &inv); err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *feeService) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	invID, err := parseID("invoice", id)
	if err != nil {
		return nil, err
	}
	inv, err := s.invoiceRepo.FindByID(ctx, invID)
	if err != nil {
		return nil, lookupErr("invoice", err)
	}
	return inv, nil
}

func (s *feeService) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error) {
	if filter.CategoryID != "" {
		if _, err := parseID("fee category", filter.CategoryID); err != nil {
			return nil, 0, err
		}
	}
	if n, err := s.invoiceRepo.MarkOverdue(ctx, s.now()); err != nil {
		s.logger.Warn("failed to mark overdue invoices", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("invoices marked overdue", zap.Int64("count", n))
	}

	p := pagination.New(filter.Page, filter.Limit)
	items, total, err := s.invoiceRepo.List(ctx, repository.InvoiceFilter{
		Search:       strings.TrimSpace(filter.Search),
		Status:       filter.Status,
		ClassSection: filter.ClassSection,
		CategoryID:   filter.CategoryID,
	}, p.Page, p.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invoices: %w", err)
	}
	return items, total, nil
}

func (s *feeService) UpdateInvoice(ctx context.Context, id string, req InvoiceRequest) (*model.Invoice, error) {
	invID, err := parseID("invoice", id)
	if err != nil {
		return nil, err
	}

	var out *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoiceRepo.FindByIDForUpdate(txCtx, invID)
		if err != nil {
			return lookupErr("invoice", err)
		}
		if err := s.applyInvoice(txCtx, inv, req); err != nil {
			return err
		}
		if err := s.invoiceRepo.Update(txCtx, inv); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *feeService) DeleteInvoice(ctx context.Context, id string) error {
	inv, err := s.GetInvoice(ctx, id)
	if err != nil {
		return err
	}
	if inv.AmountPaid.IsPositive() {
		return fmt.Errorf("invoice %s has recorded payments: %w", inv.InvoiceNo, ErrConflict)
	}
	if err := s.invoiceRepo.Delete(ctx, inv.ID); err != nil {
		return lookupErr("invoice", err)
	}
	return nil
}

func (s *feeService) generateInvoiceNo(ctx context.Context) (string, error) {
	prefix := "INV-" + s.now().Format("20060102") + "-"

	last, err := s.invoiceRepo.LastNoByPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	seq := 0
	if last != "" {
		if seq, err = strconv.Atoi(strings.TrimPrefix(last, prefix)); err != nil {
			return "", fmt.Errorf("malformed invoice number %q: %w", last, err)
		}
	}

	return fmt.Sprintf("%s%05d", prefix, seq+1), nil
}

// --- Payments ---

// RecordPayment adds a payment under a row lock so concurrent payments
// cannot push amount_paid past the invoice amount
func (s *feeService) RecordPayment(ctx context.Context, userID, invoiceID string, req PaymentRequest) (*PaymentResult, error) {
	invID, err := parseID("invoice", invoiceID)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	if !oneOf(req.Method, paymentMethods) {
		return nil, invalid("method must be one of %s", strings.Join(paymentMethods, ", "))
	}
	paidAt := s.now()
	if req.PaidAt != nil && !req.PaidAt.IsZero() {
		paidAt = *req.PaidAt
	}

	var result PaymentResult
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoiceRepo.FindByIDForUpdate(txCtx, invID)
		if err != nil {
			return lookupErr("invoice", err)
		}
		if inv.Status == model.InvoicePaid {
			return fmt.Errorf("invoice %s is already paid: %w", inv.InvoiceNo, ErrConflict)
		}
		if amount.GreaterThan(inv.Balance()) {
			return invalid("payment of %s exceeds the outstanding balance of %s",
				amount.StringFixed(2), inv.Balance().StringFixed(2))
		}

		payment := model.Payment{
			InvoiceID:  inv.ID,
			Amount:     amount,
			Method:     req.Method,
			Reference:  strings.TrimSpace(req.Reference),
			PaidAt:     paidAt,
			ReceivedBy: actorID(userID),
		}
		if err := s.invoiceRepo.CreatePayment(txCtx, &payment); err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}

		inv.AmountPaid = inv.AmountPaid.Add(amount)
		inv.Status = settleStatus(inv, s.now())
		if err := s.invoiceRepo.Update(txCtx, inv); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}

		if err := writeAudit(txCtx, s.auditRepo, userID, model.ActionRecordPayment, inv.ID.String(), inv.InvoiceNo,
			map[string]interface{}{
				"amount":    amount.StringFixed(2),
				"method":    req.Method,
				"reference": payment.Reference,
				"status":    inv.Status,
			}); err != nil {
			return err
		}

		result = PaymentResult{Payment: payment, Invoice: *inv}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *feeService) ListPayments(ctx context.Context, filter PaymentFilter) ([]model.Payment, int64, error) {
	if filter.InvoiceID != "" {
		if _, err := parseID("invoice", filter.InvoiceID); err != nil {
			return nil, 0, err
		}
	}
	p := pagination.New(filter.Page, filter.Limit)
	items, total, err := s.invoiceRepo.ListPayments(ctx, filter.InvoiceID, filter.Method, p.Page, p.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch payments: %w", err)
	}
	return items, total, nil
}
