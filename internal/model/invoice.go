package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice statuses
const (
	InvoiceUnpaid  = "unpaid"
	InvoicePartial = "partial"
	InvoicePaid    = "paid"
	InvoiceOverdue = "overdue"
)

// Payment methods
const (
	PaymentCash         = "cash"
	PaymentBankTransfer = "bank_transfer"
	PaymentCard         = "card"
	PaymentMobileMoney  = "mobile_money"
)

// FeeCategory is a billable item such as tuition or transport
type FeeCategory struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Description string          `gorm:"type:text" json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Invoice bills one student for one fee category.
// AmountPaid is the running total of recorded payments and never exceeds Amount.
type Invoice struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	InvoiceNo    string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"invoice_no"`
	StudentID    string          `gorm:"type:varchar(50);not null;index" json:"student_id"`
	StudentName  string          `gorm:"type:varchar(255);not null" json:"student_name"`
	ClassSection string          `gorm:"type:varchar(50);index" json:"class_section"`
	CategoryID   *uuid.UUID      `gorm:"type:uuid;index" json:"category_id"`
	Category     *FeeCategory    `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	AmountPaid   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"amount_paid"`
	Status       string          `gorm:"type:varchar(20);not null;default:'unpaid';index" json:"status"`
	DueDate      time.Time       `json:"due_date"`
	Note         string          `gorm:"type:text" json:"note"`
	Payments     []Payment       `gorm:"foreignKey:InvoiceID" json:"payments,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Balance is what is still owed on the invoice
func (i Invoice) Balance() decimal.Decimal {
	return i.Amount.Sub(i.AmountPaid)
}

// Payment records money received against an invoice
type Payment struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	InvoiceID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Method     string          `gorm:"type:varchar(20);not null" json:"method"`
	Reference  string          `gorm:"type:varchar(100)" json:"reference"`
	PaidAt     time.Time       `gorm:"not null" json:"paid_at"`
	ReceivedBy *uuid.UUID      `gorm:"type:uuid" json:"received_by"`
	CreatedAt  time.Time       `json:"created_at"`
}
