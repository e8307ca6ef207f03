package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Job opening statuses
const (
	JobOpen   = "open"
	JobClosed = "closed"
	JobDraft  = "draft"
)

// Candidate pipeline stages
const (
	StageApplied   = "applied"
	StageScreening = "screening"
	StageInterview = "interview"
	StageOffer     = "offer"
	StageHired     = "hired"
	StageRejected  = "rejected"
)

// Interview statuses
const (
	InterviewScheduled = "scheduled"
	InterviewCompleted = "completed"
	InterviewCancelled = "cancelled"
)

// Offer statuses
const (
	OfferDraft    = "draft"
	OfferSent     = "sent"
	OfferAccepted = "accepted"
	OfferDeclined = "declined"
)

type JobOpening struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Department  string    `gorm:"type:varchar(100);index" json:"department"`
	Description string    `gorm:"type:text" json:"description"`
	Status      string    `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Candidate struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string     `gorm:"type:varchar(255);not null" json:"name"`
	Email     string     `gorm:"type:varchar(255);not null;index" json:"email"`
	Phone     string     `gorm:"type:varchar(30)" json:"phone"`
	JobID     *uuid.UUID `gorm:"type:uuid;index" json:"job_id"`
	Stage     string     `gorm:"type:varchar(20);not null;default:'applied';index" json:"stage"`
	ResumeURL string     `gorm:"type:text" json:"resume_url"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type Interview struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CandidateID uuid.UUID `gorm:"type:uuid;not null;index" json:"candidate_id"`
	ScheduledAt time.Time `gorm:"not null" json:"scheduled_at"`
	Interviewer string    `gorm:"type:varchar(255)" json:"interviewer"`
	Mode        string    `gorm:"type:varchar(20)" json:"mode"` // onsite, video, phone
	Status      string    `gorm:"type:varchar(20);not null;default:'scheduled'" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Feedback struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	InterviewID    uuid.UUID `gorm:"type:uuid;not null;index" json:"interview_id"`
	CandidateID    uuid.UUID `gorm:"type:uuid;not null;index" json:"candidate_id"`
	Rating         int       `gorm:"not null" json:"rating"` // 1..5
	Recommendation string    `gorm:"type:varchar(20)" json:"recommendation"`
	Comments       string    `gorm:"type:text" json:"comments"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Feedback) TableName() string { return "interview_feedback" }

type Offer struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CandidateID uuid.UUID       `gorm:"type:uuid;not null;index" json:"candidate_id"`
	Salary      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"salary"`
	StartDate   time.Time       `json:"start_date"`
	Status      string          `gorm:"type:varchar(20);not null;default:'draft'" json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
