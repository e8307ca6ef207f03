package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Exam types
const (
	ExamTypeCBT       = "cbt"
	ExamTypeWritten   = "written"
	ExamTypePractical = "practical"
)

// Exam statuses
const (
	ExamStatusDraft     = "draft"
	ExamStatusScheduled = "scheduled"
	ExamStatusOngoing   = "ongoing"
	ExamStatusCompleted = "completed"
)

// Exam is a scheduled assessment for one class section
type Exam struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title           string    `gorm:"type:varchar(255);not null" json:"title"`
	Subject         string    `gorm:"type:varchar(100);not null;index" json:"subject"`
	ClassSection    string    `gorm:"type:varchar(50);not null;index" json:"class_section"`
	ExamType        string    `gorm:"type:varchar(20);not null;default:'written'" json:"exam_type"`
	Status          string    `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	StartAt         time.Time `json:"start_at"`
	DurationMinutes int       `gorm:"not null" json:"duration_minutes"`
	TotalMarks      int       `gorm:"not null" json:"total_marks"`
	PassMarks       int       `gorm:"not null" json:"pass_marks"`
	Instructions    string    `gorm:"type:text" json:"instructions"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Question types
const (
	QuestionMCQ         = "mcq"
	QuestionTrueFalse   = "true_false"
	QuestionShortAnswer = "short_answer"
	QuestionEssay       = "essay"
)

// Question difficulties
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Question lives in the question bank and may be attached to an exam
type Question struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ExamID     *uuid.UUID     `gorm:"type:uuid;index" json:"exam_id"`
	Subject    string         `gorm:"type:varchar(100);not null;index" json:"subject"`
	Text       string         `gorm:"type:text;not null" json:"text"`
	Type       string         `gorm:"type:varchar(20);not null;index" json:"type"`
	Options    datatypes.JSON `gorm:"type:jsonb" json:"options"` // ["A", "B", ...] for mcq
	Answer     string         `gorm:"type:text" json:"answer"`
	Marks      int            `gorm:"not null;default:1" json:"marks"`
	Difficulty string         `gorm:"type:varchar(10);not null;default:'medium'" json:"difficulty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
