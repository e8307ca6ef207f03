package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"schoolhub/internal/model"
	"schoolhub/internal/repository"
	"schoolhub/pkg/pagination"
)

// --- DTOs ---

type ExamRequest struct {
	Title           string    `json:"title" binding:"required"`
	Subject         string    `json:"subject" binding:"required"`
	ClassSection    string    `json:"class_section" binding:"required"`
	ExamType        string    `json:"exam_type"`
	Status          string    `json:"status"`
	StartAt         time.Time `json:"start_at"`
	DurationMinutes int       `json:"duration_minutes"`
	TotalMarks      int       `json:"total_marks"`
	PassMarks       int       `json:"pass_marks"`
	Instructions    string    `json:"instructions"`
}

type ExamFilter struct {
	Search       string // partial match on title or subject
	Status       string
	ExamType     string
	ClassSection string
	Page         int
	Limit        int
}

// --- Interface ---

type ExamService interface {
	CreateExam(ctx context.Context, req ExamRequest) (*model.Exam, error)
	GetExam(ctx context.Context, id string) (*model.Exam, error)
	ListExams(ctx context.Context, filter ExamFilter) ([]model.Exam, int64, error)
	UpdateExam(ctx context.Context, id string, req ExamRequest) (*model.Exam, error)
	DeleteExam(ctx context.Context, id string) error
}

type examService struct {
	exams repository.Store[model.Exam]
}

func NewExamService(exams repository.Store[model.Exam]) ExamService {
	return &examService{exams: exams}
}

var (
	examTypes    = []string{model.ExamTypeCBT, model.ExamTypeWritten, model.ExamTypePractical}
	examStatuses = []string{model.ExamStatusDraft, model.ExamStatusScheduled, model.ExamStatusOngoing, model.ExamStatusCompleted}
)

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

func applyExam(e *model.Exam, req ExamRequest) error {
	if req.ExamType == "" {
		req.ExamType = model.ExamTypeWritten
	}
	if req.Status == "" {
		req.Status = model.ExamStatusDraft
	}
	switch {
	case strings.TrimSpace(req.Title) == "":
		return invalid("title is required")
	case !oneOf(req.ExamType, examTypes):
		return invalid("exam_type must be one of %s", strings.Join(examTypes, ", "))
	case !oneOf(req.Status, examStatuses):
		return invalid("status must be one of %s", strings.Join(examStatuses, ", "))
	case req.DurationMinutes <= 0:
		return invalid("duration_minutes must be positive")
	case req.TotalMarks <= 0:
		return invalid("total_marks must be positive")
	case req.PassMarks < 0 || req.PassMarks > req.TotalMarks:
		return invalid("pass_marks must be between 0 and total_marks")
	}

	e.Title = strings.TrimSpace(req.Title)
	e.Subject = strings.TrimSpace(req.Subject)
	e.ClassSection = strings.TrimSpace(req.ClassSection)
	e.ExamType = req.ExamType
	e.Status = req.Status
	e.StartAt = req.StartAt
	e.DurationMinutes = req.DurationMinutes
	e.TotalMarks = req.TotalMarks
	e.PassMarks = req.PassMarks
	e.Instructions = req.Instructions
	return nil
}

func (s *examService) CreateExam(ctx context.Context, req ExamRequest) (*model.Exam, error) {
	var exam model.Exam
	if err := applyExam(&exam, req); err != nil {
		return nil, err
	}
	if err := s.exams.Create(ctx, &exam); err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}
	return &exam, nil
}

func (s *examService) GetExam(ctx context.Context, id string) (*model.Exam, error) {
	examID, err := parseID("exam", id)
	if err != nil {
		return nil, err
	}
	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		return nil, lookupErr("exam", err)
	}
	return exam, nil
}

func (s *examService) ListExams(ctx context.Context, filter ExamFilter) ([]model.Exam, int64, error) {
	p := pagination.New(filter.Page, filter.Limit)
	exams, total, err := s.exams.List(ctx, p.Offset, p.Limit, "start_at desc",
		repository.Search(strings.TrimSpace(filter.Search), "title", "subject"),
		repository.Eq("status", filter.Status),
		repository.Eq("exam_type", filter.ExamType),
		repository.Eq("class_section", filter.ClassSection),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch exams: %w", err)
	}
	return exams, total, nil
}

func (s *examService) UpdateExam(ctx context.Context, id string, req ExamRequest) (*model.Exam, error) {
	exam, err := s.GetExam(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyExam(exam, req); err != nil {
		return nil, err
	}
	if err := s.exams.Update(ctx, exam); err != nil {
		return nil, fmt.Errorf("failed to update exam: %w", err)
	}
	return exam, nil
}

func (s *examService) DeleteExam(ctx context.Context, id string) error {
	examID, err := parseID("exam", id)
	if err != nil {
		return err
	}
	if err := s.exams.Delete(ctx, examID); err != nil {
		return lookupErr("exam", err)
	}
	return nil
}
