package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"schoolhub/internal/model"
	"schoolhub/internal/repository"
	"schoolhub/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type QuestionRequest struct {
	ExamID     string   `json:"exam_id"`
	Subject    string   `json:"subject" binding:"required"`
	Text       string   `json:"text" binding:"required"`
	Type       string   `json:"type" binding:"required"`
	Options    []string `json:"options"`
	Answer     string   `json:"answer"`
	Marks      int      `json:"marks"`
	Difficulty string   `json:"difficulty"`
}

type QuestionFilter struct {
	Search     string
	Subject    string
	Type       string
	Difficulty string
	ExamID     string
	Page       int
	Limit      int
}

type QuestionService interface {
	CreateQuestion(ctx context.Context, req QuestionRequest) (*model.Question, error)
	GetQuestion(ctx context.Context, id string) (*model.Question, error)
	ListQuestions(ctx context.Context, filter QuestionFilter) ([]model.Question, int64, error)
	UpdateQuestion(ctx context.Context, id string, req QuestionRequest) (*model.Question, error)
	DeleteQuestion(ctx context.Context, id string) error
}

type questionService struct {
	questions repository.Store[model.Question]
	exams     repository.Store[model.Exam]
}

func NewQuestionService(questions repository.Store[model.Question], exams repository.Store[model.Exam]) QuestionService {
	return &questionService{questions: questions, exams: exams}
}

var (
	questionTypes = []string{model.QuestionMCQ, model.QuestionTrueFalse, model.QuestionShortAnswer, model.QuestionEssay}
	difficulties  = []string{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard}
)

func (s *questionService) applyQuestion(ctx context.Context, q *model.Question, req QuestionRequest) error {
	if req.Difficulty == "" {
		req.Difficulty = model.DifficultyMedium
	}
	if req.Marks == 0 {
		req.Marks = 1
	}
	if !oneOf(req.Type, questionTypes) {
		return invalid("type must be one of %s", strings.Join(questionTypes, ", "))
	}
	if !oneOf(req.Difficulty, difficulties) {
		return invalid("difficulty must be one of %s", strings.Join(difficulties, ", "))
	}
	if req.Marks < 0 {
		return invalid("marks cannot be negative")
	}
	if strings.TrimSpace(req.Text) == "" {
		return invalid("text is required")
	}

	options := make([]string, 0, len(req.Options))
	for _, o := range req.Options {
		if o = strings.TrimSpace(o); o != "" {
			options = append(options, o)
		}
	}
	answer := strings.TrimSpace(req.Answer)

	switch req.Type {
	case model.QuestionMCQ:
		if len(options) < 2 {
			return invalid("multiple choice questions need at least two options")
		}
		if !oneOf(answer, options) {
			return invalid("answer must be one of the options")
		}
	case model.QuestionTrueFalse:
		answer = strings.ToLower(answer)
		if answer != "true" && answer != "false" {
			return invalid("answer must be true or false")
		}
		options = []string{"true", "false"}
	default:
		options = nil
	}

	var examID *uuid.UUID
	if req.ExamID != "" {
		id, err := parseID("exam", req.ExamID)
		if err != nil {
			return err
		}
		if _, err := s.exams.FindByID(ctx, id); err != nil {
			if isNotFound(lookupErr("exam", err)) {
				return invalid("exam '%s' does not exist", req.ExamID)
			}
			return fmt.Errorf("failed to check exam: %w", err)
		}
		examID = &id
	}

	raw, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}

	q.ExamID = examID
	q.Subject = strings.TrimSpace(req.Subject)
	q.Text = strings.TrimSpace(req.Text)
	q.Type = req.Type
	q.Options = datatypes.JSON(raw)
	q.Answer = answer
	q.Marks = req.Marks
	q.Difficulty = req.Difficulty
	return nil
}

func (s *questionService) CreateQuestion(ctx context.Context, req QuestionRequest) (*model.Question, error) {
	var q model.Question
	if err := s.applyQuestion(ctx, &q, req); err != nil {
		return nil, err
	}
	if err := s.questions.Create(ctx, &q); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	return &q, nil
}

func (s *questionService) GetQuestion(ctx context.Context, id string) (*model.Question, error) {
	qID, err := parseID("question", id)
	if err != nil {
		return nil, err
	}
	q, err := s.questions.FindByID(ctx, qID)
	if err != nil {
		return nil, lookupErr("question", err)
	}
	return q, nil
}

func (s *questionService) ListQuestions(ctx context.Context, filter QuestionFilter) ([]model.Question, int64, error) {
	if filter.ExamID != "" {
		if _, err := parseID("exam", filter.ExamID); err != nil {
			return nil, 0, err
		}
	}
	p := pagination.New(filter.Page, filter.Limit)
	items, total, err := s.questions.List(ctx, p.Offset, p.Limit, "",
		repository.Search(strings.TrimSpace(filter.Search), "text", "subject"),
		repository.Eq("subject", filter.Subject),
		repository.Eq("type", filter.Type),
		repository.Eq("difficulty", filter.Difficulty),
		repository.Eq("exam_id", filter.ExamID),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch questions: %w", err)
	}
	return items, total, nil
}

func (s *questionService) UpdateQuestion(ctx context.Context, id string, req QuestionRequest) (*model.Question, error) {
	q, err := s.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyQuestion(ctx, q, req); err != nil {
		return nil, err
	}
	if err := s.questions.Update(ctx, q); err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}
	return q, nil
}

func (s *questionService) DeleteQuestion(ctx context.Context, id string) error {
	qID, err := parseID("question", id)
	if err != nil {
		return err
	}
	if err := s.questions.Delete(ctx, qID); err != nil {
		return lookupErr("question", err)
	}
	return nil
}
