package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"schoolhub/internal/model"
	"schoolhub/internal/repository"
	"schoolhub/pkg/pagination"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// --- DTOs ---

type JobRequest struct {
	Title       string `json:"title" binding:"required"`
	Department  string `json:"department"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type CandidateRequest struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"required"`
	Phone     string `json:"phone"`
	JobID     string `json:"job_id"`
	Stage     string `json:"stage"`
	ResumeURL string `json:"resume_url"`
}

type InterviewRequest struct {
	CandidateID string    `json:"candidate_id" binding:"required"`
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
	Interviewer string    `json:"interviewer"`
	Mode        string    `json:"mode"`
	Status      string    `json:"status"`
}

type FeedbackRequest struct {
	InterviewID    string `json:"interview_id" binding:"required"`
	Rating         int    `json:"rating" binding:"required"`
	Recommendation string `json:"recommendation"`
	Comments       string `json:"comments"`
}

type OfferRequest struct {
	CandidateID string    `json:"candidate_id" binding:"required"`
	Salary      string    `json:"salary" binding:"required"`
	StartDate   time.Time `json:"start_date"`
	Status      string    `json:"status"`
}

type RespondOfferRequest struct {
	Accept bool `json:"accept"`
}

// RecruitmentFilter is shared by the recruitment list endpoints; each list
// reads only the fields that apply to it
type RecruitmentFilter struct {
	Search      string
	Status      string
	Department  string
	Stage       string
	JobID       string
	CandidateID string
	InterviewID string
	Page        int
	Limit       int
}

type OfferResult struct {
	Offer     model.Offer     `json:"offer"`
	Candidate model.Candidate `json:"candidate"`
}

// --- Interface ---

type RecruitmentService interface {
	CreateJob(ctx context.Context, req JobRequest) (*model.JobOpening, error)
	GetJob(ctx context.Context, id string) (*model.JobOpening, error)
	ListJobs(ctx context.Context, filter RecruitmentFilter) ([]model.JobOpening, int64, error)
	UpdateJob(ctx context.Context, id string, req JobRequest) (*model.JobOpening, error)
	DeleteJob(ctx context.Context, id string) error

	CreateCandidate(ctx context.Context, req CandidateRequest) (*model.Candidate, error)
	GetCandidate(ctx context.Context, id string) (*model.Candidate, error)
	ListCandidates(ctx context.Context, filter RecruitmentFilter) ([]model.Candidate, int64, error)
	UpdateCandidate(ctx context.Context, id string, req CandidateRequest) (*model.Candidate, error)
	DeleteCandidate(ctx context.Context, id string) error

	CreateInterview(ctx context.Context, req InterviewRequest) (*model.Interview, error)
	ListInterviews(ctx context.Context, filter RecruitmentFilter) ([]model.Interview, int64, error)
	UpdateInterview(ctx context.Context, id string, req InterviewRequest) (*model.Interview, error)
	DeleteInterview(ctx context.Context, id string) error

	CreateFeedback(ctx context.Context, req FeedbackRequest) (*model.Feedback, error)
	ListFeedback(ctx context.Context, filter RecruitmentFilter) ([]model.Feedback, int64, error)
	DeleteFeedback(ctx context.Context, id string) error

	CreateOffer(ctx context.Context, req OfferRequest) (*model.Offer, error)
	ListOffers(ctx context.Context, filter RecruitmentFilter) ([]model.Offer, int64, error)
	UpdateOffer(ctx context.Context, id string, req OfferRequest) (*model.Offer, error)
	DeleteOffer(ctx context.Context, id string) error
	RespondOffer(ctx context.Context, userID, offerID string, accept bool) (*OfferResult, error)
}

type recruitmentService struct {
	jobs       repository.Store[model.JobOpening]
	candidates repository.Store[model.Candidate]
	interviews repository.Store[model.Interview]
	feedback   repository.Store[model.Feedback]
	offers     repository.Store[model.Offer]
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
	logger     *zap.Logger
}

// RecruitmentStores groups the record stores the recruitment service reads
type RecruitmentStores struct {
	Jobs       repository.Store[model.JobOpening]
	Candidates repository.Store[model.Candidate]
	Interviews repository.Store[model.Interview]
	Feedback   repository.Store[model.Feedback]
	Offers     repository.Store[model.Offer]
}

func NewRecruitmentService(
	stores RecruitmentStores,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	logger *zap.Logger,
) RecruitmentService {
	return &recruitmentService{
		jobs:       stores.Jobs,
		candidates: stores.Candidates,
		interviews: stores.Interviews,
		feedback:   stores.Feedback,
		offers:     stores.Offers,
		auditRepo:  auditRepo,
		txManager:  txManager,
		logger:     logger,
	}
}

var (
	jobStatuses       = []string{model.JobDraft, model.JobOpen, model.JobClosed}
	candidateStages   = []string{model.StageApplied, model.StageScreening, model.StageInterview, model.StageOffer, model.StageHired, model.StageRejected}
	interviewStatuses = []string{model.InterviewScheduled, model.InterviewCompleted, model.InterviewCancelled}
	interviewModes    = []string{"onsite", "video", "phone"}
	recommendations   = []string{"strong_hire", "hire", "no_hire", "strong_no_hire"}
	// offers can only be drafted or sent by hand; the other two come from RespondOffer
	editableOfferStatuses = []string{model.OfferDraft, model.OfferSent}
)

func validateFilterIDs(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		if _, err := parseID(pairs[i], pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// --- Jobs ---

func applyJob(job *model.JobOpening, req JobRequest) error {
	if req.Status == "" {
		req.Status = model.JobDraft
	}
	if !oneOf(req.Status, jobStatuses) {
		return invalid("status must be one of %s", strings.Join(jobStatuses, ", "))
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return invalid("title is required")
	}
	job.Title = title
	job.Department = strings.TrimSpace(req.Department)
	job.Description = req.Description
	job.Status = req.Status
	return nil
}

func (s *recruitmentService) CreateJob(ctx context.Context, req JobRequest) (*model.JobOpening, error) {
	var job model.JobOpening
	if err := applyJob(&job, req); err != nil {
		return nil, err
	}
	if err := s.jobs.Create(ctx, &job); err != nil {
		return nil, fmt.Errorf("failed to create job opening: %w", err)
	}
	return &job, nil
}

func (s *recruitmentService) GetJob(ctx context.Context, id string) (*model.JobOpening, error) {
	return findOne(ctx, s.jobs, "job opening", id)
}

func (s *recruitmentService) ListJobs(ctx context.Context, filter RecruitmentFilter) ([]model.JobOpening, int64, error) {
	p := pagination.New(filter.Page, filter.Limit)
	items, total, err := s.jobs.List(ctx, p.Offset, p.Limit, "",
		repository.Search(strings.TrimSpace(filter.Search), "title", "department"),
		repository.Eq("status", filter.Status),
		repository.Eq("department", filter.Department),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch job openings: %w", err)
	}
	return items, total, nil
}

func (s *recruitmentService) UpdateJob(ctx context.Context, id string, req JobRequest) (*model.JobOpening, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyJob(job, req); err != nil {
		return nil, err
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update job opening: %w", err)
	}
	return job, nil
}

func (s *recruitmentService) DeleteJob(ctx context.Context, id string) error {
	return deleteOne(ctx, s.jobs, "job opening", id)
}

// --- Candidates ---

func (s *recruitmentService) applyCandidate(ctx context.Context, c *model.Candidate, req CandidateRequest) error {
	if req.Stage == "" {
		req.Stage = model.StageApplied
	}
	if !oneOf(req.Stage, candidateStages) {
		return invalid("stage must be one of %s", strings.Join(candidateStages, ", "))
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return invalid("name is required")
	}
	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return invalid("email '%s' is not a valid address", email)
	}

	var jobID *uuid.UUID
	if req.JobID != "" {
		job, err := mustExist(ctx, s.jobs, "job opening", req.JobID)
		if err != nil {
			return err
		}
		jobID = &job.ID
	}

	c.Name = name
	c.Email = strings.ToLower(email)
	c.Phone = strings.TrimSpace(req.Phone)
	c.JobID = jobID
	c.Stage = req.Stage
	c.ResumeURL = strings.TrimSpace(req.ResumeURL)
	return nil
}

func (s *recruitmentService) CreateCandidate(ctx context.Context, req CandidateRequest) (*model.Candidate, error) {
	var c model.Candidate
	if err := s.applyCandidate(ctx, &c, req); err != nil {
		return nil, err
	}
	if err := s.candidates.Create(ctx, &c); err != nil {
		return nil, fmt.Errorf("failed to create candidate: %w", err)
	}
	return &c, nil
}

func (s *recruitmentService) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	return findOne(ctx, s.candidates, "candidate", id)
}

func (s *recruitmentService) ListCandidates(ctx context.Context, filter RecruitmentFilter) ([]model.Candidate, int64, error) {
	if err := validateFilterIDs("job opening", filter.JobID); err != nil {
		return nil, 0, err
	}
	p := pagination.New(filter.Page, filter.Limit)
	items, total, err := s.candidates.List(ctx, p.Offset, p.Limit, "",
		repository.Search(strings.TrimSpace(filter.Search), "name", "email"),
		repository.Eq("stage", filter.Stage),
		repository.Eq("job_id", filter.JobID),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch candidates: %w", err)
	}
	return items, total, nil
}

func (s *recruitmentService) UpdateCandidate(ctx context.Context, id string, req CandidateRequest) (*model.Candidate, error) {
	c, err := s.GetCandidate(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Stage == "" {
		req.Stage = c.Stage
	}
	if err := s.applyCandidate(ctx, c, req); err != nil {
		return nil, err
	}
	if err := s.candidates.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update candidate: %w", err)
	}
	return c, nil
}

func (s *recruitmentService) DeleteCandidate(ctx context.Context, id string) error {
	return deleteOne(ctx, s.candidates, "candidate", id)
}

// advance moves a candidate forward to stage, never backwards and never out
// of hired or rejected
func (s *recruitmentService) advance(ctx context.Context, c *model.Candidate, stage string) error {
	if c.Stage == model.StageHired || c.Stage == model.StageRejected {
		return nil
	}
	if stageRank(c.Stage) >= stageRank(stage) {
		return nil
	}
	c.Stage = stage
	if err := s.candidates.Update(ctx, c); err != nil {
		return fmt.Errorf("failed to update candidate stage: %w", err)
	}
	return nil
}

func stageRank(stage string) int {
	for i, st := range candidateStages {
		if st == stage {
			return i
		}
	}
	return -1
}

// --- Interviews ---

func (s *recruitmentService) CreateInterview(ctx context.Context, req InterviewRequest) (*model.Interview, error) {
	var iv model.Interview
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		c, err := mustExist(txCtx, s.candidates, "candidate", req.CandidateID)
		if err != nil {
			return err
		}
		if err := applyInterview(&iv, c.ID, req); err != nil {
			return err
		}
		if err := s.interviews.Create(txCtx, &iv); err != nil {
			return fmt.Errorf("failed to create interview: %w", err)
		}
		return s.advance(txCtx, c, model.StageInterview)
	})
	if err != nil {
		return nil, err
	}
	return &iv, nil
}

func applyInterview(iv *model.Interview, candidateID uuid.UUID, req InterviewRequest) error {
	if req.Status == "" {
		req.Status = model.InterviewScheduled
	}
	if req.Mode == "" {
		req.Mode = "onsite"
	}
	if !oneOf(req.Status, interviewStatuses) {
		return invalid("status must be one of %s", strings.Join(interviewStatuses, ", "))
	}
	if !oneOf(req.Mode, interviewModes) {
		return invalid("mode must be one of %s", strings.Join(interviewModes, ", "))
	}
	if req.ScheduledAt.IsZero() {
		return invalid("scheduled_at is required")
	}
	iv.CandidateID = candidateID
	iv.ScheduledAt = req.ScheduledAt
	iv.Interviewer = strings.TrimSpace(req.Interviewer)
	iv.Mode = req.Mode
	iv.Status = req.Status
	return nil
}

func (s *recruitmentService) ListInterviews(ctx context.Context, filter RecruitmentFilter) ([]model.Interview, int64, error) {
	if err := validateFilterIDs("candidate", filter.CandidateID); err != nil {
		return nil, 0, err
	}
	p := pagination.New(filter.Page, filter.Limit)
	items, total, err := s.interviews.List(ctx, p.Offset, p.Limit, "scheduled_at asc",
		repository.Eq("candidate_id", filter.CandidateID),
		repository.Eq("status", filter.Status),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch interviews: %w", err)
	}
	return items, total, nil
}

func (s *recruitmentService) UpdateInterview(ctx context.Context, id string, req InterviewRequest) (*model.Interview, error) {
	iv, err := findOne(ctx, s.interviews, "interview", id)
	if err != nil {
		return nil, err
	}
	c, err := mustExist(ctx, s.candidates, "candidate", req.CandidateID)
	if err != nil {
		return nil, err
	}
	if err := applyInterview(iv, c.ID, req); err != nil {
		return nil, err
	}
	if err := s.interviews.Update(ctx, iv); err != nil {
		return nil, fmt.Errorf("failed to update interview: %w", err)
	}
	return iv, nil
}

func (s *recruitmentService) DeleteInterview(ctx context.Context, id string) error {
	return deleteOne(ctx, s.interviews, "interview", id)
}

// --- Feedback ---

func (s *recruitmentService) CreateFeedback(ctx context.Context, req FeedbackRequest) (*model.Feedback, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, invalid("rating must be between 1 and 5")
	}
	if req.Recommendation != "" && !oneOf(req.Recommendation, recommendations) {
		return nil, invalid("recommendation must be one of %s", strings.Join(recommendations, ", "))
	}
	iv, err := mustExist(ctx, s.interviews, "interview", req.InterviewID)
	if err != nil {
		return nil, err
	}
	if iv.Status == model.InterviewCancelled {
		return nil, invalid("cannot give feedback on a cancelled interview")
	}

	fb := model.Feedback{
		InterviewID:    iv.ID,
		CandidateID:    iv.CandidateID,
		Rating:         req.Rating,
		Recommendation: req.Recommendation,
		Comments:       strings.TrimSpace(req.Comments),
	}
	if err := s.feedback.Create(ctx, &fb); err != nil {
		return nil, fmt.Errorf("failed to create feedback: %w", err)
	}
	return &fb, nil
}

func (s *recruitmentService) ListFeedback(ctx context.Context, filter RecruitmentFilter) ([]model.Feedback, int64, error) {
	if err := validateFilterIDs("candidate", filter.CandidateID, "interview", filter.InterviewID); err != nil {
		return nil, 0, err
	}
	p := pagination.New(filter.Page, filter.Limit)
	items, total, err := s.feedback.List(ctx, p.Offset, p.Limit, "",
		repository.Eq("candidate_id", filter.CandidateID),
		repository.Eq("interview_id", filter.InterviewID),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch feedback: %w", err)
	}
	return items, total, nil
}

func (s *recruitmentService) DeleteFeedback(ctx context.Context, id string) error {
	return deleteOne(ctx, s.feedback, "feedback", id)
}

// --- Offers ---

func applyOffer(o *model.Offer, candidateID uuid.UUID, req OfferRequest) error {
	if req.Status == "" {
		req.Status = model.OfferDraft
	}
	if !oneOf(req.Status, editableOfferStatuses) {
		return invalid("status must be one of %s", strings.Join(editableOfferStatuses, ", "))
	}
	salary, err := parseAmount("salary", req.Salary)
	if err != nil {
		return err
	}
	o.CandidateID = candidateID
	o.Salary = salary
	o.StartDate = req.StartDate
	o.Status = req.Status
	return nil
}

func (s *recruitmentService) CreateOffer(ctx context.Context, req OfferRequest) (*model.Offer, error) {
	var offer model.Offer
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		c, err := mustExist(txCtx, s.candidates, "candidate", req.CandidateID)
		if err != nil {
			return err
		}
		if c.Stage == model.StageHired || c.Stage == model.StageRejected {
			return fmt.Errorf("candidate %s is already %s: %w", c.Name, c.Stage, ErrConflict)
		}
		if err := applyOffer(&offer, c.ID, req); err != nil {
			return err
		}
		if err := s.offers.Create(txCtx, &offer); err != nil {
			return fmt.Errorf("failed to create offer: %w", err)
		}
		return s.advance(txCtx, c, model.StageOffer)
	})
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (s *recruitmentService) ListOffers(ctx context.Context, filter RecruitmentFilter) ([]model.Offer, int64, error) {
	if err := validateFilterIDs("candidate", filter.CandidateID); err != nil {
		return nil, 0, err
	}
	p := pagination.New(filter.Page, filter.Limit)
	items, total, err := s.offers.List(ctx, p.Offset, p.Limit, "",
		repository.Eq("candidate_id", filter.CandidateID),
		repository.Eq("status", filter.Status),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch offers: %w", err)
	}
	return items, total, nil
}

func (s *recruitmentService) UpdateOffer(ctx context.Context, id string, req OfferRequest) (*model.Offer, error) {
	offer, err := findOne(ctx, s.offers, "offer", id)
	if err != nil {
		return nil, err
	}
	if !oneOf(offer.Status, editableOfferStatuses) {
		return nil, fmt.Errorf("offer was already %s: %w", offer.Status, ErrConflict)
	}
	if err := applyOffer(offer, offer.CandidateID, req); err != nil {
		return nil, err
	}
	if err := s.offers.Update(ctx, offer); err != nil {
		return nil, fmt.Errorf("failed to update offer: %w", err)
	}
	return offer, nil
}

func (s *recruitmentService) DeleteOffer(ctx context.Context, id string) error {
	return deleteOne(ctx, s.offers, "offer", id)
}

// RespondOffer records the candidate's answer. Accepting hires the candidate;
// declining leaves the pipeline stage where it was.
func (s *recruitmentService) RespondOffer(ctx context.Context, userID, offerID string, accept bool) (*OfferResult, error) {
	id, err := parseID("offer", offerID)
	if err != nil {
		return nil, err
	}

	var result OfferResult
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		offer, err := s.offers.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return lookupErr("offer", err)
		}
		if !oneOf(offer.Status, editableOfferStatuses) {
			return fmt.Errorf("offer was already %s: %w", offer.Status, ErrConflict)
		}
		c, err := s.candidates.FindByIDForUpdate(txCtx, offer.CandidateID)
		if err != nil {
			return lookupErr("candidate", err)
		}

		offer.Status = model.OfferDeclined
		if accept {
			offer.Status = model.OfferAccepted
			c.Stage = model.StageHired
			if err := s.candidates.Update(txCtx, c); err != nil {
				return fmt.Errorf("failed to update candidate stage: %w", err)
			}
		}
		if err := s.offers.Update(txCtx, offer); err != nil {
			return fmt.Errorf("failed to update offer: %w", err)
		}

		if err := writeAudit(txCtx, s.auditRepo, userID, model.ActionRespondOffer, offer.ID.String(), c.Name,
			map[string]interface{}{
				"status": offer.Status,
				"salary": offer.Salary.StringFixed(2),
				"stage":  c.Stage,
			}); err != nil {
			return err
		}

		result = OfferResult{Offer: *offer, Candidate: *c}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("offer answered",
		zap.String("offer_id", offerID),
		zap.String("status", result.Offer.Status),
		zap.String("candidate", result.Candidate.Name))
	return &result, nil
}
