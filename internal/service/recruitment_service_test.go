package service

import (
	"context"
	"testing"

	"schoolhub/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recruitmentFixture struct {
	svc        RecruitmentService
	candidates *memStore[model.Candidate]
	offers     *memStore[model.Offer]
	audit      *fakeAudit
}

func newRecruitmentFixture() recruitmentFixture {
	f := recruitmentFixture{
		candidates: newMemStore(func(c *model.Candidate) *uuid.UUID { return &c.ID }),
		offers:     newMemStore(func(o *model.Offer) *uuid.UUID { return &o.ID }),
		audit:      &fakeAudit{},
	}
	f.svc = NewRecruitmentService(RecruitmentStores{
		Jobs:       newMemStore(func(j *model.JobOpening) *uuid.UUID { return &j.ID }),
		Candidates: f.candidates,
		Interviews: newMemStore(func(i *model.Interview) *uuid.UUID { return &i.ID }),
		Feedback:   newMemStore(func(fb *model.Feedback) *uuid.UUID { return &fb.ID }),
		Offers:     f.offers,
	}, f.audit, &fakeTx{}, zap.NewNop())
	return f
}

func TestCreateCandidate(t *testing.T) {
	f := newRecruitmentFixture()
	ctx := context.Background()

	job, err := f.svc.CreateJob(ctx, JobRequest{Title: "Physics Teacher", Status: model.JobOpen})
	require.NoError(t, err)

	c, err := f.svc.CreateCandidate(ctx, CandidateRequest{Name: " Marie ", Email: "Marie@School.org", JobID: job.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "Marie", c.Name)
	assert.Equal(t, "marie@school.org", c.Email)
	assert.Equal(t, model.StageApplied, c.Stage)
	require.NotNil(t, c.JobID)
	assert.Equal(t, job.ID, *c.JobID)

	_, err = f.svc.CreateCandidate(ctx, CandidateRequest{Name: "Bob", Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.CreateCandidate(ctx, CandidateRequest{Name: "Bob", Email: "bob@school.org", JobID: uuid.NewString()})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.CreateCandidate(ctx, CandidateRequest{Name: "Bob", Email: "bob@school.org", Stage: "ghosted"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPipelineAdvancesCandidate(t *testing.T) {
	f := newRecruitmentFixture()
	ctx := context.Background()

	c, err := f.svc.CreateCandidate(ctx, CandidateRequest{Name: "Marie", Email: "marie@school.org"})
	require.NoError(t, err)

	iv, err := f.svc.CreateInterview(ctx, InterviewRequest{CandidateID: c.ID.String(), ScheduledAt: fixedNow()})
	require.NoError(t, err)
	assert.Equal(t, "onsite", iv.Mode)
	assert.Equal(t, model.StageInterview, f.candidates.get(c.ID).Stage)

	offer, err := f.svc.CreateOffer(ctx, OfferRequest{CandidateID: c.ID.String(), Salary: "2500"})
	require.NoError(t, err)
	assert.Equal(t, model.OfferDraft, offer.Status)
	assert.Equal(t, model.StageOffer, f.candidates.get(c.ID).Stage)

	// a second interview never moves the candidate back
	_, err = f.svc.CreateInterview(ctx, InterviewRequest{CandidateID: c.ID.String(), ScheduledAt: fixedNow()})
	require.NoError(t, err)
	assert.Equal(t, model.StageOffer, f.candidates.get(c.ID).Stage)
}

func TestRespondOffer(t *testing.T) {
	tests := []struct {
		name      string
		accept    bool
		wantOffer string
		wantStage string
	}{
		{"accept hires", true, model.OfferAccepted, model.StageHired},
		{"decline keeps stage", false, model.OfferDeclined, model.StageOffer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRecruitmentFixture()
			ctx := context.Background()
			c, err := f.svc.CreateCandidate(ctx, CandidateRequest{Name: "Marie", Email: "marie@school.org"})
			require.NoError(t, err)
			offer, err := f.svc.CreateOffer(ctx, OfferRequest{CandidateID: c.ID.String(), Salary: "2500", Status: model.OfferSent})
			require.NoError(t, err)

			res, err := f.svc.RespondOffer(ctx, "", offer.ID.String(), tt.accept)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOffer, res.Offer.Status)
			assert.Equal(t, tt.wantStage, res.Candidate.Stage)
			assert.Equal(t, tt.wantOffer, f.offers.get(offer.ID).Status)
			assert.Equal(t, tt.wantStage, f.candidates.get(c.ID).Stage)
			assert.Equal(t, []string{model.ActionRespondOffer}, f.audit.actions())

			_, err = f.svc.RespondOffer(ctx, "", offer.ID.String(), true)
			assert.ErrorIs(t, err, ErrConflict, "an answered offer is final")
			_, err = f.svc.UpdateOffer(ctx, offer.ID.String(), OfferRequest{CandidateID: c.ID.String(), Salary: "3000"})
			assert.ErrorIs(t, err, ErrConflict)
		})
	}
}

func TestCreateOfferRejects(t *testing.T) {
	f := newRecruitmentFixture()
	ctx := context.Background()
	c, err := f.svc.CreateCandidate(ctx, CandidateRequest{Name: "Marie", Email: "marie@school.org", Stage: model.StageHired})
	require.NoError(t, err)

	_, err = f.svc.CreateOffer(ctx, OfferRequest{CandidateID: c.ID.String(), Salary: "2500"})
	assert.ErrorIs(t, err, ErrConflict)

	other, err := f.svc.CreateCandidate(ctx, CandidateRequest{Name: "Pierre", Email: "pierre@school.org"})
	require.NoError(t, err)
	_, err = f.svc.CreateOffer(ctx, OfferRequest{CandidateID: other.ID.String(), Salary: "2500", Status: model.OfferAccepted})
	assert.ErrorIs(t, err, ErrInvalidInput, "accepted is only reachable through a response")
	_, err = f.svc.CreateOffer(ctx, OfferRequest{CandidateID: other.ID.String(), Salary: "0"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateFeedback(t *testing.T) {
	f := newRecruitmentFixture()
	ctx := context.Background()
	c, err := f.svc.CreateCandidate(ctx, CandidateRequest{Name: "Marie", Email: "marie@school.org"})
	require.NoError(t, err)
	iv, err := f.svc.CreateInterview(ctx, InterviewRequest{CandidateID: c.ID.String(), ScheduledAt: fixedNow(), Mode: "video"})
	require.NoError(t, err)

	fb, err := f.svc.CreateFeedback(ctx, FeedbackRequest{InterviewID: iv.ID.String(), Rating: 4, Recommendation: "hire"})
	require.NoError(t, err)
	assert.Equal(t, c.ID, fb.CandidateID)

	_, err = f.svc.CreateFeedback(ctx, FeedbackRequest{InterviewID: iv.ID.String(), Rating: 6})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.CreateFeedback(ctx, FeedbackRequest{InterviewID: iv.ID.String(), Rating: 3, Recommendation: "maybe"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	cancelled, err := f.svc.CreateInterview(ctx, InterviewRequest{
		CandidateID: c.ID.String(), ScheduledAt: fixedNow(), Status: model.InterviewCancelled,
	})
	require.NoError(t, err)
	_, err = f.svc.CreateFeedback(ctx, FeedbackRequest{InterviewID: cancelled.ID.String(), Rating: 3})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
