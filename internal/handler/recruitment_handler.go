package handler

import (
	"net/http"

	"schoolhub/internal/middleware"
	"schoolhub/internal/model"
	"schoolhub/internal/modules"
	"schoolhub/internal/service"
	"schoolhub/pkg/pagination"
	"schoolhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type RecruitmentHandler struct {
	recruitmentService service.RecruitmentService
	auth               *middleware.Auth
}

func NewRecruitmentHandler(recruitmentService service.RecruitmentService, auth *middleware.Auth) *RecruitmentHandler {
	return &RecruitmentHandler{recruitmentService: recruitmentService, auth: auth}
}

func (h *RecruitmentHandler) RegisterRoutes(router *gin.RouterGroup) {
	rec := router.Group("/api/recruitment")
	rec.Use(h.auth.RequireAuth(), h.auth.RequireModule(modules.Recruitment))

	perm := h.auth.RequireMethodPermission(string(modules.Recruitment))
	{
		rec.GET("/jobs", perm, h.ListJobs)
		rec.GET("/jobs/:id", perm, h.GetJob)
		rec.POST("/jobs", perm, h.CreateJob)
		rec.PUT("/jobs/:id", perm, h.UpdateJob)
		rec.DELETE("/jobs/:id", perm, h.DeleteJob)

		rec.GET("/candidates", perm, h.ListCandidates)
		rec.GET("/candidates/:id", perm, h.GetCandidate)
		rec.POST("/candidates", perm, h.CreateCandidate)
		rec.PUT("/candidates/:id", perm, h.UpdateCandidate)
		rec.DELETE("/candidates/:id", perm, h.DeleteCandidate)

		rec.GET("/interviews", perm, h.ListInterviews)
		rec.POST("/interviews", perm, h.CreateInterview)
		rec.PUT("/interviews/:id", perm, h.UpdateInterview)
		rec.DELETE("/interviews/:id", perm, h.DeleteInterview)

		rec.GET("/feedback", perm, h.ListFeedback)
		rec.POST("/feedback", perm, h.CreateFeedback)
		rec.DELETE("/feedback/:id", perm, h.DeleteFeedback)

		rec.GET("/offers", perm, h.ListOffers)
		rec.POST("/offers", perm, h.CreateOffer)
		rec.PUT("/offers/:id", perm, h.UpdateOffer)
		rec.DELETE("/offers/:id", perm, h.DeleteOffer)
		// answering an offer edits it, whatever the verb
		rec.POST("/offers/:id/respond", h.auth.RequirePermission(string(modules.Recruitment), model.ActionUpdate), h.RespondOffer)
	}
}

func recruitmentFilter(c *gin.Context, p pagination.Params) service.RecruitmentFilter {
	return service.RecruitmentFilter{
		Search:      c.Query("search"),
		Status:      c.Query("status"),
		Department:  c.Query("department"),
		Stage:       c.Query("stage"),
		JobID:       c.Query("job_id"),
		CandidateID: c.Query("candidate_id"),
		InterviewID: c.Query("interview_id"),
		Page:        p.Page,
		Limit:       p.Limit,
	}
}

// --- Jobs ---

// ListJobs
// @Summary      List job openings
// @Tags         recruitment
// @Produce      json
// @Security     BearerAuth
// @Param        search      query     string  false  "Title or department"
// @Param        status      query     string  false  "draft, open, closed"
// @Param        department  query     string  false  "Department"
// @Success      200         {object}  response.Response{data=[]model.JobOpening}
// @Router       /api/recruitment/jobs [get]
func (h *RecruitmentHandler) ListJobs(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.recruitmentService.ListJobs(c.Request.Context(), recruitmentFilter(c, p))
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, items, p, total)
}

// @Summary      Get job opening
// @Tags         recruitment
// @Security     BearerAuth
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  response.Response{data=model.JobOpening}
// @Router       /api/recruitment/jobs/{id} [get]
func (h *RecruitmentHandler) GetJob(c *gin.Context) {
	job, err := h.recruitmentService.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, job))
}

// @Summary      Create job opening
// @Tags         recruitment
// @Security     BearerAuth
// @Param        payload  body      service.JobRequest  true  "Job"
// @Success      201      {object}  response.Response{data=model.JobOpening}
// @Router       /api/recruitment/jobs [post]
func (h *RecruitmentHandler) CreateJob(c *gin.Context) {
	var req service.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	job, err := h.recruitmentService.CreateJob(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, job))
}

// @Summary      Update job opening
// @Tags         recruitment
// @Security     BearerAuth
// @Param        id       path      string              true  "Job ID"
// @Param        payload  body      service.JobRequest  true  "Job"
// @Success      200      {object}  response.Response{data=model.JobOpening}
// @Router       /api/recruitment/jobs/{id} [put]
func (h *RecruitmentHandler) UpdateJob(c *gin.Context) {
	var req service.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	job, err := h.recruitmentService.UpdateJob(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, job))
}

func (h *RecruitmentHandler) DeleteJob(c *gin.Context) {
	if err := h.recruitmentService.DeleteJob(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, "Job opening deleted successfully", nil))
}

// --- Candidates ---

// ListCandidates
// @Summary      List candidates
// @Tags         recruitment
// @Produce      json
// @Security     BearerAuth
// @Param        search  query     string  false  "Name or email"
// @Param        stage   query     string  false  "applied, screening, interview, offer, hired, rejected"
// @Param        job_id  query     string  false  "Job ID"
// @Success      200     {object}  response.Response{data=[]model.Candidate}
// @Router       /api/recruitment/candidates [get]
func (h *RecruitmentHandler) ListCandidates(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.recruitmentService.ListCandidates(c.Request.Context(), recruitmentFilter(c, p))
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, items, p, total)
}

func (h *RecruitmentHandler) GetCandidate(c *gin.Context) {
	cand, err := h.recruitmentService.GetCandidate(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, cand))
}

// @Summary      Create candidate
// @Tags         recruitment
// @Security     BearerAuth
// @Param        payload  body      service.CandidateRequest  true  "Candidate"
// @Success      201      {object}  response.Response{data=model.Candidate}
// @Router       /api/recruitment/candidates [post]
func (h *RecruitmentHandler) CreateCandidate(c *gin.Context) {
	var req service.CandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cand, err := h.recruitmentService.CreateCandidate(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, cand))
}

// @Summary      Update candidate
// @Tags         recruitment
// @Security     BearerAuth
// @Param        id       path      string                    true  "Candidate ID"
// @Param        payload  body      service.CandidateRequest  true  "Candidate"
// @Success      200      {object}  response.Response{data=model.Candidate}
// @Router       /api/recruitment/candidates/{id} [put]
func (h *RecruitmentHandler) UpdateCandidate(c *gin.Context) {
	var req service.CandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cand, err := h.recruitmentService.UpdateCandidate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, cand))
}

func (h *RecruitmentHandler) DeleteCandidate(c *gin.Context) {
	if err := h.recruitmentService.DeleteCandidate(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, "Candidate deleted successfully", nil))
}

// --- Interviews ---

// ListInterviews
// @Summary      List interviews, soonest first
// @Tags         recruitment
// @Produce      json
// @Security     BearerAuth
// @Param        candidate_id  query     string  false  "Candidate ID"
// @Param        status        query     string  false  "scheduled, completed, cancelled"
// @Success      200           {object}  response.Response{data=[]model.Interview}
// @Router       /api/recruitment/interviews [get]
func (h *RecruitmentHandler) ListInterviews(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.recruitmentService.ListInterviews(c.Request.Context(), recruitmentFilter(c, p))
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, items, p, total)
}

// CreateInterview schedules an interview and moves the candidate to the interview stage
// @Summary      Schedule interview
// @Tags         recruitment
// @Security     BearerAuth
// @Param        payload  body      service.InterviewRequest  true  "Interview"
// @Success      201      {object}  response.Response{data=model.Interview}
// @Router       /api/recruitment/interviews [post]
func (h *RecruitmentHandler) CreateInterview(c *gin.Context) {
	var req service.InterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	iv, err := h.recruitmentService.CreateInterview(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, iv))
}

func (h *RecruitmentHandler) UpdateInterview(c *gin.Context) {
	var req service.InterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	iv, err := h.recruitmentService.UpdateInterview(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, iv))
}

func (h *RecruitmentHandler) DeleteInterview(c *gin.Context) {
	if err := h.recruitmentService.DeleteInterview(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, "Interview deleted successfully", nil))
}

// --- Feedback ---

// @Summary      List interview feedback
// @Tags         recruitment
// @Security     BearerAuth
// @Param        candidate_id  query     string  false  "Candidate ID"
// @Param        interview_id  query     string  false  "Interview ID"
// @Success      200           {object}  response.Response{data=[]model.Feedback}
// @Router       /api/recruitment/feedback [get]
func (h *RecruitmentHandler) ListFeedback(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.recruitmentService.ListFeedback(c.Request.Context(), recruitmentFilter(c, p))
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, items, p, total)
}

// @Summary      Submit interview feedback
// @Tags         recruitment
// @Security     BearerAuth
// @Param        payload  body      service.FeedbackRequest  true  "Feedback, rating 1..5"
// @Success      201      {object}  response.Response{data=model.Feedback}
// @Router       /api/recruitment/feedback [post]
func (h *RecruitmentHandler) CreateFeedback(c *gin.Context) {
	var req service.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	fb, err := h.recruitmentService.CreateFeedback(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, fb))
}

func (h *RecruitmentHandler) DeleteFeedback(c *gin.Context) {
	if err := h.recruitmentService.DeleteFeedback(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, "Feedback deleted successfully", nil))
}

// --- Offers ---

func (h *RecruitmentHandler) ListOffers(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.recruitmentService.ListOffers(c.Request.Context(), recruitmentFilter(c, p))
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, items, p, total)
}

// @Summary      Create offer
// @Tags         recruitment
// @Security     BearerAuth
// @Param        payload  body      service.OfferRequest  true  "Offer"
// @Success      201      {object}  response.Response{data=model.Offer}
// @Failure      409      {object}  response.Response
// @Router       /api/recruitment/offers [post]
func (h *RecruitmentHandler) CreateOffer(c *gin.Context) {
	var req service.OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	offer, err := h.recruitmentService.CreateOffer(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, offer))
}

func (h *RecruitmentHandler) UpdateOffer(c *gin.Context) {
	var req service.OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	offer, err := h.recruitmentService.UpdateOffer(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, offer))
}

func (h *RecruitmentHandler) DeleteOffer(c *gin.Context) {
	if err := h.recruitmentService.DeleteOffer(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, "Offer deleted successfully", nil))
}

// RespondOffer records acceptance or refusal; accepting hires the candidate
// @Summary      Respond to offer
// @Tags         recruitment
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true  "Offer ID"
// @Param        payload  body      service.RespondOfferRequest  true  "Answer"
// @Success      200      {object}  response.Response{data=service.OfferResult}
// @Failure      409      {object}  response.Response
// @Router       /api/recruitment/offers/{id}/respond [post]
func (h *RecruitmentHandler) RespondOffer(c *gin.Context) {
	var req service.RespondOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.recruitmentService.RespondOffer(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Accept)
	if err != nil {
		writeError(c, err)
		return
	}
	msg := "Offer declined"
	if req.Accept {
		msg = "Offer accepted"
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, msg, res))
}
