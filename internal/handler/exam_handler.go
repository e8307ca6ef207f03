package handler

import (
	"net/http"

	"schoolhub/internal/middleware"
	"schoolhub/internal/modules"
	"schoolhub/internal/service"
	"schoolhub/pkg/pagination"
	"schoolhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type ExamHandler struct {
	examService     service.ExamService
	questionService service.QuestionService
	auth            *middleware.Auth
}

func NewExamHandler(examService service.ExamService, questionService service.QuestionService, auth *middleware.Auth) *ExamHandler {
	return &ExamHandler{examService: examService, questionService: questionService, auth: auth}
}

func (h *ExamHandler) RegisterRoutes(router *gin.RouterGroup) {
	exams := router.Group("/api/exams")
	exams.Use(h.auth.RequireAuth(), h.auth.RequireModule(modules.Exams), h.auth.RequireMethodPermission(string(modules.Exams)))
	{
		exams.GET("", h.ListExams)
		exams.GET("/:id", h.GetExam)
		exams.POST("", h.CreateExam)
		exams.PUT("/:id", h.UpdateExam)
		exams.DELETE("/:id", h.DeleteExam)
	}

	questions := router.Group("/api/questions")
	questions.Use(h.auth.RequireAuth(), h.auth.RequireModule(modules.CBT), h.auth.RequireMethodPermission(string(modules.CBT)))
	{
		questions.GET("", h.ListQuestions)
		questions.GET("/:id", h.GetQuestion)
		questions.POST("", h.CreateQuestion)
		questions.PUT("/:id", h.UpdateQuestion)
		questions.DELETE("/:id", h.DeleteQuestion)
	}
}

// ListExams
// @Summary      List exams
// @Tags         exams
// @Produce      json
// @Security     BearerAuth
// @Param        page           query     int     false  "Page number"
// @Param        limit          query     int     false  "Items per page"
// @Param        search         query     string  false  "Title or subject"
// @Param        status         query     string  false  "draft, scheduled, ongoing, completed"
// @Param        exam_type      query     string  false  "written, cbt, practical"
// @Param        class_section  query     string  false  "Class section"
// @Success      200            {object}  response.Response{data=[]model.Exam}
// @Router       /api/exams [get]
func (h *ExamHandler) ListExams(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.examService.ListExams(c.Request.Context(), service.ExamFilter{
		Search:       c.Query("search"),
		Status:       c.Query("status"),
		ExamType:     c.Query("exam_type"),
		ClassSection: c.Query("class_section"),
		Page:         p.Page,
		Limit:        p.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, items, p, total)
}

// GetExam
// @Summary      Get exam
// @Tags         exams
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Exam ID"
// @Success      200  {object}  response.Response{data=model.Exam}
// @Failure      404  {object}  response.Response
// @Router       /api/exams/{id} [get]
func (h *ExamHandler) GetExam(c *gin.Context) {
	exam, err := h.examService.GetExam(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, exam))
}

// CreateExam
// @Summary      Create exam
// @Tags         exams
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.ExamRequest  true  "Exam"
// @Success      201      {object}  response.Response{data=model.Exam}
// @Failure      400      {object}  response.Response
// @Router       /api/exams [post]
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req service.ExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	exam, err := h.examService.CreateExam(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, exam))
}

// UpdateExam
// @Summary      Update exam
// @Tags         exams
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string               true  "Exam ID"
// @Param        payload  body      service.ExamRequest  true  "Exam"
// @Success      200      {object}  response.Response{data=model.Exam}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/exams/{id} [put]
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	var req service.ExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	exam, err := h.examService.UpdateExam(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, exam))
}

// DeleteExam
// @Summary      Delete exam
// @Tags         exams
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Exam ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/exams/{id} [delete]
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	if err := h.examService.DeleteExam(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, "Exam deleted successfully", nil))
}

// ListQuestions
// @Summary      List question bank
// @Tags         questions
// @Produce      json
// @Security     BearerAuth
// @Param        page        query     int     false  "Page number"
// @Param        limit       query     int     false  "Items per page"
// @Param        search      query     string  false  "Text or subject"
// @Param        subject     query     string  false  "Subject"
// @Param        type        query     string  false  "mcq, true_false, short_answer, essay"
// @Param        difficulty  query     string  false  "easy, medium, hard"
// @Param        exam_id     query     string  false  "Exam ID"
// @Success      200         {object}  response.Response{data=[]model.Question}
// @Router       /api/questions [get]
func (h *ExamHandler) ListQuestions(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.questionService.ListQuestions(c.Request.Context(), service.QuestionFilter{
		Search:     c.Query("search"),
		Subject:    c.Query("subject"),
		Type:       c.Query("type"),
		Difficulty: c.Query("difficulty"),
		ExamID:     c.Query("exam_id"),
		Page:       p.Page,
		Limit:      p.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, items, p, total)
}

// GetQuestion
// @Summary      Get question
// @Tags         questions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Question ID"
// @Success      200  {object}  response.Response{data=model.Question}
// @Failure      404  {object}  response.Response
// @Router       /api/questions/{id} [get]
func (h *ExamHandler) GetQuestion(c *gin.Context) {
	q, err := h.questionService.GetQuestion(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, q))
}

// CreateQuestion
// @Summary      Create question
// @Tags         questions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.QuestionRequest  true  "Question"
// @Success      201      {object}  response.Response{data=model.Question}
// @Failure      400      {object}  response.Response
// @Router       /api/questions [post]
func (h *ExamHandler) CreateQuestion(c *gin.Context) {
	var req service.QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	q, err := h.questionService.CreateQuestion(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, q))
}

// UpdateQuestion
// @Summary      Update question
// @Tags         questions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                   true  "Question ID"
// @Param        payload  body      service.QuestionRequest  true  "Question"
// @Success      200      {object}  response.Response{data=model.Question}
// @Failure      400      {object}  response.Response
// @Router       /api/questions/{id} [put]
func (h *ExamHandler) UpdateQuestion(c *gin.Context) {
	var req service.QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	q, err := h.questionService.UpdateQuestion(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, q))
}

// DeleteQuestion
// @Summary      Delete question
// @Tags         questions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Question ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/questions/{id} [delete]
func (h *ExamHandler) DeleteQuestion(c *gin.Context) {
	if err := h.questionService.DeleteQuestion(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, "Question deleted successfully", nil))
}
