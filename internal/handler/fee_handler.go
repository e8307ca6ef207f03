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

type FeeHandler struct {
	feeService service.FeeService
	auth       *middleware.Auth
}

func NewFeeHandler(feeService service.FeeService, auth *middleware.Auth) *FeeHandler {
	return &FeeHandler{feeService: feeService, auth: auth}
}

func (h *FeeHandler) RegisterRoutes(router *gin.RouterGroup) {
	fees := router.Group("/api/fees")
	fees.Use(h.auth.RequireAuth(), h.auth.RequireModule(modules.Fees), h.auth.RequireMethodPermission(string(modules.Fees)))
	{
		fees.GET("/categories", h.ListCategories)
		fees.POST("/categories", h.CreateCategory)
		fees.PUT("/categories/:id", h.UpdateCategory)
		fees.DELETE("/categories/:id", h.DeleteCategory)

		fees.GET("/invoices", h.ListInvoices)
		fees.GET("/invoices/:id", h.GetInvoice)
		fees.POST("/invoices", h.CreateInvoice)
		fees.PUT("/invoices/:id", h.UpdateInvoice)
		fees.DELETE("/invoices/:id", h.DeleteInvoice)
		fees.POST("/invoices/:id/payments", h.RecordPayment)

		fees.GET("/payments", h.ListPayments)
	}
}

// ListCategories
// @Summary      List fee categories
// @Tags         fees
// @Produce      json
// @Security     BearerAuth
// @Param        page    query     int     false  "Page number"
// @Param        limit   query     int     false  "Items per page"
// @Param        search  query     string  false  "Name or description"
// @Success      200     {object}  response.Response{data=[]model.FeeCategory}
// @Router       /api/fees/categories [get]
func (h *FeeHandler) ListCategories(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.feeService.ListCategories(c.Request.Context(), c.Query("search"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, items, p, total)
}

// CreateCategory
// @Summary      Create fee category
// @Tags         fees
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.FeeCategoryRequest  true  "Category"
// @Success      201      {object}  response.Response{data=model.FeeCategory}
// @Failure      400      {object}  response.Response
// @Router       /api/fees/categories [post]
func (h *FeeHandler) CreateCategory(c *gin.Context) {
	var req service.FeeCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cat, err := h.feeService.CreateCategory(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, cat))
}

// UpdateCategory
// @Summary      Update fee category
// @Tags         fees
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                      true  "Category ID"
// @Param        payload  body      service.FeeCategoryRequest  true  "Category"
// @Success      200      {object}  response.Response{data=model.FeeCategory}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/fees/categories/{id} [put]
func (h *FeeHandler) UpdateCategory(c *gin.Context) {
	var req service.FeeCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cat, err := h.feeService.UpdateCategory(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, cat))
}

// DeleteCategory
// @Summary      Delete fee category
// @Tags         fees
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Category ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/fees/categories/{id} [delete]
func (h *FeeHandler) DeleteCategory(c *gin.Context) {
	if err := h.feeService.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, "Fee category deleted successfully", nil))
}

// ListInvoices marks overdue invoices, then lists one page
// @Summary      List invoices
// @Tags         fees
// @Produce      json
// @Security     BearerAuth
// @Param        page           query     int     false  "Page number"
// @Param        limit          query     int     false  "Items per page"
// @Param        search         query     string  false  "Invoice no, student name or id"
// @Param        status         query     string  false  "unpaid, partial, paid, overdue"
// @Param        class_section  query     string  false  "Class section"
// @Param        category_id    query     string  false  "Fee category ID"
// @Success      200            {object}  response.Response{data=[]model.Invoice}
// @Router       /api/fees/invoices [get]
func (h *FeeHandler) ListInvoices(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.feeService.ListInvoices(c.Request.Context(), service.InvoiceFilter{
		Search:       c.Query("search"),
		Status:       c.Query("status"),
		ClassSection: c.Query("class_section"),
		CategoryID:   c.Query("category_id"),
		Page:         p.Page,
		Limit:        p.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, items, p, total)
}

// GetInvoice returns an invoice with its category and payments
// @Summary      Get invoice
// @Tags         fees
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=model.Invoice}
// @Failure      404  {object}  response.Response
// @Router       /api/fees/invoices/{id} [get]
func (h *FeeHandler) GetInvoice(c *gin.Context) {
	inv, err := h.feeService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, inv))
}

// CreateInvoice
// @Summary      Create invoice
// @Tags         fees
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.InvoiceRequest  true  "Invoice"
// @Success      201      {object}  response.Response{data=model.Invoice}
// @Failure      400      {object}  response.Response
// @Router       /api/fees/invoices [post]
func (h *FeeHandler) CreateInvoice(c *gin.Context) {
	var req service.InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	inv, err := h.feeService.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, inv))
}

// UpdateInvoice
// @Summary      Update invoice
// @Tags         fees
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                  true  "Invoice ID"
// @Param        payload  body      service.InvoiceRequest  true  "Invoice"
// @Success      200      {object}  response.Response{data=model.Invoice}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/fees/invoices/{id} [put]
func (h *FeeHandler) UpdateInvoice(c *gin.Context) {
	var req service.InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	inv, err := h.feeService.UpdateInvoice(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, inv))
}

// DeleteInvoice
// @Summary      Delete invoice
// @Tags         fees
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/fees/invoices/{id} [delete]
func (h *FeeHandler) DeleteInvoice(c *gin.Context) {
	if err := h.feeService.DeleteInvoice(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, "Invoice deleted successfully", nil))
}

// RecordPayment
// @Summary      Record a payment against an invoice
// @Tags         fees
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                  true  "Invoice ID"
// @Param        payload  body      service.PaymentRequest  true  "Payment"
// @Success      201      {object}  response.Response{data=service.PaymentResult}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/fees/invoices/{id}/payments [post]
func (h *FeeHandler) RecordPayment(c *gin.Context) {
	var req service.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.feeService.RecordPayment(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.SuccessWithMessage(http.StatusCreated, "Payment recorded successfully", res))
}

// ListPayments
// @Summary      List payments
// @Tags         fees
// @Produce      json
// @Security     BearerAuth
// @Param        page        query     int     false  "Page number"
// @Param        limit       query     int     false  "Items per page"
// @Param        invoice_id  query     string  false  "Invoice ID"
// @Param        method      query     string  false  "cash, bank_transfer, card, mobile_money"
// @Success      200         {object}  response.Response{data=[]model.Payment}
// @Router       /api/fees/payments [get]
func (h *FeeHandler) ListPayments(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.feeService.ListPayments(c.Request.Context(), service.PaymentFilter{
		InvoiceID: c.Query("invoice_id"),
		Method:    c.Query("method"),
		Page:      p.Page,
		Limit:     p.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, items, p, total)
}
