package handler

import (
	"schoolhub/internal/middleware"
	"schoolhub/internal/model"
	"schoolhub/internal/service"
	"schoolhub/pkg/pagination"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
	auth         *middleware.Auth
}

func NewAuditHandler(auditService service.AuditService, auth *middleware.Auth) *AuditHandler {
	return &AuditHandler{auditService: auditService, auth: auth}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/audit-logs",
		h.auth.RequireAuth(),
		h.auth.RequirePermission(service.PermissionSettings, model.ActionView),
		h.GetAuditLogs)
}

// GetAuditLogs fetches the system-wide audit trail, newest first
// @Summary      Get Audit Logs
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        page    query     int     false  "Page number"
// @Param        limit   query     int     false  "Items per page"
// @Param        action  query     string  false  "Filter by action, e.g. UPDATE_ROLE_MODULES"
// @Success      200     {object}  response.Response{data=[]service.AuditLogResponse}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), c.Query("action"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, logs, p, total)
}
