package handler

import (
	"net/http"

	"schoolhub/internal/middleware"
	"schoolhub/internal/service"
	"schoolhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type RoleHandler struct {
	roleService   service.RoleService
	moduleService service.ModuleService
	auth          *middleware.Auth
}

func NewRoleHandler(roleService service.RoleService, moduleService service.ModuleService, auth *middleware.Auth) *RoleHandler {
	return &RoleHandler{roleService: roleService, moduleService: moduleService, auth: auth}
}

// roleModulesEnvelope is the standard envelope plus the module keys the
// settings screen offers as toggles
type roleModulesEnvelope struct {
	response.Response
	AvailableModules []string `json:"available_modules"`
}

func (h *RoleHandler) RegisterRoutes(router *gin.RouterGroup) {
	roles := router.Group("/api/roles")
	roles.Use(h.auth.RequireAuth(), h.auth.RequireMethodPermission(service.PermissionSettings))
	{
		roles.GET("", h.ListRoles)
		roles.POST("", h.CreateRole)
		roles.GET("/permissions", h.ListPermissions)
		roles.GET("/modules", h.ListRoleModules)
		roles.GET("/:id", h.GetRole)
		roles.PUT("/:id", h.UpdateRole)
		roles.DELETE("/:id", h.DeleteRole)
		roles.PUT("/:id/permissions", h.UpdateRolePermissions)
		roles.PUT("/:id/modules", h.UpdateRoleModules)
	}
}

// ListRoles returns all roles with their module maps
// @Summary      List roles
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.RoleResponse}
// @Router       /api/roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roleService.ListRoles(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, roles))
}

// GetRole returns a single role by ID
// @Summary      Get role
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Role ID"
// @Success      200  {object}  response.Response{data=service.RoleResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/roles/{id} [get]
func (h *RoleHandler) GetRole(c *gin.Context) {
	role, err := h.roleService.GetRole(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, role))
}

// CreateRole creates a new custom role
// @Summary      Create role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateRoleRequest  true  "Role"
// @Success      201      {object}  response.Response{data=service.RoleResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/roles [post]
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req service.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	role, err := h.roleService.CreateRole(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, role))
}

// UpdateRole renames a role or changes its description
// @Summary      Update role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "Role ID"
// @Param        payload  body      service.UpdateRoleRequest  true  "Role"
// @Success      200      {object}  response.Response{data=service.RoleResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/roles/{id} [put]
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	var req service.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	role, err := h.roleService.UpdateRole(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, role))
}

// DeleteRole deletes a non-system role that no user holds
// @Summary      Delete role
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Role ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/roles/{id} [delete]
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	if err := h.roleService.DeleteRole(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, "Role deleted successfully", nil))
}

// ListPermissions returns every role and its permission rows
// @Summary      List permissions
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.PermissionsOverview}
// @Router       /api/roles/permissions [get]
func (h *RoleHandler) ListPermissions(c *gin.Context) {
	overview, err := h.roleService.ListPermissions(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, overview))
}

// UpdateRolePermissions replaces a role's permission matrix
// @Summary      Replace role permissions
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                   true  "Role ID"
// @Param        payload  body      []service.PermissionRow  true  "Full permission set"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/roles/{id}/permissions [put]
func (h *RoleHandler) UpdateRolePermissions(c *gin.Context) {
	var rows []service.PermissionRow
	if err := c.ShouldBindJSON(&rows); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.roleService.UpdateRolePermissions(c.Request.Context(), middleware.UserID(c), c.Param("id"), rows); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, "Permissions updated successfully", nil))
}

// ListRoleModules returns each role's module map and the available keys
// @Summary      List role modules
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  roleModulesEnvelope{data=[]service.RoleModulesResponse}
// @Router       /api/roles/modules [get]
func (h *RoleHandler) ListRoleModules(c *gin.Context) {
	list, available, err := h.moduleService.ListRoleModules(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, roleModulesEnvelope{
		Response:         response.Success(http.StatusOK, list),
		AvailableModules: available,
	})
}

// UpdateRoleModules stores a role's full module map
// @Summary      Update role modules
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                            true  "Role ID"
// @Param        payload  body      service.UpdateRoleModulesRequest  true  "Full module map"
// @Success      200      {object}  response.Response{data=service.RoleModulesResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/roles/{id}/modules [put]
func (h *RoleHandler) UpdateRoleModules(c *gin.Context) {
	var req service.UpdateRoleModulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.moduleService.UpdateRoleModules(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, "Module settings saved successfully", res))
}
