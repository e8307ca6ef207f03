package handler

import (
	"net/http"
	"time"

	"schoolhub/internal/middleware"
	"schoolhub/internal/model"
	"schoolhub/internal/modules"
	"schoolhub/internal/service"
	"schoolhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
	revenueService    service.RevenueService
	auth              *middleware.Auth
}

func NewStatisticsHandler(statisticsService service.StatisticsService, revenueService service.RevenueService, auth *middleware.Auth) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService, revenueService: revenueService, auth: auth}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	statsGroup := router.Group("/api/statistics")
	statsGroup.Use(h.auth.RequireAuth())
	{
		statsGroup.GET("", h.auth.LoadGrants(), h.GetStatistics)
		statsGroup.GET("/revenue",
			h.auth.RequireModule(modules.Fees),
			h.auth.RequirePermission(string(modules.Fees), model.ActionView),
			h.GetRevenueStatistics)
	}
}

// dateRange reads start_date and end_date, defaulting to the current month
// so far. It writes the 400 itself and returns ok=false on a bad value.
func dateRange(c *gin.Context) (start, end time.Time, ok bool) {
	now := time.Now()
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end = now

	var err error
	if raw := c.Query("start_date"); raw != "" {
		if start, err = time.Parse(time.RFC3339, raw); err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid start_date format, expected RFC3339"))
			return start, end, false
		}
	}
	if raw := c.Query("end_date"); raw != "" {
		if end, err = time.Parse(time.RFC3339, raw); err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid end_date format, expected RFC3339"))
			return start, end, false
		}
	}
	return start, end, true
}

// @Summary      Get Dashboard Statistics
// @Description  Exam, fee and recruitment figures for the caller's visible modules, bounded by time
// @Tags         Statistics
// @Produce      json
// @Param        start_date query string false "Start Date (RFC3339)"
// @Param        end_date   query string false "End Date (RFC3339)"
// @Success      200 {object} response.Response{data=model.DashboardStatistics}
// @Failure      400 {object} response.Response "Invalid date format"
// @Failure      401 {object} response.Response "Unauthorized"
// @Failure      500 {object} response.Response "Internal server error"
// @Security     BearerAuth
// @Router       /api/statistics [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	startDate, endDate, ok := dateRange(c)
	if !ok {
		return
	}

	vis := modules.Default()
	if g := middleware.CurrentGrants(c); g != nil {
		vis = g.Modules
	}

	stats, err := h.statisticsService.GetStatistics(c.Request.Context(), vis, startDate, endDate)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// GetRevenueStatistics returns fee billing and collection grouped by period
// @Summary      Get fee revenue
// @Tags         Statistics
// @Security     BearerAuth
// @Produce      json
// @Param        group_by    query     string  false  "Group by period: week, month, quarter, year (default: month)"
// @Param        start_date  query     string  false  "Start date (RFC3339)"
// @Param        end_date    query     string  false  "End date (RFC3339)"
// @Success      200         {object}  response.Response{data=[]service.RevenueDataPoint}
// @Failure      400         {object}  response.Response
// @Router       /api/statistics/revenue [get]
func (h *StatisticsHandler) GetRevenueStatistics(c *gin.Context) {
	startDate, endDate, ok := dateRange(c)
	if !ok {
		return
	}

	data, err := h.revenueService.GetFeeRevenue(c.Request.Context(), service.RevenueFilter{
		GroupBy:   c.Query("group_by"),
		StartDate: startDate,
		EndDate:   endDate,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, data))
}
