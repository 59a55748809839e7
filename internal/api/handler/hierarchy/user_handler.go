package hierarchy

import (
	"net/http"

	"github.com/BrunoGao/release-sub004/internal/api/middleware"
	"github.com/BrunoGao/release-sub004/internal/model"
	"github.com/BrunoGao/release-sub004/internal/service/hierarchy"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	queryService *hierarchy.QueryService
}

func NewUserHandler(queryService *hierarchy.QueryService) *UserHandler {
	return &UserHandler{queryService: queryService}
}

// GetUserOrgs 查询用户所属的部门ID
// @Summary 查询用户所属部门
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} model.Response
// @Router /api/users/{id}/orgs [get]
func (h *UserHandler) GetUserOrgs(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID, ok := parseIDParam(c)
	if !ok {
		return
	}

	ids, err := h.queryService.GetOrgsForUser(c.Request.Context(), userID, tenantID)
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "Failed to fetch user orgs")
		return
	}
	c.JSON(http.StatusOK, model.Success(gin.H{"orgIds": ids}))
}

// GetUserDevices 查询用户绑定的设备ID
// @Summary 查询用户绑定设备
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} model.Response
// @Router /api/users/{id}/devices [get]
func (h *UserHandler) GetUserDevices(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID, ok := parseIDParam(c)
	if !ok {
		return
	}

	ids, err := h.queryService.GetUserDevices(c.Request.Context(), userID, tenantID)
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "Failed to fetch user devices")
		return
	}
	c.JSON(http.StatusOK, model.Success(gin.H{"deviceIds": ids}))
}

// GetUserRelations 查询用户完整关系快照
// @Summary 查询用户完整关系快照
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} model.Response
// @Router /api/users/{id}/relations [get]
func (h *UserHandler) GetUserRelations(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID, ok := parseIDParam(c)
	if !ok {
		return
	}

	relations := h.queryService.GetUserCompleteRelations(c.Request.Context(), userID, tenantID)
	c.JSON(http.StatusOK, model.Success(relations))
}

// GetUserLatestHealth 查询用户最新健康读数
// @Summary 查询用户最新健康读数
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} model.Response
// @Router /api/users/{id}/health/latest [get]
func (h *UserHandler) GetUserLatestHealth(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID, ok := parseIDParam(c)
	if !ok {
		return
	}

	reading, err := h.queryService.GetUserLatestHealth(c.Request.Context(), userID, tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, model.Error(http.StatusNotFound, "No health data found"))
		return
	}
	c.JSON(http.StatusOK, model.Success(reading))
}

// GetUserActiveAlerts 查询用户活跃告警
// @Summary 查询用户活跃告警
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} model.Response
// @Router /api/users/{id}/alerts [get]
func (h *UserHandler) GetUserActiveAlerts(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID, ok := parseIDParam(c)
	if !ok {
		return
	}

	alerts, err := h.queryService.GetUserActiveAlerts(c.Request.Context(), userID, tenantID)
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "Failed to fetch active alerts")
		return
	}
	c.JSON(http.StatusOK, model.Success(alerts))
}

// BatchGetUserDevices 批量查询多个用户的设备
// @Summary 批量查询用户设备
// @Tags users
// @Accept json
// @Produce json
// @Success 200 {object} model.Response
// @Router /api/users/devices/batch [post]
func (h *UserHandler) BatchGetUserDevices(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req struct {
		UserIDs []uint64 `json:"userIds" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.Error(http.StatusBadRequest, "Invalid request body: "+err.Error()))
		return
	}

	result, err := h.queryService.BatchGetUserDevices(c.Request.Context(), req.UserIDs, tenantID)
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "Failed to batch fetch user devices")
		return
	}
	c.JSON(http.StatusOK, model.Success(result))
}
