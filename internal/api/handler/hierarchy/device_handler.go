package hierarchy

import (
	"net/http"

	"github.com/BrunoGao/release-sub004/internal/api/middleware"
	"github.com/BrunoGao/release-sub004/internal/model"
	"github.com/BrunoGao/release-sub004/internal/service/hierarchy"
	"github.com/gin-gonic/gin"
)

type DeviceHandler struct {
	queryService *hierarchy.QueryService
}

func NewDeviceHandler(queryService *hierarchy.QueryService) *DeviceHandler {
	return &DeviceHandler{queryService: queryService}
}

// GetDeviceOwner 查询设备当前佩戴者
// @Summary 查询设备佩戴者
// @Tags devices
// @Produce json
// @Param id path int true "Device ID"
// @Success 200 {object} model.Response
// @Router /api/devices/{id}/owner [get]
func (h *DeviceHandler) GetDeviceOwner(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	deviceID, ok := parseIDParam(c)
	if !ok {
		return
	}

	userID, err := h.queryService.GetDeviceOwner(c.Request.Context(), deviceID, tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, model.Error(http.StatusNotFound, "Device not found"))
		return
	}
	c.JSON(http.StatusOK, model.Success(gin.H{"userId": userID}))
}

// GetDeviceOrg 查询设备归属的部门
// @Summary 查询设备归属部门
// @Tags devices
// @Produce json
// @Param id path int true "Device ID"
// @Success 200 {object} model.Response
// @Router /api/devices/{id}/org [get]
func (h *DeviceHandler) GetDeviceOrg(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	deviceID, ok := parseIDParam(c)
	if !ok {
		return
	}

	orgID, err := h.queryService.GetDeviceOrg(c.Request.Context(), deviceID, tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, model.Error(http.StatusNotFound, "Device not found"))
		return
	}
	c.JSON(http.StatusOK, model.Success(gin.H{"orgId": orgID}))
}
