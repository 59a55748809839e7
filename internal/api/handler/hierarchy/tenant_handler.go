package hierarchy

import (
	"net/http"

	"github.com/BrunoGao/release-sub004/internal/model"
	"github.com/BrunoGao/release-sub004/internal/service/hierarchy"
	"github.com/gin-gonic/gin"
)

type TenantHandler struct {
	queryService *hierarchy.QueryService
}

func NewTenantHandler(queryService *hierarchy.QueryService) *TenantHandler {
	return &TenantHandler{queryService: queryService}
}

// GetTenantUsers 查询租户全部用户ID
// @Summary 查询租户全部用户
// @Tags tenants
// @Produce json
// @Param id path int true "Tenant ID"
// @Success 200 {object} model.Response
// @Router /api/tenants/{id}/users [get]
func (h *TenantHandler) GetTenantUsers(c *gin.Context) {
	// 租户接口以路径参数为准，不读 X-Tenant-ID
	tenantID, ok := parseIDParam(c)
	if !ok {
		return
	}

	ids, err := h.queryService.GetTenantUsers(c.Request.Context(), tenantID)
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "Failed to fetch tenant users")
		return
	}
	c.JSON(http.StatusOK, model.Success(gin.H{"userIds": ids}))
}

// GetTenantOrgs 查询租户全部组织ID
// @Summary 查询租户全部组织
// @Tags tenants
// @Produce json
// @Param id path int true "Tenant ID"
// @Success 200 {object} model.Response
// @Router /api/tenants/{id}/orgs [get]
func (h *TenantHandler) GetTenantOrgs(c *gin.Context) {
	tenantID, ok := parseIDParam(c)
	if !ok {
		return
	}

	ids, err := h.queryService.GetTenantOrgs(c.Request.Context(), tenantID)
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "Failed to fetch tenant orgs")
		return
	}
	c.JSON(http.StatusOK, model.Success(gin.H{"orgIds": ids}))
}
