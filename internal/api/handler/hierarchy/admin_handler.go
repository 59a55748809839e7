package hierarchy

import (
	"context"
	"net/http"

	"github.com/BrunoGao/release-sub004/internal/api/middleware"
	"github.com/BrunoGao/release-sub004/internal/cache"
	"github.com/BrunoGao/release-sub004/internal/model"
	"github.com/BrunoGao/release-sub004/internal/service/hierarchy"
	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	hierarchyService *hierarchy.HierarchyService
	queryService     *hierarchy.QueryService
	warmupService    *hierarchy.WarmupService
}

func NewAdminHandler(
	hierarchyService *hierarchy.HierarchyService,
	queryService *hierarchy.QueryService,
	warmupService *hierarchy.WarmupService,
) *AdminHandler {
	return &AdminHandler{
		hierarchyService: hierarchyService,
		queryService:     queryService,
		warmupService:    warmupService,
	}
}

// CheckConsistency 闭包表一致性检查（只读）
// @Summary 闭包表一致性检查
// @Tags admin
// @Produce json
// @Success 200 {object} model.Response
// @Router /api/admin/consistency/check [get]
func (h *AdminHandler) CheckConsistency(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	report, err := h.hierarchyService.CheckConsistency(c.Request.Context(), tenantID)
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "Consistency check failed")
		return
	}
	c.JSON(http.StatusOK, model.Success(report))
}

// RepairConsistency 闭包表一致性修复
// @Summary 闭包表一致性修复
// @Tags admin
// @Produce json
// @Success 200 {object} model.Response
// @Router /api/admin/consistency/repair [post]
func (h *AdminHandler) RepairConsistency(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	report, err := h.hierarchyService.RepairConsistency(c.Request.Context(), tenantID)
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "Consistency repair failed")
		return
	}
	c.JSON(http.StatusOK, model.Success(report))
}

// ManualWarmup 手动触发全量缓存预热
// @Summary 手动触发缓存预热
// @Tags admin
// @Produce json
// @Success 200 {object} model.Response
// @Router /api/admin/cache/warmup [post]
func (h *AdminHandler) ManualWarmup(c *gin.Context) {
	// 预热可能耗时较长，异步执行，立即返回
	go h.warmupService.ManualWarmup(context.Background())

	c.JSON(http.StatusOK, model.Success(gin.H{"started": true}))
}

// WarmupStatus 查询预热状态
// @Summary 查询缓存预热状态
// @Tags admin
// @Produce json
// @Success 200 {object} model.Response
// @Router /api/admin/cache/warmup/status [get]
func (h *AdminHandler) WarmupStatus(c *gin.Context) {
	c.JSON(http.StatusOK, model.Success(gin.H{"completed": h.warmupService.IsWarmupCompleted()}))
}

// RefreshCacheRequest 定向缓存刷新请求
type RefreshCacheRequest struct {
	Kind      string `json:"kind"`
	SubjectID uint64 `json:"subjectId"`
}

// RefreshCache 刷新缓存
// 请求体指定 kind+subjectId 时做定向失效并立即重建；
// 空请求体时刷新全部短TTL热数据
// @Summary 刷新缓存
// @Tags admin
// @Accept json
// @Produce json
// @Success 200 {object} model.Response
// @Router /api/admin/cache/refresh [post]
func (h *AdminHandler) RefreshCache(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req RefreshCacheRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.Kind != "" {
		if err := h.queryService.RefreshCache(c.Request.Context(), cache.RelationKind(req.Kind), tenantID, req.SubjectID); err != nil {
			model.HandleError(c, http.StatusInternalServerError, err, "Cache refresh failed")
			return
		}
		c.JSON(http.StatusOK, model.Success(gin.H{"refreshed": req.Kind}))
		return
	}

	h.warmupService.RefreshHotData(c.Request.Context())
	c.JSON(http.StatusOK, model.Success(gin.H{"refreshed": "hot_data"}))
}
