package hierarchy

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/BrunoGao/release-sub004/internal/api/middleware"
	"github.com/BrunoGao/release-sub004/internal/model"
	"github.com/BrunoGao/release-sub004/internal/repository"
	"github.com/BrunoGao/release-sub004/internal/service/hierarchy"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type OrgHandler struct {
	hierarchyService *hierarchy.HierarchyService
	queryService     *hierarchy.QueryService
	closureRepo      *repository.ClosureRepository
	orgRepo          *repository.OrgNodeRepository
}

func NewOrgHandler(
	hierarchyService *hierarchy.HierarchyService,
	queryService *hierarchy.QueryService,
	closureRepo *repository.ClosureRepository,
	orgRepo *repository.OrgNodeRepository,
) *OrgHandler {
	return &OrgHandler{
		hierarchyService: hierarchyService,
		queryService:     queryService,
		closureRepo:      closureRepo,
		orgRepo:          orgRepo,
	}
}

// CreateOrg 创建组织节点
// @Summary 创建组织节点
// @Tags orgs
// @Accept json
// @Produce json
// @Param org body model.CreateOrgNodeRequest true "Org node"
// @Success 200 {object} model.Response
// @Router /api/orgs [post]
func (h *OrgHandler) CreateOrg(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req model.CreateOrgNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.Error(http.StatusBadRequest, "Invalid request body: "+err.Error()))
		return
	}

	// 检查组织标识符是否已存在
	exists, err := h.orgRepo.CheckCodeExists(c.Request.Context(), req.Code, tenantID, 0)
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "Failed to check org code")
		return
	}
	if exists {
		c.JSON(http.StatusBadRequest, model.Error(http.StatusBadRequest, "Org code already exists"))
		return
	}

	node := &model.OrgNode{
		Name:      req.Name,
		Code:      req.Code,
		SortOrder: req.SortOrder,
		Status:    model.OrgStatusActive,
	}
	nodeID, err := h.hierarchyService.InsertNode(c.Request.Context(), node, req.ParentID, tenantID)
	if err != nil {
		h.writeMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Success(gin.H{"id": nodeID}))
}

// BatchCreateOrgs 批量创建组织节点（父节点必须排在子节点之前）
// @Summary 批量创建组织节点
// @Tags orgs
// @Accept json
// @Produce json
// @Param orgs body model.BatchCreateOrgNodesRequest true "Org nodes"
// @Success 200 {object} model.Response
// @Router /api/orgs/batch [post]
func (h *OrgHandler) BatchCreateOrgs(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req model.BatchCreateOrgNodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.Error(http.StatusBadRequest, "Invalid request body: "+err.Error()))
		return
	}

	nodes := make([]*model.OrgNode, 0, len(req.Nodes))
	parentIDs := make([]uint64, 0, len(req.Nodes))
	for _, item := range req.Nodes {
		nodes = append(nodes, &model.OrgNode{
			Name:      item.Name,
			Code:      item.Code,
			SortOrder: item.SortOrder,
			Status:    model.OrgStatusActive,
		})
		parentIDs = append(parentIDs, item.ParentID)
	}

	ids, err := h.hierarchyService.BatchInsertNodes(c.Request.Context(), nodes, parentIDs, tenantID)
	if err != nil {
		// 部分成功时把已创建的ID一并返回
		c.JSON(http.StatusBadRequest, model.Response{
			Code:    http.StatusBadRequest,
			Message: err.Error(),
			Data:    gin.H{"ids": ids},
		})
		return
	}

	c.JSON(http.StatusOK, model.Success(gin.H{"ids": ids}))
}

// DeleteOrg 删除组织子树
// @Summary 删除组织子树（默认软删除，hard=true 物理删除）
// @Tags orgs
// @Produce json
// @Param id path int true "Org ID"
// @Param hard query boolean false "物理删除"
// @Success 200 {object} model.Response
// @Router /api/orgs/{id} [delete]
func (h *OrgHandler) DeleteOrg(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	orgID, ok := parseIDParam(c)
	if !ok {
		return
	}
	hard := c.Query("hard") == "true"

	affected, err := h.hierarchyService.DeleteSubtree(c.Request.Context(), orgID, tenantID, hard)
	if err != nil {
		h.writeMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Success(gin.H{"affected": affected}))
}

// MoveOrg 移动组织子树到新父节点下
// @Summary 移动组织子树
// @Tags orgs
// @Accept json
// @Produce json
// @Param id path int true "Org ID"
// @Param move body model.MoveOrgNodeRequest true "New parent"
// @Success 200 {object} model.Response
// @Router /api/orgs/{id}/move [put]
func (h *OrgHandler) MoveOrg(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	orgID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req model.MoveOrgNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.Error(http.StatusBadRequest, "Invalid request body: "+err.Error()))
		return
	}

	moved, err := h.hierarchyService.MoveSubtree(c.Request.Context(), orgID, req.NewParentID, tenantID)
	if err != nil {
		h.writeMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Success(gin.H{"moved": moved}))
}

// GetDescendants 查询组织的全部后代（按深度升序）
// @Summary 查询组织后代
// @Tags orgs
// @Produce json
// @Param id path int true "Org ID"
// @Success 200 {object} model.Response
// @Router /api/orgs/{id}/descendants [get]
func (h *OrgHandler) GetDescendants(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	orgID, ok := parseIDParam(c)
	if !ok {
		return
	}

	nodes, err := h.closureRepo.GetDescendants(c.Request.Context(), orgID, tenantID)
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "Failed to fetch descendants")
		return
	}
	c.JSON(http.StatusOK, model.Success(nodes))
}

// GetAncestors 查询组织的祖先链（近祖先在前）
// @Summary 查询组织祖先链
// @Tags orgs
// @Produce json
// @Param id path int true "Org ID"
// @Success 200 {object} model.Response
// @Router /api/orgs/{id}/ancestors [get]
func (h *OrgHandler) GetAncestors(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	orgID, ok := parseIDParam(c)
	if !ok {
		return
	}

	nodes, err := h.closureRepo.GetAncestors(c.Request.Context(), orgID, tenantID)
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "Failed to fetch ancestors")
		return
	}
	c.JSON(http.StatusOK, model.Success(nodes))
}

// GetChildren 查询组织的直接子节点
// @Summary 查询组织直接子节点
// @Tags orgs
// @Produce json
// @Param id path int true "Org ID"
// @Success 200 {object} model.Response
// @Router /api/orgs/{id}/children [get]
func (h *OrgHandler) GetChildren(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	orgID, ok := parseIDParam(c)
	if !ok {
		return
	}

	nodes, err := h.closureRepo.GetChildren(c.Request.Context(), orgID, tenantID)
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "Failed to fetch children")
		return
	}
	c.JSON(http.StatusOK, model.Success(nodes))
}

// GetParent 查询组织的父节点
// @Summary 查询组织父节点
// @Tags orgs
// @Produce json
// @Param id path int true "Org ID"
// @Success 200 {object} model.Response
// @Router /api/orgs/{id}/parent [get]
func (h *OrgHandler) GetParent(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	orgID, ok := parseIDParam(c)
	if !ok {
		return
	}

	parent, err := h.closureRepo.GetParent(c.Request.Context(), orgID, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, model.Error(http.StatusNotFound, "Parent not found"))
			return
		}
		model.HandleError(c, http.StatusInternalServerError, err, "Failed to fetch parent")
		return
	}
	c.JSON(http.StatusOK, model.Success(parent))
}

// GetOrgTree 查询租户的组织树
// @Summary 查询租户组织树
// @Tags orgs
// @Produce json
// @Success 200 {object} model.Response
// @Router /api/orgs/tree [get]
func (h *OrgHandler) GetOrgTree(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	nodes, err := h.orgRepo.FindByTenant(c.Request.Context(), tenantID)
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "Failed to fetch org tree")
		return
	}
	c.JSON(http.StatusOK, model.Success(h.orgRepo.BuildOrgTree(nodes)))
}

// GetOrgUsers 查询组织（含子部门）下的用户ID
// @Summary 查询组织下的用户
// @Tags orgs
// @Produce json
// @Param id path int true "Org ID"
// @Success 200 {object} model.Response
// @Router /api/orgs/{id}/users [get]
func (h *OrgHandler) GetOrgUsers(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	orgID, ok := parseIDParam(c)
	if !ok {
		return
	}

	ids, err := h.queryService.GetUsersUnderOrg(c.Request.Context(), orgID, tenantID)
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "Failed to fetch org users")
		return
	}
	c.JSON(http.StatusOK, model.Success(gin.H{"userIds": ids}))
}

// GetOrgDevices 查询组织（含子部门）下的设备ID
// @Summary 查询组织下的设备
// @Tags orgs
// @Produce json
// @Param id path int true "Org ID"
// @Success 200 {object} model.Response
// @Router /api/orgs/{id}/devices [get]
func (h *OrgHandler) GetOrgDevices(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	orgID, ok := parseIDParam(c)
	if !ok {
		return
	}

	ids, err := h.queryService.GetDevicesUnderOrg(c.Request.Context(), orgID, tenantID)
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "Failed to fetch org devices")
		return
	}
	c.JSON(http.StatusOK, model.Success(gin.H{"deviceIds": ids}))
}

// GetOrgSummary 查询组织健康汇总
// @Summary 查询组织健康汇总
// @Tags orgs
// @Produce json
// @Param id path int true "Org ID"
// @Success 200 {object} model.Response
// @Router /api/orgs/{id}/summary [get]
func (h *OrgHandler) GetOrgSummary(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	orgID, ok := parseIDParam(c)
	if !ok {
		return
	}

	summary, err := h.queryService.GetOrgHealthSummary(c.Request.Context(), orgID, tenantID)
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "Failed to fetch org health summary")
		return
	}
	c.JSON(http.StatusOK, model.Success(summary))
}

// GetOrgRelations 查询组织完整关系快照
// @Summary 查询组织完整关系快照
// @Tags orgs
// @Produce json
// @Param id path int true "Org ID"
// @Success 200 {object} model.Response
// @Router /api/orgs/{id}/relations [get]
func (h *OrgHandler) GetOrgRelations(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	orgID, ok := parseIDParam(c)
	if !ok {
		return
	}

	relations := h.queryService.GetOrgCompleteRelations(c.Request.Context(), orgID, tenantID)
	c.JSON(http.StatusOK, model.Success(relations))
}

// BatchGetOrgUsers 批量查询多个组织下的用户
// @Summary 批量查询组织下的用户
// @Tags orgs
// @Accept json
// @Produce json
// @Success 200 {object} model.Response
// @Router /api/orgs/users/batch [post]
func (h *OrgHandler) BatchGetOrgUsers(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req struct {
		OrgIDs []uint64 `json:"orgIds" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.Error(http.StatusBadRequest, "Invalid request body: "+err.Error()))
		return
	}

	result, err := h.queryService.BatchGetOrgUsers(c.Request.Context(), req.OrgIDs, tenantID)
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "Failed to batch fetch org users")
		return
	}
	c.JSON(http.StatusOK, model.Success(result))
}

// writeMutationError 把仓库层校验错误映射为对应的HTTP状态
func (h *OrgHandler) writeMutationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrParentNotFound), errors.Is(err, repository.ErrNodeNotFound):
		c.JSON(http.StatusNotFound, model.Error(http.StatusNotFound, err.Error()))
	case errors.Is(err, repository.ErrSelfMove), errors.Is(err, repository.ErrCycleDetected):
		c.JSON(http.StatusBadRequest, model.Error(http.StatusBadRequest, err.Error()))
	default:
		model.HandleError(c, http.StatusInternalServerError, err, "Org mutation failed")
	}
}

// parseIDParam 解析路径中的数字ID
func parseIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, model.Error(http.StatusBadRequest, "Invalid id"))
		return 0, false
	}
	return id, true
}
