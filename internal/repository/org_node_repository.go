package repository

import (
	"context"

	"github.com/BrunoGao/release-sub004/internal/model"
	"gorm.io/gorm"
)

type OrgNodeRepository struct {
	db *gorm.DB
}

func NewOrgNodeRepository(db *gorm.DB) *OrgNodeRepository {
	return &OrgNodeRepository{db: db}
}

// FindByID 根据ID查找组织节点
func (r *OrgNodeRepository) FindByID(ctx context.Context, id, tenantID uint64) (*model.OrgNode, error) {
	var node model.OrgNode
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ? AND is_deleted = 0", id, tenantID).
		First(&node).Error
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// FindByTenant 查找租户全部组织节点
func (r *OrgNodeRepository) FindByTenant(ctx context.Context, tenantID uint64) ([]model.OrgNode, error) {
	var nodes []model.OrgNode
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_deleted = 0", tenantID).
		Order("level ASC, sort_order ASC, created_at ASC").
		Find(&nodes).Error
	return nodes, err
}

// FindIDsByTenant 查找租户全部组织节点ID
func (r *OrgNodeRepository) FindIDsByTenant(ctx context.Context, tenantID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&model.OrgNode{}).
		Where("tenant_id = ? AND is_deleted = 0", tenantID).
		Pluck("id", &ids).Error
	return ids, err
}

// CheckCodeExists 检查组织标识符在租户内是否已存在
func (r *OrgNodeRepository) CheckCodeExists(ctx context.Context, code string, tenantID, excludeID uint64) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&model.OrgNode{}).
		Where("code = ? AND tenant_id = ? AND is_deleted = 0", code, tenantID)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// BuildOrgTree 构建组织树（内存组装，不回表）
// 自底向上递归挂载：节点先挂满自己的子节点，再作为值拷贝挂到父节点下，
// 保证返回的根节点里能看到完整的多级子树
func (r *OrgNodeRepository) BuildOrgTree(nodes []model.OrgNode) []model.OrgNode {
	if len(nodes) == 0 {
		return []model.OrgNode{}
	}

	ids := make(map[uint64]bool, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = true
	}

	byParent := make(map[uint64][]model.OrgNode)
	var roots []model.OrgNode
	for _, n := range nodes {
		if n.ParentID == 0 || !ids[n.ParentID] {
			// 父节点不在本批数据里（被过滤或已删除），按根展示
			roots = append(roots, n)
		} else {
			byParent[n.ParentID] = append(byParent[n.ParentID], n)
		}
	}

	var attach func(node *model.OrgNode)
	attach = func(node *model.OrgNode) {
		node.Children = []model.OrgNode{}
		for _, child := range byParent[node.ID] {
			attach(&child)
			node.Children = append(node.Children, child)
		}
	}
	for i := range roots {
		attach(&roots[i])
	}
	return roots
}
