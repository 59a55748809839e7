package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/BrunoGao/release-sub004/internal/model"
	"gorm.io/gorm"
)

// 结构变更的校验类错误：写入前拒绝，调用方不改输入重试无意义
var (
	ErrParentNotFound = errors.New("parent org node not found")
	ErrNodeNotFound   = errors.New("org node not found")
	ErrSelfMove       = errors.New("cannot move an org node under itself")
	ErrCycleDetected  = errors.New("move rejected: target parent is a descendant of the node")
)

// ClosureRepository 组织闭包表的唯一属主
// org_nodes 与 org_closure 两张表只由这里写入；所有变更在单事务内完成，
// 失败整体回滚。租户级串行化由上层 HierarchyService 的租户锁保证
type ClosureRepository struct {
	db *gorm.DB
}

func NewClosureRepository(db *gorm.DB) *ClosureRepository {
	return &ClosureRepository{db: db}
}

// InsertNode 插入组织节点
// level = 父节点level+1（无父节点时为0）；节点行、自环、祖先边在同一事务内写入
func (r *ClosureRepository) InsertNode(ctx context.Context, node *model.OrgNode, parentID, tenantID uint64) (uint64, error) {
	node.TenantID = tenantID
	node.ParentID = parentID
	node.IsDeleted = 0
	if node.Status == 0 {
		node.Status = model.OrgStatusActive
	}

	var parentChain []Edge
	if parentID != 0 {
		parent, err := r.findActiveNode(ctx, parentID, tenantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, ErrParentNotFound
			}
			return 0, err
		}
		node.Level = parent.Level + 1

		parentChain, err = r.ancestorChain(ctx, parentID, tenantID)
		if err != nil {
			return 0, err
		}
	} else {
		node.Level = 0
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(node).Error; err != nil {
			return err
		}

		edges := DeriveInsertEdges(parentChain, node.ID)
		rows := make([]model.ClosureEdge, 0, len(edges))
		for _, e := range edges {
			rows = append(rows, model.ClosureEdge{
				AncestorID:   e.AncestorID,
				DescendantID: e.DescendantID,
				Depth:        e.Depth,
				TenantID:     tenantID,
			})
		}
		return tx.CreateInBatches(rows, 200).Error
	})
	if err != nil {
		return 0, fmt.Errorf("insert org node failed: %w", err)
	}
	return node.ID, nil
}

// BatchInsertNodes 批量插入组织节点
// 调用方必须保证父节点排在子节点之前。逐节点独立事务；
// 中途失败时中止剩余节点，返回已成功的数量和ID列表
func (r *ClosureRepository) BatchInsertNodes(ctx context.Context, nodes []*model.OrgNode, parentIDs []uint64, tenantID uint64) ([]uint64, error) {
	ids := make([]uint64, 0, len(nodes))
	for i, node := range nodes {
		id, err := r.InsertNode(ctx, node, parentIDs[i], tenantID)
		if err != nil {
			return ids, fmt.Errorf("batch insert aborted at node %d of %d (%d succeeded): %w",
				i+1, len(nodes), len(ids), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DeleteSubtree 删除组织子树
// 后代集合来自闭包表（depth>=0）。软删除标记 is_deleted=1/status=0；
// 硬删除额外清除 user_orgs 关联并物理删除节点行。两种方式都会删掉
// 祖先或后代落在受影响集合内的全部闭包边。
// 节点不存在时返回 0，不视为错误
func (r *ClosureRepository) DeleteSubtree(ctx context.Context, nodeID, tenantID uint64, hard bool) (int64, error) {
	ids, err := r.subtreeIDs(ctx, nodeID, tenantID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		// 闭包中无自环，再确认节点行确实不存在
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.OrgNode{}).
			Where("id = ? AND tenant_id = ?", nodeID, tenantID).
			Count(&count).Error; err != nil {
			return 0, err
		}
		if count == 0 {
			return 0, nil
		}
		// 自环缺失的脏数据：至少删除该节点本身
		ids = []uint64{nodeID}
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if hard {
			if err := tx.Where("tenant_id = ? AND org_id IN ?", tenantID, ids).
				Delete(&model.UserOrg{}).Error; err != nil {
				return err
			}
			if err := tx.Where("tenant_id = ? AND id IN ?", tenantID, ids).
				Delete(&model.OrgNode{}).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Model(&model.OrgNode{}).
				Where("tenant_id = ? AND id IN ?", tenantID, ids).
				Updates(map[string]interface{}{"is_deleted": 1, "status": model.OrgStatusInactive}).Error; err != nil {
				return err
			}
		}

		return tx.Where("tenant_id = ? AND (ancestor_id IN ? OR descendant_id IN ?)", tenantID, ids, ids).
			Delete(&model.ClosureEdge{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("delete org subtree failed: %w", err)
	}
	return int64(len(ids)), nil
}

// MoveSubtree 移动组织子树到新父节点下
// 校验顺序：节点存在 → 非自移动 → 新父节点存在 → 新父节点不在子树内（防环）。
// 同一事务内：删除跨界旧边（子树内部边保留）、按新父祖先链×子树偏移重建跨界边、
// 更新根节点 parent_id，并对整棵子树按层级差平移 level，保证 depth 与 level 始终一致
func (r *ClosureRepository) MoveSubtree(ctx context.Context, nodeID, newParentID, tenantID uint64) (bool, error) {
	// 存在性最先校验：不存在的节点报 ErrNodeNotFound，而非自移动/环
	node, err := r.findActiveNode(ctx, nodeID, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrNodeNotFound
		}
		return false, err
	}

	if newParentID == nodeID {
		return false, ErrSelfMove
	}

	newParent, err := r.findActiveNode(ctx, newParentID, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrParentNotFound
		}
		return false, err
	}

	// 子树成员及其相对子树根的偏移
	offsets, err := r.subtreeOffsets(ctx, nodeID, tenantID)
	if err != nil {
		return false, err
	}

	// 防环：新父节点不得落在待移动子树内
	if err := ValidateMoveTarget(offsets, nodeID, newParentID); err != nil {
		return false, err
	}

	memberIDs := make([]uint64, 0, len(offsets))
	for id := range offsets {
		memberIDs = append(memberIDs, id)
	}

	newParentChain, err := r.ancestorChain(ctx, newParentID, tenantID)
	if err != nil {
		return false, err
	}

	newLevel := newParent.Level + 1
	levelShift := newLevel - node.Level

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 删除跨界边：后代在子树内、祖先在子树外的所有边。
		// 子树内部边（含自环）结构未变，保留
		if err := tx.Where("tenant_id = ? AND descendant_id IN ? AND ancestor_id NOT IN ?",
			tenantID, memberIDs, memberIDs).
			Delete(&model.ClosureEdge{}).Error; err != nil {
			return err
		}

		edges := DeriveMoveEdges(newParentChain, offsets)
		rows := make([]model.ClosureEdge, 0, len(edges))
		for _, e := range edges {
			rows = append(rows, model.ClosureEdge{
				AncestorID:   e.AncestorID,
				DescendantID: e.DescendantID,
				Depth:        e.Depth,
				TenantID:     tenantID,
			})
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 200).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&model.OrgNode{}).
			Where("id = ? AND tenant_id = ?", nodeID, tenantID).
			Update("parent_id", newParentID).Error; err != nil {
			return err
		}

		// 整棵子树的 level 同步平移（不只是被移动的根）
		if levelShift != 0 {
			if err := tx.Model(&model.OrgNode{}).
				Where("tenant_id = ? AND id IN ?", tenantID, memberIDs).
				Update("level", gorm.Expr("level + ?", levelShift)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("move org subtree failed: %w", err)
	}
	return true, nil
}

// GetDescendants 获取全部后代节点（不含自身），按距离升序
func (r *ClosureRepository) GetDescendants(ctx context.Context, nodeID, tenantID uint64) ([]model.OrgNodeWithDepth, error) {
	var result []model.OrgNodeWithDepth
	err := r.db.WithContext(ctx).
		Table("org_nodes AS n").
		Select("n.*, e.depth").
		Joins("JOIN org_closure e ON e.descendant_id = n.id AND e.tenant_id = n.tenant_id").
		Where("e.ancestor_id = ? AND e.tenant_id = ? AND e.depth > 0 AND n.is_deleted = 0", nodeID, tenantID).
		Order("e.depth ASC, n.sort_order ASC").
		Scan(&result).Error
	return result, err
}

// GetAncestors 获取全部祖先节点（不含自身），由近及远（父节点在前，根在后）
func (r *ClosureRepository) GetAncestors(ctx context.Context, nodeID, tenantID uint64) ([]model.OrgNodeWithDepth, error) {
	var result []model.OrgNodeWithDepth
	err := r.db.WithContext(ctx).
		Table("org_nodes AS n").
		Select("n.*, e.depth").
		Joins("JOIN org_closure e ON e.ancestor_id = n.id AND e.tenant_id = n.tenant_id").
		Where("e.descendant_id = ? AND e.tenant_id = ? AND e.depth > 0 AND n.is_deleted = 0", nodeID, tenantID).
		Order("e.depth ASC").
		Scan(&result).Error
	return result, err
}

// GetChildren 获取直接子节点
func (r *ClosureRepository) GetChildren(ctx context.Context, nodeID, tenantID uint64) ([]model.OrgNode, error) {
	var nodes []model.OrgNode
	err := r.db.WithContext(ctx).
		Where("parent_id = ? AND tenant_id = ? AND is_deleted = 0", nodeID, tenantID).
		Order("sort_order ASC").
		Find(&nodes).Error
	return nodes, err
}

// GetParent 获取直接父节点（根节点返回 ErrNodeNotFound）
func (r *ClosureRepository) GetParent(ctx context.Context, nodeID, tenantID uint64) (*model.OrgNode, error) {
	node, err := r.findActiveNode(ctx, nodeID, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNodeNotFound
		}
		return nil, err
	}
	if node.ParentID == 0 {
		return nil, ErrNodeNotFound
	}
	parent, err := r.findActiveNode(ctx, node.ParentID, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNodeNotFound
		}
		return nil, err
	}
	return parent, nil
}

// IsAncestor 判断 ancestorID 是否为 nodeID 的祖先（含自身）
func (r *ClosureRepository) IsAncestor(ctx context.Context, ancestorID, nodeID, tenantID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ClosureEdge{}).
		Where("tenant_id = ? AND ancestor_id = ? AND descendant_id = ?", tenantID, ancestorID, nodeID).
		Count(&count).Error
	return count > 0, err
}

// GetDescendantIDs 获取全部后代ID（不含自身）
func (r *ClosureRepository) GetDescendantIDs(ctx context.Context, nodeID, tenantID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&model.ClosureEdge{}).
		Where("tenant_id = ? AND ancestor_id = ? AND depth > 0", tenantID, nodeID).
		Order("depth ASC").
		Pluck("descendant_id", &ids).Error
	return ids, err
}

// findActiveNode 查找未删除的节点
func (r *ClosureRepository) findActiveNode(ctx context.Context, nodeID, tenantID uint64) (*model.OrgNode, error) {
	var node model.OrgNode
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ? AND is_deleted = 0", nodeID, tenantID).
		First(&node).Error
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// ancestorChain 获取节点的祖先链（含自环，depth 相对该节点）
func (r *ClosureRepository) ancestorChain(ctx context.Context, nodeID, tenantID uint64) ([]Edge, error) {
	var rows []model.ClosureEdge
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND descendant_id = ?", tenantID, nodeID).
		Order("depth ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	chain := make([]Edge, 0, len(rows))
	for _, row := range rows {
		chain = append(chain, Edge{AncestorID: row.AncestorID, DescendantID: row.DescendantID, Depth: row.Depth})
	}
	return chain, nil
}

// subtreeIDs 获取子树全部成员ID（含根自身，来自闭包自环）
func (r *ClosureRepository) subtreeIDs(ctx context.Context, nodeID, tenantID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&model.ClosureEdge{}).
		Where("tenant_id = ? AND ancestor_id = ?", tenantID, nodeID).
		Pluck("descendant_id", &ids).Error
	return ids, err
}

// subtreeOffsets 获取子树成员相对子树根的深度（含根 offset=0）
func (r *ClosureRepository) subtreeOffsets(ctx context.Context, nodeID, tenantID uint64) (map[uint64]int, error) {
	var rows []model.ClosureEdge
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND ancestor_id = ?", tenantID, nodeID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	offsets := make(map[uint64]int, len(rows))
	for _, row := range rows {
		offsets[row.DescendantID] = row.Depth
	}
	return offsets, nil
}
