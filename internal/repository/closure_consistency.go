package repository

import (
	"context"
	"fmt"

	"github.com/BrunoGao/release-sub004/internal/model"
	"gorm.io/gorm"
)

// CheckConsistency 检查租户闭包表的一致性
// 四项只读检查互相独立：自环完整性、父边完整性、孤儿边、depth正确性，
// 外加节点/边数和最大深度统计。不修改任何数据
func (r *ClosureRepository) CheckConsistency(ctx context.Context, tenantID uint64) (*model.ConsistencyReport, error) {
	report := &model.ConsistencyReport{TenantID: tenantID}
	db := r.db.WithContext(ctx)

	// 1. 自环完整性：每个未删除节点必须有且仅有一条 (n, n, 0) 边
	err := db.Raw(`
		SELECT n.id FROM org_nodes n
		WHERE n.tenant_id = ? AND n.is_deleted = 0
		  AND NOT EXISTS (
			SELECT 1 FROM org_closure e
			WHERE e.tenant_id = n.tenant_id AND e.ancestor_id = n.id
			  AND e.descendant_id = n.id AND e.depth = 0
		  )`, tenantID).Scan(&report.MissingSelfEdges).Error
	if err != nil {
		return nil, fmt.Errorf("self-edge check failed: %w", err)
	}

	// 2. 父边完整性：parent_id 指向存活父节点的节点必须有 depth=1 的父边
	err = db.Raw(`
		SELECT n.id FROM org_nodes n
		JOIN org_nodes p ON p.id = n.parent_id AND p.tenant_id = n.tenant_id
		WHERE n.tenant_id = ? AND n.is_deleted = 0 AND n.parent_id <> 0
		  AND p.is_deleted = 0 AND p.status = 1
		  AND NOT EXISTS (
			SELECT 1 FROM org_closure e
			WHERE e.tenant_id = n.tenant_id AND e.ancestor_id = n.parent_id
			  AND e.descendant_id = n.id AND e.depth = 1
		  )`, tenantID).Scan(&report.MissingParentEdges).Error
	if err != nil {
		return nil, fmt.Errorf("parent-edge check failed: %w", err)
	}

	// 3. 孤儿边：祖先端或后代端引用了不存在或已删除的节点
	err = db.Raw(`
		SELECT e.id FROM org_closure e
		LEFT JOIN org_nodes a ON a.id = e.ancestor_id AND a.tenant_id = e.tenant_id
		LEFT JOIN org_nodes d ON d.id = e.descendant_id AND d.tenant_id = e.tenant_id
		WHERE e.tenant_id = ?
		  AND (a.id IS NULL OR a.is_deleted = 1 OR d.id IS NULL OR d.is_deleted = 1)`,
		tenantID).Scan(&report.OrphanEdges).Error
	if err != nil {
		return nil, fmt.Errorf("orphan-edge check failed: %w", err)
	}

	// 4. depth 正确性：depth 必须等于两端节点的层级差
	err = db.Raw(`
		SELECT e.ancestor_id, e.descendant_id, e.depth, (d.level - a.level) AS expected
		FROM org_closure e
		JOIN org_nodes a ON a.id = e.ancestor_id AND a.tenant_id = e.tenant_id
		JOIN org_nodes d ON d.id = e.descendant_id AND d.tenant_id = e.tenant_id
		WHERE e.tenant_id = ? AND a.is_deleted = 0 AND d.is_deleted = 0
		  AND e.depth <> (d.level - a.level)`, tenantID).Scan(&report.WrongDepthEdges).Error
	if err != nil {
		return nil, fmt.Errorf("depth check failed: %w", err)
	}

	// 聚合统计
	if err := db.Model(&model.OrgNode{}).
		Where("tenant_id = ? AND is_deleted = 0", tenantID).
		Count(&report.NodeCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.ClosureEdge{}).
		Where("tenant_id = ?", tenantID).
		Count(&report.EdgeCount).Error; err != nil {
		return nil, err
	}
	var maxDepth *int
	if err := db.Model(&model.ClosureEdge{}).
		Where("tenant_id = ?", tenantID).
		Select("MAX(depth)").Scan(&maxDepth).Error; err != nil {
		return nil, err
	}
	if maxDepth != nil {
		report.MaxDepth = *maxDepth
	}

	return report, nil
}

// RepairConsistency 修复租户闭包表
// 各步骤独立执行且幂等：单步失败只收集进报告，不阻塞后续步骤。
// 紧接着的第二次修复应报告 0 个修复动作
func (r *ClosureRepository) RepairConsistency(ctx context.Context, tenantID uint64) (*model.RepairReport, error) {
	report := &model.RepairReport{TenantID: tenantID}
	db := r.db.WithContext(ctx)

	// 未删除节点是重建的唯一依据
	var nodes []model.OrgNode
	if err := db.Where("tenant_id = ? AND is_deleted = 0", tenantID).
		Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("load org nodes failed: %w", err)
	}

	// 步骤1+2：按父链全量推导期望闭包，与现存边做差集，补缺删冗。
	// 自环和 depth>0 边的重建合并在一次差集里完成
	if err := r.rebuildEdges(ctx, tenantID, nodes, report); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("rebuild edges: %v", err))
	}

	// 步骤3：清除引用已删除/不存在节点的边
	res := db.Exec(`
		DELETE FROM org_closure
		WHERE tenant_id = ? AND id IN (
			SELECT id FROM (
				SELECT e.id FROM org_closure e
				LEFT JOIN org_nodes a ON a.id = e.ancestor_id AND a.tenant_id = e.tenant_id
				LEFT JOIN org_nodes d ON d.id = e.descendant_id AND d.tenant_id = e.tenant_id
				WHERE e.tenant_id = ?
				  AND (a.id IS NULL OR a.is_deleted = 1 OR d.id IS NULL OR d.is_deleted = 1)
			) AS orphan
		)`, tenantID, tenantID)
	if res.Error != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("purge orphan edges: %v", res.Error))
	} else {
		report.OrphanEdgesPurged = res.RowsAffected
	}

	// 步骤4：按父链重算 level，修正 move 等操作可能留下的陈旧层级
	if err := r.recomputeLevels(ctx, tenantID, nodes, report); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("recompute levels: %v", err))
	}

	return report, nil
}

// rebuildEdges 闭包边差集修复：补插缺失边（含自环），删除深度不符或多余的边
func (r *ClosureRepository) rebuildEdges(ctx context.Context, tenantID uint64, nodes []model.OrgNode, report *model.RepairReport) error {
	expected := BuildClosure(nodes)

	var rows []model.ClosureEdge
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Find(&rows).Error; err != nil {
		return err
	}
	actual := make([]Edge, 0, len(rows))
	for _, row := range rows {
		actual = append(actual, Edge{AncestorID: row.AncestorID, DescendantID: row.DescendantID, Depth: row.Depth})
	}

	missing, stray := DiffEdges(expected, actual)
	if len(missing) == 0 && len(stray) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range stray {
			if err := tx.Where("tenant_id = ? AND ancestor_id = ? AND descendant_id = ?",
				tenantID, e.AncestorID, e.DescendantID).
				Delete(&model.ClosureEdge{}).Error; err != nil {
				return err
			}
		}

		inserts := make([]model.ClosureEdge, 0, len(missing))
		var selfEdges int64
		for _, e := range missing {
			inserts = append(inserts, model.ClosureEdge{
				AncestorID:   e.AncestorID,
				DescendantID: e.DescendantID,
				Depth:        e.Depth,
				TenantID:     tenantID,
			})
			if e.Depth == 0 {
				selfEdges++
			}
		}
		if len(inserts) > 0 {
			if err := tx.CreateInBatches(inserts, 200).Error; err != nil {
				return err
			}
		}

		report.SelfEdgesInserted = selfEdges
		report.EdgesRebuilt = int64(len(missing)) - selfEdges + int64(len(stray))
		return nil
	})
}

// recomputeLevels 将存储的 level 与父链推导值对齐
func (r *ClosureRepository) recomputeLevels(ctx context.Context, tenantID uint64, nodes []model.OrgNode, report *model.RepairReport) error {
	levels := ComputeLevels(nodes)

	var fixed int64
	for _, n := range nodes {
		want := levels[n.ID]
		if n.Level == want {
			continue
		}
		if err := r.db.WithContext(ctx).Model(&model.OrgNode{}).
			Where("id = ? AND tenant_id = ?", n.ID, tenantID).
			Update("level", want).Error; err != nil {
			return err
		}
		fixed++
	}
	report.LevelsRecomputed = fixed
	return nil
}
