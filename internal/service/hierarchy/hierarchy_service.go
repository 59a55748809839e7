package hierarchy

import (
	"context"
	"strconv"
	"time"

	"github.com/BrunoGao/release-sub004/internal/audit"
	"github.com/BrunoGao/release-sub004/internal/cache"
	"github.com/BrunoGao/release-sub004/internal/model"
	"github.com/BrunoGao/release-sub004/pkg/distributed"
	"github.com/BrunoGao/release-sub004/pkg/logger"
	"github.com/BrunoGao/release-sub004/pkg/metrics"
)

// MutationStore 结构变更依赖的闭包存储能力
// 由 repository.ClosureRepository 实现；测试时用假实现替换
type MutationStore interface {
	InsertNode(ctx context.Context, node *model.OrgNode, parentID, tenantID uint64) (uint64, error)
	BatchInsertNodes(ctx context.Context, nodes []*model.OrgNode, parentIDs []uint64, tenantID uint64) ([]uint64, error)
	DeleteSubtree(ctx context.Context, nodeID, tenantID uint64, hard bool) (int64, error)
	MoveSubtree(ctx context.Context, nodeID, newParentID, tenantID uint64) (bool, error)
	CheckConsistency(ctx context.Context, tenantID uint64) (*model.ConsistencyReport, error)
	RepairConsistency(ctx context.Context, tenantID uint64) (*model.RepairReport, error)
	GetDescendantIDs(ctx context.Context, nodeID, tenantID uint64) ([]uint64, error)
	GetAncestors(ctx context.Context, nodeID, tenantID uint64) ([]model.OrgNodeWithDepth, error)
}

// OrgUserLister / OrgDeviceLister 失效清单收集用的窄查询
type OrgUserLister interface {
	FindUserIDsUnderOrg(ctx context.Context, orgID, tenantID uint64) ([]uint64, error)
}

type OrgDeviceLister interface {
	FindIDsUnderOrg(ctx context.Context, orgID, tenantID uint64) ([]uint64, error)
}

// HierarchyService 组织结构变更服务
// 所有结构变更走同一条路径：租户锁 → 带超时的存储事务 → 精确缓存失效 → 审计。
// 同一租户内的变更串行执行（见 distributed.TenantLocker）；缓存失效按
// 每种变更类型的显式失效清单执行，不做模式扫描
type HierarchyService struct {
	closureRepo     MutationStore
	orgRepo         OrgStore
	userRepo        OrgUserLister
	deviceRepo      OrgDeviceLister
	relationCache   *cache.RelationCache
	locker          *distributed.TenantLocker
	auditor         audit.Auditor
	mutationTimeout time.Duration
}

// NewHierarchyService 创建组织结构变更服务
func NewHierarchyService(
	closureRepo MutationStore,
	orgRepo OrgStore,
	userRepo OrgUserLister,
	deviceRepo OrgDeviceLister,
	relationCache *cache.RelationCache,
	locker *distributed.TenantLocker,
	auditor audit.Auditor,
	mutationTimeout time.Duration,
) *HierarchyService {
	if mutationTimeout <= 0 {
		mutationTimeout = 10 * time.Second
	}
	return &HierarchyService{
		closureRepo:     closureRepo,
		orgRepo:         orgRepo,
		userRepo:        userRepo,
		deviceRepo:      deviceRepo,
		relationCache:   relationCache,
		locker:          locker,
		auditor:         auditor,
		mutationTimeout: mutationTimeout,
	}
}

// InsertNode 插入组织节点
func (s *HierarchyService) InsertNode(ctx context.Context, node *model.OrgNode, parentID, tenantID uint64) (uint64, error) {
	start := time.Now()

	if err := s.locker.Lock(ctx, tenantID); err != nil {
		return 0, err
	}
	defer s.locker.Unlock(tenantID)

	opCtx, cancel := context.WithTimeout(ctx, s.mutationTimeout)
	defer cancel()

	nodeID, err := s.closureRepo.InsertNode(opCtx, node, parentID, tenantID)
	s.finishMutation(ctx, model.MutationInsert, tenantID, nodeID, 1, start, err)
	if err != nil {
		return 0, err
	}

	s.evictAfterInsert(tenantID, nodeID, parentID)
	return nodeID, nil
}

// BatchInsertNodes 批量插入组织节点（父节点必须排在子节点之前）
// 逐节点提交；失败时中止剩余节点，已成功的ID照常返回
func (s *HierarchyService) BatchInsertNodes(ctx context.Context, nodes []*model.OrgNode, parentIDs []uint64, tenantID uint64) ([]uint64, error) {
	start := time.Now()

	if err := s.locker.Lock(ctx, tenantID); err != nil {
		return nil, err
	}
	defer s.locker.Unlock(tenantID)

	opCtx, cancel := context.WithTimeout(ctx, s.mutationTimeout*time.Duration(len(nodes)))
	defer cancel()

	ids, err := s.closureRepo.BatchInsertNodes(opCtx, nodes, parentIDs, tenantID)

	var firstID uint64
	if len(ids) > 0 {
		firstID = ids[0]
	}
	s.finishMutation(ctx, model.MutationBatch, tenantID, firstID, int64(len(ids)), start, err)

	for i, id := range ids {
		s.evictAfterInsert(tenantID, id, parentIDs[i])
	}
	return ids, err
}

// DeleteSubtree 删除组织子树（软删除或硬删除）
func (s *HierarchyService) DeleteSubtree(ctx context.Context, nodeID, tenantID uint64, hard bool) (int64, error) {
	start := time.Now()

	if err := s.locker.Lock(ctx, tenantID); err != nil {
		return 0, err
	}
	defer s.locker.Unlock(tenantID)

	opCtx, cancel := context.WithTimeout(ctx, s.mutationTimeout)
	defer cancel()

	// 失效清单在删除前收集：删除后闭包边已不在，查不到受影响的主体
	subtree, ancestors := s.collectStructureScope(opCtx, tenantID, nodeID)
	userIDs, _ := s.userRepo.FindUserIDsUnderOrg(opCtx, nodeID, tenantID)
	deviceIDs, _ := s.deviceRepo.FindIDsUnderOrg(opCtx, nodeID, tenantID)

	affected, err := s.closureRepo.DeleteSubtree(opCtx, nodeID, tenantID, hard)
	s.finishMutation(ctx, model.MutationDelete, tenantID, nodeID, affected, start, err)
	if err != nil {
		return 0, err
	}

	go func() {
		bg := context.Background()
		s.relationCache.EvictMany(bg, tenantID, append(subtree, ancestors...), cache.OrgStructureKinds...)
		s.relationCache.Evict(bg, tenantID, tenantID, cache.TenantScopeKinds...)
		s.relationCache.EvictMany(bg, tenantID, userIDs, cache.UserScopeKinds...)
		s.relationCache.EvictMany(bg, tenantID, deviceIDs, cache.DeviceScopeKinds...)
	}()
	return affected, nil
}

// MoveSubtree 移动组织子树到新父节点下
func (s *HierarchyService) MoveSubtree(ctx context.Context, nodeID, newParentID, tenantID uint64) (bool, error) {
	start := time.Now()

	if err := s.locker.Lock(ctx, tenantID); err != nil {
		return false, err
	}
	defer s.locker.Unlock(tenantID)

	opCtx, cancel := context.WithTimeout(ctx, s.mutationTimeout)
	defer cancel()

	// 旧祖先链在移动前收集
	subtree, oldAncestors := s.collectStructureScope(opCtx, tenantID, nodeID)

	ok, err := s.closureRepo.MoveSubtree(opCtx, nodeID, newParentID, tenantID)
	s.finishMutation(ctx, model.MutationMove, tenantID, nodeID, int64(len(subtree)), start, err)
	if err != nil {
		return false, err
	}

	// 新祖先链在移动后收集：变更事务的 opCtx 可能已接近超时，
	// 与插入路径一样放到失效协程里用新context读取
	go func() {
		bg := context.Background()
		_, newAncestors := s.collectStructureScope(bg, tenantID, nodeID)
		affected := append(append(subtree, oldAncestors...), newAncestors...)
		s.relationCache.EvictMany(bg, tenantID, affected, cache.OrgStructureKinds...)
		s.relationCache.Evict(bg, tenantID, tenantID, cache.TenantScopeKinds...)
	}()
	return ok, nil
}

// CheckConsistency 一致性检查（只读，可与任意操作并发）
func (s *HierarchyService) CheckConsistency(ctx context.Context, tenantID uint64) (*model.ConsistencyReport, error) {
	report, err := s.closureRepo.CheckConsistency(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	tenant := formatTenant(tenantID)
	metrics.ConsistencyViolations.WithLabelValues(tenant, "self_edge").Set(float64(len(report.MissingSelfEdges)))
	metrics.ConsistencyViolations.WithLabelValues(tenant, "parent_edge").Set(float64(len(report.MissingParentEdges)))
	metrics.ConsistencyViolations.WithLabelValues(tenant, "orphan_edge").Set(float64(len(report.OrphanEdges)))
	metrics.ConsistencyViolations.WithLabelValues(tenant, "depth").Set(float64(len(report.WrongDepthEdges)))
	return report, nil
}

// RepairConsistency 一致性修复（幂等；持有租户锁，期间无并发结构变更）
func (s *HierarchyService) RepairConsistency(ctx context.Context, tenantID uint64) (*model.RepairReport, error) {
	start := time.Now()

	if err := s.locker.Lock(ctx, tenantID); err != nil {
		return nil, err
	}
	defer s.locker.Unlock(tenantID)

	report, err := s.closureRepo.RepairConsistency(ctx, tenantID)
	var affected int64
	if report != nil {
		affected = report.TotalFixes()
	}
	s.finishMutation(ctx, model.MutationRepair, tenantID, 0, affected, start, err)
	if err != nil {
		return nil, err
	}

	// 修复可能改写任意边：整个租户的组织侧缓存全部失效
	if affected > 0 {
		go func() {
			bg := context.Background()
			if orgIDs, err := s.orgRepo.FindIDsByTenant(bg, tenantID); err == nil {
				s.relationCache.EvictMany(bg, tenantID, orgIDs, cache.OrgStructureKinds...)
			}
			s.relationCache.Evict(bg, tenantID, tenantID, cache.TenantScopeKinds...)
		}()
	}
	return report, nil
}

// collectStructureScope 收集某节点的子树成员与祖先ID（失效清单用）
func (s *HierarchyService) collectStructureScope(ctx context.Context, tenantID, nodeID uint64) (subtree, ancestors []uint64) {
	subtree, err := s.closureRepo.GetDescendantIDs(ctx, nodeID, tenantID)
	if err != nil {
		logger.Warnf("[Hierarchy] failed to collect descendants of node %d: %v", nodeID, err)
	}
	subtree = append(subtree, nodeID)

	chain, err := s.closureRepo.GetAncestors(ctx, nodeID, tenantID)
	if err != nil {
		logger.Warnf("[Hierarchy] failed to collect ancestors of node %d: %v", nodeID, err)
	}
	for _, a := range chain {
		ancestors = append(ancestors, a.ID)
	}
	return subtree, ancestors
}

// evictAfterInsert 插入后的失效：新节点的祖先链 + 租户级关系
func (s *HierarchyService) evictAfterInsert(tenantID, nodeID, parentID uint64) {
	go func() {
		bg := context.Background()
		_, ancestors := s.collectStructureScope(bg, tenantID, nodeID)
		s.relationCache.EvictMany(bg, tenantID, append(ancestors, nodeID), cache.OrgStructureKinds...)
		s.relationCache.Evict(bg, tenantID, tenantID, cache.TenantScopeKinds...)
	}()
}

// finishMutation 变更收尾：指标 + 审计（审计失败不影响主操作）
func (s *HierarchyService) finishMutation(ctx context.Context, operation string, tenantID, nodeID uint64, affected int64, start time.Time, err error) {
	duration := time.Since(start)
	metrics.MutationDuration.WithLabelValues(operation).Observe(duration.Seconds())

	record := &audit.MutationRecord{
		TenantID:      tenantID,
		Operation:     operation,
		NodeID:        nodeID,
		AffectedCount: affected,
		DurationMs:    duration.Milliseconds(),
		Success:       err == nil,
	}
	if err != nil {
		metrics.MutationFailuresTotal.WithLabelValues(operation).Inc()
		record.ErrorMessage = err.Error()
	}
	s.auditor.RecordMutation(ctx, record)
}

func formatTenant(tenantID uint64) string {
	return strconv.FormatUint(tenantID, 10)
}
