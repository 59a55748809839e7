package hierarchy

import (
	"context"
	"sync"

	"github.com/BrunoGao/release-sub004/internal/cache"
	"github.com/BrunoGao/release-sub004/internal/model"
	"github.com/BrunoGao/release-sub004/pkg/logger"
)

// 存储侧窄接口：QueryService 只依赖它实际用到的查询，
// 由 repository 包的各仓库实现；测试时用假实现替换

// UserStore 用户关系查询
type UserStore interface {
	FindOrgIDsByUser(ctx context.Context, userID, tenantID uint64) ([]uint64, error)
	FindUserIDsUnderOrg(ctx context.Context, orgID, tenantID uint64) ([]uint64, error)
	FindIDsByTenant(ctx context.Context, tenantID uint64) ([]uint64, error)
	CountUsersUnderOrg(ctx context.Context, orgID, tenantID uint64) (int64, error)
}

// DeviceStore 设备关系查询
type DeviceStore interface {
	FindByID(ctx context.Context, deviceID, tenantID uint64) (*model.Device, error)
	FindIDsByUser(ctx context.Context, userID, tenantID uint64) ([]uint64, error)
	FindIDsUnderOrg(ctx context.Context, orgID, tenantID uint64) ([]uint64, error)
	FindIDsByUsers(ctx context.Context, userIDs []uint64, tenantID uint64) (map[uint64][]uint64, error)
}

// HealthStore 健康数据查询
type HealthStore interface {
	FindLatestByUser(ctx context.Context, userID, tenantID uint64) (*model.LatestHealthReading, error)
	SummarizeOrg(ctx context.Context, orgID, tenantID uint64, userCount int64) (*model.OrgHealthSummary, error)
}

// AlertStore 告警查询
type AlertStore interface {
	FindActiveByUser(ctx context.Context, userID, tenantID uint64) ([]model.Alert, error)
}

// OrgStore 组织查询
type OrgStore interface {
	FindIDsByTenant(ctx context.Context, tenantID uint64) ([]uint64, error)
}

// ClosureReader 闭包表只读查询
type ClosureReader interface {
	GetDescendantIDs(ctx context.Context, nodeID, tenantID uint64) ([]uint64, error)
}

// QueryService 关系查询服务（热读路径）
// 统一的 cache-aside 模式：先查缓存，未命中回源闭包表JOIN，
// 然后异步回填缓存（读路径不等待缓存写入完成）。
// 缓存故障对调用方完全透明：降级为直接打库，正确性不受影响
type QueryService struct {
	relationCache *cache.RelationCache
	users         UserStore
	devices       DeviceStore
	health        HealthStore
	alerts        AlertStore
	orgs          OrgStore
	closure       ClosureReader
}

// NewQueryService 创建关系查询服务
func NewQueryService(
	relationCache *cache.RelationCache,
	users UserStore,
	devices DeviceStore,
	health HealthStore,
	alerts AlertStore,
	orgs OrgStore,
	closure ClosureReader,
) *QueryService {
	return &QueryService{
		relationCache: relationCache,
		users:         users,
		devices:       devices,
		health:        health,
		alerts:        alerts,
		orgs:          orgs,
		closure:       closure,
	}
}

// GetOrgsForUser 用户所属的部门ID集合
func (s *QueryService) GetOrgsForUser(ctx context.Context, userID, tenantID uint64) ([]uint64, error) {
	return s.cachedIDs(ctx, cache.KindUserOrgs, tenantID, userID, func() ([]uint64, error) {
		return s.users.FindOrgIDsByUser(ctx, userID, tenantID)
	})
}

// GetUsersUnderOrg 部门及其全部子部门下的用户ID集合
func (s *QueryService) GetUsersUnderOrg(ctx context.Context, orgID, tenantID uint64) ([]uint64, error) {
	return s.cachedIDs(ctx, cache.KindOrgUsers, tenantID, orgID, func() ([]uint64, error) {
		return s.users.FindUserIDsUnderOrg(ctx, orgID, tenantID)
	})
}

// GetDevicesUnderOrg 部门及其全部子部门下的设备ID集合
func (s *QueryService) GetDevicesUnderOrg(ctx context.Context, orgID, tenantID uint64) ([]uint64, error) {
	return s.cachedIDs(ctx, cache.KindOrgDevices, tenantID, orgID, func() ([]uint64, error) {
		return s.devices.FindIDsUnderOrg(ctx, orgID, tenantID)
	})
}

// GetUserDevices 用户绑定的设备ID集合
func (s *QueryService) GetUserDevices(ctx context.Context, userID, tenantID uint64) ([]uint64, error) {
	return s.cachedIDs(ctx, cache.KindUserDevices, tenantID, userID, func() ([]uint64, error) {
		return s.devices.FindIDsByUser(ctx, userID, tenantID)
	})
}

// GetTenantUsers 租户全部用户ID集合
func (s *QueryService) GetTenantUsers(ctx context.Context, tenantID uint64) ([]uint64, error) {
	return s.cachedIDs(ctx, cache.KindTenantUsers, tenantID, tenantID, func() ([]uint64, error) {
		return s.users.FindIDsByTenant(ctx, tenantID)
	})
}

// GetTenantOrgs 租户全部组织ID集合
func (s *QueryService) GetTenantOrgs(ctx context.Context, tenantID uint64) ([]uint64, error) {
	return s.cachedIDs(ctx, cache.KindTenantOrgs, tenantID, tenantID, func() ([]uint64, error) {
		return s.orgs.FindIDsByTenant(ctx, tenantID)
	})
}

// GetOrgDescendantIDs 组织的全部后代ID集合
func (s *QueryService) GetOrgDescendantIDs(ctx context.Context, orgID, tenantID uint64) ([]uint64, error) {
	return s.cachedIDs(ctx, cache.KindOrgDescendants, tenantID, orgID, func() ([]uint64, error) {
		return s.closure.GetDescendantIDs(ctx, orgID, tenantID)
	})
}

// GetDeviceOwner 设备当前佩戴者ID（0表示未绑定）
func (s *QueryService) GetDeviceOwner(ctx context.Context, deviceID, tenantID uint64) (uint64, error) {
	if id, ok := s.relationCache.GetID(ctx, cache.KindDeviceUser, tenantID, deviceID); ok {
		return id, nil
	}

	device, err := s.devices.FindByID(ctx, deviceID, tenantID)
	if err != nil {
		return 0, err
	}
	if device.UserID != 0 {
		go s.relationCache.PutID(context.Background(), cache.KindDeviceUser, tenantID, deviceID, device.UserID)
	}
	return device.UserID, nil
}

// GetDeviceOrg 设备归属的部门ID
func (s *QueryService) GetDeviceOrg(ctx context.Context, deviceID, tenantID uint64) (uint64, error) {
	if id, ok := s.relationCache.GetID(ctx, cache.KindDeviceOrg, tenantID, deviceID); ok {
		return id, nil
	}

	device, err := s.devices.FindByID(ctx, deviceID, tenantID)
	if err != nil {
		return 0, err
	}
	if device.OrgID != 0 {
		go s.relationCache.PutID(context.Background(), cache.KindDeviceOrg, tenantID, deviceID, device.OrgID)
	}
	return device.OrgID, nil
}

// GetUserLatestHealth 用户最新健康读数
func (s *QueryService) GetUserLatestHealth(ctx context.Context, userID, tenantID uint64) (*model.LatestHealthReading, error) {
	var cached model.LatestHealthReading
	if s.relationCache.GetObject(ctx, cache.KindUserLatestHealth, tenantID, userID, &cached) && cached.UserID != 0 {
		return &cached, nil
	}

	reading, err := s.health.FindLatestByUser(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}
	go s.relationCache.PutObject(context.Background(), cache.KindUserLatestHealth, tenantID, userID, reading)
	return reading, nil
}

// GetUserActiveAlerts 用户当前活跃告警
func (s *QueryService) GetUserActiveAlerts(ctx context.Context, userID, tenantID uint64) ([]model.Alert, error) {
	var cached []model.Alert
	if s.relationCache.GetObject(ctx, cache.KindUserActiveAlerts, tenantID, userID, &cached) && len(cached) > 0 {
		return cached, nil
	}

	alerts, err := s.alerts.FindActiveByUser(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}
	if len(alerts) > 0 {
		go s.relationCache.PutObject(context.Background(), cache.KindUserActiveAlerts, tenantID, userID, alerts)
	}
	return alerts, nil
}

// GetOrgHealthSummary 部门健康汇总（含子部门）
func (s *QueryService) GetOrgHealthSummary(ctx context.Context, orgID, tenantID uint64) (*model.OrgHealthSummary, error) {
	var cached model.OrgHealthSummary
	if s.relationCache.GetObject(ctx, cache.KindOrgHealthSummary, tenantID, orgID, &cached) && cached.OrgID != 0 {
		return &cached, nil
	}

	userCount, err := s.users.CountUsersUnderOrg(ctx, orgID, tenantID)
	if err != nil {
		return nil, err
	}
	summary, err := s.health.SummarizeOrg(ctx, orgID, tenantID, userCount)
	if err != nil {
		return nil, err
	}
	go s.relationCache.PutObject(context.Background(), cache.KindOrgHealthSummary, tenantID, orgID, summary)
	return summary, nil
}

// GetUserCompleteRelations 用户完整关系快照
// 各子查询并发执行；单项失败记日志并保留零值，其余字段照常返回
func (s *QueryService) GetUserCompleteRelations(ctx context.Context, userID, tenantID uint64) *model.UserRelations {
	result := &model.UserRelations{UserID: userID, TenantID: tenantID}

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		ids, err := s.GetOrgsForUser(ctx, userID, tenantID)
		if err != nil {
			logger.Warnf("[Query] user %d orgs lookup failed: %v", userID, err)
			return
		}
		result.OrgIDs = ids
	}()

	go func() {
		defer wg.Done()
		ids, err := s.GetUserDevices(ctx, userID, tenantID)
		if err != nil {
			logger.Warnf("[Query] user %d devices lookup failed: %v", userID, err)
			return
		}
		result.DeviceIDs = ids
	}()

	go func() {
		defer wg.Done()
		reading, err := s.GetUserLatestHealth(ctx, userID, tenantID)
		if err != nil {
			logger.Warnf("[Query] user %d latest health lookup failed: %v", userID, err)
			return
		}
		result.LatestHealth = reading
	}()

	go func() {
		defer wg.Done()
		alerts, err := s.GetUserActiveAlerts(ctx, userID, tenantID)
		if err != nil {
			logger.Warnf("[Query] user %d active alerts lookup failed: %v", userID, err)
			return
		}
		result.ActiveAlerts = alerts
	}()

	wg.Wait()
	return result
}

// GetOrgCompleteRelations 部门完整关系快照
func (s *QueryService) GetOrgCompleteRelations(ctx context.Context, orgID, tenantID uint64) *model.OrgRelations {
	result := &model.OrgRelations{OrgID: orgID, TenantID: tenantID}

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		ids, err := s.GetUsersUnderOrg(ctx, orgID, tenantID)
		if err != nil {
			logger.Warnf("[Query] org %d users lookup failed: %v", orgID, err)
			return
		}
		result.UserIDs = ids
	}()

	go func() {
		defer wg.Done()
		ids, err := s.GetDevicesUnderOrg(ctx, orgID, tenantID)
		if err != nil {
			logger.Warnf("[Query] org %d devices lookup failed: %v", orgID, err)
			return
		}
		result.DeviceIDs = ids
	}()

	go func() {
		defer wg.Done()
		ids, err := s.GetOrgDescendantIDs(ctx, orgID, tenantID)
		if err != nil {
			logger.Warnf("[Query] org %d descendants lookup failed: %v", orgID, err)
			return
		}
		result.DescendantIDs = ids
	}()

	go func() {
		defer wg.Done()
		summary, err := s.GetOrgHealthSummary(ctx, orgID, tenantID)
		if err != nil {
			logger.Warnf("[Query] org %d health summary lookup failed: %v", orgID, err)
			return
		}
		result.HealthSummary = summary
	}()

	wg.Wait()
	return result
}

// BatchGetUserDevices 批量查询多个用户的设备
// 缓存命中/未命中分流：未命中的用户合并成一次IN查询回源，逐主体异步回填
func (s *QueryService) BatchGetUserDevices(ctx context.Context, userIDs []uint64, tenantID uint64) (map[uint64][]uint64, error) {
	hits, misses := s.relationCache.BatchGetIDs(ctx, cache.KindUserDevices, tenantID, userIDs)
	if len(misses) == 0 {
		return hits, nil
	}

	fromStore, err := s.devices.FindIDsByUsers(ctx, misses, tenantID)
	if err != nil {
		return nil, err
	}

	for _, userID := range misses {
		ids := fromStore[userID]
		hits[userID] = ids
		if len(ids) > 0 {
			go s.relationCache.PutIDs(context.Background(), cache.KindUserDevices, tenantID, userID, ids)
		}
	}
	return hits, nil
}

// BatchGetOrgUsers 批量查询多个部门（含子部门）下的用户
func (s *QueryService) BatchGetOrgUsers(ctx context.Context, orgIDs []uint64, tenantID uint64) (map[uint64][]uint64, error) {
	hits, misses := s.relationCache.BatchGetIDs(ctx, cache.KindOrgUsers, tenantID, orgIDs)
	if len(misses) == 0 {
		return hits, nil
	}

	for _, orgID := range misses {
		ids, err := s.users.FindUserIDsUnderOrg(ctx, orgID, tenantID)
		if err != nil {
			return nil, err
		}
		hits[orgID] = ids
		if len(ids) > 0 {
			go s.relationCache.PutIDs(context.Background(), cache.KindOrgUsers, tenantID, orgID, ids)
		}
	}
	return hits, nil
}

// RefreshCache 管理钩子：强制失效并立即重建某主体的某类关系缓存
func (s *QueryService) RefreshCache(ctx context.Context, kind cache.RelationKind, tenantID, subjectID uint64) error {
	s.relationCache.Evict(ctx, tenantID, subjectID, kind)

	var err error
	switch kind {
	case cache.KindUserOrgs:
		_, err = s.GetOrgsForUser(ctx, subjectID, tenantID)
	case cache.KindOrgUsers:
		_, err = s.GetUsersUnderOrg(ctx, subjectID, tenantID)
	case cache.KindOrgDevices:
		_, err = s.GetDevicesUnderOrg(ctx, subjectID, tenantID)
	case cache.KindUserDevices:
		_, err = s.GetUserDevices(ctx, subjectID, tenantID)
	case cache.KindTenantUsers:
		_, err = s.GetTenantUsers(ctx, tenantID)
	case cache.KindTenantOrgs:
		_, err = s.GetTenantOrgs(ctx, tenantID)
	case cache.KindOrgDescendants:
		_, err = s.GetOrgDescendantIDs(ctx, subjectID, tenantID)
	case cache.KindDeviceUser:
		_, err = s.GetDeviceOwner(ctx, subjectID, tenantID)
	case cache.KindDeviceOrg:
		_, err = s.GetDeviceOrg(ctx, subjectID, tenantID)
	case cache.KindUserLatestHealth:
		_, err = s.GetUserLatestHealth(ctx, subjectID, tenantID)
	case cache.KindUserActiveAlerts:
		_, err = s.GetUserActiveAlerts(ctx, subjectID, tenantID)
	case cache.KindOrgHealthSummary:
		_, err = s.GetOrgHealthSummary(ctx, subjectID, tenantID)
	}
	return err
}

// cachedIDs 统一的 cache-aside 路径：命中即返；未命中回源后异步回填
func (s *QueryService) cachedIDs(ctx context.Context, kind cache.RelationKind, tenantID, subjectID uint64, load func() ([]uint64, error)) ([]uint64, error) {
	if ids, ok := s.relationCache.GetIDs(ctx, kind, tenantID, subjectID); ok {
		return ids, nil
	}

	ids, err := load()
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		go s.relationCache.PutIDs(context.Background(), kind, tenantID, subjectID, ids)
	}
	return ids, nil
}
