package hierarchy

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BrunoGao/release-sub004/internal/cache"
	"github.com/BrunoGao/release-sub004/internal/model"
	"github.com/BrunoGao/release-sub004/internal/repository"
	"github.com/BrunoGao/release-sub004/pkg/config"
	"github.com/BrunoGao/release-sub004/pkg/logger"
	"github.com/BrunoGao/release-sub004/pkg/metrics"
)

// BulkLoader 预热用的批量关系加载接口
type BulkLoader interface {
	LoadTenantUsers(ctx context.Context) ([]repository.SubjectIDs, error)
	LoadTenantOrgs(ctx context.Context) ([]repository.SubjectIDs, error)
	LoadUserOrgs(ctx context.Context) ([]repository.SubjectIDs, error)
	LoadUserDevices(ctx context.Context) ([]repository.SubjectIDs, error)
	LoadOrgUsers(ctx context.Context) ([]repository.SubjectIDs, error)
	LoadOrgDescendants(ctx context.Context) ([]repository.SubjectIDs, error)
	LoadOrgDevices(ctx context.Context) ([]repository.SubjectIDs, error)
	LoadDeviceBindings(ctx context.Context) ([]repository.DeviceBinding, error)
	ListTenantIDs(ctx context.Context) ([]uint64, error)
}

// HotDataLoader 热数据刷新用的分组查询接口
type HotDataLoader interface {
	FindLatestByTenant(ctx context.Context, tenantID uint64) ([]model.LatestHealthReading, error)
	SummarizeOrgsByTenant(ctx context.Context, tenantID uint64) ([]model.OrgHealthSummary, error)
}

// HotAlertLoader 活跃告警的分组查询接口
type HotAlertLoader interface {
	FindActiveByTenant(ctx context.Context, tenantID uint64) (map[uint64][]model.Alert, error)
}

// WarmupService 缓存预热编排器
// 启动时四组结构关系并行批量加载；全部成功过一次才算预热完成。
// 单组失败只记日志不阻塞其余组，下一个定时周期重试未完成的组。
// 热数据（最新健康/活跃告警/部门汇总，短TTL）由定时任务单独刷新
type WarmupService struct {
	bulk          BulkLoader
	health        HotDataLoader
	alerts        HotAlertLoader
	relationCache *cache.RelationCache
	loadTimeout   time.Duration

	// 四组结构加载各自的成功标记
	tenantLoaded atomic.Bool
	userLoaded   atomic.Bool
	orgLoaded    atomic.Bool
	deviceLoaded atomic.Bool
}

// NewWarmupService 创建缓存预热编排器
func NewWarmupService(bulk BulkLoader, health HotDataLoader, alerts HotAlertLoader, relationCache *cache.RelationCache, cfg *config.WarmupConfig) *WarmupService {
	timeout := time.Duration(cfg.LoadTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &WarmupService{
		bulk:          bulk,
		health:        health,
		alerts:        alerts,
		relationCache: relationCache,
		loadTimeout:   timeout,
	}
}

// IsWarmupCompleted 四组结构关系是否都成功加载过
func (s *WarmupService) IsWarmupCompleted() bool {
	return s.tenantLoaded.Load() && s.userLoaded.Load() && s.orgLoaded.Load() && s.deviceLoaded.Load()
}

// RunStartupWarmup 执行一轮预热：并行加载未完成的组
// 可重复调用（定时重试），已成功的组直接跳过
func (s *WarmupService) RunStartupWarmup(ctx context.Context) {
	start := time.Now()

	var wg sync.WaitGroup
	s.runLoad(ctx, &wg, &s.tenantLoaded, "tenant_relations", s.loadTenantRelations)
	s.runLoad(ctx, &wg, &s.userLoaded, "user_relations", s.loadUserRelations)
	s.runLoad(ctx, &wg, &s.orgLoaded, "org_relations", s.loadOrgRelations)
	s.runLoad(ctx, &wg, &s.deviceLoaded, "device_relations", s.loadDeviceRelations)
	wg.Wait()

	if s.IsWarmupCompleted() {
		metrics.WarmupCompleted.Set(1)
		logger.Infof("[Warmup] 缓存预热完成, 耗时 %v", time.Since(start))
	} else {
		metrics.WarmupCompleted.Set(0)
		logger.Warnf("[Warmup] 缓存预热未全部完成, 未完成的组将在下个周期重试")
	}
}

// ManualWarmup 管理接口：重置标记并重新执行全量预热
func (s *WarmupService) ManualWarmup(ctx context.Context) {
	s.tenantLoaded.Store(false)
	s.userLoaded.Store(false)
	s.orgLoaded.Store(false)
	s.deviceLoaded.Store(false)
	metrics.WarmupCompleted.Set(0)
	s.RunStartupWarmup(ctx)
}

// RefreshHotData 刷新短TTL热数据：最新健康读数、活跃告警、部门健康汇总
// 预热未完成时不执行（避免在结构关系缺失时写入脏的聚合）
func (s *WarmupService) RefreshHotData(ctx context.Context) {
	if !s.IsWarmupCompleted() {
		logger.Debugf("[Warmup] 预热未完成, 跳过热数据刷新")
		return
	}

	tenantIDs, err := s.bulk.ListTenantIDs(ctx)
	if err != nil {
		logger.Warnf("[Warmup] 获取租户列表失败: %v", err)
		return
	}

	start := time.Now()
	for _, tenantID := range tenantIDs {
		s.refreshTenantHotData(ctx, tenantID)
	}
	logger.Infof("[Warmup] 热数据刷新完成, %d 个租户, 耗时 %v", len(tenantIDs), time.Since(start))
}

// runLoad 执行一组批量加载：已成功则跳过，成功后置位标记
func (s *WarmupService) runLoad(ctx context.Context, wg *sync.WaitGroup, flag *atomic.Bool, name string, load func(context.Context) (int, error)) {
	if flag.Load() {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()

		loadCtx, cancel := context.WithTimeout(ctx, s.loadTimeout)
		defer cancel()

		start := time.Now()
		entries, err := load(loadCtx)
		metrics.WarmupLoadDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil {
			logger.Warnf("[Warmup] %s 加载失败: %v", name, err)
			return
		}
		metrics.WarmupEntriesLoaded.WithLabelValues(name).Add(float64(entries))
		flag.Store(true)
		logger.Infof("[Warmup] %s 加载完成, %d 条, 耗时 %v", name, entries, time.Since(start))
	}()
}

// loadTenantRelations 租户维度：tenant→users, tenant→orgs
func (s *WarmupService) loadTenantRelations(ctx context.Context) (int, error) {
	users, err := s.bulk.LoadTenantUsers(ctx)
	if err != nil {
		return 0, err
	}
	orgs, err := s.bulk.LoadTenantOrgs(ctx)
	if err != nil {
		return 0, err
	}
	return s.putIDSets(ctx, cache.KindTenantUsers, users) + s.putIDSets(ctx, cache.KindTenantOrgs, orgs), nil
}

// loadUserRelations 用户维度：user→orgs, user→devices
func (s *WarmupService) loadUserRelations(ctx context.Context) (int, error) {
	userOrgs, err := s.bulk.LoadUserOrgs(ctx)
	if err != nil {
		return 0, err
	}
	userDevices, err := s.bulk.LoadUserDevices(ctx)
	if err != nil {
		return 0, err
	}
	return s.putIDSets(ctx, cache.KindUserOrgs, userOrgs) + s.putIDSets(ctx, cache.KindUserDevices, userDevices), nil
}

// loadOrgRelations 组织维度：org→users, org→descendants, org→devices
func (s *WarmupService) loadOrgRelations(ctx context.Context) (int, error) {
	orgUsers, err := s.bulk.LoadOrgUsers(ctx)
	if err != nil {
		return 0, err
	}
	descendants, err := s.bulk.LoadOrgDescendants(ctx)
	if err != nil {
		return 0, err
	}
	orgDevices, err := s.bulk.LoadOrgDevices(ctx)
	if err != nil {
		return 0, err
	}
	return s.putIDSets(ctx, cache.KindOrgUsers, orgUsers) +
		s.putIDSets(ctx, cache.KindOrgDescendants, descendants) +
		s.putIDSets(ctx, cache.KindOrgDevices, orgDevices), nil
}

// loadDeviceRelations 设备维度：device→user, device→org
func (s *WarmupService) loadDeviceRelations(ctx context.Context) (int, error) {
	bindings, err := s.bulk.LoadDeviceBindings(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, b := range bindings {
		if b.UserID != 0 {
			s.relationCache.PutID(ctx, cache.KindDeviceUser, b.TenantID, b.DeviceID, b.UserID)
			count++
		}
		if b.OrgID != 0 {
			s.relationCache.PutID(ctx, cache.KindDeviceOrg, b.TenantID, b.DeviceID, b.OrgID)
			count++
		}
	}
	return count, nil
}

// refreshTenantHotData 刷新一个租户的短TTL聚合
func (s *WarmupService) refreshTenantHotData(ctx context.Context, tenantID uint64) {
	readings, err := s.health.FindLatestByTenant(ctx, tenantID)
	if err != nil {
		logger.Warnf("[Warmup] 租户 %d 最新健康读数刷新失败: %v", tenantID, err)
	} else {
		for i := range readings {
			s.relationCache.PutObject(ctx, cache.KindUserLatestHealth, tenantID, readings[i].UserID, &readings[i])
		}
	}

	alertsByUser, err := s.alerts.FindActiveByTenant(ctx, tenantID)
	if err != nil {
		logger.Warnf("[Warmup] 租户 %d 活跃告警刷新失败: %v", tenantID, err)
	} else {
		for userID, userAlerts := range alertsByUser {
			s.relationCache.PutObject(ctx, cache.KindUserActiveAlerts, tenantID, userID, userAlerts)
		}
	}

	summaries, err := s.health.SummarizeOrgsByTenant(ctx, tenantID)
	if err != nil {
		logger.Warnf("[Warmup] 租户 %d 部门健康汇总刷新失败: %v", tenantID, err)
	} else {
		for i := range summaries {
			s.relationCache.PutObject(ctx, cache.KindOrgHealthSummary, tenantID, summaries[i].OrgID, &summaries[i])
		}
	}
}

// putIDSets 将批量加载结果逐条写入缓存
func (s *WarmupService) putIDSets(ctx context.Context, kind cache.RelationKind, sets []repository.SubjectIDs) int {
	for _, set := range sets {
		if len(set.IDs) == 0 {
			continue
		}
		s.relationCache.PutIDs(ctx, kind, set.TenantID, set.SubjectID, set.IDs)
	}
	return len(sets)
}
