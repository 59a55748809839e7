package app

import (
	"time"

	"github.com/BrunoGao/release-sub004/internal/audit"
	"github.com/BrunoGao/release-sub004/internal/cache"
	"github.com/BrunoGao/release-sub004/internal/scheduler"
	"github.com/BrunoGao/release-sub004/internal/service/hierarchy"
	"github.com/BrunoGao/release-sub004/pkg/config"
	"github.com/BrunoGao/release-sub004/pkg/database"
	"github.com/BrunoGao/release-sub004/pkg/distributed"
	pkgredis "github.com/BrunoGao/release-sub004/pkg/redis"
)

// Services 包含所有业务服务实例
type Services struct {
	RelationCache *cache.RelationCache
	Hierarchy     *hierarchy.HierarchyService
	Query         *hierarchy.QueryService
	Warmup        *hierarchy.WarmupService
}

// BackgroundServices 后台服务
type BackgroundServices struct {
	CacheRefresh *scheduler.CacheRefreshScheduler
}

// InitializeServices 初始化所有业务服务
func InitializeServices(repos *Repositories, cfg *config.Config) *Services {
	// Redis 未启用时 client 为 nil：缓存全部未命中、租户锁退化为进程内互斥
	relationCache := cache.NewRelationCache(pkgredis.GetClient(), &cfg.Cache)
	locker := distributed.NewTenantLocker(pkgredis.GetClient(), 30*time.Second)
	auditor := audit.NewDatabaseAuditor(database.DB)

	hierarchyService := hierarchy.NewHierarchyService(
		repos.Closure,
		repos.OrgNode,
		repos.User,
		repos.Device,
		relationCache,
		locker,
		auditor,
		time.Duration(cfg.Database.MutationTimeout)*time.Second,
	)

	queryService := hierarchy.NewQueryService(
		relationCache,
		repos.User,
		repos.Device,
		repos.HealthData,
		repos.Alert,
		repos.OrgNode,
		repos.Closure,
	)

	warmupService := hierarchy.NewWarmupService(
		repos.RelationBulk,
		repos.HealthData,
		repos.Alert,
		relationCache,
		&cfg.Warmup,
	)

	return &Services{
		RelationCache: relationCache,
		Hierarchy:     hierarchyService,
		Query:         queryService,
		Warmup:        warmupService,
	}
}

// InitializeBackgroundServices 初始化后台服务
func InitializeBackgroundServices(services *Services, cfg *config.Config) *BackgroundServices {
	return &BackgroundServices{
		CacheRefresh: scheduler.NewCacheRefreshScheduler(services.Warmup, cfg.Warmup.RefreshIntervalMinutes),
	}
}
