package router

import (
	"net/http"

	"github.com/BrunoGao/release-sub004/internal/api/handler"
	"github.com/BrunoGao/release-sub004/internal/api/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Setup(
	orgHandler *handler.OrgHandler,
	userHandler *handler.UserHandler,
	deviceHandler *handler.DeviceHandler,
	tenantHandler *handler.TenantHandler,
	adminHandler *handler.AdminHandler,
	mode string,
) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()

	// 使用自定义的 recovery 中间件（打印详细错误信息）
	r.Use(middleware.RecoveryMiddleware())
	// 使用 Gin 的 Logger 中间件（记录请求日志）
	r.Use(gin.Logger())

	// 中间件
	r.Use(middleware.CORS())
	r.Use(middleware.MetricsMiddleware())

	// 业务API都是租户隔离的，统一要求租户标识
	api := r.Group("/api")
	api.Use(middleware.TenantMiddleware())
	{
		// 组织层级
		orgs := api.Group("/orgs")
		{
			orgs.POST("", orgHandler.CreateOrg)
			orgs.POST("/batch", orgHandler.BatchCreateOrgs)
			orgs.GET("/tree", orgHandler.GetOrgTree)
			orgs.POST("/users/batch", orgHandler.BatchGetOrgUsers)
			orgs.DELETE("/:id", orgHandler.DeleteOrg)
			orgs.PUT("/:id/move", orgHandler.MoveOrg)
			orgs.GET("/:id/descendants", orgHandler.GetDescendants)
			orgs.GET("/:id/ancestors", orgHandler.GetAncestors)
			orgs.GET("/:id/children", orgHandler.GetChildren)
			orgs.GET("/:id/parent", orgHandler.GetParent)
			orgs.GET("/:id/users", orgHandler.GetOrgUsers)
			orgs.GET("/:id/devices", orgHandler.GetOrgDevices)
			orgs.GET("/:id/summary", orgHandler.GetOrgSummary)
			orgs.GET("/:id/relations", orgHandler.GetOrgRelations)
		}

		// 用户关系
		users := api.Group("/users")
		{
			users.POST("/devices/batch", userHandler.BatchGetUserDevices)
			users.GET("/:id/orgs", userHandler.GetUserOrgs)
			users.GET("/:id/devices", userHandler.GetUserDevices)
			users.GET("/:id/relations", userHandler.GetUserRelations)
			users.GET("/:id/health/latest", userHandler.GetUserLatestHealth)
			users.GET("/:id/alerts", userHandler.GetUserActiveAlerts)
		}

		// 设备关系
		devices := api.Group("/devices")
		{
			devices.GET("/:id/owner", deviceHandler.GetDeviceOwner)
			devices.GET("/:id/org", deviceHandler.GetDeviceOrg)
		}

		// 运维管理
		admin := api.Group("/admin")
		{
			admin.GET("/consistency/check", adminHandler.CheckConsistency)
			admin.POST("/consistency/repair", adminHandler.RepairConsistency)
			admin.POST("/cache/warmup", adminHandler.ManualWarmup)
			admin.GET("/cache/warmup/status", adminHandler.WarmupStatus)
			admin.POST("/cache/refresh", adminHandler.RefreshCache)
		}
	}

	// 租户维度接口以路径参数定位租户，不要求 X-Tenant-ID
	tenants := r.Group("/api/tenants")
	{
		tenants.GET("/:id/users", tenantHandler.GetTenantUsers)
		tenants.GET("/:id/orgs", tenantHandler.GetTenantOrgs)
	}

	// Prometheus Metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check (支持 GET 和 HEAD 方法)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"type":   "api-server",
		})
	})
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(200)
	})

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not Found",
			"message": "The requested resource was not found.",
		})
	})

	return r
}
