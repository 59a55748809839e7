package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BrunoGao/release-sub004/internal/api/router"
	"github.com/BrunoGao/release-sub004/pkg/config"
	"github.com/BrunoGao/release-sub004/pkg/database"
	"github.com/BrunoGao/release-sub004/pkg/logger"
	pkgredis "github.com/BrunoGao/release-sub004/pkg/redis"
)

// StartServer 启动 HTTP 服务器
func StartServer(
	cfg *config.Config,
	handlers *Handlers,
	services *Services,
	backgroundServices *BackgroundServices,
) {
	// Setup router
	r := router.Setup(
		handlers.Org,
		handlers.User,
		handlers.Device,
		handlers.Tenant,
		handlers.Admin,
		cfg.Server.Mode,
	)

	// 启动预热（异步，不阻塞服务启动；失败的组由定时任务重试）
	if cfg.Warmup.Enabled == nil || *cfg.Warmup.Enabled {
		go func() {
			// 等待数据库连接完全就绪
			time.Sleep(3 * time.Second)
			services.Warmup.RunStartupWarmup(context.Background())
		}()
	} else {
		logger.Info("Startup warmup disabled in config")
	}

	// 启动缓存刷新调度器
	backgroundServices.CacheRefresh.Start()

	// Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.APIPort)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Print startup banner
	printStartupBanner(cfg)

	// Start HTTP server in goroutine
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Infof("\nShutting down gracefully...")

	// Create shutdown context with 10s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// 1. Shutdown HTTP server
	logger.Infof("  → Stopping HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Infof("  Warning: HTTP server shutdown error: %v", err)
	} else {
		logger.Infof("  ✓ HTTP server stopped")
	}

	// 2. Stop cache refresh scheduler
	logger.Infof("  → Stopping cache refresh scheduler...")
	backgroundServices.CacheRefresh.Stop()
	logger.Infof("  ✓ Cache refresh scheduler stopped")

	// 3. Close database
	logger.Infof("  → Closing database...")
	database.Close()
	logger.Infof("  ✓ Database closed")

	// 4. Close Redis if enabled
	if cfg.Redis.Enabled {
		logger.Infof("  → Closing Redis...")
		pkgredis.Close()
		logger.Infof("  ✓ Redis closed")
	}

	logger.Infof("")
	logger.Infof("Shutdown complete")
	logger.Infof("")
}

// printStartupBanner 打印启动横幅
func printStartupBanner(cfg *config.Config) {
	logger.Infof("")
	logger.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	logger.Infof("OrgIndex Server - Multi-Tenant Hierarchy & Relation Cache")
	logger.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	logger.Infof("")
	logger.Infof("Features:")
	logger.Infof("   • Closure Table Hierarchy - O(1) subtree & ancestor queries")
	logger.Infof("   • Relation Cache - Redis cache-aside with precise eviction")
	logger.Infof("   • Cache Warmup - Bulk grouped loads at startup")
	logger.Infof("   • Consistency Tooling - Check & repair closure invariants")
	logger.Infof("")
	logger.Infof("Endpoints:")
	logger.Infof("   • API        - http://localhost:%d/api", cfg.Server.APIPort)
	logger.Infof("   • Metrics    - http://localhost:%d/metrics", cfg.Server.APIPort)
	logger.Infof("   • Health     - http://localhost:%d/health", cfg.Server.APIPort)
	logger.Infof("")
	logger.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	logger.Infof("")
}
