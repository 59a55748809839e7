package app

import (
	"log"
	"os"

	"github.com/BrunoGao/release-sub004/pkg/config"
	"github.com/BrunoGao/release-sub004/pkg/database"
	"github.com/BrunoGao/release-sub004/pkg/logger"
	pkgredis "github.com/BrunoGao/release-sub004/pkg/redis"
)

// Bootstrap 初始化基础设施（logger, database, redis）
func Bootstrap(cfgPath string) (*config.Config, error) {
	// 支持通过环境变量指定配置文件路径
	if cfgPath == "" {
		cfgPath = os.Getenv("ORGINDEX_CONFIG")
		if cfgPath == "" {
			cfgPath = "config/config.yaml"
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	// Initialize logger
	if err := logger.Init(&cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize database
	if err := database.Init(&cfg.Database); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	logger.Infof("Database initialized successfully")

	// Initialize Redis (optional, for relation cache and tenant locks)
	if err := pkgredis.Init(&cfg.Redis); err != nil {
		logger.Warnf("⚠️  Redis initialization failed: %v", err)
		logger.Info("   → Relation cache disabled, all queries go to the database")
		logger.Info("   → Tenant mutation locks fall back to in-process mutexes")
	} else if cfg.Redis.Enabled {
		logger.Infof("✅ Redis initialized successfully - relation cache enabled")
	} else {
		logger.Info("ℹ️  Redis is disabled in config - database-only mode")
	}

	return cfg, nil
}
