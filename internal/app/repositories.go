package app

import (
	"github.com/BrunoGao/release-sub004/internal/repository"
	"github.com/BrunoGao/release-sub004/pkg/database"
)

// Repositories 包含所有 Repository 实例
type Repositories struct {
	Closure      *repository.ClosureRepository
	OrgNode      *repository.OrgNodeRepository
	User         *repository.UserRepository
	Device       *repository.DeviceRepository
	HealthData   *repository.HealthDataRepository
	Alert        *repository.AlertRepository
	RelationBulk *repository.RelationBulkRepository
}

// InitializeRepositories 初始化所有 Repository
func InitializeRepositories() *Repositories {
	return &Repositories{
		Closure:      repository.NewClosureRepository(database.DB),
		OrgNode:      repository.NewOrgNodeRepository(database.DB),
		User:         repository.NewUserRepository(database.DB),
		Device:       repository.NewDeviceRepository(database.DB),
		HealthData:   repository.NewHealthDataRepository(database.DB),
		Alert:        repository.NewAlertRepository(database.DB),
		RelationBulk: repository.NewRelationBulkRepository(database.DB),
	}
}
