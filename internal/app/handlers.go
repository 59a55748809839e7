package app

import (
	"github.com/BrunoGao/release-sub004/internal/api/handler"
)

// Handlers 包含所有 Handler 实例
type Handlers struct {
	Org    *handler.OrgHandler
	User   *handler.UserHandler
	Device *handler.DeviceHandler
	Tenant *handler.TenantHandler
	Admin  *handler.AdminHandler
}

// InitializeHandlers 初始化所有 Handler
func InitializeHandlers(repos *Repositories, services *Services) *Handlers {
	return &Handlers{
		Org:    handler.NewOrgHandler(services.Hierarchy, services.Query, repos.Closure, repos.OrgNode),
		User:   handler.NewUserHandler(services.Query),
		Device: handler.NewDeviceHandler(services.Query),
		Tenant: handler.NewTenantHandler(services.Query),
		Admin:  handler.NewAdminHandler(services.Hierarchy, services.Query, services.Warmup),
	}
}
