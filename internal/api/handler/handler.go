// Package handler 提供统一的 handler 导出
// 所有 handler 按功能模块分类到子目录中
package handler

import (
	hierarchyHandler "github.com/BrunoGao/release-sub004/internal/api/handler/hierarchy"
)

// Hierarchy handlers
type OrgHandler = hierarchyHandler.OrgHandler
type UserHandler = hierarchyHandler.UserHandler
type DeviceHandler = hierarchyHandler.DeviceHandler
type TenantHandler = hierarchyHandler.TenantHandler
type AdminHandler = hierarchyHandler.AdminHandler

var NewOrgHandler = hierarchyHandler.NewOrgHandler
var NewUserHandler = hierarchyHandler.NewUserHandler
var NewDeviceHandler = hierarchyHandler.NewDeviceHandler
var NewTenantHandler = hierarchyHandler.NewTenantHandler
var NewAdminHandler = hierarchyHandler.NewAdminHandler
