package cache

import (
	"fmt"
	"time"
)

// RelationKind 关系种类，决定缓存键空间与TTL档位
type RelationKind string

const (
	KindTenantUsers      RelationKind = "tenant_users"       // 租户 → 用户ID集合
	KindTenantOrgs       RelationKind = "tenant_orgs"        // 租户 → 组织ID集合
	KindUserOrgs         RelationKind = "user_orgs"          // 用户 → 部门ID集合
	KindOrgUsers         RelationKind = "org_users"          // 部门 → 用户ID集合（含子部门）
	KindOrgDescendants   RelationKind = "org_descendants"    // 组织 → 后代组织ID集合
	KindUserDevices      RelationKind = "user_devices"       // 用户 → 设备ID集合
	KindDeviceUser       RelationKind = "device_user"        // 设备 → 佩戴者ID
	KindDeviceOrg        RelationKind = "device_org"         // 设备 → 归属部门ID
	KindOrgDevices       RelationKind = "org_devices"        // 部门 → 设备ID集合（含子部门）
	KindUserLatestHealth RelationKind = "user_latest_health" // 用户 → 最新健康读数
	KindUserActiveAlerts RelationKind = "user_active_alerts" // 用户 → 活跃告警列表
	KindOrgHealthSummary RelationKind = "org_health_summary" // 部门 → 健康汇总
)

// TTLClass TTL档位
type TTLClass string

const (
	TTLShort  TTLClass = "short"  // 5分钟：快变的业务聚合
	TTLMedium TTLClass = "medium" // 30分钟：结构关系
	TTLLong   TTLClass = "long"   // 60分钟：租户级全量关系
)

// TTLClassOf 每类关系的TTL档位
func TTLClassOf(kind RelationKind) TTLClass {
	switch kind {
	case KindTenantUsers, KindTenantOrgs:
		return TTLLong
	case KindUserLatestHealth, KindUserActiveAlerts, KindOrgHealthSummary:
		return TTLShort
	default:
		return TTLMedium
	}
}

// Key 缓存键：rel:{kind}:{tenantID}:{subjectID}
func Key(kind RelationKind, tenantID, subjectID uint64) string {
	return fmt.Sprintf("rel:%s:%d:%d", kind, tenantID, subjectID)
}

// 结构变更的精确失效清单：每种变更类型只清它确实触碰的关系，
// 不做模式扫描（KEYS/SCAN在缓存库上既不原子也不可扩展）

// OrgStructureKinds 受组织结构变更影响的组织侧关系
var OrgStructureKinds = []RelationKind{
	KindOrgUsers, KindOrgDescendants, KindOrgDevices, KindOrgHealthSummary,
}

// TenantScopeKinds 受组织结构变更影响的租户级关系
var TenantScopeKinds = []RelationKind{
	KindTenantUsers, KindTenantOrgs,
}

// UserScopeKinds 用户主体的全部关系（硬删除组织时连带用户成员关系失效）
var UserScopeKinds = []RelationKind{
	KindUserOrgs, KindUserDevices, KindUserLatestHealth, KindUserActiveAlerts,
}

// DeviceScopeKinds 设备主体的全部关系
var DeviceScopeKinds = []RelationKind{
	KindDeviceUser, KindDeviceOrg,
}

// DefaultTTLs 各档位默认TTL
func DefaultTTLs() map[TTLClass]time.Duration {
	return map[TTLClass]time.Duration{
		TTLShort:  5 * time.Minute,
		TTLMedium: 30 * time.Minute,
		TTLLong:   60 * time.Minute,
	}
}
