package cache

import (
	"testing"
)

// TestKey 测试缓存键格式
func TestKey(t *testing.T) {
	tests := []struct {
		name      string
		kind      RelationKind
		tenantID  uint64
		subjectID uint64
		expected  string
	}{
		{"用户部门关系", KindUserOrgs, 1, 100, "rel:user_orgs:1:100"},
		{"租户用户关系", KindTenantUsers, 7, 7, "rel:tenant_users:7:7"},
		{"设备佩戴者关系", KindDeviceUser, 3, 9000, "rel:device_user:3:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Key(tt.kind, tt.tenantID, tt.subjectID)
			if got != tt.expected {
				t.Errorf("Key() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

// TestTTLClassOf 测试TTL档位归类
func TestTTLClassOf(t *testing.T) {
	tests := []struct {
		name     string
		kind     RelationKind
		expected TTLClass
	}{
		{"租户用户走长档", KindTenantUsers, TTLLong},
		{"租户组织走长档", KindTenantOrgs, TTLLong},
		{"最新健康读数走短档", KindUserLatestHealth, TTLShort},
		{"活跃告警走短档", KindUserActiveAlerts, TTLShort},
		{"部门健康汇总走短档", KindOrgHealthSummary, TTLShort},
		{"用户部门关系走中档", KindUserOrgs, TTLMedium},
		{"部门后代关系走中档", KindOrgDescendants, TTLMedium},
		{"设备归属走中档", KindDeviceOrg, TTLMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TTLClassOf(tt.kind); got != tt.expected {
				t.Errorf("TTLClassOf(%s) = %s, expected %s", tt.kind, got, tt.expected)
			}
		})
	}
}

// TestEvictionListsCoverAllKinds 四张失效清单合起来覆盖全部关系种类
func TestEvictionListsCoverAllKinds(t *testing.T) {
	all := []RelationKind{
		KindTenantUsers, KindTenantOrgs, KindUserOrgs, KindOrgUsers,
		KindOrgDescendants, KindUserDevices, KindDeviceUser, KindDeviceOrg,
		KindOrgDevices, KindUserLatestHealth, KindUserActiveAlerts, KindOrgHealthSummary,
	}

	covered := make(map[RelationKind]bool)
	for _, list := range [][]RelationKind{OrgStructureKinds, TenantScopeKinds, UserScopeKinds, DeviceScopeKinds} {
		for _, kind := range list {
			if covered[kind] {
				t.Errorf("kind %s appears in more than one eviction list", kind)
			}
			covered[kind] = true
		}
	}

	for _, kind := range all {
		if !covered[kind] {
			t.Errorf("kind %s is not covered by any eviction list", kind)
		}
	}
}
