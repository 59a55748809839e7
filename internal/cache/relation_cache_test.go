package cache

import (
	"context"
	"testing"
	"time"

	"github.com/BrunoGao/release-sub004/pkg/config"
)

// TestNilClientFailOpen Redis未启用（client为nil）时所有读写降级为未命中/空操作
func TestNilClientFailOpen(t *testing.T) {
	c := NewRelationCache(nil, nil)
	ctx := context.Background()

	t.Run("GetIDs未命中", func(t *testing.T) {
		if ids, ok := c.GetIDs(ctx, KindUserOrgs, 1, 100); ok || ids != nil {
			t.Errorf("GetIDs with nil client = (%v, %v), expected miss", ids, ok)
		}
	})

	t.Run("PutIDs后依然未命中", func(t *testing.T) {
		c.PutIDs(ctx, KindUserOrgs, 1, 100, []uint64{1, 2, 3})
		if _, ok := c.GetIDs(ctx, KindUserOrgs, 1, 100); ok {
			t.Error("PutIDs with nil client should be a no-op")
		}
	})

	t.Run("GetID未命中", func(t *testing.T) {
		if id, ok := c.GetID(ctx, KindDeviceUser, 1, 9000); ok || id != 0 {
			t.Errorf("GetID with nil client = (%d, %v), expected miss", id, ok)
		}
	})

	t.Run("GetObject未命中", func(t *testing.T) {
		var out map[string]int
		if ok := c.GetObject(ctx, KindOrgHealthSummary, 1, 5, &out); ok {
			t.Error("GetObject with nil client should miss")
		}
	})

	t.Run("BatchGetIDs全部未命中", func(t *testing.T) {
		subjects := []uint64{1, 2, 3}
		hits, misses := c.BatchGetIDs(ctx, KindUserDevices, 1, subjects)
		if len(hits) != 0 {
			t.Errorf("hits = %v, expected none", hits)
		}
		if len(misses) != len(subjects) {
			t.Errorf("misses = %v, expected all of %v", misses, subjects)
		}
	})

	t.Run("Evict不会panic", func(t *testing.T) {
		c.Evict(ctx, 1, 100, UserScopeKinds...)
		c.EvictMany(ctx, 1, []uint64{1, 2}, OrgStructureKinds...)
	})
}

// TestBatchGetIDsEmptyInput 空主体列表直接返回
func TestBatchGetIDsEmptyInput(t *testing.T) {
	c := NewRelationCache(nil, nil)
	hits, misses := c.BatchGetIDs(context.Background(), KindOrgUsers, 1, nil)
	if len(hits) != 0 || len(misses) != 0 {
		t.Errorf("BatchGetIDs(nil) = (%v, %v), expected empty", hits, misses)
	}
}

// TestTTLConfiguration TTL按配置的档位生效
func TestTTLConfiguration(t *testing.T) {
	cfg := &config.CacheConfig{
		OpTimeoutMs:      100,
		ShortTTLMinutes:  3,
		MediumTTLMinutes: 20,
		LongTTLMinutes:   90,
	}
	c := NewRelationCache(nil, cfg)

	tests := []struct {
		name     string
		kind     RelationKind
		expected time.Duration
	}{
		{"短档取配置值", KindUserLatestHealth, 3 * time.Minute},
		{"中档取配置值", KindUserOrgs, 20 * time.Minute},
		{"长档取配置值", KindTenantUsers, 90 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.TTL(tt.kind); got != tt.expected {
				t.Errorf("TTL(%s) = %v, expected %v", tt.kind, got, tt.expected)
			}
		})
	}
}

// TestDefaultTTLs 未提供配置时使用默认档位
func TestDefaultTTLs(t *testing.T) {
	c := NewRelationCache(nil, nil)
	if got := c.TTL(KindUserLatestHealth); got != 5*time.Minute {
		t.Errorf("default short TTL = %v, expected 5m", got)
	}
	if got := c.TTL(KindOrgUsers); got != 30*time.Minute {
		t.Errorf("default medium TTL = %v, expected 30m", got)
	}
	if got := c.TTL(KindTenantOrgs); got != 60*time.Minute {
		t.Errorf("default long TTL = %v, expected 60m", got)
	}
}
