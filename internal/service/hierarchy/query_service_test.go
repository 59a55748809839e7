package hierarchy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/BrunoGao/release-sub004/internal/cache"
	"github.com/BrunoGao/release-sub004/internal/model"
)

// 存储假实现：nil-client 缓存永远未命中，因此每次查询都会穿透到这里，
// 同时验证了缓存故障下的 fail-open 正确性

type fakeUserStore struct {
	mu            sync.Mutex
	orgsByUser    map[uint64][]uint64
	usersByOrg    map[uint64][]uint64
	idsByTenant   map[uint64][]uint64
	countByOrg    map[uint64]int64
	errOrgsByUser error
	callsByOrg    map[uint64]int
}

func (f *fakeUserStore) FindOrgIDsByUser(ctx context.Context, userID, tenantID uint64) ([]uint64, error) {
	if f.errOrgsByUser != nil {
		return nil, f.errOrgsByUser
	}
	return f.orgsByUser[userID], nil
}

func (f *fakeUserStore) FindUserIDsUnderOrg(ctx context.Context, orgID, tenantID uint64) ([]uint64, error) {
	f.mu.Lock()
	if f.callsByOrg == nil {
		f.callsByOrg = make(map[uint64]int)
	}
	f.callsByOrg[orgID]++
	f.mu.Unlock()
	return f.usersByOrg[orgID], nil
}

func (f *fakeUserStore) FindIDsByTenant(ctx context.Context, tenantID uint64) ([]uint64, error) {
	return f.idsByTenant[tenantID], nil
}

func (f *fakeUserStore) CountUsersUnderOrg(ctx context.Context, orgID, tenantID uint64) (int64, error) {
	return f.countByOrg[orgID], nil
}

type fakeDeviceStore struct {
	mu            sync.Mutex
	devices       map[uint64]*model.Device
	idsByUser     map[uint64][]uint64
	idsByOrg      map[uint64][]uint64
	batchCalls    int
	lastBatchArgs []uint64
}

func (f *fakeDeviceStore) FindByID(ctx context.Context, deviceID, tenantID uint64) (*model.Device, error) {
	if d, ok := f.devices[deviceID]; ok {
		return d, nil
	}
	return nil, errors.New("device not found")
}

func (f *fakeDeviceStore) FindIDsByUser(ctx context.Context, userID, tenantID uint64) ([]uint64, error) {
	return f.idsByUser[userID], nil
}

func (f *fakeDeviceStore) FindIDsUnderOrg(ctx context.Context, orgID, tenantID uint64) ([]uint64, error) {
	return f.idsByOrg[orgID], nil
}

func (f *fakeDeviceStore) FindIDsByUsers(ctx context.Context, userIDs []uint64, tenantID uint64) (map[uint64][]uint64, error) {
	f.mu.Lock()
	f.batchCalls++
	f.lastBatchArgs = append([]uint64(nil), userIDs...)
	f.mu.Unlock()

	result := make(map[uint64][]uint64)
	for _, id := range userIDs {
		if ids, ok := f.idsByUser[id]; ok {
			result[id] = ids
		}
	}
	return result, nil
}

type fakeHealthStore struct {
	latestByUser map[uint64]*model.LatestHealthReading
	summaryByOrg map[uint64]*model.OrgHealthSummary
}

func (f *fakeHealthStore) FindLatestByUser(ctx context.Context, userID, tenantID uint64) (*model.LatestHealthReading, error) {
	if r, ok := f.latestByUser[userID]; ok {
		return r, nil
	}
	return nil, errors.New("no health data")
}

func (f *fakeHealthStore) SummarizeOrg(ctx context.Context, orgID, tenantID uint64, userCount int64) (*model.OrgHealthSummary, error) {
	if s, ok := f.summaryByOrg[orgID]; ok {
		return s, nil
	}
	return &model.OrgHealthSummary{OrgID: orgID, UserCount: userCount}, nil
}

type fakeAlertStore struct {
	activeByUser map[uint64][]model.Alert
}

func (f *fakeAlertStore) FindActiveByUser(ctx context.Context, userID, tenantID uint64) ([]model.Alert, error) {
	return f.activeByUser[userID], nil
}

type fakeOrgStore struct {
	idsByTenant map[uint64][]uint64
}

func (f *fakeOrgStore) FindIDsByTenant(ctx context.Context, tenantID uint64) ([]uint64, error) {
	return f.idsByTenant[tenantID], nil
}

type fakeClosureReader struct {
	descendants map[uint64][]uint64
}

func (f *fakeClosureReader) GetDescendantIDs(ctx context.Context, nodeID, tenantID uint64) ([]uint64, error) {
	return f.descendants[nodeID], nil
}

func newTestQueryService(users *fakeUserStore, devices *fakeDeviceStore, health *fakeHealthStore, alerts *fakeAlertStore, orgs *fakeOrgStore, closure *fakeClosureReader) *QueryService {
	if users == nil {
		users = &fakeUserStore{}
	}
	if devices == nil {
		devices = &fakeDeviceStore{}
	}
	if health == nil {
		health = &fakeHealthStore{}
	}
	if alerts == nil {
		alerts = &fakeAlertStore{}
	}
	if orgs == nil {
		orgs = &fakeOrgStore{}
	}
	if closure == nil {
		closure = &fakeClosureReader{}
	}
	return NewQueryService(cache.NewRelationCache(nil, nil), users, devices, health, alerts, orgs, closure)
}

// TestGetOrgsForUser 缓存不可用时穿透到存储并返回正确结果
func TestGetOrgsForUser(t *testing.T) {
	users := &fakeUserStore{orgsByUser: map[uint64][]uint64{100: {1, 2, 3}}}
	svc := newTestQueryService(users, nil, nil, nil, nil, nil)

	ids, err := svc.GetOrgsForUser(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("GetOrgsForUser() error = %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("GetOrgsForUser() = %v, expected 3 orgs", ids)
	}
}

// TestGetOrgsForUserStoreError 存储错误向调用方透传
func TestGetOrgsForUserStoreError(t *testing.T) {
	users := &fakeUserStore{errOrgsByUser: errors.New("db down")}
	svc := newTestQueryService(users, nil, nil, nil, nil, nil)

	if _, err := svc.GetOrgsForUser(context.Background(), 100, 1); err == nil {
		t.Error("expected store error to propagate")
	}
}

// TestGetDeviceOwner 设备佩戴者查询（0表示未绑定）
func TestGetDeviceOwner(t *testing.T) {
	devices := &fakeDeviceStore{devices: map[uint64]*model.Device{
		9000: {ID: 9000, UserID: 42, OrgID: 7},
		9001: {ID: 9001, UserID: 0, OrgID: 7},
	}}
	svc := newTestQueryService(nil, devices, nil, nil, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		deviceID uint64
		expected uint64
	}{
		{"已绑定设备返回佩戴者", 9000, 42},
		{"未绑定设备返回0", 9001, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID, err := svc.GetDeviceOwner(ctx, tt.deviceID, 1)
			if err != nil {
				t.Fatalf("GetDeviceOwner() error = %v", err)
			}
			if userID != tt.expected {
				t.Errorf("GetDeviceOwner() = %d, expected %d", userID, tt.expected)
			}
		})
	}

	t.Run("设备不存在时报错", func(t *testing.T) {
		if _, err := svc.GetDeviceOwner(ctx, 9999, 1); err == nil {
			t.Error("expected error for unknown device")
		}
	})
}

// TestGetUserCompleteRelations 组合查询：单项失败只留零值，其余字段照常返回
func TestGetUserCompleteRelations(t *testing.T) {
	t.Run("全部子查询成功", func(t *testing.T) {
		users := &fakeUserStore{orgsByUser: map[uint64][]uint64{100: {1, 2}}}
		devices := &fakeDeviceStore{idsByUser: map[uint64][]uint64{100: {9000}}}
		health := &fakeHealthStore{latestByUser: map[uint64]*model.LatestHealthReading{
			100: {UserID: 100, HeartRate: 72},
		}}
		alerts := &fakeAlertStore{activeByUser: map[uint64][]model.Alert{
			100: {{ID: 1, UserID: 100}},
		}}
		svc := newTestQueryService(users, devices, health, alerts, nil, nil)

		rel := svc.GetUserCompleteRelations(context.Background(), 100, 1)
		if rel.UserID != 100 || rel.TenantID != 1 {
			t.Errorf("snapshot identity = (%d, %d), expected (100, 1)", rel.UserID, rel.TenantID)
		}
		if len(rel.OrgIDs) != 2 || len(rel.DeviceIDs) != 1 {
			t.Errorf("OrgIDs=%v DeviceIDs=%v, expected 2 orgs and 1 device", rel.OrgIDs, rel.DeviceIDs)
		}
		if rel.LatestHealth == nil || rel.LatestHealth.HeartRate != 72 {
			t.Errorf("LatestHealth = %v, expected heart rate 72", rel.LatestHealth)
		}
		if len(rel.ActiveAlerts) != 1 {
			t.Errorf("ActiveAlerts = %v, expected 1 alert", rel.ActiveAlerts)
		}
	})

	t.Run("部门子查询失败不影响其余字段", func(t *testing.T) {
		users := &fakeUserStore{errOrgsByUser: errors.New("db down")}
		devices := &fakeDeviceStore{idsByUser: map[uint64][]uint64{100: {9000, 9001}}}
		svc := newTestQueryService(users, devices, nil, nil, nil, nil)

		rel := svc.GetUserCompleteRelations(context.Background(), 100, 1)
		if rel.OrgIDs != nil {
			t.Errorf("OrgIDs = %v, expected zero value on sub-query failure", rel.OrgIDs)
		}
		if len(rel.DeviceIDs) != 2 {
			t.Errorf("DeviceIDs = %v, expected devices despite org failure", rel.DeviceIDs)
		}
	})
}

// TestGetOrgCompleteRelations 部门组合查询
func TestGetOrgCompleteRelations(t *testing.T) {
	users := &fakeUserStore{
		usersByOrg: map[uint64][]uint64{5: {100, 101}},
		countByOrg: map[uint64]int64{5: 2},
	}
	devices := &fakeDeviceStore{idsByOrg: map[uint64][]uint64{5: {9000}}}
	closure := &fakeClosureReader{descendants: map[uint64][]uint64{5: {6, 7}}}
	health := &fakeHealthStore{summaryByOrg: map[uint64]*model.OrgHealthSummary{
		5: {OrgID: 5, UserCount: 2, ReportedCount: 1},
	}}
	svc := newTestQueryService(users, devices, health, nil, nil, closure)

	rel := svc.GetOrgCompleteRelations(context.Background(), 5, 1)
	if len(rel.UserIDs) != 2 || len(rel.DeviceIDs) != 1 || len(rel.DescendantIDs) != 2 {
		t.Errorf("snapshot = %+v, expected 2 users, 1 device, 2 descendants", rel)
	}
	if rel.HealthSummary == nil || rel.HealthSummary.ReportedCount != 1 {
		t.Errorf("HealthSummary = %v, expected reported count 1", rel.HealthSummary)
	}
}

// TestBatchGetUserDevices 批量查询：未命中的用户合并成一次存储查询
func TestBatchGetUserDevices(t *testing.T) {
	devices := &fakeDeviceStore{idsByUser: map[uint64][]uint64{
		100: {9000},
		101: {9001, 9002},
	}}
	svc := newTestQueryService(nil, devices, nil, nil, nil, nil)

	result, err := svc.BatchGetUserDevices(context.Background(), []uint64{100, 101, 102}, 1)
	if err != nil {
		t.Fatalf("BatchGetUserDevices() error = %v", err)
	}

	// 缓存全部未命中，应该只打一次合并查询
	if devices.batchCalls != 1 {
		t.Errorf("store batch calls = %d, expected 1", devices.batchCalls)
	}
	if len(devices.lastBatchArgs) != 3 {
		t.Errorf("batch query args = %v, expected all 3 misses", devices.lastBatchArgs)
	}
	if len(result[100]) != 1 || len(result[101]) != 2 {
		t.Errorf("result = %v, expected devices for users 100 and 101", result)
	}
	// 没有设备的用户也要出现在结果里（空集合）
	if _, ok := result[102]; !ok {
		t.Error("user 102 missing from result, expected empty entry")
	}
}

// TestBatchGetOrgUsers 批量查询部门用户
func TestBatchGetOrgUsers(t *testing.T) {
	users := &fakeUserStore{usersByOrg: map[uint64][]uint64{
		5: {100},
		6: {101, 102},
	}}
	svc := newTestQueryService(users, nil, nil, nil, nil, nil)

	result, err := svc.BatchGetOrgUsers(context.Background(), []uint64{5, 6}, 1)
	if err != nil {
		t.Fatalf("BatchGetOrgUsers() error = %v", err)
	}
	if len(result[5]) != 1 || len(result[6]) != 2 {
		t.Errorf("result = %v, expected users for both orgs", result)
	}
}

// TestCacheAsideConsistency 冷缓存下反复查询结果一致，且始终反映存储当前状态
func TestCacheAsideConsistency(t *testing.T) {
	users := &fakeUserStore{orgsByUser: map[uint64][]uint64{100: {1, 2}}}
	svc := newTestQueryService(users, nil, nil, nil, nil, nil)
	ctx := context.Background()

	first, err := svc.GetOrgsForUser(ctx, 100, 1)
	if err != nil {
		t.Fatalf("first call error = %v", err)
	}

	// 模拟存储侧变更后，下一次读取立即反映新状态
	users.orgsByUser[100] = []uint64{1, 2, 3}
	second, err := svc.GetOrgsForUser(ctx, 100, 1)
	if err != nil {
		t.Fatalf("second call error = %v", err)
	}
	if len(first) != 2 || len(second) != 3 {
		t.Errorf("reads = %v then %v, expected store state to flow through", first, second)
	}
}
