package hierarchy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/BrunoGao/release-sub004/internal/cache"
	"github.com/BrunoGao/release-sub004/internal/model"
	"github.com/BrunoGao/release-sub004/internal/repository"
	"github.com/BrunoGao/release-sub004/pkg/config"
)

type fakeBulkLoader struct {
	mu          sync.Mutex
	calls       map[string]int
	failTenant  bool
	failUser    bool
	failOrg     bool
	failDevice  bool
	tenantCalls int
}

func (f *fakeBulkLoader) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeBulkLoader) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBulkLoader) LoadTenantUsers(ctx context.Context) ([]repository.SubjectIDs, error) {
	f.record("tenant_users")
	if f.failTenant {
		return nil, errors.New("load failed")
	}
	return []repository.SubjectIDs{{TenantID: 1, SubjectID: 1, IDs: []uint64{100}}}, nil
}

func (f *fakeBulkLoader) LoadTenantOrgs(ctx context.Context) ([]repository.SubjectIDs, error) {
	f.record("tenant_orgs")
	return []repository.SubjectIDs{{TenantID: 1, SubjectID: 1, IDs: []uint64{5}}}, nil
}

func (f *fakeBulkLoader) LoadUserOrgs(ctx context.Context) ([]repository.SubjectIDs, error) {
	f.record("user_orgs")
	if f.failUser {
		return nil, errors.New("load failed")
	}
	return nil, nil
}

func (f *fakeBulkLoader) LoadUserDevices(ctx context.Context) ([]repository.SubjectIDs, error) {
	f.record("user_devices")
	return nil, nil
}

func (f *fakeBulkLoader) LoadOrgUsers(ctx context.Context) ([]repository.SubjectIDs, error) {
	f.record("org_users")
	if f.failOrg {
		return nil, errors.New("load failed")
	}
	return nil, nil
}

func (f *fakeBulkLoader) LoadOrgDescendants(ctx context.Context) ([]repository.SubjectIDs, error) {
	f.record("org_descendants")
	return nil, nil
}

func (f *fakeBulkLoader) LoadOrgDevices(ctx context.Context) ([]repository.SubjectIDs, error) {
	f.record("org_devices")
	return nil, nil
}

func (f *fakeBulkLoader) LoadDeviceBindings(ctx context.Context) ([]repository.DeviceBinding, error) {
	f.record("device_bindings")
	if f.failDevice {
		return nil, errors.New("load failed")
	}
	return []repository.DeviceBinding{{TenantID: 1, DeviceID: 9000, UserID: 100, OrgID: 5}}, nil
}

func (f *fakeBulkLoader) ListTenantIDs(ctx context.Context) ([]uint64, error) {
	f.mu.Lock()
	f.tenantCalls++
	f.mu.Unlock()
	return []uint64{1}, nil
}

type fakeHotDataLoader struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeHotDataLoader) FindLatestByTenant(ctx context.Context, tenantID uint64) ([]model.LatestHealthReading, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return nil, nil
}

func (f *fakeHotDataLoader) SummarizeOrgsByTenant(ctx context.Context, tenantID uint64) ([]model.OrgHealthSummary, error) {
	return nil, nil
}

type fakeHotAlertLoader struct{}

func (f *fakeHotAlertLoader) FindActiveByTenant(ctx context.Context, tenantID uint64) (map[uint64][]model.Alert, error) {
	return nil, nil
}

func newTestWarmupService(bulk *fakeBulkLoader, health *fakeHotDataLoader) *WarmupService {
	if health == nil {
		health = &fakeHotDataLoader{}
	}
	cfg := &config.WarmupConfig{LoadTimeoutSeconds: 5}
	return NewWarmupService(bulk, health, &fakeHotAlertLoader{}, cache.NewRelationCache(nil, nil), cfg)
}

// TestRunStartupWarmup 四组全部成功后预热完成
func TestRunStartupWarmup(t *testing.T) {
	bulk := &fakeBulkLoader{}
	svc := newTestWarmupService(bulk, nil)

	if svc.IsWarmupCompleted() {
		t.Fatal("warmup should not be completed before any run")
	}

	svc.RunStartupWarmup(context.Background())
	if !svc.IsWarmupCompleted() {
		t.Error("warmup should be completed after all four loads succeed")
	}
}

// TestWarmupRetryOnlyFailedGroups 失败的组在下一轮重试，已成功的组跳过
func TestWarmupRetryOnlyFailedGroups(t *testing.T) {
	bulk := &fakeBulkLoader{failOrg: true}
	svc := newTestWarmupService(bulk, nil)
	ctx := context.Background()

	svc.RunStartupWarmup(ctx)
	if svc.IsWarmupCompleted() {
		t.Fatal("warmup should not complete while the org group fails")
	}
	if bulk.count("tenant_users") != 1 || bulk.count("org_users") != 1 {
		t.Fatalf("unexpected first-pass call counts: %v", bulk.calls)
	}

	// 故障恢复后重试：只有失败过的组重新加载
	bulk.failOrg = false
	svc.RunStartupWarmup(ctx)

	if !svc.IsWarmupCompleted() {
		t.Error("warmup should complete after the retry succeeds")
	}
	if got := bulk.count("tenant_users"); got != 1 {
		t.Errorf("tenant group loaded %d times, expected 1 (already succeeded)", got)
	}
	if got := bulk.count("org_users"); got != 2 {
		t.Errorf("org group loaded %d times, expected 2 (one retry)", got)
	}
}

// TestManualWarmup 手动预热重置标记并全量重跑
func TestManualWarmup(t *testing.T) {
	bulk := &fakeBulkLoader{}
	svc := newTestWarmupService(bulk, nil)
	ctx := context.Background()

	svc.RunStartupWarmup(ctx)
	if !svc.IsWarmupCompleted() {
		t.Fatal("initial warmup should complete")
	}

	svc.ManualWarmup(ctx)
	if !svc.IsWarmupCompleted() {
		t.Error("manual warmup should complete")
	}
	if got := bulk.count("tenant_users"); got != 2 {
		t.Errorf("tenant group loaded %d times, expected 2 (manual rerun reloads everything)", got)
	}
}

// TestRefreshHotDataGuard 预热未完成时热数据刷新是空操作
func TestRefreshHotDataGuard(t *testing.T) {
	bulk := &fakeBulkLoader{failDevice: true}
	health := &fakeHotDataLoader{}
	svc := newTestWarmupService(bulk, health)
	ctx := context.Background()

	svc.RunStartupWarmup(ctx)
	svc.RefreshHotData(ctx)
	if bulk.tenantCalls != 0 || health.calls != 0 {
		t.Error("RefreshHotData should be a no-op until warmup completes")
	}

	bulk.failDevice = false
	svc.RunStartupWarmup(ctx)
	svc.RefreshHotData(ctx)
	if bulk.tenantCalls != 1 {
		t.Errorf("ListTenantIDs called %d times, expected 1 after warm", bulk.tenantCalls)
	}
	if health.calls != 1 {
		t.Errorf("hot data loaded %d times, expected 1", health.calls)
	}
}
