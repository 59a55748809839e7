package hierarchy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BrunoGao/release-sub004/internal/audit"
	"github.com/BrunoGao/release-sub004/internal/cache"
	"github.com/BrunoGao/release-sub004/internal/model"
	"github.com/BrunoGao/release-sub004/pkg/distributed"
)

type nopAuditor struct{}

func (nopAuditor) RecordMutation(ctx context.Context, record *audit.MutationRecord) {}

type fakeMutationStore struct {
	mu           sync.Mutex
	moveErr      error
	descendants  []uint64
	ancestors    []model.OrgNodeWithDepth
	ancestorCtxs chan context.Context
}

func (f *fakeMutationStore) InsertNode(ctx context.Context, node *model.OrgNode, parentID, tenantID uint64) (uint64, error) {
	return 0, errors.New("not used")
}

func (f *fakeMutationStore) BatchInsertNodes(ctx context.Context, nodes []*model.OrgNode, parentIDs []uint64, tenantID uint64) ([]uint64, error) {
	return nil, errors.New("not used")
}

func (f *fakeMutationStore) DeleteSubtree(ctx context.Context, nodeID, tenantID uint64, hard bool) (int64, error) {
	return 0, errors.New("not used")
}

func (f *fakeMutationStore) MoveSubtree(ctx context.Context, nodeID, newParentID, tenantID uint64) (bool, error) {
	if f.moveErr != nil {
		return false, f.moveErr
	}
	return true, nil
}

func (f *fakeMutationStore) CheckConsistency(ctx context.Context, tenantID uint64) (*model.ConsistencyReport, error) {
	return &model.ConsistencyReport{}, nil
}

func (f *fakeMutationStore) RepairConsistency(ctx context.Context, tenantID uint64) (*model.RepairReport, error) {
	return &model.RepairReport{}, nil
}

func (f *fakeMutationStore) GetDescendantIDs(ctx context.Context, nodeID, tenantID uint64) ([]uint64, error) {
	return f.descendants, nil
}

func (f *fakeMutationStore) GetAncestors(ctx context.Context, nodeID, tenantID uint64) ([]model.OrgNodeWithDepth, error) {
	f.ancestorCtxs <- ctx
	return f.ancestors, nil
}

func newTestHierarchyService(store *fakeMutationStore) *HierarchyService {
	return NewHierarchyService(
		store,
		&fakeOrgStore{},
		&fakeUserStore{},
		&fakeDeviceStore{},
		cache.NewRelationCache(nil, nil),
		distributed.NewTenantLocker(nil, 30*time.Second),
		nopAuditor{},
		time.Second,
	)
}

// TestMoveSubtreeEvictionUsesFreshContext 移动后的新祖先链收集不复用变更事务的context：
// 事务context可能已接近超时，失效清单的读取必须用不带截止时间的新context
func TestMoveSubtreeEvictionUsesFreshContext(t *testing.T) {
	store := &fakeMutationStore{
		descendants:  []uint64{3},
		ancestors:    []model.OrgNodeWithDepth{{OrgNode: model.OrgNode{ID: 1}, Depth: 1}},
		ancestorCtxs: make(chan context.Context, 4),
	}
	svc := newTestHierarchyService(store)

	ok, err := svc.MoveSubtree(context.Background(), 2, 4, 1)
	if err != nil || !ok {
		t.Fatalf("MoveSubtree() = %v, %v, expected success", ok, err)
	}

	// 第一次收集在移动前，带变更超时
	preMoveCtx := <-store.ancestorCtxs
	if _, hasDeadline := preMoveCtx.Deadline(); !hasDeadline {
		t.Error("pre-move scope collection should run under the mutation deadline")
	}

	// 第二次收集在失效协程里，必须不带截止时间
	select {
	case postMoveCtx := <-store.ancestorCtxs:
		if deadline, hasDeadline := postMoveCtx.Deadline(); hasDeadline {
			t.Errorf("post-move scope collection must not inherit the mutation deadline (got %v)", deadline)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("post-move scope collection never happened")
	}
}

// TestMoveSubtreeFailureSkipsEviction 移动失败时不应再收集新祖先链、不触发失效
func TestMoveSubtreeFailureSkipsEviction(t *testing.T) {
	store := &fakeMutationStore{
		moveErr:      errors.New("move rejected"),
		ancestorCtxs: make(chan context.Context, 4),
	}
	svc := newTestHierarchyService(store)

	ok, err := svc.MoveSubtree(context.Background(), 2, 4, 1)
	if err == nil || ok {
		t.Fatalf("MoveSubtree() = %v, %v, expected failure", ok, err)
	}

	// 消费掉移动前的那次收集
	<-store.ancestorCtxs

	select {
	case <-store.ancestorCtxs:
		t.Error("failed move must not collect the new ancestor chain")
	case <-time.After(200 * time.Millisecond):
	}
}
