package distributed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// TenantLocker 租户级结构变更锁
// 同一租户内的组织结构变更（插入/删除/移动/修复）必须串行执行：
// 闭包表的重建读、批量删除不在单条SQL内完成，两个并发的move交错
// 会产生可提交但错误的闭包状态。事务隔离挡不住这类交错，这里用
// 租户粒度的互斥锁把结构变更排成队
//
// Redis可用时用分布式锁（多实例部署安全），否则退化为进程内互斥锁
// （单实例部署下等价）
type TenantLocker struct {
	client *redis.Client
	expiry time.Duration

	mu     sync.Mutex
	local  map[string]*sync.Mutex
	active map[string]*RedisLock
}

// NewTenantLocker 创建租户锁管理器
// client 为 nil 时全部走进程内锁
func NewTenantLocker(client *redis.Client, expiry time.Duration) *TenantLocker {
	if expiry <= 0 {
		expiry = 30 * time.Second
	}
	return &TenantLocker{
		client: client,
		expiry: expiry,
		local:  make(map[string]*sync.Mutex),
		active: make(map[string]*RedisLock),
	}
}

// Lock 获取指定租户的变更锁，阻塞直到成功或ctx取消
func (t *TenantLocker) Lock(ctx context.Context, tenantID uint64) error {
	key := t.lockKey(tenantID)

	// 进程内锁永远先拿：同实例内排队，避免多个goroutine都去轮询Redis
	localMu := t.localMutex(key)
	localMu.Lock()

	if t.client == nil {
		return nil
	}

	lock := NewRedisLock(t.client, key, t.expiry)
	if err := lock.Lock(ctx); err != nil {
		localMu.Unlock()
		return fmt.Errorf("failed to acquire tenant mutation lock for tenant %d: %w", tenantID, err)
	}

	t.mu.Lock()
	t.active[key] = lock
	t.mu.Unlock()
	return nil
}

// Unlock 释放指定租户的变更锁
func (t *TenantLocker) Unlock(tenantID uint64) {
	key := t.lockKey(tenantID)

	if t.client != nil {
		t.mu.Lock()
		lock := t.active[key]
		delete(t.active, key)
		t.mu.Unlock()

		if lock != nil {
			lock.Unlock()
		}
	}

	t.localMutex(key).Unlock()
}

func (t *TenantLocker) lockKey(tenantID uint64) string {
	return fmt.Sprintf("org:mutation:lock:%d", tenantID)
}

func (t *TenantLocker) localMutex(key string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	mu, ok := t.local[key]
	if !ok {
		mu = &sync.Mutex{}
		t.local[key] = mu
	}
	return mu
}
