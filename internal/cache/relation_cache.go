package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BrunoGao/release-sub004/pkg/config"
	"github.com/BrunoGao/release-sub004/pkg/logger"
	"github.com/BrunoGao/release-sub004/pkg/metrics"
	"github.com/go-redis/redis/v8"
)

// RelationCache 关系缓存
// 缓存条目是闭包表状态的可丢弃投影：随时可以清掉重建，不承载独立事实。
// 所有操作带短超时且对失败完全吞并（fail-open）——超时、连接错误、
// 解码失败一律按未命中处理，绝不向调用方冒泡，也绝不阻塞主流程。
// client 为 nil（Redis未启用）时所有读取未命中、所有写入为空操作
type RelationCache struct {
	client    *redis.Client
	opTimeout time.Duration
	ttls      map[TTLClass]time.Duration
}

// NewRelationCache 创建关系缓存
func NewRelationCache(client *redis.Client, cfg *config.CacheConfig) *RelationCache {
	ttls := DefaultTTLs()
	opTimeout := 200 * time.Millisecond
	if cfg != nil {
		ttls[TTLShort] = time.Duration(cfg.ShortTTLMinutes) * time.Minute
		ttls[TTLMedium] = time.Duration(cfg.MediumTTLMinutes) * time.Minute
		ttls[TTLLong] = time.Duration(cfg.LongTTLMinutes) * time.Minute
		opTimeout = time.Duration(cfg.OpTimeoutMs) * time.Millisecond
	}
	return &RelationCache{
		client:    client,
		opTimeout: opTimeout,
		ttls:      ttls,
	}
}

// TTL 指定关系种类的过期时间
func (c *RelationCache) TTL(kind RelationKind) time.Duration {
	return c.ttls[TTLClassOf(kind)]
}

// GetIDs 读取ID集合类关系
// 空集合视为未命中：晚到的关联数据不能被"当前为空"的缓存值掩盖
func (c *RelationCache) GetIDs(ctx context.Context, kind RelationKind, tenantID, subjectID uint64) ([]uint64, bool) {
	var ids []uint64
	if !c.getJSON(ctx, kind, tenantID, subjectID, &ids) || len(ids) == 0 {
		return nil, false
	}
	metrics.CacheHitsTotal.WithLabelValues(string(kind)).Inc()
	return ids, true
}

// PutIDs 写入ID集合类关系（重置TTL）
func (c *RelationCache) PutIDs(ctx context.Context, kind RelationKind, tenantID, subjectID uint64, ids []uint64) {
	c.putJSON(ctx, kind, tenantID, subjectID, ids)
}

// GetID 读取单值类关系（device→user 等）
func (c *RelationCache) GetID(ctx context.Context, kind RelationKind, tenantID, subjectID uint64) (uint64, bool) {
	var id uint64
	if !c.getJSON(ctx, kind, tenantID, subjectID, &id) || id == 0 {
		return 0, false
	}
	metrics.CacheHitsTotal.WithLabelValues(string(kind)).Inc()
	return id, true
}

// PutID 写入单值类关系
func (c *RelationCache) PutID(ctx context.Context, kind RelationKind, tenantID, subjectID, id uint64) {
	c.putJSON(ctx, kind, tenantID, subjectID, id)
}

// GetObject 读取聚合对象类关系（最新读数、健康汇总等）
func (c *RelationCache) GetObject(ctx context.Context, kind RelationKind, tenantID, subjectID uint64, out interface{}) bool {
	if !c.getJSON(ctx, kind, tenantID, subjectID, out) {
		return false
	}
	metrics.CacheHitsTotal.WithLabelValues(string(kind)).Inc()
	return true
}

// PutObject 写入聚合对象类关系
func (c *RelationCache) PutObject(ctx context.Context, kind RelationKind, tenantID, subjectID uint64, value interface{}) {
	c.putJSON(ctx, kind, tenantID, subjectID, value)
}

// BatchGetIDs 批量读取，返回命中/未命中两组，调用方只对未命中部分打库
func (c *RelationCache) BatchGetIDs(ctx context.Context, kind RelationKind, tenantID uint64, subjectIDs []uint64) (map[uint64][]uint64, []uint64) {
	hits := make(map[uint64][]uint64)
	if len(subjectIDs) == 0 {
		return hits, nil
	}
	if c.client == nil {
		metrics.CacheMissesTotal.WithLabelValues(string(kind)).Add(float64(len(subjectIDs)))
		return hits, subjectIDs
	}

	keys := make([]string, len(subjectIDs))
	for i, id := range subjectIDs {
		keys[i] = Key(kind, tenantID, id)
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	values, err := c.client.MGet(opCtx, keys...).Result()
	if err != nil {
		logger.Debugf("[RelationCache] batch get %s failed, treating all as misses: %v", kind, err)
		metrics.CacheMissesTotal.WithLabelValues(string(kind)).Add(float64(len(subjectIDs)))
		return hits, subjectIDs
	}

	var misses []uint64
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			misses = append(misses, subjectIDs[i])
			continue
		}
		var ids []uint64
		if err := json.Unmarshal([]byte(s), &ids); err != nil || len(ids) == 0 {
			misses = append(misses, subjectIDs[i])
			continue
		}
		hits[subjectIDs[i]] = ids
	}
	metrics.CacheHitsTotal.WithLabelValues(string(kind)).Add(float64(len(hits)))
	metrics.CacheMissesTotal.WithLabelValues(string(kind)).Add(float64(len(misses)))
	return hits, misses
}

// Evict 删除某主体在指定关系种类下的缓存条目
func (c *RelationCache) Evict(ctx context.Context, tenantID, subjectID uint64, kinds ...RelationKind) {
	if c.client == nil || len(kinds) == 0 {
		return
	}

	keys := make([]string, len(kinds))
	for i, kind := range kinds {
		keys[i] = Key(kind, tenantID, subjectID)
		metrics.CacheEvictionsTotal.WithLabelValues(string(kind)).Inc()
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Del(opCtx, keys...).Err(); err != nil {
		// 失效失败不致命：条目会在TTL到期后自然消亡
		logger.Debugf("[RelationCache] evict failed for subject %d: %v", subjectID, err)
	}
}

// EvictMany 批量失效：多个主体 × 多种关系
func (c *RelationCache) EvictMany(ctx context.Context, tenantID uint64, subjectIDs []uint64, kinds ...RelationKind) {
	if c.client == nil || len(kinds) == 0 || len(subjectIDs) == 0 {
		return
	}

	keys := make([]string, 0, len(subjectIDs)*len(kinds))
	for _, subjectID := range subjectIDs {
		for _, kind := range kinds {
			keys = append(keys, Key(kind, tenantID, subjectID))
			metrics.CacheEvictionsTotal.WithLabelValues(string(kind)).Inc()
		}
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Del(opCtx, keys...).Err(); err != nil {
		logger.Debugf("[RelationCache] bulk evict failed (%d keys): %v", len(keys), err)
	}
}

func (c *RelationCache) getJSON(ctx context.Context, kind RelationKind, tenantID, subjectID uint64, out interface{}) bool {
	if c.client == nil {
		metrics.CacheMissesTotal.WithLabelValues(string(kind)).Inc()
		return false
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	data, err := c.client.Get(opCtx, Key(kind, tenantID, subjectID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Debugf("[RelationCache] get %s failed, treating as miss: %v", kind, err)
		}
		metrics.CacheMissesTotal.WithLabelValues(string(kind)).Inc()
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		logger.Debugf("[RelationCache] decode %s failed, treating as miss: %v", kind, err)
		metrics.CacheMissesTotal.WithLabelValues(string(kind)).Inc()
		return false
	}
	return true
}

func (c *RelationCache) putJSON(ctx context.Context, kind RelationKind, tenantID, subjectID uint64, value interface{}) {
	if c.client == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		logger.Debugf("[RelationCache] encode %s failed, skipping put: %v", kind, err)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	// SET 总是重置TTL，不保留旧条目的剩余时间
	if err := c.client.Set(opCtx, Key(kind, tenantID, subjectID), data, c.TTL(kind)).Err(); err != nil {
		logger.Debugf("[RelationCache] put %s failed: %v", kind, err)
	}
}
