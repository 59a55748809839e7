package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Server Metrics

	// APIRequestsTotal API请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// APIRequestDuration API请求处理时长
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Relation Cache Metrics

	// CacheHitsTotal 关系缓存命中次数
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relation_cache_hits_total",
			Help: "Total number of relation cache hits",
		},
		[]string{"kind"},
	)

	// CacheMissesTotal 关系缓存未命中次数（含超时和缓存故障降级）
	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relation_cache_misses_total",
			Help: "Total number of relation cache misses (including fail-open degradations)",
		},
		[]string{"kind"},
	)

	// CacheEvictionsTotal 关系缓存主动失效次数
	CacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relation_cache_evictions_total",
			Help: "Total number of relation cache evictions triggered by mutations",
		},
		[]string{"kind"},
	)

	// Hierarchy Mutation Metrics

	// MutationDuration 组织结构变更耗时
	MutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "org_mutation_duration_seconds",
			Help:    "Duration of org hierarchy mutations (insert/delete/move)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// MutationFailuresTotal 组织结构变更失败次数
	MutationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "org_mutation_failures_total",
			Help: "Total number of failed org hierarchy mutations",
		},
		[]string{"operation"},
	)

	// ConsistencyViolations 最近一次一致性检查发现的违例数
	ConsistencyViolations = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "org_closure_consistency_violations",
			Help: "Number of closure table violations found by the last consistency check",
		},
		[]string{"tenant_id", "invariant"},
	)

	// Warmup Metrics

	// WarmupCompleted 缓存预热是否完成 (1=完成, 0=未完成)
	WarmupCompleted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_warmup_completed",
			Help: "Whether the cache warmup has completed (1) or not (0)",
		},
	)

	// WarmupLoadDuration 单类关系批量加载耗时
	WarmupLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_warmup_load_duration_seconds",
			Help:    "Duration of bulk relation loads during cache warmup",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"load"},
	)

	// WarmupEntriesLoaded 预热写入的缓存条目数
	WarmupEntriesLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_warmup_entries_loaded_total",
			Help: "Total number of cache entries loaded by warmup",
		},
		[]string{"load"},
	)
)
