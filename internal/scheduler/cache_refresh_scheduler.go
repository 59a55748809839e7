package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// CacheRefreshService 刷新服务接口，由 WarmupService 实现
type CacheRefreshService interface {
	RunStartupWarmup(ctx context.Context)
	RefreshHotData(ctx context.Context)
	IsWarmupCompleted() bool
}

// CacheRefreshScheduler 缓存刷新调度器
// 固定间隔执行一轮：未完成的预热组重试 + 热数据刷新
type CacheRefreshScheduler struct {
	refreshService CacheRefreshService
	interval       time.Duration
	ticker         *time.Ticker
	stopChan       chan struct{} // 全局停止信号
	wg             sync.WaitGroup
	startOnce      sync.Once
	stopOnce       sync.Once
}

// NewCacheRefreshScheduler 创建缓存刷新调度器
func NewCacheRefreshScheduler(refreshService CacheRefreshService, intervalMinutes int) *CacheRefreshScheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = 5 // 默认5分钟
	}
	return &CacheRefreshScheduler{
		refreshService: refreshService,
		interval:       time.Duration(intervalMinutes) * time.Minute,
		stopChan:       make(chan struct{}),
	}
}

// Start 启动调度器
func (s *CacheRefreshScheduler) Start() {
	s.startOnce.Do(func() {
		log.Printf("[CacheRefreshScheduler] 📅 Starting cache refresh scheduler, interval: %v", s.interval)
		s.ticker = time.NewTicker(s.interval)
		s.wg.Add(1)
		go s.run()
	})
}

// run 调度循环
func (s *CacheRefreshScheduler) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ticker.C:
			s.runOnce()

		case <-s.stopChan:
			log.Println("[CacheRefreshScheduler] ⏹️  Refresh loop stopping")
			return
		}
	}
}

// runOnce 执行一轮刷新
func (s *CacheRefreshScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	// 预热未完成时先重试剩余的加载组
	if !s.refreshService.IsWarmupCompleted() {
		log.Println("[CacheRefreshScheduler] 🔄 Retrying incomplete warmup loads...")
		s.refreshService.RunStartupWarmup(ctx)
	}

	s.refreshService.RefreshHotData(ctx)
}

// Stop 停止调度器并等待刷新循环退出
func (s *CacheRefreshScheduler) Stop() {
	s.stopOnce.Do(func() {
		log.Println("[CacheRefreshScheduler] ⏹️  Stopping cache refresh scheduler...")
		close(s.stopChan)
		if s.ticker != nil {
			s.ticker.Stop()
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			log.Println("[CacheRefreshScheduler] ✅ Cache refresh scheduler stopped")
		case <-time.After(10 * time.Second):
			log.Println("[CacheRefreshScheduler] ⚠️  Timeout waiting for refresh loop to stop")
		}
	})
}
