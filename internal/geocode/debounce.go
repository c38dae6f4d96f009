package geocode

import (
	"context"
	"sync"
	"time"
)

// DebounceDelay：拖图反查的最小静默期
// 约束：上游限速 1 req/s，1100ms 留出余量；不得调低
const DebounceDelay = 1100 * time.Millisecond

// ReverseFunc：反查执行体（生产为 Client.Reverse，测试注入假实现）
type ReverseFunc func(ctx context.Context, lat, lng float64) (string, error)

// ReverseScheduler：去抖的反查调度器
// 背景：每次中心点变更取消未触发的排期并重排，只有最后一次拖动位置会被查询；
// 按重构要求用递增序号做"最新请求令牌"守卫，结果仅在令牌仍为最新时交付，
// 不依赖具体定时器 API 的取消语义
type ReverseScheduler struct {
	mu      sync.Mutex
	seq     uint64
	timer   *time.Timer
	delay   time.Duration
	fn      ReverseFunc
	deliver func(addr string, ok bool)
}

// NewReverseScheduler：构造调度器
// 参数：delay <= 0 时使用 DebounceDelay；deliver 在去抖窗口后、且排期仍为最新时回调
func NewReverseScheduler(fn ReverseFunc, delay time.Duration, deliver func(addr string, ok bool)) *ReverseScheduler {
	if delay <= 0 {
		delay = DebounceDelay
	}
	return &ReverseScheduler{delay: delay, fn: fn, deliver: deliver}
}

// Schedule：登记最新的中心坐标并重置去抖窗口
func (s *ReverseScheduler) Schedule(lat, lng float64) {
	s.mu.Lock()
	s.seq++
	token := s.seq
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() { s.fire(token, lat, lng) })
	s.mu.Unlock()
}

// Cancel：废弃所有未触发与在途的排期；已在途的查询结果将因令牌失效被丢弃
func (s *ReverseScheduler) Cancel() {
	s.mu.Lock()
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
}

func (s *ReverseScheduler) fire(token uint64, lat, lng float64) {
	s.mu.Lock()
	latest := token == s.seq
	s.mu.Unlock()
	if !latest {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	addr, err := s.fn(ctx, lat, lng)
	s.mu.Lock()
	latest = token == s.seq
	s.mu.Unlock()
	if !latest {
		return
	}
	s.deliver(addr, err == nil)
}
