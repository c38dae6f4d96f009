// 包 realtime：单城市点位实时视图引擎
// 背景：优先推送订阅（Live），首批超时或订阅出错时一次性拉取并降级（Degraded）；
// 会话内降级不可逆，避免推拉模式来回抖动，重挂载后重新尝试推送
package realtime

import (
	"context"
	"sync"
	"time"

	"pontos-api/internal/cities"
	"pontos-api/internal/logger"
	"pontos-api/internal/metrics"
	"pontos-api/internal/points"
)

// State：会话状态机
// 约束：Connecting → Live 或 Connecting → Degraded；Live → Degraded；无 Degraded → Live
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateLive
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateDegraded:
		return "degraded"
	}
	return "idle"
}

// Subscription：推送订阅的最小契约（由 store.Feed 满足）
type Subscription interface {
	Updates() <-chan []points.Point
	Errs() <-chan error
	Close()
}

// Subscriber：建立某城市的推送订阅
type Subscriber interface {
	Subscribe(ctx context.Context, city cities.City) (Subscription, error)
}

// SubscriberFunc：函数适配器
type SubscriberFunc func(ctx context.Context, city cities.City) (Subscription, error)

func (f SubscriberFunc) Subscribe(ctx context.Context, city cities.City) (Subscription, error) {
	return f(ctx, city)
}

// Lister：降级模式的一次性拉取
type Lister interface {
	List(ctx context.Context, city cities.City, max int) ([]points.Point, error)
}

// Config：引擎参数；零值回退到默认（首批超时 8s，列表上限 500）
type Config struct {
	FirstBatchTimeout time.Duration
	Limit             int
}

// Engine：会话工厂；各会话状态彼此独立，不同城市并发激活互不串扰
type Engine struct {
	subs   Subscriber
	lister Lister
	cfg    Config
}

func NewEngine(subs Subscriber, lister Lister, cfg Config) *Engine {
	if cfg.FirstBatchTimeout <= 0 {
		cfg.FirstBatchTimeout = 8 * time.Second
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 500
	}
	return &Engine{subs: subs, lister: lister, cfg: cfg}
}

// listState：代次标记的列表状态
// 背景：按重构要求以显式状态对象替代闭包捕获的旧长度比较，杜绝陈旧快照参与计数
type listState struct {
	gen     uint64
	pts     []points.Point
	batches int
}

// applyBatch：替换式应用一批快照并返回本批新增数
// 约束：首批只建立基线不计数；之后每批按 max(0, 新-旧) 累加
func applyBatch(prev listState, pts []points.Point) (listState, int) {
	next := listState{gen: prev.gen + 1, pts: pts, batches: prev.batches + 1}
	if prev.batches == 0 {
		return next, 0
	}
	added := len(pts) - len(prev.pts)
	if added < 0 {
		added = 0
	}
	return next, added
}

// Session：一次激活的实时视图；Close 前必须由同一持有方独占使用计数复位
type Session struct {
	eng  *Engine
	city cities.City

	mu       sync.Mutex
	state    State
	ls       listState
	newCount int

	changed   chan struct{}
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Activate：为指定城市启动会话并异步建立订阅
func (e *Engine) Activate(ctx context.Context, city cities.City) *Session {
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		eng:     e,
		city:    city,
		state:   StateConnecting,
		changed: make(chan struct{}, 1),
		cancel:  cancel,
	}
	go s.run(sctx)
	return s
}

func (s *Session) run(ctx context.Context) {
	sub, err := s.eng.subs.Subscribe(ctx, s.city)
	if err != nil {
		logger.L().Error("sync_subscribe_error", "city", s.city.Slug, "err", err)
		s.fallback(ctx)
		return
	}
	timer := time.NewTimer(s.eng.cfg.FirstBatchTimeout)
	defer timer.Stop()
	first := true
	for {
		select {
		case <-ctx.Done():
			sub.Close()
			return
		case pts := <-sub.Updates():
			if first {
				first = false
				timer.Stop()
				s.enter(StateLive)
				logger.L().Debug("sync_live", "city", s.city.Slug, "count", len(pts))
			}
			s.apply(pts)
		case err := <-sub.Errs():
			logger.L().Error("sync_subscription_error", "city", s.city.Slug, "err", err)
			sub.Close()
			s.fallback(ctx)
			return
		case <-timer.C:
			if !first {
				continue
			}
			logger.L().Warn("sync_first_batch_timeout", "city", s.city.Slug, "timeout_ms", s.eng.cfg.FirstBatchTimeout.Milliseconds())
			sub.Close()
			s.fallback(ctx)
			return
		}
	}
}

// fallback：放弃订阅，执行一次拉取并进入降级；之后刷新由调用方驱动
func (s *Session) fallback(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	metrics.SyncFallbackTotal.Inc()
	s.enter(StateDegraded)
	pts, err := s.eng.lister.List(ctx, s.city, s.eng.cfg.Limit)
	if err != nil {
		logger.L().Error("sync_fallback_pull_error", "city", s.city.Slug, "err", err)
		return
	}
	s.apply(pts)
	logger.L().Info("sync_degraded", "city", s.city.Slug, "count", len(pts))
}

func (s *Session) enter(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	if prev == next {
		return
	}
	switch prev {
	case StateLive:
		metrics.SyncSessionsLive.Dec()
	case StateDegraded:
		metrics.SyncSessionsDegraded.Dec()
	}
	switch next {
	case StateLive:
		metrics.SyncSessionsLive.Inc()
	case StateDegraded:
		metrics.SyncSessionsDegraded.Inc()
	}
}

func (s *Session) apply(pts []points.Point) {
	s.mu.Lock()
	next, added := applyBatch(s.ls, pts)
	s.ls = next
	s.newCount += added
	s.mu.Unlock()
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Snapshot：当前列表副本、状态与累计新增数
func (s *Session) Snapshot() ([]points.Point, State, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]points.Point, len(s.ls.pts))
	copy(out, s.ls.pts)
	return out, s.state, s.newCount
}

// Changed：有新快照可取时收到信号（容量 1，合并密集变更）
func (s *Session) Changed() <-chan struct{} { return s.changed }

// ResetNewCount：新增计数只由调用方显式清零，引擎自身不会超时清除
func (s *Session) ResetNewCount() {
	s.mu.Lock()
	s.newCount = 0
	s.mu.Unlock()
}

// Refresh：按需拉取一次并应用（降级模式的刷新入口；Live 下调用无害）
func (s *Session) Refresh(ctx context.Context) error {
	pts, err := s.eng.lister.List(ctx, s.city, s.eng.cfg.Limit)
	if err != nil {
		return err
	}
	s.apply(pts)
	return nil
}

// Close：终止会话；取消挂起的超时并关闭订阅，泄漏的订阅会在停止关心后继续改状态，属正确性缺陷
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.enter(StateIdle)
	})
}
