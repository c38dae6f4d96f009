package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"pontos-api/internal/cities"
	"pontos-api/internal/logger"
	"pontos-api/internal/points"

	"github.com/lib/pq"
)

// ErrFeedClosed：分发器已关闭，不再接受订阅
var ErrFeedClosed = errors.New("feed closed")

// Subscription：单个城市的实时订阅
// 背景：每次变更投递完整快照（替换式语义，不做增量补丁）；错误通道用于触发订阅端降级
type Subscription struct {
	updates chan []points.Point
	errs    chan error
	city    cities.City
	once    sync.Once
	done    chan struct{}
}

func (s *Subscription) Updates() <-chan []points.Point { return s.updates }
func (s *Subscription) Errs() <-chan error             { return s.errs }

// Close：关闭订阅；幂等，Feed 侧随后摘除
func (s *Subscription) Close() {
	s.once.Do(func() { close(s.done) })
}

// 向订阅投递最新快照；通道已满时先腾出旧值，保证"最新一批必达"
func (s *Subscription) push(pts []points.Point) {
	select {
	case <-s.done:
		return
	default:
	}
	for {
		select {
		case s.updates <- pts:
			return
		default:
			select {
			case <-s.updates:
			default:
			}
		}
	}
}

func (s *Subscription) pushErr(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

// Feed：基于 pq.Listener 的变更分发器
// 背景：LISTEN points_changed，载荷为城市 slug；收到通知后重新查询该分区并广播快照
// 约束：通知只是"有变化"信号，数据以查询结果为准；连接抖动通过错误通道让订阅端降级
type Feed struct {
	st       *Store
	listener *pq.Listener
	mu       sync.Mutex
	subs     map[*Subscription]struct{}
	closed   bool
}

// NewFeed：建立监听连接并启动分发循环
func NewFeed(dsn string, st *Store) (*Feed, error) {
	f := &Feed{st: st, subs: make(map[*Subscription]struct{})}
	f.listener = pq.NewListener(dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.L().Error("feed_listener_event", "event", int(ev), "err", err)
			f.broadcastErr(err)
		}
	})
	if err := f.listener.Listen(NotifyChannel); err != nil {
		_ = f.listener.Close()
		return nil, err
	}
	go f.run()
	logger.L().Info("feed_listening", "channel", NotifyChannel)
	return f, nil
}

// Subscribe：注册城市订阅并立即投递首批快照
// 约束：首批查询失败作为订阅错误投递，由 sync 层决定降级；不在此处重试
func (f *Feed) Subscribe(ctx context.Context, city cities.City) (*Subscription, error) {
	sub := &Subscription{
		updates: make(chan []points.Point, 1),
		errs:    make(chan error, 1),
		city:    city,
		done:    make(chan struct{}),
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrFeedClosed
	}
	f.subs[sub] = struct{}{}
	f.mu.Unlock()
	go func() {
		pts, err := f.st.List(ctx, city, DefaultLimit)
		if err != nil {
			sub.pushErr(err)
			return
		}
		sub.push(pts)
	}()
	go func() {
		<-sub.done
		f.mu.Lock()
		delete(f.subs, sub)
		f.mu.Unlock()
	}()
	return sub, nil
}

func (f *Feed) run() {
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()
	for {
		select {
		case n, ok := <-f.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// 重连后的空通知：期间可能漏掉变更，全量刷新所有订阅
				f.refresh("")
				continue
			}
			f.refresh(n.Extra)
		case <-ping.C:
			if err := f.listener.Ping(); err != nil {
				logger.L().Error("feed_ping_error", "err", err)
				f.broadcastErr(err)
			}
		}
	}
}

// refresh：重查并广播指定城市（slug 为空时广播全部订阅城市）
func (f *Feed) refresh(slug string) {
	f.mu.Lock()
	targets := make([]*Subscription, 0, len(f.subs))
	for sub := range f.subs {
		if slug == "" || sub.city.Slug == slug {
			targets = append(targets, sub)
		}
	}
	f.mu.Unlock()
	byCity := make(map[string][]points.Point)
	for _, sub := range targets {
		pts, ok := byCity[sub.city.Slug]
		if !ok {
			var err error
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			pts, err = f.st.List(ctx, sub.city, DefaultLimit)
			cancel()
			if err != nil {
				sub.pushErr(err)
				continue
			}
			byCity[sub.city.Slug] = pts
		}
		sub.push(pts)
	}
}

func (f *Feed) broadcastErr(err error) {
	f.mu.Lock()
	for sub := range f.subs {
		sub.pushErr(err)
	}
	f.mu.Unlock()
}

// Close：停止监听并摘除全部订阅
func (f *Feed) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return f.listener.Close()
}
