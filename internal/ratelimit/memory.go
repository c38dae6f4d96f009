package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count   int
	resetAt time.Time
}

// Memory：进程内窗口计数存储
// 背景：map+互斥锁保护，多线程下同键并发递增不丢更新；
// 过期清扫仅回收内存，晚扫不影响准入正确性
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	stop    chan struct{}
}

func NewMemory(sweepEvery time.Duration) *Memory {
	m := &Memory{entries: make(map[string]*memoryEntry), stop: make(chan struct{})}
	if sweepEvery > 0 {
		go m.sweepLoop(sweepEvery)
	}
	return m
}

func (m *Memory) Take(_ context.Context, key string, window time.Duration, quota int) (Result, error) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || now.After(e.resetAt) {
		e = &memoryEntry{count: 1, resetAt: now.Add(window)}
		m.entries[key] = e
		return Result{Allowed: true, Limit: quota, Remaining: quota - 1, ResetAt: e.resetAt}, nil
	}
	e.count++
	if e.count > quota {
		retry := int((time.Until(e.resetAt) + time.Second - 1) / time.Second)
		if retry < 1 {
			retry = 1
		}
		return Result{Allowed: false, Limit: quota, Remaining: 0, ResetAt: e.resetAt, RetryAfter: retry}, nil
	}
	return Result{Allowed: true, Limit: quota, Remaining: quota - e.count, ResetAt: e.resetAt}, nil
}

func (m *Memory) sweepLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-t.C:
			m.mu.Lock()
			for k, e := range m.entries {
				if now.After(e.resetAt) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Close：停止后台清扫；多用于测试收尾
func (m *Memory) Close() { close(m.stop) }
