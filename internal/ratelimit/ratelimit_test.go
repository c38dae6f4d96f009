package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTakeWindow(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()

	res, err := m.Take(ctx, "1.2.3.4", 80*time.Millisecond, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	res, err = m.Take(ctx, "1.2.3.4", 80*time.Millisecond, 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.GreaterOrEqual(t, res.RetryAfter, 1)

	// 不同键互不影响
	res, err = m.Take(ctx, "5.6.7.8", 80*time.Millisecond, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	// 窗口过期后重新放行
	time.Sleep(100 * time.Millisecond)
	res, err = m.Take(ctx, "1.2.3.4", 80*time.Millisecond, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestMemoryQuotaAboveOne(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		res, err := m.Take(ctx, "k", time.Minute, 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 2-i, res.Remaining)
	}
	res, err := m.Take(ctx, "k", time.Minute, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestMemorySweepRemovesExpired(t *testing.T) {
	m := NewMemory(20 * time.Millisecond)
	defer m.Close()
	_, _ = m.Take(context.Background(), "k", 10*time.Millisecond, 1)
	time.Sleep(60 * time.Millisecond)
	m.mu.Lock()
	n := len(m.entries)
	m.mu.Unlock()
	assert.Zero(t, n)
}

type failingStore struct{}

func (failingStore) Take(context.Context, string, time.Duration, int) (Result, error) {
	return Result{}, errors.New("backend down")
}

// 存储故障必须放行：准入控制不能成为提交路径的单点
func TestCheckFailsOpen(t *testing.T) {
	l := New(failingStore{}, time.Minute, 1)
	res := l.Check(context.Background(), "k")
	assert.True(t, res.Allowed)
}

func TestHeaders(t *testing.T) {
	h := Headers(Result{Allowed: false, Limit: 1, Remaining: 0, ResetAt: time.Now(), RetryAfter: 27})
	assert.Equal(t, "1", h["X-RateLimit-Limit"])
	assert.Equal(t, "0", h["X-RateLimit-Remaining"])
	assert.Equal(t, "27", h["Retry-After"])
	assert.NotEmpty(t, h["X-RateLimit-Reset"])

	h = Headers(Result{Allowed: true, Limit: 1, Remaining: 0, ResetAt: time.Now()})
	_, ok := h["Retry-After"]
	assert.False(t, ok)
}

func TestNewDefaults(t *testing.T) {
	l := New(NewMemory(0), 0, 0)
	assert.Equal(t, 30*time.Second, l.window)
	assert.Equal(t, 1, l.quota)
}
