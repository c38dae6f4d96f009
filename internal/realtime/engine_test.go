package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"pontos-api/internal/cities"
	"pontos-api/internal/points"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkPoints(n int) []points.Point {
	out := make([]points.Point, n)
	for i := range out {
		out[i] = points.Point{ID: fmt.Sprintf("p%d", i), Type: points.TypeCollection, CitySlug: "jf"}
	}
	return out
}

func testCity() cities.City {
	c, _ := cities.BySlug("jf")
	return c
}

type fakeSub struct {
	updates chan []points.Point
	errs    chan error
	closed  atomic.Bool
}

func newFakeSub() *fakeSub {
	return &fakeSub{updates: make(chan []points.Point, 1), errs: make(chan error, 1)}
}

func (f *fakeSub) Updates() <-chan []points.Point { return f.updates }
func (f *fakeSub) Errs() <-chan error             { return f.errs }
func (f *fakeSub) Close()                         { f.closed.Store(true) }

type fakeLister struct {
	pts   []points.Point
	calls atomic.Int32
	err   error
}

func (f *fakeLister) List(ctx context.Context, city cities.City, max int) ([]points.Point, error) {
	f.calls.Add(1)
	return f.pts, f.err
}

func waitChanged(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Changed():
	case <-time.After(2 * time.Second):
		t.Fatal("no change signal")
	}
}

func TestApplyBatch(t *testing.T) {
	var ls listState
	ls, added := applyBatch(ls, mkPoints(4))
	assert.Zero(t, added, "first batch establishes the baseline")
	assert.Equal(t, 1, ls.batches)

	ls, added = applyBatch(ls, mkPoints(7))
	assert.Equal(t, 3, added)

	// 列表收缩（删除）不产生负增量
	ls, added = applyBatch(ls, mkPoints(5))
	assert.Zero(t, added)
	assert.Equal(t, uint64(3), ls.gen)
}

func TestSessionGoesLiveAndCounts(t *testing.T) {
	sub := newFakeSub()
	eng := NewEngine(SubscriberFunc(func(ctx context.Context, city cities.City) (Subscription, error) {
		return sub, nil
	}), &fakeLister{}, Config{FirstBatchTimeout: time.Second})

	s := eng.Activate(context.Background(), testCity())
	defer s.Close()

	sub.updates <- mkPoints(2)
	waitChanged(t, s)
	pts, state, newCount := s.Snapshot()
	assert.Len(t, pts, 2)
	assert.Equal(t, StateLive, state)
	assert.Zero(t, newCount)

	sub.updates <- mkPoints(5)
	waitChanged(t, s)
	_, _, newCount = s.Snapshot()
	assert.Equal(t, 3, newCount)

	// 收缩批次不回退计数
	sub.updates <- mkPoints(4)
	waitChanged(t, s)
	_, _, newCount = s.Snapshot()
	assert.Equal(t, 3, newCount)

	s.ResetNewCount()
	_, _, newCount = s.Snapshot()
	assert.Zero(t, newCount)
}

func TestSessionFallsBackOnFirstBatchTimeout(t *testing.T) {
	sub := newFakeSub()
	lister := &fakeLister{pts: mkPoints(2)}
	eng := NewEngine(SubscriberFunc(func(ctx context.Context, city cities.City) (Subscription, error) {
		return sub, nil
	}), lister, Config{FirstBatchTimeout: 30 * time.Millisecond})

	s := eng.Activate(context.Background(), testCity())
	defer s.Close()

	waitChanged(t, s)
	pts, state, newCount := s.Snapshot()
	assert.Equal(t, StateDegraded, state)
	assert.Len(t, pts, 2)
	assert.Zero(t, newCount)
	assert.Equal(t, int32(1), lister.calls.Load(), "exactly one fallback pull")
	assert.True(t, sub.closed.Load(), "abandoned subscription must be closed")
}

func TestSessionFallsBackOnSubscribeError(t *testing.T) {
	lister := &fakeLister{pts: mkPoints(1)}
	eng := NewEngine(SubscriberFunc(func(ctx context.Context, city cities.City) (Subscription, error) {
		return nil, errors.New("listen failed")
	}), lister, Config{FirstBatchTimeout: time.Second})

	s := eng.Activate(context.Background(), testCity())
	defer s.Close()

	waitChanged(t, s)
	_, state, _ := s.Snapshot()
	assert.Equal(t, StateDegraded, state)
}

func TestSessionFallsBackOnStreamError(t *testing.T) {
	sub := newFakeSub()
	lister := &fakeLister{pts: mkPoints(3)}
	eng := NewEngine(SubscriberFunc(func(ctx context.Context, city cities.City) (Subscription, error) {
		return sub, nil
	}), lister, Config{FirstBatchTimeout: time.Second})

	s := eng.Activate(context.Background(), testCity())
	defer s.Close()

	sub.updates <- mkPoints(2)
	waitChanged(t, s)
	sub.errs <- errors.New("connection reset")
	waitChanged(t, s)

	pts, state, _ := s.Snapshot()
	assert.Equal(t, StateDegraded, state)
	assert.Len(t, pts, 3)
	assert.True(t, sub.closed.Load())
}

// 降级后通过 Refresh 拉取并继续计数
func TestSessionRefreshCountsNewPoints(t *testing.T) {
	lister := &fakeLister{pts: mkPoints(2)}
	eng := NewEngine(SubscriberFunc(func(ctx context.Context, city cities.City) (Subscription, error) {
		return nil, errors.New("no stream")
	}), lister, Config{FirstBatchTimeout: time.Second})

	s := eng.Activate(context.Background(), testCity())
	defer s.Close()
	waitChanged(t, s)

	lister.pts = mkPoints(6)
	require.NoError(t, s.Refresh(context.Background()))
	waitChanged(t, s)
	pts, _, newCount := s.Snapshot()
	assert.Len(t, pts, 6)
	assert.Equal(t, 4, newCount)
}

func TestSessionCloseStopsFallback(t *testing.T) {
	sub := newFakeSub()
	lister := &fakeLister{pts: mkPoints(1)}
	eng := NewEngine(SubscriberFunc(func(ctx context.Context, city cities.City) (Subscription, error) {
		return sub, nil
	}), lister, Config{FirstBatchTimeout: 50 * time.Millisecond})

	s := eng.Activate(context.Background(), testCity())
	s.Close()
	time.Sleep(120 * time.Millisecond)

	_, state, _ := s.Snapshot()
	assert.Equal(t, StateIdle, state)
	assert.Zero(t, lister.calls.Load(), "closed session must not pull")
}

func TestSessionsAreIndependent(t *testing.T) {
	subA, subB := newFakeSub(), newFakeSub()
	var n atomic.Int32
	eng := NewEngine(SubscriberFunc(func(ctx context.Context, city cities.City) (Subscription, error) {
		if n.Add(1) == 1 {
			return subA, nil
		}
		return subB, nil
	}), &fakeLister{}, Config{FirstBatchTimeout: time.Second})

	a := eng.Activate(context.Background(), testCity())
	defer a.Close()
	b := eng.Activate(context.Background(), testCity())
	defer b.Close()

	subA.updates <- mkPoints(3)
	waitChanged(t, a)
	ptsA, _, _ := a.Snapshot()
	ptsB, stateB, _ := b.Snapshot()
	assert.Len(t, ptsA, 3)
	assert.Empty(t, ptsB)
	assert.Equal(t, StateConnecting, stateB)
}
