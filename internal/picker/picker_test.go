package picker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSched struct {
	mu        sync.Mutex
	scheduled []Location
	cancels   int
}

func (f *fakeSched) Schedule(lat, lng float64) {
	f.mu.Lock()
	f.scheduled = append(f.scheduled, Location{Lat: lat, Lng: lng})
	f.mu.Unlock()
}

func (f *fakeSched) Cancel() {
	f.mu.Lock()
	f.cancels++
	f.mu.Unlock()
}

func TestStartEntersPicking(t *testing.T) {
	p := New(&fakeSched{})
	state, loc, addr := p.Snapshot()
	assert.Equal(t, StateInactive, state)
	assert.Nil(t, loc)
	assert.Nil(t, addr)

	p.Start()
	state, _, _ = p.Snapshot()
	assert.Equal(t, StatePicking, state)
}

func TestCenterChangedSchedulesLookup(t *testing.T) {
	sched := &fakeSched{}
	p := New(sched)
	p.Start()
	p.CenterChanged(-21.76, -43.35)

	state, loc, _ := p.Snapshot()
	assert.Equal(t, StatePicking, state)
	require.NotNil(t, loc)
	assert.InDelta(t, -21.76, loc.Lat, 1e-9)
	require.Len(t, sched.scheduled, 1)
}

func TestCenterChangedIgnoredWhenInactive(t *testing.T) {
	sched := &fakeSched{}
	p := New(sched)
	p.CenterChanged(-21.76, -43.35)

	state, loc, _ := p.Snapshot()
	assert.Equal(t, StateInactive, state)
	assert.Nil(t, loc)
	assert.Empty(t, sched.scheduled)
}

func TestAddressResolvedEntersConfirming(t *testing.T) {
	p := New(&fakeSched{})
	p.Start()
	p.CenterChanged(-21.76, -43.35)
	p.AddressResolved("Rua Halfeld, 100", true)

	state, loc, addr := p.Snapshot()
	assert.Equal(t, StateConfirming, state)
	require.NotNil(t, loc)
	require.NotNil(t, addr)
	assert.Equal(t, "Rua Halfeld, 100", *addr)
}

// 反查失败仍进入确认：用户可仅凭坐标拍板
func TestAddressResolvedFailureKeepsCandidate(t *testing.T) {
	p := New(&fakeSched{})
	p.Start()
	p.CenterChanged(-21.76, -43.35)
	p.AddressResolved("", false)

	state, loc, addr := p.Snapshot()
	assert.Equal(t, StateConfirming, state)
	assert.NotNil(t, loc)
	assert.Nil(t, addr)
}

func TestStaleAddressResolvedIgnored(t *testing.T) {
	p := New(&fakeSched{})
	p.AddressResolved("Rua Halfeld", true)
	state, _, addr := p.Snapshot()
	assert.Equal(t, StateInactive, state)
	assert.Nil(t, addr)
}

// 确认框展示期间继续拖图：回到 Picking 并以新位置重排反查
func TestPanDuringConfirmingReturnsToPicking(t *testing.T) {
	sched := &fakeSched{}
	p := New(sched)
	p.Start()
	p.CenterChanged(-21.76, -43.35)
	p.AddressResolved("Rua A", true)
	p.CenterChanged(-21.80, -43.40)

	state, loc, addr := p.Snapshot()
	assert.Equal(t, StatePicking, state)
	assert.InDelta(t, -21.80, loc.Lat, 1e-9)
	assert.Nil(t, addr, "old address must not survive a pan")
	assert.Len(t, sched.scheduled, 2)
}

func TestConfirmCommitsCandidate(t *testing.T) {
	sched := &fakeSched{}
	p := New(sched)
	p.Start()
	p.CenterChanged(-21.76, -43.35)
	p.AddressResolved("Rua A", true)

	loc, ok := p.Confirm(true)
	require.True(t, ok)
	assert.InDelta(t, -21.76, loc.Lat, 1e-9)

	state, cand, addr := p.Snapshot()
	assert.Equal(t, StateInactive, state)
	assert.Nil(t, cand)
	assert.Nil(t, addr)
	assert.Equal(t, 1, sched.cancels)
}

func TestConfirmRejectedDiscards(t *testing.T) {
	p := New(&fakeSched{})
	p.Start()
	p.CenterChanged(-21.76, -43.35)

	_, ok := p.Confirm(false)
	assert.False(t, ok)
	state, cand, _ := p.Snapshot()
	assert.Equal(t, StateInactive, state)
	assert.Nil(t, cand)
}

func TestConfirmWithoutCandidate(t *testing.T) {
	p := New(&fakeSched{})
	p.Start()
	_, ok := p.Confirm(true)
	assert.False(t, ok)
}

func TestStopCancelsPendingLookup(t *testing.T) {
	sched := &fakeSched{}
	p := New(sched)
	p.Start()
	p.CenterChanged(-21.76, -43.35)
	p.Stop()

	state, _, _ := p.Snapshot()
	assert.Equal(t, StateInactive, state)
	assert.Equal(t, 1, sched.cancels)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "inactive", StateInactive.String())
	assert.Equal(t, "picking", StatePicking.String())
	assert.Equal(t, "confirming", StateConfirming.String())
}
