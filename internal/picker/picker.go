// 包 picker：地图选点会话状态机
// 背景：表单与地图选点模式互斥；候选坐标只随地图中心移动，必须经显式确认才提交，
// 任何拖动都不会自行定稿位置
package picker

import "sync"

// State：会话状态
type State int

const (
	// StateInactive：未在选点，表单可见
	StateInactive State = iota
	// StatePicking：十字准星激活，拖图触发去抖反查
	StatePicking
	// StateConfirming：候选位置与解析地址就绪，等待用户是/否
	StateConfirming
)

func (s State) String() string {
	switch s {
	case StatePicking:
		return "picking"
	case StateConfirming:
		return "confirming"
	}
	return "inactive"
}

// Location：候选坐标
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Scheduler：去抖反查的最小契约（由 geocode.ReverseScheduler 满足）
type Scheduler interface {
	Schedule(lat, lng float64)
	Cancel()
}

// Picker：单个选点会话
// 约束：所有入口在锁内迁移状态；Confirm/Stop 必须取消挂起的反查排期
type Picker struct {
	mu        sync.Mutex
	state     State
	candidate *Location
	address   *string
	sched     Scheduler
}

func New(sched Scheduler) *Picker {
	return &Picker{sched: sched}
}

// Start：进入选点模式；候选与地址清空
func (p *Picker) Start() {
	p.mu.Lock()
	p.state = StatePicking
	p.candidate = nil
	p.address = nil
	p.mu.Unlock()
}

// CenterChanged：地图中心移动；刷新候选坐标并重排反查
// 背景：确认框展示期间继续拖图会回到 Picking 并以新位置重新走反查
func (p *Picker) CenterChanged(lat, lng float64) {
	p.mu.Lock()
	if p.state == StateInactive {
		p.mu.Unlock()
		return
	}
	p.state = StatePicking
	p.candidate = &Location{Lat: lat, Lng: lng}
	p.address = nil
	p.mu.Unlock()
	p.sched.Schedule(lat, lng)
}

// AddressResolved：去抖反查交付结果；ok 为假时地址置空但候选坐标保留
func (p *Picker) AddressResolved(addr string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePicking {
		return
	}
	if ok && addr != "" {
		a := addr
		p.address = &a
	} else {
		p.address = nil
	}
	p.state = StateConfirming
}

// Confirm：显式确认或放弃候选位置，回到表单
// 返回：confirmed 为真且存在候选时返回坐标与 true；否则丢弃并返回 false
func (p *Picker) Confirm(confirmed bool) (Location, bool) {
	p.mu.Lock()
	loc := p.candidate
	p.state = StateInactive
	p.candidate = nil
	p.address = nil
	p.mu.Unlock()
	p.sched.Cancel()
	if confirmed && loc != nil {
		return *loc, true
	}
	return Location{}, false
}

// Stop：退出选点模式（等价于取消），清理挂起排期
func (p *Picker) Stop() {
	p.mu.Lock()
	p.state = StateInactive
	p.candidate = nil
	p.address = nil
	p.mu.Unlock()
	p.sched.Cancel()
}

// Snapshot：当前状态、候选与已解析地址（副本）
func (p *Picker) Snapshot() (State, *Location, *string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var loc *Location
	if p.candidate != nil {
		l := *p.candidate
		loc = &l
	}
	var addr *string
	if p.address != nil {
		a := *p.address
		addr = &a
	}
	return p.state, loc, addr
}
