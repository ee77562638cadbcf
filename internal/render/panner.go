package render

import (
	"math"
	"sync"
	"time"
)

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type timeScheduler struct{}

func (timeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// PannerOption configures a Panner.
type PannerOption func(*Panner)

// WithScheduler replaces the wall-clock scheduler.
func WithScheduler(s Scheduler) PannerOption {
	return func(p *Panner) { p.sched = s }
}

// WithClock replaces time.Now for drag timing.
func WithClock(now func() time.Time) PannerOption {
	return func(p *Panner) { p.now = now }
}

// Panner turns pointer gestures into pan state changes and drives
// momentum and animate-to-target with one scheduled tick at a time.
// Starting a drag or a new animation cancels the tick in flight.
type Panner struct {
	mu       sync.Mutex
	state    PanState
	sched    Scheduler
	now      func() time.Time
	onChange func(PanState)

	timer Timer
	gen   uint64

	pressed    bool
	moved      bool
	lastX      float64
	lastY      float64
	pressY     float64
	pressStart time.Time
}

// NewPanner creates a Panner. onChange, if set, is called after every
// state change, outside the Panner's lock.
func NewPanner(onChange func(PanState), opts ...PannerOption) *Panner {
	p := &Panner{sched: timeScheduler{}, now: time.Now, onChange: onChange}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current pan state.
func (p *Panner) State() PanState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Press starts a drag at (x, y).
func (p *Panner) Press(x, y float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelLocked()
	p.state.Velocity = 0
	p.state.HasTargetX, p.state.HasTargetY = false, false
	p.pressed = true
	p.moved = false
	p.lastX, p.lastY = x, y
	p.pressY = y
	p.pressStart = p.now()
}

// Move pans by the pointer delta while pressed.
func (p *Panner) Move(x, y float64) {
	p.mu.Lock()
	if !p.pressed {
		p.mu.Unlock()
		return
	}
	p.panLocked(x, y)
	p.moved = true
	st := p.state
	p.mu.Unlock()
	p.notify(st)
}

// Release ends a drag. A drag that moved starts coasting; one that did
// not is a click, reported as true.
func (p *Panner) Release(x, y float64) bool {
	p.mu.Lock()
	if !p.pressed {
		p.mu.Unlock()
		return false
	}
	p.panLocked(x, y)
	p.pressed = false
	if !p.moved {
		p.mu.Unlock()
		return true
	}
	if elapsed := p.now().Sub(p.pressStart); elapsed > 0 {
		p.state.Velocity = ReleaseVelocity(p.lastY-p.pressY, elapsed)
		if p.state.Animating() {
			p.scheduleLocked()
		}
	}
	st := p.state
	p.mu.Unlock()
	p.notify(st)
	return false
}

// AnimateTo glides toward (x, y), replacing any momentum or earlier target.
func (p *Panner) AnimateTo(x, y float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelLocked()
	p.state.Velocity = 0
	p.state.TargetX, p.state.HasTargetX = x, true
	p.state.TargetY, p.state.HasTargetY = y, true
	p.scheduleLocked()
}

// Set jumps to (x, y) without animation.
func (p *Panner) Set(x, y float64) {
	p.mu.Lock()
	p.cancelLocked()
	p.state = PanState{X: math.Max(0, x), Y: math.Max(0, y)}
	st := p.state
	p.mu.Unlock()
	p.notify(st)
}

// Stop cancels any pending tick.
func (p *Panner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelLocked()
}

func (p *Panner) panLocked(x, y float64) {
	p.state.X = math.Max(0, p.state.X+p.lastX-x)
	p.state.Y = math.Max(0, p.state.Y+p.lastY-y)
	p.lastX, p.lastY = x, y
}

func (p *Panner) cancelLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.gen++
}

func (p *Panner) scheduleLocked() {
	gen := p.gen
	p.timer = p.sched.AfterFunc(TickInterval, func() { p.tick(gen) })
}

func (p *Panner) tick(gen uint64) {
	p.mu.Lock()
	if gen != p.gen {
		// cancelled after the timer fired
		p.mu.Unlock()
		return
	}
	next, more := Advance(p.state, TickInterval)
	p.state = next
	p.timer = nil
	if more {
		p.scheduleLocked()
	}
	p.mu.Unlock()
	p.notify(next)
}

func (p *Panner) notify(st PanState) {
	if p.onChange != nil {
		p.onChange(st)
	}
}
