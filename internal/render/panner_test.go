package render

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeTimer struct {
	s       *fakeScheduler
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeScheduler queues callbacks until the test fires them.
type fakeScheduler struct {
	mu    sync.Mutex
	queue []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(_ time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{s: s, f: f}
	s.queue = append(s.queue, t)
	return t
}

// fire runs the oldest live callback and reports whether there was one.
func (s *fakeScheduler) fire() bool {
	s.mu.Lock()
	for len(s.queue) > 0 {
		t := s.queue[0]
		s.queue = s.queue[1:]
		if t.stopped {
			continue
		}
		t.stopped = true
		s.mu.Unlock()
		t.f()
		return true
	}
	s.mu.Unlock()
	return false
}

func (s *fakeScheduler) drain(limit int) int {
	n := 0
	for n < limit && s.fire() {
		n++
	}
	return n
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time           { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestPanner() (*Panner, *fakeScheduler, *fakeClock, *[]PanState) {
	sched := &fakeScheduler{}
	clock := &fakeClock{now: time.Date(2021, 9, 27, 20, 7, 36, 0, time.UTC)}
	var seen []PanState
	p := NewPanner(func(s PanState) { seen = append(seen, s) }, WithScheduler(sched), WithClock(clock.Now))
	return p, sched, clock, &seen
}

func TestPanner_DragThenCoast(t *testing.T) {
	p, sched, clock, seen := newTestPanner()

	p.Press(0, 100)
	p.Move(0, 50)
	assert.Equal(t, 50.0, p.State().Y)

	clock.Advance(100 * time.Millisecond)
	click := p.Release(0, 50)
	require.False(t, click)
	assert.InDelta(t, 12.0, p.State().Velocity, 1e-9)

	require.True(t, sched.fire())
	st := p.State()
	assert.InDelta(t, 62.0, st.Y, 1e-9)
	assert.InDelta(t, 10.8, st.Velocity, 1e-9)
	assert.NotEmpty(t, *seen)
}

func TestPanner_PressCancelsMomentum(t *testing.T) {
	p, sched, clock, _ := newTestPanner()

	p.Press(0, 100)
	p.Move(0, 0)
	clock.Advance(50 * time.Millisecond)
	p.Release(0, 0)
	require.NotZero(t, p.State().Velocity)

	p.Press(0, 0)
	assert.False(t, sched.fire(), "pending tick is cancelled")
	assert.Zero(t, p.State().Velocity)
	assert.Equal(t, 100.0, p.State().Y)
}

func TestPanner_Click(t *testing.T) {
	p, sched, _, seen := newTestPanner()

	p.Press(5, 5)
	assert.True(t, p.Release(5, 5))
	assert.False(t, sched.fire())
	assert.Empty(t, *seen)
	assert.False(t, p.Release(5, 5), "release without press")
}

func TestPanner_MoveClampsAtOrigin(t *testing.T) {
	p, _, _, _ := newTestPanner()
	p.Press(0, 0)
	p.Move(40, 40)
	st := p.State()
	assert.Equal(t, 0.0, st.X)
	assert.Equal(t, 0.0, st.Y)

	p.Move(10, 30)
	st = p.State()
	assert.Equal(t, 30.0, st.X)
	assert.Equal(t, 10.0, st.Y)
}

func TestPanner_AnimateToReplacesAnimation(t *testing.T) {
	p, sched, _, seen := newTestPanner()

	p.AnimateTo(500, 0)
	require.True(t, sched.fire())
	p.AnimateTo(100, 0)

	n := sched.drain(100)
	assert.Less(t, n, 100)
	st := p.State()
	assert.Equal(t, 100.0, st.X)
	assert.False(t, st.Animating())
	assert.Equal(t, st, (*seen)[len(*seen)-1])
}

func TestPanner_SetAndStop(t *testing.T) {
	p, sched, _, _ := newTestPanner()
	p.AnimateTo(500, 0)
	p.Set(-5, 20)
	assert.Equal(t, PanState{X: 0, Y: 20}, p.State())
	assert.False(t, sched.fire())

	p.AnimateTo(500, 0)
	p.Stop()
	assert.False(t, sched.fire())
}

func TestPanner_RealTimerSettles(t *testing.T) {
	done := make(chan PanState, 1)
	p := NewPanner(func(s PanState) {
		if !s.Animating() {
			select {
			case done <- s:
			default:
			}
		}
	})
	p.AnimateTo(10, 0)

	select {
	case s := <-done:
		assert.Equal(t, 10.0, s.X)
	case <-time.After(5 * time.Second):
		p.Stop()
		t.Fatal("animation did not settle")
	}
}
