package render

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdvance_MomentumDecays(t *testing.T) {
	s := PanState{Velocity: 10}
	ticks := 0
	for more := true; more; ticks++ {
		s, more = Advance(s, TickInterval)
		if ticks > 100 {
			t.Fatal("momentum never settled")
		}
	}

	assert.Equal(t, 22, ticks)
	assert.InDelta(t, 100*(1-math.Pow(Friction, 22)), s.Y, 1e-9)
	assert.Zero(t, s.Velocity)
	assert.False(t, s.Animating())
}

func TestAdvance_MomentumClampsAtZero(t *testing.T) {
	s, more := Advance(PanState{Y: 5, Velocity: -10}, TickInterval)
	assert.True(t, more)
	assert.Equal(t, 0.0, s.Y)
	assert.InDelta(t, -9.0, s.Velocity, 1e-9)
}

func TestAdvance_AnimateToTarget(t *testing.T) {
	s := PanState{TargetX: 100, HasTargetX: true}

	s, more := Advance(s, TickInterval)
	assert.True(t, more)
	assert.InDelta(t, 20.0, s.X, 1e-9)

	ticks := 1
	for more {
		s, more = Advance(s, TickInterval)
		ticks++
	}
	assert.Equal(t, 21, ticks)
	assert.Equal(t, 100.0, s.X, "snaps once within a pixel")
	assert.False(t, s.HasTargetX)
}

func TestAdvance_TargetOverridesVelocity(t *testing.T) {
	s, _ := Advance(PanState{Y: 50, Velocity: 30, TargetY: 50, HasTargetY: true}, TickInterval)
	assert.Equal(t, 50.0, s.Y)
	assert.Zero(t, s.Velocity)
	assert.False(t, s.HasTargetY)
}

func TestAdvance_DtScalesBlend(t *testing.T) {
	start := PanState{TargetX: 100, HasTargetX: true, TargetY: 100, HasTargetY: true}

	twice, _ := Advance(start, TickInterval)
	twice, _ = Advance(twice, TickInterval)
	once, _ := Advance(start, 2*TickInterval)

	assert.InDelta(t, twice.X, once.X, 1e-9)
	assert.InDelta(t, twice.Y, once.Y, 1e-9)
	assert.InDelta(t, 36.0, once.X, 1e-9)
	assert.InDelta(t, 19.0, once.Y, 1e-9)
}

func TestAdvance_ZeroDt(t *testing.T) {
	in := PanState{X: 3, Velocity: 5}
	out, more := Advance(in, 0)
	assert.Equal(t, in, out)
	assert.True(t, more)
}

func TestReleaseVelocity(t *testing.T) {
	assert.InDelta(t, 12.0, ReleaseVelocity(-50, 100*time.Millisecond), 1e-9)
	assert.InDelta(t, -24.0, ReleaseVelocity(10, 10*time.Millisecond), 1e-9)
	assert.Zero(t, ReleaseVelocity(10, 0))
}
