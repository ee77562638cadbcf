package render

import (
	"math"
	"time"
)

// Pan physics constants. One tick of TickInterval applies Friction once.
const (
	TickInterval = 33 * time.Millisecond
	// DragSpeed scales release velocity (px/ms) into px per tick.
	DragSpeed = 24.0
	Friction  = 0.90

	blendX       = 0.2
	blendY       = 0.1
	snapDistance = 1.0
	minVelocity  = 1.0
)

// PanState is the scroll position of the view. Velocity applies to Y.
// When a target is set the state animates toward it instead of coasting.
type PanState struct {
	X, Y     float64
	Velocity float64

	TargetX, TargetY       float64
	HasTargetX, HasTargetY bool
}

// Animating reports whether Advance still has work to do.
func (s PanState) Animating() bool {
	return s.HasTargetX || s.HasTargetY || math.Abs(s.Velocity) >= minVelocity
}

// Advance steps the pan state by dt. Targets are approached exponentially
// and snapped once within a pixel; otherwise Y coasts with decaying
// velocity, never going below zero. It reports whether another step is
// needed.
func Advance(s PanState, dt time.Duration) (PanState, bool) {
	if dt <= 0 {
		return s, s.Animating()
	}
	ticks := float64(dt) / float64(TickInterval)

	if s.HasTargetX || s.HasTargetY {
		s.Velocity = 0
		if s.HasTargetX {
			s.X, s.HasTargetX = approach(s.X, s.TargetX, blendX, ticks)
		}
		if s.HasTargetY {
			s.Y, s.HasTargetY = approach(s.Y, s.TargetY, blendY, ticks)
		}
		return s, s.HasTargetX || s.HasTargetY
	}

	s.Y = math.Max(0, s.Y+s.Velocity*ticks)
	s.Velocity *= math.Pow(Friction, ticks)
	if math.Abs(s.Velocity) < minVelocity {
		s.Velocity = 0
		return s, false
	}
	return s, true
}

// approach blends v toward target and reports whether it is still short of it.
func approach(v, target, blend, ticks float64) (float64, bool) {
	v = target + (v-target)*math.Pow(1-blend, ticks)
	if math.Abs(v-target) > snapDistance {
		return v, true
	}
	return target, false
}

// ReleaseVelocity converts a vertical drag of dy px over elapsed into
// a coasting velocity. Dragging up scrolls down.
func ReleaseVelocity(dy float64, elapsed time.Duration) float64 {
	ms := float64(elapsed) / float64(time.Millisecond)
	if ms <= 0 {
		return 0
	}
	return -DragSpeed * dy / ms
}
