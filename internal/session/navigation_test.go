package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triage-visualizer/backend/internal/models"
)

func exceptionSession() *models.Session {
	return &models.Session{
		MinTimestamp: 1000,
		Markers: []*models.Marker{
			{Timestamp: 1000, Label: "start"},
			{Timestamp: 2000, Label: "e1", Exception: true},
			{Timestamp: 3000, Label: "info"},
			{Timestamp: 4000, Label: "e2", Exception: true},
		},
	}
}

func TestNextException(t *testing.T) {
	s := exceptionSession()

	m, ok := NextException(s, 0)
	require.True(t, ok)
	assert.Equal(t, "e1", m.Label)

	m, ok = NextException(s, 2000)
	require.True(t, ok)
	assert.Equal(t, "e2", m.Label)

	_, ok = NextException(s, 4000)
	assert.False(t, ok)
}

func TestPrevException(t *testing.T) {
	s := exceptionSession()

	m, ok := PrevException(s, 5000)
	require.True(t, ok)
	assert.Equal(t, "e2", m.Label)

	m, ok = PrevException(s, 4000)
	require.True(t, ok)
	assert.Equal(t, "e1", m.Label)

	_, ok = PrevException(s, 2000)
	assert.False(t, ok)
}

func TestSessionForLine(t *testing.T) {
	sessions := []*models.Session{
		{FirstLine: 3, LastLine: 9},
		{FirstLine: 10, LastLine: 20},
	}
	tests := []struct {
		line   int
		want   int
		wantOK bool
	}{
		{0, 0, false},
		{3, 0, true},
		{9, 0, true},
		{10, 1, true},
		{20, 1, true},
		{21, 0, false},
	}
	for _, tt := range tests {
		got, ok := SessionForLine(sessions, tt.line)
		assert.Equal(t, tt.wantOK, ok, "line %d", tt.line)
		if tt.wantOK {
			assert.Equal(t, tt.want, got, "line %d", tt.line)
		}
	}
}

func TestPanTarget(t *testing.T) {
	assert.Equal(t, 1500.0, PanTarget(exceptionSession(), 2500))
}

func TestJumpTarget(t *testing.T) {
	base := time.Date(2021, time.September, 27, 20, 7, 36, 0, time.UTC).UnixMilli()
	s := &models.Session{MinTimestamp: base, MaxTimestamp: base + 10*60*1000}

	tests := []struct {
		name  string
		value string
		want  float64
	}{
		{"seconds offset", "+12", 12000},
		{"fractional offset", "+1.5", 1500},
		{"minutes offset", "+2:30", 150000},
		{"hours offset clamped", "+1:00:00", 600000},
		{"device time", "2021 Sep 27 20:08:36", 60000},
		{"before session clamped", "2021 Sep 27 20:00:00", 0},
		{"simulator time", "1632773316:250", 60250},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JumpTarget(s, tt.value)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestJumpTarget_Invalid(t *testing.T) {
	s := &models.Session{MinTimestamp: 0, MaxTimestamp: 1000}
	for _, v := range []string{"", "soon", "+", "+1:75", "+a:10", "+1:2:3:4", "+-5"} {
		_, err := JumpTarget(s, v)
		assert.ErrorIs(t, err, ErrBadJumpTime, "value %q", v)
	}
}
