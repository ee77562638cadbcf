package session

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/triage-visualizer/backend/internal/models"
	"github.com/triage-visualizer/backend/internal/parser"
)

// ErrBadJumpTime is returned when a jump target cannot be parsed.
var ErrBadJumpTime = errors.New("unrecognized time")

// NextException returns the earliest exception marker strictly after t.
func NextException(s *models.Session, t int64) (*models.Marker, bool) {
	var best *models.Marker
	for _, m := range s.Markers {
		if !m.Exception || m.Timestamp <= t {
			continue
		}
		if best == nil || m.Timestamp < best.Timestamp {
			best = m
		}
	}
	return best, best != nil
}

// PrevException returns the latest exception marker strictly before t.
func PrevException(s *models.Session, t int64) (*models.Marker, bool) {
	var best *models.Marker
	for _, m := range s.Markers {
		if !m.Exception || m.Timestamp >= t {
			continue
		}
		if best == nil || m.Timestamp > best.Timestamp {
			best = m
		}
	}
	return best, best != nil
}

// SessionForLine finds the session whose line range holds line.
func SessionForLine(sessions []*models.Session, line int) (int, bool) {
	i := sort.Search(len(sessions), func(i int) bool {
		return sessions[i].FirstLine > line
	}) - 1
	if i < 0 || line > sessions[i].LastLine {
		return 0, false
	}
	return i, true
}

// PanTarget is the pan offset that brings t to the left edge of session s.
func PanTarget(s *models.Session, t int64) float64 {
	return float64(t - s.MinTimestamp)
}

// JumpTarget resolves a user-typed time to a pan offset within s.
// Device times ("Sep 27 20:07:36", "1632772056:279") are absolute; a
// leading '+' makes the value an offset from the session start given as
// seconds, m:ss or h:mm:ss, with an optional fraction. The result is
// clamped to the session.
func JumpTarget(s *models.Session, value string) (float64, error) {
	value = strings.TrimSpace(value)
	var pan float64
	if rest, ok := strings.CutPrefix(value, "+"); ok {
		ms, err := parseOffset(rest)
		if err != nil {
			return 0, fmt.Errorf("jump %q: %w", value, err)
		}
		pan = ms
	} else {
		t, ok := parser.ParseJumpTime(value)
		if !ok {
			return 0, fmt.Errorf("jump %q: %w", value, ErrBadJumpTime)
		}
		pan = PanTarget(s, t)
	}
	span := float64(s.MaxTimestamp - s.MinTimestamp)
	return math.Max(0, math.Min(pan, math.Max(span, 0))), nil
}

func parseOffset(v string) (float64, error) {
	parts := strings.Split(v, ":")
	if len(parts) > 3 || v == "" {
		return 0, ErrBadJumpTime
	}
	var total float64
	for i, p := range parts {
		last := i == len(parts)-1
		var n float64
		var err error
		if last {
			n, err = strconv.ParseFloat(p, 64)
		} else {
			var k int
			k, err = strconv.Atoi(p)
			n = float64(k)
		}
		if err != nil || n < 0 || (i > 0 && n >= 60) {
			return 0, ErrBadJumpTime
		}
		total = total*60 + n
	}
	return total * 1000, nil
}
