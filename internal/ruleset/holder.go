// Package ruleset holds the active marker rule table: the built-in rules
// followed by the user's rules, which can be replaced at runtime.
package ruleset

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/triage-visualizer/backend/internal/log"
	"github.com/triage-visualizer/backend/internal/metrics"
	"github.com/triage-visualizer/backend/internal/models"
	"github.com/triage-visualizer/backend/internal/parser"
)

// Holder is safe for concurrent use. Index runs take a snapshot through
// Rules when they start, so a reload never changes a run in progress.
type Holder struct {
	mu      sync.RWMutex
	builtin []models.MarkerRule
	user    []models.MarkerRule
	info    models.RulesInfo
	logger  zerolog.Logger
}

// NewHolder creates a Holder over the given built-in rules, or the
// embedded tables when builtin is nil.
func NewHolder(builtin []models.MarkerRule) *Holder {
	if builtin == nil {
		builtin = parser.BuiltinRules()
	}
	return &Holder{
		builtin: builtin,
		info:    models.RulesInfo{BuiltinCount: len(builtin)},
		logger:  log.WithComponent("ruleset"),
	}
}

// Rules returns the built-in rules followed by the user rules.
func (h *Holder) Rules() []models.MarkerRule {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.MarkerRule, 0, len(h.builtin)+len(h.user))
	out = append(out, h.builtin...)
	return append(out, h.user...)
}

// UserRules returns only the user rules.
func (h *Holder) UserRules() []models.MarkerRule {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]models.MarkerRule(nil), h.user...)
}

// Info describes the active user rule set.
func (h *Holder) Info() models.RulesInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.info
}

// SetUserRules replaces the user rules. name identifies their source.
func (h *Holder) SetUserRules(name string, rules []models.MarkerRule) models.RulesInfo {
	user := make([]models.MarkerRule, len(rules))
	for i, r := range rules {
		r.UserDefined = true
		user[i] = r
	}

	h.mu.Lock()
	h.user = user
	h.info = models.RulesInfo{
		Name:         name,
		UploadedAt:   time.Now().UTC().Format(time.RFC3339),
		RulesCount:   len(user),
		BuiltinCount: len(h.builtin),
	}
	info := h.info
	h.mu.Unlock()

	h.logger.Info().
		Str(log.FieldEvent, "rules.replaced").
		Str("name", name).
		Int(log.FieldRules, len(user)).
		Msg("user marker rules replaced")
	return info
}

// LoadReader parses a rule file from r and makes it the user rule set.
// On a parse error the current rules are kept.
func (h *Holder) LoadReader(name string, r io.Reader) (models.RulesInfo, error) {
	rules, err := parser.ParseMarkerRulesFromReader(r)
	if err != nil {
		metrics.RecordRuleReload(false)
		return h.Info(), fmt.Errorf("load rules %s: %w", name, err)
	}
	metrics.RecordRuleReload(true)
	return h.SetUserRules(name, rules), nil
}

// LoadFile is LoadReader for a file on disk.
func (h *Holder) LoadFile(path string) (models.RulesInfo, error) {
	rules, err := parser.ParseMarkerRules(path)
	if err != nil {
		metrics.RecordRuleReload(false)
		return h.Info(), fmt.Errorf("load rules %s: %w", path, err)
	}
	metrics.RecordRuleReload(true)
	return h.SetUserRules(path, rules), nil
}
