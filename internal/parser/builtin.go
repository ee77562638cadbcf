package parser

import (
	"embed"
	"fmt"
	"path"
	"sync"

	"github.com/triage-visualizer/backend/internal/models"
)

// Built-in marker tables. Files are concatenated in name order, which is
// also priority order.
//
//go:embed rules/*.yaml
var builtinRulesFS embed.FS

var (
	builtinOnce  sync.Once
	builtinRules []models.MarkerRule
	builtinErr   error
)

// LoadBuiltinRules parses the embedded marker tables.
func LoadBuiltinRules() ([]models.MarkerRule, error) {
	builtinOnce.Do(func() {
		entries, err := builtinRulesFS.ReadDir("rules")
		if err != nil {
			builtinErr = err
			return
		}
		for _, e := range entries {
			data, err := builtinRulesFS.ReadFile(path.Join("rules", e.Name()))
			if err != nil {
				builtinErr = err
				return
			}
			rules, err := parseMarkerRules(data)
			if err != nil {
				builtinErr = fmt.Errorf("%s: %w", e.Name(), err)
				return
			}
			builtinRules = append(builtinRules, rules...)
		}
	})
	return builtinRules, builtinErr
}

// BuiltinRules returns a copy of the embedded marker tables.
func BuiltinRules() []models.MarkerRule {
	rules, err := LoadBuiltinRules()
	if err != nil {
		panic(err)
	}
	return append([]models.MarkerRule(nil), rules...)
}
