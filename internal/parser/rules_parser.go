package parser

import (
	"fmt"
	"io"
	"os"

	"github.com/triage-visualizer/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// ruleFile is the wrapped form of a rule file: {"markers": [...]}.
type ruleFile struct {
	Markers []models.MarkerRule `yaml:"markers"`
}

// ParseMarkerRules parses a user marker rule file (YAML or JSON).
func ParseMarkerRules(filePath string) ([]models.MarkerRule, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseMarkerRulesFromReader(file)
}

// ParseMarkerRulesFromReader parses rules from an io.Reader. Both a bare
// list of {pattern, label, style} entries and the wrapped form are accepted.
// JSON input parses as YAML.
func ParseMarkerRulesFromReader(r io.Reader) ([]models.MarkerRule, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return parseMarkerRules(data)
}

func parseMarkerRules(data []byte) ([]models.MarkerRule, error) {
	var rules []models.MarkerRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		var wrapped ruleFile
		if werr := yaml.Unmarshal(data, &wrapped); werr != nil {
			return nil, fmt.Errorf("parse marker rules: %w", err)
		}
		rules = wrapped.Markers
	}
	for i, rule := range rules {
		if rule.Pattern == "" {
			return nil, fmt.Errorf("marker rule %d: empty pattern", i)
		}
		if rule.Label == "" {
			rules[i].Label = rule.Pattern
		}
	}
	return rules, nil
}
