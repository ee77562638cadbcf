package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseMarkerRules(t *testing.T) {
	content := `
- pattern: "aamp_tune: attempt: %%"
  label: "Tune %0"
  style: "#123456"
- pattern: "GST_MESSAGE_EOS"
`
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "markers.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	rules, err := ParseMarkerRules(path)
	if err != nil {
		t.Fatalf("ParseMarkerRules failed: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].Label != "Tune %0" || rules[0].Style != "#123456" {
		t.Errorf("unexpected first rule %+v", rules[0])
	}
	// label defaults to the pattern
	if rules[1].Label != "GST_MESSAGE_EOS" {
		t.Errorf("expected label to default to pattern, got %q", rules[1].Label)
	}
}

func TestParseMarkerRulesFromReader_Forms(t *testing.T) {
	t.Run("json list", func(t *testing.T) {
		rules, err := ParseMarkerRulesFromReader(strings.NewReader(`[{"pattern":"a %%","label":"A"}]`))
		if err != nil || len(rules) != 1 || rules[0].Label != "A" {
			t.Fatalf("got %+v, %v", rules, err)
		}
	})
	t.Run("wrapped", func(t *testing.T) {
		rules, err := ParseMarkerRulesFromReader(strings.NewReader("markers:\n  - pattern: x\n  - pattern: y\n"))
		if err != nil || len(rules) != 2 {
			t.Fatalf("got %+v, %v", rules, err)
		}
	})
	t.Run("empty pattern", func(t *testing.T) {
		if _, err := ParseMarkerRulesFromReader(strings.NewReader(`[{"label":"x"}]`)); err == nil {
			t.Error("expected error for empty pattern")
		}
	})
	t.Run("garbage", func(t *testing.T) {
		if _, err := ParseMarkerRulesFromReader(strings.NewReader("::: [")); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestParseMarkerRules_MissingFile(t *testing.T) {
	if _, err := ParseMarkerRules(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBuiltinRules(t *testing.T) {
	rules := BuiltinRules()
	if len(rules) == 0 {
		t.Fatal("no built-in rules")
	}
	for i, r := range rules {
		if r.UserDefined {
			t.Errorf("built-in rule %d marked user defined", i)
		}
	}
	// returned slice is a copy
	rules[0].Label = "changed"
	if BuiltinRules()[0].Label == "changed" {
		t.Error("BuiltinRules should return a copy")
	}
}
