package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		template string
		want     []string
		wantOK   bool
	}{
		{
			name:     "fuzzy leading edge",
			line:     "2021 Sep 27 20:07:36.279 [AAMP-PLAYER] aamp_stop PlayerState=8",
			template: "aamp_stop PlayerState=%%",
			want:     []string{"8"},
			wantOK:   true,
		},
		{
			name:     "nearest delimiter wins",
			line:     "x [AAMP-PLAYER] Period(a - b/c) Offset[1] IsLive(1) IsCdvr(0)",
			template: "Period(%% - %%/%%) Offset[%%] IsLive(%%) IsCdvr(%%)",
			want:     []string{"a", "b", "c", "1", "1", "0"},
			wantOK:   true,
		},
		{
			name:     "delimiter inside later capture",
			line:     "k=v=w, next",
			template: "k=%%, %%",
			want:     []string{"v=w", "next"},
			wantOK:   true,
		},
		{
			name:     "trailing literal must follow",
			line:     "foo[1] bar",
			template: "foo[%%] baz",
			wantOK:   false,
		},
		{
			name:     "missing first literal",
			line:     "hello",
			template: "world %%",
			wantOK:   false,
		},
		{
			name:     "no wildcard is containment",
			line:     "[AAMP-PLAYER] GST_MESSAGE_EOS received",
			template: "GST_MESSAGE_EOS",
			want:     []string{},
			wantOK:   true,
		},
		{
			name:     "empty capture",
			line:     "a=,b=2",
			template: "a=%%,b=%%",
			want:     []string{"", "2"},
			wantOK:   true,
		},
		{
			name:     "delimiter absent captures rest",
			line:     "value=12",
			template: "value=%%;",
			wantOK:   false,
		},
		{
			name:     "whitespace trimmed",
			line:     "   ready 5   ",
			template: "ready %%",
			want:     []string{"5"},
			wantOK:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Match(tt.line, tt.template)
			if ok != tt.wantOK {
				t.Fatalf("Match ok = %v, want %v (captures %q)", ok, tt.wantOK, got)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("captures mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// synthesizeLine builds a line for template by substituting a placeholder
// for every wildcard. Placeholders avoid the character that follows the
// wildcard so the nearest-delimiter rule stops at the literal.
func synthesizeLine(template string) (string, []string) {
	placeholders := []string{"42", "abc", "Zq9"}
	parts := strings.Split(template, Wildcard)
	var b strings.Builder
	var want []string
	for i, lit := range parts {
		b.WriteString(lit)
		if i == len(parts)-1 {
			break
		}
		next := ""
		if parts[i+1] != "" {
			next = parts[i+1][:1]
		}
		ph := placeholders[0]
		for _, p := range placeholders {
			if next == "" || !strings.Contains(p, next) {
				ph = p
				break
			}
		}
		b.WriteString(ph)
		want = append(want, ph)
	}
	line := b.String()
	if !strings.HasSuffix(template, Wildcard) {
		line += " tail"
	}
	prefix := "2021 Sep 27 20:07:36.279 [AAMP-PLAYER] "
	if parts[0] != "" && !strings.Contains(prefix, parts[0]) {
		line = prefix + line
	}
	return line, want
}

func TestMatch_BuiltinRulesRoundTrip(t *testing.T) {
	rules, err := LoadBuiltinRules()
	if err != nil {
		t.Fatalf("LoadBuiltinRules: %v", err)
	}
	if len(rules) < 300 {
		t.Fatalf("expected the full built-in table, got %d rules", len(rules))
	}
	for i, rule := range rules {
		line, want := synthesizeLine(rule.Pattern)
		got, ok := Match(line, rule.Pattern)
		if !ok {
			t.Errorf("rule %d %q: no match for %q", i, rule.Pattern, line)
			continue
		}
		if want == nil {
			want = []string{}
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("rule %d %q: captures (-want +got):\n%s", i, rule.Pattern, diff)
		}
	}
}

func TestExpandLabel(t *testing.T) {
	tests := []struct {
		label    string
		captures []string
		want     string
	}{
		{"Period->%0(%3)", []string{"p1", "x", "y", "live"}, "Period->p1(live)"},
		{"no refs", nil, "no refs"},
		{"missing %2", []string{"a"}, "missing "},
		{"100% sure", nil, "100% sure"},
		{"%0%1", []string{"a", "b"}, "ab"},
	}
	for _, tt := range tests {
		if got := ExpandLabel(tt.label, tt.captures); got != tt.want {
			t.Errorf("ExpandLabel(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}
