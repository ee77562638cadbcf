package ruleset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/triage-visualizer/backend/internal/metrics"
	"github.com/triage-visualizer/backend/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var builtin = []models.MarkerRule{{Pattern: "aamp_tune: %%", Label: "Tune"}}

func TestHolder_RulesOrder(t *testing.T) {
	h := NewHolder(builtin)
	assert.Equal(t, builtin, h.Rules())
	assert.Empty(t, h.UserRules())

	info := h.SetUserRules("mine.yaml", []models.MarkerRule{{Pattern: "custom %%", Label: "Custom(%0)"}})
	assert.Equal(t, 1, info.RulesCount)
	assert.Equal(t, 1, info.BuiltinCount)
	assert.Equal(t, "mine.yaml", info.Name)
	assert.NotEmpty(t, info.UploadedAt)

	rules := h.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, "Tune", rules[0].Label, "built-in rules keep priority")
	assert.False(t, rules[0].UserDefined)
	assert.Equal(t, "Custom(%0)", rules[1].Label)
	assert.True(t, rules[1].UserDefined)
}

func TestHolder_RulesReturnsCopy(t *testing.T) {
	h := NewHolder(builtin)
	rules := h.Rules()
	rules[0].Label = "changed"
	assert.Equal(t, "Tune", h.Rules()[0].Label)
}

func TestHolder_DefaultBuiltins(t *testing.T) {
	h := NewHolder(nil)
	assert.NotEmpty(t, h.Rules())
	assert.Equal(t, len(h.Rules()), h.Info().BuiltinCount)
}

func TestHolder_LoadReader(t *testing.T) {
	h := NewHolder(builtin)
	okBefore := testutil.ToFloat64(metrics.RuleReloads.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(metrics.RuleReloads.WithLabelValues("error"))

	info, err := h.LoadReader("upload.json", strings.NewReader(`[{"pattern":"foo %%","label":"Foo"}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, info.RulesCount)

	_, err = h.LoadReader("broken.yaml", strings.NewReader("- pattern: ''\n"))
	assert.Error(t, err)
	assert.Len(t, h.UserRules(), 1, "previous rules kept")
	assert.Equal(t, "upload.json", h.Info().Name)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(metrics.RuleReloads.WithLabelValues("ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(metrics.RuleReloads.WithLabelValues("error")))
}

func writeRules(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func userLabels(h *Holder) []string {
	var out []string
	for _, r := range h.UserRules() {
		out = append(out, r.Label)
	}
	return out
}

func TestWatcher_Reloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeRules(t, path, "- pattern: 'first %%'\n  label: First\n")

	h := NewHolder(builtin)
	w := NewWatcher(h, path, 20*time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Equal(t, []string{"First"}, userLabels(h))

	writeRules(t, path, "markers:\n  - pattern: 'second %%'\n    label: Second\n")
	require.Eventually(t, func() bool {
		l := userLabels(h)
		return len(l) == 1 && l[0] == "Second"
	}, 5*time.Second, 10*time.Millisecond)

	// a broken save keeps the last good rules
	writeRules(t, path, "- pattern: [unclosed\n")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{"Second"}, userLabels(h))

	// other files in the directory are ignored
	writeRules(t, filepath.Join(dir, "other.yaml"), "- pattern: 'x'\n")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{"Second"}, userLabels(h))
}

func TestWatcher_MissingFileAtStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")

	h := NewHolder(builtin)
	w := NewWatcher(h, path, 20*time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()
	assert.Empty(t, h.UserRules())

	writeRules(t, path, "- pattern: 'late %%'\n  label: Late\n")
	require.Eventually(t, func() bool { return len(h.UserRules()) == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWatcher(NewHolder(builtin), filepath.Join(t.TempDir(), "rules.yaml"), 0)
	require.NoError(t, w.Start(ctx))
	cancel()
	w.Stop()
	w.Stop()
}

func TestWatcher_StartFailsForMissingDir(t *testing.T) {
	w := NewWatcher(NewHolder(builtin), filepath.Join(t.TempDir(), "nope", "rules.yaml"), 0)
	assert.Error(t, w.Start(context.Background()))
	w.Stop()
}
