package ruleset

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/triage-visualizer/backend/internal/log"
)

// DefaultDebounce coalesces the bursts of events editors produce on save.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads a user rule file into a Holder whenever it changes.
type Watcher struct {
	holder   *Holder
	path     string
	debounce time.Duration
	logger   zerolog.Logger

	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher for path. A debounce <= 0 uses DefaultDebounce.
func NewWatcher(h *Holder, path string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		holder:   h,
		path:     filepath.Clean(path),
		debounce: debounce,
		logger:   log.WithComponent("ruleset"),
	}
}

// Start loads the file once and then watches it until ctx is done or Stop
// is called. The parent directory is watched so that editors replacing the
// file by rename are followed. A missing or invalid file at start is
// logged and leaves the built-in rules in effect.
func (w *Watcher) Start(ctx context.Context) error {
	if _, err := w.holder.LoadFile(w.path); err != nil {
		w.logger.Warn().Err(err).Str(log.FieldPath, w.path).Msg("initial user rule load failed")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watch rule dir: %w", err)
	}
	w.fsw = fsw

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)

	w.logger.Info().
		Str(log.FieldEvent, "rules.watcher_started").
		Str(log.FieldPath, w.path).
		Msg("watching user rule file")
	return nil
}

// Stop ends watching and waits for the watch loop to exit.
func (w *Watcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	defer func() { _ = w.fsw.Close() }()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Str(log.FieldEvent, "rules.watcher_stopped").Msg("rule watcher stopped")
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || (!ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create)) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Str(log.FieldEvent, "rules.watcher_error").Msg("rule watcher error")
		}
	}
}

func (w *Watcher) reload() {
	info, err := w.holder.LoadFile(w.path)
	if err != nil {
		w.logger.Error().
			Err(err).
			Str(log.FieldEvent, "rules.reload_failed").
			Msg("user rule reload failed, keeping previous rules")
		return
	}
	w.logger.Info().
		Str(log.FieldEvent, "rules.reload_ok").
		Int(log.FieldRules, info.RulesCount).
		Msg("user rules reloaded")
}
