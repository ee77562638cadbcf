package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/triage-visualizer/backend/internal/classify"
	"github.com/triage-visualizer/backend/internal/log"
	"github.com/triage-visualizer/backend/internal/ruleset"
	"github.com/triage-visualizer/backend/internal/session"
)

var errNoFiles = errors.New("no log files matched")

// expandPatterns resolves glob patterns, ** included, to a de-duplicated
// list of files in argument order.
func expandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				return nil, err
			}
			if !seen[abs] {
				seen[abs] = true
				out = append(out, abs)
			}
		}
	}
	if len(out) == 0 {
		return nil, errNoFiles
	}
	return out, nil
}

// indexFiles reads, merges and indexes the files matching patterns using
// the built-in rules plus the configured user rule file.
func (o *options) indexFiles(ctx context.Context, patterns []string) (*session.Result, error) {
	paths, err := expandPatterns(patterns)
	if err != nil {
		return nil, err
	}

	rules := ruleset.NewHolder(nil)
	if f := o.cfg.Rules.UserFile; f != "" {
		if _, err := rules.LoadFile(f); err != nil {
			return nil, err
		}
	}

	refs := make([]session.FileRef, len(paths))
	for i, p := range paths {
		refs[i] = session.FileRef{ID: p, Name: filepath.Base(p), Path: p}
	}
	files, readErrs := session.ReadFiles(ctx, refs, nil)
	if len(readErrs) > 0 {
		return nil, fmt.Errorf("read %s: %s", readErrs[0].Content, readErrs[0].Reason)
	}

	ix := session.NewIndexer(classify.New(rules.Rules()), session.Options{
		ViperFallback: o.cfg.Index.ViperFallback,
		Workers:       o.cfg.Index.Workers,
	})
	res, err := ix.Index(ctx, files)
	if err != nil {
		return nil, err
	}

	logger := log.WithComponent("cli")
	for _, w := range res.Warnings {
		logger.Warn().Msg(w)
	}
	return res, nil
}
