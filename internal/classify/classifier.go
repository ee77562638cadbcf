// Package classify turns timestamped log lines into typed timeline records.
package classify

import (
	"github.com/triage-visualizer/backend/internal/models"
	"github.com/triage-visualizer/backend/internal/parser"
)

// step is one detector. It returns true when it consumed the line; later
// steps are then skipped. Non-terminal steps update the Context and return
// false so the line can still match further down the list.
type step struct {
	name  string
	apply func(cl *Classifier, ctx *Context, ln Line) bool
}

type compiledRule struct {
	rule  models.MarkerRule
	style *models.MarkerStyle
}

// Classifier runs the ordered detector list. It holds no per-session state
// and is safe for concurrent use with distinct Contexts.
type Classifier struct {
	registry *parser.Registry
	strings  *parser.StringIntern
	rules    []compiledRule
	steps    []step
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithRegistry overrides the request-end decoders.
func WithRegistry(r *parser.Registry) Option {
	return func(cl *Classifier) { cl.registry = r }
}

// New builds a classifier for the given marker table. Table order is
// priority order and is preserved as given.
func New(rules []models.MarkerRule, opts ...Option) *Classifier {
	cl := &Classifier{
		registry: parser.GetGlobalRegistry(),
		strings:  parser.NewStringIntern(0),
	}
	for _, opt := range opts {
		opt(cl)
	}
	cl.rules = make([]compiledRule, len(rules))
	for i, r := range rules {
		cl.rules[i] = compiledRule{rule: r, style: RuleStyle(r)}
	}
	cl.steps = []step{
		{"request_end", (*Classifier).requestEnd},
		{"session_boundary", (*Classifier).sessionBoundary},
		{"bitrate_notify", (*Classifier).bitrateNotify},
		{"abr_profile", (*Classifier).abrProfile},
		{"initial_profile", (*Classifier).initialProfile},
		{"getfile_bitrate", (*Classifier).getfileBitrate},
		{"hls_discontinuity", (*Classifier).hlsDiscontinuity},
		{"network_error", (*Classifier).networkError},
		{"abr_switch", (*Classifier).abrSwitch},
		{"buffer_underflow", (*Classifier).bufferUnderflow},
		{"retune", (*Classifier).retune},
		{"player_event", (*Classifier).playerEvent},
		{"bitrate_reason", (*Classifier).bitrateReason},
		{"aamp_stop", (*Classifier).aampStop},
		{"marker_rules", (*Classifier).markerRules},
		{"chunk_injection", (*Classifier).chunkInjection},
		{"tune_time", (*Classifier).tuneTime},
	}
	return cl
}

// RuleCount returns the size of the marker table.
func (cl *Classifier) RuleCount() int { return len(cl.rules) }

// Steps lists the detector names in evaluation order.
func (cl *Classifier) Steps() []string {
	out := make([]string, len(cl.steps))
	for i, s := range cl.steps {
		out[i] = s.name
	}
	return out
}

// Classify runs the detectors over one line. Lines without a timestamp
// produce nothing.
func (cl *Classifier) Classify(ctx *Context, ln Line) Result {
	ctx.begin()
	for _, s := range cl.steps {
		if s.apply(cl, ctx, ln) {
			return ctx.end(ln, s.name)
		}
	}
	return ctx.end(ln, "")
}

// ClassifyText resolves the timestamp of text and classifies it.
func (cl *Classifier) ClassifyText(ctx *Context, index int, text string) Result {
	ts, ok := parser.ParseTimestamp(text)
	if !ok {
		return Result{}
	}
	return cl.Classify(ctx, Line{Index: index, Text: text, UTC: ts})
}
