// Package stats aggregates download and tune-time statistics of an index
// run and exports them as CSV files and an HTML report.
package stats

import (
	"sort"

	"github.com/triage-visualizer/backend/internal/models"
	"github.com/triage-visualizer/backend/internal/parser"
)

const (
	// DownloadBucketMs and DownloadBuckets cover 0..10000 ms.
	DownloadBucketMs = 250
	DownloadBuckets  = 40
	// TuneBucketMs and TuneBuckets cover 0..20000 ms.
	TuneBucketMs = 500
	TuneBuckets  = 40

	TuneCategory = "Tune Time"
	TuneSuccess  = "Success"
	TuneFailure  = "Failure"
)

// Category holds the outcome counts of one download category, plus a
// duration histogram per successful outcome.
type Category struct {
	Name      string                `json:"name"`
	Outcomes  map[string]int        `json:"outcomes"`
	Durations map[string]*Histogram `json:"durations"`

	bucketMs, buckets int
	order             []string
}

func newCategory(name string, bucketMs, buckets int) *Category {
	return &Category{
		Name:      name,
		Outcomes:  make(map[string]int),
		Durations: make(map[string]*Histogram),
		bucketMs:  bucketMs,
		buckets:   buckets,
	}
}

func (c *Category) add(outcome string, ms float64, timed bool) {
	if _, seen := c.Outcomes[outcome]; !seen {
		c.order = append(c.order, outcome)
	}
	c.Outcomes[outcome]++
	if !timed {
		return
	}
	h, ok := c.Durations[outcome]
	if !ok {
		h = NewHistogram(c.bucketMs, c.buckets)
		c.Durations[outcome] = h
	}
	h.Add(ms)
}

// OutcomeOrder lists outcomes in first-seen order.
func (c *Category) OutcomeOrder() []string {
	return append([]string(nil), c.order...)
}

// Total is the number of records counted in the category.
func (c *Category) Total() int {
	n := 0
	for _, v := range c.Outcomes {
		n += v
	}
	return n
}

// Stats is the aggregate over one or more sessions.
type Stats struct {
	categories map[string]*Category
	order      []string
	tune       *Category
}

// New creates empty statistics.
func New() *Stats {
	return &Stats{
		categories: make(map[string]*Category),
		tune:       newCategory(TuneCategory, TuneBucketMs, TuneBuckets),
	}
}

// FromSessions aggregates every download and tune summary of sessions.
func FromSessions(sessions []*models.Session) *Stats {
	st := New()
	for _, s := range sessions {
		st.AddSession(s)
	}
	return st
}

// AddSession counts the records of s.
func (st *Stats) AddSession(s *models.Session) {
	for _, d := range s.Downloads {
		st.AddDownload(d)
	}
	if s.Tune != nil {
		st.AddTune(s.Tune)
	}
}

// AddDownload counts one transfer. Synthetic DRM phases are not transfers
// of their own and are skipped.
func (st *Stats) AddDownload(d *models.DownloadRecord) {
	if d.Overhead {
		return
	}
	name := parser.StatsCategory(d)
	c, ok := st.categories[name]
	if !ok {
		c = newCategory(name, DownloadBucketMs, DownloadBuckets)
		st.categories[name] = c
		st.order = append(st.order, name)
	}
	c.add(d.Outcome, d.DurationMs, d.Succeeded())
}

// AddTune counts one tune-time report.
func (st *Stats) AddTune(t *models.TuneSummary) {
	outcome := TuneSuccess
	if !t.Success {
		outcome = TuneFailure
	}
	st.tune.add(outcome, float64(t.TuneTimeMs), t.Success)
}

// Categories returns the download categories sorted by name.
func (st *Stats) Categories() []*Category {
	names := append([]string(nil), st.order...)
	sort.Strings(names)
	out := make([]*Category, len(names))
	for i, n := range names {
		out[i] = st.categories[n]
	}
	return out
}

// Category looks up one download category.
func (st *Stats) Category(name string) (*Category, bool) {
	c, ok := st.categories[name]
	return c, ok
}

// Tune returns the tune-time category.
func (st *Stats) Tune() *Category { return st.tune }

// TuneHistogram is the distribution of successful tune times. It is never nil.
func (st *Stats) TuneHistogram() *Histogram {
	if h, ok := st.tune.Durations[TuneSuccess]; ok {
		return h
	}
	return NewHistogram(TuneBucketMs, TuneBuckets)
}
