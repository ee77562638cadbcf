package stats

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"math"
	"strings"
	"time"

	"github.com/triage-visualizer/backend/internal/models"
	"github.com/triage-visualizer/backend/internal/parser"
)

//go:embed report.html.tmpl
var reportSource string

var reportTemplate = template.Must(template.New("report").Parse(reportSource))

const (
	initConfigMarker = "AAMPMediaPlayerJS_initConfig(): "
	slowDownloadMs   = 2000
)

// Line colors of the report.
const (
	ColorFailure    = "red"
	ColorSlow       = "orange"
	ColorTune       = "green"
	ColorInitConfig = "blue"
)

// ReportLine is one annotated log event.
type ReportLine struct {
	Time  string
	Text  string
	Color string
}

// OutcomeRow is one outcome count of a category.
type OutcomeRow struct {
	Outcome string
	Count   int
}

// BucketRow is one non-empty histogram bucket.
type BucketRow struct {
	Range   string
	Count   int
	Percent int
}

// OutcomeHistogram is the duration distribution of one outcome.
type OutcomeHistogram struct {
	Outcome string
	Buckets []BucketRow
}

// CategoryView is the printable form of a Category.
type CategoryView struct {
	Name       string
	Outcomes   []OutcomeRow
	Histograms []OutcomeHistogram
}

// Report is the annotated log with the aggregated statistics appended.
type Report struct {
	Title      string
	Lines      []ReportLine
	Categories []CategoryView
	Tune       CategoryView
}

// BuildReport annotates the corpus lines that carry a tune attempt, a
// download, a tune-time report or the player configuration. Times are
// relative to the first annotated line.
func BuildReport(title string, lines []string, sessions []*models.Session, st *Stats) *Report {
	byLine := make(map[int][]models.Record)
	for _, s := range sessions {
		for _, r := range s.Records() {
			byLine[r.SourceLine()] = append(byLine[r.SourceLine()], r)
		}
	}

	rep := &Report{Title: title, Lines: []ReportLine{}}
	var base, last int64
	haveBase := false
	emit := func(text, color string) {
		if !haveBase {
			base, haveBase = last, true
		}
		rep.Lines = append(rep.Lines, ReportLine{Time: relativeTime(last - base), Text: text, Color: color})
	}

	for i, line := range lines {
		if t, ok := parser.ParseTimestamp(line); ok {
			last = t
		}
		if _, cfg, found := strings.Cut(line, initConfigMarker); found {
			emit(cfg, ColorInitConfig)
			continue
		}
		for _, r := range byLine[i] {
			switch rec := r.(type) {
			case *models.SessionBoundary:
				emit("--> New Tune "+time.UnixMilli(rec.Timestamp).UTC().Format(time.RFC1123), ColorTune)
			case *models.DownloadRecord:
				if rec.Overhead {
					continue
				}
				emit(downloadText(rec), downloadColor(rec))
			case *models.TuneSummary:
				emit(fmt.Sprintf("IP_AAMP_TUNETIME %d", rec.TuneTimeMs), ColorTune)
			}
		}
	}

	if st != nil {
		for _, c := range st.Categories() {
			rep.Categories = append(rep.Categories, categoryView(c))
		}
		rep.Tune = categoryView(st.Tune())
	}
	return rep
}

// Execute renders the report as HTML.
func (r *Report) Execute(w io.Writer) error {
	return reportTemplate.Execute(w, r)
}

func downloadText(d *models.DownloadRecord) string {
	return fmt.Sprintf("curl%6.0fms, ulSz=%8d, dlSz=%8d, %s, %s, %s",
		d.DurationMs, d.UploadBytes, d.DownloadBytes, d.Outcome, d.Type, d.URL)
}

func downloadColor(d *models.DownloadRecord) string {
	switch {
	case !parser.IsHTTPSuccess(d.Outcome):
		return ColorFailure
	case d.DurationMs >= slowDownloadMs:
		return ColorSlow
	}
	return ""
}

// relativeTime renders ms as MM:SS.mmm.
func relativeTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000)
}

func categoryView(c *Category) CategoryView {
	v := CategoryView{Name: c.Name}
	for _, o := range c.OutcomeOrder() {
		v.Outcomes = append(v.Outcomes, OutcomeRow{Outcome: o, Count: c.Outcomes[o]})
		h, ok := c.Durations[o]
		if !ok {
			continue
		}
		oh := OutcomeHistogram{Outcome: o}
		total := c.Outcomes[o]
		for i, n := range h.Counts {
			if n == 0 {
				continue
			}
			oh.Buckets = append(oh.Buckets, BucketRow{
				Range:   h.RangeLabel(i),
				Count:   n,
				Percent: int(math.Round(100 * float64(n) / float64(total))),
			})
		}
		v.Histograms = append(v.Histograms, oh)
	}
	return v
}
