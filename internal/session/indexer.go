package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/triage-visualizer/backend/internal/classify"
	"github.com/triage-visualizer/backend/internal/log"
	"github.com/triage-visualizer/backend/internal/metrics"
	"github.com/triage-visualizer/backend/internal/models"
	"github.com/triage-visualizer/backend/internal/parser"
)

const (
	// TuneTimeTableName is the export name of the next-gen tune-time table.
	TuneTimeTableName = "IP_AAMP_TUNETIME"
	// ExTuneTimeTableName is the export name of the legacy tune-time table.
	ExTuneTimeTableName = "IP_EX_TUNETIME"

	exTuneTimePrefix = "IP_EX_TUNETIME:"

	defaultReadWorkers     = 4
	defaultClassifyWorkers = 4
)

// FileRef points at one stored log file.
type FileRef struct {
	ID   string
	Name string
	Path string
}

// Options tunes an Indexer.
type Options struct {
	// ViperFallback groups tune attempts under vendor play requests.
	ViperFallback bool
	// Workers bounds concurrent session classification. Zero means default.
	Workers int
}

// Result is the output of one indexing pass.
type Result struct {
	Corpus      *parser.Corpus
	Sessions    []*models.Session
	TuneTimes   *models.TuneTable
	ExTuneTimes *models.TuneTable
	// ViperGrouped is set when play requests, not tune attempts, split sessions.
	ViperGrouped bool
	Warnings     []string
}

// Session returns session n, or nil when out of range.
func (r *Result) Session(n int) *models.Session {
	if n < 0 || n >= len(r.Sessions) {
		return nil
	}
	return r.Sessions[n]
}

// RecordCount is the number of downloads and markers across all sessions.
func (r *Result) RecordCount() int {
	n := 0
	for _, s := range r.Sessions {
		n += len(s.Downloads) + len(s.Markers)
	}
	return n
}

// LineTime resolves the timestamp of corpus line i.
func (r *Result) LineTime(i int) (int64, bool) {
	if r.Corpus == nil || i < 0 || i >= len(r.Corpus.Lines) {
		return 0, false
	}
	return parser.ParseTimestamp(r.Corpus.Lines[i])
}

// Indexer splits a merged corpus into sessions and classifies each one.
type Indexer struct {
	cl   *classify.Classifier
	opts Options
}

// NewIndexer creates an Indexer using cl for every session.
func NewIndexer(cl *classify.Classifier, opts Options) *Indexer {
	if opts.Workers <= 0 {
		opts.Workers = defaultClassifyWorkers
	}
	return &Indexer{cl: cl, opts: opts}
}

// ReadFiles reads every file concurrently and waits for all of them.
// A failing file is reported as a ParseError and does not stop its siblings;
// the returned slice keeps input order with nil holes for failed files.
func ReadFiles(ctx context.Context, files []FileRef, onProgress parser.ProgressCallback) ([]*parser.SourceFile, []models.ParseError) {
	logger := log.WithComponent("reader")
	out := make([]*parser.SourceFile, len(files))
	failures := make([]error, len(files))

	var (
		mu    sync.Mutex
		lines = make([]int, len(files))
		read  = make([]int64, len(files))
		total = make([]int64, len(files))
	)
	report := func(i, l int, r, t int64) {
		if onProgress == nil {
			return
		}
		mu.Lock()
		lines[i], read[i], total[i] = l, r, t
		var sl int
		var sr, st int64
		for k := range files {
			sl += lines[k]
			sr += read[k]
			st += total[k]
		}
		onProgress(sl, sr, st)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultReadWorkers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				failures[i] = err
				return nil
			}
			sf, err := parser.ReadSourceFile(f.ID, f.Path, func(l int, r, t int64) { report(i, l, r, t) })
			if err != nil {
				failures[i] = err
				return nil
			}
			if f.Name != "" {
				sf.Name = f.Name
			}
			out[i] = sf
			return nil
		})
	}
	_ = g.Wait()

	var errs []models.ParseError
	for i, err := range failures {
		if err == nil {
			continue
		}
		metrics.FileReadErrors.Inc()
		logger.Warn().Err(err).Str(log.FieldFileID, files[i].ID).Str(log.FieldPath, files[i].Path).Msg("file read failed")
		errs = append(errs, models.ParseError{
			Line:    -1,
			Content: files[i].Name,
			Reason:  err.Error(),
		})
	}
	return out, errs
}

// Index merges files and builds the sessions. The only error is ctx's.
func (ix *Indexer) Index(ctx context.Context, files []*parser.SourceFile) (*Result, error) {
	return ix.IndexCorpus(ctx, parser.MergeSources(files))
}

// IndexCorpus builds the sessions of an already merged corpus.
func (ix *Indexer) IndexCorpus(ctx context.Context, corpus *parser.Corpus) (*Result, error) {
	started := time.Now()
	res := &Result{
		Corpus:      corpus,
		TuneTimes:   models.NewTuneTable(TuneTimeTableName, append(strings.Split(models.TuneTimeHeader, ","), "locator")),
		ExTuneTimes: models.NewTuneTable(ExTuneTimeTableName, nil),
	}

	bounds, grouped := findBoundaries(corpus.Lines, ix.opts.ViperFallback)
	res.ViperGrouped = grouped
	if len(bounds) == 0 && len(corpus.Lines) > 0 {
		res.Warnings = append(res.Warnings, "no tune attempts found")
	}

	res.Sessions = make([]*models.Session, len(bounds))
	rows := make([]tuneRows, len(bounds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Workers)
	for k, first := range bounds {
		last := len(corpus.Lines) - 1
		if k+1 < len(bounds) {
			last = bounds[k+1] - 1
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res.Sessions[k], rows[k] = ix.buildSession(k, first, last, corpus.Lines, grouped)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}

	width := 0
	for k, r := range rows {
		if r.aamp != nil {
			res.TuneTimes.Set(k+1, r.aamp)
		}
		if r.ex != nil {
			res.ExTuneTimes.Set(k+1, r.ex)
			if len(r.ex) > width {
				width = len(r.ex)
			}
		}
	}
	res.ExTuneTimes.Rows[0] = exHeader(width)

	for _, s := range res.Sessions {
		metrics.RecordClassified(string(models.KindDownload), len(s.Downloads))
		metrics.RecordClassified(string(models.KindMarker), len(s.Markers))
		metrics.RecordClassified(string(models.KindChunk), len(s.Chunks))
	}
	metrics.LinesIndexed.Add(float64(len(corpus.Lines)))

	logger := log.WithComponent("indexer")
	logger.Debug().
		Int(log.FieldLines, len(corpus.Lines)).
		Int(log.FieldSessions, len(res.Sessions)).
		Int(log.FieldRecords, res.RecordCount()).
		Int64(log.FieldDuration, time.Since(started).Milliseconds()).
		Msg("corpus indexed")
	return res, nil
}

// findBoundaries returns the first line of every session. In fallback mode
// play requests supersede tune attempts when any are present.
func findBoundaries(lines []string, viperFallback bool) ([]int, bool) {
	if viperFallback {
		var viper []int
		for i, l := range lines {
			if strings.Contains(l, classify.ViperMarker) {
				viper = append(viper, i)
			}
		}
		if len(viper) > 0 {
			return viper, true
		}
	}
	var bounds []int
	for i, l := range lines {
		if classify.IsBoundary(l, false) {
			bounds = append(bounds, i)
		}
	}
	return bounds, false
}

type tuneRows struct {
	aamp []string
	ex   []string
}

func (ix *Indexer) buildSession(k, first, last int, lines []string, grouped bool) (*models.Session, tuneRows) {
	s := &models.Session{
		Index:     k,
		FirstLine: first,
		LastLine:  last,
		Downloads: []*models.DownloadRecord{},
		Markers:   []*models.Marker{},
	}
	ctx := classify.NewContext(s)
	ctx.ViperFallback = grouped

	var rows tuneRows
	var exPayload string
	haveStart := false
	for i := first; i <= last; i++ {
		text := lines[i]
		ts, ok := parser.ParseTimestamp(text)
		if ok && !haveStart {
			s.StartUTC = ts
			haveStart = true
		}
		if payload, found := classify.TuneTimePayload(text); found {
			rows.aamp = models.ParseTuneTimeRecord(payload).Fields
		}
		if j := strings.Index(text, exTuneTimePrefix); j >= 0 {
			exPayload = text[j+len(exTuneTimePrefix):]
		}
		if !ok {
			continue
		}
		ix.cl.Classify(ctx, classify.Line{Index: i, Text: text, UTC: ts})
	}

	if rows.aamp != nil {
		rows.aamp = append(rows.aamp, s.Locator)
	}
	if exPayload != "" {
		rows.ex = append(models.ParseTuneTimeRecord(exPayload).Fields, s.Locator)
	}
	s.Label = sessionLabel(s)
	return s, rows
}

// sessionLabel renders "(n): HH:MM:SS" with the tune outcome when known.
func sessionLabel(s *models.Session) string {
	label := "(" + strconv.Itoa(s.Index+1) + "): " + time.UnixMilli(s.StartUTC).UTC().Format("15:04:05")
	switch {
	case s.Tune == nil:
	case s.TuneFailed:
		label += " (fail)"
	default:
		label += " (" + strconv.FormatInt(s.TuneTimeMs, 10) + "ms)"
	}
	return label
}

// exHeader names the positional columns of the legacy table.
func exHeader(width int) []string {
	if width == 0 {
		return []string{"locator"}
	}
	h := make([]string, 0, width)
	for i := 0; i < width-1; i++ {
		h = append(h, "f"+strconv.Itoa(i))
	}
	return append(h, "locator")
}
