package layout

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triage-visualizer/backend/internal/classify"
	"github.com/triage-visualizer/backend/internal/metrics"
	"github.com/triage-visualizer/backend/internal/models"
)

func download(line int, typ models.MediaType, start, dur float64) *models.DownloadRecord {
	return &models.DownloadRecord{
		Line:         line,
		Type:         typ,
		ResponseCode: 200,
		Outcome:      "HTTP200(OK)",
		DurationMs:   dur,
		UTCStart:     start,
		UTCEnd:       start + dur,
	}
}

func testSession(downloads ...*models.DownloadRecord) *models.Session {
	s := &models.Session{MinTimestamp: 1000, MaxTimestamp: 1000, Downloads: downloads}
	for _, d := range downloads {
		if int64(d.UTCEnd) > s.MaxTimestamp {
			s.MaxTimestamp = int64(d.UTCEnd)
		}
	}
	return s
}

func trackLabels(l *models.TimelineLayout) []string {
	out := make([]string, len(l.Tracks))
	for i, t := range l.Tracks {
		out[i] = t.Label
	}
	return out
}

func TestTimeToX(t *testing.T) {
	e := New(DefaultConfig())
	s := &models.Session{MinTimestamp: 1000}

	assert.Equal(t, 144.0, e.TimeToX(s, 1000, 0))
	assert.Equal(t, 244.0, e.TimeToX(s, 2000, 0))
	assert.Equal(t, 194.0, e.TimeToX(s, 2000, 500))
	assert.InDelta(t, 2000.0, e.XToTime(s, 194, 500), 1e-9)
}

func TestNew_Defaults(t *testing.T) {
	e := New(Config{})
	assert.Equal(t, DefaultConfig(), e.Config())

	e = New(Config{Scale: 0.2})
	assert.Equal(t, 0.2, e.Config().Scale)
	assert.Equal(t, DefaultMaxPasses, e.Config().MaxPasses)
}

func TestLayout_TrackOrder(t *testing.T) {
	s := testSession(
		download(0, models.MediaManifest, 1000, 100),
		download(1, models.MediaVideo, 1100, 100),
		download(2, models.MediaVideo, 1200, 100),
		download(3, models.MediaAudio, 1200, 100),
	)
	s.Downloads[1].Bitrate = 800000
	s.Downloads[2].Bitrate = 2500000
	s.Bitrates = []int64{800000, 2500000}

	l := New(DefaultConfig()).Layout(s, 0)

	want := []string{
		TrackManifest, TrackPlaylistVideo, TrackPlaylistAudio, TrackInitVideo, TrackInitAudio,
		"2500000", "800000",
		TrackAudio, TrackSubtitle, TrackIFrame, TrackDRM,
	}
	if diff := cmp.Diff(want, trackLabels(l)); diff != "" {
		t.Errorf("tracks mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 6, l.Downloads[1].Track)
	assert.Equal(t, 5, l.Downloads[2].Track)
	assert.Equal(t, 7, l.Downloads[3].Track)
}

func TestLayout_PlainVideoAndOtherTracks(t *testing.T) {
	s := testSession(
		download(0, models.MediaVideo, 1000, 100),
		download(1, models.MediaImage, 1000, 100),
	)
	l := New(DefaultConfig()).Layout(s, 0)

	labels := trackLabels(l)
	assert.Contains(t, labels, TrackVideo)
	assert.Equal(t, TrackOther, labels[len(labels)-1])
	assert.Equal(t, TrackVideo, labels[l.Downloads[0].Track])
	assert.Equal(t, TrackOther, labels[l.Downloads[1].Track])
}

func TestLayout_DownloadGeometry(t *testing.T) {
	s := testSession(download(7, models.MediaManifest, 2000, 250))
	l := New(DefaultConfig()).Layout(s, 0)

	require.Len(t, l.Downloads, 1)
	b := l.Downloads[0]
	assert.Equal(t, 243.0, b.X)
	assert.Equal(t, 244.0+25-243+2, b.W)
	assert.Equal(t, float64(TopMargin-RowHeight/2+2), b.Y)
	assert.Equal(t, float64(RowHeight-4), b.H)
	assert.Equal(t, 7, b.Line)
	assert.Equal(t, "#00cccc", b.Fill)
}

func TestLayout_FailureColor(t *testing.T) {
	d := download(0, models.MediaVideo, 1000, 100)
	d.ResponseCode, d.Outcome = 404, "HTTP404(Not Found)"
	l := New(DefaultConfig()).Layout(testSession(d), 0)
	assert.Equal(t, "#ff2020", l.Downloads[0].Fill)
}

func TestLayout_DisplacementTieBreak(t *testing.T) {
	s := testSession(
		download(0, models.MediaAudio, 1000, 500),
		download(1, models.MediaAudio, 1000, 500),
		download(2, models.MediaAudio, 1000, 500),
		download(3, models.MediaAudio, 3000, 500),
	)
	l := New(DefaultConfig()).Layout(s, 0)

	rows := []int{l.Downloads[0].Row, l.Downloads[1].Row, l.Downloads[2].Row, l.Downloads[3].Row}
	assert.Equal(t, []int{0, 1, 2, 0}, rows)
	assert.Empty(t, l.Warnings)

	audio := l.Tracks[l.Downloads[0].Track]
	assert.Equal(t, 3, audio.Rows)
	next := l.Tracks[l.Downloads[0].Track+1]
	assert.Equal(t, audio.Y+3*RowHeight, next.Y)
	assert.Equal(t, l.Downloads[0].Y+2*RowHeight, l.Downloads[2].Y)
}

func TestLayout_NonOverlapProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	types := []models.MediaType{models.MediaVideo, models.MediaAudio, models.MediaManifest, models.MediaLicense, models.MediaSubtitle}

	var downloads []*models.DownloadRecord
	for i := 0; i < 300; i++ {
		start := 1000 + rng.Float64()*20000
		downloads = append(downloads, download(i, types[rng.Intn(len(types))], start, rng.Float64()*3000))
	}
	l := New(DefaultConfig()).Layout(testSession(downloads...), 0)
	require.Empty(t, l.Warnings)

	for i := range l.Downloads {
		for j := i + 1; j < len(l.Downloads); j++ {
			a, b := l.Downloads[i], l.Downloads[j]
			if Overlaps(a, b) {
				t.Fatalf("boxes %d and %d share track %d row %d and overlap", i, j, a.Track, a.Row)
			}
			// pixel boxes contain their time intervals
			da, db := downloads[i], downloads[j]
			if a.Track == b.Track && a.Row == b.Row && da.UTCStart < db.UTCEnd && db.UTCStart < da.UTCEnd {
				t.Fatalf("records %d and %d overlap in time on one row", i, j)
			}
		}
	}
}

func TestLayout_DisplacementCap(t *testing.T) {
	var downloads []*models.DownloadRecord
	for i := 0; i < 5; i++ {
		downloads = append(downloads, download(i, models.MediaVideo, 1000, 1000))
	}
	before := testutil.ToFloat64(metrics.LayoutDisplacementCapped)

	l := New(Config{MaxPasses: 1}).Layout(testSession(downloads...), 0)

	require.Len(t, l.Warnings, 1)
	assert.Contains(t, l.Warnings[0], "VIDEO")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.LayoutDisplacementCapped))
	assert.Len(t, l.Downloads, 5)
}

func TestLayout_MarkerPacking(t *testing.T) {
	s := testSession()
	s.MaxTimestamp = 60000
	s.Boundary = &models.SessionBoundary{Timestamp: 1000, Line: 0, Label: "Aamp-Tune(HLS)"}
	s.Markers = []*models.Marker{
		{Timestamp: 1000, Line: 1, Label: "first"},
		{Timestamp: 1000, Line: 2, Label: "second", Exception: true},
		{Timestamp: 50000, Line: 3, Label: "later"},
	}
	l := New(DefaultConfig()).Layout(s, 0)

	require.Len(t, l.Markers, 4)
	boundary := l.Markers[0]
	assert.True(t, boundary.Boundary)
	assert.Equal(t, -1, boundary.Ref)
	assert.Equal(t, classify.BoundaryStyle.Fill, boundary.Fill)
	assert.Equal(t, 0, boundary.Row)
	assert.Equal(t, float64(len("Aamp-Tune(HLS)"))*DefaultCharWidth+MarkerPadding, boundary.W)

	assert.Equal(t, 1, l.Markers[1].Row)
	assert.Equal(t, 2, l.Markers[2].Row)
	assert.Equal(t, classify.ExceptionStyle.Stroke, l.Markers[2].Stroke)
	assert.Equal(t, 0, l.Markers[3].Row, "a marker clearing the extent reuses row 0")
	assert.Equal(t, 2, l.Markers[3].Ref)

	for _, m := range l.Markers {
		assert.Equal(t, float64(m.Row+1)*RowHeight+l.TimelineY1, m.Y)
		assert.Equal(t, float64(MarkerHeight), m.H)
	}
}

func TestLayout_MarkersSortedByTime(t *testing.T) {
	s := testSession()
	s.MaxTimestamp = 9000
	s.Markers = []*models.Marker{
		{Timestamp: 5000, Line: 10, Label: "b"},
		{Timestamp: 2000, Line: 11, Label: "a"},
	}
	l := New(DefaultConfig()).Layout(s, 0)

	require.Len(t, l.Markers, 2)
	assert.Equal(t, "a", l.Markers[0].Label)
	assert.Equal(t, 1, l.Markers[0].Ref)
}

func TestLayout_Grid(t *testing.T) {
	s := testSession()
	s.MaxTimestamp = 4500
	l := New(DefaultConfig()).Layout(s, 0)

	require.Len(t, l.Grid, 4)
	for i, g := range l.Grid {
		assert.Equal(t, 144.0+float64(i)*100, g.X)
		assert.Equal(t, 100.0, g.Width)
		assert.Equal(t, i%2 == 0, g.Shaded)
	}
	assert.Equal(t, "0", l.Grid[0].Label)
	assert.Equal(t, "3", l.Grid[3].Label)
}

func TestLayout_GridViewport(t *testing.T) {
	s := testSession()
	s.MaxTimestamp = 61000
	e := New(DefaultConfig())

	// pan 10 s, 500 px wide: columns 8 (partly left of x=0) through 13
	l := e.LayoutView(s, 10000, 500)
	require.Len(t, l.Grid, 6)
	assert.Equal(t, "8", l.Grid[0].Label)
	assert.Equal(t, -56.0, l.Grid[0].X)
	assert.True(t, l.Grid[0].Shaded)
	assert.Equal(t, "13", l.Grid[5].Label)
	assert.Empty(t, l.Warnings)

	assert.Len(t, e.Layout(s, 10000).Grid, 60)

	// panned past the end of the session
	assert.Empty(t, e.LayoutView(s, 120000, 500).Grid)
}

func TestLayout_GridCapped(t *testing.T) {
	s := testSession()
	s.MaxTimestamp = 101000
	l := New(Config{MaxGridTicks: 10}).Layout(s, 0)

	require.Len(t, l.Grid, 10)
	assert.Equal(t, "9", l.Grid[9].Label)
	require.Len(t, l.Warnings, 1)
	assert.Contains(t, l.Warnings[0], "100 one-second columns")
}

func TestLayout_Chunks(t *testing.T) {
	s := testSession(download(0, models.MediaVideo, 1000, 100))
	s.Downloads[0].Bitrate = 800000
	s.Bitrates = []int64{800000}
	s.Chunks = []*models.ChunkInjectionEvent{
		{Timestamp: 1500, Line: 4, Bitrate: "800000"},
		{Timestamp: 1600, Line: 5, Bitrate: "audio"},
	}
	l := New(DefaultConfig()).Layout(s, 0)

	require.Len(t, l.Chunks, 2)
	video := l.Tracks[l.Downloads[0].Track]
	assert.Equal(t, video.Y-RowHeight/2, l.Chunks[0].Y1)
	assert.Equal(t, 194.0, l.Chunks[0].X)

	var audio models.Track
	for _, tr := range l.Tracks {
		if tr.Label == TrackAudio {
			audio = tr
		}
	}
	assert.Equal(t, audio.Y-RowHeight/2, l.Chunks[1].Y1)
}

func TestLayout_EmptySession(t *testing.T) {
	l := New(DefaultConfig()).Layout(&models.Session{}, 0)
	assert.Empty(t, l.Downloads)
	assert.Empty(t, l.Markers)
	assert.Empty(t, l.Grid)
	assert.NotEmpty(t, l.Tracks)
	assert.Greater(t, l.Height, 0.0)
}

type doubleWidth struct{}

func (doubleWidth) MeasureText(text string) float64 { return float64(2 * len(text)) }

func TestWithMeasurer(t *testing.T) {
	s := testSession()
	s.Markers = []*models.Marker{{Timestamp: 1000, Label: "abc"}}
	l := New(DefaultConfig(), WithMeasurer(doubleWidth{})).Layout(s, 0)
	assert.Equal(t, 6.0+MarkerPadding, l.Markers[0].W)
}
