package layout

import (
	"sort"
	"strconv"

	"github.com/triage-visualizer/backend/internal/models"
)

// Fixed track labels. Video tracks are inserted per bitrate between
// INIT_AUDIO and AUDIO.
const (
	TrackManifest      = "MANIFEST"
	TrackPlaylistVideo = "PLAYLIST_VIDEO"
	TrackPlaylistAudio = "PLAYLIST_AUDIO"
	TrackInitVideo     = "INIT_VIDEO"
	TrackInitAudio     = "INIT_AUDIO"
	TrackVideo         = "VIDEO"
	TrackAudio         = "AUDIO"
	TrackSubtitle      = "SUBTITLE"
	TrackIFrame        = "IFRAME"
	TrackDRM           = "DRM"
	TrackOther         = "OTHER"
)

var (
	leadingTracks  = []string{TrackManifest, TrackPlaylistVideo, TrackPlaylistAudio, TrackInitVideo, TrackInitAudio}
	trailingTracks = []string{TrackAudio, TrackSubtitle, TrackIFrame, TrackDRM}
)

// trackSet maps download records to track indices for one session.
type trackSet struct {
	labels  []string
	index   map[string]int
	bitrate map[int64]int
}

// newTrackSet builds the track list of s. Video bitrates are listed
// highest first; a plain VIDEO track holds video without a known bitrate.
func newTrackSet(s *models.Session) *trackSet {
	ts := &trackSet{index: make(map[string]int), bitrate: make(map[int64]int)}
	add := func(label string) int {
		ts.index[label] = len(ts.labels)
		ts.labels = append(ts.labels, label)
		return ts.index[label]
	}

	for _, l := range leadingTracks {
		add(l)
	}

	brs := append([]int64(nil), s.Bitrates...)
	sort.Slice(brs, func(i, j int) bool { return brs[i] > brs[j] })
	for _, br := range brs {
		if _, dup := ts.bitrate[br]; dup || br <= 0 {
			continue
		}
		ts.bitrate[br] = add(strconv.FormatInt(br, 10))
	}

	plainVideo := len(ts.bitrate) == 0
	other := false
	for _, d := range s.Downloads {
		if d.Type == models.MediaVideo {
			if _, ok := ts.bitrate[d.Bitrate]; !ok {
				plainVideo = true
			}
		}
		if trackLabel(d.Type) == TrackOther {
			other = true
		}
	}
	if plainVideo {
		add(TrackVideo)
	}

	for _, l := range trailingTracks {
		add(l)
	}
	if other {
		add(TrackOther)
	}
	return ts
}

// trackLabel is the fixed track of a media type. Video segments are
// resolved by bitrate in of.
func trackLabel(t models.MediaType) string {
	switch t {
	case models.MediaManifest:
		return TrackManifest
	case models.MediaPlaylistVideo:
		return TrackPlaylistVideo
	case models.MediaPlaylistAudio, models.MediaPlaylistAuxAudio:
		return TrackPlaylistAudio
	case models.MediaInitVideo:
		return TrackInitVideo
	case models.MediaInitAudio, models.MediaInitAuxAudio:
		return TrackInitAudio
	case models.MediaVideo:
		return TrackVideo
	case models.MediaAudio, models.MediaAuxAudio:
		return TrackAudio
	case models.MediaSubtitle, models.MediaInitSubtitle, models.MediaPlaylistSubtitle:
		return TrackSubtitle
	case models.MediaIFrame, models.MediaInitIFrame, models.MediaPlaylistIFrame:
		return TrackIFrame
	case models.MediaLicense:
		return TrackDRM
	}
	return TrackOther
}

func (ts *trackSet) of(d *models.DownloadRecord) int {
	if d.Type == models.MediaVideo {
		if i, ok := ts.bitrate[d.Bitrate]; ok {
			return i
		}
	}
	return ts.index[trackLabel(d.Type)]
}

// forChunk picks the track a chunk tick is drawn on.
func (ts *trackSet) forChunk(c *models.ChunkInjectionEvent) int {
	if br, err := strconv.ParseInt(c.Bitrate, 10, 64); err == nil {
		if i, ok := ts.bitrate[br]; ok {
			return i
		}
		if i, ok := ts.index[TrackVideo]; ok {
			return i
		}
	}
	return ts.index[TrackAudio]
}
