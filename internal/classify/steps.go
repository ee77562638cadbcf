package classify

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/triage-visualizer/backend/internal/models"
	"github.com/triage-visualizer/backend/internal/parser"
)

const (
	// TuneMarker starts a session.
	TuneMarker = "aamp_tune:"
	// ViperMarker starts a grouped play request in fallback mode.
	ViperMarker = "EPG Request to play VIPER stream"

	tuneTimePrefix = "IP_AAMP_TUNETIME:"
)

func (cl *Classifier) requestEnd(ctx *Context, ln Line) bool {
	req, ok := cl.registry.Decode(ln.Text)
	if !ok {
		return false
	}
	durMs := req.CurlTime * 1000
	if durMs < 0 {
		durMs = 0
	}
	end := float64(ln.UTC)
	d := &models.DownloadRecord{
		Line:          ln.Index,
		Type:          req.Type,
		TypeName:      req.Type.String(),
		ResponseCode:  req.ResponseCode,
		Outcome:       cl.strings.Intern(parser.MapError(req.ResponseCode)),
		DurationMs:    durMs,
		UploadBytes:   req.UploadBytes,
		DownloadBytes: req.DownloadBytes,
		URL:           req.URL,
		UTCStart:      end - durMs,
		UTCEnd:        end,
	}
	if req.Type.IsVideo() {
		d.Bitrate = ctx.CurrentBitrate
		if req.Bitrate > 0 {
			d.Bitrate = req.Bitrate
		}
		ctx.noteBitrate(d.Bitrate)
	}
	ctx.addDownload(d, parser.DownloadColors(d).Fill)
	return true
}

// TuneLocator extracts the asset URL of a tune line, unwrapping FOG
// recorded URLs.
func TuneLocator(line string) string {
	i := strings.Index(line, "URL: ")
	if i < 0 {
		return ""
	}
	locator := strings.TrimSpace(line[i+len("URL: "):])
	const param = "&recordedUrl="
	if j := strings.Index(locator, param); j >= 0 {
		locator = locator[j+len(param):]
		if k := strings.IndexByte(locator, '&'); k >= 0 {
			locator = locator[:k]
		}
		if dec, err := url.QueryUnescape(locator); err == nil {
			locator = dec
		}
	}
	return locator
}

// IsBoundary reports whether line starts a session.
func IsBoundary(line string, viperFallback bool) bool {
	if viperFallback && strings.Contains(line, ViperMarker) {
		return true
	}
	return strings.Contains(line, TuneMarker)
}

func tuneLabel(line string) string {
	if p, ok := parser.Match(line, "aamp_tune: attempt: %% format: %% URL:"); ok {
		return "Aamp-Tune(" + strings.TrimSpace(p[1]) + ")"
	}
	return "Aamp-Tune"
}

func (cl *Classifier) sessionBoundary(ctx *Context, ln Line) bool {
	var label string
	switch {
	case ctx.ViperFallback && strings.Contains(ln.Text, ViperMarker):
		label = "Play Request"
	case strings.Contains(ln.Text, TuneMarker):
		label = tuneLabel(ln.Text)
	default:
		return false
	}
	if ctx.Session.Boundary != nil {
		// a further tune attempt inside a grouped play request
		if ctx.Session.Locator == "" {
			ctx.Session.Locator = TuneLocator(ln.Text)
		}
		ctx.addMarker(&models.Marker{Timestamp: ln.UTC, Line: ln.Index, Label: label})
		return true
	}
	ctx.setBoundary(&models.SessionBoundary{
		Timestamp: ln.UTC,
		Line:      ln.Index,
		Label:     label,
		Locator:   TuneLocator(ln.Text),
	})
	return true
}

func (cl *Classifier) bitrateNotify(ctx *Context, ln Line) bool {
	if br, ok := parser.ParseCurrentBitrate(ln.Text); ok {
		ctx.setBitrate(br)
	}
	return false
}

func (cl *Classifier) abrProfile(ctx *Context, ln Line) bool {
	if bw, ok := parser.ParseABRProfileBandwidth(ln.Text); ok {
		ctx.Session.Profiles = append(ctx.Session.Profiles, bw)
	}
	return false
}

func kbps(br int64) string {
	return strconv.FormatInt(int64(math.Round(float64(br)/1000)), 10) + "kbps"
}

func (cl *Classifier) initialProfile(ctx *Context, ln Line) bool {
	p, ok := parser.Match(ln.Text, "getInitialProfileIndex:%% Get initial profile index = %%, bitrate = %% and defaultBitrate = %%")
	if !ok {
		return false
	}
	br, _ := strconv.ParseInt(strings.TrimSpace(p[2]), 10, 64)
	ctx.setBitrate(br)
	ctx.addMarker(&models.Marker{Timestamp: ln.UTC, Line: ln.Index, Label: "initial:" + kbps(br)})
	return true
}

func (cl *Classifier) getfileBitrate(ctx *Context, ln Line) bool {
	p, ok := parser.Match(ln.Text, "Received getfile Bitrate : %%")
	if !ok {
		return false
	}
	if br, err := strconv.ParseInt(strings.TrimSpace(p[0]), 10, 64); err == nil {
		ctx.setBitrate(br)
	}
	return true
}

// fixed1 rounds to one decimal place.
func fixed1(v string) string {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return strings.TrimSpace(v)
	}
	return strconv.FormatFloat(math.Round(f*10)/10, 'f', -1, 64)
}

func (cl *Classifier) hlsDiscontinuity(ctx *Context, ln Line) bool {
	p, ok := parser.Match(ln.Text, "GetNextFragmentUriFromPlaylist:%% #EXT-X-DISCONTINUITY in track[%%] playTarget %% total mCulledSeconds %%")
	if !ok {
		return false
	}
	track := parser.TrackName(p[1])
	kind := "audio"
	if track == "video" {
		kind = "video"
	}
	m := &models.Marker{
		Timestamp: ln.UTC,
		Line:      ln.Index,
		Label:     track + " discontinuity@" + fixed1(p[2]) + "(" + fixed1(p[3]) + ")",
		TrackKind: kind,
	}
	if pos, err := strconv.ParseFloat(strings.TrimSpace(p[2]), 64); err == nil {
		m.MediaPositionSeconds = &pos
	}
	ctx.addMarker(m)
	return true
}

func (cl *Classifier) networkError(ctx *Context, ln Line) bool {
	p, ok := parser.Match(ln.Text, "AAMPLogNetworkError error='%% error %%' type='%%' location='%%' symptom='%%' url='%%'")
	if !ok {
		return false
	}
	code, _ := strconv.Atoi(strings.TrimSpace(p[1]))
	ctx.addMarker(&models.Marker{
		Timestamp: ln.UTC,
		Line:      ln.Index,
		Label:     cl.strings.Intern(parser.MapError(code)),
		Exception: true,
	})
	return true
}

func (cl *Classifier) abrSwitch(ctx *Context, ln Line) bool {
	p, ok := parser.Match(ln.Text, "AAMPLogABRInfo : switching to '%%' profile '%% -> %%' currentBandwidth[%%]->desiredBandwidth[%%]")
	if !ok {
		return false
	}
	if br, err := strconv.ParseInt(strings.TrimSpace(p[4]), 10, 64); err == nil {
		ctx.setBitrate(br)
	}
	ctx.addMarker(&models.Marker{
		Timestamp: ln.UTC,
		Line:      ln.Index,
		Label:     p[0] + ":" + kbps(ctx.CurrentBitrate),
		Exception: true,
	})
	return true
}

func (cl *Classifier) bufferUnderflow(ctx *Context, ln Line) bool {
	if !strings.Contains(ln.Text, "## AAMPGstPlayer_OnGstBufferUnderflowCb") {
		return false
	}
	ctx.addMarker(&models.Marker{Timestamp: ln.UTC, Line: ln.Index, Label: "Video UnderFlow", Exception: true})
	return true
}

func (cl *Classifier) retune(ctx *Context, ln Line) bool {
	if _, ok := parser.Match(ln.Text, "PrivateInstanceAAMP::ScheduleRetune:%%: numPtsErrors %%, ptsErrorThreshold %%"); !ok {
		return false
	}
	ctx.addMarker(&models.Marker{Timestamp: ln.UTC, Line: ln.Index, Label: "retune"})
	return true
}

func (cl *Classifier) playerEvent(ctx *Context, ln Line) bool {
	if p, ok := parser.Match(ln.Text, "[AAMP_JS] SendEventSync(type=%%)(state=%%)"); ok {
		label := parser.EventName(p[0])
		if label == "statusChanged" {
			label = parser.PlayerStateName(p[1])
		}
		ctx.addMarker(&models.Marker{Timestamp: ln.UTC, Line: ln.Index, Label: label})
		return true
	}
	p, ok := parser.Match(ln.Text, "[AAMP_JS] SendEventSync(type=%%)")
	if !ok {
		return false
	}
	// bitrateChanged is covered by the more detailed BitrateChanged line
	if name := parser.EventName(p[0]); name != "bitrateChanged" {
		ctx.addMarker(&models.Marker{Timestamp: ln.UTC, Line: ln.Index, Label: name})
	}
	return true
}

func (cl *Classifier) bitrateReason(ctx *Context, ln Line) bool {
	p, ok := parser.Match(ln.Text, "BitrateChanged:%%)")
	if !ok {
		return false
	}
	ctx.addMarker(&models.Marker{Timestamp: ln.UTC, Line: ln.Index, Label: parser.BitrateChangeReason(p[0])})
	return true
}

func (cl *Classifier) aampStop(ctx *Context, ln Line) bool {
	p, ok := parser.Match(ln.Text, "aamp_stop PlayerState=%%")
	if !ok {
		return false
	}
	ctx.addMarker(&models.Marker{
		Timestamp: ln.UTC,
		Line:      ln.Index,
		Label:     "aamp_stop(" + parser.PlayerStateName(p[0]) + ")",
	})
	return true
}

func (cl *Classifier) markerRules(ctx *Context, ln Line) bool {
	for _, cr := range cl.rules {
		p, ok := parser.Match(ln.Text, cr.rule.Pattern)
		if !ok {
			continue
		}
		ctx.addMarker(&models.Marker{
			Timestamp:   ln.UTC,
			Line:        ln.Index,
			Label:       cl.strings.Intern(parser.ExpandLabel(cr.rule.Label, p)),
			Style:       cr.style,
			UserDefined: cr.rule.UserDefined,
		})
		return true
	}
	return false
}

func (cl *Classifier) chunkInjection(ctx *Context, ln Line) bool {
	c, ok := parser.ParseFragmentChunk(ln.Text)
	if !ok {
		return false
	}
	ctx.addChunk(&models.ChunkInjectionEvent{
		Timestamp: ln.UTC,
		Line:      ln.Index,
		Bitrate:   c.Bitrate,
		Size:      c.Size,
		PTS:       c.PTS,
		Duration:  c.Duration,
	})
	return true
}

var drmPhases = []struct {
	field    int
	name     string
	overhead bool
}{
	{models.TuneFieldLicensePreProc, "LicenseAcqPreProcessingDuration", true},
	{models.TuneFieldLicenseNetwork, "LicenseAcqNetworkDuration", false},
	{models.TuneFieldLicensePostProc, "LicenseAcqPostProcDuration", true},
}

// TuneTimePayload returns the CSV payload of a tune-time line.
func TuneTimePayload(line string) (string, bool) {
	i := strings.Index(line, tuneTimePrefix)
	if i < 0 {
		return "", false
	}
	return line[i+len(tuneTimePrefix):], true
}

func (cl *Classifier) tuneTime(ctx *Context, ln Line) bool {
	payload, ok := TuneTimePayload(ln.Text)
	if !ok {
		return false
	}
	rec := models.ParseTuneTimeRecord(payload)
	firstFrame := rec.Int(models.TuneFieldGstFirstFrame)

	// the line is logged at first frame; phases chain from license start
	start := float64(ln.UTC - firstFrame + rec.Int(models.TuneFieldLicenseAcqStart))
	for _, ph := range drmPhases {
		dur := float64(rec.Int(ph.field))
		if dur < 0 {
			dur = 0
		}
		d := &models.DownloadRecord{
			Line:         ln.Index,
			Type:         models.MediaLicense,
			TypeName:     models.MediaLicense.String(),
			ResponseCode: 200,
			Outcome:      parser.MapError(200),
			DurationMs:   dur,
			URL:          ph.name,
			UTCStart:     start,
			UTCEnd:       start + dur,
			Overhead:     ph.overhead,
		}
		ctx.addDownload(d, parser.DownloadColors(d).Fill)
		start += dur
	}

	label := "Tuned"
	if !rec.Succeeded() {
		label = "Tune Failed"
	}
	ctx.addMarker(&models.Marker{Timestamp: ln.UTC, Line: ln.Index, Label: label, Style: labelStyle(label)})
	ctx.setTune(&models.TuneSummary{
		Timestamp:   ln.UTC,
		Line:        ln.Index,
		Success:     rec.Succeeded(),
		TuneTimeMs:  firstFrame,
		ContentType: models.ContentType(rec.Int(models.TuneFieldContentType)),
		Fields:      rec.Fields,
	})
	return true
}
