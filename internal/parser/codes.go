package parser

import (
	"strconv"
	"strings"

	"github.com/triage-visualizer/backend/internal/models"
)

var responseDescriptions = map[int]string{
	0:   "OK",
	7:   "Couldn't Connect",
	18:  "Partial File",
	23:  "Interrupted Download",
	28:  "Operation Timed Out",
	42:  "Aborted by callback",
	56:  "Failure with receiving network data",
	200: "OK",
	204: "No Content",
	302: "Temporary Redirect",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	500: "Internal Server Error",
	502: "Bad Gateway",
	503: "Service Unavailable",
}

// MapError renders a response code as "HTTP404(Not Found)" or "CURL28(Operation Timed Out)".
// Codes below 100 are libcurl errors. Unknown codes get no description.
func MapError(code int) string {
	ns := "HTTP"
	if code < 100 {
		ns = "CURL"
	}
	out := ns + strconv.Itoa(code)
	if desc, ok := responseDescriptions[code]; ok {
		out += "(" + desc + ")"
	}
	return out
}

// IsHTTPSuccess reports a 2xx outcome string.
func IsHTTPSuccess(outcome string) bool {
	return len(outcome) >= 5 && outcome[:5] == "HTTP2"
}

// ColorPair is a [fill, stroke] pair.
type ColorPair struct {
	Fill   string `json:"fill"`
	Stroke string `json:"stroke"`
}

var (
	FailureColors         = ColorPair{"#ff2020", "#7f3f3f"}
	LicenseOverheadColors = ColorPair{"#ffccff", "#7f667f"}
	unknownMediaColors    = ColorPair{"#cccccc", "#666666"}
)

var mediaColors = map[models.MediaType]ColorPair{
	models.MediaManifest:         {"#00cccc", "#006666"},
	models.MediaPlaylistVideo:    {"#00cc00", "#006600"},
	models.MediaInitVideo:        {"#7fff7f", "#3f7f3f"},
	models.MediaVideo:            {"#ccffcc", "#667f66"},
	models.MediaPlaylistIFrame:   {"#00cc00", "#006600"},
	models.MediaInitIFrame:       {"#7fff7f", "#3f7f3f"},
	models.MediaIFrame:           {"#ccffcc", "#667f66"},
	models.MediaPlaylistAudio:    {"#0000cc", "#000066"},
	models.MediaInitAudio:        {"#7f7fff", "#3f3f7f"},
	models.MediaAudio:            {"#ccccff", "#66667f"},
	models.MediaPlaylistAuxAudio: {"#0000cc", "#000066"},
	models.MediaInitAuxAudio:     {"#7f7fff", "#3f3f7f"},
	models.MediaAuxAudio:         {"#ccccff", "#66667f"},
	models.MediaPlaylistSubtitle: {"#cccc00", "#666600"},
	models.MediaInitSubtitle:     {"#ffff7f", "#7f7f3f"},
	models.MediaSubtitle:         {"#ffffcc", "#7f7f66"},
	models.MediaLicense:          {"#ff7fff", "#7f3f7f"},
}

// DownloadColors picks the box colors for a download record.
func DownloadColors(d *models.DownloadRecord) ColorPair {
	if !d.Succeeded() {
		return FailureColors
	}
	if d.Overhead {
		return LicenseOverheadColors
	}
	if c, ok := mediaColors[d.Type]; ok {
		return c
	}
	return unknownMediaColors
}

// adServerMarker identifies ad-server URLs in statistics.
const adServerMarker = ".fwmrm."

// StatsCategory groups a download for statistics: its media type name,
// with " AD" appended for ad-server URLs.
func StatsCategory(d *models.DownloadRecord) string {
	name := d.Type.String()
	if name == "" {
		name = "UNKNOWN"
	}
	if strings.Contains(d.URL, adServerMarker) {
		name += " AD"
	}
	return name
}
