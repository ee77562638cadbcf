package models

import "strings"

// MediaType identifies what a download record carried.
type MediaType int

const (
	MediaVideo MediaType = iota
	MediaAudio
	MediaSubtitle
	MediaAuxAudio
	MediaManifest
	MediaLicense
	MediaIFrame
	MediaInitVideo
	MediaInitAudio
	MediaInitSubtitle
	MediaInitAuxAudio
	MediaPlaylistVideo
	MediaPlaylistAudio
	MediaPlaylistSubtitle
	MediaPlaylistAuxAudio
	MediaPlaylistIFrame
	MediaInitIFrame
	MediaDSMCC
	MediaImage

	mediaTypeCount
)

// MediaUnknown marks a request-end line whose type could not be resolved.
const MediaUnknown MediaType = -1

var mediaTypeNames = [mediaTypeCount]string{
	"VIDEO",
	"AUDIO",
	"SUBTITLE",
	"AUX_AUDIO",
	"MANIFEST",
	"LICENSE",
	"IFRAME",
	"INIT_VIDEO",
	"INIT_AUDIO",
	"INIT_SUBTITLE",
	"INIT_AUX_AUDIO",
	"PLAYLIST_VIDEO",
	"PLAYLIST_AUDIO",
	"PLAYLIST_SUBTITLE",
	"PLAYLIST_AUX_AUDIO",
	"PLAYLIST_IFRAME",
	"PLAYLIST_INIT_IFRAME",
	"DSM_CC",
	"IMAGE",
}

// String returns the display name used in logs and exported statistics.
func (m MediaType) String() string {
	if m < 0 || m >= mediaTypeCount {
		return ""
	}
	return mediaTypeNames[m]
}

// Valid reports whether m is one of the known media types.
func (m MediaType) Valid() bool {
	return m >= 0 && m < mediaTypeCount
}

// Kind strips the INIT_/PLAYLIST_ prefix, e.g. INIT_VIDEO -> VIDEO.
func (m MediaType) Kind() string {
	name := m.String()
	if i := strings.LastIndexByte(name, '_'); i > 0 {
		switch name[:i] {
		case "INIT", "PLAYLIST", "PLAYLIST_INIT":
			return name[i+1:]
		}
	}
	return name
}

// IsVideo reports whether bitrate context applies to downloads of this type.
func (m MediaType) IsVideo() bool {
	return m == MediaVideo || m == MediaInitVideo || m == MediaPlaylistVideo
}

// ParseMediaType resolves a media type from its display name.
func ParseMediaType(name string) (MediaType, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for i, n := range mediaTypeNames {
		if n == name {
			return MediaType(i), true
		}
	}
	if name == "INIT_IFRAME" {
		return MediaInitIFrame, true
	}
	return MediaUnknown, false
}

// MediaTypeFromCode converts the numeric type carried in request-end lines.
func MediaTypeFromCode(code int) MediaType {
	if code < 0 || code >= int(mediaTypeCount) {
		return MediaUnknown
	}
	return MediaType(code)
}

// ContentType is the asset category reported by tune-time summaries.
type ContentType int

const (
	ContentUnknown ContentType = iota
	ContentCDVR
	ContentVOD
	ContentLinear
	ContentIVOD
	ContentEAS
	ContentCamera
	ContentDVR
	ContentMDVR
	ContentIPDVR
	ContentPPV
	ContentOTT
	ContentOTA
	ContentHDMIIn
	ContentCompositeIn
	ContentSLE
)

var contentTypeNames = []string{
	"UNKNOWN",
	"CDVR",
	"VOD",
	"LINEAR",
	"IVOD",
	"EAS",
	"CAMERA",
	"DVR",
	"MDVR",
	"IPDVR",
	"PPV",
	"OTT",
	"OTA",
	"HDMIIN",
	"COMPOSITEIN",
	"SLE",
}

func (c ContentType) String() string {
	if c < 0 || int(c) >= len(contentTypeNames) {
		return contentTypeNames[0]
	}
	return contentTypeNames[c]
}
