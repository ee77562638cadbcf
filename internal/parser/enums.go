package parser

// Player-side enumerations referenced by log lines as numeric indices.

var trackNames = []string{"video", "audio", "subtitle"}

var playerStates = []string{
	"eSTATE_IDLE",
	"eSTATE_INITIALIZING",
	"eSTATE_INITIALIZED",
	"eSTATE_PREPARING",
	"eSTATE_PREPARED",
	"eSTATE_BUFFERING",
	"eSTATE_PAUSED",
	"eSTATE_SEEKING",
	"eSTATE_PLAYING",
	"eSTATE_STOPPING",
	"eSTATE_STOPPED",
	"eSTATE_COMPLETE",
	"eSTATE_ERROR",
	"eSTATE_RELEASED",
	"eSTATE_BLOCKED",
}

var eventNames = []string{
	"",
	"tuned",
	"tuneFailed",
	"speedChanged",
	"eos",
	"playlistIndexed",
	"progress",
	"decoderAvail",
	"jsEvent",
	"metadata",
	"enteringLive",
	"bitrateChanged",
	"timedMetadata",
	"bulkTimedMetadata",
	"statusChanged",
	"speedsChanged",
	"seeked",
	"tuneprofiling",
	"bufferingChanged",
	"durationChanged",
	"audioTracksChanged",
	"textTracksChanged",
	"adBreaksChanged",
	"adStarted",
	"adCompleted",
	"drmMetadata",
	"anomaly",
	"webVttCueData",
	"adResolved",
	"adReservationStart",
	"adReservationEnd",
	"adPlacementStart",
	"adPlacementEnd",
	"adPlacementError",
	"adPlacementProgress",
	"metricsData",
	"id3Mmetadata",
	"drmMessage",
	"blocked",
}

var bitrateChangedReasons = []string{
	"ABR:bandwidth",
	"Rampdown:failure",
	"Tune:ABR reset",
	"Seek:ABR reset",
	"Trickplay:ABR ",
	"Rampup - full buf",
	"Rampdown - empty buf",
	"ABR:FOG",
	"ABR:OTA",
	"ABR:HDMIIN",
}

// lookupName returns names[idx] for a numeric string, or the raw text.
func lookupName(names []string, raw string) string {
	idx, ok := atoiTrim(raw)
	if !ok || idx < 0 || idx >= len(names) || names[idx] == "" {
		return raw
	}
	return names[idx]
}

// PlayerStateName resolves a numeric player state.
func PlayerStateName(raw string) string { return lookupName(playerStates, raw) }

// EventName resolves a numeric player event type.
func EventName(raw string) string { return lookupName(eventNames, raw) }

// BitrateChangeReason resolves a numeric bitrate change reason.
func BitrateChangeReason(raw string) string { return lookupName(bitrateChangedReasons, raw) }

// TrackName resolves a numeric track index to video/audio/subtitle.
func TrackName(raw string) string { return lookupName(trackNames, raw) }
