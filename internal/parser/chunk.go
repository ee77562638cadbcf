package parser

import (
	"strings"
)

// Chunk is a decoded "Injecting chunk for ..." line.
type Chunk struct {
	Bitrate  string // video bitrate, or "audio"
	Size     int64
	PTS      float64
	Duration float64
}

const (
	videoChunkPrefix = "Injecting chunk for video br="
	audioChunkPrefix = "Injecting chunk for audio br="
)

// ParseFragmentChunk decodes
//
//	Injecting chunk for video br=2150000,chunksize=271272 fpts=109017.909000 fduration=0.016683
func ParseFragmentChunk(line string) (*Chunk, bool) {
	video := true
	payload, ok := payloadAfter(line, videoChunkPrefix)
	if !ok {
		video = false
		if payload, ok = payloadAfter(line, audioChunkPrefix); !ok {
			return nil, false
		}
	}
	br, rest, found := strings.Cut(payload, ",")
	if !found {
		return nil, false
	}
	parts := strings.Fields(rest)
	if len(parts) < 3 {
		return nil, false
	}

	c := &Chunk{Bitrate: "audio"}
	if video {
		c.Bitrate = strings.TrimSpace(br)
	}
	c.Size, _ = parseIntLoose(valueAfterEquals(parts[0]))
	c.PTS, _ = parseFloatTrim(valueAfterEquals(parts[1]))
	c.Duration, _ = parseFloatTrim(valueAfterEquals(parts[2]))
	return c, true
}

func valueAfterEquals(s string) string {
	if _, v, ok := strings.Cut(s, "="); ok {
		return v
	}
	return s
}

// ParseABRProfileBandwidth returns the bandwidth of an "Added Video Profile to ABR BW= " line.
func ParseABRProfileBandwidth(line string) (int64, bool) {
	return firstIntAfter(line, "Added Video Profile to ABR BW= ")
}

// ParseCurrentBitrate returns the bitrate of a "NotifyBitRateChangeEvent :: bitrate:" line.
func ParseCurrentBitrate(line string) (int64, bool) {
	return firstIntAfter(line, "NotifyBitRateChangeEvent :: bitrate:")
}

func firstIntAfter(line, prefix string) (int64, bool) {
	payload, ok := payloadAfter(line, prefix)
	if !ok {
		return 0, false
	}
	word, _, _ := strings.Cut(strings.TrimLeft(payload, " "), " ")
	return parseIntLoose(strings.TrimRight(word, ","))
}
