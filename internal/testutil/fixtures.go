package testutil

import (
	"fmt"
	"strings"
)

// Line formats a settop log line at 2021-09-27 20:min:sec.ms UTC.
func Line(min, sec, ms int, body string) string {
	return fmt.Sprintf("2021 Sep 27 20:%02d:%02d.%03d [AAMP-PLAYER] %s", min, sec, ms, body)
}

// LineUTC is the UTC millisecond timestamp Line encodes.
func LineUTC(min, sec, ms int) int64 {
	const base = 1632772800000 // 2021-09-27 20:00:00 UTC
	return base + int64(min)*60000 + int64(sec)*1000 + int64(ms)
}

// RequestEnd is an HttpRequestEnd JSON payload for a VIDEO download.
func RequestEnd(code int, curlTime float64, url string) string {
	return fmt.Sprintf(`HttpRequestEnd: {"mediaType":"VIDEO","responseCode":%d,"curlTime":%g,"url":"%s"}`, code, curlTime, url)
}

// TuneAttempt is the line that opens a session.
func TuneAttempt(asset string) string {
	return "aamp_tune: attempt: 1 format: HLS URL: http://x/" + asset + ".m3u8"
}

// NetworkError is an HTTP error report, classified as an exception marker.
func NetworkError(code int) string {
	return fmt.Sprintf("AAMPLogNetworkError error='http error %d' type='video segment' location='x' symptom='y' url='http://a'", code)
}

// Underflow is a buffer underflow report, classified as an exception marker.
const Underflow = "## AAMPGstPlayer_OnGstBufferUnderflowCb"

// SampleLog returns a two session log. Session 0 starts at 20:07:36.279
// and holds two downloads and two exceptions; session 1 starts at
// 20:10:36.279 and holds one download.
func SampleLog() string {
	return strings.Join([]string{
		"boot banner without a timestamp",
		Line(7, 36, 279, TuneAttempt("a")),
		Line(7, 37, 0, RequestEnd(200, 0.25, "http://x/a/1.ts")),
		Line(7, 37, 500, NetworkError(404)),
		Line(7, 38, 0, RequestEnd(404, 0.25, "http://x/a/2.ts")),
		Line(7, 39, 0, Underflow),
		Line(10, 36, 279, TuneAttempt("b")),
		Line(10, 37, 0, RequestEnd(200, 0.5, "http://x/b/1.ts")),
	}, "\n")
}
