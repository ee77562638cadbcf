package parser

import (
	"strconv"
	"strings"
	"time"
)

// currentYear supplies the year for settop lines that omit it.
var currentYear = func() int { return time.Now().UTC().Year() }

var monthIndex = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// ParseTimestamp extracts the UTC timestamp (ms since epoch) of a device log line.
//
// The timestamp region ends at the first locator: a "[" tag opener or a ": "
// separator. Lines without a locator are not attributable and yield false.
// Recognized forms, in order:
//
//	1632772056:279 : ...          simulator <sec>:<ms>
//	1632772056 279 : ...          simulator with split fields
//	2021 Sep 27 20:07:36.279 [..] settop, UTC
//	Sep 27 20:07:36.279 [..]      settop without year (current year)
func ParseTimestamp(line string) (int64, bool) {
	region, ok := timestampRegion(line)
	if !ok {
		return 0, false
	}
	fields := strings.Fields(region)
	if len(fields) < 2 {
		return 0, false
	}

	if fields[1] == ":" {
		sec, ms, found := strings.Cut(fields[0], ":")
		if !found {
			return 0, false
		}
		return simulatorTime(sec, ms)
	}
	if len(fields) > 2 && fields[2] == ":" {
		return simulatorTime(fields[0], fields[1])
	}

	return settopTime(fields)
}

// timestampRegion returns the line prefix up to and including the locator.
func timestampRegion(line string) (string, bool) {
	end := -1
	if i := strings.IndexByte(line, '['); i >= 0 {
		end = i + 1
	}
	if i := strings.Index(line, ": "); i >= 0 && (end < 0 || i+2 < end) {
		end = i + 2
	}
	if end < 0 {
		return "", false
	}
	return line[:end], true
}

func simulatorTime(sec, ms string) (int64, bool) {
	s, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return 0, false
	}
	m, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return 0, false
	}
	return s*1000 + m, true
}

func settopTime(fields []string) (int64, bool) {
	idx := 0
	year, err := strconv.Atoi(fields[0])
	if err != nil {
		// fog logs omit the year
		year = currentYear()
	} else {
		idx++
	}
	if len(fields) < idx+3 {
		return 0, false
	}

	month, ok := monthIndex[fields[idx]]
	if !ok {
		return 0, false
	}
	day, err := strconv.Atoi(fields[idx+1])
	if err != nil || day < 1 || day > 31 {
		return 0, false
	}

	clock := strings.Split(strings.TrimSuffix(fields[idx+2], ":"), ":")
	if len(clock) < 3 {
		return 0, false
	}
	hour, err := strconv.Atoi(clock[0])
	if err != nil {
		return 0, false
	}
	minute, err := strconv.Atoi(clock[1])
	if err != nil {
		return 0, false
	}
	whole, ms, ok := splitSeconds(clock[2])
	if !ok {
		return 0, false
	}

	t := time.Date(year, month, day, hour, minute, whole, ms*int(time.Millisecond), time.UTC)
	return t.UnixMilli(), true
}

// splitSeconds parses "SS[.ffffff]" into whole seconds and truncated
// milliseconds. The fraction is read as decimal digits so 36.279 yields 279.
func splitSeconds(v string) (int, int, bool) {
	secPart, frac, _ := strings.Cut(v, ".")
	whole, err := strconv.Atoi(secPart)
	if err != nil || whole < 0 {
		return 0, 0, false
	}
	ms := 0
	for i := 0; i < 3; i++ {
		ms *= 10
		if i < len(frac) {
			d := frac[i]
			if d < '0' || d > '9' {
				return 0, 0, false
			}
			ms += int(d - '0')
		}
	}
	return whole, ms, true
}

// ParseJumpTime parses a user-typed time using the device formats,
// e.g. "Sep 27 20:07:36" or "1632772056:279".
func ParseJumpTime(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if sec, ms, found := strings.Cut(value, ":"); found && !strings.Contains(ms, ":") {
		if t, ok := simulatorTime(sec, ms); ok {
			return t, true
		}
	}
	return ParseTimestamp(value + ": [AAMP-PLAYER]")
}

// FormatTime renders a duration in ms as h:mm:ss, m:ss or s.
func FormatTime(durationMs int64) string {
	if durationMs < 0 {
		durationMs = 0
	}
	total := durationMs / 1000
	s := total % 60
	m := (total / 60) % 60
	h := total / 3600
	switch {
	case h > 0:
		return strconv.FormatInt(h, 10) + ":" + pad2(m) + ":" + pad2(s)
	case m > 0:
		return strconv.FormatInt(m, 10) + ":" + pad2(s)
	default:
		return strconv.FormatInt(s, 10)
	}
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
