package models

import (
	"strconv"
	"strings"
)

// TuneTimeHeader is the column schema of IP_AAMP_TUNETIME lines,
// plus the session locator appended by the indexer.
const TuneTimeHeader = "version,build,tuneStartBaseUTCMS,ManifestDLStartTime,ManifestDLTotalTime,ManifestDLFailCount," +
	"VideoPlaylistDLStartTime,VideoPlaylistDLTotalTime,VideoPlaylistDLFailCount," +
	"AudioPlaylistDLStartTime,AudioPlaylistDLTotalTime,AudioPlaylistDLFailCount," +
	"VideoInitDLStartTime,VideoInitDLTotalTime,VideoInitDLFailCount," +
	"AudioInitDLStartTime,AudioInitDLTotalTime,AudioInitDLFailCount," +
	"VideoFragmentDLStartTime,VideoFragmentDLTotalTime,VideoFragmentDLFailCount,VideoBitRate," +
	"AudioFragmentDLStartTime,AudioFragmentDLTotalTime,AudioFragmentDLFailCount,AudioBitRate," +
	"drmLicenseAcqStartTime,drmLicenseAcqTotalTime,drmFailErrorCode," +
	"LicenseAcqPreProcessingDuration,LicenseAcqNetworkDuration,LicenseAcqPostProcDuration," +
	"VideoFragmentDecryptDuration,AudioFragmentDecryptDuration,gstPlayStartTime,gstFirstFrameTime," +
	"contentType,streamType,firstTune,Prebuffered,PreBufferedTime,durationSeconds,interfaceWifi," +
	"TuneAttempts,TuneSuccess,FailureReason,Appname,Numbers of TimedMetadata(Ads)," +
	"StartTime to Report TimedEvent,Time taken to ReportTimedMetadata,TSBEnabled"

// Positional indices into a tune-time line.
const (
	TuneFieldStartBaseUTC     = 2
	TuneFieldLicenseAcqStart  = 26
	TuneFieldLicenseAcqTotal  = 27
	TuneFieldDRMFailErrorCode = 28
	TuneFieldLicensePreProc   = 29
	TuneFieldLicenseNetwork   = 30
	TuneFieldLicensePostProc  = 31
	TuneFieldVideoDecrypt     = 32
	TuneFieldAudioDecrypt     = 33
	TuneFieldGstPlayStart     = 34
	TuneFieldGstFirstFrame    = 35
	TuneFieldContentType      = 36
	TuneFieldSuccess          = 44
	TuneFieldFailureReason    = 45
)

// TuneTimeRecord is one decoded tune-time line.
type TuneTimeRecord struct {
	Fields []string `json:"fields"`
}

// ParseTuneTimeRecord splits the comma separated payload after the prefix.
func ParseTuneTimeRecord(payload string) TuneTimeRecord {
	return TuneTimeRecord{Fields: strings.Split(strings.TrimSpace(payload), ",")}
}

// Int returns field i as an integer, or 0 when missing or malformed.
func (r TuneTimeRecord) Int(i int) int64 {
	if i < 0 || i >= len(r.Fields) {
		return 0
	}
	v, err := strconv.ParseInt(strings.TrimSpace(r.Fields[i]), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(strings.TrimSpace(r.Fields[i]), 64)
		if ferr != nil {
			return 0
		}
		return int64(f)
	}
	return v
}

// String returns field i, or "" when missing.
func (r TuneTimeRecord) String(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return strings.TrimSpace(r.Fields[i])
}

// Named returns the fields keyed by header column.
func (r TuneTimeRecord) Named() map[string]string {
	cols := strings.Split(TuneTimeHeader, ",")
	out := make(map[string]string, len(cols))
	for i, c := range cols {
		out[c] = r.String(i)
	}
	return out
}

// Succeeded reports the TuneSuccess flag. Lines too short to carry the
// flag count as successful, matching older players.
func (r TuneTimeRecord) Succeeded() bool {
	if len(r.Fields) <= TuneFieldSuccess {
		return true
	}
	return r.Int(TuneFieldSuccess) != 0
}

// TuneTable is an exported CSV table; Rows[0] is the header row.
type TuneTable struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}

// NewTuneTable creates a table with the given header row.
func NewTuneTable(name string, header []string) *TuneTable {
	return &TuneTable{Name: name, Rows: [][]string{header}}
}

// Set stores row at session index idx (1-based, header at 0), growing as needed.
func (t *TuneTable) Set(idx int, row []string) {
	for len(t.Rows) <= idx {
		t.Rows = append(t.Rows, nil)
	}
	t.Rows[idx] = row
}
