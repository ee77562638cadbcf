package parser

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/triage-visualizer/backend/internal/models"
)

// RequestEnd is a decoded transfer-completion line. Timing is relative;
// the classifier anchors it to the line timestamp.
type RequestEnd struct {
	Type          models.MediaType
	ResponseCode  int
	CurlTime      float64 // seconds
	DownloadBytes int64
	UploadBytes   int64
	URL           string
	Bitrate       int64
	Decoder       string
}

// RequestEndDecoder recognizes one shape of request-end line.
type RequestEndDecoder interface {
	// Name returns the unique name of the decoder.
	Name() string
	// Prefix is the literal that must occur in the line for Decode to apply.
	Prefix() string
	// Decode returns false when the line is not in this decoder's shape.
	Decode(line string) (*RequestEnd, bool)
}

func payloadAfter(line, prefix string) (string, bool) {
	i := strings.Index(line, prefix)
	if i < 0 {
		return "", false
	}
	return line[i+len(prefix):], true
}

// --- FOG key/value form ---

// FogRequestEndDecoder handles "HttpRequestEnd: Type: VIDEO, TotalTime: 0.2, ..."
type FogRequestEndDecoder struct{}

func NewFogRequestEndDecoder() *FogRequestEndDecoder { return &FogRequestEndDecoder{} }

func (d *FogRequestEndDecoder) Name() string   { return "fog_request_end" }
func (d *FogRequestEndDecoder) Prefix() string { return "HttpRequestEnd: Type: " }

func (d *FogRequestEndDecoder) Decode(line string) (*RequestEnd, bool) {
	payload, ok := payloadAfter(line, d.Prefix())
	if !ok {
		return nil, false
	}
	kv := make(map[string]string)
	for _, part := range strings.Split("Type: "+payload, ", ") {
		k, v, _ := strings.Cut(part, ": ")
		kv[k] = v
	}

	req := &RequestEnd{Type: fogMediaType(kv["Type"]), URL: kv["Url"]}
	req.CurlTime, _ = parseFloatTrim(kv["TotalTime"])
	req.DownloadBytes, _ = parseIntLoose(kv["DownloadSize"])
	req.UploadBytes, _ = parseIntLoose(kv["RequestedSize"])
	if br, ok := parseIntLoose(kv["br"]); ok {
		req.Bitrate = br
	}
	code, _ := parseIntLoose(kv["hcode"])
	if code == 0 {
		code, _ = parseIntLoose(kv["cerr"])
	}
	req.ResponseCode = int(code)
	return req, true
}

func fogMediaType(name string) models.MediaType {
	switch strings.TrimSpace(name) {
	case "DASH-MANIFEST":
		return models.MediaManifest
	case "IFRAME":
		return models.MediaIFrame
	case "VIDEO":
		return models.MediaVideo
	case "AUDIO":
		return models.MediaAudio
	}
	t, _ := models.ParseMediaType(name)
	return t
}

// --- JSON form ---

// flexNumber accepts a JSON number or a numeric string.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = flexNumber(v)
	return nil
}

type requestEndTimes struct {
	Total flexNumber `json:"total"`
	DlSz  flexNumber `json:"dlSz"`
	UlSz  flexNumber `json:"ulSz"`
}

type requestEndJSON struct {
	MediaType    string           `json:"mediaType"`
	Type         *flexNumber      `json:"type"`
	ResponseCode flexNumber       `json:"responseCode"`
	CurlTime     flexNumber       `json:"curlTime"`
	Total        flexNumber       `json:"total"`
	DlSz         flexNumber       `json:"dlSz"`
	UlSz         flexNumber       `json:"ulSz"`
	Br           flexNumber       `json:"br"`
	URL          string           `json:"url"`
	LicenseURL   string           `json:"license_url"`
	Times        *requestEndTimes `json:"times"`
}

func (j *requestEndJSON) toRequestEnd() *RequestEnd {
	req := &RequestEnd{
		Type:          models.MediaUnknown,
		ResponseCode:  int(j.ResponseCode),
		CurlTime:      float64(j.CurlTime),
		DownloadBytes: int64(j.DlSz),
		UploadBytes:   int64(j.UlSz),
		URL:           j.URL,
		Bitrate:       int64(j.Br),
	}
	if j.Type != nil {
		req.Type = models.MediaTypeFromCode(int(*j.Type))
	} else if t, ok := models.ParseMediaType(j.MediaType); ok {
		req.Type = t
	}
	if j.Times != nil {
		if req.DownloadBytes == 0 {
			req.DownloadBytes = int64(j.Times.DlSz)
		}
		if req.UploadBytes == 0 {
			req.UploadBytes = int64(j.Times.UlSz)
		}
		if req.CurlTime == 0 {
			req.CurlTime = float64(j.Times.Total)
		}
	}
	if req.CurlTime == 0 {
		req.CurlTime = float64(j.Total)
	}
	return req
}

// JSONRequestEndDecoder handles "HttpRequestEnd: {json}".
type JSONRequestEndDecoder struct{}

func NewJSONRequestEndDecoder() *JSONRequestEndDecoder { return &JSONRequestEndDecoder{} }

func (d *JSONRequestEndDecoder) Name() string   { return "request_end_json" }
func (d *JSONRequestEndDecoder) Prefix() string { return "HttpRequestEnd:" }

func (d *JSONRequestEndDecoder) Decode(line string) (*RequestEnd, bool) {
	payload, ok := payloadAfter(line, d.Prefix())
	if !ok {
		return nil, false
	}
	var j requestEndJSON
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &j); err != nil {
		return nil, false
	}
	return j.toRequestEnd(), true
}

// --- legacy positional form ---

var legacyBaseFields = []string{
	"mediaType", "type", "responseCode", "curlTime", "total", "connect", "startTransfer",
	"resolve", "appConnect", "preTransfer", "redirect", "dlSz", "ulSz",
}

// LegacyRequestEndDecoder handles the comma separated HttpRequestEnd payload of
// older players. The layout is inferred from the field count and from whether
// an application name leads the line.
type LegacyRequestEndDecoder struct{}

func NewLegacyRequestEndDecoder() *LegacyRequestEndDecoder { return &LegacyRequestEndDecoder{} }

func (d *LegacyRequestEndDecoder) Name() string   { return "request_end_csv" }
func (d *LegacyRequestEndDecoder) Prefix() string { return "HttpRequestEnd:" }

func (d *LegacyRequestEndDecoder) Decode(line string) (*RequestEnd, bool) {
	payload, ok := payloadAfter(line, d.Prefix())
	if !ok {
		return nil, false
	}
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "{") {
		return nil, false
	}

	head, rest, found := strings.Cut(payload, ",http")
	params := strings.Split(head, ",")
	if found {
		params = append(params, "http"+rest)
	}

	fields := append([]string(nil), legacyBaseFields...)
	if _, err := strconv.Atoi(strings.TrimSpace(params[0])); err != nil {
		switch len(params) {
		case 16:
			fields = append(append([]string{"appName"}, fields...), "br", "url")
		case 17:
			fields = append(append([]string{"appName"}, fields...), "downloadbps", "br", "url")
		}
	} else {
		switch len(params) {
		case 15:
			fields = append(fields, "br", "url")
		case 16:
			fields = append(fields, "downloadbps", "br", "url")
		}
	}

	kv := make(map[string]string, len(fields))
	for i, f := range fields {
		if i < len(params) {
			kv[f] = params[i]
		}
	}

	typ, ok := parseIntLoose(kv["type"])
	if !ok {
		return nil, false
	}
	code, ok := parseIntLoose(kv["responseCode"])
	if !ok {
		return nil, false
	}
	req := &RequestEnd{
		Type:         models.MediaTypeFromCode(int(typ)),
		ResponseCode: int(code),
		URL:          kv["url"],
	}
	req.CurlTime, _ = parseFloatTrim(kv["curlTime"])
	req.DownloadBytes, _ = parseIntLoose(kv["dlSz"])
	req.UploadBytes, _ = parseIntLoose(kv["ulSz"])
	req.Bitrate, _ = parseIntLoose(kv["br"])
	return req, true
}

// --- license JSON form ---

// LicenseRequestEndDecoder handles "HttpLicenseRequestEnd: {json}".
type LicenseRequestEndDecoder struct{}

func NewLicenseRequestEndDecoder() *LicenseRequestEndDecoder { return &LicenseRequestEndDecoder{} }

func (d *LicenseRequestEndDecoder) Name() string   { return "license_request_end" }
func (d *LicenseRequestEndDecoder) Prefix() string { return "HttpLicenseRequestEnd:" }

func (d *LicenseRequestEndDecoder) Decode(line string) (*RequestEnd, bool) {
	payload, ok := payloadAfter(line, d.Prefix())
	if !ok {
		return nil, false
	}
	var j requestEndJSON
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &j); err != nil {
		return nil, false
	}
	req := j.toRequestEnd()
	req.Type = models.MediaLicense
	req.URL = j.LicenseURL
	return req, true
}

// --- FOG fragment form ---

const fogFragmentTemplate = "abrs_fragment#t:%%,s:%%,d:%%,sz:%%,r:%%,cerr:%%,hcode:%%,n:%%,estr:%%,url:%%"

// FogFragmentDecoder handles "abrs_fragment#t:VIDEO,s:..,d:<ms>,...".
type FogFragmentDecoder struct{}

func NewFogFragmentDecoder() *FogFragmentDecoder { return &FogFragmentDecoder{} }

func (d *FogFragmentDecoder) Name() string   { return "fog_fragment" }
func (d *FogFragmentDecoder) Prefix() string { return "abrs_fragment#" }

func (d *FogFragmentDecoder) Decode(line string) (*RequestEnd, bool) {
	p, ok := Match(line, fogFragmentTemplate)
	if !ok {
		return nil, false
	}
	req := &RequestEnd{Type: fogMediaType(p[0]), URL: p[9]}
	durMs, _ := parseFloatTrim(p[2])
	req.CurlTime = durMs / 1000
	req.DownloadBytes, _ = parseIntLoose(p[3])
	req.Bitrate, _ = parseIntLoose(p[4])
	code, _ := parseIntLoose(p[5])
	if code == 0 {
		code, _ = parseIntLoose(p[6])
	}
	req.ResponseCode = int(code)
	return req, true
}

// --- on-demand download form ---

const onDemandTemplate = ":%% state:%% r:%% from:%%"

// OnDemandDecoder handles "On-demand download of <seg>:<n> state:<s> r:<br> from:<url>".
// These lines carry no timing, so they are drawn as one second successful transfers.
type OnDemandDecoder struct{}

func NewOnDemandDecoder() *OnDemandDecoder { return &OnDemandDecoder{} }

func (d *OnDemandDecoder) Name() string   { return "on_demand" }
func (d *OnDemandDecoder) Prefix() string { return "On-demand download of " }

func (d *OnDemandDecoder) Decode(line string) (*RequestEnd, bool) {
	payload, ok := payloadAfter(line, d.Prefix())
	if !ok {
		return nil, false
	}
	p, ok := Match(payload, onDemandTemplate)
	if !ok {
		return nil, false
	}
	url := p[3]
	typ := models.MediaVideo
	isInit := strings.Contains(url, "-init")
	if strings.Contains(strings.ToLower(url), "audio") {
		typ = models.MediaAudio
		if isInit {
			typ = models.MediaInitAudio
		}
	} else if isInit {
		typ = models.MediaInitVideo
	}
	req := &RequestEnd{
		Type:          typ,
		ResponseCode:  200,
		CurlTime:      1.0,
		DownloadBytes: 1,
		URL:           url,
	}
	req.Bitrate, _ = parseIntLoose(p[2])
	return req, true
}
