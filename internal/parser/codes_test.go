package parser

import (
	"testing"

	"github.com/triage-visualizer/backend/internal/models"
)

func TestMapError(t *testing.T) {
	cases := map[int]string{
		0:   "CURL0(OK)",
		28:  "CURL28(Operation Timed Out)",
		99:  "CURL99",
		200: "HTTP200(OK)",
		206: "HTTP206",
		404: "HTTP404(Not Found)",
		418: "HTTP418",
	}
	for code, want := range cases {
		if got := MapError(code); got != want {
			t.Errorf("MapError(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestIsHTTPSuccess(t *testing.T) {
	if !IsHTTPSuccess("HTTP200(OK)") || !IsHTTPSuccess("HTTP206") {
		t.Error("2xx outcomes should succeed")
	}
	if IsHTTPSuccess("HTTP404(Not Found)") || IsHTTPSuccess("CURL28(Operation Timed Out)") || IsHTTPSuccess("") {
		t.Error("non-2xx outcomes should fail")
	}
}

func TestDownloadColors(t *testing.T) {
	t.Run("failure wins", func(t *testing.T) {
		d := &models.DownloadRecord{Type: models.MediaVideo, Outcome: MapError(404)}
		if got := DownloadColors(d); got != FailureColors {
			t.Errorf("got %+v", got)
		}
	})
	t.Run("partial content is success", func(t *testing.T) {
		d := &models.DownloadRecord{Type: models.MediaVideo, Outcome: MapError(206)}
		if got := DownloadColors(d); got.Fill != "#ccffcc" {
			t.Errorf("got %+v", got)
		}
	})
	t.Run("license overhead", func(t *testing.T) {
		d := &models.DownloadRecord{Type: models.MediaLicense, Outcome: MapError(200), Overhead: true}
		if got := DownloadColors(d); got != LicenseOverheadColors {
			t.Errorf("got %+v", got)
		}
	})
	t.Run("aux audio shares audio colors", func(t *testing.T) {
		a := DownloadColors(&models.DownloadRecord{Type: models.MediaAudio, Outcome: MapError(200)})
		b := DownloadColors(&models.DownloadRecord{Type: models.MediaAuxAudio, Outcome: MapError(200)})
		if a != b {
			t.Errorf("audio %+v != aux %+v", a, b)
		}
	})
	t.Run("unknown type", func(t *testing.T) {
		d := &models.DownloadRecord{Type: models.MediaUnknown, Outcome: MapError(200)}
		if got := DownloadColors(d); got != unknownMediaColors {
			t.Errorf("got %+v", got)
		}
	})
}

func TestStatsCategory(t *testing.T) {
	d := &models.DownloadRecord{Type: models.MediaVideo, URL: "http://cdn/seg.ts"}
	if got := StatsCategory(d); got != "VIDEO" {
		t.Errorf("got %q", got)
	}
	d.URL = "http://ads.fwmrm.net/seg.ts"
	if got := StatsCategory(d); got != "VIDEO AD" {
		t.Errorf("got %q", got)
	}
	d = &models.DownloadRecord{Type: models.MediaUnknown}
	if got := StatsCategory(d); got != "UNKNOWN" {
		t.Errorf("got %q", got)
	}
}
