package stats

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/triage-visualizer/backend/internal/log"
	"github.com/triage-visualizer/backend/internal/metrics"
	"github.com/triage-visualizer/backend/internal/models"
	"github.com/triage-visualizer/backend/internal/session"
)

// Export file names.
const (
	FileTuneDistribution = "tune-distribution.csv"
	FileAampTuneTime     = "IP_AAMP_TUNETIME.csv"
	FileExTuneTime       = "IP_EX_TUNETIME.csv"
	FileReport           = "report.html"
)

// BundleFiles lists every file of an export bundle.
var BundleFiles = []string{FileTuneDistribution, FileAampTuneTime, FileExTuneTime, FileReport}

// ErrUnknownExport is returned for a file name outside BundleFiles.
var ErrUnknownExport = errors.New("unknown export file")

// Bundle is everything exported for one index run.
type Bundle struct {
	Stats       *Stats
	TuneTimes   *models.TuneTable
	ExTuneTimes *models.TuneTable
	Report      *Report
}

// Build aggregates an index result into an export bundle.
func Build(res *session.Result) *Bundle {
	st := FromSessions(res.Sessions)
	var lines []string
	if res.Corpus != nil {
		lines = res.Corpus.Lines
	}
	return &Bundle{
		Stats:       st,
		TuneTimes:   res.TuneTimes,
		ExTuneTimes: res.ExTuneTimes,
		Report:      BuildReport("Statistics", lines, res.Sessions, st),
	}
}

// Write renders export file name to w.
func (b *Bundle) Write(name string, w io.Writer) error {
	switch name {
	case FileTuneDistribution:
		return WriteTuneDistribution(w, b.Stats.TuneHistogram())
	case FileAampTuneTime:
		return WriteTable(w, b.TuneTimes)
	case FileExTuneTime:
		return WriteTable(w, b.ExTuneTimes)
	case FileReport:
		return b.Report.Execute(w)
	}
	return fmt.Errorf("%w: %s", ErrUnknownExport, name)
}

// ContentType is the MIME type of export file name.
func ContentType(name string) string {
	if name == FileReport {
		return "text/html; charset=utf-8"
	}
	return "text/csv; charset=utf-8"
}

// WriteBundle writes every bundle file into dir. Each file is replaced
// atomically, so readers see either the old or the new export.
func WriteBundle(dir string, b *Bundle) (err error) {
	logger := log.WithComponent("export")
	defer func() {
		metrics.RecordExport(err == nil)
		if err != nil {
			logger.Error().Err(err).Str(log.FieldPath, dir).Msg("export failed")
		}
	}()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	for _, name := range BundleFiles {
		if err := writeAtomic(filepath.Join(dir, name), func(w io.Writer) error { return b.Write(name, w) }); err != nil {
			return err
		}
	}
	logger.Info().Str(log.FieldPath, dir).Int(log.FieldFiles, len(BundleFiles)).Msg("export written")
	return nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger := log.WithComponent("export")
			logger.Debug().Err(err).Str(log.FieldPath, path).Msg("cleanup pending export file")
		}
	}()

	if err := write(pending); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
