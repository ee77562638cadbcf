package stats

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/triage-visualizer/backend/internal/models"
)

func newCSVWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	return cw
}

// WriteTuneDistribution writes the tune-time histogram as "range(ms),count" rows.
func WriteTuneDistribution(w io.Writer, h *Histogram) error {
	cw := newCSVWriter(w)
	if err := cw.Write([]string{"range(ms)", "count"}); err != nil {
		return err
	}
	for i, c := range h.Counts {
		if err := cw.Write([]string{h.RangeLabel(i) + "ms", strconv.Itoa(c)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable writes a tune-time table, header first. Sessions without a
// row produce an empty line so row n stays session n.
func WriteTable(w io.Writer, t *models.TuneTable) error {
	cw := newCSVWriter(w)
	if t != nil {
		for _, row := range t.Rows {
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
