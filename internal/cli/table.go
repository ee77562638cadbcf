package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/triage-visualizer/backend/internal/models"
	"github.com/triage-visualizer/backend/internal/stats"
)

var (
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	styleCell   = lipgloss.NewStyle().PaddingRight(2)
	styleFailed = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleFaint  = lipgloss.NewStyle().Faint(true)
)

// writeSessionTable prints one row per session with aligned columns.
func writeSessionTable(w io.Writer, sessions []models.SessionSummary) error {
	header := []string{"#", "SESSION", "LINES", "DOWNLOADS", "MARKERS", "TUNE"}
	rows := make([][]string, len(sessions))
	failed := make([]bool, len(sessions))
	for i, s := range sessions {
		tune := "-"
		if s.TuneTimeMs > 0 {
			tune = fmt.Sprintf("%dms", s.TuneTimeMs)
		}
		if s.TuneFailed {
			tune = "FAILED"
			failed[i] = true
		}
		rows[i] = []string{
			fmt.Sprint(s.Index),
			s.Label,
			fmt.Sprint(s.LastLine - s.FirstLine + 1),
			fmt.Sprint(s.DownloadCount),
			fmt.Sprint(s.MarkerCount),
			tune,
		}
	}

	widths := make([]int, len(header))
	for c, h := range header {
		widths[c] = lipgloss.Width(h)
		for _, r := range rows {
			widths[c] = max(widths[c], lipgloss.Width(r[c]))
		}
	}

	render := func(cells []string, style func(c int) lipgloss.Style) string {
		out := make([]string, len(cells))
		for c, v := range cells {
			out[c] = style(c).Inherit(styleCell).Width(widths[c] + 2).Render(v)
		}
		return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, out...), " ")
	}

	if _, err := fmt.Fprintln(w, render(header, func(int) lipgloss.Style { return styleHeader })); err != nil {
		return err
	}
	for i, r := range rows {
		line := render(r, func(c int) lipgloss.Style {
			if failed[i] && c == len(header)-1 {
				return styleFailed
			}
			return lipgloss.NewStyle()
		})
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// writeOutcomes prints the outcome counts of every download category
// followed by tune results.
func writeOutcomes(w io.Writer, st *stats.Stats) error {
	cats := append(st.Categories(), st.Tune())
	for _, c := range cats {
		if c.Total() == 0 {
			continue
		}
		if _, err := fmt.Fprintln(w, styleHeader.Render(c.Name)); err != nil {
			return err
		}
		for _, outcome := range c.OutcomeOrder() {
			line := fmt.Sprintf("%8d  %s", c.Outcomes[outcome], outcome)
			if h, ok := c.Durations[outcome]; ok && h.Total() > 0 {
				line += styleFaint.Render(fmt.Sprintf("  (%d timed)", h.Total()))
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}
