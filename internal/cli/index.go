package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/triage-visualizer/backend/internal/models"
	"github.com/triage-visualizer/backend/internal/stats"
)

func newIndexCommand(opts *options) *cobra.Command {
	var (
		asJSON   bool
		outcomes bool
	)
	cmd := &cobra.Command{
		Use:   "index <glob>...",
		Short: "List the tune sessions found in log files",
		Example: `  triage index receiver.log
  triage index 'logs/**/*.log' --outcomes`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.indexFiles(cmd.Context(), args)
			if err != nil {
				return err
			}

			summaries := make([]models.SessionSummary, len(res.Sessions))
			for i, s := range res.Sessions {
				summaries[i] = s.Summary()
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summaries)
			}

			fmt.Fprintf(out, "%d lines, %d sessions, %d records\n\n",
				len(res.Corpus.Lines), len(res.Sessions), res.RecordCount())
			if err := writeSessionTable(out, summaries); err != nil {
				return err
			}
			if outcomes {
				fmt.Fprintln(out)
				return writeOutcomes(out, stats.FromSessions(res.Sessions))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print session summaries as JSON")
	cmd.Flags().BoolVar(&outcomes, "outcomes", false, "also print download outcome counts")
	return cmd
}
