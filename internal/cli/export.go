package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/triage-visualizer/backend/internal/stats"
)

func newExportCommand(opts *options) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "export <glob>...",
		Short: "Write the statistics bundle (CSV tables and HTML report)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.indexFiles(cmd.Context(), args)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = opts.cfg.Storage.ExportDir
			}
			if err := stats.WriteBundle(outDir, stats.Build(res)); err != nil {
				return err
			}
			for _, name := range stats.BundleFiles {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: storage.export_dir)")
	return cmd
}
