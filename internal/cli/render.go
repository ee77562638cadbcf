package cli

import (
	"bytes"
	"fmt"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"github.com/triage-visualizer/backend/internal/layout"
	"github.com/triage-visualizer/backend/internal/render"
)

func newRenderCommand(opts *options) *cobra.Command {
	var (
		n     int
		pan   float64
		width float64
		out   string
	)
	cmd := &cobra.Command{
		Use:   "render <glob>...",
		Short: "Render one session's timeline as SVG",
		Example: `  triage render receiver.log --session 2 --out tune2.svg
  triage render receiver.log --pan 15000 --width 1600 --out -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.indexFiles(cmd.Context(), args)
			if err != nil {
				return err
			}
			s := res.Session(n)
			if s == nil {
				return fmt.Errorf("session %d out of range (%d sessions)", n, len(res.Sessions))
			}

			var buf bytes.Buffer
			l, err := render.WriteSVG(&buf, layout.New(opts.cfg.LayoutEngine()), s, pan, width)
			if err != nil {
				return err
			}
			for _, w := range l.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}

			if out == "-" {
				_, err := buf.WriteTo(cmd.OutOrStdout())
				return err
			}
			if out == "" {
				out = fmt.Sprintf("session-%d.svg", n)
			}
			if err := renameio.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %d downloads, %d markers\n", out, s.Label, len(l.Downloads), len(l.Markers))
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "session", "s", 0, "session index")
	cmd.Flags().Float64Var(&pan, "pan", 0, "pan offset in ms from the session start")
	cmd.Flags().Float64Var(&width, "width", 0, "viewport width in px (0 draws the whole session)")
	cmd.Flags().StringVarP(&out, "out", "o", "", `output file, "-" for stdout (default: session-N.svg)`)
	return cmd
}
