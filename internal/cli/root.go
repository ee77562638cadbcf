// Package cli implements the triage command line: offline indexing,
// export bundles and SVG rendering of log files without the server.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/triage-visualizer/backend/internal/config"
	"github.com/triage-visualizer/backend/internal/log"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	configFile    string
	logLevel      string
	viperFallback bool

	cfg *config.Config
}

// NewRootCommand builds the triage command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "triage",
		Short: "Index and visualize AAMP receiver logs",
		Long: `triage splits AAMP receiver logs into tune sessions, classifies downloads
and player events, and exports statistics or timeline renderings.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (default: ./config.yaml or $HOME/.triage/config.yaml)")
	flags.StringVarP(&opts.logLevel, "log-level", "l", "warn", "log level: debug, info, warn, error")
	flags.BoolVar(&opts.viperFallback, "viper", false, "split sessions on vendor play requests when present")

	root.AddCommand(
		newIndexCommand(opts),
		newExportCommand(opts),
		newRenderCommand(opts),
	)
	return root
}

func (o *options) load(stderr io.Writer) error {
	log.Configure(log.Config{Level: o.logLevel, Output: stderr, Pretty: true, Service: "triage-cli"})
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return err
	}
	if o.viperFallback {
		cfg.Index.ViperFallback = true
	}
	o.cfg = cfg
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
