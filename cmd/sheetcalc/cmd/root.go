// Package cmd provides the CLI commands for sheetcalc.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vogtb/sheetcalc/internal/config"
	"github.com/vogtb/sheetcalc/internal/logging"
)

// Version is set at build time with -ldflags.
var Version = "dev"

type options struct {
	workbook string
	verbose  bool

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand builds the command tree. Each call returns independent
// commands and flags.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "sheetcalc",
		Short: "Evaluate spreadsheet formulas incrementally",
		Long: `sheetcalc loads a workbook, applies edits and prints cell values and
change lists.

Examples:
  sheetcalc eval --workbook book.hcl Summary!B1
  sheetcalc eval --csv data.csv --set C1==SUM(A1:B1) C1
  sheetcalc eval --xlsx report.xlsx --changes --set Sheet1!A1=10`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&opts.workbook, "workbook", "w", "", "HCL workbook file with engine, logging and sheet blocks")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(newEvalCommand(opts))
	root.AddCommand(newVersionCommand())
	return root
}

func (o *options) load() error {
	o.cfg = config.Default()
	if o.workbook != "" {
		cfg, err := config.Load(o.workbook)
		if err != nil {
			return err
		}
		o.cfg = cfg
	}
	logCfg := o.cfg.Logging
	if o.verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	o.logger = logger
	return nil
}

// Execute runs the CLI
func Execute() error {
	return NewRootCommand().Execute()
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sheetcalc version %s\n", Version)
		},
	}
}
