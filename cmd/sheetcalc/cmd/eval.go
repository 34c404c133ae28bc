package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vogtb/sheetcalc/internal/importer"
	"github.com/vogtb/sheetcalc/packages/spreadsheet"
)

type evalOptions struct {
	csvFile     string
	xlsxFile    string
	sets        []string
	showChanges bool
}

func newEvalCommand(opts *options) *cobra.Command {
	eo := &evalOptions{}
	cmd := &cobra.Command{
		Use:   "eval [cell...]",
		Short: "Load data, apply edits and print cell values",
		Long: `Load the workbook and any CSV or XLSX input, apply every --set edit in
order and print the requested cells. Without cell arguments every non-empty
cell is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, opts, eo, args)
		},
	}
	cmd.Flags().StringVar(&eo.csvFile, "csv", "", "CSV file loaded into the first sheet at A1")
	cmd.Flags().StringVar(&eo.xlsxFile, "xlsx", "", "XLSX workbook to import")
	cmd.Flags().StringArrayVarP(&eo.sets, "set", "s", nil, "edit as CELL=CONTENT, repeatable")
	cmd.Flags().BoolVar(&eo.showChanges, "changes", false, "print the change list of every edit")
	return cmd
}

func runEval(cmd *cobra.Command, opts *options, eo *evalOptions, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	printLn := func(s string) { fmt.Fprintln(out, s) }

	r := spreadsheet.NewRunnableSpreadsheetWithConfig(opts.cfg.SpreadsheetConfig(opts.logger), printLn).WithContext(ctx)
	opts.cfg.Populate(r)
	if err := r.Error(); err != nil {
		return fmt.Errorf("loading workbook: %w", err)
	}
	s := r.Spreadsheet()

	if eo.xlsxFile != "" {
		f, err := os.Open(eo.xlsxFile)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := importer.ImportXLSX(ctx, s, f, opts.logger); err != nil {
			return fmt.Errorf("importing %s: %w", eo.xlsxFile, err)
		}
	}
	if len(s.Sheets()) == 0 {
		if err := r.WithSheet("Sheet1").Error(); err != nil {
			return err
		}
	}
	if eo.csvFile != "" {
		f, err := os.Open(eo.csvFile)
		if err != nil {
			return err
		}
		defer f.Close()
		sheet, _ := s.SheetID(s.Sheets()[0])
		if _, err := importer.ImportCSV(ctx, s, sheet, f); err != nil {
			return fmt.Errorf("importing %s: %w", eo.csvFile, err)
		}
	}

	for _, edit := range eo.sets {
		address, content, ok := strings.Cut(edit, "=")
		if !ok || address == "" {
			return fmt.Errorf("--set %q: want CELL=CONTENT", edit)
		}
		r.Set(strings.TrimSpace(address), content)
		if eo.showChanges {
			r.LogChanges()
		}
	}
	if err := r.Error(); err != nil {
		return err
	}

	if len(args) == 0 {
		args = nonEmptyCells(s)
	}
	for _, address := range args {
		r.Log(address)
	}
	return r.Error()
}

// nonEmptyCells lists every cell holding content, sheet by sheet in row-major
// order.
func nonEmptyCells(s *spreadsheet.Spreadsheet) []string {
	var out []string
	for _, name := range s.Sheets() {
		id, _ := s.SheetID(name)
		width, height, err := s.SheetDimensions(id)
		if err != nil {
			continue
		}
		for row := 0; row < height; row++ {
			for col := 0; col < width; col++ {
				addr := spreadsheet.SimpleCellAddress{Sheet: id, Col: col, Row: row}
				if s.GetCellValue(addr) != nil {
					out = append(out, s.FormatAddress(addr))
				}
			}
		}
	}
	return out
}
