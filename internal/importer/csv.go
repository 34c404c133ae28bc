// Package importer loads tabular files into a spreadsheet.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/vogtb/sheetcalc/packages/spreadsheet"
)

// ReadCSV reads every record of r as one row. Fields are kept as text; the
// spreadsheet turns numeric text into numbers and "=..." into formulas.
// Empty fields become empty cells.
func ReadCSV(r io.Reader) ([][]spreadsheet.Primitive, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]spreadsheet.Primitive
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		row := make([]spreadsheet.Primitive, len(record))
		for i, field := range record {
			if field != "" {
				row[i] = field
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ImportCSV writes the CSV in r into sheet with its first field at A1 and
// recalculates once.
func ImportCSV(ctx context.Context, s *spreadsheet.Spreadsheet, sheet uint32, r io.Reader) (spreadsheet.ChangeList, error) {
	rows, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}
	return s.SetSheetContents(ctx, spreadsheet.SimpleCellAddress{Sheet: sheet}, rows)
}
