package importer

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/vogtb/sheetcalc/packages/spreadsheet"
)

// ReadXLSX returns the contents of every sheet of a workbook in sheet order.
// Formulas come back with a leading '='; booleans as bool. Cached formula
// results are ignored.
func ReadXLSX(r io.Reader) ([]string, map[string][][]spreadsheet.Primitive, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	sheets := make(map[string][][]spreadsheet.Primitive, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		grid := make([][]spreadsheet.Primitive, len(rows))
		for r, row := range rows {
			grid[r] = make([]spreadsheet.Primitive, len(row))
			for c, text := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return nil, nil, err
				}
				value, err := readCell(f, name, cell, text)
				if err != nil {
					return nil, nil, fmt.Errorf("sheet %q cell %s: %w", name, cell, err)
				}
				grid[r][c] = value
			}
		}
		sheets[name] = grid
	}
	return names, sheets, nil
}

func readCell(f *excelize.File, sheet, cell, text string) (spreadsheet.Primitive, error) {
	formula, err := f.GetCellFormula(sheet, cell)
	if err != nil {
		return nil, err
	}
	if formula != "" {
		return "=" + formula, nil
	}
	if text == "" {
		return nil, nil
	}
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return nil, err
	}
	if typ == excelize.CellTypeBool {
		return text == "1" || text == "TRUE", nil
	}
	return text, nil
}

// ImportXLSX loads every sheet of a workbook, defining sheets that do not
// exist yet, and recalculates once.
func ImportXLSX(ctx context.Context, s *spreadsheet.Spreadsheet, r io.Reader, logger *zap.Logger) (spreadsheet.ChangeList, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	names, sheets, err := ReadXLSX(r)
	if err != nil {
		return nil, err
	}
	return s.Batch(ctx, func(s *spreadsheet.Spreadsheet) error {
		for _, name := range names {
			id, ok := s.SheetID(name)
			if !ok {
				if id, _, err = s.AddSheet(ctx, name); err != nil {
					return err
				}
			}
			if _, err := s.SetSheetContents(ctx, spreadsheet.SimpleCellAddress{Sheet: id}, sheets[name]); err != nil {
				return fmt.Errorf("sheet %q: %w", name, err)
			}
			logger.Debug("sheet imported", zap.String("sheet", name), zap.Int("rows", len(sheets[name])))
		}
		return nil
	})
}
