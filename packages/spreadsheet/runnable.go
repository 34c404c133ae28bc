package spreadsheet

import (
	"context"
	"fmt"
	"sort"
)

// RunnableSpreadsheet provides a chainable interface for
// spreadsheet operations. wraps the standard Spreadsheet and tracks
// errors internally. Addresses are A1 strings, optionally sheet prefixed.
type RunnableSpreadsheet struct {
	spreadsheet *Spreadsheet
	ctx         context.Context
	err         error
	changes     ChangeList
	printLn     func(string)
}

// NewRunnableSpreadsheet creates a new RunnableSpreadsheet with a single
// sheet named Sheet1. printLn is required and will be used for all logging
// operations (Log, CheckError)
func NewRunnableSpreadsheet(printLn func(string)) *RunnableSpreadsheet {
	return NewRunnableSpreadsheetWithConfig(DefaultConfig(), printLn).AddSheet("Sheet1")
}

// NewRunnableSpreadsheetWithConfig wraps a new spreadsheet built from
// config. No sheet is defined.
func NewRunnableSpreadsheetWithConfig(config Config, printLn func(string)) *RunnableSpreadsheet {
	return &RunnableSpreadsheet{
		spreadsheet: NewSpreadsheetWithConfig(config),
		ctx:         context.Background(),
		printLn:     printLn,
	}
}

// WithContext sets the context every following operation runs under
func (r *RunnableSpreadsheet) WithContext(ctx context.Context) *RunnableSpreadsheet {
	r.ctx = ctx
	return r
}

func (r *RunnableSpreadsheet) apply(changes ChangeList, err error) *RunnableSpreadsheet {
	if err != nil {
		r.err = err
		return r
	}
	r.changes = changes
	return r
}

func (r *RunnableSpreadsheet) sheet(name string) (uint32, bool) {
	id, ok := r.spreadsheet.SheetID(name)
	if !ok {
		r.err = wrapApplicationError(ErrSheetNotFound, "%q", name)
	}
	return id, ok
}

// Set sets a cell value or formula (chainable)
func (r *RunnableSpreadsheet) Set(address string, value Primitive) *RunnableSpreadsheet {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	addr, err := r.spreadsheet.Address(address)
	if err != nil {
		r.err = err
		return r
	}
	return r.apply(r.spreadsheet.SetCellContents(r.ctx, addr, value))
}

// Get retrieves a cell value (chainable)
func (r *RunnableSpreadsheet) Get(address string) (*RunnableSpreadsheet, Primitive) {
	return r, r.Value(address)
}

// Clear empties a cell (chainable)
func (r *RunnableSpreadsheet) Clear(address string) *RunnableSpreadsheet {
	return r.Set(address, nil)
}

// AddSheet adds a new sheet (chainable)
func (r *RunnableSpreadsheet) AddSheet(name string) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	_, changes, err := r.spreadsheet.AddSheet(r.ctx, name)
	return r.apply(changes, err)
}

// RemoveSheet removes a sheet (chainable)
func (r *RunnableSpreadsheet) RemoveSheet(name string) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	id, ok := r.sheet(name)
	if !ok {
		return r
	}
	return r.apply(r.spreadsheet.RemoveSheet(r.ctx, id))
}

// AddRows inserts count rows before the 0-based row position (chainable)
func (r *RunnableSpreadsheet) AddRows(sheet string, position, count int) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	id, ok := r.sheet(sheet)
	if !ok {
		return r
	}
	return r.apply(r.spreadsheet.AddRows(r.ctx, id, position, count))
}

// RemoveRows deletes count rows starting at the 0-based row position (chainable)
func (r *RunnableSpreadsheet) RemoveRows(sheet string, position, count int) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	id, ok := r.sheet(sheet)
	if !ok {
		return r
	}
	return r.apply(r.spreadsheet.RemoveRows(r.ctx, id, position, count))
}

func (r *RunnableSpreadsheet) AddColumns(sheet string, position, count int) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	id, ok := r.sheet(sheet)
	if !ok {
		return r
	}
	return r.apply(r.spreadsheet.AddColumns(r.ctx, id, position, count))
}

func (r *RunnableSpreadsheet) RemoveColumns(sheet string, position, count int) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	id, ok := r.sheet(sheet)
	if !ok {
		return r
	}
	return r.apply(r.spreadsheet.RemoveColumns(r.ctx, id, position, count))
}

// Move moves the contents of source ("A1:B2") to destination ("D1") (chainable)
func (r *RunnableSpreadsheet) Move(source, destination string) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	src, err := r.spreadsheet.RangeAddress(source)
	if err != nil {
		r.err = err
		return r
	}
	dst, err := r.spreadsheet.Address(destination)
	if err != nil {
		r.err = err
		return r
	}
	return r.apply(r.spreadsheet.MoveRange(r.ctx, src, dst))
}

// Batch runs fn with recalculation suspended and recalculates once at the
// end (chainable). Errors raised inside fn are kept.
func (r *RunnableSpreadsheet) Batch(fn func(*RunnableSpreadsheet) *RunnableSpreadsheet) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	return r.apply(r.spreadsheet.Batch(r.ctx, func(*Spreadsheet) error {
		fn(r)
		return r.err
	}))
}

// Changes returns the change list of the last successful operation
func (r *RunnableSpreadsheet) Changes() ChangeList {
	return r.changes
}

// Run returns the spreadsheet and any error. typically the last method in
// the chain
func (r *RunnableSpreadsheet) Run() (*Spreadsheet, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.spreadsheet, nil
}

// RunOrPanic returns the spreadsheet and panics if there's an error.
// useful for examples and tests where you want to fail fast
func (r *RunnableSpreadsheet) RunOrPanic() *Spreadsheet {
	spreadsheet, err := r.Run()
	if err != nil {
		panic(err)
	}
	return spreadsheet
}

// Error returns the current error state
func (r *RunnableSpreadsheet) Error() error {
	return r.err
}

// CheckError logs the current error using the PrintLn function (chainable)
func (r *RunnableSpreadsheet) CheckError() *RunnableSpreadsheet {
	if r.err != nil {
		r.printLn(fmt.Sprintf("ERROR: %v", r.err))
	} else {
		r.printLn("No errors")
	}
	return r
}

// Spreadsheet returns the underlying spreadsheet. use with caution as it
// bypasses error tracking.
func (r *RunnableSpreadsheet) Spreadsheet() *Spreadsheet {
	return r.spreadsheet
}

// Reset clears the error state (chainable)
func (r *RunnableSpreadsheet) Reset() *RunnableSpreadsheet {
	r.err = nil
	return r
}

// Then allows conditional execution based on current error state
func (r *RunnableSpreadsheet) Then(fn func(*RunnableSpreadsheet) *RunnableSpreadsheet) *RunnableSpreadsheet {
	if r.err != nil {
		return r // skip if there's an error
	}
	return fn(r)
}

// OnError allows error handling in the chain
func (r *RunnableSpreadsheet) OnError(fn func(error) error) *RunnableSpreadsheet {
	if r.err != nil {
		r.err = fn(r.err)
	}
	return r
}

// Must panics if there's an error (chainable). useful for ensuring
// critical operations succeed
func (r *RunnableSpreadsheet) Must() *RunnableSpreadsheet {
	if r.err != nil {
		panic(r.err)
	}
	return r
}

// SetBatch sets multiple cells in one recalculation (chainable). Cells are
// written in address order.
func (r *RunnableSpreadsheet) SetBatch(cells map[string]Primitive) *RunnableSpreadsheet {
	addresses := make([]string, 0, len(cells))
	for address := range cells {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)
	return r.Batch(func(r *RunnableSpreadsheet) *RunnableSpreadsheet {
		for _, address := range addresses {
			if r.Set(address, cells[address]).err != nil {
				break
			}
		}
		return r
	})
}

// GetBatch retrieves multiple cell values
func (r *RunnableSpreadsheet) GetBatch(addresses ...string) (*RunnableSpreadsheet, map[string]Primitive) {
	if r.err != nil {
		return r, nil // no-op if there's already an error
	}

	results := make(map[string]Primitive)
	for _, address := range addresses {
		val := r.Value(address)
		if r.err != nil {
			return r, nil
		}
		results[address] = val
	}
	return r, results
}

// WithSheet ensures a sheet exists before continuing (chainable)
func (r *RunnableSpreadsheet) WithSheet(name string) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	if _, ok := r.spreadsheet.SheetID(name); ok {
		return r
	}
	return r.AddSheet(name)
}

// If allows conditional operations in the chain
func (r *RunnableSpreadsheet) If(condition bool, fn func(*RunnableSpreadsheet) *RunnableSpreadsheet) *RunnableSpreadsheet {
	if r.err != nil || !condition {
		return r // skip if there's an error or condition is false
	}
	return fn(r)
}

// ForEach applies a function to a block of 0-based cell coordinates (chainable)
func (r *RunnableSpreadsheet) ForEach(startRow, endRow int, startCol, endCol int, fn func(row, col int, r *RunnableSpreadsheet)) *RunnableSpreadsheet {
	if r.err != nil {
		return r // no-op if there's already an error
	}

	for row := startRow; row <= endRow; row++ {
		for col := startCol; col <= endCol; col++ {
			fn(row, col, r)
			if r.err != nil {
				return r // stop on first error
			}
		}
	}
	return r
}

// Value is a helper to get a single committed value from the chain.
// example: val := NewRunnableSpreadsheet(log).Set("A1", 10).Set("A2", "=A1*2").Value("A2")
func (r *RunnableSpreadsheet) Value(address string) Primitive {
	if r.err != nil {
		return nil
	}
	addr, err := r.spreadsheet.Address(address)
	if err != nil {
		r.err = err
		return nil
	}
	return r.spreadsheet.GetCellValue(addr)
}

// Values is a helper to get multiple values from the chain
func (r *RunnableSpreadsheet) Values(addresses ...string) []Primitive {
	if r.err != nil {
		return nil
	}

	values := make([]Primitive, len(addresses))
	for i, address := range addresses {
		values[i] = r.Value(address)
		if r.err != nil {
			return nil
		}
	}
	return values
}

// Formula returns the formula text of a cell, or "" for a non-formula cell
func (r *RunnableSpreadsheet) Formula(address string) string {
	if r.err != nil {
		return ""
	}
	addr, err := r.spreadsheet.Address(address)
	if err != nil {
		r.err = err
		return ""
	}
	text, _ := r.spreadsheet.GetCellFormula(addr)
	return text
}

// Log logs the value of a cell using the provided PrintLn function (chainable)
func (r *RunnableSpreadsheet) Log(address string) *RunnableSpreadsheet {
	if r.err != nil {
		return r // no-op if there's already an error
	}

	val := r.Value(address)
	if r.err != nil {
		return r
	}

	var output string
	if val == nil {
		output = fmt.Sprintf("%s: <empty>", address)
	} else {
		output = fmt.Sprintf("%s: %s", address, FormatValue(val))
	}

	r.printLn(output)
	return r
}

// LogChanges prints every entry of the last change list (chainable)
func (r *RunnableSpreadsheet) LogChanges() *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	for _, c := range r.changes {
		r.printLn(fmt.Sprintf("%s: %s -> %s", r.spreadsheet.FormatAddress(c.Address), FormatValue(c.OldValue), FormatValue(c.NewValue)))
	}
	return r
}
