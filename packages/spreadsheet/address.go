package spreadsheet

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
	"unicode"
)

// SimpleCellAddress is an absolute, zero-based cell position.
type SimpleCellAddress struct {
	Sheet uint32
	Col   int
	Row   int
}

func (a SimpleCellAddress) String() string {
	return fmt.Sprintf("%d!%s%d", a.Sheet, ColumnToLetters(a.Col), a.Row+1)
}

// Valid reports whether the address points inside the grid.
func (a SimpleCellAddress) Valid() bool {
	return a.Sheet != 0 && a.Col >= 0 && a.Row >= 0
}

func (a SimpleCellAddress) ShiftedByRows(n int) SimpleCellAddress {
	a.Row += n
	return a
}

func (a SimpleCellAddress) ShiftedByColumns(n int) SimpleCellAddress {
	a.Col += n
	return a
}

// CellAddress is a reference as written in a formula. Relative components hold
// the offset from the formula's own address, absolute components the
// coordinate itself.
type CellAddress struct {
	Sheet       uint32
	Col         int
	Row         int
	AbsoluteCol bool
	AbsoluteRow bool
}

// ToSimpleCellAddress resolves the reference against the formula address.
func (c CellAddress) ToSimpleCellAddress(base SimpleCellAddress) SimpleCellAddress {
	out := SimpleCellAddress{Sheet: c.Sheet, Col: c.Col, Row: c.Row}
	if !c.AbsoluteCol {
		out.Col += base.Col
	}
	if !c.AbsoluteRow {
		out.Row += base.Row
	}
	return out
}

// NewCellAddress builds the reference to target as seen from base, keeping
// the given absolute flags.
func NewCellAddress(target, base SimpleCellAddress, absCol, absRow bool) CellAddress {
	c := CellAddress{Sheet: target.Sheet, Col: target.Col, Row: target.Row, AbsoluteCol: absCol, AbsoluteRow: absRow}
	if !absCol {
		c.Col -= base.Col
	}
	if !absRow {
		c.Row -= base.Row
	}
	return c
}

// AbsoluteCellRange is a rectangle of cells on one sheet, inclusive on both
// corners. Values are never mutated; shifts return new ranges.
type AbsoluteCellRange struct {
	Start SimpleCellAddress
	End   SimpleCellAddress
}

// NewAbsoluteCellRange normalizes the corners so Start is top-left.
func NewAbsoluteCellRange(start, end SimpleCellAddress) (AbsoluteCellRange, error) {
	if start.Sheet != end.Sheet {
		return AbsoluteCellRange{}, wrapApplicationError(ErrDifferentSheets, "%s and %s", start, end)
	}
	if start.Col > end.Col {
		start.Col, end.Col = end.Col, start.Col
	}
	if start.Row > end.Row {
		start.Row, end.Row = end.Row, start.Row
	}
	return AbsoluteCellRange{Start: start, End: end}, nil
}

// SpanFrom returns the range of the given size with its top-left corner at start.
func SpanFrom(start SimpleCellAddress, width, height int) AbsoluteCellRange {
	return AbsoluteCellRange{
		Start: start,
		End:   SimpleCellAddress{Sheet: start.Sheet, Col: start.Col + width - 1, Row: start.Row + height - 1},
	}
}

func (r AbsoluteCellRange) Sheet() uint32 { return r.Start.Sheet }
func (r AbsoluteCellRange) Width() int    { return r.End.Col - r.Start.Col + 1 }
func (r AbsoluteCellRange) Height() int   { return r.End.Row - r.Start.Row + 1 }
func (r AbsoluteCellRange) Size() int     { return r.Width() * r.Height() }

func (r AbsoluteCellRange) String() string {
	return fmt.Sprintf("%d!%s%d:%s%d", r.Start.Sheet,
		ColumnToLetters(r.Start.Col), r.Start.Row+1,
		ColumnToLetters(r.End.Col), r.End.Row+1)
}

func (r AbsoluteCellRange) AddressInRange(a SimpleCellAddress) bool {
	return a.Sheet == r.Start.Sheet &&
		a.Col >= r.Start.Col && a.Col <= r.End.Col &&
		a.Row >= r.Start.Row && a.Row <= r.End.Row
}

func (r AbsoluteCellRange) ContainsRange(other AbsoluteCellRange) bool {
	return r.AddressInRange(other.Start) && r.AddressInRange(other.End)
}

func (r AbsoluteCellRange) DoesOverlap(other AbsoluteCellRange) bool {
	if r.Start.Sheet != other.Start.Sheet {
		return false
	}
	return r.Start.Col <= other.End.Col && other.Start.Col <= r.End.Col &&
		r.Start.Row <= other.End.Row && other.Start.Row <= r.End.Row
}

func (r AbsoluteCellRange) WithStart(start SimpleCellAddress) AbsoluteCellRange {
	r.Start = start
	return r
}

func (r AbsoluteCellRange) WithEnd(end SimpleCellAddress) AbsoluteCellRange {
	r.End = end
	return r
}

func (r AbsoluteCellRange) ShiftedByRows(n int) AbsoluteCellRange {
	return AbsoluteCellRange{Start: r.Start.ShiftedByRows(n), End: r.End.ShiftedByRows(n)}
}

func (r AbsoluteCellRange) ShiftedByColumns(n int) AbsoluteCellRange {
	return AbsoluteCellRange{Start: r.Start.ShiftedByColumns(n), End: r.End.ShiftedByColumns(n)}
}

// Addresses iterates the range row-major. Every call starts over.
func (r AbsoluteCellRange) Addresses() iter.Seq[SimpleCellAddress] {
	return func(yield func(SimpleCellAddress) bool) {
		for row := r.Start.Row; row <= r.End.Row; row++ {
			for col := r.Start.Col; col <= r.End.Col; col++ {
				if !yield(SimpleCellAddress{Sheet: r.Start.Sheet, Col: col, Row: row}) {
					return
				}
			}
		}
	}
}

// ColumnToLetters converts a zero-based column index to A, B, ..., Z, AA, ...
func ColumnToLetters(col int) string {
	if col < 0 {
		return "#"
	}
	result := ""
	col++
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}

// LettersToColumn converts A, B, ..., AA to a zero-based column index.
func LettersToColumn(letters string) (int, bool) {
	if letters == "" {
		return 0, false
	}
	col := 0
	for _, r := range strings.ToUpper(letters) {
		if r < 'A' || r > 'Z' {
			return 0, false
		}
		col = col*26 + int(r-'A'+1)
	}
	return col - 1, true
}

// parseA1 parses a cell address like "A1", "$A$1" or "a$10" into a zero-based
// column and row and the absolute flags.
func parseA1(cell string) (col, row int, absCol, absRow bool, err error) {
	s := cell
	if strings.HasPrefix(s, "$") {
		absCol = true
		s = s[1:]
	}
	i := 0
	for i < len(s) && unicode.IsLetter(rune(s[i])) {
		i++
	}
	if i == 0 {
		return 0, 0, false, false, fmt.Errorf("invalid cell address %q", cell)
	}
	c, ok := LettersToColumn(s[:i])
	if !ok {
		return 0, 0, false, false, fmt.Errorf("invalid column in %q", cell)
	}
	s = s[i:]
	if strings.HasPrefix(s, "$") {
		absRow = true
		s = s[1:]
	}
	if s == "" {
		return 0, 0, false, false, fmt.Errorf("missing row in %q", cell)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, 0, false, false, fmt.Errorf("invalid row in %q", cell)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, 0, false, false, fmt.Errorf("invalid row in %q", cell)
	}
	return c, n - 1, absCol, absRow, nil
}

// splitSheetPrefix splits "Sheet1!A1" or "'My Sheet'!A1" into sheet name and
// the rest. The name is empty when there is no prefix.
func splitSheetPrefix(ref string) (string, string) {
	idx := strings.LastIndex(ref, "!")
	if idx < 0 {
		return "", ref
	}
	name := ref[:idx]
	if len(name) >= 2 && strings.HasPrefix(name, "'") && strings.HasSuffix(name, "'") {
		name = strings.ReplaceAll(name[1:len(name)-1], "''", "'")
	}
	return name, ref[idx+1:]
}

// quoteSheetName quotes a sheet name when it is not a plain identifier.
func quoteSheetName(name string) string {
	plain := name != ""
	for i, r := range name {
		if !(unicode.IsLetter(r) || r == '_' || (i > 0 && unicode.IsDigit(r))) {
			plain = false
			break
		}
	}
	if plain {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
