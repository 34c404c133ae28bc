package spreadsheet

import (
	"math"
	"strconv"
	"strings"
)

// Primitive represents basic spreadsheet value types.
// types:
//   - float64: numeric values (integers are converted to float64)
//   - string: text values
//   - bool: boolean values (TRUE/FALSE)
//   - nil: empty/null cells
//   - *SpreadsheetError: error values (#DIV/0!, #VALUE!, etc.)
type Primitive any

// ErrorCode represents standard spreadsheet error codes following
// Excel conventions
type ErrorCode uint8

const (
	ErrorCodeNull  ErrorCode = 1 // #NULL! - no cells in common between ranges
	ErrorCodeDiv0  ErrorCode = 2 // #DIV/0! - division by zero
	ErrorCodeValue ErrorCode = 3 // #VALUE! - wrong type of argument or operand
	ErrorCodeRef   ErrorCode = 4 // #REF! - invalid cell reference
	ErrorCodeName  ErrorCode = 5 // #NAME? - unrecognized function name
	ErrorCodeNum   ErrorCode = 6 // #NUM! - number too large or small to be represented
	ErrorCodeNA    ErrorCode = 7 // #N/A - not enough arguments for function
	ErrorCodeOther ErrorCode = 8 // #ERROR! - unparsable formula and all other errors
	ErrorCodeCycle ErrorCode = 9 // #CYCLE! - cell takes part in, or depends on, a cycle
)

// ErrorMapper maps error code numbers to their string representations
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeNull:  "#NULL!",
	ErrorCodeDiv0:  "#DIV/0!",
	ErrorCodeValue: "#VALUE!",
	ErrorCodeRef:   "#REF!",
	ErrorCodeName:  "#NAME?",
	ErrorCodeNum:   "#NUM!",
	ErrorCodeNA:    "#N/A",
	ErrorCodeOther: "#ERROR!",
	ErrorCodeCycle: "#CYCLE!",
}

// errorCodeFromString is the reverse of ErrorMapper, used when reading error
// literals out of formulas.
func errorCodeFromString(s string) (ErrorCode, bool) {
	s = strings.ToUpper(s)
	for code, text := range ErrorMapper {
		if text == s {
			return code, true
		}
	}
	return 0, false
}

// SpreadsheetError preserves error code for display in cells
type SpreadsheetError struct {
	ErrorCode ErrorCode
	Message   string
}

func (e *SpreadsheetError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrorMapper[e.ErrorCode]
}

func NewSpreadsheetError(code ErrorCode, message string) *SpreadsheetError {
	if message == "" {
		message = ErrorMapper[code]
	}
	return &SpreadsheetError{
		ErrorCode: code,
		Message:   message,
	}
}

// CellType represents numeric constants for cell value
// types (external API)
type CellType uint8

const (
	CellValueTypeEmpty   CellType = 0
	CellValueTypeNumber  CellType = 1
	CellValueTypeString  CellType = 2
	CellValueTypeBoolean CellType = 4
	CellValueTypeError   CellType = 5
)

// TypeOf reports the external type of a value.
func TypeOf(v Primitive) CellType {
	switch v.(type) {
	case nil:
		return CellValueTypeEmpty
	case float64:
		return CellValueTypeNumber
	case string:
		return CellValueTypeString
	case bool:
		return CellValueTypeBoolean
	case *SpreadsheetError:
		return CellValueTypeError
	}
	return CellValueTypeError
}

// ValuesEqual compares two cell values. Errors are equal when their codes are.
// NaN never shows up as a value, so plain float equality is enough.
func ValuesEqual(a, b Primitive) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case *SpreadsheetError:
		bv, ok := b.(*SpreadsheetError)
		return ok && av.ErrorCode == bv.ErrorCode
	}
	return false
}

// FormatValue renders a value the way a cell would display it.
func FormatValue(v Primitive) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return val
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case *SpreadsheetError:
		return ErrorMapper[val.ErrorCode]
	}
	return ""
}

// normalizeNumber turns non-finite results into #NUM!.
func normalizeNumber(f float64) Primitive {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return NewSpreadsheetError(ErrorCodeNum, "")
	}
	return f
}
