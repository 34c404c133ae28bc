package spreadsheet

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// RandomGenerator interface provides random number generation for testing
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package
type DefaultRandomGenerator struct{}

func (d *DefaultRandomGenerator) Float64() float64 {
	return rand.Float64()
}

// FunctionID is a built-in function resolved at parse time.
type FunctionID uint16

const (
	FunctionUnknown FunctionID = iota
	FunctionSUM
	FunctionAVERAGE
	FunctionCOUNT
	FunctionCOUNTA
	FunctionMAX
	FunctionMIN
	FunctionMEDIAN
	FunctionMODE
	FunctionAVERAGEA
	FunctionMINIFS
	FunctionIF
	FunctionAND
	FunctionOR
	FunctionNOT
	FunctionCONCATENATE
	FunctionLEN
	FunctionUPPER
	FunctionLOWER
	FunctionTRIM
	FunctionABS
	FunctionROUND
	FunctionFLOOR
	FunctionCEILING
	FunctionSQRT
	FunctionPOWER
	FunctionMOD
	FunctionPI
	FunctionNOW
	FunctionTODAY
	FunctionRAND
	functionCount
)

type builtinFunc func(bf *BuiltInFunctions, args ...any) (Primitive, error)

type functionSpec struct {
	name     string
	volatile bool
	call     builtinFunc
}

var functionSpecs = [functionCount]functionSpec{
	FunctionSUM:         {name: "SUM", call: (*BuiltInFunctions).SUM},
	FunctionAVERAGE:     {name: "AVERAGE", call: (*BuiltInFunctions).AVERAGE},
	FunctionCOUNT:       {name: "COUNT", call: (*BuiltInFunctions).COUNT},
	FunctionCOUNTA:      {name: "COUNTA", call: (*BuiltInFunctions).COUNTA},
	FunctionMAX:         {name: "MAX", call: (*BuiltInFunctions).MAX},
	FunctionMIN:         {name: "MIN", call: (*BuiltInFunctions).MIN},
	FunctionMEDIAN:      {name: "MEDIAN", call: (*BuiltInFunctions).MEDIAN},
	FunctionMODE:        {name: "MODE", call: (*BuiltInFunctions).MODE},
	FunctionAVERAGEA:    {name: "AVERAGEA", call: (*BuiltInFunctions).AVERAGEA},
	FunctionMINIFS:      {name: "MINIFS", call: (*BuiltInFunctions).MINIFS},
	FunctionIF:          {name: "IF", call: (*BuiltInFunctions).IF},
	FunctionAND:         {name: "AND", call: (*BuiltInFunctions).AND},
	FunctionOR:          {name: "OR", call: (*BuiltInFunctions).OR},
	FunctionNOT:         {name: "NOT", call: (*BuiltInFunctions).NOT},
	FunctionCONCATENATE: {name: "CONCATENATE", call: (*BuiltInFunctions).CONCATENATE},
	FunctionLEN:         {name: "LEN", call: (*BuiltInFunctions).LEN},
	FunctionUPPER:       {name: "UPPER", call: (*BuiltInFunctions).UPPER},
	FunctionLOWER:       {name: "LOWER", call: (*BuiltInFunctions).LOWER},
	FunctionTRIM:        {name: "TRIM", call: (*BuiltInFunctions).TRIM},
	FunctionABS:         {name: "ABS", call: (*BuiltInFunctions).ABS},
	FunctionROUND:       {name: "ROUND", call: (*BuiltInFunctions).ROUND},
	FunctionFLOOR:       {name: "FLOOR", call: (*BuiltInFunctions).FLOOR},
	FunctionCEILING:     {name: "CEILING", call: (*BuiltInFunctions).CEILING},
	FunctionSQRT:        {name: "SQRT", call: (*BuiltInFunctions).SQRT},
	FunctionPOWER:       {name: "POWER", call: (*BuiltInFunctions).POWER},
	FunctionMOD:         {name: "MOD", call: (*BuiltInFunctions).MOD},
	FunctionPI:          {name: "PI", call: (*BuiltInFunctions).PI},
	FunctionNOW:         {name: "NOW", volatile: true, call: (*BuiltInFunctions).NOW},
	FunctionTODAY:       {name: "TODAY", volatile: true, call: (*BuiltInFunctions).TODAY},
	FunctionRAND:        {name: "RAND", volatile: true, call: (*BuiltInFunctions).RAND},
}

var functionsByName = func() map[string]FunctionID {
	m := make(map[string]FunctionID, functionCount)
	for id := FunctionID(1); id < functionCount; id++ {
		m[functionSpecs[id].name] = id
	}
	return m
}()

// LookupFunction resolves a function name, case-insensitively.
func LookupFunction(name string) FunctionID {
	return functionsByName[strings.ToUpper(name)]
}

func (id FunctionID) String() string {
	if id == FunctionUnknown || id >= functionCount {
		return "UNKNOWN"
	}
	return functionSpecs[id].name
}

// IsVolatile reports whether the function must be recomputed on every
// recalculation.
func (id FunctionID) IsVolatile() bool {
	return id < functionCount && functionSpecs[id].volatile
}

// BuiltInFunctions contains all spreadsheet built-in functions
type BuiltInFunctions struct {
	clock Clock
	rng   RandomGenerator
}

// NewDefaultBuiltInFunctions creates a BuiltInFunctions with default
// implementations
func NewDefaultBuiltInFunctions() *BuiltInFunctions {
	return NewBuiltInFunctions(&WallClock{}, &DefaultRandomGenerator{})
}

func NewBuiltInFunctions(clock Clock, rng RandomGenerator) *BuiltInFunctions {
	if clock == nil {
		clock = &WallClock{}
	}
	if rng == nil {
		rng = &DefaultRandomGenerator{}
	}
	return &BuiltInFunctions{clock: clock, rng: rng}
}

// Call invokes a resolved built-in function. Range arguments arrive as Range
// values, everything else as Primitive.
func (bf *BuiltInFunctions) Call(id FunctionID, args ...any) (Primitive, error) {
	if id == FunctionUnknown || id >= functionCount {
		return nil, NewSpreadsheetError(ErrorCodeName, "Unknown function")
	}
	return functionSpecs[id].call(bf, args...)
}

// checkForError returns the error if value is a *SpreadsheetError, nil otherwise
func checkForError(value any) *SpreadsheetError {
	if err, ok := value.(*SpreadsheetError); ok {
		return err
	}
	return nil
}

// Aggregator folds range values into a partial result that can be cached
// per range and merged with the partial of a smaller range.
type Aggregator interface {
	Name() string
	Zero() any
	Fold(acc any, value Primitive) any
	Merge(acc, partial any) any
	Result(acc any) Primitive
}

// aggregate folds one argument: cached through the range when it is a
// CellRange, value by value otherwise.
func aggregate(agg Aggregator, acc any, arg any) any {
	switch a := arg.(type) {
	case *CellRange:
		return agg.Merge(acc, a.state.RangeAggregate(a.bounds, agg))
	case Range:
		for v := range a.IterateValues() {
			acc = agg.Fold(acc, v)
		}
		return acc
	}
	return agg.Fold(acc, scalarArgument(arg))
}

// scalarArgument applies the direct-argument coercion: numeric text and
// booleans typed directly into a function count as numbers.
func scalarArgument(arg any) Primitive {
	switch v := arg.(type) {
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
		return NewSpreadsheetError(ErrorCodeValue, fmt.Sprintf("%q is not a number", v))
	case bool:
		if v {
			return 1.0
		}
		return 0.0
	case nil:
		return 0.0
	}
	return arg
}

// sumAggregator adds with decimal arithmetic so a cached partial plus the
// residual equals a full rescan exactly.
type sumAggregator struct{}

func (sumAggregator) Name() string { return "SUM" }
func (sumAggregator) Zero() any    { return decimal.Zero }

func (sumAggregator) Fold(acc any, value Primitive) any {
	if checkForError(acc) != nil {
		return acc
	}
	switch v := value.(type) {
	case *SpreadsheetError:
		return v
	case float64:
		return acc.(decimal.Decimal).Add(decimal.NewFromFloat(v))
	}
	return acc
}

func (s sumAggregator) Merge(acc, partial any) any {
	if checkForError(acc) != nil {
		return acc
	}
	if err := checkForError(partial); err != nil {
		return err
	}
	return acc.(decimal.Decimal).Add(partial.(decimal.Decimal))
}

func (sumAggregator) Result(acc any) Primitive {
	if err := checkForError(acc); err != nil {
		return err
	}
	return normalizeNumber(acc.(decimal.Decimal).InexactFloat64())
}

type countAggregator struct{}

func (countAggregator) Name() string { return "COUNT" }
func (countAggregator) Zero() any    { return 0 }

func (countAggregator) Fold(acc any, value Primitive) any {
	if _, ok := value.(float64); ok {
		return acc.(int) + 1
	}
	return acc
}

func (countAggregator) Merge(acc, partial any) any {
	return acc.(int) + partial.(int)
}

func (countAggregator) Result(acc any) Primitive {
	return float64(acc.(int))
}

// extremumAggregator tracks MIN or MAX. The accumulator is nil until a
// number is seen.
type extremumAggregator struct {
	name string
	less bool
}

func (a extremumAggregator) Name() string { return a.name }
func (extremumAggregator) Zero() any      { return nil }

func (a extremumAggregator) Fold(acc any, value Primitive) any {
	if checkForError(acc) != nil {
		return acc
	}
	switch v := value.(type) {
	case *SpreadsheetError:
		return v
	case float64:
		cur, ok := acc.(float64)
		if !ok || (a.less && v < cur) || (!a.less && v > cur) {
			return v
		}
	}
	return acc
}

func (a extremumAggregator) Merge(acc, partial any) any {
	if partial == nil {
		return acc
	}
	if err := checkForError(partial); err != nil {
		if checkForError(acc) != nil {
			return acc
		}
		return err
	}
	return a.Fold(acc, partial.(float64))
}

func (extremumAggregator) Result(acc any) Primitive {
	if acc == nil {
		return 0.0
	}
	return acc
}

var (
	SumAggregator   Aggregator = sumAggregator{}
	CountAggregator Aggregator = countAggregator{}
	MinAggregator   Aggregator = extremumAggregator{name: "MIN", less: true}
	MaxAggregator   Aggregator = extremumAggregator{name: "MAX", less: false}
)

func (bf *BuiltInFunctions) SUM(args ...any) (Primitive, error) {
	var acc any = decimal.Zero
	for _, arg := range args {
		acc = aggregate(SumAggregator, acc, arg)
		if err := checkForError(acc); err != nil {
			return nil, err
		}
	}
	return SumAggregator.Result(acc), nil
}

func (bf *BuiltInFunctions) AVERAGE(args ...any) (Primitive, error) {
	var sum any = decimal.Zero
	var count any = 0
	for _, arg := range args {
		sum = aggregate(SumAggregator, sum, arg)
		if err := checkForError(sum); err != nil {
			return nil, err
		}
		count = aggregate(CountAggregator, count, arg)
	}
	if count.(int) == 0 {
		return nil, NewSpreadsheetError(ErrorCodeDiv0, "AVERAGE of no numbers")
	}
	avg := sum.(decimal.Decimal).Div(decimal.NewFromInt(int64(count.(int))))
	return normalizeNumber(avg.InexactFloat64()), nil
}

func (bf *BuiltInFunctions) COUNT(args ...any) (Primitive, error) {
	var acc any = 0
	for _, arg := range args {
		if _, isRange := arg.(Range); !isRange {
			if _, ok := scalarArgument(arg).(float64); ok {
				acc = acc.(int) + 1
			}
			continue
		}
		acc = aggregate(CountAggregator, acc, arg)
	}
	return CountAggregator.Result(acc), nil
}

func (bf *BuiltInFunctions) COUNTA(args ...any) (Primitive, error) {
	count := 0
	for _, arg := range args {
		if r, ok := arg.(Range); ok {
			for v := range r.IterateValues() {
				if v != nil {
					count++
				}
			}
			continue
		}
		if arg != nil {
			count++
		}
	}
	return float64(count), nil
}

func (bf *BuiltInFunctions) extremum(agg Aggregator, args ...any) (Primitive, error) {
	acc := agg.Zero()
	for _, arg := range args {
		acc = aggregate(agg, acc, arg)
		if err := checkForError(acc); err != nil {
			return nil, err
		}
	}
	return agg.Result(acc), nil
}

func (bf *BuiltInFunctions) MAX(args ...any) (Primitive, error) {
	return bf.extremum(MaxAggregator, args...)
}

func (bf *BuiltInFunctions) MIN(args ...any) (Primitive, error) {
	return bf.extremum(MinAggregator, args...)
}

func (bf *BuiltInFunctions) MEDIAN(args ...any) (Primitive, error) {
	var values []float64
	for _, arg := range args {
		if r, ok := arg.(Range); ok {
			for v := range r.IterateValues() {
				if err := checkForError(v); err != nil {
					return nil, err
				}
				if f, ok := v.(float64); ok {
					values = append(values, f)
				}
			}
			continue
		}
		v := scalarArgument(arg)
		if err := checkForError(v); err != nil {
			return nil, err
		}
		values = append(values, v.(float64))
	}
	if len(values) == 0 {
		return nil, NewSpreadsheetError(ErrorCodeNum, "MEDIAN of no numbers")
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid], nil
	}
	return (values[mid-1] + values[mid]) / 2, nil
}

// AVERAGEA counts every non-empty value in a range: text as 0, booleans as
// 0 or 1.
func (bf *BuiltInFunctions) AVERAGEA(args ...any) (Primitive, error) {
	sum := decimal.Zero
	count := 0
	add := func(value Primitive) error {
		switch v := value.(type) {
		case nil:
			return nil
		case *SpreadsheetError:
			return v
		case float64:
			sum = sum.Add(decimal.NewFromFloat(v))
		case bool:
			if v {
				sum = sum.Add(decimal.NewFromInt(1))
			}
		}
		count++
		return nil
	}
	for _, arg := range args {
		if r, ok := arg.(Range); ok {
			for v := range r.IterateValues() {
				if err := add(v); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := add(scalarArgument(arg)); err != nil {
			return nil, err
		}
	}
	if count == 0 {
		return nil, NewSpreadsheetError(ErrorCodeDiv0, "AVERAGEA of no values")
	}
	return normalizeNumber(sum.Div(decimal.NewFromInt(int64(count))).InexactFloat64()), nil
}

// MODE returns the most frequent number, the smallest one on ties. #N/A when
// no number repeats.
func (bf *BuiltInFunctions) MODE(args ...any) (Primitive, error) {
	freq := make(map[float64]int)
	for _, arg := range args {
		if r, ok := arg.(Range); ok {
			for v := range r.IterateValues() {
				if err := checkForError(v); err != nil {
					return nil, err
				}
				if f, ok := v.(float64); ok {
					freq[f]++
				}
			}
			continue
		}
		v := scalarArgument(arg)
		if err := checkForError(v); err != nil {
			return nil, err
		}
		freq[v.(float64)]++
	}
	if len(freq) == 0 {
		return nil, NewSpreadsheetError(ErrorCodeNum, "MODE of no numbers")
	}
	best, bestCount := 0.0, 0
	for v, n := range freq {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	if bestCount < 2 {
		return nil, NewSpreadsheetError(ErrorCodeNA, "MODE: no value appears more than once")
	}
	return best, nil
}

// MINIFS(min_range, criteria_range1, criterion1, ...) returns the smallest
// number in min_range whose row-major position satisfies every criterion.
func (bf *BuiltInFunctions) MINIFS(args ...any) (Primitive, error) {
	if len(args) < 3 || len(args)%2 == 0 {
		return nil, NewSpreadsheetError(ErrorCodeNA, "MINIFS requires an odd number of at least 3 arguments")
	}

	grid := func(arg any) ([]Primitive, int, int, *SpreadsheetError) {
		r, ok := arg.(Range)
		if !ok {
			if err := checkForError(arg); err != nil {
				return nil, 0, 0, err
			}
			r = scalarRange{value: arg}
		}
		var values []Primitive
		for v := range r.IterateValues() {
			values = append(values, v)
		}
		if _, scalar := r.(scalarRange); scalar {
			return values, 1, 1, nil
		}
		b := r.Bounds()
		return values, b.Width(), b.Height(), nil
	}

	values, width, height, err := grid(args[0])
	if err != nil {
		return nil, err
	}

	matches := make([]bool, len(values))
	for i := range matches {
		matches[i] = true
	}
	for i := 1; i < len(args); i += 2 {
		critValues, w, h, err := grid(args[i])
		if err != nil {
			return nil, err
		}
		if err := checkForError(args[i+1]); err != nil {
			return nil, err
		}
		if w != width || h != height {
			return nil, NewSpreadsheetError(ErrorCodeValue, "MINIFS ranges must have equal dimensions")
		}
		crit, ok := ParseCriterion(args[i+1])
		if !ok {
			return nil, NewSpreadsheetError(ErrorCodeValue, "MINIFS criterion is not valid")
		}
		for j, v := range critValues {
			if matches[j] && !crit.Matches(v) {
				matches[j] = false
			}
		}
	}

	result := math.Inf(1)
	for i, v := range values {
		if !matches[i] {
			continue
		}
		if err := checkForError(v); err != nil {
			return nil, err
		}
		if f, ok := v.(float64); ok && f < result {
			result = f
		}
	}
	if math.IsInf(result, 1) {
		return nil, NewSpreadsheetError(ErrorCodeNum, "MINIFS found no matching numbers")
	}
	return result, nil
}

func (bf *BuiltInFunctions) IF(args ...any) (Primitive, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, NewSpreadsheetError(ErrorCodeNA, "IF requires 2 or 3 arguments")
	}
	if err := checkForError(args[0]); err != nil {
		return nil, err
	}
	if isTruthy(args[0]) {
		return scalarResult(args[1])
	}
	if len(args) == 3 {
		return scalarResult(args[2])
	}
	return false, nil
}

// scalarResult rejects ranges where a single value is expected.
func scalarResult(arg any) (Primitive, error) {
	if _, ok := arg.(Range); ok {
		return nil, NewSpreadsheetError(ErrorCodeValue, "range used where a value is expected")
	}
	if err := checkForError(arg); err != nil {
		return nil, err
	}
	return arg, nil
}

// scalars checks that every argument is a single non-error value.
func scalars(args []any) ([]Primitive, error) {
	out := make([]Primitive, len(args))
	for i, arg := range args {
		v, err := scalarResult(arg)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (bf *BuiltInFunctions) AND(args ...any) (Primitive, error) {
	vals, err := scalars(args)
	if err != nil {
		return nil, err
	}
	for _, v := range vals {
		if !isTruthy(v) {
			return false, nil
		}
	}
	return true, nil
}

func (bf *BuiltInFunctions) OR(args ...any) (Primitive, error) {
	vals, err := scalars(args)
	if err != nil {
		return nil, err
	}
	for _, v := range vals {
		if isTruthy(v) {
			return true, nil
		}
	}
	return false, nil
}

func (bf *BuiltInFunctions) NOT(args ...any) (Primitive, error) {
	if len(args) != 1 {
		return nil, NewSpreadsheetError(ErrorCodeNA, "NOT requires exactly 1 argument")
	}
	vals, err := scalars(args)
	if err != nil {
		return nil, err
	}
	return !isTruthy(vals[0]), nil
}

func (bf *BuiltInFunctions) CONCATENATE(args ...any) (Primitive, error) {
	vals, err := scalars(args)
	if err != nil {
		return nil, err
	}
	var result strings.Builder
	for _, v := range vals {
		result.WriteString(toString(v))
	}
	return result.String(), nil
}

// oneString handles the single-text-argument functions.
func oneString(name string, args []any, fn func(string) Primitive) (Primitive, error) {
	if len(args) != 1 {
		return nil, NewSpreadsheetError(ErrorCodeNA, name+" requires exactly 1 argument")
	}
	vals, err := scalars(args)
	if err != nil {
		return nil, err
	}
	return fn(toString(vals[0])), nil
}

func (bf *BuiltInFunctions) LEN(args ...any) (Primitive, error) {
	return oneString("LEN", args, func(s string) Primitive { return float64(len([]rune(s))) })
}

func (bf *BuiltInFunctions) UPPER(args ...any) (Primitive, error) {
	return oneString("UPPER", args, func(s string) Primitive { return strings.ToUpper(s) })
}

func (bf *BuiltInFunctions) LOWER(args ...any) (Primitive, error) {
	return oneString("LOWER", args, func(s string) Primitive { return strings.ToLower(s) })
}

func (bf *BuiltInFunctions) TRIM(args ...any) (Primitive, error) {
	return oneString("TRIM", args, func(s string) Primitive { return strings.Join(strings.Fields(s), " ") })
}

// numbers converts every argument to a number, or fails with #VALUE!.
func numbers(name string, args []any, want ...int) ([]float64, error) {
	ok := false
	for _, n := range want {
		if len(args) == n {
			ok = true
		}
	}
	if !ok {
		return nil, NewSpreadsheetError(ErrorCodeNA, fmt.Sprintf("%s called with %d arguments", name, len(args)))
	}
	vals, err := scalars(args)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(vals))
	for i, v := range vals {
		f, ok := toNumber(v)
		if !ok {
			return nil, NewSpreadsheetError(ErrorCodeValue, name+" requires numeric arguments")
		}
		out[i] = f
	}
	return out, nil
}

func (bf *BuiltInFunctions) ABS(args ...any) (Primitive, error) {
	n, err := numbers("ABS", args, 1)
	if err != nil {
		return nil, err
	}
	return math.Abs(n[0]), nil
}

func (bf *BuiltInFunctions) ROUND(args ...any) (Primitive, error) {
	n, err := numbers("ROUND", args, 1, 2)
	if err != nil {
		return nil, err
	}
	places := int32(0)
	if len(n) == 2 {
		places = int32(n[1])
	}
	return decimal.NewFromFloat(n[0]).Round(places).InexactFloat64(), nil
}

func (bf *BuiltInFunctions) FLOOR(args ...any) (Primitive, error) {
	n, err := numbers("FLOOR", args, 1)
	if err != nil {
		return nil, err
	}
	return math.Floor(n[0]), nil
}

func (bf *BuiltInFunctions) CEILING(args ...any) (Primitive, error) {
	n, err := numbers("CEILING", args, 1)
	if err != nil {
		return nil, err
	}
	return math.Ceil(n[0]), nil
}

func (bf *BuiltInFunctions) SQRT(args ...any) (Primitive, error) {
	n, err := numbers("SQRT", args, 1)
	if err != nil {
		return nil, err
	}
	if n[0] < 0 {
		return nil, NewSpreadsheetError(ErrorCodeNum, "SQRT requires a non-negative argument")
	}
	return math.Sqrt(n[0]), nil
}

func (bf *BuiltInFunctions) POWER(args ...any) (Primitive, error) {
	n, err := numbers("POWER", args, 2)
	if err != nil {
		return nil, err
	}
	return normalizeNumber(math.Pow(n[0], n[1])), nil
}

func (bf *BuiltInFunctions) MOD(args ...any) (Primitive, error) {
	n, err := numbers("MOD", args, 2)
	if err != nil {
		return nil, err
	}
	if n[1] == 0 {
		return nil, NewSpreadsheetError(ErrorCodeDiv0, "Division by zero")
	}
	// result takes the sign of the divisor
	m := math.Mod(n[0], n[1])
	if m != 0 && (m < 0) != (n[1] < 0) {
		m += n[1]
	}
	return m, nil
}

func (bf *BuiltInFunctions) PI(args ...any) (Primitive, error) {
	if len(args) != 0 {
		return nil, NewSpreadsheetError(ErrorCodeNA, "PI takes no arguments")
	}
	return math.Pi, nil
}

// Excel date/time constants
const (
	// December 30, 1899 00:00:00 UTC in Unix milliseconds
	EXCEL_EPOCH_MS = -2209161600000
	MS_PER_DAY     = 86400000 // milliseconds in a day
)

func (bf *BuiltInFunctions) NOW(args ...any) (Primitive, error) {
	if len(args) != 0 {
		return nil, NewSpreadsheetError(ErrorCodeNA, "NOW takes no arguments")
	}
	now := bf.clock.Now()
	diffMs := float64(now.UnixMilli() - EXCEL_EPOCH_MS)
	return diffMs / MS_PER_DAY, nil
}

func (bf *BuiltInFunctions) TODAY(args ...any) (Primitive, error) {
	if len(args) != 0 {
		return nil, NewSpreadsheetError(ErrorCodeNA, "TODAY takes no arguments")
	}
	now := bf.clock.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	diffMs := float64(midnight.UnixMilli() - EXCEL_EPOCH_MS)
	return math.Floor(diffMs / MS_PER_DAY), nil
}

func (bf *BuiltInFunctions) RAND(args ...any) (Primitive, error) {
	if len(args) != 0 {
		return nil, NewSpreadsheetError(ErrorCodeNA, "RAND takes no arguments")
	}
	return bf.rng.Float64(), nil
}

// toNumber converts value to number, returning ok=false if conversion fails
func toNumber(value Primitive) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		num, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return num, true
	case nil:
		return 0, true
	default:
		return 0, false
	}
}

// toString converts value to string
func toString(value Primitive) string {
	return FormatValue(value)
}

// isTruthy checks if value is truthy
func isTruthy(value Primitive) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	case nil:
		return false
	default:
		return true
	}
}
