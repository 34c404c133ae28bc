package spreadsheet

import (
	"math"
	"strings"
)

// EvaluationState is what a formula sees while it is evaluated: cell values
// as of the current recalculation, and cached range aggregates.
type EvaluationState interface {
	CellValue(addr SimpleCellAddress) Primitive
	RangeAggregate(r AbsoluteCellRange, agg Aggregator) any
}

// Evaluator computes the value of a formula at addr. Failures are returned
// as *SpreadsheetError values, never as Go errors.
type Evaluator interface {
	Evaluate(ast ASTNode, addr SimpleCellAddress, state EvaluationState) Primitive
}

// FoldRange computes an aggregate by reading every cell of r.
func FoldRange(state EvaluationState, r AbsoluteCellRange, agg Aggregator) any {
	acc := agg.Zero()
	for addr := range r.Addresses() {
		acc = agg.Fold(acc, state.CellValue(addr))
	}
	return acc
}

// Interpreter is the tree-walking Evaluator.
type Interpreter struct {
	functions *BuiltInFunctions
}

func NewInterpreter(functions *BuiltInFunctions) *Interpreter {
	if functions == nil {
		functions = NewDefaultBuiltInFunctions()
	}
	return &Interpreter{functions: functions}
}

// Evaluate computes the formula value. A formula that only forwards an empty
// cell yields 0.
func (in *Interpreter) Evaluate(ast ASTNode, addr SimpleCellAddress, state EvaluationState) Primitive {
	v := in.eval(ast, addr, state)
	if v == nil {
		return 0.0
	}
	return v
}

func (in *Interpreter) eval(node ASTNode, base SimpleCellAddress, state EvaluationState) Primitive {
	switch n := node.(type) {
	case *NumberNode:
		return n.Value
	case *StringNode:
		return n.Value
	case *BooleanNode:
		return n.Value
	case *ErrorNode:
		return NewSpreadsheetError(n.Code, ErrorMapper[n.Code])
	case *NamedRangeNode:
		return NewSpreadsheetError(ErrorCodeName, "Unknown name: "+n.Name)
	case *ParenNode:
		return in.eval(n.Inner, base, state)
	case *CellRefNode:
		addr := n.Ref.ToSimpleCellAddress(base)
		if addr.Col < 0 || addr.Row < 0 {
			return NewSpreadsheetError(ErrorCodeRef, "Reference outside the sheet")
		}
		return state.CellValue(addr)
	case *RangeNode:
		return NewSpreadsheetError(ErrorCodeValue, "Range used where a value is expected")
	case *UnaryOpNode:
		return in.evalUnary(n, in.eval(n.Operand, base, state))
	case *BinaryOpNode:
		left := in.eval(n.Left, base, state)
		right := in.eval(n.Right, base, state)
		return evalBinary(n.Op, left, right)
	case *FunctionCallNode:
		return in.evalFunction(n, base, state)
	}
	return NewSpreadsheetError(ErrorCodeOther, "Unsupported expression")
}

func (in *Interpreter) evalFunction(n *FunctionCallNode, base SimpleCellAddress, state EvaluationState) Primitive {
	if n.Function == FunctionUnknown {
		return NewSpreadsheetError(ErrorCodeName, "Unknown function: "+n.Name)
	}
	args := make([]any, len(n.Args))
	for i, arg := range n.Args {
		if rn, ok := arg.(*RangeNode); ok {
			bounds := rn.Resolve(base)
			if bounds.Start.Col < 0 || bounds.Start.Row < 0 {
				args[i] = NewSpreadsheetError(ErrorCodeRef, "Range outside the sheet")
				continue
			}
			args[i] = NewCellRange(bounds, state)
			continue
		}
		args[i] = in.eval(arg, base, state)
	}
	result, err := in.functions.Call(n.Function, args...)
	if err != nil {
		return asErrorValue(err)
	}
	return normalizeResult(result)
}

func asErrorValue(err error) *SpreadsheetError {
	if se, ok := err.(*SpreadsheetError); ok {
		return se
	}
	return NewSpreadsheetError(ErrorCodeValue, err.Error())
}

func normalizeResult(v Primitive) Primitive {
	if f, ok := v.(float64); ok {
		return normalizeNumber(f)
	}
	return v
}

func (in *Interpreter) evalUnary(n *UnaryOpNode, val Primitive) Primitive {
	if err := checkForError(val); err != nil {
		return err
	}
	num, ok := toNumber(val)
	if !ok {
		return NewSpreadsheetError(ErrorCodeValue, "Unary operator requires a numeric value")
	}
	switch n.Op {
	case UnaryOpPlus:
		return num
	case UnaryOpMinus:
		return -num
	case UnaryOpPercent:
		return num / 100.0
	}
	return NewSpreadsheetError(ErrorCodeValue, "Unknown operator")
}

// evalBinary applies a binary operator. The left error wins over the right.
func evalBinary(op BinaryOp, left, right Primitive) Primitive {
	if err := checkForError(left); err != nil {
		return err
	}
	if err := checkForError(right); err != nil {
		return err
	}

	switch op {
	case BinOpConcat:
		return toString(left) + toString(right)
	case BinOpEqual:
		return comparePrimitives(left, right) == 0
	case BinOpNotEqual:
		return comparePrimitives(left, right) != 0
	case BinOpLess:
		return comparePrimitives(left, right) < 0
	case BinOpLessEqual:
		return comparePrimitives(left, right) <= 0
	case BinOpGreater:
		return comparePrimitives(left, right) > 0
	case BinOpGreaterEqual:
		return comparePrimitives(left, right) >= 0
	}

	leftNum, leftOk := toNumber(left)
	rightNum, rightOk := toNumber(right)
	if !leftOk || !rightOk {
		return NewSpreadsheetError(ErrorCodeValue, "Operator "+op.String()+" requires numeric values")
	}
	switch op {
	case BinOpAdd:
		return normalizeNumber(leftNum + rightNum)
	case BinOpSubtract:
		return normalizeNumber(leftNum - rightNum)
	case BinOpMultiply:
		return normalizeNumber(leftNum * rightNum)
	case BinOpDivide:
		if rightNum == 0 {
			return NewSpreadsheetError(ErrorCodeDiv0, "Division by zero")
		}
		return normalizeNumber(leftNum / rightNum)
	case BinOpPower:
		if leftNum == 0 && rightNum == 0 {
			return NewSpreadsheetError(ErrorCodeNum, "0^0 is undefined")
		}
		return normalizeNumber(math.Pow(leftNum, rightNum))
	}
	return NewSpreadsheetError(ErrorCodeValue, "Unknown operator")
}

// comparePrimitives orders two values: numbers before text before booleans,
// with empty cells acting as 0, "" or FALSE depending on the other side.
func comparePrimitives(left, right Primitive) int {
	if left == nil && right == nil {
		return 0
	}
	if left == nil {
		left = emptyLike(right)
	}
	if right == nil {
		right = emptyLike(left)
	}

	rank := func(v Primitive) int {
		switch v.(type) {
		case float64:
			return 0
		case string:
			return 1
		case bool:
			return 2
		}
		return 3
	}
	if rl, rr := rank(left), rank(right); rl != rr {
		return compareFloats(float64(rl), float64(rr))
	}

	switch l := left.(type) {
	case float64:
		return compareFloats(l, right.(float64))
	case bool:
		return compareBools(l, right.(bool))
	case string:
		return strings.Compare(strings.ToLower(l), strings.ToLower(right.(string)))
	}
	return 0
}

func emptyLike(v Primitive) Primitive {
	switch v.(type) {
	case string:
		return ""
	case bool:
		return false
	}
	return 0.0
}
