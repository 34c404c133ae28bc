package spreadsheet

import (
	"fmt"
	"strconv"
	"strings"
)

// ASTNode is a parsed formula. Nodes are immutable once built: structural
// edits produce new trees. ToString returns a normalized key that is the
// same for every copy of a formula with the same relative references.
type ASTNode interface {
	ToString() string
}

// ParserContext provides context for parsing relative references
type ParserContext struct {
	CurrentAddress   SimpleCellAddress
	ResolveWorksheet func(name string) uint32
}

// Parser parses tokens into an AST
type Parser struct {
	tokens  []Token
	pos     int
	context *ParserContext
}

// StringNode represents a string literal
type StringNode struct {
	Value string
}

func (n *StringNode) ToString() string {
	return strconv.Quote(n.Value)
}

// NumberNode represents a numeric literal. Raw keeps the literal as written.
type NumberNode struct {
	Value float64
	Raw   string
}

func (n *NumberNode) ToString() string {
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

// BooleanNode represents a boolean literal
type BooleanNode struct {
	Value bool
}

func (n *BooleanNode) ToString() string {
	if n.Value {
		return "TRUE"
	}
	return "FALSE"
}

// ErrorNode is an error literal, or a reference invalidated by a structural
// edit.
type ErrorNode struct {
	Code ErrorCode
}

func (n *ErrorNode) ToString() string {
	return ErrorMapper[n.Code]
}

// CellRefNode represents a single cell reference.
type CellRefNode struct {
	Ref         CellAddress
	SheetPrefix bool
}

func (n *CellRefNode) ToString() string {
	return "REF" + refKey(n.Ref)
}

func refKey(c CellAddress) string {
	return fmt.Sprintf("(%d,%d,%d,%t,%t)", c.Sheet, c.Col, c.Row, c.AbsoluteCol, c.AbsoluteRow)
}

// RangeNode represents a rectangular range reference.
type RangeNode struct {
	Start       CellAddress
	End         CellAddress
	SheetPrefix bool
}

func (n *RangeNode) ToString() string {
	return "RANGE" + refKey(n.Start) + refKey(n.End)
}

// Resolve returns the absolute range seen from base.
func (n *RangeNode) Resolve(base SimpleCellAddress) AbsoluteCellRange {
	r, _ := NewAbsoluteCellRange(n.Start.ToSimpleCellAddress(base), n.End.ToSimpleCellAddress(base))
	return r
}

// NamedRangeNode is an identifier that is not a cell or range. Named
// expressions are not supported, so these evaluate to #NAME?.
type NamedRangeNode struct {
	Name string
}

func (n *NamedRangeNode) ToString() string {
	return "NAME(" + strings.ToUpper(n.Name) + ")"
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op    BinaryOp
	Left  ASTNode
	Right ASTNode
}

func (n *BinaryOpNode) ToString() string {
	return fmt.Sprintf("(%s%s%s)", n.Left.ToString(), n.Op, n.Right.ToString())
}

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	Op      UnaryOp
	Operand ASTNode
}

func (n *UnaryOpNode) ToString() string {
	switch n.Op {
	case UnaryOpMinus:
		return "(-" + n.Operand.ToString() + ")"
	case UnaryOpPlus:
		return "(+" + n.Operand.ToString() + ")"
	}
	return "(" + n.Operand.ToString() + "%)"
}

// ParenNode keeps parentheses the user wrote so unparse reproduces them.
type ParenNode struct {
	Inner ASTNode
}

func (n *ParenNode) ToString() string {
	return "P" + n.Inner.ToString()
}

// FunctionCallNode represents a function call. Function is resolved once at
// parse time; unknown names resolve to FunctionUnknown.
type FunctionCallNode struct {
	Name     string
	Function FunctionID
	Args     []ASTNode
}

func (n *FunctionCallNode) ToString() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.ToString()
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ","))
}

// ParseFormula tokenizes and parses a formula beginning with '='.
func ParseFormula(formula string, context *ParserContext) (ASTNode, error) {
	tokens, err := NewLexer(formula).Tokenize()
	if err != nil {
		return nil, NewSpreadsheetError(ErrorCodeOther, err.Error())
	}
	return NewParser(tokens, context).Parse()
}

func NewParser(tokens []Token, context *ParserContext) *Parser {
	return &Parser{
		tokens:  tokens,
		pos:     0,
		context: context,
	}
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (ASTNode, error) {
	if len(p.tokens) == 0 {
		return nil, NewSpreadsheetError(ErrorCodeOther, "no tokens to parse")
	}

	if p.tokens[p.pos].Type != TokenEquals {
		return nil, NewSpreadsheetError(ErrorCodeOther, "formula must start with '='")
	}
	p.pos++

	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	if p.pos < len(p.tokens) && p.tokens[p.pos].Type != TokenEOF {
		return nil, NewSpreadsheetError(ErrorCodeOther, fmt.Sprintf("unexpected token after expression: %s", p.tokens[p.pos].Value))
	}
	return node, nil
}

// parseComparison handles comparison operators (lowest precedence)
func (p *Parser) parseComparison() (ASTNode, error) {
	left, err := p.parseConcatenation()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "=":
			op = BinOpEqual
		case "<>":
			op = BinOpNotEqual
		case "<":
			op = BinOpLess
		case "<=":
			op = BinOpLessEqual
		case ">":
			op = BinOpGreater
		case ">=":
			op = BinOpGreaterEqual
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseConcatenation()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right}
	}

	return left, nil
}

// parseConcatenation handles string concatenation operator
func (p *Parser) parseConcatenation() (ASTNode, error) {
	left, err := p.parseAddition()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp || tok.Value != "&" {
			break
		}

		p.pos++
		right, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: BinOpConcat, Left: left, Right: right}
	}

	return left, nil
}

// parseAddition handles addition and subtraction
func (p *Parser) parseAddition() (ASTNode, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "+":
			op = BinOpAdd
		case "-":
			op = BinOpSubtract
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right}
	}

	return left, nil
}

// parseMultiplication handles multiplication and division
func (p *Parser) parseMultiplication() (ASTNode, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "*":
			op = BinOpMultiply
		case "/":
			op = BinOpDivide
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right}
	}

	return left, nil
}

// parsePower handles exponentiation. Like the other binary levels it is
// left-associative, matching spreadsheet convention (2^3^2 = 64).
func (p *Parser) parsePower() (ASTNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenBinaryOp && p.tokens[p.pos].Value == "^" {
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: BinOpPower, Left: left, Right: right}
	}

	return left, nil
}

// parseUnary handles unary operators
func (p *Parser) parseUnary() (ASTNode, error) {
	if p.pos >= len(p.tokens) {
		return nil, NewSpreadsheetError(ErrorCodeOther, "unexpected end of expression")
	}

	tok := p.tokens[p.pos]
	if tok.Type == TokenUnaryPrefixOp {
		var op UnaryOp
		switch tok.Value {
		case "+":
			op = UnaryOpPlus
		case "-":
			op = UnaryOpMinus
		default:
			return p.parsePostfix()
		}

		p.pos++
		operand, err := p.parseUnary() // recurse for chained unary operators
		if err != nil {
			return nil, err
		}
		return &UnaryOpNode{Op: op, Operand: operand}, nil
	}

	return p.parsePostfix()
}

// parsePostfix handles postfix operators (percent)
func (p *Parser) parsePostfix() (ASTNode, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenUnaryPostfixOp && p.tokens[p.pos].Value == "%" {
		p.pos++
		node = &UnaryOpNode{Op: UnaryOpPercent, Operand: node}
	}

	return node, nil
}

// parsePrimary handles primary expressions (literals, references,
// functions, parentheses)
func (p *Parser) parsePrimary() (ASTNode, error) {
	if p.pos >= len(p.tokens) {
		return nil, NewSpreadsheetError(ErrorCodeOther, "unexpected end of expression")
	}

	tok := p.tokens[p.pos]

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, NewSpreadsheetError(ErrorCodeOther, fmt.Sprintf("invalid number: %s", tok.Value))
		}
		return &NumberNode{Value: val, Raw: tok.Value}, nil

	case TokenString:
		p.pos++
		return &StringNode{Value: tok.Value}, nil

	case TokenBoolean:
		p.pos++
		return &BooleanNode{Value: tok.Value == "TRUE"}, nil

	case TokenErrorLiteral:
		p.pos++
		code, ok := errorCodeFromString(tok.Value)
		if !ok {
			return nil, NewSpreadsheetError(ErrorCodeOther, fmt.Sprintf("unknown error literal: %s", tok.Value))
		}
		return &ErrorNode{Code: code}, nil

	case TokenCell:
		p.pos++
		return p.parseCellReference(tok)

	case TokenRange:
		p.pos++
		return p.parseRange(tok)

	case TokenIdentifier:
		p.pos++
		return &NamedRangeNode{Name: tok.Value}, nil

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseComparison()
		if err != nil {
			return nil, err
		}

		if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenRightParen {
			return nil, NewSpreadsheetError(ErrorCodeOther, "expected closing parenthesis")
		}
		p.pos++

		return &ParenNode{Inner: node}, nil

	default:
		return nil, NewSpreadsheetError(ErrorCodeOther, fmt.Sprintf("unexpected token: %s", tok.Value))
	}
}

// parseFunctionCall parses a function call
func (p *Parser) parseFunctionCall() (ASTNode, error) {
	funcName := p.tokens[p.pos].Value
	p.pos++

	if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenLeftParen {
		return nil, NewSpreadsheetError(ErrorCodeOther, "expected '(' after function name")
	}
	p.pos++

	node := &FunctionCallNode{
		Name:     funcName,
		Function: LookupFunction(funcName),
		Args:     []ASTNode{},
	}

	// check for empty argument list
	if p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenRightParen {
		p.pos++
		return node, nil
	}

	for {
		arg, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		node.Args = append(node.Args, arg)

		if p.pos >= len(p.tokens) {
			return nil, NewSpreadsheetError(ErrorCodeOther, "unexpected end in function arguments")
		}

		if p.tokens[p.pos].Type == TokenRightParen {
			p.pos++
			break
		}

		if p.tokens[p.pos].Type != TokenComma {
			return nil, NewSpreadsheetError(ErrorCodeOther, "expected ',' or ')' in function arguments")
		}
		p.pos++
	}

	return node, nil
}

// resolveSheet splits off a sheet prefix and resolves it to an ID.
func (p *Parser) resolveSheet(ref string) (sheet uint32, rest string, prefixed bool, err error) {
	name, rest := splitSheetPrefix(ref)
	if name == "" {
		return p.context.CurrentAddress.Sheet, rest, false, nil
	}
	if p.context.ResolveWorksheet == nil {
		return 0, "", false, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("unknown sheet: %s", name))
	}
	return p.context.ResolveWorksheet(name), rest, true, nil
}

// parseCellReference parses a cell reference token into a CellRefNode
func (p *Parser) parseCellReference(tok Token) (ASTNode, error) {
	sheet, cellStr, prefixed, err := p.resolveSheet(tok.Value)
	if err != nil {
		return nil, err
	}

	col, row, absCol, absRow, err := parseA1(cellStr)
	if err != nil {
		return nil, NewSpreadsheetError(ErrorCodeRef, err.Error())
	}

	target := SimpleCellAddress{Sheet: sheet, Col: col, Row: row}
	return &CellRefNode{
		Ref:         NewCellAddress(target, p.context.CurrentAddress, absCol, absRow),
		SheetPrefix: prefixed,
	}, nil
}

// parseRange parses a range token into a RangeNode. Corners are normalized
// so Start is the top-left cell; each coordinate keeps its own $ flag.
func (p *Parser) parseRange(tok Token) (ASTNode, error) {
	sheet, rangeStr, prefixed, err := p.resolveSheet(tok.Value)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(rangeStr, ":")
	if len(parts) != 2 {
		return nil, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("invalid range format: %s", rangeStr))
	}
	if strings.Contains(parts[1], "!") {
		return nil, NewSpreadsheetError(ErrorCodeRef, "cross-worksheet ranges are not supported")
	}

	startCol, startRow, absStartCol, absStartRow, err := parseA1(parts[0])
	if err != nil {
		return nil, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("invalid start cell in range: %s", parts[0]))
	}
	endCol, endRow, absEndCol, absEndRow, err := parseA1(parts[1])
	if err != nil {
		return nil, NewSpreadsheetError(ErrorCodeRef, fmt.Sprintf("invalid end cell in range: %s", parts[1]))
	}

	if startCol > endCol {
		startCol, endCol = endCol, startCol
		absStartCol, absEndCol = absEndCol, absStartCol
	}
	if startRow > endRow {
		startRow, endRow = endRow, startRow
		absStartRow, absEndRow = absEndRow, absStartRow
	}

	base := p.context.CurrentAddress
	return &RangeNode{
		Start:       NewCellAddress(SimpleCellAddress{Sheet: sheet, Col: startCol, Row: startRow}, base, absStartCol, absStartRow),
		End:         NewCellAddress(SimpleCellAddress{Sheet: sheet, Col: endCol, Row: endRow}, base, absEndCol, absEndRow),
		SheetPrefix: prefixed,
	}, nil
}

// walkAST visits every node depth-first, parents before children.
func walkAST(node ASTNode, visit func(ASTNode)) {
	if node == nil {
		return
	}
	visit(node)
	switch n := node.(type) {
	case *BinaryOpNode:
		walkAST(n.Left, visit)
		walkAST(n.Right, visit)
	case *UnaryOpNode:
		walkAST(n.Operand, visit)
	case *ParenNode:
		walkAST(n.Inner, visit)
	case *FunctionCallNode:
		for _, arg := range n.Args {
			walkAST(arg, visit)
		}
	}
}

// collectReferences lists the cells and ranges a formula at base refers to.
func collectReferences(ast ASTNode, base SimpleCellAddress) (cells []SimpleCellAddress, ranges []AbsoluteCellRange) {
	walkAST(ast, func(node ASTNode) {
		switch n := node.(type) {
		case *CellRefNode:
			cells = append(cells, n.Ref.ToSimpleCellAddress(base))
		case *RangeNode:
			ranges = append(ranges, n.Resolve(base))
		}
	})
	return cells, ranges
}

// isVolatileAST reports whether the formula calls a volatile function.
func isVolatileAST(ast ASTNode) bool {
	volatile := false
	walkAST(ast, func(node ASTNode) {
		if fn, ok := node.(*FunctionCallNode); ok && fn.Function.IsVolatile() {
			volatile = true
		}
	})
	return volatile
}
