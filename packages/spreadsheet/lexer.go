package spreadsheet

import (
	"fmt"
	"strings"

	"github.com/xuri/efp"
)

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenEquals
	TokenNumber
	TokenString
	TokenBoolean
	TokenErrorLiteral
	TokenCell
	TokenRange
	TokenFunction
	TokenUnaryPrefixOp
	TokenUnaryPostfixOp
	TokenBinaryOp
	TokenComma
	TokenLeftParen
	TokenRightParen
	TokenIdentifier
)

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpPower
	BinOpConcat
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
)

var binaryOpText = map[BinaryOp]string{
	BinOpAdd:          "+",
	BinOpSubtract:     "-",
	BinOpMultiply:     "*",
	BinOpDivide:       "/",
	BinOpPower:        "^",
	BinOpConcat:       "&",
	BinOpEqual:        "=",
	BinOpNotEqual:     "<>",
	BinOpLess:         "<",
	BinOpLessEqual:    "<=",
	BinOpGreater:      ">",
	BinOpGreaterEqual: ">=",
}

func (op BinaryOp) String() string {
	return binaryOpText[op]
}

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
	UnaryOpPercent
)

// Token represents a lexical token. Pos is the index of the token in the
// stream.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// TokenState represents the lexer state for validation
type TokenState int

const (
	StateStart TokenState = iota
	StateAfterValue
	StateAfterOperator
	StateAfterLeftParen
	StateAfterRightParen
	StateAfterComma
	StateAfterFunction
)

var valueTokens = map[TokenType]bool{
	TokenNumber:        true,
	TokenString:        true,
	TokenBoolean:       true,
	TokenErrorLiteral:  true,
	TokenCell:          true,
	TokenRange:         true,
	TokenFunction:      true,
	TokenIdentifier:    true,
	TokenLeftParen:     true,
	TokenUnaryPrefixOp: true,
}

// tokenTransitions maps the current state to valid next token types
var tokenTransitions = map[TokenState]map[TokenType]bool{
	StateStart:         valueTokens,
	StateAfterOperator: valueTokens,
	StateAfterComma:    valueTokens,
	StateAfterValue: {
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true,
		TokenRightParen:     true,
		TokenComma:          true,
		TokenEOF:            true,
	},
	StateAfterRightParen: {
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true,
		TokenRightParen:     true,
		TokenComma:          true,
		TokenEOF:            true,
	},
	StateAfterLeftParen: mergeTokenSets(valueTokens, map[TokenType]bool{
		TokenRightParen: true, // empty parens for arg-less functions like PI()
	}),
	StateAfterFunction: {
		TokenLeftParen: true,
	},
}

func mergeTokenSets(sets ...map[TokenType]bool) map[TokenType]bool {
	out := make(map[TokenType]bool)
	for _, s := range sets {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}

// Lexer tokenizes formulas with efp and maps its operand/operator stream onto
// the token kinds the parser understands.
type Lexer struct {
	input      string
	state      TokenState
	parenDepth int
	tokens     []Token
}

// NewLexer creates a new lexer for the given formula input, which must start
// with '='.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, state: StateStart}
}

// Tokenize tokenizes the entire input.
func (l *Lexer) Tokenize() ([]Token, error) {
	if !strings.HasPrefix(l.input, "=") {
		return nil, fmt.Errorf("formula must start with '='")
	}
	if strings.Count(l.input, `"`)%2 != 0 {
		return nil, fmt.Errorf("unclosed string literal")
	}
	l.tokens = append(l.tokens, Token{Type: TokenEquals, Value: "=", Pos: 0})

	ps := efp.ExcelParser()
	for _, et := range ps.Parse(l.input) {
		toks, err := l.convert(et)
		if err != nil {
			return nil, err
		}
		for _, tok := range toks {
			if err := l.push(tok); err != nil {
				return nil, err
			}
		}
	}
	if err := l.push(Token{Type: TokenEOF}); err != nil {
		return nil, err
	}

	if l.parenDepth > 0 {
		return nil, fmt.Errorf("unbalanced parentheses: missing closing parenthesis")
	}
	return l.tokens, nil
}

func (l *Lexer) push(tok Token) error {
	if !tokenTransitions[l.state][tok.Type] {
		if tok.Type == TokenEOF {
			return fmt.Errorf("unexpected end of formula")
		}
		return fmt.Errorf("unexpected token: %s", tok.Value)
	}
	if tok.Type == TokenRightParen && l.parenDepth == 0 {
		return fmt.Errorf("unbalanced parentheses: too many closing parentheses")
	}
	tok.Pos = len(l.tokens)
	l.tokens = append(l.tokens, tok)
	l.updateState(tok.Type)
	return nil
}

func (l *Lexer) updateState(t TokenType) {
	switch t {
	case TokenNumber, TokenString, TokenBoolean, TokenErrorLiteral, TokenCell, TokenRange, TokenIdentifier, TokenUnaryPostfixOp:
		l.state = StateAfterValue
	case TokenFunction:
		l.state = StateAfterFunction
	case TokenBinaryOp, TokenUnaryPrefixOp:
		l.state = StateAfterOperator
	case TokenLeftParen:
		l.parenDepth++
		l.state = StateAfterLeftParen
	case TokenRightParen:
		l.parenDepth--
		l.state = StateAfterRightParen
	case TokenComma:
		l.state = StateAfterComma
	}
}

// convert maps one efp token to zero or more parser tokens.
func (l *Lexer) convert(et efp.Token) ([]Token, error) {
	switch et.TType {
	case efp.TokenTypeOperand:
		switch et.TSubType {
		case efp.TokenSubTypeNumber:
			return []Token{{Type: TokenNumber, Value: et.TValue}}, nil
		case efp.TokenSubTypeText:
			return []Token{{Type: TokenString, Value: et.TValue}}, nil
		case efp.TokenSubTypeLogical:
			return []Token{{Type: TokenBoolean, Value: strings.ToUpper(et.TValue)}}, nil
		case efp.TokenSubTypeError:
			return []Token{{Type: TokenErrorLiteral, Value: strings.ToUpper(et.TValue)}}, nil
		default:
			tok := classifyReference(et.TValue)
			if tok.Type == TokenIdentifier && strings.Contains(et.TValue, ":") {
				return nil, fmt.Errorf("invalid reference: %s", et.TValue)
			}
			return []Token{tok}, nil
		}
	case efp.TokenTypeFunction:
		if et.TSubType == efp.TokenSubTypeStart {
			if strings.EqualFold(et.TValue, "ARRAY") || strings.EqualFold(et.TValue, "ARRAYROW") {
				return nil, fmt.Errorf("array literals are not supported")
			}
			return []Token{
				{Type: TokenFunction, Value: strings.ToUpper(et.TValue)},
				{Type: TokenLeftParen, Value: "("},
			}, nil
		}
		return []Token{{Type: TokenRightParen, Value: ")"}}, nil
	case efp.TokenTypeSubexpression:
		if et.TSubType == efp.TokenSubTypeStart {
			return []Token{{Type: TokenLeftParen, Value: "("}}, nil
		}
		return []Token{{Type: TokenRightParen, Value: ")"}}, nil
	case efp.TokenTypeArgument:
		return []Token{{Type: TokenComma, Value: ","}}, nil
	case efp.TokenTypeOperatorPrefix:
		return []Token{{Type: TokenUnaryPrefixOp, Value: et.TValue}}, nil
	case efp.TokenTypeOperatorPostfix:
		return []Token{{Type: TokenUnaryPostfixOp, Value: et.TValue}}, nil
	case efp.TokenTypeOperatorInfix:
		if et.TSubType == efp.TokenSubTypeIntersection || et.TSubType == efp.TokenSubTypeUnion {
			return nil, fmt.Errorf("range operator %q is not supported", et.TValue)
		}
		return []Token{{Type: TokenBinaryOp, Value: et.TValue}}, nil
	case efp.TokenTypeWhitespace, efp.TokenTypeNoop:
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected token: %s", et.TValue)
}

// classifyReference decides whether an operand is a cell, a range or some
// other identifier.
func classifyReference(value string) Token {
	_, ref := splitSheetPrefix(value)
	if parts := strings.Split(ref, ":"); len(parts) == 2 {
		if _, _, _, _, err := parseA1(parts[0]); err == nil {
			if _, _, _, _, err := parseA1(parts[1]); err == nil {
				return Token{Type: TokenRange, Value: value}
			}
		}
	}
	if _, _, _, _, err := parseA1(ref); err == nil {
		return Token{Type: TokenCell, Value: value}
	}
	return Token{Type: TokenIdentifier, Value: value}
}
