package spreadsheet

import (
	"strconv"
	"strings"
)

// Unparse renders an AST back to formula text, including the leading '='.
// sheetName maps sheet IDs to names for sheet-qualified references.
func Unparse(ast ASTNode, base SimpleCellAddress, sheetName func(uint32) (string, bool)) string {
	var sb strings.Builder
	sb.WriteByte('=')
	u := unparser{base: base, sheetName: sheetName, sb: &sb}
	u.write(ast)
	return sb.String()
}

type unparser struct {
	base      SimpleCellAddress
	sheetName func(uint32) (string, bool)
	sb        *strings.Builder
}

func (u *unparser) write(node ASTNode) {
	switch n := node.(type) {
	case *NumberNode:
		if n.Raw != "" {
			u.sb.WriteString(n.Raw)
		} else {
			u.sb.WriteString(strconv.FormatFloat(n.Value, 'f', -1, 64))
		}
	case *StringNode:
		u.sb.WriteByte('"')
		u.sb.WriteString(strings.ReplaceAll(n.Value, `"`, `""`))
		u.sb.WriteByte('"')
	case *BooleanNode:
		u.sb.WriteString(n.ToString())
	case *ErrorNode:
		u.sb.WriteString(ErrorMapper[n.Code])
	case *NamedRangeNode:
		u.sb.WriteString(n.Name)
	case *CellRefNode:
		u.writeSheet(n.Ref.Sheet, n.SheetPrefix)
		u.writeAddress(n.Ref)
	case *RangeNode:
		u.writeSheet(n.Start.Sheet, n.SheetPrefix)
		u.writeAddress(n.Start)
		u.sb.WriteByte(':')
		u.writeAddress(n.End)
	case *BinaryOpNode:
		u.write(n.Left)
		u.sb.WriteString(n.Op.String())
		u.write(n.Right)
	case *UnaryOpNode:
		switch n.Op {
		case UnaryOpMinus:
			u.sb.WriteByte('-')
			u.write(n.Operand)
		case UnaryOpPlus:
			u.sb.WriteByte('+')
			u.write(n.Operand)
		case UnaryOpPercent:
			u.write(n.Operand)
			u.sb.WriteByte('%')
		}
	case *ParenNode:
		u.sb.WriteByte('(')
		u.write(n.Inner)
		u.sb.WriteByte(')')
	case *FunctionCallNode:
		u.sb.WriteString(n.Name)
		u.sb.WriteByte('(')
		for i, arg := range n.Args {
			if i > 0 {
				u.sb.WriteByte(',')
			}
			u.write(arg)
		}
		u.sb.WriteByte(')')
	}
}

// writeSheet emits "Name!" when the reference was written with a sheet or
// points at a sheet other than the formula's own.
func (u *unparser) writeSheet(sheet uint32, prefixed bool) {
	if !prefixed && sheet == u.base.Sheet {
		return
	}
	name := ""
	if u.sheetName != nil {
		name, _ = u.sheetName(sheet)
	}
	u.sb.WriteString(quoteSheetName(name))
	u.sb.WriteByte('!')
}

func (u *unparser) writeAddress(ref CellAddress) {
	abs := ref.ToSimpleCellAddress(u.base)
	if ref.AbsoluteCol {
		u.sb.WriteByte('$')
	}
	u.sb.WriteString(ColumnToLetters(abs.Col))
	if ref.AbsoluteRow {
		u.sb.WriteByte('$')
	}
	u.sb.WriteString(strconv.Itoa(abs.Row + 1))
}
