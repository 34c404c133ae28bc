package spreadsheet

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var testSheets = map[string]uint32{"Sheet1": 1, "Sheet2": 2, "Sheet3": 3, "My Sheet": 4}

func testSheetName(id uint32) (string, bool) {
	for name, sid := range testSheets {
		if sid == id {
			return name, true
		}
	}
	return "", false
}

func createTestContext(base SimpleCellAddress) *ParserContext {
	return &ParserContext{
		CurrentAddress: base,
		ResolveWorksheet: func(name string) uint32 {
			return testSheets[name]
		},
	}
}

func parseAt(t *testing.T, formula string, base SimpleCellAddress) ASTNode {
	t.Helper()
	ast, err := ParseFormula(formula, createTestContext(base))
	require.NoError(t, err, formula)
	return ast
}

func TestParserBasicFormulas(t *testing.T) {
	validFormulas := []string{
		"=1+2",
		"=A1",
		"=SUM(A1:A10)",
		"=Sheet2!A1",
		"=Sheet2!A1:B2",
		"=SUM(Sheet2!A1:A10)",
		"=Sheet2!A1 + Sheet3!B1",
		"=SUM(B2:A1)",
		"=SUM(A1:A1)",
		"=SUM(A1:Z1000)",
		"=$A$1+A$1+$A1",
		"='My Sheet'!C3*2",
		"=-A1%",
		"=2^3^2",
		`="a"&"b"`,
		"=A1<>B1",
		"=#DIV/0!",
		"=MINIFS(A1:A3,B1:B3,\">=2\")",
		`="Hello 世界"`,
		`="Test 😀 emoji"`,
		`=CONCATENATE("Hello ", "世界")`,
	}

	base := SimpleCellAddress{Sheet: 1, Col: 0, Row: 0}
	for _, formula := range validFormulas {
		t.Run(formula, func(t *testing.T) {
			_, err := ParseFormula(formula, createTestContext(base))
			require.NoError(t, err)
		})
	}
}

func TestParserInvalidFormulas(t *testing.T) {
	invalidFormulas := []string{
		"=",
		"=SUM(",
		"=A1:",
		`="hello`,
		"=1+",
		"=(1",
		"=1)",
		"1+2",
	}

	base := SimpleCellAddress{Sheet: 1}
	for _, formula := range invalidFormulas {
		t.Run(formula, func(t *testing.T) {
			_, err := ParseFormula(formula, createTestContext(base))
			require.Error(t, err)
			var se *SpreadsheetError
			require.ErrorAs(t, err, &se)
		})
	}
}

func TestParserRoundTrip(t *testing.T) {
	formulas := []string{
		"=1+2*3",
		"=(1+2)*3",
		"=A1+B2",
		"=$A$1+A$1+$A1",
		"=SUM(A1:B10)/COUNT(A1:B10)",
		"=Sheet2!A1+'My Sheet'!B2",
		"=SUM(Sheet3!A1:A5)",
		"=-A1",
		"=+A1",
		"=50%",
		`="say ""hi"""&A1`,
		"=IF(A1>=10,\"big\",\"small\")",
		"=TRUE",
		"=#REF!+1",
		"=UnknownName",
		"=NOSUCHFN(1,2)",
		"=RAND()",
		"=1.50",
	}

	bases := []SimpleCellAddress{
		{Sheet: 1, Col: 0, Row: 0},
		{Sheet: 1, Col: 5, Row: 17},
		{Sheet: 2, Col: 3, Row: 2},
	}
	for _, formula := range formulas {
		for _, base := range bases {
			t.Run(formula+"@"+base.String(), func(t *testing.T) {
				first := parseAt(t, formula, base)
				text := Unparse(first, base, testSheetName)
				second := parseAt(t, text, base)
				if diff := cmp.Diff(first, second); diff != "" {
					t.Errorf("round trip of %q through %q changed the AST (-want +got):\n%s", formula, text, diff)
				}
			})
		}
	}
}

func TestParserRelativeReferences(t *testing.T) {
	t.Run("SameKeyWhenFilledDown", func(t *testing.T) {
		a := parseAt(t, "=A1*2", SimpleCellAddress{Sheet: 1, Col: 1, Row: 0})
		b := parseAt(t, "=A2*2", SimpleCellAddress{Sheet: 1, Col: 1, Row: 1})
		require.Equal(t, a.ToString(), b.ToString())
	})

	t.Run("AbsoluteReferencesDiffer", func(t *testing.T) {
		a := parseAt(t, "=$A$1*2", SimpleCellAddress{Sheet: 1, Col: 1, Row: 0})
		b := parseAt(t, "=$A$1*2", SimpleCellAddress{Sheet: 1, Col: 1, Row: 1})
		require.Equal(t, a.ToString(), b.ToString())
		c := parseAt(t, "=A1*2", SimpleCellAddress{Sheet: 1, Col: 1, Row: 1})
		require.NotEqual(t, b.ToString(), c.ToString())
	})

	t.Run("ReversedRangeIsNormalized", func(t *testing.T) {
		base := SimpleCellAddress{Sheet: 1}
		a := parseAt(t, "=SUM(B2:A1)", base)
		b := parseAt(t, "=SUM(A1:B2)", base)
		require.Equal(t, a.ToString(), b.ToString())
	})

	t.Run("ReferencesCollected", func(t *testing.T) {
		base := SimpleCellAddress{Sheet: 1, Col: 2, Row: 2}
		cells, ranges := collectReferences(parseAt(t, "=A1+SUM(B1:B3)+Sheet2!D4", base), base)
		require.Equal(t, []SimpleCellAddress{{Sheet: 1, Col: 0, Row: 0}, {Sheet: 2, Col: 3, Row: 3}}, cells)
		require.Equal(t, []AbsoluteCellRange{{
			Start: SimpleCellAddress{Sheet: 1, Col: 1, Row: 0},
			End:   SimpleCellAddress{Sheet: 1, Col: 1, Row: 2},
		}}, ranges)
	})

	t.Run("Volatility", func(t *testing.T) {
		base := SimpleCellAddress{Sheet: 1}
		require.True(t, isVolatileAST(parseAt(t, "=1+IF(A1,NOW(),0)", base)))
		require.False(t, isVolatileAST(parseAt(t, "=SUM(A1:A3)", base)))
	})
}

func TestParserOperatorPrecedence(t *testing.T) {
	tests := []struct {
		formula string
		want    string
	}{
		{"=1+2*3", "(1+(2*3))"},
		{"=1*2+3", "((1*2)+3)"},
		{"=2^3^2", "((2^3)^2)"},
		{"=-2^2", "((-2)^2)"},
		{`="a"&1+2`, `("a"&(1+2))`},
		{"=1+2=3", "((1+2)=3)"},
		{"=1<2<>TRUE", "((1<2)<>TRUE)"},
	}
	base := SimpleCellAddress{Sheet: 1}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			require.Equal(t, tt.want, parseAt(t, tt.formula, base).ToString())
		})
	}
}
