package spreadsheet

import (
	"strconv"
	"strings"
)

type criterionOp uint8

const (
	critEqual criterionOp = iota
	critNotEqual
	critLess
	critLessEqual
	critGreater
	critGreaterEqual
)

// Criterion is a parsed condition such as ">=5", "<>x" or 7, as taken by the
// *IFS functions.
type Criterion struct {
	op      criterionOp
	number  float64
	text    string
	numeric bool
	boolean *bool
}

var criterionPrefixes = []struct {
	prefix string
	op     criterionOp
}{
	// two-character operators first
	{"<>", critNotEqual},
	{">=", critGreaterEqual},
	{"<=", critLessEqual},
	{"<", critLess},
	{">", critGreater},
	{"=", critEqual},
}

// ParseCriterion builds a Criterion from a function argument. It returns
// false when the argument cannot be a criterion.
func ParseCriterion(arg Primitive) (Criterion, bool) {
	switch v := arg.(type) {
	case float64:
		return Criterion{op: critEqual, number: v, numeric: true}, true
	case bool:
		return Criterion{op: critEqual, boolean: &v}, true
	case nil:
		return Criterion{op: critEqual, number: 0, numeric: true}, true
	case string:
		return parseCriterionText(v)
	}
	return Criterion{}, false
}

func parseCriterionText(s string) (Criterion, bool) {
	c := Criterion{op: critEqual}
	operand := s
	for _, p := range criterionPrefixes {
		if strings.HasPrefix(s, p.prefix) {
			c.op = p.op
			operand = s[len(p.prefix):]
			break
		}
	}
	if strings.ContainsAny(operand[:min(1, len(operand))], "<>=") {
		return Criterion{}, false
	}
	if n, err := strconv.ParseFloat(strings.TrimSpace(operand), 64); err == nil {
		c.number, c.numeric = n, true
		return c, true
	}
	switch strings.ToUpper(operand) {
	case "TRUE", "FALSE":
		b := strings.EqualFold(operand, "TRUE")
		c.boolean = &b
		return c, true
	}
	// text compares case-insensitively
	c.text = strings.ToLower(operand)
	return c, true
}

// Matches reports whether a cell value satisfies the criterion. Errors never
// match.
func (c Criterion) Matches(value Primitive) bool {
	if _, isErr := value.(*SpreadsheetError); isErr {
		return false
	}
	switch {
	case c.numeric:
		n, ok := value.(float64)
		if !ok {
			return c.op == critNotEqual
		}
		return c.compare(compareFloats(n, c.number))
	case c.boolean != nil:
		b, ok := value.(bool)
		if !ok {
			return c.op == critNotEqual
		}
		return c.compare(compareBools(b, *c.boolean))
	}

	switch v := value.(type) {
	case nil:
		if c.text == "" {
			return c.op == critEqual
		}
		return c.op == critNotEqual
	case string:
		return c.compare(strings.Compare(strings.ToLower(v), c.text))
	}
	return c.op == critNotEqual
}

func (c Criterion) compare(cmp int) bool {
	switch c.op {
	case critEqual:
		return cmp == 0
	case critNotEqual:
		return cmp != 0
	case critLess:
		return cmp < 0
	case critLessEqual:
		return cmp <= 0
	case critGreater:
		return cmp > 0
	case critGreaterEqual:
		return cmp >= 0
	}
	return false
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}
