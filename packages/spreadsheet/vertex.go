package spreadsheet

import "sync"

// VertexID identifies a vertex in the graph arena. 0 is never assigned.
type VertexID uint32

type VertexKind uint8

const (
	VertexEmpty VertexKind = iota
	VertexValue
	VertexFormula
	VertexRange
)

func (k VertexKind) String() string {
	switch k {
	case VertexEmpty:
		return "empty"
	case VertexValue:
		return "value"
	case VertexFormula:
		return "formula"
	case VertexRange:
		return "range"
	}
	return "unknown"
}

// Vertex is a node of the dependency graph. Cell vertices carry an address,
// range vertices a range. Identity is the ID, so a cell keeps its vertex when
// its content or position changes.
type Vertex struct {
	id      VertexID
	kind    VertexKind
	address SimpleCellAddress
	rng     AbsoluteCellRange

	value    Primitive
	computed bool

	formula *formulaState
	cache   *aggregateCache
}

// formulaState is the AST of a formula cell together with the address it is
// relative to and the log version it was last brought up to date at.
type formulaState struct {
	ast     ASTNode
	base    SimpleCellAddress
	version uint64
	id      uint32 // FormulaTable ID
	selfRef bool
}

// aggregateCache holds one partial aggregate per function name.
type aggregateCache struct {
	mu     sync.Mutex
	values map[string]any
}

func (c *aggregateCache) clear() {
	c.mu.Lock()
	c.values = nil
	c.mu.Unlock()
}

func newCellVertex(kind VertexKind, addr SimpleCellAddress) *Vertex {
	return &Vertex{kind: kind, address: addr}
}

func newRangeVertex(r AbsoluteCellRange) *Vertex {
	return &Vertex{kind: VertexRange, rng: r, cache: &aggregateCache{}}
}

func (v *Vertex) ID() VertexID               { return v.id }
func (v *Vertex) Kind() VertexKind           { return v.kind }
func (v *Vertex) Address() SimpleCellAddress { return v.address }
func (v *Vertex) Range() AbsoluteCellRange   { return v.rng }
func (v *Vertex) Value() Primitive           { return v.value }
func (v *Vertex) IsCell() bool               { return v.kind != VertexRange }
func (v *Vertex) IsFormula() bool            { return v.kind == VertexFormula }
func (v *Vertex) formulaVersion() (uint64, bool) {
	if v.formula == nil {
		return 0, false
	}
	return v.formula.version, true
}

// sortKey orders vertices by sheet, row, column; ranges by their start corner.
func (v *Vertex) sortKey() SimpleCellAddress {
	if v.kind == VertexRange {
		return v.rng.Start
	}
	return v.address
}
