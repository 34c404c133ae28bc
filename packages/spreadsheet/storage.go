package spreadsheet

import (
	"errors"
	"sort"
)

// Storage holds references to the shared tables every engine operation
// works on.
type Storage struct {
	worksheets *WorksheetTable
	formulas   *FormulaTable
	graph      *DependencyGraph
	ranges     *RangeMapping
	transforms *LazyTransformationService
}

func NewStorage() *Storage {
	graph := NewDependencyGraph()
	return &Storage{
		worksheets: NewWorksheetTable(),
		formulas:   NewFormulaTable(),
		graph:      graph,
		ranges:     NewRangeMapping(graph),
		transforms: NewLazyTransformationService(),
	}
}

func (st *Storage) vertexAt(addr SimpleCellAddress) (*Vertex, bool) {
	id, ok := st.worksheets.VertexAt(addr)
	if !ok {
		return nil, false
	}
	return st.graph.GetVertex(id)
}

// cellVertex returns the vertex at addr, creating an empty placeholder if
// there is none. It fails for invalid addresses and undefined sheets.
func (st *Storage) cellVertex(addr SimpleCellAddress) (*Vertex, bool) {
	if !addr.Valid() {
		return nil, false
	}
	ws, ok := st.worksheets.GetWorksheet(addr.Sheet)
	if !ok {
		return nil, false
	}
	if id, ok := ws.Get(addr.Col, addr.Row); ok {
		return st.graph.GetVertex(id)
	}
	v := newCellVertex(VertexEmpty, addr)
	st.graph.AddVertex(v)
	ws.Set(addr.Col, addr.Row, v.id)
	return v, true
}

// rangeVertex returns the vertex for r, materializing it on first use. A new
// range depends on its largest materialized prefix plus the residual cells.
func (st *Storage) rangeVertex(r AbsoluteCellRange) (*Vertex, bool) {
	if !r.Start.Valid() || !st.worksheets.IsWorksheetDefined(r.Sheet()) {
		return nil, false
	}
	if v, ok := st.ranges.GetRange(r.Start, r.End); ok {
		return v, true
	}
	v := newRangeVertex(r)
	st.graph.AddVertex(v)
	st.ranges.SetRange(v)
	st.wireRange(v)
	st.graph.MarkDirty(v.id)
	return v, true
}

func (st *Storage) wireRange(v *Vertex) {
	prefix, residual, ok := st.ranges.FindLargestPrefix(v.rng)
	if ok {
		st.addDependency(prefix.id, v.id)
	}
	for _, r := range residual {
		for addr := range r.Addresses() {
			if c, ok := st.cellVertex(addr); ok {
				st.addDependency(c.id, v.id)
			}
		}
	}
}

// rewireRange drops every dependency of a range vertex and wires it again
// from what is currently stored inside its bounds.
func (st *Storage) rewireRange(v *Vertex) []VertexID {
	old := st.graph.ClearDependencies(v.id)
	st.wireRange(v)
	return old
}

// addDependency inserts from -> to. An edge that would close a cycle is
// linked anyway so the cycle shows up during ordering; it reports whether
// that happened.
func (st *Storage) addDependency(from, to VertexID) bool {
	err := st.graph.AddEdge(from, to)
	if errors.Is(err, ErrCircularDependency) {
		_ = st.graph.Link(from, to)
		return true
	}
	return false
}

// deriveDependencies replaces the dependency edges of a formula vertex with
// the ones its current AST implies. New dependencies are wired before the
// old ones are dropped so shared prefix ranges survive the swap. It returns
// the number of edges that closed a cycle.
func (st *Storage) deriveDependencies(v *Vertex) int {
	cells, ranges := collectReferences(v.formula.ast, v.formula.base)
	v.formula.selfRef = false

	want := make(map[VertexID]struct{})
	for _, addr := range cells {
		if addr == v.address {
			v.formula.selfRef = true
			continue
		}
		if c, ok := st.cellVertex(addr); ok {
			want[c.id] = struct{}{}
		}
	}
	for _, r := range ranges {
		if rv, ok := st.rangeVertex(r); ok {
			want[rv.id] = struct{}{}
		}
	}

	old := st.graph.Dependencies(v.id)
	for _, id := range old {
		if _, keep := want[id]; !keep {
			st.graph.RemoveEdge(id, v.id)
		}
	}

	ids := make([]VertexID, 0, len(want))
	for id := range want {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	refused := 0
	for _, id := range ids {
		if st.addDependency(id, v.id) {
			refused++
		}
	}

	if isVolatileAST(v.formula.ast) {
		st.graph.MarkVolatile(v.id)
	} else {
		st.graph.UnmarkVolatile(v.id)
	}
	st.collectGarbage(old...)
	return refused
}

// setFormula stores ast on v, interning it in the formula table.
func (st *Storage) setFormula(v *Vertex, ast ASTNode, base SimpleCellAddress, version uint64) {
	id, shared := st.formulas.InternFormula(ast, v.id)
	v.kind = VertexFormula
	v.formula = &formulaState{ast: shared, base: base, version: version, id: id}
}

// clearFormula turns a formula vertex back into a plain cell and drops its
// dependencies.
func (st *Storage) clearFormula(v *Vertex) {
	if v.formula == nil {
		return
	}
	st.formulas.Release(v.id)
	v.formula = nil
	st.graph.UnmarkVolatile(v.id)
	old := st.graph.ClearDependencies(v.id)
	st.collectGarbage(old...)
}

// refreshFormula replays the transformation log against a formula that is
// behind. It reports whether the AST changed.
func (st *Storage) refreshFormula(v *Vertex) bool {
	if v.formula == nil || v.formula.version >= st.transforms.Version() {
		return false
	}
	ast, base, version := st.transforms.ApplyTransformations(v.formula.ast, v.formula.base, v.formula.version)
	changed := ast != v.formula.ast
	if changed {
		st.setFormula(v, ast, base, version)
	} else {
		v.formula.base = base
		v.formula.version = version
	}
	return changed
}

// collectGarbage removes placeholders and ranges nobody depends on anymore,
// following their own dependencies.
func (st *Storage) collectGarbage(ids ...VertexID) {
	stack := append([]VertexID(nil), ids...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		v, ok := st.graph.GetVertex(id)
		if !ok || (v.kind != VertexEmpty && v.kind != VertexRange) || st.graph.HasDependents(id) {
			continue
		}
		stack = append(stack, st.graph.Dependencies(id)...)
		st.removeVertex(v)
	}
}

// removeVertex deletes a vertex from every table.
func (st *Storage) removeVertex(v *Vertex) {
	switch v.kind {
	case VertexRange:
		st.ranges.RemoveRange(v)
	default:
		if ws, ok := st.worksheets.GetWorksheet(v.address.Sheet); ok {
			if id, ok := ws.Get(v.address.Col, v.address.Row); ok && id == v.id {
				ws.Remove(v.address.Col, v.address.Row)
			}
		}
		st.formulas.Release(v.id)
	}
	_ = st.graph.RemoveVertex(v.id)
}

// oldestFormulaVersion is the lowest log version any formula still needs.
func (st *Storage) oldestFormulaVersion() uint64 {
	oldest := st.transforms.Version()
	for _, v := range st.graph.vertices {
		if version, ok := v.formulaVersion(); ok && version < oldest {
			oldest = version
		}
	}
	return oldest
}
