package spreadsheet

import (
	"iter"
	"sort"
)

// RangeMapping indexes range vertices by exact bounds and by start corner.
type RangeMapping struct {
	graph    *DependencyGraph
	byBounds map[AbsoluteCellRange]VertexID
	byStart  map[SimpleCellAddress]map[VertexID]struct{}
}

func NewRangeMapping(graph *DependencyGraph) *RangeMapping {
	return &RangeMapping{
		graph:    graph,
		byBounds: make(map[AbsoluteCellRange]VertexID),
		byStart:  make(map[SimpleCellAddress]map[VertexID]struct{}),
	}
}

// GetRange returns the vertex of exactly this range, if materialized.
func (rm *RangeMapping) GetRange(start, end SimpleCellAddress) (*Vertex, bool) {
	id, ok := rm.byBounds[AbsoluteCellRange{Start: start, End: end}]
	if !ok {
		return nil, false
	}
	return rm.graph.GetVertex(id)
}

func (rm *RangeMapping) SetRange(v *Vertex) {
	rm.byBounds[v.rng] = v.id
	if rm.byStart[v.rng.Start] == nil {
		rm.byStart[v.rng.Start] = make(map[VertexID]struct{})
	}
	rm.byStart[v.rng.Start][v.id] = struct{}{}
}

func (rm *RangeMapping) RemoveRange(v *Vertex) {
	if id, ok := rm.byBounds[v.rng]; ok && id == v.id {
		delete(rm.byBounds, v.rng)
	}
	if set := rm.byStart[v.rng.Start]; set != nil {
		delete(set, v.id)
		if len(set) == 0 {
			delete(rm.byStart, v.rng.Start)
		}
	}
}

func (rm *RangeMapping) Count() int {
	return len(rm.byBounds)
}

// isPrefix reports whether sub is a strictly smaller range sharing target's
// start corner and either its width or its height, and returns the residual.
func isPrefix(sub, target AbsoluteCellRange) (AbsoluteCellRange, bool) {
	if sub.Start != target.Start || sub == target || !target.ContainsRange(sub) {
		return AbsoluteCellRange{}, false
	}
	switch {
	case sub.End.Col == target.End.Col && sub.End.Row < target.End.Row:
		return AbsoluteCellRange{
			Start: SimpleCellAddress{Sheet: target.Sheet(), Col: target.Start.Col, Row: sub.End.Row + 1},
			End:   target.End,
		}, true
	case sub.End.Row == target.End.Row && sub.End.Col < target.End.Col:
		return AbsoluteCellRange{
			Start: SimpleCellAddress{Sheet: target.Sheet(), Col: sub.End.Col + 1, Row: target.Start.Row},
			End:   target.End,
		}, true
	}
	return AbsoluteCellRange{}, false
}

// findPrefix returns the largest materialized prefix of target accepted by
// keep, together with the residual rectangle.
func (rm *RangeMapping) findPrefix(target AbsoluteCellRange, keep func(*Vertex) bool) (*Vertex, []AbsoluteCellRange, bool) {
	var best *Vertex
	var bestResidual AbsoluteCellRange
	for id := range rm.byStart[target.Start] {
		v, ok := rm.graph.GetVertex(id)
		if !ok {
			continue
		}
		residual, ok := isPrefix(v.rng, target)
		if !ok || !keep(v) {
			continue
		}
		if best == nil || v.rng.Size() > best.rng.Size() || (v.rng.Size() == best.rng.Size() && v.id < best.id) {
			best, bestResidual = v, residual
		}
	}
	if best == nil {
		return nil, []AbsoluteCellRange{target}, false
	}
	return best, []AbsoluteCellRange{bestResidual}, true
}

// FindContainedSubRange returns the largest materialized sub-range of target
// whose vertex has a direct edge to target's vertex, plus the cells of target
// it does not cover. Without a usable sub-range the residual is the whole
// target.
func (rm *RangeMapping) FindContainedSubRange(target *Vertex) (*Vertex, []AbsoluteCellRange, bool) {
	return rm.findPrefix(target.rng, func(v *Vertex) bool {
		return rm.graph.HasEdge(v.id, target.id)
	})
}

// FindLargestPrefix is FindContainedSubRange without the edge requirement.
// It is used to wire a range vertex when it is first materialized.
func (rm *RangeMapping) FindLargestPrefix(target AbsoluteCellRange) (*Vertex, []AbsoluteCellRange, bool) {
	return rm.findPrefix(target, func(*Vertex) bool { return true })
}

// RangesOnSheet returns the range vertices of a sheet in a stable order.
func (rm *RangeMapping) RangesOnSheet(sheet uint32) []*Vertex {
	var out []*Vertex
	for r, id := range rm.byBounds {
		if r.Sheet() != sheet {
			continue
		}
		if v, ok := rm.graph.GetVertex(id); ok {
			out = append(out, v)
		}
	}
	sortRangeVertices(out)
	return out
}

// RangesOverlapping returns the range vertices intersecting r.
func (rm *RangeMapping) RangesOverlapping(r AbsoluteCellRange) []*Vertex {
	var out []*Vertex
	for bounds, id := range rm.byBounds {
		if !bounds.DoesOverlap(r) {
			continue
		}
		if v, ok := rm.graph.GetVertex(id); ok {
			out = append(out, v)
		}
	}
	sortRangeVertices(out)
	return out
}

func sortRangeVertices(vs []*Vertex) {
	sort.Slice(vs, func(i, j int) bool {
		a, b := vs[i].rng, vs[j].rng
		if a.Start != b.Start {
			if a.Start.Row != b.Start.Row {
				return a.Start.Row < b.Start.Row
			}
			return a.Start.Col < b.Start.Col
		}
		if a.Size() != b.Size() {
			return a.Size() < b.Size()
		}
		return vs[i].id < vs[j].id
	})
}

// Range is a rectangular argument handed to functions. Values are read
// through the evaluation state so they see this cycle's results.
type Range interface {
	Bounds() AbsoluteCellRange
	IterateValues() iter.Seq[Primitive]
}

// CellRange implements Range for lazy cell iteration
type CellRange struct {
	bounds AbsoluteCellRange
	state  EvaluationState
}

func NewCellRange(bounds AbsoluteCellRange, state EvaluationState) *CellRange {
	return &CellRange{bounds: bounds, state: state}
}

func (r *CellRange) Bounds() AbsoluteCellRange {
	return r.bounds
}

// IterateValues returns an iterator over cell values in the range, row-major
func (r *CellRange) IterateValues() iter.Seq[Primitive] {
	return func(yield func(Primitive) bool) {
		for addr := range r.bounds.Addresses() {
			if !yield(r.state.CellValue(addr)) {
				return
			}
		}
	}
}

// scalarRange wraps a single value so functions can treat scalars as 1x1
// arrays.
type scalarRange struct {
	value Primitive
}

func (r scalarRange) Bounds() AbsoluteCellRange {
	return AbsoluteCellRange{}
}

func (r scalarRange) IterateValues() iter.Seq[Primitive] {
	return func(yield func(Primitive) bool) {
		yield(r.value)
	}
}
