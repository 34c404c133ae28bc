package spreadsheet

import (
	"fmt"
	"sync"
)

type TransformationKind uint8

const (
	RowInsert TransformationKind = iota + 1
	RowDelete
	ColumnInsert
	ColumnDelete
	SheetAdd
	SheetRemove
	RangeMove
)

func (k TransformationKind) String() string {
	switch k {
	case RowInsert:
		return "row_insert"
	case RowDelete:
		return "row_delete"
	case ColumnInsert:
		return "column_insert"
	case ColumnDelete:
		return "column_delete"
	case SheetAdd:
		return "sheet_add"
	case SheetRemove:
		return "sheet_remove"
	case RangeMove:
		return "range_move"
	}
	return "unknown"
}

// Transformation is one structural edit. Sheet, Start and Count describe row
// and column edits; Source and Destination describe a range move.
type Transformation struct {
	Kind        TransformationKind
	Sheet       uint32
	Start       int
	Count       int
	Source      AbsoluteCellRange
	Destination SimpleCellAddress
}

func (t Transformation) String() string {
	switch t.Kind {
	case RangeMove:
		return fmt.Sprintf("%s %s -> %s", t.Kind, t.Source, t.Destination)
	case SheetAdd, SheetRemove:
		return fmt.Sprintf("%s %d", t.Kind, t.Sheet)
	}
	return fmt.Sprintf("%s sheet=%d start=%d count=%d", t.Kind, t.Sheet, t.Start, t.Count)
}

// shiftCoordinate applies an insert or delete on one axis. It returns false
// when the coordinate lies inside a deleted span.
func shiftCoordinate(coord, start, count int, insert bool) (int, bool) {
	if insert {
		if coord >= start {
			return coord + count, true
		}
		return coord, true
	}
	switch {
	case coord < start:
		return coord, true
	case coord < start+count:
		return 0, false
	default:
		return coord - count, true
	}
}

// clipSpan applies a delete to the interval [lo, hi]. It returns false when
// nothing of the interval survives.
func clipSpan(lo, hi, start, count int) (int, int, bool) {
	last := start + count - 1
	switch {
	case hi < start:
		return lo, hi, true
	case lo > last:
		return lo - count, hi - count, true
	}
	newLo := lo
	if lo >= start {
		newLo = start
	}
	newHi := start - 1
	if hi > last {
		newHi = hi - count
	}
	if newHi < newLo {
		return 0, 0, false
	}
	return newLo, newHi, true
}

// TransformAddress maps an address through the edit. It returns false when
// the address no longer exists.
func (t Transformation) TransformAddress(a SimpleCellAddress) (SimpleCellAddress, bool) {
	switch t.Kind {
	case RowInsert, RowDelete:
		if a.Sheet != t.Sheet {
			return a, true
		}
		row, ok := shiftCoordinate(a.Row, t.Start, t.Count, t.Kind == RowInsert)
		a.Row = row
		return a, ok
	case ColumnInsert, ColumnDelete:
		if a.Sheet != t.Sheet {
			return a, true
		}
		col, ok := shiftCoordinate(a.Col, t.Start, t.Count, t.Kind == ColumnInsert)
		a.Col = col
		return a, ok
	case SheetRemove:
		return a, a.Sheet != t.Sheet
	case RangeMove:
		if t.Source.AddressInRange(a) {
			return SimpleCellAddress{
				Sheet: t.Destination.Sheet,
				Col:   a.Col - t.Source.Start.Col + t.Destination.Col,
				Row:   a.Row - t.Source.Start.Row + t.Destination.Row,
			}, true
		}
	}
	return a, true
}

// TransformRange maps a range through the edit. Inserts at or before the
// start shift the whole range, inserts inside it grow it. Deletes clip it and
// only drop it when nothing survives. A move only carries ranges that lie
// entirely inside the source.
func (t Transformation) TransformRange(r AbsoluteCellRange) (AbsoluteCellRange, bool) {
	switch t.Kind {
	case RowInsert, ColumnInsert:
		start, _ := t.TransformAddress(r.Start)
		end, _ := t.TransformAddress(r.End)
		return AbsoluteCellRange{Start: start, End: end}, true
	case RowDelete:
		if r.Sheet() != t.Sheet {
			return r, true
		}
		lo, hi, ok := clipSpan(r.Start.Row, r.End.Row, t.Start, t.Count)
		r.Start.Row, r.End.Row = lo, hi
		return r, ok
	case ColumnDelete:
		if r.Sheet() != t.Sheet {
			return r, true
		}
		lo, hi, ok := clipSpan(r.Start.Col, r.End.Col, t.Start, t.Count)
		r.Start.Col, r.End.Col = lo, hi
		return r, ok
	case SheetRemove:
		return r, r.Sheet() != t.Sheet
	case RangeMove:
		if t.Source.ContainsRange(r) {
			start, _ := t.TransformAddress(r.Start)
			end, _ := t.TransformAddress(r.End)
			return AbsoluteCellRange{Start: start, End: end}, true
		}
	}
	return r, true
}

// transformAST rewrites every reference of a formula at base and returns the
// new tree plus the formula's new address. The input tree is not modified.
func (t Transformation) transformAST(node ASTNode, base SimpleCellAddress) (ASTNode, SimpleCellAddress) {
	newBase, ok := t.TransformAddress(base)
	if !ok {
		newBase = base
	}
	return t.rewrite(node, base, newBase), newBase
}

func (t Transformation) rewrite(node ASTNode, base, newBase SimpleCellAddress) ASTNode {
	switch n := node.(type) {
	case *CellRefNode:
		target, ok := t.TransformAddress(n.Ref.ToSimpleCellAddress(base))
		if !ok {
			return &ErrorNode{Code: ErrorCodeRef}
		}
		ref := NewCellAddress(target, newBase, n.Ref.AbsoluteCol, n.Ref.AbsoluteRow)
		if ref == n.Ref {
			return n
		}
		return &CellRefNode{Ref: ref, SheetPrefix: n.SheetPrefix}
	case *RangeNode:
		r, ok := t.TransformRange(n.Resolve(base))
		if !ok {
			return &ErrorNode{Code: ErrorCodeRef}
		}
		return &RangeNode{
			Start:       NewCellAddress(r.Start, newBase, n.Start.AbsoluteCol, n.Start.AbsoluteRow),
			End:         NewCellAddress(r.End, newBase, n.End.AbsoluteCol, n.End.AbsoluteRow),
			SheetPrefix: n.SheetPrefix,
		}
	case *BinaryOpNode:
		return &BinaryOpNode{Op: n.Op, Left: t.rewrite(n.Left, base, newBase), Right: t.rewrite(n.Right, base, newBase)}
	case *UnaryOpNode:
		return &UnaryOpNode{Op: n.Op, Operand: t.rewrite(n.Operand, base, newBase)}
	case *ParenNode:
		return &ParenNode{Inner: t.rewrite(n.Inner, base, newBase)}
	case *FunctionCallNode:
		args := make([]ASTNode, len(n.Args))
		for i, arg := range n.Args {
			args[i] = t.rewrite(arg, base, newBase)
		}
		return &FunctionCallNode{Name: n.Name, Function: n.Function, Args: args}
	}
	return node
}

type logEntry struct {
	version        uint64
	transformation Transformation
}

// LazyTransformationService is the append-only log of structural edits.
// Formulas record the version they were last rewritten at and replay the
// suffix of the log when they are next needed.
type LazyTransformationService struct {
	mu      sync.RWMutex
	entries []logEntry
	version uint64
}

func NewLazyTransformationService() *LazyTransformationService {
	return &LazyTransformationService{}
}

// RecordTransformation appends an edit and returns the new version.
func (s *LazyTransformationService) RecordTransformation(t Transformation) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	s.entries = append(s.entries, logEntry{version: s.version, transformation: t})
	transformationsRecorded.WithLabelValues(t.Kind.String()).Inc()
	return s.version
}

// Version is the version of the latest recorded edit, 0 when none.
func (s *LazyTransformationService) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Len is the number of retained log entries.
func (s *LazyTransformationService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ApplyTransformations replays every edit newer than fromVersion against a
// formula at base. It returns the rewritten tree, the formula's address after
// the edits and the version the result is current at.
func (s *LazyTransformationService) ApplyTransformations(ast ASTNode, base SimpleCellAddress, fromVersion uint64) (ASTNode, SimpleCellAddress, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.version <= fromVersion {
			continue
		}
		ast, base = e.transformation.transformAST(ast, base)
	}
	return ast, base, s.version
}

// Compact drops every entry with a version at or below upTo. Callers pass the
// oldest version any live formula still needs.
func (s *LazyTransformationService) Compact(upTo uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := 0
	for i < len(s.entries) && s.entries[i].version <= upTo {
		i++
	}
	s.entries = append([]logEntry(nil), s.entries[i:]...)
	return i
}
