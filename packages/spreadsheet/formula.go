package spreadsheet

import "sort"

// ASTKey represents a normalized AST used as a key for formula deduplication.
// References are stored relative to the formula, so a formula filled down a
// column has the same key in every row.
type ASTKey string

// FormulaTable stores formulas centrally and tracks which vertices use them
// and which worksheets they reference.
type FormulaTable struct {
	// core formula storage

	astIndex  map[ASTKey]uint32  // normalized AST -> formula ID
	astCache  map[uint32]ASTNode // formula ID -> shared parsed AST
	refCounts map[uint32]int     // formula ID -> reference count

	// vertex tracking

	verticesUsingFormula map[uint32]map[VertexID]struct{} // formula ID -> vertices using it
	formulaAtVertex      map[VertexID]uint32              // vertex -> formula ID (reverse index)

	// worksheet tracking

	referencedWorksheets map[uint32]map[uint32]struct{} // formula ID -> worksheets it references
	formulasReferencing  map[uint32]map[uint32]struct{} // worksheet ID -> formula IDs referencing it

	nextID uint32
}

// NewFormulaTable creates a new formula table
func NewFormulaTable() *FormulaTable {
	return &FormulaTable{
		astIndex:             make(map[ASTKey]uint32),
		astCache:             make(map[uint32]ASTNode),
		refCounts:            make(map[uint32]int),
		verticesUsingFormula: make(map[uint32]map[VertexID]struct{}),
		formulaAtVertex:      make(map[VertexID]uint32),
		referencedWorksheets: make(map[uint32]map[uint32]struct{}),
		formulasReferencing:  make(map[uint32]map[uint32]struct{}),
		nextID:               1, // start at 1, reserve 0 for no formula
	}
}

func normalizeAST(ast ASTNode) ASTKey {
	if ast == nil {
		return ""
	}
	return ASTKey(ast.ToString())
}

// InternFormula records that vertex uses ast and returns the formula ID plus
// the shared AST for it. A vertex holds at most one formula; interning a new
// one releases the old.
func (ft *FormulaTable) InternFormula(ast ASTNode, vertex VertexID) (uint32, ASTNode) {
	key := normalizeAST(ast)

	id, exists := ft.astIndex[key]
	if !exists {
		id = ft.nextID
		ft.nextID++
		ft.astIndex[key] = id
		ft.astCache[id] = ast
		ft.trackWorksheetReferences(id, ast)
	}

	if old, ok := ft.formulaAtVertex[vertex]; ok {
		if old == id {
			return id, ft.astCache[id]
		}
		ft.Release(vertex)
	}

	ft.refCounts[id]++
	if ft.verticesUsingFormula[id] == nil {
		ft.verticesUsingFormula[id] = make(map[VertexID]struct{})
	}
	ft.verticesUsingFormula[id][vertex] = struct{}{}
	ft.formulaAtVertex[vertex] = id
	return id, ft.astCache[id]
}

// Release drops the vertex's reference to its formula. returns true if the
// formula was removed due to zero references.
func (ft *FormulaTable) Release(vertex VertexID) bool {
	id, ok := ft.formulaAtVertex[vertex]
	if !ok {
		return false
	}
	delete(ft.formulaAtVertex, vertex)
	if vertices, exists := ft.verticesUsingFormula[id]; exists {
		delete(vertices, vertex)
		if len(vertices) == 0 {
			delete(ft.verticesUsingFormula, id)
		}
	}

	ft.refCounts[id]--
	if ft.refCounts[id] <= 0 {
		ft.removeFormula(id)
		return true
	}
	return false
}

func (ft *FormulaTable) removeFormula(id uint32) {
	if ast, exists := ft.astCache[id]; exists {
		delete(ft.astIndex, normalizeAST(ast))
	}
	for sheet := range ft.referencedWorksheets[id] {
		if formulas, ok := ft.formulasReferencing[sheet]; ok {
			delete(formulas, id)
			if len(formulas) == 0 {
				delete(ft.formulasReferencing, sheet)
			}
		}
	}
	delete(ft.astCache, id)
	delete(ft.refCounts, id)
	delete(ft.verticesUsingFormula, id)
	delete(ft.referencedWorksheets, id)
}

func (ft *FormulaTable) trackWorksheetReferences(id uint32, ast ASTNode) {
	walkAST(ast, func(node ASTNode) {
		var sheet uint32
		switch n := node.(type) {
		case *CellRefNode:
			sheet = n.Ref.Sheet
		case *RangeNode:
			sheet = n.Start.Sheet
		default:
			return
		}
		if ft.referencedWorksheets[id] == nil {
			ft.referencedWorksheets[id] = make(map[uint32]struct{})
		}
		ft.referencedWorksheets[id][sheet] = struct{}{}
		if ft.formulasReferencing[sheet] == nil {
			ft.formulasReferencing[sheet] = make(map[uint32]struct{})
		}
		ft.formulasReferencing[sheet][id] = struct{}{}
	})
}

// GetAST retrieves the shared AST for a formula ID
func (ft *FormulaTable) GetAST(id uint32) (ASTNode, bool) {
	ast, exists := ft.astCache[id]
	return ast, exists
}

// GetFormulaAtVertex returns the formula ID used by a vertex
func (ft *FormulaTable) GetFormulaAtVertex(vertex VertexID) (uint32, bool) {
	id, exists := ft.formulaAtVertex[vertex]
	return id, exists
}

// GetReferenceCount returns the reference count for a formula
func (ft *FormulaTable) GetReferenceCount(id uint32) int {
	return ft.refCounts[id]
}

// GetReferencedWorksheets returns the IDs of worksheets referenced by a
// formula, ascending.
func (ft *FormulaTable) GetReferencedWorksheets(id uint32) []uint32 {
	out := make([]uint32, 0, len(ft.referencedWorksheets[id]))
	for sheet := range ft.referencedWorksheets[id] {
		out = append(out, sheet)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// VerticesReferencingWorksheet returns every vertex whose formula references
// the worksheet.
func (ft *FormulaTable) VerticesReferencingWorksheet(sheet uint32) []VertexID {
	var out []VertexID
	for id := range ft.formulasReferencing[sheet] {
		for vertex := range ft.verticesUsingFormula[id] {
			out = append(out, vertex)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Count returns the number of unique formulas
func (ft *FormulaTable) Count() int {
	return len(ft.astIndex)
}

// TotalReferences returns the total number of references across all formulas
func (ft *FormulaTable) TotalReferences() int {
	total := 0
	for _, count := range ft.refCounts {
		total += count
	}
	return total
}
