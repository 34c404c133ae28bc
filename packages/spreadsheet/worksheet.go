package spreadsheet

import (
	"sort"
	"strings"
)

// WorksheetTable manages worksheet ID mappings and owns the per-sheet
// address index. Names are matched case-insensitively.
type WorksheetTable struct {
	// core name/ID mapping (for all worksheets, defined or not)

	nameToID map[string]uint32 // folded name -> ID for all worksheets
	idToName map[uint32]string // ID -> name as first written

	// worksheet definitions

	definedWorksheets map[uint32]*Worksheet // ID -> worksheet for defined worksheets

	// track undefined worksheets (referenced by a formula but not yet added,
	// or removed)

	undefinedIDs map[uint32]struct{}

	nextID uint32
}

// NewWorksheetTable creates a new worksheet table
func NewWorksheetTable() *WorksheetTable {
	return &WorksheetTable{
		nameToID:          make(map[string]uint32),
		idToName:          make(map[uint32]string),
		definedWorksheets: make(map[uint32]*Worksheet),
		undefinedIDs:      make(map[uint32]struct{}),
		nextID:            1, // start at 1, reserve 0 for no worksheet
	}
}

func foldSheetName(name string) string {
	return strings.ToLower(name)
}

// InternWorksheet returns the ID of a worksheet, defined or not. Unknown names
// get a new undefined ID so formulas can point at sheets added later.
func (wt *WorksheetTable) InternWorksheet(name string) uint32 {
	if id, exists := wt.nameToID[foldSheetName(name)]; exists {
		return id
	}
	id := wt.nextID
	wt.nameToID[foldSheetName(name)] = id
	wt.idToName[id] = name
	wt.undefinedIDs[id] = struct{}{}
	wt.nextID++
	return id
}

// DefineWorksheet defines a worksheet, reusing the interned ID when the name
// was seen before. returns the ID and false if it was already defined.
func (wt *WorksheetTable) DefineWorksheet(name string) (uint32, bool) {
	id := wt.InternWorksheet(name)
	if _, defined := wt.definedWorksheets[id]; defined {
		return id, false
	}
	delete(wt.undefinedIDs, id)
	wt.definedWorksheets[id] = NewWorksheet(id)
	return id, true
}

// UndefineWorksheet removes the definition of a worksheet. The name keeps its
// ID so later formulas and a later re-add resolve to the same sheet.
func (wt *WorksheetTable) UndefineWorksheet(id uint32) (*Worksheet, bool) {
	ws, ok := wt.definedWorksheets[id]
	if !ok {
		return nil, false
	}
	delete(wt.definedWorksheets, id)
	wt.undefinedIDs[id] = struct{}{}
	return ws, true
}

func (wt *WorksheetTable) GetWorksheet(id uint32) (*Worksheet, bool) {
	ws, ok := wt.definedWorksheets[id]
	return ws, ok
}

func (wt *WorksheetTable) IsWorksheetDefined(id uint32) bool {
	_, ok := wt.definedWorksheets[id]
	return ok
}

func (wt *WorksheetTable) GetWorksheetID(name string) (uint32, bool) {
	id, ok := wt.nameToID[foldSheetName(name)]
	return id, ok
}

func (wt *WorksheetTable) GetWorksheetName(id uint32) (string, bool) {
	name, ok := wt.idToName[id]
	return name, ok
}

// DefinedIDs returns the defined sheet IDs in ascending order.
func (wt *WorksheetTable) DefinedIDs() []uint32 {
	ids := make([]uint32, 0, len(wt.definedWorksheets))
	for id := range wt.definedWorksheets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (wt *WorksheetTable) CountDefined() int {
	return len(wt.definedWorksheets)
}

// VertexAt looks up the vertex stored at an address.
func (wt *WorksheetTable) VertexAt(addr SimpleCellAddress) (VertexID, bool) {
	ws, ok := wt.definedWorksheets[addr.Sheet]
	if !ok {
		return 0, false
	}
	return ws.Get(addr.Col, addr.Row)
}

type cellKey struct {
	col int
	row int
}

// Worksheet is the address index of one sheet: a sparse map from grid
// position to vertex.
type Worksheet struct {
	worksheetID uint32
	cells       map[cellKey]VertexID
	width       int
	height      int
}

func NewWorksheet(worksheetID uint32) *Worksheet {
	return &Worksheet{
		worksheetID: worksheetID,
		cells:       make(map[cellKey]VertexID),
	}
}

func (w *Worksheet) ID() uint32 {
	return w.worksheetID
}

func (w *Worksheet) Get(col, row int) (VertexID, bool) {
	id, ok := w.cells[cellKey{col, row}]
	return id, ok
}

func (w *Worksheet) Set(col, row int, id VertexID) {
	w.cells[cellKey{col, row}] = id
	if col+1 > w.width {
		w.width = col + 1
	}
	if row+1 > w.height {
		w.height = row + 1
	}
}

func (w *Worksheet) Remove(col, row int) {
	delete(w.cells, cellKey{col, row})
}

// Dimensions returns the used extent of the sheet. It only shrinks on
// structural edits.
func (w *Worksheet) Dimensions() (width, height int) {
	return w.width, w.height
}

func (w *Worksheet) GetTotalCells() int {
	return len(w.cells)
}

// VerticesIn returns the vertices stored inside r, row-major.
func (w *Worksheet) VerticesIn(r AbsoluteCellRange) []VertexID {
	var out []VertexID
	if r.Size() <= len(w.cells) {
		for addr := range r.Addresses() {
			if id, ok := w.cells[cellKey{addr.Col, addr.Row}]; ok {
				out = append(out, id)
			}
		}
		return out
	}
	keys := make([]cellKey, 0)
	for k := range w.cells {
		if k.col >= r.Start.Col && k.col <= r.End.Col && k.row >= r.Start.Row && k.row <= r.End.Row {
			keys = append(keys, k)
		}
	}
	sortCellKeys(keys)
	for _, k := range keys {
		out = append(out, w.cells[k])
	}
	return out
}

// AllVertices returns every vertex on the sheet, row-major.
func (w *Worksheet) AllVertices() []VertexID {
	keys := make([]cellKey, 0, len(w.cells))
	for k := range w.cells {
		keys = append(keys, k)
	}
	sortCellKeys(keys)
	out := make([]VertexID, 0, len(keys))
	for _, k := range keys {
		out = append(out, w.cells[k])
	}
	return out
}

func sortCellKeys(keys []cellKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].row != keys[j].row {
			return keys[i].row < keys[j].row
		}
		return keys[i].col < keys[j].col
	})
}

// relocation is one vertex that changed position during a remap.
type relocation struct {
	id   VertexID
	addr SimpleCellAddress
}

// remap rebuilds the index by passing every position through fn. Positions
// for which fn reports false are dropped and returned as removed.
func (w *Worksheet) remap(fn func(SimpleCellAddress) (SimpleCellAddress, bool)) (moved []relocation, removed []VertexID) {
	next := make(map[cellKey]VertexID, len(w.cells))
	w.width, w.height = 0, 0
	for k, id := range w.cells {
		from := SimpleCellAddress{Sheet: w.worksheetID, Col: k.col, Row: k.row}
		to, ok := fn(from)
		if !ok {
			removed = append(removed, id)
			continue
		}
		next[cellKey{to.Col, to.Row}] = id
		if to.Col+1 > w.width {
			w.width = to.Col + 1
		}
		if to.Row+1 > w.height {
			w.height = to.Row + 1
		}
		if to != from {
			moved = append(moved, relocation{id: id, addr: to})
		}
	}
	w.cells = next
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return moved, removed
}
