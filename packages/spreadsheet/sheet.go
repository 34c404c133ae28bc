package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// Config tunes a Spreadsheet. The zero value is usable.
type Config struct {
	// Parallelism bounds the number of formulas evaluated at once. Values
	// below 2 evaluate sequentially.
	Parallelism int

	// CompactEvery compacts the transformation log after this many
	// structural edits. 0 disables compaction.
	CompactEvery int

	Logger    *zap.Logger
	Clock     Clock
	Random    RandomGenerator
	Evaluator Evaluator
}

func DefaultConfig() Config {
	return Config{
		Parallelism:  1,
		CompactEvery: 64,
	}
}

// CellChange is one entry of a ChangeList.
type CellChange struct {
	Address  SimpleCellAddress
	OldValue Primitive
	NewValue Primitive
}

// ChangeList lists the cells whose values changed during one recalculation,
// in the order they were produced.
type ChangeList []CellChange

// Get returns the change recorded for addr.
func (cl ChangeList) Get(addr SimpleCellAddress) (CellChange, bool) {
	for _, c := range cl {
		if c.Address == addr {
			return c, true
		}
	}
	return CellChange{}, false
}

func (cl ChangeList) Addresses() []SimpleCellAddress {
	out := make([]SimpleCellAddress, len(cl))
	for i, c := range cl {
		out[i] = c.Address
	}
	return out
}

// Spreadsheet is the main spreadsheet class that combines storage, parsing,
// dependency tracking, and formula evaluation into a unified API. Every
// mutating call runs one recalculation and returns its ChangeList.
//
// A Spreadsheet is not safe for concurrent use. Only evaluation fans out
// internally.
type Spreadsheet struct {
	storage   *Storage
	config    Config
	logger    *zap.Logger
	evaluator Evaluator

	// literal edits not yet reported in a change list
	pending      []CellChange
	pendingIndex map[SimpleCellAddress]int

	batchDepth   int
	sinceCompact int

	cellReads   atomic.Uint64
	evaluations atomic.Uint64
}

// NewSpreadsheet creates a new spreadsheet instance with the default config
func NewSpreadsheet() *Spreadsheet {
	return NewSpreadsheetWithConfig(DefaultConfig())
}

func NewSpreadsheetWithConfig(config Config) *Spreadsheet {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Evaluator == nil {
		config.Evaluator = NewInterpreter(NewBuiltInFunctions(config.Clock, config.Random))
	}
	return &Spreadsheet{
		storage:      NewStorage(),
		config:       config,
		logger:       config.Logger,
		evaluator:    config.Evaluator,
		pendingIndex: make(map[SimpleCellAddress]int),
	}
}

// Address parses "Sheet1!B2" or "B2". Without a sheet prefix the first
// defined sheet is used.
func (s *Spreadsheet) Address(ref string) (SimpleCellAddress, error) {
	sheet, rest, err := s.resolveSheetPrefix(ref)
	if err != nil {
		return SimpleCellAddress{}, err
	}
	col, row, _, _, err := parseA1(rest)
	if err != nil {
		return SimpleCellAddress{}, wrapApplicationError(ErrInvalidAddress, "%q: %v", ref, err)
	}
	return SimpleCellAddress{Sheet: sheet, Col: col, Row: row}, nil
}

// RangeAddress parses "Sheet1!A1:B2" or "A1:B2".
func (s *Spreadsheet) RangeAddress(ref string) (AbsoluteCellRange, error) {
	sheet, rest, err := s.resolveSheetPrefix(ref)
	if err != nil {
		return AbsoluteCellRange{}, err
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 2 {
		return AbsoluteCellRange{}, wrapApplicationError(ErrInvalidAddress, "%q is not a range", ref)
	}
	var corners [2]SimpleCellAddress
	for i, part := range parts {
		col, row, _, _, err := parseA1(part)
		if err != nil {
			return AbsoluteCellRange{}, wrapApplicationError(ErrInvalidAddress, "%q: %v", ref, err)
		}
		corners[i] = SimpleCellAddress{Sheet: sheet, Col: col, Row: row}
	}
	return NewAbsoluteCellRange(corners[0], corners[1])
}

func (s *Spreadsheet) resolveSheetPrefix(ref string) (uint32, string, error) {
	name, rest := splitSheetPrefix(strings.TrimSpace(ref))
	if name == "" {
		ids := s.storage.worksheets.DefinedIDs()
		if len(ids) == 0 {
			return 0, "", wrapApplicationError(ErrSheetNotFound, "no sheets defined")
		}
		return ids[0], rest, nil
	}
	id, ok := s.SheetID(name)
	if !ok {
		return 0, "", wrapApplicationError(ErrSheetNotFound, "%q", name)
	}
	return id, rest, nil
}

// SheetID returns the ID of a defined sheet.
func (s *Spreadsheet) SheetID(name string) (uint32, bool) {
	id, ok := s.storage.worksheets.GetWorksheetID(name)
	if !ok || !s.storage.worksheets.IsWorksheetDefined(id) {
		return 0, false
	}
	return id, true
}

// SheetName returns the name of a sheet, defined or only referenced.
func (s *Spreadsheet) SheetName(id uint32) (string, bool) {
	return s.storage.worksheets.GetWorksheetName(id)
}

// Sheets returns the names of all defined sheets in creation order.
func (s *Spreadsheet) Sheets() []string {
	ids := s.storage.worksheets.DefinedIDs()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		name, _ := s.SheetName(id)
		out = append(out, name)
	}
	return out
}

// SheetDimensions returns the width and height of the area holding content.
func (s *Spreadsheet) SheetDimensions(id uint32) (width, height int, err error) {
	ws, ok := s.storage.worksheets.GetWorksheet(id)
	if !ok {
		return 0, 0, wrapApplicationError(ErrSheetNotFound, "sheet %d", id)
	}
	for _, vid := range ws.AllVertices() {
		v, ok := s.storage.graph.GetVertex(vid)
		if !ok || v.kind == VertexEmpty {
			continue
		}
		width = max(width, v.address.Col+1)
		height = max(height, v.address.Row+1)
	}
	return width, height, nil
}

// FormatAddress renders an address as "Sheet1!A1".
func (s *Spreadsheet) FormatAddress(addr SimpleCellAddress) string {
	name, _ := s.SheetName(addr.Sheet)
	return quoteSheetName(name) + "!" + ColumnToLetters(addr.Col) + strconv.Itoa(addr.Row+1)
}

// GetCellValue returns the committed value of a cell without recomputing.
func (s *Spreadsheet) GetCellValue(addr SimpleCellAddress) Primitive {
	if !s.storage.worksheets.IsWorksheetDefined(addr.Sheet) {
		return NewSpreadsheetError(ErrorCodeRef, "sheet not found")
	}
	v, ok := s.storage.vertexAt(addr)
	if !ok {
		return nil
	}
	return v.value
}

// GetCellFormula returns the formula of a cell as text, with every
// structural edit since it was written applied.
func (s *Spreadsheet) GetCellFormula(addr SimpleCellAddress) (string, bool) {
	v, ok := s.storage.vertexAt(addr)
	if !ok || v.formula == nil {
		return "", false
	}
	s.storage.refreshFormula(v)
	return Unparse(v.formula.ast, v.formula.base, s.SheetName), true
}

// CellReads is the number of cell values read by formulas so far.
func (s *Spreadsheet) CellReads() uint64 {
	return s.cellReads.Load()
}

// Evaluations is the number of formulas evaluated so far.
func (s *Spreadsheet) Evaluations() uint64 {
	return s.evaluations.Load()
}

func (s *Spreadsheet) checkAddress(addr SimpleCellAddress) error {
	if !s.storage.worksheets.IsWorksheetDefined(addr.Sheet) {
		return wrapApplicationError(ErrSheetNotFound, "sheet %d", addr.Sheet)
	}
	if !addr.Valid() {
		return wrapApplicationError(ErrInvalidAddress, "%s", addr)
	}
	return nil
}

// SetCellContents writes a literal or a formula to a cell. nil and "" clear
// the cell, strings starting with '=' are formulas and numeric strings are
// stored as numbers.
func (s *Spreadsheet) SetCellContents(ctx context.Context, addr SimpleCellAddress, raw Primitive) (ChangeList, error) {
	if err := s.checkAddress(addr); err != nil {
		return nil, err
	}
	content, err := normalizeRaw(raw)
	if err != nil {
		return nil, err
	}
	s.setCell(addr, content)
	return s.recalculate(ctx)
}

// SetSheetContents writes a rectangle of contents with its top-left corner at
// topLeft and recalculates once.
func (s *Spreadsheet) SetSheetContents(ctx context.Context, topLeft SimpleCellAddress, rows [][]Primitive) (ChangeList, error) {
	if err := s.checkAddress(topLeft); err != nil {
		return nil, err
	}
	contents := make([][]Primitive, len(rows))
	for r, row := range rows {
		contents[r] = make([]Primitive, len(row))
		for c, raw := range row {
			content, err := normalizeRaw(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", r, c, err)
			}
			contents[r][c] = content
		}
	}
	for r, row := range contents {
		for c, content := range row {
			s.setCell(SimpleCellAddress{Sheet: topLeft.Sheet, Col: topLeft.Col + c, Row: topLeft.Row + r}, content)
		}
	}
	return s.recalculate(ctx)
}

// Batch runs fn with recalculation suspended, then recalculates once. The
// returned ChangeList covers every edit made inside fn.
func (s *Spreadsheet) Batch(ctx context.Context, fn func(*Spreadsheet) error) (ChangeList, error) {
	s.batchDepth++
	fnErr := fn(s)
	s.batchDepth--
	changes, err := s.recalculate(ctx)
	return changes, errors.Join(fnErr, err)
}

// normalizeRaw maps user input onto the stored value types.
func normalizeRaw(raw Primitive) (Primitive, error) {
	switch v := raw.(type) {
	case nil, bool, *SpreadsheetError:
		return v, nil
	case float64:
		return normalizeNumber(v), nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case string:
		if v == "" {
			return nil, nil
		}
		if strings.HasPrefix(v, "=") {
			return v, nil
		}
		if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return n, nil
		}
		return v, nil
	}
	return nil, wrapApplicationError(ErrInvalidArgument, "unsupported cell content %T", raw)
}

func isFormulaText(content Primitive) (string, bool) {
	s, ok := content.(string)
	return s, ok && strings.HasPrefix(s, "=")
}

// setCell applies one normalized content to a cell without recalculating.
func (s *Spreadsheet) setCell(addr SimpleCellAddress, content Primitive) {
	st := s.storage
	existing, exists := st.vertexAt(addr)
	var old Primitive
	if exists {
		old = existing.value
	}

	if text, ok := isFormulaText(content); ok {
		v, _ := st.cellVertex(addr)
		ast, err := ParseFormula(text, &ParserContext{
			CurrentAddress:   addr,
			ResolveWorksheet: st.worksheets.InternWorksheet,
		})
		if err != nil {
			s.logger.Debug("formula did not parse", zap.String("address", s.FormatAddress(addr)), zap.Error(err))
			s.setLiteral(v, old, asErrorValue(err))
			return
		}
		st.setFormula(v, ast, addr, st.transforms.Version())
		if refused := st.deriveDependencies(v); refused > 0 {
			s.logger.Debug("dependency closes a cycle", zap.String("address", s.FormatAddress(addr)), zap.Int("edges", refused))
		}
		st.graph.MarkDirty(v.id)
		return
	}

	if content == nil {
		if !exists {
			return
		}
		st.clearFormula(existing)
		existing.kind = VertexEmpty
		existing.value = nil
		existing.computed = true
		s.recordChange(addr, old, nil)
		st.graph.MarkDirty(existing.id)
		st.collectGarbage(existing.id)
		return
	}

	v, _ := st.cellVertex(addr)
	s.setLiteral(v, old, content)
}

func (s *Spreadsheet) setLiteral(v *Vertex, old, value Primitive) {
	s.storage.clearFormula(v)
	v.kind = VertexValue
	v.value = value
	v.computed = true
	s.recordChange(v.address, old, value)
	s.storage.graph.MarkDirty(v.id)
}

// recordChange remembers a literal edit for the next change list. Repeated
// edits of one cell keep the first old value.
func (s *Spreadsheet) recordChange(addr SimpleCellAddress, old, value Primitive) {
	if i, ok := s.pendingIndex[addr]; ok {
		s.pending[i].NewValue = value
		return
	}
	s.pendingIndex[addr] = len(s.pending)
	s.pending = append(s.pending, CellChange{Address: addr, OldValue: old, NewValue: value})
}

// transformPending moves pending changes along with a structural edit and
// drops those whose cell no longer exists.
func (s *Spreadsheet) transformPending(t Transformation) {
	kept := s.pending[:0]
	s.pendingIndex = make(map[SimpleCellAddress]int, len(s.pending))
	for _, c := range s.pending {
		addr, ok := t.TransformAddress(c.Address)
		if !ok {
			continue
		}
		if i, dup := s.pendingIndex[addr]; dup {
			kept[i].NewValue = c.NewValue
			continue
		}
		c.Address = addr
		s.pendingIndex[addr] = len(kept)
		kept = append(kept, c)
	}
	s.pending = kept
}

func (s *Spreadsheet) resetPending() {
	s.pending = nil
	s.pendingIndex = make(map[SimpleCellAddress]int)
}

// AddSheet defines a new sheet. Formulas that already referenced the name
// are wired to it.
func (s *Spreadsheet) AddSheet(ctx context.Context, name string) (uint32, ChangeList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, nil, wrapApplicationError(ErrInvalidArgument, "empty sheet name")
	}
	if _, exists := s.SheetID(name); exists {
		return 0, nil, wrapApplicationError(ErrSheetExists, "%q", name)
	}
	st := s.storage
	id, _ := st.worksheets.DefineWorksheet(name)
	s.record(Transformation{Kind: SheetAdd, Sheet: id})

	for _, vid := range st.formulas.VerticesReferencingWorksheet(id) {
		v, ok := st.graph.GetVertex(vid)
		if !ok || v.formula == nil {
			continue
		}
		st.refreshFormula(v)
		st.deriveDependencies(v)
		st.graph.MarkDirty(v.id)
	}
	s.logger.Debug("sheet added", zap.String("name", name), zap.Uint32("sheet", id))

	changes, err := s.recalculate(ctx)
	return id, changes, err
}

// RemoveSheet deletes a sheet and everything on it. References to it from
// other sheets become #REF!.
func (s *Spreadsheet) RemoveSheet(ctx context.Context, sheet uint32) (ChangeList, error) {
	st := s.storage
	ws, ok := st.worksheets.GetWorksheet(sheet)
	if !ok {
		return nil, wrapApplicationError(ErrSheetNotFound, "sheet %d", sheet)
	}
	t := Transformation{Kind: SheetRemove, Sheet: sheet}
	s.record(t)

	var doomed []*Vertex
	for _, vid := range ws.AllVertices() {
		if v, ok := st.graph.GetVertex(vid); ok {
			doomed = append(doomed, v)
		}
	}
	doomed = append(doomed, st.ranges.RangesOnSheet(sheet)...)

	var touched, garbage []VertexID
	for _, v := range doomed {
		touched = append(touched, st.graph.Dependents(v.id)...)
		garbage = append(garbage, st.graph.Dependencies(v.id)...)
	}
	for _, v := range doomed {
		st.removeVertex(v)
	}
	st.graph.MarkDirty(touched...)
	st.collectGarbage(garbage...)
	st.worksheets.UndefineWorksheet(sheet)
	s.transformPending(t)
	s.logger.Debug("sheet removed", zap.Uint32("sheet", sheet), zap.Int("vertices", len(doomed)))

	return s.recalculate(ctx)
}

// AddRows inserts count empty rows before row position.
func (s *Spreadsheet) AddRows(ctx context.Context, sheet uint32, position, count int) (ChangeList, error) {
	return s.shift(ctx, Transformation{Kind: RowInsert, Sheet: sheet, Start: position, Count: count})
}

// RemoveRows deletes count rows starting at row position.
func (s *Spreadsheet) RemoveRows(ctx context.Context, sheet uint32, position, count int) (ChangeList, error) {
	return s.shift(ctx, Transformation{Kind: RowDelete, Sheet: sheet, Start: position, Count: count})
}

// AddColumns inserts count empty columns before column position.
func (s *Spreadsheet) AddColumns(ctx context.Context, sheet uint32, position, count int) (ChangeList, error) {
	return s.shift(ctx, Transformation{Kind: ColumnInsert, Sheet: sheet, Start: position, Count: count})
}

// RemoveColumns deletes count columns starting at column position.
func (s *Spreadsheet) RemoveColumns(ctx context.Context, sheet uint32, position, count int) (ChangeList, error) {
	return s.shift(ctx, Transformation{Kind: ColumnDelete, Sheet: sheet, Start: position, Count: count})
}

func (s *Spreadsheet) shift(ctx context.Context, t Transformation) (ChangeList, error) {
	st := s.storage
	ws, ok := st.worksheets.GetWorksheet(t.Sheet)
	if !ok {
		return nil, wrapApplicationError(ErrSheetNotFound, "sheet %d", t.Sheet)
	}
	if t.Start < 0 || t.Count < 1 {
		return nil, wrapApplicationError(ErrInvalidArgument, "%s: position %d count %d", t.Kind, t.Start, t.Count)
	}
	s.record(t)

	var touched, garbage []VertexID
	moved, removed := ws.remap(t.TransformAddress)
	for _, r := range moved {
		if v, ok := st.graph.GetVertex(r.id); ok {
			v.address = r.addr
		}
	}
	for _, id := range removed {
		v, ok := st.graph.GetVertex(id)
		if !ok {
			continue
		}
		touched = append(touched, st.graph.Dependents(id)...)
		garbage = append(garbage, st.graph.Dependencies(id)...)
		st.formulas.Release(id)
		_ = st.graph.RemoveVertex(v.id)
	}

	rangeTouched, rangeGarbage := s.transformRanges(t, st.ranges.RangesOnSheet(t.Sheet))
	touched = append(touched, rangeTouched...)
	garbage = append(garbage, rangeGarbage...)

	st.graph.MarkDirty(touched...)
	st.collectGarbage(garbage...)
	s.transformPending(t)
	return s.recalculate(ctx)
}

// transformRanges moves range vertices through t. Ranges that disappear are
// removed, ranges whose bounds land on an existing range are merged into it,
// ranges that grew are wired to their new cells. It returns the vertices to
// mark dirty and the candidates for garbage collection.
func (s *Spreadsheet) transformRanges(t Transformation, ranges []*Vertex) (touched, garbage []VertexID) {
	st := s.storage
	type update struct {
		v      *Vertex
		bounds AbsoluteCellRange
	}
	var updates []update
	for _, v := range ranges {
		bounds, ok := t.TransformRange(v.rng)
		if !ok {
			touched = append(touched, st.graph.Dependents(v.id)...)
			garbage = append(garbage, st.graph.Dependencies(v.id)...)
			st.removeVertex(v)
			continue
		}
		if bounds == v.rng {
			continue
		}
		st.ranges.RemoveRange(v)
		updates = append(updates, update{v: v, bounds: bounds})
	}

	for _, u := range updates {
		v, old := u.v, u.v.rng
		if existing, ok := st.ranges.GetRange(u.bounds.Start, u.bounds.End); ok {
			for _, dep := range st.graph.Dependents(v.id) {
				st.addDependency(existing.id, dep)
			}
			garbage = append(garbage, st.graph.Dependencies(v.id)...)
			_ = st.graph.RemoveVertex(v.id)
			existing.cache.clear()
			touched = append(touched, existing.id)
			continue
		}
		v.rng = u.bounds
		st.ranges.SetRange(v)
		if v.rng.Size() != old.Size() {
			v.cache.clear()
			touched = append(touched, v.id)
		}
		if v.rng.Size() > old.Size() {
			s.wireInserted(t, v)
		}
	}
	return touched, garbage
}

// wireInserted links the cells an insert added inside a range.
func (s *Spreadsheet) wireInserted(t Transformation, v *Vertex) {
	st := s.storage
	var added AbsoluteCellRange
	switch t.Kind {
	case RowInsert:
		added = AbsoluteCellRange{
			Start: SimpleCellAddress{Sheet: t.Sheet, Col: v.rng.Start.Col, Row: t.Start},
			End:   SimpleCellAddress{Sheet: t.Sheet, Col: v.rng.End.Col, Row: t.Start + t.Count - 1},
		}
	case ColumnInsert:
		added = AbsoluteCellRange{
			Start: SimpleCellAddress{Sheet: t.Sheet, Col: t.Start, Row: v.rng.Start.Row},
			End:   SimpleCellAddress{Sheet: t.Sheet, Col: t.Start + t.Count - 1, Row: v.rng.End.Row},
		}
	default:
		return
	}
	for addr := range added.Addresses() {
		if c, ok := st.cellVertex(addr); ok {
			st.addDependency(c.id, v.id)
		}
	}
}

// MoveRange moves the contents of source so its top-left corner lands on
// destination. Cells already at the destination are overwritten; references
// into the moved area follow it.
func (s *Spreadsheet) MoveRange(ctx context.Context, source AbsoluteCellRange, destination SimpleCellAddress) (ChangeList, error) {
	st := s.storage
	if err := s.checkAddress(source.Start); err != nil {
		return nil, err
	}
	if err := s.checkAddress(source.End); err != nil {
		return nil, err
	}
	if err := s.checkAddress(destination); err != nil {
		return nil, err
	}
	if source.Start.Sheet != source.End.Sheet {
		return nil, wrapApplicationError(ErrDifferentSheets, "%s", source)
	}
	target := SpanFrom(destination, source.Width(), source.Height())
	if target == source {
		return s.recalculate(ctx)
	}
	t := Transformation{Kind: RangeMove, Source: source, Destination: destination}

	srcWS, _ := st.worksheets.GetWorksheet(source.Sheet())
	dstWS, _ := st.worksheets.GetWorksheet(destination.Sheet)

	before := make(map[SimpleCellAddress]Primitive)
	for _, r := range []AbsoluteCellRange{source, target} {
		for addr := range r.Addresses() {
			before[addr] = s.GetCellValue(addr)
		}
	}

	s.record(t)

	// overwritten cells at the destination
	var garbage []VertexID
	var orphaned []VertexID
	for _, id := range dstWS.VerticesIn(target) {
		v, ok := st.graph.GetVertex(id)
		if !ok || (v.address.Sheet == source.Sheet() && source.AddressInRange(v.address)) {
			continue
		}
		orphaned = append(orphaned, st.graph.Dependents(id)...)
		garbage = append(garbage, st.graph.Dependencies(id)...)
		st.removeVertex(v)
	}

	// relocate the moved cells
	movedIDs := srcWS.VerticesIn(source)
	var movedVertices []*Vertex
	for _, id := range movedIDs {
		v, ok := st.graph.GetVertex(id)
		if !ok {
			continue
		}
		srcWS.Remove(v.address.Col, v.address.Row)
		movedVertices = append(movedVertices, v)
	}
	for _, v := range movedVertices {
		v.address, _ = t.TransformAddress(v.address)
		dstWS.Set(v.address.Col, v.address.Row, v.id)
		if v.formula != nil {
			st.graph.MarkDirty(v.id)
		}
	}

	// ranges inside the source travel with it, ranges overlapping either
	// area are wired again
	var inside []*Vertex
	for _, v := range st.ranges.RangesOverlapping(source) {
		if source.ContainsRange(v.rng) {
			inside = append(inside, v)
		}
	}
	touched, rangeGarbage := s.transformRanges(t, inside)
	garbage = append(garbage, rangeGarbage...)
	st.graph.MarkDirty(touched...)

	seen := make(map[VertexID]struct{})
	for _, area := range []AbsoluteCellRange{source, target} {
		for _, v := range st.ranges.RangesOverlapping(area) {
			if _, done := seen[v.id]; done {
				continue
			}
			seen[v.id] = struct{}{}
			if target.ContainsRange(v.rng) && containsVertex(inside, v) {
				continue
			}
			garbage = append(garbage, st.rewireRange(v)...)
			v.cache.clear()
			st.graph.MarkDirty(v.id)
		}
	}

	// formulas that pointed at overwritten cells now point at whatever
	// was moved there
	for _, id := range orphaned {
		v, ok := st.graph.GetVertex(id)
		if !ok || v.formula == nil {
			continue
		}
		st.refreshFormula(v)
		st.deriveDependencies(v)
		st.graph.MarkDirty(v.id)
	}
	st.collectGarbage(garbage...)
	s.transformPending(t)

	for _, r := range []AbsoluteCellRange{source, target} {
		for addr := range r.Addresses() {
			after := s.GetCellValue(addr)
			if !ValuesEqual(before[addr], after) {
				s.recordChange(addr, before[addr], after)
			}
		}
	}
	s.logger.Debug("range moved", zap.Stringer("source", source), zap.Stringer("destination", destination), zap.Int("cells", len(movedVertices)))

	return s.recalculate(ctx)
}

func containsVertex(vs []*Vertex, v *Vertex) bool {
	for _, c := range vs {
		if c == v {
			return true
		}
	}
	return false
}

// record appends a structural edit to the log and compacts it when due.
func (s *Spreadsheet) record(t Transformation) {
	version := s.storage.transforms.RecordTransformation(t)
	s.logger.Debug("transformation recorded", zap.Stringer("transformation", t), zap.Uint64("version", version))

	s.sinceCompact++
	if s.config.CompactEvery <= 0 || s.sinceCompact < s.config.CompactEvery {
		return
	}
	s.sinceCompact = 0
	upTo := s.storage.oldestFormulaVersion()
	dropped := s.storage.transforms.Compact(upTo)
	s.logger.Debug("transformation log compacted", zap.Uint64("up_to", upTo), zap.Int("dropped", dropped))
}
