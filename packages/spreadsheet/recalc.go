package spreadsheet

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// evaluationState is what formulas read during one recalculation: staged
// values of this cycle first, committed values otherwise.
type evaluationState struct {
	s      *Spreadsheet
	mu     sync.RWMutex
	staged map[VertexID]Primitive
}

func newEvaluationState(s *Spreadsheet) *evaluationState {
	return &evaluationState{s: s, staged: make(map[VertexID]Primitive)}
}

func (es *evaluationState) stage(id VertexID, value Primitive) {
	es.mu.Lock()
	es.staged[id] = value
	es.mu.Unlock()
}

func (es *evaluationState) lookup(id VertexID) (Primitive, bool) {
	es.mu.RLock()
	defer es.mu.RUnlock()
	v, ok := es.staged[id]
	return v, ok
}

func (es *evaluationState) CellValue(addr SimpleCellAddress) Primitive {
	es.s.cellReads.Add(1)
	st := es.s.storage
	if !st.worksheets.IsWorksheetDefined(addr.Sheet) || !addr.Valid() {
		return NewSpreadsheetError(ErrorCodeRef, "reference to a missing cell")
	}
	id, ok := st.worksheets.VertexAt(addr)
	if !ok {
		return nil
	}
	if v, ok := es.lookup(id); ok {
		return v
	}
	if v, ok := st.graph.GetVertex(id); ok {
		return v.value
	}
	return nil
}

func (es *evaluationState) RangeAggregate(r AbsoluteCellRange, agg Aggregator) any {
	v, ok := es.s.storage.ranges.GetRange(r.Start, r.End)
	if !ok {
		return FoldRange(es, r, agg)
	}
	return es.aggregate(v, agg)
}

// aggregate returns the cached partial for v, computing it from the largest
// usable sub-range plus the residual cells on a miss.
func (es *evaluationState) aggregate(v *Vertex, agg Aggregator) any {
	c := v.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	if val, ok := c.values[agg.Name()]; ok {
		rangeCacheLookups.WithLabelValues("hit").Inc()
		return val
	}
	rangeCacheLookups.WithLabelValues("miss").Inc()

	acc := agg.Zero()
	sub, residual, ok := es.s.storage.ranges.FindContainedSubRange(v)
	if ok {
		acc = agg.Merge(acc, es.aggregate(sub, agg))
	}
	for _, r := range residual {
		for addr := range r.Addresses() {
			acc = agg.Fold(acc, es.CellValue(addr))
		}
	}
	// a narrower prefix over several rows is not in row-major order, so the
	// first error of a plain scan may sit in the residual
	if ok && checkForError(acc) != nil && sub.rng.Width() < v.rng.Width() && v.rng.Height() > 1 {
		acc = FoldRange(es, v.rng, agg)
	}
	if c.values == nil {
		c.values = make(map[string]any)
	}
	c.values[agg.Name()] = acc
	return acc
}

func cycleError() *SpreadsheetError {
	return NewSpreadsheetError(ErrorCodeCycle, "circular reference")
}

// recalculate runs one Marking -> Ordering -> Evaluating cycle and commits
// the result. Nothing is committed when ctx is cancelled.
func (s *Spreadsheet) recalculate(ctx context.Context) (ChangeList, error) {
	if s.batchDepth > 0 {
		return nil, nil
	}
	started := time.Now()
	log := s.logger.With(zap.String("cycle_id", uuid.NewString()))
	g := s.storage.graph

	// marking
	g.MarkAllVolatileDirty()
	dirty := g.DirtySet()

	// ordering
	order, err := g.TopologicalOrder(dirty)
	var circular *CircularDependencyError
	members := map[VertexID]struct{}{}
	if errors.As(err, &circular) {
		members = circular.Members()
		cyclesDetected.Add(float64(len(circular.Cycles)))
		log.Debug("cycles found", zap.Int("cycles", len(circular.Cycles)), zap.Int("members", len(members)))
	} else if err != nil {
		return nil, err
	}

	for _, id := range dirty {
		if v, ok := g.GetVertex(id); ok && v.kind == VertexRange {
			v.cache.clear()
		}
	}

	state := newEvaluationState(s)
	// dirty vertices get their cyclic status recomputed below
	g.UpdateCyclic(dirty, nil)
	poisoned := make(map[VertexID]struct{})
	var cycleVertices []*Vertex
	if circular != nil {
		for _, cycle := range circular.Cycles {
			for _, id := range cycle {
				v, _ := g.GetVertex(id)
				cycleVertices = append(cycleVertices, v)
				if v.formula != nil {
					state.staged[id] = cycleError()
				}
			}
		}
	}

	var toEvaluate []*Vertex
	for _, id := range order {
		v, _ := g.GetVertex(id)
		if v.formula != nil {
			s.storage.refreshFormula(v)
		}
		if (v.formula != nil && v.formula.selfRef) || dependsOnAny(g, id, members, poisoned, g.cyclic) {
			poisoned[id] = struct{}{}
			if v.formula != nil {
				state.staged[id] = cycleError()
			}
			continue
		}
		if v.formula != nil {
			toEvaluate = append(toEvaluate, v)
		}
	}
	g.UpdateCyclic(nil, members)
	g.UpdateCyclic(nil, poisoned)

	// evaluating
	if s.config.Parallelism > 1 {
		err = s.evaluateLevels(ctx, order, toEvaluate, state)
	} else {
		err = s.evaluateSequential(ctx, toEvaluate, state)
	}
	if err != nil {
		for _, id := range dirty {
			if v, ok := g.GetVertex(id); ok && v.kind == VertexRange {
				v.cache.clear()
			}
		}
		recalculationsTotal.WithLabelValues("cancelled").Inc()
		log.Debug("recalculation cancelled", zap.Int("dirty", len(dirty)), zap.Error(err))
		return nil, err
	}

	changes := s.commit(state, cycleVertices, order)
	g.ClearDirty(dirty...)

	elapsed := time.Since(started)
	recalculationsTotal.WithLabelValues("ok").Inc()
	recalculationDuration.Observe(elapsed.Seconds())
	cellsChanged.Add(float64(len(changes)))
	log.Debug("recalculation finished",
		zap.Int("dirty", len(dirty)),
		zap.Int("evaluated", len(toEvaluate)),
		zap.Int("cycle_members", len(members)),
		zap.Int("changes", len(changes)),
		zap.Duration("duration", elapsed),
	)
	return changes, nil
}

func dependsOnAny(g *DependencyGraph, id VertexID, sets ...map[VertexID]struct{}) bool {
	for _, dep := range g.Dependencies(id) {
		for _, set := range sets {
			if _, ok := set[dep]; ok {
				return true
			}
		}
	}
	return false
}

func (s *Spreadsheet) evaluateVertex(v *Vertex, state *evaluationState) {
	value := s.evaluator.Evaluate(v.formula.ast, v.formula.base, state)
	s.evaluations.Add(1)
	verticesEvaluated.Inc()
	state.stage(v.id, value)
}

func (s *Spreadsheet) evaluateSequential(ctx context.Context, vertices []*Vertex, state *evaluationState) error {
	for _, v := range vertices {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.evaluateVertex(v, state)
	}
	return nil
}

// evaluateLevels splits the order into dependency levels and evaluates each
// level concurrently. A vertex's level is one more than the highest level
// among its dependencies in this cycle.
func (s *Spreadsheet) evaluateLevels(ctx context.Context, order []VertexID, vertices []*Vertex, state *evaluationState) error {
	g := s.storage.graph
	level := make(map[VertexID]int, len(order))
	for _, id := range order {
		l := 0
		for _, dep := range g.Dependencies(id) {
			if dl, ok := level[dep]; ok && dl+1 > l {
				l = dl + 1
			}
		}
		level[id] = l
	}

	var levels [][]*Vertex
	for _, v := range vertices {
		l := level[v.id]
		for len(levels) <= l {
			levels = append(levels, nil)
		}
		levels[l] = append(levels[l], v)
	}

	for _, batch := range levels {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(batch) == 0 {
			continue
		}
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(s.config.Parallelism)
		for _, v := range batch {
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				s.evaluateVertex(v, state)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// commit writes staged values to their vertices and builds the change list:
// pending literal edits first, then cycle members, then everything else in
// topological order.
func (s *Spreadsheet) commit(state *evaluationState, cycleVertices []*Vertex, order []VertexID) ChangeList {
	g := s.storage.graph
	changes := make(ChangeList, 0, len(s.pending)+len(state.staged))
	index := make(map[SimpleCellAddress]int, len(s.pending))
	for _, c := range s.pending {
		index[c.Address] = len(changes)
		changes = append(changes, c)
	}

	emit := func(v *Vertex) {
		value, ok := state.staged[v.id]
		if !ok {
			return
		}
		if i, seen := index[v.address]; seen {
			changes[i].NewValue = value
		} else if !ValuesEqual(v.value, value) {
			index[v.address] = len(changes)
			changes = append(changes, CellChange{Address: v.address, OldValue: v.value, NewValue: value})
		}
		v.value = value
		v.computed = true
	}
	for _, v := range cycleVertices {
		emit(v)
	}
	for _, id := range order {
		if v, ok := g.GetVertex(id); ok {
			emit(v)
		}
	}
	s.resetPending()

	out := changes[:0]
	for _, c := range changes {
		if !ValuesEqual(c.OldValue, c.NewValue) {
			out = append(out, c)
		}
	}
	return out
}
