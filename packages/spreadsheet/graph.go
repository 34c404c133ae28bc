package spreadsheet

import "sort"

// DependencyGraph is an arena of vertices with adjacency sets in both
// directions. An edge from -> to means "to depends on from".
type DependencyGraph struct {
	vertices     map[VertexID]*Vertex
	dependents   map[VertexID]map[VertexID]struct{} // from -> vertices that depend on it
	dependencies map[VertexID]map[VertexID]struct{} // to -> vertices it depends on
	dirtySet     map[VertexID]struct{}              // vertices needing recalculation
	volatile     map[VertexID]struct{}              // formulas with volatile functions
	cyclic       map[VertexID]struct{}              // cycle members and everything depending on one
	nextID       VertexID
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		vertices:     make(map[VertexID]*Vertex),
		dependents:   make(map[VertexID]map[VertexID]struct{}),
		dependencies: make(map[VertexID]map[VertexID]struct{}),
		dirtySet:     make(map[VertexID]struct{}),
		volatile:     make(map[VertexID]struct{}),
		cyclic:       make(map[VertexID]struct{}),
		nextID:       1,
	}
}

// AddVertex assigns an ID to v and stores it.
func (dg *DependencyGraph) AddVertex(v *Vertex) VertexID {
	v.id = dg.nextID
	dg.nextID++
	dg.vertices[v.id] = v
	return v.id
}

// GetVertex retrieves a vertex if it exists
func (dg *DependencyGraph) GetVertex(id VertexID) (*Vertex, bool) {
	v, ok := dg.vertices[id]
	return v, ok
}

func (dg *DependencyGraph) mustVertex(id VertexID) (*Vertex, error) {
	v, ok := dg.vertices[id]
	if !ok {
		return nil, wrapApplicationError(ErrNodeNotFound, "vertex %d", id)
	}
	return v, nil
}

// RemoveVertex removes a vertex and every edge touching it.
func (dg *DependencyGraph) RemoveVertex(id VertexID) error {
	if _, err := dg.mustVertex(id); err != nil {
		return err
	}
	for from := range dg.dependencies[id] {
		delete(dg.dependents[from], id)
	}
	for to := range dg.dependents[id] {
		delete(dg.dependencies[to], id)
	}
	delete(dg.dependencies, id)
	delete(dg.dependents, id)
	delete(dg.dirtySet, id)
	delete(dg.volatile, id)
	delete(dg.cyclic, id)
	delete(dg.vertices, id)
	return nil
}

// AddEdge records that to depends on from. Adding an existing edge is a
// no-op. The edge is refused with ErrCircularDependency when it would close a
// cycle.
func (dg *DependencyGraph) AddEdge(from, to VertexID) error {
	if err := dg.checkEndpoints(from, to); err != nil {
		return err
	}
	if dg.HasEdge(from, to) {
		return nil
	}
	if dg.reachable(to, from) {
		return wrapApplicationError(ErrCircularDependency, "edge %d -> %d closes a cycle", from, to)
	}
	dg.insertEdge(from, to)
	return nil
}

// Link inserts an edge without the reachability check. Cycles closed this way
// are reported by TopologicalOrder.
func (dg *DependencyGraph) Link(from, to VertexID) error {
	if err := dg.checkEndpoints(from, to); err != nil {
		return err
	}
	dg.insertEdge(from, to)
	return nil
}

func (dg *DependencyGraph) checkEndpoints(from, to VertexID) error {
	if _, err := dg.mustVertex(from); err != nil {
		return err
	}
	if _, err := dg.mustVertex(to); err != nil {
		return err
	}
	if from == to {
		return wrapApplicationError(ErrCircularDependency, "vertex %d depends on itself", from)
	}
	return nil
}

func (dg *DependencyGraph) insertEdge(from, to VertexID) {
	if dg.dependents[from] == nil {
		dg.dependents[from] = make(map[VertexID]struct{})
	}
	if dg.dependencies[to] == nil {
		dg.dependencies[to] = make(map[VertexID]struct{})
	}
	dg.dependents[from][to] = struct{}{}
	dg.dependencies[to][from] = struct{}{}
}

// reachable reports whether target can be reached from start by following
// dependent edges.
func (dg *DependencyGraph) reachable(start, target VertexID) bool {
	if start == target {
		return true
	}
	seen := map[VertexID]struct{}{start: {}}
	stack := []VertexID{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for next := range dg.dependents[cur] {
			if next == target {
				return true
			}
			if _, ok := seen[next]; !ok {
				seen[next] = struct{}{}
				stack = append(stack, next)
			}
		}
	}
	return false
}

// RemoveEdge removes an edge; absent edges are ignored.
func (dg *DependencyGraph) RemoveEdge(from, to VertexID) {
	delete(dg.dependents[from], to)
	delete(dg.dependencies[to], from)
}

func (dg *DependencyGraph) HasEdge(from, to VertexID) bool {
	_, ok := dg.dependents[from][to]
	return ok
}

// Dependents returns the vertices depending directly on id, sorted by ID.
func (dg *DependencyGraph) Dependents(id VertexID) []VertexID {
	return sortedIDs(dg.dependents[id])
}

// Dependencies returns the vertices id depends on directly, sorted by ID.
func (dg *DependencyGraph) Dependencies(id VertexID) []VertexID {
	return sortedIDs(dg.dependencies[id])
}

func (dg *DependencyGraph) HasDependents(id VertexID) bool {
	return len(dg.dependents[id]) > 0
}

// ClearDependencies removes every incoming edge of id and returns the former
// dependencies.
func (dg *DependencyGraph) ClearDependencies(id VertexID) []VertexID {
	former := sortedIDs(dg.dependencies[id])
	for _, from := range former {
		delete(dg.dependents[from], id)
	}
	delete(dg.dependencies, id)
	return former
}

func sortedIDs(set map[VertexID]struct{}) []VertexID {
	out := make([]VertexID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarkDirty marks the vertices and all their transitive dependents dirty.
// Calling it again for an already dirty closure changes nothing.
func (dg *DependencyGraph) MarkDirty(ids ...VertexID) {
	stack := make([]VertexID, 0, len(ids))
	for _, id := range ids {
		if _, ok := dg.vertices[id]; !ok {
			continue
		}
		stack = append(stack, id)
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, dirty := dg.dirtySet[cur]; dirty {
			continue
		}
		dg.dirtySet[cur] = struct{}{}
		for next := range dg.dependents[cur] {
			if _, dirty := dg.dirtySet[next]; !dirty {
				stack = append(stack, next)
			}
		}
	}
}

func (dg *DependencyGraph) IsDirty(id VertexID) bool {
	_, ok := dg.dirtySet[id]
	return ok
}

// DirtySet returns the dirty vertices ordered by position.
func (dg *DependencyGraph) DirtySet() []VertexID {
	out := make([]VertexID, 0, len(dg.dirtySet))
	for id := range dg.dirtySet {
		out = append(out, id)
	}
	dg.sortByPosition(out)
	return out
}

func (dg *DependencyGraph) ClearDirty(ids ...VertexID) {
	for _, id := range ids {
		delete(dg.dirtySet, id)
	}
}

func (dg *DependencyGraph) sortByPosition(ids []VertexID) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := dg.vertices[ids[i]], dg.vertices[ids[j]]
		ka, kb := a.sortKey(), b.sortKey()
		if ka.Sheet != kb.Sheet {
			return ka.Sheet < kb.Sheet
		}
		if ka.Row != kb.Row {
			return ka.Row < kb.Row
		}
		if ka.Col != kb.Col {
			return ka.Col < kb.Col
		}
		return ids[i] < ids[j]
	})
}

// TopologicalOrder orders the dirty subgraph dependencies first. Edges to
// vertices outside dirty are ignored. When the subgraph has cycles the
// returned order still covers every vertex that is not a cycle member and
// the error lists the cycles.
func (dg *DependencyGraph) TopologicalOrder(dirty []VertexID) ([]VertexID, error) {
	inSet := make(map[VertexID]struct{}, len(dirty))
	for _, id := range dirty {
		if _, ok := dg.vertices[id]; ok {
			inSet[id] = struct{}{}
		}
	}

	// tarjan: index/lowlink with an explicit on-stack marker
	index := make(map[VertexID]int, len(inSet))
	low := make(map[VertexID]int, len(inSet))
	onStack := make(map[VertexID]bool, len(inSet))
	stack := make([]VertexID, 0)
	order := make([]VertexID, 0, len(inSet))
	var cycles [][]VertexID
	counter := 0

	var visit func(v VertexID)
	visit = func(v VertexID) {
		index[v] = counter
		low[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, dep := range dg.Dependencies(v) {
			if _, ok := inSet[dep]; !ok {
				continue
			}
			if _, seen := index[dep]; !seen {
				visit(dep)
				low[v] = min(low[v], low[dep])
			} else if onStack[dep] {
				low[v] = min(low[v], index[dep])
			}
		}

		if low[v] != index[v] {
			return
		}
		var component []VertexID
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)
			if top == v {
				break
			}
		}
		if len(component) == 1 {
			order = append(order, v)
			return
		}
		dg.sortByPosition(component)
		cycles = append(cycles, component)
	}

	roots := make([]VertexID, 0, len(inSet))
	for id := range inSet {
		roots = append(roots, id)
	}
	dg.sortByPosition(roots)
	for _, id := range roots {
		if _, seen := index[id]; !seen {
			visit(id)
		}
	}

	if len(cycles) > 0 {
		return order, &CircularDependencyError{Cycles: cycles}
	}
	return order, nil
}

// MarkVolatile marks a formula vertex as containing volatile functions
func (dg *DependencyGraph) MarkVolatile(id VertexID) {
	dg.volatile[id] = struct{}{}
}

// UnmarkVolatile removes volatile marking from a vertex
func (dg *DependencyGraph) UnmarkVolatile(id VertexID) {
	delete(dg.volatile, id)
}

func (dg *DependencyGraph) IsVolatile(id VertexID) bool {
	_, ok := dg.volatile[id]
	return ok
}

// IsCyclic reports whether id was last evaluated as a cycle member or as a
// dependent of one.
func (dg *DependencyGraph) IsCyclic(id VertexID) bool {
	_, ok := dg.cyclic[id]
	return ok
}

// UpdateCyclic forgets the cyclic status of the recomputed vertices, then
// records the ones that ended up cyclic.
func (dg *DependencyGraph) UpdateCyclic(recomputed []VertexID, cyclic map[VertexID]struct{}) {
	for _, id := range recomputed {
		delete(dg.cyclic, id)
	}
	for id := range cyclic {
		if _, ok := dg.vertices[id]; ok {
			dg.cyclic[id] = struct{}{}
		}
	}
}

// MarkAllVolatileDirty marks all volatile vertices as dirty for recalculation
func (dg *DependencyGraph) MarkAllVolatileDirty() {
	for id := range dg.volatile {
		dg.MarkDirty(id)
	}
}

// NodeCount returns the number of vertices in the graph
func (dg *DependencyGraph) NodeCount() int {
	return len(dg.vertices)
}

// EdgeCount returns the number of edges in the graph
func (dg *DependencyGraph) EdgeCount() int {
	n := 0
	for _, deps := range dg.dependents {
		n += len(deps)
	}
	return n
}
