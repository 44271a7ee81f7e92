package graph

import (
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"cheshbon/internal/specmodel"
)

// DependencyGraph is an immutable, canonically-ordered dependency graph.
// Safe for concurrent read access once built.
type DependencyGraph struct {
	nodes     []specmodel.ElementID // canonical order: lexicographic by ID
	indexByID map[specmodel.ElementID]int

	outgoing [][]int // by canonical index, sorted ascending — edges this node feeds into (dependents)
	incoming [][]int // by canonical index, sorted ascending — edges this node depends on

	edgeKind map[[2]int]EdgeKind

	pathCache *lru.Cache[pathKey, int]
}

type pathKey struct {
	from, to specmodel.ElementID
}

// Build constructs a DependencyGraph from a MappingSpec's declared inputs.
// A cycle never aborts construction: it is reported via the returned
// *CycleError while the graph itself still reflects every node and edge
// supplied, so downstream impact computation can proceed over the acyclic
// remainder (see ImpactEngine's CYCLE handling).
func Build(spec specmodel.MappingSpec) (*DependencyGraph, *CycleError) {
	idSet := map[specmodel.ElementID]bool{}
	for _, s := range spec.Sources {
		idSet[specmodel.ElementID(s.ID)] = true
	}
	for _, d := range spec.Derived {
		idSet[specmodel.ElementID(d.ID)] = true
	}
	for _, c := range spec.Constraints {
		idSet[specmodel.ElementID(c.ID)] = true
	}

	nodes := make([]specmodel.ElementID, 0, len(idSet))
	for id := range idSet {
		nodes = append(nodes, id)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	indexByID := make(map[specmodel.ElementID]int, len(nodes))
	for i, id := range nodes {
		indexByID[id] = i
	}

	type rawEdge struct {
		from, to int
		kind     EdgeKind
	}
	var rawEdges []rawEdge
	addEdges := func(depID specmodel.ElementID, inputs []specmodel.ElementID) {
		to, ok := indexByID[depID]
		if !ok {
			return
		}
		for _, in := range inputs {
			from, ok := indexByID[in]
			if !ok {
				continue // unresolved reference: specmodel.Validate already flags it
			}
			rawEdges = append(rawEdges, rawEdge{from: from, to: to, kind: EdgeDerivation})
		}
	}
	for _, d := range spec.Derived {
		addEdges(specmodel.ElementID(d.ID), d.Inputs)
	}
	for _, c := range spec.Constraints {
		addEdges(specmodel.ElementID(c.ID), c.Inputs)
	}

	sort.Slice(rawEdges, func(i, j int) bool {
		if rawEdges[i].from != rawEdges[j].from {
			return rawEdges[i].from < rawEdges[j].from
		}
		return rawEdges[i].to < rawEdges[j].to
	})

	outgoing := make([][]int, len(nodes))
	incoming := make([][]int, len(nodes))
	edgeKind := make(map[[2]int]EdgeKind, len(rawEdges))
	for _, e := range rawEdges {
		key := [2]int{e.from, e.to}
		if _, dup := edgeKind[key]; dup {
			continue
		}
		outgoing[e.from] = append(outgoing[e.from], e.to)
		incoming[e.to] = append(incoming[e.to], e.from)
		edgeKind[key] = e.kind
	}

	cache, _ := lru.New[pathKey, int](maxInt(len(nodes), 1))

	g := &DependencyGraph{
		nodes:     nodes,
		indexByID: indexByID,
		outgoing:  outgoing,
		incoming:  incoming,
		edgeKind:  edgeKind,
		pathCache: cache,
	}

	if cycleNodes := g.findCycleDeterministic(); len(cycleNodes) > 0 {
		ids := make([]specmodel.ElementID, len(cycleNodes))
		for i, idx := range cycleNodes {
			ids[i] = nodes[idx]
		}
		return g, &CycleError{Nodes: ids}
	}
	return g, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// findCycleDeterministic runs a colored DFS over canonical indices and
// returns one cycle's node indices in forward order, or nil if acyclic.
// Grounded on the teacher's dag.TaskGraph.findCycleDeterministic.
func (g *DependencyGraph) findCycleDeterministic() []int {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make([]int, len(g.nodes))
	parent := make([]int, len(g.nodes))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range g.outgoing[u] {
			if color[v] == white {
				parent[v] = u
				if dfs(v) {
					return true
				}
				continue
			}
			if color[v] == gray {
				cycle = append(cycle, v)
				cur := u
				for cur != -1 && cur != v {
					cycle = append(cycle, cur)
					cur = parent[cur]
				}
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := 0; i < len(g.nodes); i++ {
		if color[i] != white {
			continue
		}
		if dfs(i) {
			break
		}
	}

	if len(cycle) == 0 {
		return nil
	}
	rev := make([]int, len(cycle))
	for i := range cycle {
		rev[i] = cycle[len(cycle)-1-i]
	}
	return rev
}

// Nodes returns every node in canonical (lexicographic) order.
func (g *DependencyGraph) Nodes() []specmodel.ElementID {
	out := make([]specmodel.ElementID, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// EdgeKindOf returns the preserved edge annotation for the depends_on
// relation to -> from (to depends on from), if any.
func (g *DependencyGraph) EdgeKindOf(from, to specmodel.ElementID) (EdgeKind, bool) {
	fi, ok := g.indexByID[from]
	if !ok {
		return "", false
	}
	ti, ok := g.indexByID[to]
	if !ok {
		return "", false
	}
	kind, ok := g.edgeKind[[2]int{fi, ti}]
	return kind, ok
}
