package graph

import "container/heap"

// RouteInfo is a shortest path: total weight and edge ids in travel order.
type RouteInfo[W Weight] struct {
	Weight W
	Edges  []EdgeID
}

// Router answers single-source single-destination queries with Dijkstra's
// algorithm. It never mutates the graph and is safe for concurrent use once
// the graph is no longer modified.
type Router[W Weight] struct {
	graph *DirectedWeightedGraph[W]
}

func NewRouter[W Weight](g *DirectedWeightedGraph[W]) *Router[W] {
	return &Router[W]{graph: g}
}

// BuildRoute returns the minimum-weight path from -> to. ok is false when to
// is unreachable or either vertex is out of range.
func (r *Router[W]) BuildRoute(from, to VertexID) (RouteInfo[W], bool) {
	n := r.graph.VertexCount()
	if from < 0 || from >= n || to < 0 || to >= n {
		return RouteInfo[W]{}, false
	}

	dist := make([]W, n)
	reached := make([]bool, n)
	settled := make([]bool, n)
	prevEdge := make([]EdgeID, n)
	for i := range prevEdge {
		prevEdge[i] = -1
	}

	reached[from] = true
	pq := &priorityQueue[W]{}
	heap.Push(pq, &pqItem[W]{vertex: from, dist: 0})

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem[W])
		v := item.vertex
		if settled[v] {
			continue
		}
		settled[v] = true
		if v == to {
			break
		}

		for _, id := range r.graph.IncidentEdges(v) {
			e := r.graph.edges[id]
			candidate := dist[v] + e.Weight
			if !reached[e.To] || candidate < dist[e.To] {
				reached[e.To] = true
				dist[e.To] = candidate
				prevEdge[e.To] = id
				heap.Push(pq, &pqItem[W]{vertex: e.To, dist: candidate})
			}
		}
	}

	if !reached[to] {
		return RouteInfo[W]{}, false
	}

	var edges []EdgeID
	for v := to; prevEdge[v] != -1; v = r.graph.edges[prevEdge[v]].From {
		edges = append(edges, prevEdge[v])
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}

	return RouteInfo[W]{Weight: dist[to], Edges: edges}, true
}

type pqItem[W Weight] struct {
	vertex VertexID
	dist   W
}

// priorityQueue orders by distance, then by vertex id so equal-cost paths
// are always expanded in the same order.
type priorityQueue[W Weight] []*pqItem[W]

func (pq priorityQueue[W]) Len() int { return len(pq) }
func (pq priorityQueue[W]) Less(i, j int) bool {
	if pq[i].dist != pq[j].dist {
		return pq[i].dist < pq[j].dist
	}
	return pq[i].vertex < pq[j].vertex
}
func (pq priorityQueue[W]) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *priorityQueue[W]) Push(x any) {
	*pq = append(*pq, x.(*pqItem[W]))
}

func (pq *priorityQueue[W]) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[0 : n-1]
	return item
}
