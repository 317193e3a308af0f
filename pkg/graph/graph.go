// Package graph provides a directed weighted graph and a shortest path
// router over it. It knows nothing about transit; vertices and edges are
// plain integer ids.
package graph

import "fmt"

// Weight is the set of numeric types usable as edge weights.
// Weights must be non-negative for Router to return correct results.
type Weight interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64 | ~float32 | ~float64
}

type VertexID = int
type EdgeID = int

// Edge is a directed edge from From to To.
type Edge[W Weight] struct {
	From   VertexID
	To     VertexID
	Weight W
}

// DirectedWeightedGraph stores edges in insertion order; an edge id is its
// position in that order. The vertex count is fixed at construction.
type DirectedWeightedGraph[W Weight] struct {
	edges     []Edge[W]
	incidence [][]EdgeID
}

func NewDirectedWeightedGraph[W Weight](vertexCount int) *DirectedWeightedGraph[W] {
	return &DirectedWeightedGraph[W]{
		incidence: make([][]EdgeID, vertexCount),
	}
}

// AddEdge appends an edge and returns its id.
func (g *DirectedWeightedGraph[W]) AddEdge(e Edge[W]) (EdgeID, error) {
	if e.From < 0 || e.From >= len(g.incidence) || e.To < 0 || e.To >= len(g.incidence) {
		return 0, fmt.Errorf("add edge %d->%d: vertex out of range [0,%d)", e.From, e.To, len(g.incidence))
	}
	if e.Weight < 0 {
		return 0, fmt.Errorf("add edge %d->%d: negative weight %v", e.From, e.To, e.Weight)
	}

	id := len(g.edges)
	g.edges = append(g.edges, e)
	g.incidence[e.From] = append(g.incidence[e.From], id)
	return id, nil
}

func (g *DirectedWeightedGraph[W]) VertexCount() int { return len(g.incidence) }
func (g *DirectedWeightedGraph[W]) EdgeCount() int   { return len(g.edges) }

// Edge returns the edge with the given id and whether it exists.
func (g *DirectedWeightedGraph[W]) Edge(id EdgeID) (Edge[W], bool) {
	if id < 0 || id >= len(g.edges) {
		return Edge[W]{}, false
	}
	return g.edges[id], true
}

// IncidentEdges returns ids of edges leaving v. The slice must not be modified.
func (g *DirectedWeightedGraph[W]) IncidentEdges(v VertexID) []EdgeID {
	if v < 0 || v >= len(g.incidence) {
		return nil
	}
	return g.incidence[v]
}
