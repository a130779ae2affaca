package graph

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/passbi/subway_path/internal/models"
)

var (
	// ErrInvalidWeight is returned for a negative, NaN or infinite edge weight
	ErrInvalidWeight = errors.New("graph: invalid edge weight")

	// ErrSelfLoop is returned when both endpoints of an edge are the same station
	ErrSelfLoop = errors.New("graph: self-loop edge")
)

// Neighbor is one adjacency entry: the station on the other end and the edge weight
type Neighbor struct {
	Station string
	Weight  float64
}

// WeightFunc extracts one metric's weight from a section record
type WeightFunc func(models.Section) float64

// WeightedGraph is an undirected adjacency structure keyed by station name.
// It is not safe for mutation concurrently with reads; build it fully before
// handing it to an engine.
type WeightedGraph struct {
	adj   map[string][]Neighbor
	edges int
}

// NewWeightedGraph creates an empty graph
func NewWeightedGraph() *WeightedGraph {
	return &WeightedGraph{adj: make(map[string][]Neighbor)}
}

// BuildGraph constructs a graph from the full section list, weighting each
// edge with weight. Construction stops at the first invalid section.
func BuildGraph(sections []models.Section, weight WeightFunc) (*WeightedGraph, error) {
	g := NewWeightedGraph()
	for _, s := range sections {
		if err := g.AddEdge(s.From, s.To, weight(s)); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddEdge inserts the undirected edge a<->b. Re-inserting an existing pair
// overwrites its weight in both directions.
func (g *WeightedGraph) AddEdge(a, b string, weight float64) error {
	if math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
		return fmt.Errorf("%w: %s-%s weight=%v", ErrInvalidWeight, a, b, weight)
	}
	if a == b {
		return fmt.Errorf("%w: %s", ErrSelfLoop, a)
	}

	if g.setWeight(a, b, weight) {
		g.setWeight(b, a, weight)
		return nil
	}

	g.adj[a] = append(g.adj[a], Neighbor{Station: b, Weight: weight})
	g.adj[b] = append(g.adj[b], Neighbor{Station: a, Weight: weight})
	g.edges++
	return nil
}

// setWeight updates the existing from->to entry and reports whether one was found
func (g *WeightedGraph) setWeight(from, to string, weight float64) bool {
	list := g.adj[from]
	for i := range list {
		if list[i].Station == to {
			list[i].Weight = weight
			return true
		}
	}
	return false
}

// NeighborsOf returns the adjacency entries of v in insertion order.
// Unknown or isolated stations have no neighbors.
func (g *WeightedGraph) NeighborsOf(v string) []Neighbor {
	return g.adj[v]
}

// HasVertex reports whether any edge references v
func (g *WeightedGraph) HasVertex(v string) bool {
	_, ok := g.adj[v]
	return ok
}

// Vertices returns every station referenced by an edge, sorted
func (g *WeightedGraph) Vertices() []string {
	vertices := make([]string, 0, len(g.adj))
	for v := range g.adj {
		vertices = append(vertices, v)
	}
	sort.Strings(vertices)
	return vertices
}

// EdgeCount returns the number of distinct undirected edges
func (g *WeightedGraph) EdgeCount() int {
	return g.edges
}
