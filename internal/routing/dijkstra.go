package routing

import (
	"container/heap"
	"slices"

	"github.com/passbi/subway_path/internal/graph"
)

// Result is a shortest path and its cumulative weight
type Result struct {
	Stations []string
	Weight   float64
}

// Engine answers point-to-point shortest-path queries on one graph.
// The graph must not be mutated once queries begin; all per-query state is
// local to FindShortestPath, so an Engine may be used from many goroutines.
type Engine struct {
	g *graph.WeightedGraph
}

// NewEngine creates an engine over g
func NewEngine(g *graph.WeightedGraph) *Engine {
	return &Engine{g: g}
}

// FindShortestPath runs Dijkstra from origin and stops as soon as destination
// is settled. It reports false when no path exists, including when either
// station is unknown to the graph. A self query returns the single-station
// path with zero weight.
func (e *Engine) FindShortestPath(origin, destination string) (Result, bool) {
	if origin == destination {
		return Result{Stations: []string{origin}, Weight: 0}, true
	}
	if !e.g.HasVertex(origin) || !e.g.HasVertex(destination) {
		return Result{}, false
	}

	dist := map[string]float64{origin: 0}
	prev := make(map[string]string)
	visited := make(map[string]bool)

	frontier := &priorityQueue{}
	heap.Init(frontier)
	seq := 0
	heap.Push(frontier, &queueItem{station: origin, cost: 0, seq: seq})

	for frontier.Len() > 0 {
		current := heap.Pop(frontier).(*queueItem)

		// Stale entry left behind by a later improvement
		if visited[current.station] {
			continue
		}
		visited[current.station] = true

		if current.station == destination {
			return Result{
				Stations: reconstructPath(prev, origin, destination),
				Weight:   current.cost,
			}, true
		}

		for _, n := range e.g.NeighborsOf(current.station) {
			if visited[n.Station] {
				continue
			}
			candidate := current.cost + n.Weight
			if best, seen := dist[n.Station]; seen && candidate >= best {
				continue
			}
			dist[n.Station] = candidate
			prev[n.Station] = current.station
			seq++
			heap.Push(frontier, &queueItem{station: n.Station, cost: candidate, seq: seq})
		}
	}

	return Result{}, false
}

// reconstructPath walks predecessor links back from destination
func reconstructPath(prev map[string]string, origin, destination string) []string {
	path := []string{destination}
	for at := destination; at != origin; {
		at = prev[at]
		path = append(path, at)
	}
	slices.Reverse(path)
	return path
}

// queueItem represents a frontier entry during search
type queueItem struct {
	station string
	cost    float64
	seq     int // insertion order, breaks cost ties deterministically
	index   int // for heap
}

// priorityQueue implements heap.Interface for the Dijkstra frontier
type priorityQueue []*queueItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].cost != pq[j].cost {
		return pq[i].cost < pq[j].cost
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x interface{}) {
	n := len(*pq)
	item := x.(*queueItem)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[0 : n-1]
	return item
}
