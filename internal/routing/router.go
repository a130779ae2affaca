package routing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/passbi/subway_path/internal/graph"
	"github.com/passbi/subway_path/internal/models"
)

// MinStationNameLength is the shortest accepted station name in a query
const MinStationNameLength = 2

var (
	ErrStationNameTooShort = errors.New("station name too short")
	ErrUnknownStation      = errors.New("unknown station")
	ErrSameStation         = errors.New("departure and arrival stations are the same")
)

// Router selects the graph for a strategy, runs the engine on it and
// totals the resulting path under every metric
type Router struct {
	network    *graph.Network
	engines    map[models.MetricName]*Engine
	aggregator *Aggregator
}

// NewRouter creates a router over a fully built network
func NewRouter(network *graph.Network) *Router {
	r := &Router{
		network:    network,
		engines:    make(map[models.MetricName]*Engine),
		aggregator: NewAggregator(network.Sections()),
	}
	for _, s := range GetAllStrategies() {
		if g, ok := network.Graph(s.Name()); ok {
			r.engines[s.Name()] = NewEngine(g)
		}
	}
	return r
}

// Network returns the network the router queries
func (r *Router) Network() *graph.Network {
	return r.network
}

// FindPath finds the optimal path from origin to destination under strategy.
// It returns nil and no error when the stations are not connected.
func (r *Router) FindPath(origin, destination string, strategy Strategy) (*models.Path, error) {
	engine, ok := r.engines[strategy.Name()]
	if !ok {
		return nil, fmt.Errorf("%w: no graph built for %q", ErrInvalidSearchType, strategy.Name())
	}

	result, found := engine.FindShortestPath(origin, destination)
	if !found {
		return nil, nil
	}

	totals, err := r.aggregator.Aggregate(result.Stations)
	if err != nil {
		return nil, err
	}

	return &models.Path{
		Stations: result.Stations,
		Metric:   strategy.Name(),
		Weight:   result.Weight,
		Totals:   totals,
	}, nil
}

// ValidateQuery checks a departure/arrival pair before it reaches the engine.
// Names are trimmed; the trimmed names are returned.
func (r *Router) ValidateQuery(origin, destination string) (string, string, error) {
	origin = strings.TrimSpace(origin)
	destination = strings.TrimSpace(destination)

	if len([]rune(origin)) < MinStationNameLength || len([]rune(destination)) < MinStationNameLength {
		return "", "", fmt.Errorf("%w: names need at least %d characters", ErrStationNameTooShort, MinStationNameLength)
	}
	for _, name := range []string{origin, destination} {
		if !r.network.HasStation(name) {
			return "", "", fmt.Errorf("%w: %s", ErrUnknownStation, name)
		}
	}
	if origin == destination {
		return "", "", ErrSameStation
	}

	return origin, destination, nil
}
