package graph

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/passbi/subway_path/internal/models"
)

// NetworkData is the static input a Network is built from
type NetworkData struct {
	Stations []string
	Lines    []models.Line
	Sections []models.Section
}

// Loader provides network data from persistent storage
type Loader interface {
	LoadStations(ctx context.Context) ([]string, error)
	LoadLines(ctx context.Context) ([]models.Line, error)
	LoadSections(ctx context.Context) ([]models.Section, error)
}

// Network holds one weighted graph per metric, all built from the same
// section list, plus the section table used for cost aggregation.
// A Network is read-only once built and may be shared between goroutines.
type Network struct {
	graphs   map[models.MetricName]*WeightedGraph
	sections []models.Section
	stations map[string]struct{}
	lines    []models.Line
}

// NewNetwork builds a graph per metric from data
func NewNetwork(data NetworkData, metrics map[models.MetricName]WeightFunc) (*Network, error) {
	n := &Network{
		graphs:   make(map[models.MetricName]*WeightedGraph, len(metrics)),
		sections: append([]models.Section(nil), data.Sections...),
		stations: make(map[string]struct{}, len(data.Stations)),
		lines:    append([]models.Line(nil), data.Lines...),
	}

	for name, weight := range metrics {
		g, err := BuildGraph(n.sections, weight)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s graph: %w", name, err)
		}
		n.graphs[name] = g
	}

	for _, s := range data.Stations {
		n.stations[s] = struct{}{}
	}
	for _, s := range n.sections {
		n.stations[s.From] = struct{}{}
		n.stations[s.To] = struct{}{}
	}

	return n, nil
}

// LoadNetwork reads stations, lines and sections through loader and builds the network
func LoadNetwork(ctx context.Context, loader Loader, metrics map[models.MetricName]WeightFunc) (*Network, error) {
	startTime := time.Now()
	log.Println("Loading subway network into memory...")

	stations, err := loader.LoadStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stations: %w", err)
	}
	log.Printf("  Loaded %d stations", len(stations))

	lines, err := loader.LoadLines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load lines: %w", err)
	}
	log.Printf("  Loaded %d lines", len(lines))

	sections, err := loader.LoadSections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sections: %w", err)
	}
	log.Printf("  Loaded %d sections", len(sections))

	n, err := NewNetwork(NetworkData{Stations: stations, Lines: lines, Sections: sections}, metrics)
	if err != nil {
		return nil, err
	}

	log.Printf("Network loaded in %v (%d stations, %d sections, %d metrics)",
		time.Since(startTime), len(n.stations), len(sections), len(n.graphs))
	return n, nil
}

// Graph returns the graph built for metric
func (n *Network) Graph(metric models.MetricName) (*WeightedGraph, bool) {
	g, ok := n.graphs[metric]
	return g, ok
}

// Sections returns the section table the graphs were built from
func (n *Network) Sections() []models.Section {
	return n.sections
}

// HasStation reports whether name is a known station
func (n *Network) HasStation(name string) bool {
	_, ok := n.stations[name]
	return ok
}

// Stations returns every known station, sorted
func (n *Network) Stations() []string {
	names := make([]string, 0, len(n.stations))
	for s := range n.stations {
		names = append(names, s)
	}
	sort.Strings(names)
	return names
}

// Lines returns the subway lines in load order
func (n *Network) Lines() []models.Line {
	return n.lines
}
