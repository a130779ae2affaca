package models

import "time"

// MetricName identifies the weight dimension a query optimizes
type MetricName string

const (
	MetricDistance MetricName = "shortest-distance"
	MetricTime     MetricName = "minimum-time"
)

// Line represents a subway line and its ordered stations
type Line struct {
	Name     string   `json:"name"`
	Stations []string `json:"stations"`
}

// Section represents the undirected connection between two adjacent stations
// with every tracked cost attribute
type Section struct {
	ID       int64
	From     string
	To       string
	Distance float64 // km
	Time     float64 // minutes
}

// Totals holds the cost of a path under every tracked metric
type Totals struct {
	Distance float64 `json:"distance_km"`
	Time     float64 `json:"time_min"`
}

// Path represents a complete route from origin to destination
type Path struct {
	Stations []string   `json:"stations"`
	Metric   MetricName `json:"search_type"`
	Weight   float64    `json:"weight"` // cumulative weight under Metric
	Totals   Totals     `json:"totals"`
}

// Seed data structures for import

// SeedLineStop represents one row of lines.txt
type SeedLineStop struct {
	LineName    string
	StationName string
	Sequence    int
}

// ImportLog represents a seed import operation log
type ImportLog struct {
	ID            int64      `json:"id"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Status        string     `json:"status"`
	StationsCount int        `json:"stations_count"`
	LinesCount    int        `json:"lines_count"`
	SectionsCount int        `json:"sections_count"`
	ErrorMsg      string     `json:"error,omitempty"`
}
