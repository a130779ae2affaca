package routing

import (
	"errors"
	"fmt"

	"github.com/passbi/subway_path/internal/graph"
	"github.com/passbi/subway_path/internal/models"
)

// ErrInvalidSearchType is returned for an unknown search type name
var ErrInvalidSearchType = errors.New("invalid search type")

// Strategy defines the cost dimension a search optimizes.
// Each strategy reads its edge cost from the full section record.
type Strategy interface {
	Name() models.MetricName
	EdgeCost(section models.Section) float64
}

// DistanceStrategy optimizes for the shortest total distance
type DistanceStrategy struct{}

func (s *DistanceStrategy) Name() models.MetricName {
	return models.MetricDistance
}

func (s *DistanceStrategy) EdgeCost(sec models.Section) float64 {
	return sec.Distance
}

// TimeStrategy optimizes for the minimum total travel time
type TimeStrategy struct{}

func (s *TimeStrategy) Name() models.MetricName {
	return models.MetricTime
}

func (s *TimeStrategy) EdgeCost(sec models.Section) float64 {
	return sec.Time
}

// GetStrategy returns a strategy by search type name
func GetStrategy(name string) (Strategy, error) {
	switch models.MetricName(name) {
	case models.MetricDistance:
		return &DistanceStrategy{}, nil
	case models.MetricTime:
		return &TimeStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSearchType, name)
	}
}

// GetAllStrategies returns all available strategies
func GetAllStrategies() []Strategy {
	return []Strategy{
		&DistanceStrategy{},
		&TimeStrategy{},
	}
}

// WeightFuncs returns the per-metric weight extractors used to build a network
func WeightFuncs() map[models.MetricName]graph.WeightFunc {
	funcs := make(map[models.MetricName]graph.WeightFunc)
	for _, s := range GetAllStrategies() {
		funcs[s.Name()] = s.EdgeCost
	}
	return funcs
}
