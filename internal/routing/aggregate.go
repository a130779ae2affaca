package routing

import (
	"errors"
	"fmt"

	"github.com/passbi/subway_path/internal/models"
)

// ErrMissingEdgeRecord means a path step has no matching section record.
// It signals that the graph and the section table disagree and is never
// expected from a correctly built network.
var ErrMissingEdgeRecord = errors.New("missing edge record")

// Aggregator totals every tracked metric along a path
type Aggregator struct {
	sections map[sectionKey]models.Section
}

type sectionKey struct {
	a, b string
}

// unordered pair key, stations sorted
func keyOf(x, y string) sectionKey {
	if x > y {
		x, y = y, x
	}
	return sectionKey{a: x, b: y}
}

// NewAggregator indexes sections by unordered station pair. When a pair
// appears more than once the last record wins, like the graph's overwrite.
func NewAggregator(sections []models.Section) *Aggregator {
	idx := make(map[sectionKey]models.Section, len(sections))
	for _, s := range sections {
		idx[keyOf(s.From, s.To)] = s
	}
	return &Aggregator{sections: idx}
}

// Aggregate sums distance and time over consecutive station pairs of path
func (a *Aggregator) Aggregate(path []string) (models.Totals, error) {
	var totals models.Totals
	for i := 1; i < len(path); i++ {
		s, ok := a.sections[keyOf(path[i-1], path[i])]
		if !ok {
			return models.Totals{}, fmt.Errorf("%w: %s-%s", ErrMissingEdgeRecord, path[i-1], path[i])
		}
		totals.Distance += s.Distance
		totals.Time += s.Time
	}
	return totals, nil
}
