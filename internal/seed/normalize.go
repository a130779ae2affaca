package seed

import (
	"log"
	"math"
	"slices"
	"strings"

	"github.com/passbi/subway_path/internal/models"
)

// NormalizeStations trims station names and removes blanks and duplicates,
// keeping first-seen order
func NormalizeStations(stations []string) []string {
	seen := make(map[string]bool, len(stations))
	cleaned := make([]string, 0, len(stations))

	for _, s := range stations {
		name := strings.TrimSpace(s)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		cleaned = append(cleaned, name)
	}

	if removed := len(stations) - len(cleaned); removed > 0 {
		log.Printf("Cleaned stations: removed %d blank or duplicate names", removed)
	}
	return cleaned
}

// NormalizeSections removes sections the graph would reject (self loops,
// negative or non-finite costs) and collapses sections that connect the same
// pair of stations. The last record for a pair wins, matching the graph's
// overwrite rule; it takes the position of the first occurrence.
func NormalizeSections(sections []models.Section) []models.Section {
	cleaned := make([]models.Section, 0, len(sections))
	index := make(map[pairKey]int)

	for _, s := range sections {
		s.From = strings.TrimSpace(s.From)
		s.To = strings.TrimSpace(s.To)

		if s.From == s.To {
			log.Printf("Warning: dropping self-loop section at %s", s.From)
			continue
		}
		if !validCost(s.Distance) || !validCost(s.Time) {
			log.Printf("Warning: dropping section %s-%s with invalid cost (distance=%v, time=%v)",
				s.From, s.To, s.Distance, s.Time)
			continue
		}

		key := newPairKey(s.From, s.To)
		if i, dup := index[key]; dup {
			prev := cleaned[i]
			if prev.Distance != s.Distance || prev.Time != s.Time {
				log.Printf("Warning: section %s-%s redefined (distance %v->%v, time %v->%v), keeping last",
					s.From, s.To, prev.Distance, s.Distance, prev.Time, s.Time)
			}
			cleaned[i] = s
			continue
		}

		index[key] = len(cleaned)
		cleaned = append(cleaned, s)
	}

	if removed := len(sections) - len(cleaned); removed > 0 {
		log.Printf("Cleaned sections: removed %d invalid or duplicate sections", removed)
	}
	return cleaned
}

// MissingStations returns section endpoints that are absent from stations,
// in first-seen order
func MissingStations(stations []string, sections []models.Section) []string {
	known := make(map[string]bool, len(stations))
	for _, s := range stations {
		known[s] = true
	}

	var missing []string
	for _, sec := range sections {
		for _, name := range []string{sec.From, sec.To} {
			if !known[name] {
				known[name] = true
				missing = append(missing, name)
			}
		}
	}
	return missing
}

func validCost(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

type pairKey struct {
	a, b string
}

func newPairKey(x, y string) pairKey {
	if x > y {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}

// Normalize cleans stations and sections in place and registers every
// station referenced by a section or line stop but missing from the station
// list, so the seed can be stored with its foreign keys intact
func (s *Seed) Normalize() {
	s.Stations = NormalizeStations(s.Stations)
	s.Sections = NormalizeSections(s.Sections)

	missing := MissingStations(s.Stations, s.Sections)
	for _, ls := range s.LineStops {
		if !slices.Contains(s.Stations, ls.StationName) && !slices.Contains(missing, ls.StationName) {
			missing = append(missing, ls.StationName)
		}
	}
	if len(missing) > 0 {
		log.Printf("Warning: %d stations referenced but not listed, adding them", len(missing))
		s.Stations = append(s.Stations, missing...)
	}
}
