package seed

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/passbi/subway_path/internal/models"
)

// Seed represents a parsed subway network seed
type Seed struct {
	Stations  []string
	LineStops []models.SeedLineStop
	Sections  []models.Section
}

// Lines groups line stops by line, ordered by sequence. Lines keep the order
// in which they first appear.
func (s *Seed) Lines() []models.Line {
	var order []string
	grouped := make(map[string][]models.SeedLineStop)
	for _, ls := range s.LineStops {
		if _, seen := grouped[ls.LineName]; !seen {
			order = append(order, ls.LineName)
		}
		grouped[ls.LineName] = append(grouped[ls.LineName], ls)
	}

	lines := make([]models.Line, 0, len(order))
	for _, name := range order {
		stops := grouped[name]
		sort.SliceStable(stops, func(i, j int) bool {
			return stops[i].Sequence < stops[j].Sequence
		})
		line := models.Line{Name: name, Stations: make([]string, 0, len(stops))}
		for _, st := range stops {
			line.Stations = append(line.Stations, st.StationName)
		}
		lines = append(lines, line)
	}
	return lines
}

// Load parses a seed from a directory or a ZIP file and normalizes it
func Load(path string) (*Seed, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("seed not found: %w", err)
	}

	var s *Seed
	if info.IsDir() {
		s, err = ParseSeedDir(path)
	} else {
		s, err = ParseSeedZip(path)
	}
	if err != nil {
		return nil, err
	}

	s.Normalize()
	return s, nil
}

// ParseSeedZip extracts and parses a seed ZIP file
func ParseSeedZip(zipPath string) (*Seed, error) {
	tempDir, err := os.MkdirTemp("", "subway-seed-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	if err := extractZip(zipPath, tempDir); err != nil {
		return nil, fmt.Errorf("failed to extract zip: %w", err)
	}

	return ParseSeedDir(tempDir)
}

// ParseSeedDir parses stations.txt, lines.txt and sections.txt from dir.
// sections.txt is required; the other two are optional.
func ParseSeedDir(dir string) (*Seed, error) {
	s := &Seed{}

	if stations, err := ParseStations(filepath.Join(dir, "stations.txt")); err == nil {
		s.Stations = stations
		log.Printf("Parsed %d stations", len(stations))
	} else {
		log.Printf("Warning: failed to parse stations: %v", err)
	}

	if lineStops, err := ParseLineStops(filepath.Join(dir, "lines.txt")); err == nil {
		s.LineStops = lineStops
		log.Printf("Parsed %d line stops", len(lineStops))
	} else {
		log.Printf("Warning: failed to parse lines: %v", err)
	}

	sections, err := ParseSections(filepath.Join(dir, "sections.txt"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse sections (required): %w", err)
	}
	s.Sections = sections
	log.Printf("Parsed %d sections", len(sections))

	return s, nil
}

// ParseStations parses stations.txt
func ParseStations(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parseStationsFromReader(file)
}

func parseStationsFromReader(reader io.Reader) ([]string, error) {
	var stations []string
	err := readRows(reader, func(record []string, colMap map[string]int) error {
		name := getField(record, colMap, "station_name")
		if name == "" {
			return fmt.Errorf("empty station_name")
		}
		stations = append(stations, name)
		return nil
	})
	return stations, err
}

// ParseLineStops parses lines.txt
func ParseLineStops(filePath string) ([]models.SeedLineStop, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parseLineStopsFromReader(file)
}

func parseLineStopsFromReader(reader io.Reader) ([]models.SeedLineStop, error) {
	var stops []models.SeedLineStop
	err := readRows(reader, func(record []string, colMap map[string]int) error {
		seq, err := strconv.Atoi(getField(record, colMap, "sequence"))
		if err != nil {
			return fmt.Errorf("invalid sequence: %w", err)
		}
		stop := models.SeedLineStop{
			LineName:    getField(record, colMap, "line_name"),
			StationName: getField(record, colMap, "station_name"),
			Sequence:    seq,
		}
		if stop.LineName == "" || stop.StationName == "" {
			return fmt.Errorf("empty line_name or station_name")
		}
		stops = append(stops, stop)
		return nil
	})
	return stops, err
}

// ParseSections parses sections.txt
func ParseSections(filePath string) ([]models.Section, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parseSectionsFromReader(file)
}

func parseSectionsFromReader(reader io.Reader) ([]models.Section, error) {
	var sections []models.Section
	err := readRows(reader, func(record []string, colMap map[string]int) error {
		distance, err := strconv.ParseFloat(getField(record, colMap, "distance_km"), 64)
		if err != nil {
			return fmt.Errorf("invalid distance_km: %w", err)
		}
		minutes, err := strconv.ParseFloat(getField(record, colMap, "time_min"), 64)
		if err != nil {
			return fmt.Errorf("invalid time_min: %w", err)
		}
		section := models.Section{
			From:     getField(record, colMap, "from_station"),
			To:       getField(record, colMap, "to_station"),
			Distance: distance,
			Time:     minutes,
		}
		if section.From == "" || section.To == "" {
			return fmt.Errorf("empty from_station or to_station")
		}
		sections = append(sections, section)
		return nil
	})
	return sections, err
}

// readRows reads the header and hands every well-formed row to fn.
// Rows that fail to read or that fn rejects are skipped with a warning.
func readRows(reader io.Reader, fn func(record []string, colMap map[string]int) error) error {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	header, err := csvReader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	colMap := makeColumnMap(header)

	line := 1
	for {
		record, err := csvReader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Warning: skipping malformed row %d: %v", line, err)
			continue
		}
		if err := fn(record, colMap); err != nil {
			log.Printf("Warning: skipping row %d: %v", line, err)
		}
	}

	return nil
}

func makeColumnMap(header []string) map[string]int {
	colMap := make(map[string]int)
	for i, col := range header {
		// Strip a UTF-8 BOM left by spreadsheet exports
		colMap[strings.TrimPrefix(strings.TrimSpace(col), "\ufeff")] = i
	}
	return colMap
}

func getField(record []string, colMap map[string]int, fieldName string) string {
	if idx, ok := colMap[fieldName]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}

// seedFiles are the entries extracted from a seed archive. Archives may nest
// them under a directory; everything else is skipped.
var seedFiles = map[string]bool{
	"stations.txt": true,
	"lines.txt":    true,
	"sections.txt": true,
}

// isSeedEntry reports whether a zip entry is a seed file, ignoring the
// resource forks macOS adds under __MACOSX/
func isSeedEntry(name string) bool {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(name, "__MACOSX/") || strings.Contains(name, "/__MACOSX/") {
		return false
	}
	return seedFiles[path.Base(name)]
}

func extractZip(zipPath, destDir string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.FileInfo().IsDir() || !isSeedEntry(file.Name) {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return err
		}

		destPath := filepath.Join(destDir, path.Base(strings.ReplaceAll(file.Name, "\\", "/")))
		outFile, err := os.Create(destPath)
		if err != nil {
			rc.Close()
			return err
		}

		_, err = io.Copy(outFile, rc)
		rc.Close()
		outFile.Close()

		if err != nil {
			return err
		}
	}

	return nil
}
