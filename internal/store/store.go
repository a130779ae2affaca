package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/passbi/subway_path/internal/models"
)

// Store reads the subway network from PostgreSQL. It satisfies graph.Loader.
type Store struct {
	db *pgxpool.Pool
}

// New creates a store on top of an open pool
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// LoadStations returns every station name
func (s *Store) LoadStations(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT name FROM station ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	var stations []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		stations = append(stations, name)
	}

	return stations, rows.Err()
}

// LoadLines returns each line with its stations in travel order
func (s *Store) LoadLines(ctx context.Context) ([]models.Line, error) {
	rows, err := s.db.Query(ctx, `
		SELECT l.name, ls.station_name
		FROM line l
		JOIN line_station ls ON ls.line_name = l.name
		ORDER BY l.position, l.name, ls.sequence
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	var lines []models.Line
	for rows.Next() {
		var lineName, stationName string
		if err := rows.Scan(&lineName, &stationName); err != nil {
			return nil, fmt.Errorf("failed to scan line station: %w", err)
		}

		if n := len(lines); n == 0 || lines[n-1].Name != lineName {
			lines = append(lines, models.Line{Name: lineName})
		}
		last := &lines[len(lines)-1]
		last.Stations = append(last.Stations, stationName)
	}

	return lines, rows.Err()
}

// LoadSections returns every section in insertion order, so duplicate pairs
// resolve the same way they did at import time
func (s *Store) LoadSections(ctx context.Context) ([]models.Section, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, from_station, to_station, distance_km, time_min
		FROM section
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	defer rows.Close()

	var sections []models.Section
	for rows.Next() {
		var sec models.Section
		if err := rows.Scan(&sec.ID, &sec.From, &sec.To, &sec.Distance, &sec.Time); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, sec)
	}

	return sections, rows.Err()
}

// StartImport records a running import and returns its id
func (s *Store) StartImport(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO import_log (status) VALUES ('running') RETURNING id`,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create import log: %w", err)
	}
	return id, nil
}

// FinishImport marks an import as completed, or failed when importErr is set
func (s *Store) FinishImport(ctx context.Context, id int64, stations, lines, sections int, importErr error) error {
	status := "completed"
	var errMsg *string
	if importErr != nil {
		status = "failed"
		msg := importErr.Error()
		errMsg = &msg
	}

	_, err := s.db.Exec(ctx, `
		UPDATE import_log
		SET completed_at = $2, status = $3,
		    stations_count = $4, lines_count = $5, sections_count = $6,
		    error_msg = $7
		WHERE id = $1
	`, id, time.Now(), status, stations, lines, sections, errMsg)
	if err != nil {
		return fmt.Errorf("failed to update import log: %w", err)
	}
	return nil
}

// LastImport returns the most recent import log entry, or nil if none exist
func (s *Store) LastImport(ctx context.Context) (*models.ImportLog, error) {
	var entry models.ImportLog
	err := s.db.QueryRow(ctx, `
		SELECT id, started_at, completed_at, status,
		       stations_count, lines_count, sections_count, COALESCE(error_msg, '')
		FROM import_log
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&entry.ID, &entry.StartedAt, &entry.CompletedAt, &entry.Status,
		&entry.StationsCount, &entry.LinesCount, &entry.SectionsCount, &entry.ErrorMsg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query import log: %w", err)
	}
	return &entry, nil
}
