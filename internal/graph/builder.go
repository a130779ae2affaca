package graph

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/passbi/subway_path/internal/seed"
)

const batchSize = 1000

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS station (
		name       TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS line (
		name     TEXT PRIMARY KEY,
		position INT NOT NULL DEFAULT 0
	);
	ALTER TABLE line ADD COLUMN IF NOT EXISTS position INT NOT NULL DEFAULT 0;
	CREATE TABLE IF NOT EXISTS line_station (
		line_name    TEXT NOT NULL REFERENCES line(name) ON DELETE CASCADE,
		station_name TEXT NOT NULL REFERENCES station(name) ON DELETE CASCADE,
		sequence     INT  NOT NULL,
		PRIMARY KEY (line_name, sequence)
	);
	CREATE TABLE IF NOT EXISTS section (
		id           BIGSERIAL PRIMARY KEY,
		from_station TEXT NOT NULL REFERENCES station(name) ON DELETE CASCADE,
		to_station   TEXT NOT NULL REFERENCES station(name) ON DELETE CASCADE,
		distance_km  DOUBLE PRECISION NOT NULL CHECK (distance_km >= 0),
		time_min     DOUBLE PRECISION NOT NULL CHECK (time_min >= 0)
	);
	CREATE TABLE IF NOT EXISTS import_log (
		id             BIGSERIAL PRIMARY KEY,
		started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at   TIMESTAMPTZ,
		status         TEXT NOT NULL,
		stations_count INT NOT NULL DEFAULT 0,
		lines_count    INT NOT NULL DEFAULT 0,
		sections_count INT NOT NULL DEFAULT 0,
		error_msg      TEXT
	);
`

// ImportStats reports how many rows an import wrote
type ImportStats struct {
	Stations int
	Lines    int
	Sections int
}

// Builder persists a parsed seed into PostgreSQL
type Builder struct {
	db *pgxpool.Pool
}

// NewBuilder creates a new network builder
func NewBuilder(db *pgxpool.Pool) *Builder {
	return &Builder{db: db}
}

// EnsureSchema creates the network tables if they do not exist
func (b *Builder) EnsureSchema(ctx context.Context) error {
	if _, err := b.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Import replaces the stored network with the contents of s in one transaction
func (b *Builder) Import(ctx context.Context, s *seed.Seed) (ImportStats, error) {
	log.Println("Starting network import...")
	var stats ImportStats

	tx, err := b.db.Begin(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE TABLE section, line_station, line, station CASCADE"); err != nil {
		return stats, fmt.Errorf("failed to clear network: %w", err)
	}

	// Stations
	batch := &pgx.Batch{}
	for _, name := range s.Stations {
		batch.Queue(`INSERT INTO station (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
		stats.Stations++
		if batch.Len() >= batchSize {
			if err := executeBatch(ctx, tx, batch); err != nil {
				return stats, fmt.Errorf("failed to insert stations: %w", err)
			}
			batch = &pgx.Batch{}
		}
	}
	if err := executeBatch(ctx, tx, batch); err != nil {
		return stats, fmt.Errorf("failed to insert stations: %w", err)
	}
	log.Printf("Created %d stations", stats.Stations)

	// Lines keep their seed order through position
	batch = &pgx.Batch{}
	for pos, line := range s.Lines() {
		batch.Queue(`INSERT INTO line (name, position) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`, line.Name, pos)
		for i, station := range line.Stations {
			batch.Queue(`
				INSERT INTO line_station (line_name, station_name, sequence)
				VALUES ($1, $2, $3)
				ON CONFLICT (line_name, sequence) DO UPDATE SET station_name = EXCLUDED.station_name
			`, line.Name, station, i+1)
		}
		stats.Lines++
		if batch.Len() >= batchSize {
			if err := executeBatch(ctx, tx, batch); err != nil {
				return stats, fmt.Errorf("failed to insert lines: %w", err)
			}
			batch = &pgx.Batch{}
		}
	}
	if err := executeBatch(ctx, tx, batch); err != nil {
		return stats, fmt.Errorf("failed to insert lines: %w", err)
	}
	log.Printf("Created %d lines", stats.Lines)

	// Sections
	batch = &pgx.Batch{}
	for _, sec := range s.Sections {
		batch.Queue(`
			INSERT INTO section (from_station, to_station, distance_km, time_min)
			VALUES ($1, $2, $3, $4)
		`, sec.From, sec.To, sec.Distance, sec.Time)
		stats.Sections++
		if batch.Len() >= batchSize {
			if err := executeBatch(ctx, tx, batch); err != nil {
				return stats, fmt.Errorf("failed to insert sections: %w", err)
			}
			batch = &pgx.Batch{}
		}
	}
	if err := executeBatch(ctx, tx, batch); err != nil {
		return stats, fmt.Errorf("failed to insert sections: %w", err)
	}
	log.Printf("Created %d sections", stats.Sections)

	if err := tx.Commit(ctx); err != nil {
		return stats, fmt.Errorf("failed to commit import: %w", err)
	}

	if err := b.analyzeNetwork(ctx); err != nil {
		log.Printf("Warning: failed to analyze tables: %v", err)
	}

	log.Println("Network import completed successfully")
	return stats, nil
}

// executeBatch executes a batch of queries
func executeBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch execution failed at query %d: %w", i, err)
		}
	}

	return nil
}

// analyzeNetwork runs ANALYZE on network tables for query optimization
func (b *Builder) analyzeNetwork(ctx context.Context) error {
	tables := []string{"station", "line", "line_station", "section"}

	for _, table := range tables {
		if _, err := b.db.Exec(ctx, fmt.Sprintf("ANALYZE %s", table)); err != nil {
			return err
		}
	}

	return nil
}
