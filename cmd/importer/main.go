package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/passbi/subway_path/internal/config"
	"github.com/passbi/subway_path/internal/db"
	"github.com/passbi/subway_path/internal/graph"
	"github.com/passbi/subway_path/internal/routing"
	"github.com/passbi/subway_path/internal/seed"
	"github.com/passbi/subway_path/internal/store"
)

func main() {
	seedPath := flag.String("seed", "", "Path to a seed directory or ZIP file (required)")
	verify := flag.Bool("verify", true, "Reload the stored network and build its graphs after import")

	flag.Parse()

	if *seedPath == "" {
		fmt.Println("Usage: subway-import --seed=<dir|file.zip> [--verify=false]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Println("Starting seed import...")
	log.Printf("Seed: %s", *seedPath)

	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	builder := graph.NewBuilder(pool)
	if err := builder.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to prepare schema: %v", err)
	}

	st := store.New(pool)
	importLogID, err := st.StartImport(ctx)
	if err != nil {
		log.Fatalf("Failed to create import log: %v", err)
	}

	stats, err := runImport(ctx, builder, *seedPath)
	if finishErr := st.FinishImport(ctx, importLogID, stats.Stations, stats.Lines, stats.Sections, err); finishErr != nil {
		log.Printf("Warning: %v", finishErr)
	}
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	if *verify {
		log.Println("Verifying stored network...")
		network, err := graph.LoadNetwork(ctx, st, routing.WeightFuncs())
		if err != nil {
			log.Fatalf("Stored network does not build: %v", err)
		}
		for _, s := range routing.GetAllStrategies() {
			g, _ := network.Graph(s.Name())
			log.Printf("  %s graph: %d stations, %d edges", s.Name(), len(g.Vertices()), g.EdgeCount())
		}
	}

	log.Println("Import completed successfully!")
}

func runImport(ctx context.Context, builder *graph.Builder, seedPath string) (graph.ImportStats, error) {
	startTime := time.Now()

	log.Println("Step 1/2: Parsing and normalizing seed...")
	s, err := seed.Load(seedPath)
	if err != nil {
		return graph.ImportStats{}, fmt.Errorf("failed to parse seed: %w", err)
	}

	// Reject the seed before touching the database if the graph would
	if _, err := graph.NewNetwork(graph.NetworkData{Stations: s.Stations, Lines: s.Lines(), Sections: s.Sections}, routing.WeightFuncs()); err != nil {
		return graph.ImportStats{}, fmt.Errorf("seed does not form a valid network: %w", err)
	}

	log.Println("Step 2/2: Writing network to database...")
	stats, err := builder.Import(ctx, s)
	if err != nil {
		return stats, err
	}

	log.Printf("Import completed in %s (%d stations, %d lines, %d sections)",
		time.Since(startTime), stats.Stations, stats.Lines, stats.Sections)
	return stats, nil
}
