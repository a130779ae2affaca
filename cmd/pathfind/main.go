package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/passbi/subway_path/internal/graph"
	"github.com/passbi/subway_path/internal/models"
	"github.com/passbi/subway_path/internal/routing"
	"github.com/passbi/subway_path/internal/seed"
)

func main() {
	seedPath := flag.String("seed", "", "Path to a seed directory or ZIP file (required)")
	from := flag.String("from", "", "Departure station (required)")
	to := flag.String("to", "", "Arrival station (required)")
	searchType := flag.String("type", "", "shortest-distance or minimum-time (default: both)")
	quiet := flag.Bool("quiet", false, "Suppress load progress logs")

	flag.Parse()

	if *seedPath == "" || *from == "" || *to == "" {
		fmt.Println("Usage: subway-pathfind --seed=<dir|file.zip> --from=<station> --to=<station> [--type=shortest-distance|minimum-time]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if *quiet {
		log.SetOutput(io.Discard)
	}

	strategies := routing.GetAllStrategies()
	if *searchType != "" {
		strategy, err := routing.GetStrategy(*searchType)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		strategies = []routing.Strategy{strategy}
	}

	s, err := seed.Load(*seedPath)
	if err != nil {
		log.Fatalf("Failed to load seed: %v", err)
	}

	network, err := graph.NewNetwork(graph.NetworkData{
		Stations: s.Stations,
		Lines:    s.Lines(),
		Sections: s.Sections,
	}, routing.WeightFuncs())
	if err != nil {
		log.Fatalf("Failed to build network: %v", err)
	}

	router := routing.NewRouter(network)

	origin, destination, err := router.ValidateQuery(*from, *to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	var found bool
	for _, strategy := range strategies {
		path, err := router.FindPath(origin, destination, strategy)
		if err != nil {
			log.Fatalf("Failed to compute path: %v", err)
		}
		if path == nil {
			continue
		}
		found = true
		if err := printResult(os.Stdout, path); err != nil {
			log.Fatalf("Failed to print result: %v", err)
		}
	}

	if !found {
		fmt.Fprintln(os.Stderr, "no path between stations")
		os.Exit(1)
	}
}

// printResult writes one result table: totals, then the path
func printResult(w io.Writer, p *models.Path) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Search type\t%s\n", p.Metric)
	fmt.Fprintf(tw, "Total distance\t%gkm\n", p.Totals.Distance)
	fmt.Fprintf(tw, "Total time\t%gmin\n", p.Totals.Time)
	fmt.Fprintf(tw, "Path\t%s\n", strings.Join(p.Stations, "➜"))
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}
