package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"staytrack/cmd/mockgen/engine"
)

func main() {
	scenario := flag.String("scenario", "mild", "Scenario to generate: mild, labor, churn")
	distribution := flag.String("distribution", "uniform", "Stay length distribution: uniform, weibull")
	outDir := flag.String("out", "./.cache/mock", "Output directory for mock files")
	count := flag.Int("count", 200, "Number of travellers to generate")
	seed := flag.Uint64("seed", 1, "Random seed")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario:     *scenario,
		Distribution: *distribution,
		Count:        *count,
		Seed:         *seed,
		Now:          time.Now(),
	}

	fmt.Printf("Generating scenario '%s' (Distribution: %s, Count: %d) to %s...\n", cfg.Scenario, cfg.Distribution, cfg.Count, *outDir)

	ds := engine.Generate(cfg)
	if err := engine.Save(*outDir, ds); err != nil {
		fmt.Printf("Failed to save mock data: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done. %d log rows, %d labor records.\n", len(ds.Log.Rows), len(ds.Labor.Rows))
}
