package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/deploycenter/internal/config"
	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/db"
	"github.com/edvin/deploycenter/internal/logging"
	"github.com/edvin/deploycenter/internal/seed"
	"github.com/edvin/deploycenter/internal/workflow"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "seed":
		fs := flag.NewFlagSet("seed", flag.ExitOnError)
		file := fs.String("f", "", "Path to seed YAML file (required)")
		fs.Parse(os.Args[2:])

		if *file == "" {
			fmt.Fprintln(os.Stderr, "Error: -f flag is required")
			fs.Usage()
			os.Exit(1)
		}

		if err := runSeed(*file); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "scrape":
		fs := flag.NewFlagSet("scrape", flag.ExitOnError)
		serviceID := fs.Int64("service", 0, "Service ID to scrape (0 scrapes all active services)")
		fs.Parse(os.Args[2:])

		if err := runScrape(*serviceID); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runSeed(path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate("api"); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seedCfg, err := seed.Load(path)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	services := core.NewServices(pool, logging.NewLogger(cfg))
	return seed.Apply(ctx, services, seedCfg)
}

func runScrape(serviceID int64) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	tc, err := temporalclient.Dial(temporalclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	defer tc.Close()

	ctx := context.Background()
	var run temporalclient.WorkflowRun
	if serviceID > 0 {
		run, err = tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
			ID:        fmt.Sprintf("scrape-service-%d", serviceID),
			TaskQueue: cfg.ScrapeTaskQueue,
		}, workflow.ScrapeServiceWorkflow, serviceID)
	} else {
		run, err = tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
			ID:        "scrape-all-services",
			TaskQueue: cfg.ScrapeTaskQueue,
		}, workflow.ScrapeAllServicesWorkflow)
	}
	if err != nil {
		return fmt.Errorf("start scrape workflow: %w", err)
	}

	fmt.Printf("Started workflow %s (run %s)\n", run.GetID(), run.GetRunID())
	return nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage:
  deployctl seed -f <seed.yaml>
  deployctl scrape [-service <id>]

Commands:
  seed    Seed operators, services, organizations and API keys from a YAML file
  scrape  Trigger a metric scrape workflow (one service or all active services)

Flags:
  -f string        Path to seed YAML file (required for seed)
  -service int     Service ID to scrape (default: all active services)

Environment:
  DATABASE_URL, TEMPORAL_ADDRESS, SCRAPE_TASK_QUEUE`)
}
