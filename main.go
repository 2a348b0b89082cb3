package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bahamut/pkg/adminunits"
	"bahamut/pkg/blobstore"
	"bahamut/pkg/config"
	"bahamut/pkg/health"
	"bahamut/pkg/logging"
	"bahamut/pkg/mapper"
	"bahamut/pkg/metrics"
	"bahamut/pkg/pipeline"
	"bahamut/pkg/profiling"
	"bahamut/pkg/tracing"
)

func main() {
	// Command line flags
	var (
		configFile = flag.String("config", "", "YAML config file (default: $BAHAMUT_CONFIG or config.yml)")
		dryRun     = flag.Bool("dry-run", false, "Write the CSV to stdout instead of uploading it")
		once       = flag.Bool("once", false, "Run a single export and exit")
		interval   = flag.Duration("interval", 0, "Export interval, overrides the config")
		workers    = flag.Int("workers", 0, "Mapping workers, overrides the config")
		adminAddr  = flag.String("admin-addr", "", "Address of the health and metrics server, overrides the config")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Bahamut geocoder export\n\n")
		fmt.Fprintf(os.Stderr, "Reads the NeTEx stop place export, maps stop places, groups of stop\n")
		fmt.Fprintf(os.Stderr, "places and administrative areas to search documents, and publishes\n")
		fmt.Fprintf(os.Stderr, "them as a zipped CSV for the geocoder import.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  BAHAMUT_CONFIG          - YAML config file\n")
		fmt.Fprintf(os.Stderr, "  BAHAMUT_INPUT_BUCKET    - Bucket of the NeTEx export (default: kakka-dev)\n")
		fmt.Fprintf(os.Stderr, "  BAHAMUT_INPUT_FILE      - NeTEx export archive (default: tiamat/geocoder/tiamat_export_geocoder_latest.zip)\n")
		fmt.Fprintf(os.Stderr, "  BAHAMUT_OUTPUT_BUCKET   - Bucket receiving exports (default: bahamut-dev)\n")
		fmt.Fprintf(os.Stderr, "  BAHAMUT_TARGET_BUCKET   - Bucket receiving the latest export (default: haya-dev)\n")
		fmt.Fprintf(os.Stderr, "  BAHAMUT_STORAGE         - Blob storage, local or http (default: local)\n")
		fmt.Fprintf(os.Stderr, "  BAHAMUT_STORAGE_URL     - Object server URL for http storage\n")
		fmt.Fprintf(os.Stderr, "  BAHAMUT_INTERVAL        - Export interval (default: 1m)\n")
		fmt.Fprintf(os.Stderr, "  BAHAMUT_ADMIN_ADDR      - Health and metrics server address (default: :8080)\n")
		fmt.Fprintf(os.Stderr, "  LOG_LEVEL, LOG_FORMAT   - Logging (default: info, text)\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Single dry run against local files\n")
		fmt.Fprintf(os.Stderr, "  %s --once --dry-run > export.csv\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Scheduled export through an object server\n")
		fmt.Fprintf(os.Stderr, "  BAHAMUT_STORAGE=http BAHAMUT_STORAGE_URL=http://blobs:9000 %s --interval=10m\n\n", os.Args[0])
	}

	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *interval > 0 {
		cfg.Interval = *interval
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *adminAddr != "" {
		cfg.AdminAddr = *adminAddr
	}

	logging.InitLogging()

	// Initialize tracing
	shutdownTracing, err := tracing.InitTracing()
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer shutdownTracing()

	// Initialize metrics
	shutdownMetrics, err := metrics.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}
	defer shutdownMetrics()

	// Initialize profiling
	shutdownProfiling, err := profiling.InitProfiling()
	if err != nil {
		log.Fatalf("Failed to initialize profiling: %v", err)
	}
	defer shutdownProfiling()

	input, err := newStore(cfg, cfg.Input.Bucket)
	if err != nil {
		log.Fatalf("Failed to create input blob store: %v", err)
	}
	output, err := newStore(cfg, cfg.Output.Bucket)
	if err != nil {
		log.Fatalf("Failed to create output blob store: %v", err)
	}

	pipelineInstance, err := pipeline.New(pipeline.Config{
		DryRun:       *dryRun,
		InputFile:    cfg.Input.File,
		OutputFolder: cfg.Output.Folder,
		TargetBucket: cfg.Target.Bucket,
		TargetName:   cfg.TargetName(),
		Interval:     cfg.Interval,
		Workers:      cfg.Workers,
		AdminUnits: adminunits.Options{
			CacheSize:       cfg.AdminUnitsCacheSize,
			ExcludedCountry: cfg.ExcludedCountry,
		},
		Mapper: mapper.Options{
			DefaultLanguage:    cfg.DefaultLanguage,
			IncludeGroups:      cfg.IncludeGroups,
			IncludeTopographic: cfg.IncludeTopographic,
		},
		Popularity: cfg.Popularity,
	}, input, output)
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}

	// Print startup information
	if *dryRun {
		log.Printf("Starting bahamut in DRY RUN mode, the CSV is written to stdout")
	} else {
		log.Printf("Starting bahamut, publishing to %s/%s", cfg.Target.Bucket, cfg.TargetName())
	}
	log.Printf("Input: %s/%s (%s storage)", cfg.Input.Bucket, cfg.Input.File, cfg.Storage.Kind)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		if _, err := pipelineInstance.RunOnce(ctx); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		return
	}

	log.Printf("Export interval: %v", cfg.Interval)

	if cfg.AdminAddr != "" {
		admin := health.NewServer(cfg.AdminAddr, pipelineInstance.Ready)
		if err := admin.Start(); err != nil {
			log.Fatalf("Failed to start admin server: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := admin.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error shutting down admin server: %v", err)
			}
		}()
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- pipelineInstance.Run(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		log.Printf("Received shutdown signal, waiting for the current export...")
		select {
		case <-time.After(30 * time.Second):
			log.Println("Shutdown timeout, forcing exit")
		case <-errChan:
			log.Println("Pipeline stopped")
		}
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("Pipeline error: %v", err)
		}
		log.Println("Pipeline stopped")
	}

	log.Println("Bahamut shutdown complete")
}

// newStore builds the configured blob store for one bucket, with retries.
func newStore(cfg config.Config, bucket string) (blobstore.Store, error) {
	var (
		store blobstore.Store
		err   error
	)
	switch cfg.Storage.Kind {
	case config.StorageHTTP:
		store, err = blobstore.NewHTTP(cfg.Storage.BaseURL, bucket, cfg.Storage.Token)
	default:
		store, err = blobstore.NewLocalDisk(cfg.Storage.LocalFolder, bucket)
	}
	if err != nil {
		return nil, err
	}

	return blobstore.NewRetrying(store, blobstore.RetryConfig(cfg.Retry)), nil
}
