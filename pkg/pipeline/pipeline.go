package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"bahamut/pkg/adminunits"
	"bahamut/pkg/archive"
	"bahamut/pkg/blobstore"
	"bahamut/pkg/csvexport"
	"bahamut/pkg/document"
	"bahamut/pkg/enricher"
	"bahamut/pkg/hierarchy"
	"bahamut/pkg/mapper"
	"bahamut/pkg/metrics"
	"bahamut/pkg/otel"
	"bahamut/pkg/parser"
	"bahamut/pkg/popularity"
	"bahamut/pkg/types"

	"github.com/google/uuid"
	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OutputPrefix starts the name of every export.
const OutputPrefix = "bahamut_export_geocoder_"

// ErrRunInProgress is returned by RunOnce while another run is active.
var ErrRunInProgress = errors.New("export run already in progress")

// DropInvalid counts documents that fail the final validity check.
const DropInvalid = "invalid_document"

type Pipeline struct {
	config  Config
	input   blobstore.Store
	output  blobstore.Store
	parser  *parser.NetexParser
	scorer  *popularity.Scorer
	tracer  trace.Tracer
	running atomic.Bool
	wg      sync.WaitGroup
}

type Config struct {
	// DryRun writes the CSV to DryRunOutput (stdout by default) instead of
	// uploading it.
	DryRun       bool
	DryRunOutput io.Writer

	InputFile    string
	OutputFolder string
	TargetBucket string
	TargetName   string

	Interval time.Duration
	Workers  int

	AdminUnits adminunits.Options
	Mapper     mapper.Options
	Popularity popularity.Config

	// Now names the export; defaults to time.Now.
	Now func() time.Time
}

// Result describes one finished export.
type Result struct {
	RunID       string
	Name        string
	Documents   int
	ArchiveSize int
	Dropped     map[string]int
}

// New validates the configuration. The input store provides the NeTEx
// archive and the output store receives the export.
func New(config Config, input, output blobstore.Store) (*Pipeline, error) {
	if config.InputFile == "" {
		return nil, fmt.Errorf("input file is required")
	}
	if input == nil {
		return nil, fmt.Errorf("input blob store is required")
	}
	if !config.DryRun {
		if output == nil {
			return nil, fmt.Errorf("output blob store is required")
		}
		if config.TargetBucket == "" || config.TargetName == "" {
			return nil, fmt.Errorf("target bucket and name are required")
		}
	}
	if config.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", config.Interval)
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.AdminUnits.CacheSize <= 0 {
		return nil, fmt.Errorf("admin units cache size must be positive, got %d", config.AdminUnits.CacheSize)
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.DryRunOutput == nil {
		config.DryRunOutput = os.Stdout
	}

	scorer, err := popularity.NewScorer(config.Popularity)
	if err != nil {
		return nil, fmt.Errorf("failed to create popularity scorer: %w", err)
	}

	return &Pipeline{
		config: config,
		input:  input,
		output: output,
		parser: parser.NewNetexParser(),
		scorer: scorer,
		tracer: otelapi.Tracer("pipeline"),
	}, nil
}

// Ready reports whether no export run is in progress.
func (p *Pipeline) Ready() bool {
	return !p.running.Load()
}

// Run exports once immediately and then on every tick until ctx is done.
// Ticks that arrive while a run is in progress are skipped.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	slog.Info("Pipeline started", "interval", p.config.Interval, "dry_run", p.config.DryRun)

	p.trigger(ctx)

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			slog.Info("Pipeline stopped")
			return ctx.Err()
		case <-ticker.C:
			p.trigger(ctx)
		}
	}
}

func (p *Pipeline) trigger(ctx context.Context) {
	if !p.Ready() {
		metrics.RecordRunSkipped(ctx)
		slog.Info("Previous export still running, skipping this tick")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if _, err := p.RunOnce(ctx); err != nil {
			if errors.Is(err, ErrRunInProgress) {
				metrics.RecordRunSkipped(ctx)
				return
			}
			slog.Error("Export run failed", "error", err)
		}
	}()
}

// RunOnce performs one complete export. Nothing is uploaded unless every
// stage before the upload succeeded.
func (p *Pipeline) RunOnce(ctx context.Context) (*Result, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer p.running.Store(false)

	runID := uuid.NewString()
	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("input.file", p.config.InputFile),
			attribute.Bool("dry_run", p.config.DryRun),
		),
	)
	defer span.End()

	logger := slog.With("run_id", runID)
	logger.Info("Export run started", "input", p.config.InputFile)
	start := time.Now()

	result, err := p.run(ctx, runID, logger)
	if err != nil {
		span.RecordError(err)
		metrics.RecordRun(ctx, "error", time.Since(start))
		return nil, err
	}

	metrics.RecordRun(ctx, "success", time.Since(start))
	otel.SetSpanOk(span)
	span.SetAttributes(
		attribute.String("export.name", result.Name),
		attribute.Int("export.documents", result.Documents),
	)
	logger.Info("Export run finished",
		"name", result.Name,
		"documents", result.Documents,
		"archive_bytes", result.ArchiveSize,
		"duration", time.Since(start),
	)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, runID string, logger *slog.Logger) (*Result, error) {
	result := &Result{
		RunID: runID,
		Name:  fmt.Sprintf("%s%d", OutputPrefix, p.config.Now().UnixMilli()),
	}

	var input []byte
	err := p.stage(ctx, "fetch", otel.ErrorTypeStorage, func(ctx context.Context, span trace.Span) error {
		data, err := p.input.Get(ctx, p.config.InputFile)
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", p.config.InputFile, err)
		}
		span.SetAttributes(attribute.Int("archive.size_bytes", len(data)))
		input = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	var netex []byte
	err = p.stage(ctx, "unzip", otel.ErrorTypeParse, func(ctx context.Context, span trace.Span) error {
		name, data, err := archive.FirstEntry(input)
		if err != nil {
			return fmt.Errorf("failed to unzip %s: %w", p.config.InputFile, err)
		}
		span.SetAttributes(attribute.String("entry.name", name))
		netex = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	var graph *types.EntityGraph
	err = p.stage(ctx, "parse", otel.ErrorTypeParse, func(ctx context.Context, span trace.Span) error {
		g, err := p.parser.Parse(ctx, netex)
		if err != nil {
			return err
		}
		graph = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Parsed NeTEx",
		"stop_places", len(graph.StopPlaces),
		"groups_of_stop_places", len(graph.GroupsOfStopPlaces),
		"topographic_places", len(graph.TopographicPlaces),
	)

	var (
		nodes []*hierarchy.Node
		index *adminunits.Index
	)
	err = p.stage(ctx, "index", otel.ErrorTypeValidation, func(ctx context.Context, span trace.Span) error {
		var err error
		nodes, index, err = p.buildIndexes(graph)
		if err != nil {
			return err
		}
		localities, counties, countries := index.Counts()
		span.SetAttributes(
			attribute.Int("hierarchy.nodes", len(nodes)),
			attribute.Int("admin_units.localities", localities),
			attribute.Int("admin_units.counties", counties),
			attribute.Int("admin_units.countries", countries),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var cache popularity.Cache
	err = p.stage(ctx, "popularity", otel.ErrorTypeInternal, func(ctx context.Context, span trace.Span) error {
		cache = p.scorer.BuildCache(nodes)
		span.SetAttributes(attribute.Int("popularity.entries", len(cache)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	var docs []document.Document
	err = p.stage(ctx, "map", otel.ErrorTypeInternal, func(ctx context.Context, span trace.Span) error {
		var dropped map[string]int
		docs, dropped = p.mapDocuments(ctx, graph, nodes, cache, enricher.New(index))
		result.Dropped = dropped
		span.SetAttributes(attribute.Int("documents.count", len(docs)))
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	recordDocuments(ctx, docs, result.Dropped)
	logger.Info("Mapped documents", "documents", len(docs), "dropped", result.Dropped)

	var csv, archived []byte
	err = p.stage(ctx, "serialize", otel.ErrorTypeInternal, func(ctx context.Context, span trace.Span) error {
		var err error
		csvexport.SortByPopularity(docs)
		csv, err = csvexport.Serialize(docs)
		if err != nil {
			return fmt.Errorf("failed to serialize documents: %w", err)
		}
		archived, err = archive.Zip(result.Name+".csv", csv)
		if err != nil {
			return err
		}
		span.SetAttributes(
			attribute.Int("csv.size_bytes", len(csv)),
			attribute.Int("archive.size_bytes", len(archived)),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Documents = len(docs)
	result.ArchiveSize = len(archived)
	metrics.RecordArchiveSize(ctx, len(archived))

	if p.config.DryRun {
		logger.Info("Dry run, export not uploaded", "name", result.Name)
		if _, err := p.config.DryRunOutput.Write(csv); err != nil {
			return nil, fmt.Errorf("failed to write dry run output: %w", err)
		}
		return result, nil
	}

	uploadName := path.Join(p.config.OutputFolder, result.Name+".zip")
	err = p.stage(ctx, "upload", otel.ErrorTypeStorage, func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(attribute.String("blob.name", uploadName))
		if err := p.output.Put(ctx, uploadName, archived); err != nil {
			return fmt.Errorf("failed to upload %s: %w", uploadName, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, "publish", otel.ErrorTypeStorage, func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(
			attribute.String("blob.dest_bucket", p.config.TargetBucket),
			attribute.String("blob.dest_name", p.config.TargetName),
		)
		if err := p.output.Copy(ctx, uploadName, p.config.TargetBucket, p.config.TargetName); err != nil {
			return fmt.Errorf("failed to publish %s to %s/%s: %w", uploadName, p.config.TargetBucket, p.config.TargetName, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordLastSuccess(result.Documents)
	return result, nil
}

// stage runs fn in its own span and records its duration. Errors are
// tagged with errorType unless the blob was missing.
func (p *Pipeline) stage(ctx context.Context, name, errorType string, fn func(context.Context, trace.Span) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx, span)
	metrics.RecordStage(ctx, name, time.Since(start))

	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			errorType = otel.ErrorTypeNotFound
		}
		otel.RecordError(span, err, errorType, false)
		metrics.RecordError(ctx, name, errorType)
		return err
	}
	otel.SetSpanOk(span)
	return nil
}

// buildIndexes builds the stop place hierarchy and the admin units index
// concurrently. The hierarchy comes back as every node in pre-order.
func (p *Pipeline) buildIndexes(graph *types.EntityGraph) ([]*hierarchy.Node, *adminunits.Index, error) {
	type indexResult struct {
		nodes []*hierarchy.Node
		index *adminunits.Index
		err   error
	}

	results := make(chan indexResult, 2)

	go func() {
		nodes, err := hierarchy.Build(graph.StopPlaces)
		if err != nil {
			err = fmt.Errorf("failed to build stop place hierarchy: %w", err)
		}
		results <- indexResult{nodes: nodes, err: err}
	}()

	go func() {
		index, err := adminunits.NewIndex(graph.TopographicPlaces, p.config.AdminUnits)
		if err != nil {
			err = fmt.Errorf("failed to build admin units index: %w", err)
		}
		results <- indexResult{index: index, err: err}
	}()

	var (
		nodes []*hierarchy.Node
		index *adminunits.Index
		errs  []error
	)
	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		if r.nodes != nil {
			nodes = r.nodes
		}
		if r.index != nil {
			index = r.index
		}
	}
	if len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}
	return nodes, index, nil
}

func recordDocuments(ctx context.Context, docs []document.Document, dropped map[string]int) {
	byLayer := map[string]int{}
	for _, doc := range docs {
		byLayer[doc.Layer]++
	}
	for layer, n := range byLayer {
		metrics.RecordDocuments(ctx, layer, n)
	}
	for reason, n := range dropped {
		metrics.RecordDropped(ctx, reason, n)
	}
}
