// Package orchestrator wires C1-C5 together into the batch runs the CLI
// entry point exposes: categorize, force-recategorize, the three
// process-<category> commands, and the review-required listing
// (spec.md §5-§6). It owns no business rules of its own; every decision is
// delegated to internal/categorize, internal/langcode, and
// internal/blockassign, the same separation the teacher draws between
// internal/logic (decisions) and its API handlers (wiring).
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/patrickwarner/spotlang/internal/analytics"
	"github.com/patrickwarner/spotlang/internal/blockassign"
	"github.com/patrickwarner/spotlang/internal/categorize"
	"github.com/patrickwarner/spotlang/internal/db"
	"github.com/patrickwarner/spotlang/internal/langcode"
	"github.com/patrickwarner/spotlang/internal/models"
	"github.com/patrickwarner/spotlang/internal/observability"
	"github.com/patrickwarner/spotlang/internal/refdata"
	"github.com/patrickwarner/spotlang/internal/spotstore"
)

// defaultBatchLockTTL bounds how long a distributed batch lock is held
// before it self-expires, so a crashed orchestrator process never wedges a
// category's processing indefinitely.
const defaultBatchLockTTL = 15 * time.Minute

// Orchestrator runs the batch commands against a spot store, fanning out
// each batch across a bounded worker pool. A single Orchestrator value is
// safe for concurrent use; it holds no per-batch mutable state.
type Orchestrator struct {
	store    spotstore.Store
	ref      *refdata.Store
	resolver *langcode.Resolver
	engine   *blockassign.Engine

	redis     *db.RedisStore // optional; nil disables distributed locking
	analytics *analytics.Analytics // optional; nil disables the ClickHouse sink

	metrics observability.MetricsRegistry

	batchSize      int
	workerPoolSize int

	tracer trace.Tracer
}

// New constructs an Orchestrator. store and ref must be non-nil; every other
// dependency has a safe default (NoOpRegistry, no locking, no analytics
// sink) set via the With* options.
func New(store spotstore.Store, ref *refdata.Store, batchSize, workerPoolSize int, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if ref == nil {
		return nil, ErrNilReferenceData
	}
	engine, err := blockassign.New(ref)
	if err != nil {
		return nil, fmt.Errorf("build block assignment engine: %w", err)
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	if workerPoolSize <= 0 {
		workerPoolSize = 8
	}

	o := &Orchestrator{
		store:          store,
		ref:            ref,
		resolver:       langcode.New(ref),
		engine:         engine,
		metrics:        observability.NewNoOpRegistry(),
		batchSize:      batchSize,
		workerPoolSize: workerPoolSize,
		tracer:         observability.GetTracer("orchestrator").(trace.Tracer),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Option configures optional Orchestrator dependencies.
type Option func(*Orchestrator)

// WithRedis enables distributed per-category batch locking.
func WithRedis(r *db.RedisStore) Option {
	return func(o *Orchestrator) { o.redis = r }
}

// WithAnalytics enables the optional ClickHouse sink.
func WithAnalytics(a *analytics.Analytics) Option {
	return func(o *Orchestrator) { o.analytics = a }
}

// WithMetrics overrides the default no-op metrics registry.
func WithMetrics(m observability.MetricsRegistry) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// Categorize assigns a processing category to every spot that doesn't have
// one yet (spec.md §4.3), paginating BatchSize rows at a time until the
// uncategorized set is empty.
func (o *Orchestrator) Categorize(ctx context.Context) (BatchStats, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.Categorize")
	defer span.End()

	acc := &statsAccumulator{}
	for {
		spots, err := o.store.ListUncategorized(ctx, o.batchSize)
		if err != nil {
			return acc.snapshot(), fmt.Errorf("list uncategorized spots: %w", err)
		}
		if len(spots) == 0 {
			break
		}

		for _, spot := range spots {
			category := categorize.Categorize(spot.RevenueType, spot.SpotType)
			if err := o.store.SetCategory(ctx, spot.SpotID, category); err != nil {
				zap.L().Error("set category failed", zap.Int("spot_id", spot.SpotID), zap.Error(err))
				acc.recordError()
				continue
			}
			acc.recordProcessed()
			o.metrics.IncrementSpotsProcessed(string(category))
		}

		if len(spots) < o.batchSize {
			break
		}
	}
	return acc.snapshot(), nil
}

// ForceRecategorize clears the category and both derived assignments for the
// given spots, so a subsequent Categorize/ProcessCategory run reprocesses
// them from scratch (spec.md §6's force-recategorize command).
func (o *Orchestrator) ForceRecategorize(ctx context.Context, spotIDs []int) error {
	ctx, span := o.tracer.Start(ctx, "orchestrator.ForceRecategorize",
		trace.WithAttributes(attribute.Int("spot_count", len(spotIDs))))
	defer span.End()

	if len(spotIDs) == 0 {
		return nil
	}
	if err := o.store.ClearCategories(ctx, spotIDs); err != nil {
		return fmt.Errorf("clear categories: %w", err)
	}
	return nil
}

// ProcessCategory resolves a language assignment and a block assignment for
// every spot currently in the given category, fanning the batch out across
// WorkerPoolSize goroutines (spec.md §5). It is idempotent: reprocessing a
// spot simply overwrites its two assignments via the store's upsert
// semantics.
func (o *Orchestrator) ProcessCategory(ctx context.Context, category models.SpotCategory, runID string) (BatchStats, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.ProcessCategory",
		trace.WithAttributes(attribute.String("category", string(category))))
	defer span.End()

	lock, locked, err := o.acquireLock(string(category), runID)
	if err != nil {
		return BatchStats{}, fmt.Errorf("acquire batch lock: %w", err)
	}
	if !locked {
		return BatchStats{}, ErrBatchLocked
	}
	defer o.releaseLock(lock)

	acc := &statsAccumulator{}
	// Processing does not change a spot's category, so the category is
	// listed once and then walked in BatchSize chunks.
	spots, err := o.store.ListByCategory(ctx, category, 0)
	if err != nil {
		return acc.snapshot(), fmt.Errorf("list spots for category %s: %w", category, err)
	}
	for start := 0; start < len(spots); start += o.batchSize {
		end := start + o.batchSize
		if end > len(spots) {
			end = len(spots)
		}
		if err := o.processBatch(ctx, category, spots[start:end], acc); err != nil {
			return acc.snapshot(), err
		}
	}

	zap.L().Info("processed category",
		zap.String("category", string(category)),
		zap.Int("processed", acc.snapshot().Processed),
		zap.Int("errors", acc.snapshot().Errors),
	)
	return acc.snapshot(), nil
}

// ProcessAll runs ProcessCategory for LANGUAGE_REQUIRED, REVIEW, and
// DEFAULT_ENGLISH in turn, merging their stats.
func (o *Orchestrator) ProcessAll(ctx context.Context, runID string) (BatchStats, error) {
	categories := []models.SpotCategory{
		models.CategoryLanguageRequired,
		models.CategoryReview,
		models.CategoryDefaultEnglish,
	}

	var total BatchStats
	for _, category := range categories {
		s, err := o.ProcessCategory(ctx, category, runID)
		total = mergeStats(total, s)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ReviewRequired pages through spots whose raw language_code needs human
// review (spec.md §6's review-required command). It reads raw spot data via
// the store, not the persisted language or block assignments.
func (o *Orchestrator) ReviewRequired(ctx context.Context, pageSize, offset int) ([]models.Spot, error) {
	return o.store.ListReviewRequired(ctx, pageSize, offset)
}

// CategoryCounts reports how many spots currently sit in each processing
// category, for the CLI's status command.
func (o *Orchestrator) CategoryCounts(ctx context.Context) (map[models.SpotCategory]int, error) {
	counts := make(map[models.SpotCategory]int, 3)
	for _, category := range []models.SpotCategory{
		models.CategoryLanguageRequired,
		models.CategoryReview,
		models.CategoryDefaultEnglish,
	} {
		spots, err := o.store.ListByCategory(ctx, category, 0)
		if err != nil {
			return nil, fmt.Errorf("count category %s: %w", category, err)
		}
		counts[category] = len(spots)
	}
	return counts, nil
}

// processBatch fans a single page of spots out across the worker pool,
// bounded by an errgroup.SetLimit the same way the teacher bounds concurrent
// downstream fan-out in its ad-selection path.
func (o *Orchestrator) processBatch(ctx context.Context, category models.SpotCategory, spots []models.Spot, acc *statsAccumulator) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workerPoolSize)

	for i := range spots {
		spot := spots[i]
		g.Go(func() error {
			o.processSpot(gctx, category, &spot, acc)
			return nil
		})
	}
	return g.Wait()
}

// processSpot resolves and persists both outputs for a single spot. Errors
// are recorded in the stats accumulator and logged rather than propagated,
// so one bad spot never aborts the rest of the batch (spec.md §7's
// per-spot error isolation policy).
func (o *Orchestrator) processSpot(ctx context.Context, category models.SpotCategory, spot *models.Spot, acc *statsAccumulator) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.processSpot",
		trace.WithAttributes(attribute.Int("spot_id", spot.SpotID), attribute.String("category", string(category))))
	defer span.End()

	start := time.Now()
	defer func() { o.metrics.RecordBlockAssignmentDuration(time.Since(start)) }()

	languageAssignment := o.resolver.ResolveForCategory(spot, category)
	if err := o.store.UpsertLanguageAssignment(ctx, languageAssignment); err != nil {
		zap.L().Error("upsert language assignment failed", zap.Int("spot_id", spot.SpotID), zap.Error(err))
		acc.recordError()
		o.metrics.IncrementSpotsErrors(string(category))
		span.RecordError(err)
		return
	}
	if languageAssignment.RequiresReview {
		acc.recordLanguageFlagged()
	}

	blockAssignment := o.engine.Assign(spot)
	if err := o.store.UpsertBlockAssignment(ctx, blockAssignment); err != nil {
		zap.L().Error("upsert block assignment failed", zap.Int("spot_id", spot.SpotID), zap.Error(err))
		acc.recordError()
		o.metrics.IncrementSpotsErrors(string(category))
		span.RecordError(err)
		return
	}

	acc.recordProcessed()
	o.metrics.IncrementSpotsProcessed(string(category))
	o.metrics.IncrementSpotsAssigned(blockAssignment.BusinessRuleApplied)

	if blockAssignment.BlockID == nil && !blockAssignment.SpansMultipleBlocks {
		acc.recordNoCoverage()
		o.metrics.IncrementSpotsNoCoverage()
	}
	if blockAssignment.SpansMultipleBlocks {
		acc.recordMultiBlock()
		o.metrics.IncrementSpotsMultiBlock(blockAssignment.BusinessRuleApplied)
	}
	if blockAssignment.RequiresAttention {
		acc.recordReviewFlagged()
		o.metrics.IncrementSpotsFlaggedForReview(string(category))
	}
	if blockAssignment.BlockID != nil || blockAssignment.SpansMultipleBlocks || blockAssignment.PrimaryBlockID != nil {
		acc.recordBlockAssigned()
	}

	if o.analytics != nil {
		if err := o.analytics.RecordProcessedSpot(ctx, category, languageAssignment, blockAssignment); err != nil {
			zap.L().Warn("clickhouse sink failed", zap.Int("spot_id", spot.SpotID), zap.Error(err))
		}
	}
}

func (o *Orchestrator) acquireLock(category, runID string) (*db.BatchLock, bool, error) {
	if o.redis == nil {
		return nil, true, nil
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	return o.redis.AcquireBatchLock(category, runID, defaultBatchLockTTL)
}

func (o *Orchestrator) releaseLock(lock *db.BatchLock) {
	if lock == nil {
		return
	}
	if err := lock.Release(); err != nil {
		zap.L().Error("release batch lock failed", zap.Error(err))
	}
}

func mergeStats(a, b BatchStats) BatchStats {
	return BatchStats{
		Processed:       a.Processed + b.Processed,
		LanguageFlagged: a.LanguageFlagged + b.LanguageFlagged,
		BlockAssigned:   a.BlockAssigned + b.BlockAssigned,
		MultiBlock:      a.MultiBlock + b.MultiBlock,
		NoCoverage:      a.NoCoverage + b.NoCoverage,
		ReviewFlagged:   a.ReviewFlagged + b.ReviewFlagged,
		Errors:          a.Errors + b.Errors,
	}
}
