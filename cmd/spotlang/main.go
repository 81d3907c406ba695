package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/patrickwarner/spotlang/internal/analytics"
	"github.com/patrickwarner/spotlang/internal/api"
	"github.com/patrickwarner/spotlang/internal/config"
	"github.com/patrickwarner/spotlang/internal/db"
	"github.com/patrickwarner/spotlang/internal/models"
	"github.com/patrickwarner/spotlang/internal/observability"
	"github.com/patrickwarner/spotlang/internal/orchestrator"
	"github.com/patrickwarner/spotlang/internal/refdata"
	"github.com/patrickwarner/spotlang/internal/spotstore"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	if err := run(logger, cfg, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: spotlang <command>

commands:
  categorize                  assign a processing category to every uncategorized spot
  force-recategorize <ids...> clear category and assignments for the given spot IDs
  process-language-required   resolve language/block assignments for LANGUAGE_REQUIRED spots
  process-review              resolve language/block assignments for REVIEW spots
  process-default-english     resolve language/block assignments for DEFAULT_ENGLISH spots
  process-all                 run all three process-* commands in sequence
  status                      print spot counts per processing category
  review-required             list spots currently flagged for human review
  serve                       run the /healthz, /status, /metrics HTTP daemon`)
}

func run(logger *zap.Logger, cfg config.Config, command string, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	ref, err := loadRefdata(ctx, pg)
	if err != nil {
		return fmt.Errorf("load reference data: %w", err)
	}

	store := spotstore.NewPostgresStore(pg)

	metricsRegistry := observability.NewPrometheusRegistry()

	var opts []orchestrator.Option
	opts = append(opts, orchestrator.WithMetrics(metricsRegistry))

	if redisStore, err := db.InitRedis(cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, batch locking disabled", zap.Error(err))
	} else {
		defer redisStore.Close()
		opts = append(opts, orchestrator.WithRedis(redisStore))
	}

	if chAnalytics, err := analytics.InitClickHouse(cfg.ClickHouseDSN, cfg.CHMaxOpenConns); err != nil {
		logger.Warn("clickhouse unavailable, analytics sink disabled", zap.Error(err))
	} else {
		defer chAnalytics.Close()
		opts = append(opts, orchestrator.WithAnalytics(chAnalytics))
	}

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			logger.Warn("tracing init failed", zap.Error(err))
		} else {
			defer shutdown()
		}
	}

	o, err := orchestrator.New(store, ref, cfg.BatchSize, cfg.WorkerPoolSize, opts...)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	runID := uuid.NewString()

	switch command {
	case "categorize":
		stats, err := o.Categorize(ctx)
		logStats(logger, "categorize", stats)
		return err

	case "force-recategorize":
		ids, err := parseSpotIDs(args)
		if err != nil {
			return err
		}
		return o.ForceRecategorize(ctx, ids)

	case "process-language-required":
		stats, err := o.ProcessCategory(ctx, models.CategoryLanguageRequired, runID)
		logStats(logger, "process-language-required", stats)
		return err

	case "process-review":
		stats, err := o.ProcessCategory(ctx, models.CategoryReview, runID)
		logStats(logger, "process-review", stats)
		return err

	case "process-default-english":
		stats, err := o.ProcessCategory(ctx, models.CategoryDefaultEnglish, runID)
		logStats(logger, "process-default-english", stats)
		return err

	case "process-all":
		stats, err := o.ProcessAll(ctx, runID)
		logStats(logger, "process-all", stats)
		return err

	case "status":
		counts, err := o.CategoryCounts(ctx)
		if err != nil {
			return err
		}
		for category, count := range counts {
			fmt.Printf("%-20s %d\n", category, count)
		}
		return nil

	case "review-required":
		spots, err := o.ReviewRequired(ctx, cfg.ReviewFlagPageSize, 0)
		if err != nil {
			return err
		}
		for _, s := range spots {
			fmt.Printf("%d\t%s\t%s\n", s.SpotID, s.BillCode, s.LanguageCode)
		}
		return nil

	case "serve":
		return serve(ctx, logger, cfg, o, metricsRegistry)

	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func serve(ctx context.Context, logger *zap.Logger, cfg config.Config, o *orchestrator.Orchestrator, metrics observability.MetricsRegistry) error {
	srvDeps := api.NewServer(logger, o, metrics)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srvDeps.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()
	logger.Info("spotlang serving", zap.String("addr", srv.Addr))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadRefdata(ctx context.Context, pg *db.Postgres) (*refdata.Store, error) {
	languages, err := pg.LoadLanguages(ctx)
	if err != nil {
		return nil, fmt.Errorf("load languages: %w", err)
	}
	blocks, err := pg.LoadLanguageBlocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load language blocks: %w", err)
	}
	assignments, err := pg.LoadScheduleAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schedule assignments: %w", err)
	}
	return refdata.New(languages, blocks, assignments), nil
}

func parseSpotIDs(args []string) ([]int, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("force-recategorize requires at least one spot ID")
	}
	ids := make([]int, 0, len(args))
	for _, a := range args {
		var id int
		if _, err := fmt.Sscanf(a, "%d", &id); err != nil {
			return nil, fmt.Errorf("invalid spot ID %q: %w", a, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func logStats(logger *zap.Logger, command string, stats orchestrator.BatchStats) {
	logger.Info("batch complete",
		zap.String("command", command),
		zap.Int("processed", stats.Processed),
		zap.Int("language_flagged", stats.LanguageFlagged),
		zap.Int("block_assigned", stats.BlockAssigned),
		zap.Int("multi_block", stats.MultiBlock),
		zap.Int("no_coverage", stats.NoCoverage),
		zap.Int("review_flagged", stats.ReviewFlagged),
		zap.Int("errors", stats.Errors),
	)
}
