package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"house-finder/config"
	"house-finder/maps"
	"house-finder/models"
	"house-finder/report"
	"house-finder/scraper/zoopla"
	"house-finder/services"
	"house-finder/storage"
	"house-finder/utils"
)

type options struct {
	input   string
	secrets string
	output  string
	pdf     string
	pdfDir  string
	bundle  string
	csv     string
}

func main() {
	var opts options
	flag.StringVar(&opts.input, "input", "", "YAML file with the search and objectives")
	flag.StringVar(&opts.secrets, "secrets", "", "YAML file with API keys (optional when set through env)")
	flag.StringVar(&opts.output, "output", "report.html", "HTML report path")
	flag.StringVar(&opts.pdf, "pdf", "", "also print the report to this PDF path")
	flag.StringVar(&opts.pdfDir, "pdf-dir", "", "print each ranked listing to a PDF in this directory")
	flag.StringVar(&opts.bundle, "bundle", "", "merge the ranked listing PDFs, in rank order, into this PDF path")
	flag.StringVar(&opts.csv, "csv", "", "also write the ranking to this CSV path")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "house-finder: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) (err error) {
	cfg := config.Load()
	logger := utils.NewLogger(cfg.Debug)

	logger.Info("=== House Finder starting ===")
	logger.Info("Config: cache %s | concurrency: %d | rate: %dms | timezone: %s",
		cfg.CacheBackend, cfg.MaxConcurrency, cfg.RateLimitMs, cfg.ReferenceTimezone)

	runCfg, err := config.LoadRun(opts.input)
	if err != nil {
		return err
	}
	secrets, err := config.LoadSecrets(opts.secrets, "google", "zoopla")
	if err != nil {
		return err
	}
	googleCreds, err := secrets.Service("google")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	cache, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cache.Close(); cerr != nil {
			logger.Error("Cache flush failed: %v", cerr)
			err = errors.Join(err, cerr)
		}
	}()

	responses := openResponseCache(ctx, cfg, logger)
	defer responses.Close()

	reg := prometheus.NewRegistry()
	mapsMetrics := maps.NewMetrics()
	evalMetrics := services.NewMetrics()
	if err := mapsMetrics.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if err := evalMetrics.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	gateway, err := maps.NewGateway(googleCreds, maps.NewGoogleProvider, maps.GatewayOptions{
		RetryFactor: cfg.RotationRetryFactor,
		Logger:      logger,
		Metrics:     mapsMetrics,
	})
	if err != nil {
		return err
	}
	lookups := maps.NewLookups(gateway, cache, maps.LookupOptions{
		Location: cfg.Location(),
		Logger:   logger,
		Metrics:  mapsMetrics,
	})

	objectives, err := services.BuildObjectives(ctx, runCfg.Objectives, services.DepsFromLookups(lookups))
	if err != nil {
		return err
	}
	evaluator := services.NewEvaluator(objectives, logger, evalMetrics)
	names := objectiveNames(evaluator)
	logger.Info("Objectives: %v", names)

	source, err := zoopla.NewFromSecrets(cfg, secrets, responses, logger)
	if err != nil {
		return err
	}

	runInfo := models.RunInfo{ID: uuid.NewString(), StartedAt: time.Now(), Query: runCfg.Search}
	logger.Info("Run %s: searching %s (%s)", runInfo.ID, runInfo.Query.Area, runInfo.Query.Type)

	listings := source.Search(runCfg.Search)

	var evaluated services.EvaluatedIterator
	if cfg.MaxConcurrency > 1 {
		all, err := evaluator.EvaluateAll(ctx, listings, cfg.MaxConcurrency, cfg.RateLimitMs)
		if err != nil {
			return err
		}
		evaluated = services.NewSliceEvaluations(all)
	} else {
		evaluated = evaluator.Stream(listings)
	}

	ranker := services.NewRanker(cfg.ReportLimit, logger)
	filtered := ranker.Filter(evaluated)
	ranked, err := ranker.Rank(ctx, filtered)
	if err != nil {
		return err
	}
	logger.Info("Provider key rotations this run: %d (limit %d per query)", gateway.Rotations(), gateway.MaxRotations())

	insightSvc := services.NewInsightService(logger)
	summary := insightSvc.Generate(filtered.Counts(), ranked)

	if err := writeResults(cfg, opts, runInfo, names, ranked, logger); err != nil {
		return err
	}

	rep := &report.Report{Run: runInfo, Objectives: names, Listings: ranked, Summary: summary}
	if err := report.WriteHTML(opts.output, rep); err != nil {
		return err
	}
	logger.Info("Report written to %s", opts.output)

	if opts.pdf != "" || opts.pdfDir != "" || opts.bundle != "" {
		if err := renderPDFs(ctx, cfg, opts, ranked, logger); err != nil {
			return err
		}
	}

	insightSvc.Print(summary)

	if cfg.MetricsPath != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsPath, reg); err != nil {
			logger.Warn("Could not write metrics to %s: %v", cfg.MetricsPath, err)
		}
	}
	return nil
}

func objectiveNames(e *services.Evaluator) []string {
	objectives := e.Objectives()
	names := make([]string, len(objectives))
	for i, o := range objectives {
		names[i] = o.Name()
	}
	return names
}

func openCache(cfg *config.Config) (storage.Cache, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendFile:
		return storage.OpenFileCache(cfg.CachePath)
	case config.CacheBackendPostgres:
		return storage.NewPostgresCache(cfg.DSN())
	default:
		return nil, fmt.Errorf("config: unknown CACHE_BACKEND %q", cfg.CacheBackend)
	}
}

// openResponseCache prefers Redis and falls back to process memory.
func openResponseCache(ctx context.Context, cfg *config.Config, logger *utils.Logger) storage.ResponseCache {
	if cfg.RedisURL != "" {
		rc, err := storage.NewRedisResponseCache(ctx, cfg.RedisURL, cfg.ResponseCacheTTL)
		if err == nil {
			return rc
		}
		logger.Warn("Redis unavailable, caching responses in memory: %v", err)
	}
	return storage.NewMemoryResponseCache(cfg.ResponseCacheTTL)
}

func writeResults(cfg *config.Config, opts options, run models.RunInfo, objectives []string, ranked []*models.EvaluatedListing, logger *utils.Logger) error {
	var writers []storage.ResultWriter

	if opts.csv != "" {
		w, err := storage.NewCSVWriter(opts.csv, objectives)
		if err != nil {
			return err
		}
		writers = append(writers, w)
	}
	if cfg.StoreResults {
		w, err := storage.NewPostgresWriter(cfg.DSN())
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Check the POSTGRES_* settings; results are not stored this run")
		} else {
			writers = append(writers, w)
		}
	}

	var errs []error
	for _, w := range writers {
		if err := w.Write(run, ranked); err != nil {
			errs = append(errs, err)
		} else if pg, ok := w.(*storage.PostgresWriter); ok {
			verifyStoredRun(pg, run, len(ranked), logger)
		}
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 && len(writers) > 0 {
		logger.Info("Ranking stored (%d writers)", len(writers))
	}
	return errors.Join(errs...)
}

// verifyStoredRun reads the run back and warns when rows are missing.
func verifyStoredRun(pg *storage.PostgresWriter, run models.RunInfo, want int, logger *utils.Logger) {
	stored, err := pg.FetchRun(run.ID)
	if err != nil {
		logger.Warn("Could not read back run %s: %v", run.ID, err)
		return
	}
	if len(stored) != want {
		logger.Warn("PostgreSQL holds %d of %d ranked listings for run %s", len(stored), want, run.ID)
		return
	}
	logger.Info("PostgreSQL holds all %d ranked listings for run %s", want, run.ID)
}

func renderPDFs(ctx context.Context, cfg *config.Config, opts options, ranked []*models.EvaluatedListing, logger *utils.Logger) error {
	renderer, err := report.NewPDFRenderer(cfg, logger)
	if err != nil {
		return err
	}
	if opts.pdf != "" {
		if err := renderer.RenderReport(ctx, opts.output, opts.pdf); err != nil {
			return err
		}
	}
	if opts.pdfDir == "" && opts.bundle == "" {
		return nil
	}

	dir := opts.pdfDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "house-finder-pdf-")
		if err != nil {
			return fmt.Errorf("report: temp dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}
	if err := renderer.RenderListings(ctx, ranked, dir); err != nil {
		logger.Warn("%v", err)
	}
	if opts.bundle != "" {
		if err := renderer.Bundle(ranked, dir, opts.bundle); err != nil {
			return err
		}
	}
	return nil
}
