package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/pipeline"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
	"github.com/aluiziolira/go-scrape-catalog/source"
)

func main() {
	os.Exit(run())
}

func run() int {
	defaultCfg := config.DefaultConfig()

	inputDefault := envString("SCRAPER_INPUT", defaultCfg.InputFile)
	outputDefault := envString("SCRAPER_OUTPUT", defaultCfg.OutputFile)
	formatDefault := envString("SCRAPER_FORMAT", defaultCfg.OutputFormat)
	metricsDefault := envString("SCRAPER_METRICS_ADDR", defaultCfg.MetricsAddr)
	workersDefault := envInt("SCRAPER_WORKERS", defaultCfg.MaxWorkers)
	imagesDefault := envInt("SCRAPER_IMAGES", defaultCfg.ImageCount)
	descriptionsDefault := envInt("SCRAPER_DESCRIPTIONS", defaultCfg.DescriptionCount)
	retriesDefault := envInt("SCRAPER_RETRIES", defaultCfg.RetryLimit)
	retryDelayDefault := envDuration("SCRAPER_RETRY_DELAY", defaultCfg.RetryDelay)

	inputFile := flag.String("input", inputDefault, "File with one SKU per line")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", formatDefault, "Output format: csv, json, or dual")
	workers := flag.Int("workers", workersDefault, "Number of SKUs processed concurrently")
	imageWorkers := flag.Int("image-workers", defaultCfg.ImageWorkers, "Concurrent image probes per SKU")
	retries := flag.Int("retries", retriesDefault, "Attempts per network call, including the first")
	retryDelay := flag.Duration("retry-delay", retryDelayDefault, "Wait between attempts")
	apiTimeout := flag.Duration("api-timeout", defaultCfg.APITimeout, "Timeout for metadata and detail requests")
	probeTimeout := flag.Duration("probe-timeout", defaultCfg.ProbeTimeout, "Timeout for image probes")
	images := flag.Int("images", imagesDefault, "Number of image columns per record")
	descriptions := flag.Int("descriptions", descriptionsDefault, "Number of description columns per record")
	dedupe := flag.Int("dedupe", defaultCfg.DedupeMaxSize, "Drop repeated SKUs on write, remembering this many (0 disables)")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	restrictHosts := flag.Bool("restrict-hosts", defaultCfg.RestrictHosts, "Refuse page and image requests, including redirects, outside the template hosts")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := config.DefaultConfig()
	cfg.InputFile = *inputFile
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.MaxWorkers = *workers
	cfg.ImageWorkers = *imageWorkers
	cfg.RetryLimit = *retries
	cfg.RetryDelay = *retryDelay
	cfg.APITimeout = *apiTimeout
	cfg.ProbeTimeout = *probeTimeout
	cfg.ImageCount = *images
	cfg.DescriptionCount = *descriptions
	cfg.DedupeMaxSize = *dedupe
	cfg.MetricsAddr = *metricsAddr
	cfg.RestrictHosts = *restrictHosts
	cfg.Verbose = *verbose
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return 1
	}

	skus := source.Load(cfg.InputFile, logger)
	if len(skus) == 0 {
		slog.Warn("nothing to scrape", slog.String("input", cfg.InputFile))
		return 0
	}

	slog.Info("starting scrape",
		slog.Int("skus", len(skus)),
		slog.Int("workers", cfg.MaxWorkers),
		slog.Int("retries", cfg.RetryLimit),
	)

	s, err := scraper.NewScraper(cfg, logger)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	exitCode := 0
	result, runErr := s.Run(ctx, skus)
	if runErr != nil {
		slog.Error("scraping interrupted, saving partial results", slog.Any("error", runErr))
		exitCode = 130
	}

	// Partial results are still written after an interrupt.
	saved, err := pipeline.Save(context.WithoutCancel(ctx), result.Products, cfg, logger)
	if err != nil && !errors.Is(err, pipeline.ErrNothingToSave) {
		exitCode = 1
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(os.Stdout, result, saved, pipeline.OutputPath(cfg.OutputFormat, cfg.OutputFile))
	if exitCode == 0 {
		slog.Info("all tasks complete")
	}
	return exitCode
}

func envString(key, fallback string) string {
	if value, ok := config.EnvString(key); ok {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value, ok, err := config.EnvInt(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid %s: %v\n", key, err)
		os.Exit(1)
	}
	if !ok {
		return fallback
	}
	return value
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value, ok, err := config.EnvDuration(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid %s: %v\n", key, err)
		os.Exit(1)
	}
	if !ok {
		return fallback
	}
	return value
}

func printSummary(w io.Writer, result *models.RunResult, saved int, outputFile string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Scrape summary")
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRow(table.Row{"Total SKUs", result.Total})
	t.AppendRow(table.Row{"Succeeded", result.Succeeded})
	t.AppendRow(table.Row{"Failed/skipped", result.Failed})
	t.AppendRow(table.Row{"Skipped (no metadata)", result.Skipped})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Requests", result.RequestCount})
	t.AppendRow(table.Row{"Retries", result.RetryCount})
	if len(result.ErrorsByType) > 0 {
		t.AppendRow(table.Row{"Error types", formatCounts(result.ErrorsByType)})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"Duration", result.Duration().Round(time.Millisecond)})
	t.AppendRow(table.Row{"Records saved", saved})
	if saved > 0 {
		t.AppendRow(table.Row{"Output file", outputFile})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// formatCounts renders counts as "k=v" pairs sorted by key.
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
