package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
)

// Scraper runs record builds for a list of identifiers on a bounded pool.
type Scraper struct {
	cfg     *config.Config
	fetcher *Fetcher
	builder RecordBuilder
	logger  *slog.Logger
	Metrics *Metrics
}

// NewScraper builds a scraper instance configured from cfg. Progress and
// summary events go to logger.
func NewScraper(cfg *config.Config, logger *slog.Logger) (*Scraper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	metrics := NewMetrics()
	fetcher, err := NewFetcher(cfg, metrics, logger)
	if err != nil {
		return nil, err
	}
	return &Scraper{
		cfg:     cfg,
		fetcher: fetcher,
		builder: newRecordBuilder(cfg, fetcher, logger),
		logger:  logger,
		Metrics: metrics,
	}, nil
}

// WithTransport routes every outbound request through rt.
func (s *Scraper) WithTransport(rt http.RoundTripper) {
	s.fetcher.WithTransport(rt)
}

// Run builds a record for every identifier in skus, at most cfg.MaxWorkers at
// a time. Failures of single identifiers are absorbed and only show up in the
// counts. If ctx is cancelled, identifiers that have not started yet are
// abandoned and the partial result is returned together with the cause.
func (s *Scraper) Run(ctx context.Context, skus []string) (*models.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	total := len(skus)
	sink := newResultSink()

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxWorkers)
	for i, sku := range skus {
		index := i + 1
		g.Go(func() error {
			if ctx.Err() != nil {
				sink.abandon(sku)
				return nil
			}
			s.Metrics.WorkerStarted()
			defer s.Metrics.WorkerDone()

			product, outcome := s.builder.Build(ctx, sku, index, total)
			if product == nil && outcome == OutcomeSucceeded {
				outcome = OutcomeFailed
			}
			sink.add(sku, product, outcome)
			s.Metrics.IncSKU(outcome)
			return nil
		})
	}
	_ = g.Wait()

	result := sink.result(total)
	result.StartTime = start
	result.EndTime = time.Now()
	if s.fetcher != nil {
		result.RetryCount = s.fetcher.TotalRetries()
		result.RequestCount = s.fetcher.RequestCount()
		result.ErrorsByType = s.fetcher.snapshotErrors()
	}

	s.logger.Info("scrape summary",
		slog.Int("total", result.Total),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
		slog.Int("skipped", result.Skipped),
		slog.Duration("duration", result.Duration()),
	)

	if err := ctx.Err(); err != nil {
		s.logger.Warn("scrape interrupted", slog.Int("abandoned", sink.abandonedCount()))
		return result, fmt.Errorf("scrape interrupted: %w", err)
	}
	return result, nil
}

// resultSink collects build outcomes from concurrent workers.
type resultSink struct {
	mu         sync.Mutex
	products   []*models.Product
	skipped    int
	abandoned  int
	failedSKUs []string
}

func newResultSink() *resultSink {
	return &resultSink{}
}

func (rs *resultSink) add(sku string, product *models.Product, outcome Outcome) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if outcome == OutcomeSucceeded {
		rs.products = append(rs.products, product)
		return
	}
	if outcome == OutcomeSkipped {
		rs.skipped++
	}
	rs.failedSKUs = append(rs.failedSKUs, sku)
}

func (rs *resultSink) abandon(sku string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.abandoned++
	rs.failedSKUs = append(rs.failedSKUs, sku)
}

func (rs *resultSink) abandonedCount() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.abandoned
}

func (rs *resultSink) result(total int) *models.RunResult {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	products := make([]*models.Product, len(rs.products))
	copy(products, rs.products)
	failed := make([]string, len(rs.failedSKUs))
	copy(failed, rs.failedSKUs)

	return &models.RunResult{
		Products:   products,
		Total:      total,
		Succeeded:  len(products),
		Failed:     total - len(products),
		Skipped:    rs.skipped,
		FailedSKUs: failed,
	}
}
