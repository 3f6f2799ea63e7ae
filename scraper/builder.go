package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// Outcome classifies how one identifier was processed.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	// OutcomeSkipped means the metadata API had nothing usable for the SKU.
	OutcomeSkipped
	// OutcomeFailed means the detail page could not be fetched, or the build
	// was never started.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RecordBuilder turns one identifier into a product. Implementations never
// return errors; a nil product carries the reason in its Outcome.
type RecordBuilder interface {
	Build(ctx context.Context, sku string, index, total int) (*models.Product, Outcome)
}

type recordBuilder struct {
	cfg    *config.Config
	fetch  *Fetcher
	logger *slog.Logger
	now    func() time.Time
}

func newRecordBuilder(cfg *config.Config, fetch *Fetcher, logger *slog.Logger) *recordBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &recordBuilder{
		cfg:    cfg,
		fetch:  fetch,
		logger: logger,
		now:    time.Now,
	}
}

// Build fetches metadata, images and the detail section of sku and assembles
// the product. Once started it runs to completion even if ctx is cancelled.
func (b *recordBuilder) Build(ctx context.Context, sku string, index, total int) (product *models.Product, outcome Outcome) {
	ctx = context.WithoutCancel(ctx)
	log := b.logger.With(
		slog.Int("index", index),
		slog.Int("total", total),
		slog.String("sku", sku),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("failed sku", slog.Any("error", fmt.Errorf("panic: %v", r)))
			product, outcome = nil, OutcomeFailed
		}
	}()

	item, err := b.fetch.Metadata(ctx, sku)
	if err != nil {
		log.Warn("skipped sku", slog.String("reason", "metadata unavailable"), slog.Any("error", err))
		return nil, OutcomeSkipped
	}
	if item == nil {
		log.Warn("skipped sku", slog.String("reason", "no data"))
		return nil, OutcomeSkipped
	}

	images := b.probeImages(sku)

	detail, err := b.fetch.Detail(sku)
	if err != nil {
		log.Error("failed sku", slog.Any("error", err))
		return nil, OutcomeFailed
	}

	product = models.NewProduct(b.cfg.Shop, models.ProductInput{
		CrawledAt:        b.now().UTC(),
		SKU:              sku,
		URL:              parser.ProductURL(b.cfg.ProductURL, sku),
		Item:             item,
		Images:           images,
		Detail:           detail,
		DescriptionCount: b.cfg.DescriptionCount,
	})
	log.Info("finished sku")
	return product, OutcomeSucceeded
}

// probeImages checks every candidate image of sku. Missing images stay empty.
func (b *recordBuilder) probeImages(sku string) []string {
	urls := parser.ImageURLs(b.cfg.ImageURL, sku, b.cfg.ImageCount)
	images := make([]string, len(urls))

	var g errgroup.Group
	g.SetLimit(b.cfg.ImageWorkers)
	for i, u := range urls {
		g.Go(func() error {
			images[i] = b.fetch.ProbeImage(u)
			return nil
		})
	}
	_ = g.Wait()
	return images
}
