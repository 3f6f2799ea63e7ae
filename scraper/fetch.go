package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// Fetch kinds, used as metric and log labels.
const (
	kindMetadata = "metadata"
	kindImage    = "image"
	kindDetail   = "detail"
)

const responseKey = "response"

// Fetcher issues the three per-identifier network calls, each wrapped by the
// shared retry policy.
type Fetcher struct {
	cfg     *config.Config
	api     *resty.Client
	pages   *colly.Collector
	probes  *colly.Collector
	headers http.Header
	retry   *retrier
	metrics *Metrics
	logger  *slog.Logger

	requestCount atomic.Int64

	mu           sync.Mutex
	errorsByType map[string]int
}

// NewFetcher builds the HTTP clients for the catalog hosts named in cfg.
func NewFetcher(cfg *config.Config, metrics *Metrics, logger *slog.Logger) (*Fetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	headers := make(http.Header, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}
	headers.Set("User-Agent", cfg.UserAgent)

	api := resty.New()
	api.SetTimeout(cfg.APITimeout)
	api.SetTransport(newTransport(cfg.APITimeout))
	for k := range headers {
		api.SetHeader(k, headers.Get(k))
	}

	return &Fetcher{
		cfg:          cfg,
		api:          api,
		pages:        newCollector(cfg, cfg.APITimeout),
		probes:       newCollector(cfg, cfg.ProbeTimeout),
		headers:      headers,
		retry:        newRetrier(cfg.RetryLimit, cfg.RetryDelay, metrics, logger),
		metrics:      metrics,
		logger:       logger,
		errorsByType: make(map[string]int),
	}, nil
}

func newTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// newCollector returns a synchronous collector whose callbacks hand the
// response back through the request context. Redirects to any host are
// followed unless cfg.RestrictHosts pins the collector to the template hosts.
func newCollector(cfg *config.Config, timeout time.Duration) *colly.Collector {
	opts := []colly.CollectorOption{
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	}
	if cfg.RestrictHosts {
		opts = append(opts, colly.AllowedDomains(cfg.Hosts()...))
	}
	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(timeout)
	c.WithTransport(newTransport(timeout))

	c.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(responseKey, r)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.Ctx != nil {
			r.Ctx.Put(responseKey, r)
		}
	})
	return c
}

// WithTransport routes every outbound request through rt.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.api.SetTransport(rt)
	f.pages.WithTransport(rt)
	f.probes.WithTransport(rt)
}

// Metadata fetches the catalog item for sku. A nil item with a nil error means
// the API had no data for it.
func (f *Fetcher) Metadata(ctx context.Context, sku string) (*models.CatalogItem, error) {
	target := parser.MetadataURL(f.cfg.MetadataURL, sku)
	return retryDo(f.retry, kindMetadata, func() (*models.CatalogItem, error) {
		return f.fetchMetadata(ctx, target)
	})
}

func (f *Fetcher) fetchMetadata(ctx context.Context, target string) (*models.CatalogItem, error) {
	f.requestCount.Add(1)
	start := time.Now()
	resp, err := f.api.R().SetContext(ctx).Get(target)
	f.metrics.ObserveDuration(kindMetadata, time.Since(start))
	if err != nil {
		return nil, f.fail(kindMetadata, target, err, 0)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, f.fail(kindMetadata, target, nil, resp.StatusCode())
	}

	item, err := models.DecodeCatalogResponse(resp.Body())
	if err != nil {
		return nil, f.fail(kindMetadata, target, ErrMalformed{Err: err}, resp.StatusCode())
	}
	f.metrics.IncRequest(kindMetadata, "ok")
	return item, nil
}

// ProbeImage reports imageURL when the image exists and an empty string
// otherwise, including after every attempt has failed.
func (f *Fetcher) ProbeImage(imageURL string) string {
	found, err := retryDo(f.retry, kindImage, func() (string, error) {
		if _, err := f.visit(f.probes, kindImage, http.MethodHead, imageURL, nil); err != nil {
			return "", err
		}
		f.metrics.IncRequest(kindImage, "ok")
		return imageURL, nil
	})
	if err != nil {
		f.logger.Debug("image unavailable",
			slog.String("url", imageURL),
			slog.String("category", errorTypeLabel(err)),
			slog.Any("error", err),
		)
		return ""
	}
	return found
}

// Detail fetches the product page of sku and returns the inner HTML of the
// configured detail section, or an empty string when the page has none.
func (f *Fetcher) Detail(sku string) (string, error) {
	target := parser.ProductURL(f.cfg.ProductURL, sku)
	return retryDo(f.retry, kindDetail, func() (string, error) {
		resp, err := f.visit(f.pages, kindDetail, http.MethodGet, target, f.headers.Clone())
		if err != nil {
			return "", err
		}
		section, err := parser.ExtractSection(resp.Body, f.cfg.DetailSelector)
		if err != nil {
			return "", f.fail(kindDetail, target, ErrMalformed{Err: err}, resp.StatusCode)
		}
		f.metrics.IncRequest(kindDetail, "ok")
		return section, nil
	})
}

// visit performs one request on c. Anything but a 200 is an error.
func (f *Fetcher) visit(c *colly.Collector, kind, method, target string, hdr http.Header) (*colly.Response, error) {
	f.requestCount.Add(1)
	cctx := colly.NewContext()
	start := time.Now()
	err := c.Request(method, target, nil, cctx, hdr)
	f.metrics.ObserveDuration(kind, time.Since(start))

	resp, _ := cctx.GetAny(responseKey).(*colly.Response)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if err == nil && status != http.StatusOK {
		err = fmt.Errorf("http status %d", status)
	}
	if err != nil {
		return nil, f.fail(kind, target, err, status)
	}
	return resp, nil
}

// fail classifies one failed attempt and records it.
func (f *Fetcher) fail(kind, target string, err error, statusCode int) error {
	classified := classifyError(err, statusCode)
	if classified == nil {
		classified = fmt.Errorf("%s request failed", kind)
	}
	category := errorTypeLabel(classified)

	f.mu.Lock()
	f.errorsByType[category]++
	f.mu.Unlock()

	f.metrics.IncRequest(kind, "error")
	f.metrics.IncError(category)
	f.logger.Debug("request error",
		slog.String("kind", kind),
		slog.String("url", target),
		slog.String("category", category),
		slog.Any("error", classified),
	)
	return classified
}

// RequestCount returns the number of requests issued so far.
func (f *Fetcher) RequestCount() int {
	return int(f.requestCount.Load())
}

// TotalRetries returns the number of retries scheduled so far.
func (f *Fetcher) TotalRetries() int {
	return f.retry.TotalRetries()
}

func (f *Fetcher) snapshotErrors() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.errorsByType))
	for k, v := range f.errorsByType {
		out[k] = v
	}
	return out
}
