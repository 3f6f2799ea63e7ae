package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// Placeholders recognised in the URL templates.
const (
	SKUPlaceholder    = "{sku}"
	PrefixPlaceholder = "{prefix}"
	IndexPlaceholder  = "{index}"
)

// Config holds scraper configuration.
type Config struct {
	InputFile    string
	OutputFile   string
	OutputFormat string // csv, json, or dual

	MaxWorkers   int
	ImageWorkers int
	RetryLimit   int
	RetryDelay   time.Duration
	APITimeout   time.Duration
	ProbeTimeout time.Duration

	ImageCount       int
	DescriptionCount int

	UserAgent      string
	Headers        map[string]string
	MetadataURL    string
	ProductURL     string
	ImageURL       string
	DetailSelector string
	Shop           models.ShopInfo

	BatchSize          int
	PipelineBufferSize int
	DedupeMaxSize      int // 0 disables de-duplication

	// RestrictHosts limits page and image requests, redirects included, to
	// the hosts of the URL templates.
	RestrictHosts bool

	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns the settings used against the live catalog.
func DefaultConfig() *Config {
	return &Config{
		InputFile:        "sku_list.txt",
		OutputFile:       "output/catalog.csv",
		OutputFormat:     "csv",
		MaxWorkers:       10,
		ImageWorkers:     4,
		RetryLimit:       3,
		RetryDelay:       2 * time.Second,
		APITimeout:       10 * time.Second,
		ProbeTimeout:     5 * time.Second,
		ImageCount:       5,
		DescriptionCount: 5,
		UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
		Headers: map[string]string{
			"Accept":          "application/json, text/html;q=0.9, */*;q=0.8",
			"Accept-Language": "en-GB,en;q=0.9",
		},
		MetadataURL:    "https://www.ocado.com/webshop/api/v1/products?skus={sku}",
		ProductURL:     "https://www.ocado.com/products/{sku}",
		ImageURL:       "https://www.ocado.com/productImages/{prefix}/{sku}_{index}_640x640.jpg",
		DetailSelector: "section.bop-section.bop-productInformation",
		Shop: models.ShopInfo{
			Name:     "Ocado",
			ID:       "ocado.com",
			Country:  "UK",
			Language: "en",
			Currency: "GBP",
		},
		BatchSize:          64,
		PipelineBufferSize: 512,
		DedupeMaxSize:      0,
		RestrictHosts:      false,
		Verbose:            false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("max workers must be positive")
	}
	if c.ImageWorkers <= 0 {
		return fmt.Errorf("image workers must be positive")
	}
	if c.RetryLimit < 1 {
		return fmt.Errorf("retry limit must be at least 1")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("api timeout must be positive")
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be positive")
	}
	if c.ImageCount < 0 {
		return fmt.Errorf("image count cannot be negative")
	}
	if c.DescriptionCount < 1 {
		return fmt.Errorf("description count must be at least 1")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if err := validateTemplate("metadata URL", c.MetadataURL, SKUPlaceholder); err != nil {
		return err
	}
	if err := validateTemplate("product URL", c.ProductURL, SKUPlaceholder); err != nil {
		return err
	}
	if err := validateTemplate("image URL", c.ImageURL, SKUPlaceholder, IndexPlaceholder); err != nil {
		return err
	}
	if strings.TrimSpace(c.DetailSelector) == "" {
		return fmt.Errorf("detail selector cannot be empty")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.PipelineBufferSize < 0 {
		return fmt.Errorf("pipeline buffer size cannot be negative")
	}
	if c.DedupeMaxSize < 0 {
		return fmt.Errorf("dedupe max size cannot be negative")
	}
	return nil
}

// Hosts returns the distinct hosts named by the URL templates.
func (c *Config) Hosts() []string {
	seen := make(map[string]struct{}, 3)
	var hosts []string
	for _, tmpl := range []string{c.MetadataURL, c.ProductURL, c.ImageURL} {
		u, err := url.Parse(expandForParse(tmpl))
		if err != nil || u.Hostname() == "" {
			continue
		}
		if _, ok := seen[u.Hostname()]; ok {
			continue
		}
		seen[u.Hostname()] = struct{}{}
		hosts = append(hosts, u.Hostname())
	}
	return hosts
}

func validateTemplate(name, tmpl string, required ...string) error {
	if tmpl == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	for _, placeholder := range required {
		if !strings.Contains(tmpl, placeholder) {
			return fmt.Errorf("%s must contain %s", name, placeholder)
		}
	}
	parsed, err := url.Parse(expandForParse(tmpl))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}

// expandForParse fills placeholders so a template can go through url.Parse.
func expandForParse(tmpl string) string {
	return strings.NewReplacer(SKUPlaceholder, "x", PrefixPlaceholder, "x", IndexPlaceholder, "0").Replace(tmpl)
}
