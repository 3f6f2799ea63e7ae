package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
)

// prefixLen is the number of leading SKU characters used as the image folder.
const prefixLen = 3

// ValidateProduct ensures a product is complete enough to be written.
func ValidateProduct(p *models.Product, wantColumns int) error {
	if p == nil {
		return fmt.Errorf("product is nil")
	}
	if strings.TrimSpace(p.SKU) == "" {
		return fmt.Errorf("product missing sku")
	}
	if p.CrawledAt.IsZero() {
		return fmt.Errorf("product missing crawl timestamp for %s", p.SKU)
	}
	if wantColumns > 0 {
		if got := len(p.Columns()); got != wantColumns {
			return fmt.Errorf("product %s has %d columns, want %d", p.SKU, got, wantColumns)
		}
	}
	return nil
}

// ExtractSection returns the inner HTML of the first element in body matching
// selector, or an empty string when nothing matches.
func ExtractSection(body []byte, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	section := doc.Find(selector).First()
	if section.Length() == 0 {
		return "", nil
	}
	inner, err := section.Html()
	if err != nil {
		return "", fmt.Errorf("render section %q: %w", selector, err)
	}
	return inner, nil
}

// SKUPrefix returns the leading characters of sku used in image paths.
func SKUPrefix(sku string) string {
	runes := []rune(sku)
	if len(runes) <= prefixLen {
		return sku
	}
	return string(runes[:prefixLen])
}

// MetadataURL expands the metadata API template for sku.
func MetadataURL(tmpl, sku string) string {
	return strings.ReplaceAll(tmpl, config.SKUPlaceholder, url.QueryEscape(sku))
}

// ProductURL expands the product page template for sku.
func ProductURL(tmpl, sku string) string {
	return strings.ReplaceAll(tmpl, config.SKUPlaceholder, url.PathEscape(sku))
}

// ImageURLs builds the count candidate image URLs for sku, indexed from 0.
func ImageURLs(tmpl, sku string, count int) []string {
	if count <= 0 {
		return nil
	}
	prefix := url.PathEscape(SKUPrefix(sku))
	escaped := url.PathEscape(sku)

	urls := make([]string, count)
	for i := range urls {
		urls[i] = strings.NewReplacer(
			config.PrefixPlaceholder, prefix,
			config.SKUPlaceholder, escaped,
			config.IndexPlaceholder, strconv.Itoa(i),
		).Replace(tmpl)
	}
	return urls
}
