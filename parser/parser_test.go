package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

func TestValidateProduct(t *testing.T) {
	valid := func() *models.Product {
		return models.NewProduct(models.ShopInfo{Name: "Ocado"}, models.ProductInput{
			CrawledAt:        time.Now(),
			SKU:              "AAA111",
			Images:           []string{"", ""},
			DescriptionCount: 2,
		})
	}

	tests := []struct {
		name    string
		product *models.Product
		columns int
		wantErr bool
	}{
		{
			name:    "valid product",
			product: valid(),
			columns: models.ColumnCount(2, 2),
			wantErr: false,
		},
		{
			name:    "column check disabled",
			product: valid(),
			columns: 0,
			wantErr: false,
		},
		{
			name:    "nil product",
			product: nil,
			wantErr: true,
		},
		{
			name: "missing sku",
			product: func() *models.Product {
				p := valid()
				p.SKU = "  "
				return p
			}(),
			wantErr: true,
		},
		{
			name: "missing timestamp",
			product: func() *models.Product {
				p := valid()
				p.CrawledAt = time.Time{}
				return p
			}(),
			wantErr: true,
		},
		{
			name:    "schema mismatch",
			product: valid(),
			columns: models.ColumnCount(3, 2),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProduct(tt.product, tt.columns)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProduct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExtractSection(t *testing.T) {
	const selector = "section.bop-section.bop-productInformation"

	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "section present",
			html:     `<html><body><section class="bop-section bop-productInformation"><h2>Info</h2><p>Fresh milk</p></section></body></html>`,
			expected: "<h2>Info</h2><p>Fresh milk</p>",
		},
		{
			name:     "first match wins",
			html:     `<section class="bop-section bop-productInformation">one</section><section class="bop-section bop-productInformation">two</section>`,
			expected: "one",
		},
		{
			name:     "class order does not matter",
			html:     `<section class="bop-productInformation extra bop-section"><span>x</span></section>`,
			expected: "<span>x</span>",
		},
		{
			name:     "missing section",
			html:     `<html><body><section class="bop-section">other</section></body></html>`,
			expected: "",
		},
		{
			name:     "wrong tag",
			html:     `<div class="bop-section bop-productInformation">div</div>`,
			expected: "",
		},
		{
			name:     "empty body",
			html:     "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExtractSection([]byte(tt.html), selector)
			if err != nil {
				t.Fatalf("ExtractSection: %v", err)
			}
			if result != tt.expected {
				t.Errorf("ExtractSection() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestSKUPrefix(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "AAA111", expected: "AAA"},
		{input: "123", expected: "123"},
		{input: "12", expected: "12"},
		{input: "", expected: ""},
		{input: "ÄÖÜ999", expected: "ÄÖÜ"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SKUPrefix(tt.input); got != tt.expected {
				t.Errorf("SKUPrefix(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestURLTemplates(t *testing.T) {
	if got := MetadataURL("https://shop.test/api/products?skus={sku}", "AAA111"); got != "https://shop.test/api/products?skus=AAA111" {
		t.Errorf("MetadataURL = %q", got)
	}
	if got := MetadataURL("https://shop.test/api/products?skus={sku}", "A&B"); got != "https://shop.test/api/products?skus=A%26B" {
		t.Errorf("MetadataURL escaping = %q", got)
	}
	if got := ProductURL("https://shop.test/products/{sku}", "AAA111"); got != "https://shop.test/products/AAA111" {
		t.Errorf("ProductURL = %q", got)
	}
	// Product_URL carries the escaped path so it stays a fetchable URL.
	if got := ProductURL("https://shop.test/products/{sku}", "A B/1"); got != "https://shop.test/products/A%20B%2F1" {
		t.Errorf("ProductURL escaping = %q", got)
	}

	urls := ImageURLs("https://shop.test/productImages/{prefix}/{sku}_{index}_640x640.jpg", "AAA111", 3)
	want := []string{
		"https://shop.test/productImages/AAA/AAA111_0_640x640.jpg",
		"https://shop.test/productImages/AAA/AAA111_1_640x640.jpg",
		"https://shop.test/productImages/AAA/AAA111_2_640x640.jpg",
	}
	if strings.Join(urls, "\n") != strings.Join(want, "\n") {
		t.Errorf("ImageURLs = %v, want %v", urls, want)
	}
	if got := ImageURLs("https://shop.test/{sku}_{index}.jpg", "AAA111", 0); got != nil {
		t.Errorf("ImageURLs with zero count = %v, want nil", got)
	}
}
