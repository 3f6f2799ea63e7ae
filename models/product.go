// Package models defines data structures for the scraper.
package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Reserved column counts that are part of every record regardless of config.
const (
	CategoryColumns = 5
	OtherColumns    = 10
)

// fixedColumns is the leading block of every record, in output order.
var fixedColumns = []string{
	"crawl_timestamp",
	"shop_name", "shop_id", "shop_country", "shop_language", "shop_currency",
	"shop_product_id", "Product_URL", "category_path",
	"cat1", "cat2", "cat3", "cat4", "cat5",
	"Brand", "Name", "Price",
	"Qty_Range", "Min_Qty", "Max_Qty",
}

// Product is one fully assembled catalog row. Images and Descriptions are
// sized from configuration so every product of a run shares one schema.
type Product struct {
	CrawledAt    time.Time
	ShopName     string
	ShopID       string
	ShopCountry  string
	ShopLanguage string
	ShopCurrency string
	SKU          string
	URL          string
	CategoryPath string
	Categories   [CategoryColumns]string
	Brand        string
	Name         string
	Price        string
	QtyRange     string
	MinQty       string
	MaxQty       string
	Images       []string
	Descriptions []string
	Others       [OtherColumns]string
}

// ColumnCount returns the number of columns a product with the given image and
// description counts carries.
func ColumnCount(images, descriptions int) int {
	return len(fixedColumns) + images + descriptions + OtherColumns
}

// Header returns the column keys of a record with the given image and
// description counts, in canonical order.
func Header(images, descriptions int) []string {
	cols := make([]string, 0, ColumnCount(images, descriptions))
	cols = append(cols, fixedColumns...)
	for i := 0; i < images; i++ {
		cols = append(cols, "Image_"+strconv.Itoa(i+1))
	}
	for i := 0; i < descriptions; i++ {
		cols = append(cols, "product_description"+strconv.Itoa(i+1))
	}
	for i := 0; i < OtherColumns; i++ {
		cols = append(cols, "others"+strconv.Itoa(i+1))
	}
	return cols
}

// Columns returns the field keys of p in canonical order.
func (p *Product) Columns() []string {
	return Header(len(p.Images), len(p.Descriptions))
}

// Values returns the field values of p aligned with Columns.
func (p *Product) Values() []string {
	values := make([]string, 0, ColumnCount(len(p.Images), len(p.Descriptions)))
	values = append(values,
		p.CrawledAt.UTC().Format(time.RFC3339Nano),
		p.ShopName, p.ShopID, p.ShopCountry, p.ShopLanguage, p.ShopCurrency,
		p.SKU, p.URL, p.CategoryPath,
	)
	values = append(values, p.Categories[:]...)
	values = append(values, p.Brand, p.Name, p.Price, p.QtyRange, p.MinQty, p.MaxQty)
	values = append(values, p.Images...)
	values = append(values, p.Descriptions...)
	values = append(values, p.Others[:]...)
	return values
}

// MarshalJSON encodes p as a flat object whose keys follow Columns.
func (p *Product) MarshalJSON() ([]byte, error) {
	cols := p.Columns()
	values := p.Values()

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ProductInput carries the per-item data the builder collected.
type ProductInput struct {
	CrawledAt        time.Time
	SKU              string
	URL              string
	Item             *CatalogItem
	Images           []string
	Detail           string
	DescriptionCount int
}

// NewProduct assembles a product attributed to shop. Reserved columns are left
// empty and the description block always has DescriptionCount entries.
func NewProduct(shop ShopInfo, in ProductInput) *Product {
	descriptions := in.DescriptionCount
	if descriptions < 1 {
		descriptions = 1
	}

	p := &Product{
		CrawledAt:    in.CrawledAt,
		ShopName:     shop.Name,
		ShopID:       shop.ID,
		ShopCountry:  shop.Country,
		ShopLanguage: shop.Language,
		ShopCurrency: shop.Currency,
		SKU:          in.SKU,
		URL:          in.URL,
		Images:       make([]string, len(in.Images)),
		Descriptions: make([]string, descriptions),
	}
	copy(p.Images, in.Images)
	p.Descriptions[0] = in.Detail

	if in.Item != nil {
		p.CategoryPath = in.Item.MainCategory.String()
		p.Brand = in.Item.Brand.Name.String()
		p.Name = in.Item.Name.String()
		p.Price = in.Item.Price.Current.String()
	}
	return p
}

// ShopInfo is the storefront identity stamped on every product.
type ShopInfo struct {
	Name     string
	ID       string
	Country  string
	Language string
	Currency string
}
