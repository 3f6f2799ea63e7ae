package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CatalogItem is the subset of the metadata API payload the scraper uses.
type CatalogItem struct {
	Name         Text  `json:"name"`
	MainCategory Text  `json:"mainCategory"`
	Brand        Brand `json:"brand"`
	Price        Price `json:"price"`
}

// Brand is the nested brand object of a catalog item.
type Brand struct {
	Name Text `json:"name"`
}

// Price is the nested price object of a catalog item.
type Price struct {
	Current Text `json:"current"`
}

// UnmarshalJSON tolerates a null or non-object brand.
func (b *Brand) UnmarshalJSON(data []byte) error {
	type plain Brand
	return decodeObject(data, (*plain)(b))
}

// UnmarshalJSON tolerates a null or non-object price.
func (p *Price) UnmarshalJSON(data []byte) error {
	type plain Price
	return decodeObject(data, (*plain)(p))
}

func decodeObject(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	return json.Unmarshal(trimmed, v)
}

// Text is a JSON value rendered as a string. Numbers keep their literal form,
// null and missing values become empty.
type Text string

// String returns the text value.
func (t Text) String() string {
	return string(t)
}

// UnmarshalJSON accepts any JSON value.
func (t *Text) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*t = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return err
	}
	*t = Text(compact.String())
	return nil
}

// DecodeCatalogResponse decodes the metadata API array and returns its first
// element. It returns nil when the array is empty or the first element is null
// or an empty object.
func DecodeCatalogResponse(body []byte) (*CatalogItem, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(items[0], &fields); err != nil {
		return nil, fmt.Errorf("decode catalog item: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	var item CatalogItem
	if err := json.Unmarshal(items[0], &item); err != nil {
		return nil, fmt.Errorf("decode catalog item: %w", err)
	}
	return &item, nil
}
