// Package pipeline validates scraped products and writes them out as CSV,
// JSONL or both.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

type namedOutput struct {
	name string
	w    OutputWriter
}

// DualWriter mirrors every batch into a CSV file and a JSONL file, in that
// order.
type DualWriter struct {
	mu      sync.Mutex
	outputs []namedOutput
}

func NewDualWriter(csvFilename, jsonFilename string, header []string) (*DualWriter, error) {
	csvOut, err := NewCSVWriter(csvFilename, header)
	if err != nil {
		return nil, fmt.Errorf("dual output: %w", err)
	}
	jsonOut, err := NewJSONWriter(jsonFilename)
	if err != nil {
		_ = csvOut.Close()
		return nil, fmt.Errorf("dual output: %w", err)
	}

	return &DualWriter{outputs: []namedOutput{
		{name: "csv", w: csvOut},
		{name: "jsonl", w: jsonOut},
	}}, nil
}

// Write stops at the first output that fails.
func (dw *DualWriter) Write(products []*models.Product) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	for _, out := range dw.outputs {
		if err := out.w.Write(products); err != nil {
			return fmt.Errorf("%s output: %w", out.name, err)
		}
	}
	return nil
}

func (dw *DualWriter) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return dw.each(OutputWriter.Close)
}

func (dw *DualWriter) Validate() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return dw.each(OutputWriter.Validate)
}

// each runs fn on every output and joins the failures.
func (dw *DualWriter) each(fn func(OutputWriter) error) error {
	var errs []error
	for _, out := range dw.outputs {
		if err := fn(out.w); err != nil {
			errs = append(errs, fmt.Errorf("%s output: %w", out.name, err))
		}
	}
	return errors.Join(errs...)
}
