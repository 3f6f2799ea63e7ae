package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// CSVWriter writes records to CSV under a fixed header.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	header []string
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string, header []string) (*CSVWriter, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("csv header cannot be empty")
	}
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
		header: append([]string(nil), header...),
	}, nil
}

// Write appends products to the CSV output. Every row must match the header.
func (cw *CSVWriter) Write(products []*models.Product) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, product := range products {
		record := product.Values()
		if len(record) != len(cw.header) {
			return fmt.Errorf("csv record %s has %d fields, header has %d", product.SKU, len(record), len(cw.header))
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content besides the header.
func (cw *CSVWriter) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter emits one JSON object per product per line, with keys in
// column order.
type JSONWriter struct {
	mu      sync.Mutex
	path    string
	f       *os.File
	buf     *bufio.Writer
	enc     *json.Encoder
	records int
}

// NewJSONWriter creates filename, and its directory if needed.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buf := bufio.NewWriter(f)
	enc := json.NewEncoder(buf)
	// Description columns hold raw HTML.
	enc.SetEscapeHTML(false)
	return &JSONWriter{path: filename, f: f, buf: buf, enc: enc}, nil
}

func (jw *JSONWriter) Write(products []*models.Product) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, product := range products {
		if err := jw.enc.Encode(product); err != nil {
			return fmt.Errorf("encode %s: %w", product.SKU, err)
		}
		jw.records++
	}
	if err := jw.buf.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", jw.path, err)
	}
	return nil
}

func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return errors.Join(jw.buf.Flush(), jw.f.Close())
}

// Validate fails when no record has been written yet.
func (jw *JSONWriter) Validate() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	if jw.records == 0 {
		return fmt.Errorf("%s: no records written", jw.path)
	}
	return nil
}

// NewWriter returns the writer for format. Paths are resolved with OutputPath;
// the dual format also writes a JSONL file next to the CSV.
func NewWriter(format, filename string, header []string) (OutputWriter, error) {
	path := OutputPath(format, filename)
	switch format {
	case "json":
		return NewJSONWriter(path)
	case "csv":
		return NewCSVWriter(path, header)
	case "dual":
		return NewDualWriter(path, JSONSibling(path), header)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// OutputPath returns the file the primary output of format is written to. A
// JSON run never writes to a .csv name.
func OutputPath(format, filename string) string {
	if format == "json" && strings.EqualFold(filepath.Ext(filename), ".csv") {
		return JSONSibling(filename)
	}
	return filename
}

// JSONSibling swaps the extension of filename for .jsonl.
func JSONSibling(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".jsonl"
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
