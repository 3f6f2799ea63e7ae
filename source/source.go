// Package source loads the identifiers to scrape.
package source

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Read returns the non-blank lines of r, trimmed, in order. Duplicates are
// kept.
func Read(r io.Reader) ([]string, error) {
	var skus []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		skus = append(skus, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read skus: %w", err)
	}
	return skus, nil
}

// Load reads the identifier file at path. Any failure is logged and yields an
// empty list.
func Load(path string, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		logger.Warn("failed to load skus", slog.String("file", path), slog.Any("error", err))
		return []string{}
	}
	defer f.Close()

	skus, err := Read(f)
	if err != nil {
		logger.Warn("failed to load skus", slog.String("file", path), slog.Any("error", err))
		return []string{}
	}
	if skus == nil {
		skus = []string{}
	}
	logger.Debug("loaded skus", slog.String("file", path), slog.Int("count", len(skus)))
	return skus
}
