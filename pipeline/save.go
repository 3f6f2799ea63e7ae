package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
)

// ErrNothingToSave is returned by Save when there are no products. No file is
// created in that case.
var ErrNothingToSave = errors.New("pipeline: no data to save")

// Save writes products in cfg.OutputFormat to the file OutputPath picks for
// cfg.OutputFile. The header is taken from the first product. It returns the
// number of records written.
func Save(ctx context.Context, products []*models.Product, cfg *config.Config, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(products) == 0 {
		logger.Warn("no data to save")
		return 0, ErrNothingToSave
	}

	writer, err := NewWriter(cfg.OutputFormat, cfg.OutputFile, products[0].Columns())
	if err != nil {
		logger.Error("error saving output", slog.Any("error", err))
		return 0, fmt.Errorf("create writer: %w", err)
	}

	p := NewPipeline(ctx, writer, cfg).WithLogger(logger)
	p.Start(1)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	processErr := p.Process(products...)
	closeErr := p.Close()

	var validateErr error
	if processErr == nil && closeErr == nil {
		validateErr = writer.Validate()
	}
	var writerErr error
	if !errors.Is(closeErr, ErrPipelineCloseTimeout) {
		// A worker may still hold the writer after a timeout.
		writerErr = writer.Close()
	}

	if err := errors.Join(processErr, closeErr, validateErr, writerErr); err != nil {
		logger.Error("error saving output", slog.Any("error", err))
		return p.Processed(), err
	}

	if dropped := p.GetMetrics()["validation_errors"].(map[string]int); len(dropped) > 0 {
		logger.Warn("records dropped before write", slog.Any("validation_errors", dropped))
	}
	saved := p.Processed()
	logger.Info("saved records", slog.Int("count", saved), slog.String("file", OutputPath(cfg.OutputFormat, cfg.OutputFile)))
	return saved, nil
}
