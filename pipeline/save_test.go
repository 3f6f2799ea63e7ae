package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
)

func TestSaveNothingToSave(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputFile = filepath.Join(t.TempDir(), "catalog.csv")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	n, err := Save(context.Background(), nil, cfg, logger)
	require.ErrorIs(t, err, ErrNothingToSave)
	require.Zero(t, n)
	require.Contains(t, logs.String(), "no data to save")

	_, statErr := os.Stat(cfg.OutputFile)
	require.True(t, os.IsNotExist(statErr), "no file should be created")
}

func TestSaveWritesCSV(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputFile = filepath.Join(t.TempDir(), "out", "catalog.csv")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	products := []*models.Product{
		testProduct(cfg, "AAA111"),
		testProduct(cfg, "BBB222"),
		testProduct(cfg, "CCC333"),
	}
	n, err := Save(context.Background(), products, cfg, logger)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Contains(t, logs.String(), "saved records")
	require.Contains(t, logs.String(), "count=3")

	f, err := os.Open(cfg.OutputFile)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	require.Equal(t, products[0].Columns(), records[0])
	for i, p := range products {
		require.Equal(t, p.Values(), records[i+1])
	}
}

func TestSaveWritesJSON(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputFormat = "json"
	cfg.OutputFile = filepath.Join(t.TempDir(), "catalog.jsonl")

	n, err := Save(context.Background(), []*models.Product{testProduct(cfg, "AAA111")}, cfg, nil)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	require.Contains(t, string(data), `"shop_product_id":"AAA111"`)
}

func TestSaveJSONDoesNotUseCSVName(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputFormat = "json"
	dir := t.TempDir()
	cfg.OutputFile = filepath.Join(dir, "catalog.csv")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	n, err := Save(context.Background(), []*models.Product{testProduct(cfg, "AAA111")}, cfg, logger)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	jsonPath := filepath.Join(dir, "catalog.jsonl")
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	require.Contains(t, string(data), `"shop_product_id":"AAA111"`)
	require.Contains(t, logs.String(), jsonPath)

	_, statErr := os.Stat(cfg.OutputFile)
	require.True(t, os.IsNotExist(statErr), "json output must not land in a .csv file")
}
