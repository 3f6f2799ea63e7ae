package config

import (
	"slices"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "zero workers",
			mutate: func(cfg *Config) {
				cfg.MaxWorkers = 0
			},
			wantErr: "max workers",
		},
		{
			name: "zero retry limit",
			mutate: func(cfg *Config) {
				cfg.RetryLimit = 0
			},
			wantErr: "retry limit",
		},
		{
			name: "negative retry delay",
			mutate: func(cfg *Config) {
				cfg.RetryDelay = -time.Second
			},
			wantErr: "retry delay",
		},
		{
			name: "negative image count",
			mutate: func(cfg *Config) {
				cfg.ImageCount = -1
			},
			wantErr: "image count",
		},
		{
			name: "no description columns",
			mutate: func(cfg *Config) {
				cfg.DescriptionCount = 0
			},
			wantErr: "description count",
		},
		{
			name: "metadata template without sku",
			mutate: func(cfg *Config) {
				cfg.MetadataURL = "https://www.ocado.com/webshop/api/v1/products"
			},
			wantErr: "metadata URL",
		},
		{
			name: "image template without host",
			mutate: func(cfg *Config) {
				cfg.ImageURL = "/productImages/{sku}_{index}.jpg"
			},
			wantErr: "image URL",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.APITimeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "unknown format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestConfigHosts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ImageURL = "https://images.example.test/{prefix}/{sku}_{index}.jpg"

	hosts := cfg.Hosts()
	want := []string{"www.ocado.com", "images.example.test"}
	if !slices.Equal(hosts, want) {
		t.Fatalf("hosts = %v, want %v", hosts, want)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SCRAPER_WORKERS", " 7 ")
	t.Setenv("SCRAPER_RETRY_DELAY", "150ms")
	t.Setenv("SCRAPER_BROKEN", "seven")

	if value, ok, err := EnvInt("SCRAPER_WORKERS"); err != nil || !ok || value != 7 {
		t.Fatalf("EnvInt = %d, %v, %v", value, ok, err)
	}
	if value, ok, err := EnvDuration("SCRAPER_RETRY_DELAY"); err != nil || !ok || value != 150*time.Millisecond {
		t.Fatalf("EnvDuration = %v, %v, %v", value, ok, err)
	}
	if _, _, err := EnvInt("SCRAPER_BROKEN"); err == nil {
		t.Fatalf("expected parse error for SCRAPER_BROKEN")
	}
	if _, ok, err := EnvInt("SCRAPER_UNSET_VALUE"); ok || err != nil {
		t.Fatalf("unset variable should report ok=false, got ok=%v err=%v", ok, err)
	}
}
