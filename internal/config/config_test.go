package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown catalog type",
			mutate:  func(c *Config) { c.CatalogType = "nessie" },
			wantErr: "unknown catalog_type",
		},
		{
			name:    "missing warehouse",
			mutate:  func(c *Config) { c.Warehouse = "" },
			wantErr: "warehouse is required",
		},
		{
			name:    "missing namespace",
			mutate:  func(c *Config) { c.Namespace = "" },
			wantErr: "namespace is required",
		},
		{
			name:    "missing table name",
			mutate:  func(c *Config) { c.TableName = "" },
			wantErr: "table_name is required",
		},
		{
			name: "glue requires region",
			mutate: func(c *Config) {
				c.CatalogType = "glue"
				c.Region = ""
			},
			wantErr: "region is required",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.MaxAttempts = 0 },
			wantErr: "max_attempts must be > 0",
		},
		{
			name: "cap below base",
			mutate: func(c *Config) {
				c.BackoffBase = time.Second
				c.BackoffCap = time.Millisecond
			},
			wantErr: "backoff_cap must be >= backoff_base",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.LogLevel = "trace" },
			wantErr: "unknown log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
