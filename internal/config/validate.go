package config

import (
	"fmt"
	"strings"
)

var knownCatalogTypes = map[string]bool{
	"glue":   true,
	"hadoop": true,
}

var knownLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate performs structural validation on the config.
func (c Config) Validate() error {
	var errs []string

	if !knownCatalogTypes[c.CatalogType] {
		errs = append(errs, fmt.Sprintf("unknown catalog_type %q", c.CatalogType))
	}
	if c.CatalogName == "" {
		errs = append(errs, "catalog_name is required")
	}
	if c.Warehouse == "" {
		errs = append(errs, "warehouse is required")
	}
	if c.Namespace == "" {
		errs = append(errs, "namespace is required")
	}
	if c.TableName == "" {
		errs = append(errs, "table_name is required")
	}
	if c.CatalogType == "glue" && c.Region == "" {
		errs = append(errs, "region is required for the glue catalog")
	}

	if c.Timeout <= 0 {
		errs = append(errs, "timeout must be > 0")
	}
	if c.MaxAttempts <= 0 {
		errs = append(errs, fmt.Sprintf("max_attempts must be > 0, got %d", c.MaxAttempts))
	}
	if c.BackoffBase <= 0 {
		errs = append(errs, "backoff_base must be > 0")
	}
	if c.BackoffCap < c.BackoffBase {
		errs = append(errs, "backoff_cap must be >= backoff_base")
	}

	if c.LogLevel != "" && !knownLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q", c.LogLevel))
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("unknown log_format %q", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
