// Package config holds the workflow configuration surface.
package config

import "time"

type Config struct {
	Region      string        `mapstructure:"region"`
	CatalogName string        `mapstructure:"catalog_name"`
	CatalogType string        `mapstructure:"catalog_type"` // "glue" or "hadoop"
	Warehouse   string        `mapstructure:"warehouse"`
	Namespace   string        `mapstructure:"namespace"`
	TableName   string        `mapstructure:"table_name"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffCap  time.Duration `mapstructure:"backoff_cap"`
	LogLevel    string        `mapstructure:"log_level"`
	LogFormat   string        `mapstructure:"log_format"`
	S3          S3Config      `mapstructure:"s3"`
}

// S3Config configures the object store used by the hadoop catalog when the
// warehouse is an s3:// location.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"` // optional, for MinIO/localstack
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

func Default() Config {
	return Config{
		Region:      "us-east-1",
		CatalogName: "mydatacatalog",
		CatalogType: "hadoop",
		Warehouse:   "warehouse",
		Namespace:   "myblognamespace",
		TableName:   "customers",
		Timeout:     2 * time.Minute,
		MaxAttempts: 3,
		BackoffBase: 500 * time.Millisecond,
		BackoffCap:  8 * time.Second,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}
