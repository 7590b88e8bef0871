// Package metrics exposes Prometheus collectors for table replacement.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Overwrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "icereplace_overwrites_total",
		Help: "Total number of overwrite operations by result.",
	}, []string{"result"})

	OverwriteRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "icereplace_overwrite_retries_total",
		Help: "Total number of overwrite retries after transient failures.",
	})

	OverwriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "icereplace_overwrite_duration_seconds",
		Help:    "Duration of overwrite operations including retries.",
		Buckets: prometheus.DefBuckets,
	})

	RowsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "icereplace_rows_written_total",
		Help: "Total number of rows committed by overwrites.",
	})

	Scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "icereplace_scans_total",
		Help: "Total number of full-table scans by result.",
	}, []string{"result"})

	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "icereplace_scan_duration_seconds",
		Help:    "Duration of full-table scans.",
		Buckets: prometheus.DefBuckets,
	})

	RowsRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "icereplace_rows_read_total",
		Help: "Total number of rows materialized by scans.",
	})

	DataFilesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "icereplace_data_files_written_total",
		Help: "Total number of Parquet data files written.",
	})

	BytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "icereplace_bytes_written_total",
		Help: "Total bytes of data files written.",
	})

	CommitConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "icereplace_commit_conflicts_total",
		Help: "Total number of commits rejected by concurrent table updates.",
	})
)
