package config

import (
	"fmt"
	"time"
)

// Validation bounds. Chunking must leave room for forward progress and the
// retriever must never fetch fewer candidates than it returns.
const (
	minChunkSize  = 100
	maxChunkSize  = 8000
	maxTopK       = 20
	maxFetchK     = 200
	minDeadline   = 5
	maxDeadline   = 600
	maxConcurrent = 16
)

// Validate performs fail-fast validation of the whole configuration.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.ChunkSize < minChunkSize || c.ChunkSize > maxChunkSize {
		return fmt.Errorf("%w: chunk_size %d not in [%d, %d]",
			ErrInvalidChunking, c.ChunkSize, minChunkSize, maxChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, chunk_size)",
			ErrInvalidChunking, c.ChunkOverlap)
	}

	if c.TopK < 1 || c.TopK > maxTopK {
		return fmt.Errorf("%w: top_k %d not in [1, %d]", ErrInvalidRetrieval, c.TopK, maxTopK)
	}
	if c.FetchK < c.TopK || c.FetchK > maxFetchK {
		return fmt.Errorf("%w: fetch_k %d must be in [top_k, %d]",
			ErrInvalidRetrieval, c.FetchK, maxFetchK)
	}

	if c.RequestDeadlineSeconds < minDeadline || c.RequestDeadlineSeconds > maxDeadline {
		return fmt.Errorf("%w: request_deadline_seconds %d not in [%d, %d]",
			ErrInvalidDeadline, c.RequestDeadlineSeconds, minDeadline, maxDeadline)
	}

	if c.IngestConcurrency < 1 || c.IngestConcurrency > maxConcurrent {
		return fmt.Errorf("%w: ingest_concurrency %d not in [1, %d]",
			ErrInvalidConcurrency, c.IngestConcurrency, maxConcurrent)
	}

	if c.BatchSize < 1 || c.BatchSize > MaxUpsertBatch {
		return fmt.Errorf("%w: batch_size %d not in [1, %d]",
			ErrInvalidBatchSize, c.BatchSize, MaxUpsertBatch)
	}

	if c.EmbedDimension < 1 || c.EmbedDimension > 4096 {
		return fmt.Errorf("%w: embed_dimension %d", ErrInvalidDimension, c.EmbedDimension)
	}

	if c.PostgresHost == "" || c.PostgresDBName == "" {
		return fmt.Errorf("%w: host and database name are required", ErrInvalidPostgres)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidPostgres, c.PostgresPort)
	}

	return nil
}

// ValidateServe adds checks required only when running the HTTP server and
// ingestion watcher together.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DocumentsRoot == "" {
		return ErrMissingDocumentsRoot
	}
	return nil
}

// RequestDeadline returns the overall ask deadline as a duration.
func (c *Config) RequestDeadline() time.Duration {
	return time.Duration(c.RequestDeadlineSeconds) * time.Second
}

// SettleDelay returns the watcher settle delay as a duration.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelaySeconds) * time.Second
}

// ScanInterval returns the watcher's periodic rescan interval as a duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSeconds) * time.Second
}
