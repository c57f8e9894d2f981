package storage

import (
	"context"

	"tender-scraper/models"
)

// Ingestor persists one extracted publication idempotently, keyed by its
// tender number.
type Ingestor interface {
	Ingest(ctx context.Context, in models.PublicationInput) (models.IngestResult, error)
	Close() error
}
