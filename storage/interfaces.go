package storage

import (
	"context"

	"house-finder/models"
)

// Cache is a durable, append-only memoization store. Entries never expire.
type Cache interface {
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	Set(ctx context.Context, key Key, value []byte) error
	Close() error
}

// ResponseCache holds raw listing-source responses for a short time.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, body []byte) error
	Close() error
}

// ResultWriter persists the ranked listings of a run.
type ResultWriter interface {
	Write(run models.RunInfo, ranked []*models.EvaluatedListing) error
	Close() error
}
