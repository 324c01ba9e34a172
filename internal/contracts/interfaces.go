package contracts

import (
	"context"
	"time"
)

// Store persists normalized contracts. Duplicate external IDs are ignored on
// insert; Inserted in the returned count reflects only new rows.
type Store interface {
	SaveContracts(ctx context.Context, runID string, records []NormalizedContract) (int, error)
	Close()
}

// BlobStore archives raw provider payloads and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes run-completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Sleeper pauses the calling goroutine, returning early on cancellation.
// Every blocking wait in the pipeline goes through one of these so tests run
// fast and an external scheduler can bound wall-clock time.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration)
}
