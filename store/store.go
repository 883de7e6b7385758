// Package store defines the transcript record store and its Qdrant
// implementation.
package store

import (
	"context"

	"github.com/zhenyu92/memchat/domain"
)

// RawRecord is a single store record: an opaque store-assigned id plus
// the session it belongs to and its transcript payload.
type RawRecord struct {
	ID        string
	SessionID string
	Payload   domain.RecordPayload
}

// RecordStore is the persistence boundary for transcript records.
// Implementations must be safe for concurrent use and must recover
// transparently when the underlying collection was deleted out-of-band.
type RecordStore interface {
	// Find returns the record for a session, or nil when none exists.
	Find(ctx context.Context, sessionID string) (*RawRecord, error)

	// Upsert writes a new record for the session and returns its
	// store-assigned record id.
	Upsert(ctx context.Context, sessionID string, payload domain.RecordPayload) (string, error)

	// Delete removes a record by its store record id.
	Delete(ctx context.Context, recordID string) error

	// ListAll returns every transcript record in the collection.
	ListAll(ctx context.Context) ([]RawRecord, error)
}

// Embedder produces the vector stored alongside each record.
type Embedder interface {
	CreateEmbedding(ctx context.Context, model, input string) ([]float32, error)
}
