// Package helpers provides test doubles shared across package tests.
package helpers

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/zhenyu92/memchat/domain"
	"github.com/zhenyu92/memchat/store"
)

// MemoryRecordStore is an in-memory RecordStore for tests. Error
// fields force the corresponding operation to fail.
type MemoryRecordStore struct {
	FindErr   error
	UpsertErr error
	DeleteErr error
	ListErr   error

	mu      sync.Mutex
	records []store.RawRecord
}

// NewMemoryRecordStore creates an empty in-memory record store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{}
}

// Ensure MemoryRecordStore implements RecordStore.
var _ store.RecordStore = (*MemoryRecordStore)(nil)

// Find returns the newest record for a session, or nil when none
// exists.
func (s *MemoryRecordStore) Find(ctx context.Context, sessionID string) (*store.RawRecord, error) {
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].SessionID == sessionID {
			rec := s.records[i]
			return &rec, nil
		}
	}
	return nil, nil
}

// Upsert stores a new record and returns its generated id.
func (s *MemoryRecordStore) Upsert(ctx context.Context, sessionID string, payload domain.RecordPayload) (string, error) {
	if s.UpsertErr != nil {
		return "", s.UpsertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := store.RawRecord{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Payload:   payload,
	}
	s.records = append(s.records, rec)
	return rec.ID, nil
}

// Delete removes a record by id. Deleting a missing id is a no-op.
func (s *MemoryRecordStore) Delete(ctx context.Context, recordID string) error {
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rec := range s.records {
		if rec.ID == recordID {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return nil
}

// ListAll returns a snapshot of every record.
func (s *MemoryRecordStore) ListAll(ctx context.Context) ([]store.RawRecord, error) {
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.RawRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// CountForSession returns how many records exist for a session.
func (s *MemoryRecordStore) CountForSession(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.records {
		if rec.SessionID == sessionID {
			n++
		}
	}
	return n
}
