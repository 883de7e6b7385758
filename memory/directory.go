package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhenyu92/memchat/domain"
	"github.com/zhenyu92/memchat/store"
)

// Directory tracks session metadata. It is a best-effort cache over
// the record store: sessions created but not yet appended to live only
// in the transient set, and the store wins once a record exists.
type Directory struct {
	store store.RecordStore

	mu      sync.RWMutex
	pending map[string]domain.Session
}

// NewDirectory creates a new session directory.
func NewDirectory(st store.RecordStore) *Directory {
	return &Directory{
		store:   st,
		pending: make(map[string]domain.Session),
	}
}

// Create allocates a new session and registers it in the transient
// set. No store record exists until the session's first append.
func (d *Directory) Create(title string) domain.Session {
	sess := domain.Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	d.mu.Lock()
	d.pending[sess.ID] = sess
	d.mu.Unlock()
	return sess
}

// List returns all known sessions, newest first: every session with a
// transcript record plus any transient sessions awaiting their first
// append.
func (d *Directory) List(ctx context.Context) ([]domain.Session, error) {
	recs, err := d.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	sessions := make([]domain.Session, 0, len(recs))
	for _, rec := range recs {
		if rec.SessionID == "" || seen[rec.SessionID] {
			continue
		}
		seen[rec.SessionID] = true
		sessions = append(sessions, sessionFromRecord(rec))
	}

	d.mu.RLock()
	for id, sess := range d.pending {
		if !seen[id] {
			sessions = append(sessions, sess)
		}
	}
	d.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// Get returns the session's metadata, merging the transient and store
// views. Store data wins when both exist. Returns nil when the session
// is unknown.
func (d *Directory) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	rec, err := d.store.Find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		sess := sessionFromRecord(*rec)
		return &sess, nil
	}

	d.mu.RLock()
	sess, ok := d.pending[sessionID]
	d.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

// pendingSession returns the transient entry for a session, if any.
func (d *Directory) pendingSession(sessionID string) (domain.Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sess, ok := d.pending[sessionID]
	return sess, ok
}

// markPersisted drops a session from the transient set once its first
// record lands; the store is authoritative from then on.
func (d *Directory) markPersisted(sessionID string) {
	d.mu.Lock()
	delete(d.pending, sessionID)
	d.mu.Unlock()
}

func sessionFromRecord(rec store.RawRecord) domain.Session {
	sess := domain.Session{
		ID:    rec.SessionID,
		Title: rec.Payload.Title,
	}
	if rec.Payload.CreatedAt != nil {
		sess.CreatedAt = *rec.Payload.CreatedAt
	}
	return sess
}
