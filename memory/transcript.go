// Package memory implements transcript persistence over the record
// store: the append-only message log, the session directory, and
// title inference.
package memory

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhenyu92/memchat/domain"
	"github.com/zhenyu92/memchat/store"
)

// Titler derives a session title from its first exchange.
type Titler interface {
	Infer(ctx context.Context, userText, assistantText string) (string, error)
}

// TranscriptLog owns the read-modify-write protocol that keeps a
// single store record per session while the logical message log is
// append-only. Appends for the same session are serialized by a
// per-session mutex; the store itself offers no atomicity across the
// read, delete and upsert steps.
type TranscriptLog struct {
	store  store.RecordStore
	dir    *Directory
	titler Titler

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTranscriptLog creates a new transcript log.
func NewTranscriptLog(st store.RecordStore, dir *Directory, titler Titler) *TranscriptLog {
	return &TranscriptLog{
		store:  st,
		dir:    dir,
		titler: titler,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (l *TranscriptLog) sessionLock(sessionID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[sessionID] = lock
	}
	return lock
}

// Append records one user/assistant exchange for the session and
// returns the persisted assistant message. On the session's first
// append the title is fixed, from the session's creation request or by
// inference; later appends carry title and creation time forward
// unchanged.
func (l *TranscriptLog) Append(ctx context.Context, sessionID, userText, assistantText string) (domain.Message, error) {
	lock := l.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := l.store.Find(ctx, sessionID)
	if err != nil {
		return domain.Message{}, err
	}

	var title string
	var createdAt *time.Time
	var prior []domain.Message
	if existing == nil {
		title, createdAt = l.firstAppendMeta(ctx, sessionID, userText, assistantText)
	} else {
		title = existing.Payload.Title
		createdAt = existing.Payload.CreatedAt
		prior = existing.Payload.Messages
	}

	userMsg := domain.Message{ID: uuid.NewString(), Sender: domain.SenderUser, Content: userText}
	assistantMsg := domain.Message{ID: uuid.NewString(), Sender: domain.SenderAI, Content: assistantText}

	messages := make([]domain.Message, 0, len(prior)+2)
	messages = append(messages, prior...)
	messages = append(messages, userMsg, assistantMsg)

	if existing != nil {
		// Best-effort: a stale record is acceptable garbage, a lost
		// append is not.
		if err := l.store.Delete(ctx, existing.ID); err != nil {
			log.Printf("WARN: failed to delete stale record %s for session %s: %v", existing.ID, sessionID, err)
		}
	}

	payload := domain.RecordPayload{
		Title:     title,
		Messages:  messages,
		CreatedAt: createdAt,
	}
	if _, err := l.store.Upsert(ctx, sessionID, payload); err != nil {
		return domain.Message{}, err
	}

	if existing == nil {
		l.dir.markPersisted(sessionID)
	}
	return assistantMsg, nil
}

// firstAppendMeta fixes the title and creation time written with a
// session's first record. A client-supplied title wins; otherwise the
// title is inferred from the first exchange, degrading to empty on
// inference failure rather than blocking message delivery.
func (l *TranscriptLog) firstAppendMeta(ctx context.Context, sessionID, userText, assistantText string) (string, *time.Time) {
	var title string
	var createdAt *time.Time

	if sess, ok := l.dir.pendingSession(sessionID); ok {
		title = sess.Title
		t := sess.CreatedAt
		createdAt = &t
	}
	if createdAt == nil {
		now := time.Now().UTC()
		createdAt = &now
	}

	if title == "" {
		inferred, err := l.titler.Infer(ctx, userText, assistantText)
		if err != nil {
			log.Printf("WARN: title inference failed for session %s: %v", sessionID, err)
		} else {
			title = inferred
		}
	}
	return title, createdAt
}

// Read returns the session's message history in order. A session
// without a record has an empty history; that is not an error.
func (l *TranscriptLog) Read(ctx context.Context, sessionID string) ([]domain.Message, error) {
	rec, err := l.store.Find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return []domain.Message{}, nil
	}
	if rec.Payload.Messages == nil {
		return []domain.Message{}, nil
	}
	return rec.Payload.Messages, nil
}
