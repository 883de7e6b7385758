package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zhenyu92/memchat/domain"
)

// scrollPageSize is the page size used for collection scans.
const scrollPageSize = 64

// errCollectionMissing signals Qdrant's "collection doesn't exist"
// failure signature. It never leaves the adapter: each operation
// recreates the collection and retries exactly once before giving up
// with a StoreUnavailableError.
var errCollectionMissing = errors.New("collection missing")

// QdrantStore is a RecordStore backed by the Qdrant REST API. One
// point per session; the transcript payload rides in the point payload
// and the vector embeds the latest exchange.
type QdrantStore struct {
	baseURL    string
	collection string
	vectorSize int
	embedder   Embedder
	embedModel string
	httpClient *http.Client
}

// NewQdrantStore creates a new Qdrant-backed record store.
func NewQdrantStore(baseURL, collection string, vectorSize int, embedder Embedder, embedModel string, timeout time.Duration) *QdrantStore {
	return &QdrantStore{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		collection: collection,
		vectorSize: vectorSize,
		embedder:   embedder,
		embedModel: embedModel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Ensure QdrantStore implements RecordStore.
var _ RecordStore = (*QdrantStore)(nil)

// pointPayload is the wire form of a point's payload. session_id is
// stored alongside the record fields so points can be filtered by
// session key.
type pointPayload struct {
	SessionID string           `json:"session_id"`
	Title     string           `json:"title"`
	Messages  []domain.Message `json:"messages"`
	CreatedAt *time.Time       `json:"created_at"`
}

// Find returns the record for a session, or nil when none exists.
func (s *QdrantStore) Find(ctx context.Context, sessionID string) (*RawRecord, error) {
	var recs []RawRecord
	err := s.withRecreate(ctx, "find", func() error {
		var opErr error
		recs, _, opErr = s.scroll(ctx, sessionID, scrollPageSize, nil)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	if len(recs) > 1 {
		// At most one record per session is expected; more than one
		// means the delete half of a prior rewrite failed.
		log.Printf("WARN: %d records found for session %s, using first", len(recs), sessionID)
	}
	return &recs[0], nil
}

// Upsert writes a new record for the session and returns its id.
func (s *QdrantStore) Upsert(ctx context.Context, sessionID string, payload domain.RecordPayload) (string, error) {
	vector, err := s.embedder.CreateEmbedding(ctx, s.embedModel, embedText(payload))
	if err != nil {
		return "", fmt.Errorf("failed to embed record: %w", err)
	}

	recordID := uuid.NewString()
	body := map[string]interface{}{
		"points": []map[string]interface{}{
			{
				"id":     recordID,
				"vector": vector,
				"payload": pointPayload{
					SessionID: sessionID,
					Title:     payload.Title,
					Messages:  payload.Messages,
					CreatedAt: payload.CreatedAt,
				},
			},
		},
	}

	err = s.withRecreate(ctx, "upsert", func() error {
		return s.do(ctx, http.MethodPut, "/collections/"+s.collection+"/points?wait=true", body, nil)
	})
	if err != nil {
		return "", err
	}
	return recordID, nil
}

// Delete removes a record by its store record id.
func (s *QdrantStore) Delete(ctx context.Context, recordID string) error {
	body := map[string]interface{}{
		"points": []string{recordID},
	}
	return s.withRecreate(ctx, "delete", func() error {
		return s.do(ctx, http.MethodPost, "/collections/"+s.collection+"/points/delete?wait=true", body, nil)
	})
}

// ListAll returns every transcript record in the collection.
func (s *QdrantStore) ListAll(ctx context.Context) ([]RawRecord, error) {
	var all []RawRecord
	err := s.withRecreate(ctx, "list", func() error {
		all = all[:0]
		var offset json.RawMessage
		for {
			recs, next, opErr := s.scroll(ctx, "", scrollPageSize, offset)
			if opErr != nil {
				return opErr
			}
			all = append(all, recs...)
			if next == nil {
				return nil
			}
			offset = next
		}
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// withRecreate runs op, and on the missing-collection signature
// recreates the collection with the configured schema and retries
// exactly once. Any second failure surfaces as StoreUnavailable. Other
// error classes pass through untouched.
func (s *QdrantStore) withRecreate(ctx context.Context, opName string, op func() error) error {
	err := op()
	if err == nil || !errors.Is(err, errCollectionMissing) {
		return err
	}

	log.Printf("WARN: collection %q missing during %s, recreating", s.collection, opName)
	if createErr := s.createCollection(ctx); createErr != nil {
		return &domain.StoreUnavailableError{Op: opName, Err: createErr}
	}
	if err := op(); err != nil {
		return &domain.StoreUnavailableError{Op: opName, Err: err}
	}
	return nil
}

// createCollection creates the collection with the originally
// configured vector schema. Idempotent: an already-exists conflict is
// treated as success.
func (s *QdrantStore) createCollection(ctx context.Context) error {
	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     s.vectorSize,
			"distance": "Cosine",
		},
	}
	err := s.do(ctx, http.MethodPut, "/collections/"+s.collection, body, nil)
	if err != nil && strings.Contains(err.Error(), "already exists") {
		return nil
	}
	return err
}

type scrollResult struct {
	Points []struct {
		ID      interface{}  `json:"id"`
		Payload pointPayload `json:"payload"`
	} `json:"points"`
	NextPageOffset json.RawMessage `json:"next_page_offset"`
}

// scroll pages through the collection, filtered by session key when
// sessionID is non-empty.
func (s *QdrantStore) scroll(ctx context.Context, sessionID string, limit int, offset json.RawMessage) ([]RawRecord, json.RawMessage, error) {
	body := map[string]interface{}{
		"limit":        limit,
		"with_payload": true,
	}
	if sessionID != "" {
		body["filter"] = map[string]interface{}{
			"must": []map[string]interface{}{
				{
					"key":   "session_id",
					"match": map[string]interface{}{"value": sessionID},
				},
			},
		}
	}
	if offset != nil {
		body["offset"] = offset
	}

	var result scrollResult
	if err := s.do(ctx, http.MethodPost, "/collections/"+s.collection+"/points/scroll", body, &result); err != nil {
		return nil, nil, err
	}

	records := make([]RawRecord, 0, len(result.Points))
	for _, p := range result.Points {
		records = append(records, RawRecord{
			ID:        pointIDString(p.ID),
			SessionID: p.Payload.SessionID,
			Payload: domain.RecordPayload{
				Title:     p.Payload.Title,
				Messages:  p.Payload.Messages,
				CreatedAt: p.Payload.CreatedAt,
			},
		})
	}

	next := result.NextPageOffset
	if string(next) == "null" {
		next = nil
	}
	return records, next, nil
}

// qdrantError is the error envelope Qdrant returns on failures.
type qdrantError struct {
	Status struct {
		Error string `json:"error"`
	} `json:"status"`
}

// do sends a JSON request to Qdrant and decodes the result envelope
// into out when non-nil.
func (s *QdrantStore) do(ctx context.Context, method, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var qerr qdrantError
		_ = json.Unmarshal(respBody, &qerr)
		if isMissingCollection(resp.StatusCode, qerr.Status.Error) {
			return fmt.Errorf("%w: %s", errCollectionMissing, qerr.Status.Error)
		}
		if qerr.Status.Error != "" {
			return fmt.Errorf("qdrant error [%d]: %s", resp.StatusCode, qerr.Status.Error)
		}
		return fmt.Errorf("qdrant error [%d]: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return nil
}

// isMissingCollection matches Qdrant's "Not found: Collection `x`
// doesn't exist!" signature.
func isMissingCollection(statusCode int, message string) bool {
	if statusCode != http.StatusNotFound {
		return false
	}
	lower := strings.ToLower(message)
	return strings.Contains(lower, "doesn't exist") || strings.Contains(lower, "not found: collection")
}

// embedText picks the text embedded for a record: the latest exchange,
// falling back to the title for records without messages.
func embedText(payload domain.RecordPayload) string {
	msgs := payload.Messages
	if len(msgs) == 0 {
		return payload.Title
	}
	start := len(msgs) - 2
	if start < 0 {
		start = 0
	}
	var parts []string
	for _, m := range msgs[start:] {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

// pointIDString renders a Qdrant point id, which may be a string uuid
// or an unsigned integer.
func pointIDString(id interface{}) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
