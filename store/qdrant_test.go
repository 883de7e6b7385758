package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zhenyu92/memchat/domain"
)

const missingCollectionBody = `{"status":{"error":"Not found: Collection ` + "`chat_transcripts`" + ` doesn't exist!"},"time":0}`

type stubEmbedder struct{}

func (stubEmbedder) CreateEmbedding(ctx context.Context, model, input string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func newTestStore(url string) *QdrantStore {
	return NewQdrantStore(url, "chat_transcripts", 2, stubEmbedder{}, "text-embedding-3-small", time.Second)
}

// counter tracks calls per route across a scripted server.
type counter struct {
	mu      sync.Mutex
	created int
	scrolls int
	upserts int
	deletes int
}

func TestFindRecoversMissingCollection(t *testing.T) {
	var calls counter
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chat_transcripts":
			calls.mu.Lock()
			calls.created++
			calls.mu.Unlock()
			fmt.Fprint(w, `{"result":true,"status":"ok","time":0}`)
		case r.URL.Path == "/collections/chat_transcripts/points/scroll":
			calls.mu.Lock()
			calls.scrolls++
			n := calls.scrolls
			calls.mu.Unlock()
			if n == 1 {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, missingCollectionBody)
				return
			}
			fmt.Fprint(w, `{"result":{"points":[{"id":"r1","payload":{"session_id":"s1","title":"T","messages":[{"id":"m1","sender":"user","content":"hi"}],"created_at":"2024-01-02T03:04:05Z"}}],"next_page_offset":null},"status":"ok","time":0}`)
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	s := newTestStore(server.URL)
	rec, err := s.Find(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if rec == nil || rec.ID != "r1" || rec.Payload.Title != "T" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.Payload.Messages) != 1 || rec.Payload.Messages[0].Content != "hi" {
		t.Fatalf("unexpected messages: %+v", rec.Payload.Messages)
	}
	if calls.created != 1 || calls.scrolls != 2 {
		t.Fatalf("expected 1 create and 2 scrolls, got %d and %d", calls.created, calls.scrolls)
	}
}

func TestFindNoRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"points":[],"next_page_offset":null},"status":"ok","time":0}`)
	}))
	defer server.Close()

	s := newTestStore(server.URL)
	rec, err := s.Find(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record, got %+v", rec)
	}
}

func TestFindUsesFirstOfMultiple(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"points":[{"id":"r1","payload":{"session_id":"s1","title":"first"}},{"id":"r2","payload":{"session_id":"s1","title":"stale"}}],"next_page_offset":null},"status":"ok","time":0}`)
	}))
	defer server.Close()

	s := newTestStore(server.URL)
	rec, err := s.Find(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if rec == nil || rec.ID != "r1" {
		t.Fatalf("expected first record, got %+v", rec)
	}
}

func TestUpsertRecoversMissingCollection(t *testing.T) {
	var calls counter
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chat_transcripts":
			calls.mu.Lock()
			calls.created++
			calls.mu.Unlock()
			fmt.Fprint(w, `{"result":true,"status":"ok","time":0}`)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chat_transcripts/points":
			calls.mu.Lock()
			calls.upserts++
			n := calls.upserts
			calls.mu.Unlock()
			if n == 1 {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, missingCollectionBody)
				return
			}
			var body struct {
				Points []struct {
					ID      string          `json:"id"`
					Vector  []float32       `json:"vector"`
					Payload json.RawMessage `json:"payload"`
				} `json:"points"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode upsert body: %v", err)
			}
			if len(body.Points) != 1 || len(body.Points[0].Vector) != 2 {
				t.Fatalf("unexpected upsert body: %+v", body)
			}
			fmt.Fprint(w, `{"result":{"operation_id":1,"status":"completed"},"status":"ok","time":0}`)
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	s := newTestStore(server.URL)
	id, err := s.Upsert(context.Background(), "s1", domain.RecordPayload{
		Title:    "T",
		Messages: []domain.Message{{ID: "m1", Sender: domain.SenderUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if id == "" {
		t.Fatalf("expected record id")
	}
	if calls.created != 1 || calls.upserts != 2 {
		t.Fatalf("expected 1 create and 2 upserts, got %d and %d", calls.created, calls.upserts)
	}
}

func TestDeleteRecoversMissingCollection(t *testing.T) {
	var calls counter
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chat_transcripts":
			calls.mu.Lock()
			calls.created++
			calls.mu.Unlock()
			fmt.Fprint(w, `{"result":true,"status":"ok","time":0}`)
		case r.URL.Path == "/collections/chat_transcripts/points/delete":
			calls.mu.Lock()
			calls.deletes++
			n := calls.deletes
			calls.mu.Unlock()
			if n == 1 {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, missingCollectionBody)
				return
			}
			fmt.Fprint(w, `{"result":{"operation_id":2,"status":"completed"},"status":"ok","time":0}`)
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	s := newTestStore(server.URL)
	if err := s.Delete(context.Background(), "r1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if calls.created != 1 || calls.deletes != 2 {
		t.Fatalf("expected 1 create and 2 deletes, got %d and %d", calls.created, calls.deletes)
	}
}

func TestStoreUnavailableAfterRecreate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/chat_transcripts" {
			fmt.Fprint(w, `{"result":true,"status":"ok","time":0}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, missingCollectionBody)
	}))
	defer server.Close()

	s := newTestStore(server.URL)
	_, err := s.Find(context.Background(), "s1")
	var storeErr *domain.StoreUnavailableError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreUnavailableError, got %v", err)
	}
}

func TestOtherErrorsPropagate(t *testing.T) {
	var calls counter
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/chat_transcripts" {
			calls.mu.Lock()
			calls.created++
			calls.mu.Unlock()
			fmt.Fprint(w, `{"result":true,"status":"ok","time":0}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"status":{"error":"service internal error"},"time":0}`)
	}))
	defer server.Close()

	s := newTestStore(server.URL)
	_, err := s.Find(context.Background(), "s1")
	if err == nil {
		t.Fatalf("expected error")
	}
	var storeErr *domain.StoreUnavailableError
	if errors.As(err, &storeErr) {
		t.Fatalf("unexpected StoreUnavailableError for non-missing failure: %v", err)
	}
	if calls.created != 0 {
		t.Fatalf("recreate attempted for non-missing failure")
	}
}

func TestListAllPaginates(t *testing.T) {
	var calls counter
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/chat_transcripts/points/scroll" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode scroll body: %v", err)
		}
		calls.mu.Lock()
		calls.scrolls++
		n := calls.scrolls
		calls.mu.Unlock()
		if n == 1 {
			if _, ok := body["offset"]; ok {
				t.Fatalf("unexpected offset on first page")
			}
			fmt.Fprint(w, `{"result":{"points":[{"id":"r1","payload":{"session_id":"s1","title":"a"}},{"id":"r2","payload":{"session_id":"s2","title":"b"}}],"next_page_offset":"r3"},"status":"ok","time":0}`)
			return
		}
		if body["offset"] != "r3" {
			t.Fatalf("expected offset r3, got %v", body["offset"])
		}
		fmt.Fprint(w, `{"result":{"points":[{"id":"r3","payload":{"session_id":"s3","title":"c"}}],"next_page_offset":null},"status":"ok","time":0}`)
	}))
	defer server.Close()

	s := newTestStore(server.URL)
	recs, err := s.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if calls.scrolls != 2 {
		t.Fatalf("expected 2 scroll calls, got %d", calls.scrolls)
	}
}

func TestEmbedTextPicksLatestExchange(t *testing.T) {
	payload := domain.RecordPayload{
		Title: "T",
		Messages: []domain.Message{
			{Sender: domain.SenderUser, Content: "old"},
			{Sender: domain.SenderAI, Content: "older reply"},
			{Sender: domain.SenderUser, Content: "hi"},
			{Sender: domain.SenderAI, Content: "hello there"},
		},
	}
	got := embedText(payload)
	if got != "hi\nhello there" {
		t.Fatalf("unexpected embed text: %q", got)
	}
	if embedText(domain.RecordPayload{Title: "only title"}) != "only title" {
		t.Fatalf("expected title fallback")
	}
	if !strings.Contains(embedText(domain.RecordPayload{Messages: []domain.Message{{Content: "solo"}}}), "solo") {
		t.Fatalf("expected single message content")
	}
}
