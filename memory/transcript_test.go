package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/zhenyu92/memchat/domain"
	"github.com/zhenyu92/memchat/tests/helpers"
)

type stubTitler struct {
	title string
	err   error
	calls int
}

func (s *stubTitler) Infer(ctx context.Context, userText, assistantText string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.title, nil
}

func newTestLog() (*TranscriptLog, *helpers.MemoryRecordStore, *stubTitler) {
	st := helpers.NewMemoryRecordStore()
	dir := NewDirectory(st)
	titler := &stubTitler{title: "Greeting"}
	return NewTranscriptLog(st, dir, titler), st, titler
}

func TestAppendThenRead(t *testing.T) {
	tlog, _, _ := newTestLog()
	ctx := context.Background()

	msg, err := tlog.Append(ctx, "s1", "hi", "hello there")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if msg.Sender != domain.SenderAI || msg.Content != "hello there" || msg.ID == "" {
		t.Fatalf("unexpected assistant message: %+v", msg)
	}

	history, err := tlog.Read(ctx, "s1")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Sender != domain.SenderUser || history[0].Content != "hi" {
		t.Fatalf("unexpected first message: %+v", history[0])
	}
	if history[1].Sender != domain.SenderAI || history[1].Content != "hello there" {
		t.Fatalf("unexpected second message: %+v", history[1])
	}
	if history[0].ID == history[1].ID {
		t.Fatalf("message ids not unique")
	}
}

func TestReadEmptySession(t *testing.T) {
	tlog, _, _ := newTestLog()

	history, err := tlog.Read(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if history == nil || len(history) != 0 {
		t.Fatalf("expected empty history, got %+v", history)
	}
}

func TestAppendPreservesPriorMessages(t *testing.T) {
	tlog, st, _ := newTestLog()
	ctx := context.Background()

	if _, err := tlog.Append(ctx, "s1", "hi", "hello there"); err != nil {
		t.Fatalf("first Append failed: %v", err)
	}
	if _, err := tlog.Append(ctx, "s1", "how are you", "I'm well"); err != nil {
		t.Fatalf("second Append failed: %v", err)
	}

	history, err := tlog.Read(ctx, "s1")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	want := []struct{ sender, content string }{
		{domain.SenderUser, "hi"},
		{domain.SenderAI, "hello there"},
		{domain.SenderUser, "how are you"},
		{domain.SenderAI, "I'm well"},
	}
	if len(history) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(history))
	}
	for i, w := range want {
		if history[i].Sender != w.sender || history[i].Content != w.content {
			t.Fatalf("message %d mismatch: %+v", i, history[i])
		}
	}

	if n := st.CountForSession("s1"); n != 1 {
		t.Fatalf("expected exactly 1 record, got %d", n)
	}
}

func TestTitleSetOnceAndFrozen(t *testing.T) {
	tlog, st, titler := newTestLog()
	ctx := context.Background()

	if _, err := tlog.Append(ctx, "s1", "hi", "hello there"); err != nil {
		t.Fatalf("first Append failed: %v", err)
	}
	rec, err := st.Find(ctx, "s1")
	if err != nil || rec == nil {
		t.Fatalf("Find failed: %v", err)
	}
	if rec.Payload.Title != "Greeting" {
		t.Fatalf("unexpected title: %q", rec.Payload.Title)
	}
	createdAt := rec.Payload.CreatedAt
	if createdAt == nil {
		t.Fatalf("expected created_at to be set")
	}

	titler.title = "Changed"
	if _, err := tlog.Append(ctx, "s1", "new topic entirely", "sure"); err != nil {
		t.Fatalf("second Append failed: %v", err)
	}
	rec, err = st.Find(ctx, "s1")
	if err != nil || rec == nil {
		t.Fatalf("Find failed: %v", err)
	}
	if rec.Payload.Title != "Greeting" {
		t.Fatalf("title changed after first append: %q", rec.Payload.Title)
	}
	if rec.Payload.CreatedAt == nil || !rec.Payload.CreatedAt.Equal(*createdAt) {
		t.Fatalf("created_at changed after first append")
	}
	if titler.calls != 1 {
		t.Fatalf("expected 1 inference call, got %d", titler.calls)
	}
}

func TestClientTitleSkipsInference(t *testing.T) {
	st := helpers.NewMemoryRecordStore()
	dir := NewDirectory(st)
	titler := &stubTitler{title: "Inferred"}
	tlog := NewTranscriptLog(st, dir, titler)
	ctx := context.Background()

	sess := dir.Create("My chat")
	if _, err := tlog.Append(ctx, sess.ID, "hi", "hello"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	rec, err := st.Find(ctx, sess.ID)
	if err != nil || rec == nil {
		t.Fatalf("Find failed: %v", err)
	}
	if rec.Payload.Title != "My chat" {
		t.Fatalf("expected client title, got %q", rec.Payload.Title)
	}
	if titler.calls != 0 {
		t.Fatalf("inference called despite client title")
	}
	if rec.Payload.CreatedAt == nil || !rec.Payload.CreatedAt.Equal(sess.CreatedAt) {
		t.Fatalf("created_at not taken from directory session")
	}
}

func TestTitleInferenceFailureDoesNotBlockAppend(t *testing.T) {
	st := helpers.NewMemoryRecordStore()
	dir := NewDirectory(st)
	titler := &stubTitler{err: errors.New("model offline")}
	tlog := NewTranscriptLog(st, dir, titler)
	ctx := context.Background()

	msg, err := tlog.Append(ctx, "s1", "hi", "hello")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if msg.Content != "hello" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	rec, err := st.Find(ctx, "s1")
	if err != nil || rec == nil {
		t.Fatalf("Find failed: %v", err)
	}
	if rec.Payload.Title != "" {
		t.Fatalf("expected empty title, got %q", rec.Payload.Title)
	}
}

func TestDeleteFailureDoesNotAbortAppend(t *testing.T) {
	tlog, st, _ := newTestLog()
	ctx := context.Background()

	if _, err := tlog.Append(ctx, "s1", "hi", "hello"); err != nil {
		t.Fatalf("first Append failed: %v", err)
	}

	st.DeleteErr = errors.New("delete refused")
	if _, err := tlog.Append(ctx, "s1", "again", "still here"); err != nil {
		t.Fatalf("Append failed despite best-effort delete: %v", err)
	}

	st.DeleteErr = nil
	rec, err := st.Find(ctx, "s1")
	if err != nil || rec == nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(rec.Payload.Messages) != 4 {
		t.Fatalf("expected 4 messages in newest record, got %d", len(rec.Payload.Messages))
	}
}

func TestAppendPropagatesStoreErrors(t *testing.T) {
	tlog, st, _ := newTestLog()
	ctx := context.Background()

	st.FindErr = errors.New("store down")
	if _, err := tlog.Append(ctx, "s1", "hi", "hello"); err == nil {
		t.Fatalf("expected error")
	}
	st.FindErr = nil

	st.UpsertErr = errors.New("store down")
	if _, err := tlog.Append(ctx, "s1", "hi", "hello"); err == nil {
		t.Fatalf("expected error")
	}
}
