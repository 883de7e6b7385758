package api

import (
	"github.com/zhenyu92/memchat/llm"
	"github.com/zhenyu92/memchat/memory"
	"github.com/zhenyu92/memchat/relay"
	"github.com/zhenyu92/memchat/tests/helpers"
)

func newTestHandler() (*Handler, *memory.Directory, *helpers.MemoryRecordStore, *llm.MockClient) {
	st := helpers.NewMemoryRecordStore()
	client := llm.NewMockClient()
	dir := memory.NewDirectory(st)
	titler := memory.NewTitleInferencer(client, "gpt-4o-mini")
	tlog := memory.NewTranscriptLog(st, dir, titler)
	rly := relay.New(tlog, dir, client, "gpt-4o-mini", "You are a helpful assistant.")
	return NewHandler(dir, tlog, rly), dir, st, client
}
