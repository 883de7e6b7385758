// Package api provides HTTP handlers for the chat service.
package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/zhenyu92/memchat/memory"
	"github.com/zhenyu92/memchat/relay"
)

// Handler handles HTTP requests.
type Handler struct {
	dir      *memory.Directory
	log      *memory.TranscriptLog
	relay    *relay.Relay
	upgrader websocket.Upgrader
}

// NewHandler creates a new handler.
func NewHandler(dir *memory.Directory, tlog *memory.TranscriptLog, rly *relay.Relay) *Handler {
	return &Handler{
		dir:   dir,
		log:   tlog,
		relay: rly,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// CORS is handled at the middleware layer
				return true
			},
		},
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/chats", h.ListChats)
	e.POST("/chats", h.CreateChat)
	e.GET("/chats/:chat_id", h.GetChat)
	e.GET("/chats/:chat_id/messages", h.GetMessages)

	e.POST("/chats/:chat_id/ask", h.Ask)
	e.POST("/chats/:chat_id/ask/stream", h.AskStream)
	e.POST("/chats/:chat_id/ask/raw", h.AskRaw)
	e.GET("/chats/:chat_id/ws", h.AskWebSocket)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
