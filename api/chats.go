package api

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zhenyu92/memchat/domain"
)

type createChatRequest struct {
	Title string `json:"title"`
}

// ListChats returns all known chats, newest first.
// GET /chats
func (h *Handler) ListChats(c echo.Context) error {
	ctx := c.Request().Context()

	sessions, err := h.dir.List(ctx)
	if err != nil {
		return writeError(c, err)
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return c.JSON(http.StatusOK, sessions)
}

// CreateChat creates a new chat context and returns its metadata. The
// title is optional: when omitted it is inferred from the chat's first
// exchange.
// POST /chats
func (h *Handler) CreateChat(c echo.Context) error {
	var req createChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	sess := h.dir.Create(req.Title)
	log.Printf("Created chat %s", sess.ID)
	return c.JSON(http.StatusOK, sess)
}

// GetChat returns a chat's metadata.
// GET /chats/:chat_id
func (h *Handler) GetChat(c echo.Context) error {
	ctx := c.Request().Context()
	chatID := c.Param("chat_id")

	sess, err := h.dir.Get(ctx, chatID)
	if err != nil {
		return writeError(c, err)
	}
	if sess == nil {
		return writeError(c, domain.ErrSessionNotFound)
	}
	return c.JSON(http.StatusOK, sess)
}

// GetMessages returns a chat's full message history. A chat with no
// appends yet has an empty history.
// GET /chats/:chat_id/messages
func (h *Handler) GetMessages(c echo.Context) error {
	ctx := c.Request().Context()
	chatID := c.Param("chat_id")

	sess, err := h.dir.Get(ctx, chatID)
	if err != nil {
		return writeError(c, err)
	}
	if sess == nil {
		return writeError(c, domain.ErrSessionNotFound)
	}

	messages, err := h.log.Read(ctx, chatID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, messages)
}
