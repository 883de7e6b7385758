package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type askRequest struct {
	Message string `json:"message"`
}

// Ask handles a blocking ask: the full reply is generated, appended to
// the transcript, and returned as the persisted assistant message.
// POST /chats/:chat_id/ask
func (h *Handler) Ask(c echo.Context) error {
	ctx := c.Request().Context()
	chatID := c.Param("chat_id")

	var req askRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message is required"})
	}

	msg, err := h.relay.Reply(ctx, chatID, req.Message)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, msg)
}
