package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// AskStream handles a streaming ask as server-sent events. Each frame
// is a JSON object with text, done and error fields; done=true marks
// normal termination, error marks abnormal termination.
// POST /chats/:chat_id/ask/stream
func (h *Handler) AskStream(c echo.Context) error {
	ctx := c.Request().Context()
	chatID := c.Param("chat_id")

	var req askRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message is required"})
	}

	// Errors before any output are hard failures.
	fragments, err := h.relay.StreamReply(ctx, chatID, req.Message)
	if err != nil {
		return writeError(c, err)
	}

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	for fragment := range fragments {
		data, err := json.Marshal(fragment)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(c.Response().Writer, "data: %s\n\n", data); err != nil {
			// Client went away; the relay persists what it has.
			return nil
		}
		flusher.Flush()
	}
	return nil
}

// AskRaw handles a streaming ask with no framing: fragments are
// written as-is and the stream ends at EOF. An upstream failure simply
// terminates the stream.
// POST /chats/:chat_id/ask/raw
func (h *Handler) AskRaw(c echo.Context) error {
	ctx := c.Request().Context()
	chatID := c.Param("chat_id")

	var req askRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message is required"})
	}

	fragments, err := h.relay.StreamReply(ctx, chatID, req.Message)
	if err != nil {
		return writeError(c, err)
	}

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)

	for fragment := range fragments {
		if fragment.Text == "" {
			continue
		}
		if _, err := c.Response().Writer.Write([]byte(fragment.Text)); err != nil {
			return nil
		}
		flusher.Flush()
	}
	return nil
}
