package api

import (
	"context"
	"log"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/zhenyu92/memchat/relay"
)

// AskWebSocket handles asks over a websocket. The client sends
// {"message": ...} and receives the same JSON frames as the SSE
// endpoint; the connection stays open for further asks.
// GET /chats/:chat_id/ws
func (h *Handler) AskWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}
	defer ws.Close()

	chatID := c.Param("chat_id")
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	for {
		var req askRequest
		if err := ws.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return nil
		}
		if req.Message == "" {
			if err := ws.WriteJSON(relay.Fragment{Error: "message is required"}); err != nil {
				return nil
			}
			continue
		}

		fragments, err := h.relay.StreamReply(ctx, chatID, req.Message)
		if err != nil {
			if werr := ws.WriteJSON(relay.Fragment{Error: err.Error()}); werr != nil {
				return nil
			}
			continue
		}

		for fragment := range fragments {
			if err := ws.WriteJSON(fragment); err != nil {
				// Client is gone; cancelling lets the relay finish
				// persisting whatever it accumulated.
				cancel()
				return nil
			}
		}
	}
}
