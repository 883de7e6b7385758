package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zhenyu92/memchat/domain"
	"github.com/zhenyu92/memchat/llm"
)

// writeError maps a service error to an HTTP response. Rejections from
// the completion endpoint keep their upstream detail; transport-level
// upstream failures and store failures surface as 503 and 500.
func writeError(c echo.Context, err error) error {
	var apiErr *llm.APIError
	var storeErr *domain.StoreUnavailableError

	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "chat not found"})
	case errors.As(err, &apiErr):
		log.Printf("ERROR: completion endpoint rejected request: %v", apiErr)
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": apiErr.Message,
			"type":  apiErr.Type,
		})
	case errors.Is(err, llm.ErrUpstreamUnavailable):
		log.Printf("ERROR: completion endpoint unreachable: %v", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "completion service unavailable"})
	case errors.As(err, &storeErr):
		log.Printf("ERROR: record store unavailable: %v", storeErr)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "record store unavailable"})
	default:
		log.Printf("ERROR: request failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
