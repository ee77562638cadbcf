package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// sseInterval is the polling period of progress streams.
const sseInterval = 100 * time.Millisecond

// sseTimeout bounds a single progress stream.
const sseTimeout = 5 * time.Minute

func startSSE(c echo.Context) {
	h := c.Response().Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // Disable nginx buffering
	c.Response().WriteHeader(http.StatusOK)
}

func sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func sendSSEError(c echo.Context, message string) {
	sendSSEData(c, map[string]string{"error": message})
}

// streamSSE polls poll every sseInterval and sends its value until done
// reports true, the client goes away or the stream times out. poll
// returning false ends the stream with notFound.
func streamSSE[T any](c echo.Context, notFound string, poll func() (T, bool), done func(T) bool) error {
	startSSE(c)

	v, ok := poll()
	if !ok {
		sendSSEError(c, notFound)
		return nil
	}
	sendSSEData(c, v)
	if done(v) {
		return nil
	}

	ticker := time.NewTicker(sseInterval)
	defer ticker.Stop()

	timeout := time.NewTimer(sseTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil

		case <-ticker.C:
			v, ok := poll()
			if !ok {
				sendSSEError(c, notFound)
				return nil
			}
			sendSSEData(c, v)
			if done(v) {
				return nil
			}

		case <-timeout.C:
			sendSSEError(c, "stream timeout")
			return nil
		}
	}
}
