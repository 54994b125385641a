// handlers/stream_routes.go
package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agency-gamification/logger"
	"agency-gamification/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const streamKeepAlive = 15 * time.Second

func parseTopics(raw string) []string {
	var topics []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// SetupStreamRoutes exposes change notifications over SSE and WebSocket.
// Clients pick topics with ?topics=leaderboard,activity (all when absent).
func SetupStreamRoutes(router fiber.Router, n *services.Notifier) {
	log := logger.For(logger.TypeRealtime)

	router.Get("/gamification/changes/stream", func(c *fiber.Ctx) error {
		topics := parseTopics(c.Query("topics"))

		// SSE headers
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no") // nginx

		events, cancel := n.Subscribe(topics, 32)
		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer cancel()
			ticker := time.NewTicker(streamKeepAlive)
			defer ticker.Stop()

			w.WriteString(":\n\n")
			if err := w.Flush(); err != nil {
				return
			}
			for {
				select {
				case ev, ok := <-events:
					if !ok {
						return
					}
					payload, _ := json.Marshal(ev)
					fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Topic, payload)
				case <-ticker.C:
					w.WriteString(":\n\n")
				}
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}
			}
		})
		return nil
	})

	router.Use("/gamification/changes/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("topics", parseTopics(c.Query("topics")))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/gamification/changes/ws", websocket.New(func(conn *websocket.Conn) {
		topics, _ := conn.Locals("topics").([]string)
		events, cancel := n.Subscribe(topics, 32)
		defer cancel()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(streamKeepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-closed:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := conn.WriteJSON(ev); err != nil {
					log.Debug("websocket write failed", slog.Any("error", err))
					return
				}
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}))
}
