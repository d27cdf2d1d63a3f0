package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const DefaultHeartbeat = 15 * time.Second

// Stream writes c's events to w until ctx ends or c is closed. A comment
// line is written every heartbeat so proxies keep the connection open.
func Stream(ctx context.Context, w http.ResponseWriter, c *Conn, heartbeat time.Duration) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported by %T", w)
	}
	// The server's write timeout is meant for ordinary requests.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		for _, ev := range c.drain() {
			if err := writeEvent(w, ev); err != nil {
				return err
			}
		}
		flusher.Flush()

		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case <-c.ready:
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return err
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, ev Event) error {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		slog.Warn("sse: dropping unencodable event", "type", ev.Type, "err", err)
		return nil
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
	return err
}
