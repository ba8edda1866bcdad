package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
)

// Event is one Server-Sent Event frame
type Event struct {
	// Event is the SSE event name; omitted when empty
	Event string

	// Data is written as-is for strings and []byte, JSON-encoded otherwise
	Data interface{}

	// ID lets clients resume with Last-Event-ID
	ID string

	// Retry is the reconnection delay hint in milliseconds
	Retry int
}

// Send writes an SSE event to the given writer and flushes immediately
func Send(w *bufio.Writer, event Event) error {
	if event.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", event.ID); err != nil {
			return fmt.Errorf("failed to write event ID: %w", err)
		}
	}

	if event.Retry > 0 {
		if _, err := fmt.Fprintf(w, "retry: %d\n", event.Retry); err != nil {
			return fmt.Errorf("failed to write retry: %w", err)
		}
	}

	if event.Event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event.Event); err != nil {
			return fmt.Errorf("failed to write event type: %w", err)
		}
	}

	var dataStr string
	switch v := event.Data.(type) {
	case string:
		dataStr = v
	case []byte:
		dataStr = string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal event data: %w", err)
		}
		dataStr = string(data)
	}

	// multi-line payloads need one data: line each
	for _, line := range strings.Split(dataStr, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return fmt.Errorf("failed to write event data: %w", err)
		}
	}
	if _, err := w.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to terminate event: %w", err)
	}

	return w.Flush()
}

// SendNamed is Send with only an event name and payload
func SendNamed(w *bufio.Writer, name string, data interface{}) error {
	return Send(w, Event{Event: name, Data: data})
}

// SendReady announces the stream is open, with the reconnect hint
func SendReady(w *bufio.Writer, data interface{}) error {
	return Send(w, Event{
		Event: "ready",
		Data:  data,
		Retry: 3000,
	})
}

func SendError(w *bufio.Writer, err error) error {
	return Send(w, Event{
		Event: "error",
		Data: map[string]interface{}{
			"type":    "error",
			"message": err.Error(),
		},
	})
}

// SendKeepAlive writes a comment frame so proxies don't drop idle streams
func SendKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
		return fmt.Errorf("failed to write keepalive: %w", err)
	}
	return w.Flush()
}
