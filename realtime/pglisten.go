package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// notifyPayload is the JSON body produced by the campus_flow_notify_change trigger
type notifyPayload struct {
	Table  string `json:"table"`
	Type   string `json:"type"`
	ID     uint   `json:"id"`
	UserID uint   `json:"user_id"`
}

// ParseNotification turns a trigger payload into a ChangeEvent
func ParseNotification(payload string) (ChangeEvent, error) {
	var p notifyPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return ChangeEvent{}, fmt.Errorf("invalid change payload: %w", err)
	}
	if p.Table == "" {
		return ChangeEvent{}, fmt.Errorf("invalid change payload: missing table")
	}

	t := EventType(strings.ToUpper(p.Type))
	switch t {
	case EventInsert, EventUpdate, EventDelete:
	default:
		return ChangeEvent{}, fmt.Errorf("invalid change payload: unknown type %q", p.Type)
	}

	return ChangeEvent{Table: p.Table, Type: t, RowID: p.ID, UserID: p.UserID}, nil
}

// Listener republishes Postgres NOTIFY events on the hub
type Listener struct {
	dsn     string
	channel string
	hub     *Hub
	logger  zerolog.Logger
}

func NewListener(dsn, channel string, hub *Hub, logger zerolog.Logger) *Listener {
	return &Listener{dsn: dsn, channel: channel, hub: hub, logger: logger}
}

// Run blocks until ctx is cancelled. lib/pq reconnects on its own; after a
// reconnect every table is invalidated because notifications may have been lost.
func (l *Listener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			l.logger.Warn().Err(err).Msg("change feed listener disconnected")
		case pq.ListenerEventReconnected:
			l.logger.Info().Msg("change feed listener reconnected")
		}
	})
	defer listener.Close()

	if err := listener.Listen(l.channel); err != nil {
		return fmt.Errorf("failed to LISTEN %s: %w", l.channel, err)
	}
	l.logger.Info().Str("channel", l.channel).Msg("listening for database changes")

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if n == nil {
				l.invalidateAll()
				continue
			}
			ev, err := ParseNotification(n.Extra)
			if err != nil {
				l.logger.Warn().Err(err).Str("payload", n.Extra).Msg("ignoring change notification")
				continue
			}
			l.hub.PublishDatabaseChange(ev)
		case <-ping.C:
			if err := listener.Ping(); err != nil {
				l.logger.Warn().Err(err).Msg("change feed ping failed")
			}
		}
	}
}

func (l *Listener) invalidateAll() {
	for _, table := range []string{"resources", "profiles"} {
		l.hub.PublishDatabaseChange(ChangeEvent{Table: table, Type: EventUpdate})
	}
}
