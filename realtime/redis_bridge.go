package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const BridgeChannel = "campus_flow:events"

// RedisBridge relays hub messages between API instances over Redis pub/sub
type RedisBridge struct {
	client *redis.Client
	hub    *Hub
	logger zerolog.Logger
	// ForwardChanges also relays change events; off when every instance runs its own LISTEN
	ForwardChanges bool
}

func NewRedisBridge(client *redis.Client, hub *Hub, logger zerolog.Logger) *RedisBridge {
	return &RedisBridge{client: client, hub: hub, logger: logger}
}

// ShouldForward reports whether a local message is relayed to other instances
func (b *RedisBridge) ShouldForward(msg Message) bool {
	if msg.Origin != b.hub.InstanceID() {
		return false
	}
	if msg.Kind == KindChange {
		return b.ForwardChanges
	}
	return true
}

// Start registers the outbound sink and consumes the channel until ctx is done
func (b *RedisBridge) Start(ctx context.Context) {
	b.hub.AddSink(func(msg Message) {
		if !b.ShouldForward(msg) {
			return
		}
		data, err := json.Marshal(msg)
		if err != nil {
			b.logger.Error().Err(err).Msg("failed to encode bridged message")
			return
		}
		if err := b.client.Publish(ctx, BridgeChannel, data).Err(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to publish bridged message")
		}
	})

	pubsub := b.client.Subscribe(ctx, BridgeChannel)
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				b.handle([]byte(m.Payload))
			}
		}
	}()
}

func (b *RedisBridge) handle(payload []byte) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.logger.Warn().Err(err).Msg("ignoring malformed bridged message")
		return
	}
	b.hub.Deliver(msg)
}
