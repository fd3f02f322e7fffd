// Package feed relays board events between server instances over Redis
// pub/sub. Every instance publishes its service events on one channel and
// delivers whatever it receives, its own events included, to the local hub.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abrezinsky/slotboard/internal/logger"
	"github.com/abrezinsky/slotboard/internal/services"
)

// Channel is the Redis channel board events are published on.
const Channel = "slotboard:events"

const publishTimeout = 5 * time.Second

// ErrStarted is returned when Start is called twice.
var ErrStarted = errors.New("feed already started")

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Redis publishes events to Redis and relays received events to a local
// broadcaster. It implements services.Broadcaster.
type Redis struct {
	log     logger.Logger
	client  *redis.Client
	local   services.Broadcaster
	channel string

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// Dial connects to the Redis server named by url. Both redis:// URLs and
// bare host:port addresses are accepted.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.Contains(url, "://") {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: url}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// New creates a feed over client that delivers received events to local.
func New(log logger.Logger, client *redis.Client, local services.Broadcaster) *Redis {
	return &Redis{
		log:     log,
		client:  client,
		local:   local,
		channel: Channel,
	}
}

// Start subscribes to the channel and relays messages until ctx is
// cancelled or Close is called. The subscription is confirmed before Start
// returns.
func (f *Redis) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pubsub != nil {
		return ErrStarted
	}

	pubsub := f.client.Subscribe(ctx, f.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", f.channel, err)
	}
	f.pubsub = pubsub
	f.done = make(chan struct{})

	go f.relay(ctx, pubsub.Channel(), f.done)
	f.log.Info("Change feed subscribed", "channel", f.channel)
	return nil
}

func (f *Redis) relay(ctx context.Context, ch <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				f.log.Warn("Dropping malformed feed message", "error", err)
				continue
			}
			f.local.BroadcastMessage(env.Type, env.Payload)
		}
	}
}

// BroadcastMessage publishes an event for every instance. When Redis is
// unreachable the event is delivered locally so this instance's subscribers
// still see it.
func (f *Redis) BroadcastMessage(msgType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		f.log.Error("Failed to marshal feed payload", "type", msgType, "error", err)
		return
	}
	data, err := json.Marshal(envelope{Type: msgType, Payload: raw})
	if err != nil {
		f.log.Error("Failed to marshal feed message", "type", msgType, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		f.log.Error("Failed to publish event, delivering locally", "type", msgType, "error", err)
		f.local.BroadcastMessage(msgType, json.RawMessage(raw))
	}
}

// Close stops relaying. The Redis client itself is left open.
func (f *Redis) Close() error {
	f.mu.Lock()
	pubsub, done := f.pubsub, f.done
	f.pubsub = nil
	f.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}

// Discard drops every event. Processes that only publish, such as the
// operator CLI, use it as the local side of a feed they never start.
var Discard services.Broadcaster = discard{}

type discard struct{}

func (discard) BroadcastMessage(string, interface{}) {}

var _ services.Broadcaster = (*Redis)(nil)
