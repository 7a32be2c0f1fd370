// Package messaging provides a NATS client wrapper for pub/sub messaging
// across Glow services. It handles connection lifecycle, subject-based
// subscriptions, and convenience methods for stream chat, gift, presence,
// and moderation channels.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns used across Glow services.
const (
	SubjectStreamChat     = "stream.chat"     // + .<stream_id>
	SubjectStreamGift     = "stream.gift"     // + .<stream_id>
	SubjectStreamPresence = "stream.presence" // + .<stream_id>
	SubjectStreamControl  = "stream.control"  // + .<stream_id> (started/ended/pinned)

	SubjectModeration       = "moderation.check"
	SubjectModerationResult = "moderation.result" // + .<session_id>

	SubjectSimEvents = "sim.events" // simulator -> stream servers
)

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "glow",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Subscribe registers a handler for the given subject and stores the
// subscription internally for later cleanup.
func (c *NATSClient) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// SubscribeToStream subscribes a session to every subject of a stream
// (chat, gifts, presence, control) with a single handler receiving the raw
// payload. Subscriptions are keyed by session ID so multiple viewers of the
// same stream on one server do not overwrite each other.
func (c *NATSClient) SubscribeToStream(streamID, sessionID string, handler func(subject string, data []byte)) error {
	subjects := []string{
		SubjectStreamChat + "." + streamID,
		SubjectStreamGift + "." + streamID,
		SubjectStreamPresence + "." + streamID,
		SubjectStreamControl + "." + streamID,
	}

	for _, subject := range subjects {
		subject := subject
		sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
			handler(subject, msg.Data)
		})
		if err != nil {
			// Roll back what was already subscribed for this session.
			_ = c.UnsubscribeFromStream(sessionID)
			return fmt.Errorf("nats subscribe %s: %w", subject, err)
		}

		c.mu.Lock()
		c.subs["streamsub:"+sessionID+":"+subject] = sub
		c.mu.Unlock()
	}
	return nil
}

// UnsubscribeFromStream drops all of a session's stream subscriptions.
func (c *NATSClient) UnsubscribeFromStream(sessionID string) error {
	prefix := "streamsub:" + sessionID + ":"

	c.mu.Lock()
	var keys []string
	for key := range c.subs {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			keys = append(keys, key)
		}
	}
	c.mu.Unlock()

	var firstErr error
	for _, key := range keys {
		if err := c.unsubscribe(key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PublishChat publishes a chat payload to the stream's chat subject.
func (c *NATSClient) PublishChat(streamID string, data []byte) error {
	return c.Publish(SubjectStreamChat+"."+streamID, data)
}

// PublishGift publishes a gift payload to the stream's gift subject.
func (c *NATSClient) PublishGift(streamID string, data []byte) error {
	return c.Publish(SubjectStreamGift+"."+streamID, data)
}

// PublishPresence publishes a viewer-count payload to the stream's presence subject.
func (c *NATSClient) PublishPresence(streamID string, data []byte) error {
	return c.Publish(SubjectStreamPresence+"."+streamID, data)
}

// PublishControl publishes a stream lifecycle payload (started, ended,
// pinned) to the stream's control subject.
func (c *NATSClient) PublishControl(streamID string, data []byte) error {
	return c.Publish(SubjectStreamControl+"."+streamID, data)
}

// PublishModerationRequest publishes a moderation check request.
func (c *NATSClient) PublishModerationRequest(data []byte) error {
	return c.Publish(SubjectModeration, data)
}

// SubscribeModerationCheck subscribes to moderation check requests.
func (c *NATSClient) SubscribeModerationCheck(handler func(data []byte)) error {
	return c.Subscribe(SubjectModeration, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishModerationResult publishes a moderation result for a specific session.
func (c *NATSClient) PublishModerationResult(sessionID string, data []byte) error {
	return c.Publish(SubjectModerationResult+"."+sessionID, data)
}

// SubscribeModerationResult subscribes to moderation results for a specific session.
func (c *NATSClient) SubscribeModerationResult(sessionID string, handler func(data []byte)) error {
	subject := SubjectModerationResult + "." + sessionID
	return c.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// UnsubscribeModerationResult unsubscribes from moderation results for a session.
func (c *NATSClient) UnsubscribeModerationResult(sessionID string) error {
	return c.unsubscribe(SubjectModerationResult + "." + sessionID)
}

// PublishSimEvent publishes a simulated activity event.
func (c *NATSClient) PublishSimEvent(data []byte) error {
	return c.Publish(SubjectSimEvents, data)
}

// SubscribeSimEvents subscribes to simulated activity events.
func (c *NATSClient) SubscribeSimEvents(handler func(data []byte)) error {
	return c.Subscribe(SubjectSimEvents, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}

// unsubscribe removes and unsubscribes from a specific subscription key.
func (c *NATSClient) unsubscribe(key string) error {
	c.mu.Lock()
	sub, ok := c.subs[key]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for %s", key)
	}
	delete(c.subs, key)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", key, err)
	}
	return nil
}
