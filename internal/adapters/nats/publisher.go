package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/floodroute/internal/core/domain"
)

const (
	// StreamFloodEvents retains flood store mutations.
	StreamFloodEvents = "FLOOD_EVENTS"

	SubjectFloodAdded   = "floods.added"
	SubjectFloodRemoved = "floods.removed"
	// SubjectFloodAll matches every flood event subject.
	SubjectFloodAll = "floods.>"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	now  func() time.Time
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if err := ensureStream(js); err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, js: js, now: time.Now}, nil
}

func ensureStream(js nats.JetStreamContext) error {
	cfg := nats.StreamConfig{
		Name:      StreamFloodEvents,
		Subjects:  []string{SubjectFloodAll},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}
	return nil
}

func (p *Publisher) PublishFloodAdded(ctx context.Context, flood domain.FloodLine) error {
	return p.publish(ctx, SubjectFloodAdded, domain.FloodEvent{
		Type:        domain.FloodEventAdded,
		ID:          flood.ID,
		Coordinates: flood.Coordinates,
		At:          p.now().UTC(),
	})
}

func (p *Publisher) PublishFloodRemoved(ctx context.Context, id string) error {
	return p.publish(ctx, SubjectFloodRemoved, domain.FloodEvent{
		Type: domain.FloodEventRemoved,
		ID:   id,
		At:   p.now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, subject string, event domain.FloodEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subject, data, nats.Context(ctx), nats.MsgId(event.Type+":"+event.ID))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("floodroute"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
