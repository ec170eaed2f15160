// Package natsjs mirrors broadcast events onto a JetStream stream, so
// consumers that are not holding a live socket still get a durable
// feed.
package natsjs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/mailmirror/mailmirror/internal/mail"
)

const streamName = "MAIL_EVENTS"

// Publisher wraps NATS JetStream for publishing mailbox change events.
type Publisher struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// NewPublisher connects to NATS and prepares a JetStream context.
func NewPublisher(url string) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	return &Publisher{nc: nc, js: js}, nil
}

// EnsureStream ensures the MAIL_EVENTS stream exists.
func (p *Publisher) EnsureStream(ctx context.Context) error {
	streamInfo, err := p.js.StreamInfo(streamName)
	if err == nil && streamInfo != nil {
		return nil
	}

	_, err = p.js.AddStream(&nats.StreamConfig{
		Name:       streamName,
		Subjects:   []string{"mail.*.>"},
		Storage:    nats.FileStorage,
		Retention:  nats.LimitsPolicy,
		Duplicates: 10 * time.Minute,
		MaxAge:     30 * 24 * time.Hour,
	})
	if err != nil {
		if err == nats.ErrStreamNameAlreadyInUse {
			return nil
		}
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// Emit publishes one broadcast event to the stream. The message id
// dedups redelivered provider notifications within the duplicate
// window. Failures are logged, never surfaced; the mirror is
// best-effort like the live socket.
func (p *Publisher) Emit(event string, payload any) {
	body, err := json.Marshal(map[string]any{
		"event_id": uuid.NewString(),
		"ts":       time.Now().Unix(),
		"event":    event,
		"data":     payload,
	})
	if err != nil {
		log.Printf("nats: marshal event %s: %v", event, err)
		return
	}

	subject := fmt.Sprintf("mail.events.%s", event)
	msgID := fmt.Sprintf("%s|%s", event, payloadKey(payload))
	if _, err := p.js.Publish(subject, body, nats.MsgId(msgID)); err != nil {
		log.Printf("nats: publish %s: %v", subject, err)
	}
}

// payloadKey extracts a stable identity from an event payload for
// deduplication.
func payloadKey(payload any) string {
	switch v := payload.(type) {
	case string:
		return v
	case mail.Message:
		return v.ProviderMessageID
	default:
		return uuid.NewString()
	}
}

// Close closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
