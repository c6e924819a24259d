package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"giftcards/internal/logger"
	"giftcards/internal/model"
)

// SubjectCardChanged carries one message per committed card write.
const SubjectCardChanged = "giftcards.card.changed"

// CardChanged describes a committed card write. Before is nil for creations.
type CardChanged struct {
	ID         uuid.UUID   `json:"id"`
	Operation  string      `json:"operation"`
	Before     *model.Card `json:"before,omitempty"`
	After      model.Card  `json:"after"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Publisher emits card change events after commit.
type Publisher interface {
	PublishCardChanged(ctx context.Context, event CardChanged) error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishCardChanged(ctx context.Context, event CardChanged) error { return nil }

// NATSPublisher publishes events on a NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher creates a publisher on conn.
func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

// Connect dials the NATS server at url and keeps reconnecting indefinitely.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("giftcards"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return conn, nil
}

// PublishCardChanged encodes event as JSON. The event ID is sent as the
// Nats-Msg-Id header so that a JetStream stream can deduplicate it.
func (p *NATSPublisher) PublishCardChanged(ctx context.Context, event CardChanged) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal card changed: %w", err)
	}

	msg := nats.NewMsg(SubjectCardChanged)
	msg.Header.Set(nats.MsgIdHdr, event.ID.String())
	msg.Data = data
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish card changed: %w", err)
	}
	return nil
}

// Decode parses a card change message body.
func Decode(data []byte) (CardChanged, error) {
	var event CardChanged
	if err := json.Unmarshal(data, &event); err != nil {
		return CardChanged{}, fmt.Errorf("unmarshal card changed: %w", err)
	}
	if event.After.ID == uuid.Nil {
		return CardChanged{}, fmt.Errorf("card changed event %s has no card", event.ID)
	}
	return event, nil
}

// Handler processes one decoded event.
type Handler func(ctx context.Context, event CardChanged) error

// Subscribe joins queue on the card change subject. Each message is handled
// by exactly one member of the queue group.
func Subscribe(ctx context.Context, conn *nats.Conn, queue string, handler Handler) (*nats.Subscription, error) {
	sub, err := conn.QueueSubscribe(SubjectCardChanged, queue, handleMsg(ctx, handler))
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", SubjectCardChanged, err)
	}
	return sub, nil
}

func handleMsg(ctx context.Context, handler Handler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		event, err := Decode(msg.Data)
		if err != nil {
			logger.Error("Dropping malformed card event", zap.Error(err))
			return
		}
		if err := handler(ctx, event); err != nil {
			logger.Error("Card event handler failed",
				zap.String("event_id", event.ID.String()),
				zap.String("card_id", event.After.ID.String()),
				zap.Error(err),
			)
		}
	}
}
