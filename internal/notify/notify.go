package notify

import (
	"context"

	"go.uber.org/zap"

	"giftcards/internal/logger"
	"giftcards/internal/model"
)

// EmailType selects the template a notification is rendered with.
type EmailType string

const (
	EmailReceipt          EmailType = "receipt"
	EmailGiftNotification EmailType = "gift_notification"
	EmailRecovery         EmailType = "recovery"
)

// Message is one cards email.
type Message struct {
	Type    EmailType
	To      string
	Cards   []model.Card
	Context map[string]string
}

// Sender delivers cards emails.
type Sender interface {
	SendCardsEmail(ctx context.Context, msg Message) error
}

// Notifier accepts messages for best-effort delivery. Notify never fails the
// caller.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// LogSender writes messages to the application log instead of mailing them.
type LogSender struct{}

// SendCardsEmail logs msg.
func (LogSender) SendCardsEmail(ctx context.Context, msg Message) error {
	codes := make([]string, 0, len(msg.Cards))
	for _, c := range msg.Cards {
		codes = append(codes, c.Code)
	}
	logger.Info("Cards email",
		zap.String("type", string(msg.Type)),
		zap.String("to", msg.To),
		zap.Strings("codes", codes),
		zap.Any("context", msg.Context),
	)
	return nil
}
