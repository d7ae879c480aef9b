package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Event тип уведомления
type Event string

const (
	EventRequestCreated   Event = "booking_request.created"
	EventRequestPaid      Event = "booking_request.paid"
	EventRequestAccepted  Event = "booking_request.accepted"
	EventRequestRejected  Event = "booking_request.rejected"
	EventPaymentFailed    Event = "payment.failed"
	EventPaymentTimeout   Event = "payment.timeout"
	EventSessionScheduled Event = "session.scheduled"
	EventSessionStarted   Event = "session.started"
	EventSessionCancelled Event = "session.cancelled"
)

// Message уведомление одному получателю
type Message struct {
	Event     Event          `json:"event"`
	Recipient int64          `json:"recipient_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Notifier доставляет уведомления; ошибки доставки не влияют на состояние заявок
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Multi рассылает сообщение во все каналы
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier пишет уведомления в лог, когда другие каналы не настроены
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	n.logger.Info("Notification",
		zap.String("event", string(msg.Event)),
		zap.Int64("recipient_id", msg.Recipient),
		zap.Any("data", msg.Data),
	)
	return nil
}

// Send отправляет сообщения и только логирует ошибки
func Send(ctx context.Context, n Notifier, logger *zap.Logger, msgs ...Message) {
	if n == nil {
		return
	}
	for _, msg := range msgs {
		if err := n.Notify(ctx, msg); err != nil {
			logger.Warn("Failed to send notification",
				zap.String("event", string(msg.Event)),
				zap.Int64("recipient_id", msg.Recipient),
				zap.Error(err),
			)
		}
	}
}
