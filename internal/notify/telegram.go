package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// ChatResolver находит Telegram-чат пользователя; 0 - пользователь не привязан
type ChatResolver interface {
	ChatID(ctx context.Context, userID int64) (int64, error)
}

// TelegramNotifier отправляет уведомления в личные сообщения бота
type TelegramNotifier struct {
	bot    *bot.Bot
	chats  ChatResolver
	logger *zap.Logger
}

func NewTelegramNotifier(b *bot.Bot, chats ChatResolver, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{bot: b, chats: chats, logger: logger}
}

func (n *TelegramNotifier) Notify(ctx context.Context, msg Message) error {
	chatID, err := n.chats.ChatID(ctx, msg.Recipient)
	if err != nil {
		return fmt.Errorf("resolve chat: %w", err)
	}
	if chatID == 0 {
		n.logger.Debug("Recipient has no telegram chat", zap.Int64("recipient_id", msg.Recipient))
		return nil
	}

	_, err = n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      RenderText(msg),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// RenderText текст сообщения для события
func RenderText(msg Message) string {
	var b strings.Builder

	switch msg.Event {
	case EventRequestCreated:
		b.WriteString("📝 <b>Новая заявка</b>")
	case EventRequestPaid:
		b.WriteString("💳 <b>Заявка оплачена и ждёт решения</b>")
	case EventRequestAccepted:
		b.WriteString("✅ <b>Заявка принята</b>")
	case EventRequestRejected:
		b.WriteString("❌ <b>Заявка отклонена</b>")
	case EventPaymentFailed:
		b.WriteString("⚠️ <b>Оплата не прошла</b>")
	case EventPaymentTimeout:
		b.WriteString("⏳ <b>Не дождались подтверждения оплаты</b>\nМожно попробовать оплатить ещё раз.")
	case EventSessionScheduled:
		b.WriteString("📅 <b>Занятие запланировано</b>")
	case EventSessionStarted:
		b.WriteString("▶️ <b>Занятие началось</b>")
	case EventSessionCancelled:
		b.WriteString("🚫 <b>Занятие отменено</b>")
	default:
		b.WriteString(string(msg.Event))
	}

	if v, ok := msg.Data["title"]; ok {
		fmt.Fprintf(&b, "\n\n%s", html.EscapeString(fmt.Sprint(v)))
	}
	if v, ok := msg.Data["booking_request_id"]; ok {
		fmt.Fprintf(&b, "\nЗаявка: #%v", v)
	}
	if v, ok := msg.Data["start"]; ok {
		fmt.Fprintf(&b, "\nНачало: %v", v)
	}
	if v, ok := msg.Data["amount"]; ok {
		fmt.Fprintf(&b, "\nСумма: %v", v)
	}
	if v, ok := msg.Data["meeting_link"]; ok {
		fmt.Fprintf(&b, "\nСсылка: %v", v)
	}

	return b.String()
}
