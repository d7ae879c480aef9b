package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/pricing"
	"github.com/Freeeeeet/booking_engine/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// sendError отправляет сообщение об ошибке и логирует если не удалось
func (h *Handlers) sendError(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	h.sendMessage(ctx, b, chatID, text, nil)
}

// sendMessage отправляет сообщение и логирует если не удалось
func (h *Handlers) sendMessage(ctx context.Context, b *bot.Bot, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	if _, err := b.SendMessage(ctx, params); err != nil {
		h.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

// answerCallback отвечает на callback query; alert показывает всплывающее окно
func (h *Handlers) answerCallback(ctx context.Context, b *bot.Bot, callbackID, text string, alert bool) {
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
	if err != nil {
		h.logger.Warn("Failed to answer callback", zap.Error(err))
	}
}

// ParseIDFromCallback "accept_request:123" -> 123
func ParseIDFromCallback(data string) (int64, error) {
	_, raw, ok := strings.Cut(data, ":")
	if !ok {
		return 0, fmt.Errorf("invalid callback data format")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id in callback data %q", data)
	}
	return id, nil
}

// ParseCommandID id из команды вида "/startsession 42"
func ParseCommandID(text string) (int64, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return 0, fmt.Errorf("expected one argument")
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", fields[1])
	}
	return id, nil
}

// ErrorMessage возвращает пользовательское сообщение для ошибки
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return "❌ Не найдено"
	case errors.Is(err, service.ErrForbidden):
		return "❌ Нет доступа"
	case errors.Is(err, service.ErrPaymentNotConfirmed):
		return "❌ Оплата ещё не подтверждена"
	case errors.Is(err, service.ErrSlotUnavailable):
		return "❌ Слот уже занят"
	case errors.Is(err, service.ErrInvalidTransition):
		return "❌ Заявка или занятие уже в другом статусе"
	case errors.Is(err, service.ErrOutsideStartWindow):
		return "⏰ Занятие можно начать не раньше чем за 15 минут до начала"
	default:
		return "❌ Произошла ошибка"
	}
}

// timeLayout формат времени в сообщениях бота
const timeLayout = "02.01.2006 15:04"

// FormatTime время в часовом поясе платформы
func FormatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(timeLayout)
}

// FormatRequest карточка заявки для списка /pending
func FormatRequest(req *model.BookingRequest, loc *time.Location) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "📌 Заявка #%d\n", req.ID)
	if req.Title != "" {
		fmt.Fprintf(&sb, "📚 %s\n", req.Title)
	}
	if req.ProposedStart != nil {
		fmt.Fprintf(&sb, "📅 %s", FormatTime(*req.ProposedStart, loc))
		if req.ProposedDuration > 0 {
			fmt.Fprintf(&sb, " (%d мин)", req.ProposedDuration)
		}
		sb.WriteString("\n")
	}
	if req.Message != "" {
		fmt.Fprintf(&sb, "💬 %s\n", req.Message)
	}
	fmt.Fprintf(&sb, "💰 К выплате: %s", pricing.FormatAmount(req.AmountPayable))

	return sb.String()
}
