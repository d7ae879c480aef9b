package handlers

import (
	"context"
	"errors"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/service"
	"github.com/go-telegram/bot"
	"go.uber.org/zap"
)

// requireProvider проверяет что отправитель - преподаватель.
// При отказе сам отвечает в чат.
func (h *Handlers) requireProvider(ctx context.Context, b *bot.Bot, telegramID, chatID int64) (*model.User, bool) {
	user, err := h.users.ProviderByTelegram(ctx, telegramID)
	switch {
	case err == nil:
		return user, true
	case errors.Is(err, service.ErrNotFound):
		h.sendError(ctx, b, chatID, "❌ Аккаунт Telegram не привязан к профилю.")
	case errors.Is(err, service.ErrForbidden):
		h.sendError(ctx, b, chatID, "❌ Эта команда доступна только преподавателям.")
	default:
		h.logger.Error("Failed to get user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		h.sendError(ctx, b, chatID, "❌ Произошла ошибка. Попробуйте позже.")
	}
	return nil, false
}
