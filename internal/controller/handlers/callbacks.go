package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// HandleCallbackQuery нажатия Принять/Отклонить под заявкой
func (h *Handlers) HandleCallbackQuery(ctx context.Context, b *bot.Bot, update *models.Update) {
	callback := update.CallbackQuery
	if callback == nil {
		return
	}

	msg := callback.Message.Message
	if msg == nil {
		h.answerCallback(ctx, b, callback.ID, "❌ Сообщение устарело", true)
		return
	}

	data := callback.Data
	if !strings.HasPrefix(data, AcceptRequest) && !strings.HasPrefix(data, RejectRequest) {
		h.logger.Warn("Unknown callback", zap.String("data", data))
		h.answerCallback(ctx, b, callback.ID, "", false)
		return
	}

	requestID, err := ParseIDFromCallback(data)
	if err != nil {
		h.logger.Error("Failed to parse callback", zap.String("data", data), zap.Error(err))
		h.answerCallback(ctx, b, callback.ID, "❌ Неверный формат", true)
		return
	}

	provider, ok := h.requireProvider(ctx, b, callback.From.ID, msg.Chat.ID)
	if !ok {
		h.answerCallback(ctx, b, callback.ID, "", false)
		return
	}

	var result string
	if strings.HasPrefix(data, AcceptRequest) {
		session, err := h.bookings.Accept(ctx, provider.ID, requestID)
		if err != nil {
			h.logger.Info("Accept refused", zap.Int64("booking_request_id", requestID), zap.Error(err))
			h.answerCallback(ctx, b, callback.ID, ErrorMessage(err), true)
			return
		}
		result = fmt.Sprintf("✅ Заявка #%d принята, занятие #%d запланировано на %s",
			requestID, session.ID, FormatTime(session.StartTime, h.loc))
	} else {
		if _, err := h.bookings.Reject(ctx, provider.ID, requestID); err != nil {
			h.logger.Info("Reject refused", zap.Int64("booking_request_id", requestID), zap.Error(err))
			h.answerCallback(ctx, b, callback.ID, ErrorMessage(err), true)
			return
		}
		result = fmt.Sprintf("❌ Заявка #%d отклонена", requestID)
	}

	h.answerCallback(ctx, b, callback.ID, "", false)

	_, err = b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      result,
	})
	if err != nil {
		h.logger.Warn("Failed to edit decision message", zap.Error(err))
	}
}
