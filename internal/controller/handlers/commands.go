package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const helpText = "📚 Справка по командам:\n\n" +
	"/pending - Заявки, ожидающие решения\n" +
	"/startsession <id> - Начать занятие\n" +
	"/help - Показать эту справку\n\n" +
	"Заявка попадает в список только после подтверждённой оплаты."

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	user, ok := h.requireProvider(ctx, b, update.Message.From.ID, update.Message.Chat.ID)
	if !ok {
		return
	}

	h.sendMessage(ctx, b, update.Message.Chat.ID, fmt.Sprintf("👋 Привет, %s!\n\n%s", user.FirstName, helpText), nil)
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, helpText, nil)
}

// HandlePending список оплаченных заявок с кнопками решения
func (h *Handlers) HandlePending(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	provider, ok := h.requireProvider(ctx, b, update.Message.From.ID, chatID)
	if !ok {
		return
	}

	requests, err := h.bookings.ListPending(ctx, provider.ID)
	if err != nil {
		h.logger.Error("Failed to list pending requests", zap.Int64("provider_id", provider.ID), zap.Error(err))
		h.sendError(ctx, b, chatID, ErrorMessage(err))
		return
	}

	if len(requests) == 0 {
		h.sendMessage(ctx, b, chatID, "📭 Нет заявок, ожидающих решения.", nil)
		return
	}

	for _, req := range requests {
		h.sendMessage(ctx, b, chatID, FormatRequest(req, h.loc), DecisionKeyboard(req.ID))
	}
}

// HandleStartSession обрабатывает /startsession <id>
func (h *Handlers) HandleStartSession(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	provider, ok := h.requireProvider(ctx, b, update.Message.From.ID, chatID)
	if !ok {
		return
	}

	sessionID, err := ParseCommandID(update.Message.Text)
	if err != nil {
		h.sendError(ctx, b, chatID, "❌ Укажите номер занятия: /startsession 42")
		return
	}

	session, err := h.sessions.Start(ctx, provider.ID, sessionID)
	if err != nil {
		h.logger.Info("Session start refused",
			zap.Int64("provider_id", provider.ID),
			zap.Int64("session_id", sessionID),
			zap.Error(err),
		)
		h.sendError(ctx, b, chatID, ErrorMessage(err))
		return
	}

	text := fmt.Sprintf("▶️ Занятие #%d началось", session.ID)
	if session.MeetingRef != nil {
		text += "\n🔗 " + *session.MeetingRef
	}
	h.sendMessage(ctx, b, chatID, text, nil)
}
