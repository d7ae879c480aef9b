package handlers

import (
	"strconv"

	"github.com/go-telegram/bot/models"
)

// Callback data
const (
	AcceptRequest = "accept_request:" // accept_request:request_id
	RejectRequest = "reject_request:" // reject_request:request_id
)

// KeyboardBuilder упрощает создание inline клавиатур
type KeyboardBuilder struct {
	rows [][]models.InlineKeyboardButton
}

func NewKeyboard() *KeyboardBuilder {
	return &KeyboardBuilder{}
}

// Row добавляет новый ряд кнопок
func (k *KeyboardBuilder) Row(buttons ...models.InlineKeyboardButton) *KeyboardBuilder {
	if len(buttons) > 0 {
		k.rows = append(k.rows, buttons)
	}
	return k
}

func (k *KeyboardBuilder) Build() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: k.rows}
}

func Button(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// DecisionKeyboard кнопки Принять/Отклонить для заявки
func DecisionKeyboard(requestID int64) *models.InlineKeyboardMarkup {
	id := strconv.FormatInt(requestID, 10)
	return NewKeyboard().
		Row(
			Button("✅ Принять", AcceptRequest+id),
			Button("❌ Отклонить", RejectRequest+id),
		).
		Build()
}
