package model

// User учётная запись ведёт внешний сервис профилей, здесь только то, что нужно для уведомлений
type User struct {
	ID         int64  `json:"id"`
	TelegramID *int64 `json:"telegram_id,omitempty"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	IsProvider bool   `json:"is_provider"`
}
