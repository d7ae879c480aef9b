package gateway

import (
	"context"
	"errors"
)

var (
	// ErrDisabled шлюз не настроен
	ErrDisabled = errors.New("payment gateway is not configured")
	// ErrInvalidRequest запрос или событие отклонены окончательно; повтор не поможет
	ErrInvalidRequest = errors.New("invalid gateway request")
)

// Статусы заказа в терминах движка; остальное сопоставляет адаптер
const (
	StatusPaid    = "paid"
	StatusFailed  = "failed"
	StatusPending = "pending"
)

type PayerInfo struct {
	UserID int64
	// Token карта (tokn_...) или источник (src_...), созданный на клиенте
	Token string
}

type OrderRequest struct {
	BookingRequestID int64
	Amount           int64
	Currency         string
	Description      string
	Payer            PayerInfo
	ReturnURL        string
	// NotifyURL адрес webhook для шлюзов, принимающих его в заказе.
	// Omise берёт адрес из настроек аккаунта и поле не читает.
	NotifyURL string
}

// Order созданный во внешнем шлюзе заказ
type Order struct {
	ID           string
	SessionToken string
	// Status начальный статус; карта может быть списана сразу
	Status string
}

// WebhookEvent проверенное входящее событие
type WebhookEvent struct {
	OrderID string
	Status  string
}

// Gateway внешний платёжный шлюз
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	GetOrderStatus(ctx context.Context, orderID string) (string, error)
	// ParseWebhook возвращает nil, nil для событий, которые не касаются заказов
	ParseWebhook(ctx context.Context, payload []byte) (*WebhookEvent, error)
}

// Disabled шлюз-заглушка, когда ключи не заданы
type Disabled struct{}

func (Disabled) CreateOrder(context.Context, OrderRequest) (*Order, error) {
	return nil, ErrDisabled
}

func (Disabled) GetOrderStatus(context.Context, string) (string, error) {
	return "", ErrDisabled
}

func (Disabled) ParseWebhook(context.Context, []byte) (*WebhookEvent, error) {
	return nil, ErrDisabled
}
