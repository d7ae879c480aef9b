package model

import "time"

type PaymentRecordStatus string

const (
	PaymentRecordPending PaymentRecordStatus = "pending"
	PaymentRecordPaid    PaymentRecordStatus = "paid"
	PaymentRecordFailed  PaymentRecordStatus = "failed"
)

// IsTerminal paid и failed окончательные
func (s PaymentRecordStatus) IsTerminal() bool {
	return s == PaymentRecordPaid || s == PaymentRecordFailed
}

// PaymentMethod способ оплаты: redirect - с возвратом на сайт, collect - ждём подтверждения опросом
type PaymentMethod string

const (
	PaymentMethodRedirect PaymentMethod = "redirect"
	PaymentMethodCollect  PaymentMethod = "collect"
)

// PaymentRecord заказ во внешнем платёжном шлюзе
type PaymentRecord struct {
	ID               int64               `json:"id"`
	BookingRequestID int64               `json:"booking_request_id"`
	GatewayOrderID   string              `json:"gateway_order_id"`
	SessionToken     string              `json:"session_token"`
	Method           PaymentMethod       `json:"method"`
	Amount           int64               `json:"amount"`
	Status           PaymentRecordStatus `json:"status"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// PaymentOutcome закрытый набор исходов оплаты, приходящих из шлюза
type PaymentOutcome string

const (
	OutcomePaid    PaymentOutcome = "paid"
	OutcomeFailed  PaymentOutcome = "failed"
	OutcomePending PaymentOutcome = "pending"
)

// ParseOutcome проверяет значение на границе системы
func ParseOutcome(s string) (PaymentOutcome, bool) {
	switch PaymentOutcome(s) {
	case OutcomePaid, OutcomeFailed, OutcomePending:
		return PaymentOutcome(s), true
	}
	return "", false
}

// RecordStatus статус записи платежа для окончательного исхода
func (o PaymentOutcome) RecordStatus() PaymentRecordStatus {
	switch o {
	case OutcomePaid:
		return PaymentRecordPaid
	case OutcomeFailed:
		return PaymentRecordFailed
	}
	return PaymentRecordPending
}

// IsTerminal pending не окончательный исход
func (o PaymentOutcome) IsTerminal() bool {
	return o == OutcomePaid || o == OutcomeFailed
}
