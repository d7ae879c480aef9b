package model

import "time"

type BookingStatus string

const (
	BookingStatusDraft            BookingStatus = "draft"
	BookingStatusAwaitingPayment  BookingStatus = "awaiting_payment"
	BookingStatusAwaitingDecision BookingStatus = "awaiting_provider_decision"
	BookingStatusAccepted         BookingStatus = "accepted"
	BookingStatusRejected         BookingStatus = "rejected"
)

// IsTerminal accepted и rejected больше не меняются
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusAccepted || s == BookingStatusRejected
}

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
	PaymentStatusFailed PaymentStatus = "failed"
)

// RequestState часть заявки, меняющаяся условным UPDATE
type RequestState struct {
	Status        BookingStatus
	PaymentStatus PaymentStatus
	SlotReserved  bool
}

type BookingRequest struct {
	ID               int64         `json:"id"`
	RequesterID      int64         `json:"requester_id"`
	ProviderID       int64         `json:"provider_id"`
	SlotID           *int64        `json:"slot_id,omitempty"`
	CourseID         *int64        `json:"course_id,omitempty"`
	Title            string        `json:"title"`
	Message          string        `json:"message"`
	ProposedStart    *time.Time    `json:"proposed_start,omitempty"`
	ProposedDuration int           `json:"proposed_duration"` // в минутах
	Status           BookingStatus `json:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	SlotReserved     bool          `json:"slot_reserved"` // держит ли заявка резерв слота
	BaseRate         int64         `json:"base_rate"`
	AmountCharged    int64         `json:"amount_charged"` // сумма к оплате студентом
	AmountPayable    int64         `json:"amount_payable"` // сумма к выплате преподавателю
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// State возвращает текущее состояние для условного перехода
func (r *BookingRequest) State() RequestState {
	return RequestState{
		Status:        r.Status,
		PaymentStatus: r.PaymentStatus,
		SlotReserved:  r.SlotReserved,
	}
}

// Apply переносит новое состояние в структуру после успешного UPDATE
func (r *BookingRequest) Apply(st RequestState) {
	r.Status = st.Status
	r.PaymentStatus = st.PaymentStatus
	r.SlotReserved = st.SlotReserved
}
