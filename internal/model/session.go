package model

import "time"

type SessionStatus string

const (
	SessionStatusScheduled  SessionStatus = "scheduled"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusCancelled  SessionStatus = "cancelled"
)

// Session занятие, созданное из принятой заявки
type Session struct {
	ID               int64         `json:"id"`
	BookingRequestID int64         `json:"booking_request_id"`
	ProviderID       int64         `json:"provider_id"`
	SlotID           *int64        `json:"slot_id,omitempty"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	Status           SessionStatus `json:"status"`
	MeetingRef       *string       `json:"meeting_ref,omitempty"`

	// Снимок оплаты на момент принятия
	BaseRate    int64 `json:"base_rate"`
	PayerAmount int64 `json:"payer_amount"`
	PayeeAmount int64 `json:"payee_amount"`

	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type Attendance struct {
	SessionID   int64      `json:"session_id"`
	RequesterID int64      `json:"requester_id"`
	JoinedAt    *time.Time `json:"joined_at,omitempty"`
}
