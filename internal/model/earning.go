package model

import "time"

type EarningStatus string

const (
	EarningStatusPending   EarningStatus = "pending"
	EarningStatusConfirmed EarningStatus = "confirmed"
	EarningStatusReverted  EarningStatus = "reverted"
)

// EarningRecord обязательство выплаты преподавателю за занятие
type EarningRecord struct {
	ID          int64         `json:"id"`
	ProviderID  int64         `json:"provider_id"`
	SessionID   int64         `json:"session_id"`
	Amount      int64         `json:"amount"`
	Status      EarningStatus `json:"status"`
	ReleaseDate *time.Time    `json:"release_date,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}
