package model

import (
	"time"

	"github.com/google/uuid"
)

// RecurringSchedule шаблон еженедельного слота; по нему слоты создаются на несколько недель вперёд
type RecurringSchedule struct {
	ID         int64         `json:"id"`
	GroupID    uuid.UUID     `json:"group_id"` // общий для шаблонов, созданных одним запросом
	ProviderID int64         `json:"provider_id"`
	Weekday    time.Weekday  `json:"weekday"` // 0 = Sunday, 6 = Saturday
	StartTime  time.Duration `json:"start_time"`
	EndTime    time.Duration `json:"end_time"`
	Capacity   int           `json:"capacity"`
	BaseRate   int64         `json:"base_rate"`
	IsActive   bool          `json:"is_active"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
