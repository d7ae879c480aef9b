package model

import "time"

type SlotStatus string

const (
	SlotStatusAvailable SlotStatus = "available"
	SlotStatusBooked    SlotStatus = "booked"
	SlotStatusExpired   SlotStatus = "expired"
)

// TimeSlot окно времени, опубликованное преподавателем
type TimeSlot struct {
	ID          int64         `json:"id"`
	ProviderID  int64         `json:"provider_id"`
	Date        time.Time     `json:"date"`       // календарная дата, время 00:00
	StartTime   time.Duration `json:"start_time"` // смещение от полуночи
	EndTime     time.Duration `json:"end_time"`
	Capacity    int           `json:"capacity"` // 1 - индивидуальный, N - групповой
	BookedCount int           `json:"booked_count"`
	BaseRate    int64         `json:"base_rate"` // в копейках/центах
	Status      SlotStatus    `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

// IsGroup групповой ли слот
func (s *TimeSlot) IsGroup() bool {
	return s.Capacity > 1
}

// StartAt возвращает абсолютное время начала в заданной зоне
func (s *TimeSlot) StartAt(loc *time.Location) time.Time {
	return atClock(s.Date, s.StartTime, loc)
}

// EndAt возвращает абсолютное время окончания в заданной зоне
func (s *TimeSlot) EndAt(loc *time.Location) time.Time {
	return atClock(s.Date, s.EndTime, loc)
}

func atClock(date time.Time, offset time.Duration, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(offset)
}

// ClockOf возвращает смещение момента t от полуночи того же дня
func ClockOf(t time.Time) time.Duration {
	y, m, d := t.Date()
	return t.Sub(time.Date(y, m, d, 0, 0, 0, 0, t.Location()))
}

// DateOf обрезает время, оставляя календарную дату
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
