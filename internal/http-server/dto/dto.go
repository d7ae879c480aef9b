package dto

import (
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/pricing"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Суммы отдаются строкой "110.00", время слота - в зоне сервиса

type Slot struct {
	ID          int64            `json:"id"`
	ProviderID  int64            `json:"provider_id"`
	Date        string           `json:"date"`
	StartTime   string           `json:"start_time"`
	EndTime     string           `json:"end_time"`
	Capacity    int              `json:"capacity"`
	BookedCount int              `json:"booked_count"`
	BaseRate    string           `json:"base_rate"`
	Status      model.SlotStatus `json:"status"`
}

func NewSlot(s *model.TimeSlot) Slot {
	return Slot{
		ID:          s.ID,
		ProviderID:  s.ProviderID,
		Date:        s.Date.Format(DateLayout),
		StartTime:   FormatClock(s.StartTime),
		EndTime:     FormatClock(s.EndTime),
		Capacity:    s.Capacity,
		BookedCount: s.BookedCount,
		BaseRate:    pricing.FormatAmount(s.BaseRate),
		Status:      s.Status,
	}
}

func NewSlots(slots []*model.TimeSlot) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		out = append(out, NewSlot(s))
	}
	return out
}

// FormatClock 10h30m -> "10:30"
func FormatClock(d time.Duration) string {
	return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Add(d).Format(ClockLayout)
}

// ParseClock "10:30" -> 10h30m
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, err
	}
	return model.ClockOf(t), nil
}

type BookingRequest struct {
	ID               int64               `json:"id"`
	RequesterID      int64               `json:"requester_id"`
	ProviderID       int64               `json:"provider_id"`
	SlotID           *int64              `json:"slot_id,omitempty"`
	CourseID         *int64              `json:"course_id,omitempty"`
	Title            string              `json:"title"`
	Message          string              `json:"message,omitempty"`
	ProposedStart    *time.Time          `json:"proposed_start,omitempty"`
	ProposedDuration int                 `json:"proposed_duration,omitempty"`
	Status           model.BookingStatus `json:"status"`
	PaymentStatus    model.PaymentStatus `json:"payment_status"`
	SlotReserved     bool                `json:"slot_reserved"`
	BaseRate         string              `json:"base_rate"`
	AmountCharged    string              `json:"amount_charged"`
	AmountPayable    string              `json:"amount_payable"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func NewBookingRequest(r *model.BookingRequest) BookingRequest {
	return BookingRequest{
		ID:               r.ID,
		RequesterID:      r.RequesterID,
		ProviderID:       r.ProviderID,
		SlotID:           r.SlotID,
		CourseID:         r.CourseID,
		Title:            r.Title,
		Message:          r.Message,
		ProposedStart:    r.ProposedStart,
		ProposedDuration: r.ProposedDuration,
		Status:           r.Status,
		PaymentStatus:    r.PaymentStatus,
		SlotReserved:     r.SlotReserved,
		BaseRate:         pricing.FormatAmount(r.BaseRate),
		AmountCharged:    pricing.FormatAmount(r.AmountCharged),
		AmountPayable:    pricing.FormatAmount(r.AmountPayable),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func NewBookingRequests(reqs []*model.BookingRequest) []BookingRequest {
	out := make([]BookingRequest, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, NewBookingRequest(r))
	}
	return out
}

type Session struct {
	ID               int64               `json:"id"`
	BookingRequestID int64               `json:"booking_request_id"`
	ProviderID       int64               `json:"provider_id"`
	SlotID           *int64              `json:"slot_id,omitempty"`
	StartTime        time.Time           `json:"start_time"`
	EndTime          time.Time           `json:"end_time"`
	Status           model.SessionStatus `json:"status"`
	MeetingLink      *string             `json:"meeting_link,omitempty"`
	BaseRate         string              `json:"base_rate"`
	PayerAmount      string              `json:"payer_amount"`
	PayeeAmount      string              `json:"payee_amount"`
	StartedAt        *time.Time          `json:"started_at,omitempty"`
	EndedAt          *time.Time          `json:"ended_at,omitempty"`
}

func NewSession(s *model.Session) Session {
	return Session{
		ID:               s.ID,
		BookingRequestID: s.BookingRequestID,
		ProviderID:       s.ProviderID,
		SlotID:           s.SlotID,
		StartTime:        s.StartTime,
		EndTime:          s.EndTime,
		Status:           s.Status,
		MeetingLink:      s.MeetingRef,
		BaseRate:         pricing.FormatAmount(s.BaseRate),
		PayerAmount:      pricing.FormatAmount(s.PayerAmount),
		PayeeAmount:      pricing.FormatAmount(s.PayeeAmount),
		StartedAt:        s.StartedAt,
		EndedAt:          s.EndedAt,
	}
}

type Earning struct {
	ID          int64               `json:"id"`
	SessionID   int64               `json:"session_id"`
	Amount      string              `json:"amount"`
	Status      model.EarningStatus `json:"status"`
	ReleaseDate *time.Time          `json:"release_date,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

func NewEarnings(records []*model.EarningRecord) []Earning {
	out := make([]Earning, 0, len(records))
	for _, e := range records {
		out = append(out, Earning{
			ID:          e.ID,
			SessionID:   e.SessionID,
			Amount:      pricing.FormatAmount(e.Amount),
			Status:      e.Status,
			ReleaseDate: e.ReleaseDate,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out
}

type PaymentOrder struct {
	BookingRequestID int64                     `json:"booking_request_id"`
	OrderID          string                    `json:"order_id"`
	SessionToken     string                    `json:"session_token,omitempty"`
	Method           model.PaymentMethod       `json:"method"`
	Amount           string                    `json:"amount"`
	Status           model.PaymentRecordStatus `json:"status"`
}

func NewPaymentOrder(p *model.PaymentRecord) PaymentOrder {
	return PaymentOrder{
		BookingRequestID: p.BookingRequestID,
		OrderID:          p.GatewayOrderID,
		SessionToken:     p.SessionToken,
		Method:           p.Method,
		Amount:           pricing.FormatAmount(p.Amount),
		Status:           p.Status,
	}
}
