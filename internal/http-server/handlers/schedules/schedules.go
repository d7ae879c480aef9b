package schedules

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/http-server/dto"
	mw "github.com/Freeeeeet/booking_engine/internal/http-server/middleware"
	"github.com/Freeeeeet/booking_engine/internal/http-server/response"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/pricing"
	"github.com/Freeeeeet/booking_engine/internal/service"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

type ScheduleManager interface {
	Create(ctx context.Context, in service.CreateRecurringInput) ([]*model.RecurringSchedule, int, error)
	ListForProvider(ctx context.Context, providerID int64) ([]*model.RecurringSchedule, error)
	Deactivate(ctx context.Context, providerID, scheduleID int64) (*model.RecurringSchedule, error)
}

type Schedule struct {
	ID        int64  `json:"id"`
	GroupID   string `json:"group_id"`
	Weekday   int    `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Capacity  int    `json:"capacity"`
	BaseRate  string `json:"base_rate"`
	IsActive  bool   `json:"is_active"`
}

func newSchedule(s *model.RecurringSchedule) Schedule {
	return Schedule{
		ID:        s.ID,
		GroupID:   s.GroupID.String(),
		Weekday:   int(s.Weekday),
		StartTime: dto.FormatClock(s.StartTime),
		EndTime:   dto.FormatClock(s.EndTime),
		Capacity:  s.Capacity,
		BaseRate:  pricing.FormatAmount(s.BaseRate),
		IsActive:  s.IsActive,
	}
}

func newSchedules(list []*model.RecurringSchedule) []Schedule {
	out := make([]Schedule, 0, len(list))
	for _, s := range list {
		out = append(out, newSchedule(s))
	}
	return out
}

type CreateRequest struct {
	Weekdays  []int  `json:"weekdays"` // 0 = воскресенье
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Capacity  int    `json:"capacity"`
	BaseRate  string `json:"base_rate"`
}

type ListResponse struct {
	response.Response
	Schedules    []Schedule `json:"schedules"`
	SlotsCreated int        `json:"slots_created,omitempty"`
}

type ScheduleResponse struct {
	response.Response
	Schedule *Schedule `json:"schedule,omitempty"`
}

func (req CreateRequest) input(providerID int64) (service.CreateRecurringInput, error) {
	start, err := dto.ParseClock(req.StartTime)
	if err != nil {
		return service.CreateRecurringInput{}, fmt.Errorf("%w: start_time must be HH:MM", service.ErrInvalidInput)
	}
	end, err := dto.ParseClock(req.EndTime)
	if err != nil {
		return service.CreateRecurringInput{}, fmt.Errorf("%w: end_time must be HH:MM", service.ErrInvalidInput)
	}
	rate, err := pricing.ParseAmount(req.BaseRate)
	if err != nil {
		return service.CreateRecurringInput{}, fmt.Errorf("%w: base_rate: %v", service.ErrInvalidInput, err)
	}

	weekdays := make([]time.Weekday, 0, len(req.Weekdays))
	for _, d := range req.Weekdays {
		weekdays = append(weekdays, time.Weekday(d))
	}

	capacity := req.Capacity
	if capacity == 0 {
		capacity = 1
	}

	return service.CreateRecurringInput{
		ProviderID: providerID,
		Weekdays:   weekdays,
		StartTime:  start,
		EndTime:    end,
		Capacity:   capacity,
		BaseRate:   rate,
	}, nil
}

// NewCreate POST /recurring-schedules
func NewCreate(log *zap.Logger, manager ScheduleManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.schedules.NewCreate"

		log := log.With(
			zap.String("op", op),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req CreateRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Info("Failed to decode request body", zap.Error(err))
			response.WriteBadRequest(w, r, "failed to decode request")
			return
		}

		in, err := req.input(mw.ActorID(r.Context()))
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}

		created, slots, err := manager.Create(r.Context(), in)
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, ListResponse{Schedules: newSchedules(created), SlotsCreated: slots})
	}
}

// NewList GET /providers/{id}/recurring-schedules
func NewList(log *zap.Logger, manager ScheduleManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.schedules.NewList"

		log := log.With(
			zap.String("op", op),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)

		providerID, ok := mw.PathID(r, "id")
		if !ok {
			response.WriteBadRequest(w, r, "invalid provider id")
			return
		}
		if providerID != mw.ActorID(r.Context()) {
			response.WriteError(w, r, log, service.ErrForbidden)
			return
		}

		list, err := manager.ListForProvider(r.Context(), providerID)
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}

		render.JSON(w, r, ListResponse{Schedules: newSchedules(list)})
	}
}

// NewDeactivate POST /recurring-schedules/{id}/deactivate
func NewDeactivate(log *zap.Logger, manager ScheduleManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.schedules.NewDeactivate"

		log := log.With(
			zap.String("op", op),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, ok := mw.PathID(r, "id")
		if !ok {
			response.WriteBadRequest(w, r, "invalid schedule id")
			return
		}

		schedule, err := manager.Deactivate(r.Context(), mw.ActorID(r.Context()), id)
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}

		out := newSchedule(schedule)
		render.JSON(w, r, ScheduleResponse{Schedule: &out})
	}
}
