package slots

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

type SlotCreator interface {
	CreateSlot(ctx context.Context, in service.CreateSlotInput) (*model.TimeSlot, error)
}

type SlotLister interface {
	ListAvailable(ctx context.Context, providerID int64, now time.Time) ([]*model.TimeSlot, error)
}

type GroupStatusSetter interface {
	SetGroupStatus(ctx context.Context, providerID, slotID int64, status model.SlotStatus) (*model.TimeSlot, error)
}

type CreateRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Capacity  int    `json:"capacity"`
	BaseRate  string `json:"base_rate"`
}

type SlotResponse struct {
	response.Response
	Slot *dto.Slot `json:"slot,omitempty"`
}

type ListResponse struct {
	response.Response
	Slots []dto.Slot `json:"slots"`
}

// NewCreate POST /slots
func NewCreate(log *zap.Logger, creator SlotCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.slots.NewCreate"

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

		slot, err := creator.CreateSlot(r.Context(), in)
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}

		log.Info("Slot created", zap.Int64("slot_id", slot.ID))

		out := dto.NewSlot(slot)
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, SlotResponse{Slot: &out})
	}
}

func (req CreateRequest) input(providerID int64) (service.CreateSlotInput, error) {
	date, err := time.Parse(dto.DateLayout, req.Date)
	if err != nil {
		return service.CreateSlotInput{}, fmt.Errorf("%w: date must be YYYY-MM-DD", service.ErrInvalidInput)
	}
	start, err := dto.ParseClock(req.StartTime)
	if err != nil {
		return service.CreateSlotInput{}, fmt.Errorf("%w: start_time must be HH:MM", service.ErrInvalidInput)
	}
	end, err := dto.ParseClock(req.EndTime)
	if err != nil {
		return service.CreateSlotInput{}, fmt.Errorf("%w: end_time must be HH:MM", service.ErrInvalidInput)
	}
	rate, err := pricing.ParseAmount(req.BaseRate)
	if err != nil {
		return service.CreateSlotInput{}, fmt.Errorf("%w: base_rate: %v", service.ErrInvalidInput, err)
	}

	capacity := req.Capacity
	if capacity == 0 {
		capacity = 1
	}

	return service.CreateSlotInput{
		ProviderID: providerID,
		Date:       date,
		StartTime:  start,
		EndTime:    end,
		Capacity:   capacity,
		BaseRate:   rate,
	}, nil
}

// NewListAvailable GET /providers/{id}/slots
func NewListAvailable(log *zap.Logger, lister SlotLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.slots.NewListAvailable"

		log := log.With(
			zap.String("op", op),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)

		providerID, ok := mw.PathID(r, "id")
		if !ok {
			response.WriteBadRequest(w, r, "invalid provider id")
			return
		}

		slots, err := lister.ListAvailable(r.Context(), providerID, time.Now())
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}

		render.JSON(w, r, ListResponse{Slots: dto.NewSlots(slots)})
	}
}

type GroupStatusRequest struct {
	Status model.SlotStatus `json:"status"`
}

// NewSetGroupStatus POST /slots/{id}/group-status
func NewSetGroupStatus(log *zap.Logger, setter GroupStatusSetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.slots.NewSetGroupStatus"

		log := log.With(
			zap.String("op", op),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)

		slotID, ok := mw.PathID(r, "id")
		if !ok {
			response.WriteBadRequest(w, r, "invalid slot id")
			return
		}

		var req GroupStatusRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Info("Failed to decode request body", zap.Error(err))
			response.WriteBadRequest(w, r, "failed to decode request")
			return
		}

		slot, err := setter.SetGroupStatus(r.Context(), mw.ActorID(r.Context()), slotID, req.Status)
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}

		log.Info("Group slot status changed", zap.Int64("slot_id", slotID), zap.String("status", string(slot.Status)))

		out := dto.NewSlot(slot)
		render.JSON(w, r, SlotResponse{Slot: &out})
	}
}
