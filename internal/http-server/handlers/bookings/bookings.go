package bookings

import (
	"context"
	"net/http"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/http-server/dto"
	mw "github.com/Freeeeeet/booking_engine/internal/http-server/middleware"
	"github.com/Freeeeeet/booking_engine/internal/http-server/response"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/service"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

type RequestCreator interface {
	Create(ctx context.Context, in service.CreateRequestInput) (*model.BookingRequest, error)
}

type RequestGetter interface {
	Get(ctx context.Context, actorID, requestID int64) (*model.BookingRequest, error)
}

type RequestSubmitter interface {
	Submit(ctx context.Context, requesterID, requestID int64) (*model.BookingRequest, error)
}

type RequestAccepter interface {
	Accept(ctx context.Context, providerID, requestID int64) (*model.Session, error)
}

type RequestRejecter interface {
	Reject(ctx context.Context, providerID, requestID int64) (*model.BookingRequest, error)
}

type PendingLister interface {
	ListPending(ctx context.Context, providerID int64) ([]*model.BookingRequest, error)
}

type CreateRequest struct {
	SlotID           *int64     `json:"slot_id,omitempty"`
	CourseID         *int64     `json:"course_id,omitempty"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	ProposedStart    *time.Time `json:"proposed_start,omitempty"`
	ProposedDuration int        `json:"proposed_duration,omitempty"`
}

type RequestResponse struct {
	response.Response
	BookingRequest *dto.BookingRequest `json:"booking_request,omitempty"`
}

type ListResponse struct {
	response.Response
	BookingRequests []dto.BookingRequest `json:"booking_requests"`
}

type SessionResponse struct {
	response.Response
	Session *dto.Session `json:"session,omitempty"`
}

func logFor(log *zap.Logger, op string, r *http.Request) *zap.Logger {
	return log.With(
		zap.String("op", op),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func writeRequest(w http.ResponseWriter, r *http.Request, req *model.BookingRequest) {
	out := dto.NewBookingRequest(req)
	render.JSON(w, r, RequestResponse{BookingRequest: &out})
}

// NewCreate POST /booking-requests
func NewCreate(log *zap.Logger, creator RequestCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logFor(log, "handlers.bookings.NewCreate", r)

		var req CreateRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Info("Failed to decode request body", zap.Error(err))
			response.WriteBadRequest(w, r, "failed to decode request")
			return
		}

		if req.SlotID == nil && req.CourseID == nil {
			response.WriteBadRequest(w, r, "slot_id or course_id is required")
			return
		}

		created, err := creator.Create(r.Context(), service.CreateRequestInput{
			RequesterID:      mw.ActorID(r.Context()),
			SlotID:           req.SlotID,
			CourseID:         req.CourseID,
			Title:            req.Title,
			Message:          req.Message,
			ProposedStart:    req.ProposedStart,
			ProposedDuration: req.ProposedDuration,
		})
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}

		log.Info("Booking request created", zap.Int64("booking_request_id", created.ID))

		render.Status(r, http.StatusCreated)
		writeRequest(w, r, created)
	}
}

// NewGet GET /booking-requests/{id}
func NewGet(log *zap.Logger, getter RequestGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logFor(log, "handlers.bookings.NewGet", r)

		id, ok := mw.PathID(r, "id")
		if !ok {
			response.WriteBadRequest(w, r, "invalid booking request id")
			return
		}

		req, err := getter.Get(r.Context(), mw.ActorID(r.Context()), id)
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}

		writeRequest(w, r, req)
	}
}

// NewSubmit POST /booking-requests/{id}/submit
func NewSubmit(log *zap.Logger, submitter RequestSubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logFor(log, "handlers.bookings.NewSubmit", r)

		id, ok := mw.PathID(r, "id")
		if !ok {
			response.WriteBadRequest(w, r, "invalid booking request id")
			return
		}

		req, err := submitter.Submit(r.Context(), mw.ActorID(r.Context()), id)
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}

		log.Info("Booking request submitted", zap.Int64("booking_request_id", id))

		writeRequest(w, r, req)
	}
}

// NewAccept POST /booking-requests/{id}/accept
func NewAccept(log *zap.Logger, accepter RequestAccepter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logFor(log, "handlers.bookings.NewAccept", r)

		id, ok := mw.PathID(r, "id")
		if !ok {
			response.WriteBadRequest(w, r, "invalid booking request id")
			return
		}

		session, err := accepter.Accept(r.Context(), mw.ActorID(r.Context()), id)
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}

		log.Info("Booking request accepted",
			zap.Int64("booking_request_id", id),
			zap.Int64("session_id", session.ID),
		)

		out := dto.NewSession(session)
		render.JSON(w, r, SessionResponse{Session: &out})
	}
}

// NewReject POST /booking-requests/{id}/reject
func NewReject(log *zap.Logger, rejecter RequestRejecter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logFor(log, "handlers.bookings.NewReject", r)

		id, ok := mw.PathID(r, "id")
		if !ok {
			response.WriteBadRequest(w, r, "invalid booking request id")
			return
		}

		req, err := rejecter.Reject(r.Context(), mw.ActorID(r.Context()), id)
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}

		log.Info("Booking request rejected", zap.Int64("booking_request_id", id))

		writeRequest(w, r, req)
	}
}

// NewListPending GET /providers/{id}/booking-requests
func NewListPending(log *zap.Logger, lister PendingLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logFor(log, "handlers.bookings.NewListPending", r)

		providerID, ok := mw.PathID(r, "id")
		if !ok {
			response.WriteBadRequest(w, r, "invalid provider id")
			return
		}
		if providerID != mw.ActorID(r.Context()) {
			response.WriteError(w, r, log, service.ErrForbidden)
			return
		}

		reqs, err := lister.ListPending(r.Context(), providerID)
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}

		render.JSON(w, r, ListResponse{BookingRequests: dto.NewBookingRequests(reqs)})
	}
}
