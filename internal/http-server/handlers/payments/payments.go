package payments

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Freeeeeet/booking_engine/internal/http-server/dto"
	mw "github.com/Freeeeeet/booking_engine/internal/http-server/middleware"
	"github.com/Freeeeeet/booking_engine/internal/http-server/response"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/service"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

// maxWebhookBody предел тела webhook
const maxWebhookBody = 1 << 20

type OrderCreator interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (*model.PaymentRecord, error)
}

type ReturnHandler interface {
	HandleReturn(ctx context.Context, requestID int64) (*model.BookingRequest, error)
}

type WebhookHandler interface {
	HandleWebhook(ctx context.Context, payload []byte) error
}

type CreateOrderRequest struct {
	Method     model.PaymentMethod `json:"method"`
	PayerToken string              `json:"payer_token"`
}

type OrderResponse struct {
	response.Response
	Order *dto.PaymentOrder `json:"order,omitempty"`
}

// ReturnResponse маршрут публичный, поэтому отдаётся только исход оплаты
type ReturnResponse struct {
	response.Response
	BookingRequestID int64               `json:"booking_request_id"`
	PaymentStatus    model.PaymentStatus `json:"payment_status"`
}

// NewCreateOrder POST /booking-requests/{id}/orders
func NewCreateOrder(log *zap.Logger, creator OrderCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.payments.NewCreateOrder"

		log := log.With(
			zap.String("op", op),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)

		requestID, ok := mw.PathID(r, "id")
		if !ok {
			response.WriteBadRequest(w, r, "invalid booking request id")
			return
		}

		var req CreateOrderRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Info("Failed to decode request body", zap.Error(err))
			response.WriteBadRequest(w, r, "failed to decode request")
			return
		}
		if strings.TrimSpace(req.PayerToken) == "" {
			response.WriteBadRequest(w, r, "payer_token is required")
			return
		}

		rec, err := creator.CreateOrder(r.Context(), service.CreateOrderInput{
			RequesterID:      mw.ActorID(r.Context()),
			BookingRequestID: requestID,
			Method:           req.Method,
			PayerToken:       req.PayerToken,
		})
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}

		log.Info("Payment order ready",
			zap.Int64("booking_request_id", requestID),
			zap.String("order_id", rec.GatewayOrderID),
		)

		out := dto.NewPaymentOrder(rec)
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, OrderResponse{Order: &out})
	}
}

// NewReturn GET /payments/return?booking_request_id=
func NewReturn(log *zap.Logger, handler ReturnHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.payments.NewReturn"

		log := log.With(
			zap.String("op", op),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)

		requestID, err := strconv.ParseInt(r.URL.Query().Get("booking_request_id"), 10, 64)
		if err != nil || requestID <= 0 {
			response.WriteBadRequest(w, r, "booking_request_id is required")
			return
		}

		req, err := handler.HandleReturn(r.Context(), requestID)
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}

		render.JSON(w, r, ReturnResponse{
			BookingRequestID: req.ID,
			PaymentStatus:    req.PaymentStatus,
		})
	}
}

// NewWebhook POST /payments/webhook. Неизвестный заказ, повтор исхода и негодное событие
// подтверждаются 200, чтобы шлюз не повторял доставку.
func NewWebhook(log *zap.Logger, handler WebhookHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.payments.NewWebhook"

		log := log.With(
			zap.String("op", op),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			log.Info("Failed to read webhook body", zap.Error(err))
			response.WriteBadRequest(w, r, "failed to read body")
			return
		}

		err = handler.HandleWebhook(r.Context(), payload)
		switch {
		case errors.Is(err, service.ErrUnknownOrder):
			log.Warn("Webhook for unknown order dropped", zap.Error(err))
		case errors.Is(err, service.ErrPaymentAlreadyProcessed):
			log.Warn("Webhook conflicts with recorded outcome", zap.Error(err))
		case errors.Is(err, service.ErrInvalidInput):
			log.Warn("Webhook rejected", zap.Error(err))
		case err != nil:
			response.WriteError(w, r, log, err)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
