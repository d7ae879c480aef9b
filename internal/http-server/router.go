package httpserver

import (
	"net/http"

	"github.com/Freeeeeet/booking_engine/internal/http-server/handlers/bookings"
	"github.com/Freeeeeet/booking_engine/internal/http-server/handlers/earnings"
	"github.com/Freeeeeet/booking_engine/internal/http-server/handlers/payments"
	"github.com/Freeeeeet/booking_engine/internal/http-server/handlers/schedules"
	"github.com/Freeeeeet/booking_engine/internal/http-server/handlers/sessions"
	"github.com/Freeeeeet/booking_engine/internal/http-server/handlers/slots"
	mw "github.com/Freeeeeet/booking_engine/internal/http-server/middleware"
	"github.com/Freeeeeet/booking_engine/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

type Services struct {
	Slots     *service.SlotService
	Recurring *service.RecurringService
	Bookings  *service.BookingService
	Payments  *service.PaymentService
	Sessions  *service.SessionService
	Earnings  *service.EarningsService
}

// NewRouter собирает HTTP API. Маршруты шлюза открыты, остальные требуют X-User-ID.
func NewRouter(log *zap.Logger, svc Services) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mw.Logger(log))
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	router.Get("/payments/return", payments.NewReturn(log, svc.Payments))
	router.Post("/payments/webhook", payments.NewWebhook(log, svc.Payments))

	router.Group(func(r chi.Router) {
		r.Use(mw.Actor)

		r.Post("/slots", slots.NewCreate(log, svc.Slots))
		r.Post("/slots/{id}/group-status", slots.NewSetGroupStatus(log, svc.Slots))
		r.Get("/providers/{id}/slots", slots.NewListAvailable(log, svc.Slots))

		r.Post("/recurring-schedules", schedules.NewCreate(log, svc.Recurring))
		r.Post("/recurring-schedules/{id}/deactivate", schedules.NewDeactivate(log, svc.Recurring))
		r.Get("/providers/{id}/recurring-schedules", schedules.NewList(log, svc.Recurring))

		r.Post("/booking-requests", bookings.NewCreate(log, svc.Bookings))
		r.Get("/booking-requests/{id}", bookings.NewGet(log, svc.Bookings))
		r.Post("/booking-requests/{id}/submit", bookings.NewSubmit(log, svc.Bookings))
		r.Post("/booking-requests/{id}/accept", bookings.NewAccept(log, svc.Bookings))
		r.Post("/booking-requests/{id}/reject", bookings.NewReject(log, svc.Bookings))
		r.Get("/providers/{id}/booking-requests", bookings.NewListPending(log, svc.Bookings))

		r.Post("/booking-requests/{id}/orders", payments.NewCreateOrder(log, svc.Payments))

		r.Get("/providers/{id}/earnings", earnings.NewList(log, svc.Earnings))

		r.Get("/sessions/{id}", sessions.NewGet(log, svc.Sessions))
		r.Post("/sessions/{id}/start", sessions.NewAction(log, "start", svc.Sessions.Start))
		r.Post("/sessions/{id}/join", sessions.NewJoin(log, svc.Sessions))
		r.Post("/sessions/{id}/complete", sessions.NewAction(log, "complete", svc.Sessions.Complete))
		r.Post("/sessions/{id}/cancel", sessions.NewAction(log, "cancel", svc.Sessions.Cancel))
	})

	return router
}
