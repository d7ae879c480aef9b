package earnings

import (
	"context"
	"net/http"

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

type Ledger interface {
	ListForProvider(ctx context.Context, providerID int64) ([]*model.EarningRecord, error)
	PendingTotal(ctx context.Context, providerID int64) (int64, error)
}

type ListResponse struct {
	response.Response
	Earnings     []dto.Earning `json:"earnings"`
	PendingTotal string        `json:"pending_total"`
}

// NewList GET /providers/{id}/earnings, только свой журнал
func NewList(log *zap.Logger, ledger Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.earnings.NewList"

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

		records, err := ledger.ListForProvider(r.Context(), providerID)
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}
		total, err := ledger.PendingTotal(r.Context(), providerID)
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}

		render.JSON(w, r, ListResponse{
			Earnings:     dto.NewEarnings(records),
			PendingTotal: pricing.FormatAmount(total),
		})
	}
}
