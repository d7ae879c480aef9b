package sessions

import (
	"context"
	"net/http"

	"github.com/Freeeeeet/booking_engine/internal/http-server/dto"
	mw "github.com/Freeeeeet/booking_engine/internal/http-server/middleware"
	"github.com/Freeeeeet/booking_engine/internal/http-server/response"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

type SessionGetter interface {
	Get(ctx context.Context, actorID, sessionID int64) (*model.Session, error)
}

type SessionJoiner interface {
	Join(ctx context.Context, requesterID, sessionID int64) (string, error)
}

// Action переход занятия от лица преподавателя: Start, Complete или Cancel
type Action func(ctx context.Context, providerID, sessionID int64) (*model.Session, error)

type SessionResponse struct {
	response.Response
	Session *dto.Session `json:"session,omitempty"`
}

type JoinResponse struct {
	response.Response
	MeetingLink string `json:"meeting_link"`
}

// NewGet GET /sessions/{id}
func NewGet(log *zap.Logger, getter SessionGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.NewGet"

		log := log.With(
			zap.String("op", op),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, ok := mw.PathID(r, "id")
		if !ok {
			response.WriteBadRequest(w, r, "invalid session id")
			return
		}

		session, err := getter.Get(r.Context(), mw.ActorID(r.Context()), id)
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}

		out := dto.NewSession(session)
		render.JSON(w, r, SessionResponse{Session: &out})
	}
}

// NewAction POST /sessions/{id}/start|complete|cancel
func NewAction(log *zap.Logger, name string, action Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.NewAction"

		log := log.With(
			zap.String("op", op),
			zap.String("action", name),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, ok := mw.PathID(r, "id")
		if !ok {
			response.WriteBadRequest(w, r, "invalid session id")
			return
		}

		session, err := action(r.Context(), mw.ActorID(r.Context()), id)
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}

		log.Info("Session updated", zap.Int64("session_id", id), zap.String("status", string(session.Status)))

		out := dto.NewSession(session)
		render.JSON(w, r, SessionResponse{Session: &out})
	}
}

// NewJoin POST /sessions/{id}/join
func NewJoin(log *zap.Logger, joiner SessionJoiner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.NewJoin"

		log := log.With(
			zap.String("op", op),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, ok := mw.PathID(r, "id")
		if !ok {
			response.WriteBadRequest(w, r, "invalid session id")
			return
		}

		link, err := joiner.Join(r.Context(), mw.ActorID(r.Context()), id)
		if err != nil {
			response.WriteError(w, r, log, err)
			return
		}

		render.JSON(w, r, JoinResponse{MeetingLink: link})
	}
}
