package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Freeeeeet/booking_engine/internal/http-server/response"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// ActorHeader идентификатор пользователя, проставленный шлюзом аутентификации
const ActorHeader = "X-User-ID"

type actorKey struct{}

// Actor требует заголовок X-User-ID и кладёт id в контекст
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(ActorHeader), 10, 64)
		if err != nil || id <= 0 {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error(response.UNAUTHORIZED, "X-User-ID header is required"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), id)))
	})
}

func WithActor(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, actorKey{}, id)
}

// ActorID id пользователя из контекста, 0 если его нет
func ActorID(ctx context.Context) int64 {
	id, _ := ctx.Value(actorKey{}).(int64)
	return id
}

// PathID числовой параметр пути
func PathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
