package handlers

import (
	"context"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"go.uber.org/zap"
)

type ProviderResolver interface {
	ProviderByTelegram(ctx context.Context, telegramID int64) (*model.User, error)
}

type BookingDecider interface {
	ListPending(ctx context.Context, providerID int64) ([]*model.BookingRequest, error)
	Accept(ctx context.Context, providerID, requestID int64) (*model.Session, error)
	Reject(ctx context.Context, providerID, requestID int64) (*model.BookingRequest, error)
}

type SessionStarter interface {
	Start(ctx context.Context, providerID, sessionID int64) (*model.Session, error)
}

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	users    ProviderResolver
	bookings BookingDecider
	sessions SessionStarter
	loc      *time.Location
	logger   *zap.Logger
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(
	users ProviderResolver,
	bookings BookingDecider,
	sessions SessionStarter,
	loc *time.Location,
	logger *zap.Logger,
) *Handlers {
	if loc == nil {
		loc = time.UTC
	}
	return &Handlers{
		users:    users,
		bookings: bookings,
		sessions: sessions,
		loc:      loc,
		logger:   logger,
	}
}
