package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"go.uber.org/zap"
)

// UserDirectory профили пользователей (ведёт внешний сервис)
type UserDirectory interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

type UserService struct {
	users  UserDirectory
	logger *zap.Logger
}

func NewUserService(users UserDirectory, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		logger: logger,
	}
}

// GetByTelegramID получает пользователя по Telegram ID
func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// ProviderByTelegram преподаватель, привязанный к Telegram-аккаунту
func (s *UserService) ProviderByTelegram(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if !user.IsProvider {
		s.logger.Info("Provider command from non-provider",
			zap.Int64("telegram_id", telegramID),
			zap.Int64("user_id", user.ID),
		)
		return nil, ErrForbidden
	}
	return user, nil
}
