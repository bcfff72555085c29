package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/laburoapp/laburo-backend/internal/models"
	"github.com/laburoapp/laburo-backend/internal/pkg/apperror"
	"github.com/laburoapp/laburo-backend/internal/repository"
)

// ProfileRepository описывает взаимодействие сервиса с хранилищем пользователей.
type ProfileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateBankDetails(ctx context.Context, userID uuid.UUID, details models.BankDetails) (*models.User, error)
}

// ProfileService отдаёт профиль пользователя и обновляет платёжные реквизиты.
type ProfileService struct {
	users ProfileRepository
}

// NewProfileService создаёт новый сервис профиля.
func NewProfileService(users ProfileRepository) *ProfileService {
	return &ProfileService{users: users}
}

// GetProfile возвращает профиль пользователя.
func (s *ProfileService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateBankDetails обновляет платёжные реквизиты пользователя. Передаются
// только изменяемые поля, nil-поля остаются нетронутыми.
func (s *ProfileService) UpdateBankDetails(ctx context.Context, userID uuid.UUID, details models.BankDetails) (*models.User, error) {
	user, err := s.users.UpdateBankDetails(ctx, userID, details)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
