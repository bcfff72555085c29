package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/laburoapp/laburo-backend/internal/models"
	"github.com/laburoapp/laburo-backend/internal/pkg/apperror"
	"github.com/laburoapp/laburo-backend/internal/repository"
)

// WithdrawalRepository описывает хранилище заявок на вывод.
type WithdrawalRepository interface {
	Create(ctx context.Context, req *models.WithdrawalRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WithdrawalRequest, error)
	List(ctx context.Context, status string, limit, offset int) ([]models.WithdrawalRequest, int, error)
	Approve(ctx context.Context, id, adminID uuid.UUID) (*models.WithdrawalRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, adminID uuid.UUID) (*models.WithdrawalRequest, error)
	Reject(ctx context.Context, id, adminID uuid.UUID, reason string) (*models.WithdrawalRequest, error)
	Cancel(ctx context.Context, id, userID uuid.UUID) (*models.WithdrawalRequest, error)
}

// UserReader — чтение профиля для подстановки платёжных реквизитов.
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// WithdrawalService управляет заявками на вывод средств: создание
// исполнителем и админский конвейер pending -> approved -> processing ->
// completed с отклонением и компенсацией на любом шаге.
type WithdrawalService struct {
	withdrawals WithdrawalRepository
	users       UserReader
	notifier    Notifier
	minAmount   float64
}

func NewWithdrawalService(withdrawals WithdrawalRepository, users UserReader, notifier Notifier, minAmount float64) *WithdrawalService {
	return &WithdrawalService{withdrawals: withdrawals, users: users, notifier: notifier, minAmount: minAmount}
}

// RequestWithdrawalInput описывает заявку на вывод. Реквизиты
// необязательны: при их отсутствии берутся из профиля пользователя.
type RequestWithdrawalInput struct {
	UserID       uuid.UUID
	Amount       float64
	BankName     *string
	CBU          *string
	AccountAlias *string
}

// RequestWithdrawal создаёт заявку. Баланс при создании не списывается,
// но заявка сверх текущего баланса отклоняется сразу.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, in RequestWithdrawalInput) (*models.WithdrawalRequest, error) {
	if in.Amount < s.minAmount {
		return nil, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("минимальная сумма вывода %.2f", s.minAmount))
	}

	req := &models.WithdrawalRequest{
		UserID:       in.UserID,
		Amount:       models.Round2(in.Amount),
		BankName:     in.BankName,
		CBU:          in.CBU,
		AccountAlias: in.AccountAlias,
	}

	// Заявка без реквизитов наследует реквизиты профиля.
	if !hasDestination(req.CBU, req.AccountAlias) {
		user, err := s.users.GetByID(ctx, in.UserID)
		if err != nil {
			return nil, mapWithdrawalError(err)
		}
		if !user.HasPayoutDestination() {
			return nil, apperror.New(apperror.ErrCodeValidation, "укажите CBU или алиас счёта для вывода")
		}
		req.BankName = user.BankName
		req.CBU = user.CBU
		req.AccountAlias = user.AccountAlias
	}

	if err := s.withdrawals.Create(ctx, req); err != nil {
		return nil, mapWithdrawalError(err)
	}
	return req, nil
}

// GetWithdrawal возвращает заявку, доступ имеют владелец и администратор.
func (s *WithdrawalService) GetWithdrawal(ctx context.Context, id, actorID uuid.UUID, role string) (*models.WithdrawalRequest, error) {
	req, err := s.withdrawals.GetByID(ctx, id)
	if err != nil {
		return nil, mapWithdrawalError(err)
	}
	if req.UserID != actorID && role != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "заявка доступна только её владельцу")
	}
	return req, nil
}

// ListMyWithdrawals возвращает заявки пользователя.
func (s *WithdrawalService) ListMyWithdrawals(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WithdrawalRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.withdrawals.ListByUser(ctx, userID, limit, offset)
}

// ListWithdrawals — админская очередь с фильтром по статусу.
func (s *WithdrawalService) ListWithdrawals(ctx context.Context, status string, limit, offset int) ([]models.WithdrawalRequest, int, error) {
	if status != "" {
		if _, ok := models.ValidWithdrawalStatuses[status]; !ok {
			return nil, 0, apperror.New(apperror.ErrCodeValidation, "неизвестный статус заявки: "+status)
		}
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.withdrawals.List(ctx, status, limit, offset)
}

// Approve одобряет заявку и списывает средства с баланса. Баланс мог
// уменьшиться с момента подачи, тогда операция вернёт нехватку средств.
func (s *WithdrawalService) Approve(ctx context.Context, id, adminID uuid.UUID) (*models.WithdrawalRequest, error) {
	req, err := s.withdrawals.Approve(ctx, id, adminID)
	if err != nil {
		return nil, mapWithdrawalError(err)
	}

	notifyAsync(s.notifier, req.UserID, "withdrawal", "Заявка на вывод одобрена",
		fmt.Sprintf("Заявка на %.2f одобрена, средства списаны с баланса", req.Amount))

	return req, nil
}

// MarkProcessing отмечает, что перевод передан в банк.
func (s *WithdrawalService) MarkProcessing(ctx context.Context, id, adminID uuid.UUID) (*models.WithdrawalRequest, error) {
	req, err := s.withdrawals.UpdateStatus(ctx, id, models.WithdrawalStatusApproved, models.WithdrawalStatusProcessing, adminID)
	if err != nil {
		return nil, mapWithdrawalError(err)
	}
	return req, nil
}

// Complete закрывает заявку после фактического перевода.
func (s *WithdrawalService) Complete(ctx context.Context, id, adminID uuid.UUID) (*models.WithdrawalRequest, error) {
	req, err := s.withdrawals.UpdateStatus(ctx, id, models.WithdrawalStatusProcessing, models.WithdrawalStatusCompleted, adminID)
	if err != nil {
		return nil, mapWithdrawalError(err)
	}

	notifyAsync(s.notifier, req.UserID, "withdrawal", "Вывод средств завершён",
		fmt.Sprintf("Перевод %.2f выполнен", req.Amount))

	return req, nil
}

// Reject отклоняет заявку. Если средства уже были списаны при одобрении,
// репозиторий возвращает их компенсирующей записью леджера.
func (s *WithdrawalService) Reject(ctx context.Context, id, adminID uuid.UUID, reason string) (*models.WithdrawalRequest, error) {
	if reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "укажите причину отклонения")
	}

	req, err := s.withdrawals.Reject(ctx, id, adminID, reason)
	if err != nil {
		return nil, mapWithdrawalError(err)
	}

	notifyAsync(s.notifier, req.UserID, "withdrawal", "Заявка на вывод отклонена", reason)

	return req, nil
}

// Cancel отменяет собственную заявку, пока она не одобрена.
func (s *WithdrawalService) Cancel(ctx context.Context, id, userID uuid.UUID) (*models.WithdrawalRequest, error) {
	req, err := s.withdrawals.Cancel(ctx, id, userID)
	if err != nil {
		return nil, mapWithdrawalError(err)
	}
	return req, nil
}

func hasDestination(cbu, alias *string) bool {
	return (cbu != nil && *cbu != "") || (alias != nil && *alias != "")
}

func mapWithdrawalError(err error) error {
	switch {
	case errors.Is(err, repository.ErrWithdrawalNotFound):
		return apperror.ErrWithdrawalNotFound
	case errors.Is(err, repository.ErrUserNotFound):
		return apperror.ErrUserNotFound
	case errors.Is(err, repository.ErrInsufficientFunds):
		return apperror.Wrap(err, apperror.ErrCodeInsufficientBalance, "недостаточно средств на балансе")
	case errors.Is(err, repository.ErrWithdrawalStateChanged):
		return apperror.Wrap(err, apperror.ErrCodeInvalidTransition, "состояние заявки не допускает операцию")
	}
	return err
}
