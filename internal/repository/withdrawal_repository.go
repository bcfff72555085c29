package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/laburoapp/laburo-backend/internal/models"
)

var (
	ErrWithdrawalNotFound     = errors.New("withdrawal not found")
	ErrWithdrawalStateChanged = errors.New("withdrawal state changed concurrently")
)

// WithdrawalRepository отвечает за заявки на вывод средств.
// Создание заявки баланс не трогает: списание происходит при одобрении,
// отклонение после списания компенсируется обратной записью леджера.
type WithdrawalRepository struct {
	db *sqlx.DB
}

func NewWithdrawalRepository(db *sqlx.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

const withdrawalColumns = `
	id, user_id, amount, bank_name, cbu, account_alias, status,
	balance_before_withdrawal, rejection_reason, processed_by, created_at, processed_at
`

// Create регистрирует заявку. Баланс читается под блокировкой, чтобы
// зафиксировать balance_before_withdrawal и отклонить заявку сверх средств.
func (r *WithdrawalRepository) Create(ctx context.Context, req *models.WithdrawalRequest) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("withdrawal repository: begin tx %w", err)
	}
	defer tx.Rollback()

	var balance float64
	if err := tx.GetContext(ctx, &balance, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`, req.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("withdrawal repository: lock user %w", err)
	}
	if balance < req.Amount {
		return ErrInsufficientFunds
	}
	req.BalanceBeforeWithdrawal = balance
	req.Status = models.WithdrawalStatusPending

	query := `
		INSERT INTO withdrawal_requests (user_id, amount, bank_name, cbu, account_alias, status, balance_before_withdrawal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	if err := tx.QueryRowxContext(
		ctx, query,
		req.UserID, req.Amount, req.BankName, req.CBU, req.AccountAlias,
		req.Status, req.BalanceBeforeWithdrawal,
	).Scan(&req.ID, &req.CreatedAt); err != nil {
		return fmt.Errorf("withdrawal repository: create %w", err)
	}

	return tx.Commit()
}

// GetByID возвращает заявку по идентификатору.
func (r *WithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	var req models.WithdrawalRequest
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("withdrawal repository: get by id %w", err)
	}
	return &req, nil
}

// ListByUser возвращает заявки пользователя.
func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WithdrawalRequest, error) {
	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawal_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	var requests []models.WithdrawalRequest
	if err := r.db.SelectContext(ctx, &requests, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("withdrawal repository: list by user %w", err)
	}
	return requests, nil
}

// List возвращает заявки для админской очереди, опционально по статусу.
func (r *WithdrawalRepository) List(ctx context.Context, status string, limit, offset int) ([]models.WithdrawalRequest, int, error) {
	countQuery := `SELECT COUNT(*) FROM withdrawal_requests WHERE 1=1`
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if status != "" {
		clause := fmt.Sprintf(" AND status = $%d", argIndex)
		countQuery += clause
		query += clause
		args = append(args, status)
		argIndex++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("withdrawal repository: count %w", err)
	}

	query += fmt.Sprintf(" ORDER BY created_at LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	var requests []models.WithdrawalRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("withdrawal repository: list %w", err)
	}

	return requests, total, nil
}

// Approve одобряет заявку и списывает средства. Баланс повторно
// проверяется под блокировкой строки пользователя: с момента создания
// заявки он мог уменьшиться.
func (r *WithdrawalRepository) Approve(ctx context.Context, id, adminID uuid.UUID) (*models.WithdrawalRequest, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("withdrawal repository: begin tx %w", err)
	}
	defer tx.Rollback()

	req, err := lockWithdrawal(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanWithdrawalTransition(req.Status, models.WithdrawalStatusApproved) {
		return nil, ErrWithdrawalStateChanged
	}

	if _, err := appendBalanceTransaction(ctx, tx, balanceChange{
		UserID:      req.UserID,
		Type:        models.BalanceTransactionTypeWithdrawal,
		Amount:      -req.Amount,
		Description: fmt.Sprintf("Вывод средств по заявке %s", req.ID),
	}); err != nil {
		return nil, err
	}

	updated, err := updateWithdrawalStatus(ctx, tx, id, models.WithdrawalStatusApproved, nil, &adminID)
	if err != nil {
		return nil, err
	}

	return updated, tx.Commit()
}

// UpdateStatus переводит заявку между неденежными статусами
// (approved -> processing -> completed).
func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, adminID uuid.UUID) (*models.WithdrawalRequest, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("withdrawal repository: begin tx %w", err)
	}
	defer tx.Rollback()

	req, err := lockWithdrawal(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != from {
		return nil, ErrWithdrawalStateChanged
	}

	updated, err := updateWithdrawalStatus(ctx, tx, id, to, nil, &adminID)
	if err != nil {
		return nil, err
	}

	return updated, tx.Commit()
}

// Reject отклоняет заявку. Если средства уже были списаны при одобрении,
// в той же транзакции начисляется компенсация.
func (r *WithdrawalRepository) Reject(ctx context.Context, id, adminID uuid.UUID, reason string) (*models.WithdrawalRequest, error) {
	return r.terminate(ctx, id, adminID, models.WithdrawalStatusRejected, &reason)
}

// Cancel — отмена заявки её владельцем, с той же компенсацией.
func (r *WithdrawalRepository) Cancel(ctx context.Context, id, userID uuid.UUID) (*models.WithdrawalRequest, error) {
	req, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, ErrWithdrawalNotFound
	}
	return r.terminate(ctx, id, userID, models.WithdrawalStatusCancelled, nil)
}

func (r *WithdrawalRepository) terminate(ctx context.Context, id, actorID uuid.UUID, status string, reason *string) (*models.WithdrawalRequest, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("withdrawal repository: begin tx %w", err)
	}
	defer tx.Rollback()

	req, err := lockWithdrawal(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanWithdrawalTransition(req.Status, status) {
		return nil, ErrWithdrawalStateChanged
	}

	// Одобренная заявка уже списана: возвращаем средства.
	if req.Status == models.WithdrawalStatusApproved {
		if _, err := appendBalanceTransaction(ctx, tx, balanceChange{
			UserID:      req.UserID,
			Type:        models.BalanceTransactionTypeRefund,
			Amount:      req.Amount,
			Description: fmt.Sprintf("Возврат по заявке на вывод %s", req.ID),
		}); err != nil {
			return nil, err
		}
	}

	updated, err := updateWithdrawalStatus(ctx, tx, id, status, reason, &actorID)
	if err != nil {
		return nil, err
	}

	return updated, tx.Commit()
}

func lockWithdrawal(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.WithdrawalRequest, error) {
	var req models.WithdrawalRequest
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("withdrawal repository: lock %w", err)
	}
	return &req, nil
}

func updateWithdrawalStatus(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status string, reason *string, processedBy *uuid.UUID) (*models.WithdrawalRequest, error) {
	query := `
		UPDATE withdrawal_requests
		SET status = $2, rejection_reason = COALESCE($3, rejection_reason), processed_by = $4, processed_at = NOW()
		WHERE id = $1
		RETURNING ` + withdrawalColumns + `
	`
	var req models.WithdrawalRequest
	if err := tx.QueryRowxContext(ctx, query, id, status, reason, processedBy).StructScan(&req); err != nil {
		return nil, fmt.Errorf("withdrawal repository: update status %w", err)
	}
	return &req, nil
}
