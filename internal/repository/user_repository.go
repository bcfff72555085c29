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

// ErrUserNotFound возвращается, когда запись пользователя не найдена.
var ErrUserNotFound = errors.New("user not found")

// UserRepository отвечает за работу с таблицей users.
// Баланс здесь только читается: любое изменение balance идёт через
// леджер в PaymentRepository или WithdrawalRepository.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create создаёт нового пользователя.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, username, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, balance, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		user.Email, user.Username, user.PasswordHash, user.Role,
	).Scan(&user.ID, &user.Balance, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return fmt.Errorf("user repository: create %w", err)
	}

	return nil
}

// GetByEmail возвращает пользователя по email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `
		SELECT id, email, username, password_hash, role, balance, is_active,
		       bank_name, cbu, account_alias, dni, phone, address,
		       last_login_at, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by email %w", err)
	}

	return &user, nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `
		SELECT id, email, username, password_hash, role, balance, is_active,
		       bank_name, cbu, account_alias, dni, phone, address,
		       last_login_at, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by id %w", err)
	}

	return &user, nil
}

// UpdateBankDetails обновляет платёжные реквизиты пользователя.
func (r *UserRepository) UpdateBankDetails(ctx context.Context, userID uuid.UUID, details models.BankDetails) (*models.User, error) {
	query := `
		UPDATE users
		SET bank_name = $1, cbu = $2, account_alias = $3, dni = $4, phone = $5, address = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING id, email, username, password_hash, role, balance, is_active,
		          bank_name, cbu, account_alias, dni, phone, address,
		          last_login_at, created_at, updated_at
	`

	var user models.User
	if err := r.db.GetContext(
		ctx, &user, query,
		details.BankName, details.CBU, details.AccountAlias,
		details.DNI, details.Phone, details.Address,
		userID,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: update bank details %w", err)
	}

	return &user, nil
}
