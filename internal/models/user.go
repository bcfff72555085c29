package models

import (
	"time"

	"github.com/google/uuid"
)

// User описывает сущность пользователя платформы.
// Balance меняется только вместе со вставкой строки BalanceTransaction
// в одной транзакции базы данных.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         string     `db:"role" json:"role"`
	Balance      float64    `db:"balance" json:"balance"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	BankName     *string    `db:"bank_name" json:"bank_name,omitempty"`
	CBU          *string    `db:"cbu" json:"cbu,omitempty"`
	AccountAlias *string    `db:"account_alias" json:"account_alias,omitempty"`
	DNI          *string    `db:"dni" json:"dni,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	Address      *string    `db:"address" json:"address,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
}

// BankDetails содержит платёжные реквизиты пользователя для выплат.
type BankDetails struct {
	BankName     *string `json:"bank_name,omitempty"`
	CBU          *string `json:"cbu,omitempty"`
	AccountAlias *string `json:"account_alias,omitempty"`
	DNI          *string `json:"dni,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Address      *string `json:"address,omitempty"`
}

// HasPayoutDestination проверяет, что у пользователя задан хотя бы один
// платёжный идентификатор (CBU или alias).
func (u *User) HasPayoutDestination() bool {
	return (u.CBU != nil && *u.CBU != "") || (u.AccountAlias != nil && *u.AccountAlias != "")
}
