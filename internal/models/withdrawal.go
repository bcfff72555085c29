package models

import (
	"time"

	"github.com/google/uuid"
)

// WithdrawalRequest описывает заявку исполнителя на вывод средств.
// Баланс списывается при одобрении, а не при создании заявки; отклонение
// уже одобренной заявки сопровождается компенсирующим начислением.
type WithdrawalRequest struct {
	ID                      uuid.UUID  `db:"id" json:"id"`
	UserID                  uuid.UUID  `db:"user_id" json:"user_id"`
	Amount                  float64    `db:"amount" json:"amount"`
	BankName                *string    `db:"bank_name" json:"bank_name,omitempty"`
	CBU                     *string    `db:"cbu" json:"cbu,omitempty"`
	AccountAlias            *string    `db:"account_alias" json:"account_alias,omitempty"`
	Status                  string     `db:"status" json:"status"`
	BalanceBeforeWithdrawal float64    `db:"balance_before_withdrawal" json:"balance_before_withdrawal"`
	RejectionReason         *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ProcessedBy             *uuid.UUID `db:"processed_by" json:"processed_by,omitempty"`
	CreatedAt               time.Time  `db:"created_at" json:"created_at"`
	ProcessedAt             *time.Time `db:"processed_at" json:"processed_at,omitempty"`
}
