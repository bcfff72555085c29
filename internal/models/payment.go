package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Payment представляет движение денег по контракту: от поступления в эскроу
// до подтверждённой выплаты исполнителю. У контракта в состоянии
// confirmed_for_payout может находиться не более одного платежа.
type Payment struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	ContractID  uuid.UUID  `db:"contract_id" json:"contract_id"`
	Amount      float64    `db:"amount" json:"amount"`
	PlatformFee float64    `db:"platform_fee" json:"platform_fee"`
	Status      string     `db:"status" json:"status"`
	PaymentType string     `db:"payment_type" json:"payment_type"`
	PaidAt      *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	VerifiedBy  *uuid.UUID `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt  *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// PaymentProof хранит загруженное подтверждение перевода. Записи только
// добавляются: при замене старое подтверждение деактивируется, но остаётся
// в истории.
type PaymentProof struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	PaymentID  uuid.UUID  `db:"payment_id" json:"payment_id"`
	FileURL    string     `db:"file_url" json:"file_url"`
	Status     string     `db:"status" json:"status"`
	UploadedBy uuid.UUID  `db:"uploaded_by" json:"uploaded_by"`
	UploadedAt time.Time  `db:"uploaded_at" json:"uploaded_at"`
	VerifiedBy *uuid.UUID `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	IsActive   bool       `db:"is_active" json:"is_active"`
}

// BalanceTransaction — строка append-only журнала баланса. Баланс пользователя
// всегда равен BalanceAfter его последней завершённой операции; это главный
// инвариант сверки.
type BalanceTransaction struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	UserID            uuid.UUID       `db:"user_id" json:"user_id"`
	Type              string          `db:"type" json:"type"`
	Amount            float64         `db:"amount" json:"amount"`
	BalanceBefore     float64         `db:"balance_before" json:"balance_before"`
	BalanceAfter      float64         `db:"balance_after" json:"balance_after"`
	Status            string          `db:"status" json:"status"`
	RelatedContractID *uuid.UUID      `db:"related_contract_id" json:"related_contract_id,omitempty"`
	Description       *string         `db:"description" json:"description,omitempty"`
	Metadata          json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// PayoutDeductions — вычеты, удерживаемые из выплаты исполнителю помимо
// комиссии платформы.
type PayoutDeductions struct {
	BankFee   float64 `json:"bank_fee"`
	TaxAmount float64 `json:"tax_amount"`
	OtherFee  float64 `json:"other_fee"`
}

// Total возвращает сумму всех вычетов.
func (d PayoutDeductions) Total() float64 {
	return Round2(d.BankFee + d.TaxAmount + d.OtherFee)
}
