package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Contract описывает договор между клиентом и исполнителем по заданию.
// Инвариант: status = completed только при ClientConfirmed && DoerConfirmed.
// Для многоисполнительских заданий вместо Price действует AllocatedAmount,
// который на момент создания не превышает остаток бюджета задания.
type Contract struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	ContractNumber     string     `db:"contract_number" json:"contract_number"`
	JobID              uuid.UUID  `db:"job_id" json:"job_id"`
	ClientID           uuid.UUID  `db:"client_id" json:"client_id"`
	WorkerID           uuid.UUID  `db:"worker_id" json:"worker_id"`
	ProposalID         uuid.UUID  `db:"proposal_id" json:"proposal_id"`
	Price              float64    `db:"price" json:"price"`
	Commission         float64    `db:"commission" json:"commission"`
	TotalPrice         float64    `db:"total_price" json:"total_price"`
	AllocatedAmount    *float64   `db:"allocated_amount" json:"allocated_amount,omitempty"`
	PercentageOfBudget *float64   `db:"percentage_of_budget" json:"percentage_of_budget,omitempty"`
	Status             string     `db:"status" json:"status"`
	PaymentStatus      string     `db:"payment_status" json:"payment_status"`
	EscrowStatus       string     `db:"escrow_status" json:"escrow_status"`
	ClientConfirmed    bool       `db:"client_confirmed" json:"client_confirmed"`
	DoerConfirmed      bool       `db:"doer_confirmed" json:"doer_confirmed"`
	ClientConfirmedAt  *time.Time `db:"client_confirmed_at" json:"client_confirmed_at,omitempty"`
	DoerConfirmedAt    *time.Time `db:"doer_confirmed_at" json:"doer_confirmed_at,omitempty"`
	EndDate            *time.Time `db:"end_date" json:"end_date,omitempty"`
	HasBeenExtended    bool       `db:"has_been_extended" json:"has_been_extended"`
	ExtensionDays      *int       `db:"extension_days" json:"extension_days,omitempty"`
	ExtensionAmount    *float64   `db:"extension_amount" json:"extension_amount,omitempty"`
	OriginalEndDate    *time.Time `db:"original_end_date" json:"original_end_date,omitempty"`
	PaymentProcessedBy *uuid.UUID `db:"payment_processed_by" json:"payment_processed_by,omitempty"`
	PaymentProcessedAt *time.Time `db:"payment_processed_at" json:"payment_processed_at,omitempty"`
	PaymentProofURL    *string    `db:"payment_proof_url" json:"payment_proof_url,omitempty"`
	PaymentAdminNotes  *string    `db:"payment_admin_notes" json:"payment_admin_notes,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// PayoutBase возвращает сумму, от которой считается выплата исполнителю:
// доля бюджета для многоисполнительских заданий, иначе цена контракта.
func (c *Contract) PayoutBase() float64 {
	if c.AllocatedAmount != nil {
		return *c.AllocatedAmount
	}
	return c.Price
}

// ContractEvent фиксирует изменение контракта для аудита: смену статуса,
// цены или срока со старым и новым значением.
type ContractEvent struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	ContractID uuid.UUID       `db:"contract_id" json:"contract_id"`
	ActorID    *uuid.UUID      `db:"actor_id" json:"actor_id,omitempty"`
	Action     string          `db:"action" json:"action"`
	OldValue   json.RawMessage `db:"old_value" json:"old_value,omitempty"`
	NewValue   json.RawMessage `db:"new_value" json:"new_value,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// Действия, записываемые в журнал контракта.
const (
	ContractEventCreated            = "created"
	ContractEventStatusChanged      = "status_changed"
	ContractEventPriceModified      = "price_modified"
	ContractEventExtensionRequested = "extension_requested"
	ContractEventExtensionApproved  = "extension_approved"
	ContractEventExtensionRejected  = "extension_rejected"
	ContractEventDisputeOpened      = "dispute_opened"
	ContractEventDisputeResolved    = "dispute_resolved"
	ContractEventPayoutRecorded     = "payout_recorded"
	ContractEventStatusRepaired     = "status_repaired"
)
