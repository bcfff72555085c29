package models

import (
	"time"

	"github.com/google/uuid"
)

// Job описывает задание клиента с бюджетом и лимитом исполнителей.
type Job struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ClientID    uuid.UUID `db:"client_id" json:"client_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Budget      float64   `db:"budget" json:"budget"`
	Status      string    `db:"status" json:"status"`
	MaxWorkers  int       `db:"max_workers" json:"max_workers"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	// Агрегаты по активным контрактам, вычисляются при чтении.
	AllocatedTotal  *float64 `db:"allocated_total" json:"allocated_total,omitempty"`
	WorkersAssigned *int     `db:"workers_assigned" json:"workers_assigned,omitempty"`
	RemainingBudget *float64 `db:"remaining_budget" json:"remaining_budget,omitempty"`
	ProposalsCount  *int     `db:"proposals_count" json:"proposals_count,omitempty"`
}

// Proposal представляет отклик исполнителя на задание.
// У исполнителя может быть не более одного неотозванного отклика на задание.
type Proposal struct {
	ID            uuid.UUID `db:"id" json:"id"`
	JobID         uuid.UUID `db:"job_id" json:"job_id"`
	WorkerID      uuid.UUID `db:"worker_id" json:"worker_id"`
	CoverLetter   string    `db:"cover_letter" json:"cover_letter"`
	ProposedPrice *float64  `db:"proposed_price" json:"proposed_price,omitempty"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
