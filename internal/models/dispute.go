package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Dispute описывает спор по контракту. Открытие спора переводит контракт
// и его платёж в disputed и блокирует подтверждение, изменение цены и
// продление до решения.
type Dispute struct {
	ID                  uuid.UUID      `db:"id" json:"id"`
	ContractID          uuid.UUID      `db:"contract_id" json:"contract_id"`
	InitiatorID         uuid.UUID      `db:"initiator_id" json:"initiator_id"`
	DefendantID         uuid.UUID      `db:"defendant_id" json:"defendant_id"`
	Category            string         `db:"category" json:"category"`
	Reason              string         `db:"reason" json:"reason"`
	DetailedDescription *string        `db:"detailed_description" json:"detailed_description,omitempty"`
	Evidence            pq.StringArray `db:"evidence" json:"evidence,omitempty"`
	Status              string         `db:"status" json:"status"`
	Resolution          *string        `db:"resolution" json:"resolution,omitempty"`
	ResolvedBy          *uuid.UUID     `db:"resolved_by" json:"resolved_by,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	ResolvedAt          *time.Time     `db:"resolved_at" json:"resolved_at,omitempty"`
}

// DisputeMessage — сообщение в треде арбитража.
type DisputeMessage struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	DisputeID   uuid.UUID      `db:"dispute_id" json:"dispute_id"`
	SenderID    uuid.UUID      `db:"sender_id" json:"sender_id"`
	Message     string         `db:"message" json:"message"`
	Attachments pq.StringArray `db:"attachments" json:"attachments,omitempty"`
	IsAdmin     bool           `db:"is_admin" json:"is_admin"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}
