package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/laburoapp/laburo-backend/internal/models"
)

var ErrPendingPaymentNotFound = errors.New("pending payment not found")

// ReportRepository — читающая сторона сверки выплат: подтверждённые
// платежи вместе с реквизитами исполнителей. Ничего не пишет.
type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const pendingPaymentSelect = `
	SELECT p.id AS payment_id,
	       c.id AS contract_id,
	       c.contract_number,
	       j.id AS job_id,
	       j.title AS job_title,
	       cl.id AS client_id,
	       cl.username AS client_name,
	       w.id AS worker_id,
	       w.username AS worker_name,
	       w.email AS worker_email,
	       w.dni AS worker_dni,
	       w.phone AS worker_phone,
	       w.address AS worker_address,
	       w.bank_name,
	       w.cbu,
	       w.account_alias,
	       COALESCE(c.allocated_amount, c.price) AS amount,
	       c.commission,
	       c.total_price,
	       p.status AS payment_status,
	       p.verified_at AS confirmed_at,
	       c.end_date AS contract_end_date
	FROM payments p
	JOIN contracts c ON c.id = p.contract_id
	JOIN jobs j ON j.id = c.job_id
	JOIN users cl ON cl.id = c.client_id
	JOIN users w ON w.id = c.worker_id
`

// PendingPaymentsFilter — параметры выборки очереди выплат.
type PendingPaymentsFilter struct {
	From      time.Time
	To        time.Time
	SortBy    string // "date", "amount", "worker"
	SortOrder string // "asc", "desc"
}

// ListPendingPayments возвращает платежи в статусе confirmed_for_payout,
// подтверждённые в заданном периоде.
func (r *ReportRepository) ListPendingPayments(ctx context.Context, filter PendingPaymentsFilter) ([]models.PendingPaymentRow, error) {
	query := pendingPaymentSelect + `
	WHERE p.status = 'confirmed_for_payout'
	  AND p.verified_at >= $1 AND p.verified_at <= $2
	`

	sortOrder := "DESC"
	if filter.SortOrder == "asc" {
		sortOrder = "ASC"
	}
	switch filter.SortBy {
	case "amount":
		query += " ORDER BY COALESCE(c.allocated_amount, c.price) " + sortOrder
	case "worker":
		query += " ORDER BY w.username " + sortOrder
	default: // "date"
		query += " ORDER BY p.verified_at " + sortOrder
	}

	var rows []models.PendingPaymentRow
	if err := r.db.SelectContext(ctx, &rows, query, filter.From, filter.To); err != nil {
		return nil, fmt.Errorf("report repository: list pending payments %w", err)
	}
	return rows, nil
}

// GetPendingPaymentByContract возвращает строку очереди по контракту.
func (r *ReportRepository) GetPendingPaymentByContract(ctx context.Context, contractID uuid.UUID) (*models.PendingPaymentRow, error) {
	query := pendingPaymentSelect + `
	WHERE c.id = $1
	ORDER BY p.created_at DESC
	LIMIT 1
	`
	var row models.PendingPaymentRow
	if err := r.db.GetContext(ctx, &row, query, contractID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPendingPaymentNotFound
		}
		return nil, fmt.Errorf("report repository: get pending payment %w", err)
	}
	return &row, nil
}
