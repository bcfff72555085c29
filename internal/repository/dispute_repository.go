package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/laburoapp/laburo-backend/internal/models"
)

// Ошибки уровня репозитория споров.
var (
	ErrDisputeNotFound     = errors.New("dispute not found")
	ErrDisputeAlreadyOpen  = errors.New("contract already has an active dispute")
	ErrDisputeStateChanged = errors.New("dispute state changed concurrently")
	ErrNoEscrowHeld        = errors.New("no escrow held for this contract")
)

// DisputeRepository отвечает за споры, их переписку и денежные эффекты
// решений. Открытие спора и решение — транзакции, затрагивающие
// контракт, платёж и леджер одновременно.
type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

const disputeColumns = `
	id, contract_id, initiator_id, defendant_id, category, reason,
	detailed_description, evidence, status, resolution, resolved_by,
	created_at, resolved_at
`

// Open открывает спор и замораживает контракт с платежом в той же
// транзакции. На контракт допускается один незакрытый спор.
func (r *DisputeRepository) Open(ctx context.Context, dispute *models.Dispute) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dispute repository: begin tx %w", err)
	}
	defer tx.Rollback()

	contract, err := lockContract(ctx, tx, dispute.ContractID)
	if err != nil {
		return err
	}

	var active bool
	activeQuery := `
		SELECT EXISTS (
			SELECT 1 FROM disputes
			WHERE contract_id = $1 AND status IN ('open', 'in_review', 'awaiting_info')
		)
	`
	if err := tx.GetContext(ctx, &active, activeQuery, dispute.ContractID); err != nil {
		return fmt.Errorf("dispute repository: check active dispute %w", err)
	}
	if active {
		return ErrDisputeAlreadyOpen
	}

	if !models.CanContractTransition(contract.Status, models.ContractStatusDisputed) {
		return ErrContractStateChanged
	}

	dispute.Status = models.DisputeStatusOpen
	insertQuery := `
		INSERT INTO disputes (contract_id, initiator_id, defendant_id, category, reason, detailed_description, evidence, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	if err := tx.QueryRowxContext(
		ctx, insertQuery,
		dispute.ContractID, dispute.InitiatorID, dispute.DefendantID,
		dispute.Category, dispute.Reason, dispute.DetailedDescription,
		dispute.Evidence, dispute.Status,
	).Scan(&dispute.ID, &dispute.CreatedAt); err != nil {
		return fmt.Errorf("dispute repository: insert dispute %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE contracts SET status = $2, payment_status = $3, updated_at = NOW() WHERE id = $1`,
		contract.ID, models.ContractStatusDisputed, models.ContractPaymentStatusDisputed,
	); err != nil {
		return fmt.Errorf("dispute repository: freeze contract %w", err)
	}

	// Непрофинансированный платёж остаётся pending: замораживать нечего.
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE payments SET status = $2, updated_at = NOW()
		 WHERE contract_id = $1 AND status IN ($3, $4)`,
		contract.ID, models.PaymentStatusDisputed,
		models.PaymentStatusHeldEscrow, models.PaymentStatusConfirmedForPayout,
	); err != nil {
		return fmt.Errorf("dispute repository: freeze payment %w", err)
	}

	event := &models.ContractEvent{
		ContractID: contract.ID,
		ActorID:    &dispute.InitiatorID,
		Action:     models.ContractEventDisputeOpened,
		OldValue:   eventValue(map[string]interface{}{"status": contract.Status}),
		NewValue:   eventValue(map[string]interface{}{"status": models.ContractStatusDisputed, "category": dispute.Category}),
	}
	if err := insertContractEvent(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID возвращает спор по идентификатору.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`
	if err := r.db.GetContext(ctx, &dispute, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get by id %w", err)
	}
	return &dispute, nil
}

// GetByContractID возвращает последний спор контракта.
func (r *DisputeRepository) GetByContractID(ctx context.Context, contractID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE contract_id = $1 ORDER BY created_at DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &dispute, query, contractID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get by contract id %w", err)
	}
	return &dispute, nil
}

// ListByUser возвращает споры, в которых пользователь участвует.
func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	query := `
		SELECT ` + disputeColumns + `
		FROM disputes
		WHERE initiator_id = $1 OR defendant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	var disputes []models.Dispute
	if err := r.db.SelectContext(ctx, &disputes, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("dispute repository: list by user %w", err)
	}
	return disputes, nil
}

// List возвращает споры для админской очереди, опционально по статусу.
func (r *DisputeRepository) List(ctx context.Context, status string, limit, offset int) ([]models.Dispute, int, error) {
	countQuery := `SELECT COUNT(*) FROM disputes WHERE 1=1`
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE 1=1`
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
		return nil, 0, fmt.Errorf("dispute repository: count %w", err)
	}

	query += fmt.Sprintf(" ORDER BY created_at LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	var disputes []models.Dispute
	if err := r.db.SelectContext(ctx, &disputes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("dispute repository: list %w", err)
	}

	return disputes, total, nil
}

// AddMessage добавляет сообщение в тред спора.
func (r *DisputeRepository) AddMessage(ctx context.Context, msg *models.DisputeMessage) error {
	query := `
		INSERT INTO dispute_messages (dispute_id, sender_id, message, attachments, is_admin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		msg.DisputeID, msg.SenderID, msg.Message, msg.Attachments, msg.IsAdmin,
	).Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return fmt.Errorf("dispute repository: add message %w", err)
	}
	return nil
}

// ListMessages возвращает переписку спора в хронологическом порядке.
func (r *DisputeRepository) ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	query := `
		SELECT id, dispute_id, sender_id, message, attachments, is_admin, created_at
		FROM dispute_messages
		WHERE dispute_id = $1
		ORDER BY created_at
	`
	var messages []models.DisputeMessage
	if err := r.db.SelectContext(ctx, &messages, query, disputeID); err != nil {
		return nil, fmt.Errorf("dispute repository: list messages %w", err)
	}
	return messages, nil
}

// AppendEvidence дополняет список доказательств спора.
func (r *DisputeRepository) AppendEvidence(ctx context.Context, disputeID uuid.UUID, urls []string) (*models.Dispute, error) {
	query := `
		UPDATE disputes
		SET evidence = evidence || $2
		WHERE id = $1
		RETURNING ` + disputeColumns + `
	`
	var dispute models.Dispute
	if err := r.db.QueryRowxContext(ctx, query, disputeID, pq.Array(urls)).StructScan(&dispute); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: append evidence %w", err)
	}
	return &dispute, nil
}

// UpdateStatus переводит спор между промежуточными статусами рассмотрения.
func (r *DisputeRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to string) (*models.Dispute, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: begin tx %w", err)
	}
	defer tx.Rollback()

	dispute, err := lockDispute(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanDisputeTransition(dispute.Status, to) {
		return nil, ErrDisputeStateChanged
	}

	query := `
		UPDATE disputes
		SET status = $2
		WHERE id = $1
		RETURNING ` + disputeColumns + `
	`
	var updated models.Dispute
	if err := tx.QueryRowxContext(ctx, query, id, to).StructScan(&updated); err != nil {
		return nil, fmt.Errorf("dispute repository: update status %w", err)
	}

	return &updated, tx.Commit()
}

// ResolveDisputeParams — входные данные решения спора.
type ResolveDisputeParams struct {
	DisputeID   uuid.UUID
	AdminID     uuid.UUID
	Outcome     string
	Resolution  string
	WorkerRatio *float64
}

// ResolveDisputeResult — итог решения: спор, контракт и денежные записи.
type ResolveDisputeResult struct {
	Dispute      *models.Dispute
	Contract     *models.Contract
	WorkerCredit *models.BalanceTransaction
	ClientRefund *models.BalanceTransaction
}

// Resolve закрывает спор с одним из трёх исходов. Все эффекты — статусы
// спора, контракта, платежа и записи леджера — применяются одной
// транзакцией, после чего контракт становится неизменяемым.
func (r *DisputeRepository) Resolve(ctx context.Context, params ResolveDisputeParams) (*ResolveDisputeResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: begin tx %w", err)
	}
	defer tx.Rollback()

	dispute, err := lockDispute(ctx, tx, params.DisputeID)
	if err != nil {
		return nil, err
	}

	targetStatus, ok := map[string]string{
		models.DisputeOutcomeReleaseToWorker: models.DisputeStatusResolvedReleased,
		models.DisputeOutcomeRefundToClient:  models.DisputeStatusResolvedRefunded,
		models.DisputeOutcomePartialSplit:    models.DisputeStatusResolvedPartial,
	}[params.Outcome]
	if !ok {
		return nil, fmt.Errorf("dispute repository: unknown outcome %q", params.Outcome)
	}
	if !models.CanDisputeTransition(dispute.Status, targetStatus) {
		return nil, ErrDisputeStateChanged
	}

	contract, err := lockContract(ctx, tx, dispute.ContractID)
	if err != nil {
		return nil, err
	}

	payment, err := lockPaymentByContract(ctx, tx, dispute.ContractID)
	if err != nil {
		return nil, err
	}
	escrowHeld := payment.Status == models.PaymentStatusDisputed

	result := &ResolveDisputeResult{}

	switch params.Outcome {
	case models.DisputeOutcomeReleaseToWorker:
		// Выплата исполнителю идёт обычным маршрутом: платёж возвращается
		// в очередь выплат и ждёт админской фиксации.
		contractStatus := models.ContractStatusCompleted
		if escrowHeld {
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE payments SET status = $2, updated_at = NOW() WHERE id = $1`,
				payment.ID, models.PaymentStatusConfirmedForPayout,
			); err != nil {
				return nil, fmt.Errorf("dispute repository: release payment %w", err)
			}
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE contracts SET status = $2, payment_status = $3, updated_at = NOW() WHERE id = $1`,
				contract.ID, contractStatus, models.ContractPaymentStatusHeldEscrow,
			); err != nil {
				return nil, fmt.Errorf("dispute repository: release contract %w", err)
			}
		} else {
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE contracts SET status = $2, updated_at = NOW() WHERE id = $1`,
				contract.ID, contractStatus,
			); err != nil {
				return nil, fmt.Errorf("dispute repository: release contract %w", err)
			}
		}

	case models.DisputeOutcomeRefundToClient:
		if escrowHeld {
			refund, err := appendBalanceTransaction(ctx, tx, balanceChange{
				UserID:            contract.ClientID,
				Type:              models.BalanceTransactionTypeRefund,
				Amount:            payment.Amount,
				RelatedContractID: &contract.ID,
				Description:       fmt.Sprintf("Возврат по спору %s", dispute.ID),
			})
			if err != nil {
				return nil, err
			}
			result.ClientRefund = refund

			if _, err := tx.ExecContext(
				ctx,
				`UPDATE payments SET status = $2, updated_at = NOW() WHERE id = $1`,
				payment.ID, models.PaymentStatusRefunded,
			); err != nil {
				return nil, fmt.Errorf("dispute repository: refund payment %w", err)
			}
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE contracts SET status = $2, payment_status = $3, escrow_status = $4, updated_at = NOW() WHERE id = $1`,
			contract.ID, models.ContractStatusCancelled,
			models.ContractPaymentStatusRefunded, models.EscrowStatusReleased,
		); err != nil {
			return nil, fmt.Errorf("dispute repository: cancel contract %w", err)
		}

	case models.DisputeOutcomePartialSplit:
		if !escrowHeld {
			return nil, ErrNoEscrowHeld
		}
		if params.WorkerRatio == nil || *params.WorkerRatio <= 0 || *params.WorkerRatio >= 1 {
			return nil, fmt.Errorf("dispute repository: worker ratio out of range")
		}

		workerShare := models.Round2(payment.Amount * *params.WorkerRatio)
		clientShare := models.Round2(payment.Amount - workerShare)

		credit, err := appendBalanceTransaction(ctx, tx, balanceChange{
			UserID:            contract.WorkerID,
			Type:              models.BalanceTransactionTypePayment,
			Amount:            workerShare,
			RelatedContractID: &contract.ID,
			Description:       fmt.Sprintf("Частичная выплата по спору %s", dispute.ID),
			Metadata:          eventValue(map[string]interface{}{"worker_ratio": *params.WorkerRatio}),
		})
		if err != nil {
			return nil, err
		}
		result.WorkerCredit = credit

		refund, err := appendBalanceTransaction(ctx, tx, balanceChange{
			UserID:            contract.ClientID,
			Type:              models.BalanceTransactionTypeRefund,
			Amount:            clientShare,
			RelatedContractID: &contract.ID,
			Description:       fmt.Sprintf("Частичный возврат по спору %s", dispute.ID),
			Metadata:          eventValue(map[string]interface{}{"worker_ratio": *params.WorkerRatio}),
		})
		if err != nil {
			return nil, err
		}
		result.ClientRefund = refund

		if _, err := tx.ExecContext(
			ctx,
			`UPDATE payments SET status = $2, updated_at = NOW() WHERE id = $1`,
			payment.ID, models.PaymentStatusCompleted,
		); err != nil {
			return nil, fmt.Errorf("dispute repository: complete payment %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE contracts
			 SET status = $2, payment_status = $3, escrow_status = $4,
			     payment_processed_by = $5, payment_processed_at = NOW(), updated_at = NOW()
			 WHERE id = $1`,
			contract.ID, models.ContractStatusCompleted,
			models.ContractPaymentStatusCompleted, models.EscrowStatusReleased,
			params.AdminID,
		); err != nil {
			return nil, fmt.Errorf("dispute repository: complete contract %w", err)
		}
	}

	resolveQuery := `
		UPDATE disputes
		SET status = $2, resolution = $3, resolved_by = $4, resolved_at = NOW()
		WHERE id = $1
		RETURNING ` + disputeColumns + `
	`
	var resolved models.Dispute
	if err := tx.QueryRowxContext(ctx, resolveQuery, dispute.ID, targetStatus, params.Resolution, params.AdminID).StructScan(&resolved); err != nil {
		return nil, fmt.Errorf("dispute repository: resolve %w", err)
	}
	result.Dispute = &resolved

	updatedContract, err := getContractTx(ctx, tx, contract.ID)
	if err != nil {
		return nil, err
	}
	result.Contract = updatedContract

	// Завершённый через спор контракт закрывает задание наравне с обычным.
	if updatedContract.Status == models.ContractStatusCompleted {
		var active int
		activeQuery := `
			SELECT COUNT(*) FROM contracts
			WHERE job_id = $1 AND status NOT IN ('completed', 'cancelled')
		`
		if err := tx.GetContext(ctx, &active, activeQuery, updatedContract.JobID); err != nil {
			return nil, fmt.Errorf("dispute repository: count active contracts %w", err)
		}
		if active == 0 {
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE jobs SET status = $2, updated_at = NOW() WHERE id = $1`,
				updatedContract.JobID, models.JobStatusCompleted,
			); err != nil {
				return nil, fmt.Errorf("dispute repository: complete job %w", err)
			}
		}
	}

	event := &models.ContractEvent{
		ContractID: contract.ID,
		ActorID:    &params.AdminID,
		Action:     models.ContractEventDisputeResolved,
		OldValue:   eventValue(map[string]interface{}{"status": contract.Status}),
		NewValue: eventValue(map[string]interface{}{
			"status":  updatedContract.Status,
			"outcome": params.Outcome,
		}),
	}
	if err := insertContractEvent(ctx, tx, event); err != nil {
		return nil, err
	}

	return result, tx.Commit()
}

func lockDispute(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &dispute, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: lock dispute %w", err)
	}
	return &dispute, nil
}

func getContractTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`
	if err := tx.GetContext(ctx, &contract, query, id); err != nil {
		return nil, fmt.Errorf("dispute repository: reread contract %w", err)
	}
	return &contract, nil
}
