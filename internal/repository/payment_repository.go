package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/laburoapp/laburo-backend/internal/models"
)

// Ошибки уровня репозитория платежей.
var (
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrPaymentAlreadyPaid  = errors.New("payment already completed")
	ErrPaymentStateChanged = errors.New("payment state changed concurrently")
	ErrPayoutNotConfirmed  = errors.New("payment not confirmed for payout")
	ErrAmountMismatch      = errors.New("deposit amount does not match expected escrow amount")
	ErrNegativePayout      = errors.New("deductions exceed payout amount")
	ErrInsufficientFunds   = errors.New("insufficient funds")
)

// PaymentRepository — леджер эскроу. Единственное место, где строки
// balance_transactions пишутся вместе с изменением users.balance; обе
// записи всегда в одной транзакции под блокировкой строки пользователя.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository создаёт экземпляр репозитория.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `
	id, contract_id, amount, platform_fee, status, payment_type,
	paid_at, verified_by, verified_at, created_at, updated_at
`

// GetByID возвращает платёж по идентификатору.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payment repository: get by id %w", err)
	}
	return &payment, nil
}

// GetByContractID возвращает платёж контракта.
func (r *PaymentRepository) GetByContractID(ctx context.Context, contractID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE contract_id = $1 ORDER BY created_at DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &payment, query, contractID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payment repository: get by contract id %w", err)
	}
	return &payment, nil
}

// DepositToEscrow фиксирует поступление средств по платежу контракта.
// Повторное уведомление об уже удержанном платеже — no-op: шлюз может
// доставить событие больше одного раза.
func (r *PaymentRepository) DepositToEscrow(ctx context.Context, contractID uuid.UUID, amount float64) (*models.Payment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("payment repository: begin tx %w", err)
	}
	defer tx.Rollback()

	payment, err := lockPaymentByContract(ctx, tx, contractID)
	if err != nil {
		return nil, err
	}

	if payment.Status == models.PaymentStatusHeldEscrow {
		return payment, tx.Commit()
	}
	if !models.CanPaymentTransition(payment.Status, models.PaymentStatusHeldEscrow) {
		return nil, ErrPaymentStateChanged
	}
	if models.Round2(amount) != models.Round2(payment.Amount) {
		return nil, ErrAmountMismatch
	}

	updateQuery := `
		UPDATE payments
		SET status = $2, paid_at = NOW(), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + paymentColumns + `
	`
	var updated models.Payment
	if err := tx.QueryRowxContext(ctx, updateQuery, payment.ID, models.PaymentStatusHeldEscrow).StructScan(&updated); err != nil {
		return nil, fmt.Errorf("payment repository: hold escrow %w", err)
	}

	// Контракт становится готовым к принятию, как только эскроу пополнен.
	contractQuery := `
		UPDATE contracts
		SET payment_status = $2,
		    escrow_status = $3,
		    status = CASE WHEN status = $4 THEN $5 ELSE status END,
		    updated_at = NOW()
		WHERE id = $1
	`
	if _, err := tx.ExecContext(
		ctx, contractQuery, contractID,
		models.ContractPaymentStatusHeldEscrow, models.EscrowStatusHeldEscrow,
		models.ContractStatusPending, models.ContractStatusReady,
	); err != nil {
		return nil, fmt.Errorf("payment repository: mark contract funded %w", err)
	}

	event := &models.ContractEvent{
		ContractID: contractID,
		Action:     models.ContractEventStatusChanged,
		OldValue:   eventValue(map[string]interface{}{"payment_status": payment.Status}),
		NewValue:   eventValue(map[string]interface{}{"payment_status": models.PaymentStatusHeldEscrow}),
	}
	if err := insertContractEvent(ctx, tx, event); err != nil {
		return nil, err
	}

	return &updated, tx.Commit()
}

// VerifyForPayout — админский шлюз в очередь выплат: held_escrow ->
// confirmed_for_payout. Без этого шага платёж в отчёт не попадает.
func (r *PaymentRepository) VerifyForPayout(ctx context.Context, paymentID, adminID uuid.UUID) (*models.Payment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("payment repository: begin tx %w", err)
	}
	defer tx.Rollback()

	var payment models.Payment
	lockQuery := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &payment, lockQuery, paymentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payment repository: lock payment %w", err)
	}

	if payment.Status == models.PaymentStatusCompleted {
		return nil, ErrPaymentAlreadyPaid
	}
	if !models.CanPaymentTransition(payment.Status, models.PaymentStatusConfirmedForPayout) {
		return nil, ErrPaymentStateChanged
	}

	updateQuery := `
		UPDATE payments
		SET status = $2, verified_by = $3, verified_at = NOW(), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + paymentColumns + `
	`
	var updated models.Payment
	if err := tx.QueryRowxContext(ctx, updateQuery, paymentID, models.PaymentStatusConfirmedForPayout, adminID).StructScan(&updated); err != nil {
		return nil, fmt.Errorf("payment repository: verify for payout %w", err)
	}

	return &updated, tx.Commit()
}

// RecordPayoutParams — входные данные фиксации выплаты.
type RecordPayoutParams struct {
	ContractID uuid.UUID
	ProofURL   string
	Deductions models.PayoutDeductions
	AdminNotes *string
	AdminID    uuid.UUID
}

// RecordPayoutResult — итог фиксации выплаты.
type RecordPayoutResult struct {
	Payment     *models.Payment
	Transaction *models.BalanceTransaction
	NetAmount   float64
}

// RecordPayout — терминальный шаг эскроу: начисление исполнителю.
// Одна транзакция: контракт и платёж под FOR UPDATE, строка исполнителя
// под FOR UPDATE, запись в леджер и обновление баланса вместе.
// Повторный вызов по уже выплаченному контракту возвращает
// ErrPaymentAlreadyPaid без каких-либо изменений.
func (r *PaymentRepository) RecordPayout(ctx context.Context, params RecordPayoutParams) (*RecordPayoutResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("payment repository: begin tx %w", err)
	}
	defer tx.Rollback()

	contract, err := lockContract(ctx, tx, params.ContractID)
	if err != nil {
		return nil, err
	}

	payment, err := lockPaymentByContract(ctx, tx, params.ContractID)
	if err != nil {
		return nil, err
	}

	if payment.Status == models.PaymentStatusCompleted {
		return nil, ErrPaymentAlreadyPaid
	}
	if payment.Status != models.PaymentStatusConfirmedForPayout {
		return nil, ErrPayoutNotConfirmed
	}

	base := contract.PayoutBase()
	net := models.Round2(base - contract.Commission - params.Deductions.Total())
	if net < 0 {
		return nil, ErrNegativePayout
	}

	transaction, err := appendBalanceTransaction(ctx, tx, balanceChange{
		UserID:            contract.WorkerID,
		Type:              models.BalanceTransactionTypePayment,
		Amount:            net,
		RelatedContractID: &contract.ID,
		Description:       fmt.Sprintf("Выплата по контракту %s", contract.ContractNumber),
		Metadata: eventValue(map[string]interface{}{
			"bank_fee":   params.Deductions.BankFee,
			"tax_amount": params.Deductions.TaxAmount,
			"other_fee":  params.Deductions.OtherFee,
			"proof_url":  params.ProofURL,
		}),
	})
	if err != nil {
		return nil, err
	}

	completeQuery := `
		UPDATE payments
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + paymentColumns + `
	`
	var completed models.Payment
	if err := tx.QueryRowxContext(ctx, completeQuery, payment.ID, models.PaymentStatusCompleted).StructScan(&completed); err != nil {
		return nil, fmt.Errorf("payment repository: complete payment %w", err)
	}

	contractQuery := `
		UPDATE contracts
		SET payment_status = $2,
		    escrow_status = $3,
		    payment_processed_by = $4,
		    payment_processed_at = NOW(),
		    payment_proof_url = $5,
		    payment_admin_notes = $6,
		    updated_at = NOW()
		WHERE id = $1
	`
	if _, err := tx.ExecContext(
		ctx, contractQuery, contract.ID,
		models.ContractPaymentStatusCompleted, models.EscrowStatusReleased,
		params.AdminID, params.ProofURL, params.AdminNotes,
	); err != nil {
		return nil, fmt.Errorf("payment repository: finalize contract payment %w", err)
	}

	// История подтверждений только дополняется: прежние активные записи
	// гасятся, но не удаляются.
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE payment_proofs SET is_active = FALSE WHERE payment_id = $1 AND is_active = TRUE`,
		payment.ID,
	); err != nil {
		return nil, fmt.Errorf("payment repository: deactivate proofs %w", err)
	}
	proofQuery := `
		INSERT INTO payment_proofs (payment_id, file_url, status, uploaded_by, verified_by, verified_at, is_active)
		VALUES ($1, $2, $3, $4, $4, NOW(), TRUE)
	`
	if _, err := tx.ExecContext(ctx, proofQuery, payment.ID, params.ProofURL, models.PaymentProofStatusApproved, params.AdminID); err != nil {
		return nil, fmt.Errorf("payment repository: insert proof %w", err)
	}

	event := &models.ContractEvent{
		ContractID: contract.ID,
		ActorID:    &params.AdminID,
		Action:     models.ContractEventPayoutRecorded,
		NewValue: eventValue(map[string]interface{}{
			"net_amount": net,
			"bank_fee":   params.Deductions.BankFee,
			"tax_amount": params.Deductions.TaxAmount,
			"other_fee":  params.Deductions.OtherFee,
		}),
	}
	if err := insertContractEvent(ctx, tx, event); err != nil {
		return nil, err
	}

	result := &RecordPayoutResult{
		Payment:     &completed,
		Transaction: transaction,
		NetAmount:   net,
	}
	return result, tx.Commit()
}

// Refund возвращает эскроу клиенту: платёж -> refunded, клиенту
// начисляется сумма эскроу компенсирующей записью леджера.
// При cancelContract контракт в той же транзакции отменяется.
func (r *PaymentRepository) Refund(ctx context.Context, contractID uuid.UUID, reason string, cancelContract bool) (*models.Payment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("payment repository: begin tx %w", err)
	}
	defer tx.Rollback()

	contract, err := lockContract(ctx, tx, contractID)
	if err != nil {
		return nil, err
	}

	payment, err := lockPaymentByContract(ctx, tx, contractID)
	if err != nil {
		return nil, err
	}

	if !models.CanPaymentTransition(payment.Status, models.PaymentStatusRefunded) {
		return nil, ErrPaymentStateChanged
	}

	if _, err := appendBalanceTransaction(ctx, tx, balanceChange{
		UserID:            contract.ClientID,
		Type:              models.BalanceTransactionTypeRefund,
		Amount:            payment.Amount,
		RelatedContractID: &contract.ID,
		Description:       reason,
	}); err != nil {
		return nil, err
	}

	refundQuery := `
		UPDATE payments
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + paymentColumns + `
	`
	var refunded models.Payment
	if err := tx.QueryRowxContext(ctx, refundQuery, payment.ID, models.PaymentStatusRefunded).StructScan(&refunded); err != nil {
		return nil, fmt.Errorf("payment repository: refund payment %w", err)
	}

	contractQuery := `
		UPDATE contracts
		SET payment_status = $2, escrow_status = $3, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := tx.ExecContext(
		ctx, contractQuery, contract.ID,
		models.ContractPaymentStatusRefunded, models.EscrowStatusReleased,
	); err != nil {
		return nil, fmt.Errorf("payment repository: mark contract refunded %w", err)
	}

	if cancelContract {
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE contracts SET status = $2, updated_at = NOW() WHERE id = $1`,
			contract.ID, models.ContractStatusCancelled,
		); err != nil {
			return nil, fmt.Errorf("payment repository: cancel contract %w", err)
		}

		event := &models.ContractEvent{
			ContractID: contract.ID,
			Action:     models.ContractEventStatusChanged,
			OldValue:   eventValue(map[string]interface{}{"status": contract.Status}),
			NewValue:   eventValue(map[string]interface{}{"status": models.ContractStatusCancelled, "reason": reason}),
		}
		if err := insertContractEvent(ctx, tx, event); err != nil {
			return nil, err
		}
	}

	return &refunded, tx.Commit()
}

// FixStatus выравнивает денормализованные статусы контракта по платежу
// после частичного сбоя. Применяются только недостающие эффекты;
// завершённые данные не трогаются. Возвращает список исправлений.
func (r *PaymentRepository) FixStatus(ctx context.Context, contractID, adminID uuid.UUID) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("payment repository: begin tx %w", err)
	}
	defer tx.Rollback()

	contract, err := lockContract(ctx, tx, contractID)
	if err != nil {
		return nil, err
	}

	payment, err := lockPaymentByContract(ctx, tx, contractID)
	if err != nil {
		return nil, err
	}

	var changed []string

	switch payment.Status {
	case models.PaymentStatusHeldEscrow, models.PaymentStatusConfirmedForPayout:
		if contract.PaymentStatus != models.ContractPaymentStatusHeldEscrow {
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE contracts SET payment_status = $2, escrow_status = $3, updated_at = NOW() WHERE id = $1`,
				contractID, models.ContractPaymentStatusHeldEscrow, models.EscrowStatusHeldEscrow,
			); err != nil {
				return nil, fmt.Errorf("payment repository: fix payment status %w", err)
			}
			changed = append(changed, "payment_status")
		}
		if contract.Status == models.ContractStatusPending {
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE contracts SET status = $2, updated_at = NOW() WHERE id = $1`,
				contractID, models.ContractStatusReady,
			); err != nil {
				return nil, fmt.Errorf("payment repository: fix contract status %w", err)
			}
			changed = append(changed, "status")
		}
	case models.PaymentStatusCompleted:
		if contract.PaymentStatus != models.ContractPaymentStatusCompleted {
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE contracts SET payment_status = $2, escrow_status = $3, updated_at = NOW() WHERE id = $1`,
				contractID, models.ContractPaymentStatusCompleted, models.EscrowStatusReleased,
			); err != nil {
				return nil, fmt.Errorf("payment repository: fix payment status %w", err)
			}
			changed = append(changed, "payment_status")
		}

		// Выплаченный платёж без строки леджера: восстанавливаем
		// начисление исполнителю.
		var credited bool
		creditQuery := `
			SELECT EXISTS (
				SELECT 1 FROM balance_transactions
				WHERE related_contract_id = $1 AND type = $2 AND status = $3
			)
		`
		if err := tx.GetContext(ctx, &credited, creditQuery, contractID, models.BalanceTransactionTypePayment, models.BalanceTransactionStatusCompleted); err != nil {
			return nil, fmt.Errorf("payment repository: check ledger %w", err)
		}
		if !credited {
			net := models.Round2(contract.PayoutBase() - contract.Commission)
			if _, err := appendBalanceTransaction(ctx, tx, balanceChange{
				UserID:            contract.WorkerID,
				Type:              models.BalanceTransactionTypePayment,
				Amount:            net,
				RelatedContractID: &contract.ID,
				Description:       fmt.Sprintf("Восстановленная выплата по контракту %s", contract.ContractNumber),
				Metadata:          eventValue(map[string]interface{}{"repaired_by": adminID.String()}),
			}); err != nil {
				return nil, err
			}
			changed = append(changed, "worker_credit")
		}
	}

	if len(changed) == 0 {
		return changed, nil
	}

	event := &models.ContractEvent{
		ContractID: contractID,
		ActorID:    &adminID,
		Action:     models.ContractEventStatusRepaired,
		NewValue:   eventValue(map[string]interface{}{"changed": changed}),
	}
	if err := insertContractEvent(ctx, tx, event); err != nil {
		return nil, err
	}

	return changed, tx.Commit()
}

// AdjustBalance — ручная корректировка баланса администратором
// (бонус или знаковая поправка) с обязательной записью в леджер.
func (r *PaymentRepository) AdjustBalance(ctx context.Context, userID uuid.UUID, amount float64, txType, reason string, adminID uuid.UUID) (*models.BalanceTransaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("payment repository: begin tx %w", err)
	}
	defer tx.Rollback()

	transaction, err := appendBalanceTransaction(ctx, tx, balanceChange{
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Description: reason,
		Metadata:    eventValue(map[string]interface{}{"admin_id": adminID.String()}),
	})
	if err != nil {
		return nil, err
	}

	return transaction, tx.Commit()
}

// BalanceSummary — текущий баланс и заявленные, но ещё не одобренные выводы.
type BalanceSummary struct {
	Balance            float64 `db:"balance" json:"balance"`
	PendingWithdrawals float64 `db:"pending_withdrawals" json:"pending_withdrawals"`
}

// GetBalanceSummary возвращает баланс пользователя с учётом ожидающих заявок.
func (r *PaymentRepository) GetBalanceSummary(ctx context.Context, userID uuid.UUID) (*BalanceSummary, error) {
	var summary BalanceSummary
	query := `
		SELECT u.balance,
		       COALESCE((
		           SELECT SUM(w.amount) FROM withdrawal_requests w
		           WHERE w.user_id = u.id AND w.status = 'pending'
		       ), 0) AS pending_withdrawals
		FROM users u
		WHERE u.id = $1
	`
	if err := r.db.GetContext(ctx, &summary, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("payment repository: get balance summary %w", err)
	}
	return &summary, nil
}

// ListTransactions возвращает страницу леджера пользователя.
func (r *PaymentRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.BalanceTransaction, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM balance_transactions WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("payment repository: count transactions %w", err)
	}

	query := `
		SELECT id, user_id, type, amount, balance_before, balance_after, status,
		       related_contract_id, description, metadata, created_at
		FROM balance_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	var transactions []models.BalanceTransaction
	if err := r.db.SelectContext(ctx, &transactions, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("payment repository: list transactions %w", err)
	}

	return transactions, total, nil
}

// ListProofs возвращает историю подтверждений платежа, включая погашенные.
func (r *PaymentRepository) ListProofs(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentProof, error) {
	query := `
		SELECT id, payment_id, file_url, status, uploaded_by, uploaded_at, verified_by, verified_at, is_active
		FROM payment_proofs
		WHERE payment_id = $1
		ORDER BY uploaded_at DESC
	`
	var proofs []models.PaymentProof
	if err := r.db.SelectContext(ctx, &proofs, query, paymentID); err != nil {
		return nil, fmt.Errorf("payment repository: list proofs %w", err)
	}
	return proofs, nil
}

type balanceChange struct {
	UserID            uuid.UUID
	Type              string
	Amount            float64
	RelatedContractID *uuid.UUID
	Description       string
	Metadata          json.RawMessage
}

// appendBalanceTransaction — единственный путь изменения users.balance.
// Строка пользователя блокируется FOR UPDATE, balance_before/after
// берутся из неё же, леджер и баланс пишутся одной транзакцией.
func appendBalanceTransaction(ctx context.Context, tx *sqlx.Tx, change balanceChange) (*models.BalanceTransaction, error) {
	var balanceBefore float64
	if err := tx.GetContext(ctx, &balanceBefore, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`, change.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("payment repository: lock user balance %w", err)
	}

	balanceAfter := models.Round2(balanceBefore + change.Amount)
	if balanceAfter < 0 {
		return nil, ErrInsufficientFunds
	}

	var description *string
	if change.Description != "" {
		description = &change.Description
	}

	insertQuery := `
		INSERT INTO balance_transactions (user_id, type, amount, balance_before, balance_after, status, related_contract_id, description, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, user_id, type, amount, balance_before, balance_after, status, related_contract_id, description, metadata, created_at
	`
	var transaction models.BalanceTransaction
	if err := tx.QueryRowxContext(
		ctx, insertQuery,
		change.UserID, change.Type, change.Amount, balanceBefore, balanceAfter,
		models.BalanceTransactionStatusCompleted, change.RelatedContractID, description, change.Metadata,
	).StructScan(&transaction); err != nil {
		return nil, fmt.Errorf("payment repository: insert balance transaction %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE users SET balance = $2, updated_at = NOW() WHERE id = $1`,
		change.UserID, balanceAfter,
	); err != nil {
		return nil, fmt.Errorf("payment repository: update balance %w", err)
	}

	return &transaction, nil
}

func lockPaymentByContract(ctx context.Context, tx *sqlx.Tx, contractID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE contract_id = $1 ORDER BY created_at DESC LIMIT 1 FOR UPDATE`
	if err := tx.GetContext(ctx, &payment, query, contractID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payment repository: lock payment %w", err)
	}
	return &payment, nil
}
