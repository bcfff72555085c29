package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/laburoapp/laburo-backend/internal/models"
)

// Ошибки уровня репозитория контрактов.
var (
	ErrContractNotFound      = errors.New("contract not found")
	ErrContractStateChanged  = errors.New("contract state changed concurrently")
	ErrExtensionPending      = errors.New("extension request already pending")
	ErrExtensionNotRequested = errors.New("no pending extension request")
	ErrExtensionAlreadyUsed  = errors.New("contract has already been extended")
)

// ContractRepository отвечает за контракты и журнал их изменений.
// Все мультисущностные записи (контракт + задание + платёж + журнал)
// выполняются одной транзакцией.
type ContractRepository struct {
	db *sqlx.DB
}

// NewContractRepository создаёт новый экземпляр.
func NewContractRepository(db *sqlx.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

const contractColumns = `
	id, contract_number, job_id, client_id, worker_id, proposal_id,
	price, commission, total_price, allocated_amount, percentage_of_budget,
	status, payment_status, escrow_status,
	client_confirmed, doer_confirmed, client_confirmed_at, doer_confirmed_at,
	end_date, has_been_extended, extension_days, extension_amount, original_end_date,
	payment_processed_by, payment_processed_at, payment_proof_url, payment_admin_notes,
	created_at, updated_at
`

// GetByID возвращает контракт по идентификатору.
func (r *ContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`
	if err := r.db.GetContext(ctx, &contract, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("contract repository: get by id %w", err)
	}
	return &contract, nil
}

// ListByUser возвращает контракты, где пользователь выступает любой из сторон.
func (r *ContractRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Contract, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM contracts WHERE client_id = $1 OR worker_id = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("contract repository: count by user %w", err)
	}

	query := `
		SELECT ` + contractColumns + `
		FROM contracts
		WHERE client_id = $1 OR worker_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	var contracts []models.Contract
	if err := r.db.SelectContext(ctx, &contracts, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("contract repository: list by user %w", err)
	}

	return contracts, total, nil
}

// ListByJob возвращает контракты задания.
func (r *ContractRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE job_id = $1 ORDER BY created_at`
	var contracts []models.Contract
	if err := r.db.SelectContext(ctx, &contracts, query, jobID); err != nil {
		return nil, fmt.Errorf("contract repository: list by job %w", err)
	}
	return contracts, nil
}

// CreateContractParams — входные данные создания контракта.
type CreateContractParams struct {
	Proposal       *models.Proposal
	ClientID       uuid.UUID
	ProposedPrice  *float64
	CommissionRate float64
	EndDate        *time.Time
}

// CreateWithAllocation создаёт контракт по одобренному отклику.
// Критическая секция: строка задания блокируется FOR UPDATE, агрегаты
// по активным контрактам читаются и распределение считается под этой
// блокировкой, поэтому сумма долей не превышает бюджет при
// параллельном найме.
func (r *ContractRepository) CreateWithAllocation(ctx context.Context, params CreateContractParams) (*models.Contract, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("contract repository: begin tx %w", err)
	}
	defer tx.Rollback()

	var job models.Job
	jobQuery := `
		SELECT id, client_id, title, description, budget, status, max_workers, created_at, updated_at
		FROM jobs
		WHERE id = $1
		FOR UPDATE
	`
	if err := tx.GetContext(ctx, &job, jobQuery, params.Proposal.JobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("contract repository: lock job %w", err)
	}

	var agg struct {
		AllocatedTotal  float64 `db:"allocated_total"`
		WorkersAssigned int     `db:"workers_assigned"`
	}
	aggQuery := `
		SELECT COALESCE(SUM(COALESCE(allocated_amount, price)), 0) AS allocated_total,
		       COUNT(*) AS workers_assigned
		FROM contracts
		WHERE job_id = $1 AND status <> 'cancelled'
	`
	if err := tx.GetContext(ctx, &agg, aggQuery, job.ID); err != nil {
		return nil, fmt.Errorf("contract repository: job aggregates %w", err)
	}

	allocation, err := models.Allocate(job.Budget, agg.AllocatedTotal, job.MaxWorkers, agg.WorkersAssigned, params.ProposedPrice)
	if err != nil {
		return nil, err
	}

	commission := models.Round2(allocation.AllocatedAmount * params.CommissionRate)
	totalPrice := models.Round2(allocation.AllocatedAmount + commission)

	contract := models.Contract{
		JobID:              job.ID,
		ClientID:           params.ClientID,
		WorkerID:           params.Proposal.WorkerID,
		ProposalID:         params.Proposal.ID,
		Price:              allocation.AllocatedAmount,
		Commission:         commission,
		TotalPrice:         totalPrice,
		AllocatedAmount:    &allocation.AllocatedAmount,
		PercentageOfBudget: &allocation.PercentageOfBudget,
		Status:             models.ContractStatusPending,
		PaymentStatus:      models.ContractPaymentStatusPending,
		EscrowStatus:       models.EscrowStatusPending,
		EndDate:            params.EndDate,
	}

	insertQuery := `
		INSERT INTO contracts (job_id, client_id, worker_id, proposal_id,
			price, commission, total_price, allocated_amount, percentage_of_budget,
			status, payment_status, escrow_status, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, contract_number, created_at, updated_at
	`
	if err := tx.QueryRowxContext(
		ctx, insertQuery,
		contract.JobID, contract.ClientID, contract.WorkerID, contract.ProposalID,
		contract.Price, contract.Commission, contract.TotalPrice,
		contract.AllocatedAmount, contract.PercentageOfBudget,
		contract.Status, contract.PaymentStatus, contract.EscrowStatus, contract.EndDate,
	).Scan(&contract.ID, &contract.ContractNumber, &contract.CreatedAt, &contract.UpdatedAt); err != nil {
		return nil, fmt.Errorf("contract repository: insert contract %w", err)
	}

	paymentQuery := `
		INSERT INTO payments (contract_id, amount, platform_fee, status, payment_type)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.ExecContext(
		ctx, paymentQuery,
		contract.ID, allocation.AllocatedAmount, commission,
		models.PaymentStatusPending, models.PaymentTypeContractPayment,
	); err != nil {
		return nil, fmt.Errorf("contract repository: insert payment %w", err)
	}

	// Первый контракт переводит задание в работу.
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE jobs SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3`,
		job.ID, models.JobStatusInProgress, models.JobStatusOpen,
	); err != nil {
		return nil, fmt.Errorf("contract repository: mark job in progress %w", err)
	}

	event := &models.ContractEvent{
		ContractID: contract.ID,
		ActorID:    &params.ClientID,
		Action:     models.ContractEventCreated,
		NewValue: eventValue(map[string]interface{}{
			"status":               contract.Status,
			"allocated_amount":     allocation.AllocatedAmount,
			"percentage_of_budget": allocation.PercentageOfBudget,
		}),
	}
	if err := insertContractEvent(ctx, tx, event); err != nil {
		return nil, err
	}

	return &contract, tx.Commit()
}

// UpdateStatus переводит контракт из ожидаемого статуса в новый.
// Сравнение со старым статусом в WHERE отсекает параллельные переходы.
func (r *ContractRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, actorID *uuid.UUID) (*models.Contract, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("contract repository: begin tx %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE contracts
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + contractColumns + `
	`

	var contract models.Contract
	if err := tx.QueryRowxContext(ctx, query, id, from, to).StructScan(&contract); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.classifyMissedUpdate(ctx, id)
		}
		return nil, fmt.Errorf("contract repository: update status %w", err)
	}

	event := &models.ContractEvent{
		ContractID: contract.ID,
		ActorID:    actorID,
		Action:     models.ContractEventStatusChanged,
		OldValue:   eventValue(map[string]interface{}{"status": from}),
		NewValue:   eventValue(map[string]interface{}{"status": to}),
	}
	if err := insertContractEvent(ctx, tx, event); err != nil {
		return nil, err
	}

	return &contract, tx.Commit()
}

// Accept фиксирует принятие контракта исполнителем: профинансированный
// контракт проходит ready -> accepted -> in_progress одной транзакцией.
func (r *ContractRepository) Accept(ctx context.Context, id uuid.UUID, workerID uuid.UUID) (*models.Contract, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("contract repository: begin tx %w", err)
	}
	defer tx.Rollback()

	contract, err := lockContract(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if contract.Status != models.ContractStatusReady {
		return nil, ErrContractStateChanged
	}

	query := `
		UPDATE contracts
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + contractColumns + `
	`
	var updated models.Contract
	if err := tx.QueryRowxContext(ctx, query, id, models.ContractStatusInProgress).StructScan(&updated); err != nil {
		return nil, fmt.Errorf("contract repository: accept %w", err)
	}

	for _, step := range [][2]string{
		{models.ContractStatusReady, models.ContractStatusAccepted},
		{models.ContractStatusAccepted, models.ContractStatusInProgress},
	} {
		event := &models.ContractEvent{
			ContractID: id,
			ActorID:    &workerID,
			Action:     models.ContractEventStatusChanged,
			OldValue:   eventValue(map[string]interface{}{"status": step[0]}),
			NewValue:   eventValue(map[string]interface{}{"status": step[1]}),
		}
		if err := insertContractEvent(ctx, tx, event); err != nil {
			return nil, err
		}
	}

	return &updated, tx.Commit()
}

// Confirm отмечает подтверждение завершения одной из сторон.
// Строка контракта блокируется FOR UPDATE, поэтому момент «обе стороны
// подтвердили» фиксируется ровно один раз; повторное подтверждение той
// же стороны — no-op. Возвращает признак совершившегося завершения.
func (r *ContractRepository) Confirm(ctx context.Context, id uuid.UUID, role string, actorID uuid.UUID) (*models.Contract, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("contract repository: begin tx %w", err)
	}
	defer tx.Rollback()

	contract, err := lockContract(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}

	alreadyConfirmed := (role == models.RoleClient && contract.ClientConfirmed) ||
		(role == models.RoleWorker && contract.DoerConfirmed)

	// Повторное подтверждение уже завершённого контракта той же стороной
	// считается успехом без изменений.
	if contract.Status == models.ContractStatusCompleted && alreadyConfirmed {
		return contract, false, tx.Commit()
	}
	if contract.Status != models.ContractStatusAwaitingConfirmation {
		return nil, false, ErrContractStateChanged
	}
	if alreadyConfirmed {
		return contract, false, tx.Commit()
	}

	column := "doer_confirmed"
	tsColumn := "doer_confirmed_at"
	if role == models.RoleClient {
		column = "client_confirmed"
		tsColumn = "client_confirmed_at"
	}

	query := fmt.Sprintf(`
		UPDATE contracts
		SET %s = TRUE, %s = NOW(), updated_at = NOW()
		WHERE id = $1
		RETURNING `+contractColumns, column, tsColumn)

	var updated models.Contract
	if err := tx.QueryRowxContext(ctx, query, id).StructScan(&updated); err != nil {
		return nil, false, fmt.Errorf("contract repository: confirm %w", err)
	}

	completedNow := updated.ClientConfirmed && updated.DoerConfirmed
	if completedNow {
		completeQuery := `
			UPDATE contracts
			SET status = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING ` + contractColumns + `
		`
		if err := tx.QueryRowxContext(ctx, completeQuery, id, models.ContractStatusCompleted).StructScan(&updated); err != nil {
			return nil, false, fmt.Errorf("contract repository: complete %w", err)
		}

		event := &models.ContractEvent{
			ContractID: id,
			ActorID:    &actorID,
			Action:     models.ContractEventStatusChanged,
			OldValue:   eventValue(map[string]interface{}{"status": models.ContractStatusAwaitingConfirmation}),
			NewValue:   eventValue(map[string]interface{}{"status": models.ContractStatusCompleted}),
		}
		if err := insertContractEvent(ctx, tx, event); err != nil {
			return nil, false, err
		}

		// Задание завершается вместе с последним контрактом.
		var active int
		activeQuery := `
			SELECT COUNT(*) FROM contracts
			WHERE job_id = $1 AND status NOT IN ('completed', 'cancelled')
		`
		if err := tx.GetContext(ctx, &active, activeQuery, updated.JobID); err != nil {
			return nil, false, fmt.Errorf("contract repository: count active contracts %w", err)
		}
		if active == 0 {
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE jobs SET status = $2, updated_at = NOW() WHERE id = $1`,
				updated.JobID, models.JobStatusCompleted,
			); err != nil {
				return nil, false, fmt.Errorf("contract repository: complete job %w", err)
			}
		}
	}

	return &updated, completedNow, tx.Commit()
}

// RequestExtension сохраняет запрос продления срока контракта.
// Контракт продлевается не более одного раза.
func (r *ContractRepository) RequestExtension(ctx context.Context, id uuid.UUID, workerID uuid.UUID, days int, amount *float64) (*models.Contract, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("contract repository: begin tx %w", err)
	}
	defer tx.Rollback()

	contract, err := lockContract(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if contract.HasBeenExtended {
		return nil, ErrExtensionAlreadyUsed
	}
	if contract.ExtensionDays != nil {
		return nil, ErrExtensionPending
	}

	query := `
		UPDATE contracts
		SET extension_days = $2, extension_amount = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + contractColumns + `
	`
	var updated models.Contract
	if err := tx.QueryRowxContext(ctx, query, id, days, amount).StructScan(&updated); err != nil {
		return nil, fmt.Errorf("contract repository: request extension %w", err)
	}

	event := &models.ContractEvent{
		ContractID: id,
		ActorID:    &workerID,
		Action:     models.ContractEventExtensionRequested,
		NewValue:   eventValue(map[string]interface{}{"days": days, "amount": amount}),
	}
	if err := insertContractEvent(ctx, tx, event); err != nil {
		return nil, err
	}

	return &updated, tx.Commit()
}

// ApproveExtension применяет запрошенное продление: сдвигает срок и,
// если запрошена доплата, увеличивает долю контракта. Доплата заново
// проверяется по остатку бюджета под блокировкой строки задания.
func (r *ContractRepository) ApproveExtension(ctx context.Context, id uuid.UUID, clientID uuid.UUID) (*models.Contract, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("contract repository: begin tx %w", err)
	}
	defer tx.Rollback()

	contract, err := lockContract(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if contract.ExtensionDays == nil || contract.HasBeenExtended {
		return nil, ErrExtensionNotRequested
	}

	newAllocated := contract.AllocatedAmount
	newPercentage := contract.PercentageOfBudget
	if contract.ExtensionAmount != nil && *contract.ExtensionAmount > 0 {
		var job models.Job
		jobQuery := `SELECT id, budget, max_workers FROM jobs WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &job, jobQuery, contract.JobID); err != nil {
			return nil, fmt.Errorf("contract repository: lock job %w", err)
		}

		var allocatedTotal float64
		aggQuery := `
			SELECT COALESCE(SUM(COALESCE(allocated_amount, price)), 0)
			FROM contracts
			WHERE job_id = $1 AND status <> 'cancelled'
		`
		if err := tx.GetContext(ctx, &allocatedTotal, aggQuery, contract.JobID); err != nil {
			return nil, fmt.Errorf("contract repository: job aggregates %w", err)
		}

		remaining := models.Round2(job.Budget - allocatedTotal)
		if *contract.ExtensionAmount > remaining {
			return nil, models.ErrBudgetExceeded
		}

		allocated := models.Round2(contract.PayoutBase() + *contract.ExtensionAmount)
		percentage := models.Round2(allocated / job.Budget * 100)
		newAllocated = &allocated
		newPercentage = &percentage
	}

	var newEndDate *time.Time
	if contract.EndDate != nil {
		shifted := contract.EndDate.AddDate(0, 0, *contract.ExtensionDays)
		newEndDate = &shifted
	}

	query := `
		UPDATE contracts
		SET has_been_extended = TRUE,
		    original_end_date = end_date,
		    end_date = $2,
		    allocated_amount = $3,
		    percentage_of_budget = $4,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + contractColumns + `
	`
	var updated models.Contract
	if err := tx.QueryRowxContext(ctx, query, id, newEndDate, newAllocated, newPercentage).StructScan(&updated); err != nil {
		return nil, fmt.Errorf("contract repository: approve extension %w", err)
	}

	event := &models.ContractEvent{
		ContractID: id,
		ActorID:    &clientID,
		Action:     models.ContractEventExtensionApproved,
		OldValue:   eventValue(map[string]interface{}{"end_date": contract.EndDate, "allocated_amount": contract.AllocatedAmount}),
		NewValue:   eventValue(map[string]interface{}{"end_date": newEndDate, "allocated_amount": newAllocated}),
	}
	if err := insertContractEvent(ctx, tx, event); err != nil {
		return nil, err
	}

	return &updated, tx.Commit()
}

// RejectExtension снимает запрос продления без изменения контракта.
func (r *ContractRepository) RejectExtension(ctx context.Context, id uuid.UUID, clientID uuid.UUID) (*models.Contract, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("contract repository: begin tx %w", err)
	}
	defer tx.Rollback()

	contract, err := lockContract(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if contract.ExtensionDays == nil || contract.HasBeenExtended {
		return nil, ErrExtensionNotRequested
	}

	query := `
		UPDATE contracts
		SET extension_days = NULL, extension_amount = NULL, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + contractColumns + `
	`
	var updated models.Contract
	if err := tx.QueryRowxContext(ctx, query, id).StructScan(&updated); err != nil {
		return nil, fmt.Errorf("contract repository: reject extension %w", err)
	}

	event := &models.ContractEvent{
		ContractID: id,
		ActorID:    &clientID,
		Action:     models.ContractEventExtensionRejected,
		OldValue:   eventValue(map[string]interface{}{"days": contract.ExtensionDays, "amount": contract.ExtensionAmount}),
	}
	if err := insertContractEvent(ctx, tx, event); err != nil {
		return nil, err
	}

	return &updated, tx.Commit()
}

// ModifyPrice меняет цену контракта до начала работ. Новая цена заново
// проверяется по остатку бюджета задания под блокировкой; связанный
// платёж, пока он не оплачен, следует за ценой.
func (r *ContractRepository) ModifyPrice(ctx context.Context, id uuid.UUID, clientID uuid.UUID, newPrice, commissionRate float64, reason string) (*models.Contract, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("contract repository: begin tx %w", err)
	}
	defer tx.Rollback()

	contract, err := lockContract(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	switch contract.Status {
	case models.ContractStatusPending, models.ContractStatusReady, models.ContractStatusAccepted:
	default:
		return nil, ErrContractStateChanged
	}

	var job models.Job
	jobQuery := `SELECT id, budget, max_workers FROM jobs WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &job, jobQuery, contract.JobID); err != nil {
		return nil, fmt.Errorf("contract repository: lock job %w", err)
	}

	var allocatedTotal float64
	aggQuery := `
		SELECT COALESCE(SUM(COALESCE(allocated_amount, price)), 0)
		FROM contracts
		WHERE job_id = $1 AND status <> 'cancelled'
	`
	if err := tx.GetContext(ctx, &allocatedTotal, aggQuery, contract.JobID); err != nil {
		return nil, fmt.Errorf("contract repository: job aggregates %w", err)
	}

	// Остаток без доли текущего контракта.
	othersAllocated := models.Round2(allocatedTotal - contract.PayoutBase())
	if newPrice > models.Round2(job.Budget-othersAllocated) {
		return nil, models.ErrBudgetExceeded
	}

	commission := models.Round2(newPrice * commissionRate)
	totalPrice := models.Round2(newPrice + commission)
	percentage := models.Round2(newPrice / job.Budget * 100)

	query := `
		UPDATE contracts
		SET price = $2,
		    commission = $3,
		    total_price = $4,
		    allocated_amount = $2,
		    percentage_of_budget = $5,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + contractColumns + `
	`
	var updated models.Contract
	if err := tx.QueryRowxContext(ctx, query, id, newPrice, commission, totalPrice, percentage).StructScan(&updated); err != nil {
		return nil, fmt.Errorf("contract repository: modify price %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE payments SET amount = $2, platform_fee = $3 WHERE contract_id = $1 AND status = $4`,
		id, newPrice, commission, models.PaymentStatusPending,
	); err != nil {
		return nil, fmt.Errorf("contract repository: sync payment amount %w", err)
	}

	event := &models.ContractEvent{
		ContractID: id,
		ActorID:    &clientID,
		Action:     models.ContractEventPriceModified,
		OldValue:   eventValue(map[string]interface{}{"price": contract.Price}),
		NewValue:   eventValue(map[string]interface{}{"price": newPrice, "reason": reason}),
	}
	if err := insertContractEvent(ctx, tx, event); err != nil {
		return nil, err
	}

	return &updated, tx.Commit()
}

// ListEvents возвращает журнал изменений контракта.
func (r *ContractRepository) ListEvents(ctx context.Context, contractID uuid.UUID) ([]models.ContractEvent, error) {
	query := `
		SELECT id, contract_id, actor_id, action, old_value, new_value, created_at
		FROM contract_events
		WHERE contract_id = $1
		ORDER BY created_at
	`
	var events []models.ContractEvent
	if err := r.db.SelectContext(ctx, &events, query, contractID); err != nil {
		return nil, fmt.Errorf("contract repository: list events %w", err)
	}
	return events, nil
}

// classifyMissedUpdate различает отсутствующий контракт и проигранную
// гонку за смену статуса.
func (r *ContractRepository) classifyMissedUpdate(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM contracts WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("contract repository: classify missed update %w", err)
	}
	if !exists {
		return ErrContractNotFound
	}
	return ErrContractStateChanged
}

func lockContract(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &contract, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("contract repository: lock contract %w", err)
	}
	return &contract, nil
}

func insertContractEvent(ctx context.Context, tx *sqlx.Tx, event *models.ContractEvent) error {
	query := `
		INSERT INTO contract_events (contract_id, actor_id, action, old_value, new_value)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	if err := tx.QueryRowxContext(
		ctx, query,
		event.ContractID, event.ActorID, event.Action, event.OldValue, event.NewValue,
	).Scan(&event.ID, &event.CreatedAt); err != nil {
		return fmt.Errorf("contract repository: insert event %w", err)
	}
	return nil
}

func eventValue(v map[string]interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
