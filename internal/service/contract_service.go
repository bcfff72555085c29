package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/laburoapp/laburo-backend/internal/models"
	"github.com/laburoapp/laburo-backend/internal/pkg/apperror"
	"github.com/laburoapp/laburo-backend/internal/repository"
)

// ContractRepository описывает взаимодействие сервиса с хранилищем контрактов.
type ContractRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Contract, int, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Contract, error)
	CreateWithAllocation(ctx context.Context, params repository.CreateContractParams) (*models.Contract, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, actorID *uuid.UUID) (*models.Contract, error)
	Accept(ctx context.Context, id uuid.UUID, workerID uuid.UUID) (*models.Contract, error)
	Confirm(ctx context.Context, id uuid.UUID, role string, actorID uuid.UUID) (*models.Contract, bool, error)
	RequestExtension(ctx context.Context, id uuid.UUID, workerID uuid.UUID, days int, amount *float64) (*models.Contract, error)
	ApproveExtension(ctx context.Context, id uuid.UUID, clientID uuid.UUID) (*models.Contract, error)
	RejectExtension(ctx context.Context, id uuid.UUID, clientID uuid.UUID) (*models.Contract, error)
	ModifyPrice(ctx context.Context, id uuid.UUID, clientID uuid.UUID, newPrice, commissionRate float64, reason string) (*models.Contract, error)
	ListEvents(ctx context.Context, contractID uuid.UUID) ([]models.ContractEvent, error)
}

// ProposalSource — минимальный контракт с хранилищем заданий для создания
// контракта по отклику.
type ProposalSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetProposalByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
}

// ContractEscrow — путь возврата эскроу при отмене контракта.
type ContractEscrow interface {
	Refund(ctx context.Context, contractID uuid.UUID, reason string, cancelContract bool) (*models.Payment, error)
}

// ContractService управляет жизненным циклом контракта. Любая смена
// статуса сверяется с таблицей переходов в models; денежные эффекты
// выполняются репозиториями одной транзакцией.
type ContractService struct {
	contracts      ContractRepository
	jobs           ProposalSource
	escrow         ContractEscrow
	notifier       Notifier
	commissionRate float64
}

// NewContractService создаёт новый сервис контрактов.
func NewContractService(contracts ContractRepository, jobs ProposalSource, escrow ContractEscrow, notifier Notifier, commissionRate float64) *ContractService {
	return &ContractService{
		contracts:      contracts,
		jobs:           jobs,
		escrow:         escrow,
		notifier:       notifier,
		commissionRate: commissionRate,
	}
}

// CreateContractInput описывает параметры создания контракта.
type CreateContractInput struct {
	ProposalID    uuid.UUID
	ClientID      uuid.UUID
	ProposedPrice *float64
	EndDate       *time.Time
}

// CreateContract создаёт контракт по одобренному отклику. Доля бюджета
// рассчитывается внутри транзакции под блокировкой строки задания.
func (s *ContractService) CreateContract(ctx context.Context, in CreateContractInput) (*models.Contract, error) {
	if in.ProposedPrice != nil && *in.ProposedPrice <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "цена контракта должна быть положительной")
	}
	if in.EndDate != nil && in.EndDate.Before(time.Now()) {
		return nil, apperror.New(apperror.ErrCodeValidation, "срок контракта не может быть в прошлом")
	}

	proposal, err := s.jobs.GetProposalByID(ctx, in.ProposalID)
	if err != nil {
		return nil, mapJobError(err)
	}

	job, err := s.jobs.GetByID(ctx, proposal.JobID)
	if err != nil {
		return nil, mapJobError(err)
	}
	if job.ClientID != in.ClientID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "задание принадлежит другому клиенту")
	}
	if proposal.Status != models.ProposalStatusApproved {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "контракт создаётся только по одобренному отклику")
	}

	contract, err := s.contracts.CreateWithAllocation(ctx, repository.CreateContractParams{
		Proposal:       proposal,
		ClientID:       in.ClientID,
		ProposedPrice:  in.ProposedPrice,
		CommissionRate: s.commissionRate,
		EndDate:        in.EndDate,
	})
	if err != nil {
		return nil, mapContractError(err)
	}

	notifyAsync(s.notifier, contract.WorkerID, "contract", "Контракт создан",
		"По вашему отклику на задание «"+job.Title+"» создан контракт "+contract.ContractNumber)

	return contract, nil
}

// GetContract возвращает контракт участнику или администратору.
func (s *ContractService) GetContract(ctx context.Context, id, actorID uuid.UUID, role string) (*models.Contract, error) {
	contract, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		return nil, mapContractError(err)
	}
	if err := requireContractAccess(contract, actorID, role); err != nil {
		return nil, err
	}
	return contract, nil
}

// ListMyContracts возвращает контракты пользователя с любой стороны сделки.
func (s *ContractService) ListMyContracts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Contract, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.contracts.ListByUser(ctx, userID, limit, offset)
}

// ListJobContracts возвращает контракты задания его владельцу или администратору.
func (s *ContractService) ListJobContracts(ctx context.Context, jobID, actorID uuid.UUID, role string) ([]models.Contract, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, mapJobError(err)
	}
	if job.ClientID != actorID && role != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}
	return s.contracts.ListByJob(ctx, jobID)
}

// Accept — исполнитель принимает профинансированный контракт в работу.
func (s *ContractService) Accept(ctx context.Context, contractID, workerID uuid.UUID) (*models.Contract, error) {
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, mapContractError(err)
	}
	if contract.WorkerID != workerID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "контракт принадлежит другому исполнителю")
	}
	if contract.Status == models.ContractStatusPending {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "контракт ещё не профинансирован")
	}

	updated, err := s.contracts.Accept(ctx, contractID, workerID)
	if err != nil {
		return nil, mapContractError(err)
	}

	notifyAsync(s.notifier, updated.ClientID, "contract", "Контракт принят",
		"Исполнитель приступил к работе по контракту "+updated.ContractNumber)

	return updated, nil
}

// RequestCompletion — исполнитель сообщает о завершении работ.
func (s *ContractService) RequestCompletion(ctx context.Context, contractID, workerID uuid.UUID) (*models.Contract, error) {
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, mapContractError(err)
	}
	if contract.WorkerID != workerID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "контракт принадлежит другому исполнителю")
	}
	if !models.CanContractTransition(contract.Status, models.ContractStatusAwaitingConfirmation) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "контракт в статусе "+contract.Status+" нельзя отправить на подтверждение")
	}

	updated, err := s.contracts.UpdateStatus(ctx, contractID, contract.Status, models.ContractStatusAwaitingConfirmation, &workerID)
	if err != nil {
		return nil, mapContractError(err)
	}

	notifyAsync(s.notifier, updated.ClientID, "contract", "Работы завершены",
		"Исполнитель завершил работы по контракту "+updated.ContractNumber+", подтвердите выполнение")

	return updated, nil
}

// ConfirmCompletion отмечает подтверждение стороной контракта. Подтверждения
// коммутативны: завершение срабатывает на втором из них независимо от
// порядка, повторное подтверждение той же стороны — no-op.
func (s *ContractService) ConfirmCompletion(ctx context.Context, contractID, actorID uuid.UUID) (*models.Contract, bool, error) {
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, false, mapContractError(err)
	}

	var role string
	switch actorID {
	case contract.ClientID:
		role = models.RoleClient
	case contract.WorkerID:
		role = models.RoleWorker
	default:
		return nil, false, apperror.New(apperror.ErrCodeForbidden, "подтверждать контракт могут только его стороны")
	}

	updated, completed, err := s.contracts.Confirm(ctx, contractID, role, actorID)
	if err != nil {
		return nil, false, mapContractError(err)
	}

	if completed {
		notifyAsync(s.notifier, updated.WorkerID, "contract", "Контракт завершён",
			"Контракт "+updated.ContractNumber+" завершён обеими сторонами")
		notifyAsync(s.notifier, updated.ClientID, "contract", "Контракт завершён",
			"Контракт "+updated.ContractNumber+" завершён обеими сторонами")
	} else if role == models.RoleWorker {
		notifyAsync(s.notifier, updated.ClientID, "contract", "Ожидается подтверждение",
			"Исполнитель подтвердил завершение контракта "+updated.ContractNumber)
	} else {
		notifyAsync(s.notifier, updated.WorkerID, "contract", "Ожидается подтверждение",
			"Клиент подтвердил завершение контракта "+updated.ContractNumber)
	}

	return updated, completed, nil
}

// RequestExtension — исполнитель запрашивает продление срока с доплатой
// или без неё.
func (s *ContractService) RequestExtension(ctx context.Context, contractID, workerID uuid.UUID, days int, amount *float64) (*models.Contract, error) {
	if days < 1 {
		return nil, apperror.New(apperror.ErrCodeValidation, "продление должно быть хотя бы на один день")
	}
	if amount != nil && *amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "доплата за продление должна быть положительной")
	}

	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, mapContractError(err)
	}
	if contract.WorkerID != workerID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "контракт принадлежит другому исполнителю")
	}
	if contract.Status != models.ContractStatusAccepted && contract.Status != models.ContractStatusInProgress {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "продление доступно только для контракта в работе")
	}

	updated, err := s.contracts.RequestExtension(ctx, contractID, workerID, days, amount)
	if err != nil {
		return nil, mapContractError(err)
	}

	notifyAsync(s.notifier, updated.ClientID, "contract", "Запрошено продление",
		"Исполнитель запросил продление контракта "+updated.ContractNumber)

	return updated, nil
}

// ApproveExtension — клиент одобряет продление; доплата заново проверяется
// по остатку бюджета задания.
func (s *ContractService) ApproveExtension(ctx context.Context, contractID, clientID uuid.UUID) (*models.Contract, error) {
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, mapContractError(err)
	}
	if contract.ClientID != clientID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "контракт принадлежит другому клиенту")
	}

	updated, err := s.contracts.ApproveExtension(ctx, contractID, clientID)
	if err != nil {
		return nil, mapContractError(err)
	}

	notifyAsync(s.notifier, updated.WorkerID, "contract", "Продление одобрено",
		"Продление контракта "+updated.ContractNumber+" одобрено клиентом")

	return updated, nil
}

// RejectExtension — клиент отклоняет запрос продления.
func (s *ContractService) RejectExtension(ctx context.Context, contractID, clientID uuid.UUID) (*models.Contract, error) {
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, mapContractError(err)
	}
	if contract.ClientID != clientID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "контракт принадлежит другому клиенту")
	}

	updated, err := s.contracts.RejectExtension(ctx, contractID, clientID)
	if err != nil {
		return nil, mapContractError(err)
	}

	notifyAsync(s.notifier, updated.WorkerID, "contract", "Продление отклонено",
		"Продление контракта "+updated.ContractNumber+" отклонено клиентом")

	return updated, nil
}

// ModifyPrice меняет цену контракта до начала работ. Причина обязательна
// и попадает в журнал контракта.
func (s *ContractService) ModifyPrice(ctx context.Context, contractID, clientID uuid.UUID, newPrice float64, reason string) (*models.Contract, error) {
	if newPrice <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "цена контракта должна быть положительной")
	}
	if reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "укажите причину изменения цены")
	}

	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, mapContractError(err)
	}
	if contract.ClientID != clientID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "контракт принадлежит другому клиенту")
	}

	updated, err := s.contracts.ModifyPrice(ctx, contractID, clientID, newPrice, s.commissionRate, reason)
	if err != nil {
		if errors.Is(err, repository.ErrContractStateChanged) {
			return nil, apperror.New(apperror.ErrCodeInvalidTransition, "цену можно менять только до начала работ")
		}
		return nil, mapContractError(err)
	}

	notifyAsync(s.notifier, updated.WorkerID, "contract", "Цена изменена",
		"Клиент изменил цену контракта "+updated.ContractNumber)

	return updated, nil
}

// Cancel отменяет контракт из любого нетерминального состояния, кроме
// спора. Удержанный эскроу возвращается клиенту в той же транзакции.
func (s *ContractService) Cancel(ctx context.Context, contractID, actorID uuid.UUID, role, reason string) (*models.Contract, error) {
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, mapContractError(err)
	}
	if err := requireContractAccess(contract, actorID, role); err != nil {
		return nil, err
	}
	if contract.Status == models.ContractStatusDisputed {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "контракт в споре отменяется только решением арбитража")
	}
	if !models.CanContractTransition(contract.Status, models.ContractStatusCancelled) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "контракт в статусе "+contract.Status+" нельзя отменить")
	}

	var updated *models.Contract
	if contract.EscrowStatus == models.EscrowStatusHeldEscrow {
		if _, err := s.escrow.Refund(ctx, contractID, reason, true); err != nil {
			return nil, mapContractError(err)
		}
		updated, err = s.contracts.GetByID(ctx, contractID)
		if err != nil {
			return nil, mapContractError(err)
		}
	} else {
		updated, err = s.contracts.UpdateStatus(ctx, contractID, contract.Status, models.ContractStatusCancelled, &actorID)
		if err != nil {
			return nil, mapContractError(err)
		}
	}

	counterparty := updated.WorkerID
	if actorID == updated.WorkerID {
		counterparty = updated.ClientID
	}
	notifyAsync(s.notifier, counterparty, "contract", "Контракт отменён",
		"Контракт "+updated.ContractNumber+" отменён")

	return updated, nil
}

// ListEvents возвращает журнал изменений контракта.
func (s *ContractService) ListEvents(ctx context.Context, contractID, actorID uuid.UUID, role string) ([]models.ContractEvent, error) {
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, mapContractError(err)
	}
	if err := requireContractAccess(contract, actorID, role); err != nil {
		return nil, err
	}
	return s.contracts.ListEvents(ctx, contractID)
}

// requireContractAccess пускает к контракту его стороны и администратора.
func requireContractAccess(contract *models.Contract, actorID uuid.UUID, role string) error {
	if contract.ClientID == actorID || contract.WorkerID == actorID || role == models.RoleAdmin {
		return nil
	}
	return apperror.New(apperror.ErrCodeForbidden, "контракт доступен только его сторонам")
}

// mapContractError переводит ошибки хранилищ контрактного контура в доменные.
func mapContractError(err error) error {
	switch {
	case errors.Is(err, repository.ErrContractNotFound):
		return apperror.ErrContractNotFound
	case errors.Is(err, repository.ErrJobNotFound):
		return apperror.ErrJobNotFound
	case errors.Is(err, repository.ErrPaymentNotFound):
		return apperror.ErrPaymentNotFound
	case errors.Is(err, models.ErrCapacityExceeded):
		return apperror.Wrap(err, apperror.ErrCodeCapacityExceeded, "все места исполнителей по заданию заняты")
	case errors.Is(err, models.ErrBudgetExceeded):
		return apperror.Wrap(err, apperror.ErrCodeBudgetExceeded, "остатка бюджета задания недостаточно")
	case errors.Is(err, models.ErrInvalidPrice):
		return apperror.Wrap(err, apperror.ErrCodeValidation, "предложенная цена должна быть положительной")
	case errors.Is(err, repository.ErrContractStateChanged):
		return apperror.Wrap(err, apperror.ErrCodeInvalidTransition, "состояние контракта не допускает операцию")
	case errors.Is(err, repository.ErrPaymentStateChanged):
		return apperror.Wrap(err, apperror.ErrCodeInvalidTransition, "состояние платежа не допускает операцию")
	case errors.Is(err, repository.ErrExtensionAlreadyUsed):
		return apperror.Wrap(err, apperror.ErrCodeInvalidTransition, "контракт уже продлевался")
	case errors.Is(err, repository.ErrExtensionPending):
		return apperror.Wrap(err, apperror.ErrCodeInvalidTransition, "запрос продления уже ожидает решения")
	case errors.Is(err, repository.ErrExtensionNotRequested):
		return apperror.Wrap(err, apperror.ErrCodeInvalidTransition, "по контракту нет запроса на продление")
	}
	return err
}
