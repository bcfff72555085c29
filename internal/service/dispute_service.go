package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/laburoapp/laburo-backend/internal/models"
	"github.com/laburoapp/laburo-backend/internal/pkg/apperror"
	"github.com/laburoapp/laburo-backend/internal/repository"
)

// DisputeRepository описывает хранилище споров, используемое сервисом.
type DisputeRepository interface {
	Open(ctx context.Context, dispute *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetByContractID(ctx context.Context, contractID uuid.UUID) (*models.Dispute, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error)
	List(ctx context.Context, status string, limit, offset int) ([]models.Dispute, int, error)
	AddMessage(ctx context.Context, msg *models.DisputeMessage) error
	ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error)
	AppendEvidence(ctx context.Context, disputeID uuid.UUID, urls []string) (*models.Dispute, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to string) (*models.Dispute, error)
	Resolve(ctx context.Context, params repository.ResolveDisputeParams) (*repository.ResolveDisputeResult, error)
}

// DisputeService — арбитраж по контрактам: открытие спора, переписка,
// доказательства и решение с денежным эффектом.
type DisputeService struct {
	disputes  DisputeRepository
	contracts ContractReader
	notifier  Notifier
}

func NewDisputeService(disputes DisputeRepository, contracts ContractReader, notifier Notifier) *DisputeService {
	return &DisputeService{disputes: disputes, contracts: contracts, notifier: notifier}
}

// OpenDisputeInput описывает открытие спора стороной контракта.
type OpenDisputeInput struct {
	ContractID          uuid.UUID
	InitiatorID         uuid.UUID
	Category            string
	Reason              string
	DetailedDescription *string
	Evidence            []string
}

// OpenDispute открывает спор. Ответчиком становится вторая сторона
// контракта, контракт и платёж замораживаются в той же транзакции.
func (s *DisputeService) OpenDispute(ctx context.Context, in OpenDisputeInput) (*models.Dispute, error) {
	if in.Category == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "укажите категорию спора")
	}
	if in.Reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "укажите причину спора")
	}

	contract, err := s.contracts.GetByID(ctx, in.ContractID)
	if err != nil {
		return nil, mapDisputeError(err)
	}

	var defendantID uuid.UUID
	switch in.InitiatorID {
	case contract.ClientID:
		defendantID = contract.WorkerID
	case contract.WorkerID:
		defendantID = contract.ClientID
	default:
		return nil, apperror.New(apperror.ErrCodeForbidden, "спор открывают только стороны контракта")
	}

	dispute := &models.Dispute{
		ContractID:          in.ContractID,
		InitiatorID:         in.InitiatorID,
		DefendantID:         defendantID,
		Category:            in.Category,
		Reason:              in.Reason,
		DetailedDescription: in.DetailedDescription,
		Evidence:            in.Evidence,
	}
	if err := s.disputes.Open(ctx, dispute); err != nil {
		return nil, mapDisputeError(err)
	}

	notifyAsync(s.notifier, defendantID, "dispute", "Открыт спор",
		"По контракту "+contract.ContractNumber+" открыт спор: "+in.Reason)

	return dispute, nil
}

// GetDispute возвращает спор, доступ имеют стороны и администратор.
func (s *DisputeService) GetDispute(ctx context.Context, disputeID, actorID uuid.UUID, role string) (*models.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, mapDisputeError(err)
	}
	if err := requireDisputeAccess(dispute, actorID, role); err != nil {
		return nil, err
	}
	return dispute, nil
}

// GetContractDispute возвращает последний спор по контракту.
func (s *DisputeService) GetContractDispute(ctx context.Context, contractID, actorID uuid.UUID, role string) (*models.Dispute, error) {
	dispute, err := s.disputes.GetByContractID(ctx, contractID)
	if err != nil {
		return nil, mapDisputeError(err)
	}
	if err := requireDisputeAccess(dispute, actorID, role); err != nil {
		return nil, err
	}
	return dispute, nil
}

// ListMyDisputes возвращает споры, в которых пользователь участвует.
func (s *DisputeService) ListMyDisputes(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.disputes.ListByUser(ctx, userID, limit, offset)
}

// ListDisputes — административный список с фильтром по статусу.
func (s *DisputeService) ListDisputes(ctx context.Context, status string, limit, offset int) ([]models.Dispute, int, error) {
	if status != "" {
		if _, ok := models.ValidDisputeStatuses[status]; !ok {
			return nil, 0, apperror.New(apperror.ErrCodeValidation, "неизвестный статус спора: "+status)
		}
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.disputes.List(ctx, status, limit, offset)
}

// PostMessageInput описывает сообщение в треде спора.
type PostMessageInput struct {
	DisputeID   uuid.UUID
	SenderID    uuid.UUID
	Role        string
	Message     string
	Attachments []string
}

// PostMessage добавляет сообщение в тред. Писать могут стороны спора и
// администратор, тред закрытого спора только для чтения.
func (s *DisputeService) PostMessage(ctx context.Context, in PostMessageInput) (*models.DisputeMessage, error) {
	if in.Message == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "сообщение не может быть пустым")
	}

	dispute, err := s.disputes.GetByID(ctx, in.DisputeID)
	if err != nil {
		return nil, mapDisputeError(err)
	}
	if err := requireDisputeAccess(dispute, in.SenderID, in.Role); err != nil {
		return nil, err
	}
	if models.IsTerminalDisputeStatus(dispute.Status) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "спор закрыт, переписка недоступна")
	}

	msg := &models.DisputeMessage{
		DisputeID:   in.DisputeID,
		SenderID:    in.SenderID,
		Message:     in.Message,
		Attachments: in.Attachments,
		IsAdmin:     in.Role == models.RoleAdmin,
	}
	if err := s.disputes.AddMessage(ctx, msg); err != nil {
		return nil, mapDisputeError(err)
	}

	if recipient, ok := disputeCounterparty(dispute, in.SenderID); ok {
		notifyAsync(s.notifier, recipient, "dispute", "Новое сообщение в споре", in.Message)
	} else {
		notifyAsync(s.notifier, dispute.InitiatorID, "dispute", "Сообщение арбитража", in.Message)
		notifyAsync(s.notifier, dispute.DefendantID, "dispute", "Сообщение арбитража", in.Message)
	}

	return msg, nil
}

// ListMessages возвращает тред спора.
func (s *DisputeService) ListMessages(ctx context.Context, disputeID, actorID uuid.UUID, role string) ([]models.DisputeMessage, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, mapDisputeError(err)
	}
	if err := requireDisputeAccess(dispute, actorID, role); err != nil {
		return nil, err
	}
	return s.disputes.ListMessages(ctx, disputeID)
}

// AppendEvidence прикладывает ссылки на доказательства к открытому спору.
func (s *DisputeService) AppendEvidence(ctx context.Context, disputeID, actorID uuid.UUID, role string, urls []string) (*models.Dispute, error) {
	if len(urls) == 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "список доказательств пуст")
	}
	for _, u := range urls {
		if u == "" {
			return nil, apperror.New(apperror.ErrCodeValidation, "ссылка на доказательство не может быть пустой")
		}
	}

	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, mapDisputeError(err)
	}
	if err := requireDisputeAccess(dispute, actorID, role); err != nil {
		return nil, err
	}
	if models.IsTerminalDisputeStatus(dispute.Status) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "спор закрыт, доказательства не принимаются")
	}

	updated, err := s.disputes.AppendEvidence(ctx, disputeID, urls)
	if err != nil {
		return nil, mapDisputeError(err)
	}
	return updated, nil
}

// SetInReview переводит спор в рассмотрение администратором.
func (s *DisputeService) SetInReview(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	return s.updateStatus(ctx, disputeID, models.DisputeStatusInReview)
}

// RequestInfo запрашивает у сторон дополнительную информацию.
func (s *DisputeService) RequestInfo(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.updateStatus(ctx, disputeID, models.DisputeStatusAwaitingInfo)
	if err != nil {
		return nil, err
	}
	notifyAsync(s.notifier, dispute.InitiatorID, "dispute", "Нужна дополнительная информация",
		"Арбитраж запросил дополнительную информацию по вашему спору")
	notifyAsync(s.notifier, dispute.DefendantID, "dispute", "Нужна дополнительная информация",
		"Арбитраж запросил дополнительную информацию по спору")
	return dispute, nil
}

func (s *DisputeService) updateStatus(ctx context.Context, disputeID uuid.UUID, to string) (*models.Dispute, error) {
	dispute, err := s.disputes.UpdateStatus(ctx, disputeID, to)
	if err != nil {
		return nil, mapDisputeError(err)
	}
	return dispute, nil
}

// ResolveDisputeInput описывает решение арбитража.
type ResolveDisputeInput struct {
	DisputeID   uuid.UUID
	AdminID     uuid.UUID
	Outcome     string
	Resolution  string
	WorkerRatio *float64
}

// ResolveDispute закрывает спор с денежным эффектом: выплата исполнителю,
// возврат клиенту или раздел по доле. Доля обязательна только для
// partial_split и лежит строго между нулём и единицей.
func (s *DisputeService) ResolveDispute(ctx context.Context, in ResolveDisputeInput) (*repository.ResolveDisputeResult, error) {
	switch in.Outcome {
	case models.DisputeOutcomeReleaseToWorker, models.DisputeOutcomeRefundToClient:
		if in.WorkerRatio != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, "доля исполнителя указывается только при разделе")
		}
	case models.DisputeOutcomePartialSplit:
		if in.WorkerRatio == nil {
			return nil, apperror.New(apperror.ErrCodeValidation, "для раздела укажите долю исполнителя")
		}
		if *in.WorkerRatio <= 0 || *in.WorkerRatio >= 1 {
			return nil, apperror.New(apperror.ErrCodeValidation, "доля исполнителя должна лежать между 0 и 1")
		}
	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный исход спора: "+in.Outcome)
	}
	if in.Resolution == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "укажите обоснование решения")
	}

	result, err := s.disputes.Resolve(ctx, repository.ResolveDisputeParams{
		DisputeID:   in.DisputeID,
		AdminID:     in.AdminID,
		Outcome:     in.Outcome,
		Resolution:  in.Resolution,
		WorkerRatio: in.WorkerRatio,
	})
	if err != nil {
		return nil, mapDisputeError(err)
	}

	summary := resolutionSummary(in.Outcome, result)
	notifyAsync(s.notifier, result.Contract.WorkerID, "dispute", "Спор решён", summary)
	notifyAsync(s.notifier, result.Contract.ClientID, "dispute", "Спор решён", summary)

	return result, nil
}

func resolutionSummary(outcome string, result *repository.ResolveDisputeResult) string {
	switch outcome {
	case models.DisputeOutcomeReleaseToWorker:
		return fmt.Sprintf("Средства по контракту %s выплачены исполнителю", result.Contract.ContractNumber)
	case models.DisputeOutcomeRefundToClient:
		return fmt.Sprintf("Средства по контракту %s возвращены клиенту", result.Contract.ContractNumber)
	default:
		var worker, client float64
		if result.WorkerCredit != nil {
			worker = result.WorkerCredit.Amount
		}
		if result.ClientRefund != nil {
			client = result.ClientRefund.Amount
		}
		return fmt.Sprintf("Средства по контракту %s разделены: исполнителю %.2f, клиенту %.2f",
			result.Contract.ContractNumber, worker, client)
	}
}

func requireDisputeAccess(dispute *models.Dispute, actorID uuid.UUID, role string) error {
	if role == models.RoleAdmin {
		return nil
	}
	if dispute.InitiatorID == actorID || dispute.DefendantID == actorID {
		return nil
	}
	return apperror.New(apperror.ErrCodeForbidden, "спор доступен только его сторонам")
}

// disputeCounterparty возвращает вторую сторону спора. Если отправитель
// не сторона (администратор), второй компонент false.
func disputeCounterparty(dispute *models.Dispute, senderID uuid.UUID) (uuid.UUID, bool) {
	switch senderID {
	case dispute.InitiatorID:
		return dispute.DefendantID, true
	case dispute.DefendantID:
		return dispute.InitiatorID, true
	}
	return uuid.Nil, false
}

func mapDisputeError(err error) error {
	switch {
	case errors.Is(err, repository.ErrDisputeNotFound):
		return apperror.ErrDisputeNotFound
	case errors.Is(err, repository.ErrContractNotFound):
		return apperror.ErrContractNotFound
	case errors.Is(err, repository.ErrDisputeAlreadyOpen):
		return apperror.Wrap(err, apperror.ErrCodeInvalidTransition, "по контракту уже открыт спор")
	case errors.Is(err, repository.ErrContractStateChanged):
		return apperror.Wrap(err, apperror.ErrCodeInvalidTransition, "состояние контракта не допускает спор")
	case errors.Is(err, repository.ErrDisputeStateChanged):
		return apperror.Wrap(err, apperror.ErrCodeInvalidTransition, "состояние спора не допускает операцию")
	case errors.Is(err, repository.ErrNoEscrowHeld):
		return apperror.Wrap(err, apperror.ErrCodeInvalidTransition, "по контракту нет удержанного эскроу")
	}
	return err
}
