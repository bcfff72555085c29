package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/laburoapp/laburo-backend/internal/models"
	"github.com/laburoapp/laburo-backend/internal/pkg/apperror"
	"github.com/laburoapp/laburo-backend/internal/repository"
)

// JobRepository описывает взаимодействие сервиса с хранилищем заданий
// и откликов.
type JobRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	Create(ctx context.Context, job *models.Job) error
	Update(ctx context.Context, job *models.Job) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Job, error)
	List(ctx context.Context, params repository.JobListFilterParams) (*repository.JobListResult, error)
	CreateProposal(ctx context.Context, proposal *models.Proposal) error
	GetProposalByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	UpdateProposalStatus(ctx context.Context, id uuid.UUID, status string) (*models.Proposal, error)
	ListProposalsByJob(ctx context.Context, jobID uuid.UUID) ([]models.Proposal, error)
	ListProposalsByWorker(ctx context.Context, workerID uuid.UUID, limit, offset int) ([]models.Proposal, error)
}

// JobService содержит бизнес-логику работы с заданиями и откликами.
type JobService struct {
	repo     JobRepository
	notifier Notifier
}

// NewJobService создаёт новый сервис заданий.
func NewJobService(repo JobRepository, notifier Notifier) *JobService {
	return &JobService{repo: repo, notifier: notifier}
}

// CreateJobInput описывает входные данные для создания задания.
type CreateJobInput struct {
	ClientID    uuid.UUID
	Title       string
	Description string
	Budget      float64
	MaxWorkers  int
}

// CreateJob создаёт задание и сразу открывает его для откликов.
func (s *JobService) CreateJob(ctx context.Context, in CreateJobInput) (*models.Job, error) {
	if in.Title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "заголовок задания не может быть пустым")
	}
	if in.Description == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "описание задания не может быть пустым")
	}
	if in.Budget <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "бюджет задания должен быть положительным")
	}
	if in.MaxWorkers == 0 {
		in.MaxWorkers = 1
	}
	if in.MaxWorkers < 1 {
		return nil, apperror.New(apperror.ErrCodeValidation, "число исполнителей должно быть не меньше одного")
	}

	job := &models.Job{
		ClientID:    in.ClientID,
		Title:       in.Title,
		Description: in.Description,
		Budget:      models.Round2(in.Budget),
		Status:      models.JobStatusOpen,
		MaxWorkers:  in.MaxWorkers,
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}

	return job, nil
}

// GetJob возвращает задание с агрегатами по распределению бюджета.
func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapJobError(err)
	}
	return job, nil
}

// ListJobs возвращает список заданий с фильтрацией и пагинацией.
func (s *JobService) ListJobs(ctx context.Context, params repository.JobListFilterParams) (*repository.JobListResult, error) {
	if params.Status != "" {
		if _, ok := models.ValidJobStatuses[params.Status]; !ok {
			return nil, apperror.New(apperror.ErrCodeValidation, "некорректный статус задания")
		}
	}
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 20
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	return s.repo.List(ctx, params)
}

// ListMyJobs возвращает задания клиента.
func (s *JobService) ListMyJobs(ctx context.Context, clientID uuid.UUID, limit, offset int) (*repository.JobListResult, error) {
	return s.ListJobs(ctx, repository.JobListFilterParams{
		ClientID: &clientID,
		Limit:    limit,
		Offset:   offset,
	})
}

// UpdateJobInput описывает изменяемые поля задания.
type UpdateJobInput struct {
	JobID       uuid.UUID
	ClientID    uuid.UUID
	Title       string
	Description string
	Budget      float64
}

// UpdateJob обновляет заголовок, описание и бюджет задания.
// Бюджет нельзя опустить ниже суммы, уже распределённой по контрактам.
func (s *JobService) UpdateJob(ctx context.Context, in UpdateJobInput) (*models.Job, error) {
	job, err := s.repo.GetByID(ctx, in.JobID)
	if err != nil {
		return nil, mapJobError(err)
	}
	if job.ClientID != in.ClientID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "задание принадлежит другому клиенту")
	}
	if models.IsTerminalJobStatus(job.Status) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "завершённое задание нельзя изменить")
	}
	if in.Title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "заголовок задания не может быть пустым")
	}
	if in.Description == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "описание задания не может быть пустым")
	}
	if in.Budget <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "бюджет задания должен быть положительным")
	}
	if job.AllocatedTotal != nil && in.Budget < *job.AllocatedTotal {
		return nil, apperror.New(apperror.ErrCodeBudgetExceeded, "бюджет не может быть меньше уже распределённой суммы")
	}

	job.Title = in.Title
	job.Description = in.Description
	job.Budget = models.Round2(in.Budget)

	if err := s.repo.Update(ctx, job); err != nil {
		return nil, mapJobError(err)
	}

	return job, nil
}

// UpdateJobStatus переводит задание в новый статус по таблице переходов.
func (s *JobService) UpdateJobStatus(ctx context.Context, jobID, clientID uuid.UUID, status string) (*models.Job, error) {
	if _, ok := models.ValidJobStatuses[status]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректный статус задания")
	}

	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, mapJobError(err)
	}
	if job.ClientID != clientID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "задание принадлежит другому клиенту")
	}
	if !models.CanJobTransition(job.Status, status) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "переход задания "+job.Status+" -> "+status+" недопустим")
	}

	updated, err := s.repo.UpdateStatus(ctx, jobID, status)
	if err != nil {
		return nil, mapJobError(err)
	}
	return updated, nil
}

// CancelJob отменяет задание. Допустимо только пока по заданию нет
// ни одного контракта; после найма отменяются отдельные контракты.
func (s *JobService) CancelJob(ctx context.Context, jobID, clientID uuid.UUID) (*models.Job, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, mapJobError(err)
	}
	if job.ClientID != clientID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "задание принадлежит другому клиенту")
	}
	if job.WorkersAssigned != nil && *job.WorkersAssigned > 0 {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "по заданию уже заключены контракты")
	}
	if !models.CanJobTransition(job.Status, models.JobStatusCancelled) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "задание в статусе "+job.Status+" нельзя отменить")
	}

	updated, err := s.repo.UpdateStatus(ctx, jobID, models.JobStatusCancelled)
	if err != nil {
		return nil, mapJobError(err)
	}
	return updated, nil
}

// SubmitProposalInput описывает отклик исполнителя.
type SubmitProposalInput struct {
	JobID         uuid.UUID
	WorkerID      uuid.UUID
	CoverLetter   string
	ProposedPrice *float64
}

// SubmitProposal создаёт отклик на задание.
func (s *JobService) SubmitProposal(ctx context.Context, in SubmitProposalInput) (*models.Proposal, error) {
	if in.CoverLetter == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "сопроводительное письмо не может быть пустым")
	}
	if in.ProposedPrice != nil && *in.ProposedPrice <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "предложенная цена должна быть положительной")
	}

	job, err := s.repo.GetByID(ctx, in.JobID)
	if err != nil {
		return nil, mapJobError(err)
	}
	if job.ClientID == in.WorkerID {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя откликнуться на собственное задание")
	}
	if job.Status != models.JobStatusOpen && job.Status != models.JobStatusInProgress {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "задание не принимает отклики в статусе "+job.Status)
	}
	if job.WorkersAssigned != nil && *job.WorkersAssigned >= job.MaxWorkers {
		return nil, apperror.New(apperror.ErrCodeCapacityExceeded, "все места исполнителей по заданию заняты")
	}

	proposal := &models.Proposal{
		JobID:         in.JobID,
		WorkerID:      in.WorkerID,
		CoverLetter:   in.CoverLetter,
		ProposedPrice: in.ProposedPrice,
		Status:        models.ProposalStatusPending,
	}

	if err := s.repo.CreateProposal(ctx, proposal); err != nil {
		if errors.Is(err, repository.ErrDuplicateProposal) {
			return nil, apperror.New(apperror.ErrCodeValidation, "у вас уже есть активный отклик на это задание")
		}
		return nil, mapJobError(err)
	}

	s.notifyAsync(job.ClientID, "proposal", "Новый отклик", "На задание «"+job.Title+"» поступил новый отклик")

	return proposal, nil
}

// GetProposal возвращает отклик по идентификатору.
func (s *JobService) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	proposal, err := s.repo.GetProposalByID(ctx, id)
	if err != nil {
		return nil, mapJobError(err)
	}
	return proposal, nil
}

// ListProposals возвращает отклики по заданию. Владелец и администратор
// видят все отклики, исполнитель — только собственные.
func (s *JobService) ListProposals(ctx context.Context, jobID, actorID uuid.UUID, role string) ([]models.Proposal, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, mapJobError(err)
	}

	proposals, err := s.repo.ListProposalsByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.ClientID == actorID || role == models.RoleAdmin {
		return proposals, nil
	}

	own := make([]models.Proposal, 0, 1)
	for _, p := range proposals {
		if p.WorkerID == actorID {
			own = append(own, p)
		}
	}
	return own, nil
}

// ListMyProposals возвращает отклики исполнителя.
func (s *JobService) ListMyProposals(ctx context.Context, workerID uuid.UUID, limit, offset int) ([]models.Proposal, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListProposalsByWorker(ctx, workerID, limit, offset)
}

// ApproveProposal одобряет отклик. Одобрение необратимо: дальше по отклику
// создаётся контракт, и вернуть его в pending нельзя.
func (s *JobService) ApproveProposal(ctx context.Context, proposalID, clientID uuid.UUID) (*models.Proposal, error) {
	proposal, job, err := s.proposalForOwner(ctx, proposalID, clientID)
	if err != nil {
		return nil, err
	}
	if proposal.Status != models.ProposalStatusPending {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "отклик уже обработан")
	}
	if job.WorkersAssigned != nil && *job.WorkersAssigned >= job.MaxWorkers {
		return nil, apperror.New(apperror.ErrCodeCapacityExceeded, "все места исполнителей по заданию заняты")
	}

	updated, err := s.repo.UpdateProposalStatus(ctx, proposalID, models.ProposalStatusApproved)
	if err != nil {
		return nil, mapJobError(err)
	}

	s.notifyAsync(proposal.WorkerID, "proposal", "Отклик одобрен", "Ваш отклик на задание «"+job.Title+"» одобрен")

	return updated, nil
}

// RejectProposal отклоняет отклик.
func (s *JobService) RejectProposal(ctx context.Context, proposalID, clientID uuid.UUID) (*models.Proposal, error) {
	proposal, job, err := s.proposalForOwner(ctx, proposalID, clientID)
	if err != nil {
		return nil, err
	}
	if proposal.Status != models.ProposalStatusPending {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "отклик уже обработан")
	}

	updated, err := s.repo.UpdateProposalStatus(ctx, proposalID, models.ProposalStatusRejected)
	if err != nil {
		return nil, mapJobError(err)
	}

	s.notifyAsync(proposal.WorkerID, "proposal", "Отклик отклонён", "Ваш отклик на задание «"+job.Title+"» отклонён")

	return updated, nil
}

// WithdrawProposal отзывает собственный отклик.
func (s *JobService) WithdrawProposal(ctx context.Context, proposalID, workerID uuid.UUID) (*models.Proposal, error) {
	proposal, err := s.repo.GetProposalByID(ctx, proposalID)
	if err != nil {
		return nil, mapJobError(err)
	}
	if proposal.WorkerID != workerID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "отклик принадлежит другому исполнителю")
	}
	if proposal.Status != models.ProposalStatusPending {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "отозвать можно только необработанный отклик")
	}

	updated, err := s.repo.UpdateProposalStatus(ctx, proposalID, models.ProposalStatusWithdrawn)
	if err != nil {
		return nil, mapJobError(err)
	}
	return updated, nil
}

// proposalForOwner загружает отклик и его задание, проверяя владельца задания.
func (s *JobService) proposalForOwner(ctx context.Context, proposalID, clientID uuid.UUID) (*models.Proposal, *models.Job, error) {
	proposal, err := s.repo.GetProposalByID(ctx, proposalID)
	if err != nil {
		return nil, nil, mapJobError(err)
	}

	job, err := s.repo.GetByID(ctx, proposal.JobID)
	if err != nil {
		return nil, nil, mapJobError(err)
	}
	if job.ClientID != clientID {
		return nil, nil, apperror.New(apperror.ErrCodeForbidden, "задание принадлежит другому клиенту")
	}

	return proposal, job, nil
}

func (s *JobService) notifyAsync(userID uuid.UUID, category, title, message string) {
	notifyAsync(s.notifier, userID, category, title, message)
}

// mapJobError переводит ошибки хранилища заданий в доменные.
func mapJobError(err error) error {
	switch {
	case errors.Is(err, repository.ErrJobNotFound):
		return apperror.ErrJobNotFound
	case errors.Is(err, repository.ErrProposalNotFound):
		return apperror.ErrProposalNotFound
	}
	return err
}
