package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/laburoapp/laburo-backend/internal/models"
	"github.com/laburoapp/laburo-backend/internal/pkg/apperror"
	"github.com/laburoapp/laburo-backend/internal/repository"
)

type mockContractRepo struct {
	mock.Mock
}

func (m *mockContractRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func (m *mockContractRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Contract, int, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]models.Contract), args.Int(1), args.Error(2)
}

func (m *mockContractRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Contract, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Contract), args.Error(1)
}

func (m *mockContractRepo) CreateWithAllocation(ctx context.Context, params repository.CreateContractParams) (*models.Contract, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func (m *mockContractRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, actorID *uuid.UUID) (*models.Contract, error) {
	args := m.Called(ctx, id, from, to, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func (m *mockContractRepo) Accept(ctx context.Context, id uuid.UUID, workerID uuid.UUID) (*models.Contract, error) {
	args := m.Called(ctx, id, workerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func (m *mockContractRepo) Confirm(ctx context.Context, id uuid.UUID, role string, actorID uuid.UUID) (*models.Contract, bool, error) {
	args := m.Called(ctx, id, role, actorID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Contract), args.Bool(1), args.Error(2)
}

func (m *mockContractRepo) RequestExtension(ctx context.Context, id uuid.UUID, workerID uuid.UUID, days int, amount *float64) (*models.Contract, error) {
	args := m.Called(ctx, id, workerID, days, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func (m *mockContractRepo) ApproveExtension(ctx context.Context, id uuid.UUID, clientID uuid.UUID) (*models.Contract, error) {
	args := m.Called(ctx, id, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func (m *mockContractRepo) RejectExtension(ctx context.Context, id uuid.UUID, clientID uuid.UUID) (*models.Contract, error) {
	args := m.Called(ctx, id, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func (m *mockContractRepo) ModifyPrice(ctx context.Context, id uuid.UUID, clientID uuid.UUID, newPrice, commissionRate float64, reason string) (*models.Contract, error) {
	args := m.Called(ctx, id, clientID, newPrice, commissionRate, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func (m *mockContractRepo) ListEvents(ctx context.Context, contractID uuid.UUID) ([]models.ContractEvent, error) {
	args := m.Called(ctx, contractID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ContractEvent), args.Error(1)
}

type mockProposalSource struct {
	mock.Mock
}

func (m *mockProposalSource) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *mockProposalSource) GetProposalByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Proposal), args.Error(1)
}

type mockContractEscrow struct {
	mock.Mock
}

func (m *mockContractEscrow) Refund(ctx context.Context, contractID uuid.UUID, reason string, cancelContract bool) (*models.Payment, error) {
	args := m.Called(ctx, contractID, reason, cancelContract)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func newContractService(contracts *mockContractRepo, jobs *mockProposalSource, escrow *mockContractEscrow) *ContractService {
	return NewContractService(contracts, jobs, escrow, stubNotifier{}, 0.1)
}

func TestContractService_CreateContract_Success(t *testing.T) {
	contracts := new(mockContractRepo)
	jobs := new(mockProposalSource)
	escrow := new(mockContractEscrow)
	svc := newContractService(contracts, jobs, escrow)
	ctx := context.Background()

	clientID := uuid.New()
	workerID := uuid.New()
	jobID := uuid.New()
	proposalID := uuid.New()

	proposal := &models.Proposal{ID: proposalID, JobID: jobID, WorkerID: workerID, Status: models.ProposalStatusApproved}
	job := &models.Job{ID: jobID, ClientID: clientID, Title: "Вёрстка лендинга", Budget: 10000, MaxWorkers: 2}
	jobs.On("GetProposalByID", ctx, proposalID).Return(proposal, nil)
	jobs.On("GetByID", ctx, jobID).Return(job, nil)

	expected := &models.Contract{
		ID:             uuid.New(),
		ContractNumber: "CTR-000010",
		JobID:          jobID,
		ClientID:       clientID,
		WorkerID:       workerID,
		Price:          6000,
		Status:         models.ContractStatusPending,
	}
	contracts.On("CreateWithAllocation", ctx, repository.CreateContractParams{
		Proposal:       proposal,
		ClientID:       clientID,
		CommissionRate: 0.1,
	}).Return(expected, nil)

	contract, err := svc.CreateContract(ctx, CreateContractInput{ProposalID: proposalID, ClientID: clientID})
	assert.NoError(t, err)
	assert.Equal(t, expected, contract)
	contracts.AssertExpectations(t)
	jobs.AssertExpectations(t)
}

func TestContractService_CreateContract_Validation(t *testing.T) {
	contracts := new(mockContractRepo)
	jobs := new(mockProposalSource)
	svc := newContractService(contracts, jobs, new(mockContractEscrow))
	ctx := context.Background()

	badPrice := float64(-500)
	_, err := svc.CreateContract(ctx, CreateContractInput{ProposalID: uuid.New(), ClientID: uuid.New(), ProposedPrice: &badPrice})
	assert.True(t, apperror.IsValidation(err))

	past := time.Now().Add(-time.Hour)
	_, err = svc.CreateContract(ctx, CreateContractInput{ProposalID: uuid.New(), ClientID: uuid.New(), EndDate: &past})
	assert.True(t, apperror.IsValidation(err))
	jobs.AssertNotCalled(t, "GetProposalByID", mock.Anything, mock.Anything)
}

func TestContractService_CreateContract_ForeignJob(t *testing.T) {
	contracts := new(mockContractRepo)
	jobs := new(mockProposalSource)
	svc := newContractService(contracts, jobs, new(mockContractEscrow))
	ctx := context.Background()

	jobID := uuid.New()
	proposalID := uuid.New()
	jobs.On("GetProposalByID", ctx, proposalID).Return(&models.Proposal{ID: proposalID, JobID: jobID, Status: models.ProposalStatusApproved}, nil)
	jobs.On("GetByID", ctx, jobID).Return(&models.Job{ID: jobID, ClientID: uuid.New()}, nil)

	_, err := svc.CreateContract(ctx, CreateContractInput{ProposalID: proposalID, ClientID: uuid.New()})
	assert.True(t, apperror.IsForbidden(err))
	contracts.AssertNotCalled(t, "CreateWithAllocation", mock.Anything, mock.Anything)
}

func TestContractService_CreateContract_RequiresApprovedProposal(t *testing.T) {
	contracts := new(mockContractRepo)
	jobs := new(mockProposalSource)
	svc := newContractService(contracts, jobs, new(mockContractEscrow))
	ctx := context.Background()

	clientID := uuid.New()
	jobID := uuid.New()
	proposalID := uuid.New()
	jobs.On("GetProposalByID", ctx, proposalID).Return(&models.Proposal{ID: proposalID, JobID: jobID, Status: models.ProposalStatusPending}, nil)
	jobs.On("GetByID", ctx, jobID).Return(&models.Job{ID: jobID, ClientID: clientID}, nil)

	_, err := svc.CreateContract(ctx, CreateContractInput{ProposalID: proposalID, ClientID: clientID})
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestContractService_CreateContract_BudgetErrors(t *testing.T) {
	ctx := context.Background()
	clientID := uuid.New()
	jobID := uuid.New()
	proposalID := uuid.New()

	cases := []struct {
		name     string
		repoErr  error
		wantCode apperror.ErrorCode
	}{
		{"занятые места", models.ErrCapacityExceeded, apperror.ErrCodeCapacityExceeded},
		{"исчерпанный бюджет", models.ErrBudgetExceeded, apperror.ErrCodeBudgetExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			contracts := new(mockContractRepo)
			jobs := new(mockProposalSource)
			svc := newContractService(contracts, jobs, new(mockContractEscrow))

			jobs.On("GetProposalByID", ctx, proposalID).Return(&models.Proposal{ID: proposalID, JobID: jobID, Status: models.ProposalStatusApproved}, nil)
			jobs.On("GetByID", ctx, jobID).Return(&models.Job{ID: jobID, ClientID: clientID}, nil)
			contracts.On("CreateWithAllocation", ctx, mock.Anything).Return(nil, tc.repoErr)

			_, err := svc.CreateContract(ctx, CreateContractInput{ProposalID: proposalID, ClientID: clientID})
			assert.Error(t, err)
			assert.Equal(t, tc.wantCode, appErrorCode(err))
		})
	}
}

func TestContractService_Accept_Success(t *testing.T) {
	contracts := new(mockContractRepo)
	svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
	ctx := context.Background()

	contractID := uuid.New()
	workerID := uuid.New()
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:       contractID,
		WorkerID: workerID,
		Status:   models.ContractStatusReady,
	}, nil)
	accepted := &models.Contract{ID: contractID, WorkerID: workerID, ClientID: uuid.New(), ContractNumber: "CTR-000011", Status: models.ContractStatusAccepted}
	contracts.On("Accept", ctx, contractID, workerID).Return(accepted, nil)

	got, err := svc.Accept(ctx, contractID, workerID)
	assert.NoError(t, err)
	assert.Equal(t, models.ContractStatusAccepted, got.Status)
	contracts.AssertExpectations(t)
}

func TestContractService_Accept_NotFunded(t *testing.T) {
	contracts := new(mockContractRepo)
	svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
	ctx := context.Background()

	contractID := uuid.New()
	workerID := uuid.New()
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:       contractID,
		WorkerID: workerID,
		Status:   models.ContractStatusPending,
	}, nil)

	// До поступления эскроу контракт в работу не принимается.
	_, err := svc.Accept(ctx, contractID, workerID)
	assert.True(t, apperror.IsInvalidTransition(err))
	contracts.AssertNotCalled(t, "Accept", mock.Anything, mock.Anything, mock.Anything)
}

func TestContractService_Accept_ForeignWorker(t *testing.T) {
	contracts := new(mockContractRepo)
	svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
	ctx := context.Background()

	contractID := uuid.New()
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:       contractID,
		WorkerID: uuid.New(),
		Status:   models.ContractStatusReady,
	}, nil)

	_, err := svc.Accept(ctx, contractID, uuid.New())
	assert.True(t, apperror.IsForbidden(err))
}

func TestContractService_RequestCompletion(t *testing.T) {
	contracts := new(mockContractRepo)
	svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
	ctx := context.Background()

	contractID := uuid.New()
	workerID := uuid.New()
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:       contractID,
		WorkerID: workerID,
		Status:   models.ContractStatusInProgress,
	}, nil)
	updated := &models.Contract{ID: contractID, WorkerID: workerID, ClientID: uuid.New(), ContractNumber: "CTR-000012", Status: models.ContractStatusAwaitingConfirmation}
	contracts.On("UpdateStatus", ctx, contractID, models.ContractStatusInProgress, models.ContractStatusAwaitingConfirmation, &workerID).
		Return(updated, nil)

	got, err := svc.RequestCompletion(ctx, contractID, workerID)
	assert.NoError(t, err)
	assert.Equal(t, models.ContractStatusAwaitingConfirmation, got.Status)
	contracts.AssertExpectations(t)
}

func TestContractService_RequestCompletion_TooEarly(t *testing.T) {
	contracts := new(mockContractRepo)
	svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
	ctx := context.Background()

	contractID := uuid.New()
	workerID := uuid.New()
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:       contractID,
		WorkerID: workerID,
		Status:   models.ContractStatusAccepted,
	}, nil)

	// Из accepted на подтверждение не отправить: сначала начало работ.
	_, err := svc.RequestCompletion(ctx, contractID, workerID)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestContractService_ConfirmCompletion_SecondConfirmationCompletes(t *testing.T) {
	contracts := new(mockContractRepo)
	svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
	ctx := context.Background()

	contractID := uuid.New()
	clientID := uuid.New()
	workerID := uuid.New()
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:            contractID,
		ClientID:      clientID,
		WorkerID:      workerID,
		Status:        models.ContractStatusAwaitingConfirmation,
		DoerConfirmed: true,
	}, nil)
	completed := &models.Contract{
		ID:              contractID,
		ClientID:        clientID,
		WorkerID:        workerID,
		ContractNumber:  "CTR-000013",
		Status:          models.ContractStatusCompleted,
		ClientConfirmed: true,
		DoerConfirmed:   true,
	}
	contracts.On("Confirm", ctx, contractID, models.RoleClient, clientID).Return(completed, true, nil)

	got, done, err := svc.ConfirmCompletion(ctx, contractID, clientID)
	assert.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, models.ContractStatusCompleted, got.Status)
	contracts.AssertExpectations(t)
}

func TestContractService_ConfirmCompletion_FirstConfirmationKeepsStatus(t *testing.T) {
	contracts := new(mockContractRepo)
	svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
	ctx := context.Background()

	contractID := uuid.New()
	clientID := uuid.New()
	workerID := uuid.New()
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:       contractID,
		ClientID: clientID,
		WorkerID: workerID,
		Status:   models.ContractStatusAwaitingConfirmation,
	}, nil)
	confirmed := &models.Contract{
		ID:             contractID,
		ClientID:       clientID,
		WorkerID:       workerID,
		ContractNumber: "CTR-000014",
		Status:         models.ContractStatusAwaitingConfirmation,
		DoerConfirmed:  true,
	}
	contracts.On("Confirm", ctx, contractID, models.RoleWorker, workerID).Return(confirmed, false, nil)

	got, done, err := svc.ConfirmCompletion(ctx, contractID, workerID)
	assert.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, models.ContractStatusAwaitingConfirmation, got.Status)
}

func TestContractService_ConfirmCompletion_OnlyParties(t *testing.T) {
	contracts := new(mockContractRepo)
	svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
	ctx := context.Background()

	contractID := uuid.New()
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:       contractID,
		ClientID: uuid.New(),
		WorkerID: uuid.New(),
		Status:   models.ContractStatusAwaitingConfirmation,
	}, nil)

	_, _, err := svc.ConfirmCompletion(ctx, contractID, uuid.New())
	assert.True(t, apperror.IsForbidden(err))
	contracts.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestContractService_RequestExtension_Validation(t *testing.T) {
	contracts := new(mockContractRepo)
	svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
	ctx := context.Background()

	_, err := svc.RequestExtension(ctx, uuid.New(), uuid.New(), 0, nil)
	assert.True(t, apperror.IsValidation(err))

	badAmount := float64(-300)
	_, err = svc.RequestExtension(ctx, uuid.New(), uuid.New(), 3, &badAmount)
	assert.True(t, apperror.IsValidation(err))
	contracts.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestContractService_RequestExtension_OnlyActiveContract(t *testing.T) {
	contracts := new(mockContractRepo)
	svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
	ctx := context.Background()

	contractID := uuid.New()
	workerID := uuid.New()
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:       contractID,
		WorkerID: workerID,
		Status:   models.ContractStatusAwaitingConfirmation,
	}, nil)

	_, err := svc.RequestExtension(ctx, contractID, workerID, 5, nil)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestContractService_RequestExtension_Success(t *testing.T) {
	contracts := new(mockContractRepo)
	svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
	ctx := context.Background()

	contractID := uuid.New()
	workerID := uuid.New()
	extra := float64(1500)
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:       contractID,
		WorkerID: workerID,
		Status:   models.ContractStatusInProgress,
	}, nil)
	updated := &models.Contract{ID: contractID, WorkerID: workerID, ClientID: uuid.New(), ContractNumber: "CTR-000015", Status: models.ContractStatusInProgress}
	contracts.On("RequestExtension", ctx, contractID, workerID, 5, &extra).Return(updated, nil)

	_, err := svc.RequestExtension(ctx, contractID, workerID, 5, &extra)
	assert.NoError(t, err)
	contracts.AssertExpectations(t)
}

func TestContractService_ExtensionRepoErrors(t *testing.T) {
	ctx := context.Background()
	contractID := uuid.New()
	workerID := uuid.New()
	clientID := uuid.New()

	t.Run("повторный запрос при ожидающем решении", func(t *testing.T) {
		contracts := new(mockContractRepo)
		svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
		contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
			ID: contractID, WorkerID: workerID, Status: models.ContractStatusInProgress,
		}, nil)
		contracts.On("RequestExtension", ctx, contractID, workerID, 3, (*float64)(nil)).
			Return(nil, repository.ErrExtensionPending)

		_, err := svc.RequestExtension(ctx, contractID, workerID, 3, nil)
		assert.True(t, apperror.IsInvalidTransition(err))
	})

	t.Run("второе продление", func(t *testing.T) {
		contracts := new(mockContractRepo)
		svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
		contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
			ID: contractID, WorkerID: workerID, Status: models.ContractStatusInProgress, HasBeenExtended: true,
		}, nil)
		contracts.On("RequestExtension", ctx, contractID, workerID, 3, (*float64)(nil)).
			Return(nil, repository.ErrExtensionAlreadyUsed)

		_, err := svc.RequestExtension(ctx, contractID, workerID, 3, nil)
		assert.True(t, apperror.IsInvalidTransition(err))
	})

	t.Run("одобрение без запроса", func(t *testing.T) {
		contracts := new(mockContractRepo)
		svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
		contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
			ID: contractID, ClientID: clientID, Status: models.ContractStatusInProgress,
		}, nil)
		contracts.On("ApproveExtension", ctx, contractID, clientID).
			Return(nil, repository.ErrExtensionNotRequested)

		_, err := svc.ApproveExtension(ctx, contractID, clientID)
		assert.True(t, apperror.IsInvalidTransition(err))
	})
}

func TestContractService_ApproveExtension_ForeignClient(t *testing.T) {
	contracts := new(mockContractRepo)
	svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
	ctx := context.Background()

	contractID := uuid.New()
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:       contractID,
		ClientID: uuid.New(),
		Status:   models.ContractStatusInProgress,
	}, nil)

	_, err := svc.ApproveExtension(ctx, contractID, uuid.New())
	assert.True(t, apperror.IsForbidden(err))
	contracts.AssertNotCalled(t, "ApproveExtension", mock.Anything, mock.Anything, mock.Anything)
}

func TestContractService_RejectExtension(t *testing.T) {
	contracts := new(mockContractRepo)
	svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
	ctx := context.Background()

	contractID := uuid.New()
	clientID := uuid.New()
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:       contractID,
		ClientID: clientID,
		Status:   models.ContractStatusInProgress,
	}, nil)
	updated := &models.Contract{ID: contractID, ClientID: clientID, WorkerID: uuid.New(), ContractNumber: "CTR-000016", Status: models.ContractStatusInProgress}
	contracts.On("RejectExtension", ctx, contractID, clientID).Return(updated, nil)

	_, err := svc.RejectExtension(ctx, contractID, clientID)
	assert.NoError(t, err)
	contracts.AssertExpectations(t)
}

func TestContractService_ModifyPrice_Validation(t *testing.T) {
	contracts := new(mockContractRepo)
	svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
	ctx := context.Background()

	_, err := svc.ModifyPrice(ctx, uuid.New(), uuid.New(), 0, "скидка")
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.ModifyPrice(ctx, uuid.New(), uuid.New(), 1000, "")
	assert.True(t, apperror.IsValidation(err))
	contracts.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestContractService_ModifyPrice_OnlyBeforeWork(t *testing.T) {
	contracts := new(mockContractRepo)
	svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
	ctx := context.Background()

	contractID := uuid.New()
	clientID := uuid.New()
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:       contractID,
		ClientID: clientID,
		Status:   models.ContractStatusInProgress,
	}, nil)
	contracts.On("ModifyPrice", ctx, contractID, clientID, float64(4000), 0.1, "пересогласовали объём").
		Return(nil, repository.ErrContractStateChanged)

	_, err := svc.ModifyPrice(ctx, contractID, clientID, 4000, "пересогласовали объём")
	assert.True(t, apperror.IsInvalidTransition(err))
	assert.Contains(t, err.Error(), "до начала работ")
}

func TestContractService_ModifyPrice_Success(t *testing.T) {
	contracts := new(mockContractRepo)
	svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
	ctx := context.Background()

	contractID := uuid.New()
	clientID := uuid.New()
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:       contractID,
		ClientID: clientID,
		Status:   models.ContractStatusPending,
	}, nil)
	updated := &models.Contract{
		ID:             contractID,
		ClientID:       clientID,
		WorkerID:       uuid.New(),
		ContractNumber: "CTR-000017",
		Price:          4000,
		Commission:     400,
		TotalPrice:     4400,
		Status:         models.ContractStatusPending,
	}
	contracts.On("ModifyPrice", ctx, contractID, clientID, float64(4000), 0.1, "пересогласовали объём").Return(updated, nil)

	got, err := svc.ModifyPrice(ctx, contractID, clientID, 4000, "пересогласовали объём")
	assert.NoError(t, err)
	assert.Equal(t, float64(4400), got.TotalPrice)
	contracts.AssertExpectations(t)
}

func TestContractService_Cancel_DisputedBlocked(t *testing.T) {
	contracts := new(mockContractRepo)
	escrow := new(mockContractEscrow)
	svc := newContractService(contracts, new(mockProposalSource), escrow)
	ctx := context.Background()

	contractID := uuid.New()
	clientID := uuid.New()
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:       contractID,
		ClientID: clientID,
		WorkerID: uuid.New(),
		Status:   models.ContractStatusDisputed,
	}, nil)

	_, err := svc.Cancel(ctx, contractID, clientID, models.RoleClient, "передумал")
	assert.True(t, apperror.IsInvalidTransition(err))
	assert.Contains(t, err.Error(), "арбитраж")
	escrow.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestContractService_Cancel_RefundsHeldEscrow(t *testing.T) {
	contracts := new(mockContractRepo)
	escrow := new(mockContractEscrow)
	svc := newContractService(contracts, new(mockProposalSource), escrow)
	ctx := context.Background()

	contractID := uuid.New()
	clientID := uuid.New()
	workerID := uuid.New()
	active := &models.Contract{
		ID:           contractID,
		ClientID:     clientID,
		WorkerID:     workerID,
		Status:       models.ContractStatusAccepted,
		EscrowStatus: models.EscrowStatusHeldEscrow,
	}
	cancelled := &models.Contract{
		ID:             contractID,
		ClientID:       clientID,
		WorkerID:       workerID,
		ContractNumber: "CTR-000018",
		Status:         models.ContractStatusCancelled,
		EscrowStatus:   models.EscrowStatusReleased,
	}
	contracts.On("GetByID", ctx, contractID).Return(active, nil).Once()
	escrow.On("Refund", ctx, contractID, "исполнитель пропал", true).
		Return(&models.Payment{ID: uuid.New(), Status: models.PaymentStatusRefunded}, nil)
	contracts.On("GetByID", ctx, contractID).Return(cancelled, nil).Once()

	got, err := svc.Cancel(ctx, contractID, clientID, models.RoleClient, "исполнитель пропал")
	assert.NoError(t, err)
	assert.Equal(t, models.ContractStatusCancelled, got.Status)
	escrow.AssertExpectations(t)
	contracts.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestContractService_Cancel_WithoutEscrow(t *testing.T) {
	contracts := new(mockContractRepo)
	escrow := new(mockContractEscrow)
	svc := newContractService(contracts, new(mockProposalSource), escrow)
	ctx := context.Background()

	contractID := uuid.New()
	clientID := uuid.New()
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:           contractID,
		ClientID:     clientID,
		WorkerID:     uuid.New(),
		Status:       models.ContractStatusPending,
		EscrowStatus: models.EscrowStatusPending,
	}, nil)
	cancelled := &models.Contract{ID: contractID, ClientID: clientID, WorkerID: uuid.New(), ContractNumber: "CTR-000019", Status: models.ContractStatusCancelled}
	contracts.On("UpdateStatus", ctx, contractID, models.ContractStatusPending, models.ContractStatusCancelled, &clientID).
		Return(cancelled, nil)

	got, err := svc.Cancel(ctx, contractID, clientID, models.RoleClient, "нашёл другого исполнителя")
	assert.NoError(t, err)
	assert.Equal(t, models.ContractStatusCancelled, got.Status)
	escrow.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestContractService_Cancel_TerminalStatus(t *testing.T) {
	contracts := new(mockContractRepo)
	svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
	ctx := context.Background()

	contractID := uuid.New()
	clientID := uuid.New()
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:       contractID,
		ClientID: clientID,
		WorkerID: uuid.New(),
		Status:   models.ContractStatusCompleted,
	}, nil)

	_, err := svc.Cancel(ctx, contractID, clientID, models.RoleClient, "поздно")
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestContractService_GetContract_Access(t *testing.T) {
	contracts := new(mockContractRepo)
	svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
	ctx := context.Background()

	contractID := uuid.New()
	clientID := uuid.New()
	contract := &models.Contract{ID: contractID, ClientID: clientID, WorkerID: uuid.New()}
	contracts.On("GetByID", ctx, contractID).Return(contract, nil)

	got, err := svc.GetContract(ctx, contractID, clientID, models.RoleClient)
	assert.NoError(t, err)
	assert.Equal(t, contract, got)

	_, err = svc.GetContract(ctx, contractID, uuid.New(), models.RoleAdmin)
	assert.NoError(t, err)

	_, err = svc.GetContract(ctx, contractID, uuid.New(), models.RoleWorker)
	assert.True(t, apperror.IsForbidden(err))
}

func TestContractService_ListJobContracts_OwnerOnly(t *testing.T) {
	contracts := new(mockContractRepo)
	jobs := new(mockProposalSource)
	svc := newContractService(contracts, jobs, new(mockContractEscrow))
	ctx := context.Background()

	jobID := uuid.New()
	clientID := uuid.New()
	jobs.On("GetByID", ctx, jobID).Return(&models.Job{ID: jobID, ClientID: clientID}, nil)
	contracts.On("ListByJob", ctx, jobID).Return([]models.Contract{{ID: uuid.New(), JobID: jobID}}, nil)

	list, err := svc.ListJobContracts(ctx, jobID, clientID, models.RoleClient)
	assert.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.ListJobContracts(ctx, jobID, uuid.New(), models.RoleWorker)
	assert.True(t, apperror.IsForbidden(err))

	_, err = svc.ListJobContracts(ctx, jobID, uuid.New(), models.RoleAdmin)
	assert.NoError(t, err)
}

func TestContractService_ListMyContracts_NormalizesPaging(t *testing.T) {
	contracts := new(mockContractRepo)
	svc := newContractService(contracts, new(mockProposalSource), new(mockContractEscrow))
	ctx := context.Background()
	userID := uuid.New()

	contracts.On("ListByUser", ctx, userID, 20, 0).Return([]models.Contract{}, 0, nil)

	_, _, err := svc.ListMyContracts(ctx, userID, 500, -1)
	assert.NoError(t, err)
	contracts.AssertExpectations(t)
}
