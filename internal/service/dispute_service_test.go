package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/laburoapp/laburo-backend/internal/models"
	"github.com/laburoapp/laburo-backend/internal/pkg/apperror"
	"github.com/laburoapp/laburo-backend/internal/repository"
)

type mockDisputeRepo struct {
	mock.Mock
}

func (m *mockDisputeRepo) Open(ctx context.Context, dispute *models.Dispute) error {
	args := m.Called(ctx, dispute)
	return args.Error(0)
}

func (m *mockDisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) GetByContractID(ctx context.Context, contractID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, contractID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) List(ctx context.Context, status string, limit, offset int) ([]models.Dispute, int, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]models.Dispute), args.Int(1), args.Error(2)
}

func (m *mockDisputeRepo) AddMessage(ctx context.Context, msg *models.DisputeMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockDisputeRepo) ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	args := m.Called(ctx, disputeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DisputeMessage), args.Error(1)
}

func (m *mockDisputeRepo) AppendEvidence(ctx context.Context, disputeID uuid.UUID, urls []string) (*models.Dispute, error) {
	args := m.Called(ctx, disputeID, urls)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, to string) (*models.Dispute, error) {
	args := m.Called(ctx, id, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) Resolve(ctx context.Context, params repository.ResolveDisputeParams) (*repository.ResolveDisputeResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ResolveDisputeResult), args.Error(1)
}

func TestDisputeService_OpenDispute_Success(t *testing.T) {
	disputes := new(mockDisputeRepo)
	contracts := new(mockContractReader)
	svc := NewDisputeService(disputes, contracts, stubNotifier{})
	ctx := context.Background()

	contractID := uuid.New()
	clientID := uuid.New()
	workerID := uuid.New()
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:             contractID,
		ContractNumber: "CTR-000020",
		ClientID:       clientID,
		WorkerID:       workerID,
		Status:         models.ContractStatusInProgress,
	}, nil)
	disputes.On("Open", ctx, mock.AnythingOfType("*models.Dispute")).
		Run(func(args mock.Arguments) {
			d := args.Get(1).(*models.Dispute)
			d.ID = uuid.New()
			d.Status = models.DisputeStatusOpen
		}).
		Return(nil)

	dispute, err := svc.OpenDispute(ctx, OpenDisputeInput{
		ContractID:  contractID,
		InitiatorID: workerID,
		Category:    "payment",
		Reason:      "клиент не подтверждает выполненную работу",
		Evidence:    []string{"https://files.example.com/screen.png"},
	})
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusOpen, dispute.Status)
	// Ответчиком становится вторая сторона контракта.
	assert.Equal(t, clientID, dispute.DefendantID)
	assert.Len(t, dispute.Evidence, 1)
	disputes.AssertExpectations(t)
}

func TestDisputeService_OpenDispute_Validation(t *testing.T) {
	disputes := new(mockDisputeRepo)
	contracts := new(mockContractReader)
	svc := NewDisputeService(disputes, contracts, stubNotifier{})
	ctx := context.Background()

	_, err := svc.OpenDispute(ctx, OpenDisputeInput{ContractID: uuid.New(), InitiatorID: uuid.New(), Reason: "причина"})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.OpenDispute(ctx, OpenDisputeInput{ContractID: uuid.New(), InitiatorID: uuid.New(), Category: "quality"})
	assert.True(t, apperror.IsValidation(err))
	contracts.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestDisputeService_OpenDispute_OnlyParties(t *testing.T) {
	disputes := new(mockDisputeRepo)
	contracts := new(mockContractReader)
	svc := NewDisputeService(disputes, contracts, stubNotifier{})
	ctx := context.Background()

	contractID := uuid.New()
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:       contractID,
		ClientID: uuid.New(),
		WorkerID: uuid.New(),
	}, nil)

	_, err := svc.OpenDispute(ctx, OpenDisputeInput{
		ContractID:  contractID,
		InitiatorID: uuid.New(),
		Category:    "quality",
		Reason:      "не устраивает результат",
	})
	assert.True(t, apperror.IsForbidden(err))
	disputes.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
}

func TestDisputeService_OpenDispute_AlreadyOpen(t *testing.T) {
	disputes := new(mockDisputeRepo)
	contracts := new(mockContractReader)
	svc := NewDisputeService(disputes, contracts, stubNotifier{})
	ctx := context.Background()

	contractID := uuid.New()
	clientID := uuid.New()
	contracts.On("GetByID", ctx, contractID).Return(&models.Contract{
		ID:       contractID,
		ClientID: clientID,
		WorkerID: uuid.New(),
	}, nil)
	disputes.On("Open", ctx, mock.Anything).Return(repository.ErrDisputeAlreadyOpen)

	_, err := svc.OpenDispute(ctx, OpenDisputeInput{
		ContractID:  contractID,
		InitiatorID: clientID,
		Category:    "quality",
		Reason:      "работа не сдана",
	})
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestDisputeService_PostMessage(t *testing.T) {
	ctx := context.Background()
	disputeID := uuid.New()
	initiatorID := uuid.New()
	defendantID := uuid.New()
	open := &models.Dispute{
		ID:          disputeID,
		InitiatorID: initiatorID,
		DefendantID: defendantID,
		Status:      models.DisputeStatusOpen,
	}

	t.Run("сторона спора", func(t *testing.T) {
		disputes := new(mockDisputeRepo)
		svc := NewDisputeService(disputes, new(mockContractReader), stubNotifier{})
		disputes.On("GetByID", ctx, disputeID).Return(open, nil)
		disputes.On("AddMessage", ctx, mock.AnythingOfType("*models.DisputeMessage")).Return(nil)

		msg, err := svc.PostMessage(ctx, PostMessageInput{
			DisputeID: disputeID,
			SenderID:  initiatorID,
			Role:      models.RoleWorker,
			Message:   "прикладываю переписку",
		})
		assert.NoError(t, err)
		assert.False(t, msg.IsAdmin)
		assert.Equal(t, initiatorID, msg.SenderID)
	})

	t.Run("арбитр пишет от имени платформы", func(t *testing.T) {
		disputes := new(mockDisputeRepo)
		svc := NewDisputeService(disputes, new(mockContractReader), stubNotifier{})
		disputes.On("GetByID", ctx, disputeID).Return(open, nil)
		disputes.On("AddMessage", ctx, mock.AnythingOfType("*models.DisputeMessage")).Return(nil)

		msg, err := svc.PostMessage(ctx, PostMessageInput{
			DisputeID: disputeID,
			SenderID:  uuid.New(),
			Role:      models.RoleAdmin,
			Message:   "пришлите акт выполненных работ",
		})
		assert.NoError(t, err)
		assert.True(t, msg.IsAdmin)
	})

	t.Run("пустое сообщение", func(t *testing.T) {
		disputes := new(mockDisputeRepo)
		svc := NewDisputeService(disputes, new(mockContractReader), stubNotifier{})

		_, err := svc.PostMessage(ctx, PostMessageInput{DisputeID: disputeID, SenderID: initiatorID, Role: models.RoleWorker})
		assert.True(t, apperror.IsValidation(err))
		disputes.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("посторонний", func(t *testing.T) {
		disputes := new(mockDisputeRepo)
		svc := NewDisputeService(disputes, new(mockContractReader), stubNotifier{})
		disputes.On("GetByID", ctx, disputeID).Return(open, nil)

		_, err := svc.PostMessage(ctx, PostMessageInput{
			DisputeID: disputeID,
			SenderID:  uuid.New(),
			Role:      models.RoleClient,
			Message:   "я тоже хочу высказаться",
		})
		assert.True(t, apperror.IsForbidden(err))
	})

	t.Run("закрытый спор только для чтения", func(t *testing.T) {
		disputes := new(mockDisputeRepo)
		svc := NewDisputeService(disputes, new(mockContractReader), stubNotifier{})
		resolved := &models.Dispute{
			ID:          disputeID,
			InitiatorID: initiatorID,
			DefendantID: defendantID,
			Status:      models.DisputeStatusResolvedRefunded,
		}
		disputes.On("GetByID", ctx, disputeID).Return(resolved, nil)

		_, err := svc.PostMessage(ctx, PostMessageInput{
			DisputeID: disputeID,
			SenderID:  initiatorID,
			Role:      models.RoleWorker,
			Message:   "есть ещё аргумент",
		})
		assert.True(t, apperror.IsInvalidTransition(err))
		disputes.AssertNotCalled(t, "AddMessage", mock.Anything, mock.Anything)
	})
}

func TestDisputeService_AppendEvidence(t *testing.T) {
	ctx := context.Background()
	disputeID := uuid.New()
	initiatorID := uuid.New()
	open := &models.Dispute{
		ID:          disputeID,
		InitiatorID: initiatorID,
		DefendantID: uuid.New(),
		Status:      models.DisputeStatusAwaitingInfo,
	}

	t.Run("успех", func(t *testing.T) {
		disputes := new(mockDisputeRepo)
		svc := NewDisputeService(disputes, new(mockContractReader), stubNotifier{})
		urls := []string{"https://files.example.com/act.pdf"}
		disputes.On("GetByID", ctx, disputeID).Return(open, nil)
		updated := &models.Dispute{ID: disputeID, Evidence: urls, Status: models.DisputeStatusAwaitingInfo}
		disputes.On("AppendEvidence", ctx, disputeID, urls).Return(updated, nil)

		got, err := svc.AppendEvidence(ctx, disputeID, initiatorID, models.RoleClient, urls)
		assert.NoError(t, err)
		assert.Len(t, got.Evidence, 1)
		disputes.AssertExpectations(t)
	})

	t.Run("пустой список", func(t *testing.T) {
		disputes := new(mockDisputeRepo)
		svc := NewDisputeService(disputes, new(mockContractReader), stubNotifier{})

		_, err := svc.AppendEvidence(ctx, disputeID, initiatorID, models.RoleClient, nil)
		assert.True(t, apperror.IsValidation(err))

		_, err = svc.AppendEvidence(ctx, disputeID, initiatorID, models.RoleClient, []string{"https://ok", ""})
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("закрытый спор", func(t *testing.T) {
		disputes := new(mockDisputeRepo)
		svc := NewDisputeService(disputes, new(mockContractReader), stubNotifier{})
		resolved := &models.Dispute{ID: disputeID, InitiatorID: initiatorID, Status: models.DisputeStatusResolvedPartial}
		disputes.On("GetByID", ctx, disputeID).Return(resolved, nil)

		_, err := svc.AppendEvidence(ctx, disputeID, initiatorID, models.RoleClient, []string{"https://late"})
		assert.True(t, apperror.IsInvalidTransition(err))
	})
}

func TestDisputeService_ResolveDispute_Validation(t *testing.T) {
	disputes := new(mockDisputeRepo)
	svc := NewDisputeService(disputes, new(mockContractReader), stubNotifier{})
	ctx := context.Background()
	half := 0.5

	cases := []struct {
		name string
		in   ResolveDisputeInput
	}{
		{"доля при полной выплате", ResolveDisputeInput{Outcome: models.DisputeOutcomeReleaseToWorker, Resolution: "работа сдана", WorkerRatio: &half}},
		{"доля при полном возврате", ResolveDisputeInput{Outcome: models.DisputeOutcomeRefundToClient, Resolution: "работа не сдана", WorkerRatio: &half}},
		{"раздел без доли", ResolveDisputeInput{Outcome: models.DisputeOutcomePartialSplit, Resolution: "обе стороны правы"}},
		{"неизвестный исход", ResolveDisputeInput{Outcome: "split_the_difference", Resolution: "как-нибудь"}},
		{"без обоснования", ResolveDisputeInput{Outcome: models.DisputeOutcomeReleaseToWorker}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.DisputeID = uuid.New()
			tc.in.AdminID = uuid.New()
			_, err := svc.ResolveDispute(ctx, tc.in)
			assert.True(t, apperror.IsValidation(err))
		})
	}

	// Доля лежит строго между 0 и 1.
	for _, ratio := range []float64{0, 1, 1.5, -0.25} {
		r := ratio
		_, err := svc.ResolveDispute(ctx, ResolveDisputeInput{
			DisputeID:   uuid.New(),
			AdminID:     uuid.New(),
			Outcome:     models.DisputeOutcomePartialSplit,
			Resolution:  "раздел",
			WorkerRatio: &r,
		})
		assert.True(t, apperror.IsValidation(err), "доля %v должна отклоняться", ratio)
	}
	disputes.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestDisputeService_ResolveDispute_PartialSplit(t *testing.T) {
	disputes := new(mockDisputeRepo)
	svc := NewDisputeService(disputes, new(mockContractReader), stubNotifier{})
	ctx := context.Background()

	disputeID := uuid.New()
	adminID := uuid.New()
	half := 0.5
	result := &repository.ResolveDisputeResult{
		Dispute: &models.Dispute{ID: disputeID, Status: models.DisputeStatusResolvedPartial},
		Contract: &models.Contract{
			ID:             uuid.New(),
			ContractNumber: "CTR-000021",
			ClientID:       uuid.New(),
			WorkerID:       uuid.New(),
			Status:         models.ContractStatusCompleted,
		},
		WorkerCredit: &models.BalanceTransaction{Amount: 1000},
		ClientRefund: &models.BalanceTransaction{Amount: 1000},
	}
	disputes.On("Resolve", ctx, repository.ResolveDisputeParams{
		DisputeID:   disputeID,
		AdminID:     adminID,
		Outcome:     models.DisputeOutcomePartialSplit,
		Resolution:  "вина обоюдная",
		WorkerRatio: &half,
	}).Return(result, nil)

	got, err := svc.ResolveDispute(ctx, ResolveDisputeInput{
		DisputeID:   disputeID,
		AdminID:     adminID,
		Outcome:     models.DisputeOutcomePartialSplit,
		Resolution:  "вина обоюдная",
		WorkerRatio: &half,
	})
	assert.NoError(t, err)
	// Эскроу 2000 делится пополам между сторонами.
	assert.Equal(t, float64(1000), got.WorkerCredit.Amount)
	assert.Equal(t, float64(1000), got.ClientRefund.Amount)
	disputes.AssertExpectations(t)
}

func TestDisputeService_ResolveDispute_ReleaseToWorker(t *testing.T) {
	disputes := new(mockDisputeRepo)
	svc := NewDisputeService(disputes, new(mockContractReader), stubNotifier{})
	ctx := context.Background()

	disputeID := uuid.New()
	adminID := uuid.New()
	result := &repository.ResolveDisputeResult{
		Dispute: &models.Dispute{ID: disputeID, Status: models.DisputeStatusResolvedReleased},
		Contract: &models.Contract{
			ID:             uuid.New(),
			ContractNumber: "CTR-000022",
			ClientID:       uuid.New(),
			WorkerID:       uuid.New(),
			Status:         models.ContractStatusCompleted,
		},
		WorkerCredit: &models.BalanceTransaction{Amount: 3000},
	}
	disputes.On("Resolve", ctx, repository.ResolveDisputeParams{
		DisputeID:  disputeID,
		AdminID:    adminID,
		Outcome:    models.DisputeOutcomeReleaseToWorker,
		Resolution: "работа выполнена в срок",
	}).Return(result, nil)

	got, err := svc.ResolveDispute(ctx, ResolveDisputeInput{
		DisputeID:  disputeID,
		AdminID:    adminID,
		Outcome:    models.DisputeOutcomeReleaseToWorker,
		Resolution: "работа выполнена в срок",
	})
	assert.NoError(t, err)
	assert.Nil(t, got.ClientRefund)
	assert.Equal(t, models.DisputeStatusResolvedReleased, got.Dispute.Status)
}

func TestDisputeService_ResolveDispute_NoEscrow(t *testing.T) {
	disputes := new(mockDisputeRepo)
	svc := NewDisputeService(disputes, new(mockContractReader), stubNotifier{})
	ctx := context.Background()

	disputes.On("Resolve", ctx, mock.Anything).Return(nil, repository.ErrNoEscrowHeld)

	_, err := svc.ResolveDispute(ctx, ResolveDisputeInput{
		DisputeID:  uuid.New(),
		AdminID:    uuid.New(),
		Outcome:    models.DisputeOutcomeRefundToClient,
		Resolution: "возврат",
	})
	assert.True(t, apperror.IsInvalidTransition(err))
	assert.Contains(t, err.Error(), "эскроу")
}

func TestDisputeService_ListDisputes(t *testing.T) {
	disputes := new(mockDisputeRepo)
	svc := NewDisputeService(disputes, new(mockContractReader), stubNotifier{})
	ctx := context.Background()

	_, _, err := svc.ListDisputes(ctx, "sort_of_open", 10, 0)
	assert.True(t, apperror.IsValidation(err))

	disputes.On("List", ctx, models.DisputeStatusOpen, 20, 0).Return([]models.Dispute{}, 0, nil)
	_, _, err = svc.ListDisputes(ctx, models.DisputeStatusOpen, -1, -1)
	assert.NoError(t, err)
	disputes.AssertExpectations(t)
}

func TestDisputeService_GetDispute_Access(t *testing.T) {
	disputes := new(mockDisputeRepo)
	svc := NewDisputeService(disputes, new(mockContractReader), stubNotifier{})
	ctx := context.Background()

	disputeID := uuid.New()
	initiatorID := uuid.New()
	dispute := &models.Dispute{ID: disputeID, InitiatorID: initiatorID, DefendantID: uuid.New(), Status: models.DisputeStatusOpen}
	disputes.On("GetByID", ctx, disputeID).Return(dispute, nil)

	got, err := svc.GetDispute(ctx, disputeID, initiatorID, models.RoleClient)
	assert.NoError(t, err)
	assert.Equal(t, dispute, got)

	_, err = svc.GetDispute(ctx, disputeID, uuid.New(), models.RoleAdmin)
	assert.NoError(t, err)

	_, err = svc.GetDispute(ctx, disputeID, uuid.New(), models.RoleWorker)
	assert.True(t, apperror.IsForbidden(err))
}

func TestDisputeService_RequestInfo(t *testing.T) {
	disputes := new(mockDisputeRepo)
	svc := NewDisputeService(disputes, new(mockContractReader), stubNotifier{})
	ctx := context.Background()

	disputeID := uuid.New()
	updated := &models.Dispute{
		ID:          disputeID,
		InitiatorID: uuid.New(),
		DefendantID: uuid.New(),
		Status:      models.DisputeStatusAwaitingInfo,
	}
	disputes.On("UpdateStatus", ctx, disputeID, models.DisputeStatusAwaitingInfo).Return(updated, nil)

	got, err := svc.RequestInfo(ctx, disputeID)
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusAwaitingInfo, got.Status)

	disputes.On("UpdateStatus", ctx, disputeID, models.DisputeStatusInReview).
		Return(nil, repository.ErrDisputeStateChanged)
	_, err = svc.SetInReview(ctx, disputeID)
	assert.True(t, apperror.IsInvalidTransition(err))
}
