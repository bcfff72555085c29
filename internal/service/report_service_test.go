package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/laburoapp/laburo-backend/internal/models"
	"github.com/laburoapp/laburo-backend/internal/pkg/apperror"
	"github.com/laburoapp/laburo-backend/internal/repository"
)

type mockReportRepo struct {
	mock.Mock
}

func (m *mockReportRepo) ListPendingPayments(ctx context.Context, filter repository.PendingPaymentsFilter) ([]models.PendingPaymentRow, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PendingPaymentRow), args.Error(1)
}

func (m *mockReportRepo) GetPendingPaymentByContract(ctx context.Context, contractID uuid.UUID) (*models.PendingPaymentRow, error) {
	args := m.Called(ctx, contractID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PendingPaymentRow), args.Error(1)
}

type mockPayoutRecorder struct {
	mock.Mock
}

func (m *mockPayoutRecorder) RecordPayout(ctx context.Context, in RecordPayoutInput) (*repository.RecordPayoutResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.RecordPayoutResult), args.Error(1)
}

func (m *mockPayoutRecorder) FixStatus(ctx context.Context, contractID, adminID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, contractID, adminID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// spyCache — кэш отчётов в памяти со счётчиком инвалидаций.
type spyCache struct {
	store       map[string][]byte
	invalidated int
}

func newSpyCache() *spyCache {
	return &spyCache{store: make(map[string][]byte)}
}

func (c *spyCache) Get(_ context.Context, key string) ([]byte, bool) {
	data, ok := c.store[key]
	return data, ok
}

func (c *spyCache) Set(_ context.Context, key string, data []byte, _ time.Duration) {
	c.store[key] = data
}

func (c *spyCache) InvalidateByPrefix(_ context.Context, prefix string) {
	c.invalidated++
	for key := range c.store {
		if strings.HasPrefix(key, prefix) {
			delete(c.store, key)
		}
	}
}

func reportRow(jobID uuid.UUID, jobTitle, workerName string, amount, commission float64, bank *string) models.PendingPaymentRow {
	return models.PendingPaymentRow{
		PaymentID:      uuid.New(),
		ContractID:     uuid.New(),
		ContractNumber: "CTR-" + workerName[:1] + "00",
		JobID:          jobID,
		JobTitle:       jobTitle,
		ClientID:       uuid.New(),
		ClientName:     "ООО Заказчик",
		WorkerID:       uuid.New(),
		WorkerName:     workerName,
		WorkerEmail:    "worker@example.com",
		BankName:       bank,
		Amount:         amount,
		Commission:     commission,
		TotalPrice:     amount + commission,
		PaymentStatus:  models.PaymentStatusConfirmedForPayout,
	}
}

func TestReportQuery_Normalize(t *testing.T) {
	q := ReportQuery{}
	assert.NoError(t, q.normalize())
	assert.Equal(t, models.ReportPeriodWeekly, q.Period)
	assert.Equal(t, "date", q.SortBy)
	assert.Equal(t, "desc", q.SortOrder)

	bad := []ReportQuery{
		{Period: "quarterly"},
		{Period: models.ReportPeriodCustom},
		{SortBy: "client"},
		{SortOrder: "sideways"},
	}
	for _, q := range bad {
		q := q
		assert.Error(t, q.normalize())
	}

	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -3)
	q = ReportQuery{Period: models.ReportPeriodCustom, From: &from, To: &to}
	err := q.normalize()
	assert.True(t, apperror.IsValidation(err))
}

func TestReportService_PendingPayments_BuildsReport(t *testing.T) {
	reports := new(mockReportRepo)
	svc := NewReportService(reports, new(mockPayoutRecorder), nil)
	ctx := context.Background()

	jobA := uuid.New()
	jobB := uuid.New()
	nacion := "Banco Nación"
	rows := []models.PendingPaymentRow{
		reportRow(jobA, "Перевод каталога", "Ana", 1000, 100, &nacion),
		reportRow(jobB, "Вёрстка лендинга", "Bruno", 2000.50, 200.05, nil),
		reportRow(jobA, "Перевод каталога", "Carla", 500.25, 50.03, &nacion),
	}
	reports.On("ListPendingPayments", ctx, mock.Anything).Return(rows, nil)

	report, err := svc.PendingPayments(ctx, ReportQuery{Period: models.ReportPeriodWeekly})
	assert.NoError(t, err)
	assert.Len(t, report.Rows, 3)
	assert.Equal(t, 3500.75, report.Summary.TotalAmountToPay)
	assert.Equal(t, 350.08, report.Summary.TotalCommissionCollected)
	assert.Equal(t, 3, report.Summary.TotalContracts)

	// Группы следуют порядку строк, суммы сводятся внутри задания.
	assert.Len(t, report.ByJob, 2)
	assert.Equal(t, jobA, report.ByJob[0].JobID)
	assert.Equal(t, 1500.25, report.ByJob[0].TotalAmount)
	assert.Len(t, report.ByJob[0].Rows, 2)
	assert.Equal(t, jobB, report.ByJob[1].JobID)

	// Разрез по банкам: безбанковские строки собираются отдельно.
	assert.Len(t, report.Summary.ByBank, 2)
	assert.Equal(t, "Banco Nación", report.Summary.ByBank[0].BankName)
	assert.Equal(t, 2, report.Summary.ByBank[0].Contracts)
	assert.Equal(t, 1500.25, report.Summary.ByBank[0].Amount)
	assert.Equal(t, "не указан", report.Summary.ByBank[1].BankName)
}

func TestReportService_PendingPayments_UsesCache(t *testing.T) {
	reports := new(mockReportRepo)
	cache := newSpyCache()
	svc := NewReportService(reports, new(mockPayoutRecorder), cache)
	ctx := context.Background()

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	q := ReportQuery{Period: models.ReportPeriodCustom, From: &from, To: &to}

	rows := []models.PendingPaymentRow{reportRow(uuid.New(), "Задание", "Diego", 700, 70, nil)}
	reports.On("ListPendingPayments", ctx, repository.PendingPaymentsFilter{
		From:      from,
		To:        to,
		SortBy:    "date",
		SortOrder: "desc",
	}).Return(rows, nil).Once()

	first, err := svc.PendingPayments(ctx, q)
	assert.NoError(t, err)

	// Повторный запрос за тот же период отвечает из кэша.
	second, err := svc.PendingPayments(ctx, q)
	assert.NoError(t, err)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Len(t, second.Rows, 1)
	reports.AssertNumberOfCalls(t, "ListPendingPayments", 1)
}

func TestReportService_PendingPayments_CorruptCacheIgnored(t *testing.T) {
	reports := new(mockReportRepo)
	cache := newSpyCache()
	svc := NewReportService(reports, new(mockPayoutRecorder), cache)
	ctx := context.Background()

	from := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC)
	key := PayoutReportCacheKey(models.ReportPeriodCustom, from, to, "date", "desc")
	cache.store[key] = []byte("{broken json")

	reports.On("ListPendingPayments", ctx, mock.Anything).
		Return([]models.PendingPaymentRow{}, nil)

	report, err := svc.PendingPayments(ctx, ReportQuery{Period: models.ReportPeriodCustom, From: &from, To: &to})
	assert.NoError(t, err)
	assert.Equal(t, 0, report.Summary.TotalContracts)
	reports.AssertNumberOfCalls(t, "ListPendingPayments", 1)
}

func TestReportService_MarkPaid_InvalidatesCache(t *testing.T) {
	recorder := new(mockPayoutRecorder)
	cache := newSpyCache()
	svc := NewReportService(new(mockReportRepo), recorder, cache)
	ctx := context.Background()

	cache.store["payout_report:weekly:a"] = []byte("{}")
	cache.store["other:key"] = []byte("{}")

	in := RecordPayoutInput{
		ContractID: uuid.New(),
		ProofURL:   "https://files.example.com/proof.pdf",
		AdminID:    uuid.New(),
	}
	recorder.On("RecordPayout", ctx, in).Return(&repository.RecordPayoutResult{NetAmount: 900}, nil)

	_, err := svc.MarkPaid(ctx, in)
	assert.NoError(t, err)
	assert.Equal(t, 1, cache.invalidated)
	_, otherKept := cache.store["other:key"]
	assert.True(t, otherKept)
	_, reportKept := cache.store["payout_report:weekly:a"]
	assert.False(t, reportKept)
}

func TestReportService_MarkPaid_ErrorKeepsCache(t *testing.T) {
	recorder := new(mockPayoutRecorder)
	cache := newSpyCache()
	svc := NewReportService(new(mockReportRepo), recorder, cache)
	ctx := context.Background()

	recorder.On("RecordPayout", ctx, mock.Anything).Return(nil, repository.ErrPaymentAlreadyPaid)

	_, err := svc.MarkPaid(ctx, RecordPayoutInput{ContractID: uuid.New(), ProofURL: "https://x", AdminID: uuid.New()})
	assert.Error(t, err)
	assert.Equal(t, 0, cache.invalidated)
}

func TestReportService_FixStatus(t *testing.T) {
	ctx := context.Background()
	contractID := uuid.New()
	adminID := uuid.New()

	t.Run("расхождения починены", func(t *testing.T) {
		recorder := new(mockPayoutRecorder)
		cache := newSpyCache()
		svc := NewReportService(new(mockReportRepo), recorder, cache)
		recorder.On("FixStatus", ctx, contractID, adminID).
			Return([]string{"contract: awaiting_confirmation -> completed"}, nil)

		changed, err := svc.FixStatus(ctx, contractID, adminID)
		assert.NoError(t, err)
		assert.Len(t, changed, 1)
		assert.Equal(t, 1, cache.invalidated)
	})

	t.Run("расхождений нет", func(t *testing.T) {
		recorder := new(mockPayoutRecorder)
		cache := newSpyCache()
		svc := NewReportService(new(mockReportRepo), recorder, cache)
		recorder.On("FixStatus", ctx, contractID, adminID).Return([]string{}, nil)

		changed, err := svc.FixStatus(ctx, contractID, adminID)
		assert.NoError(t, err)
		assert.Empty(t, changed)
		// Нечего сбрасывать: отчёт не менялся.
		assert.Equal(t, 0, cache.invalidated)
	})
}

func TestReportService_ExportCSV(t *testing.T) {
	reports := new(mockReportRepo)
	svc := NewReportService(reports, new(mockPayoutRecorder), nil)
	ctx := context.Background()

	confirmed := time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)
	jobID := uuid.New()
	withComma := reportRow(jobID, "Дизайн, вёрстка и правки", "Pérez, Juan", 1000.50, 100.05, nil)
	withComma.ConfirmedAt = &confirmed
	rows := []models.PendingPaymentRow{
		withComma,
		reportRow(jobID, "Дизайн, вёрстка и правки", "Ana", 2000.25, 200.03, nil),
		reportRow(uuid.New(), "Перевод", "Bruno", 999.25, 99.93, nil),
	}
	reports.On("ListPendingPayments", ctx, mock.Anything).Return(rows, nil)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	data, filename, err := svc.ExportCSV(ctx, ReportQuery{Period: models.ReportPeriodCustom, From: &from, To: &to})
	assert.NoError(t, err)
	assert.Equal(t, "payouts_2025-03-01_2025-03-31.csv", filename)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	assert.NoError(t, err)
	assert.Len(t, records, 4)
	assert.Equal(t, "contract_number", records[0][0])
	assert.Equal(t, "confirmed_at", records[0][13])

	// Имя с запятой переживает квотирование.
	assert.Equal(t, "Pérez, Juan", records[1][3])
	assert.Equal(t, "1000.50", records[1][10])
	assert.Equal(t, "2025-03-15 10:30", records[1][13])
	assert.Equal(t, "", records[2][13])

	// Сумма колонки сходится с итогом по строкам.
	var total float64
	for _, rec := range records[1:] {
		v, err := strconv.ParseFloat(rec[10], 64)
		assert.NoError(t, err)
		total += v
	}
	assert.Equal(t, 4000.00, total)
}

func TestReportService_PendingPaymentDetail_NotFound(t *testing.T) {
	reports := new(mockReportRepo)
	svc := NewReportService(reports, new(mockPayoutRecorder), nil)
	ctx := context.Background()
	contractID := uuid.New()

	reports.On("GetPendingPaymentByContract", ctx, contractID).
		Return(nil, repository.ErrPendingPaymentNotFound)

	_, err := svc.PendingPaymentDetail(ctx, contractID)
	assert.True(t, apperror.IsNotFound(err))
}
