package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/laburoapp/laburo-backend/internal/logger"
	"github.com/laburoapp/laburo-backend/internal/models"
	"github.com/laburoapp/laburo-backend/internal/pkg/apperror"
	"github.com/laburoapp/laburo-backend/internal/repository"
)

// ReportRepository — читающая сторона очереди выплат.
type ReportRepository interface {
	ListPendingPayments(ctx context.Context, filter repository.PendingPaymentsFilter) ([]models.PendingPaymentRow, error)
	GetPendingPaymentByContract(ctx context.Context, contractID uuid.UUID) (*models.PendingPaymentRow, error)
}

// PayoutRecorder — пишущая сторона сверки: фиксация выплаты и починка
// рассинхронизированных статусов. Реализуется сервисом эскроу.
type PayoutRecorder interface {
	RecordPayout(ctx context.Context, in RecordPayoutInput) (*repository.RecordPayoutResult, error)
	FixStatus(ctx context.Context, contractID, adminID uuid.UUID) ([]string, error)
}

// ReportCache хранит сериализованные отчёты. Реализации: карта в памяти
// и Redis.
type ReportCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration)
	InvalidateByPrefix(ctx context.Context, prefix string)
}

const (
	payoutReportPrefix = "payout_report:"
	reportCacheTTL     = 5 * time.Minute
)

var reportSortColumns = map[string]struct{}{
	"date":   {},
	"amount": {},
	"worker": {},
}

// ReportService строит отчёт по выплатам за период: строки очереди с
// реквизитами исполнителей, группировка по заданиям, итоги и CSV-выгрузка.
// Отметка о выплате и починка статусов делегируются эскроу и сбрасывают
// кэш отчётов.
type ReportService struct {
	reports  ReportRepository
	recorder PayoutRecorder
	cache    ReportCache
}

func NewReportService(reports ReportRepository, recorder PayoutRecorder, cache ReportCache) *ReportService {
	return &ReportService{reports: reports, recorder: recorder, cache: cache}
}

// ReportQuery — параметры отчёта. Пустой период означает неделю.
type ReportQuery struct {
	Period    string
	From      *time.Time
	To        *time.Time
	SortBy    string
	SortOrder string
}

func (q *ReportQuery) normalize() error {
	if q.Period == "" {
		q.Period = models.ReportPeriodWeekly
	}
	if _, ok := models.ValidReportPeriods[q.Period]; !ok {
		return apperror.New(apperror.ErrCodeValidation, "неизвестный период отчёта: "+q.Period)
	}
	if q.Period == models.ReportPeriodCustom {
		if q.From == nil || q.To == nil {
			return apperror.New(apperror.ErrCodeValidation, "для произвольного периода укажите обе границы")
		}
		if q.To.Before(*q.From) {
			return apperror.New(apperror.ErrCodeValidation, "конец периода раньше его начала")
		}
	}
	if q.SortBy == "" {
		q.SortBy = "date"
	}
	if _, ok := reportSortColumns[q.SortBy]; !ok {
		return apperror.New(apperror.ErrCodeValidation, "сортировка допустима по date, amount или worker")
	}
	switch q.SortOrder {
	case "":
		q.SortOrder = "desc"
	case "asc", "desc":
	default:
		return apperror.New(apperror.ErrCodeValidation, "порядок сортировки asc или desc")
	}
	return nil
}

// PendingPayments возвращает отчёт по очереди выплат за период.
func (s *ReportService) PendingPayments(ctx context.Context, q ReportQuery) (*models.PayoutReport, error) {
	if err := q.normalize(); err != nil {
		return nil, err
	}

	from, to := models.ReportPeriodBounds(q.Period, time.Now(), q.From, q.To)
	key := PayoutReportCacheKey(q.Period, from, to, q.SortBy, q.SortOrder)

	if s.cache != nil {
		if data, ok := s.cache.Get(ctx, key); ok {
			var cached models.PayoutReport
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
			// Испорченная запись не фатальна: отчёт строится заново.
			if logger.Log != nil {
				logger.Log.WithField("key", key).Warn("report service: кэш отчёта не распакован")
			}
		}
	}

	rows, err := s.reports.ListPendingPayments(ctx, repository.PendingPaymentsFilter{
		From:      from,
		To:        to,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	})
	if err != nil {
		return nil, err
	}

	report := buildPayoutReport(q.Period, from, to, rows)

	if s.cache != nil {
		if data, err := json.Marshal(report); err == nil {
			s.cache.Set(ctx, key, data, reportCacheTTL)
		}
	}

	return report, nil
}

// PendingPaymentDetail возвращает строку очереди по контракту.
func (s *ReportService) PendingPaymentDetail(ctx context.Context, contractID uuid.UUID) (*models.PendingPaymentRow, error) {
	row, err := s.reports.GetPendingPaymentByContract(ctx, contractID)
	if err != nil {
		if errors.Is(err, repository.ErrPendingPaymentNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "платёж по контракту не найден")
		}
		return nil, err
	}
	return row, nil
}

// MarkPaid фиксирует выплату исполнителю и сбрасывает кэш отчётов.
func (s *ReportService) MarkPaid(ctx context.Context, in RecordPayoutInput) (*repository.RecordPayoutResult, error) {
	result, err := s.recorder.RecordPayout(ctx, in)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return result, nil
}

// FixStatus чинит рассинхронизированные статусы контракта и платежа.
func (s *ReportService) FixStatus(ctx context.Context, contractID, adminID uuid.UUID) ([]string, error) {
	changed, err := s.recorder.FixStatus(ctx, contractID, adminID)
	if err != nil {
		return nil, err
	}
	if len(changed) > 0 {
		s.invalidate(ctx)
	}
	return changed, nil
}

// ExportCSV строит отчёт и отдаёт его в CSV вместе с именем файла.
// Итоговой строки нет: суммы сводятся из колонок.
func (s *ReportService) ExportCSV(ctx context.Context, q ReportQuery) ([]byte, string, error) {
	report, err := s.PendingPayments(ctx, q)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"contract_number", "job_title", "client_name", "worker_name",
		"dni", "phone", "address", "bank_name", "cbu", "account_alias",
		"amount", "commission", "total_price", "confirmed_at",
	}
	if err := w.Write(header); err != nil {
		return nil, "", fmt.Errorf("report service: write csv header %w", err)
	}

	for _, row := range report.Rows {
		record := []string{
			row.ContractNumber,
			row.JobTitle,
			row.ClientName,
			row.WorkerName,
			stringOrEmpty(row.WorkerDNI),
			stringOrEmpty(row.WorkerPhone),
			stringOrEmpty(row.WorkerAddress),
			stringOrEmpty(row.BankName),
			stringOrEmpty(row.CBU),
			stringOrEmpty(row.AccountAlias),
			csvMoney(row.Amount),
			csvMoney(row.Commission),
			csvMoney(row.TotalPrice),
			csvTime(row.ConfirmedAt),
		}
		if err := w.Write(record); err != nil {
			return nil, "", fmt.Errorf("report service: write csv row %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", fmt.Errorf("report service: flush csv %w", err)
	}

	filename := fmt.Sprintf("payouts_%s_%s.csv",
		report.PeriodStart.Format("2006-01-02"), report.PeriodEnd.Format("2006-01-02"))

	return buf.Bytes(), filename, nil
}

func (s *ReportService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateByPrefix(ctx, payoutReportPrefix)
	}
}

// buildPayoutReport собирает отчёт из строк очереди: группировка по
// заданиям в порядке появления строк, итоги и разрез по банкам.
func buildPayoutReport(period string, from, to time.Time, rows []models.PendingPaymentRow) *models.PayoutReport {
	report := &models.PayoutReport{
		Period:      period,
		PeriodStart: from,
		PeriodEnd:   to,
		Rows:        rows,
		ByJob:       make([]models.JobPayoutGroup, 0),
		GeneratedAt: time.Now(),
	}

	jobIndex := make(map[uuid.UUID]int)
	bankIndex := make(map[string]int)
	banks := make([]models.PayoutBankBreakdown, 0)

	for _, row := range rows {
		report.Summary.TotalAmountToPay = models.Round2(report.Summary.TotalAmountToPay + row.Amount)
		report.Summary.TotalCommissionCollected = models.Round2(report.Summary.TotalCommissionCollected + row.Commission)
		report.Summary.TotalContracts++

		idx, ok := jobIndex[row.JobID]
		if !ok {
			idx = len(report.ByJob)
			jobIndex[row.JobID] = idx
			report.ByJob = append(report.ByJob, models.JobPayoutGroup{
				JobID:      row.JobID,
				JobTitle:   row.JobTitle,
				ClientName: row.ClientName,
			})
		}
		group := &report.ByJob[idx]
		group.TotalAmount = models.Round2(group.TotalAmount + row.Amount)
		group.Rows = append(group.Rows, row)

		bank := "не указан"
		if row.BankName != nil && *row.BankName != "" {
			bank = *row.BankName
		}
		bidx, ok := bankIndex[bank]
		if !ok {
			bidx = len(banks)
			bankIndex[bank] = bidx
			banks = append(banks, models.PayoutBankBreakdown{BankName: bank})
		}
		banks[bidx].Contracts++
		banks[bidx].Amount = models.Round2(banks[bidx].Amount + row.Amount)
	}

	report.Summary.ByBank = banks
	return report
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func csvMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func csvTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
