package models

import (
	"time"

	"github.com/google/uuid"
)

// Периоды отчёта по выплатам.
const (
	ReportPeriodDaily   = "daily"
	ReportPeriodWeekly  = "weekly"
	ReportPeriodMonthly = "monthly"
	ReportPeriodCustom  = "custom"
)

var ValidReportPeriods = map[string]struct{}{
	ReportPeriodDaily:   {},
	ReportPeriodWeekly:  {},
	ReportPeriodMonthly: {},
	ReportPeriodCustom:  {},
}

// PendingPaymentRow — строка очереди выплат: подтверждённый платёж,
// ожидающий перевода исполнителю, вместе с банковскими реквизитами.
type PendingPaymentRow struct {
	PaymentID       uuid.UUID  `db:"payment_id" json:"payment_id"`
	ContractID      uuid.UUID  `db:"contract_id" json:"contract_id"`
	ContractNumber  string     `db:"contract_number" json:"contract_number"`
	JobID           uuid.UUID  `db:"job_id" json:"job_id"`
	JobTitle        string     `db:"job_title" json:"job_title"`
	ClientID        uuid.UUID  `db:"client_id" json:"client_id"`
	ClientName      string     `db:"client_name" json:"client_name"`
	WorkerID        uuid.UUID  `db:"worker_id" json:"worker_id"`
	WorkerName      string     `db:"worker_name" json:"worker_name"`
	WorkerEmail     string     `db:"worker_email" json:"worker_email"`
	WorkerDNI       *string    `db:"worker_dni" json:"worker_dni,omitempty"`
	WorkerPhone     *string    `db:"worker_phone" json:"worker_phone,omitempty"`
	WorkerAddress   *string    `db:"worker_address" json:"worker_address,omitempty"`
	BankName        *string    `db:"bank_name" json:"bank_name,omitempty"`
	CBU             *string    `db:"cbu" json:"cbu,omitempty"`
	AccountAlias    *string    `db:"account_alias" json:"account_alias,omitempty"`
	Amount          float64    `db:"amount" json:"amount"`
	Commission      float64    `db:"commission" json:"commission"`
	TotalPrice      float64    `db:"total_price" json:"total_price"`
	PaymentStatus   string     `db:"payment_status" json:"payment_status"`
	ConfirmedAt     *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	ContractEndDate *time.Time `db:"contract_end_date" json:"contract_end_date,omitempty"`
}

// JobPayoutGroup — выплаты, сгруппированные по заданию.
type JobPayoutGroup struct {
	JobID       uuid.UUID           `json:"job_id"`
	JobTitle    string              `json:"job_title"`
	ClientName  string              `json:"client_name"`
	TotalAmount float64             `json:"total_amount"`
	Rows        []PendingPaymentRow `json:"rows"`
}

// PayoutBankBreakdown — суммы к выплате в разрезе банка получателя.
type PayoutBankBreakdown struct {
	BankName  string  `json:"bank_name"`
	Contracts int     `json:"contracts"`
	Amount    float64 `json:"amount"`
}

// PayoutReportSummary — итоги отчёта по выплатам за период.
type PayoutReportSummary struct {
	TotalAmountToPay         float64               `json:"total_amount_to_pay"`
	TotalCommissionCollected float64               `json:"total_commission_collected"`
	TotalContracts           int                   `json:"total_contracts"`
	ByBank                   []PayoutBankBreakdown `json:"by_bank"`
}

// PayoutReport — полный отчёт: строки, группировка по заданиям и итоги.
type PayoutReport struct {
	Period      string              `json:"period"`
	PeriodStart time.Time           `json:"period_start"`
	PeriodEnd   time.Time           `json:"period_end"`
	Rows        []PendingPaymentRow `json:"rows"`
	ByJob       []JobPayoutGroup    `json:"by_job"`
	Summary     PayoutReportSummary `json:"summary"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// ReportPeriodBounds возвращает границы периода отчёта. Для custom
// используются переданные from/to, для остальных окно отсчитывается
// назад от now.
func ReportPeriodBounds(period string, now time.Time, from, to *time.Time) (time.Time, time.Time) {
	switch period {
	case ReportPeriodDaily:
		return now.AddDate(0, 0, -1), now
	case ReportPeriodWeekly:
		return now.AddDate(0, 0, -7), now
	case ReportPeriodMonthly:
		return now.AddDate(0, -1, 0), now
	case ReportPeriodCustom:
		if from != nil && to != nil {
			return *from, *to
		}
	}
	return now.AddDate(0, 0, -7), now
}
