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

// PaymentRepository описывает взаимодействие сервиса с леджером платежей.
type PaymentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByContractID(ctx context.Context, contractID uuid.UUID) (*models.Payment, error)
	DepositToEscrow(ctx context.Context, contractID uuid.UUID, amount float64) (*models.Payment, error)
	VerifyForPayout(ctx context.Context, paymentID, adminID uuid.UUID) (*models.Payment, error)
	RecordPayout(ctx context.Context, params repository.RecordPayoutParams) (*repository.RecordPayoutResult, error)
	Refund(ctx context.Context, contractID uuid.UUID, reason string, cancelContract bool) (*models.Payment, error)
	FixStatus(ctx context.Context, contractID, adminID uuid.UUID) ([]string, error)
	AdjustBalance(ctx context.Context, userID uuid.UUID, amount float64, txType, reason string, adminID uuid.UUID) (*models.BalanceTransaction, error)
	GetBalanceSummary(ctx context.Context, userID uuid.UUID) (*repository.BalanceSummary, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.BalanceTransaction, int, error)
	ListProofs(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentProof, error)
}

// ContractReader — чтение контрактов для адресации уведомлений.
type ContractReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
}

// EscrowService управляет движением денег по контракту: поступление в
// эскроу, подтверждение к выплате, фиксация выплаты, возврат. Сервис
// проверяет вход и переводит ошибки хранилища в доменные; атомарность
// денежных эффектов обеспечивают транзакции репозитория.
type EscrowService struct {
	payments  PaymentRepository
	contracts ContractReader
	notifier  Notifier
}

// NewEscrowService создаёт новый сервис эскроу.
func NewEscrowService(payments PaymentRepository, contracts ContractReader, notifier Notifier) *EscrowService {
	return &EscrowService{payments: payments, contracts: contracts, notifier: notifier}
}

// DepositToEscrow фиксирует поступление средств от платёжного шлюза.
// Повторное уведомление по уже удержанному платежу — no-op: шлюз может
// доставить одно событие несколько раз.
func (s *EscrowService) DepositToEscrow(ctx context.Context, contractID uuid.UUID, amount float64) (*models.Payment, error) {
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма депозита должна быть положительной")
	}

	payment, err := s.payments.DepositToEscrow(ctx, contractID, models.Round2(amount))
	if err != nil {
		return nil, mapEscrowError(err)
	}

	if contract, cerr := s.contracts.GetByID(ctx, contractID); cerr == nil {
		notifyAsync(s.notifier, contract.WorkerID, "escrow", "Эскроу пополнен",
			"Средства по контракту "+contract.ContractNumber+" зачислены в эскроу, можно принимать контракт")
		notifyAsync(s.notifier, contract.ClientID, "escrow", "Эскроу пополнен",
			"Оплата по контракту "+contract.ContractNumber+" удержана в эскроу")
	}

	return payment, nil
}

// VerifyForPayout — административный шлагбаум held_escrow -> confirmed_for_payout.
// В очередь выплат попадают только подтверждённые платежи.
func (s *EscrowService) VerifyForPayout(ctx context.Context, paymentID, adminID uuid.UUID) (*models.Payment, error) {
	payment, err := s.payments.VerifyForPayout(ctx, paymentID, adminID)
	if err != nil {
		return nil, mapEscrowError(err)
	}
	return payment, nil
}

// RecordPayoutInput описывает фиксацию выплаты исполнителю.
type RecordPayoutInput struct {
	ContractID uuid.UUID
	ProofURL   string
	Deductions models.PayoutDeductions
	AdminNotes *string
	AdminID    uuid.UUID
}

// RecordPayout — терминальный шаг эскроу: начисление исполнителю чистой
// суммы (база минус комиссия минус вычеты) одной транзакцией.
func (s *EscrowService) RecordPayout(ctx context.Context, in RecordPayoutInput) (*repository.RecordPayoutResult, error) {
	if in.ProofURL == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "приложите подтверждение перевода")
	}
	if in.Deductions.BankFee < 0 || in.Deductions.TaxAmount < 0 || in.Deductions.OtherFee < 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "вычеты не могут быть отрицательными")
	}

	result, err := s.payments.RecordPayout(ctx, repository.RecordPayoutParams{
		ContractID: in.ContractID,
		ProofURL:   in.ProofURL,
		Deductions: in.Deductions,
		AdminNotes: in.AdminNotes,
		AdminID:    in.AdminID,
	})
	if err != nil {
		return nil, mapEscrowError(err)
	}

	if contract, cerr := s.contracts.GetByID(ctx, in.ContractID); cerr == nil {
		notifyAsync(s.notifier, contract.WorkerID, "payout", "Выплата произведена",
			fmt.Sprintf("По контракту %s выплачено %.2f", contract.ContractNumber, result.NetAmount))
	}

	return result, nil
}

// Refund возвращает удержанный эскроу клиенту. При cancelContract контракт
// той же транзакцией переводится в cancelled.
func (s *EscrowService) Refund(ctx context.Context, contractID uuid.UUID, reason string, cancelContract bool) (*models.Payment, error) {
	payment, err := s.payments.Refund(ctx, contractID, reason, cancelContract)
	if err != nil {
		return nil, mapEscrowError(err)
	}

	if contract, cerr := s.contracts.GetByID(ctx, contractID); cerr == nil {
		notifyAsync(s.notifier, contract.ClientID, "escrow", "Средства возвращены",
			fmt.Sprintf("По контракту %s возвращено %.2f", contract.ContractNumber, payment.Amount))
	}

	return payment, nil
}

// FixStatus выравнивает рассинхронизированные статусы контракта и платежа,
// применяя только недостающие эффекты. Возвращает список изменений.
func (s *EscrowService) FixStatus(ctx context.Context, contractID, adminID uuid.UUID) ([]string, error) {
	changed, err := s.payments.FixStatus(ctx, contractID, adminID)
	if err != nil {
		return nil, mapEscrowError(err)
	}
	return changed, nil
}

// GetPayment возвращает платёж по идентификатору.
func (s *EscrowService) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, mapEscrowError(err)
	}
	return payment, nil
}

// GetContractPayment возвращает актуальный платёж контракта.
func (s *EscrowService) GetContractPayment(ctx context.Context, contractID uuid.UUID) (*models.Payment, error) {
	payment, err := s.payments.GetByContractID(ctx, contractID)
	if err != nil {
		return nil, mapEscrowError(err)
	}
	return payment, nil
}

// GetContractPaymentFor возвращает платёж контракта его стороне или
// администратору.
func (s *EscrowService) GetContractPaymentFor(ctx context.Context, contractID, actorID uuid.UUID, role string) (*models.Payment, error) {
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, mapEscrowError(err)
	}
	if err := requireContractAccess(contract, actorID, role); err != nil {
		return nil, err
	}
	return s.GetContractPayment(ctx, contractID)
}

// ListProofs возвращает историю подтверждений перевода по платежу.
func (s *EscrowService) ListProofs(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentProof, error) {
	return s.payments.ListProofs(ctx, paymentID)
}

// GetBalance возвращает баланс пользователя и сумму ожидающих заявок на вывод.
func (s *EscrowService) GetBalance(ctx context.Context, userID uuid.UUID) (*repository.BalanceSummary, error) {
	summary, err := s.payments.GetBalanceSummary(ctx, userID)
	if err != nil {
		return nil, mapEscrowError(err)
	}
	return summary, nil
}

// ListBalanceTransactions возвращает страницу леджера пользователя.
func (s *EscrowService) ListBalanceTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.BalanceTransaction, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.payments.ListTransactions(ctx, userID, limit, offset)
}

// AdjustBalanceInput описывает ручную корректировку баланса администратором.
type AdjustBalanceInput struct {
	UserID  uuid.UUID
	Amount  float64
	Type    string
	Reason  string
	AdminID uuid.UUID
}

// AdjustBalance начисляет бонус или знаковую корректировку через леджер.
func (s *EscrowService) AdjustBalance(ctx context.Context, in AdjustBalanceInput) (*models.BalanceTransaction, error) {
	if in.Type == "" {
		in.Type = models.BalanceTransactionTypeAdjustment
	}
	if in.Type != models.BalanceTransactionTypeBonus && in.Type != models.BalanceTransactionTypeAdjustment {
		return nil, apperror.New(apperror.ErrCodeValidation, "тип операции должен быть bonus или adjustment")
	}
	if in.Amount == 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма корректировки не может быть нулевой")
	}
	if in.Type == models.BalanceTransactionTypeBonus && in.Amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "бонус должен быть положительным")
	}
	if in.Reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "укажите причину корректировки")
	}

	transaction, err := s.payments.AdjustBalance(ctx, in.UserID, models.Round2(in.Amount), in.Type, in.Reason, in.AdminID)
	if err != nil {
		return nil, mapEscrowError(err)
	}

	notifyAsync(s.notifier, in.UserID, "balance", "Баланс скорректирован",
		fmt.Sprintf("Администратор изменил ваш баланс на %.2f: %s", in.Amount, in.Reason))

	return transaction, nil
}

// mapEscrowError переводит ошибки платёжного хранилища в доменные.
func mapEscrowError(err error) error {
	switch {
	case errors.Is(err, repository.ErrPaymentNotFound):
		return apperror.ErrPaymentNotFound
	case errors.Is(err, repository.ErrContractNotFound):
		return apperror.ErrContractNotFound
	case errors.Is(err, repository.ErrUserNotFound):
		return apperror.ErrUserNotFound
	case errors.Is(err, repository.ErrPaymentAlreadyPaid):
		return apperror.Wrap(err, apperror.ErrCodeConcurrencyConflict, "выплата по контракту уже зафиксирована")
	case errors.Is(err, repository.ErrPayoutNotConfirmed):
		return apperror.Wrap(err, apperror.ErrCodeInvalidTransition, "платёж не подтверждён к выплате")
	case errors.Is(err, repository.ErrPaymentStateChanged):
		return apperror.Wrap(err, apperror.ErrCodeInvalidTransition, "состояние платежа не допускает операцию")
	case errors.Is(err, repository.ErrAmountMismatch):
		return apperror.Wrap(err, apperror.ErrCodeValidation, "сумма депозита не совпадает с суммой контракта")
	case errors.Is(err, repository.ErrNegativePayout):
		return apperror.Wrap(err, apperror.ErrCodeValidation, "вычеты превышают сумму выплаты")
	case errors.Is(err, repository.ErrInsufficientFunds):
		return apperror.Wrap(err, apperror.ErrCodeInsufficientBalance, "недостаточно средств на балансе")
	}
	return err
}
