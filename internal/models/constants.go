package models

// Роли пользователей
const (
	RoleClient = "client"
	RoleWorker = "worker"
	RoleAdmin  = "admin"
)

// JobStatus константы статусов заданий
const (
	JobStatusDraft           = "draft"
	JobStatusPendingPayment  = "pending_payment"
	JobStatusPendingApproval = "pending_approval"
	JobStatusOpen            = "open"
	JobStatusInProgress      = "in_progress"
	JobStatusCompleted       = "completed"
	JobStatusCancelled       = "cancelled"
	JobStatusPaused          = "paused"
	JobStatusSuspended       = "suspended"
)

// ProposalStatus константы статусов предложений
const (
	ProposalStatusPending   = "pending"
	ProposalStatusApproved  = "approved"
	ProposalStatusRejected  = "rejected"
	ProposalStatusWithdrawn = "withdrawn"
)

// ContractStatus константы статусов контрактов
const (
	ContractStatusPending              = "pending"
	ContractStatusReady                = "ready"
	ContractStatusAccepted             = "accepted"
	ContractStatusInProgress           = "in_progress"
	ContractStatusAwaitingConfirmation = "awaiting_confirmation"
	ContractStatusCompleted            = "completed"
	ContractStatusCancelled            = "cancelled"
	ContractStatusDisputed             = "disputed"
)

// ContractPaymentStatus константы платёжного статуса контракта.
// Значение "held" встречается в старых записях и читается как синоним
// "held_escrow"; при записи всегда используется "held_escrow".
const (
	ContractPaymentStatusPending    = "pending"
	ContractPaymentStatusHeld       = "held"
	ContractPaymentStatusHeldEscrow = "held_escrow"
	ContractPaymentStatusReleased   = "released"
	ContractPaymentStatusRefunded   = "refunded"
	ContractPaymentStatusDisputed   = "disputed"
	ContractPaymentStatusCompleted  = "completed"
)

// EscrowStatus константы статуса эскроу на контракте
const (
	EscrowStatusPending    = "pending"
	EscrowStatusHeldEscrow = "held_escrow"
	EscrowStatusReleased   = "released"
)

// PaymentStatus константы статусов платежей
const (
	PaymentStatusPending            = "pending"
	PaymentStatusHeldEscrow         = "held_escrow"
	PaymentStatusConfirmedForPayout = "confirmed_for_payout"
	PaymentStatusCompleted          = "completed"
	PaymentStatusDisputed           = "disputed"
	PaymentStatusRefunded           = "refunded"
)

// PaymentType типы платежей
const (
	PaymentTypeContractPayment = "contract_payment"
	PaymentTypeEscrowDeposit   = "escrow_deposit"
)

// PaymentProofStatus статусы подтверждений оплаты
const (
	PaymentProofStatusPending  = "pending"
	PaymentProofStatusApproved = "approved"
	PaymentProofStatusRejected = "rejected"
)

// BalanceTransactionType типы операций по балансу
const (
	BalanceTransactionTypePayment    = "payment"
	BalanceTransactionTypeRefund     = "refund"
	BalanceTransactionTypeBonus      = "bonus"
	BalanceTransactionTypeAdjustment = "adjustment"
	BalanceTransactionTypeWithdrawal = "withdrawal"
)

// BalanceTransactionStatus статусы операций по балансу
const (
	BalanceTransactionStatusPending   = "pending"
	BalanceTransactionStatusCompleted = "completed"
	BalanceTransactionStatusFailed    = "failed"
)

// WithdrawalStatus константы статусов заявок на вывод
const (
	WithdrawalStatusPending    = "pending"
	WithdrawalStatusApproved   = "approved"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusCompleted  = "completed"
	WithdrawalStatusRejected   = "rejected"
	WithdrawalStatusCancelled  = "cancelled"
)

// DisputeStatus константы статусов споров
const (
	DisputeStatusOpen             = "open"
	DisputeStatusInReview         = "in_review"
	DisputeStatusAwaitingInfo     = "awaiting_info"
	DisputeStatusResolvedReleased = "resolved_released"
	DisputeStatusResolvedRefunded = "resolved_refunded"
	DisputeStatusResolvedPartial  = "resolved_partial"
	DisputeStatusCancelled        = "cancelled"
)

// DisputeOutcome варианты решения спора
const (
	DisputeOutcomeReleaseToWorker = "release_to_worker"
	DisputeOutcomeRefundToClient  = "refund_to_client"
	DisputeOutcomePartialSplit    = "partial_split"
)

// ValidJobStatuses список валидных статусов заданий
var ValidJobStatuses = map[string]struct{}{
	JobStatusDraft:           {},
	JobStatusPendingPayment:  {},
	JobStatusPendingApproval: {},
	JobStatusOpen:            {},
	JobStatusInProgress:      {},
	JobStatusCompleted:       {},
	JobStatusCancelled:       {},
	JobStatusPaused:          {},
	JobStatusSuspended:       {},
}

// ValidProposalStatuses список валидных статусов предложений
var ValidProposalStatuses = map[string]struct{}{
	ProposalStatusPending:   {},
	ProposalStatusApproved:  {},
	ProposalStatusRejected:  {},
	ProposalStatusWithdrawn: {},
}

// ValidContractStatuses список валидных статусов контрактов
var ValidContractStatuses = map[string]struct{}{
	ContractStatusPending:              {},
	ContractStatusReady:                {},
	ContractStatusAccepted:             {},
	ContractStatusInProgress:           {},
	ContractStatusAwaitingConfirmation: {},
	ContractStatusCompleted:            {},
	ContractStatusCancelled:            {},
	ContractStatusDisputed:             {},
}

// ValidWithdrawalStatuses список валидных статусов заявок на вывод
var ValidWithdrawalStatuses = map[string]struct{}{
	WithdrawalStatusPending:    {},
	WithdrawalStatusApproved:   {},
	WithdrawalStatusProcessing: {},
	WithdrawalStatusCompleted:  {},
	WithdrawalStatusRejected:   {},
	WithdrawalStatusCancelled:  {},
}

// ValidDisputeStatuses список валидных статусов споров
var ValidDisputeStatuses = map[string]struct{}{
	DisputeStatusOpen:             {},
	DisputeStatusInReview:         {},
	DisputeStatusAwaitingInfo:     {},
	DisputeStatusResolvedReleased: {},
	DisputeStatusResolvedRefunded: {},
	DisputeStatusResolvedPartial:  {},
	DisputeStatusCancelled:        {},
}

// Таблицы допустимых переходов. Любая смена статуса проверяется здесь,
// а не в хэндлерах: хэндлер спрашивает CanXTransition и не держит
// собственных списков.

var contractTransitions = map[string]map[string]struct{}{
	ContractStatusPending: {
		ContractStatusReady:     {},
		ContractStatusCancelled: {},
		ContractStatusDisputed:  {},
	},
	ContractStatusReady: {
		ContractStatusAccepted:  {},
		ContractStatusCancelled: {},
		ContractStatusDisputed:  {},
	},
	ContractStatusAccepted: {
		ContractStatusInProgress: {},
		ContractStatusCancelled:  {},
		ContractStatusDisputed:   {},
	},
	ContractStatusInProgress: {
		ContractStatusAwaitingConfirmation: {},
		ContractStatusCancelled:            {},
		ContractStatusDisputed:             {},
	},
	ContractStatusAwaitingConfirmation: {
		ContractStatusCompleted: {},
		ContractStatusCancelled: {},
		ContractStatusDisputed:  {},
	},
	ContractStatusDisputed: {
		ContractStatusCompleted: {},
		ContractStatusCancelled: {},
	},
}

var paymentTransitions = map[string]map[string]struct{}{
	PaymentStatusPending: {
		PaymentStatusHeldEscrow: {},
	},
	PaymentStatusHeldEscrow: {
		PaymentStatusConfirmedForPayout: {},
		PaymentStatusDisputed:           {},
		PaymentStatusRefunded:           {},
	},
	PaymentStatusConfirmedForPayout: {
		PaymentStatusCompleted: {},
		PaymentStatusDisputed:  {},
		PaymentStatusRefunded:  {},
	},
	PaymentStatusDisputed: {
		PaymentStatusConfirmedForPayout: {},
		PaymentStatusCompleted:          {},
		PaymentStatusRefunded:           {},
	},
}

var withdrawalTransitions = map[string]map[string]struct{}{
	WithdrawalStatusPending: {
		WithdrawalStatusApproved:  {},
		WithdrawalStatusRejected:  {},
		WithdrawalStatusCancelled: {},
	},
	WithdrawalStatusApproved: {
		WithdrawalStatusProcessing: {},
		WithdrawalStatusRejected:   {},
		WithdrawalStatusCancelled:  {},
	},
	WithdrawalStatusProcessing: {
		WithdrawalStatusCompleted: {},
	},
}

var disputeTransitions = map[string]map[string]struct{}{
	DisputeStatusOpen: {
		DisputeStatusInReview:         {},
		DisputeStatusAwaitingInfo:     {},
		DisputeStatusResolvedReleased: {},
		DisputeStatusResolvedRefunded: {},
		DisputeStatusResolvedPartial:  {},
		DisputeStatusCancelled:        {},
	},
	DisputeStatusInReview: {
		DisputeStatusAwaitingInfo:     {},
		DisputeStatusResolvedReleased: {},
		DisputeStatusResolvedRefunded: {},
		DisputeStatusResolvedPartial:  {},
		DisputeStatusCancelled:        {},
	},
	DisputeStatusAwaitingInfo: {
		DisputeStatusInReview:         {},
		DisputeStatusResolvedReleased: {},
		DisputeStatusResolvedRefunded: {},
		DisputeStatusResolvedPartial:  {},
		DisputeStatusCancelled:        {},
	},
}

var jobTransitions = map[string]map[string]struct{}{
	JobStatusDraft: {
		JobStatusPendingPayment:  {},
		JobStatusPendingApproval: {},
		JobStatusOpen:            {},
		JobStatusCancelled:       {},
	},
	JobStatusPendingPayment: {
		JobStatusPendingApproval: {},
		JobStatusOpen:            {},
		JobStatusCancelled:       {},
	},
	JobStatusPendingApproval: {
		JobStatusOpen:      {},
		JobStatusCancelled: {},
		JobStatusSuspended: {},
	},
	JobStatusOpen: {
		JobStatusInProgress: {},
		JobStatusPaused:     {},
		JobStatusSuspended:  {},
		JobStatusCancelled:  {},
	},
	JobStatusInProgress: {
		JobStatusCompleted: {},
		JobStatusPaused:    {},
		JobStatusSuspended: {},
		JobStatusCancelled: {},
	},
	JobStatusPaused: {
		JobStatusOpen:       {},
		JobStatusInProgress: {},
		JobStatusCancelled:  {},
	},
	JobStatusSuspended: {
		JobStatusOpen:      {},
		JobStatusCancelled: {},
	},
}

// CanContractTransition проверяет допустимость перехода статуса контракта.
func CanContractTransition(from, to string) bool {
	allowed, ok := contractTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// CanPaymentTransition проверяет допустимость перехода статуса платежа.
func CanPaymentTransition(from, to string) bool {
	allowed, ok := paymentTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// CanWithdrawalTransition проверяет допустимость перехода заявки на вывод.
func CanWithdrawalTransition(from, to string) bool {
	allowed, ok := withdrawalTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// CanDisputeTransition проверяет допустимость перехода статуса спора.
func CanDisputeTransition(from, to string) bool {
	allowed, ok := disputeTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// CanJobTransition проверяет допустимость перехода статуса задания.
func CanJobTransition(from, to string) bool {
	allowed, ok := jobTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// IsTerminalContractStatus сообщает, является ли статус контракта конечным.
func IsTerminalContractStatus(status string) bool {
	return status == ContractStatusCompleted || status == ContractStatusCancelled
}

// IsTerminalJobStatus сообщает, является ли статус задания конечным.
func IsTerminalJobStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusCancelled
}

// IsTerminalDisputeStatus сообщает, является ли статус спора конечным.
func IsTerminalDisputeStatus(status string) bool {
	switch status {
	case DisputeStatusResolvedReleased, DisputeStatusResolvedRefunded, DisputeStatusResolvedPartial, DisputeStatusCancelled:
		return true
	}
	return false
}
