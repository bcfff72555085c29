package models

import "testing"

func TestCanContractTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{ContractStatusPending, ContractStatusReady, true},
		{ContractStatusReady, ContractStatusAccepted, true},
		{ContractStatusAccepted, ContractStatusInProgress, true},
		{ContractStatusInProgress, ContractStatusAwaitingConfirmation, true},
		{ContractStatusAwaitingConfirmation, ContractStatusCompleted, true},
		{ContractStatusInProgress, ContractStatusDisputed, true},
		{ContractStatusDisputed, ContractStatusCompleted, true},
		{ContractStatusDisputed, ContractStatusCancelled, true},

		// Обратных переходов и прыжков через стадию нет.
		{ContractStatusReady, ContractStatusPending, false},
		{ContractStatusPending, ContractStatusAccepted, false},
		{ContractStatusPending, ContractStatusCompleted, false},
		{ContractStatusCompleted, ContractStatusCancelled, false},
		{ContractStatusCancelled, ContractStatusPending, false},
		{ContractStatusCompleted, ContractStatusDisputed, false},
	}
	for _, c := range cases {
		if got := CanContractTransition(c.from, c.to); got != c.want {
			t.Errorf("CanContractTransition(%s, %s) = %v, ожидалось %v", c.from, c.to, got, c.want)
		}
	}
}

func TestCanPaymentTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{PaymentStatusPending, PaymentStatusHeldEscrow, true},
		{PaymentStatusHeldEscrow, PaymentStatusConfirmedForPayout, true},
		{PaymentStatusHeldEscrow, PaymentStatusRefunded, true},
		{PaymentStatusHeldEscrow, PaymentStatusDisputed, true},
		{PaymentStatusConfirmedForPayout, PaymentStatusCompleted, true},
		{PaymentStatusDisputed, PaymentStatusConfirmedForPayout, true},
		{PaymentStatusDisputed, PaymentStatusRefunded, true},

		// Эскроу не минуется, выплаченное не возвращается в очередь.
		{PaymentStatusPending, PaymentStatusConfirmedForPayout, false},
		{PaymentStatusPending, PaymentStatusCompleted, false},
		{PaymentStatusHeldEscrow, PaymentStatusCompleted, false},
		{PaymentStatusCompleted, PaymentStatusConfirmedForPayout, false},
		{PaymentStatusRefunded, PaymentStatusHeldEscrow, false},
	}
	for _, c := range cases {
		if got := CanPaymentTransition(c.from, c.to); got != c.want {
			t.Errorf("CanPaymentTransition(%s, %s) = %v, ожидалось %v", c.from, c.to, got, c.want)
		}
	}
}

func TestCanWithdrawalTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{WithdrawalStatusPending, WithdrawalStatusApproved, true},
		{WithdrawalStatusPending, WithdrawalStatusRejected, true},
		{WithdrawalStatusPending, WithdrawalStatusCancelled, true},
		{WithdrawalStatusApproved, WithdrawalStatusProcessing, true},
		{WithdrawalStatusApproved, WithdrawalStatusRejected, true},
		{WithdrawalStatusProcessing, WithdrawalStatusCompleted, true},

		{WithdrawalStatusPending, WithdrawalStatusCompleted, false},
		{WithdrawalStatusProcessing, WithdrawalStatusRejected, false},
		{WithdrawalStatusProcessing, WithdrawalStatusCancelled, false},
		{WithdrawalStatusCompleted, WithdrawalStatusPending, false},
		{WithdrawalStatusRejected, WithdrawalStatusApproved, false},
	}
	for _, c := range cases {
		if got := CanWithdrawalTransition(c.from, c.to); got != c.want {
			t.Errorf("CanWithdrawalTransition(%s, %s) = %v, ожидалось %v", c.from, c.to, got, c.want)
		}
	}
}

func TestCanDisputeTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{DisputeStatusOpen, DisputeStatusInReview, true},
		{DisputeStatusOpen, DisputeStatusResolvedReleased, true},
		{DisputeStatusInReview, DisputeStatusAwaitingInfo, true},
		{DisputeStatusAwaitingInfo, DisputeStatusInReview, true},
		{DisputeStatusInReview, DisputeStatusResolvedPartial, true},

		{DisputeStatusResolvedReleased, DisputeStatusOpen, false},
		{DisputeStatusCancelled, DisputeStatusInReview, false},
		{DisputeStatusResolvedPartial, DisputeStatusResolvedRefunded, false},
	}
	for _, c := range cases {
		if got := CanDisputeTransition(c.from, c.to); got != c.want {
			t.Errorf("CanDisputeTransition(%s, %s) = %v, ожидалось %v", c.from, c.to, got, c.want)
		}
	}
}

func TestCanJobTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{JobStatusDraft, JobStatusOpen, true},
		{JobStatusOpen, JobStatusInProgress, true},
		{JobStatusInProgress, JobStatusCompleted, true},
		{JobStatusOpen, JobStatusPaused, true},
		{JobStatusPaused, JobStatusOpen, true},

		{JobStatusCompleted, JobStatusOpen, false},
		{JobStatusCancelled, JobStatusDraft, false},
		{JobStatusDraft, JobStatusCompleted, false},
	}
	for _, c := range cases {
		if got := CanJobTransition(c.from, c.to); got != c.want {
			t.Errorf("CanJobTransition(%s, %s) = %v, ожидалось %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	if !IsTerminalContractStatus(ContractStatusCompleted) || !IsTerminalContractStatus(ContractStatusCancelled) {
		t.Error("completed и cancelled должны быть терминальными для контракта")
	}
	if IsTerminalContractStatus(ContractStatusDisputed) {
		t.Error("disputed не терминальный статус контракта")
	}
	if !IsTerminalDisputeStatus(DisputeStatusResolvedPartial) {
		t.Error("resolved_partial должен быть терминальным для спора")
	}
	if IsTerminalDisputeStatus(DisputeStatusAwaitingInfo) {
		t.Error("awaiting_info не терминальный статус спора")
	}
	if !IsTerminalJobStatus(JobStatusCancelled) {
		t.Error("cancelled должен быть терминальным для задания")
	}
}
