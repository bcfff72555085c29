package models

import "testing"

func TestPayoutDeductions_Total(t *testing.T) {
	d := PayoutDeductions{BankFee: 10.50, TaxAmount: 21.25, OtherFee: 0}
	if got := d.Total(); got != 31.75 {
		t.Errorf("Total() = %v, ожидалось 31.75", got)
	}
}

func TestPayoutDeductions_TotalRoundsToCents(t *testing.T) {
	// 0.1 + 0.2 в float64 даёт хвост, Total обязан вернуть ровно 0.3.
	d := PayoutDeductions{BankFee: 0.1, TaxAmount: 0.2}
	if got := d.Total(); got != 0.3 {
		t.Errorf("Total() = %v, ожидалось 0.3", got)
	}
}

func TestPayoutDeductions_TotalEmpty(t *testing.T) {
	var d PayoutDeductions
	if got := d.Total(); got != 0 {
		t.Errorf("Total() = %v, ожидался 0", got)
	}
}
