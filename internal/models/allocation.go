package models

import (
	"errors"
	"math"
)

// Ошибки распределения бюджета.
var (
	ErrCapacityExceeded = errors.New("job worker capacity exceeded")
	ErrBudgetExceeded   = errors.New("job budget exceeded")
	ErrInvalidPrice     = errors.New("proposed price must be positive")
)

// AllocationResult содержит рассчитанную долю бюджета для одного контракта.
type AllocationResult struct {
	AllocatedAmount    float64 `json:"allocated_amount"`
	PercentageOfBudget float64 `json:"percentage_of_budget"`
}

// Allocate рассчитывает долю бюджета задания для нового контракта.
// Чистая функция без состояния: вызывается каждый раз заново под блокировкой
// строки задания, поскольку остаток бюджета меняется с каждым принятием.
//
// Политика: если предложена цена — берётся она, но не больше остатка бюджета;
// без цены остаток делится поровну между незанятыми слотами. Исчерпанный
// остаток или заполненные слоты отклоняются до какой-либо записи.
func Allocate(budget, allocatedTotal float64, maxWorkers, workersAssigned int, proposedPrice *float64) (AllocationResult, error) {
	if workersAssigned >= maxWorkers {
		return AllocationResult{}, ErrCapacityExceeded
	}

	remaining := Round2(budget - allocatedTotal)
	if remaining <= 0 {
		return AllocationResult{}, ErrBudgetExceeded
	}

	var amount float64
	if proposedPrice != nil {
		if *proposedPrice <= 0 {
			return AllocationResult{}, ErrInvalidPrice
		}
		amount = *proposedPrice
		if amount > remaining {
			amount = remaining
		}
	} else {
		slots := maxWorkers - workersAssigned
		amount = Round2(remaining / float64(slots))
	}

	percentage := 0.0
	if budget > 0 {
		percentage = Round2(amount / budget * 100)
	}

	return AllocationResult{
		AllocatedAmount:    Round2(amount),
		PercentageOfBudget: percentage,
	}, nil
}

// Round2 округляет денежную сумму до двух знаков.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
