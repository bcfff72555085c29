package dto

import (
	"github.com/laburoapp/laburo-backend/internal/models"
)

// ErrorResponse represents a standardized error payload
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// SuccessResponse represents a standardized success payload
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Pagination represents pagination metadata for list responses
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewPagination builds pagination metadata from list parameters
func NewPagination(total, limit, offset int) Pagination {
	return Pagination{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

// PaginatedJobsResponse represents a paginated list of jobs
type PaginatedJobsResponse struct {
	Jobs       []models.Job `json:"jobs"`
	Pagination Pagination   `json:"pagination"`
}

// ContractDetailResponse represents a contract with its escrow payment
type ContractDetailResponse struct {
	*models.Contract
	Payment *models.Payment `json:"payment,omitempty"`
}

// PaginatedContractsResponse represents a paginated list of contracts
type PaginatedContractsResponse struct {
	Contracts  []models.Contract `json:"contracts"`
	Pagination Pagination        `json:"pagination"`
}

// DisputeDetailResponse represents a dispute with its message thread
type DisputeDetailResponse struct {
	*models.Dispute
	Messages []models.DisputeMessage `json:"messages,omitempty"`
}

// PaginatedDisputesResponse represents a paginated list of disputes
type PaginatedDisputesResponse struct {
	Disputes   []models.Dispute `json:"disputes"`
	Pagination Pagination       `json:"pagination"`
}

// BalanceResponse represents a user's balance summary
type BalanceResponse struct {
	Balance            float64 `json:"balance"`
	PendingWithdrawals float64 `json:"pending_withdrawals"`
	Available          float64 `json:"available"`
}

// PaginatedTransactionsResponse represents a paginated balance transaction history
type PaginatedTransactionsResponse struct {
	Transactions []models.BalanceTransaction `json:"transactions"`
	Pagination   Pagination                  `json:"pagination"`
}

// PaginatedWithdrawalsResponse represents a paginated list of withdrawal requests
type PaginatedWithdrawalsResponse struct {
	Withdrawals []models.WithdrawalRequest `json:"withdrawals"`
	Pagination  Pagination                 `json:"pagination"`
}
