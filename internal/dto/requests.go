package dto

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/laburoapp/laburo-backend/internal/models"
)

// CreateJobRequest represents the payload for creating a job
type CreateJobRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description" binding:"required"`
	Budget      float64 `json:"budget" binding:"required"`
	MaxWorkers  int     `json:"max_workers"`
}

// UpdateJobRequest represents the payload for updating a job
type UpdateJobRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description" binding:"required"`
	Budget      float64 `json:"budget" binding:"required"`
}

// UpdateJobStatusRequest represents the payload for a job status change
type UpdateJobStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SubmitProposalRequest represents the payload for submitting a proposal to a job
type SubmitProposalRequest struct {
	CoverLetter   string   `json:"cover_letter" binding:"required"`
	ProposedPrice *float64 `json:"proposed_price"`
}

// CreateContractRequest represents the payload for creating a contract from an approved proposal
type CreateContractRequest struct {
	ProposalID string   `json:"proposal_id" binding:"required"`
	Price      *float64 `json:"price"`
	EndDate    *string  `json:"end_date"`
}

// ParseProposalID parses the proposal ID string into a UUID
func (r *CreateContractRequest) ParseProposalID() (uuid.UUID, error) {
	id, err := uuid.Parse(r.ProposalID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("неверный формат proposal_id: %w", err)
	}
	return id, nil
}

// ParseEndDate parses the optional end date in RFC3339 format
func (r *CreateContractRequest) ParseEndDate() (*time.Time, error) {
	if r.EndDate == nil || *r.EndDate == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *r.EndDate)
	if err != nil {
		return nil, fmt.Errorf("неверный формат end_date, ожидается RFC3339: %w", err)
	}
	return &t, nil
}

// ModifyPriceRequest represents the payload for changing a contract price
type ModifyPriceRequest struct {
	NewPrice float64 `json:"new_price" binding:"required"`
	Reason   string  `json:"reason" binding:"required"`
}

// ExtendContractRequest represents the payload for extending a contract deadline
type ExtendContractRequest struct {
	Days             int      `json:"days" binding:"required"`
	AdditionalAmount *float64 `json:"additional_amount"`
}

// CancelContractRequest represents the payload for cancelling a contract
type CancelContractRequest struct {
	Reason string `json:"reason"`
}

// OpenDisputeRequest represents the payload for opening a dispute on a contract
type OpenDisputeRequest struct {
	Category            string   `json:"category" binding:"required"`
	Reason              string   `json:"reason" binding:"required"`
	DetailedDescription *string  `json:"detailed_description"`
	Evidence            []string `json:"evidence"`
}

// DisputeMessageRequest represents the payload for posting a dispute message
type DisputeMessageRequest struct {
	Message     string   `json:"message" binding:"required"`
	Attachments []string `json:"attachments"`
}

// ResolveDisputeRequest represents the payload for an arbitration decision
type ResolveDisputeRequest struct {
	Outcome     string   `json:"outcome" binding:"required"`
	Resolution  string   `json:"resolution" binding:"required"`
	WorkerRatio *float64 `json:"worker_ratio"`
}

// RequestWithdrawalRequest represents the payload for requesting a balance withdrawal
type RequestWithdrawalRequest struct {
	Amount       float64 `json:"amount" binding:"required"`
	BankName     *string `json:"bank_name"`
	CBU          *string `json:"cbu"`
	AccountAlias *string `json:"account_alias"`
}

// RejectWithdrawalRequest represents the payload for rejecting a withdrawal request
type RejectWithdrawalRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// AdjustBalanceRequest represents the payload for a manual balance adjustment by an admin
type AdjustBalanceRequest struct {
	UserID string  `json:"user_id" binding:"required"`
	Amount float64 `json:"amount" binding:"required"`
	Type   string  `json:"type"`
	Reason string  `json:"reason" binding:"required"`
}

// ParseUserID parses the user ID string into a UUID
func (r *AdjustBalanceRequest) ParseUserID() (uuid.UUID, error) {
	id, err := uuid.Parse(r.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("неверный формат user_id: %w", err)
	}
	return id, nil
}

// MarkPaidRequest represents the payload for recording a completed payout
type MarkPaidRequest struct {
	ProofURL   string                  `json:"proof_url" binding:"required"`
	Deductions models.PayoutDeductions `json:"deductions"`
	AdminNotes *string                 `json:"admin_notes"`
}

// RefundRequest represents the payload for refunding an escrow payment
type RefundRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// DepositWebhookRequest represents the payment gateway notification payload
type DepositWebhookRequest struct {
	ContractID string  `json:"contract_id" binding:"required"`
	Amount     float64 `json:"amount" binding:"required"`
	Status     string  `json:"status" binding:"required"`
	ExternalID string  `json:"external_id"`
}

// ParseContractID parses the contract ID string into a UUID
func (r *DepositWebhookRequest) ParseContractID() (uuid.UUID, error) {
	id, err := uuid.Parse(r.ContractID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("неверный формат contract_id: %w", err)
	}
	return id, nil
}

// UpdateBankDetailsRequest represents the payload for updating payout bank details
type UpdateBankDetailsRequest struct {
	BankName     *string `json:"bank_name"`
	CBU          *string `json:"cbu"`
	AccountAlias *string `json:"account_alias"`
	DNI          *string `json:"dni"`
	Phone        *string `json:"phone"`
	Address      *string `json:"address"`
}

// SeedRequest represents the payload for generating demo data
type SeedRequest struct {
	Workers int `json:"workers"`
	Jobs    int `json:"jobs"`
}
